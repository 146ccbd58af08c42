/**
 * @description
 * NFC card lifecycle: a passenger requests a card, pays the emission fee,
 * waits for admin review, and finally links the physical card handed over at
 * the service point. Statuses move through a closed transition table; the
 * store enforces the same transitions under concurrency.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/suba/wallet-service/internal/domain"
	"github.com/suba/wallet-service/internal/store"
	"github.com/suba/wallet-service/pkg/rabbitmq"
)

// RequestCard opens a provisioning request for a new NFC card. Refused when
// the passenger already holds an active card or has a request in flight.
func (s *Service) RequestCard(ctx context.Context, passengerID uuid.UUID) (*domain.NfcCardRequest, error) {
	passenger, err := s.repo.FindPassengerByID(ctx, passengerID)
	if err != nil {
		return nil, fmt.Errorf("failed to find passenger: %w", err)
	}
	if err := CheckProfileComplete(passenger.KYC); err != nil {
		return nil, err
	}

	if _, err := s.repo.FindActiveCardByPassenger(ctx, passengerID); err == nil {
		return nil, store.ErrActiveCardExists
	} else if !errors.Is(err, store.ErrCardNotFound) {
		return nil, fmt.Errorf("failed to check active card: %w", err)
	}

	if _, err := s.repo.FindInFlightCardRequest(ctx, passengerID); err == nil {
		return nil, ErrCardRequestInFlight
	} else if !errors.Is(err, store.ErrCardRequestNotFound) {
		return nil, fmt.Errorf("failed to check in-flight request: %w", err)
	}

	req := &domain.NfcCardRequest{
		ID:             uuid.New(),
		PassengerID:    passengerID,
		Status:         domain.CardRequestPendingPayment,
		EmissionAmount: s.cardEmissionFee,
	}
	if err := s.repo.CreateCardRequest(ctx, req); err != nil {
		return nil, err
	}

	log.Printf("level=info component=cards msg=\"card request opened\" request_id=%s passenger_id=%s emission_amount=%d",
		req.ID, passengerID, req.EmissionAmount)
	return req, nil
}

// ReportCardPayment attaches the passenger's emission fee payment claim to
// the request and moves it into the admin review queue.
func (s *Service) ReportCardPayment(ctx context.Context, passengerID uuid.UUID, requestID uuid.UUID, recharge domain.RechargeRequest) (*domain.NfcCardRequest, error) {
	req, err := s.ownedCardRequest(ctx, passengerID, requestID)
	if err != nil {
		return nil, err
	}

	if recharge.Amount < req.EmissionAmount {
		return nil, ErrAmountNotPositive
	}
	if strings.TrimSpace(recharge.Reference) == "" {
		return nil, ErrReferenceRequired
	}

	validation := &domain.PaymentValidation{
		ID:          uuid.New(),
		AccountID:   passengerID,
		AccountRole: domain.RolePassenger,
		Kind:        domain.PaymentRecharge,
		Reference:   strings.TrimSpace(recharge.Reference),
		Amount:      recharge.Amount,
		Bank:        recharge.Bank,
		PaidAt:      recharge.PaidAt,
		ReceiptURL:  recharge.ReceiptURL,
		Status:      domain.ValidationPending,
	}
	if err := s.repo.CreatePaymentValidation(ctx, validation); err != nil {
		return nil, err
	}

	err = s.repo.TransitionCardRequest(ctx, requestID,
		domain.CardRequestPendingPayment, domain.CardRequestPendingReview,
		store.CardRequestUpdate{PaymentValidationID: &validation.ID})
	if err != nil {
		return nil, err
	}

	log.Printf("level=info component=cards msg=\"card payment reported\" request_id=%s validation_id=%s", requestID, validation.ID)
	return s.repo.FindCardRequestByID(ctx, requestID)
}

// ApproveCardRequest moves a reviewed request to approved; the passenger can
// then link the physical card.
func (s *Service) ApproveCardRequest(ctx context.Context, adminID uuid.UUID, requestID uuid.UUID) error {
	err := s.repo.TransitionCardRequest(ctx, requestID,
		domain.CardRequestPendingReview, domain.CardRequestApproved,
		store.CardRequestUpdate{ReviewedBy: &adminID})
	if err != nil {
		return err
	}
	log.Printf("level=info component=cards msg=\"card request approved\" request_id=%s reviewer_id=%s", requestID, adminID)
	return nil
}

// RejectCardRequest terminates a request under review with a reason.
func (s *Service) RejectCardRequest(ctx context.Context, adminID uuid.UUID, requestID uuid.UUID, reason string) error {
	if strings.TrimSpace(reason) == "" {
		return ErrReasonRequired
	}
	trimmed := strings.TrimSpace(reason)
	err := s.repo.TransitionCardRequest(ctx, requestID,
		domain.CardRequestPendingReview, domain.CardRequestRejected,
		store.CardRequestUpdate{ReviewedBy: &adminID, RejectionReason: &trimmed})
	if err != nil {
		return err
	}
	log.Printf("level=info component=cards msg=\"card request rejected\" request_id=%s reviewer_id=%s", requestID, adminID)
	return nil
}

// LinkCard binds the physical card handed to the passenger to their approved
// request, issuing it as the single active card.
func (s *Service) LinkCard(ctx context.Context, passengerID uuid.UUID, requestID uuid.UUID, cardUID string) (*domain.NfcCard, error) {
	trimmedUID := strings.TrimSpace(cardUID)
	if trimmedUID == "" {
		return nil, store.ErrCardNotFound
	}

	card, err := s.repo.LinkCardAtomic(ctx, requestID, passengerID, trimmedUID)
	if err != nil {
		return nil, err
	}

	log.Printf("level=info component=cards msg=\"card linked\" card_uid=%s passenger_id=%s request_id=%s", card.CardUID, passengerID, requestID)
	if s.eventProducer != nil {
		payload := map[string]interface{}{
			"card_uid":     card.CardUID,
			"passenger_id": passengerID,
			"request_id":   requestID,
		}
		if pubErr := s.eventProducer.Publish(ctx, rabbitmq.WalletExchange, rabbitmq.RouteCardLinked, payload); pubErr != nil {
			log.Printf("level=warn component=cards msg=\"failed to publish card.linked event\" err=%v", pubErr)
		}
	}
	return card, nil
}

// BlockCard takes an active card out of circulation (lost, stolen, fraud).
func (s *Service) BlockCard(ctx context.Context, adminID uuid.UUID, cardUID string, reason string) error {
	if strings.TrimSpace(reason) == "" {
		return ErrReasonRequired
	}
	if err := s.repo.BlockCard(ctx, cardUID, strings.TrimSpace(reason)); err != nil {
		return err
	}

	log.Printf("level=info component=cards msg=\"card blocked\" card_uid=%s admin_id=%s", cardUID, adminID)
	if s.eventProducer != nil {
		payload := map[string]interface{}{"card_uid": cardUID, "blocked_by": adminID}
		if pubErr := s.eventProducer.Publish(ctx, rabbitmq.WalletExchange, rabbitmq.RouteCardBlocked, payload); pubErr != nil {
			log.Printf("level=warn component=cards msg=\"failed to publish card.blocked event\" err=%v", pubErr)
		}
	}
	return nil
}

// GetMyCard returns the passenger's active card, if any.
func (s *Service) GetMyCard(ctx context.Context, passengerID uuid.UUID) (*domain.NfcCard, error) {
	return s.repo.FindActiveCardByPassenger(ctx, passengerID)
}

// GetCardRequest returns one of the passenger's own provisioning requests.
func (s *Service) GetCardRequest(ctx context.Context, passengerID uuid.UUID, requestID uuid.UUID) (*domain.NfcCardRequest, error) {
	return s.ownedCardRequest(ctx, passengerID, requestID)
}

func (s *Service) ownedCardRequest(ctx context.Context, passengerID uuid.UUID, requestID uuid.UUID) (*domain.NfcCardRequest, error) {
	req, err := s.repo.FindCardRequestByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.PassengerID != passengerID {
		return nil, store.ErrCardRequestNotFound
	}
	return req, nil
}
