/**
 * @description
 * Recharge reconciliation workflow. A passenger reports an external payment
 * (bank transfer, cash deposit) and an admin reconciles it against the bank
 * statement: approval credits the balance inside one atomic unit, rejection
 * records a reason. The unique payment reference makes resubmission harmless.
 */

package app

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/suba/wallet-service/internal/domain"
	"github.com/suba/wallet-service/pkg/rabbitmq"
)

// SubmitRecharge records a passenger's external payment claim as a pending
// validation. No balance movement happens until an admin approves it.
func (s *Service) SubmitRecharge(ctx context.Context, passengerID uuid.UUID, req domain.RechargeRequest) (*domain.PaymentValidation, error) {
	if req.Amount <= 0 {
		return nil, ErrAmountNotPositive
	}
	if strings.TrimSpace(req.Reference) == "" {
		return nil, ErrReferenceRequired
	}

	passenger, err := s.repo.FindPassengerByID(ctx, passengerID)
	if err != nil {
		return nil, fmt.Errorf("failed to find passenger: %w", err)
	}
	if err := CheckProfileComplete(passenger.KYC); err != nil {
		return nil, err
	}

	validation := &domain.PaymentValidation{
		ID:          uuid.New(),
		AccountID:   passengerID,
		AccountRole: domain.RolePassenger,
		Kind:        domain.PaymentRecharge,
		Reference:   strings.TrimSpace(req.Reference),
		Amount:      req.Amount,
		Bank:        req.Bank,
		PaidAt:      req.PaidAt,
		ReceiptURL:  req.ReceiptURL,
		Status:      domain.ValidationPending,
	}
	if err := s.repo.CreatePaymentValidation(ctx, validation); err != nil {
		return nil, err
	}

	log.Printf("level=info component=recharge msg=\"recharge submitted\" validation_id=%s passenger_id=%s amount=%d reference=%s",
		validation.ID, passengerID, req.Amount, validation.Reference)
	s.publishValidationEvent(ctx, rabbitmq.RouteRechargeSubmitted, validation)

	return validation, nil
}

// ApproveValidation resolves a pending validation in the claimant's favor.
// For a recharge the status flip, the balance credit, and the ledger row
// commit atomically. For a withdrawal payout the debit already happened at
// request time, so approval is a status flip only and never touches the
// balance again. The store enforces the kind under concurrency; the lookup
// here only picks the path.
func (s *Service) ApproveValidation(ctx context.Context, adminID uuid.UUID, validationID uuid.UUID) (*domain.PaymentValidation, error) {
	validation, err := s.repo.FindPaymentValidationByID(ctx, validationID)
	if err != nil {
		return nil, err
	}

	if validation.Kind == domain.PaymentWithdrawal {
		resolved, err := s.repo.ResolveWithdrawalPayout(ctx, validationID, adminID)
		if err != nil {
			return nil, err
		}
		log.Printf("level=info component=recharge msg=\"withdrawal payout settled\" validation_id=%s reviewer_id=%s amount=%d",
			validationID, adminID, resolved.Amount)
		s.publishValidationEvent(ctx, rabbitmq.RouteWithdrawalSettled, resolved)
		return resolved, nil
	}

	result, err := s.repo.ApproveRechargeAtomic(ctx, validationID, adminID)
	if err != nil {
		return nil, err
	}

	log.Printf("level=info component=recharge msg=\"recharge approved\" validation_id=%s reviewer_id=%s amount=%d new_balance=%d",
		validationID, adminID, result.Validation.Amount, result.NewBalance)
	s.publishValidationEvent(ctx, rabbitmq.RouteRechargeApproved, result.Validation)

	return result.Validation, nil
}

// RejectRecharge resolves a pending validation against the claimant. A
// non-empty reason is mandatory; the balance is untouched.
func (s *Service) RejectRecharge(ctx context.Context, adminID uuid.UUID, validationID uuid.UUID, reason string) error {
	if strings.TrimSpace(reason) == "" {
		return ErrReasonRequired
	}
	if err := s.repo.RejectValidation(ctx, validationID, adminID, strings.TrimSpace(reason)); err != nil {
		return err
	}

	log.Printf("level=info component=recharge msg=\"validation rejected\" validation_id=%s reviewer_id=%s", validationID, adminID)
	if validation, err := s.repo.FindPaymentValidationByID(ctx, validationID); err == nil {
		s.publishValidationEvent(ctx, rabbitmq.RouteRechargeRejected, validation)
	}
	return nil
}

// GetValidation looks up one payment validation by id.
func (s *Service) GetValidation(ctx context.Context, validationID uuid.UUID) (*domain.PaymentValidation, error) {
	return s.repo.FindPaymentValidationByID(ctx, validationID)
}

// ListAccountValidations returns the caller's own recharge and withdrawal
// validations, newest first.
func (s *Service) ListAccountValidations(ctx context.Context, accountID uuid.UUID, opts domain.LedgerListOptions) ([]domain.PaymentValidation, error) {
	return s.repo.ListPaymentValidationsByAccount(ctx, accountID, opts)
}

// ListReviewQueue returns pending validations for the admin dashboard.
func (s *Service) ListReviewQueue(ctx context.Context, opts domain.LedgerListOptions) ([]domain.PaymentValidation, error) {
	return s.repo.ListPaymentValidationsByStatus(ctx, domain.ValidationPending, opts)
}

func (s *Service) publishValidationEvent(ctx context.Context, routingKey string, v *domain.PaymentValidation) {
	if s.eventProducer == nil {
		return
	}
	event := rabbitmq.ValidationEvent{
		ValidationID: v.ID,
		AccountID:    v.AccountID,
		Kind:         string(v.Kind),
		Amount:       v.Amount,
		Reference:    v.Reference,
		Timestamp:    s.now().UTC(),
	}
	if err := s.eventProducer.Publish(ctx, rabbitmq.WalletExchange, routingKey, event); err != nil {
		log.Printf("level=warn component=recharge msg=\"failed to publish validation event\" routing_key=%s err=%v", routingKey, err)
	}
}
