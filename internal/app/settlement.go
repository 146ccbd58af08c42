/**
 * @description
 * Fare settlement over the three boarding channels. Each channel resolves the
 * boarding to a common (passenger, driver, route, trip, card) tuple and then
 * runs the shared settlement routine, which delegates the balance movement and
 * the two ledger rows to a single atomic unit of work in the store layer.
 */

package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/suba/wallet-service/internal/domain"
	"github.com/suba/wallet-service/internal/store"
	"github.com/suba/wallet-service/pkg/rabbitmq"
)

// QRTokenGrant is returned to the driver app for rendering the boarding QR.
type QRTokenGrant struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IssueQRToken signs a short-lived boarding token for the authenticated
// driver. The route must have a configured fare so a dead QR is caught at
// issue time rather than on the passenger's scan.
func (s *Service) IssueQRToken(ctx context.Context, driverID uuid.UUID, routeID uuid.UUID, tripID *uuid.UUID) (*QRTokenGrant, error) {
	if _, err := s.repo.FindDriverByID(ctx, driverID); err != nil {
		return nil, fmt.Errorf("failed to find driver: %w", err)
	}
	if _, err := s.repo.FindRouteFare(ctx, routeID); err != nil {
		return nil, fmt.Errorf("failed to find route fare: %w", err)
	}

	token, expiresAt, err := s.qrSigner.Issue(driverID, routeID, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to sign boarding token: %w", err)
	}
	return &QRTokenGrant{Token: token, ExpiresAt: expiresAt}, nil
}

// SettleNFC handles a driver-side NFC tap. The card identifies the payer; the
// tap is refused when the card is unknown or not active.
func (s *Service) SettleNFC(ctx context.Context, driverID uuid.UUID, req domain.NFCBoardingRequest) (*domain.BoardingResult, error) {
	card, err := s.repo.FindCardByUID(ctx, req.CardUID)
	if err != nil {
		if err == store.ErrCardNotFound {
			return nil, ErrCardNotFoundOrBlocked
		}
		return nil, fmt.Errorf("failed to find card: %w", err)
	}
	if card.Status != domain.CardActive {
		log.Printf("level=warn component=settlement msg=\"tap on inactive card\" card_uid=%s status=%s", card.CardUID, card.Status)
		return nil, ErrCardNotFoundOrBlocked
	}

	if err := s.consumeTap(ctx, "boarding_nfc", card.CardUID); err != nil {
		return nil, err
	}

	cardUID := card.CardUID
	return s.settle(ctx, settleInput{
		passengerID: card.PassengerID,
		driverID:    driverID,
		routeID:     req.RouteID,
		tripID:      req.TripID,
		cardUID:     &cardUID,
		txType:      domain.TxPayFareNFC,
	})
}

// SettleQR handles a passenger scanning a driver's boarding QR. Token
// verification failures abort before anything is persisted.
func (s *Service) SettleQR(ctx context.Context, passengerID uuid.UUID, req domain.QRBoardingRequest) (*domain.BoardingResult, error) {
	claims, err := s.qrSigner.Verify(req.QRToken)
	if err != nil {
		return nil, ErrQRExpiredOrInvalid
	}

	if err := s.consumeTap(ctx, "boarding_qr", passengerID.String()); err != nil {
		return nil, err
	}

	return s.settle(ctx, settleInput{
		passengerID: passengerID,
		driverID:    claims.DriverID,
		routeID:     claims.RouteID,
		tripID:      claims.TripID,
		txType:      domain.TxPayFareQR,
	})
}

// SettleMobile handles a direct mobile payment where the passenger supplies
// the route and driver.
func (s *Service) SettleMobile(ctx context.Context, passengerID uuid.UUID, req domain.MobileBoardingRequest) (*domain.BoardingResult, error) {
	if err := s.consumeTap(ctx, "boarding_mobile", passengerID.String()); err != nil {
		return nil, err
	}

	return s.settle(ctx, settleInput{
		passengerID: passengerID,
		driverID:    req.DriverID,
		routeID:     req.RouteID,
		tripID:      req.TripID,
		txType:      domain.TxPayFareMobile,
	})
}

type settleInput struct {
	passengerID uuid.UUID
	driverID    uuid.UUID
	routeID     uuid.UUID
	tripID      *uuid.UUID
	cardUID     *string
	txType      domain.TransactionType
}

// settle is the shared settlement core. It runs the profile gate, computes
// the fare quote, and hands the balance movement to the store's atomic unit.
func (s *Service) settle(ctx context.Context, in settleInput) (*domain.BoardingResult, error) {
	passenger, err := s.repo.FindPassengerByID(ctx, in.passengerID)
	if err != nil {
		return nil, fmt.Errorf("failed to find passenger: %w", err)
	}
	if err := CheckProfileComplete(passenger.KYC); err != nil {
		return nil, err
	}

	if _, err := s.repo.FindDriverByID(ctx, in.driverID); err != nil {
		return nil, fmt.Errorf("failed to find driver: %w", err)
	}

	routeFare, err := s.repo.FindRouteFare(ctx, in.routeID)
	if err != nil {
		return nil, fmt.Errorf("failed to find route fare: %w", err)
	}

	profile, err := s.repo.FindApprovedDiscountProfile(ctx, in.passengerID)
	if err != nil {
		return nil, fmt.Errorf("failed to find discount profile: %w", err)
	}

	quote := ComputeFare(routeFare.BaseFare, passenger, profile, s.now().UTC())

	result, err := s.repo.SettleFare(ctx, store.SettleFareParams{
		PassengerID: in.passengerID,
		DriverID:    in.driverID,
		RouteID:     in.routeID,
		TripID:      in.tripID,
		CardUID:     in.cardUID,
		PayerTxType: in.txType,
		Quote:       quote,
	})
	if err != nil {
		return nil, err
	}

	log.Printf("level=info component=settlement msg=\"fare settled\" passenger_id=%s driver_id=%s route_id=%s fare=%d fare_type=%s channel=%s",
		in.passengerID, in.driverID, in.routeID, quote.FinalFare, quote.FareType, in.txType)

	if s.eventProducer != nil {
		event := rabbitmq.FareSettledEvent{
			PassengerID:   in.passengerID,
			DriverID:      in.driverID,
			RouteID:       in.routeID,
			Fare:          quote.FinalFare,
			FareType:      string(quote.FareType),
			Channel:       string(in.txType),
			TransactionID: result.PayerTransactionID,
			Timestamp:     s.now().UTC(),
		}
		if pubErr := s.eventProducer.Publish(ctx, rabbitmq.WalletExchange, rabbitmq.RouteFareSettled, event); pubErr != nil {
			log.Printf("level=warn component=settlement msg=\"failed to publish fare.settled event\" err=%v", pubErr)
		}
	}

	return &domain.BoardingResult{
		Approved:      true,
		Fare:          quote.FinalFare,
		Discount:      quote.DiscountApplied,
		NewBalance:    result.PayerNewBalance,
		FareType:      quote.FareType,
		TransactionID: result.PayerTransactionID,
	}, nil
}

func (s *Service) consumeTap(ctx context.Context, scope, subject string) error {
	count, retryAfter, err := s.tapLimiter.ConsumeRateLimit(ctx, scope, subject, s.tapLimit, s.tapWindow)
	if err != nil {
		// Redis being down must not block boardings.
		log.Printf("level=warn component=settlement msg=\"rate limiter unavailable, allowing tap\" scope=%s err=%v", scope, err)
		return nil
	}
	if s.tapLimit > 0 && count > s.tapLimit {
		return &RateLimitedError{RetryAfterSeconds: retryAfter}
	}
	return nil
}
