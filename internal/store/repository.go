/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract for all
 * data access operations required by the wallet-service. By defining an interface,
 * we decouple the application's business logic from the specific database implementation
 * (e.g., PostgreSQL), making the code more modular and easier to test.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID generation and handling.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/suba/wallet-service/internal/domain"
)

// SettleFareParams carries the resolved channel-independent identities and
// the computed fare quote for one fare settlement.
type SettleFareParams struct {
	PassengerID uuid.UUID
	DriverID    uuid.UUID
	RouteID     uuid.UUID
	TripID      *uuid.UUID
	CardUID     *string
	PayerTxType domain.TransactionType
	Quote       domain.FareQuote
}

// SettleFareResult reports the committed balance movement of one settlement.
type SettleFareResult struct {
	PayerTransactionID  uuid.UUID
	PayerNewBalance     int64
	DriverTransactionID uuid.UUID
	DriverNewBalance    int64
}

// ApproveRechargeResult reports the committed credit of an approved recharge.
type ApproveRechargeResult struct {
	Validation    *domain.PaymentValidation
	TransactionID uuid.UUID
	NewBalance    int64
}

// WithdrawParams carries one withdrawal request into the atomic unit.
type WithdrawParams struct {
	AccountID   uuid.UUID
	AccountRole domain.AccountRole
	Amount      int64
	Reference   string
	Bank        *string
	Description string
}

// WithdrawResult reports the committed debit of one withdrawal.
type WithdrawResult struct {
	TransactionID uuid.UUID
	ValidationID  uuid.UUID
	NewBalance    int64
}

// CardRequestUpdate carries the optional review fields written alongside a
// card-request status transition.
type CardRequestUpdate struct {
	ReviewedBy          *uuid.UUID
	RejectionReason     *string
	PaymentValidationID *uuid.UUID
}

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Account methods
	FindPassengerByID(ctx context.Context, passengerID uuid.UUID) (*domain.PassengerAccount, error)
	FindDriverByID(ctx context.Context, driverID uuid.UUID) (*domain.DriverAccount, error)

	// Fare and discount lookups
	FindRouteFare(ctx context.Context, routeID uuid.UUID) (*domain.RouteFare, error)
	FindApprovedDiscountProfile(ctx context.Context, passengerID uuid.UUID) (*domain.DiscountProfile, error)

	// Settlement: the atomic fare transfer between payer and driver plus the
	// two ledger rows, all in one unit of work.
	SettleFare(ctx context.Context, params SettleFareParams) (*SettleFareResult, error)

	// Payment validation lifecycle
	CreatePaymentValidation(ctx context.Context, validation *domain.PaymentValidation) error
	FindPaymentValidationByID(ctx context.Context, validationID uuid.UUID) (*domain.PaymentValidation, error)
	ListPaymentValidationsByAccount(ctx context.Context, accountID uuid.UUID, opts domain.LedgerListOptions) ([]domain.PaymentValidation, error)
	ListPaymentValidationsByStatus(ctx context.Context, status domain.ValidationStatus, opts domain.LedgerListOptions) ([]domain.PaymentValidation, error)
	ListStalePendingValidations(ctx context.Context, olderThan time.Time, limit int) ([]domain.PaymentValidation, error)
	ApproveRechargeAtomic(ctx context.Context, validationID uuid.UUID, reviewerID uuid.UUID) (*ApproveRechargeResult, error)
	ResolveWithdrawalPayout(ctx context.Context, validationID uuid.UUID, reviewerID uuid.UUID) (*domain.PaymentValidation, error)
	RejectValidation(ctx context.Context, validationID uuid.UUID, reviewerID uuid.UUID, reason string) error

	// Withdrawal: conditional debit + ledger row + pending payout request.
	WithdrawAtomic(ctx context.Context, params WithdrawParams) (*WithdrawResult, error)

	// Ledger history
	FindTransactionsByAccount(ctx context.Context, accountID uuid.UUID, opts domain.LedgerListOptions) ([]domain.Transaction, error)
	FindTransactionByID(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error)

	// NFC card lifecycle
	FindCardByUID(ctx context.Context, cardUID string) (*domain.NfcCard, error)
	FindActiveCardByPassenger(ctx context.Context, passengerID uuid.UUID) (*domain.NfcCard, error)
	BlockCard(ctx context.Context, cardUID string, reason string) error
	CreateCardRequest(ctx context.Context, req *domain.NfcCardRequest) error
	FindCardRequestByID(ctx context.Context, requestID uuid.UUID) (*domain.NfcCardRequest, error)
	FindInFlightCardRequest(ctx context.Context, passengerID uuid.UUID) (*domain.NfcCardRequest, error)
	TransitionCardRequest(ctx context.Context, requestID uuid.UUID, from, to domain.CardRequestStatus, update CardRequestUpdate) error
	LinkCardAtomic(ctx context.Context, requestID uuid.UUID, passengerID uuid.UUID, cardUID string) (*domain.NfcCard, error)
}
