/**
 * @description
 * This file defines the core domain models for the wallet-service. These structs
 * represent the main entities and data transfer objects (DTOs) used throughout
 * the service's business logic, database interactions, and API layers.
 *
 * @notes
 * - Amounts are stored as `int64` in the smallest currency unit (cents), which
 *   avoids floating-point inaccuracies with financial data.
 * - Transaction rows are append-only: they are created inside the same atomic
 *   unit of work that moves the balance and are never updated afterwards.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// AccountRole identifies which balance collection an account lives in.
type AccountRole string

const (
	RolePassenger AccountRole = "passenger"
	RoleDriver    AccountRole = "driver"
	RoleAdmin     AccountRole = "admin"
)

// TransactionType enumerates every balance-affecting event the ledger records.
type TransactionType string

const (
	TxRecharge      TransactionType = "recharge"
	TxPayFareNFC    TransactionType = "pay_fare_nfc"
	TxPayFareQR     TransactionType = "pay_fare_qr"
	TxPayFareMobile TransactionType = "pay_fare_mobile"
	TxWithdrawal    TransactionType = "withdrawal"
	TxRefund        TransactionType = "refund"
	TxFareCollected TransactionType = "fare_collected"
)

// FareType records which discount tier was applied to a fare payment.
type FareType string

const (
	FareGeneral FareType = "general"
	FareStudent FareType = "student"
	FareSenior  FareType = "senior"
	// FareSubsidized covers approved discount profiles (disability, municipal
	// subsidy) whose percentage is configured per passenger.
	FareSubsidized FareType = "subsidized"
)

// KYCProfile holds the identity fields required by the profile completeness
// gate. Every money-movement operation checks these before touching the ledger.
type KYCProfile struct {
	NationalID string     `json:"national_id"`
	BirthDate  *time.Time `json:"birth_date,omitempty"`
	Phone      string     `json:"phone"`
}

// PassengerAccount is a passenger's spendable balance record.
type PassengerAccount struct {
	ID        uuid.UUID  `json:"id"`
	FullName  string     `json:"full_name"`
	Email     string     `json:"email"`
	Balance   int64      `json:"balance"` // in cents
	KYC       KYCProfile `json:"kyc"`
	IsStudent bool       `json:"is_student"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// DriverAccount is a driver's collected-fares balance record.
type DriverAccount struct {
	ID        uuid.UUID  `json:"id"`
	FullName  string     `json:"full_name"`
	Email     string     `json:"email"`
	Balance   int64      `json:"balance"` // in cents
	KYC       KYCProfile `json:"kyc"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Transaction is the append-only ledger record for any money movement.
// PreviousBalance and NewBalance are snapshots observed inside the atomic
// unit of work that changed the balance, never from a pre-transaction read.
type Transaction struct {
	ID              uuid.UUID       `json:"id"`
	AccountID       uuid.UUID       `json:"account_id"`
	AccountRole     AccountRole     `json:"account_role"`
	Type            TransactionType `json:"type"`
	Amount          int64           `json:"amount"` // always positive
	PreviousBalance int64           `json:"previous_balance"`
	NewBalance      int64           `json:"new_balance"`

	// Trip correlation, set on fare payments.
	RouteID  *uuid.UUID `json:"route_id,omitempty"`
	DriverID *uuid.UUID `json:"driver_id,omitempty"`
	TripID   *uuid.UUID `json:"trip_id,omitempty"`

	// Discount metadata, set on the payer-side fare transaction.
	FareType        *FareType `json:"fare_type,omitempty"`
	OriginalFare    *int64    `json:"original_fare,omitempty"`
	DiscountApplied *int64    `json:"discount_applied,omitempty"`

	CardUID             *string    `json:"card_uid,omitempty"`
	PaymentValidationID *uuid.UUID `json:"payment_validation_id,omitempty"`
	Description         *string    `json:"description,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
}

// PaymentKind distinguishes recharge claims from withdrawal payout requests.
type PaymentKind string

const (
	PaymentRecharge   PaymentKind = "recharge"
	PaymentWithdrawal PaymentKind = "withdrawal"
)

// ValidationStatus is the review state of an externally-reported payment.
type ValidationStatus string

const (
	ValidationPending  ValidationStatus = "pending"
	ValidationApproved ValidationStatus = "approved"
	ValidationRejected ValidationStatus = "rejected"
)

// validationTransitions is the closed transition table for PaymentValidation.
// Terminal states have no outgoing edges; anything outside this table is an
// illegal transition.
var validationTransitions = map[ValidationStatus][]ValidationStatus{
	ValidationPending: {ValidationApproved, ValidationRejected},
}

// CanTransitionTo reports whether a validation may move from its current
// status to the target status.
func (s ValidationStatus) CanTransitionTo(target ValidationStatus) bool {
	for _, allowed := range validationTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// PaymentValidation is a passenger-reported external payment (recharge) or a
// pending payout owed off-platform (withdrawal), awaiting admin reconciliation.
type PaymentValidation struct {
	ID          uuid.UUID        `json:"id"`
	AccountID   uuid.UUID        `json:"account_id"`
	AccountRole AccountRole      `json:"account_role"`
	Kind        PaymentKind      `json:"kind"`
	Reference   string           `json:"reference"` // globally unique
	Amount      int64            `json:"amount"`    // in cents
	Bank        *string          `json:"bank,omitempty"`
	PaidAt      *time.Time       `json:"paid_at,omitempty"`
	ReceiptURL  *string          `json:"receipt_url,omitempty"`
	Status      ValidationStatus `json:"status"`

	ReviewedBy      *uuid.UUID `json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time `json:"reviewed_at,omitempty"`
	RejectionReason *string    `json:"rejection_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RouteFare is the configured base fare for one route.
type RouteFare struct {
	RouteID   uuid.UUID `json:"route_id"`
	BaseFare  int64     `json:"base_fare"` // in cents
	UpdatedAt time.Time `json:"updated_at"`
}

// DiscountProfile is an approved, non-default fare reduction tied to a
// passenger (subsidy, disability). Only profiles in status approved apply.
type DiscountProfile struct {
	ID              uuid.UUID        `json:"id"`
	PassengerID     uuid.UUID        `json:"passenger_id"`
	DiscountType    string           `json:"discount_type"`
	DiscountPercent int              `json:"discount_percent"` // 1-100
	Status          ValidationStatus `json:"status"`
	CreatedAt       time.Time        `json:"created_at"`
}

// FareQuote is the fare calculator's output for one boarding.
type FareQuote struct {
	FinalFare       int64    `json:"final_fare"`
	OriginalFare    int64    `json:"original_fare"`
	DiscountApplied int64    `json:"discount_applied"`
	FareType        FareType `json:"fare_type"`
}

// BoardingResult is returned to the boarding device after a settlement.
type BoardingResult struct {
	Approved      bool      `json:"approved"`
	Fare          int64     `json:"fare"`
	Discount      int64     `json:"discount"`
	NewBalance    int64     `json:"new_balance"`
	FareType      FareType  `json:"fare_type"`
	TransactionID uuid.UUID `json:"transaction_id"`
}

// NFCBoardingRequest is the driver-side DTO for an NFC tap.
type NFCBoardingRequest struct {
	CardUID string     `json:"card_uid"`
	RouteID uuid.UUID  `json:"route_id"`
	TripID  *uuid.UUID `json:"trip_id,omitempty"`
}

// QRBoardingRequest is the passenger-side DTO for scanning a driver QR.
type QRBoardingRequest struct {
	QRToken string `json:"qr_token"`
}

// MobileBoardingRequest is the passenger-side DTO for a direct mobile payment.
type MobileBoardingRequest struct {
	RouteID  uuid.UUID  `json:"route_id"`
	DriverID uuid.UUID  `json:"driver_id"`
	TripID   *uuid.UUID `json:"trip_id,omitempty"`
}

// RechargeRequest is the DTO for submitting an external payment claim.
type RechargeRequest struct {
	Reference  string     `json:"reference"`
	Amount     int64      `json:"amount"`
	Bank       *string    `json:"bank,omitempty"`
	PaidAt     *time.Time `json:"paid_at,omitempty"`
	ReceiptURL *string    `json:"receipt_url,omitempty"`
}

// WithdrawalRequest is the DTO for requesting an off-platform payout.
type WithdrawalRequest struct {
	Amount        int64   `json:"amount"`
	Bank          *string `json:"bank,omitempty"`
	AccountNumber *string `json:"account_number,omitempty"`
}

// LedgerListOptions controls pagination for transaction history queries.
type LedgerListOptions struct {
	Limit  int
	Offset int
}
