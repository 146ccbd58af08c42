package domain

import (
	"time"

	"github.com/google/uuid"
)

// CardStatus is the lifecycle state of a physical NFC card. Only an active
// card can settle a fare; a blocked card must fail the tap without debiting.
type CardStatus string

const (
	CardActive   CardStatus = "active"
	CardBlocked  CardStatus = "blocked"
	CardLost     CardStatus = "lost"
	CardUnlinked CardStatus = "unlinked"
)

var cardTransitions = map[CardStatus][]CardStatus{
	CardActive: {CardBlocked, CardLost, CardUnlinked},
}

// CanTransitionTo reports whether a card may move to the target status.
// Re-issuing a blocked card is an admin concern handled outside this service.
func (s CardStatus) CanTransitionTo(target CardStatus) bool {
	for _, allowed := range cardTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// NfcCard links a physical card UID to its owning passenger. At most one
// active card may exist per passenger, enforced by a partial unique index.
type NfcCard struct {
	ID            uuid.UUID  `json:"id"`
	CardUID       string     `json:"card_uid"`
	PassengerID   uuid.UUID  `json:"passenger_id"`
	Status        CardStatus `json:"status"`
	IssuedAt      time.Time  `json:"issued_at"`
	LastUsedAt    *time.Time `json:"last_used_at,omitempty"`
	BlockedReason *string    `json:"blocked_reason,omitempty"`
	RequestID     uuid.UUID  `json:"request_id"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// CardRequestStatus is the provisioning state for issuing a new card.
type CardRequestStatus string

const (
	CardRequestPendingPayment CardRequestStatus = "pending_payment"
	CardRequestPendingReview  CardRequestStatus = "pending_review"
	CardRequestApproved       CardRequestStatus = "approved"
	CardRequestLinked         CardRequestStatus = "linked"
	CardRequestRejected       CardRequestStatus = "rejected"
)

var cardRequestTransitions = map[CardRequestStatus][]CardRequestStatus{
	CardRequestPendingPayment: {CardRequestPendingReview},
	CardRequestPendingReview:  {CardRequestApproved, CardRequestRejected},
	CardRequestApproved:       {CardRequestLinked},
}

// CanTransitionTo reports whether a card request may move to the target
// status. Linked and rejected are terminal.
func (s CardRequestStatus) CanTransitionTo(target CardRequestStatus) bool {
	for _, allowed := range cardRequestTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// InFlight reports whether the request still occupies the passenger's single
// provisioning slot (a passenger may not open a second request while one of
// these is outstanding).
func (s CardRequestStatus) InFlight() bool {
	switch s {
	case CardRequestPendingPayment, CardRequestPendingReview, CardRequestApproved:
		return true
	}
	return false
}

// NfcCardRequest tracks the provisioning chain for issuing a new card:
// pending_payment -> pending_review -> approved -> linked, with rejected as
// a terminal branch from pending_review.
type NfcCardRequest struct {
	ID                  uuid.UUID         `json:"id"`
	PassengerID         uuid.UUID         `json:"passenger_id"`
	Status              CardRequestStatus `json:"status"`
	EmissionAmount      int64             `json:"emission_amount"` // in cents
	PaymentValidationID *uuid.UUID        `json:"payment_validation_id,omitempty"`
	ReviewedBy          *uuid.UUID        `json:"reviewed_by,omitempty"`
	ReviewedAt          *time.Time        `json:"reviewed_at,omitempty"`
	RejectionReason     *string           `json:"rejection_reason,omitempty"`
	LinkedCardUID       *string           `json:"linked_card_uid,omitempty"`
	LinkedAt            *time.Time        `json:"linked_at,omitempty"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}
