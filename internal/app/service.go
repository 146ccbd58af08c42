/**
 * @description
 * This file contains the core business logic for the wallet-service. The
 * `Service` struct orchestrates all money movement operations, coordinating
 * between the database repository, the boarding-token signer, the Redis tap
 * limiter, and the message broker.
 *
 * Key features:
 * - Implements the main use cases: fare settlement over three boarding
 *   channels, recharge reconciliation, withdrawals, and the card lifecycle.
 * - Ensures transactional integrity by delegating every balance movement to
 *   an atomic unit of work in the store layer.
 * - Publishes events to RabbitMQ for asynchronous processing by other services.
 *
 * @dependencies
 * - context, errors, fmt, log, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID generation.
 * - internal/domain, internal/store: For domain models and data access.
 * - pkg/qrtoken, pkg/rabbitmq: For boarding tokens and event publishing.
 */

package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/suba/wallet-service/internal/store"
	"github.com/suba/wallet-service/pkg/qrtoken"
	"github.com/suba/wallet-service/pkg/rabbitmq"
)

var (
	// ErrQRExpiredOrInvalid is returned when a scanned boarding token fails
	// verification for any reason. Nothing is persisted.
	ErrQRExpiredOrInvalid = errors.New("boarding token is expired or invalid")

	// ErrCardNotFoundOrBlocked is returned on an NFC tap whose card is unknown
	// or not in active status. The response deliberately does not distinguish.
	ErrCardNotFoundOrBlocked = errors.New("card not found or not active")

	// ErrRoleWithoutWallet is returned when a principal whose role carries no
	// balance (admin) calls a wallet operation.
	ErrRoleWithoutWallet = errors.New("account role has no wallet")

	ErrAmountNotPositive   = errors.New("amount must be a positive number of cents")
	ErrReferenceRequired   = errors.New("payment reference is required")
	ErrReasonRequired      = errors.New("a rejection reason is required")
	ErrCardRequestInFlight = errors.New("a card request is already in progress")
)

// RateLimitedError is returned when a boarding tap exceeds the per-payer
// fixed-window limit. RetryAfterSeconds comes from the window's remaining TTL.
type RateLimitedError struct {
	RetryAfterSeconds int
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("too many boarding attempts, retry after %ds", e.RetryAfterSeconds)
}

// Service provides the core business logic for the wallet.
type Service struct {
	repo            store.Repository
	eventProducer   rabbitmq.Publisher
	qrSigner        *qrtoken.Signer
	tapLimiter      *RedisTapRateLimiter
	tapLimit        int
	tapWindow       time.Duration
	cardEmissionFee int64
	now             func() time.Time
}

// NewService creates a new wallet service instance.
func NewService(
	repo store.Repository,
	producer rabbitmq.Publisher,
	qrSigner *qrtoken.Signer,
	tapLimiter *RedisTapRateLimiter,
	tapLimit int,
	tapWindow time.Duration,
	cardEmissionFee int64,
) *Service {
	return &Service{
		repo:            repo,
		eventProducer:   producer,
		qrSigner:        qrSigner,
		tapLimiter:      tapLimiter,
		tapLimit:        tapLimit,
		tapWindow:       tapWindow,
		cardEmissionFee: cardEmissionFee,
		now:             time.Now,
	}
}
