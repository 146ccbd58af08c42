/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface.
 * It contains all the necessary SQL queries to interact with the database tables
 * related to accounts, the transaction ledger, payment validations, route fares,
 * and NFC cards.
 *
 * @dependencies
 * - context, time, errors: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/suba/wallet-service/internal/domain"
)

var (
	ErrPassengerNotFound       = errors.New("passenger not found")
	ErrDriverNotFound          = errors.New("driver not found")
	ErrFareNotFound            = errors.New("route fare not found")
	ErrInsufficientBalance     = errors.New("insufficient balance")
	ErrCardNotFound            = errors.New("nfc card not found")
	ErrCardAlreadyRegistered   = errors.New("nfc card already registered")
	ErrActiveCardExists        = errors.New("passenger already has an active card")
	ErrValidationNotFound      = errors.New("payment validation not found")
	ErrInvalidValidationState  = errors.New("payment validation is not pending")
	ErrDuplicateReference      = errors.New("payment reference already used")
	ErrCardRequestNotFound     = errors.New("card request not found")
	ErrInvalidCardRequestState = errors.New("card request is not in the required state")
	ErrTransactionNotFound     = errors.New("transaction not found")
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func isUniqueViolation(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return pgErr, true
	}
	return nil, false
}

// FindPassengerByID retrieves a passenger account with its KYC fields.
func (r *PostgresRepository) FindPassengerByID(ctx context.Context, passengerID uuid.UUID) (*domain.PassengerAccount, error) {
	var p domain.PassengerAccount
	query := `
		SELECT id, full_name, email, balance, national_id, birth_date, phone, is_student, created_at, updated_at
		FROM passengers
		WHERE id = $1
	`
	err := r.db.QueryRow(ctx, query, passengerID).Scan(
		&p.ID, &p.FullName, &p.Email, &p.Balance,
		&p.KYC.NationalID, &p.KYC.BirthDate, &p.KYC.Phone,
		&p.IsStudent, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrPassengerNotFound
		}
		return nil, err
	}
	return &p, nil
}

// FindDriverByID retrieves a driver account with its KYC fields.
func (r *PostgresRepository) FindDriverByID(ctx context.Context, driverID uuid.UUID) (*domain.DriverAccount, error) {
	var d domain.DriverAccount
	query := `
		SELECT id, full_name, email, balance, national_id, birth_date, phone, created_at, updated_at
		FROM drivers
		WHERE id = $1
	`
	err := r.db.QueryRow(ctx, query, driverID).Scan(
		&d.ID, &d.FullName, &d.Email, &d.Balance,
		&d.KYC.NationalID, &d.KYC.BirthDate, &d.KYC.Phone,
		&d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrDriverNotFound
		}
		return nil, err
	}
	return &d, nil
}

// FindRouteFare retrieves the configured base fare for a route.
func (r *PostgresRepository) FindRouteFare(ctx context.Context, routeID uuid.UUID) (*domain.RouteFare, error) {
	var fare domain.RouteFare
	query := `SELECT route_id, base_fare, updated_at FROM route_fares WHERE route_id = $1`
	err := r.db.QueryRow(ctx, query, routeID).Scan(&fare.RouteID, &fare.BaseFare, &fare.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrFareNotFound
		}
		return nil, err
	}
	return &fare, nil
}

// FindApprovedDiscountProfile retrieves a passenger's approved discount
// profile, if any. Returns (nil, nil) when no approved profile exists so the
// fare calculator can fall through to the age/student tiers.
func (r *PostgresRepository) FindApprovedDiscountProfile(ctx context.Context, passengerID uuid.UUID) (*domain.DiscountProfile, error) {
	var profile domain.DiscountProfile
	query := `
		SELECT id, passenger_id, discount_type, discount_percent, status, created_at
		FROM discount_profiles
		WHERE passenger_id = $1 AND status = 'approved'
		ORDER BY created_at DESC
		LIMIT 1
	`
	err := r.db.QueryRow(ctx, query, passengerID).Scan(
		&profile.ID, &profile.PassengerID, &profile.DiscountType,
		&profile.DiscountPercent, &profile.Status, &profile.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

// CreatePaymentValidation inserts a new pending validation. The unique index
// on reference guards against duplicate submission of the same bank receipt.
func (r *PostgresRepository) CreatePaymentValidation(ctx context.Context, v *domain.PaymentValidation) error {
	query := `
		INSERT INTO payment_validations (
			id, account_id, account_role, kind, reference, amount, bank, paid_at, receipt_url, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.Exec(ctx, query,
		v.ID, v.AccountID, v.AccountRole, v.Kind, v.Reference,
		v.Amount, v.Bank, v.PaidAt, v.ReceiptURL, v.Status,
	)
	if err != nil {
		if _, ok := isUniqueViolation(err); ok {
			return ErrDuplicateReference
		}
		return err
	}
	return nil
}

const paymentValidationColumns = `
	id, account_id, account_role, kind, reference, amount, bank, paid_at, receipt_url,
	status, reviewed_by, reviewed_at, rejection_reason, created_at, updated_at
`

func scanPaymentValidation(row pgx.Row) (*domain.PaymentValidation, error) {
	var v domain.PaymentValidation
	err := row.Scan(
		&v.ID, &v.AccountID, &v.AccountRole, &v.Kind, &v.Reference, &v.Amount,
		&v.Bank, &v.PaidAt, &v.ReceiptURL, &v.Status,
		&v.ReviewedBy, &v.ReviewedAt, &v.RejectionReason, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// FindPaymentValidationByID retrieves a single payment validation.
func (r *PostgresRepository) FindPaymentValidationByID(ctx context.Context, validationID uuid.UUID) (*domain.PaymentValidation, error) {
	query := `SELECT ` + paymentValidationColumns + ` FROM payment_validations WHERE id = $1`
	v, err := scanPaymentValidation(r.db.QueryRow(ctx, query, validationID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrValidationNotFound
		}
		return nil, err
	}
	return v, nil
}

// ListPaymentValidationsByAccount lists an account's own validations, newest first.
func (r *PostgresRepository) ListPaymentValidationsByAccount(ctx context.Context, accountID uuid.UUID, opts domain.LedgerListOptions) ([]domain.PaymentValidation, error) {
	limit, offset := normalizePage(opts)
	query := `
		SELECT ` + paymentValidationColumns + `
		FROM payment_validations
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, accountID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectValidations(rows)
}

// ListPaymentValidationsByStatus lists validations for the admin review queue.
func (r *PostgresRepository) ListPaymentValidationsByStatus(ctx context.Context, status domain.ValidationStatus, opts domain.LedgerListOptions) ([]domain.PaymentValidation, error) {
	limit, offset := normalizePage(opts)
	query := `
		SELECT ` + paymentValidationColumns + `
		FROM payment_validations
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, status, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectValidations(rows)
}

// ListStalePendingValidations lists pending validations created before the
// cutoff, oldest first, for the review sweeper.
func (r *PostgresRepository) ListStalePendingValidations(ctx context.Context, olderThan time.Time, limit int) ([]domain.PaymentValidation, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT ` + paymentValidationColumns + `
		FROM payment_validations
		WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at ASC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, olderThan, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectValidations(rows)
}

func collectValidations(rows pgx.Rows) ([]domain.PaymentValidation, error) {
	var validations []domain.PaymentValidation
	for rows.Next() {
		v, err := scanPaymentValidation(rows)
		if err != nil {
			return nil, err
		}
		validations = append(validations, *v)
	}
	return validations, rows.Err()
}

const transactionColumns = `
	id, account_id, account_role, type, amount, previous_balance, new_balance,
	route_id, driver_id, trip_id, fare_type, original_fare, discount_applied,
	card_uid, payment_validation_id, description, created_at
`

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var tx domain.Transaction
	err := row.Scan(
		&tx.ID, &tx.AccountID, &tx.AccountRole, &tx.Type, &tx.Amount,
		&tx.PreviousBalance, &tx.NewBalance,
		&tx.RouteID, &tx.DriverID, &tx.TripID,
		&tx.FareType, &tx.OriginalFare, &tx.DiscountApplied,
		&tx.CardUID, &tx.PaymentValidationID, &tx.Description, &tx.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// FindTransactionsByAccount retrieves an account's ledger history, newest first.
func (r *PostgresRepository) FindTransactionsByAccount(ctx context.Context, accountID uuid.UUID, opts domain.LedgerListOptions) ([]domain.Transaction, error) {
	limit, offset := normalizePage(opts)
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, accountID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *tx)
	}
	return transactions, rows.Err()
}

// FindTransactionByID retrieves a single ledger entry.
func (r *PostgresRepository) FindTransactionByID(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	tx, err := scanTransaction(r.db.QueryRow(ctx, query, transactionID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return tx, nil
}

const nfcCardColumns = `
	id, card_uid, passenger_id, status, issued_at, last_used_at, blocked_reason,
	request_id, created_at, updated_at
`

func scanNfcCard(row pgx.Row) (*domain.NfcCard, error) {
	var card domain.NfcCard
	err := row.Scan(
		&card.ID, &card.CardUID, &card.PassengerID, &card.Status,
		&card.IssuedAt, &card.LastUsedAt, &card.BlockedReason,
		&card.RequestID, &card.CreatedAt, &card.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &card, nil
}

// FindCardByUID retrieves a card by its physical UID.
func (r *PostgresRepository) FindCardByUID(ctx context.Context, cardUID string) (*domain.NfcCard, error) {
	query := `SELECT ` + nfcCardColumns + ` FROM nfc_cards WHERE card_uid = $1`
	card, err := scanNfcCard(r.db.QueryRow(ctx, query, cardUID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrCardNotFound
		}
		return nil, err
	}
	return card, nil
}

// FindActiveCardByPassenger retrieves a passenger's single active card.
func (r *PostgresRepository) FindActiveCardByPassenger(ctx context.Context, passengerID uuid.UUID) (*domain.NfcCard, error) {
	query := `SELECT ` + nfcCardColumns + ` FROM nfc_cards WHERE passenger_id = $1 AND status = 'active'`
	card, err := scanNfcCard(r.db.QueryRow(ctx, query, passengerID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrCardNotFound
		}
		return nil, err
	}
	return card, nil
}

const cardRequestColumns = `
	id, passenger_id, status, emission_amount, payment_validation_id,
	reviewed_by, reviewed_at, rejection_reason, linked_card_uid, linked_at,
	created_at, updated_at
`

func scanCardRequest(row pgx.Row) (*domain.NfcCardRequest, error) {
	var req domain.NfcCardRequest
	err := row.Scan(
		&req.ID, &req.PassengerID, &req.Status, &req.EmissionAmount,
		&req.PaymentValidationID, &req.ReviewedBy, &req.ReviewedAt,
		&req.RejectionReason, &req.LinkedCardUID, &req.LinkedAt,
		&req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// CreateCardRequest inserts a new provisioning request in pending_payment.
func (r *PostgresRepository) CreateCardRequest(ctx context.Context, req *domain.NfcCardRequest) error {
	query := `
		INSERT INTO nfc_card_requests (id, passenger_id, status, emission_amount)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.db.Exec(ctx, query, req.ID, req.PassengerID, req.Status, req.EmissionAmount)
	return err
}

// FindCardRequestByID retrieves a provisioning request.
func (r *PostgresRepository) FindCardRequestByID(ctx context.Context, requestID uuid.UUID) (*domain.NfcCardRequest, error) {
	query := `SELECT ` + cardRequestColumns + ` FROM nfc_card_requests WHERE id = $1`
	req, err := scanCardRequest(r.db.QueryRow(ctx, query, requestID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrCardRequestNotFound
		}
		return nil, err
	}
	return req, nil
}

// FindInFlightCardRequest retrieves the passenger's outstanding provisioning
// request, if one exists in a non-terminal state.
func (r *PostgresRepository) FindInFlightCardRequest(ctx context.Context, passengerID uuid.UUID) (*domain.NfcCardRequest, error) {
	query := `
		SELECT ` + cardRequestColumns + `
		FROM nfc_card_requests
		WHERE passenger_id = $1 AND status IN ('pending_payment', 'pending_review', 'approved')
		ORDER BY created_at DESC
		LIMIT 1
	`
	req, err := scanCardRequest(r.db.QueryRow(ctx, query, passengerID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrCardRequestNotFound
		}
		return nil, err
	}
	return req, nil
}

func normalizePage(opts domain.LedgerListOptions) (limit, offset int) {
	limit = opts.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset = opts.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
