/**
 * @description
 * Atomic units of work for the wallet ledger. Every function in this file
 * wraps its writes in a single pgx transaction: balance updates, ledger rows,
 * and state transitions all commit together or not at all. Balance snapshots
 * recorded on ledger rows are always derived from `UPDATE ... RETURNING`
 * values observed inside the transaction, never from a pre-transaction read.
 */

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/suba/wallet-service/internal/domain"
)

func accountTable(role domain.AccountRole) (string, error) {
	switch role {
	case domain.RolePassenger:
		return "passengers", nil
	case domain.RoleDriver:
		return "drivers", nil
	}
	return "", fmt.Errorf("account role %q has no balance table", role)
}

// SettleFare executes one fare payment as a single unit of work: conditional
// debit of the passenger, credit of the driver, and the two ledger rows. The
// conditional debit is the serialization point for concurrent payments
// against the same passenger; a zero-row match means the balance moved under
// us and the whole settlement fails with ErrInsufficientBalance.
func (r *PostgresRepository) SettleFare(ctx context.Context, params SettleFareParams) (*SettleFareResult, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	fare := params.Quote.FinalFare

	var payerBalance int64
	err = tx.QueryRow(ctx, `
		UPDATE passengers
		SET balance = balance - $1, updated_at = NOW()
		WHERE id = $2 AND balance >= $1
		RETURNING balance
	`, fare, params.PassengerID).Scan(&payerBalance)
	if err != nil {
		if err == pgx.ErrNoRows {
			// Distinguish a missing payer from a lost balance race.
			var exists bool
			if checkErr := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM passengers WHERE id = $1)`, params.PassengerID).Scan(&exists); checkErr != nil {
				return nil, checkErr
			}
			if !exists {
				return nil, ErrPassengerNotFound
			}
			return nil, ErrInsufficientBalance
		}
		return nil, err
	}

	var driverBalance int64
	err = tx.QueryRow(ctx, `
		UPDATE drivers
		SET balance = balance + $1, updated_at = NOW()
		WHERE id = $2
		RETURNING balance
	`, fare, params.DriverID).Scan(&driverBalance)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrDriverNotFound
		}
		return nil, err
	}

	result := &SettleFareResult{
		PayerTransactionID:  uuid.New(),
		PayerNewBalance:     payerBalance,
		DriverTransactionID: uuid.New(),
		DriverNewBalance:    driverBalance,
	}

	insertQuery := `
		INSERT INTO transactions (
			id, account_id, account_role, type, amount, previous_balance, new_balance,
			route_id, driver_id, trip_id, fare_type, original_fare, discount_applied, card_uid
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	if _, err := tx.Exec(ctx, insertQuery,
		result.PayerTransactionID, params.PassengerID, domain.RolePassenger,
		params.PayerTxType, fare, payerBalance+fare, payerBalance,
		params.RouteID, params.DriverID, params.TripID,
		params.Quote.FareType, params.Quote.OriginalFare, params.Quote.DiscountApplied,
		params.CardUID,
	); err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, insertQuery,
		result.DriverTransactionID, params.DriverID, domain.RoleDriver,
		domain.TxFareCollected, fare, driverBalance-fare, driverBalance,
		params.RouteID, params.DriverID, params.TripID,
		nil, nil, nil,
		params.CardUID,
	); err != nil {
		return nil, err
	}

	if params.CardUID != nil {
		if _, err := tx.Exec(ctx, `UPDATE nfc_cards SET last_used_at = NOW(), updated_at = NOW() WHERE card_uid = $1`, *params.CardUID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return result, nil
}

// ApproveRechargeAtomic resolves a pending recharge validation: status flip,
// balance credit, and the recharge ledger row commit together. The validation
// row is locked FOR UPDATE so a second reviewer observes the terminal state
// and fails ErrInvalidValidationState instead of double-crediting.
func (r *PostgresRepository) ApproveRechargeAtomic(ctx context.Context, validationID uuid.UUID, reviewerID uuid.UUID) (*ApproveRechargeResult, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	lockQuery := `SELECT ` + paymentValidationColumns + ` FROM payment_validations WHERE id = $1 FOR UPDATE`
	validation, err := scanPaymentValidation(tx.QueryRow(ctx, lockQuery, validationID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrValidationNotFound
		}
		return nil, err
	}

	if validation.Kind != domain.PaymentRecharge || !validation.Status.CanTransitionTo(domain.ValidationApproved) {
		return nil, ErrInvalidValidationState
	}

	now := time.Now().UTC()
	if _, err := tx.Exec(ctx, `
		UPDATE payment_validations
		SET status = $1, reviewed_by = $2, reviewed_at = $3, updated_at = NOW()
		WHERE id = $4
	`, domain.ValidationApproved, reviewerID, now, validationID); err != nil {
		return nil, err
	}

	table, err := accountTable(validation.AccountRole)
	if err != nil {
		return nil, err
	}

	var newBalance int64
	creditQuery := fmt.Sprintf(`
		UPDATE %s
		SET balance = balance + $1, updated_at = NOW()
		WHERE id = $2
		RETURNING balance
	`, table)
	if err := tx.QueryRow(ctx, creditQuery, validation.Amount, validation.AccountID).Scan(&newBalance); err != nil {
		if err == pgx.ErrNoRows {
			if validation.AccountRole == domain.RoleDriver {
				return nil, ErrDriverNotFound
			}
			return nil, ErrPassengerNotFound
		}
		return nil, err
	}

	transactionID := uuid.New()
	if _, err := tx.Exec(ctx, `
		INSERT INTO transactions (
			id, account_id, account_role, type, amount, previous_balance, new_balance, payment_validation_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, transactionID, validation.AccountID, validation.AccountRole, domain.TxRecharge,
		validation.Amount, newBalance-validation.Amount, newBalance, validationID,
	); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	validation.Status = domain.ValidationApproved
	validation.ReviewedBy = &reviewerID
	validation.ReviewedAt = &now
	return &ApproveRechargeResult{
		Validation:    validation,
		TransactionID: transactionID,
		NewBalance:    newBalance,
	}, nil
}

// ResolveWithdrawalPayout marks a pending withdrawal payout as approved once
// the off-platform transfer has been made. The balance was already debited by
// WithdrawAtomic, so this is a status flip only; the conditional WHERE keeps
// it one-shot under concurrent reviewers.
func (r *PostgresRepository) ResolveWithdrawalPayout(ctx context.Context, validationID uuid.UUID, reviewerID uuid.UUID) (*domain.PaymentValidation, error) {
	result, err := r.db.Exec(ctx, `
		UPDATE payment_validations
		SET status = $1, reviewed_by = $2, reviewed_at = NOW(), updated_at = NOW()
		WHERE id = $3 AND status = $4 AND kind = $5
	`, domain.ValidationApproved, reviewerID, validationID, domain.ValidationPending, domain.PaymentWithdrawal)
	if err != nil {
		return nil, err
	}
	if result.RowsAffected() == 0 {
		if _, findErr := r.FindPaymentValidationByID(ctx, validationID); findErr != nil {
			return nil, findErr
		}
		return nil, ErrInvalidValidationState
	}
	return r.FindPaymentValidationByID(ctx, validationID)
}

// RejectValidation marks a pending validation rejected with a reason. The
// conditional WHERE on status makes the state machine one-shot: a second
// resolution attempt matches zero rows.
func (r *PostgresRepository) RejectValidation(ctx context.Context, validationID uuid.UUID, reviewerID uuid.UUID, reason string) error {
	result, err := r.db.Exec(ctx, `
		UPDATE payment_validations
		SET status = $1, reviewed_by = $2, reviewed_at = NOW(), rejection_reason = $3, updated_at = NOW()
		WHERE id = $4 AND status = $5
	`, domain.ValidationRejected, reviewerID, reason, validationID, domain.ValidationPending)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		if _, findErr := r.FindPaymentValidationByID(ctx, validationID); findErr != nil {
			return findErr
		}
		return ErrInvalidValidationState
	}
	return nil
}

// WithdrawAtomic debits the balance immediately, conditioned on sufficient
// funds, and records the withdrawal ledger row plus the pending payout
// request in the same unit. A zero-row debit means a concurrent withdrawal
// won the race; nothing is persisted.
func (r *PostgresRepository) WithdrawAtomic(ctx context.Context, params WithdrawParams) (*WithdrawResult, error) {
	table, err := accountTable(params.AccountRole)
	if err != nil {
		return nil, err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var newBalance int64
	debitQuery := fmt.Sprintf(`
		UPDATE %s
		SET balance = balance - $1, updated_at = NOW()
		WHERE id = $2 AND balance >= $1
		RETURNING balance
	`, table)
	if err := tx.QueryRow(ctx, debitQuery, params.Amount, params.AccountID).Scan(&newBalance); err != nil {
		if err == pgx.ErrNoRows {
			var exists bool
			existsQuery := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)`, table)
			if checkErr := tx.QueryRow(ctx, existsQuery, params.AccountID).Scan(&exists); checkErr != nil {
				return nil, checkErr
			}
			if !exists {
				if params.AccountRole == domain.RoleDriver {
					return nil, ErrDriverNotFound
				}
				return nil, ErrPassengerNotFound
			}
			return nil, ErrInsufficientBalance
		}
		return nil, err
	}

	result := &WithdrawResult{
		TransactionID: uuid.New(),
		ValidationID:  uuid.New(),
		NewBalance:    newBalance,
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO transactions (
			id, account_id, account_role, type, amount, previous_balance, new_balance, description
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, result.TransactionID, params.AccountID, params.AccountRole, domain.TxWithdrawal,
		params.Amount, newBalance+params.Amount, newBalance, params.Description,
	); err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO payment_validations (
			id, account_id, account_role, kind, reference, amount, bank, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, result.ValidationID, params.AccountID, params.AccountRole, domain.PaymentWithdrawal,
		params.Reference, params.Amount, params.Bank, domain.ValidationPending,
	); err != nil {
		if _, ok := isUniqueViolation(err); ok {
			return nil, ErrDuplicateReference
		}
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return result, nil
}

// TransitionCardRequest moves a provisioning request between states with a
// conditional update; the transition table in domain decides legality before
// the write, the WHERE on the current status enforces it under concurrency.
func (r *PostgresRepository) TransitionCardRequest(ctx context.Context, requestID uuid.UUID, from, to domain.CardRequestStatus, update CardRequestUpdate) error {
	if !from.CanTransitionTo(to) {
		return ErrInvalidCardRequestState
	}

	result, err := r.db.Exec(ctx, `
		UPDATE nfc_card_requests
		SET status = $1,
		    reviewed_by = COALESCE($2, reviewed_by),
		    reviewed_at = CASE WHEN $2::uuid IS NULL THEN reviewed_at ELSE NOW() END,
		    rejection_reason = COALESCE($3, rejection_reason),
		    payment_validation_id = COALESCE($4, payment_validation_id),
		    updated_at = NOW()
		WHERE id = $5 AND status = $6
	`, to, update.ReviewedBy, update.RejectionReason, update.PaymentValidationID, requestID, from)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		if _, findErr := r.FindCardRequestByID(ctx, requestID); findErr != nil {
			return findErr
		}
		return ErrInvalidCardRequestState
	}
	return nil
}

// LinkCardAtomic consumes an approved provisioning request and issues the
// physical card in one unit. The partial unique index over
// (passenger_id) WHERE status = 'active' guards the one-active-card
// invariant; the unique card_uid index refuses re-registration.
func (r *PostgresRepository) LinkCardAtomic(ctx context.Context, requestID uuid.UUID, passengerID uuid.UUID, cardUID string) (*domain.NfcCard, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	lockQuery := `SELECT ` + cardRequestColumns + ` FROM nfc_card_requests WHERE id = $1 AND passenger_id = $2 FOR UPDATE`
	req, err := scanCardRequest(tx.QueryRow(ctx, lockQuery, requestID, passengerID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrCardRequestNotFound
		}
		return nil, err
	}
	if !req.Status.CanTransitionTo(domain.CardRequestLinked) {
		return nil, ErrInvalidCardRequestState
	}

	card := &domain.NfcCard{
		ID:          uuid.New(),
		CardUID:     cardUID,
		PassengerID: passengerID,
		Status:      domain.CardActive,
		RequestID:   requestID,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO nfc_cards (id, card_uid, passenger_id, status, issued_at, request_id)
		VALUES ($1, $2, $3, $4, NOW(), $5)
		RETURNING issued_at, created_at, updated_at
	`, card.ID, card.CardUID, card.PassengerID, card.Status, card.RequestID).Scan(
		&card.IssuedAt, &card.CreatedAt, &card.UpdatedAt,
	)
	if err != nil {
		if pgErr, ok := isUniqueViolation(err); ok {
			if pgErr.ConstraintName == "nfc_cards_one_active_per_passenger" {
				return nil, ErrActiveCardExists
			}
			return nil, ErrCardAlreadyRegistered
		}
		return nil, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE nfc_card_requests
		SET status = $1, linked_card_uid = $2, linked_at = NOW(), updated_at = NOW()
		WHERE id = $3
	`, domain.CardRequestLinked, cardUID, requestID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return card, nil
}

// BlockCard takes an active card out of circulation. One-way per episode;
// re-issuing goes through a fresh provisioning request.
func (r *PostgresRepository) BlockCard(ctx context.Context, cardUID string, reason string) error {
	result, err := r.db.Exec(ctx, `
		UPDATE nfc_cards
		SET status = $1, blocked_reason = $2, updated_at = NOW()
		WHERE card_uid = $3 AND status = $4
	`, domain.CardBlocked, reason, cardUID, domain.CardActive)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		if _, findErr := r.FindCardByUID(ctx, cardUID); findErr != nil {
			return findErr
		}
		return ErrInvalidCardRequestState
	}
	return nil
}
