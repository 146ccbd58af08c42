package app

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/suba/wallet-service/internal/domain"
	"github.com/suba/wallet-service/internal/store"
	"github.com/suba/wallet-service/pkg/rabbitmq"
)

// WithdrawalReceipt is returned to the caller after a withdrawal debit.
type WithdrawalReceipt struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	ValidationID  uuid.UUID `json:"validation_id"`
	Reference     string    `json:"reference"`
	NewBalance    int64     `json:"new_balance"`
}

// RequestWithdrawal debits the balance immediately and records a pending
// payout owed off-platform. Both passenger and driver accounts may withdraw.
// The later admin approval of the payout validation never re-debits.
func (s *Service) RequestWithdrawal(ctx context.Context, accountID uuid.UUID, role domain.AccountRole, req domain.WithdrawalRequest) (*WithdrawalReceipt, error) {
	if req.Amount <= 0 {
		return nil, ErrAmountNotPositive
	}

	kyc, err := s.accountKYC(ctx, accountID, role)
	if err != nil {
		return nil, err
	}
	if err := CheckProfileComplete(kyc); err != nil {
		return nil, err
	}

	reference := "WD-" + uuid.NewString()
	description := withdrawalDescription(req)

	result, err := s.repo.WithdrawAtomic(ctx, store.WithdrawParams{
		AccountID:   accountID,
		AccountRole: role,
		Amount:      req.Amount,
		Reference:   reference,
		Bank:        req.Bank,
		Description: description,
	})
	if err != nil {
		return nil, err
	}

	log.Printf("level=info component=withdrawal msg=\"withdrawal requested\" account_id=%s role=%s amount=%d new_balance=%d reference=%s",
		accountID, role, req.Amount, result.NewBalance, reference)

	if s.eventProducer != nil {
		event := rabbitmq.ValidationEvent{
			ValidationID: result.ValidationID,
			AccountID:    accountID,
			Kind:         string(domain.PaymentWithdrawal),
			Amount:       req.Amount,
			Reference:    reference,
			Timestamp:    s.now().UTC(),
		}
		if pubErr := s.eventProducer.Publish(ctx, rabbitmq.WalletExchange, rabbitmq.RouteWithdrawalRequested, event); pubErr != nil {
			log.Printf("level=warn component=withdrawal msg=\"failed to publish withdrawal.requested event\" err=%v", pubErr)
		}
	}

	return &WithdrawalReceipt{
		TransactionID: result.TransactionID,
		ValidationID:  result.ValidationID,
		Reference:     reference,
		NewBalance:    result.NewBalance,
	}, nil
}

func (s *Service) accountKYC(ctx context.Context, accountID uuid.UUID, role domain.AccountRole) (domain.KYCProfile, error) {
	switch role {
	case domain.RolePassenger:
		passenger, err := s.repo.FindPassengerByID(ctx, accountID)
		if err != nil {
			return domain.KYCProfile{}, fmt.Errorf("failed to find passenger: %w", err)
		}
		return passenger.KYC, nil
	case domain.RoleDriver:
		driver, err := s.repo.FindDriverByID(ctx, accountID)
		if err != nil {
			return domain.KYCProfile{}, fmt.Errorf("failed to find driver: %w", err)
		}
		return driver.KYC, nil
	}
	return domain.KYCProfile{}, ErrRoleWithoutWallet
}

func withdrawalDescription(req domain.WithdrawalRequest) string {
	parts := []string{"withdrawal"}
	if req.Bank != nil && strings.TrimSpace(*req.Bank) != "" {
		parts = append(parts, "to "+strings.TrimSpace(*req.Bank))
	}
	if req.AccountNumber != nil && strings.TrimSpace(*req.AccountNumber) != "" {
		parts = append(parts, "account "+maskAccountNumber(strings.TrimSpace(*req.AccountNumber)))
	}
	return strings.Join(parts, " ")
}

// maskAccountNumber keeps only the last four digits of a payout destination.
func maskAccountNumber(number string) string {
	if len(number) <= 4 {
		return number
	}
	return "****" + number[len(number)-4:]
}
