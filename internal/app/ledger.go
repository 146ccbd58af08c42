package app

import (
	"context"

	"github.com/google/uuid"
	"github.com/suba/wallet-service/internal/domain"
)

// AccountBalance is the balance read for an authenticated account.
type AccountBalance struct {
	AccountID uuid.UUID          `json:"account_id"`
	Role      domain.AccountRole `json:"role"`
	Balance   int64              `json:"balance"`
}

// GetBalance returns the current balance of the authenticated account.
func (s *Service) GetBalance(ctx context.Context, accountID uuid.UUID, role domain.AccountRole) (*AccountBalance, error) {
	switch role {
	case domain.RolePassenger:
		passenger, err := s.repo.FindPassengerByID(ctx, accountID)
		if err != nil {
			return nil, err
		}
		return &AccountBalance{AccountID: accountID, Role: role, Balance: passenger.Balance}, nil
	case domain.RoleDriver:
		driver, err := s.repo.FindDriverByID(ctx, accountID)
		if err != nil {
			return nil, err
		}
		return &AccountBalance{AccountID: accountID, Role: role, Balance: driver.Balance}, nil
	}
	return nil, ErrRoleWithoutWallet
}

// ListTransactions returns the account's ledger history, newest first.
func (s *Service) ListTransactions(ctx context.Context, accountID uuid.UUID, opts domain.LedgerListOptions) ([]domain.Transaction, error) {
	return s.repo.FindTransactionsByAccount(ctx, accountID, opts)
}
