package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/suba/wallet-service/internal/domain"
	"github.com/suba/wallet-service/internal/store"
)

// fakeRepository is an in-memory store.Repository for service tests. It
// mirrors the atomicity contract of the real store: an operation either
// applies all of its effects or none.
type fakeRepository struct {
	mu sync.Mutex

	passengers  map[uuid.UUID]*domain.PassengerAccount
	drivers     map[uuid.UUID]*domain.DriverAccount
	fares       map[uuid.UUID]*domain.RouteFare
	profiles    map[uuid.UUID]*domain.DiscountProfile
	validations map[uuid.UUID]*domain.PaymentValidation
	txs         []domain.Transaction
	cards       map[string]*domain.NfcCard
	requests    map[uuid.UUID]*domain.NfcCardRequest
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		passengers:  make(map[uuid.UUID]*domain.PassengerAccount),
		drivers:     make(map[uuid.UUID]*domain.DriverAccount),
		fares:       make(map[uuid.UUID]*domain.RouteFare),
		profiles:    make(map[uuid.UUID]*domain.DiscountProfile),
		validations: make(map[uuid.UUID]*domain.PaymentValidation),
		cards:       make(map[string]*domain.NfcCard),
		requests:    make(map[uuid.UUID]*domain.NfcCardRequest),
	}
}

func (f *fakeRepository) FindPassengerByID(_ context.Context, id uuid.UUID) (*domain.PassengerAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.passengers[id]
	if !ok {
		return nil, store.ErrPassengerNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeRepository) FindDriverByID(_ context.Context, id uuid.UUID) (*domain.DriverAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.drivers[id]
	if !ok {
		return nil, store.ErrDriverNotFound
	}
	cp := *d
	return &cp, nil
}

func (f *fakeRepository) FindRouteFare(_ context.Context, routeID uuid.UUID) (*domain.RouteFare, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fare, ok := f.fares[routeID]
	if !ok {
		return nil, store.ErrFareNotFound
	}
	cp := *fare
	return &cp, nil
}

func (f *fakeRepository) FindApprovedDiscountProfile(_ context.Context, passengerID uuid.UUID) (*domain.DiscountProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[passengerID]
	if !ok || p.Status != domain.ValidationApproved {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (f *fakeRepository) SettleFare(_ context.Context, params store.SettleFareParams) (*store.SettleFareResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	passenger, ok := f.passengers[params.PassengerID]
	if !ok {
		return nil, store.ErrPassengerNotFound
	}
	driver, ok := f.drivers[params.DriverID]
	if !ok {
		return nil, store.ErrDriverNotFound
	}
	fare := params.Quote.FinalFare
	if passenger.Balance < fare {
		return nil, store.ErrInsufficientBalance
	}

	passenger.Balance -= fare
	driver.Balance += fare

	result := &store.SettleFareResult{
		PayerTransactionID:  uuid.New(),
		PayerNewBalance:     passenger.Balance,
		DriverTransactionID: uuid.New(),
		DriverNewBalance:    driver.Balance,
	}
	fareType := params.Quote.FareType
	original := params.Quote.OriginalFare
	discount := params.Quote.DiscountApplied
	f.txs = append(f.txs,
		domain.Transaction{
			ID: result.PayerTransactionID, AccountID: params.PassengerID, AccountRole: domain.RolePassenger,
			Type: params.PayerTxType, Amount: fare,
			PreviousBalance: passenger.Balance + fare, NewBalance: passenger.Balance,
			RouteID: &params.RouteID, DriverID: &params.DriverID, TripID: params.TripID,
			FareType: &fareType, OriginalFare: &original, DiscountApplied: &discount,
			CardUID: params.CardUID, CreatedAt: time.Now(),
		},
		domain.Transaction{
			ID: result.DriverTransactionID, AccountID: params.DriverID, AccountRole: domain.RoleDriver,
			Type: domain.TxFareCollected, Amount: fare,
			PreviousBalance: driver.Balance - fare, NewBalance: driver.Balance,
			RouteID: &params.RouteID, DriverID: &params.DriverID, TripID: params.TripID,
			CardUID: params.CardUID, CreatedAt: time.Now(),
		},
	)
	if params.CardUID != nil {
		if card, ok := f.cards[*params.CardUID]; ok {
			now := time.Now()
			card.LastUsedAt = &now
		}
	}
	return result, nil
}

func (f *fakeRepository) CreatePaymentValidation(_ context.Context, v *domain.PaymentValidation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.validations {
		if existing.Reference == v.Reference {
			return store.ErrDuplicateReference
		}
	}
	cp := *v
	cp.CreatedAt = time.Now()
	f.validations[v.ID] = &cp
	return nil
}

func (f *fakeRepository) FindPaymentValidationByID(_ context.Context, id uuid.UUID) (*domain.PaymentValidation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.validations[id]
	if !ok {
		return nil, store.ErrValidationNotFound
	}
	cp := *v
	return &cp, nil
}

func (f *fakeRepository) ListPaymentValidationsByAccount(_ context.Context, accountID uuid.UUID, _ domain.LedgerListOptions) ([]domain.PaymentValidation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.PaymentValidation
	for _, v := range f.validations {
		if v.AccountID == accountID {
			out = append(out, *v)
		}
	}
	return out, nil
}

func (f *fakeRepository) ListPaymentValidationsByStatus(_ context.Context, status domain.ValidationStatus, _ domain.LedgerListOptions) ([]domain.PaymentValidation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.PaymentValidation
	for _, v := range f.validations {
		if v.Status == status {
			out = append(out, *v)
		}
	}
	return out, nil
}

func (f *fakeRepository) ListStalePendingValidations(_ context.Context, olderThan time.Time, limit int) ([]domain.PaymentValidation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.PaymentValidation
	for _, v := range f.validations {
		if v.Status == domain.ValidationPending && v.CreatedAt.Before(olderThan) {
			out = append(out, *v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRepository) ApproveRechargeAtomic(_ context.Context, validationID uuid.UUID, reviewerID uuid.UUID) (*store.ApproveRechargeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.validations[validationID]
	if !ok {
		return nil, store.ErrValidationNotFound
	}
	if v.Kind != domain.PaymentRecharge || !v.Status.CanTransitionTo(domain.ValidationApproved) {
		return nil, store.ErrInvalidValidationState
	}

	var newBalance int64
	switch v.AccountRole {
	case domain.RoleDriver:
		d, ok := f.drivers[v.AccountID]
		if !ok {
			return nil, store.ErrDriverNotFound
		}
		d.Balance += v.Amount
		newBalance = d.Balance
	default:
		p, ok := f.passengers[v.AccountID]
		if !ok {
			return nil, store.ErrPassengerNotFound
		}
		p.Balance += v.Amount
		newBalance = p.Balance
	}

	now := time.Now()
	v.Status = domain.ValidationApproved
	v.ReviewedBy = &reviewerID
	v.ReviewedAt = &now

	txID := uuid.New()
	f.txs = append(f.txs, domain.Transaction{
		ID: txID, AccountID: v.AccountID, AccountRole: v.AccountRole,
		Type: domain.TxRecharge, Amount: v.Amount,
		PreviousBalance: newBalance - v.Amount, NewBalance: newBalance,
		PaymentValidationID: &validationID, CreatedAt: now,
	})
	cp := *v
	return &store.ApproveRechargeResult{Validation: &cp, TransactionID: txID, NewBalance: newBalance}, nil
}

func (f *fakeRepository) ResolveWithdrawalPayout(_ context.Context, validationID uuid.UUID, reviewerID uuid.UUID) (*domain.PaymentValidation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.validations[validationID]
	if !ok {
		return nil, store.ErrValidationNotFound
	}
	if v.Kind != domain.PaymentWithdrawal || !v.Status.CanTransitionTo(domain.ValidationApproved) {
		return nil, store.ErrInvalidValidationState
	}
	now := time.Now()
	v.Status = domain.ValidationApproved
	v.ReviewedBy = &reviewerID
	v.ReviewedAt = &now
	cp := *v
	return &cp, nil
}

func (f *fakeRepository) RejectValidation(_ context.Context, validationID uuid.UUID, reviewerID uuid.UUID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.validations[validationID]
	if !ok {
		return store.ErrValidationNotFound
	}
	if !v.Status.CanTransitionTo(domain.ValidationRejected) {
		return store.ErrInvalidValidationState
	}
	now := time.Now()
	v.Status = domain.ValidationRejected
	v.ReviewedBy = &reviewerID
	v.ReviewedAt = &now
	v.RejectionReason = &reason
	return nil
}

func (f *fakeRepository) WithdrawAtomic(_ context.Context, params store.WithdrawParams) (*store.WithdrawResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var newBalance int64
	switch params.AccountRole {
	case domain.RoleDriver:
		d, ok := f.drivers[params.AccountID]
		if !ok {
			return nil, store.ErrDriverNotFound
		}
		if d.Balance < params.Amount {
			return nil, store.ErrInsufficientBalance
		}
		d.Balance -= params.Amount
		newBalance = d.Balance
	default:
		p, ok := f.passengers[params.AccountID]
		if !ok {
			return nil, store.ErrPassengerNotFound
		}
		if p.Balance < params.Amount {
			return nil, store.ErrInsufficientBalance
		}
		p.Balance -= params.Amount
		newBalance = p.Balance
	}

	result := &store.WithdrawResult{
		TransactionID: uuid.New(),
		ValidationID:  uuid.New(),
		NewBalance:    newBalance,
	}
	desc := params.Description
	f.txs = append(f.txs, domain.Transaction{
		ID: result.TransactionID, AccountID: params.AccountID, AccountRole: params.AccountRole,
		Type: domain.TxWithdrawal, Amount: params.Amount,
		PreviousBalance: newBalance + params.Amount, NewBalance: newBalance,
		Description: &desc, CreatedAt: time.Now(),
	})
	f.validations[result.ValidationID] = &domain.PaymentValidation{
		ID: result.ValidationID, AccountID: params.AccountID, AccountRole: params.AccountRole,
		Kind: domain.PaymentWithdrawal, Reference: params.Reference, Amount: params.Amount,
		Bank: params.Bank, Status: domain.ValidationPending, CreatedAt: time.Now(),
	}
	return result, nil
}

func (f *fakeRepository) FindTransactionsByAccount(_ context.Context, accountID uuid.UUID, _ domain.LedgerListOptions) ([]domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Transaction
	for _, tx := range f.txs {
		if tx.AccountID == accountID {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (f *fakeRepository) FindTransactionByID(_ context.Context, id uuid.UUID) (*domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tx := range f.txs {
		if tx.ID == id {
			cp := tx
			return &cp, nil
		}
	}
	return nil, store.ErrTransactionNotFound
}

func (f *fakeRepository) FindCardByUID(_ context.Context, cardUID string) (*domain.NfcCard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	card, ok := f.cards[cardUID]
	if !ok {
		return nil, store.ErrCardNotFound
	}
	cp := *card
	return &cp, nil
}

func (f *fakeRepository) FindActiveCardByPassenger(_ context.Context, passengerID uuid.UUID) (*domain.NfcCard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, card := range f.cards {
		if card.PassengerID == passengerID && card.Status == domain.CardActive {
			cp := *card
			return &cp, nil
		}
	}
	return nil, store.ErrCardNotFound
}

func (f *fakeRepository) BlockCard(_ context.Context, cardUID string, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	card, ok := f.cards[cardUID]
	if !ok {
		return store.ErrCardNotFound
	}
	if !card.Status.CanTransitionTo(domain.CardBlocked) {
		return store.ErrInvalidCardRequestState
	}
	card.Status = domain.CardBlocked
	card.BlockedReason = &reason
	return nil
}

func (f *fakeRepository) CreateCardRequest(_ context.Context, req *domain.NfcCardRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *req
	cp.CreatedAt = time.Now()
	f.requests[req.ID] = &cp
	return nil
}

func (f *fakeRepository) FindCardRequestByID(_ context.Context, id uuid.UUID) (*domain.NfcCardRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.requests[id]
	if !ok {
		return nil, store.ErrCardRequestNotFound
	}
	cp := *req
	return &cp, nil
}

func (f *fakeRepository) FindInFlightCardRequest(_ context.Context, passengerID uuid.UUID) (*domain.NfcCardRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, req := range f.requests {
		if req.PassengerID == passengerID && req.Status.InFlight() {
			cp := *req
			return &cp, nil
		}
	}
	return nil, store.ErrCardRequestNotFound
}

func (f *fakeRepository) TransitionCardRequest(_ context.Context, requestID uuid.UUID, from, to domain.CardRequestStatus, update store.CardRequestUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.requests[requestID]
	if !ok {
		return store.ErrCardRequestNotFound
	}
	if req.Status != from || !from.CanTransitionTo(to) {
		return store.ErrInvalidCardRequestState
	}
	req.Status = to
	if update.ReviewedBy != nil {
		now := time.Now()
		req.ReviewedBy = update.ReviewedBy
		req.ReviewedAt = &now
	}
	if update.RejectionReason != nil {
		req.RejectionReason = update.RejectionReason
	}
	if update.PaymentValidationID != nil {
		req.PaymentValidationID = update.PaymentValidationID
	}
	return nil
}

func (f *fakeRepository) LinkCardAtomic(_ context.Context, requestID uuid.UUID, passengerID uuid.UUID, cardUID string) (*domain.NfcCard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.requests[requestID]
	if !ok || req.PassengerID != passengerID {
		return nil, store.ErrCardRequestNotFound
	}
	if !req.Status.CanTransitionTo(domain.CardRequestLinked) {
		return nil, store.ErrInvalidCardRequestState
	}
	if _, exists := f.cards[cardUID]; exists {
		return nil, store.ErrCardAlreadyRegistered
	}
	for _, card := range f.cards {
		if card.PassengerID == passengerID && card.Status == domain.CardActive {
			return nil, store.ErrActiveCardExists
		}
	}

	now := time.Now()
	card := &domain.NfcCard{
		ID: uuid.New(), CardUID: cardUID, PassengerID: passengerID,
		Status: domain.CardActive, IssuedAt: now, RequestID: requestID,
		CreatedAt: now, UpdatedAt: now,
	}
	f.cards[cardUID] = card
	req.Status = domain.CardRequestLinked
	req.LinkedCardUID = &cardUID
	req.LinkedAt = &now
	cp := *card
	return &cp, nil
}

// fakePublisher records published events for assertions.
type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

type publishedEvent struct {
	exchange   string
	routingKey string
	body       interface{}
}

func (p *fakePublisher) Publish(_ context.Context, exchange, routingKey string, body interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{exchange: exchange, routingKey: routingKey, body: body})
	return nil
}

func (p *fakePublisher) Close() {}

func (p *fakePublisher) routingKeys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	keys := make([]string, 0, len(p.events))
	for _, e := range p.events {
		keys = append(keys, e.routingKey)
	}
	return keys
}
