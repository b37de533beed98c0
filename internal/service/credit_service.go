package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/digkill/petdance/internal/models"
	"github.com/digkill/petdance/internal/repository"
)

type ledgerStore interface {
	Balance(ctx context.Context, userID string) (int, error)
	Insert(ctx context.Context, entry *models.CreditEntry) error
	Spend(ctx context.Context, userID string, cost int, reference string) (bool, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]models.CreditEntry, error)
}

// CreditService is the credit ledger. The balance is always the sum of the
// user's entries; nothing stores it separately.
type CreditService struct {
	store ledgerStore
	cost  int
}

func NewCreditService(store ledgerStore, cost int) *CreditService {
	if cost <= 0 {
		cost = 1
	}
	return &CreditService{store: store, cost: cost}
}

// Cost is the number of credits one generation spends.
func (s *CreditService) Cost() int {
	return s.cost
}

func (s *CreditService) Balance(ctx context.Context, userID string) (int, error) {
	balance, err := s.store.Balance(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return balance, nil
}

func (s *CreditService) Add(ctx context.Context, userID string, amount int, source models.CreditSource, reference string) (*models.CreditEntry, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if amount == 0 {
		return nil, fmt.Errorf("%w: amount must be non-zero", ErrInvalidInput)
	}
	if !source.Valid() {
		return nil, fmt.Errorf("%w: unknown credit source %q", ErrInvalidInput, source)
	}

	entry := &models.CreditEntry{
		UserID:    userID,
		Amount:    amount,
		Source:    source,
		Reference: reference,
	}
	if err := s.store.Insert(ctx, entry); err != nil {
		return nil, fmt.Errorf("add credits: %w", err)
	}
	return entry, nil
}

// Spend debits one generation. It either appends a single "used" entry or
// returns ErrCreditsRequired and leaves the ledger unchanged.
func (s *CreditService) Spend(ctx context.Context, userID, reference string) error {
	ok, err := s.store.Spend(ctx, userID, s.cost, reference)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrCreditsRequired
		}
		return fmt.Errorf("spend credits: %w", err)
	}
	if !ok {
		return ErrCreditsRequired
	}
	return nil
}

func (s *CreditService) History(ctx context.Context, userID string, limit int) ([]models.CreditEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	entries, err := s.store.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("credit history: %w", err)
	}
	return entries, nil
}
