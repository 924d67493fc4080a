package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mediavault/tubefetch/internal/models"
)

// LedgerService owns balance arithmetic and the append-only transaction log.
// It performs no deduplication: idempotency is the caller's responsibility.
type LedgerService struct {
	log   *slog.Logger
	store LedgerStore
}

func NewLedgerService(log *slog.Logger, store LedgerStore) *LedgerService {
	return &LedgerService{log: log, store: store}
}

func (s *LedgerService) Balance(ctx context.Context, userID int64) (int, error) {
	return s.store.Balance(ctx, userID)
}

func (s *LedgerService) Credit(ctx context.Context, userID int64, amount int, actorID *int64, reason string) (int, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	newBalance, err := s.store.Credit(ctx, userID, amount, actorID, reason)
	if err != nil {
		return 0, fmt.Errorf("credit user %d: %w", userID, err)
	}
	s.log.Info("tokens credited", "user", userID, "amount", amount, "balance", newBalance, "reason", reason)
	return newBalance, nil
}

func (s *LedgerService) Debit(ctx context.Context, userID int64, amount int, reason string) (int, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	newBalance, err := s.store.Debit(ctx, userID, amount, reason)
	if err != nil {
		return 0, err
	}
	s.log.Info("tokens debited", "user", userID, "amount", amount, "balance", newBalance, "reason", reason)
	return newBalance, nil
}

func (s *LedgerService) History(ctx context.Context, userID int64, limit int) ([]models.TokenTransaction, error) {
	if limit <= 0 {
		limit = 10
	}
	txs, err := s.store.History(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("transaction history for user %d: %w", userID, err)
	}
	return txs, nil
}
