package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mediavault/tubefetch/internal/config"
	"github.com/mediavault/tubefetch/internal/models"
)

// BonusService grants the date-keyed daily credit. A claim for a date the
// user already holds is a no-op; the date only moves forward.
type BonusService struct {
	cfg    config.Config
	log    *slog.Logger
	users  UserStore
	ledger Ledger
}

func NewBonusService(cfg config.Config, log *slog.Logger, users UserStore, ledger Ledger) *BonusService {
	return &BonusService{cfg: cfg, log: log, users: users, ledger: ledger}
}

type BonusResult struct {
	Credited   bool
	NewBalance int
}

// Claim credits the daily bonus for the given ISO date when it has not been
// claimed yet. Registration is a precondition unless the user is trusted.
func (s *BonusService) Claim(ctx context.Context, user *models.User, today string) (BonusResult, error) {
	if !user.Registered && !s.cfg.IsAdmin(user.TelegramID) {
		return BonusResult{}, ErrNotRegistered
	}

	previous := user.LastBonusDate
	claimed, err := s.users.ClaimBonusDate(ctx, user.ID, today)
	if err != nil {
		return BonusResult{}, fmt.Errorf("claim bonus date: %w", err)
	}
	if !claimed {
		balance, err := s.ledger.Balance(ctx, user.ID)
		if err != nil {
			return BonusResult{}, err
		}
		return BonusResult{Credited: false, NewBalance: balance}, nil
	}

	newBalance, err := s.ledger.Credit(ctx, user.ID, s.cfg.DailyBonusTokens, nil, "daily bonus "+today)
	if err != nil {
		// Release the date slot so the user can retry instead of losing
		// the day's bonus to a transient credit failure.
		if revertErr := s.users.RevertBonusDate(ctx, user.ID, today, previous); revertErr != nil {
			s.log.Error("revert bonus date after credit failure", "user", user.ID, "err", revertErr)
		}
		return BonusResult{}, fmt.Errorf("credit daily bonus: %w", err)
	}
	user.LastBonusDate = today
	user.Balance = newBalance
	s.log.Info("daily bonus claimed", "user", user.ID, "date", today, "balance", newBalance)
	return BonusResult{Credited: true, NewBalance: newBalance}, nil
}
