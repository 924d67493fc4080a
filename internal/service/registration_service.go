package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mediavault/tubefetch/internal/config"
	"github.com/mediavault/tubefetch/internal/models"
)

type RegistrationResult int

const (
	AlreadyRegistered RegistrationResult = iota
	JustRegistered
	NotYetMember
)

// RegistrationService gates feature access on channel membership and issues
// the one-time welcome credit.
type RegistrationService struct {
	cfg        config.Config
	log        *slog.Logger
	users      UserStore
	ledger     Ledger
	membership MembershipChecker
	now        func() time.Time
}

func NewRegistrationService(cfg config.Config, log *slog.Logger, users UserStore, ledger Ledger, membership MembershipChecker) *RegistrationService {
	return &RegistrationService{
		cfg:        cfg,
		log:        log,
		users:      users,
		ledger:     ledger,
		membership: membership,
		now:        time.Now,
	}
}

// EnsureRegistered checks the membership precondition for the user. An
// unreachable membership check never grants access: the caller sees
// NotYetMember and the user retries.
func (s *RegistrationService) EnsureRegistered(ctx context.Context, user *models.User) (RegistrationResult, error) {
	if s.cfg.IsAdmin(user.TelegramID) || user.Registered {
		return AlreadyRegistered, nil
	}

	member, err := s.membership.IsMember(ctx, user.TelegramID)
	if err != nil {
		s.log.Error("membership check failed", "user", user.TelegramID, "err", err)
		return NotYetMember, nil
	}
	if !member {
		return NotYetMember, nil
	}

	if err := s.users.SetRegistered(ctx, user.ID, true); err != nil {
		return NotYetMember, fmt.Errorf("mark registered: %w", err)
	}
	user.Registered = true

	if s.cfg.WelcomeBonusTokens > 0 {
		// The welcome credit doubles as that day's bonus claim.
		today := s.now().UTC().Format("2006-01-02")
		claimed, err := s.users.ClaimBonusDate(ctx, user.ID, today)
		if err != nil {
			s.log.Error("welcome bonus date claim failed", "user", user.ID, "err", err)
		} else if !claimed {
			s.log.Info("bonus slot already taken, welcome credit still granted", "user", user.ID, "date", today)
		} else {
			user.LastBonusDate = today
		}
		newBalance, err := s.ledger.Credit(ctx, user.ID, s.cfg.WelcomeBonusTokens, nil, "welcome bonus")
		if err != nil {
			s.log.Error("welcome credit failed", "user", user.ID, "err", err)
		} else {
			user.Balance = newBalance
		}
	}

	s.log.Info("user registered", "user", user.TelegramID)
	return JustRegistered, nil
}
