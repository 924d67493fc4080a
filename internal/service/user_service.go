package service

import (
	"context"
	"fmt"

	"github.com/mediavault/tubefetch/internal/models"
	"github.com/mediavault/tubefetch/internal/repository"
)

type UserService struct {
	users *repository.UserRepository
}

func NewUserService(users *repository.UserRepository) *UserService {
	return &UserService{users: users}
}

// Ensure creates the user on first contact and keeps the profile fresh.
func (s *UserService) Ensure(ctx context.Context, telegramID int64, username, firstName, lastName string) (*models.User, bool, error) {
	user, created, err := s.users.Ensure(ctx, telegramID, username, firstName, lastName)
	if err != nil {
		return nil, false, fmt.Errorf("ensure user: %w", err)
	}
	return user, created, nil
}

func (s *UserService) FindByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	return s.users.FindByTelegramID(ctx, telegramID)
}

func (s *UserService) SetBanned(ctx context.Context, telegramID int64, banned bool) error {
	user, err := s.users.FindByTelegramID(ctx, telegramID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrNotFound
	}
	return s.users.SetBanned(ctx, user.ID, banned)
}

func (s *UserService) ListRecent(ctx context.Context, limit int) ([]models.User, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.users.ListRecent(ctx, limit)
}

func (s *UserService) ListTelegramIDs(ctx context.Context) ([]int64, error) {
	ids, err := s.users.ListTelegramIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list telegram ids: %w", err)
	}
	return ids, nil
}

func (s *UserService) Stats(ctx context.Context) (repository.Stats, error) {
	return s.users.Stats(ctx)
}
