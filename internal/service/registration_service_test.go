package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mediavault/tubefetch/internal/models"
)

type mockMembership struct {
	mock.Mock
}

func (m *mockMembership) IsMember(ctx context.Context, telegramID int64) (bool, error) {
	args := m.Called(ctx, telegramID)
	return args.Bool(0), args.Error(1)
}

func newRegistrationTestService(member bool, memberErr error, user *models.User) (*RegistrationService, *fakeLedgerStore) {
	checker := &mockMembership{}
	checker.On("IsMember", mock.Anything, user.TelegramID).Return(member, memberErr)

	ledgerStore := newFakeLedgerStore()
	svc := NewRegistrationService(testConfig(), testLogger(), newFakeUserStore(user),
		NewLedgerService(testLogger(), ledgerStore), checker)
	svc.now = func() time.Time { return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC) }
	return svc, ledgerStore
}

func TestRegistrationGrantsWelcomeBonusOnce(t *testing.T) {
	user := &models.User{ID: 1, TelegramID: 100}
	svc, ledgerStore := newRegistrationTestService(true, nil, user)
	ctx := context.Background()

	result, err := svc.EnsureRegistered(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, JustRegistered, result)
	assert.True(t, user.Registered)
	assert.Equal(t, 10, user.Balance)

	// The welcome credit consumed today's bonus slot.
	assert.Equal(t, "2026-08-30", user.LastBonusDate)

	again, err := svc.EnsureRegistered(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, AlreadyRegistered, again)
	assert.Equal(t, 1, ledgerStore.credits(user.ID))
}

func TestRegistrationWelcomeCreditSurvivesTakenBonusSlot(t *testing.T) {
	user := &models.User{ID: 1, TelegramID: 100, LastBonusDate: "2026-08-30"}
	svc, ledgerStore := newRegistrationTestService(true, nil, user)

	result, err := svc.EnsureRegistered(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, JustRegistered, result)
	assert.True(t, user.Registered)
	assert.Equal(t, 1, ledgerStore.credits(user.ID), "welcome credit does not depend on the bonus slot")
	assert.Equal(t, "2026-08-30", user.LastBonusDate)
}

func TestRegistrationNonMemberStaysGated(t *testing.T) {
	user := &models.User{ID: 1, TelegramID: 100}
	svc, ledgerStore := newRegistrationTestService(false, nil, user)

	result, err := svc.EnsureRegistered(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, NotYetMember, result)
	assert.False(t, user.Registered)
	assert.Equal(t, 0, ledgerStore.credits(user.ID))
}

func TestRegistrationMembershipErrorFailsClosed(t *testing.T) {
	user := &models.User{ID: 1, TelegramID: 100}
	svc, ledgerStore := newRegistrationTestService(true, errors.New("api unreachable"), user)

	result, err := svc.EnsureRegistered(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, NotYetMember, result, "an unreachable check never grants access")
	assert.False(t, user.Registered)
	assert.Equal(t, 0, ledgerStore.credits(user.ID))
}

func TestRegistrationTrustedUserBypassesGate(t *testing.T) {
	operator := &models.User{ID: 2, TelegramID: 999}
	svc, _ := newRegistrationTestService(false, nil, operator)

	result, err := svc.EnsureRegistered(context.Background(), operator)
	require.NoError(t, err)
	assert.Equal(t, AlreadyRegistered, result)
}
