package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediavault/tubefetch/internal/models"
)

func newTopupTestService(t *testing.T) (*TopupService, *fakeTopupStore, *fakeLedgerStore, *fakeOperatorNotifier) {
	t.Helper()
	store := newFakeTopupStore()
	ledgerStore := newFakeLedgerStore()
	users := newFakeUserStore(&models.User{ID: 1, TelegramID: 100, Registered: true})
	notifier := &fakeNotifier{}
	operators := &fakeOperatorNotifier{}
	svc := NewTopupService(testConfig(), testLogger(), store, users,
		NewLedgerService(testLogger(), ledgerStore), notifier, operators)
	return svc, store, ledgerStore, operators
}

func TestTopupApproveCreditsTokens(t *testing.T) {
	svc, _, ledgerStore, operators := newTopupTestService(t)
	ctx := context.Background()

	req, err := svc.CreateRequest(ctx, 1, models.TokenPackage{ID: "5", Tokens: 5, PriceMinorUnits: 20000})
	require.NoError(t, err)
	assert.Equal(t, models.TopupPending, req.Status)

	_, err = svc.RecordProof(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, operators.calls)

	approved, err := svc.Approve(ctx, req.ID, 999)
	require.NoError(t, err)
	assert.Equal(t, models.TopupApproved, approved.Status)

	balance, err := ledgerStore.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 5, balance)
}

func TestTopupRejectLeavesLedgerUntouched(t *testing.T) {
	svc, _, ledgerStore, _ := newTopupTestService(t)
	ctx := context.Background()

	req, err := svc.CreateRequest(ctx, 1, models.TokenPackage{ID: "1", Tokens: 1, PriceMinorUnits: 5000})
	require.NoError(t, err)

	rejected, err := svc.Reject(ctx, req.ID, 999, "blurry screenshot")
	require.NoError(t, err)
	assert.Equal(t, models.TopupRejected, rejected.Status)
	assert.Equal(t, "blurry screenshot", rejected.Notes)

	balance, err := ledgerStore.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, balance)
}

func TestTopupDecisionIsExactlyOnce(t *testing.T) {
	svc, _, ledgerStore, _ := newTopupTestService(t)
	ctx := context.Background()

	req, err := svc.CreateRequest(ctx, 1, models.TokenPackage{ID: "10", Tokens: 10, PriceMinorUnits: 35000})
	require.NoError(t, err)

	// Two operators race on the same request; exactly one decision wins.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errs[0] = svc.Approve(ctx, req.ID, 999)
	}()
	go func() {
		defer wg.Done()
		_, errs[1] = svc.Approve(ctx, req.ID, 999)
	}()
	wg.Wait()

	winners, losers := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			winners++
		case assert.ErrorIs(t, err, ErrAlreadyProcessed):
			losers++
		}
	}
	assert.Equal(t, 1, winners)
	assert.Equal(t, 1, losers)

	balance, err := ledgerStore.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 10, balance, "the winning approval credits exactly once")
}

func TestTopupApproveThenRejectFails(t *testing.T) {
	svc, _, _, _ := newTopupTestService(t)
	ctx := context.Background()

	req, err := svc.CreateRequest(ctx, 1, models.TokenPackage{ID: "1", Tokens: 1, PriceMinorUnits: 5000})
	require.NoError(t, err)

	_, err = svc.Approve(ctx, req.ID, 999)
	require.NoError(t, err)

	_, err = svc.Reject(ctx, req.ID, 999, "")
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
}

func TestTopupDecisionRequiresOperator(t *testing.T) {
	svc, _, _, _ := newTopupTestService(t)
	ctx := context.Background()

	req, err := svc.CreateRequest(ctx, 1, models.TokenPackage{ID: "1", Tokens: 1, PriceMinorUnits: 5000})
	require.NoError(t, err)

	_, err = svc.Approve(ctx, req.ID, 12345)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestTopupDecisionUnknownRequest(t *testing.T) {
	svc, _, _, _ := newTopupTestService(t)

	_, err := svc.Approve(context.Background(), 404, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}
