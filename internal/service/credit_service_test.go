package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digkill/petdance/internal/models"
	"github.com/digkill/petdance/internal/repository"
)

func TestCreditService_AddValidates(t *testing.T) {
	ledger := &fakeLedger{}
	svc := NewCreditService(ledger, 1)
	ctx := context.Background()

	_, err := svc.Add(ctx, testUserID, 0, models.CreditSourceFree, "")
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Add(ctx, testUserID, 5, models.CreditSource("gift"), "")
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Add(ctx, "", 5, models.CreditSourceFree, "")
	require.ErrorIs(t, err, ErrInvalidInput)

	assert.Zero(t, ledger.count())
}

func TestCreditService_BalanceIsSumOfEntries(t *testing.T) {
	ledger := &fakeLedger{}
	svc := NewCreditService(ledger, 1)
	ctx := context.Background()

	amounts := []struct {
		amount int
		source models.CreditSource
	}{
		{3, models.CreditSourceFree},
		{10, models.CreditSourcePurchase},
		{-2, models.CreditSourceUsed},
		{5, models.CreditSourceReferral},
		{-1, models.CreditSourceUsed},
	}
	want := 0
	for _, a := range amounts {
		entry, err := svc.Add(ctx, testUserID, a.amount, a.source, "")
		require.NoError(t, err)
		assert.NotZero(t, entry.ID)
		want += a.amount

		balance, err := svc.Balance(ctx, testUserID)
		require.NoError(t, err)
		assert.Equal(t, want, balance)
	}

	_, err := svc.Add(ctx, "other-user", 100, models.CreditSourcePurchase, "")
	require.NoError(t, err)
	balance, err := svc.Balance(ctx, testUserID)
	require.NoError(t, err)
	assert.Equal(t, 15, balance)
}

func TestCreditService_SpendAtZeroLeavesLedgerUnchanged(t *testing.T) {
	ledger := &fakeLedger{}
	svc := NewCreditService(ledger, 1)

	err := svc.Spend(context.Background(), testUserID, "task:1")
	require.ErrorIs(t, err, ErrCreditsRequired)
	assert.Zero(t, ledger.count())
}

func TestCreditService_SpendUsesConfiguredCost(t *testing.T) {
	ledger := &fakeLedger{}
	ledger.grant(testUserID, 5)
	svc := NewCreditService(ledger, 2)
	ctx := context.Background()

	require.NoError(t, svc.Spend(ctx, testUserID, "task:1"))
	require.NoError(t, svc.Spend(ctx, testUserID, "task:2"))
	require.ErrorIs(t, svc.Spend(ctx, testUserID, "task:3"), ErrCreditsRequired)

	balance, err := svc.Balance(ctx, testUserID)
	require.NoError(t, err)
	assert.Equal(t, 1, balance)

	history, err := svc.History(ctx, testUserID, 10)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, models.CreditSourceUsed, history[0].Source)
	assert.Equal(t, -2, history[0].Amount)
	assert.Equal(t, "task:2", history[0].Reference)
}

func TestCreditService_ConcurrentSpendsNeverOverdraw(t *testing.T) {
	ledger := &fakeLedger{}
	ledger.grant(testUserID, 3)
	svc := NewCreditService(ledger, 1)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := svc.Spend(context.Background(), testUserID, ""); err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, success)
	balance, err := svc.Balance(context.Background(), testUserID)
	require.NoError(t, err)
	assert.Equal(t, 0, balance)
}

func TestCreditService_SpendErrors(t *testing.T) {
	svc := NewCreditService(&fakeLedger{failErr: repository.ErrUserNotFound}, 1)
	require.ErrorIs(t, svc.Spend(context.Background(), testUserID, ""), ErrCreditsRequired)

	boom := errors.New("connection reset")
	svc = NewCreditService(&fakeLedger{failErr: boom}, 1)
	err := svc.Spend(context.Background(), testUserID, "")
	require.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrCreditsRequired)
}

func TestNewCreditService_DefaultsCost(t *testing.T) {
	assert.Equal(t, 1, NewCreditService(&fakeLedger{}, 0).Cost())
	assert.Equal(t, 3, NewCreditService(&fakeLedger{}, 3).Cost())
}
