package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digkill/petdance/internal/config"
)

func TestPlanService_EnsureDefaultPlans(t *testing.T) {
	store := &fakePlans{}
	cfg := config.Config{PaymentCurrency: "usd", StripePricePro: "price_pro"}
	svc := NewPlanService(cfg, store)
	ctx := context.Background()

	require.NoError(t, svc.EnsureDefaultPlans(ctx))
	require.Len(t, store.plans, 2)

	starter, err := svc.GetActiveByCode(ctx, "starter")
	require.NoError(t, err)
	assert.False(t, starter.Recurring)
	assert.Empty(t, starter.StripePriceID)

	pro, err := svc.GetActiveByCode(ctx, " PRO ")
	require.NoError(t, err)
	assert.True(t, pro.Recurring)
	assert.Equal(t, "price_pro", pro.StripePriceID)

	// Seeding again is a no-op apart from backfilling newly configured prices.
	cfg.StripePriceStarter = "price_starter"
	require.NoError(t, NewPlanService(cfg, store).EnsureDefaultPlans(ctx))
	require.Len(t, store.plans, 2)
	starter, err = svc.GetActiveByCode(ctx, "starter")
	require.NoError(t, err)
	assert.Equal(t, "price_starter", starter.StripePriceID)
}

func TestPlanService_CreateUpdate(t *testing.T) {
	store := &fakePlans{}
	svc := NewPlanService(config.Config{PaymentCurrency: "eur"}, store)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreatePlanInput{Title: "No code", PriceMinorUnits: 100, Credits: 1})
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Create(ctx, CreatePlanInput{Code: "x", Title: "Free", PriceMinorUnits: 0, Credits: 1})
	require.ErrorIs(t, err, ErrInvalidInput)

	plan, err := svc.Create(ctx, CreatePlanInput{Code: "Mega", Title: "Mega", PriceMinorUnits: 4999, Credits: 150})
	require.NoError(t, err)
	assert.Equal(t, "mega", plan.Code)
	assert.Equal(t, "eur", plan.Currency)
	assert.True(t, plan.IsActive)

	inactive := false
	credits := 200
	updated, err := svc.Update(ctx, plan.ID, UpdatePlanInput{IsActive: &inactive, Credits: &credits})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
	assert.Equal(t, 200, updated.Credits)

	_, err = svc.GetActiveByCode(ctx, "mega")
	require.ErrorIs(t, err, ErrPlanNotFound)

	_, err = svc.Update(ctx, 999, UpdatePlanInput{})
	require.ErrorIs(t, err, ErrPlanNotFound)

	require.NoError(t, svc.Delete(ctx, plan.ID))
	plans, err := svc.List(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, plans)
}
