package sync

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazaarhq/bazaar/pkg/billing"
)

func TestMonitorPlansKnownByPriceID(t *testing.T) {
	store := newFakeStore()
	seedKnownPlan(store)
	store.distinct = []string{"price_known"}

	engine := NewEngine(store, newFakeProvider())
	result, err := engine.MonitorPlans(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"premium_monthly"}, result.ExistingPlans)
	assert.Empty(t, result.NewPlans)
	assert.Empty(t, result.Errors)
}

func TestMonitorPlansKnownByDerivedName(t *testing.T) {
	store := newFakeStore()
	// A legacy row carries the derived name but a stale price id.
	store.plans["price_old"] = &billing.Plan{Name: "premium_monthly", StripePriceID: "price_old"}
	store.distinct = []string{"price_new"}

	provider := newFakeProvider()
	provider.prices["price_new"] = &billing.ProviderPrice{
		ID:          "price_new",
		Interval:    billing.IntervalMonth,
		ProductName: "Premium",
	}

	engine := NewEngine(store, provider)
	result, err := engine.MonitorPlans(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"premium_monthly"}, result.ExistingPlans)
	assert.Empty(t, result.NewPlans)
	assert.Zero(t, store.insertCalls)
}

func TestMonitorPlansDiscoversUnknown(t *testing.T) {
	store := newFakeStore()
	store.distinct = []string{"price_new"}

	provider := newFakeProvider()
	provider.prices["price_new"] = &billing.ProviderPrice{
		ID:          "price_new",
		UnitAmount:  4900,
		Currency:    "usd",
		Interval:    billing.IntervalYear,
		ProductName: "Team",
	}

	engine := NewEngine(store, provider)
	result, err := engine.MonitorPlans(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"team_yearly"}, result.NewPlans)
	assert.Empty(t, result.ExistingPlans)
	require.Contains(t, store.plans, "price_new")
	assert.Equal(t, 49.0, store.plans["price_new"].Price)
}

func TestMonitorPlansDryRun(t *testing.T) {
	store := newFakeStore()
	store.distinct = []string{"price_new"}

	provider := newFakeProvider()
	provider.prices["price_new"] = &billing.ProviderPrice{
		ID:          "price_new",
		Interval:    billing.IntervalMonth,
		ProductName: "Team",
	}

	engine := NewEngine(store, provider)
	result, err := engine.MonitorPlans(context.Background(), Options{AutoAdd: boolPtr(false)})
	require.NoError(t, err)

	assert.Equal(t, []string{"team_monthly"}, result.NewPlans)
	assert.Zero(t, store.insertCalls)
	assert.NotContains(t, store.plans, "price_new")
}

func TestMonitorPlansPriceRetrievalFailure(t *testing.T) {
	store := newFakeStore()
	store.distinct = []string{"price_missing"}

	engine := NewEngine(store, newFakeProvider())
	result, err := engine.MonitorPlans(context.Background(), Options{})
	require.NoError(t, err)

	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Message, "price_missing")
	assert.Empty(t, result.NewPlans)
}

func TestMonitorPlansDistinctQueryFailure(t *testing.T) {
	store := newFakeStore()
	store.distinctErr = errors.New("connection refused")

	engine := NewEngine(store, newFakeProvider())
	result, err := engine.MonitorPlans(context.Background(), Options{})

	require.Error(t, err)
	assert.Nil(t, result)
}

func TestRunSyncPlansOnlyStrategy(t *testing.T) {
	store := newFakeStore()
	seedKnownPlan(store)
	store.distinct = []string{"price_known", "price_new"}

	provider := newFakeProvider()
	provider.prices["price_new"] = &billing.ProviderPrice{
		ID:          "price_new",
		Interval:    billing.IntervalMonth,
		ProductName: "Team",
	}

	engine := NewEngine(store, provider)
	run, err := engine.RunSync(context.Background(), StrategyPlansOnly, Options{})
	require.NoError(t, err)

	assert.Equal(t, StrategyPlansOnly, run.Strategy)
	assert.Equal(t, 2, run.Processed)
	assert.Equal(t, 1, run.PlansDiscovered)
	assert.Zero(t, run.Updated)
	// Plans-only runs never touch subscription rows.
	assert.Empty(t, store.filters)
	assert.Empty(t, store.updates)
}
