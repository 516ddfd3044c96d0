package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazaarhq/bazaar/pkg/billing"
)

func timePtr(t time.Time) *time.Time { return &t }

func boolPtr(b bool) *bool { return &b }

func baseLocal(t time.Time) *billing.Subscription {
	return &billing.Subscription{
		StripeSubscriptionID: "sub_123",
		Status:               billing.SubscriptionStatusActive,
		CurrentPeriodStart:   timePtr(t),
		CurrentPeriodEnd:     timePtr(t.Add(30 * 24 * time.Hour)),
	}
}

func baseRemote(t time.Time) *billing.ProviderSubscription {
	return &billing.ProviderSubscription{
		ID:                 "sub_123",
		Status:             billing.SubscriptionStatusActive,
		CurrentPeriodStart: timePtr(t),
		CurrentPeriodEnd:   timePtr(t.Add(30 * 24 * time.Hour)),
	}
}

func TestNeedsUpdateStatusComparison(t *testing.T) {
	now := time.Now().UTC()

	local := baseLocal(now)
	remote := baseRemote(now)
	assert.False(t, NeedsUpdate(local, remote))

	remote.Status = billing.SubscriptionStatusPastDue
	assert.True(t, NeedsUpdate(local, remote))

	// Comparison is case-sensitive; a provider quirk returning a
	// different casing counts as drift.
	remote.Status = billing.SubscriptionStatus("Active")
	assert.True(t, NeedsUpdate(local, remote))
}

func TestNeedsUpdatePeriodTolerance(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name  string
		skew  time.Duration
		drift bool
	}{
		{"no skew", 0, false},
		{"just under tolerance", 999 * time.Millisecond, false},
		{"exactly at tolerance", 1000 * time.Millisecond, false},
		{"just over tolerance", 1001 * time.Millisecond, true},
		{"seconds of skew", 5 * time.Second, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			local := baseLocal(now)
			remote := baseRemote(now)
			remote.CurrentPeriodEnd = timePtr(local.CurrentPeriodEnd.Add(tt.skew))
			assert.Equal(t, tt.drift, NeedsUpdate(local, remote))
		})
	}
}

func TestNeedsUpdateMissingPeriods(t *testing.T) {
	now := time.Now().UTC()

	t.Run("local missing period is drift", func(t *testing.T) {
		local := baseLocal(now)
		local.CurrentPeriodStart = nil
		assert.True(t, NeedsUpdate(local, baseRemote(now)))
	})

	t.Run("remote missing period is not drift", func(t *testing.T) {
		local := baseLocal(now)
		remote := baseRemote(now)
		remote.CurrentPeriodStart = nil
		remote.CurrentPeriodEnd = nil
		assert.False(t, NeedsUpdate(local, remote))
	})
}

func TestNeedsUpdateCancelFlag(t *testing.T) {
	now := time.Now().UTC()

	local := baseLocal(now)
	remote := baseRemote(now)

	remote.CancelAtPeriodEnd = boolPtr(true)
	assert.True(t, NeedsUpdate(local, remote))

	remote.CancelAtPeriodEnd = boolPtr(false)
	assert.False(t, NeedsUpdate(local, remote))

	// Absent flag on the provider side is ignored.
	local.CancelAtPeriodEnd = true
	remote.CancelAtPeriodEnd = nil
	assert.False(t, NeedsUpdate(local, remote))
}

func TestBuildUpdate(t *testing.T) {
	now := time.Now().UTC()
	canceledAt := now.Add(-time.Hour)

	remote := baseRemote(now)
	remote.Status = billing.SubscriptionStatusCanceled
	remote.CancelAtPeriodEnd = boolPtr(true)
	remote.CanceledAt = timePtr(canceledAt)

	update := BuildUpdate(remote)
	require.NotNil(t, update)

	assert.Equal(t, billing.SubscriptionStatusCanceled, update.Status)
	assert.Equal(t, remote.CurrentPeriodStart, update.CurrentPeriodStart)
	assert.Equal(t, remote.CurrentPeriodEnd, update.CurrentPeriodEnd)
	require.NotNil(t, update.CancelAtPeriodEnd)
	assert.True(t, *update.CancelAtPeriodEnd)
	require.NotNil(t, update.CanceledAt)
	assert.Equal(t, canceledAt, *update.CanceledAt)
}

func TestBuildUpdateOmitsAbsentCancellationFields(t *testing.T) {
	now := time.Now().UTC()
	update := BuildUpdate(baseRemote(now))

	assert.Nil(t, update.CancelAtPeriodEnd)
	assert.Nil(t, update.CanceledAt)
}
