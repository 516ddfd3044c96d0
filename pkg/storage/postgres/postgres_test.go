package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazaarhq/bazaar/pkg/billing"
	"github.com/bazaarhq/bazaar/pkg/storage"
)

var subscriptionCols = []string{
	"id", "stripe_subscription_id", "stripe_price_id", "status",
	"current_period_start", "current_period_end", "cancel_at_period_end",
	"canceled_at", "created_at", "updated_at",
}

var planCols = []string{
	"id", "name", "display_name", "stripe_price_id", "price", "currency",
	"billing_interval", "features", "is_active", "discovered_at",
}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db), mock
}

func TestListSubscriptions(t *testing.T) {
	now := time.Now().UTC()
	periodEnd := now.Add(30 * 24 * time.Hour)

	t.Run("active only filter", func(t *testing.T) {
		store, mock := newMockStore(t)

		rows := sqlmock.NewRows(subscriptionCols).
			AddRow(1, "sub_1", "price_a", "active", now, periodEnd, false, nil, now, now).
			AddRow(2, "sub_2", nil, "active", nil, nil, false, nil, now, now)

		mock.ExpectQuery("SELECT (.+) FROM subscriptions WHERE status = \\$1").
			WithArgs(billing.SubscriptionStatusActive).
			WillReturnRows(rows)

		subs, err := store.ListSubscriptions(context.Background(), storage.SubscriptionFilter{
			Status: billing.SubscriptionStatusActive,
		})
		require.NoError(t, err)
		require.Len(t, subs, 2)

		assert.Equal(t, "sub_1", subs[0].StripeSubscriptionID)
		assert.Equal(t, "price_a", subs[0].StripePriceID)
		require.NotNil(t, subs[0].CurrentPeriodEnd)
		assert.Empty(t, subs[1].StripePriceID)
		assert.Nil(t, subs[1].CurrentPeriodStart)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("incremental filter with limit", func(t *testing.T) {
		store, mock := newMockStore(t)
		since := now.Add(-time.Hour)

		mock.ExpectQuery("SELECT (.+) FROM subscriptions WHERE updated_at > \\$1 AND stripe_subscription_id IS NOT NULL (.+) LIMIT \\$2").
			WithArgs(since, 50).
			WillReturnRows(sqlmock.NewRows(subscriptionCols))

		subs, err := store.ListSubscriptions(context.Background(), storage.SubscriptionFilter{
			UpdatedAfter:      &since,
			RequireProviderID: true,
			Limit:             50,
		})
		require.NoError(t, err)
		assert.Empty(t, subs)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query error propagates", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectQuery("SELECT (.+) FROM subscriptions").
			WillReturnError(errors.New("connection refused"))

		_, err := store.ListSubscriptions(context.Background(), storage.SubscriptionFilter{})
		assert.Error(t, err)
	})
}

func TestGetPlanByPriceIDOrName(t *testing.T) {
	t.Run("found by price id", func(t *testing.T) {
		store, mock := newMockStore(t)
		now := time.Now()

		rows := sqlmock.NewRows(planCols).
			AddRow(7, "premium_monthly", "Premium (Monthly)", "price_abc", 49.00,
				"usd", "month", []byte(`["priority_support"]`), true, now)

		mock.ExpectQuery("SELECT (.+) FROM plans WHERE stripe_price_id = \\$1 OR name = \\$2").
			WithArgs("price_abc", "premium_monthly").
			WillReturnRows(rows)

		plan, err := store.GetPlanByPriceIDOrName(context.Background(), "price_abc", "premium_monthly")
		require.NoError(t, err)

		assert.Equal(t, "premium_monthly", plan.Name)
		assert.Equal(t, "price_abc", plan.StripePriceID)
		assert.Equal(t, 49.00, plan.Price)
		assert.Equal(t, billing.IntervalMonth, plan.Interval)
		assert.Equal(t, []string{"priority_support"}, plan.Features)
	})

	t.Run("not found", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectQuery("SELECT (.+) FROM plans").
			WithArgs("price_unknown", "").
			WillReturnError(sql.ErrNoRows)

		_, err := store.GetPlanByPriceIDOrName(context.Background(), "price_unknown", "")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestInsertPlan(t *testing.T) {
	plan := &billing.Plan{
		Name:          "premium_monthly",
		DisplayName:   "Premium (Monthly)",
		StripePriceID: "price_abc",
		Price:         49.00,
		Currency:      "usd",
		Interval:      billing.IntervalMonth,
		Features:      []string{"priority_support"},
		IsActive:      true,
	}

	t.Run("fresh insert", func(t *testing.T) {
		store, mock := newMockStore(t)
		now := time.Now()

		mock.ExpectQuery("INSERT INTO plans").
			WillReturnRows(sqlmock.NewRows([]string{"id", "discovered_at"}).AddRow(11, now))

		inserted, err := store.InsertPlan(context.Background(), plan)
		require.NoError(t, err)
		assert.Equal(t, int64(11), inserted.ID)
	})

	t.Run("conflict returns existing row", func(t *testing.T) {
		store, mock := newMockStore(t)
		now := time.Now()

		// ON CONFLICT DO NOTHING yields no rows; the store re-reads.
		mock.ExpectQuery("INSERT INTO plans").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery("SELECT (.+) FROM plans WHERE stripe_price_id = \\$1").
			WithArgs("price_abc").
			WillReturnRows(sqlmock.NewRows(planCols).
				AddRow(3, "premium_monthly", "Premium (Monthly)", "price_abc", 49.00,
					"usd", "month", []byte(`["priority_support"]`), true, now))

		existing, err := store.InsertPlan(context.Background(), plan)
		require.NoError(t, err)
		assert.Equal(t, int64(3), existing.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUpdateSubscriptionFields(t *testing.T) {
	t.Run("writes status periods and cancel flags", func(t *testing.T) {
		store, mock := newMockStore(t)
		now := time.Now().UTC()
		end := now.Add(30 * 24 * time.Hour)
		cancelFlag := true

		mock.ExpectExec("UPDATE subscriptions SET updated_at = NOW\\(\\), status = \\$1, current_period_start = \\$2, current_period_end = \\$3, cancel_at_period_end = \\$4 WHERE stripe_subscription_id = \\$5").
			WithArgs(billing.SubscriptionStatusPastDue, now, end, cancelFlag, "sub_1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := store.UpdateSubscriptionFields(context.Background(), "sub_1", &billing.SubscriptionUpdate{
			Status:             billing.SubscriptionStatusPastDue,
			CurrentPeriodStart: &now,
			CurrentPeriodEnd:   &end,
			CancelAtPeriodEnd:  &cancelFlag,
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown subscription id", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectExec("UPDATE subscriptions").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := store.UpdateSubscriptionFields(context.Background(), "sub_missing", &billing.SubscriptionUpdate{
			Status: billing.SubscriptionStatusActive,
		})
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestDistinctPriceIDs(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT DISTINCT stripe_price_id FROM subscriptions").
		WillReturnRows(sqlmock.NewRows([]string{"stripe_price_id"}).
			AddRow("price_a").
			AddRow("price_b"))

	ids, err := store.DistinctPriceIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"price_a", "price_b"}, ids)
}
