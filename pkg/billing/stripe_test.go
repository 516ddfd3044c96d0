package billing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripeClientGetSubscription(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/subscriptions/sub_123", r.URL.Path)
			assert.Equal(t, "Bearer sk_test_key", r.Header.Get("Authorization"))

			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{
				"id": "sub_123",
				"status": "active",
				"current_period_start": 1735689600,
				"current_period_end": 1738368000,
				"cancel_at_period_end": false,
				"canceled_at": null,
				"items": {"data": [{"price": {"id": "price_abc"}}]}
			}`))
		}))
		defer server.Close()

		client := NewStripeClient("sk_test_key", 5*time.Second).WithBaseURL(server.URL)
		sub, err := client.GetSubscription(context.Background(), "sub_123")
		require.NoError(t, err)

		assert.Equal(t, "sub_123", sub.ID)
		assert.Equal(t, SubscriptionStatusActive, sub.Status)
		assert.Equal(t, "price_abc", sub.PriceID)
		require.NotNil(t, sub.CurrentPeriodStart)
		assert.Equal(t, int64(1735689600), sub.CurrentPeriodStart.Unix())
		require.NotNil(t, sub.CancelAtPeriodEnd)
		assert.False(t, *sub.CancelAtPeriodEnd)
		assert.Nil(t, sub.CanceledAt)
	})

	t.Run("canceled subscription carries canceled_at", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{
				"id": "sub_456",
				"status": "canceled",
				"current_period_start": 1735689600,
				"current_period_end": 1738368000,
				"cancel_at_period_end": true,
				"canceled_at": 1736000000,
				"items": {"data": [{"price": {"id": "price_abc"}}]}
			}`))
		}))
		defer server.Close()

		client := NewStripeClient("sk_test_key", 5*time.Second).WithBaseURL(server.URL)
		sub, err := client.GetSubscription(context.Background(), "sub_456")
		require.NoError(t, err)

		assert.Equal(t, SubscriptionStatusCanceled, sub.Status)
		require.NotNil(t, sub.CanceledAt)
		assert.Equal(t, int64(1736000000), sub.CanceledAt.Unix())
		require.NotNil(t, sub.CancelAtPeriodEnd)
		assert.True(t, *sub.CancelAtPeriodEnd)
	})

	t.Run("non-2xx status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error": {"type": "invalid_request_error"}}`))
		}))
		defer server.Close()

		client := NewStripeClient("sk_test_key", 5*time.Second).WithBaseURL(server.URL)
		_, err := client.GetSubscription(context.Background(), "sub_missing")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "404")
	})
}

func TestStripeClientGetPrice(t *testing.T) {
	t.Run("success with expanded product", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/prices/price_abc", r.URL.Path)
			assert.Equal(t, "product", r.URL.Query().Get("expand[]"))

			w.Write([]byte(`{
				"id": "price_abc",
				"unit_amount": 4900,
				"currency": "usd",
				"recurring": {"interval": "month"},
				"product": {"name": "Premium"},
				"metadata": {"features": "priority_support,unlimited_listings"}
			}`))
		}))
		defer server.Close()

		client := NewStripeClient("sk_test_key", 5*time.Second).WithBaseURL(server.URL)
		price, err := client.GetPrice(context.Background(), "price_abc")
		require.NoError(t, err)

		assert.Equal(t, "price_abc", price.ID)
		assert.Equal(t, int64(4900), price.UnitAmount)
		assert.Equal(t, "usd", price.Currency)
		assert.Equal(t, IntervalMonth, price.Interval)
		assert.Equal(t, "Premium", price.ProductName)
		assert.Equal(t, "priority_support,unlimited_listings", price.MetadataFeatures)
	})

	t.Run("price without product name or metadata", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{
				"id": "price_bare",
				"unit_amount": 900,
				"currency": "eur",
				"recurring": {"interval": "year"}
			}`))
		}))
		defer server.Close()

		client := NewStripeClient("sk_test_key", 5*time.Second).WithBaseURL(server.URL)
		price, err := client.GetPrice(context.Background(), "price_bare")
		require.NoError(t, err)

		assert.Empty(t, price.ProductName)
		assert.Empty(t, price.MetadataFeatures)
		assert.Equal(t, IntervalYear, price.Interval)
	})

	t.Run("timeout is a plain error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer server.Close()

		client := NewStripeClient("sk_test_key", 50*time.Millisecond).WithBaseURL(server.URL)
		_, err := client.GetPrice(context.Background(), "price_slow")
		assert.Error(t, err)
	})
}
