package billing

import (
	"time"
)

// SubscriptionStatus represents the status of a subscription
type SubscriptionStatus string

const (
	SubscriptionStatusActive     SubscriptionStatus = "active"
	SubscriptionStatusCanceled   SubscriptionStatus = "canceled"
	SubscriptionStatusPastDue    SubscriptionStatus = "past_due"
	SubscriptionStatusUnpaid     SubscriptionStatus = "unpaid"
	SubscriptionStatusIncomplete SubscriptionStatus = "incomplete"
	SubscriptionStatusTrialing   SubscriptionStatus = "trialing"
)

// BillingInterval is the provider-side recurrence of a price
type BillingInterval string

const (
	IntervalMonth BillingInterval = "month"
	IntervalYear  BillingInterval = "year"
)

// Subscription is the local record of one provider subscription.
// StripeSubscriptionID uniquely identifies the record; the engine updates
// status and period fields but never deletes rows (terminal states are
// expressed through Status).
type Subscription struct {
	ID                   int64              `json:"id"`
	StripeSubscriptionID string             `json:"stripe_subscription_id"`
	StripePriceID        string             `json:"stripe_price_id,omitempty"`
	Status               SubscriptionStatus `json:"status"`
	CurrentPeriodStart   *time.Time         `json:"current_period_start,omitempty"`
	CurrentPeriodEnd     *time.Time         `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd    bool               `json:"cancel_at_period_end"`
	CanceledAt           *time.Time         `json:"canceled_at,omitempty"`
	CreatedAt            time.Time          `json:"created_at"`
	UpdatedAt            time.Time          `json:"updated_at"`
}

// Plan is the local cache of a provider price/product. Rows are created by
// plan discovery when an unknown price id shows up during a sync and are
// never mutated by the engine afterwards.
type Plan struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	DisplayName   string          `json:"display_name"`
	StripePriceID string          `json:"stripe_price_id,omitempty"`
	Price         float64         `json:"price"`
	Currency      string          `json:"currency"`
	Interval      BillingInterval `json:"interval"`
	Features      []string        `json:"features"`
	IsActive      bool            `json:"is_active"`
	DiscoveredAt  time.Time       `json:"discovered_at"`
}

// SubscriptionUpdate carries the fields the reconciliation engine is
// allowed to write back to a subscription row. Pointer fields are written
// only when non-nil; the price id is deliberately absent here, price
// changes are a discovery concern.
type SubscriptionUpdate struct {
	Status             SubscriptionStatus
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	CancelAtPeriodEnd  *bool
	CanceledAt         *time.Time
}
