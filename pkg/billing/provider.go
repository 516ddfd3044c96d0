package billing

import (
	"context"
	"time"
)

// ProviderSubscription is the authoritative state of one subscription as
// reported by the billing provider.
type ProviderSubscription struct {
	ID                 string
	Status             SubscriptionStatus
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	CancelAtPeriodEnd  *bool
	CanceledAt         *time.Time
	PriceID            string
}

// ProviderPrice is the provider's view of a price and its product.
// UnitAmount is expressed in the smallest currency unit (cents).
type ProviderPrice struct {
	ID               string
	UnitAmount       int64
	Currency         string
	Interval         BillingInterval
	ProductName      string
	MetadataFeatures string
}

// Provider is the read-only surface of the billing provider the sync
// engine depends on. Implementations are expected to apply their own
// retry/backoff; the engine calls each method at most once per record
// per run and treats any error as "could not reconcile this record now".
type Provider interface {
	GetSubscription(ctx context.Context, subscriptionID string) (*ProviderSubscription, error)
	GetPrice(ctx context.Context, priceID string) (*ProviderPrice, error)
}
