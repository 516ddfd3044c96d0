package storage

import (
	"context"
	"errors"
	"time"

	"github.com/bazaarhq/bazaar/pkg/billing"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("record not found")

// SubscriptionFilter narrows the candidate set returned by
// ListSubscriptions. Zero values mean "no constraint".
type SubscriptionFilter struct {
	// Status restricts results to subscriptions in this status.
	Status billing.SubscriptionStatus

	// UpdatedAfter restricts results to records whose updated_at is
	// strictly later than this instant.
	UpdatedAfter *time.Time

	// RequireProviderID drops records without a provider subscription id.
	RequireProviderID bool

	// Limit caps the result count; zero means unlimited.
	Limit int
}

// SubscriptionStore is the query surface the reconciliation engine
// depends on. Implementations must make InsertPlan idempotent with
// respect to the provider price id.
type SubscriptionStore interface {
	// ListSubscriptions returns subscription records matching the filter.
	ListSubscriptions(ctx context.Context, filter SubscriptionFilter) ([]*billing.Subscription, error)

	// GetPlanByPriceIDOrName resolves a plan by provider price id first,
	// then by internal name (legacy rows predating price ids). Returns
	// ErrNotFound when neither matches.
	GetPlanByPriceIDOrName(ctx context.Context, priceID, name string) (*billing.Plan, error)

	// InsertPlan persists a newly discovered plan. When a plan with the
	// same price id already exists the existing row is returned and no
	// error is raised.
	InsertPlan(ctx context.Context, plan *billing.Plan) (*billing.Plan, error)

	// UpdateSubscriptionFields writes the given fields to the record
	// identified by its provider subscription id.
	UpdateSubscriptionFields(ctx context.Context, subscriptionID string, update *billing.SubscriptionUpdate) error

	// DistinctPriceIDs returns the distinct non-empty provider price ids
	// referenced by subscription records.
	DistinctPriceIDs(ctx context.Context) ([]string, error)

	// HealthCheck verifies the backing store is reachable.
	HealthCheck(ctx context.Context) error
}

// Config for the subscription store and its cache layer
type Config struct {
	// PostgreSQL config
	PostgresURL      string
	PostgresMaxConns int
	PostgresMinConns int
	PostgresTimeout  time.Duration
	PostgresMaxLife  time.Duration

	// Redis config
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Cache config
	CacheEnabled bool
	PlanCacheTTL time.Duration
	L1CacheSize  int
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		PostgresMaxConns: 20,
		PostgresMinConns: 2,
		PostgresTimeout:  10 * time.Second,
		PostgresMaxLife:  30 * time.Minute,
		RedisDB:          0,
		CacheEnabled:     true,
		PlanCacheTTL:     15 * time.Minute,
		L1CacheSize:      256,
	}
}
