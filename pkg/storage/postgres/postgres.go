package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/bazaarhq/bazaar/pkg/billing"
	"github.com/bazaarhq/bazaar/pkg/storage"
)

// Store implements storage.SubscriptionStore using PostgreSQL
type Store struct {
	db *sql.DB
}

// NewStore wraps an existing database handle. Connection pool settings
// are the caller's concern; use Connect for the full setup path.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Connect opens a PostgreSQL connection pool from config and verifies it
func Connect(cfg storage.Config) (*Store, error) {
	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.PostgresMaxConns)
	db.SetMaxIdleConns(cfg.PostgresMinConns)
	db.SetConnMaxLifetime(cfg.PostgresMaxLife)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.PostgresTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying connection pool
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for health checks
func (s *Store) DB() *sql.DB {
	return s.db
}

const subscriptionColumns = `id, stripe_subscription_id, stripe_price_id, status,
       current_period_start, current_period_end, cancel_at_period_end,
       canceled_at, created_at, updated_at`

// ListSubscriptions returns subscription records matching the filter
func (s *Store) ListSubscriptions(ctx context.Context, filter storage.SubscriptionFilter) ([]*billing.Subscription, error) {
	var (
		conditions []string
		args       []interface{}
	)

	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.UpdatedAfter != nil {
		args = append(args, *filter.UpdatedAfter)
		conditions = append(conditions, fmt.Sprintf("updated_at > $%d", len(args)))
	}
	if filter.RequireProviderID {
		conditions = append(conditions, "stripe_subscription_id IS NOT NULL AND stripe_subscription_id != ''")
	}

	query := "SELECT " + subscriptionColumns + " FROM subscriptions"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY id"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*billing.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate subscriptions: %w", err)
	}

	return subs, nil
}

func scanSubscription(rows *sql.Rows) (*billing.Subscription, error) {
	sub := &billing.Subscription{}
	var priceID sql.NullString
	var periodStart, periodEnd, canceledAt sql.NullTime

	if err := rows.Scan(
		&sub.ID, &sub.StripeSubscriptionID, &priceID, &sub.Status,
		&periodStart, &periodEnd, &sub.CancelAtPeriodEnd,
		&canceledAt, &sub.CreatedAt, &sub.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to scan subscription: %w", err)
	}

	if priceID.Valid {
		sub.StripePriceID = priceID.String
	}
	if periodStart.Valid {
		t := periodStart.Time
		sub.CurrentPeriodStart = &t
	}
	if periodEnd.Valid {
		t := periodEnd.Time
		sub.CurrentPeriodEnd = &t
	}
	if canceledAt.Valid {
		t := canceledAt.Time
		sub.CanceledAt = &t
	}

	return sub, nil
}

const planColumns = `id, name, display_name, stripe_price_id, price, currency,
       billing_interval, features, is_active, discovered_at`

// GetPlanByPriceIDOrName resolves a plan by provider price id, falling
// back to the internal name for legacy rows created before price ids
func (s *Store) GetPlanByPriceIDOrName(ctx context.Context, priceID, name string) (*billing.Plan, error) {
	query := `
		SELECT ` + planColumns + `
		FROM plans
		WHERE stripe_price_id = $1 OR name = $2
		ORDER BY (stripe_price_id = $1) DESC
		LIMIT 1
	`
	return s.queryPlan(ctx, query, priceID, name)
}

func (s *Store) getPlanByPriceID(ctx context.Context, priceID string) (*billing.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans WHERE stripe_price_id = $1`
	return s.queryPlan(ctx, query, priceID)
}

func (s *Store) queryPlan(ctx context.Context, query string, args ...interface{}) (*billing.Plan, error) {
	plan := &billing.Plan{}
	var displayName, priceID, currency sql.NullString
	var featuresJSON []byte

	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&plan.ID, &plan.Name, &displayName, &priceID, &plan.Price,
		&currency, &plan.Interval, &featuresJSON, &plan.IsActive,
		&plan.DiscoveredAt,
	)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}

	if displayName.Valid {
		plan.DisplayName = displayName.String
	}
	if priceID.Valid {
		plan.StripePriceID = priceID.String
	}
	if currency.Valid {
		plan.Currency = currency.String
	}
	if len(featuresJSON) > 0 {
		if err := json.Unmarshal(featuresJSON, &plan.Features); err != nil {
			return nil, fmt.Errorf("failed to unmarshal plan features: %w", err)
		}
	}

	return plan, nil
}

// InsertPlan persists a discovered plan with insert-if-absent semantics.
// A conflicting price id means another writer discovered the plan first;
// the existing row is returned in that case.
func (s *Store) InsertPlan(ctx context.Context, plan *billing.Plan) (*billing.Plan, error) {
	featuresJSON, err := json.Marshal(plan.Features)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal plan features: %w", err)
	}

	query := `
		INSERT INTO plans (name, display_name, stripe_price_id, price, currency,
		                   billing_interval, features, is_active, discovered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (stripe_price_id) DO NOTHING
		RETURNING id, discovered_at
	`
	err = s.db.QueryRowContext(ctx, query,
		plan.Name, plan.DisplayName, plan.StripePriceID, plan.Price,
		plan.Currency, plan.Interval, featuresJSON, plan.IsActive,
	).Scan(&plan.ID, &plan.DiscoveredAt)

	if err == sql.ErrNoRows {
		// Lost the race; the row inserted by the other writer wins.
		return s.getPlanByPriceID(ctx, plan.StripePriceID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert plan: %w", err)
	}

	return plan, nil
}

// UpdateSubscriptionFields writes reconciled fields to one record,
// identified by its provider subscription id. updated_at always advances.
func (s *Store) UpdateSubscriptionFields(ctx context.Context, subscriptionID string, update *billing.SubscriptionUpdate) error {
	sets := []string{"updated_at = NOW()"}
	var args []interface{}

	if update.Status != "" {
		args = append(args, update.Status)
		sets = append(sets, fmt.Sprintf("status = $%d", len(args)))
	}
	if update.CurrentPeriodStart != nil {
		args = append(args, *update.CurrentPeriodStart)
		sets = append(sets, fmt.Sprintf("current_period_start = $%d", len(args)))
	}
	if update.CurrentPeriodEnd != nil {
		args = append(args, *update.CurrentPeriodEnd)
		sets = append(sets, fmt.Sprintf("current_period_end = $%d", len(args)))
	}
	if update.CancelAtPeriodEnd != nil {
		args = append(args, *update.CancelAtPeriodEnd)
		sets = append(sets, fmt.Sprintf("cancel_at_period_end = $%d", len(args)))
	}
	if update.CanceledAt != nil {
		args = append(args, *update.CanceledAt)
		sets = append(sets, fmt.Sprintf("canceled_at = $%d", len(args)))
	}

	args = append(args, subscriptionID)
	query := fmt.Sprintf("UPDATE subscriptions SET %s WHERE stripe_subscription_id = $%d",
		strings.Join(sets, ", "), len(args))

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return storage.ErrNotFound
	}

	return nil
}

// DistinctPriceIDs returns the distinct non-empty price ids referenced by
// subscription records
func (s *Store) DistinctPriceIDs(ctx context.Context) ([]string, error) {
	query := `
		SELECT DISTINCT stripe_price_id
		FROM subscriptions
		WHERE stripe_price_id IS NOT NULL AND stripe_price_id != ''
		ORDER BY stripe_price_id
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list price ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan price id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate price ids: %w", err)
	}

	return ids, nil
}

// HealthCheck verifies the database is reachable
func (s *Store) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.db.PingContext(ctx)
}
