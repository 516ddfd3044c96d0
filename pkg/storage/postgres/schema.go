package postgres

import (
	"context"
	"fmt"
)

// schema is applied idempotently at startup. Production deployments run
// the same statements through the migration pipeline; this keeps dev and
// test environments self-bootstrapping.
const schema = `
CREATE TABLE IF NOT EXISTS subscriptions (
	id                      BIGSERIAL PRIMARY KEY,
	stripe_subscription_id  TEXT NOT NULL UNIQUE,
	stripe_price_id         TEXT,
	status                  TEXT NOT NULL DEFAULT 'incomplete',
	current_period_start    TIMESTAMPTZ,
	current_period_end      TIMESTAMPTZ,
	cancel_at_period_end    BOOLEAN NOT NULL DEFAULT FALSE,
	canceled_at             TIMESTAMPTZ,
	created_at              TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at              TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CONSTRAINT subscriptions_period_order CHECK (
		current_period_start IS NULL OR current_period_end IS NULL
		OR current_period_end >= current_period_start
	)
);

CREATE INDEX IF NOT EXISTS idx_subscriptions_status ON subscriptions (status);
CREATE INDEX IF NOT EXISTS idx_subscriptions_updated_at ON subscriptions (updated_at);

CREATE TABLE IF NOT EXISTS plans (
	id               BIGSERIAL PRIMARY KEY,
	name             TEXT NOT NULL,
	display_name     TEXT,
	stripe_price_id  TEXT UNIQUE,
	price            NUMERIC(10,2) NOT NULL DEFAULT 0,
	currency         TEXT,
	billing_interval TEXT,
	features         JSONB,
	is_active        BOOLEAN NOT NULL DEFAULT TRUE,
	discovered_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_plans_name ON plans (name);
`

// InitSchema creates the subscription and plan tables if they are missing
func (s *Store) InitSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}
