package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/bazaarhq/bazaar/pkg/billing"
	"github.com/bazaarhq/bazaar/pkg/storage"
)

// PlanCache is a read-through cache over a SubscriptionStore for plan
// lookups. Plans are immutable after discovery, which makes them safe to
// cache aggressively: an in-process LRU (L1) fronts Redis (L2), and both
// layers are invalidated when a discovery insert goes through.
//
// Subscription reads and writes pass straight through to the store;
// caching them would defeat the point of reconciliation.
type PlanCache struct {
	store storage.SubscriptionStore
	redis *redis.Client
	l1    *lru.LRU[string, *billing.Plan]
	ttl   time.Duration
}

// NewPlanCache creates the cache layer. cfg.L1CacheSize bounds the
// in-process entry count; cfg.PlanCacheTTL applies to both layers.
func NewPlanCache(store storage.SubscriptionStore, cfg storage.Config) (*PlanCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	maxEntries := cfg.L1CacheSize
	if maxEntries <= 0 {
		maxEntries = 256
	}

	return &PlanCache{
		store: store,
		redis: client,
		l1:    lru.NewLRU[string, *billing.Plan](maxEntries, nil, cfg.PlanCacheTTL),
		ttl:   cfg.PlanCacheTTL,
	}, nil
}

// Close closes the Redis connection
func (c *PlanCache) Close() error {
	return c.redis.Close()
}

// Redis exposes the client for health checks
func (c *PlanCache) Redis() *redis.Client {
	return c.redis
}

func planCacheKey(priceID, name string) string {
	return fmt.Sprintf("plan:%s:%s", priceID, name)
}

// GetPlanByPriceIDOrName resolves a plan through L1, then Redis, then the
// store. Negative results are not cached; an unknown price id is exactly
// the case that must reach the store so discovery can notice it.
func (c *PlanCache) GetPlanByPriceIDOrName(ctx context.Context, priceID, name string) (*billing.Plan, error) {
	key := planCacheKey(priceID, name)

	if plan, ok := c.l1.Get(key); ok {
		return plan, nil
	}

	cached, err := c.redis.Get(ctx, key).Result()
	if err == nil {
		var plan billing.Plan
		if err := json.Unmarshal([]byte(cached), &plan); err == nil {
			c.l1.Add(key, &plan)
			return &plan, nil
		}
	}

	plan, err := c.store.GetPlanByPriceIDOrName(ctx, priceID, name)
	if err != nil {
		return nil, err
	}

	c.l1.Add(key, plan)
	if data, err := json.Marshal(plan); err == nil {
		c.redis.Set(ctx, key, data, c.ttl)
	}

	return plan, nil
}

// InsertPlan writes through to the store and drops cached entries keyed
// on the plan's price id so subsequent lookups observe the new row.
func (c *PlanCache) InsertPlan(ctx context.Context, plan *billing.Plan) (*billing.Plan, error) {
	inserted, err := c.store.InsertPlan(ctx, plan)
	if err != nil {
		return nil, err
	}

	c.l1.Purge()
	if keys, err := c.redis.Keys(ctx, "plan:*").Result(); err == nil && len(keys) > 0 {
		c.redis.Del(ctx, keys...)
	}

	return inserted, nil
}

// ListSubscriptions passes through to the store
func (c *PlanCache) ListSubscriptions(ctx context.Context, filter storage.SubscriptionFilter) ([]*billing.Subscription, error) {
	return c.store.ListSubscriptions(ctx, filter)
}

// UpdateSubscriptionFields passes through to the store
func (c *PlanCache) UpdateSubscriptionFields(ctx context.Context, subscriptionID string, update *billing.SubscriptionUpdate) error {
	return c.store.UpdateSubscriptionFields(ctx, subscriptionID, update)
}

// DistinctPriceIDs passes through to the store
func (c *PlanCache) DistinctPriceIDs(ctx context.Context) ([]string, error) {
	return c.store.DistinctPriceIDs(ctx)
}

// HealthCheck verifies both the store and Redis are reachable
func (c *PlanCache) HealthCheck(ctx context.Context) error {
	if err := c.store.HealthCheck(ctx); err != nil {
		return err
	}
	if err := c.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis unreachable: %w", err)
	}
	return nil
}
