package sync

import (
	"context"
	"errors"
	"fmt"
	stdsync "sync"
	"time"

	"github.com/bazaarhq/bazaar/pkg/async"
	"github.com/bazaarhq/bazaar/pkg/storage"
)

// MonitorPlans walks the distinct provider price ids referenced by
// subscription records and reports which ones the store cannot resolve.
// A price id is considered known when a plan matches it directly or by
// the name that would be derived for it. Unknown plans are persisted
// unless Options.AutoAdd is explicitly false, which turns the pass into
// a pure report.
func (e *Engine) MonitorPlans(ctx context.Context, opts Options) (*MonitorResult, error) {
	priceIDs, err := e.store.DistinctPriceIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query distinct price ids: %w", err)
	}

	result := &MonitorResult{
		NewPlans:      []string{},
		ExistingPlans: []string{},
	}

	var mu stdsync.Mutex
	async.Batch(ctx, priceIDs, e.workers, "plan-monitor", e.recordTimeout,
		func(taskCtx context.Context, priceID string) error {
			name, known, err := e.checkPrice(taskCtx, priceID, opts.autoAdd())

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				result.Errors = append(result.Errors, SyncError{
					Message: fmt.Sprintf("price %s: %v", priceID, err),
				})
			case known:
				result.ExistingPlans = append(result.ExistingPlans, name)
			default:
				result.NewPlans = append(result.NewPlans, name)
			}
			return nil
		})

	return result, nil
}

// checkPrice resolves one price id. It returns the plan name, whether
// the store already knew the plan, and any failure. When persist is
// false an unknown plan is derived but not written.
func (e *Engine) checkPrice(ctx context.Context, priceID string, persist bool) (string, bool, error) {
	// Fast path: the price id itself resolves.
	if plan, err := e.store.GetPlanByPriceIDOrName(ctx, priceID, ""); err == nil {
		return plan.Name, true, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return "", false, fmt.Errorf("plan lookup failed: %w", err)
	}

	start := time.Now()
	price, err := e.provider.GetPrice(ctx, priceID)
	e.metrics.RecordProviderCall("get_price", time.Since(start), err)
	if err != nil {
		return "", false, fmt.Errorf("price retrieval failed: %w", err)
	}

	derived := PlanFromPrice(price)

	// Legacy rows may carry the name without the price id.
	if plan, err := e.store.GetPlanByPriceIDOrName(ctx, priceID, derived.Name); err == nil {
		return plan.Name, true, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return "", false, fmt.Errorf("plan lookup failed: %w", err)
	}

	if !persist {
		return derived.Name, false, nil
	}

	inserted, err := e.store.InsertPlan(ctx, derived)
	if err != nil {
		return "", false, fmt.Errorf("plan insert failed: %w", err)
	}
	e.metrics.RecordDiscovery()
	e.logger.WithFields(map[string]interface{}{
		"price_id": priceID,
		"plan":     inserted.Name,
	}).Info("Discovered new plan")
	return inserted.Name, false, nil
}
