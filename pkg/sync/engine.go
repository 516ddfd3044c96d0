package sync

import (
	"context"
	"errors"
	"fmt"
	stdsync "sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/bazaarhq/bazaar/pkg/async"
	"github.com/bazaarhq/bazaar/pkg/billing"
	"github.com/bazaarhq/bazaar/pkg/notify"
	"github.com/bazaarhq/bazaar/pkg/observability"
	"github.com/bazaarhq/bazaar/pkg/storage"
)

const (
	defaultWorkers       = 8
	defaultRecordTimeout = 30 * time.Second
	notifyTimeout        = 30 * time.Second
)

// Engine reconciles locally stored subscriptions against the billing
// provider. A single Engine serializes its runs; concurrent RunSync
// calls beyond the first fail fast with ErrSyncInProgress.
type Engine struct {
	store      storage.SubscriptionStore
	provider   billing.Provider
	discoverer *Discoverer
	notifier   notify.Notifier
	logger     *observability.Logger
	metrics    *observability.Metrics
	tracer     trace.Tracer

	workers       int
	recordTimeout time.Duration

	inFlight atomic.Bool

	// mu guards lastSync. Written only by the single in-flight run.
	mu       stdsync.Mutex
	lastSync time.Time
}

// Option configures an Engine
type Option func(*Engine)

// WithNotifier sets the notifier for run summaries
func WithNotifier(n notify.Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithLogger sets the structured logger
func WithLogger(l *observability.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics sets the Prometheus metrics. nil is valid and disables
// metric recording.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithWorkers bounds the reconciliation worker pool
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithRecordTimeout bounds the time spent on a single candidate
func WithRecordTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.recordTimeout = d
		}
	}
}

// NewEngine creates a reconciliation engine over the given store and
// billing provider.
func NewEngine(store storage.SubscriptionStore, provider billing.Provider, opts ...Option) *Engine {
	e := &Engine{
		store:         store,
		provider:      provider,
		logger:        observability.NewLogger(observability.InfoLevel, nil),
		tracer:        otel.Tracer("bazaarhq/bazaar/sync"),
		workers:       defaultWorkers,
		recordTimeout: defaultRecordTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.discoverer = NewDiscoverer(provider, store)
	return e
}

// LastSyncTime returns the completion time of the most recent successful
// run, or the zero time when no run has succeeded yet.
func (e *Engine) LastSyncTime() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastSync
}

// RunSync executes one reconciliation run. Unrecognized strategies fall
// back to StrategyActiveOnly. The only failure that aborts a run is the
// candidate query itself; individual record failures are collected on
// the returned SyncRun. A second call while a run is active returns
// ErrSyncInProgress.
func (e *Engine) RunSync(ctx context.Context, strategy Strategy, opts Options) (*SyncRun, error) {
	if !e.inFlight.CompareAndSwap(false, true) {
		return nil, ErrSyncInProgress
	}
	defer e.inFlight.Store(false)

	strategy = ParseStrategy(string(strategy))

	run := &SyncRun{
		ID:        uuid.New().String(),
		Strategy:  strategy,
		StartedAt: time.Now().UTC(),
	}

	ctx = observability.WithRunID(ctx, run.ID)
	ctx = observability.WithLogger(ctx, e.logger.WithField("strategy", string(strategy)))
	logger := observability.FromContext(ctx)

	ctx, span := e.tracer.Start(ctx, "sync.run",
		trace.WithAttributes(
			attribute.String("sync.run_id", run.ID),
			attribute.String("sync.strategy", string(strategy)),
		))
	defer span.End()

	e.metrics.RecordRunStart()
	logger.Info("Starting sync run")

	if err := e.execute(ctx, logger, strategy, opts, run); err != nil {
		run.CompletedAt = time.Now().UTC()
		e.metrics.RecordRunEnd(string(strategy), "failure", run.CompletedAt.Sub(run.StartedAt))
		logger.WithError(err).Error("Sync run failed")
		return nil, err
	}

	run.CompletedAt = time.Now().UTC()
	e.metrics.RecordRunEnd(string(strategy), "success", run.CompletedAt.Sub(run.StartedAt))

	// The incremental watermark only advances on runs that complete.
	// Per-record failures are part of a completed run; a failed candidate
	// query is not.
	e.mu.Lock()
	e.lastSync = run.CompletedAt
	e.mu.Unlock()

	logger.WithFields(map[string]interface{}{
		"processed":        run.Processed,
		"updated":          run.Updated,
		"plans_discovered": run.PlansDiscovered,
		"errors":           len(run.Errors),
	}).Info("Sync run completed")

	e.maybeNotify(run)

	return run, nil
}

func (e *Engine) execute(ctx context.Context, logger *observability.Logger, strategy Strategy, opts Options, run *SyncRun) error {
	if strategy == StrategyPlansOnly {
		result, err := e.MonitorPlans(ctx, opts)
		if err != nil {
			return err
		}
		run.Processed = len(result.NewPlans) + len(result.ExistingPlans)
		run.PlansDiscovered = len(result.NewPlans)
		run.Errors = result.Errors
		return nil
	}

	candidates, err := e.selectCandidates(ctx, strategy, opts)
	if err != nil {
		return fmt.Errorf("failed to query sync candidates: %w", err)
	}

	logger.WithField("candidates", len(candidates)).Debug("Selected sync candidates")

	var runMu stdsync.Mutex
	async.Batch(ctx, candidates, e.workers, "subscription-reconcile", e.recordTimeout,
		func(taskCtx context.Context, sub *billing.Subscription) error {
			outcome := e.reconcile(taskCtx, opts, sub)

			runMu.Lock()
			run.Processed++
			if outcome.updated {
				run.Updated++
			}
			run.PlansDiscovered += outcome.discovered
			run.Errors = append(run.Errors, outcome.errs...)
			runMu.Unlock()
			return nil
		})

	return nil
}

// selectCandidates maps a strategy to a store filter. The switch is
// closed; anything unexpected degrades to the active-only set.
func (e *Engine) selectCandidates(ctx context.Context, strategy Strategy, opts Options) ([]*billing.Subscription, error) {
	filter := storage.SubscriptionFilter{
		RequireProviderID: true,
		Limit:             opts.Limit,
	}

	switch strategy {
	case StrategyFull:
		// No additional constraint.
	case StrategyIncremental:
		since := e.LastSyncTime()
		if !since.IsZero() {
			filter.UpdatedAfter = &since
		}
	case StrategyActiveOnly:
		filter.Status = billing.SubscriptionStatusActive
	default:
		filter.Status = billing.SubscriptionStatusActive
	}

	return e.store.ListSubscriptions(ctx, filter)
}

type reconcileOutcome struct {
	updated    bool
	discovered int
	errs       []SyncError
}

// reconcile converges one local record on the provider's state. Every
// failure is captured as a SyncError; the method never aborts the run.
func (e *Engine) reconcile(ctx context.Context, opts Options, sub *billing.Subscription) reconcileOutcome {
	ctx, span := e.tracer.Start(ctx, "sync.reconcile",
		trace.WithAttributes(attribute.String("subscription.id", sub.StripeSubscriptionID)))
	defer span.End()

	var outcome reconcileOutcome
	logger := observability.FromContext(ctx).WithField("subscription_id", sub.StripeSubscriptionID)

	start := time.Now()
	remote, err := e.provider.GetSubscription(ctx, sub.StripeSubscriptionID)
	e.metrics.RecordProviderCall("get_subscription", time.Since(start), err)
	if err != nil {
		e.metrics.RecordOutcome("error")
		logger.WithError(err).Warn("Failed to retrieve subscription from provider")
		outcome.errs = append(outcome.errs, SyncError{
			SubscriptionID: sub.StripeSubscriptionID,
			Message:        fmt.Sprintf("provider lookup failed: %v", err),
		})
		return outcome
	}

	if NeedsUpdate(sub, remote) {
		update := BuildUpdate(remote)
		if err := e.store.UpdateSubscriptionFields(ctx, sub.StripeSubscriptionID, update); err != nil {
			e.metrics.RecordOutcome("error")
			logger.WithError(err).Warn("Failed to write subscription update")
			outcome.errs = append(outcome.errs, SyncError{
				SubscriptionID: sub.StripeSubscriptionID,
				Message:        fmt.Sprintf("update failed: %v", err),
			})
		} else {
			outcome.updated = true
			e.metrics.RecordOutcome("updated")
			logger.WithField("status", string(remote.Status)).Debug("Subscription updated")
		}
	} else {
		e.metrics.RecordOutcome("unchanged")
	}

	n, errs := e.ensurePlanKnown(ctx, sub.StripeSubscriptionID, remote.PriceID, opts.autoAdd())
	outcome.discovered += n
	outcome.errs = append(outcome.errs, errs...)

	return outcome
}

// ensurePlanKnown checks whether the store knows the given price id and
// triggers discovery when it does not. Returns the number of plans
// discovered (0 or 1) and any failures, attributed to the subscription
// whose record surfaced the price id.
func (e *Engine) ensurePlanKnown(ctx context.Context, subscriptionID, priceID string, persist bool) (int, []SyncError) {
	if priceID == "" {
		return 0, nil
	}

	logger := observability.FromContext(ctx)

	_, err := e.store.GetPlanByPriceIDOrName(ctx, priceID, "")
	if err == nil {
		return 0, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return 0, []SyncError{{
			SubscriptionID: subscriptionID,
			Message:        fmt.Sprintf("plan lookup failed for price %s: %v", priceID, err),
		}}
	}

	start := time.Now()
	plan, err := e.discoverer.Discover(ctx, priceID, persist)
	e.metrics.RecordProviderCall("get_price", time.Since(start), err)
	if err != nil {
		logger.WithError(err).WithField("price_id", priceID).Warn("Plan discovery failed")
		return 0, []SyncError{{
			SubscriptionID: subscriptionID,
			Message:        fmt.Sprintf("plan discovery failed for price %s: %v", priceID, err),
		}}
	}

	e.metrics.RecordDiscovery()
	logger.WithFields(map[string]interface{}{
		"price_id": priceID,
		"plan":     plan.Name,
	}).Info("Discovered new plan")
	return 1, nil
}

// maybeNotify delivers a run summary when the run surfaced anything an
// operator should see. Delivery is fire-and-forget; a notification
// failure never affects the run result.
func (e *Engine) maybeNotify(run *SyncRun) {
	if e.notifier == nil {
		return
	}
	if len(run.Errors) == 0 && run.PlansDiscovered == 0 {
		return
	}

	summary := summarize(run)
	async.SafeGo(context.Background(), notifyTimeout, "sync-notification", func(ctx context.Context) error {
		return e.notifier.Notify(ctx, summary)
	})
}

func summarize(run *SyncRun) *notify.Summary {
	s := &notify.Summary{
		RunID:           run.ID,
		Strategy:        string(run.Strategy),
		StartedAt:       run.StartedAt,
		CompletedAt:     run.CompletedAt,
		Processed:       run.Processed,
		Updated:         run.Updated,
		PlansDiscovered: run.PlansDiscovered,
	}
	for _, e := range run.Errors {
		s.Errors = append(s.Errors, notify.ErrorDetail{
			SubscriptionID: e.SubscriptionID,
			Message:        e.Message,
		})
	}
	return s
}
