package sync

import (
	"errors"
	"strings"
	"time"
)

// Strategy selects the candidate set for a sync run. The enumeration is
// closed: every switch over Strategy carries an explicit default arm
// falling back to StrategyActiveOnly.
type Strategy string

const (
	// StrategyFull reconciles every record carrying a provider
	// subscription id.
	StrategyFull Strategy = "full"

	// StrategyIncremental reconciles records updated after the previous
	// successful run. With no prior run it behaves like StrategyFull for
	// that invocation.
	StrategyIncremental Strategy = "incremental"

	// StrategyActiveOnly reconciles records with status "active". This is
	// also the fallback for unrecognized strategies.
	StrategyActiveOnly Strategy = "active_only"

	// StrategyPlansOnly skips subscription reconciliation and only runs
	// the plan discovery monitoring pass.
	StrategyPlansOnly Strategy = "plans_only"
)

// ParseStrategy maps a string to a Strategy, falling back to
// StrategyActiveOnly for anything unrecognized. The fallback is a
// documented degradation, not an error.
func ParseStrategy(s string) Strategy {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case StrategyFull:
		return StrategyFull
	case StrategyIncremental:
		return StrategyIncremental
	case StrategyActiveOnly:
		return StrategyActiveOnly
	case StrategyPlansOnly:
		return StrategyPlansOnly
	default:
		return StrategyActiveOnly
	}
}

// Options carries per-run tuning. The zero value is valid: no limit,
// discoveries persisted.
type Options struct {
	// Limit caps the candidate count; zero means unlimited.
	Limit int

	// AutoAdd controls whether the monitoring pass persists discovered
	// plans. nil and true persist; explicitly false computes plans
	// without writing them (dry-run).
	AutoAdd *bool
}

func (o Options) autoAdd() bool {
	return o.AutoAdd == nil || *o.AutoAdd
}

// ErrSyncInProgress is returned when RunSync is called while another run
// is active. The caller's scheduler is expected to prevent overlap; this
// guard protects the shared last-sync state if it does not.
var ErrSyncInProgress = errors.New("sync already in progress")

// SyncError is one per-record failure from a run
type SyncError struct {
	SubscriptionID string `json:"subscription_id"`
	Message        string `json:"message"`
}

// SyncRun summarizes a single engine execution
type SyncRun struct {
	ID              string      `json:"id"`
	Strategy        Strategy    `json:"strategy"`
	StartedAt       time.Time   `json:"started_at"`
	CompletedAt     time.Time   `json:"completed_at"`
	Processed       int         `json:"processed"`
	Updated         int         `json:"updated"`
	PlansDiscovered int         `json:"plans_discovered"`
	Errors          []SyncError `json:"errors,omitempty"`
}

// MonitorResult is the outcome of a plans-only monitoring pass
type MonitorResult struct {
	NewPlans      []string    `json:"new_plans"`
	ExistingPlans []string    `json:"existing_plans"`
	Errors        []SyncError `json:"errors,omitempty"`
}
