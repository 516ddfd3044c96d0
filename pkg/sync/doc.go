// Package sync implements the subscription reconciliation engine.
//
// # Overview
//
// The engine keeps locally stored subscription records consistent with
// the authoritative state held by the billing provider, and discovers
// pricing plans the store has never seen. Each invocation is one run:
//
//	engine := sync.NewEngine(store, provider, sync.WithNotifier(n))
//	run, err := engine.RunSync(ctx, sync.StrategyActiveOnly, sync.Options{})
//
// A strategy selects the candidate set (all records, active records,
// records changed since the last successful run, or a plans-only
// monitoring pass). Candidates are walked by a bounded worker pool; a
// single record's failure is recorded on the run and never aborts it.
// The one engine-level failure mode is the candidate query itself.
//
// The engine never deletes records and never moves money; it only writes
// status/period drift back to the store and inserts newly discovered
// plans.
//
// # Related Packages
//
//   - pkg/billing: provider client and record types
//   - pkg/storage: the store the engine reconciles against
//   - pkg/notify: operator notification of run summaries
package sync
