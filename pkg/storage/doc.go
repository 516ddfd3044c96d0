// Package storage defines the persistence surface for subscription and
// plan records.
//
// # Overview
//
// The sync engine talks to a SubscriptionStore, never to a database
// directly. The canonical implementation lives in pkg/storage/postgres
// (PostgreSQL via database/sql), optionally wrapped by a read-through
// plan cache (in-process LRU in front of Redis).
//
// Plan inserts are idempotent: InsertPlan uses insert-if-absent semantics
// keyed on the provider price id, so two concurrent discoveries of the
// same price converge on a single row.
//
// # Related Packages
//
//   - pkg/billing: the record types stored here
//   - pkg/sync: the engine driving reads and writes
package storage
