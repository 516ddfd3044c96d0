// Package async provides small helpers for running work off the calling
// goroutine without leaking goroutines or crashing the process.
//
// SafeGo wraps fire-and-forget work with a timeout and panic recovery;
// Batch fans a slice of items out over a bounded worker pool and collects
// the failures. The sync engine uses Batch for the per-record walk and
// SafeGo for operator notifications.
package async
