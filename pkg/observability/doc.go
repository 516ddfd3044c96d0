// Package observability provides structured logging, Prometheus metrics,
// health probes, and optional OpenTelemetry wiring for the sync daemon.
//
// Logging uses stdlib slog with a JSON handler behind a small chaining
// API (WithField/WithError). Metrics cover run outcomes, per-record
// results, plan discoveries, and provider call latency; they are exposed
// together with the health probes on a dedicated operations port so the
// scheduler-facing process surface stays untouched.
//
// OpenTelemetry export (OTLP over gRPC) is disabled by default and only
// initialized when configured, so local runs carry no collector
// dependency.
package observability
