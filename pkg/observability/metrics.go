package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the sync daemon. A nil
// *Metrics is valid and turns every record call into a no-op, which keeps
// tests and metric-less deployments free of registry plumbing.
type Metrics struct {
	// Run metrics
	SyncRunsTotal   *prometheus.CounterVec
	SyncRunDuration *prometheus.HistogramVec
	SyncInFlight    prometheus.Gauge
	LastSyncSuccess prometheus.Gauge

	// Per-record metrics
	RecordsProcessedTotal *prometheus.CounterVec

	// Discovery metrics
	PlansDiscoveredTotal prometheus.Counter

	// Provider metrics
	ProviderCallDuration *prometheus.HistogramVec
	ProviderErrorsTotal  *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		SyncRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bazaar_sync_runs_total",
				Help: "Total number of sync runs",
			},
			[]string{"strategy", "status"},
		),
		SyncRunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bazaar_sync_run_duration_seconds",
				Help:    "Sync run duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
			},
			[]string{"strategy"},
		),
		SyncInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "bazaar_sync_in_flight",
				Help: "Whether a sync run is currently executing",
			},
		),
		LastSyncSuccess: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "bazaar_sync_last_success_timestamp_seconds",
				Help: "Unix timestamp of the last successful sync run",
			},
		),
		RecordsProcessedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bazaar_sync_records_processed_total",
				Help: "Total number of subscription records processed",
			},
			[]string{"outcome"},
		),
		PlansDiscoveredTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "bazaar_sync_plans_discovered_total",
				Help: "Total number of newly discovered plans",
			},
		),
		ProviderCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bazaar_provider_call_duration_seconds",
				Help:    "Billing provider call duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"call"},
		),
		ProviderErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bazaar_provider_errors_total",
				Help: "Total number of failed billing provider calls",
			},
			[]string{"call"},
		),
	}

	registry.MustRegister(
		m.SyncRunsTotal,
		m.SyncRunDuration,
		m.SyncInFlight,
		m.LastSyncSuccess,
		m.RecordsProcessedTotal,
		m.PlansDiscoveredTotal,
		m.ProviderCallDuration,
		m.ProviderErrorsTotal,
	)

	return m
}

// RecordRunStart marks a run as in flight
func (m *Metrics) RecordRunStart() {
	if m == nil {
		return
	}
	m.SyncInFlight.Set(1)
}

// RecordRunEnd records the outcome and duration of a run
func (m *Metrics) RecordRunEnd(strategy, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.SyncInFlight.Set(0)
	m.SyncRunsTotal.WithLabelValues(strategy, status).Inc()
	m.SyncRunDuration.WithLabelValues(strategy).Observe(duration.Seconds())
	if status == "success" {
		m.LastSyncSuccess.SetToCurrentTime()
	}
}

// RecordOutcome counts one processed record by outcome
// (updated, unchanged, error)
func (m *Metrics) RecordOutcome(outcome string) {
	if m == nil {
		return
	}
	m.RecordsProcessedTotal.WithLabelValues(outcome).Inc()
}

// RecordDiscovery counts one newly discovered plan
func (m *Metrics) RecordDiscovery() {
	if m == nil {
		return
	}
	m.PlansDiscoveredTotal.Inc()
}

// RecordProviderCall records the latency and outcome of a provider call
func (m *Metrics) RecordProviderCall(call string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.ProviderCallDuration.WithLabelValues(call).Observe(duration.Seconds())
	if err != nil {
		m.ProviderErrorsTotal.WithLabelValues(call).Inc()
	}
}

// Handler returns the HTTP handler exposing the registry
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
