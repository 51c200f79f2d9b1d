package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalogsync_runs_total",
			Help: "Total number of sync runs by terminal status",
		},
		[]string{"status"},
	)

	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "catalogsync_run_duration_seconds",
			Help:    "Duration of sync runs in seconds",
			Buckets: prometheus.ExponentialBuckets(15, 2, 10), // 15s .. ~2h
		},
	)

	LastRunTimestamp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "catalogsync_last_run_timestamp_seconds",
			Help: "Unix time of the last finished run by status",
		},
		[]string{"status"},
	)

	ItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalogsync_items_total",
			Help: "Catalog items handled by media type and outcome",
		},
		[]string{"media_type", "outcome"},
	)

	APICallsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalogsync_api_calls_total",
			Help: "Upstream catalog API requests sent, including retries",
		},
	)

	APIRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalogsync_api_retries_total",
			Help: "Upstream catalog API requests retried after a transient failure",
		},
	)

	CircuitBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalogsync_circuit_breaker_state",
			Help: "Upstream circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)

	PersonCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalogsync_person_cache_hits_total",
			Help: "Person detail lookups served from the run cache",
		},
	)

	KPIsComputed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalogsync_kpis_computed",
			Help: "Number of KPIs written by the last KPI run",
		},
	)

	KPIErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalogsync_kpi_errors_total",
			Help: "KPI category computations that failed",
		},
		[]string{"category"},
	)
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
