// Package metrics provides Prometheus metrics collection for Coreplane.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds all Prometheus metrics for Coreplane.
type Collector struct {
	// Request metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Snapshot metrics
	SnapshotCacheHits     prometheus.Counter
	SnapshotCacheMisses   prometheus.Counter
	SnapshotBuildDuration prometheus.Histogram
	SnapshotBuildFailures *prometheus.CounterVec

	// Quota metrics
	QuotaChecks  *prometheus.CounterVec
	QuotaDenials *prometheus.CounterVec
	UsageRecords *prometheus.CounterVec

	// Suspension metrics
	SuspensionsCreated  *prometheus.CounterVec
	SuspensionsResolved *prometheus.CounterVec
	ActiveSuspensions   prometheus.Gauge
	CheckRunDuration    prometheus.Histogram

	// Break-glass metrics
	BreakGlassValidations *prometheus.CounterVec
	OverrideActions       *prometheus.CounterVec

	// Config metrics
	ConfigReloads      prometheus.Counter
	ConfigReloadErrors prometheus.Counter
	ConfigLastReload   prometheus.Gauge
}

// New creates a new metrics collector with all metrics registered on the
// default registry.
func New() *Collector {
	return newWith(promauto.With(prometheus.DefaultRegisterer))
}

// NewWithRegistry creates a new metrics collector with a custom registry.
// Useful for testing to avoid global state.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	return newWith(promauto.With(reg))
}

func newWith(factory promauto.Factory) *Collector {
	return &Collector{
		// Request metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "coreplane",
				Name:      "requests_total",
				Help:      "Total number of requests processed",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "coreplane",
				Name:      "request_duration_seconds",
				Help:      "Request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path", "status"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "coreplane",
				Name:      "requests_in_flight",
				Help:      "Number of requests currently being processed",
			},
		),

		// Snapshot metrics
		SnapshotCacheHits: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "coreplane",
				Name:      "snapshot_cache_hits_total",
				Help:      "Total number of snapshot reads served from cache",
			},
		),
		SnapshotCacheMisses: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "coreplane",
				Name:      "snapshot_cache_misses_total",
				Help:      "Total number of snapshot reads that required a rebuild",
			},
		),
		SnapshotBuildDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "coreplane",
				Name:      "snapshot_build_duration_seconds",
				Help:      "Snapshot assembly duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
		),
		SnapshotBuildFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "coreplane",
				Name:      "snapshot_build_failures_total",
				Help:      "Total number of snapshot builds that failed",
			},
			[]string{"reason"},
		),

		// Quota metrics
		QuotaChecks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "coreplane",
				Name:      "quota_checks_total",
				Help:      "Total number of quota checks by outcome",
			},
			[]string{"service", "allowed"},
		),
		QuotaDenials: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "coreplane",
				Name:      "quota_denials_total",
				Help:      "Total number of denied quota checks by reason",
			},
			[]string{"service", "reason"},
		),
		UsageRecords: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "coreplane",
				Name:      "usage_records_total",
				Help:      "Total usage records accepted, by service and metric",
			},
			[]string{"service", "metric"},
		),

		// Suspension metrics
		SuspensionsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "coreplane",
				Name:      "suspensions_created_total",
				Help:      "Total number of suspensions created",
			},
			[]string{"trigger"},
		),
		SuspensionsResolved: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "coreplane",
				Name:      "suspensions_resolved_total",
				Help:      "Total number of suspensions resolved",
			},
			[]string{"trigger"},
		),
		ActiveSuspensions: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "coreplane",
				Name:      "active_suspensions",
				Help:      "Number of currently active suspensions",
			},
		),
		CheckRunDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "coreplane",
				Name:      "suspension_check_run_duration_seconds",
				Help:      "Duration of a full suspension check run in seconds",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
		),

		// Break-glass metrics
		BreakGlassValidations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "coreplane",
				Name:      "breakglass_validations_total",
				Help:      "Total number of break-glass token validations by outcome",
			},
			[]string{"valid", "reason"},
		),
		OverrideActions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "coreplane",
				Name:      "override_actions_total",
				Help:      "Total number of break-glass override actions executed",
			},
			[]string{"action"},
		),

		// Config metrics
		ConfigReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "coreplane",
				Name:      "config_reloads_total",
				Help:      "Total number of successful config reloads",
			},
		),
		ConfigReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "coreplane",
				Name:      "config_reload_errors_total",
				Help:      "Total number of config reload errors",
			},
		),
		ConfigLastReload: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "coreplane",
				Name:      "config_last_reload_timestamp",
				Help:      "Unix timestamp of last successful config reload",
			},
		),
	}
}
