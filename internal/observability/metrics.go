package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// reconciliation pipeline.
type Metrics struct {
	ProjectsNormalized *prometheus.CounterVec // labels: source
	SourceFailures     *prometheus.CounterVec // labels: source
	SourceFreshness    *prometheus.GaugeVec   // labels: source
	PipelineRunning    prometheus.Gauge
	LastRunTimestamp   prometheus.Gauge
	RunDuration        prometheus.Histogram

	// Reconciliation quality metrics.
	TaxonomyGaps           *prometheus.CounterVec // labels: source, kind={resource,status}
	GeocodeLookups         *prometheus.CounterVec // labels: outcome={resolved,unresolved}
	AllocationRenormalized prometheus.Counter
	AmbiguousTechnology    prometheus.Counter
	TransitionsRecorded    *prometheus.CounterVec // labels: attribute
	StatusRegressions      prometheus.Counter
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		ProjectsNormalized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "queue_etl",
			Name:      "projects_normalized_total",
			Help:      "Canonical projects produced per source.",
		}, []string{"source"}),
		SourceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "queue_etl",
			Name:      "source_failures_total",
			Help:      "Fatal per-source ingestion failures.",
		}, []string{"source"}),
		SourceFreshness: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "queue_etl",
			Name:      "source_freshness_timestamp_seconds",
			Help:      "Unix time the source snapshot was last ingested successfully.",
		}, []string{"source"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "queue_etl",
			Name:      "pipeline_running",
			Help:      "1 while a reconciliation run is in flight.",
		}),
		LastRunTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "queue_etl",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last successfully committed run.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "queue_etl",
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete reconciliation run.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}),
		TaxonomyGaps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "queue_etl",
			Name:      "taxonomy_gaps_total",
			Help:      "Distinct raw vocabulary values with no mapping entry.",
		}, []string{"source", "kind"}),
		GeocodeLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "queue_etl",
			Name:      "geocode_lookups_total",
			Help:      "Locality resolutions by outcome.",
		}, []string{"outcome"}),
		AllocationRenormalized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "queue_etl",
			Name:      "allocation_renormalized_total",
			Help:      "Projects whose location fractions failed the sum invariant and were renormalized.",
		}),
		AmbiguousTechnology: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "queue_etl",
			Name:      "ambiguous_technology_total",
			Help:      "Gas plants classified inside the ambiguous turbine/combined-cycle capacity band.",
		}),
		TransitionsRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "queue_etl",
			Name:      "transitions_recorded_total",
			Help:      "Status intervals opened, by attribute.",
		}, []string{"attribute"}),
		StatusRegressions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "queue_etl",
			Name:      "status_regressions_total",
			Help:      "Backward development-stage moves flagged for review.",
		}),
	}

	prometheus.MustRegister(
		m.ProjectsNormalized,
		m.SourceFailures,
		m.SourceFreshness,
		m.PipelineRunning,
		m.LastRunTimestamp,
		m.RunDuration,
		m.TaxonomyGaps,
		m.GeocodeLookups,
		m.AllocationRenormalized,
		m.AmbiguousTechnology,
		m.TransitionsRecorded,
		m.StatusRegressions,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		ProjectsNormalized:     prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "queue_etl", Name: "projects_normalized_total"}, []string{"source"}),
		SourceFailures:         prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "queue_etl", Name: "source_failures_total"}, []string{"source"}),
		SourceFreshness:        prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: "queue_etl", Name: "source_freshness_timestamp_seconds"}, []string{"source"}),
		PipelineRunning:        prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "queue_etl", Name: "pipeline_running"}),
		LastRunTimestamp:       prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "queue_etl", Name: "last_run_timestamp_seconds"}),
		RunDuration:            prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "queue_etl", Name: "run_duration_seconds"}),
		TaxonomyGaps:           prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "queue_etl", Name: "taxonomy_gaps_total"}, []string{"source", "kind"}),
		GeocodeLookups:         prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "queue_etl", Name: "geocode_lookups_total"}, []string{"outcome"}),
		AllocationRenormalized: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "queue_etl", Name: "allocation_renormalized_total"}),
		AmbiguousTechnology:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: "queue_etl", Name: "ambiguous_technology_total"}),
		TransitionsRecorded:    prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "queue_etl", Name: "transitions_recorded_total"}, []string{"attribute"}),
		StatusRegressions:      prometheus.NewCounter(prometheus.CounterOpts{Namespace: "queue_etl", Name: "status_regressions_total"}),
	}
}
