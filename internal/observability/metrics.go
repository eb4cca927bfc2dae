package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "rainfall_ari"

// Metrics holds the Prometheus counters, histograms, and gauges for the ARI pipeline.
type Metrics struct {
	LocationsProcessed *prometheus.CounterVec // labels: kind={gauge,catchment}
	ARIResultsComputed prometheus.Counter
	SamplesSkipped     *prometheus.CounterVec // labels: reason
	SamplesExcluded    prometheus.Counter
	Rejections         *prometheus.CounterVec // labels: rule
	Verdicts           *prometheus.CounterVec // labels: status
	PipelineRunning    prometheus.Gauge

	// Run metrics.
	RunDuration      prometheus.Histogram
	LastRunTimestamp prometheus.Gauge

	// Upstream source metrics.
	SourceRequests    *prometheus.CounterVec   // labels: method={series,membership}, outcome={success,error,not_found}
	SourceCache       *prometheus.CounterVec   // labels: result={hit,miss}
	SourceAPIDuration *prometheus.HistogramVec // labels: method

	// Sink metrics.
	SinkWrites *prometheus.CounterVec // labels: sink, outcome={success,error}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.LocationsProcessed,
		m.ARIResultsComputed,
		m.SamplesSkipped,
		m.SamplesExcluded,
		m.Rejections,
		m.Verdicts,
		m.PipelineRunning,
		m.RunDuration,
		m.LastRunTimestamp,
		m.SourceRequests,
		m.SourceCache,
		m.SourceAPIDuration,
		m.SinkWrites,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		LocationsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "locations_processed_total",
			Help:      "Gauges and catchments processed, by kind.",
		}, []string{"kind"}),
		ARIResultsComputed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ari_results_total",
			Help:      "ARI values computed.",
		}),
		SamplesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_skipped_total",
			Help:      "Samples the ARI engine could not evaluate, by reason.",
		}, []string{"reason"}),
		SamplesExcluded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_excluded_total",
			Help:      "Samples excluded by the value-range rule.",
		}),
		Rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejections_total",
			Help:      "Series and catchments rejected, by quality rule.",
		}, []string{"rule"}),
		Verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verdicts_total",
			Help:      "Alarm validation verdicts, by status.",
		}, []string{"status"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a run is in progress, 0 otherwise.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete pipeline run.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}),
		LastRunTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
		SourceRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_total",
			Help:      "Upstream data source requests by method and outcome.",
		}, []string{"method", "outcome"}),
		SourceCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_cache_total",
			Help:      "Catchment membership cache lookups by result.",
		}, []string{"result"}),
		SourceAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_api_duration_seconds",
			Help:      "Upstream API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"method"}),
		SinkWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_writes_total",
			Help:      "Report writes by sink and outcome.",
		}, []string{"sink", "outcome"}),
	}
}
