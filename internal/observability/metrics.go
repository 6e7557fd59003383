package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for a run.
type Metrics struct {
	GaugesProcessed prometheus.Counter
	GaugeFailures   prometheus.Counter
	GaugesSkipped   prometheus.Counter
	QueryRetries    prometheus.Counter
	RunActive       prometheus.Gauge

	// Export metrics.
	FeaturesFetched    prometheus.Counter
	ArchivesWritten    prometheus.Counter
	ExportTasksStarted prometheus.Counter

	// Remote query metrics.
	QueryRequests *prometheus.CounterVec   // labels: op={fetch,export}, outcome={success,error}
	QueryDuration *prometheus.HistogramVec // labels: op={fetch,export}
}

// NewMetrics creates and registers all run metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.GaugesProcessed,
		m.GaugeFailures,
		m.GaugesSkipped,
		m.QueryRetries,
		m.RunActive,
		m.FeaturesFetched,
		m.ArchivesWritten,
		m.ExportTasksStarted,
		m.QueryRequests,
		m.QueryDuration,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		GaugesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "subbasins",
			Name:      "gauges_processed_total",
			Help:      "Total gauges for which processing was attempted.",
		}),
		GaugeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "subbasins",
			Name:      "gauge_failures_total",
			Help:      "Total gauges that failed after retries.",
		}),
		GaugesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "subbasins",
			Name:      "gauges_skipped_total",
			Help:      "Total gauges whose buffer matched no sub-basins.",
		}),
		QueryRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "subbasins",
			Name:      "query_retries_total",
			Help:      "Total per-gauge export retries after transient errors.",
		}),
		RunActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "subbasins",
			Name:      "run_active",
			Help:      "1 while the gauge loop is running, 0 otherwise.",
		}),
		FeaturesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "subbasins",
			Name:      "features_fetched_total",
			Help:      "Total sub-basin features downloaded in client mode.",
		}),
		ArchivesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "subbasins",
			Name:      "archives_written_total",
			Help:      "Total per-gauge shapefile archives written.",
		}),
		ExportTasksStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "subbasins",
			Name:      "export_tasks_started_total",
			Help:      "Total remote export tasks queued in drive mode.",
		}),
		QueryRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "subbasins",
			Name:      "query_requests_total",
			Help:      "Geospatial service requests by operation and outcome.",
		}, []string{"op", "outcome"}),
		QueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "subbasins",
			Name:      "query_duration_seconds",
			Help:      "Geospatial service request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"op"}),
	}
}
