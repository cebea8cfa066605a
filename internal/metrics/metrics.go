package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WebviewsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "timeline_webviews_active",
		Help: "Currently connected webview sessions",
	})

	WebviewsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "timeline_webviews_total",
		Help: "Total webview sessions served",
	})

	RecordsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trace_records_ingested_total",
		Help: "Trace records accepted from CLI pushes",
	})

	IngestBatches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trace_push_batches_total",
		Help: "Trace push requests accepted",
	})

	TimelineBuilds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "timeline_builds_total",
		Help: "Timeline rebuilds performed",
	})

	TimelineBuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "timeline_build_duration_seconds",
		Help:    "Wall time of one timeline rebuild",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	})

	SpansPerBuild = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "timeline_spans_per_build",
		Help:    "Span count of produced timelines",
		Buckets: []float64{10, 50, 100, 500, 1000, 5000, 10000, 50000},
	})

	FamiliesPerBuild = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "timeline_families_per_build",
		Help:    "Family count of produced timelines",
		Buckets: []float64{10, 50, 100, 500, 1000, 5000, 10000, 50000},
	})

	HighlightRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "timeline_highlight_requests_total",
		Help: "Highlight frames relayed to editor peers",
	})
)

// ObserveBuild records one timeline rebuild across all build metrics,
// whichever path (webview push or HTTP) triggered it.
func ObserveBuild(d time.Duration, spans, families int) {
	TimelineBuilds.Inc()
	TimelineBuildDuration.Observe(d.Seconds())
	SpansPerBuild.Observe(float64(spans))
	FamiliesPerBuild.Observe(float64(families))
}
