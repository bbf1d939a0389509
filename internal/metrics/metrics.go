// Package metrics provides Prometheus metrics for the console.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Collection metrics
	collectionLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gg_collection_loads_total",
			Help: "Total collection loads by terminal state",
		},
		[]string{"status"},
	)

	collectionLoadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gg_collection_load_duration_seconds",
			Help:    "Time from listing start to publish",
			Buckets: prometheus.DefBuckets,
		},
	)

	enrichmentFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gg_enrichment_failures_total",
			Help: "Per-file metadata and preview fetch failures",
		},
		[]string{"stage"},
	)

	// Batch executor metrics
	batchOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gg_batch_operations_total",
			Help: "Batch executor runs by operation and outcome",
		},
		[]string{"op", "status"},
	)

	// Preview metrics
	previewHandlesLive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gg_preview_handles_live",
			Help: "Number of live preview handles",
		},
	)

	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gg_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gg_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordLoad records a finished collection load.
func RecordLoad(status string, duration time.Duration) {
	collectionLoadsTotal.WithLabelValues(status).Inc()
	collectionLoadDuration.Observe(duration.Seconds())
}

// RecordEnrichmentFailure records one degraded per-file fetch.
// Stage is "metadata" or "preview".
func RecordEnrichmentFailure(stage string) {
	enrichmentFailuresTotal.WithLabelValues(stage).Inc()
}

// RecordBatch records a batch executor run.
func RecordBatch(op, status string) {
	batchOperationsTotal.WithLabelValues(op, status).Inc()
}

// SetPreviewHandles updates the live preview handle gauge.
func SetPreviewHandles(n int) {
	previewHandlesLive.Set(float64(n))
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
