// Package metrics defines the Prometheus instrumentation for videoshelf.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "videoshelf_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "videoshelf_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "videoshelf_http_requests_in_flight",
			Help: "Number of HTTP requests currently being served",
		},
	)
)

// Scan pipeline metrics
var (
	ScanRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "videoshelf_scan_runs_total",
			Help: "Total number of scan runs by outcome",
		},
		[]string{"outcome"},
	)

	ScanRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "videoshelf_scan_running",
			Help: "Whether a scan is currently running (1 = running, 0 = idle)",
		},
	)

	ScanLastRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "videoshelf_scan_last_run_duration_seconds",
			Help: "Duration of the last scan run in seconds",
		},
	)

	ScanFilesProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "videoshelf_scan_files_processed_total",
			Help: "Total number of files successfully processed by scans",
		},
	)

	ScanFilesFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "videoshelf_scan_files_failed_total",
			Help: "Total number of per-file failures during scans",
		},
	)

	ScanDirErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "videoshelf_scan_directory_errors_total",
			Help: "Total number of unreadable directories skipped during enumeration",
		},
	)

	ScanRecordsTombstoned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "videoshelf_scan_records_tombstoned_total",
			Help: "Total number of records tombstoned by reconciliation sweeps",
		},
		[]string{"sweep"}, // "missing", "excluded"
	)
)

// Record store metrics
var (
	StoreQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "videoshelf_store_queries_total",
			Help: "Total number of record store operations",
		},
		[]string{"operation", "status"},
	)

	StoreQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "videoshelf_store_query_duration_seconds",
			Help:    "Record store operation duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	StoreLockRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "videoshelf_store_lock_retries_total",
			Help: "Total number of retries waiting for the store file lock",
		},
	)
)

// Thumbnail metrics
var (
	ThumbnailsGenerated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "videoshelf_thumbnails_generated_total",
			Help: "Total number of thumbnails generated",
		},
	)

	ThumbnailCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "videoshelf_thumbnail_cache_hits_total",
			Help: "Total number of thumbnail requests satisfied by an existing file",
		},
	)

	ThumbnailFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "videoshelf_thumbnail_failures_total",
			Help: "Total number of failed thumbnail generations",
		},
	)

	ThumbnailsSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "videoshelf_thumbnails_swept_total",
			Help: "Total number of orphaned thumbnails removed by the sweep",
		},
	)
)
