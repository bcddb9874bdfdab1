package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_library_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_library_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_library_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_library_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_library_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBTransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_library_db_transaction_duration_seconds",
			Help:    "Time a write transaction was held open, by outcome",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"outcome"}, // "commit", "rollback"
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_library_db_connections_open",
			Help: "Number of open database connections",
		},
	)
)

// Transaction gate metrics
var (
	TxGateWaitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_library_txgate_wait_duration_seconds",
			Help:    "Time spent waiting for the write transaction gate",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1},
		},
	)

	TxGateOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_library_txgate_starts_total",
			Help: "Transaction gate start attempts by outcome",
		},
		[]string{"outcome"}, // "started", "timeout", "busy", "begin_error"
	)
)

// Thumbnail pipeline metrics
var (
	ThumbnailGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_library_thumbnail_generations_total",
			Help: "Total number of artifact generations by tier and status",
		},
		[]string{"tier", "status"},
	)

	ThumbnailGenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_library_thumbnail_generation_duration_seconds",
			Help:    "Duration of a full generation chain",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"chain"}, // "thumb", "lcd"
	)

	ThumbnailCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_library_thumbnail_cache_hits_total",
			Help: "Requests served from an existing artifact",
		},
	)

	ThumbnailCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_library_thumbnail_cache_misses_total",
			Help: "Requests that required generating an artifact",
		},
	)

	ThumbnailDedupWaits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_library_thumbnail_dedup_total",
			Help: "Dedup registry outcomes",
		},
		[]string{"outcome"}, // "insert", "wait_success", "timeout"
	)

	ThumbnailErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_library_thumbnail_errors_total",
			Help: "Generation failures reported to telemetry, by kind",
		},
		[]string{"kind"},
	)

	ThumbnailInvalidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_library_thumbnail_invalidations_total",
			Help: "Assets whose artifacts were deleted after a source change",
		},
	)

	ThumbnailLCDAged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_library_thumbnail_lcd_aged_total",
			Help: "LCD artifacts removed by the aging pass",
		},
	)
)

// Request manager metrics
var (
	ManagerRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_library_manager_requests_total",
			Help: "Requests accepted by the manager, by first queue",
		},
		[]string{"queue"}, // "fast", "quality"
	)

	ManagerDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_library_manager_deliveries_total",
			Help: "Callback deliveries by pass and result",
		},
		[]string{"pass", "result"}, // pass: fast|quality, result: delivered|skipped|failed
	)

	ManagerQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_library_manager_queue_depth",
			Help: "Requests waiting in each worker queue",
		},
		[]string{"queue"},
	)

	ManagerLiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_library_manager_live_requests",
			Help: "Requests currently tracked in the live map",
		},
	)
)

// Background scheduler metrics
var (
	SchedulerTasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_library_scheduler_tasks_total",
			Help: "Tasks executed by the background scheduler",
		},
		[]string{"priority", "status"}, // priority: foreground|background
	)

	SchedulerQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_library_scheduler_queue_depth",
			Help: "Tasks waiting in each scheduler queue",
		},
		[]string{"priority"},
	)

	SchedulerDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_library_scheduler_dropped_total",
			Help: "Tasks discarded by interrupt or stop",
		},
		[]string{"priority"},
	)
)

// Indexer metrics
var (
	IndexerRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_library_indexer_runs_total",
			Help: "Total number of indexer runs",
		},
	)

	IndexerLastRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_library_indexer_last_run_duration_seconds",
			Help: "Duration of the last indexer run in seconds",
		},
	)

	IndexerFilesProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_library_indexer_files_processed_total",
			Help: "Total number of files processed by the indexer",
		},
	)

	IndexerErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_library_indexer_errors_total",
			Help: "Total number of indexer errors",
		},
	)

	IndexerWatchEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_library_indexer_watch_events_total",
			Help: "File watcher events handled, by operation",
		},
		[]string{"op"},
	)
)

// Library metrics
var (
	MediaAssetsTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_library_assets_total",
			Help: "Indexed assets by kind",
		},
		[]string{"kind"},
	)

	MediaAssetsMissingThumbnail = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_library_assets_missing_thumbnail",
			Help: "Indexed assets without a ready thumbnail",
		},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_library_memory_usage_ratio",
			Help: "Heap in use divided by the configured memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_library_memory_paused",
			Help: "Whether background generation is paused for memory pressure",
		},
	)
)

// Filesystem metrics
var (
	FilesystemOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_library_filesystem_operation_duration_seconds",
			Help:    "Filesystem operation duration by volume and operation",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"volume", "operation"},
	)

	FilesystemOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_library_filesystem_operation_errors_total",
			Help: "Filesystem operation errors by volume and operation",
		},
		[]string{"volume", "operation"},
	)

	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_library_filesystem_retry_attempts_total",
			Help: "Retries after a stale file handle",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_library_filesystem_retry_success_total",
			Help: "Operations that succeeded after retrying",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_library_filesystem_retry_failures_total",
			Help: "Operations that failed after exhausting retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_library_filesystem_retry_duration_seconds",
			Help:    "Total time spent in retried operations",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_library_filesystem_stale_errors_total",
			Help: "ESTALE errors observed",
		},
		[]string{"operation", "volume"},
	)
)

// App info
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_library_app_info",
			Help: "Application build information",
		},
		[]string{"version", "commit", "go_version"},
	)
)
