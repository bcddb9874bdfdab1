// Package metrics provides Prometheus instrumentation for the media library.
//
// All metrics are package-level collectors registered through promauto and
// prefixed with "media_library_". They fall into these groups:
//
//   - HTTP: request counts, durations and in-flight requests of the ops server.
//   - Database: query counts and durations, write transaction hold time.
//   - Transaction gate: wait time and start outcomes.
//   - Thumbnails: generations per tier, chain duration, cache hits and misses,
//     dedup outcomes, reported errors, invalidations and LCD aging.
//   - Manager: accepted requests, deliveries per pass, queue depth, live requests.
//   - Scheduler: executed and dropped tasks, queue depth per priority.
//   - Indexer, library and memory gauges.
//   - Filesystem: operation latency and stale-handle retries, recorded through
//     the filesystem.Observer returned by NewFilesystemObserver.
//
// Call InitializeMetrics once at startup so that labelled series exist
// before the first scrape.
package metrics
