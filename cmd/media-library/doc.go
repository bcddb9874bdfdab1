// Package main documents the media library service. The entry point lives
// in the module root (main.go); this directory carries the wiring tests.
//
// # Application Lifecycle
//
//  1. Configuration: .env is loaded, then environment variables are read
//     and validated (see [media-library/internal/startup]).
//  2. Database: the SQLite asset store is opened and migrated.
//  3. Pipeline:
//     - Transaction gate over the store's single write transaction
//     - Memory monitor that pauses background work under heap pressure
//     - Background task scheduler (one worker, foreground first)
//     - Thumbnail engine with the dedup wait registry
//     - Pixel request manager (fast and quality worker pools) and the
//     delivery loop its callbacks run on
//  4. Indexing: the initial and periodic index passes, and the file
//     watcher when WATCH_ENABLED is set.
//  5. HTTP: the ops API, health probes and Prometheus metrics.
//  6. Graceful shutdown on SIGINT/SIGTERM.
//
// # Graceful Shutdown
//
//  1. Shut down the HTTP server (30s timeout)
//  2. Stop the watcher, handling events already queued
//  3. Stop the indexer (the current batch commits or rolls back)
//  4. Drop queued background tasks and stop the scheduler
//  5. Close the delivery loop, then the request manager
//  6. Stop the metrics collector and memory monitor
//  7. Close the database
//
// # Build Requirements
//
// CGO is required for SQLite and libvips. FFmpeg is used for video frames
// and for image formats the Go decoders do not handle:
//
//	go build -o media-library .
//
// # Related Packages
//
//   - [media-library/internal/thumbnail]: Generation engine and dedup registry
//   - [media-library/internal/manager]: Fast and quality pixel requests
//   - [media-library/internal/asyncworker]: Background task scheduler
//   - [media-library/internal/txgate]: Write transaction gate
//   - [media-library/internal/indexer]: Directory scanning and watching
//   - [media-library/internal/handlers]: Ops HTTP API
package main
