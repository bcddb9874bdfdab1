// Package startup handles configuration loading and startup/shutdown logging.
//
// # Configuration
//
// [LoadConfig] reads environment variables. [LoadDotEnv] can seed them from
// a .env file first; variables already set in the environment win.
//
//   - MEDIA_DIR: media directory to index (default: /media)
//   - CACHE_DIR: artifact cache root (default: /cache)
//   - DATABASE_DIR: database directory (default: /database)
//   - PORT: ops HTTP port (default: 8080)
//   - METRICS_ENABLED: serve /metrics (default: true)
//   - SCREEN_SIZE: LCD long edge in pixels (default: 1080)
//   - THUMB_WAIT_TIMEOUT: bound on waiting for another producer (default: 5s)
//   - THUMB_WAIT_FAIL: fail instead of regenerating after that wait (default: false)
//   - TX_WAIT_TIMEOUT: bound on waiting for the write transaction gate (default: 1s)
//   - LCD_KEEP: LCD artifacts kept by the aging pass (default: 100)
//   - FAST_THUMB_WORKERS / QUALITY_THUMB_WORKERS: request pools (default: 3 / 2)
//   - INDEX_ON_START: index the media directory at startup (default: true)
//   - INDEX_INTERVAL: full re-index interval, 0 disables (default: 6h)
//   - WATCH_ENABLED: react to file close and import events (default: true)
//   - LOG_LEVEL: debug, info, warn, error (default: info)
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo].
package startup
