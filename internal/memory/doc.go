// Package memory provides heap-pressure backpressure for background
// thumbnail generation.
//
// A Monitor samples the Go heap against a soft limit (explicit, or
// GOMEMLIMIT). Once usage crosses the pause ratio, background tasks block in
// WaitIfPaused until usage drops below the resume ratio. Interactive work is
// never paused. Without any limit the monitor stays disabled.
package memory
