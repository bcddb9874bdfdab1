// Package telemetry reports thumbnail pipeline failures.
package telemetry

import (
	"path/filepath"
	"runtime"
	"sync"

	"media-library/internal/logging"
	"media-library/internal/metrics"
)

// Kind classifies a reported failure.
type Kind string

const (
	KindLoad     Kind = "load"
	KindCompress Kind = "compress"
	KindPersist  Kind = "persist"
	KindMetadata Kind = "metadata"
)

// Event describes one failure.
type Event struct {
	File   string
	Line   int
	Code   int32
	Path   string
	OpKind string
	Err    error
}

// Sink receives failure events.
type Sink interface {
	ReportError(kind Kind, ev Event)
}

// Here fills File and Line with the caller's location.
func Here(ev Event) Event {
	return At(ev, 1)
}

// At fills File and Line with the location skip frames above its caller.
// Reporting helpers pass 1 so events point at the failing call site
// rather than at the helper.
func At(ev Event, skip int) Event {
	if _, file, line, ok := runtime.Caller(skip + 1); ok {
		ev.File = filepath.Base(file)
		ev.Line = line
	}
	return ev
}

// LogSink logs events and counts them by kind.
type LogSink struct{}

// ReportError implements Sink.
func (LogSink) ReportError(kind Kind, ev Event) {
	metrics.ThumbnailErrors.WithLabelValues(string(kind)).Inc()
	logging.Error("thumbnail %s failure at %s:%d code=%d op=%s path=%s: %v",
		kind, ev.File, ev.Line, ev.Code, ev.OpKind, ev.Path, ev.Err)
}

// Recorder keeps events in memory. Safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Recorded
}

// Recorded is an event captured by a Recorder.
type Recorded struct {
	Kind  Kind
	Event Event
}

// ReportError implements Sink.
func (r *Recorder) ReportError(kind Kind, ev Event) {
	r.mu.Lock()
	r.events = append(r.events, Recorded{Kind: kind, Event: ev})
	r.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Recorded(nil), r.events...)
}
