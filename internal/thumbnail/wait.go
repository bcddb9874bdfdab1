package thumbnail

import (
	"context"
	"sync"
	"time"

	"media-library/internal/metrics"
)

// DefaultWaitTimeout bounds how long a caller waits on another producer.
const DefaultWaitTimeout = 5 * time.Second

// WaitStatus is the outcome of InsertAndWait.
type WaitStatus int

const (
	// WaitInsert means the caller registered the barrier and must produce.
	WaitInsert WaitStatus = iota
	// WaitSuccess means another producer finished while the caller waited.
	WaitSuccess
	// WaitTimeout means the wait ended before the producer finished.
	WaitTimeout
)

func (s WaitStatus) String() string {
	switch s {
	case WaitInsert:
		return "insert"
	case WaitSuccess:
		return "wait_success"
	case WaitTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// TimeoutPolicy says what a producer does after a dedup wait times out.
type TimeoutPolicy int

const (
	// TimeoutRegenerate re-checks the artifact and generates it if still
	// missing, without taking over the other producer's barrier.
	TimeoutRegenerate TimeoutPolicy = iota
	// TimeoutFail returns ErrWaitTimeout.
	TimeoutFail
)

func (p TimeoutPolicy) String() string {
	if p == TimeoutFail {
		return "fail"
	}
	return "regenerate"
}

// Wait groups. The thumb group covers THM, MTH and YEAR together.
const (
	GroupThumb = "thumb"
	GroupLCD   = "lcd"
)

// WaitKey identifies one generation chain for one asset.
type WaitKey struct {
	ID    string
	Group string
}

type barrier struct {
	done chan struct{}
}

// Registry deduplicates concurrent generation of the same key. At most one
// barrier exists per key; its producer releases it when done.
type Registry struct {
	timeout time.Duration

	mu       sync.RWMutex
	barriers map[WaitKey]*barrier
}

// NewRegistry creates a registry. A timeout of zero uses DefaultWaitTimeout.
func NewRegistry(timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = DefaultWaitTimeout
	}
	return &Registry{
		timeout:  timeout,
		barriers: make(map[WaitKey]*barrier),
	}
}

// InsertAndWait registers a barrier for key, or waits for the existing one.
// The returned release func must be called exactly once; it is a no-op
// unless the status is WaitInsert.
func (r *Registry) InsertAndWait(ctx context.Context, key WaitKey) (WaitStatus, func()) {
	r.mu.Lock()
	if b, ok := r.barriers[key]; ok {
		r.mu.Unlock()
		status := r.wait(ctx, b)
		metrics.ThumbnailDedupWaits.WithLabelValues(status.String()).Inc()
		return status, func() {}
	}
	b := &barrier{done: make(chan struct{})}
	r.barriers[key] = b
	r.mu.Unlock()
	metrics.ThumbnailDedupWaits.WithLabelValues(WaitInsert.String()).Inc()

	var once sync.Once
	return WaitInsert, func() {
		once.Do(func() {
			r.mu.Lock()
			if r.barriers[key] == b {
				delete(r.barriers, key)
			}
			r.mu.Unlock()
			close(b.done)
		})
	}
}

// CheckAndWait waits for an in-flight producer of key, if any. It returns
// false when the wait timed out.
func (r *Registry) CheckAndWait(ctx context.Context, key WaitKey) bool {
	r.mu.RLock()
	b, ok := r.barriers[key]
	r.mu.RUnlock()
	if !ok {
		return true
	}
	return r.wait(ctx, b) == WaitSuccess
}

// Pending returns the number of in-flight barriers.
func (r *Registry) Pending() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.barriers)
}

func (r *Registry) wait(ctx context.Context, b *barrier) WaitStatus {
	timer := time.NewTimer(r.timeout)
	defer timer.Stop()
	select {
	case <-b.done:
		return WaitSuccess
	case <-timer.C:
		return WaitTimeout
	case <-ctx.Done():
		return WaitTimeout
	}
}
