// Package delivery runs request callbacks on a caller-owned goroutine.
package delivery

import (
	"context"
	"sync"

	"media-library/internal/logging"
)

// Executor accepts functions to run on its own goroutine. Post returns
// false when the executor no longer accepts work.
type Executor interface {
	Post(fn func()) bool
}

// Func adapts a plain function into an Executor that runs work inline on
// the posting goroutine.
type Func func(fn func()) bool

func (f Func) Post(fn func()) bool { return f(fn) }

// Inline runs every posted function immediately on the caller.
var Inline Executor = Func(func(fn func()) bool {
	fn()
	return true
})

// Loop is a single-consumer work queue. Functions run one at a time in the
// order they were posted.
type Loop struct {
	ch        chan func()
	quit      chan struct{}
	closeOnce sync.Once
	done      chan struct{}
}

// NewLoop creates a loop with room for buffer pending functions. Post
// blocks while the buffer is full.
func NewLoop(buffer int) *Loop {
	if buffer < 1 {
		buffer = 1
	}
	return &Loop{
		ch:   make(chan func(), buffer),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Post queues fn. It returns false once the loop is closed.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.quit:
		return false
	default:
	}
	select {
	case l.ch <- fn:
		return true
	case <-l.quit:
		return false
	}
}

// Run consumes posted functions until ctx is done or Close is called.
// Functions still queued at that point are dropped.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)
	for {
		select {
		case fn := <-l.ch:
			l.run(fn)
		case <-l.quit:
			return
		case <-ctx.Done():
			l.Close()
			return
		}
	}
}

// Close stops accepting work and ends Run.
func (l *Loop) Close() {
	l.closeOnce.Do(func() { close(l.quit) })
}

// Done is closed when Run returns.
func (l *Loop) Done() <-chan struct{} { return l.done }

func (l *Loop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("delivery: callback panicked: %v", r)
		}
	}()
	fn()
}
