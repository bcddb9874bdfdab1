package txgate

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"media-library/internal/logging"
	"media-library/internal/metrics"
)

// DefaultWait is how long Start waits for another writer to finish.
const DefaultWait = time.Second

var (
	// ErrGateTimeout is returned when the gate stayed claimed for the whole wait.
	ErrGateTimeout = errors.New("timed out waiting for write transaction")
	// ErrStoreBusy is returned when the store reports a transaction the gate
	// did not open.
	ErrStoreBusy = errors.New("store already in a transaction")
	// ErrNotStarted is returned by Finish on an operation that never started.
	ErrNotStarted = errors.New("transaction not started")
)

// Store is the transactional store the gate serializes access to.
type Store interface {
	BeginTransaction() error
	Commit() error
	Rollback() error
	InTransaction() bool
}

// Gate admits one write transaction at a time across the process.
type Gate struct {
	store Store
	wait  time.Duration

	mu       sync.Mutex
	inTx     bool
	released chan struct{} // closed and replaced on every release
}

// New returns a gate over store. A wait of zero uses DefaultWait.
func New(store Store, wait time.Duration) *Gate {
	if wait <= 0 {
		wait = DefaultWait
	}
	return &Gate{
		store:    store,
		wait:     wait,
		released: make(chan struct{}),
	}
}

// InTransaction reports whether an operation currently holds the gate.
func (g *Gate) InTransaction() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inTx
}

// Begin returns a new, unstarted operation. Callers should defer Close.
func (g *Gate) Begin() *Operation {
	return &Operation{gate: g}
}

// claim waits for the flag to clear and sets it.
func (g *Gate) claim() error {
	start := time.Now()
	deadline := time.NewTimer(g.wait)
	defer deadline.Stop()

	g.mu.Lock()
	for g.inTx {
		ch := g.released
		g.mu.Unlock()
		select {
		case <-ch:
		case <-deadline.C:
			metrics.TxGateWaitDuration.Observe(time.Since(start).Seconds())
			metrics.TxGateOutcomes.WithLabelValues("timeout").Inc()
			return ErrGateTimeout
		}
		g.mu.Lock()
	}
	defer g.mu.Unlock()
	metrics.TxGateWaitDuration.Observe(time.Since(start).Seconds())

	if g.store.InTransaction() {
		metrics.TxGateOutcomes.WithLabelValues("busy").Inc()
		return ErrStoreBusy
	}
	g.inTx = true
	return nil
}

// release clears the flag and wakes every waiter.
func (g *Gate) release() {
	g.mu.Lock()
	g.inTx = false
	close(g.released)
	g.released = make(chan struct{})
	g.mu.Unlock()
}

// Operation is one attempt at a gated write transaction.
//
//	op := gate.Begin()
//	defer op.Close()
//	if err := op.Start(); err != nil { ... }
//	// writes
//	return op.Finish()
type Operation struct {
	gate     *Gate
	started  bool
	finished bool
}

// Start claims the gate and begins the store transaction.
func (o *Operation) Start() error {
	if o.started {
		return nil
	}
	if err := o.gate.claim(); err != nil {
		return err
	}
	if err := o.gate.store.BeginTransaction(); err != nil {
		o.gate.release()
		metrics.TxGateOutcomes.WithLabelValues("begin_error").Inc()
		return fmt.Errorf("begin transaction: %w", err)
	}
	metrics.TxGateOutcomes.WithLabelValues("started").Inc()
	o.started = true
	return nil
}

// Finish commits the transaction and releases the gate.
func (o *Operation) Finish() error {
	if !o.started || o.finished {
		return ErrNotStarted
	}
	o.finished = true
	if !o.gate.store.InTransaction() {
		o.gate.release()
		return fmt.Errorf("commit: %w", ErrNotStarted)
	}
	err := o.gate.store.Commit()
	o.gate.release()
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Rollback aborts the transaction and releases the gate.
func (o *Operation) Rollback() error {
	if !o.started || o.finished {
		return nil
	}
	o.finished = true
	var err error
	if o.gate.store.InTransaction() {
		err = o.gate.store.Rollback()
	}
	o.gate.release()
	return err
}

// Close rolls back an operation that was started but not finished.
func (o *Operation) Close() {
	if err := o.Rollback(); err != nil {
		logging.Warn("txgate: rollback on close failed: %v", err)
	}
}
