package txgate

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeStore struct {
	mu        sync.Mutex
	inTx      bool
	beginErr  error
	begins    int
	commits   int
	rollbacks int

	active    atomic.Int32
	maxActive atomic.Int32
}

func (s *fakeStore) BeginTransaction() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.beginErr != nil {
		return s.beginErr
	}
	s.inTx = true
	s.begins++
	n := s.active.Add(1)
	for {
		m := s.maxActive.Load()
		if n <= m || s.maxActive.CompareAndSwap(m, n) {
			break
		}
	}
	return nil
}

func (s *fakeStore) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inTx = false
	s.commits++
	s.active.Add(-1)
	return nil
}

func (s *fakeStore) Rollback() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inTx = false
	s.rollbacks++
	s.active.Add(-1)
	return nil
}

func (s *fakeStore) InTransaction() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inTx
}

func TestStartFinish(t *testing.T) {
	store := &fakeStore{}
	g := New(store, 0)

	op := g.Begin()
	defer op.Close()
	if err := op.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !g.InTransaction() {
		t.Error("gate should be held after Start")
	}
	if err := op.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if g.InTransaction() {
		t.Error("gate should be released after Finish")
	}
	if store.commits != 1 || store.rollbacks != 0 {
		t.Errorf("commits=%d rollbacks=%d, want 1/0", store.commits, store.rollbacks)
	}
}

func TestCloseRollsBackUnfinished(t *testing.T) {
	store := &fakeStore{}
	g := New(store, 0)

	func() {
		op := g.Begin()
		defer op.Close()
		if err := op.Start(); err != nil {
			t.Fatalf("Start: %v", err)
		}
	}()

	if store.rollbacks != 1 {
		t.Errorf("rollbacks = %d, want 1", store.rollbacks)
	}
	if g.InTransaction() {
		t.Error("gate still held after Close")
	}

	// Close on a never-started operation touches nothing.
	g.Begin().Close()
	if store.rollbacks != 1 {
		t.Errorf("rollbacks = %d after closing unstarted op, want 1", store.rollbacks)
	}
}

func TestStartTimesOut(t *testing.T) {
	store := &fakeStore{}
	g := New(store, 30*time.Millisecond)

	holder := g.Begin()
	if err := holder.Start(); err != nil {
		t.Fatal(err)
	}
	defer holder.Close()

	start := time.Now()
	op := g.Begin()
	err := op.Start()
	if !errors.Is(err, ErrGateTimeout) {
		t.Fatalf("Start = %v, want ErrGateTimeout", err)
	}
	if elapsed := time.Since(start); elapsed < 25*time.Millisecond {
		t.Errorf("returned after %v, expected to wait for the timeout", elapsed)
	}
	if store.begins != 1 {
		t.Errorf("begins = %d, want 1", store.begins)
	}
}

func TestStartWakesOnRelease(t *testing.T) {
	store := &fakeStore{}
	g := New(store, time.Second)

	holder := g.Begin()
	if err := holder.Start(); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() {
		op := g.Begin()
		defer op.Close()
		if err := op.Start(); err != nil {
			done <- err
			return
		}
		done <- op.Finish()
	}()

	time.Sleep(20 * time.Millisecond)
	if err := holder.Finish(); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("waiter failed: %v", err)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("waiter was not woken by release")
	}
}

func TestStoreBusy(t *testing.T) {
	store := &fakeStore{inTx: true}
	g := New(store, 0)

	op := g.Begin()
	defer op.Close()
	if err := op.Start(); !errors.Is(err, ErrStoreBusy) {
		t.Fatalf("Start = %v, want ErrStoreBusy", err)
	}
	if g.InTransaction() {
		t.Error("gate must not be held after ErrStoreBusy")
	}
}

func TestBeginFailureReleasesGate(t *testing.T) {
	store := &fakeStore{beginErr: errors.New("locked")}
	g := New(store, 50*time.Millisecond)

	op := g.Begin()
	defer op.Close()
	if err := op.Start(); err == nil {
		t.Fatal("expected begin error")
	}
	if g.InTransaction() {
		t.Fatal("gate held after begin failure")
	}

	store.mu.Lock()
	store.beginErr = nil
	store.mu.Unlock()

	op2 := g.Begin()
	defer op2.Close()
	if err := op2.Start(); err != nil {
		t.Fatalf("second Start: %v", err)
	}
}

func TestFinishWithoutStart(t *testing.T) {
	g := New(&fakeStore{}, 0)
	if err := g.Begin().Finish(); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Finish = %v, want ErrNotStarted", err)
	}
}

func TestAtMostOneTransaction(t *testing.T) {
	store := &fakeStore{}
	g := New(store, 5*time.Second)

	const writers = 16
	var wg sync.WaitGroup
	var failures atomic.Int32
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			op := g.Begin()
			defer op.Close()
			if err := op.Start(); err != nil {
				failures.Add(1)
				return
			}
			time.Sleep(time.Millisecond)
			if err := op.Finish(); err != nil {
				failures.Add(1)
			}
		}()
	}
	wg.Wait()

	if failures.Load() != 0 {
		t.Errorf("%d writers failed", failures.Load())
	}
	if got := store.maxActive.Load(); got != 1 {
		t.Errorf("max concurrent transactions = %d, want 1", got)
	}
	if store.commits != writers {
		t.Errorf("commits = %d, want %d", store.commits, writers)
	}
}
