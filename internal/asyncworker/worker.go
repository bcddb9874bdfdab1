package asyncworker

import (
	"context"
	"sync"
	"time"

	"media-library/internal/logging"
	"media-library/internal/memory"
	"media-library/internal/metrics"
)

// Priority selects the queue a task joins.
type Priority int

const (
	// Foreground tasks come from interactive requests and always run first.
	Foreground Priority = iota
	// Background tasks come from batch work such as indexing.
	Background
)

func (p Priority) String() string {
	if p == Foreground {
		return "foreground"
	}
	return "background"
}

// Task is a unit of deferred work. Execute receives a context that is
// cancelled when the worker stops.
type Task struct {
	Name    string
	Execute func(ctx context.Context)
}

// Config tunes throttling between tasks.
type Config struct {
	// ForegroundRestEvery rests ShortRest after every Nth completed task when
	// that task ran in the foreground.
	ForegroundRestEvery int
	// BackgroundRestEvery adds LongRest after every Nth completed task when
	// that task ran in the background. Every background task rests ShortRest.
	BackgroundRestEvery int
	ShortRest           time.Duration
	LongRest            time.Duration

	// Memory pauses background tasks under heap pressure. Optional.
	Memory *memory.Monitor
}

// DefaultConfig returns the production throttling settings.
func DefaultConfig() Config {
	return Config{
		ForegroundRestEvery: 50,
		BackgroundRestEvery: 500,
		ShortRest:           200 * time.Millisecond,
		LongRest:            2 * time.Second,
	}
}

// Worker runs tasks on one goroutine, foreground before background.
type Worker struct {
	cfg Config
	log *logging.Logger

	fgMu sync.Mutex
	fg   []Task
	bgMu sync.Mutex
	bg   []Task

	workMu  sync.Mutex
	work    *sync.Cond
	running bool

	ctx       context.Context
	cancel    context.CancelFunc
	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}

	doneTotal int
}

// New creates a worker. Call Start to begin consuming.
func New(cfg Config) *Worker {
	if cfg.ForegroundRestEvery <= 0 {
		cfg.ForegroundRestEvery = 1
	}
	if cfg.BackgroundRestEvery <= 0 {
		cfg.BackgroundRestEvery = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		cfg:    cfg,
		log:    logging.Component("asyncworker"),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	w.work = sync.NewCond(&w.workMu)
	return w
}

// Start launches the consumer goroutine. Repeated calls are no-ops.
func (w *Worker) Start() {
	w.startOnce.Do(func() {
		w.workMu.Lock()
		if w.ctx.Err() != nil {
			w.workMu.Unlock()
			return
		}
		w.running = true
		w.workMu.Unlock()
		go w.loop()
	})
}

// Add queues a task. It returns false once the worker has stopped.
func (w *Worker) Add(t Task, p Priority) bool {
	w.workMu.Lock()
	stopped := w.ctx.Err() != nil
	w.workMu.Unlock()
	if stopped {
		return false
	}

	if p == Foreground {
		w.fgMu.Lock()
		w.fg = append(w.fg, t)
		n := len(w.fg)
		w.fgMu.Unlock()
		metrics.SchedulerQueueDepth.WithLabelValues("foreground").Set(float64(n))
	} else {
		w.bgMu.Lock()
		w.bg = append(w.bg, t)
		n := len(w.bg)
		w.bgMu.Unlock()
		metrics.SchedulerQueueDepth.WithLabelValues("background").Set(float64(n))
	}

	// Signal under workMu so the wake-up cannot slip between the
	// consumer's emptiness check and its Wait.
	w.workMu.Lock()
	w.work.Signal()
	w.workMu.Unlock()
	return true
}

// Interrupt discards queued background tasks. Foreground tasks and the
// task currently running are unaffected.
func (w *Worker) Interrupt() int {
	n := w.clearBackground()
	w.log.Debugf("interrupt dropped %d background tasks", n)
	return n
}

// Stop discards both queues, cancels the running task's context and waits
// for the consumer to exit.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		w.clearBackground()
		w.fgMu.Lock()
		n := len(w.fg)
		w.fg = nil
		w.fgMu.Unlock()
		metrics.SchedulerDropped.WithLabelValues("foreground").Add(float64(n))
		metrics.SchedulerQueueDepth.WithLabelValues("foreground").Set(0)

		w.workMu.Lock()
		w.cancel()
		started := w.running
		w.running = false
		w.work.Broadcast()
		w.workMu.Unlock()

		if started {
			<-w.done
		}
	})
}

// Depth returns the number of queued foreground and background tasks.
func (w *Worker) Depth() (fg, bg int) {
	w.fgMu.Lock()
	fg = len(w.fg)
	w.fgMu.Unlock()
	w.bgMu.Lock()
	bg = len(w.bg)
	w.bgMu.Unlock()
	return fg, bg
}

func (w *Worker) clearBackground() int {
	w.bgMu.Lock()
	n := len(w.bg)
	w.bg = nil
	w.bgMu.Unlock()
	metrics.SchedulerDropped.WithLabelValues("background").Add(float64(n))
	metrics.SchedulerQueueDepth.WithLabelValues("background").Set(0)
	return n
}

func (w *Worker) pop(p Priority) (Task, bool) {
	mu, q := &w.fgMu, &w.fg
	if p == Background {
		mu, q = &w.bgMu, &w.bg
	}
	mu.Lock()
	defer mu.Unlock()
	if len(*q) == 0 {
		return Task{}, false
	}
	t := (*q)[0]
	(*q)[0] = Task{}
	*q = (*q)[1:]
	metrics.SchedulerQueueDepth.WithLabelValues(p.String()).Set(float64(len(*q)))
	return t, true
}

// waitForTask blocks until a queue is non-empty or the worker stops.
func (w *Worker) waitForTask() bool {
	w.workMu.Lock()
	defer w.workMu.Unlock()
	for w.running {
		fg, bg := w.Depth()
		if fg > 0 || bg > 0 {
			return true
		}
		w.work.Wait()
	}
	return false
}

func (w *Worker) loop() {
	defer close(w.done)

	for w.waitForTask() {
		if t, ok := w.pop(Foreground); ok {
			w.run(t, Foreground)
			if w.doneTotal%w.cfg.ForegroundRestEvery == 0 {
				w.rest(w.cfg.ShortRest)
			}
			continue
		}

		if w.cfg.Memory != nil && w.cfg.Memory.IsPaused() {
			// recheck the foreground queue while memory recovers
			w.rest(w.cfg.ShortRest)
			continue
		}

		if t, ok := w.pop(Background); ok {
			w.run(t, Background)
			w.rest(w.cfg.ShortRest)
			if w.doneTotal%w.cfg.BackgroundRestEvery == 0 {
				w.rest(w.cfg.LongRest)
			}
		}
	}
}

func (w *Worker) run(t Task, p Priority) {
	status := "success"
	defer func() {
		if r := recover(); r != nil {
			status = "panic"
			w.log.Errorf("task %q panicked: %v", t.Name, r)
		}
		w.doneTotal++
		metrics.SchedulerTasksTotal.WithLabelValues(p.String(), status).Inc()
	}()
	t.Execute(w.ctx)
}

// rest sleeps for d unless the worker stops first.
func (w *Worker) rest(d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-w.ctx.Done():
	}
}
