package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"media-library/internal/asyncworker"
	"media-library/internal/database"
	"media-library/internal/logging"
	"media-library/internal/memory"
	"media-library/internal/metrics"
	"media-library/internal/thumbnail"
	"media-library/internal/txgate"
)

const (
	// Number of assets upserted per gated transaction
	defaultBatchSize = 200

	// Delay between batches so interactive writers get the gate
	batchDelay = 10 * time.Millisecond
)

// Store is the asset store the indexer writes through. Every call is made
// inside a gated transaction.
type Store interface {
	UpsertAsset(ctx context.Context, a *database.Asset) (int64, bool, error)
	DeleteAsset(ctx context.Context, path string) error
	PruneAssets(ctx context.Context, before time.Time) ([]string, error)
}

// Thumbnails is the part of the thumbnail engine driven by indexing.
type Thumbnails interface {
	CreateThumbnail(ctx context.Context, opts thumbnail.Options, sync bool) error
	ScheduleThumbnail(ctx context.Context, opts thumbnail.Options, p asyncworker.Priority) error
	Invalidate(ctx context.Context, opts thumbnail.Options) error
}

// Config configures an Indexer.
type Config struct {
	MediaDir string
	// Interval between full re-indexes; zero disables periodic indexing.
	Interval  time.Duration
	BatchSize int
	Walker    ParallelWalkerConfig
	// Memory, when set, holds batches back while heap usage is high.
	Memory *memory.Monitor
}

// Indexer keeps the asset table in step with the media directory and queues
// thumbnail generation for new or changed assets.
type Indexer struct {
	cfg    Config
	store  Store
	gate   *txgate.Gate
	thumbs Thumbnails

	stopOnce sync.Once
	stopChan chan struct{}
	wg       sync.WaitGroup

	indexMu              sync.Mutex
	isIndexing           bool
	lastIndexTime        time.Time
	lastResult           Result
	initialIndexComplete bool
	initialIndexError    error
	startTime            time.Time

	filesIndexed atomic.Int64

	onIndexComplete func(Result)
}

// Result summarizes one index pass.
type Result struct {
	Files    int           `json:"files"`
	Changed  int           `json:"changed"`
	Removed  int           `json:"removed"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
}

// New creates an indexer. Nothing runs until Start or Index.
func New(cfg Config, store Store, gate *txgate.Gate, thumbs Thumbnails) *Indexer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.Walker.NumWorkers <= 0 {
		cfg.Walker = DefaultParallelWalkerConfig()
	}
	return &Indexer{
		cfg:       cfg,
		store:     store,
		gate:      gate,
		thumbs:    thumbs,
		stopChan:  make(chan struct{}),
		startTime: time.Now(),
	}
}

// SetOnIndexComplete sets a callback invoked after every successful pass.
func (idx *Indexer) SetOnIndexComplete(callback func(Result)) {
	idx.onIndexComplete = callback
}

// Start runs the initial index in the background and, with a non-zero
// interval, periodic re-indexes until Stop.
func (idx *Indexer) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	idx.wg.Add(2)
	go func() {
		defer idx.wg.Done()
		<-idx.stopChan
		cancel()
	}()
	go func() {
		defer idx.wg.Done()
		logging.Info("Starting initial index of %s in background...", idx.cfg.MediaDir)
		if _, err := idx.Index(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logging.Error("Initial index error: %v", err)
			idx.indexMu.Lock()
			idx.initialIndexError = err
			idx.indexMu.Unlock()
		}
		if idx.cfg.Interval > 0 {
			idx.periodicIndex(ctx)
		}
	}()
}

// Stop cancels any running pass and waits for background goroutines.
func (idx *Indexer) Stop() {
	idx.stopOnce.Do(func() { close(idx.stopChan) })
	idx.wg.Wait()
}

func (idx *Indexer) periodicIndex(ctx context.Context) {
	ticker := time.NewTicker(idx.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			logging.Debug("Periodic re-index triggered")
			if _, err := idx.Index(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logging.Error("periodic re-index failed: %v", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Index performs a full pass: walk, upsert in gated batches, prune assets
// that disappeared, and queue background thumbnails for changed assets.
// A pass already in progress makes Index return immediately.
func (idx *Indexer) Index(ctx context.Context) (Result, error) {
	if !idx.tryStartIndexing() {
		logging.Info("Index already in progress, skipping...")
		return Result{}, nil
	}
	defer idx.finishIndexing()

	metrics.IndexerRunsTotal.Inc()
	start := time.Now()
	// updated_at has second resolution; anything refreshed by this pass is
	// at or after the truncated start.
	passStart := start.Truncate(time.Second)
	idx.filesIndexed.Store(0)

	walker := NewParallelWalker(idx.cfg.MediaDir, idx.cfg.Walker)
	assets, err := walker.Walk(ctx)
	if err != nil {
		metrics.IndexerErrors.Inc()
		return Result{}, fmt.Errorf("walk %s: %w", idx.cfg.MediaDir, err)
	}

	res := Result{Files: len(assets)}
	for i := 0; i < len(assets); i += idx.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if idx.cfg.Memory != nil && !idx.cfg.Memory.WaitIfPaused(ctx) {
			return res, ctx.Err()
		}

		end := min(i+idx.cfg.BatchSize, len(assets))
		changed, failed, err := idx.processBatch(ctx, assets[i:end])
		if err != nil {
			metrics.IndexerErrors.Inc()
			logging.Error("Error processing batch: %v", err)
			res.Failed += end - i
			continue
		}
		res.Failed += failed
		res.Changed += len(changed)
		idx.filesIndexed.Add(int64(end - i))
		idx.scheduleChanged(ctx, changed)

		time.Sleep(batchDelay)
	}

	// Failed upserts were not refreshed and would look deleted.
	if res.Failed == 0 {
		removed, err := idx.prune(ctx, passStart)
		if err != nil {
			metrics.IndexerErrors.Inc()
			logging.Error("Error cleaning up missing assets: %v", err)
		}
		res.Removed = removed
	}
	res.Duration = time.Since(start)

	idx.indexMu.Lock()
	idx.lastIndexTime = time.Now()
	idx.lastResult = res
	idx.indexMu.Unlock()

	metrics.IndexerLastRunDuration.Set(res.Duration.Seconds())
	metrics.IndexerFilesProcessed.Add(float64(res.Files))
	logging.Info("Index complete: %d files, %d changed, %d removed, %d failed in %v",
		res.Files, res.Changed, res.Removed, res.Failed, res.Duration)

	if idx.onIndexComplete != nil {
		idx.onIndexComplete(res)
	}
	return res, nil
}

// processBatch upserts assets in one gated transaction and returns those
// that are new or whose source changed.
func (idx *Indexer) processBatch(ctx context.Context, batch []database.Asset) (changed []database.Asset, failed int, err error) {
	op := idx.gate.Begin()
	defer op.Close()
	if err := op.Start(); err != nil {
		return nil, 0, err
	}

	for i := range batch {
		id, isChanged, err := idx.store.UpsertAsset(ctx, &batch[i])
		if err != nil {
			failed++
			logging.Warn("Error upserting asset %s: %v", batch[i].Path, err)
			continue
		}
		if isChanged {
			batch[i].ID = id
			changed = append(changed, batch[i])
		}
	}

	if err := op.Finish(); err != nil {
		return nil, 0, err
	}
	return changed, failed, nil
}

// scheduleChanged drops stale artifacts of changed assets and queues their
// THUMB chains on the background queue. The upsert already reset the cache
// metadata, so invalidation only touches files.
func (idx *Indexer) scheduleChanged(ctx context.Context, changed []database.Asset) {
	for _, a := range changed {
		if err := idx.thumbs.Invalidate(ctx, thumbnail.Options{Path: a.Path, Kind: a.Kind}); err != nil {
			logging.Warn("Failed to invalidate artifacts for %s: %v", a.Path, err)
		}
		opts := thumbnail.Options{AssetID: a.ID, Path: a.Path, Kind: a.Kind}
		if err := idx.thumbs.ScheduleThumbnail(ctx, opts, asyncworker.Background); err != nil {
			if errors.Is(err, thumbnail.ErrSchedulerStopped) {
				return
			}
			logging.Warn("Failed to queue thumbnail for %s: %v", a.Path, err)
		}
	}
}

// prune removes assets the pass did not see, along with their artifacts.
func (idx *Indexer) prune(ctx context.Context, before time.Time) (int, error) {
	op := idx.gate.Begin()
	defer op.Close()
	if err := op.Start(); err != nil {
		return 0, err
	}
	paths, err := idx.store.PruneAssets(ctx, before)
	if err != nil {
		return 0, err
	}
	if err := op.Finish(); err != nil {
		return 0, err
	}

	for _, p := range paths {
		if err := idx.thumbs.Invalidate(ctx, thumbnail.Options{Path: p}); err != nil {
			logging.Warn("Failed to remove artifacts for %s: %v", p, err)
		}
	}
	if len(paths) > 0 {
		logging.Info("Removed %d missing assets from index", len(paths))
	}
	return len(paths), nil
}

func (idx *Indexer) tryStartIndexing() bool {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()

	if idx.isIndexing {
		return false
	}
	idx.isIndexing = true
	return true
}

func (idx *Indexer) finishIndexing() {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()

	idx.isIndexing = false
	idx.initialIndexComplete = true
}

// TriggerIndex starts a pass in the background. It reports false when one
// is already running.
func (idx *Indexer) TriggerIndex() bool {
	if idx.IsIndexing() {
		return false
	}
	idx.wg.Add(1)
	go func() {
		defer idx.wg.Done()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			select {
			case <-idx.stopChan:
				cancel()
			case <-ctx.Done():
			}
		}()
		if _, err := idx.Index(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logging.Error("manually triggered re-index failed: %v", err)
		}
	}()
	return true
}

// IsIndexing returns whether an index operation is currently in progress.
func (idx *Indexer) IsIndexing() bool {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()
	return idx.isIndexing
}

// IsReady reports whether the first pass has finished.
func (idx *Indexer) IsReady() bool {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()
	return idx.initialIndexComplete
}

// HealthStatus contains health check information.
type HealthStatus struct {
	Ready             bool      `json:"ready"`
	Indexing          bool      `json:"indexing"`
	StartTime         time.Time `json:"startTime"`
	Uptime            string    `json:"uptime"`
	LastIndexed       time.Time `json:"lastIndexed,omitempty"`
	LastResult        Result    `json:"lastResult"`
	InitialIndexError string    `json:"initialIndexError,omitempty"`
	FilesIndexed      int64     `json:"filesIndexed"`
}

// GetHealthStatus returns detailed health information.
func (idx *Indexer) GetHealthStatus() HealthStatus {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()

	status := HealthStatus{
		Ready:        idx.initialIndexComplete,
		Indexing:     idx.isIndexing,
		StartTime:    idx.startTime,
		Uptime:       time.Since(idx.startTime).Round(time.Second).String(),
		LastIndexed:  idx.lastIndexTime,
		LastResult:   idx.lastResult,
		FilesIndexed: idx.filesIndexed.Load(),
	}
	if idx.initialIndexError != nil {
		status.InitialIndexError = idx.initialIndexError.Error()
	}
	return status
}
