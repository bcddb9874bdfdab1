package thumbnail

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"time"

	"media-library/internal/asyncworker"
	"media-library/internal/database"
	"media-library/internal/filesystem"
	"media-library/internal/logging"
	"media-library/internal/mediatypes"
	"media-library/internal/metrics"
	"media-library/internal/telemetry"
	"media-library/internal/txgate"
)

// Config configures a DefaultGenerator.
type Config struct {
	CacheDir      string
	ScreenSize    int
	WaitTimeout   time.Duration
	TimeoutPolicy TimeoutPolicy
	Retry         filesystem.RetryConfig
}

// Data carries one generation call from decode to persist.
type Data struct {
	Info    database.ArtifactInfo
	Source  image.Image
	Paths   map[Tier]string
	Buffers map[Tier][]byte
}

// DefaultGenerator produces artifacts on disk and records them in the store.
type DefaultGenerator struct {
	cfg    Config
	layout Layout
	store  AssetStore
	gate   *txgate.Gate
	codec  Codec
	tasks  TaskQueue
	sink   telemetry.Sink
	waits  *Registry
	log    *logging.Logger
}

var _ Generator = (*DefaultGenerator)(nil)

func NewGenerator(cfg Config, store AssetStore, gate *txgate.Gate, codec Codec, tasks TaskQueue, sink telemetry.Sink) *DefaultGenerator {
	if cfg.ScreenSize <= 0 {
		cfg.ScreenSize = DefaultScreenSize
	}
	if cfg.Retry.MaxRetries == 0 && cfg.Retry.InitialBackoff == 0 {
		cfg.Retry = filesystem.DefaultRetryConfig()
	}
	if sink == nil {
		sink = telemetry.LogSink{}
	}
	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		logging.Warn("thumbnail: failed to create cache dir %s: %v", cfg.CacheDir, err)
	}
	return &DefaultGenerator{
		cfg:    cfg,
		layout: Layout{Root: cfg.CacheDir},
		store:  store,
		gate:   gate,
		codec:  codec,
		tasks:  tasks,
		sink:   sink,
		waits:  NewRegistry(cfg.WaitTimeout),
		log:    logging.Component("thumbnail"),
	}
}

// Layout returns the artifact path layout.
func (g *DefaultGenerator) Layout() Layout { return g.layout }

// Waits exposes the dedup registry.
func (g *DefaultGenerator) Waits() *Registry { return g.waits }

// CreateThumbnail makes sure the THM, MTH and YEAR artifacts exist. The
// chain is skipped only when every tier for the asset kind is present.
// Without sync it runs as a foreground task.
func (g *DefaultGenerator) CreateThumbnail(ctx context.Context, opts Options, sync bool) error {
	info, err := g.resolve(ctx, opts)
	if err != nil {
		return err
	}
	if g.thumbComplete(info) {
		metrics.ThumbnailCacheHits.Inc()
		return nil
	}
	if sync {
		return g.thumbChain(ctx, opts, info)
	}
	return g.schedule("thumbnail", info, asyncworker.Foreground, func(ctx context.Context) error {
		return g.thumbChain(ctx, opts, info)
	})
}

// ScheduleThumbnail queues the THUMB chain for opts at priority p. Artifacts
// that already exist only have their metadata marked ready.
func (g *DefaultGenerator) ScheduleThumbnail(ctx context.Context, opts Options, p asyncworker.Priority) error {
	info, err := g.resolve(ctx, opts)
	if err != nil {
		return err
	}
	return g.schedule("thumbnail", info, p, func(ctx context.Context) error {
		if g.thumbComplete(info) {
			if info.ID == 0 || info.ThumbnailReady {
				return nil
			}
			return g.updateMetadata(ctx, info, database.CacheFields{SetThumbnail: true})
		}
		return g.thumbChain(ctx, opts, info)
	})
}

// CreateLCD makes sure the LCD artifact exists.
func (g *DefaultGenerator) CreateLCD(ctx context.Context, opts Options, sync bool) error {
	info, err := g.resolve(ctx, opts)
	if err != nil {
		return err
	}
	if g.exists(g.layout.Path(info.Path, TierLCD)) {
		metrics.ThumbnailCacheHits.Inc()
		return nil
	}
	if sync {
		return g.lcdChain(ctx, opts, info)
	}
	return g.schedule("lcd", info, asyncworker.Foreground, func(ctx context.Context) error {
		return g.lcdChain(ctx, opts, info)
	})
}

// GetThumbnailPixelMap picks the tier covering size, waits for an in-flight
// chain producing it and returns the opened artifact, generating it if
// missing.
func (g *DefaultGenerator) GetThumbnailPixelMap(ctx context.Context, opts Options, size Size) (*os.File, error) {
	info, err := g.resolve(ctx, opts)
	if err != nil {
		return nil, err
	}
	tier := TierForSize(size, info.Kind)
	group := GroupThumb
	if tier == TierLCD {
		group = GroupLCD
	}
	if key := waitKey(info, group); !g.waits.CheckAndWait(ctx, key) {
		g.log.Debugf("wait for in-flight %s of %s timed out", group, key.ID)
	}
	path := g.layout.Path(info.Path, tier)

	if g.exists(path) {
		metrics.ThumbnailCacheHits.Inc()
		if tier == TierLCD {
			g.touchLCD(info)
		}
	} else {
		metrics.ThumbnailCacheMisses.Inc()
		if tier == TierLCD {
			err = g.lcdChain(ctx, opts, info)
		} else {
			err = g.thumbChain(ctx, opts, info)
		}
		if err != nil {
			return nil, err
		}
	}

	f, err := filesystem.OpenWithRetry(path, g.cfg.Retry)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s artifact for %s", ErrNotFound, tier, info.Path)
		}
		return nil, fmt.Errorf("%w: open %s: %v", ErrPersist, path, err)
	}
	return f, nil
}

// Invalidate deletes every artifact of an asset and clears its cache
// metadata. Used when the source changed.
func (g *DefaultGenerator) Invalidate(ctx context.Context, opts Options) error {
	info, err := g.resolve(ctx, opts)
	if err != nil {
		return err
	}
	removed := 0
	for _, t := range []Tier{TierThumb, TierMonth, TierYear, TierLCD} {
		ok, err := filesystem.RemoveIfExists(g.layout.Path(info.Path, t))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrPersist, err)
		}
		if ok {
			removed++
		}
	}
	_ = os.Remove(g.layout.Dir(info.Path))
	if removed > 0 {
		metrics.ThumbnailInvalidations.Inc()
		g.log.Debugf("invalidated %d artifacts for %s", removed, info.Path)
	}
	if info.ID == 0 {
		return nil
	}
	return g.updateMetadata(ctx, info, database.CacheFields{ClearThumbnail: true, ClearLCDVisit: true})
}

// GenerateMissing queues background THUMB chains for up to limit assets
// without a ready thumbnail. It returns the number queued.
func (g *DefaultGenerator) GenerateMissing(ctx context.Context, limit int) (int, error) {
	assets, err := g.store.ListMissingThumbnails(ctx, limit)
	if err != nil {
		return 0, err
	}
	queued := 0
	for _, a := range assets {
		opts := Options{AssetID: a.ID, Path: a.Path, Kind: a.Kind}
		if err := g.ScheduleThumbnail(ctx, opts, asyncworker.Background); err != nil {
			return queued, err
		}
		queued++
	}
	if queued > 0 {
		g.log.Infof("queued %d missing thumbnails", queued)
	}
	return queued, nil
}

// AgeLCD removes LCD artifacts beyond the keep most recently visited and
// clears their visit time. It returns the number removed.
func (g *DefaultGenerator) AgeLCD(ctx context.Context, keep int) (int, error) {
	assets, err := g.store.ListLCDBeyond(ctx, keep)
	if err != nil {
		return 0, err
	}
	if len(assets) == 0 {
		return 0, nil
	}

	removed := 0
	for _, a := range assets {
		if _, err := filesystem.RemoveIfExists(g.layout.Path(a.Path, TierLCD)); err != nil {
			g.log.Warnf("failed to remove LCD artifact for %s: %v", a.Path, err)
			continue
		}
		removed++
	}

	op := g.gate.Begin()
	defer op.Close()
	if err := op.Start(); err != nil {
		return removed, err
	}
	for _, a := range assets {
		if err := g.store.UpdateCacheMetadata(ctx, a.ID, database.CacheFields{ClearLCDVisit: true}); err != nil {
			return removed, fmt.Errorf("%w: clear lcd visit for %d: %v", ErrPersist, a.ID, err)
		}
	}
	if err := op.Finish(); err != nil {
		return removed, fmt.Errorf("%w: %v", ErrPersist, err)
	}

	metrics.ThumbnailLCDAged.Add(float64(removed))
	g.log.Infof("aged %d LCD artifacts (keep %d)", removed, keep)
	return removed, nil
}

func (g *DefaultGenerator) resolve(ctx context.Context, opts Options) (database.ArtifactInfo, error) {
	if opts.Path != "" {
		kind := opts.Kind
		if kind == "" {
			kind = mediatypes.KindForPath(opts.Path)
		}
		return database.ArtifactInfo{ID: opts.AssetID, Path: opts.Path, Kind: kind}, nil
	}
	if opts.AssetID == 0 {
		return database.ArtifactInfo{}, fmt.Errorf("%w: no asset id or path", ErrNotFound)
	}
	info, err := g.store.QueryArtifactInfo(ctx, opts.AssetID)
	if errors.Is(err, database.ErrAssetNotFound) {
		return info, fmt.Errorf("%w: asset %d", ErrNotFound, opts.AssetID)
	}
	if err != nil {
		return info, fmt.Errorf("query asset %d: %w", opts.AssetID, err)
	}
	return info, nil
}

func (g *DefaultGenerator) exists(path string) bool {
	return filesystem.Exists(path, g.cfg.Retry)
}

func (g *DefaultGenerator) screen(opts Options) int {
	if opts.ScreenSize > 0 {
		return opts.ScreenSize
	}
	return g.cfg.ScreenSize
}

func (g *DefaultGenerator) schedule(kind string, info database.ArtifactInfo, p asyncworker.Priority, fn func(context.Context) error) error {
	task := asyncworker.Task{
		Name: kind + ":" + info.Path,
		Execute: func(ctx context.Context) {
			if err := fn(ctx); err != nil {
				g.log.Warnf("%s generation for %s failed: %v", kind, info.Path, err)
			}
		},
	}
	if !g.tasks.Add(task, p) {
		return ErrSchedulerStopped
	}
	return nil
}

// touchLCD records an LCD visit in the background so reads never wait on
// the write gate.
func (g *DefaultGenerator) touchLCD(info database.ArtifactInfo) {
	if info.ID == 0 {
		return
	}
	_ = g.schedule("lcd-visit", info, asyncworker.Background, func(ctx context.Context) error {
		return g.updateMetadata(ctx, info, database.CacheFields{SetLCDVisit: true})
	})
}

// updateMetadata runs one gated write transaction.
func (g *DefaultGenerator) updateMetadata(ctx context.Context, info database.ArtifactInfo, f database.CacheFields) error {
	op := g.gate.Begin()
	defer op.Close()

	step, err := "begin", op.Start()
	if err == nil {
		step, err = "update", g.store.UpdateCacheMetadata(ctx, info.ID, f)
	}
	if err == nil {
		step, err = "commit", op.Finish()
	}
	if err != nil {
		err = fmt.Errorf("%w: metadata %s for %s: %v", ErrPersist, step, info.Path, err)
		g.report(telemetry.KindMetadata, info, step, err)
		return err
	}
	return nil
}

// report sends a failure to the sink, located at report's caller.
func (g *DefaultGenerator) report(kind telemetry.Kind, info database.ArtifactInfo, op string, err error) {
	ev := telemetry.At(telemetry.Event{
		Code:   Code(err),
		Path:   info.Path,
		OpKind: op,
		Err:    err,
	}, 1)
	g.sink.ReportError(kind, ev)
}

// guard turns a codec panic into ErrCodec.
func guard(op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s panicked: %v", ErrCodec, op, r)
		}
	}()
	return fn()
}
