package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"media-library/internal/database"
	"media-library/internal/logging"
	"media-library/internal/mediatypes"
	"media-library/internal/metrics"
	"media-library/internal/thumbnail"
	"media-library/internal/txgate"
)

const defaultDebounce = 2 * time.Second

// WatcherConfig configures a Watcher.
type WatcherConfig struct {
	MediaDir string
	// Debounce is how long events for a path are coalesced before handling.
	Debounce time.Duration
}

// Watcher turns file close and import events under the media directory into
// asset updates. A written or created file is upserted, its artifacts are
// invalidated and its THUMB chain is queued in the foreground. A removed
// file loses its artifacts and its row.
type Watcher struct {
	cfg    WatcherConfig
	store  Store
	gate   *txgate.Gate
	thumbs Thumbnails
	fsw    *fsnotify.Watcher
	log    *logging.Logger

	events chan string
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// NewWatcher creates a watcher. Nothing is watched until Start.
func NewWatcher(cfg WatcherConfig, store Store, gate *txgate.Gate, thumbs Thumbnails) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = defaultDebounce
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		cfg:    cfg,
		store:  store,
		gate:   gate,
		thumbs: thumbs,
		fsw:    fsw,
		log:    logging.Component("watcher"),
		events: make(chan string, 1000),
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Start watches every visible directory under the media directory.
func (w *Watcher) Start() error {
	if err := w.addRecursive(w.cfg.MediaDir); err != nil {
		return err
	}
	w.wg.Add(2)
	go w.watchEvents()
	go w.processEvents()
	w.log.Infof("watching %s (debounce %v)", w.cfg.MediaDir, w.cfg.Debounce)
	return nil
}

// Stop closes the watcher, handles events already queued and waits for
// the loops to exit.
func (w *Watcher) Stop() {
	w.once.Do(func() {
		w.cancel()
		if err := w.fsw.Close(); err != nil {
			w.log.Warnf("close: %v", err)
		}
		w.wg.Wait()
	})
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			w.log.Debugf("failed to watch %s: %v", path, err)
		}
		return nil
	})
}

func (w *Watcher) watchEvents() {
	defer w.wg.Done()
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Errorf("watch error: %v", err)
		case <-w.ctx.Done():
			return
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if strings.HasPrefix(filepath.Base(ev.Name), ".") {
		return
	}
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(ev.Name); err != nil {
				w.log.Warnf("failed to watch new directory %s: %v", ev.Name, err)
			}
			return
		}
	}
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) &&
		!ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return
	}
	if !mediatypes.KindForPath(ev.Name).Supported() {
		return
	}
	select {
	case w.events <- ev.Name:
	case <-time.After(time.Second):
		w.log.Warnf("event queue full, dropping event for %s", ev.Name)
	case <-w.ctx.Done():
	}
}

// processEvents coalesces events per path and handles each path once the
// debounce interval has passed.
func (w *Watcher) processEvents() {
	defer w.wg.Done()

	pending := make(map[string]struct{})
	ticker := time.NewTicker(w.cfg.Debounce)
	defer ticker.Stop()

	flush := func(ctx context.Context) {
		for path := range pending {
			if err := w.process(ctx, path); err != nil {
				w.log.Errorf("failed to handle change of %s: %v", path, err)
			}
		}
		clear(pending)
	}

	for {
		select {
		case path := <-w.events:
			pending[path] = struct{}{}
		case <-ticker.C:
			flush(w.ctx)
		case <-w.ctx.Done():
			// Handle what already arrived so shutdown does not lose removals.
			flush(context.Background())
			return
		}
	}
}

// process reconciles one path with the store. The current state of the
// file decides the action, not the event that reported it.
func (w *Watcher) process(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		metrics.IndexerWatchEvents.WithLabelValues("remove").Inc()
		return w.removed(ctx, path)
	case err != nil:
		return err
	case !info.Mode().IsRegular():
		return nil
	}
	metrics.IndexerWatchEvents.WithLabelValues("upsert").Inc()
	return w.changed(ctx, assetFromInfo(path, info))
}

func (w *Watcher) changed(ctx context.Context, a database.Asset) error {
	op := w.gate.Begin()
	defer op.Close()
	if err := op.Start(); err != nil {
		return err
	}
	id, isChanged, err := w.store.UpsertAsset(ctx, &a)
	if err != nil {
		return err
	}
	if err := op.Finish(); err != nil {
		return err
	}
	if !isChanged {
		return nil
	}

	if err := w.thumbs.Invalidate(ctx, thumbnail.Options{Path: a.Path, Kind: a.Kind}); err != nil {
		w.log.Warnf("failed to invalidate %s: %v", a.Path, err)
	}
	w.log.Debugf("source changed: %s", a.Path)
	return w.thumbs.CreateThumbnail(ctx, thumbnail.Options{AssetID: id, Path: a.Path, Kind: a.Kind}, false)
}

func (w *Watcher) removed(ctx context.Context, path string) error {
	if err := w.thumbs.Invalidate(ctx, thumbnail.Options{Path: path}); err != nil {
		w.log.Warnf("failed to remove artifacts of %s: %v", path, err)
	}

	op := w.gate.Begin()
	defer op.Close()
	if err := op.Start(); err != nil {
		return err
	}
	if err := w.store.DeleteAsset(ctx, path); err != nil {
		return err
	}
	w.log.Debugf("source removed: %s", path)
	return op.Finish()
}
