package thumbnail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"media-library/internal/asyncworker"
	"media-library/internal/database"
	"media-library/internal/mediatypes"
	"media-library/internal/telemetry"
	"media-library/internal/txgate"
)

// fakeCodec produces blank images and encodes only their size.
type fakeCodec struct {
	size     Size
	delay    time.Duration
	err      error
	panicMsg string
	// failTier fails Compress for that tier while failLeft is positive.
	failTier Tier
	failLeft atomic.Int32

	decodes   atomic.Int32
	compress  atomic.Int32
	lastHints sync.Map // path -> Size
}

func (c *fakeCodec) Decode(_ context.Context, path string, _ mediatypes.AssetKind, hint Size) (image.Image, error) {
	c.decodes.Add(1)
	c.lastHints.Store(path, hint)
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	if c.panicMsg != "" {
		panic(c.panicMsg)
	}
	if c.err != nil {
		return nil, c.err
	}
	return image.NewRGBA(image.Rect(0, 0, c.size.Width, c.size.Height)), nil
}

func (c *fakeCodec) DecodeReader(r io.Reader) (image.Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var tier string
	var w, h int
	if _, err := fmt.Sscanf(string(data), "%s %dx%d", &tier, &w, &h); err != nil {
		return nil, fmt.Errorf("bad fake artifact %q: %w", data, err)
	}
	return image.NewRGBA(image.Rect(0, 0, w, h)), nil
}

func (c *fakeCodec) Compress(img image.Image, t Tier) ([]byte, error) {
	c.compress.Add(1)
	if t == c.failTier && c.failLeft.Add(-1) >= 0 {
		return nil, fmt.Errorf("cannot encode %s", t.Suffix())
	}
	b := img.Bounds()
	return []byte(fmt.Sprintf("%s %dx%d", t.Suffix(), b.Dx(), b.Dy())), nil
}

func (c *fakeCodec) Resize(_ image.Image, size Size) image.Image {
	return image.NewRGBA(image.Rect(0, 0, size.Width, size.Height))
}

func (c *fakeCodec) CenterScaleToRatio(_ image.Image, target Size) image.Image {
	return image.NewRGBA(image.Rect(0, 0, target.Width, target.Height))
}

// memStore is an in-memory AssetStore that also satisfies txgate.Store.
type memStore struct {
	mu      sync.Mutex
	assets  map[int64]database.ArtifactInfo
	updates []database.CacheFields
	inTx    bool
	commits int
	updErr  error
}

func newMemStore(assets ...database.ArtifactInfo) *memStore {
	s := &memStore{assets: make(map[int64]database.ArtifactInfo)}
	for _, a := range assets {
		s.assets[a.ID] = a
	}
	return s
}

func (s *memStore) QueryArtifactInfo(_ context.Context, id int64) (database.ArtifactInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assets[id]
	if !ok {
		return database.ArtifactInfo{}, database.ErrAssetNotFound
	}
	return a, nil
}

func (s *memStore) UpdateCacheMetadata(_ context.Context, id int64, f database.CacheFields) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.inTx {
		return errors.New("update outside transaction")
	}
	if s.updErr != nil {
		return s.updErr
	}
	a, ok := s.assets[id]
	if !ok {
		return database.ErrAssetNotFound
	}
	switch {
	case f.SetThumbnail:
		a.ThumbnailReady = true
	case f.ClearThumbnail:
		a.ThumbnailReady = false
	}
	switch {
	case f.SetLCDVisit:
		a.LCDVisitTime = time.Now()
	case f.ClearLCDVisit:
		a.LCDVisitTime = time.Time{}
	}
	s.assets[id] = a
	s.updates = append(s.updates, f)
	return nil
}

func (s *memStore) ListMissingThumbnails(_ context.Context, limit int) ([]database.ArtifactInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []database.ArtifactInfo
	for id := int64(1); id <= int64(len(s.assets)) && len(out) < limit; id++ {
		if a, ok := s.assets[id]; ok && !a.ThumbnailReady {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *memStore) ListLCDBeyond(_ context.Context, keep int) ([]database.ArtifactInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var visited []database.ArtifactInfo
	for id := int64(1); id <= int64(len(s.assets)); id++ {
		if a, ok := s.assets[id]; ok && !a.LCDVisitTime.IsZero() {
			visited = append(visited, a)
		}
	}
	// newest first
	for i := 1; i < len(visited); i++ {
		for j := i; j > 0 && visited[j].LCDVisitTime.After(visited[j-1].LCDVisitTime); j-- {
			visited[j], visited[j-1] = visited[j-1], visited[j]
		}
	}
	if keep >= len(visited) {
		return nil, nil
	}
	return visited[keep:], nil
}

func (s *memStore) BeginTransaction() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inTx {
		return database.ErrTransactionActive
	}
	s.inTx = true
	return nil
}

func (s *memStore) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inTx = false
	s.commits++
	return nil
}

func (s *memStore) Rollback() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inTx = false
	return nil
}

func (s *memStore) InTransaction() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inTx
}

func (s *memStore) get(id int64) database.ArtifactInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.assets[id]
}

// taskList collects tasks instead of running them.
type taskList struct {
	mu      sync.Mutex
	tasks   []asyncworker.Task
	prio    []asyncworker.Priority
	stopped bool
}

func (q *taskList) Add(t asyncworker.Task, p asyncworker.Priority) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return false
	}
	q.tasks = append(q.tasks, t)
	q.prio = append(q.prio, p)
	return true
}

func (q *taskList) runAll() {
	q.mu.Lock()
	tasks := q.tasks
	q.tasks, q.prio = nil, nil
	q.mu.Unlock()
	for _, t := range tasks {
		t.Execute(context.Background())
	}
}

func (q *taskList) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

type testEnv struct {
	gen   *DefaultGenerator
	codec *fakeCodec
	store *memStore
	tasks *taskList
	sink  *telemetry.Recorder
	dir   string
}

func newTestEnv(t *testing.T, cfg Config, assets ...database.ArtifactInfo) *testEnv {
	t.Helper()
	dir := t.TempDir()
	if cfg.CacheDir == "" {
		cfg.CacheDir = filepath.Join(dir, "cache")
	}
	env := &testEnv{
		codec: &fakeCodec{size: Size{Width: 1000, Height: 500}},
		store: newMemStore(assets...),
		tasks: &taskList{},
		sink:  &telemetry.Recorder{},
		dir:   dir,
	}
	gate := txgate.New(env.store, 100*time.Millisecond)
	env.gen = NewGenerator(cfg, env.store, gate, env.codec, env.tasks, env.sink)
	return env
}

// source creates an empty source file and returns its asset row.
func (e *testEnv) source(t *testing.T, id int64, name string, kind mediatypes.AssetKind) database.ArtifactInfo {
	t.Helper()
	path := filepath.Join(e.dir, name)
	if err := os.WriteFile(path, []byte("source"), 0o644); err != nil {
		t.Fatal(err)
	}
	a := database.ArtifactInfo{ID: id, Path: path, Kind: kind}
	e.store.mu.Lock()
	e.store.assets[id] = a
	e.store.mu.Unlock()
	return a
}

func readArtifact(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(bytes.TrimSpace(data))
}
