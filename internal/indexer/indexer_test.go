package indexer

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"media-library/internal/asyncworker"
	"media-library/internal/database"
	"media-library/internal/thumbnail"
	"media-library/internal/txgate"
)

// fakeThumbs records the calls the indexer makes into the thumbnail engine.
type fakeThumbs struct {
	mu          sync.Mutex
	scheduled   []thumbnail.Options
	priorities  []asyncworker.Priority
	created     []thumbnail.Options
	invalidated []string
	scheduleErr error
}

func (f *fakeThumbs) CreateThumbnail(_ context.Context, opts thumbnail.Options, sync bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sync {
		panic("indexer must not generate synchronously")
	}
	f.created = append(f.created, opts)
	return nil
}

func (f *fakeThumbs) ScheduleThumbnail(_ context.Context, opts thumbnail.Options, p asyncworker.Priority) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.scheduleErr != nil {
		return f.scheduleErr
	}
	f.scheduled = append(f.scheduled, opts)
	f.priorities = append(f.priorities, p)
	return nil
}

func (f *fakeThumbs) Invalidate(_ context.Context, opts thumbnail.Options) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, opts.Path)
	return nil
}

func (f *fakeThumbs) scheduledPaths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, o := range f.scheduled {
		out = append(out, o.Path)
	}
	sort.Strings(out)
	return out
}

type testEnv struct {
	dir    string
	db     *database.Database
	gate   *txgate.Gate
	thumbs *fakeThumbs
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.New(context.Background(), filepath.Join(t.TempDir(), "media.db"))
	if err != nil {
		t.Fatalf("database.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &testEnv{
		dir:    t.TempDir(),
		db:     db,
		gate:   txgate.New(db, time.Second),
		thumbs: &fakeThumbs{},
	}
}

func (e *testEnv) write(t *testing.T, rel, content string) string {
	t.Helper()
	path := filepath.Join(e.dir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func (e *testEnv) indexer() *Indexer {
	return New(Config{
		MediaDir:  e.dir,
		BatchSize: 2,
		Walker:    ParallelWalkerConfig{NumWorkers: 2, ChannelBuffer: 4, SkipHidden: true},
	}, e.db, e.gate, e.thumbs)
}

func TestParallelWalkerFindsSupportedFiles(t *testing.T) {
	env := newTestEnv(t)
	want := []string{
		env.write(t, "a.jpg", "x"),
		env.write(t, "sub/b.mp4", "xx"),
		env.write(t, "sub/deeper/c.mp3", "xxx"),
	}
	env.write(t, "notes.txt", "skip")
	env.write(t, ".hidden/d.jpg", "skip")
	env.write(t, ".e.png", "skip")

	w := NewParallelWalker(env.dir, ParallelWalkerConfig{NumWorkers: 3, ChannelBuffer: 1, SkipHidden: true})
	assets, err := w.Walk(context.Background())
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}

	var got []string
	for _, a := range assets {
		got = append(got, a.Path)
		if !a.Kind.Supported() {
			t.Errorf("%s has unsupported kind %q", a.Path, a.Kind)
		}
	}
	sort.Strings(got)
	sort.Strings(want)
	if len(got) != len(want) {
		t.Fatalf("Walk found %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("asset %d = %s, want %s", i, got[i], want[i])
		}
	}

	files, skipped, errs := w.Stats()
	if files != 3 || skipped != 1 || errs != 0 {
		t.Errorf("Stats() = %d, %d, %d; want 3, 1, 0", files, skipped, errs)
	}
}

func TestParallelWalkerCanceled(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "a.jpg", "x")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewParallelWalker(env.dir, DefaultParallelWalkerConfig()).Walk(ctx); err == nil {
		t.Error("Walk with canceled context returned nil error")
	}
}

func TestParallelWalkerMissingRoot(t *testing.T) {
	w := NewParallelWalker(filepath.Join(t.TempDir(), "missing"), DefaultParallelWalkerConfig())
	if _, err := w.Walk(context.Background()); err == nil {
		t.Error("Walk of missing root returned nil error")
	}
}

func TestIndexUpsertsAndSchedulesChanged(t *testing.T) {
	env := newTestEnv(t)
	a := env.write(t, "a.jpg", "x")
	b := env.write(t, "b.mp4", "xx")
	c := env.write(t, "c.mp3", "xxx")
	ctx := context.Background()

	idx := env.indexer()
	res, err := idx.Index(ctx)
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if res.Files != 3 || res.Changed != 3 || res.Removed != 0 || res.Failed != 0 {
		t.Errorf("first pass = %+v", res)
	}

	got := env.thumbs.scheduledPaths()
	want := []string{a, b, c}
	sort.Strings(want)
	if len(got) != 3 {
		t.Fatalf("scheduled %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("scheduled[%d] = %s, want %s", i, got[i], want[i])
		}
	}
	for _, p := range env.thumbs.priorities {
		if p != asyncworker.Background {
			t.Errorf("scheduled at %v, want background", p)
		}
	}
	for _, o := range env.thumbs.scheduled {
		if o.AssetID == 0 {
			t.Errorf("%s scheduled without asset id", o.Path)
		}
	}
	if env.gate.InTransaction() || env.db.InTransaction() {
		t.Error("transaction left open after Index")
	}
	if !idx.IsReady() {
		t.Error("IsReady() = false after first pass")
	}

	// an unchanged tree schedules nothing new
	res, err = idx.Index(ctx)
	if err != nil {
		t.Fatalf("second Index: %v", err)
	}
	if res.Changed != 0 {
		t.Errorf("second pass changed %d assets, want 0", res.Changed)
	}
	if n := len(env.thumbs.scheduledPaths()); n != 3 {
		t.Errorf("scheduled %d after second pass, want 3", n)
	}

	// a modified source is invalidated and rescheduled
	later := time.Now().Add(time.Hour)
	if err := os.Chtimes(b, later, later); err != nil {
		t.Fatal(err)
	}
	res, err = idx.Index(ctx)
	if err != nil {
		t.Fatalf("third Index: %v", err)
	}
	if res.Changed != 1 {
		t.Errorf("third pass changed %d assets, want 1", res.Changed)
	}
	env.thumbs.mu.Lock()
	last := env.thumbs.invalidated[len(env.thumbs.invalidated)-1]
	env.thumbs.mu.Unlock()
	if last != b {
		t.Errorf("last invalidated = %s, want %s", last, b)
	}
}

func TestIndexPrunesMissingAssets(t *testing.T) {
	env := newTestEnv(t)
	a := env.write(t, "a.jpg", "x")
	env.write(t, "b.jpg", "y")
	ctx := context.Background()

	if _, err := env.indexer().Index(ctx); err != nil {
		t.Fatalf("Index: %v", err)
	}
	if err := os.Remove(a); err != nil {
		t.Fatal(err)
	}

	// rows refreshed in the same second as the prune cutoff survive it
	time.Sleep(1100 * time.Millisecond)

	res, err := env.indexer().Index(ctx)
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if res.Removed != 1 {
		t.Errorf("Removed = %d, want 1", res.Removed)
	}
	if _, err := env.db.GetAssetByPath(ctx, a); err == nil {
		t.Errorf("%s still indexed after removal", a)
	}
	env.thumbs.mu.Lock()
	defer env.thumbs.mu.Unlock()
	found := false
	for _, p := range env.thumbs.invalidated {
		if p == a {
			found = true
		}
	}
	if !found {
		t.Errorf("artifacts of %s were not invalidated", a)
	}
}

func TestIndexSkipsWhileRunning(t *testing.T) {
	env := newTestEnv(t)
	idx := env.indexer()
	if !idx.tryStartIndexing() {
		t.Fatal("tryStartIndexing failed on idle indexer")
	}
	res, err := idx.Index(context.Background())
	if err != nil || res.Files != 0 {
		t.Errorf("Index while running = %+v, %v; want empty result", res, err)
	}
	if idx.TriggerIndex() {
		t.Error("TriggerIndex while running returned true")
	}
	idx.finishIndexing()
}

func TestIndexBusyStoreFailsBatches(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 5; i++ {
		env.write(t, filepath.Join("d", string(rune('a'+i))+".jpg"), "x")
	}

	// a transaction opened elsewhere makes every batch fail and skips pruning
	op := env.gate.Begin()
	if err := op.Start(); err != nil {
		t.Fatal(err)
	}
	idx := New(Config{MediaDir: env.dir, BatchSize: 2}, env.db, txgate.New(env.db, 20*time.Millisecond), env.thumbs)
	res, err := idx.Index(context.Background())
	op.Close()
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if res.Failed != 5 || res.Changed != 0 {
		t.Errorf("result with busy store = %+v, want 5 failed", res)
	}
	if n := len(env.thumbs.scheduledPaths()); n != 0 {
		t.Errorf("scheduled %d thumbnails without committed rows", n)
	}
}

func TestStartStop(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "a.jpg", "x")

	done := make(chan Result, 1)
	idx := env.indexer()
	idx.SetOnIndexComplete(func(r Result) { done <- r })
	idx.Start()
	defer idx.Stop()

	select {
	case r := <-done:
		if r.Files != 1 {
			t.Errorf("initial pass indexed %d files, want 1", r.Files)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("initial index did not complete")
	}

	status := idx.GetHealthStatus()
	if !status.Ready || status.InitialIndexError != "" {
		t.Errorf("health = %+v", status)
	}
}
