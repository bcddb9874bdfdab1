package manager

import (
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

	"media-library/internal/delivery"
	"media-library/internal/mediatypes"
	"media-library/internal/thumbnail"
)

// fakeCodec decodes artifacts written as "WxH".
type fakeCodec struct{}

func (fakeCodec) Decode(context.Context, string, mediatypes.AssetKind, thumbnail.Size) (image.Image, error) {
	return nil, errors.New("not used")
}

func (fakeCodec) DecodeReader(r io.Reader) (image.Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var w, h int
	if _, err := fmt.Sscanf(string(data), "%dx%d", &w, &h); err != nil {
		return nil, err
	}
	return image.NewRGBA(image.Rect(0, 0, w, h)), nil
}

func (fakeCodec) Compress(image.Image, thumbnail.Tier) ([]byte, error) {
	return nil, errors.New("not used")
}

func (fakeCodec) Resize(_ image.Image, size thumbnail.Size) image.Image {
	return image.NewRGBA(image.Rect(0, 0, size.Width, size.Height))
}

func (fakeCodec) CenterScaleToRatio(_ image.Image, target thumbnail.Size) image.Image {
	return image.NewRGBA(image.Rect(0, 0, target.Width, target.Height))
}

// fakeEngine writes the requested tier on demand.
type fakeEngine struct {
	layout  thumbnail.Layout
	calls   atomic.Int32
	err     error
	block   chan struct{}
	entered chan struct{}
}

func (e *fakeEngine) CreateThumbnail(context.Context, thumbnail.Options, bool) error { return nil }
func (e *fakeEngine) CreateLCD(context.Context, thumbnail.Options, bool) error       { return nil }
func (e *fakeEngine) Invalidate(context.Context, thumbnail.Options) error            { return nil }

func (e *fakeEngine) GetThumbnailPixelMap(_ context.Context, opts thumbnail.Options, size thumbnail.Size) (*os.File, error) {
	e.calls.Add(1)
	if e.entered != nil {
		e.entered <- struct{}{}
	}
	if e.block != nil {
		<-e.block
	}
	if e.err != nil {
		return nil, e.err
	}
	tier := thumbnail.TierForSize(size, opts.Kind)
	edge := tier.Edge(1080)
	path := e.layout.Path(opts.Path, tier)
	if err := writeArtifact(path, edge, edge); err != nil {
		return nil, err
	}
	return os.Open(path)
}

func writeArtifact(path string, w, h int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(fmt.Sprintf("%dx%d", w, h)), 0o644)
}

type delivered struct {
	id   string
	size thumbnail.Size
	fast bool
	sh   bool
}

type harness struct {
	m      *Manager
	engine *fakeEngine
	loop   *delivery.Loop
	layout thumbnail.Layout
	src    string
	got    chan delivered
}

func newHarness(t *testing.T, fast, quality int) *harness {
	t.Helper()
	dir := t.TempDir()
	layout := thumbnail.Layout{Root: filepath.Join(dir, "cache")}
	h := &harness{
		engine: &fakeEngine{layout: layout},
		loop:   delivery.NewLoop(16),
		layout: layout,
		src:    filepath.Join(dir, "photo.jpg"),
		got:    make(chan delivered, 128),
	}
	h.m = New(h.engine, fakeCodec{}, Config{FastWorkers: fast, QualityWorkers: quality, Layout: layout})
	h.m.Init()
	go h.loop.Run(context.Background())
	t.Cleanup(func() {
		h.m.Close()
		h.loop.Close()
	})
	return h
}

func (h *harness) add(t *testing.T, size thumbnail.Size, mode Mode) string {
	t.Helper()
	var id string
	var mu sync.Mutex
	mu.Lock()
	id, err := h.m.AddRequest("file://media/Photo/7/photo.jpg", h.src, size, mode, h.loop, func(pm *thumbnail.PixelMap, fast bool) {
		mu.Lock()
		rid := id
		mu.Unlock()
		h.got <- delivered{id: rid, size: pm.Size(), fast: fast, sh: pm.Shared()}
		_ = pm.Release()
	})
	mu.Unlock()
	if err != nil {
		t.Fatalf("AddRequest failed: %v", err)
	}
	return id
}

func (h *harness) expect(t *testing.T, n int) []delivered {
	t.Helper()
	var out []delivered
	for len(out) < n {
		select {
		case d := <-h.got:
			out = append(out, d)
		case <-time.After(2 * time.Second):
			t.Fatalf("got %d deliveries, want %d", len(out), n)
		}
	}
	return out
}

func (h *harness) expectNone(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case d := <-h.got:
		t.Fatalf("unexpected delivery %+v", d)
	case <-time.After(wait):
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestFastThenQualityDelivery(t *testing.T) {
	h := newHarness(t, 3, 2)
	if err := writeArtifact(h.layout.Path(h.src, thumbnail.TierThumb), 256, 256); err != nil {
		t.Fatal(err)
	}

	h.add(t, thumbnail.Size{Width: 1024, Height: 1024}, ModeBoth)
	got := h.expect(t, 2)

	if !got[0].fast || got[1].fast {
		t.Fatalf("delivery order = %+v, want fast then quality", got)
	}
	if got[0].size != (thumbnail.Size{Width: 256, Height: 256}) || !got[0].sh {
		t.Errorf("fast delivery = %+v, want shared 256x256", got[0])
	}
	if got[1].size != (thumbnail.Size{Width: 1024, Height: 1024}) {
		t.Errorf("quality delivery size = %v, want 1024x1024", got[1].size)
	}
	h.expectNone(t, 50*time.Millisecond)
	waitFor(t, func() bool { return h.m.Stats().LiveRequests == 0 })
}

func TestFastMissFallsBackToQuality(t *testing.T) {
	h := newHarness(t, 3, 2)

	h.add(t, thumbnail.Size{Width: 1024, Height: 768}, ModeBoth)
	got := h.expect(t, 1)
	if got[0].fast {
		t.Error("without a persisted artifact only the quality pass should deliver")
	}
	if got[0].size != (thumbnail.Size{Width: 1024, Height: 768}) {
		t.Errorf("size = %v, want center-scaled 1024x768", got[0].size)
	}
	h.expectNone(t, 50*time.Millisecond)
	if h.engine.calls.Load() != 1 {
		t.Errorf("engine calls = %d, want 1", h.engine.calls.Load())
	}
}

func TestSmallRequestQualityOnly(t *testing.T) {
	h := newHarness(t, 3, 2)
	if err := writeArtifact(h.layout.Path(h.src, thumbnail.TierYear), 64, 64); err != nil {
		t.Fatal(err)
	}

	h.add(t, thumbnail.Size{Width: 64, Height: 64}, ModeBoth)
	got := h.expect(t, 1)
	if got[0].fast {
		t.Error("requests below thumb size never take the fast pass")
	}
	if got[0].size != (thumbnail.Size{Width: 64, Height: 64}) || !got[0].sh {
		t.Errorf("delivery = %+v, want shared 64x64", got[0])
	}
	h.expectNone(t, 50*time.Millisecond)
	waitFor(t, func() bool { return h.m.Stats().LiveRequests == 0 })
}

func TestSquareTierScaledToRequest(t *testing.T) {
	tests := []struct {
		name string
		size thumbnail.Size
	}{
		{"month tier, wide request", thumbnail.Size{Width: 100, Height: 60}},
		{"month tier, square request", thumbnail.Size{Width: 100, Height: 100}},
		{"year tier, tall request", thumbnail.Size{Width: 40, Height: 64}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, 3, 2)

			h.add(t, tt.size, ModeBoth)
			got := h.expect(t, 1)
			if got[0].fast {
				t.Error("requests below thumb size never take the fast pass")
			}
			if got[0].size != tt.size {
				t.Errorf("size = %v, want %v", got[0].size, tt.size)
			}
			if !got[0].sh {
				t.Error("calendar tier deliveries should use shared memory")
			}
			h.expectNone(t, 50*time.Millisecond)
		})
	}
}

func TestFastOnlySkipsQuality(t *testing.T) {
	h := newHarness(t, 3, 2)
	if err := writeArtifact(h.layout.Path(h.src, thumbnail.TierThumb), 256, 256); err != nil {
		t.Fatal(err)
	}

	h.add(t, thumbnail.Size{Width: 512, Height: 512}, ModeFastOnly)
	got := h.expect(t, 1)
	if !got[0].fast {
		t.Error("fast-only request delivered a quality image")
	}
	h.expectNone(t, 50*time.Millisecond)
	if h.engine.calls.Load() != 0 {
		t.Error("fast-only request reached the engine")
	}
	waitFor(t, func() bool { return h.m.Stats().LiveRequests == 0 })
}

func TestRemoveBeforeDequeue(t *testing.T) {
	h := newHarness(t, 1, 1)
	h.engine.block = make(chan struct{})
	h.engine.entered = make(chan struct{}, 4)

	// Occupy the only quality worker.
	first := h.add(t, thumbnail.Size{Width: 64, Height: 64}, ModeQualityOnly)
	<-h.engine.entered

	second := h.add(t, thumbnail.Size{Width: 64, Height: 64}, ModeQualityOnly)
	if h.m.Stats().QualityQueue != 1 {
		t.Fatalf("second request should be queued, stats = %+v", h.m.Stats())
	}
	h.m.RemoveRequest(second)
	if _, ok := h.m.lookup(second); ok {
		t.Error("removed request still in the live map")
	}

	close(h.engine.block)
	got := h.expect(t, 1)
	if got[0].id != first {
		t.Errorf("delivered %s, want only %s", got[0].id, first)
	}
	h.expectNone(t, 100*time.Millisecond)
	if n := h.engine.calls.Load(); n != 1 {
		t.Errorf("engine calls = %d, removed request should not be processed", n)
	}
	waitFor(t, func() bool { return h.m.Stats().LiveRequests == 0 })
}

func TestRemoveWhileInFlight(t *testing.T) {
	h := newHarness(t, 1, 1)
	h.engine.block = make(chan struct{})
	h.engine.entered = make(chan struct{}, 1)

	id := h.add(t, thumbnail.Size{Width: 128, Height: 128}, ModeQualityOnly)
	<-h.engine.entered
	h.m.RemoveRequest(id)
	close(h.engine.block)

	h.expectNone(t, 100*time.Millisecond)
	if h.m.Stats().LiveRequests != 0 {
		t.Error("removed request still tracked")
	}
}

func TestQualityFailureDeliversNothing(t *testing.T) {
	h := newHarness(t, 1, 1)
	h.engine.err = thumbnail.ErrCodec

	h.add(t, thumbnail.Size{Width: 300, Height: 300}, ModeBoth)
	h.expectNone(t, 100*time.Millisecond)
	waitFor(t, func() bool { return h.m.Stats().LiveRequests == 0 })
}

func TestRejectedExecutorDropsRequest(t *testing.T) {
	h := newHarness(t, 1, 1)
	closed := delivery.NewLoop(1)
	closed.Close()

	called := make(chan struct{}, 1)
	_, err := h.m.AddRequest("", h.src, thumbnail.Size{Width: 64, Height: 64}, ModeBoth, closed,
		func(*thumbnail.PixelMap, bool) { called <- struct{}{} })
	if err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return h.m.Stats().LiveRequests == 0 })
	select {
	case <-called:
		t.Error("callback ran on a closed executor")
	default:
	}
}

func TestAddRequestValidation(t *testing.T) {
	h := newHarness(t, 1, 1)
	cb := func(*thumbnail.PixelMap, bool) {}

	if _, err := h.m.AddRequest("", "", thumbnail.Size{Width: 1, Height: 1}, ModeBoth, nil, cb); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("empty source: err = %v, want ErrInvalidRequest", err)
	}
	if _, err := h.m.AddRequest("", h.src, thumbnail.Size{Width: 1, Height: 1}, ModeBoth, nil, nil); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("nil callback: err = %v, want ErrInvalidRequest", err)
	}

	h.m.Close()
	if _, err := h.m.AddRequest("", h.src, thumbnail.Size{Width: 1, Height: 1}, ModeBoth, nil, cb); !errors.Is(err, ErrClosed) {
		t.Errorf("after close: err = %v, want ErrClosed", err)
	}
}

func TestRequestIDsAreUnique(t *testing.T) {
	h := newHarness(t, 1, 1)
	h.engine.block = make(chan struct{})
	defer close(h.engine.block)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		id := h.add(t, thumbnail.Size{Width: 10, Height: 10}, ModeQualityOnly)
		if seen[id] {
			t.Fatalf("duplicate request id %s", id)
		}
		seen[id] = true
	}
}
