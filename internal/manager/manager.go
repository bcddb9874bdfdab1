package manager

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"sync"

	"media-library/internal/delivery"
	"media-library/internal/filesystem"
	"media-library/internal/logging"
	"media-library/internal/mediatypes"
	"media-library/internal/metrics"
	"media-library/internal/shm"
	"media-library/internal/thumbnail"
	"media-library/internal/workers"

	"github.com/google/uuid"
)

var (
	// ErrClosed is returned by AddRequest after Close.
	ErrClosed = errors.New("thumbnail manager closed")
	// ErrInvalidRequest is returned for requests without a source or callback.
	ErrInvalidRequest = errors.New("invalid thumbnail request")
)

// Config configures a Manager. Zero pool sizes use workers.FastPool and
// workers.QualityPool.
type Config struct {
	FastWorkers    int
	QualityWorkers int
	// Layout locates persisted artifacts for the fast pass.
	Layout thumbnail.Layout
	Retry  filesystem.RetryConfig
}

// Stats is a snapshot of manager load.
type Stats struct {
	LiveRequests int `json:"liveRequests"`
	FastQueue    int `json:"fastQueue"`
	QualityQueue int `json:"qualityQueue"`
}

// Manager serves pixel requests in up to two passes: a fast pass that
// decodes an already persisted smaller artifact, and a quality pass that
// asks the engine for the matching tier.
type Manager struct {
	engine thumbnail.Generator
	codec  thumbnail.Codec
	cfg    Config
	log    *logging.Logger

	fastQ    *queue[*Request]
	qualityQ *queue[*Request]

	ctx       context.Context
	cancel    context.CancelFunc
	initOnce  sync.Once
	closeOnce sync.Once
	wg        sync.WaitGroup

	mu       sync.Mutex
	requests map[string]*Request
	closed   bool
}

func New(engine thumbnail.Generator, codec thumbnail.Codec, cfg Config) *Manager {
	if cfg.FastWorkers <= 0 {
		cfg.FastWorkers = workers.FastPool()
	}
	if cfg.QualityWorkers <= 0 {
		cfg.QualityWorkers = workers.QualityPool()
	}
	if cfg.Retry.MaxRetries == 0 && cfg.Retry.InitialBackoff == 0 {
		cfg.Retry = filesystem.DefaultRetryConfig()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		engine:   engine,
		codec:    codec,
		cfg:      cfg,
		log:      logging.Component("manager"),
		fastQ:    newQueue[*Request](),
		qualityQ: newQueue[*Request](),
		ctx:      ctx,
		cancel:   cancel,
		requests: make(map[string]*Request),
	}
}

// Init starts the worker pools. Later calls do nothing.
func (m *Manager) Init() {
	m.initOnce.Do(func() {
		m.mu.Lock()
		closed := m.closed
		m.mu.Unlock()
		if closed {
			return
		}
		for i := 0; i < m.cfg.FastWorkers; i++ {
			m.wg.Add(1)
			go m.worker(m.fastQ, m.dealWithFast)
		}
		for i := 0; i < m.cfg.QualityWorkers; i++ {
			m.wg.Add(1)
			go m.worker(m.qualityQ, m.dealWithQuality)
		}
		m.log.Infof("started %d fast and %d quality workers", m.cfg.FastWorkers, m.cfg.QualityWorkers)
	})
}

// AddRequest registers a request and queues its first pass. It returns the
// request id immediately; results arrive through cb on exec.
func (m *Manager) AddRequest(uri, path string, size thumbnail.Size, mode Mode, exec delivery.Executor, cb Callback) (string, error) {
	if (uri == "" && path == "") || cb == nil {
		return "", ErrInvalidRequest
	}
	if exec == nil {
		exec = delivery.Inline
	}
	m.Init()

	req := &Request{
		ID:      uuid.New().String(),
		URI:     uri,
		Path:    path,
		AssetID: assetIDFromURI(uri),
		Size:    size,
		Mode:    mode,
		exec:    exec,
		cb:      cb,
	}
	if path != "" {
		req.Kind = mediatypes.KindForPath(path)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return "", ErrClosed
	}
	m.requests[req.ID] = req
	m.mu.Unlock()
	metrics.ManagerLiveRequests.Inc()

	if NeedsFast(size, mode) {
		metrics.ManagerRequestsTotal.WithLabelValues("fast").Inc()
		m.pushFast(req)
	} else {
		metrics.ManagerRequestsTotal.WithLabelValues("quality").Inc()
		m.pushQuality(req)
	}
	return req.ID, nil
}

// RemoveRequest cancels a request. Work already running finishes but its
// result is not delivered.
func (m *Manager) RemoveRequest(id string) {
	if req, ok := m.lookup(id); ok {
		req.UpdateStatus(StatusRemove)
	}
	m.forget(id)
}

// Close stops the worker pools and waits for them. Queued requests are
// dropped.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		m.mu.Unlock()
		m.cancel()
		m.fastQ.close()
		m.qualityQ.close()
		m.wg.Wait()
		m.updateQueueMetrics()
	})
}

// Stats returns the live request count and queue depths.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	live := len(m.requests)
	m.mu.Unlock()
	return Stats{
		LiveRequests: live,
		FastQueue:    m.fastQ.len(),
		QualityQueue: m.qualityQ.len(),
	}
}

// lookup returns a live request.
func (m *Manager) lookup(id string) (*Request, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	return req, ok
}

func (m *Manager) forget(id string) {
	m.mu.Lock()
	_, ok := m.requests[id]
	delete(m.requests, id)
	m.mu.Unlock()
	if ok {
		metrics.ManagerLiveRequests.Dec()
	}
}

func (m *Manager) pushFast(req *Request) {
	req.UpdateStatus(StatusFast)
	if !m.fastQ.push(req) {
		m.forget(req.ID)
	}
	m.updateQueueMetrics()
}

func (m *Manager) pushQuality(req *Request) {
	req.UpdateStatus(StatusQuality)
	if !m.qualityQ.push(req) {
		m.forget(req.ID)
	}
	m.updateQueueMetrics()
}

func (m *Manager) updateQueueMetrics() {
	metrics.ManagerQueueDepth.WithLabelValues("fast").Set(float64(m.fastQ.len()))
	metrics.ManagerQueueDepth.WithLabelValues("quality").Set(float64(m.qualityQ.len()))
}

func (m *Manager) worker(q *queue[*Request], handle func(*Request)) {
	defer m.wg.Done()
	for {
		req, ok := q.pop()
		if !ok {
			return
		}
		m.updateQueueMetrics()
		if req.NeedContinue() {
			m.safely(req, handle)
		}
	}
}

// safely keeps a panic in one request from taking down its worker.
func (m *Manager) safely(req *Request, handle func(*Request)) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Errorf("request %s panicked: %v", req.ID, r)
			m.forget(req.ID)
		}
	}()
	handle(req)
}

func (m *Manager) dealWithFast(req *Request) {
	pm, err := m.requestFast(req)
	if err != nil {
		// No local artifact yet, so the quality pass has to produce one.
		m.log.Debugf("fast pass for %s missed: %v", req.ID, err)
		m.pushQuality(req)
		return
	}
	req.setPixelMap(pm, true)

	if !m.notify(req, true) || !req.NeedContinue() {
		return
	}
	if NeedsQuality(req.Size, req.Mode) {
		m.pushQuality(req)
	} else {
		m.forget(req.ID)
	}
}

func (m *Manager) dealWithQuality(req *Request) {
	pm, err := m.requestQuality(req)
	if err != nil {
		m.log.Warnf("quality pass for %s (%s) failed: %v", req.ID, req.Path, err)
		metrics.ManagerDeliveries.WithLabelValues("quality", "failed").Inc()
		m.forget(req.ID)
		return
	}
	req.setPixelMap(pm, false)
	m.notify(req, false)
}

// requestFast decodes the persisted fast-tier artifact into shared memory.
func (m *Manager) requestFast(req *Request) (*thumbnail.PixelMap, error) {
	if req.Path == "" {
		return nil, fmt.Errorf("no source path for local lookup")
	}
	tier := thumbnail.FastTier(req.Size, req.Kind)
	f, err := filesystem.OpenWithRetry(m.cfg.Layout.Path(req.Path, tier), m.cfg.Retry)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, err := m.decodeArtifact(f)
	if err != nil {
		return nil, err
	}
	return thumbnail.NewPixelMap(img, true, "thumbnail-fast-"+req.ID)
}

// requestQuality fetches the artifact covering the request from the engine,
// generating it when needed, and fits it to the requested size.
func (m *Manager) requestQuality(req *Request) (*thumbnail.PixelMap, error) {
	f, err := m.engine.GetThumbnailPixelMap(m.ctx, req.options(), req.Size)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, err := m.decodeArtifact(f)
	if err != nil {
		return nil, err
	}

	img = m.fit(img, req.Size)

	kind := req.Kind
	if kind == "" {
		kind = mediatypes.KindImage
	}
	// Calendar tiers go out through shared memory like the fast pass.
	if thumbnail.TierForSize(req.Size, kind).Square() {
		return thumbnail.NewPixelMap(img, true, "thumbnail-"+req.ID)
	}
	return thumbnail.NewPixelMap(img, false, "")
}

// fit scales img to size, keeping the ratio when both agree and center
// cropping otherwise. Non-positive sizes leave img unchanged.
func (m *Manager) fit(img image.Image, size thumbnail.Size) image.Image {
	b := img.Bounds()
	src := thumbnail.Size{Width: b.Dx(), Height: b.Dy()}
	switch {
	case size.Width <= 0 || size.Height <= 0 || src == size:
		return img
	case thumbnail.SameRatio(src, size):
		return m.codec.Resize(img, size)
	default:
		return m.codec.CenterScaleToRatio(img, size)
	}
}

// decodeArtifact maps an opened artifact and decodes it.
func (m *Manager) decodeArtifact(f *os.File) (image.Image, error) {
	mapping, err := shm.MapFile(f)
	if err != nil {
		return nil, err
	}
	defer mapping.Close()

	img, err := m.codec.DecodeReader(bytes.NewReader(mapping.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", thumbnail.ErrCodec, err)
	}
	return img, nil
}
