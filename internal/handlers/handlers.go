package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"media-library/internal/database"
	"media-library/internal/delivery"
	"media-library/internal/indexer"
	"media-library/internal/manager"
	"media-library/internal/middleware"
	"media-library/internal/thumbnail"
)

// Library is the asset store as seen by the ops API.
type Library interface {
	GetStats(ctx context.Context) (database.IndexStats, error)
	QueryArtifactInfo(ctx context.Context, id int64) (database.ArtifactInfo, error)
	Ping(ctx context.Context) error
}

// IndexStatus reports and triggers indexing.
type IndexStatus interface {
	IsReady() bool
	GetHealthStatus() indexer.HealthStatus
	TriggerIndex() bool
}

// Engine is the batch side of the thumbnail engine.
type Engine interface {
	GenerateMissing(ctx context.Context, limit int) (int, error)
	AgeLCD(ctx context.Context, keep int) (int, error)
	Waits() *thumbnail.Registry
}

// Scheduler is the background task scheduler.
type Scheduler interface {
	Interrupt() int
	Depth() (fg, bg int)
}

// Requests is the pixel request manager.
type Requests interface {
	AddRequest(uri, path string, size thumbnail.Size, mode manager.Mode, exec delivery.Executor, cb manager.Callback) (string, error)
	RemoveRequest(id string)
	Stats() manager.Stats
}

// Gate reports whether a write transaction is open.
type Gate interface {
	InTransaction() bool
}

// Deps are the services the handlers read and drive.
type Deps struct {
	Library   Library
	Indexer   IndexStatus
	Engine    Engine
	Scheduler Scheduler
	Requests  Requests
	Gate      Gate
	Codec     thumbnail.Codec
	// Executor runs pixel map callbacks; nil runs them on the worker.
	Executor  delivery.Executor
}

// Options tune the batch endpoints.
type Options struct {
	LCDKeep         int
	GenerateLimit   int
	PixelMapTimeout time.Duration
}

// Handlers serves the operations API.
type Handlers struct {
	Deps
	opts Options
}

// New creates the handlers. Zero options take defaults.
func New(deps Deps, opts Options) *Handlers {
	if opts.GenerateLimit <= 0 {
		opts.GenerateLimit = 1000
	}
	if opts.PixelMapTimeout <= 0 {
		opts.PixelMapTimeout = 30 * time.Second
	}
	return &Handlers{Deps: deps, opts: opts}
}

// Router builds the mux router with metrics middleware installed.
func (h *Handlers) Router(metricsEnabled bool) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))

	r.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/livez", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods(http.MethodGet)
	r.HandleFunc("/version", h.GetVersion).Methods(http.MethodGet)
	if metricsEnabled {
		r.Handle("/metrics", h.MetricsHandler()).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/stats", h.GetStats).Methods(http.MethodGet)
	api.HandleFunc("/reindex", h.TriggerReindex).Methods(http.MethodPost)
	api.HandleFunc("/thumbnails/generate", h.GenerateMissing).Methods(http.MethodPost)
	api.HandleFunc("/thumbnails/aging", h.AgeLCD).Methods(http.MethodPost)
	api.HandleFunc("/thumbnails/interrupt", h.InterruptBackground).Methods(http.MethodPost)
	api.HandleFunc("/assets/{id:[0-9]+}/pixelmap", h.GetPixelMap).Methods(http.MethodGet)

	return r
}
