package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"media-library/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusStarting = "starting"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status            string `json:"status"`
	Ready             bool   `json:"ready"`
	Version           string `json:"version"`
	Uptime            string `json:"uptime"`
	Indexing          bool   `json:"indexing"`
	LastIndexed       string `json:"lastIndexed,omitempty"`
	InitialIndexError string `json:"initialIndexError,omitempty"`
	DatabaseError     string `json:"databaseError,omitempty"`
	FilesIndexed      int64  `json:"filesIndexed"`

	GoVersion    string `json:"goVersion"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	hs := h.Indexer.GetHealthStatus()

	resp := HealthResponse{
		Status:       statusStarting,
		Ready:        hs.Ready,
		Version:      startup.Version,
		Uptime:       hs.Uptime,
		Indexing:     hs.Indexing,
		FilesIndexed: hs.FilesIndexed,
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
	}
	if hs.Ready {
		resp.Status = statusHealthy
	}
	if !hs.LastIndexed.IsZero() {
		resp.LastIndexed = hs.LastIndexed.Format(time.RFC3339)
	}
	if hs.InitialIndexError != "" {
		resp.InitialIndexError = hs.InitialIndexError
		resp.Status = statusDegraded
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.Library.Ping(ctx); err != nil {
		resp.DatabaseError = err.Error()
		resp.Status = statusDegraded
	}

	status := http.StatusOK
	if !hs.Ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ReadinessCheck returns 200 only after the first index pass finished
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	if h.Indexer.IsReady() {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
}
