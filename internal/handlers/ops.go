package handlers

import (
	"net/http"

	"media-library/internal/logging"
	"media-library/internal/manager"
)

// StatsResponse is the combined view of library and pipeline load.
type StatsResponse struct {
	Images           int           `json:"images"`
	Videos           int           `json:"videos"`
	Audio            int           `json:"audio"`
	MissingThumbnail int           `json:"missingThumbnail"`
	PendingWaits     int           `json:"pendingWaits"`
	ForegroundTasks  int           `json:"foregroundTasks"`
	BackgroundTasks  int           `json:"backgroundTasks"`
	InTransaction    bool          `json:"inTransaction"`
	Indexing         bool          `json:"indexing"`
	Requests         manager.Stats `json:"requests"`
}

// GetStats returns library counts and pipeline queue depths
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Library.GetStats(r.Context())
	if err != nil {
		logging.Error("failed to get stats: %v", err)
		writeJSONError(w, "failed to get stats", http.StatusInternalServerError)
		return
	}

	fg, bg := h.Scheduler.Depth()
	writeJSON(w, http.StatusOK, StatsResponse{
		Images:           stats.TotalImages,
		Videos:           stats.TotalVideos,
		Audio:            stats.TotalAudio,
		MissingThumbnail: stats.MissingThumbnail,
		PendingWaits:     h.Engine.Waits().Pending(),
		ForegroundTasks:  fg,
		BackgroundTasks:  bg,
		InTransaction:    h.Gate.InTransaction(),
		Indexing:         h.Indexer.GetHealthStatus().Indexing,
		Requests:         h.Requests.Stats(),
	})
}

// TriggerReindex starts an index pass in the background
func (h *Handlers) TriggerReindex(w http.ResponseWriter, _ *http.Request) {
	if !h.Indexer.TriggerIndex() {
		writeJSONError(w, "indexing already in progress", http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

// GenerateMissing queues background THUMB chains for assets without one.
// The limit query parameter caps how many are queued.
func (h *Handlers) GenerateMissing(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(r, "limit", h.opts.GenerateLimit)
	if !ok || limit == 0 {
		writeJSONError(w, "invalid limit", http.StatusBadRequest)
		return
	}
	n, err := h.Engine.GenerateMissing(r.Context(), limit)
	if err != nil {
		logging.Error("failed to queue missing thumbnails: %v", err)
		writeJSONError(w, "failed to queue missing thumbnails", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]int{"queued": n})
}

// AgeLCD deletes LCD artifacts beyond the most recently visited keep.
func (h *Handlers) AgeLCD(w http.ResponseWriter, r *http.Request) {
	keep, ok := queryInt(r, "keep", h.opts.LCDKeep)
	if !ok {
		writeJSONError(w, "invalid keep", http.StatusBadRequest)
		return
	}
	n, err := h.Engine.AgeLCD(r.Context(), keep)
	if err != nil {
		logging.Error("LCD aging failed: %v", err)
		writeJSONError(w, "LCD aging failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": n, "keep": keep})
}

// InterruptBackground drops queued background tasks.
func (h *Handlers) InterruptBackground(w http.ResponseWriter, _ *http.Request) {
	n := h.Scheduler.Interrupt()
	logging.Info("background tasks interrupted: %d dropped", n)
	writeJSON(w, http.StatusOK, map[string]int{"dropped": n})
}
