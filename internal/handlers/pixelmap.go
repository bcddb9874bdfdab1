package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"media-library/internal/database"
	"media-library/internal/logging"
	"media-library/internal/manager"
	"media-library/internal/thumbnail"
)

type delivered struct {
	pm   *thumbnail.PixelMap
	fast bool
}

func parseMode(s string) (manager.Mode, error) {
	switch s {
	case "", "both":
		return manager.ModeBoth, nil
	case "fast":
		return manager.ModeFastOnly, nil
	case "quality":
		return manager.ModeQualityOnly, nil
	}
	return 0, fmt.Errorf("invalid mode %q", s)
}

// GetPixelMap runs a pixel request through the manager and returns the
// final pass as JPEG. With mode=fast the first delivery is final, otherwise
// the quality pass is. When the quality pass does not arrive in time an
// earlier fast preview is served instead.
func (h *Handlers) GetPixelMap(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		writeJSONError(w, "invalid asset id", http.StatusBadRequest)
		return
	}
	size := thumbnail.Size{Width: thumbnail.ThumbSize, Height: thumbnail.ThumbSize}
	if v := r.URL.Query().Get("size"); v != "" {
		if size, err = thumbnail.ParseSize(v); err != nil {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	mode, err := parseMode(r.URL.Query().Get("mode"))
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	info, err := h.Library.QueryArtifactInfo(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrAssetNotFound) {
			writeJSONError(w, "asset not found", http.StatusNotFound)
			return
		}
		logging.Error("failed to look up asset %d: %v", id, err)
		writeJSONError(w, "failed to look up asset", http.StatusInternalServerError)
		return
	}

	// Two slots: a fast preview and the quality image.
	results := make(chan delivered, 2)
	uri := fmt.Sprintf("media://asset/%d", id)
	reqID, err := h.Requests.AddRequest(uri, info.Path, size, mode, h.Executor, func(pm *thumbnail.PixelMap, fast bool) {
		select {
		case results <- delivered{pm: pm, fast: fast}:
		default:
			_ = pm.Release()
		}
	})
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	final, ok := h.awaitFinal(r, reqID, mode, results)
	if !ok {
		writeJSONError(w, "pixel map not ready", http.StatusGatewayTimeout)
		return
	}
	defer func() { _ = final.pm.Release() }()

	body, err := h.Codec.Compress(final.pm.Image, thumbnail.TierForSize(size, info.Kind))
	if err != nil {
		logging.Error("failed to encode pixel map for asset %d: %v", id, err)
		writeJSONError(w, "failed to encode pixel map", http.StatusInternalServerError)
		return
	}

	pass := "quality"
	if final.fast {
		pass = "fast"
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Pixelmap-Pass", pass)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		logging.Debug("failed to write pixel map: %v", err)
	}
}

// awaitFinal collects deliveries until the final one, the timeout or the
// client going away. The request is removed from the manager on every
// path that does not end in a quality delivery.
func (h *Handlers) awaitFinal(r *http.Request, reqID string, mode manager.Mode, results <-chan delivered) (delivered, bool) {
	timer := time.NewTimer(h.opts.PixelMapTimeout)
	defer timer.Stop()

	var preview *delivered
	for {
		select {
		case d := <-results:
			if !d.fast || mode == manager.ModeFastOnly {
				if preview != nil {
					_ = preview.pm.Release()
				}
				if d.fast {
					h.Requests.RemoveRequest(reqID)
				}
				return d, true
			}
			preview = &d
		case <-timer.C:
			h.Requests.RemoveRequest(reqID)
			if preview != nil {
				return *preview, true
			}
			return delivered{}, false
		case <-r.Context().Done():
			h.Requests.RemoveRequest(reqID)
			if preview != nil {
				_ = preview.pm.Release()
			}
			return delivered{}, false
		}
	}
}
