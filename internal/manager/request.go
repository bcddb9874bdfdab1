package manager

import (
	"net/url"
	"strconv"
	"strings"
	"sync"

	"media-library/internal/delivery"
	"media-library/internal/mediatypes"
	"media-library/internal/thumbnail"
)

// Mode selects which passes a request wants.
type Mode int

const (
	// ModeBoth delivers a fast preview then the quality image.
	ModeBoth Mode = iota
	// ModeFastOnly delivers only the fast preview.
	ModeFastOnly
	// ModeQualityOnly skips the fast preview.
	ModeQualityOnly
)

func (m Mode) String() string {
	switch m {
	case ModeFastOnly:
		return "fast"
	case ModeQualityOnly:
		return "quality"
	default:
		return "both"
	}
}

// Status is the lifecycle of a request. It only moves forward.
type Status int32

const (
	StatusInitial Status = iota
	StatusFast
	StatusQuality
	// StatusRemove is terminal.
	StatusRemove
)

func (s Status) String() string {
	switch s {
	case StatusInitial:
		return "initial"
	case StatusFast:
		return "fast"
	case StatusQuality:
		return "quality"
	case StatusRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// CanAdvance reports whether s may move to next.
func (s Status) CanAdvance(next Status) bool {
	return next > s
}

// NeedsFast reports whether a request gets the fast pass.
func NeedsFast(size thumbnail.Size, mode Mode) bool {
	return thumbnail.IsThumbSize(size) && mode != ModeQualityOnly
}

// NeedsQuality reports whether a request that took the fast pass also
// gets the quality pass.
func NeedsQuality(size thumbnail.Size, mode Mode) bool {
	return thumbnail.IsThumbSize(size) && mode != ModeFastOnly
}

// Callback receives a delivered pixel map. The receiver owns pm and should
// Release it when done.
type Callback func(pm *thumbnail.PixelMap, fast bool)

// Request is one caller's interest in an asset's pixels.
type Request struct {
	ID      string
	URI     string
	Path    string
	AssetID int64
	Kind    mediatypes.AssetKind
	Size    thumbnail.Size
	Mode    Mode

	exec delivery.Executor
	cb   Callback

	mu      sync.Mutex
	status  Status
	fast    *thumbnail.PixelMap
	quality *thumbnail.PixelMap
}

// Status returns the current status.
func (r *Request) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// UpdateStatus moves the request to next if that is forward.
func (r *Request) UpdateStatus(next Status) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.status.CanAdvance(next) {
		return false
	}
	r.status = next
	return true
}

// NeedContinue reports whether the request is still wanted.
func (r *Request) NeedContinue() bool {
	return r.Status() < StatusRemove
}

func (r *Request) setPixelMap(pm *thumbnail.PixelMap, fast bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if fast {
		r.fast = pm
	} else {
		r.quality = pm
	}
}

// takePixelMap hands the stored pixel map over to the caller.
func (r *Request) takePixelMap(fast bool) *thumbnail.PixelMap {
	r.mu.Lock()
	defer r.mu.Unlock()
	var pm *thumbnail.PixelMap
	if fast {
		pm, r.fast = r.fast, nil
	} else {
		pm, r.quality = r.quality, nil
	}
	return pm
}

func (r *Request) options() thumbnail.Options {
	return thumbnail.Options{AssetID: r.AssetID, Path: r.Path, Kind: r.Kind}
}

// assetIDFromURI returns the last numeric path segment of uri, such as the
// 12 in file://media/Photo/12/IMG_0001.jpg.
func assetIDFromURI(uri string) int64 {
	if uri == "" {
		return 0
	}
	p := uri
	if u, err := url.Parse(uri); err == nil {
		p = u.Host + u.Path
	}
	segments := strings.Split(p, "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if id, err := strconv.ParseInt(segments[i], 10, 64); err == nil && id > 0 {
			return id
		}
	}
	return 0
}
