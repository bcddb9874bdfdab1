package database

import (
	"errors"
	"time"

	"media-library/internal/mediatypes"
)

var (
	// ErrAssetNotFound is returned when no asset row matches the lookup.
	ErrAssetNotFound = errors.New("asset not found")
	// ErrTransactionActive is returned by BeginTransaction while another
	// write transaction is open.
	ErrTransactionActive = errors.New("write transaction already active")
	// ErrNoTransaction is returned by Commit and Rollback with no open transaction.
	ErrNoTransaction = errors.New("no write transaction active")
)

// Asset is an indexed source file.
type Asset struct {
	ID             int64                `json:"id"`
	Path           string               `json:"path"`
	Kind           mediatypes.AssetKind `json:"kind"`
	Size           int64                `json:"size"`
	ModTime        time.Time            `json:"modTime"`
	ThumbnailReady bool                 `json:"thumbnailReady"`
	ThumbnailTime  time.Time            `json:"thumbnailTime,omitempty"`
	LCDVisitTime   time.Time            `json:"lcdVisitTime,omitempty"`
}

// ArtifactInfo is the subset of an asset row the thumbnail engine needs to
// locate the source and its derived artifacts.
type ArtifactInfo struct {
	ID             int64
	Path           string
	Kind           mediatypes.AssetKind
	ThumbnailReady bool
	LCDVisitTime   time.Time
}

// CacheFields describes an update to an asset's thumbnail cache metadata.
// Set and Clear for the same field are mutually exclusive; Set wins.
type CacheFields struct {
	SetThumbnail   bool
	ClearThumbnail bool
	SetLCDVisit    bool
	ClearLCDVisit  bool
	// At is the timestamp recorded by the Set fields. Zero means now.
	At time.Time
}

// Empty reports whether the update changes nothing.
func (f CacheFields) Empty() bool {
	return !f.SetThumbnail && !f.ClearThumbnail && !f.SetLCDVisit && !f.ClearLCDVisit
}

// IndexStats summarizes the asset table.
type IndexStats struct {
	TotalImages      int
	TotalVideos      int
	TotalAudio       int
	MissingThumbnail int
}
