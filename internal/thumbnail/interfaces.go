package thumbnail

import (
	"context"
	"image"
	"io"
	"os"

	"media-library/internal/asyncworker"
	"media-library/internal/database"
	"media-library/internal/mediatypes"
)

// Codec decodes sources and scales and encodes artifacts.
type Codec interface {
	// Decode reads a source file. The result may be shrunk at decode time
	// as long as it still covers hint on both edges.
	Decode(ctx context.Context, path string, kind mediatypes.AssetKind, hint Size) (image.Image, error)
	// DecodeReader decodes an encoded artifact.
	DecodeReader(r io.Reader) (image.Image, error)
	Compress(img image.Image, t Tier) ([]byte, error)
	Resize(img image.Image, size Size) image.Image
	// CenterScaleToRatio crops img around its center to the ratio of
	// target and scales the crop to target.
	CenterScaleToRatio(img image.Image, target Size) image.Image
}

// AssetStore is the metadata store the engine reads and updates.
type AssetStore interface {
	QueryArtifactInfo(ctx context.Context, id int64) (database.ArtifactInfo, error)
	UpdateCacheMetadata(ctx context.Context, id int64, f database.CacheFields) error
	ListMissingThumbnails(ctx context.Context, limit int) ([]database.ArtifactInfo, error)
	ListLCDBeyond(ctx context.Context, keep int) ([]database.ArtifactInfo, error)
}

// TaskQueue accepts deferred generation work.
type TaskQueue interface {
	Add(t asyncworker.Task, p asyncworker.Priority) bool
}

// Generator is the capability the request manager depends on.
type Generator interface {
	CreateThumbnail(ctx context.Context, opts Options, sync bool) error
	CreateLCD(ctx context.Context, opts Options, sync bool) error
	// GetThumbnailPixelMap returns an open artifact covering size,
	// generating it first if needed. The caller closes the file.
	GetThumbnailPixelMap(ctx context.Context, opts Options, size Size) (*os.File, error)
	Invalidate(ctx context.Context, opts Options) error
}
