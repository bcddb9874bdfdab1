package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"

	"media-library/internal/logging"
	"media-library/internal/mediatypes"
	"media-library/internal/thumbnail"

	"github.com/disintegration/imaging"
)

// DefaultQuality is the JPEG quality used per tier.
var DefaultQuality = map[thumbnail.Tier]int{
	thumbnail.TierThumb: 85,
	thumbnail.TierMonth: 80,
	thumbnail.TierYear:  80,
	thumbnail.TierLCD:   90,
}

// Codec decodes sources with vips, imaging and ffmpeg and encodes JPEG
// artifacts.
type Codec struct {
	MaxDimension int
	MaxPixels    int
	Quality      map[thumbnail.Tier]int
}

var _ thumbnail.Codec = (*Codec)(nil)

func NewCodec() *Codec {
	return &Codec{
		MaxDimension: MaxImageDimension,
		MaxPixels:    MaxImagePixels,
		Quality:      DefaultQuality,
	}
}

func (c *Codec) Decode(ctx context.Context, path string, kind mediatypes.AssetKind, hint thumbnail.Size) (image.Image, error) {
	var img image.Image
	var err error

	switch kind {
	case mediatypes.KindImage:
		return c.decodeImage(ctx, path, hint)
	case mediatypes.KindVideo:
		img, err = extractVideoFrame(ctx, path)
	case mediatypes.KindAudio:
		img, err = extractCoverArt(path)
	default:
		return nil, fmt.Errorf("unsupported asset kind %q", kind)
	}
	if err != nil {
		return nil, err
	}
	return shrinkToCover(img, hint), nil
}

func (c *Codec) decodeImage(ctx context.Context, path string, hint thumbnail.Size) (image.Image, error) {
	if IsVipsAvailable() {
		img, err := LoadImageWithVips(path, hint)
		if err == nil {
			return img, nil
		}
		logging.Debug("vips decode failed for %s: %v, trying imaging", path, err)
	}

	format, err := sniffFormat(path)
	if err != nil {
		logging.Debug("Could not detect file type for %s: %v", path, err)
	}
	if needsFFmpeg(format) {
		img, err := decodeWithFFmpeg(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("decode %s image %s: %w", format, path, err)
		}
		return shrinkToCover(img, hint), nil
	}

	img, err := LoadImageConstrained(path, c.MaxDimension, c.MaxPixels)
	if err == nil {
		return shrinkToCover(img, hint), nil
	}
	logging.Debug("imaging decode failed for %s: %v, trying ffmpeg fallback", path, err)

	img, ffErr := decodeWithFFmpeg(ctx, path)
	if ffErr != nil {
		return nil, fmt.Errorf("all image decode methods failed for %s: %w", path, err)
	}
	return shrinkToCover(img, hint), nil
}

func (c *Codec) DecodeReader(r io.Reader) (image.Image, error) {
	return imaging.Decode(r)
}

func (c *Codec) Compress(img image.Image, t thumbnail.Tier) ([]byte, error) {
	quality, ok := c.Quality[t]
	if !ok {
		quality = 85
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", t, err)
	}
	return buf.Bytes(), nil
}

func (c *Codec) Resize(img image.Image, size thumbnail.Size) image.Image {
	return imaging.Resize(img, size.Width, size.Height, imaging.Lanczos)
}

func (c *Codec) CenterScaleToRatio(img image.Image, target thumbnail.Size) image.Image {
	return imaging.Fill(img, target.Width, target.Height, imaging.Center, imaging.Lanczos)
}
