package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"math"
	"os"
	"os/exec"

	"media-library/internal/logging"
	"media-library/internal/thumbnail"

	// Image format decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // WebP format support
)

const (
	// MaxImageDimension is the maximum width or height we'll process.
	// Images larger than this are downscaled right after decode.
	MaxImageDimension = 4096

	// MaxImagePixels is the maximum total pixels (width * height) we'll process.
	MaxImagePixels = 20_000_000 // ~20MP, uses ~80MB in RGBA
)

// LoadImageConstrained loads an image, downscaling if it exceeds size limits.
func LoadImageConstrained(path string, maxDimension, maxPixels int) (image.Image, error) {
	dimensions, err := GetImageDimensions(path)
	if err != nil {
		logging.Debug("Could not get image dimensions for %s: %v, loading unconstrained", path, err)
		return imaging.Open(path, imaging.AutoOrientation(true))
	}

	width, height := dimensions.Width, dimensions.Height
	pixels := width * height

	if width <= maxDimension && height <= maxDimension && pixels <= maxPixels {
		return imaging.Open(path, imaging.AutoOrientation(true))
	}

	targetWidth, targetHeight := width, height
	if width > maxDimension || height > maxDimension {
		if width > height {
			targetWidth = maxDimension
			targetHeight = height * maxDimension / width
		} else {
			targetHeight = maxDimension
			targetWidth = width * maxDimension / height
		}
	}
	if targetPixels := targetWidth * targetHeight; targetPixels > maxPixels {
		scale := math.Sqrt(float64(maxPixels) / float64(targetPixels))
		targetWidth = int(float64(targetWidth) * scale)
		targetHeight = int(float64(targetHeight) * scale)
	}

	logging.Info("Constraining large image %s from %dx%d to %dx%d", path, width, height, targetWidth, targetHeight)

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	return imaging.Resize(img, targetWidth, targetHeight, imaging.Lanczos), nil
}

// ImageDimensions holds image width and height
type ImageDimensions struct {
	Width  int
	Height int
}

// GetImageDimensions returns image dimensions without fully decoding the image
func GetImageDimensions(path string) (*ImageDimensions, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := file.Close(); err != nil {
			logging.Warn("failed to close image file %s: %v", path, err)
		}
	}()

	config, _, err := image.DecodeConfig(file)
	if err != nil {
		return nil, err
	}
	return &ImageDimensions{Width: config.Width, Height: config.Height}, nil
}

// coverSize is the smallest ratio-preserving size of src that covers hint on
// both edges. Sources already at or below hint are returned unchanged.
func coverSize(src, hint thumbnail.Size) thumbnail.Size {
	if src.Width <= 0 || src.Height <= 0 || hint.Width <= 0 || hint.Height <= 0 {
		return src
	}
	scale := math.Max(float64(hint.Width)/float64(src.Width), float64(hint.Height)/float64(src.Height))
	if scale >= 1 {
		return src
	}
	return thumbnail.Size{
		Width:  max(hint.Width, int(math.Ceil(float64(src.Width)*scale))),
		Height: max(hint.Height, int(math.Ceil(float64(src.Height)*scale))),
	}
}

// shrinkToCover downscales img to coverSize.
func shrinkToCover(img image.Image, hint thumbnail.Size) image.Image {
	b := img.Bounds()
	src := thumbnail.Size{Width: b.Dx(), Height: b.Dy()}
	target := coverSize(src, hint)
	if target == src {
		return img
	}
	return imaging.Resize(img, target.Width, target.Height, imaging.Lanczos)
}

// decodeWithFFmpeg decodes formats the Go decoders do not handle (HEIF,
// AVIF, JPEG XL) by asking ffmpeg for a PNG.
func decodeWithFFmpeg(ctx context.Context, path string) (image.Image, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}
	logging.Debug("Using ffmpeg to decode image: %s", path)
	return runFFmpegFrame(ctx, path, "-i", path, "-vframes", "1",
		"-f", "image2pipe", "-vcodec", "png", "-pix_fmt", "rgb24", "-")
}

func runFFmpegFrame(ctx context.Context, path string, args ...string) (image.Image, error) {
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg failed: %v, stderr: %s", err, stderr.String())
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg produced no output for %s", path)
	}
	img, _, err := image.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ffmpeg output: %w", err)
	}
	return img, nil
}

// sniffFormat identifies an image container from its magic bytes.
func sniffFormat(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	header := make([]byte, 32)
	n, err := file.Read(header)
	if err != nil {
		return "", err
	}
	header = header[:n]

	switch {
	case len(header) >= 3 && header[0] == 0xFF && header[1] == 0xD8 && header[2] == 0xFF:
		return "jpeg", nil
	case len(header) >= 8 && bytes.HasPrefix(header, []byte("\x89PNG")):
		return "png", nil
	case len(header) >= 4 && bytes.HasPrefix(header, []byte("GIF8")):
		return "gif", nil
	case len(header) >= 12 && bytes.HasPrefix(header, []byte("RIFF")) && string(header[8:12]) == "WEBP":
		return "webp", nil
	case len(header) >= 2 && header[0] == 0x42 && header[1] == 0x4D:
		return "bmp", nil
	case len(header) >= 4 && (bytes.HasPrefix(header, []byte("II*\x00")) || bytes.HasPrefix(header, []byte("MM\x00*"))):
		return "tiff", nil
	case len(header) >= 12 && string(header[4:8]) == "ftyp":
		switch string(header[8:12]) {
		case "heic", "heix", "hevc", "hevx", "mif1", "msf1":
			return "heif", nil
		case "avif", "avis":
			return "avif", nil
		}
		return "mp4-container", nil
	case len(header) >= 2 && header[0] == 0xFF && header[1] == 0x0A:
		return "jxl", nil
	case len(header) >= 12 && bytes.HasPrefix(header, []byte("\x00\x00\x00\x0cJXL ")):
		return "jxl", nil
	}
	return "unknown", nil
}

// needsFFmpeg reports whether the Go decoders cannot read format.
func needsFFmpeg(format string) bool {
	switch format {
	case "heif", "avif", "jxl", "mp4-container":
		return true
	}
	return false
}
