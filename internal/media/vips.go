package media

import (
	"bytes"
	"fmt"
	"image"
	"path/filepath"
	"sync"

	"media-library/internal/logging"
	"media-library/internal/thumbnail"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/disintegration/imaging"
)

var (
	vipsInitialized bool
	vipsInitMutex   sync.Mutex
	vipsAvailable   bool
)

// vipsSeverity ranks libvips levels, most severe first. The raw values are
// GLib flags and do not order by severity.
var vipsSeverity = map[vips.LogLevel]int{
	vips.LogLevelError:    0,
	vips.LogLevelCritical: 1,
	vips.LogLevelWarning:  2,
	vips.LogLevelMessage:  3,
	vips.LogLevelInfo:     4,
	vips.LogLevelDebug:    5,
}

// vipsThreshold is the least severe libvips message forwarded at each
// application log level.
var vipsThreshold = map[logging.LogLevel]vips.LogLevel{
	logging.LevelDebug: vips.LogLevelInfo,
	logging.LevelInfo:  vips.LogLevelWarning,
	logging.LevelWarn:  vips.LogLevelCritical,
	logging.LevelError: vips.LogLevelError,
}

// forwardVipsLog routes libvips messages at least as severe as threshold
// into the application log.
func forwardVipsLog(threshold vips.LogLevel) func(string, vips.LogLevel, string) {
	limit := vipsSeverity[threshold]
	return func(domain string, level vips.LogLevel, msg string) {
		rank, ok := vipsSeverity[level]
		if !ok || rank > limit {
			return
		}
		switch level {
		case vips.LogLevelError, vips.LogLevelCritical:
			logging.Error("[vips:%s] %s", domain, msg)
		case vips.LogLevelWarning:
			logging.Warn("[vips:%s] %s", domain, msg)
		default:
			logging.Debug("[vips:%s] %s", domain, msg)
		}
	}
}

// InitVips starts libvips once for the process. Later calls do nothing.
func InitVips() error {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		return nil
	}

	// Logging must be configured before Startup.
	threshold, ok := vipsThreshold[logging.GetLevel()]
	if !ok {
		threshold = vips.LogLevelCritical
	}
	vips.LoggingSettings(forwardVipsLog(threshold), threshold)

	// One decode at a time; the scheduler and quality pool bound concurrency.
	vips.Startup(&vips.Config{
		ConcurrencyLevel: 1,
		MaxCacheMem:      32 * 1024 * 1024,
		MaxCacheSize:     64,
	})

	vipsInitialized = true
	vipsAvailable = true
	logging.Info("libvips initialized successfully (version: %s)", vips.Version)
	return nil
}

// ShutdownVips releases libvips. It cannot be started again afterwards.
func ShutdownVips() {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		vips.Shutdown()
		vipsInitialized = false
		vipsAvailable = false
		logging.Info("libvips shutdown complete")
	}
}

// LoadImageWithVips decodes path with libvips, shrinking during decode to
// the smallest size that still covers hint on both edges.
func LoadImageWithVips(path string, hint thumbnail.Size) (image.Image, error) {
	if !IsVipsAvailable() {
		return nil, fmt.Errorf("libvips not available")
	}

	ref, err := vips.LoadImageFromFile(path, vips.NewImportParams())
	if err != nil {
		return nil, fmt.Errorf("vips failed to load image: %w", err)
	}
	defer ref.Close()

	src := thumbnail.Size{Width: ref.Width(), Height: ref.Height()}
	target := coverSize(src, hint)
	logging.Debug("Vips loaded %s: %v, shrinking to %v", filepath.Base(path), src, target)

	if target != src {
		if err := ref.Thumbnail(target.Width, target.Height, vips.InterestingNone); err != nil {
			return nil, fmt.Errorf("vips resize failed: %w", err)
		}
	}

	// Round-trip through JPEG so callers get a plain image.Image.
	imgBytes, _, err := ref.ExportJpeg(&vips.JpegExportParams{
		Quality:        95,
		StripMetadata:  true,
		OptimizeCoding: true,
	})
	if err != nil {
		return nil, fmt.Errorf("vips export failed: %w", err)
	}

	img, err := imaging.Decode(bytes.NewReader(imgBytes), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode vips output: %w", err)
	}
	return img, nil
}

// IsVipsAvailable reports whether InitVips succeeded.
func IsVipsAvailable() bool {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()
	return vipsAvailable
}
