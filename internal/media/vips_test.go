package media

import (
	"path/filepath"
	"testing"

	"media-library/internal/logging"
	"media-library/internal/thumbnail"
)

// govips cannot restart after Shutdown, so nothing here shuts it down.

func TestInitVipsIdempotency(t *testing.T) {
	if err := InitVips(); err != nil {
		t.Skipf("libvips not available in test environment: %v", err)
	}
	if err := InitVips(); err != nil {
		t.Errorf("Second InitVips() call failed: %v", err)
	}
	if !IsVipsAvailable() {
		t.Error("After successful InitVips, IsVipsAvailable should return true")
	}
}

func TestLoadImageWithVipsCoversHint(t *testing.T) {
	if err := InitVips(); err != nil {
		t.Skipf("libvips not available in test environment: %v", err)
	}
	path := filepath.Join(t.TempDir(), "large.jpg")
	createTestJPEG(t, path, 2000, 1000)

	img, err := LoadImageWithVips(path, thumbnail.Size{Width: 256, Height: 256})
	if err != nil {
		t.Fatalf("LoadImageWithVips failed: %v", err)
	}
	b := img.Bounds()
	if b.Dy() < 256 || b.Dx() < 256 {
		t.Errorf("vips output %dx%d does not cover the hint", b.Dx(), b.Dy())
	}
	if b.Dx() > 600 {
		t.Errorf("vips output %dx%d was not shrunk", b.Dx(), b.Dy())
	}
}

func TestVipsThresholdFollowsLogLevel(t *testing.T) {
	levels := []logging.LogLevel{logging.LevelDebug, logging.LevelInfo, logging.LevelWarn, logging.LevelError}
	prev := len(vipsSeverity)
	for _, l := range levels {
		threshold, ok := vipsThreshold[l]
		if !ok {
			t.Fatalf("no vips threshold for %v", l)
		}
		rank := vipsSeverity[threshold]
		if rank >= prev {
			t.Errorf("threshold for %v has rank %d, want below %d", l, rank, prev)
		}
		prev = rank
	}
}
