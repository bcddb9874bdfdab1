package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"media-library/internal/filesystem"
	"media-library/internal/metrics"
)

func TestInitFilesystemMetrics(t *testing.T) {
	root := t.TempDir()
	mediaDir := filepath.Join(root, "media")
	cacheDir := filepath.Join(root, "thumbnails")
	initFilesystemMetrics(mediaDir, cacheDir, filepath.Join(root, "db", "media.db"))
	defer filesystem.SetObserver(nil)
	defer filesystem.SetDefaultVolumeResolver(nil)

	// A regular file where the cache directory should be makes the write fail.
	if err := os.WriteFile(cacheDir, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	errs := metrics.FilesystemOperationErrors.WithLabelValues("cache", "write")
	before := testutil.ToFloat64(errs)
	if err := filesystem.WriteFileAtomic(filepath.Join(cacheDir, "ab", "THM.jpg"), []byte("x"), 0o644, 0o755); err == nil {
		t.Fatal("expected write under a regular file to fail")
	}
	if got := testutil.ToFloat64(errs) - before; got != 1 {
		t.Errorf("cache write error delta = %v, want 1", got)
	}

	if err := filesystem.WriteFileAtomic(filepath.Join(mediaDir, "a.txt"), []byte("x"), 0o644, 0o755); err != nil {
		t.Fatalf("WriteFileAtomic failed: %v", err)
	}
	if n := testutil.CollectAndCount(metrics.FilesystemOperationDuration, "media_library_filesystem_operation_duration_seconds"); n == 0 {
		t.Error("no filesystem duration series recorded")
	}
}
