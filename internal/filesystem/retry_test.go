package filesystem

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"
)

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", config.MaxRetries)
	}
	if config.InitialBackoff != 50*time.Millisecond {
		t.Errorf("InitialBackoff = %v, want 50ms", config.InitialBackoff)
	}
	if config.MaxBackoff != 500*time.Millisecond {
		t.Errorf("MaxBackoff = %v, want 500ms", config.MaxBackoff)
	}
}

func TestIsNFSStaleError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil error", err: nil, want: false},
		{name: "ESTALE error", err: syscall.ESTALE, want: true},
		{name: "wrapped ESTALE", err: &os.PathError{Op: "open", Path: "/x", Err: syscall.ESTALE}, want: true},
		{name: "ENOENT error", err: syscall.ENOENT, want: false},
		{name: "generic error", err: os.ErrNotExist, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isNFSStaleError(tt.err); got != tt.want {
				t.Errorf("isNFSStaleError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVolumeResolver(t *testing.T) {
	vr := NewVolumeResolver(map[string]string{
		"media":       "/media",
		"cache":       "/cache",
		"cache-thumb": "/cache/thumbnails",
	})

	tests := []struct {
		path string
		want string
	}{
		{"/media/photos/a.jpg", "media"},
		{"/media", "media"},
		{"/cache/thumbnails/ab/abcd/THM.jpg", "cache-thumb"},
		{"/cache/other", "cache"},
		{"/mediafiles/x.jpg", "unknown"},
		{"/tmp/x", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := vr.Resolve(tt.path); got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}

	var nilResolver *VolumeResolver
	if got := nilResolver.Resolve("/media/x"); got != "unknown" {
		t.Errorf("nil resolver = %q, want unknown", got)
	}
}

func TestStatAndOpenWithRetry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.jpg")
	if err := os.WriteFile(path, []byte("jpeg"), 0o644); err != nil {
		t.Fatal(err)
	}

	info, err := StatWithRetry(path, DefaultRetryConfig())
	if err != nil {
		t.Fatalf("StatWithRetry: %v", err)
	}
	if info.Size() != 4 {
		t.Errorf("size = %d, want 4", info.Size())
	}

	f, err := OpenWithRetry(path, DefaultRetryConfig())
	if err != nil {
		t.Fatalf("OpenWithRetry: %v", err)
	}
	f.Close()

	start := time.Now()
	if _, err := OpenWithRetry(filepath.Join(dir, "missing.jpg"), DefaultRetryConfig()); !os.IsNotExist(err) {
		t.Errorf("expected not-exist error, got %v", err)
	}
	if time.Since(start) > 40*time.Millisecond {
		t.Error("non-stale error should not back off")
	}

	if !Exists(path, DefaultRetryConfig()) {
		t.Error("Exists returned false for existing file")
	}
	if Exists(filepath.Join(dir, "missing.jpg"), DefaultRetryConfig()) {
		t.Error("Exists returned true for missing file")
	}
}

type countingObserver struct {
	mu       sync.Mutex
	attempts int
	failures int
	stale    int
}

func (o *countingObserver) ObserveOperation(string, string, float64, error) {}
func (o *countingObserver) ObserveRetryAttempt(string, string) {
	o.mu.Lock()
	o.attempts++
	o.mu.Unlock()
}
func (o *countingObserver) ObserveRetrySuccess(string, string) {}
func (o *countingObserver) ObserveRetryFailure(string, string) {
	o.mu.Lock()
	o.failures++
	o.mu.Unlock()
}
func (o *countingObserver) ObserveRetryDuration(string, string, float64) {}
func (o *countingObserver) ObserveStaleError(string, string) {
	o.mu.Lock()
	o.stale++
	o.mu.Unlock()
}

func TestWithRetryStaleExhaustsRetries(t *testing.T) {
	obs := &countingObserver{}
	SetObserver(obs)
	defer SetObserver(nil)

	config := RetryConfig{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
	calls := 0
	_, err := withRetry("open", "/media/x", config, func() (int, error) {
		calls++
		return 0, syscall.ESTALE
	})

	if err != syscall.ESTALE {
		t.Errorf("err = %v, want ESTALE", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if obs.attempts != 2 || obs.failures != 1 || obs.stale != 3 {
		t.Errorf("observer attempts=%d failures=%d stale=%d, want 2/1/3", obs.attempts, obs.failures, obs.stale)
	}
}

func TestWithRetryRecoversAfterStale(t *testing.T) {
	config := RetryConfig{MaxRetries: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
	calls := 0
	v, err := withRetry("stat", "/media/x", config, func() (string, error) {
		calls++
		if calls < 2 {
			return "", syscall.ESTALE
		}
		return "ok", nil
	})
	if err != nil || v != "ok" {
		t.Fatalf("got (%q, %v), want (ok, nil)", v, err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ab", "abcdef", "THM.jpg")

	if err := WriteFileAtomic(path, []byte("first"), 0o644, 0o755); err != nil {
		t.Fatalf("WriteFileAtomic: %v", err)
	}
	if err := WriteFileAtomic(path, []byte("second"), 0o644, 0o755); err != nil {
		t.Fatalf("WriteFileAtomic overwrite: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, []byte("second")) {
		t.Errorf("content = %q, want second", got)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the artifact in the directory, found %d entries", len(entries))
	}
}

func TestRemoveIfExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "LCD.jpg")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	removed, err := RemoveIfExists(path)
	if err != nil || !removed {
		t.Fatalf("first remove = (%v, %v), want (true, nil)", removed, err)
	}
	removed, err = RemoveIfExists(path)
	if err != nil || removed {
		t.Fatalf("second remove = (%v, %v), want (false, nil)", removed, err)
	}
}
