package manager

import (
	"testing"

	"media-library/internal/thumbnail"
)

func TestStatusOnlyAdvances(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusInitial, StatusFast, true},
		{StatusInitial, StatusQuality, true},
		{StatusFast, StatusQuality, true},
		{StatusQuality, StatusFast, false},
		{StatusFast, StatusFast, false},
		{StatusQuality, StatusRemove, true},
		{StatusRemove, StatusQuality, false},
		{StatusRemove, StatusRemove, false},
	}
	for _, tt := range tests {
		r := &Request{status: tt.from}
		if got := r.UpdateStatus(tt.to); got != tt.want {
			t.Errorf("%s -> %s accepted = %v, want %v", tt.from, tt.to, got, tt.want)
		}
		want := tt.from
		if tt.want {
			want = tt.to
		}
		if r.Status() != want {
			t.Errorf("%s -> %s left status %s, want %s", tt.from, tt.to, r.Status(), want)
		}
	}
}

func TestNeedContinue(t *testing.T) {
	r := &Request{}
	if !r.NeedContinue() {
		t.Error("new request should continue")
	}
	r.UpdateStatus(StatusRemove)
	if r.NeedContinue() {
		t.Error("removed request should not continue")
	}
}

func TestPassSelection(t *testing.T) {
	tests := []struct {
		size        thumbnail.Size
		mode        Mode
		fast, known bool
	}{
		{thumbnail.Size{Width: 1024, Height: 1024}, ModeBoth, true, true},
		{thumbnail.Size{Width: 256, Height: 10}, ModeBoth, true, true},
		{thumbnail.Size{Width: 255, Height: 255}, ModeBoth, false, false},
		{thumbnail.Size{Width: 1024, Height: 1024}, ModeQualityOnly, false, true},
		{thumbnail.Size{Width: 1024, Height: 1024}, ModeFastOnly, true, false},
	}
	for _, tt := range tests {
		if got := NeedsFast(tt.size, tt.mode); got != tt.fast {
			t.Errorf("NeedsFast(%v, %s) = %v, want %v", tt.size, tt.mode, got, tt.fast)
		}
		if got := NeedsQuality(tt.size, tt.mode); got != tt.known {
			t.Errorf("NeedsQuality(%v, %s) = %v, want %v", tt.size, tt.mode, got, tt.known)
		}
	}
}

func TestAssetIDFromURI(t *testing.T) {
	tests := []struct {
		uri  string
		want int64
	}{
		{"file://media/Photo/12/IMG_0001.jpg", 12},
		{"file://media/Audio/7", 7},
		{"/plain/path/3/a.mp3", 3},
		{"file://media/Photo/IMG.jpg", 0},
		{"", 0},
	}
	for _, tt := range tests {
		if got := assetIDFromURI(tt.uri); got != tt.want {
			t.Errorf("assetIDFromURI(%q) = %d, want %d", tt.uri, got, tt.want)
		}
	}
}

func TestQueueFIFOAndClose(t *testing.T) {
	q := newQueue[int]()
	for i := 1; i <= 3; i++ {
		q.push(i)
	}
	for want := 1; want <= 3; want++ {
		if got, ok := q.pop(); !ok || got != want {
			t.Fatalf("pop = %d, %v; want %d", got, ok, want)
		}
	}

	done := make(chan bool)
	go func() {
		_, ok := q.pop()
		done <- ok
	}()
	q.close()
	if <-done {
		t.Error("pop should report false after close")
	}
	if q.push(4) {
		t.Error("push should fail after close")
	}
}
