package mediatypes

import "testing"

func TestKindForPath(t *testing.T) {
	tests := []struct {
		path string
		want AssetKind
	}{
		{"/media/a.jpg", KindImage},
		{"/media/A.JPEG", KindImage},
		{"/media/b.webp", KindImage},
		{"/media/c.mp4", KindVideo},
		{"/media/d.MKV", KindVideo},
		{"/media/e.mp3", KindAudio},
		{"/media/f.flac", KindAudio},
		{"/media/g.txt", KindOther},
		{"/media/noext", KindOther},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := KindForPath(tt.path); got != tt.want {
				t.Errorf("KindForPath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestExtensionSetsDisjoint(t *testing.T) {
	for ext := range ImageExtensions {
		if VideoExtensions[ext] || AudioExtensions[ext] {
			t.Errorf("%s is listed under more than one kind", ext)
		}
	}
	for ext := range VideoExtensions {
		if AudioExtensions[ext] {
			t.Errorf("%s is listed as both video and audio", ext)
		}
	}
}

func TestEveryExtensionHasMimeType(t *testing.T) {
	for _, set := range []map[string]bool{ImageExtensions, VideoExtensions, AudioExtensions} {
		for ext := range set {
			if _, ok := MimeTypes[ext]; !ok {
				t.Errorf("missing MIME type for %s", ext)
			}
		}
	}
}

func TestMimeTypeFallback(t *testing.T) {
	if got := MimeType("/x/y.bin"); got != "application/octet-stream" {
		t.Errorf("MimeType fallback = %q", got)
	}
	if got := MimeType("/x/y.PNG"); got != "image/png" {
		t.Errorf("MimeType(.PNG) = %q", got)
	}
}

func TestSupported(t *testing.T) {
	if !KindImage.Supported() || !KindVideo.Supported() || !KindAudio.Supported() {
		t.Error("image, video and audio should be supported")
	}
	if KindOther.Supported() {
		t.Error("other should not be supported")
	}
}
