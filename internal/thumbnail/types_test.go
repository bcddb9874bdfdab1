package thumbnail

import (
	"crypto/md5"
	"fmt"
	"path/filepath"
	"testing"

	"media-library/internal/mediatypes"
)

func TestTierForSize(t *testing.T) {
	tests := []struct {
		name string
		size Size
		kind mediatypes.AssetKind
		want Tier
	}{
		{"tiny", Size{32, 32}, mediatypes.KindImage, TierYear},
		{"year edge", Size{64, 40}, mediatypes.KindImage, TierYear},
		{"month", Size{100, 128}, mediatypes.KindImage, TierMonth},
		{"thumb", Size{256, 200}, mediatypes.KindImage, TierThumb},
		{"lcd", Size{257, 10}, mediatypes.KindImage, TierLCD},
		{"audio month maps to thumb", Size{100, 100}, mediatypes.KindAudio, TierThumb},
		{"audio year maps to thumb", Size{50, 50}, mediatypes.KindAudio, TierThumb},
		{"audio lcd stays lcd", Size{800, 800}, mediatypes.KindAudio, TierLCD},
		{"video month", Size{128, 72}, mediatypes.KindVideo, TierMonth},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TierForSize(tt.size, tt.kind); got != tt.want {
				t.Errorf("TierForSize(%v, %s) = %s, want %s", tt.size, tt.kind, got, tt.want)
			}
		})
	}
}

func TestFastTier(t *testing.T) {
	tests := []struct {
		size Size
		kind mediatypes.AssetKind
		want Tier
	}{
		{Size{1920, 1080}, mediatypes.KindImage, TierThumb},
		{Size{257, 100}, mediatypes.KindImage, TierThumb},
		{Size{256, 256}, mediatypes.KindImage, TierMonth},
		{Size{100, 100}, mediatypes.KindImage, TierYear},
		{Size{256, 256}, mediatypes.KindAudio, TierThumb},
	}
	for _, tt := range tests {
		if got := FastTier(tt.size, tt.kind); got != tt.want {
			t.Errorf("FastTier(%v, %s) = %s, want %s", tt.size, tt.kind, got, tt.want)
		}
	}
}

func TestTierSuffixAndEdge(t *testing.T) {
	tests := []struct {
		tier   Tier
		suffix string
		edge   int
	}{
		{TierThumb, "THM", 256},
		{TierMonth, "MTH", 128},
		{TierYear, "YEAR", 64},
		{TierLCD, "LCD", 720},
	}
	for _, tt := range tests {
		if got := tt.tier.Suffix(); got != tt.suffix {
			t.Errorf("Suffix() = %q, want %q", got, tt.suffix)
		}
		if got := tt.tier.Edge(720); got != tt.edge {
			t.Errorf("%s.Edge(720) = %d, want %d", tt.suffix, got, tt.edge)
		}
	}
	if got := TierLCD.Edge(0); got != DefaultScreenSize {
		t.Errorf("LCD.Edge(0) = %d, want %d", got, DefaultScreenSize)
	}
}

func TestSameRatio(t *testing.T) {
	tests := []struct {
		a, b Size
		want bool
	}{
		{Size{1920, 1080}, Size{16, 9}, true},
		{Size{256, 256}, Size{64, 64}, true},
		{Size{1000, 501}, Size{2, 1}, false},
		{Size{3, 2}, Size{4, 3}, false},
		{Size{10, 0}, Size{10, 0}, false},
	}
	for _, tt := range tests {
		if got := SameRatio(tt.a, tt.b); got != tt.want {
			t.Errorf("SameRatio(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestLayoutPath(t *testing.T) {
	l := Layout{Root: "/cache"}
	src := "/media/photos/a.jpg"
	sum := fmt.Sprintf("%x", md5.Sum([]byte(src)))

	want := filepath.Join("/cache", sum[:2], sum, "MTH.jpg")
	if got := l.Path(src, TierMonth); got != want {
		t.Errorf("Path = %q, want %q", got, want)
	}
	if l.Path(src, TierThumb) == l.Path("/media/photos/b.jpg", TierThumb) {
		t.Error("different sources must not share an artifact path")
	}
}

func TestScaleHelpers(t *testing.T) {
	if got := scaleShortEdge(Size{1000, 500}, 256); got != (Size{512, 256}) {
		t.Errorf("scaleShortEdge = %v, want 512x256", got)
	}
	if got := scaleShortEdge(Size{200, 100}, 256); got != (Size{200, 100}) {
		t.Errorf("small sources should not be upscaled, got %v", got)
	}
	if got := fitLongEdge(Size{2000, 1000}, 1080); got != (Size{1080, 540}) {
		t.Errorf("fitLongEdge = %v, want 1080x540", got)
	}
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in      string
		want    Size
		wantErr bool
	}{
		{"256x256", Size{256, 256}, false},
		{"1920X1080", Size{1920, 1080}, false},
		{"64", Size{}, true},
		{"0x10", Size{}, true},
		{"10x-1", Size{}, true},
		{"axb", Size{}, true},
	}
	for _, tt := range tests {
		got, err := ParseSize(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseSize(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseSize(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
