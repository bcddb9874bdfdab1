package thumbnail

import (
	"crypto/md5"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"media-library/internal/mediatypes"
)

// Fixed tier edges in pixels.
const (
	ThumbSize         = 256
	MonthSize         = 128
	YearSize          = 64
	DefaultScreenSize = 1080
)

// Tier is one derived artifact kind.
type Tier int

const (
	// TierThumb keeps the source aspect ratio with its short edge at ThumbSize.
	TierThumb Tier = iota
	// TierMonth is a MonthSize square for month calendar grids.
	TierMonth
	// TierYear is a YearSize square for year calendar grids.
	TierYear
	// TierLCD fits the source inside the screen size.
	TierLCD
)

// Suffix is the artifact file name stem for the tier.
func (t Tier) Suffix() string {
	switch t {
	case TierThumb:
		return "THM"
	case TierMonth:
		return "MTH"
	case TierYear:
		return "YEAR"
	case TierLCD:
		return "LCD"
	default:
		return "UNKNOWN"
	}
}

func (t Tier) String() string { return t.Suffix() }

// Edge returns the tier's nominal edge; screen is used for TierLCD.
func (t Tier) Edge(screen int) int {
	switch t {
	case TierThumb:
		return ThumbSize
	case TierMonth:
		return MonthSize
	case TierYear:
		return YearSize
	default:
		if screen <= 0 {
			return DefaultScreenSize
		}
		return screen
	}
}

// Square reports whether the tier is center-cropped to a square.
func (t Tier) Square() bool {
	return t == TierMonth || t == TierYear
}

// Size is a width and height in pixels.
type Size struct {
	Width  int
	Height int
}

func (s Size) String() string { return fmt.Sprintf("%dx%d", s.Width, s.Height) }

// ParseSize parses "WxH". Both edges must be positive.
func ParseSize(s string) (Size, error) {
	w, h, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return Size{}, fmt.Errorf("invalid size %q: want WxH", s)
	}
	width, err := strconv.Atoi(w)
	if err != nil || width <= 0 {
		return Size{}, fmt.Errorf("invalid width in %q", s)
	}
	height, err := strconv.Atoi(h)
	if err != nil || height <= 0 {
		return Size{}, fmt.Errorf("invalid height in %q", s)
	}
	return Size{Width: width, Height: height}, nil
}

func (s Size) longEdge() int  { return max(s.Width, s.Height) }
func (s Size) shortEdge() int { return min(s.Width, s.Height) }

// SameRatio reports whether a and b have the same aspect ratio. The
// comparison is exact, by cross-multiplication.
func SameRatio(a, b Size) bool {
	if a.Height <= 0 || b.Height <= 0 {
		return false
	}
	return int64(a.Width)*int64(b.Height) == int64(b.Width)*int64(a.Height)
}

// TierForSize picks the smallest tier that covers size. Audio assets have
// no calendar tiers, so MTH and YEAR map to THM for them.
func TierForSize(size Size, kind mediatypes.AssetKind) Tier {
	edge := size.longEdge()
	var t Tier
	switch {
	case edge <= YearSize:
		t = TierYear
	case edge <= MonthSize:
		t = TierMonth
	case edge <= ThumbSize:
		t = TierThumb
	default:
		t = TierLCD
	}
	if kind == mediatypes.KindAudio && t.Square() {
		t = TierThumb
	}
	return t
}

// FastTier is the persisted tier used for a cheap first preview. It steps
// down one size from the request: above 256 uses THM, above 128 uses MTH,
// anything smaller uses YEAR.
func FastTier(size Size, kind mediatypes.AssetKind) Tier {
	var t Tier
	switch {
	case size.Width > ThumbSize || size.Height > ThumbSize:
		t = TierThumb
	case size.Width > MonthSize || size.Height > MonthSize:
		t = TierMonth
	default:
		t = TierYear
	}
	if kind == mediatypes.KindAudio && t.Square() {
		t = TierThumb
	}
	return t
}

// IsThumbSize reports whether a request is at least thumb sized on either edge.
func IsThumbSize(size Size) bool {
	return size.Width >= ThumbSize || size.Height >= ThumbSize
}

// Layout maps source paths to deterministic artifact paths under Root:
//
//	<Root>/<md5[0:2]>/<md5>/<SUFFIX>.jpg
type Layout struct {
	Root string
}

// Dir returns the directory holding every tier of a source.
func (l Layout) Dir(sourcePath string) string {
	sum := fmt.Sprintf("%x", md5.Sum([]byte(sourcePath)))
	return filepath.Join(l.Root, sum[:2], sum)
}

// Path returns the artifact path for a source and tier.
func (l Layout) Path(sourcePath string, t Tier) string {
	return filepath.Join(l.Dir(sourcePath), t.Suffix()+".jpg")
}

// Options selects the asset a generation call works on.
type Options struct {
	AssetID int64
	// Path is the source path. When set the store lookup is skipped.
	Path string
	// Kind accompanies Path; derived from the extension when empty.
	Kind mediatypes.AssetKind
	// ScreenSize is the LCD long edge. Zero uses the generator default.
	ScreenSize int
}

// tiersFor lists the THUMB-chain tiers produced for a kind.
func tiersFor(kind mediatypes.AssetKind) []Tier {
	if kind == mediatypes.KindAudio {
		return []Tier{TierThumb}
	}
	return []Tier{TierThumb, TierMonth, TierYear}
}

// scaleShortEdge keeps the ratio of src and brings its short edge down to
// edge. Sources already small enough are unchanged.
func scaleShortEdge(src Size, edge int) Size {
	short := src.shortEdge()
	if short <= edge || short == 0 {
		return src
	}
	return Size{
		Width:  max(1, src.Width*edge/short),
		Height: max(1, src.Height*edge/short),
	}
}

// fitLongEdge keeps the ratio of src and brings its long edge down to edge.
func fitLongEdge(src Size, edge int) Size {
	long := src.longEdge()
	if long <= edge || long == 0 {
		return src
	}
	return Size{
		Width:  max(1, src.Width*edge/long),
		Height: max(1, src.Height*edge/long),
	}
}
