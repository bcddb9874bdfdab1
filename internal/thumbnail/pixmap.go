package thumbnail

import (
	"image"
	"image/draw"

	"media-library/internal/shm"
)

// PixelMap is a decoded RGBA buffer handed to a request callback. Shared
// pixel maps live in a shm.Region and must be released by the receiver.
type PixelMap struct {
	Image  *image.RGBA
	region *shm.Region
}

// NewPixelMap copies img into a fresh RGBA buffer. When shared is set the
// buffer is placed in shared memory labelled name.
func NewPixelMap(img image.Image, shared bool, name string) (*PixelMap, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	stride := 4 * w

	pm := &PixelMap{}
	var pix []byte
	if shared && w > 0 && h > 0 {
		region, err := shm.Create(name, stride*h)
		if err != nil {
			return nil, err
		}
		pm.region = region
		pix = region.Bytes()
	} else {
		pix = make([]byte, stride*h)
	}

	pm.Image = &image.RGBA{Pix: pix, Stride: stride, Rect: image.Rect(0, 0, w, h)}
	draw.Draw(pm.Image, pm.Image.Rect, img, b.Min, draw.Src)
	return pm, nil
}

// Size returns the pixel dimensions.
func (p *PixelMap) Size() Size {
	if p == nil || p.Image == nil {
		return Size{}
	}
	return Size{Width: p.Image.Rect.Dx(), Height: p.Image.Rect.Dy()}
}

// Shared reports whether the pixels live in shared memory.
func (p *PixelMap) Shared() bool { return p != nil && p.region != nil }

// Fd returns the shared-memory descriptor, or -1.
func (p *PixelMap) Fd() int {
	if !p.Shared() {
		return -1
	}
	return p.region.Fd()
}

// Release frees shared memory. The pixel map must not be used afterwards.
func (p *PixelMap) Release() error {
	if p == nil {
		return nil
	}
	p.Image = nil
	if p.region == nil {
		return nil
	}
	err := p.region.Close()
	p.region = nil
	return err
}
