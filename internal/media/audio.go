package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"os"

	"github.com/dhowden/tag"
	"github.com/disintegration/imaging"
)

// ErrNoArtwork is returned for audio files without embedded cover art.
var ErrNoArtwork = errors.New("no embedded artwork")

// extractCoverArt decodes the picture embedded in an audio file's tags.
func extractCoverArt(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return nil, fmt.Errorf("read tags of %s: %w", path, err)
	}
	pic := m.Picture()
	if pic == nil || len(pic.Data) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoArtwork)
	}

	img, err := imaging.Decode(bytes.NewReader(pic.Data))
	if err != nil {
		return nil, fmt.Errorf("decode artwork (%s) of %s: %w", pic.MIMEType, path, err)
	}
	return img, nil
}
