package thumbnail

import (
	"context"
	"fmt"
	"image"
	"strconv"
	"time"

	"media-library/internal/database"
	"media-library/internal/filesystem"
	"media-library/internal/metrics"
	"media-library/internal/telemetry"
)

func waitKey(info database.ArtifactInfo, group string) WaitKey {
	if info.ID != 0 {
		return WaitKey{ID: strconv.FormatInt(info.ID, 10), Group: group}
	}
	return WaitKey{ID: info.Path, Group: group}
}

// thumbChain produces THM, MTH and YEAR under the thumb barrier.
func (g *DefaultGenerator) thumbChain(ctx context.Context, opts Options, info database.ArtifactInfo) error {
	return g.underBarrier(ctx, info, GroupThumb, func() bool { return g.thumbComplete(info) }, func() error {
		return g.doCreateThumbnail(ctx, opts, info)
	})
}

// lcdChain produces the LCD artifact under the lcd barrier.
func (g *DefaultGenerator) lcdChain(ctx context.Context, opts Options, info database.ArtifactInfo) error {
	return g.underBarrier(ctx, info, GroupLCD, func() bool { return g.exists(g.layout.Path(info.Path, TierLCD)) }, func() error {
		return g.doCreateLCD(ctx, opts, info)
	})
}

// thumbComplete reports whether every tier of the THUMB chain is on disk.
// A chain that failed after THM leaves the calendar tiers missing.
func (g *DefaultGenerator) thumbComplete(info database.ArtifactInfo) bool {
	for _, t := range tiersFor(info.Kind) {
		if !g.exists(g.layout.Path(info.Path, t)) {
			return false
		}
	}
	return true
}

func (g *DefaultGenerator) underBarrier(ctx context.Context, info database.ArtifactInfo, group string, done func() bool, produce func() error) error {
	status, release := g.waits.InsertAndWait(ctx, waitKey(info, group))
	defer release()

	switch status {
	case WaitSuccess:
		return nil
	case WaitTimeout:
		if g.cfg.TimeoutPolicy == TimeoutFail {
			return fmt.Errorf("%w: %s %s", ErrWaitTimeout, group, info.Path)
		}
		g.log.Debugf("dedup wait for %s %s timed out, regenerating", group, info.Path)
	}

	// A producer that finished between our existence check and the
	// barrier leaves nothing to do.
	if done() {
		return nil
	}
	return produce()
}

func (g *DefaultGenerator) doCreateThumbnail(ctx context.Context, opts Options, info database.ArtifactInfo) error {
	start := time.Now()
	hint := Size{Width: ThumbSize, Height: ThumbSize}

	img, err := g.decode(ctx, info, hint)
	if err != nil && opts.Path != "" && opts.AssetID != 0 {
		// The caller's path may be stale; retry with the stored one.
		fresh, qerr := g.store.QueryArtifactInfo(ctx, opts.AssetID)
		if qerr == nil && fresh.Path != info.Path {
			if g.thumbComplete(fresh) {
				return nil
			}
			info = fresh
			img, err = g.decode(ctx, info, hint)
		}
	}
	if err != nil {
		g.report(telemetry.KindLoad, info, "decode", err)
		metrics.ThumbnailGenerationsTotal.WithLabelValues(TierThumb.Suffix(), "error").Inc()
		return err
	}

	data := &Data{
		Info:    info,
		Source:  img,
		Paths:   make(map[Tier]string),
		Buffers: make(map[Tier][]byte),
	}
	for _, t := range tiersFor(info.Kind) {
		if err := g.produceTier(data, t, 0); err != nil {
			return err
		}
	}

	metrics.ThumbnailGenerationDuration.WithLabelValues(GroupThumb).Observe(time.Since(start).Seconds())
	g.log.Debugf("generated %d tiers for %s in %v", len(data.Paths), info.Path, time.Since(start))

	if info.ID == 0 {
		return nil
	}
	return g.updateMetadata(ctx, info, database.CacheFields{SetThumbnail: true})
}

func (g *DefaultGenerator) doCreateLCD(ctx context.Context, opts Options, info database.ArtifactInfo) error {
	start := time.Now()
	screen := g.screen(opts)

	img, err := g.decode(ctx, info, Size{Width: screen, Height: screen})
	if err != nil {
		g.report(telemetry.KindLoad, info, "decode", err)
		metrics.ThumbnailGenerationsTotal.WithLabelValues(TierLCD.Suffix(), "error").Inc()
		return err
	}

	data := &Data{
		Info:    info,
		Source:  img,
		Paths:   make(map[Tier]string),
		Buffers: make(map[Tier][]byte),
	}
	if err := g.produceTier(data, TierLCD, screen); err != nil {
		return err
	}
	metrics.ThumbnailGenerationDuration.WithLabelValues(GroupLCD).Observe(time.Since(start).Seconds())

	if info.ID == 0 {
		return nil
	}
	return g.updateMetadata(ctx, info, database.CacheFields{SetLCDVisit: true})
}

func (g *DefaultGenerator) decode(ctx context.Context, info database.ArtifactInfo, hint Size) (image.Image, error) {
	if !info.Kind.Supported() {
		return nil, fmt.Errorf("%w: unsupported kind %q for %s", ErrCodec, info.Kind, info.Path)
	}
	if !g.exists(info.Path) {
		return nil, fmt.Errorf("%w: source %s", ErrNotFound, info.Path)
	}
	var img image.Image
	err := guard("decode", func() error {
		var err error
		img, err = g.codec.Decode(ctx, info.Path, info.Kind, hint)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrCodec, info.Path, err)
	}
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: decode %s returned no pixels", ErrCodec, info.Path)
	}
	return img, nil
}

// produceTier scales, compresses and persists one tier of data.
func (g *DefaultGenerator) produceTier(data *Data, t Tier, screen int) error {
	info := data.Info
	var buf []byte
	err := guard("compress", func() error {
		var err error
		buf, err = g.codec.Compress(g.scaleFor(data.Source, t, screen), t)
		return err
	})
	if err != nil {
		err = fmt.Errorf("%w: compress %s for %s: %v", ErrCodec, t, info.Path, err)
		g.report(telemetry.KindCompress, info, t.Suffix(), err)
		metrics.ThumbnailGenerationsTotal.WithLabelValues(t.Suffix(), "error").Inc()
		return err
	}

	path := g.layout.Path(info.Path, t)
	if err := filesystem.WriteFileAtomic(path, buf, 0o644, 0o755); err != nil {
		err = fmt.Errorf("%w: save %s: %v", ErrPersist, path, err)
		g.report(telemetry.KindPersist, info, t.Suffix(), err)
		metrics.ThumbnailGenerationsTotal.WithLabelValues(t.Suffix(), "error").Inc()
		return err
	}

	data.Paths[t] = path
	data.Buffers[t] = buf
	metrics.ThumbnailGenerationsTotal.WithLabelValues(t.Suffix(), "success").Inc()
	return nil
}

// scaleFor derives the tier image: THM keeps the ratio with its short edge
// at ThumbSize, MTH and YEAR are center-cropped squares, LCD fits the screen.
func (g *DefaultGenerator) scaleFor(src image.Image, t Tier, screen int) image.Image {
	b := src.Bounds()
	srcSize := Size{Width: b.Dx(), Height: b.Dy()}

	var target Size
	switch t {
	case TierMonth, TierYear:
		edge := t.Edge(screen)
		return g.codec.CenterScaleToRatio(src, Size{Width: edge, Height: edge})
	case TierLCD:
		target = fitLongEdge(srcSize, t.Edge(screen))
	default:
		target = scaleShortEdge(srcSize, ThumbSize)
	}
	if target == srcSize {
		return src
	}
	return g.codec.Resize(src, target)
}
