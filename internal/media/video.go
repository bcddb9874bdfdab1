package media

import (
	"context"
	"fmt"
	"image"
	"os/exec"

	"media-library/internal/logging"
)

// extractVideoFrame grabs a frame one second in, falling back to the first
// frame for clips shorter than that.
func extractVideoFrame(ctx context.Context, path string) (image.Image, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}
	logging.Debug("Extracting video frame: %s", path)

	img, err := runFFmpegFrame(ctx, path,
		"-i", path, "-ss", "00:00:01", "-vframes", "1",
		"-f", "image2pipe", "-vcodec", "png", "-")
	if err == nil {
		return img, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	logging.Debug("FFmpeg first attempt failed for %s: %v", path, err)

	return runFFmpegFrame(ctx, path,
		"-i", path, "-vframes", "1",
		"-f", "image2pipe", "-vcodec", "png", "-")
}
