// Package media decodes media sources into images and encodes thumbnail
// artifacts. Codec is the production implementation of thumbnail.Codec.
//
// Still images are decoded with libvips when it is initialized, which
// shrinks JPEGs during decode, and with the imaging package otherwise.
// Formats Go cannot decode fall back to ffmpeg. Video thumbnails come from
// a frame extracted by ffmpeg; audio thumbnails come from embedded artwork.
package media
