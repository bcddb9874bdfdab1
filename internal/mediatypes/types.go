package mediatypes

import (
	"path/filepath"
	"strings"
)

// AssetKind is the kind of source asset a thumbnail is derived from.
type AssetKind string

const (
	// KindImage is a still image.
	KindImage AssetKind = "image"
	// KindVideo is a video; thumbnails come from a decoded frame.
	KindVideo AssetKind = "video"
	// KindAudio is an audio file; thumbnails come from embedded artwork.
	KindAudio AssetKind = "audio"
	// KindOther is an unsupported file.
	KindOther AssetKind = "other"
)

// ImageExtensions lists the supported still image formats.
var ImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
	".tiff": true,
	".tif":  true,
	".heic": true,
	".heif": true,
}

// VideoExtensions lists the supported video formats.
var VideoExtensions = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".avi":  true,
	".mov":  true,
	".wmv":  true,
	".webm": true,
	".m4v":  true,
	".mpeg": true,
	".mpg":  true,
	".3gp":  true,
	".ts":   true,
}

// AudioExtensions lists audio formats whose tags may carry cover art.
var AudioExtensions = map[string]bool{
	".mp3":  true,
	".m4a":  true,
	".flac": true,
	".ogg":  true,
	".aac":  true,
}

// MimeTypes maps file extensions to their MIME types.
var MimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
	".tiff": "image/tiff",
	".tif":  "image/tiff",
	".heic": "image/heic",
	".heif": "image/heif",

	".mp4":  "video/mp4",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".wmv":  "video/x-ms-wmv",
	".webm": "video/webm",
	".m4v":  "video/x-m4v",
	".mpeg": "video/mpeg",
	".mpg":  "video/mpeg",
	".3gp":  "video/3gpp",
	".ts":   "video/mp2t",

	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".flac": "audio/flac",
	".ogg":  "audio/ogg",
	".aac":  "audio/aac",
}

// KindForExtension returns the AssetKind for a lowercase extension with its
// leading dot, e.g. ".jpg".
func KindForExtension(ext string) AssetKind {
	switch {
	case ImageExtensions[ext]:
		return KindImage
	case VideoExtensions[ext]:
		return KindVideo
	case AudioExtensions[ext]:
		return KindAudio
	default:
		return KindOther
	}
}

// KindForPath returns the AssetKind for a file path.
func KindForPath(path string) AssetKind {
	return KindForExtension(strings.ToLower(filepath.Ext(path)))
}

// MimeType returns the MIME type for a path, or application/octet-stream.
func MimeType(path string) string {
	if mt, ok := MimeTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return mt
	}
	return "application/octet-stream"
}

// Supported reports whether thumbnails can be produced for the kind.
func (k AssetKind) Supported() bool {
	return k == KindImage || k == KindVideo || k == KindAudio
}
