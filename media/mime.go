package media

import (
	"mime"
	"path/filepath"
	"strings"
)

// MimeType is the set of media types the vault understands. Anything
// outside this set is stored untyped and never gets a thumbnail.
type MimeType string

const (
	MIME_JPEG MimeType = "image/jpeg"
	MIME_PNG  MimeType = "image/png"
	MIME_TIFF MimeType = "image/tiff"
	MIME_WEBP MimeType = "image/webp"
	MIME_BMP  MimeType = "image/bmp"
	MIME_GIF  MimeType = "image/gif"

	MIME_HEIC MimeType = "image/heic"
	MIME_HEIF MimeType = "image/heif"

	MIME_MP4       MimeType = "video/mp4"
	MIME_MPEG      MimeType = "video/mpeg"
	MIME_QUICKTIME MimeType = "video/quicktime"
	MIME_WEBM      MimeType = "video/webm"
	MIME_AVI       MimeType = "video/x-msvideo"
)

var supported = map[MimeType]bool{
	MIME_JPEG:      true,
	MIME_PNG:       true,
	MIME_TIFF:      true,
	MIME_WEBP:      true,
	MIME_BMP:       true,
	MIME_GIF:       true,
	MIME_HEIC:      true,
	MIME_HEIF:      true,
	MIME_MP4:       true,
	MIME_MPEG:      true,
	MIME_QUICKTIME: true,
	MIME_WEBM:      true,
	MIME_AVI:       true,
}

// extension fallbacks for types the platform mime db tends to miss
var extraExtensions = map[string]MimeType{
	".heic": MIME_HEIC,
	".heif": MIME_HEIF,
	".webp": MIME_WEBP,
	".webm": MIME_WEBM,
	".bmp":  MIME_BMP,
	".tif":  MIME_TIFF,
	".tiff": MIME_TIFF,
	".mov":  MIME_QUICKTIME,
	".avi":  MIME_AVI,
	".mp4":  MIME_MP4,
	".mpg":  MIME_MPEG,
	".mpeg": MIME_MPEG,
}

func FromValue(value string) (MimeType, bool) {
	// strip parameters like "; charset=..."
	if i := strings.Index(value, ";"); i >= 0 {
		value = value[:i]
	}
	m := MimeType(strings.ToLower(strings.TrimSpace(value)))
	if supported[m] {
		return m, true
	}
	return "", false
}

func FromFilename(filename string) (MimeType, bool) {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return "", false
	}
	if m, ok := extraExtensions[ext]; ok {
		return m, true
	}
	guessed := mime.TypeByExtension(ext)
	if guessed == "" {
		return "", false
	}
	return FromValue(guessed)
}

// BestGuess prefers the declared type over the filename extension,
// matching how uploads carry a content type that may be more accurate
// than the name the client chose.
func BestGuess(filename string, declared string) (MimeType, bool) {
	if declared != "" {
		if m, ok := FromValue(declared); ok {
			return m, true
		}
	}
	return FromFilename(filename)
}

func (m MimeType) String() string {
	return string(m)
}

// IsDecodableImage reports whether the bytes can be decoded in process.
func (m MimeType) IsDecodableImage() bool {
	switch m {
	case MIME_JPEG, MIME_PNG, MIME_TIFF, MIME_WEBP, MIME_BMP:
		return true
	default:
		return false
	}
}

func (m MimeType) IsVideo() bool {
	switch m {
	case MIME_MP4, MIME_MPEG, MIME_QUICKTIME, MIME_WEBM, MIME_AVI:
		return true
	default:
		return false
	}
}

func (m MimeType) IsHeif() bool {
	return m == MIME_HEIC || m == MIME_HEIF
}

// ThumbnailTarget is the thumbnail format a source type maps to:
// still images shrink to JPEG, animated and video sources map to GIF
// so motion survives the preview. The second return is false for types
// with no thumbnail representation at all.
func (m MimeType) ThumbnailTarget() (MimeType, bool) {
	switch {
	case m.IsDecodableImage(), m.IsHeif():
		return MIME_JPEG, true
	case m == MIME_GIF, m.IsVideo():
		return MIME_GIF, true
	default:
		return "", false
	}
}
