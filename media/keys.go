package media

import (
	"fmt"
	"strings"
)

// Thumbnail keys derive from the source key plus a fixed suffix, so the
// cache store mirrors the data store's layout and a rename can be applied
// to both sides by prefix substitution.
const (
	ThumbnailJpegSuffix = "thumbnail.jpg"
	ThumbnailGifSuffix  = "thumbnail.gif"
)

func ThumbnailKey(fileKey string, target MimeType) (string, error) {
	switch target {
	case MIME_JPEG:
		return fmt.Sprintf("%s_%s", fileKey, ThumbnailJpegSuffix), nil
	case MIME_GIF:
		return fmt.Sprintf("%s_%s", fileKey, ThumbnailGifSuffix), nil
	default:
		return "", fmt.Errorf("media: no thumbnail key form for %s", target)
	}
}

// RekeyThumbnail maps an existing thumbnail key onto a new source key,
// keeping the suffix that encodes the thumbnail format.
func RekeyThumbnail(thumbnailKey string, newFileKey string) (string, error) {
	for _, suffix := range []string{ThumbnailJpegSuffix, ThumbnailGifSuffix} {
		if strings.HasSuffix(thumbnailKey, "_"+suffix) {
			return fmt.Sprintf("%s_%s", newFileKey, suffix), nil
		}
	}
	return "", fmt.Errorf("media: unrecognized thumbnail key form: %s", thumbnailKey)
}
