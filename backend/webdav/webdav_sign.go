package webdav

import (
	"fmt"
	"strings"
	"time"

	"mediavault/backend"
	"mediavault/checksum"
)

// GetShareableUrls issues nginx secure-link URLs: the token is the
// url-safe base64 md5 of "<expires><uri> <secret>", checked by the
// read-only location without auth.
func (w *WebdavStore) GetShareableUrls(fileKeys []string, expiresInSeconds int) (backend.URLBundle, error) {
	if expiresInSeconds <= 0 {
		return backend.URLBundle{}, fmt.Errorf("webdav: url expiry must be positive")
	}
	expires := time.Now().Unix() + int64(expiresInSeconds)
	paths := make(map[string]string, len(fileKeys))
	for _, key := range fileKeys {
		cleaned := strings.TrimPrefix(key, "/")
		uri := fmt.Sprintf("%s/%s", w.presignedPath, cleaned)
		token := checksum.Base64URLEncodeStr(
			checksum.Md5([]byte(fmt.Sprintf("%d%s %s", expires, uri, w.secretKey))))
		paths[key] = fmt.Sprintf("/%s?md5=%s&expires=%d", cleaned, token, expires)
	}
	return backend.URLBundle{BaseUrl: w.presignedBaseUrl, Paths: paths}, nil
}
