package thumbnail

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"

	"mediavault/checksum"
	L "mediavault/logger"
	"mediavault/media"
)

// Components is the outcome of one generation attempt. A zero value is a
// legitimate terminal outcome: the source type has no preview form, or
// its bytes could not be decoded. Callers record that outcome instead of
// retrying.
type Components struct {
	ThumbnailBytes []byte
	Phash          string
	Checksum       string
}

func (c *Components) HasThumbnail() bool {
	return len(c.ThumbnailBytes) > 0
}

type Generator interface {
	Generate(ctx context.Context, sourceUrl string, mimeType media.MimeType, widthPixels int) (Components, error)
}

// HttpGenerator pulls the source bytes through its shareable URL, the
// same read path browsers use, so generation needs no extra credentials
// on the stores.
type HttpGenerator struct {
	client *http.Client
}

func NewHttpGenerator(verifySsl bool) *HttpGenerator {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !verifySsl {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &HttpGenerator{client: &http.Client{Transport: transport}}
}

func supported(mimeType media.MimeType) bool {
	return mimeType.IsDecodableImage() || mimeType == media.MIME_GIF
}

func (g *HttpGenerator) Generate(ctx context.Context, sourceUrl string, mimeType media.MimeType, widthPixels int) (Components, error) {
	if !supported(mimeType) {
		return Components{}, nil
	}
	if widthPixels <= 0 {
		return Components{}, fmt.Errorf("thumbnail: width must be positive")
	}

	sourceBytes, err := g.fetch(ctx, sourceUrl)
	if err != nil {
		return Components{}, err
	}

	var thumbnailBytes []byte
	if mimeType == media.MIME_GIF {
		thumbnailBytes, err = gifThumbnail(sourceBytes, widthPixels)
	} else {
		thumbnailBytes, err = imageThumbnail(sourceBytes, widthPixels)
	}
	if err != nil {
		L.Warn(fmt.Sprintf("thumbnail: could not decode %s source: %v", mimeType, err))
		return Components{}, nil
	}

	phash, err := Phash(thumbnailBytes)
	if err != nil {
		L.Warn(fmt.Sprintf("thumbnail: could not hash generated thumbnail: %v", err))
		phash = ""
	}
	return Components{
		ThumbnailBytes: thumbnailBytes,
		Phash:          phash,
		Checksum:       checksum.HexEncodeStr(checksum.Sha256(thumbnailBytes)),
	}, nil
}

func (g *HttpGenerator) fetch(ctx context.Context, sourceUrl string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceUrl, nil)
	if err != nil {
		return nil, fmt.Errorf("thumbnail: could not build fetch request: %w", err)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("thumbnail: could not fetch source: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		if L.IsVerbose() {
			L.Debug(L.HttpResponseString(resp))
		}
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("thumbnail: source fetch returned %s", resp.Status)
	}
	sourceBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("thumbnail: could not read source: %w", err)
	}
	return sourceBytes, nil
}
