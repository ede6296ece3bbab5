package backend

import (
	"context"
	"fmt"
	"io"
	"time"

	"mediavault/media"
)

// FileStream is one keyed payload of a bulk upload. ByteSize must match
// what Reader yields; stores that need a Content-Length send it as is.
type FileStream struct {
	Key      string
	Reader   io.Reader
	ByteSize int64
	MimeType media.MimeType
}

func (f *FileStream) Validate() error {
	if f.Key == "" {
		return fmt.Errorf("backend: file stream needs a key")
	}
	if f.Reader == nil {
		return fmt.Errorf("backend: file stream %s has no reader", f.Key)
	}
	if f.ByteSize < 0 {
		return fmt.Errorf("backend: file stream %s has negative size", f.Key)
	}
	return nil
}

// KeyMapping is one source to destination pair of a bulk copy.
type KeyMapping struct {
	SourceKey      string
	DestinationKey string
}

func (m *KeyMapping) Validate() error {
	if m.SourceKey == "" || m.DestinationKey == "" {
		return fmt.Errorf("backend: copy mapping needs source and destination keys")
	}
	if m.SourceKey == m.DestinationKey {
		return fmt.Errorf("backend: copy mapping maps %s onto itself", m.SourceKey)
	}
	return nil
}

// ValidateMappings rejects malformed pairs and destination collisions
// before any remote call is issued.
func ValidateMappings(mappings []KeyMapping) error {
	destinations := map[string]bool{}
	for i := range mappings {
		if err := mappings[i].Validate(); err != nil {
			return err
		}
		if destinations[mappings[i].DestinationKey] {
			return fmt.Errorf("backend: duplicate copy destination: %s", mappings[i].DestinationKey)
		}
		destinations[mappings[i].DestinationKey] = true
	}
	return nil
}

// Result is the outcome of one key of a bulk operation. A bulk call never
// fails as a whole because one key failed.
type Result struct {
	Key string
	Err error
}

type CopyOptions struct {
	// DeleteSource turns the copy into a move.
	DeleteSource bool
	// AllowMissing reports an absent source as success. Thumbnail copies
	// use it: a source may legitimately have no thumbnail.
	AllowMissing bool
	// OverwriteExisting allows the destination to be replaced.
	OverwriteExisting bool
}

// ObjectInfo describes one listed object.
type ObjectInfo struct {
	Name       string
	Path       string
	SizeBytes  int64
	ModifiedAt time.Time
	IsDir      bool
}

// URLBundle carries time-boxed read URLs as a shared base plus per-key
// paths, so callers can serve many keys behind one host. Concatenating
// BaseUrl with a path yields the full URL.
type URLBundle struct {
	BaseUrl string
	Paths   map[string]string
}

// FullUrl resolves one key's complete URL, or "" when the key has no
// entry.
func (b *URLBundle) FullUrl(fileKey string) string {
	path, ok := b.Paths[fileKey]
	if !ok {
		return ""
	}
	return b.BaseUrl + path
}

// Store is a place files live. The vault uses two independent instances:
// the primary data store and the thumbnail cache store.
type Store interface {
	Upload(ctx context.Context, streams []FileStream, chunkByteSize int) []Result
	Delete(ctx context.Context, fileKeys []string, allowMissing bool) []Result
	Copy(ctx context.Context, mappings []KeyMapping, opts CopyOptions) []Result
	ListObjects(ctx context.Context, dirPath string, recursive bool) ([]ObjectInfo, error)
	GetShareableUrls(fileKeys []string, expiresInSeconds int) (URLBundle, error)
}

type chunkedReader struct {
	r         io.Reader
	chunkSize int
}

func (c *chunkedReader) Read(p []byte) (int, error) {
	if len(p) > c.chunkSize {
		p = p[:c.chunkSize]
	}
	return c.r.Read(p)
}

// NewChunkedReader caps each Read at chunkSize so a large upload streams
// through a bounded buffer instead of whatever the transport asks for.
func NewChunkedReader(r io.Reader, chunkSize int) io.Reader {
	return &chunkedReader{r: r, chunkSize: chunkSize}
}
