package memory

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"mediavault/backend"
	"mediavault/media"
)

type object struct {
	data       []byte
	mimeType   media.MimeType
	modifiedAt time.Time
}

// MemoryStore keeps objects in a map. It exists for tests and local
// development; production setups use the WebDAV or S3 stores.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]object
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: map[string]object{}}
}

func (m *MemoryStore) Upload(ctx context.Context, streams []backend.FileStream, chunkByteSize int) []backend.Result {
	results := make([]backend.Result, 0, len(streams))
	for i := range streams {
		results = append(results, backend.Result{
			Key: streams[i].Key,
			Err: m.uploadOne(&streams[i]),
		})
	}
	return results
}

func (m *MemoryStore) uploadOne(stream *backend.FileStream) error {
	if err := stream.Validate(); err != nil {
		return err
	}
	data, err := io.ReadAll(stream.Reader)
	if err != nil {
		return fmt.Errorf("memory: could not read stream for %s: %w", stream.Key, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[stream.Key] = object{
		data:       data,
		mimeType:   stream.MimeType,
		modifiedAt: time.Now().UTC(),
	}
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, fileKeys []string, allowMissing bool) []backend.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	results := make([]backend.Result, 0, len(fileKeys))
	for _, key := range fileKeys {
		if _, ok := m.objects[key]; !ok {
			var err error
			if !allowMissing {
				err = fmt.Errorf("memory: no such key: %s", key)
			}
			results = append(results, backend.Result{Key: key, Err: err})
			continue
		}
		delete(m.objects, key)
		results = append(results, backend.Result{Key: key})
	}
	return results
}

// Copy reports results keyed by source, matching how the vault reconciles
// copy outcomes against the action log.
func (m *MemoryStore) Copy(ctx context.Context, mappings []backend.KeyMapping, opts backend.CopyOptions) []backend.Result {
	results := make([]backend.Result, 0, len(mappings))
	if err := backend.ValidateMappings(mappings); err != nil {
		for i := range mappings {
			results = append(results, backend.Result{Key: mappings[i].SourceKey, Err: err})
		}
		return results
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range mappings {
		results = append(results, backend.Result{
			Key: mappings[i].SourceKey,
			Err: m.copyOne(&mappings[i], opts),
		})
	}
	return results
}

func (m *MemoryStore) copyOne(mapping *backend.KeyMapping, opts backend.CopyOptions) error {
	src, ok := m.objects[mapping.SourceKey]
	if !ok {
		if opts.AllowMissing {
			return nil
		}
		return fmt.Errorf("memory: no such key: %s", mapping.SourceKey)
	}
	if _, exists := m.objects[mapping.DestinationKey]; exists && !opts.OverwriteExisting {
		return fmt.Errorf("memory: destination already exists: %s", mapping.DestinationKey)
	}
	data := make([]byte, len(src.data))
	copy(data, src.data)
	m.objects[mapping.DestinationKey] = object{
		data:       data,
		mimeType:   src.mimeType,
		modifiedAt: time.Now().UTC(),
	}
	if opts.DeleteSource {
		delete(m.objects, mapping.SourceKey)
	}
	return nil
}

func (m *MemoryStore) ListObjects(ctx context.Context, dirPath string, recursive bool) ([]backend.ObjectInfo, error) {
	prefix := strings.Trim(dirPath, "/")
	if prefix != "" {
		prefix += "/"
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var infos []backend.ObjectInfo
	dirsSeen := map[string]bool{}
	for key, obj := range m.objects {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		remainder := strings.TrimPrefix(key, prefix)
		if !recursive && strings.Contains(remainder, "/") {
			// descendant of a subdirectory; surface the subdirectory once
			dir := remainder[:strings.Index(remainder, "/")]
			if !dirsSeen[dir] {
				dirsSeen[dir] = true
				infos = append(infos, backend.ObjectInfo{
					Name:  dir,
					Path:  prefix + dir,
					IsDir: true,
				})
			}
			continue
		}
		name := remainder
		if idx := strings.LastIndex(remainder, "/"); idx >= 0 {
			name = remainder[idx+1:]
		}
		infos = append(infos, backend.ObjectInfo{
			Name:       name,
			Path:       key,
			SizeBytes:  int64(len(obj.data)),
			ModifiedAt: obj.modifiedAt,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Path < infos[j].Path })
	return infos, nil
}

func (m *MemoryStore) GetShareableUrls(fileKeys []string, expiresInSeconds int) (backend.URLBundle, error) {
	paths := make(map[string]string, len(fileKeys))
	for _, key := range fileKeys {
		paths[key] = fmt.Sprintf("%s?expires=%d", key, expiresInSeconds)
	}
	return backend.URLBundle{BaseUrl: "memory://", Paths: paths}, nil
}

// GetObject returns a stored payload. Tests use it to assert on what a
// bulk operation actually wrote.
func (m *MemoryStore) GetObject(fileKey string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[fileKey]
	if !ok {
		return nil, false
	}
	data := make([]byte, len(obj.data))
	copy(data, obj.data)
	return data, true
}
