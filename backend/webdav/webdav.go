package webdav

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"mediavault/backend"
	"mediavault/config"
	L "mediavault/logger"
)

// WebdavStore talks to a WebDAV server fronted by nginx: authenticated
// access under one location for file operations, a secure-link location
// for presigned reads.
type WebdavStore struct {
	client           *http.Client
	baseUrl          string
	basePath         string
	presignedBaseUrl string
	presignedPath    string
	username         string
	password         string
	secretKey        string
}

func NewWebdavStore(cfg *config.Webdav) (*WebdavStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("webdav: could not find webdav configuration")
	}
	baseUrl := strings.TrimSuffix(cfg.Url, "/")
	presignedBaseUrl := strings.TrimSuffix(cfg.PresignedUrl, "/")
	if baseUrl == "" {
		return nil, fmt.Errorf("webdav: url is required")
	}
	if presignedBaseUrl == "" {
		return nil, fmt.Errorf("webdav: presigned url is required")
	}
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("webdav: secret key is required")
	}
	parsedBase, err := url.Parse(baseUrl)
	if err != nil {
		return nil, fmt.Errorf("webdav: malformed url: %w", err)
	}
	parsedPresigned, err := url.Parse(presignedBaseUrl)
	if err != nil {
		return nil, fmt.Errorf("webdav: malformed presigned url: %w", err)
	}

	transport := &http.Transport{}
	if !cfg.VerifySsl {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		L.Warn("webdav: TLS certificate verification is disabled")
	}
	return &WebdavStore{
		client:           &http.Client{Transport: transport},
		baseUrl:          baseUrl,
		basePath:         strings.TrimSuffix(parsedBase.Path, "/"),
		presignedBaseUrl: presignedBaseUrl,
		presignedPath:    strings.TrimSuffix(parsedPresigned.Path, "/"),
		username:         cfg.Username,
		password:         cfg.Password,
		secretKey:        cfg.SecretKey,
	}, nil
}

func (w *WebdavStore) objectUrl(fileKey string) string {
	return fmt.Sprintf("%s/%s", w.baseUrl, strings.TrimPrefix(fileKey, "/"))
}

func (w *WebdavStore) do(req *http.Request) (*http.Response, error) {
	req.SetBasicAuth(w.username, w.password)
	return w.client.Do(req)
}

func drainAndClose(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

func (w *WebdavStore) Upload(ctx context.Context, streams []backend.FileStream, chunkByteSize int) []backend.Result {
	results := make([]backend.Result, len(streams))
	if chunkByteSize <= 0 {
		err := fmt.Errorf("webdav: chunk byte size must be positive")
		for i := range streams {
			results[i] = backend.Result{Key: streams[i].Key, Err: err}
		}
		return results
	}
	var wg sync.WaitGroup
	for i := range streams {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = backend.Result{
				Key: streams[i].Key,
				Err: w.uploadOne(ctx, &streams[i], chunkByteSize),
			}
		}(i)
	}
	wg.Wait()
	return results
}

func (w *WebdavStore) uploadOne(ctx context.Context, stream *backend.FileStream, chunkByteSize int) error {
	if err := stream.Validate(); err != nil {
		return err
	}
	if dir := parentDir(stream.Key); dir != "" {
		if err := w.ensureDirectoryExists(ctx, dir); err != nil {
			return err
		}
	}
	L.Debug(fmt.Sprintf("webdav: uploading %s (%s)", stream.Key, L.HumanReadableBytes(uint64(stream.ByteSize), 1)))
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, w.objectUrl(stream.Key),
		backend.NewChunkedReader(stream.Reader, chunkByteSize))
	if err != nil {
		return fmt.Errorf("webdav: could not build upload request for %s: %w", stream.Key, err)
	}
	if stream.ByteSize > 0 {
		req.ContentLength = stream.ByteSize
	}
	if stream.MimeType != "" {
		req.Header.Set("Content-Type", string(stream.MimeType))
	}
	resp, err := w.do(req)
	if err != nil {
		return fmt.Errorf("webdav: could not upload %s: %w", stream.Key, err)
	}
	defer drainAndClose(resp)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if L.IsVerbose() {
			L.Debug(L.HttpResponseString(resp))
		}
		return fmt.Errorf("webdav: could not upload %s: status %d", stream.Key, resp.StatusCode)
	}
	return nil
}

func (w *WebdavStore) Delete(ctx context.Context, fileKeys []string, allowMissing bool) []backend.Result {
	unique := make([]string, 0, len(fileKeys))
	seen := map[string]bool{}
	for _, key := range fileKeys {
		if !seen[key] {
			seen[key] = true
			unique = append(unique, key)
		}
	}
	results := make([]backend.Result, len(unique))
	var wg sync.WaitGroup
	for i := range unique {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = backend.Result{
				Key: unique[i],
				Err: w.deleteOne(ctx, unique[i], allowMissing),
			}
		}(i)
	}
	wg.Wait()
	return results
}

func (w *WebdavStore) deleteOne(ctx context.Context, fileKey string, allowMissing bool) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, w.objectUrl(fileKey), nil)
	if err != nil {
		return fmt.Errorf("webdav: could not build delete request for %s: %w", fileKey, err)
	}
	resp, err := w.do(req)
	if err != nil {
		return fmt.Errorf("webdav: could not delete %s: %w", fileKey, err)
	}
	defer drainAndClose(resp)
	if resp.StatusCode == http.StatusNotFound && allowMissing {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if L.IsVerbose() {
			L.Debug(L.HttpResponseString(resp))
		}
		return fmt.Errorf("webdav: could not delete %s: status %d", fileKey, resp.StatusCode)
	}
	return nil
}

// Copy reports results keyed by source, matching how the vault reconciles
// copy outcomes against the action log.
func (w *WebdavStore) Copy(ctx context.Context, mappings []backend.KeyMapping, opts backend.CopyOptions) []backend.Result {
	results := make([]backend.Result, len(mappings))
	if err := backend.ValidateMappings(mappings); err != nil {
		for i := range mappings {
			results[i] = backend.Result{Key: mappings[i].SourceKey, Err: err}
		}
		return results
	}
	var wg sync.WaitGroup
	for i := range mappings {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = backend.Result{
				Key: mappings[i].SourceKey,
				Err: w.copyOne(ctx, &mappings[i], opts),
			}
		}(i)
	}
	wg.Wait()
	return results
}

func (w *WebdavStore) copyOne(ctx context.Context, mapping *backend.KeyMapping, opts backend.CopyOptions) error {
	method := "COPY"
	if opts.DeleteSource {
		method = "MOVE"
	}
	if dir := parentDir(mapping.DestinationKey); dir != "" {
		if err := w.ensureDirectoryExists(ctx, dir); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, w.objectUrl(mapping.SourceKey), nil)
	if err != nil {
		return fmt.Errorf("webdav: could not build %s request for %s: %w", method, mapping.SourceKey, err)
	}
	// Destination must be an absolute URL; Overwrite gates replacing an
	// existing destination (412 when F and it exists).
	req.Header.Set("Destination", w.objectUrl(mapping.DestinationKey))
	if opts.OverwriteExisting {
		req.Header.Set("Overwrite", "T")
	} else {
		req.Header.Set("Overwrite", "F")
	}
	resp, err := w.do(req)
	if err != nil {
		return fmt.Errorf("webdav: could not %s %s: %w", strings.ToLower(method), mapping.SourceKey, err)
	}
	defer drainAndClose(resp)
	if resp.StatusCode == http.StatusNotFound && opts.AllowMissing {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if L.IsVerbose() {
			L.Debug(L.HttpResponseString(resp))
		}
		return fmt.Errorf("webdav: could not %s %s: status %d", strings.ToLower(method), mapping.SourceKey, resp.StatusCode)
	}
	return nil
}

// ensureDirectoryExists issues MKCOL per path segment. 405 and 409 mean
// the collection is already there.
func (w *WebdavStore) ensureDirectoryExists(ctx context.Context, dirPath string) error {
	current := w.baseUrl
	for _, part := range strings.Split(dirPath, "/") {
		if part == "" {
			continue
		}
		current = fmt.Sprintf("%s/%s", current, part)
		req, err := http.NewRequestWithContext(ctx, "MKCOL", current+"/", nil)
		if err != nil {
			return fmt.Errorf("webdav: could not build MKCOL request for %s: %w", dirPath, err)
		}
		resp, err := w.do(req)
		if err != nil {
			return fmt.Errorf("webdav: could not create directory %s: %w", dirPath, err)
		}
		status := resp.StatusCode
		drainAndClose(resp)
		if status != http.StatusCreated && status != http.StatusMethodNotAllowed && status != http.StatusConflict {
			return fmt.Errorf("webdav: could not create directory %s: status %d", dirPath, status)
		}
	}
	return nil
}

func parentDir(fileKey string) string {
	idx := strings.LastIndex(strings.TrimPrefix(fileKey, "/"), "/")
	if idx < 0 {
		return ""
	}
	return strings.TrimPrefix(fileKey, "/")[:idx]
}
