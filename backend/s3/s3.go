package s3

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"mediavault/backend"
	"mediavault/config"
	L "mediavault/logger"
)

// S3Store talks the S3 REST API directly, signing each request with
// Signature Version 4. A custom endpoint switches addressing to
// path-style, which MinIO and other S3-compatible servers expect.
type S3Store struct {
	client     *http.Client
	bucketName string
	accessKey  string
	secretKey  string
	region     string
	host       string
	protocol   string
	pathStyle  bool
}

func NewS3Store(cfg *config.S3) (*S3Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("s3: could not find s3 configuration")
	}
	validator := S3Validator{}
	if !validator.ValidateBucketName(cfg.BucketName) {
		return nil, fmt.Errorf("s3: bucket name is invalid")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("s3: access key and secret key are required")
	}
	s := S3Store{
		client:     &http.Client{},
		bucketName: cfg.BucketName,
		accessKey:  cfg.AccessKey,
		secretKey:  cfg.SecretKey,
		region:     cfg.Region,
	}
	if cfg.Endpoint == "" {
		if !validator.ValidateRegion(cfg.Region) {
			return nil, fmt.Errorf("s3: region is invalid")
		}
		s.host = fmt.Sprintf("%s.s3.%s.amazonaws.com", cfg.BucketName, cfg.Region)
		s.protocol = "https://"
	} else {
		parsed, err := url.Parse(cfg.Endpoint)
		if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			return nil, fmt.Errorf("s3: endpoint must be an http(s) URL")
		}
		s.host = parsed.Host
		s.protocol = parsed.Scheme + "://"
		s.pathStyle = true
		if s.region == "" {
			// S3-compatible servers accept any region in the credential scope.
			s.region = "us-east-1"
		}
	}
	L.Debug(fmt.Sprintf("config::Store::S3::BucketName %s", cfg.BucketName))
	L.Debug(fmt.Sprintf("config::Store::S3::Region %s", s.region))
	return &s, nil
}

type S3Error struct {
	XMLName xml.Name `xml:"Error"`
	Code    string   `xml:"Code"`
	Message string   `xml:"Message"`
}

func (s *S3Store) baseUrl() string {
	if s.pathStyle {
		return fmt.Sprintf("%s%s/%s", s.protocol, s.host, s.bucketName)
	}
	return fmt.Sprintf("%s%s", s.protocol, s.host)
}

func escapeKey(fileKey string) string {
	segments := strings.Split(strings.TrimPrefix(fileKey, "/"), "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(segments, "/")
}

func (s *S3Store) objectUrl(fileKey string) string {
	return fmt.Sprintf("%s/%s", s.baseUrl(), escapeKey(fileKey))
}

// copySourcePath is the x-amz-copy-source value, always /bucket/key.
func (s *S3Store) copySourcePath(fileKey string) string {
	return fmt.Sprintf("/%s/%s", s.bucketName, escapeKey(fileKey))
}

func drainAndClose(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

// decodeError turns an S3 XML error body into a Go error, falling back
// to the HTTP status when the body is not an Error document.
func decodeError(resp *http.Response) error {
	bodyBytes, err := io.ReadAll(resp.Body)
	if err == nil {
		var s3Error S3Error
		if xml.Unmarshal(bodyBytes, &s3Error) == nil {
			return fmt.Errorf("s3: %s: %s", s3Error.Code, s3Error.Message)
		}
	}
	return fmt.Errorf("s3: unexpected status %s", resp.Status)
}

func (s *S3Store) Upload(ctx context.Context, streams []backend.FileStream, chunkByteSize int) []backend.Result {
	results := make([]backend.Result, len(streams))
	if chunkByteSize <= 0 {
		err := fmt.Errorf("s3: chunk byte size must be positive")
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
				Err: s.uploadOne(ctx, &streams[i], chunkByteSize),
			}
		}(i)
	}
	wg.Wait()
	return results
}

func (s *S3Store) uploadOne(ctx context.Context, stream *backend.FileStream, chunkByteSize int) error {
	if err := stream.Validate(); err != nil {
		return err
	}
	L.Debug(fmt.Sprintf("s3: uploading %s (%s)", stream.Key, L.HumanReadableBytes(uint64(stream.ByteSize), 1)))
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.objectUrl(stream.Key),
		backend.NewChunkedReader(stream.Reader, chunkByteSize))
	if err != nil {
		return fmt.Errorf("s3: could not build upload request for %s: %w", stream.Key, err)
	}
	// S3 rejects chunked transfer encoding for plain PUTs, so the exact
	// length is required up front.
	req.ContentLength = stream.ByteSize
	req.Header.Set("Host", s.host)
	if stream.MimeType != "" {
		req.Header.Set("Content-Type", string(stream.MimeType))
	}
	if err := s.signRequest(req, unsignedPayload); err != nil {
		return fmt.Errorf("s3: could not sign upload request for %s: %w", stream.Key, err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("s3: could not upload %s: %w", stream.Key, err)
	}
	defer drainAndClose(resp)
	if resp.StatusCode != http.StatusOK {
		if L.IsVerbose() {
			L.Debug(L.HttpResponseString(resp))
		}
		return fmt.Errorf("s3: could not upload %s: %w", stream.Key, decodeError(resp))
	}
	return nil
}

func (s *S3Store) Delete(ctx context.Context, fileKeys []string, allowMissing bool) []backend.Result {
	seen := make(map[string]bool, len(fileKeys))
	var unique []string
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
				Err: s.deleteOne(ctx, unique[i], allowMissing),
			}
		}(i)
	}
	wg.Wait()
	return results
}

func (s *S3Store) deleteOne(ctx context.Context, fileKey string, allowMissing bool) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.objectUrl(fileKey), nil)
	if err != nil {
		return fmt.Errorf("s3: could not build delete request for %s: %w", fileKey, err)
	}
	req.Header.Set("Host", s.host)
	if err := s.signRequest(req, emptyPayloadHash); err != nil {
		return fmt.Errorf("s3: could not sign delete request for %s: %w", fileKey, err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("s3: could not delete %s: %w", fileKey, err)
	}
	defer drainAndClose(resp)
	switch {
	case resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusNotFound && allowMissing:
		return nil
	default:
		if L.IsVerbose() {
			L.Debug(L.HttpResponseString(resp))
		}
		return fmt.Errorf("s3: could not delete %s: %w", fileKey, decodeError(resp))
	}
}

func (s *S3Store) Copy(ctx context.Context, mappings []backend.KeyMapping, opts backend.CopyOptions) []backend.Result {
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
				Err: s.copyOne(ctx, &mappings[i], opts),
			}
		}(i)
	}
	wg.Wait()
	return results
}

// copyOne is a server-side copy. S3 has no overwrite guard on CopyObject,
// so a destination check runs first unless overwriting is allowed. A move
// is a copy followed by a delete of the source.
func (s *S3Store) copyOne(ctx context.Context, mapping *backend.KeyMapping, opts backend.CopyOptions) error {
	if !opts.OverwriteExisting {
		exists, err := s.objectExists(ctx, mapping.DestinationKey)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("s3: destination %s already exists", mapping.DestinationKey)
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.objectUrl(mapping.DestinationKey), nil)
	if err != nil {
		return fmt.Errorf("s3: could not build copy request for %s: %w", mapping.SourceKey, err)
	}
	req.Header.Set("Host", s.host)
	req.Header.Set("x-amz-copy-source", s.copySourcePath(mapping.SourceKey))
	if err := s.signRequest(req, emptyPayloadHash); err != nil {
		return fmt.Errorf("s3: could not sign copy request for %s: %w", mapping.SourceKey, err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("s3: could not copy %s: %w", mapping.SourceKey, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound && opts.AllowMissing {
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		if L.IsVerbose() {
			L.Debug(L.HttpResponseString(resp))
		}
		return fmt.Errorf("s3: could not copy %s: %w", mapping.SourceKey, decodeError(resp))
	}
	// CopyObject can fail after returning 200, with the error in the body.
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("s3: could not read copy response for %s: %w", mapping.SourceKey, err)
	}
	var s3Error S3Error
	if xml.Unmarshal(bodyBytes, &s3Error) == nil {
		return fmt.Errorf("s3: could not copy %s: %s: %s", mapping.SourceKey, s3Error.Code, s3Error.Message)
	}
	if opts.DeleteSource {
		return s.deleteOne(ctx, mapping.SourceKey, false)
	}
	return nil
}

func (s *S3Store) objectExists(ctx context.Context, fileKey string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, s.objectUrl(fileKey), nil)
	if err != nil {
		return false, fmt.Errorf("s3: could not build head request for %s: %w", fileKey, err)
	}
	req.Header.Set("Host", s.host)
	if err := s.signRequest(req, emptyPayloadHash); err != nil {
		return false, fmt.Errorf("s3: could not sign head request for %s: %w", fileKey, err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("s3: could not check %s: %w", fileKey, err)
	}
	defer drainAndClose(resp)
	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("s3: could not check %s: unexpected status %s", fileKey, resp.Status)
	}
}

type listBucketResult struct {
	XMLName               xml.Name `xml:"ListBucketResult"`
	IsTruncated           bool     `xml:"IsTruncated"`
	NextContinuationToken string   `xml:"NextContinuationToken"`
	Contents              []listedObject
	CommonPrefixes        []listedPrefix
}

type listedObject struct {
	Key          string `xml:"Key"`
	Size         int64  `xml:"Size"`
	LastModified string `xml:"LastModified"`
}

type listedPrefix struct {
	Prefix string `xml:"Prefix"`
}

// ListObjects walks the bucket with ListObjectsV2. Non-recursive listings
// use a delimiter so the server groups subdirectories into common
// prefixes; recursive listings derive directories from the object keys.
func (s *S3Store) ListObjects(ctx context.Context, dirPath string, recursive bool) ([]backend.ObjectInfo, error) {
	prefix := strings.Trim(dirPath, "/")
	if prefix != "" {
		prefix += "/"
	}
	var infos []backend.ObjectInfo
	seenDirs := map[string]bool{}
	continuationToken := ""
	for {
		page, err := s.listPage(ctx, prefix, recursive, continuationToken)
		if err != nil {
			return nil, err
		}
		for _, object := range page.Contents {
			if object.Key == prefix || strings.HasSuffix(object.Key, "/") {
				continue
			}
			if recursive {
				s.collectParentDirs(prefix, object.Key, seenDirs, &infos)
			}
			segments := strings.Split(object.Key, "/")
			modifiedAt, _ := time.Parse(time.RFC3339, object.LastModified)
			infos = append(infos, backend.ObjectInfo{
				Name:       segments[len(segments)-1],
				Path:       object.Key,
				SizeBytes:  object.Size,
				ModifiedAt: modifiedAt,
			})
		}
		for _, commonPrefix := range page.CommonPrefixes {
			dirKey := strings.TrimSuffix(commonPrefix.Prefix, "/")
			if dirKey == "" || seenDirs[dirKey] {
				continue
			}
			seenDirs[dirKey] = true
			segments := strings.Split(dirKey, "/")
			infos = append(infos, backend.ObjectInfo{
				Name:  segments[len(segments)-1],
				Path:  dirKey,
				IsDir: true,
			})
		}
		if !page.IsTruncated || page.NextContinuationToken == "" {
			break
		}
		continuationToken = page.NextContinuationToken
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Path < infos[j].Path })
	return infos, nil
}

// collectParentDirs emits every directory between prefix and the object,
// since a recursive listing has no common prefixes to learn them from.
func (s *S3Store) collectParentDirs(prefix, objectKey string, seenDirs map[string]bool, infos *[]backend.ObjectInfo) {
	relative := strings.TrimPrefix(objectKey, prefix)
	segments := strings.Split(relative, "/")
	dirKey := strings.TrimSuffix(prefix, "/")
	for _, segment := range segments[:len(segments)-1] {
		if dirKey == "" {
			dirKey = segment
		} else {
			dirKey = dirKey + "/" + segment
		}
		if seenDirs[dirKey] {
			continue
		}
		seenDirs[dirKey] = true
		*infos = append(*infos, backend.ObjectInfo{
			Name:  segment,
			Path:  dirKey,
			IsDir: true,
		})
	}
}

func (s *S3Store) listPage(ctx context.Context, prefix string, recursive bool, continuationToken string) (*listBucketResult, error) {
	query := url.Values{}
	query.Set("list-type", "2")
	if prefix != "" {
		query.Set("prefix", prefix)
	}
	if !recursive {
		query.Set("delimiter", "/")
	}
	if continuationToken != "" {
		query.Set("continuation-token", continuationToken)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/?%s", s.baseUrl(), query.Encode()), nil)
	if err != nil {
		return nil, fmt.Errorf("s3: could not build list request: %w", err)
	}
	req.Header.Set("Host", s.host)
	if err := s.signRequest(req, emptyPayloadHash); err != nil {
		return nil, fmt.Errorf("s3: could not sign list request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("s3: could not list objects: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		if L.IsVerbose() {
			L.Debug(L.HttpResponseString(resp))
		}
		return nil, fmt.Errorf("s3: could not list objects: %w", decodeError(resp))
	}
	var page listBucketResult
	if err := xml.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("s3: could not parse list response: %w", err)
	}
	return &page, nil
}
