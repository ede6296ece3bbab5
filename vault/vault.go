package vault

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"mediavault/backend"
	"mediavault/database/model"
	"mediavault/database/repository"
	L "mediavault/logger"
	"mediavault/media"
	"mediavault/thumbnail"
)

const (
	DefaultMaxConcurrentTasks   = 5
	DefaultThumbnailWidth       = 400
	DefaultPresignExpirySeconds = 60 * 60 * 24 * 30
	DefaultChunkByteSize        = 10 * 1024 * 1024
)

type Options struct {
	ThumbnailWidthPixels int
	MaxConcurrentTasks   int
	// TaskTimeout bounds one thumbnail generation attempt; a stalled
	// source fetch gives its worker slot back instead of holding it.
	TaskTimeout          time.Duration
	ChunkByteSize        int
	PresignExpirySeconds int
}

func (o *Options) applyDefaults() {
	if o.ThumbnailWidthPixels == 0 {
		o.ThumbnailWidthPixels = DefaultThumbnailWidth
	}
	if o.MaxConcurrentTasks == 0 {
		o.MaxConcurrentTasks = DefaultMaxConcurrentTasks
	}
	if o.ChunkByteSize == 0 {
		o.ChunkByteSize = DefaultChunkByteSize
	}
	if o.PresignExpirySeconds == 0 {
		o.PresignExpirySeconds = DefaultPresignExpirySeconds
	}
}

// Vault keeps the action log consistent with the two physical stores.
// Every operation that touches a blob records exactly one outcome in the
// log, so the log can always be reconciled against store reality. It
// holds no state across calls; the stores and repositories are the
// source of truth.
type Vault struct {
	dataStore  backend.Store
	cacheStore backend.Store
	actions    repository.FileActionRepository
	tags       repository.TagRepository
	generator  thumbnail.Generator
	opts       Options
}

func NewVault(
	dataStore backend.Store,
	cacheStore backend.Store,
	actions repository.FileActionRepository,
	tags repository.TagRepository,
	generator thumbnail.Generator,
	opts Options,
) *Vault {
	opts.applyDefaults()
	return &Vault{
		dataStore:  dataStore,
		cacheStore: cacheStore,
		actions:    actions,
		tags:       tags,
		generator:  generator,
		opts:       opts,
	}
}

// generated is the outcome of one thumbnail generation task.
type generated struct {
	fileKey      string
	mimeType     media.MimeType
	hasMime      bool
	thumbnailKey string
	target       media.MimeType
	components   thumbnail.Components
}

// ResolveInfo returns the current log entries for the given keys,
// generating thumbnails and CREATE actions for keys the log has never
// seen. Generation happens at most once per key: an unsupported type or
// a failed attempt is recorded as a CREATE with no thumbnail fields, a
// terminal state that later calls return as is.
func (v *Vault) ResolveInfo(ctx context.Context, fileKeys []string) ([]model.FileEntry, error) {
	if len(fileKeys) == 0 {
		return nil, nil
	}
	existing, err := v.actions.GetByFileKeys(ctx, fileKeys)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(existing))
	for i := range existing {
		known[existing[i].FileKey] = true
	}
	var missing []string
	seen := map[string]bool{}
	for _, key := range fileKeys {
		if !known[key] && !seen[key] {
			missing = append(missing, key)
			seen[key] = true
		}
	}

	for start := 0; start < len(missing); start += v.opts.MaxConcurrentTasks {
		end := min(start+v.opts.MaxConcurrentTasks, len(missing))
		if err := v.resolveBatch(ctx, missing[start:end]); err != nil {
			return nil, err
		}
	}

	if len(missing) == 0 {
		return existing, nil
	}
	return v.actions.GetByFileKeys(ctx, fileKeys)
}

func (v *Vault) resolveBatch(ctx context.Context, fileKeys []string) error {
	urls, err := v.dataStore.GetShareableUrls(fileKeys, v.opts.PresignExpirySeconds)
	if err != nil {
		return fmt.Errorf("vault: could not get source urls: %w", err)
	}

	results := make([]generated, len(fileKeys))
	var wg sync.WaitGroup
	for i, key := range fileKeys {
		i, key := i, key
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = v.generateOne(ctx, key, urls.FullUrl(key))
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}

	var thumbnailStreams []backend.FileStream
	for i := range results {
		if results[i].components.HasThumbnail() {
			thumbnailStreams = append(thumbnailStreams, backend.FileStream{
				Key:      results[i].thumbnailKey,
				Reader:   bytes.NewReader(results[i].components.ThumbnailBytes),
				ByteSize: int64(len(results[i].components.ThumbnailBytes)),
				MimeType: results[i].target,
			})
		}
	}
	for _, res := range v.cacheStore.Upload(ctx, thumbnailStreams, v.opts.ChunkByteSize) {
		if res.Err != nil {
			// the entry still registers without thumbnail fields; a
			// cache write failure must not block the source file
			L.Warn(fmt.Sprintf("vault: could not cache thumbnail %s: %v", res.Key, res.Err))
			for i := range results {
				if results[i].thumbnailKey == res.Key {
					results[i].components = thumbnail.Components{}
				}
			}
		}
	}

	entries := make([]model.FileEntry, 0, len(results))
	for i := range results {
		entry, err := model.NewFileEntry(results[i].fileKey)
		if err != nil {
			return err
		}
		if results[i].hasMime {
			entry.MimeType = model.StrPtr(results[i].mimeType.String())
		}
		if results[i].components.HasThumbnail() {
			entry.ThumbnailKey = model.StrPtr(results[i].thumbnailKey)
			entry.ThumbnailMimeType = model.StrPtr(results[i].target.String())
			entry.ThumbnailChecksum = model.StrPtr(results[i].components.Checksum)
			if results[i].components.Phash != "" {
				entry.ThumbnailPhash = model.StrPtr(results[i].components.Phash)
			}
		}
		entries = append(entries, entry)
	}
	if _, err := v.actions.AppendActions(ctx, entries); err != nil {
		return err
	}
	return nil
}

// generateOne never reports failure upward. Whatever goes wrong, the key
// gets a terminal no-thumbnail entry rather than being retried forever.
func (v *Vault) generateOne(ctx context.Context, fileKey string, sourceUrl string) generated {
	out := generated{fileKey: fileKey}
	mimeType, ok := media.FromFilename(fileKey)
	if !ok {
		return out
	}
	out.mimeType = mimeType
	out.hasMime = true

	target, ok := mimeType.ThumbnailTarget()
	if !ok {
		return out
	}
	thumbnailKey, err := media.ThumbnailKey(fileKey, target)
	if err != nil {
		L.Warn(fmt.Sprintf("vault: %v", err))
		return out
	}
	out.target = target
	out.thumbnailKey = thumbnailKey

	if v.opts.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.opts.TaskTimeout)
		defer cancel()
	}
	// presigned urls carry long tokens; keep the log line readable
	L.Debug(fmt.Sprintf("vault: generating %s from %s", thumbnailKey,
		L.TruncateString(sourceUrl, 96, L.TRUNC_CENTER)))
	components, err := v.generator.Generate(ctx, sourceUrl, mimeType, v.opts.ThumbnailWidthPixels)
	if err != nil {
		L.Warn(fmt.Sprintf("vault: thumbnail generation failed for %s: %v", fileKey, err))
		return out
	}
	out.components = components
	return out
}

// GetFileUrls issues time-boxed read URLs for source files.
func (v *Vault) GetFileUrls(fileKeys []string, expiresInSeconds int) (backend.URLBundle, error) {
	if expiresInSeconds <= 0 {
		expiresInSeconds = v.opts.PresignExpirySeconds
	}
	return v.dataStore.GetShareableUrls(fileKeys, expiresInSeconds)
}

// GetThumbnailUrls issues time-boxed read URLs for cached thumbnails.
func (v *Vault) GetThumbnailUrls(thumbnailKeys []string, expiresInSeconds int) (backend.URLBundle, error) {
	if expiresInSeconds <= 0 {
		expiresInSeconds = v.opts.PresignExpirySeconds
	}
	return v.cacheStore.GetShareableUrls(thumbnailKeys, expiresInSeconds)
}

// ListDirectory lists the data store.
func (v *Vault) ListDirectory(ctx context.Context, dirPath string, recursive bool) ([]backend.ObjectInfo, error) {
	return v.dataStore.ListObjects(ctx, dirPath, recursive)
}
