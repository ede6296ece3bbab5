package vault

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"mediavault/backend"
	"mediavault/checksum"
	"mediavault/database/model"
	L "mediavault/logger"
	"mediavault/media"
)

// UploadEntry is one file payload as the API carries it: a filename plus
// base64 content. Meant for low-volume uploads; bulk imports should land
// in the data store directly and let ResolveInfo pick them up.
type UploadEntry struct {
	Filename   string
	FileSource string
}

func (e *UploadEntry) Validate() error {
	if e.Filename == "" {
		return fmt.Errorf("vault: upload entry needs a filename")
	}
	if strings.Contains(e.Filename, "/") {
		return fmt.Errorf("vault: upload filename cannot contain a path: %s", e.Filename)
	}
	if e.FileSource == "" {
		return fmt.Errorf("vault: upload entry %s has no content", e.Filename)
	}
	return nil
}

// UploadMedia decodes the payloads, stores them under targetDir in
// batches of maxConcurrent, and hands the stored keys to ResolveInfo for
// thumbnail generation and registration. Keys whose upload failed are
// left out of the resolve step so they never get a CREATE for a blob
// that does not exist.
func (v *Vault) UploadMedia(ctx context.Context, entries []UploadEntry, targetDir string, maxConcurrent int) ([]model.FileEntry, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	if maxConcurrent <= 0 {
		maxConcurrent = v.opts.MaxConcurrentTasks
	}
	dirPrefix := ""
	if trimmed := strings.Trim(targetDir, "/"); trimmed != "" {
		dirPrefix = trimmed + "/"
	}
	for i := range entries {
		if err := entries[i].Validate(); err != nil {
			return nil, err
		}
	}

	var uploadedKeys []string
	for start := 0; start < len(entries); start += maxConcurrent {
		end := min(start+maxConcurrent, len(entries))
		streams := make([]backend.FileStream, 0, end-start)
		for _, entry := range entries[start:end] {
			payload, err := checksum.Base64DecodeStr(entry.FileSource)
			if err != nil {
				return nil, fmt.Errorf("vault: could not decode payload of %s: %w", entry.Filename, err)
			}
			mimeType, _ := media.BestGuess(entry.Filename, "")
			L.Debug(fmt.Sprintf("vault: queueing %s%s (%s)", dirPrefix, entry.Filename,
				L.HumanReadableBytes(uint64(len(payload)), 1)))
			streams = append(streams, backend.FileStream{
				Key:      dirPrefix + entry.Filename,
				Reader:   bytes.NewReader(payload),
				ByteSize: int64(len(payload)),
				MimeType: mimeType,
			})
		}
		for _, res := range v.dataStore.Upload(ctx, streams, v.opts.ChunkByteSize) {
			if res.Err != nil {
				L.Warn(fmt.Sprintf("vault: could not upload %s: %v", res.Key, res.Err))
				continue
			}
			uploadedKeys = append(uploadedKeys, res.Key)
		}
	}

	return v.ResolveInfo(ctx, uploadedKeys)
}
