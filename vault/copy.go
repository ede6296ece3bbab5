package vault

import (
	"context"
	"fmt"

	"mediavault/backend"
	"mediavault/database/model"
	L "mediavault/logger"
	"mediavault/media"
)

// ValidateCopyMappings rejects the whole call before any remote work:
// duplicate sources would race each other, duplicate destinations would
// overwrite each other, and a source that is also a destination has no
// well-defined order.
func ValidateCopyMappings(mappings []backend.KeyMapping) error {
	if len(mappings) == 0 {
		return fmt.Errorf("vault: no copy mappings given")
	}
	if err := backend.ValidateMappings(mappings); err != nil {
		return err
	}
	sources := map[string]bool{}
	for i := range mappings {
		if sources[mappings[i].SourceKey] {
			return fmt.Errorf("vault: duplicate copy source: %s", mappings[i].SourceKey)
		}
		sources[mappings[i].SourceKey] = true
	}
	for i := range mappings {
		if sources[mappings[i].DestinationKey] {
			return fmt.Errorf("vault: key %s is both a copy source and a destination", mappings[i].DestinationKey)
		}
	}
	return nil
}

// Copy copies or moves tracked files. deleteSource selects move
// semantics: the entity keeps its identity and its tags ride along for
// free. A plain copy forks a fresh identity per destination and
// re-asserts the source's current tags as a new batch for it.
//
// The per-key store results are returned unchanged. A failed source is
// already reconciled in the log as a MISSING action by the time the
// caller sees its error.
func (v *Vault) Copy(ctx context.Context, mappings []backend.KeyMapping, deleteSource bool) ([]backend.Result, error) {
	if err := ValidateCopyMappings(mappings); err != nil {
		return nil, err
	}

	sourceKeys := make([]string, 0, len(mappings))
	for i := range mappings {
		sourceKeys = append(sourceKeys, mappings[i].SourceKey)
	}
	sourceEntries, err := v.actions.GetByFileKeys(ctx, sourceKeys)
	if err != nil {
		return nil, err
	}
	if len(sourceEntries) != len(mappings) {
		return nil, fmt.Errorf("vault: %d of %d copy sources are not tracked",
			len(mappings)-len(sourceEntries), len(mappings))
	}
	entriesByKey := make(map[string]*model.FileEntry, len(sourceEntries))
	for i := range sourceEntries {
		entriesByKey[sourceEntries[i].FileKey] = &sourceEntries[i]
	}

	// the cache store mirrors the data store's layout, so a thumbnail
	// follows its source by prefix substitution
	cacheMappings := make([]backend.KeyMapping, 0, len(mappings))
	newThumbnailKeys := make(map[string]string, len(mappings))
	for i := range mappings {
		entry := entriesByKey[mappings[i].SourceKey]
		if entry.ThumbnailKey == nil {
			continue
		}
		newKey, err := media.RekeyThumbnail(*entry.ThumbnailKey, mappings[i].DestinationKey)
		if err != nil {
			return nil, err
		}
		cacheMappings = append(cacheMappings, backend.KeyMapping{
			SourceKey:      *entry.ThumbnailKey,
			DestinationKey: newKey,
		})
		newThumbnailKeys[mappings[i].SourceKey] = newKey
	}

	dataResults := v.dataStore.Copy(ctx, mappings, backend.CopyOptions{
		DeleteSource:      deleteSource,
		OverwriteExisting: true,
	})
	for _, res := range v.cacheStore.Copy(ctx, cacheMappings, backend.CopyOptions{
		DeleteSource:      deleteSource,
		AllowMissing:      true,
		OverwriteExisting: true,
	}) {
		if res.Err != nil {
			L.Warn(fmt.Sprintf("vault: could not copy cached thumbnail %s: %v", res.Key, res.Err))
		}
	}

	resultsByKey := make(map[string]*backend.Result, len(dataResults))
	for i := range dataResults {
		resultsByKey[dataResults[i].Key] = &dataResults[i]
	}

	var actions []model.FileEntry
	var tagAssignments []model.TagAssignment
	for i := range mappings {
		sourceKey := mappings[i].SourceKey
		entry := entriesByKey[sourceKey]
		res, ok := resultsByKey[sourceKey]
		if !ok || res.Err != nil {
			// the blob was expected and not found (or not copyable);
			// record that belief so the log matches store reality
			missing, err := model.ExistingFileEntry(sourceKey, entry.EntityId, model.ACTION_MISSING)
			if err != nil {
				return nil, err
			}
			actions = append(actions, missing)
			continue
		}

		if deleteSource {
			moved, err := model.ExistingFileEntry(mappings[i].DestinationKey, entry.EntityId, model.ACTION_MOVE)
			if err != nil {
				return nil, err
			}
			moved.CopyThumbnailFields(entry)
			if newKey, ok := newThumbnailKeys[sourceKey]; ok {
				moved.ThumbnailKey = model.StrPtr(newKey)
			}
			actions = append(actions, moved)
			continue
		}

		created, err := model.NewFileEntry(mappings[i].DestinationKey)
		if err != nil {
			return nil, err
		}
		created.CopyThumbnailFields(entry)
		if newKey, ok := newThumbnailKeys[sourceKey]; ok {
			created.ThumbnailKey = model.StrPtr(newKey)
		}
		actions = append(actions, created)
		if len(entry.Tags) > 0 {
			tagAssignments = append(tagAssignments, model.TagAssignment{
				EntityId: created.EntityId,
				Tags:     entry.Tags,
			})
		}
	}

	if _, err := v.actions.AppendActions(ctx, actions); err != nil {
		return nil, err
	}
	if err := v.tags.AppendTags(ctx, tagAssignments); err != nil {
		return nil, err
	}
	return dataResults, nil
}

// Delete removes blobs and thumbnails and records one DELETE action per
// entry. The DELETE is appended even for keys whose blob removal failed:
// deletion intent always lands in the log, and the per-key results tell
// the caller which removals need another look.
func (v *Vault) Delete(ctx context.Context, entries []model.FileEntry) ([]backend.Result, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	fileKeys := make([]string, 0, len(entries))
	var thumbnailKeys []string
	for i := range entries {
		fileKeys = append(fileKeys, entries[i].FileKey)
		if entries[i].ThumbnailKey != nil {
			thumbnailKeys = append(thumbnailKeys, *entries[i].ThumbnailKey)
		}
	}

	dataResults := v.dataStore.Delete(ctx, fileKeys, false)
	for _, res := range v.cacheStore.Delete(ctx, thumbnailKeys, true) {
		if res.Err != nil {
			L.Warn(fmt.Sprintf("vault: could not delete cached thumbnail %s: %v", res.Key, res.Err))
		}
	}

	deletions := make([]model.FileEntry, 0, len(entries))
	for i := range entries {
		deleted, err := model.ExistingFileEntry(entries[i].FileKey, entries[i].EntityId, model.ACTION_DELETE)
		if err != nil {
			return nil, err
		}
		deletions = append(deletions, deleted)
	}
	if _, err := v.actions.AppendActions(ctx, deletions); err != nil {
		return nil, err
	}
	return dataResults, nil
}
