package vault

import (
	"context"
	"errors"
	"fmt"

	"mediavault/database/model"
)

// ErrNotTracked reports a file key the action log has no live entry for.
var ErrNotTracked = errors.New("file key is not tracked")

// UpdateTags replaces the current tag set of the file behind fileKey by
// appending a fresh batch, then records an UPDATE action so the edit is
// visible in the file's history. Returns the refreshed entry.
func (v *Vault) UpdateTags(ctx context.Context, fileKey string, tags []string) (model.FileEntry, error) {
	current, err := v.actions.GetByFileKeys(ctx, []string{fileKey})
	if err != nil {
		return model.FileEntry{}, err
	}
	if len(current) == 0 {
		return model.FileEntry{}, fmt.Errorf("vault: %s: %w", fileKey, ErrNotTracked)
	}
	entry := current[0]

	err = v.tags.AppendTags(ctx, []model.TagAssignment{{EntityId: entry.EntityId, Tags: tags}})
	if err != nil {
		return model.FileEntry{}, err
	}
	updated, err := model.ExistingFileEntry(entry.FileKey, entry.EntityId, model.ACTION_UPDATE)
	if err != nil {
		return model.FileEntry{}, err
	}
	updated.CopyThumbnailFields(&entry)
	if _, err := v.actions.AppendActions(ctx, []model.FileEntry{updated}); err != nil {
		return model.FileEntry{}, err
	}

	refreshed, err := v.actions.GetByFileKeys(ctx, []string{fileKey})
	if err != nil {
		return model.FileEntry{}, err
	}
	if len(refreshed) == 0 {
		return model.FileEntry{}, fmt.Errorf("vault: %s vanished during tag update", fileKey)
	}
	return refreshed[0], nil
}

// SearchByTags answers multi-criteria tag queries against the log.
func (v *Vault) SearchByTags(ctx context.Context, query model.TagQuery) ([]model.FileEntry, error) {
	return v.actions.GetByTags(ctx, query)
}

// GetHistory returns the full lifeline of the entity behind fileKey,
// newest first, surviving renames.
func (v *Vault) GetHistory(ctx context.Context, fileKey string) ([]model.FileEntry, error) {
	return v.actions.GetHistory(ctx, fileKey)
}

// GetTagHistory returns the entity's historical tag batches, newest first.
func (v *Vault) GetTagHistory(ctx context.Context, fileKey string) ([]model.TagBatch, error) {
	return v.tags.GetTagHistory(ctx, fileKey)
}

// FindSimilar ranks current files by thumbnail checksum and perceptual
// hash proximity to the file behind fileKey.
func (v *Vault) FindSimilar(ctx context.Context, fileKey string) ([]model.FileEntry, error) {
	return v.actions.FindSimilar(ctx, fileKey)
}
