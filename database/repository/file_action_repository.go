package repository

import (
	"context"
	"database/sql"
	"fmt"
	"mediavault/database"
	"mediavault/database/model"
	L "mediavault/logger"
	"sort"
	"strings"
	"time"
)

// SQLite caps bound parameters per statement; key lists are chunked to
// stay beneath the limit.
const maxQueryParams = 900

type FileActionRepository interface {
	// AppendActions applies all writes in one exclusive transaction and
	// returns the entries with their assigned id and timestamp. Entries
	// share atomicity, not timestamp equality.
	AppendActions(ctx context.Context, entries []model.FileEntry) ([]model.FileEntry, error)
	GetByFileKeys(ctx context.Context, fileKeys []string) ([]model.FileEntry, error)
	GetByTags(ctx context.Context, query model.TagQuery) ([]model.FileEntry, error)
	GetHistory(ctx context.Context, fileKey string) ([]model.FileEntry, error)
	FindSimilar(ctx context.Context, fileKey string) ([]model.FileEntry, error)
}

type fileActionRepository struct {
	db   *database.DB
	tags TagRepository
}

func NewFileActionRepository(db *database.DB, tags TagRepository) FileActionRepository {
	return &fileActionRepository{db: db, tags: tags}
}

func (r *fileActionRepository) AppendActions(ctx context.Context, entries []model.FileEntry) ([]model.FileEntry, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	for i := range entries {
		if err := entries[i].Validate(); err != nil {
			return nil, err
		}
	}
	tx, err := r.db.D.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("actions: could not begin transaction: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
  INSERT INTO file_actions
  (file_entity_uuid,
  file_key,
  action_type,
  mime_type,
  thumbnail_key,
  thumbnail_mime_type,
  thumbnail_checksum,
  thumbnail_phash,
  action_created_at)
  VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		if err1 := tx.Rollback(); err1 != nil {
			return nil, err1
		}
		return nil, fmt.Errorf("actions: could not prepare insert: %w", err)
	}
	defer stmt.Close()

	out := make([]model.FileEntry, 0, len(entries))
	for _, e := range entries {
		now := time.Now().UTC().Truncate(time.Microsecond)
		res, err := stmt.ExecContext(ctx,
			e.EntityId,
			e.FileKey,
			e.Action.String(),
			e.MimeType,
			e.ThumbnailKey,
			e.ThumbnailMimeType,
			e.ThumbnailChecksum,
			e.ThumbnailPhash,
			database.ToTimeStr(now))
		if err != nil {
			if err1 := tx.Rollback(); err1 != nil {
				return nil, err1
			}
			L.Debug("actions: AppendActions failure rollback success.")
			return nil, fmt.Errorf("actions: could not insert action row: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			if err1 := tx.Rollback(); err1 != nil {
				return nil, err1
			}
			return nil, fmt.Errorf("actions: could not read inserted row id: %w", err)
		}
		e.Id = id
		e.CreatedAt = now
		out = append(out, e)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("actions: could not commit: %w", err)
	}
	return out, nil
}

func (r *fileActionRepository) GetByFileKeys(ctx context.Context, fileKeys []string) ([]model.FileEntry, error) {
	if len(fileKeys) == 0 {
		return nil, nil
	}
	var out []model.FileEntry
	for i := 0; i < len(fileKeys); i += maxQueryParams {
		chunk := fileKeys[i:min(i+maxQueryParams, len(fileKeys))]
		entries, err := r.getByFileKeysChunk(ctx, chunk)
		if err != nil {
			return nil, err
		}
		out = append(out, entries...)
	}
	sortEntriesNewestFirst(out)
	return out, nil
}

func (r *fileActionRepository) getByFileKeysChunk(ctx context.Context, fileKeys []string) ([]model.FileEntry, error) {
	args := make([]any, 0, len(fileKeys))
	for _, key := range fileKeys {
		args = append(args, key)
	}
	q := fmt.Sprintf(`
  WITH ranked AS (
    SELECT *,
           ROW_NUMBER() OVER (
               PARTITION BY file_key
               ORDER BY action_created_at DESC, id DESC
           ) AS rn
    FROM file_actions
    WHERE file_key IN (%s)
  ),
  latest_batches AS (
    SELECT file_entity_uuid, MAX(batch_seq) AS seq
    FROM file_tags
    GROUP BY file_entity_uuid
  ),
  current_tags AS (
    SELECT ft.file_entity_uuid, ft.tag_id
    FROM file_tags ft
    JOIN latest_batches lb
      ON lb.file_entity_uuid = ft.file_entity_uuid
     AND lb.seq = ft.batch_seq
  )
  SELECT
  c.id,
  c.file_entity_uuid,
  c.file_key,
  c.action_type,
  c.mime_type,
  c.thumbnail_key,
  c.thumbnail_mime_type,
  c.thumbnail_checksum,
  c.thumbnail_phash,
  c.action_created_at,
  (SELECT GROUP_CONCAT(ct.tag_id)
     FROM current_tags ct
    WHERE ct.file_entity_uuid = c.file_entity_uuid) AS tag_ids
  FROM ranked c
  WHERE c.rn = 1 AND c.action_type != 'DELETE'
  ORDER BY c.action_created_at DESC, c.id DESC`,
		placeholders(len(fileKeys)))
	rows, err := r.db.D.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("actions: could not query by file keys: %w", err)
	}
	defer rows.Close()
	return r.scanEntries(ctx, rows)
}

func (r *fileActionRepository) GetByTags(ctx context.Context, query model.TagQuery) ([]model.FileEntry, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	var allNames []string
	for _, group := range query.IncludeGroups {
		allNames = append(allNames, group...)
	}
	allNames = append(allNames, query.Exclude...)
	ids, err := r.tags.LookupTagIds(ctx, allNames)
	if err != nil {
		return nil, err
	}

	// a group naming an unknown tag can never match; an unknown exclude
	// excludes nothing
	var groupClauses []string
	var args []any
	for _, group := range query.IncludeGroups {
		known := true
		for _, name := range group {
			if _, ok := ids[name]; !ok {
				known = false
				break
			}
		}
		if !known {
			continue
		}
		groupClauses = append(groupClauses, fmt.Sprintf(`
    SELECT file_entity_uuid
    FROM current_tags
    WHERE tag_id IN (%s)
    GROUP BY file_entity_uuid
    HAVING COUNT(DISTINCT tag_id) = %d`,
			placeholders(len(group)), len(group)))
		for _, name := range group {
			args = append(args, ids[name])
		}
	}
	if len(query.IncludeGroups) > 0 && len(groupClauses) == 0 {
		return nil, nil
	}

	var excludeArgs []any
	for _, name := range query.Exclude {
		if id, ok := ids[name]; ok {
			excludeArgs = append(excludeArgs, id)
		}
	}

	var sb strings.Builder
	sb.WriteString(`
  WITH ranked AS (
    SELECT *,
           ROW_NUMBER() OVER (
               PARTITION BY file_key
               ORDER BY action_created_at DESC, id DESC
           ) AS rn
    FROM file_actions
  ),
  latest_batches AS (
    SELECT file_entity_uuid, MAX(batch_seq) AS seq
    FROM file_tags
    GROUP BY file_entity_uuid
  ),
  current_tags AS (
    SELECT ft.file_entity_uuid, ft.tag_id
    FROM file_tags ft
    JOIN latest_batches lb
      ON lb.file_entity_uuid = ft.file_entity_uuid
     AND lb.seq = ft.batch_seq
  )`)
	if len(groupClauses) > 0 {
		sb.WriteString(`,
  matching AS (`)
		sb.WriteString(strings.Join(groupClauses, `
    UNION`))
		sb.WriteString(`
  )`)
	}
	sb.WriteString(`
  SELECT
  c.id,
  c.file_entity_uuid,
  c.file_key,
  c.action_type,
  c.mime_type,
  c.thumbnail_key,
  c.thumbnail_mime_type,
  c.thumbnail_checksum,
  c.thumbnail_phash,
  c.action_created_at,
  (SELECT GROUP_CONCAT(ct.tag_id)
     FROM current_tags ct
    WHERE ct.file_entity_uuid = c.file_entity_uuid) AS tag_ids
  FROM ranked c`)
	if len(groupClauses) > 0 {
		sb.WriteString(`
  JOIN matching m ON m.file_entity_uuid = c.file_entity_uuid`)
	}
	sb.WriteString(`
  WHERE c.rn = 1 AND c.action_type != 'DELETE'`)
	if len(excludeArgs) > 0 {
		sb.WriteString(fmt.Sprintf(`
    AND c.file_entity_uuid NOT IN (
        SELECT file_entity_uuid FROM current_tags WHERE tag_id IN (%s))`,
			placeholders(len(excludeArgs))))
		args = append(args, excludeArgs...)
	}
	sb.WriteString(`
  ORDER BY c.action_created_at DESC, c.id DESC`)

	rows, err := r.db.D.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("actions: could not query by tags: %w", err)
	}
	defer rows.Close()
	return r.scanEntries(ctx, rows)
}

func (r *fileActionRepository) GetHistory(ctx context.Context, fileKey string) ([]model.FileEntry, error) {
	entityId, err := r.resolveEntity(ctx, fileKey)
	if err != nil {
		return nil, err
	}
	if entityId == "" {
		return nil, nil
	}
	// tags on each history row reflect the batch that was current when
	// the action was recorded
	rows, err := r.db.D.QueryContext(ctx, `
  SELECT
  h.id,
  h.file_entity_uuid,
  h.file_key,
  h.action_type,
  h.mime_type,
  h.thumbnail_key,
  h.thumbnail_mime_type,
  h.thumbnail_checksum,
  h.thumbnail_phash,
  h.action_created_at,
  (SELECT GROUP_CONCAT(ft.tag_id)
     FROM file_tags ft
    WHERE ft.file_entity_uuid = h.file_entity_uuid
      AND ft.batch_seq = (
          SELECT MAX(ft2.batch_seq)
            FROM file_tags ft2
           WHERE ft2.file_entity_uuid = h.file_entity_uuid
             AND ft2.tags_created_at <= h.action_created_at)) AS tag_ids
  FROM file_actions h
  WHERE h.file_entity_uuid = ?
  ORDER BY h.action_created_at DESC, h.id DESC`, entityId)
	if err != nil {
		return nil, fmt.Errorf("actions: could not query history for %s: %w", fileKey, err)
	}
	defer rows.Close()
	return r.scanEntries(ctx, rows)
}

func (r *fileActionRepository) FindSimilar(ctx context.Context, fileKey string) ([]model.FileEntry, error) {
	targets, err := r.getByFileKeysChunk(ctx, []string{fileKey})
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, nil
	}
	target := targets[0]
	if target.ThumbnailChecksum == nil && target.ThumbnailPhash == nil {
		return nil, nil
	}

	rows, err := r.db.D.QueryContext(ctx, `
  WITH ranked AS (
    SELECT *,
           ROW_NUMBER() OVER (
               PARTITION BY file_key
               ORDER BY action_created_at DESC, id DESC
           ) AS rn
    FROM file_actions
  ),
  latest_batches AS (
    SELECT file_entity_uuid, MAX(batch_seq) AS seq
    FROM file_tags
    GROUP BY file_entity_uuid
  ),
  current_tags AS (
    SELECT ft.file_entity_uuid, ft.tag_id
    FROM file_tags ft
    JOIN latest_batches lb
      ON lb.file_entity_uuid = ft.file_entity_uuid
     AND lb.seq = ft.batch_seq
  )
  SELECT
  c.id,
  c.file_entity_uuid,
  c.file_key,
  c.action_type,
  c.mime_type,
  c.thumbnail_key,
  c.thumbnail_mime_type,
  c.thumbnail_checksum,
  c.thumbnail_phash,
  c.action_created_at,
  (SELECT GROUP_CONCAT(ct.tag_id)
     FROM current_tags ct
    WHERE ct.file_entity_uuid = c.file_entity_uuid) AS tag_ids
  FROM ranked c
  WHERE c.rn = 1
    AND c.action_type != 'DELETE'
    AND c.file_key != ?
    AND c.file_entity_uuid != ?
    AND (c.thumbnail_checksum = ? OR c.thumbnail_phash = ?)
  ORDER BY
    CASE
        WHEN c.thumbnail_checksum = ? AND c.thumbnail_phash = ? THEN 1
        WHEN c.thumbnail_checksum = ? THEN 2
        WHEN c.thumbnail_phash = ? THEN 3
    END ASC,
    c.action_created_at DESC,
    c.id DESC`,
		target.FileKey,
		target.EntityId,
		target.ThumbnailChecksum,
		target.ThumbnailPhash,
		target.ThumbnailChecksum,
		target.ThumbnailPhash,
		target.ThumbnailChecksum,
		target.ThumbnailPhash)
	if err != nil {
		return nil, fmt.Errorf("actions: could not query similar files: %w", err)
	}
	defer rows.Close()
	return r.scanEntries(ctx, rows)
}

func (r *fileActionRepository) resolveEntity(ctx context.Context, fileKey string) (string, error) {
	var entityId string
	err := r.db.D.QueryRowContext(ctx, `
  SELECT file_entity_uuid
  FROM file_actions
  WHERE file_key = ?
  ORDER BY action_created_at DESC, id DESC
  LIMIT 1`, fileKey).Scan(&entityId)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("actions: could not resolve entity for %s: %w", fileKey, err)
	}
	return entityId, nil
}

func (r *fileActionRepository) scanEntries(ctx context.Context, rows *sql.Rows) ([]model.FileEntry, error) {
	var entries []model.FileEntry
	type tagRef struct {
		idx int
		ids []int64
	}
	var pending []tagRef
	for rows.Next() {
		var e model.FileEntry
		var action, createdAt string
		var mimeType, thumbKey, thumbMime, thumbChecksum, thumbPhash, tagIds sql.NullString
		err := rows.Scan(
			&e.Id,
			&e.EntityId,
			&e.FileKey,
			&action,
			&mimeType,
			&thumbKey,
			&thumbMime,
			&thumbChecksum,
			&thumbPhash,
			&createdAt,
			&tagIds)
		if err != nil {
			return nil, err
		}
		e.Action, err = model.ParseActionType(action)
		if err != nil {
			return nil, err
		}
		e.MimeType = nullableStr(mimeType)
		e.ThumbnailKey = nullableStr(thumbKey)
		e.ThumbnailMimeType = nullableStr(thumbMime)
		e.ThumbnailChecksum = nullableStr(thumbChecksum)
		e.ThumbnailPhash = nullableStr(thumbPhash)
		e.CreatedAt = database.FromTimeStr(createdAt)
		if tagIds.Valid && tagIds.String != "" {
			ids, err := parseTagIdList(tagIds.String)
			if err != nil {
				return nil, err
			}
			pending = append(pending, tagRef{idx: len(entries), ids: ids})
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// resolve after iteration so the tag lookup does not interleave with
	// the open result set
	for _, p := range pending {
		names, err := r.tags.ResolveTagNames(ctx, p.ids)
		if err != nil {
			return nil, err
		}
		entries[p.idx].Tags = names
	}
	return entries, nil
}

func nullableStr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func sortEntriesNewestFirst(entries []model.FileEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.After(entries[j].CreatedAt)
		}
		return entries[i].Id > entries[j].Id
	})
}
