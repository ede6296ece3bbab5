package repository

import (
	"context"
	"database/sql"
	"fmt"
	"mediavault/database"
	"mediavault/database/model"
	L "mediavault/logger"
	"strconv"
	"strings"
	"time"
)

type TagRepository interface {
	// AppendTags writes one new batch covering every assignment in the
	// call: all rows share a single timestamp and a single batch sequence
	// number, so "current tags of an entity" has a deterministic winner
	// even when two batches land in the same clock tick.
	AppendTags(ctx context.Context, assignments []model.TagAssignment) error
	GetTagHistory(ctx context.Context, fileKey string) ([]model.TagBatch, error)
	LookupTagIds(ctx context.Context, names []string) (map[string]int64, error)
	ResolveTagNames(ctx context.Context, ids []int64) ([]string, error)
	InvalidateCache()
}

type tagRepository struct {
	db    *database.DB
	cache *TagCache
}

func NewTagRepository(db *database.DB, cache *TagCache) TagRepository {
	return &tagRepository{db: db, cache: cache}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func (r *tagRepository) AppendTags(ctx context.Context, assignments []model.TagAssignment) error {
	if len(assignments) == 0 {
		return nil
	}
	nameSet := map[string]bool{}
	entitySeen := map[string]bool{}
	for i := range assignments {
		if err := assignments[i].Validate(); err != nil {
			return err
		}
		if entitySeen[assignments[i].EntityId] {
			// two batches for one entity in a single call would share
			// the batch sequence and collide
			return fmt.Errorf("tags: duplicate entity %s in one call", assignments[i].EntityId)
		}
		entitySeen[assignments[i].EntityId] = true
		for _, name := range assignments[i].Tags {
			nameSet[name] = true
		}
	}
	if len(nameSet) == 0 {
		// nothing but empty tag sets; the batch model has no way to
		// store "no tags", so this is a no-op
		return nil
	}

	tx, err := r.db.D.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("tags: could not begin transaction: %w", err)
	}

	ids, err := r.ensureTagIds(ctx, tx, nameSet)
	if err != nil {
		if err1 := tx.Rollback(); err1 != nil {
			return err1
		}
		return err
	}

	var batchSeq int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(batch_seq), 0) + 1 FROM file_tags`).Scan(&batchSeq)
	if err != nil {
		if err1 := tx.Rollback(); err1 != nil {
			return err1
		}
		return fmt.Errorf("tags: could not allocate batch sequence: %w", err)
	}

	batchTime := database.ToTimeStr(time.Now().UTC())
	stmt, err := tx.PrepareContext(ctx, `
  INSERT INTO file_tags
  (file_entity_uuid,
  tag_id,
  batch_seq,
  tags_created_at)
  VALUES
  (?, ?, ?, ?)`)
	if err != nil {
		if err1 := tx.Rollback(); err1 != nil {
			return err1
		}
		return fmt.Errorf("tags: could not prepare insert: %w", err)
	}
	defer stmt.Close()

	for i := range assignments {
		for _, name := range assignments[i].Tags {
			_, err = stmt.ExecContext(ctx, assignments[i].EntityId, ids[name], batchSeq, batchTime)
			if err != nil {
				if err1 := tx.Rollback(); err1 != nil {
					return err1
				}
				L.Debug("tags: AppendTags failure rollback success.")
				return fmt.Errorf("tags: could not insert tag row: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("tags: could not commit batch: %w", err)
	}
	for name, id := range ids {
		r.cache.Put(name, id)
	}
	return nil
}

// ensureTagIds resolves names to ids inside the caller's transaction,
// creating missing tags with INSERT OR IGNORE so concurrent creators of
// the same name cannot fail each other.
func (r *tagRepository) ensureTagIds(ctx context.Context, tx *sql.Tx, nameSet map[string]bool) (map[string]int64, error) {
	ids := map[string]int64{}
	var missing []string
	for name := range nameSet {
		if id, ok := r.cache.IdForName(name); ok {
			ids[name] = id
		} else {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return ids, nil
	}

	insert, err := tx.PrepareContext(ctx, `INSERT INTO tags (name) VALUES (?) ON CONFLICT (name) DO NOTHING`)
	if err != nil {
		return nil, fmt.Errorf("tags: could not prepare tag creation: %w", err)
	}
	defer insert.Close()
	for _, name := range missing {
		if _, err := insert.ExecContext(ctx, name); err != nil {
			return nil, fmt.Errorf("tags: could not create tag %q: %w", name, err)
		}
	}

	args := make([]any, 0, len(missing))
	for _, name := range missing {
		args = append(args, name)
	}
	rows, err := tx.QueryContext(ctx,
		fmt.Sprintf(`SELECT id, name FROM tags WHERE name IN (%s)`, placeholders(len(missing))),
		args...)
	if err != nil {
		return nil, fmt.Errorf("tags: could not read back tag ids: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		ids[name] = id
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, name := range missing {
		if _, ok := ids[name]; !ok {
			return nil, fmt.Errorf("tags: tag %q vanished during creation", name)
		}
	}
	return ids, nil
}

func (r *tagRepository) LookupTagIds(ctx context.Context, names []string) (map[string]int64, error) {
	ids := map[string]int64{}
	seen := map[string]bool{}
	var missing []string
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		if id, ok := r.cache.IdForName(name); ok {
			ids[name] = id
		} else {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return ids, nil
	}
	args := make([]any, 0, len(missing))
	for _, name := range missing {
		args = append(args, name)
	}
	rows, err := r.db.D.QueryContext(ctx,
		fmt.Sprintf(`SELECT id, name FROM tags WHERE name IN (%s)`, placeholders(len(missing))),
		args...)
	if err != nil {
		return nil, fmt.Errorf("tags: could not look up tag ids: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		ids[name] = id
		r.cache.Put(name, id)
	}
	return ids, rows.Err()
}

func (r *tagRepository) ResolveTagNames(ctx context.Context, ids []int64) ([]string, error) {
	names := map[int64]string{}
	seen := map[int64]bool{}
	var missing []int64
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if name, ok := r.cache.NameForId(id); ok {
			names[id] = name
		} else {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		args := make([]any, 0, len(missing))
		for _, id := range missing {
			args = append(args, id)
		}
		rows, err := r.db.D.QueryContext(ctx,
			fmt.Sprintf(`SELECT id, name FROM tags WHERE id IN (%s)`, placeholders(len(missing))),
			args...)
		if err != nil {
			return nil, fmt.Errorf("tags: could not resolve tag names: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var id int64
			var name string
			if err := rows.Scan(&id, &name); err != nil {
				return nil, err
			}
			names[id] = name
			r.cache.Put(name, id)
		}
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if name, ok := names[id]; ok {
			out = append(out, name)
		}
	}
	return out, nil
}

func (r *tagRepository) GetTagHistory(ctx context.Context, fileKey string) ([]model.TagBatch, error) {
	var entityId string
	err := r.db.D.QueryRowContext(ctx, `
  SELECT file_entity_uuid
  FROM file_actions
  WHERE file_key = ?
  ORDER BY action_created_at DESC, id DESC
  LIMIT 1`, fileKey).Scan(&entityId)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("tags: could not resolve entity for %s: %w", fileKey, err)
	}

	rows, err := r.db.D.QueryContext(ctx, `
  SELECT
  batch_seq,
  tags_created_at,
  GROUP_CONCAT(tag_id)
  FROM file_tags
  WHERE file_entity_uuid = ?
  GROUP BY batch_seq, tags_created_at
  ORDER BY batch_seq DESC`, entityId)
	if err != nil {
		return nil, fmt.Errorf("tags: could not read tag history: %w", err)
	}
	defer rows.Close()

	var batches []model.TagBatch
	for rows.Next() {
		var b model.TagBatch
		var createdAtStr string
		var idsStr string
		if err := rows.Scan(&b.Seq, &createdAtStr, &idsStr); err != nil {
			return nil, err
		}
		b.RecordedAt = database.FromTimeStr(createdAtStr)
		ids, err := parseTagIdList(idsStr)
		if err != nil {
			return nil, err
		}
		b.Tags, err = r.ResolveTagNames(ctx, ids)
		if err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

func (r *tagRepository) InvalidateCache() {
	r.cache.Invalidate()
}

func parseTagIdList(concat string) ([]int64, error) {
	if concat == "" {
		return nil, nil
	}
	parts := strings.Split(concat, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("tags: malformed tag id list %q: %w", concat, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
