package database

import (
	"context"
	"database/sql"
	"fmt"
	L "mediavault/logger"
	"time"

	_ "modernc.org/sqlite"
)

// Timestamps are stored as UTC strings at microsecond precision. Two rows
// written in the same microsecond are ordered by rowid.
const DateTimeFormat = "2006-01-02 15:04:05.000000"

type DB struct {
	D             *sql.DB
	connectionUri string
}

// NewDB opens (creating if absent) the metadata log database. Pragmas ride
// on the connection string so every pooled connection gets them; _txlock
// makes each write transaction BEGIN IMMEDIATE, taking the write lock up
// front instead of on first write.
func NewDB(dbPath string) (*DB, error) {
	uri := fmt.Sprintf("file:%s?_txlock=immediate"+
		"&_pragma=journal_mode(WAL)"+
		"&_pragma=synchronous(NORMAL)"+
		"&_pragma=foreign_keys(1)"+
		"&_pragma=busy_timeout(5000)",
		dbPath)
	d, err := sql.Open("sqlite", uri)
	if err != nil {
		return nil, fmt.Errorf("database: could not open %s: %w", dbPath, err)
	}
	return &DB{
		D:             d,
		connectionUri: uri,
	}, nil
}

func (d *DB) createTables(ctx context.Context) error {
	_, err := d.D.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS file_actions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    file_entity_uuid TEXT NOT NULL,
    file_key TEXT NOT NULL,
    action_type TEXT NOT NULL
        CHECK(action_type IN ('CREATE', 'MOVE', 'DELETE', 'UPDATE', 'MISSING')),
    mime_type TEXT,
    thumbnail_key TEXT,
    thumbnail_mime_type TEXT,
    thumbnail_checksum TEXT,
    thumbnail_phash TEXT,
    action_created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_file_actions_key_time
    ON file_actions(file_key, action_created_at);
CREATE INDEX IF NOT EXISTS idx_file_actions_entity
    ON file_actions(file_entity_uuid);
CREATE INDEX IF NOT EXISTS idx_file_actions_phash
    ON file_actions(thumbnail_phash);
CREATE INDEX IF NOT EXISTS idx_file_actions_checksums
    ON file_actions(thumbnail_checksum, thumbnail_phash);

CREATE TABLE IF NOT EXISTS tags (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE
);

CREATE INDEX IF NOT EXISTS idx_tags_name ON tags(name);

CREATE TABLE IF NOT EXISTS file_tags (
    file_entity_uuid TEXT NOT NULL,
    tag_id INTEGER NOT NULL REFERENCES tags(id),
    batch_seq INTEGER NOT NULL,
    tags_created_at TEXT NOT NULL,
    PRIMARY KEY (file_entity_uuid, tag_id, batch_seq)
);

CREATE INDEX IF NOT EXISTS idx_file_tags_compound
    ON file_tags(file_entity_uuid, tag_id, tags_created_at);
CREATE INDEX IF NOT EXISTS idx_file_tags_batch
    ON file_tags(file_entity_uuid, batch_seq);
`)
	if err != nil {
		return fmt.Errorf("database: could not create tables: %w", err)
	}
	L.Debug("database: schema ready")
	return nil
}

func (d *DB) Init(ctx context.Context) error {
	return d.createTables(ctx)
}

func (d *DB) Close(ctx context.Context) error {
	return d.D.Close()
}

func ToTimeStr(t time.Time) string {
	return t.UTC().Format(DateTimeFormat)
}

func FromTimeStr(ts string) time.Time {
	t, err := time.Parse(DateTimeFormat, ts)
	if err != nil {
		L.Error(fmt.Errorf("database: could not parse time %q: %w", ts, err))
		return time.Time{}
	}
	return t.UTC()
}
