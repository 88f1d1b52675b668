package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema.
//
// activity_events deliberately has no foreign key to items: the ledger keeps
// a denormalized title snapshot so history stays readable after an item is
// hard-deleted.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            TEXT PRIMARY KEY,
    display_name  TEXT NOT NULL,
    email         TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    role          TEXT NOT NULL DEFAULT 'member' CHECK (role IN ('admin', 'member')),
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at    DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email_active
    ON users(email) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS items (
    id          TEXT PRIMARY KEY,
    title       TEXT NOT NULL,
    author      TEXT NOT NULL,
    subject     TEXT,
    year        INTEGER,
    code        TEXT,
    media_type  TEXT NOT NULL DEFAULT 'book' CHECK (media_type IN ('book', 'audio', 'video')),
    media_url   TEXT,
    available   INTEGER NOT NULL DEFAULT 1,
    holder_id   TEXT,
    holder_name TEXT,
    cover       BLOB,
    cover_mime  TEXT,
    created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    CHECK ((available = 1 AND holder_id IS NULL) OR (available = 0 AND holder_id IS NOT NULL))
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_items_code
    ON items(code) WHERE code IS NOT NULL;

CREATE TABLE IF NOT EXISTS activity_events (
    id         INTEGER PRIMARY KEY,
    item_id    TEXT NOT NULL,
    item_title TEXT NOT NULL,
    media_type TEXT NOT NULL,
    user_id    TEXT NOT NULL,
    user_name  TEXT NOT NULL,
    action     TEXT NOT NULL CHECK (action IN ('borrow', 'return', 'download', 'open')),
    ts         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_activity_events_ts
    ON activity_events(ts DESC, id DESC);

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// EnsureSchema creates all tables and indexes if they don't already exist.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}
