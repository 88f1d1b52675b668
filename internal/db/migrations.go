package db

import (
	"database/sql"
	"fmt"
)

// migrations is a list of SQL statements applied in order after schema creation.
// Each migration must be idempotent. Append new migrations at the end.
var migrations = []string{
	// Migration 1: older databases indexed activity only by timestamp; the
	// compound index makes the tie-broken feed ordering cheap.
	`DROP INDEX IF EXISTS idx_activity_events_ts_only`,
	`CREATE INDEX IF NOT EXISTS idx_activity_events_ts
	     ON activity_events(ts DESC, id DESC)`,
}

// Migrate runs the database schema migrations.
func Migrate(db *sql.DB) error {
	if err := EnsureSchema(db); err != nil {
		return err
	}

	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
	}

	if err := migrateLegacyMediaURL(db); err != nil {
		return fmt.Errorf("migrating legacy media url: %w", err)
	}

	return nil
}

// migrateLegacyMediaURL upgrades catalogs written by the book-only schema.
// Those databases stored the resource locator as pdf_url and predate the
// media_type, media_url and cover columns entirely, so the missing columns
// are added first, then pdf_url is backfilled into media_url and dropped so
// the rest of the code never sees the old shape.
func migrateLegacyMediaURL(db *sql.DB) error {
	cols, err := tableColumns(db, "items")
	if err != nil {
		return err
	}
	if !cols["pdf_url"] {
		return nil
	}

	added := []struct {
		name string
		stmt string
	}{
		{"media_type", `ALTER TABLE items ADD COLUMN media_type TEXT NOT NULL DEFAULT 'book'`},
		{"media_url", `ALTER TABLE items ADD COLUMN media_url TEXT`},
		{"cover", `ALTER TABLE items ADD COLUMN cover BLOB`},
		{"cover_mime", `ALTER TABLE items ADD COLUMN cover_mime TEXT`},
	}
	for _, a := range added {
		if cols[a.name] {
			continue
		}
		if _, err := db.Exec(a.stmt); err != nil {
			return fmt.Errorf("adding column %s: %w", a.name, err)
		}
	}

	stmts := []string{
		`UPDATE items SET media_url = pdf_url WHERE media_url IS NULL AND pdf_url IS NOT NULL`,
		`ALTER TABLE items DROP COLUMN pdf_url`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// tableColumns returns the set of column names of a table.
func tableColumns(db *sql.DB, table string) (map[string]bool, error) {
	rows, err := db.Query(`SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return nil, fmt.Errorf("reading %s columns: %w", table, err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning column name: %w", err)
		}
		cols[name] = true
	}
	return cols, rows.Err()
}
