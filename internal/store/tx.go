package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// txAttempts bounds the retry loop for conflicting write transactions.
const txAttempts = 3

// transact runs fn inside a transaction: read current state, compute the next
// state, write conditionally. On a busy/locked error the whole transaction is
// retried from a fresh snapshot, so fn must be safe to re-run. When the retry
// budget is exhausted the caller gets ErrConflict; on any error nothing is
// committed.
func transact(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	var err error
	for attempt := 0; attempt < txAttempts; attempt++ {
		err = runTx(ctx, db, fn)
		if err == nil || !isBusy(err) {
			return err
		}
	}
	return fmt.Errorf("%w: retry budget exhausted: %v", ErrConflict, err)
}

func runTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// isBusy reports whether err is SQLite's writer-contention signal.
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "SQLITE_LOCKED") ||
		strings.Contains(msg, "database is locked")
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure on the
// given column.
func isUniqueViolation(err error, column string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") && strings.Contains(msg, column)
}
