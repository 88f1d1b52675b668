package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/knjiznica/internal/model"
)

// RecordActivity appends one event to the ledger. The timestamp is assigned
// at append time by the database. The ledger is append-only: nothing in this
// package updates or deletes activity rows.
//
// Borrow/return events are appended by ToggleLoan inside the loan
// transaction; this function is for the fire-and-forget open/download
// telemetry, where a failed append must not block the triggering action.
func RecordActivity(ctx context.Context, db *sql.DB, event model.ActivityEvent) error {
	if !model.ValidAction(event.Action) {
		return fieldError("action", "must be one of: borrow, return, download, open")
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO activity_events (item_id, item_title, media_type, user_id, user_name, action)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		event.ItemID, event.ItemTitle, event.MediaType, event.UserID, event.UserName, event.Action,
	)
	if err != nil {
		return fmt.Errorf("recording activity: %w", err)
	}
	return nil
}

// RecentActivity returns the newest limit events. Ordering is timestamp
// descending with the row ID as tie-break, so repeated reads with no
// intervening writes return identical sequences.
func RecentActivity(ctx context.Context, db *sql.DB, limit int) ([]model.ActivityEvent, error) {
	if limit <= 0 {
		return []model.ActivityEvent{}, nil
	}

	rows, err := db.QueryContext(ctx,
		`SELECT id, item_id, item_title, media_type, user_id, user_name, action, ts
		 FROM activity_events
		 ORDER BY ts DESC, id DESC
		 LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing activity: %w", err)
	}
	defer rows.Close()

	events := []model.ActivityEvent{}
	for rows.Next() {
		var e model.ActivityEvent
		if err := rows.Scan(&e.ID, &e.ItemID, &e.ItemTitle, &e.MediaType,
			&e.UserID, &e.UserName, &e.Action, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning activity event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
