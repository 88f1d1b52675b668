package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/erazemk/knjiznica/internal/model"
)

// itemColumns is the select list shared by every item read.
const itemColumns = `id, title, author, subject, year, code, media_type, media_url,
	available, holder_id, holder_name, cover_mime, created_at, updated_at`

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// CreateItem validates and stores a new catalog item. The identifier is
// assigned here; the item starts available with no holder.
func CreateItem(ctx context.Context, db *sql.DB, item model.Item) (*model.Item, error) {
	prepared, err := prepareItem(item)
	if err != nil {
		return nil, err
	}
	prepared.ID = uuid.NewString()

	err = transact(ctx, db, func(tx *sql.Tx) error {
		if err := checkCodeUnique(ctx, tx, prepared.Code, prepared.ID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO items (id, title, author, subject, year, code, media_type, media_url)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			prepared.ID, prepared.Title, prepared.Author, nullString(prepared.Subject),
			nullInt(prepared.Year), nullString(prepared.Code), prepared.MediaType,
			nullString(prepared.MediaURL),
		)
		if isUniqueViolation(err, "code") {
			return fieldError("code", "already in use by another item")
		}
		if err != nil {
			return fmt.Errorf("creating item: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return GetItem(ctx, db, prepared.ID)
}

// GetItem returns an item by ID, or nil when it does not exist.
func GetItem(ctx context.Context, db *sql.DB, id string) (*model.Item, error) {
	return getItem(ctx, db, id)
}

func getItem(ctx context.Context, q querier, id string) (*model.Item, error) {
	row := q.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	item, err := scanItem(row)
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

// ListItems returns the full catalog snapshot, newest first. Browse filters
// are applied in memory by the caller (model.FilterItems), never re-queried.
func ListItems(ctx context.Context, db *sql.DB) ([]model.Item, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items ORDER BY created_at DESC, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// UpdateItem replaces an item's metadata. Availability and holder are owned
// by the loan state machine and are never touched here.
func UpdateItem(ctx context.Context, db *sql.DB, id string, item model.Item) (*model.Item, error) {
	prepared, err := prepareItem(item)
	if err != nil {
		return nil, err
	}

	err = transact(ctx, db, func(tx *sql.Tx) error {
		existing, err := getItem(ctx, tx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return ErrNotFound
		}
		if err := checkCodeUnique(ctx, tx, prepared.Code, id); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE items SET title = ?, author = ?, subject = ?, year = ?, code = ?,
			        media_type = ?, media_url = ?, updated_at = CURRENT_TIMESTAMP
			 WHERE id = ?`,
			prepared.Title, prepared.Author, nullString(prepared.Subject),
			nullInt(prepared.Year), nullString(prepared.Code), prepared.MediaType,
			nullString(prepared.MediaURL), id,
		)
		if isUniqueViolation(err, "code") {
			return fieldError("code", "already in use by another item")
		}
		if err != nil {
			return fmt.Errorf("updating item: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return GetItem(ctx, db, id)
}

// DeleteItem removes an item permanently. Activity history survives because
// the ledger stores denormalized snapshots.
func DeleteItem(ctx context.Context, db *sql.DB, id string) error {
	result, err := db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// BulkImport stores a batch of import records in a single transaction with
// merge semantics: records with a known ID update that item's metadata in
// place, records without one become new items. Availability and holders are
// never touched. One invalid record aborts the whole batch.
func BulkImport(ctx context.Context, db *sql.DB, records []model.ImportRecord) (int, error) {
	prepared := make([]model.Item, 0, len(records))
	for i, rec := range records {
		item, err := prepareItem(rec.ToItem())
		if err != nil {
			return 0, fmt.Errorf("record %d (%q): %w", i+1, rec.Title, err)
		}
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		prepared = append(prepared, item)
	}

	err := transact(ctx, db, func(tx *sql.Tx) error {
		for _, item := range prepared {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO items (id, title, author, subject, year, code, media_type, media_url)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
				 ON CONFLICT (id) DO UPDATE SET
				     title = excluded.title, author = excluded.author,
				     subject = excluded.subject, year = excluded.year,
				     code = excluded.code, media_type = excluded.media_type,
				     media_url = excluded.media_url, updated_at = CURRENT_TIMESTAMP`,
				item.ID, item.Title, item.Author, nullString(item.Subject),
				nullInt(item.Year), nullString(item.Code), item.MediaType,
				nullString(item.MediaURL),
			)
			if isUniqueViolation(err, "code") {
				return fieldError("code", fmt.Sprintf("%q is already in use", item.Code))
			}
			if err != nil {
				return fmt.Errorf("importing item %q: %w", item.Title, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(prepared), nil
}

// SetItemCover stores an item's processed cover image.
func SetItemCover(ctx context.Context, db *sql.DB, id string, data []byte, mime string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE items SET cover = ?, cover_mime = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		data, mime, id,
	)
	if err != nil {
		return fmt.Errorf("setting item cover: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("setting item cover: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetItemCover returns an item's cover image data and MIME type.
func GetItemCover(ctx context.Context, db *sql.DB, id string) ([]byte, string, error) {
	var cover []byte
	var mime sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT cover, cover_mime FROM items WHERE id = ?`, id,
	).Scan(&cover, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting item cover: %w", err)
	}
	return cover, mime.String, nil
}

// prepareItem applies defaults, validates, and normalizes the code.
func prepareItem(item model.Item) (model.Item, error) {
	if item.MediaType == "" {
		item.MediaType = model.MediaBook
	}

	errs := item.Validate()
	code, ok := model.NormalizeCode(item.Code)
	if !ok {
		errs["code"] = "must be 3-20 characters of A-Z, 0-9 and hyphens"
	}
	if len(errs) > 0 {
		return model.Item{}, &ValidationError{Fields: errs}
	}

	item.Code = code
	return item, nil
}

// checkCodeUnique verifies no other item uses the code. The partial unique
// index is the backstop for races; this check exists to report the conflict
// before any write happens.
func checkCodeUnique(ctx context.Context, tx *sql.Tx, code, selfID string) error {
	if code == "" {
		return nil
	}
	var count int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM items WHERE code = ? AND id != ?`, code, selfID,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking code uniqueness: %w", err)
	}
	if count > 0 {
		return fieldError("code", "already in use by another item")
	}
	return nil
}

func scanItem(s interface{ Scan(dest ...any) error }) (*model.Item, error) {
	item := &model.Item{}
	var subject, code, mediaURL, holderID, holderName, coverMime sql.NullString
	var year sql.NullInt64
	err := s.Scan(&item.ID, &item.Title, &item.Author, &subject, &year, &code,
		&item.MediaType, &mediaURL, &item.Available, &holderID, &holderName,
		&coverMime, &item.CreatedAt, &item.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	item.Subject = subject.String
	item.Year = int(year.Int64)
	item.Code = code.String
	item.MediaURL = mediaURL.String
	item.CoverMime = coverMime.String
	if holderID.Valid {
		item.Holder = &model.Holder{UserID: holderID.String, DisplayName: holderName.String}
	}
	return item, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(n int) any {
	if n == 0 {
		return nil
	}
	return n
}
