package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/knjiznica/internal/model"
)

// ToggleLoan flips an item between available and held on behalf of user, and
// appends the matching borrow/return event in the same transaction. Either
// both commit or neither does.
//
// The transition is computed from a snapshot read inside the transaction, so
// under concurrent calls on the same item exactly one observes it available
// and borrows; the others act on the updated state. A held item is returned
// by whoever toggles it next — returns are not restricted to the original
// holder.
func ToggleLoan(ctx context.Context, db *sql.DB, itemID string, user model.User) (*model.Item, string, error) {
	if user.ID == "" {
		return nil, "", ErrUnauthenticated
	}

	var item *model.Item
	var action string
	err := transact(ctx, db, func(tx *sql.Tx) error {
		var err error
		item, err = getItem(ctx, tx, itemID)
		if err != nil {
			return err
		}
		if item == nil {
			return ErrNotFound
		}

		if item.Available {
			action = model.ActionBorrow
			_, err = tx.ExecContext(ctx,
				`UPDATE items SET available = 0, holder_id = ?, holder_name = ?,
				        updated_at = CURRENT_TIMESTAMP
				 WHERE id = ?`,
				user.ID, user.DisplayName, itemID,
			)
			if err != nil {
				return fmt.Errorf("borrowing item: %w", err)
			}
			item.Available = false
			item.Holder = &model.Holder{UserID: user.ID, DisplayName: user.DisplayName}
		} else {
			action = model.ActionReturn
			_, err = tx.ExecContext(ctx,
				`UPDATE items SET available = 1, holder_id = NULL, holder_name = NULL,
				        updated_at = CURRENT_TIMESTAMP
				 WHERE id = ?`,
				itemID,
			)
			if err != nil {
				return fmt.Errorf("returning item: %w", err)
			}
			item.Available = true
			item.Holder = nil
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO activity_events (item_id, item_title, media_type, user_id, user_name, action)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			item.ID, item.Title, item.MediaType, user.ID, user.DisplayName, action,
		)
		if err != nil {
			return fmt.Errorf("appending loan event: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, "", err
	}

	return item, action, nil
}
