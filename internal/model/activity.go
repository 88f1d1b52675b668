package model

import "time"

// ActivityEvent is an immutable ledger entry recording a user action against
// an item. Title and user name are denormalized snapshots taken at event
// time so the history stays readable after the item or account is gone.
type ActivityEvent struct {
	ID        int64     `json:"id"`
	ItemID    string    `json:"item_id"`
	ItemTitle string    `json:"item_title"`
	MediaType string    `json:"media_type"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"ts"`
}

// Actions.
const (
	ActionBorrow   = "borrow"
	ActionReturn   = "return"
	ActionDownload = "download"
	ActionOpen     = "open"
)

// ValidAction reports whether a is a known activity action.
func ValidAction(a string) bool {
	switch a {
	case ActionBorrow, ActionReturn, ActionDownload, ActionOpen:
		return true
	}
	return false
}

// Recommendation is one row of the most-active ranking.
type Recommendation struct {
	Title     string `json:"title"`
	MediaType string `json:"media_type"`
	Count     int    `json:"count"`
}
