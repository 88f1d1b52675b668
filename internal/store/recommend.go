package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/erazemk/knjiznica/internal/model"
)

// TopItems derives a popularity ranking by replaying the window most recent
// events: group by (title, media type), count, sort by count descending.
// Equal counts are ordered by title ascending, then media type ascending, so
// the ranking is deterministic. No counter state is kept anywhere; the view
// is recomputed on every call, which is fine because the window is bounded.
func TopItems(ctx context.Context, db *sql.DB, window, topN int) ([]model.Recommendation, error) {
	if window <= 0 || topN <= 0 {
		return []model.Recommendation{}, nil
	}

	events, err := RecentActivity(ctx, db, window)
	if err != nil {
		return nil, fmt.Errorf("replaying activity window: %w", err)
	}

	type key struct {
		title     string
		mediaType string
	}
	counts := make(map[key]int)
	for _, e := range events {
		counts[key{e.ItemTitle, e.MediaType}]++
	}

	recs := make([]model.Recommendation, 0, len(counts))
	for k, n := range counts {
		recs = append(recs, model.Recommendation{Title: k.title, MediaType: k.mediaType, Count: n})
	}
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Count != recs[j].Count {
			return recs[i].Count > recs[j].Count
		}
		if recs[i].Title != recs[j].Title {
			return recs[i].Title < recs[j].Title
		}
		return recs[i].MediaType < recs[j].MediaType
	})

	if len(recs) > topN {
		recs = recs[:topN]
	}
	return recs, nil
}
