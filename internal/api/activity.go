package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

// ActivityHandler serves the activity feed and the popularity ranking.
type ActivityHandler struct {
	DB *sql.DB
}

// Feed defaults and caps.
const (
	defaultFeedLimit = 20
	maxFeedLimit     = 100

	defaultRecoWindow = 500
	maxRecoWindow     = 5000
	defaultRecoTop    = 5
	maxRecoTop        = 50
)

// Recent handles GET /api/activity?limit=. A store failure degrades to an
// empty feed: the feed is informational and must never turn into an error
// dialog for the user.
func (h *ActivityHandler) Recent(w http.ResponseWriter, r *http.Request) {
	limit := intParam(r, "limit", defaultFeedLimit, maxFeedLimit)

	events, err := store.RecentActivity(r.Context(), h.DB, limit)
	if err != nil {
		slog.Warn("activity feed unavailable", "error", err)
		events = []model.ActivityEvent{}
	}

	jsonResponse(w, http.StatusOK, events)
}

// Recommendations handles GET /api/recommendations?window=&top=. Degrades to
// an empty ranking on store failure, same as the feed.
func (h *ActivityHandler) Recommendations(w http.ResponseWriter, r *http.Request) {
	window := intParam(r, "window", defaultRecoWindow, maxRecoWindow)
	top := intParam(r, "top", defaultRecoTop, maxRecoTop)

	recs, err := store.TopItems(r.Context(), h.DB, window, top)
	if err != nil {
		slog.Warn("recommendations unavailable", "error", err)
		recs = []model.Recommendation{}
	}

	jsonResponse(w, http.StatusOK, recs)
}

// intParam reads a positive integer query parameter, falling back to def and
// clamping at max.
func intParam(r *http.Request, name string, def, max int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
