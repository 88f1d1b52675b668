package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

// LoansHandler handles the loan toggle and the open/download telemetry.
type LoansHandler struct {
	DB *sql.DB
}

type actionRequest struct {
	Action string `json:"action"`
}

// Toggle handles POST /api/items/{id}/loan: an available item is borrowed by
// the caller, a held item is returned no matter who holds it.
func (h *LoansHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	item, action, err := store.ToggleLoan(r.Context(), h.DB, r.PathValue("id"), claims.User())
	if err != nil {
		storeError(w, err, "failed to toggle loan")
		return
	}

	jsonResponse(w, http.StatusOK, map[string]any{
		"item":   item,
		"action": action,
	})
}

// Action handles POST /api/items/{id}/action for non-lending access: the
// caller gets the media URL, and an open/download event is appended
// best-effort. A failed append is logged and swallowed — telemetry never
// blocks the access it describes.
func (h *LoansHandler) Action(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req actionRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Action != model.ActionOpen && req.Action != model.ActionDownload {
		jsonError(w, http.StatusBadRequest, "action must be open or download")
		return
	}

	item, err := store.GetItem(r.Context(), h.DB, r.PathValue("id"))
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get item")
		return
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}
	if item.MediaURL == "" {
		jsonError(w, http.StatusUnprocessableEntity, "item has no media url")
		return
	}

	event := model.ActivityEvent{
		ItemID:    item.ID,
		ItemTitle: item.Title,
		MediaType: item.MediaType,
		UserID:    claims.UserID,
		UserName:  claims.DisplayName,
		Action:    req.Action,
	}
	if err := store.RecordActivity(r.Context(), h.DB, event); err != nil {
		slog.Warn("activity log failed", "item", item.ID, "action", req.Action, "error", err)
	}

	jsonResponse(w, http.StatusOK, map[string]string{"media_url": item.MediaURL})
}
