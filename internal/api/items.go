package api

import (
	"database/sql"
	"net/http"

	"github.com/erazemk/knjiznica/internal/imaging"
	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

// ItemsHandler handles catalog CRUD, bulk import/export, and cover endpoints.
type ItemsHandler struct {
	DB *sql.DB
}

type itemRequest struct {
	Title     string `json:"title"`
	Author    string `json:"author"`
	Subject   string `json:"subject"`
	Year      int    `json:"year"`
	Code      string `json:"code"`
	MediaType string `json:"media_type"`
	MediaURL  string `json:"media_url"`
}

func (req itemRequest) toItem() model.Item {
	return model.Item{
		Title:     req.Title,
		Author:    req.Author,
		Subject:   req.Subject,
		Year:      req.Year,
		Code:      req.Code,
		MediaType: req.MediaType,
		MediaURL:  req.MediaURL,
	}
}

// List handles GET /api/items. The store returns the full snapshot; the
// browse filters from the query string are applied in memory so that filter
// changes in the presentation layer never cause a re-query.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := store.ListItems(r.Context(), h.DB)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to list items")
		return
	}

	q := r.URL.Query()
	year, err := model.ParseYear(q.Get("year"))
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid year filter")
		return
	}
	filter := model.Filter{
		Text:      q.Get("q"),
		Subject:   q.Get("subject"),
		Year:      year,
		MediaType: q.Get("media_type"),
	}
	switch q.Get("available") {
	case "true":
		t := true
		filter.Available = &t
	case "false":
		f := false
		filter.Available = &f
	case "":
	default:
		jsonError(w, http.StatusBadRequest, "invalid available filter")
		return
	}

	filtered := model.FilterItems(items, filter)
	jsonResponse(w, http.StatusOK, map[string]any{
		"items": filtered,
		"count": len(filtered),
	})
}

// Get handles GET /api/items/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, err := store.GetItem(r.Context(), h.DB, r.PathValue("id"))
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get item")
		return
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Create handles POST /api/items.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := store.CreateItem(r.Context(), h.DB, req.toItem())
	if err != nil {
		storeError(w, err, "failed to create item")
		return
	}

	jsonResponse(w, http.StatusCreated, item)
}

// Update handles PUT /api/items/{id}. Only metadata changes; availability
// and holder belong to the loan endpoint.
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := store.UpdateItem(r.Context(), h.DB, r.PathValue("id"), req.toItem())
	if err != nil {
		storeError(w, err, "failed to update item")
		return
	}

	jsonResponse(w, http.StatusOK, item)
}

// Delete handles DELETE /api/items/{id}. Hard delete: the catalog entry is
// gone, the activity ledger keeps its snapshots.
func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := store.DeleteItem(r.Context(), h.DB, r.PathValue("id")); err != nil {
		storeError(w, err, "failed to delete item")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "item deleted"})
}

// Export handles GET /api/items/export, returning the whole catalog as a
// JSON document suitable for re-import.
func (h *ItemsHandler) Export(w http.ResponseWriter, r *http.Request) {
	items, err := store.ListItems(r.Context(), h.DB)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to export items")
		return
	}
	if items == nil {
		items = []model.Item{}
	}

	w.Header().Set("Content-Disposition", `attachment; filename="catalog-export.json"`)
	jsonResponse(w, http.StatusOK, items)
}

// Import handles POST /api/items/import: a JSON array of records, current or
// legacy shape, applied as one batch. One bad record rejects the whole file.
func (h *ItemsHandler) Import(w http.ResponseWriter, r *http.Request) {
	var records []model.ImportRecord
	if err := decodeJSON(r, &records); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid import document")
		return
	}
	if len(records) == 0 {
		jsonError(w, http.StatusBadRequest, "import document is empty")
		return
	}

	n, err := store.BulkImport(r.Context(), h.DB, records)
	if err != nil {
		storeError(w, err, "failed to import items")
		return
	}

	jsonResponse(w, http.StatusOK, map[string]int{"imported": n})
}

// UploadCover handles PUT /api/items/{id}/cover.
func (h *ItemsHandler) UploadCover(w http.ResponseWriter, r *http.Request) {
	// Limit to 5 MB.
	r.Body = http.MaxBytesReader(w, r.Body, 5<<20)

	if err := r.ParseMultipartForm(5 << 20); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}

	file, _, err := r.FormFile("cover")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "cover file required")
		return
	}
	defer file.Close()

	cover, err := imaging.Prepare(file)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := store.SetItemCover(r.Context(), h.DB, r.PathValue("id"), cover.Data, cover.MIME); err != nil {
		storeError(w, err, "failed to save cover")
		return
	}

	jsonResponse(w, http.StatusOK, map[string]string{"message": "cover uploaded"})
}

// GetCover handles GET /api/items/{id}/cover.
func (h *ItemsHandler) GetCover(w http.ResponseWriter, r *http.Request) {
	data, mime, err := store.GetItemCover(r.Context(), h.DB, r.PathValue("id"))
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get cover")
		return
	}
	if data == nil {
		jsonError(w, http.StatusNotFound, "no cover")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(data)
}
