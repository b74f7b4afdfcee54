package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/launchradar/launchradar/internal/interfaces"
	"github.com/launchradar/launchradar/internal/models"
)

// CompanyHandler serves read endpoints over persisted company records.
type CompanyHandler struct {
	store  interfaces.CompanyStore
	logger arbor.ILogger
}

func NewCompanyHandler(store interfaces.CompanyStore, logger arbor.ILogger) *CompanyHandler {
	return &CompanyHandler{
		store:  store,
		logger: logger,
	}
}

// LatestHandler handles GET /api/latest?limit=N requests
func (h *CompanyHandler) LatestHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	limit := QueryLimit(r, 20, 100)

	rows, err := h.store.LatestRows(r.Context(), limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to load latest companies")
		WriteError(w, http.StatusInternalServerError, "Failed to load latest companies")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"companies": rows,
		"count":     len(rows),
		"limit":     limit,
	})
}

// PollHandler handles GET /api/latest/poll?last_id=X requests. It returns
// records inserted after last_id, relying on IDs being time-sortable.
// An empty last_id returns the most recent page so a new client can seed
// its cursor.
func (h *CompanyHandler) PollHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	lastID := r.URL.Query().Get("last_id")
	limit := QueryLimit(r, 50, 200)

	rows, err := h.store.LatestRows(r.Context(), limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to poll latest companies")
		WriteError(w, http.StatusInternalServerError, "Failed to poll latest companies")
		return
	}

	fresh := FilterAfterID(rows, lastID)

	cursor := lastID
	if len(rows) > 0 {
		cursor = rows[0].ID
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"companies": fresh,
		"count":     len(fresh),
		"last_id":   cursor,
	})
}

// FilterAfterID keeps rows whose ID sorts after lastID, reversed into
// ascending insertion order. Rows arrive newest-first from LatestRows.
func FilterAfterID(rows []models.SearchResult, lastID string) []models.SearchResult {
	fresh := make([]models.SearchResult, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		if lastID == "" || rows[i].ID > lastID {
			fresh = append(fresh, rows[i])
		}
	}
	return fresh
}
