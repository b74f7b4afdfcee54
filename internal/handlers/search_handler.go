package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/launchradar/launchradar/internal/interfaces"
)

// SearchRequest is the POST /api/search request body.
type SearchRequest struct {
	Query     string            `json:"query"`
	Mode      string            `json:"mode"` // "semantic", "keyword", or "hybrid"
	Limit     int               `json:"limit"`
	Filters   map[string]string `json:"filters,omitempty"`
	StartTime string            `json:"start_time,omitempty"` // RFC3339
	EndTime   string            `json:"end_time,omitempty"`   // RFC3339
	Rerank    bool              `json:"rerank,omitempty"`
}

// SearchHandler handles search-related HTTP requests
type SearchHandler struct {
	store  interfaces.CompanyStore
	logger arbor.ILogger
}

func NewSearchHandler(store interfaces.CompanyStore, logger arbor.ILogger) *SearchHandler {
	return &SearchHandler{
		store:  store,
		logger: logger,
	}
}

// SearchHandler handles POST /api/search requests
func (h *SearchHandler) SearchHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Query == "" {
		WriteError(w, http.StatusBadRequest, "Query is required")
		return
	}

	mode := req.Mode
	if mode == "" {
		mode = "hybrid"
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	opts := interfaces.SearchOptions{
		Limit:          limit,
		MetadataFilter: req.Filters,
		Rerank:         req.Rerank,
	}

	if req.StartTime != "" || req.EndTime != "" {
		tr, err := parseTimeRange(req.StartTime, req.EndTime)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		opts.TimeRange = tr
	}

	h.logger.Info().
		Str("query", req.Query).
		Str("mode", mode).
		Int("limit", limit).
		Msg("Search request received")

	ctx := r.Context()
	var (
		results interface{}
		err     error
	)
	switch mode {
	case "semantic":
		results, err = h.store.SemanticSearch(ctx, req.Query, opts)
	case "keyword":
		results, err = h.store.KeywordSearch(ctx, req.Query, opts)
	case "hybrid":
		results, err = h.store.HybridSearch(ctx, req.Query, opts)
	default:
		WriteError(w, http.StatusBadRequest, "Mode must be one of: semantic, keyword, hybrid")
		return
	}

	if err != nil {
		h.logger.Error().
			Err(err).
			Str("query", req.Query).
			Str("mode", mode).
			Msg("Failed to execute search")
		WriteError(w, http.StatusInternalServerError, "Failed to execute search")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
		"query":   req.Query,
		"mode":    mode,
		"limit":   limit,
	})
}

func parseTimeRange(startStr, endStr string) (*interfaces.TimeRange, error) {
	tr := &interfaces.TimeRange{Start: time.Time{}, End: time.Now()}

	if startStr != "" {
		start, err := time.Parse(time.RFC3339, startStr)
		if err != nil {
			return nil, &timeRangeError{field: "start_time"}
		}
		tr.Start = start
	}
	if endStr != "" {
		end, err := time.Parse(time.RFC3339, endStr)
		if err != nil {
			return nil, &timeRangeError{field: "end_time"}
		}
		tr.End = end
	}
	return tr, nil
}

type timeRangeError struct {
	field string
}

func (e *timeRangeError) Error() string {
	return e.field + " must be RFC3339 formatted"
}
