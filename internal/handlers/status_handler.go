package handlers

import (
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/launchradar/launchradar/internal/common"
	"github.com/launchradar/launchradar/internal/interfaces"
	"github.com/launchradar/launchradar/internal/models"
)

// StatsProvider reports the outcome of the most recent pipeline run.
type StatsProvider interface {
	LastStats() (*models.RunStats, int)
}

// StatusHandler serves the application status endpoint.
type StatusHandler struct {
	stats     StatsProvider
	store     interfaces.CompanyStore
	startedAt time.Time
	logger    arbor.ILogger
}

func NewStatusHandler(stats StatsProvider, store interfaces.CompanyStore, logger arbor.ILogger) *StatusHandler {
	return &StatusHandler{
		stats:     stats,
		store:     store,
		startedAt: time.Now(),
		logger:    logger,
	}
}

// GetStatusHandler handles GET /api/status requests
func (h *StatusHandler) GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	status := map[string]interface{}{
		"service": "launchradar",
		"version": common.GetVersion(),
		"uptime":  time.Since(h.startedAt).Round(time.Second).String(),
	}

	if h.stats != nil {
		lastRun, runCount := h.stats.LastStats()
		status["run_count"] = runCount
		if lastRun != nil {
			status["last_run"] = lastRun
		}
	}

	if h.store != nil {
		count, err := h.store.Count(r.Context())
		if err != nil {
			h.logger.Warn().Err(err).Msg("Failed to count stored records")
			status["database"] = "error"
		} else {
			status["database"] = "connected"
			status["record_count"] = count
		}
	} else {
		status["database"] = "disabled"
	}

	WriteJSON(w, http.StatusOK, status)
}
