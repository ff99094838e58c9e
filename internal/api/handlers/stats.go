package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/sersweai/leadcrm/internal/domain/crm"
)

// StatsHandler serves the dashboard counters and the activity chart.
type StatsHandler struct {
	statsService *crm.StatsService
	now          func() time.Time
}

func NewStatsHandler(statsService *crm.StatsService) *StatsHandler {
	return &StatsHandler{statsService: statsService, now: time.Now}
}

// Stats handles GET /api/stats
func (h *StatsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.statsService.Dashboard(r.Context(), h.now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load stats: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Activity handles GET /api/activity
func (h *StatsHandler) Activity(w http.ResponseWriter, r *http.Request) {
	activity, err := h.statsService.Activity(r.Context(), h.now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load activity: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, activity)
}
