package handlers

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sersweai/leadcrm/internal/domain/crm"
)

type TimelineHandler struct{ service *crm.TimelineService }

func NewTimelineHandler(service *crm.TimelineService) *TimelineHandler {
	return &TimelineHandler{service: service}
}

// LeadTimeline handles GET /api/leads/{id}/timeline
func (h *TimelineHandler) LeadTimeline(w http.ResponseWriter, r *http.Request) {
	tl, err := h.service.ForLead(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "Lead not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load timeline: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, tl)
}
