package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/sersweai/leadcrm/internal/domain/crm"
	"github.com/sersweai/leadcrm/internal/domain/outreach"
)

const (
	dateLayout          = "2006-01-02"
	defaultFollowUpSpan = 30 * 24 * time.Hour
)

// FollowUpHandler serves the follow-up calendar.
type FollowUpHandler struct {
	leadService *crm.LeadService
	now         func() time.Time
}

func NewFollowUpHandler(leadService *crm.LeadService) *FollowUpHandler {
	return &FollowUpHandler{leadService: leadService, now: time.Now}
}

type followUp struct {
	*crm.Lead
	NextAction string `json:"next_action"`
}

// ListFollowUps handles GET /api/followups?from=YYYY-MM-DD&to=YYYY-MM-DD. The range defaults to
// today through the next 30 days (UTC).
func (h *FollowUpHandler) ListFollowUps(w http.ResponseWriter, r *http.Request) {
	today := h.now().UTC()
	from, err := parseDateParam(r, "from", today)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := parseDateParam(r, "to", from.Add(defaultFollowUpSpan))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if to.Before(from) {
		writeError(w, http.StatusBadRequest, "to must not be before from")
		return
	}

	leads, err := h.leadService.DueFollowUps(r.Context(), from.Format(dateLayout), to.Format(dateLayout))
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list follow-ups: %v", err))
		return
	}
	out := make([]followUp, 0, len(leads))
	for _, lead := range leads {
		out = append(out, followUp{Lead: lead, NextAction: outreach.NextAction(lead.Status)})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"from":      from.Format(dateLayout),
		"to":        to.Format(dateLayout),
		"followups": out,
	})
}

func parseDateParam(r *http.Request, name string, fallback time.Time) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be YYYY-MM-DD", name)
	}
	return t, nil
}
