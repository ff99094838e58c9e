package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sersweai/leadcrm/internal/domain/crm"
	"github.com/sersweai/leadcrm/internal/infra/eventbus"
)

// LeadHandler serves the lead list and inline edits.
type LeadHandler struct {
	leadService *crm.LeadService
	bus         eventbus.EventBus
}

func NewLeadHandler(leadService *crm.LeadService, bus eventbus.EventBus) *LeadHandler {
	if bus == nil {
		bus = eventbus.Nop{}
	}
	return &LeadHandler{leadService: leadService, bus: bus}
}

// LeadStatusChange is published on eventbus.TopicLeadStatusChanged after a manual edit.
type LeadStatusChange struct {
	LeadID string         `json:"lead_id"`
	Status crm.LeadStatus `json:"status"`
	Source string         `json:"source"`
}

// ListLeads handles GET /api/leads?status=&search=&contact_form_only=true
func (h *LeadHandler) ListLeads(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	leads, err := h.leadService.List(r.Context(), crm.ListLeadsInput{
		Status:          q.Get("status"),
		Search:          q.Get("search"),
		ContactFormOnly: q.Get("contact_form_only") == "true",
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list leads: %v", err))
		return
	}
	if leads == nil {
		leads = []*crm.LeadWithEngagement{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"leads": leads})
}

// GetLead handles GET /api/leads/{id}
func (h *LeadHandler) GetLead(w http.ResponseWriter, r *http.Request) {
	lead, err := h.leadService.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "Lead not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get lead: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"lead": lead})
}

// PatchLead handles PATCH /api/leads/{id}. Only known columns may be set; nullable ones accept null.
func (h *LeadHandler) PatchLead(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validateJSON(leadPatchValidator, body); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	leadID := chi.URLParam(r, "id")
	lead, err := h.leadService.Patch(r.Context(), leadID, fields)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		writeError(w, http.StatusNotFound, "Lead not found")
		return
	case errors.Is(err, crm.ErrInvalidPatch):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to update lead: %v", err))
		return
	}

	if _, ok := fields["status"]; ok {
		h.bus.Publish(eventbus.TopicLeadStatusChanged, LeadStatusChange{LeadID: lead.ID, Status: lead.Status, Source: "manual"})
	}
	writeJSON(w, http.StatusOK, map[string]any{"lead": lead})
}
