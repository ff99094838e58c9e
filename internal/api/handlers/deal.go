package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sersweai/leadcrm/internal/domain/crm"
)

// DealHandler serves the deal pipeline board.
type DealHandler struct {
	dealService *crm.DealService
}

func NewDealHandler(dealService *crm.DealService) *DealHandler {
	return &DealHandler{dealService: dealService}
}

// CreateDealRequest is the body of POST /api/deals.
type CreateDealRequest struct {
	LeadID      *string  `json:"lead_id"`
	CompanyName *string  `json:"company_name"`
	Stage       string   `json:"stage"`
	Value       *float64 `json:"value"`
	Notes       *string  `json:"notes"`
}

// ListDeals handles GET /api/deals
func (h *DealHandler) ListDeals(w http.ResponseWriter, r *http.Request) {
	deals, err := h.dealService.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list deals: %v", err))
		return
	}
	if deals == nil {
		deals = []*crm.Deal{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"deals": deals})
}

// CreateDeal handles POST /api/deals. Stage defaults to Discovery and value to 0.
func (h *DealHandler) CreateDeal(w http.ResponseWriter, r *http.Request) {
	var req CreateDealRequest
	if err := decodeValidated(w, r, dealCreateValidator, &req); err != nil && !errors.Is(err, errEmptyBody) {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}
	company := strings.TrimSpace(valueOr(req.CompanyName, ""))
	if company == "" {
		writeError(w, http.StatusBadRequest, "Missing company_name")
		return
	}

	input := crm.CreateDealInput{
		LeadID:      valueOr(req.LeadID, ""),
		CompanyName: company,
		Stage:       crm.DealStage(req.Stage),
		Notes:       valueOr(req.Notes, ""),
	}
	if req.Value != nil {
		input.Value = *req.Value
	}

	deal, err := h.dealService.Create(r.Context(), input)
	switch {
	case errors.Is(err, crm.ErrInvalidStage):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to create deal: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deal": deal})
}

// UpdateDeal handles PATCH /api/deals/{id}. Absent fields are left alone; lead_id null detaches
// the lead.
func (h *DealHandler) UpdateDeal(w http.ResponseWriter, r *http.Request) {
	var fields map[string]json.RawMessage
	if err := decodeValidated(w, r, dealPatchValidator, &fields); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}
	input, err := buildUpdateDealInput(fields)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	deal, err := h.dealService.Update(r.Context(), chi.URLParam(r, "id"), input)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		writeError(w, http.StatusNotFound, "Deal not found")
		return
	case errors.Is(err, crm.ErrInvalidStage), errors.Is(err, crm.ErrDealCompanyRequired):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to update deal: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deal": deal})
}

// buildUpdateDealInput maps a validated patch body onto the service input.
func buildUpdateDealInput(fields map[string]json.RawMessage) (crm.UpdateDealInput, error) {
	var input crm.UpdateDealInput
	if raw, ok := fields["lead_id"]; ok {
		var leadID *string
		if err := json.Unmarshal(raw, &leadID); err != nil {
			return input, err
		}
		detached := valueOr(leadID, "")
		input.LeadID = &detached
	}
	if raw, ok := fields["company_name"]; ok {
		if err := json.Unmarshal(raw, &input.CompanyName); err != nil {
			return input, err
		}
	}
	if raw, ok := fields["stage"]; ok {
		if err := json.Unmarshal(raw, &input.Stage); err != nil {
			return input, err
		}
	}
	if raw, ok := fields["value"]; ok {
		if err := json.Unmarshal(raw, &input.Value); err != nil {
			return input, err
		}
	}
	if raw, ok := fields["notes"]; ok {
		if err := json.Unmarshal(raw, &input.Notes); err != nil {
			return input, err
		}
	}
	return input, nil
}

// DeleteDeal handles DELETE /api/deals/{id}
func (h *DealHandler) DeleteDeal(w http.ResponseWriter, r *http.Request) {
	if err := h.dealService.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to delete deal: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// Summary handles GET /api/deals/summary
func (h *DealHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.dealService.Summary(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to summarize deals: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
