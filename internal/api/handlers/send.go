package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sersweai/leadcrm/internal/domain/crm"
	"github.com/sersweai/leadcrm/internal/domain/outreach"
)

// EmailSender runs one outreach send.
type EmailSender interface {
	Send(ctx context.Context, leadID string, template crm.Template) (*outreach.SendResult, error)
	DailyLimit() int
}

// SendHandler triggers outreach emails from the dashboard.
type SendHandler struct {
	sender EmailSender
}

func NewSendHandler(sender EmailSender) *SendHandler {
	return &SendHandler{sender: sender}
}

type sendRequest struct {
	LeadID   *string `json:"lead_id"`
	Template *string `json:"template"`
}

// Send handles POST /api/send {lead_id, template}
func (h *SendHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := decodeValidated(w, r, sendValidator, &req); err != nil && !errors.Is(err, errEmptyBody) {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}
	leadID, template := valueOr(req.LeadID, ""), valueOr(req.Template, "")
	if leadID == "" || template == "" {
		writeError(w, http.StatusBadRequest, "Missing lead_id or template")
		return
	}

	res, err := h.sender.Send(r.Context(), leadID, crm.Template(template))
	switch {
	case errors.Is(err, outreach.ErrUnknownTemplate):
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown template %q", template))
		return
	case errors.Is(err, outreach.ErrLeadNotFound):
		writeError(w, http.StatusNotFound, "Lead not found")
		return
	case errors.Is(err, outreach.ErrLeadHasNoEmail):
		writeError(w, http.StatusBadRequest, "Lead has no email")
		return
	case errors.Is(err, outreach.ErrMailerNotConfigured):
		writeError(w, http.StatusBadRequest, "Mail provider not configured")
		return
	case errors.Is(err, outreach.ErrDailyLimitReached):
		writeError(w, http.StatusTooManyRequests, fmt.Sprintf("Daily send limit reached (%d/day)", h.sender.DailyLimit()))
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":              true,
		"email_id":        res.EmailID,
		"message_id":      nullIfEmpty(res.MessageID),
		"scheduledAt":     res.ScheduledAt.Format(time.RFC3339),
		"subject":         res.Subject,
		"subject_variant": res.SubjectVariant,
		"status":          res.Status,
		"next_follow_up":  res.NextFollowUp,
	})
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
