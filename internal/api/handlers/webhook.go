package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/sersweai/leadcrm/internal/domain/crm"
	"github.com/sersweai/leadcrm/internal/domain/outreach"
	pkgauth "github.com/sersweai/leadcrm/pkg/auth"
)

// StatusApplier moves the lead behind a provider message id.
type StatusApplier interface {
	Apply(ctx context.Context, source, messageID string, status crm.LeadStatus) (outreach.Transition, error)
}

// WebhookSecrets are the shared secrets expected in ?secret= per provider. An empty secret
// rejects every call.
type WebhookSecrets struct {
	Resend   string
	SendGrid string
}

// WebhookHandler receives delivery events from the mail providers.
type WebhookHandler struct {
	updater StatusApplier
	secrets WebhookSecrets
	logger  *zap.Logger
}

func NewWebhookHandler(updater StatusApplier, secrets WebhookSecrets, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{updater: updater, secrets: secrets, logger: logger}
}

type resendEvent struct {
	Type string `json:"type"`
	Data struct {
		EmailID string `json:"email_id"`
	} `json:"data"`
}

// Resend handles POST /api/webhooks/resend?secret=
func (h *WebhookHandler) Resend(w http.ResponseWriter, r *http.Request) {
	if !pkgauth.EqualSecret(h.secrets.Resend, r.URL.Query().Get("secret")) {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	var evt resendEvent
	if err := decodeValidated(w, r, resendWebhookValidator, &evt); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid payload")
		return
	}

	status, ok := outreach.ResendTransition(evt.Type)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "ignored": true})
		return
	}
	if evt.Data.EmailID == "" {
		writeError(w, http.StatusBadRequest, "Missing email_id")
		return
	}

	tr, err := h.updater.Apply(r.Context(), "resend", evt.Data.EmailID, status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !tr.Matched {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "matched": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "lead_id": tr.LeadID, "status": tr.Status})
}

type sendGridEvent struct {
	Event       string `json:"event"`
	SGMessageID string `json:"sg_message_id"`
}

// SendGrid handles POST /api/webhooks/sendgrid?secret=. SendGrid posts a batch of events.
func (h *WebhookHandler) SendGrid(w http.ResponseWriter, r *http.Request) {
	if !pkgauth.EqualSecret(h.secrets.SendGrid, r.URL.Query().Get("secret")) {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	body, err := readBody(w, r)
	if err == nil {
		err = validateJSON(sendGridWebhookValidator, body)
	}
	var events []sendGridEvent
	if err == nil {
		err = json.Unmarshal(body, &events)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid payload")
		return
	}

	processed, matched := 0, 0
	for _, evt := range events {
		status, ok := outreach.SendGridTransition(evt.Event)
		if !ok || evt.SGMessageID == "" {
			continue
		}
		processed++
		tr, err := h.updater.Apply(r.Context(), "sendgrid", evt.SGMessageID, status)
		if err != nil {
			h.logger.Warn("apply sendgrid event", zap.String("event", evt.Event), zap.String("sg_message_id", evt.SGMessageID), zap.Error(err))
			continue
		}
		if tr.Matched {
			matched++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "processed": processed, "matched": matched})
}
