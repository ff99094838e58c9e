package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sersweai/leadcrm/internal/domain/crm"
	"github.com/sersweai/leadcrm/internal/infra/eventbus"
)

// ContactNotifier tells the operator about a new website contact. Failures are its own concern.
type ContactNotifier interface {
	Notify(ctx context.Context, c *crm.WebsiteContact)
}

// ContactHandler serves the public website form and the operator's contact inbox.
type ContactHandler struct {
	contactService *crm.ContactService
	notifier       ContactNotifier
	bus            eventbus.EventBus
}

func NewContactHandler(contactService *crm.ContactService, notifier ContactNotifier, bus eventbus.EventBus) *ContactHandler {
	if bus == nil {
		bus = eventbus.Nop{}
	}
	return &ContactHandler{contactService: contactService, notifier: notifier, bus: bus}
}

// CreateContactRequest is the body of POST /api/contacts.
type CreateContactRequest struct {
	FullName    *string `json:"full_name"`
	Email       *string `json:"email"`
	Phone       *string `json:"phone"`
	CompanyName *string `json:"company_name"`
	Interest    *string `json:"interest"`
	Message     *string `json:"message"`
	Source      *string `json:"source"`
}

// CreateContact handles POST /api/contacts. It is public; the website form posts here.
func (h *ContactHandler) CreateContact(w http.ResponseWriter, r *http.Request) {
	var req CreateContactRequest
	if err := decodeValidated(w, r, contactValidator, &req); err != nil && !errors.Is(err, errEmptyBody) {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	contact, err := h.contactService.Create(r.Context(), crm.CreateContactInput{
		FullName:    valueOr(req.FullName, ""),
		Email:       valueOr(req.Email, ""),
		Phone:       valueOr(req.Phone, ""),
		CompanyName: valueOr(req.CompanyName, ""),
		Interest:    valueOr(req.Interest, ""),
		Message:     valueOr(req.Message, ""),
		Source:      valueOr(req.Source, ""),
	})
	switch {
	case errors.Is(err, crm.ErrContactIncomplete):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to save contact: %v", err))
		return
	}

	if h.notifier != nil {
		h.notifier.Notify(r.Context(), contact)
	}
	h.bus.Publish(eventbus.TopicContactReceived, contact)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "contact": contact})
}

// ListContacts handles GET /api/contacts
func (h *ContactHandler) ListContacts(w http.ResponseWriter, r *http.Request) {
	contacts, err := h.contactService.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list contacts: %v", err))
		return
	}
	if contacts == nil {
		contacts = []*crm.WebsiteContact{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"contacts": contacts})
}
