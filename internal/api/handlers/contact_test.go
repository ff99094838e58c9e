package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/sersweai/leadcrm/internal/domain/crm"
	"github.com/sersweai/leadcrm/internal/infra/eventbus"
)

type recordingNotifier struct {
	mu       sync.Mutex
	contacts []*crm.WebsiteContact
}

func (n *recordingNotifier) Notify(_ context.Context, c *crm.WebsiteContact) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.contacts = append(n.contacts, c)
}

func TestContactHandler_CreateContact(t *testing.T) {
	t.Parallel()

	notifier := &recordingNotifier{}
	bus := eventbus.New()
	received := bus.Subscribe(eventbus.TopicContactReceived)
	handler := NewContactHandler(crm.NewContactService(mustOpenDBWithMigrations(t)), notifier, bus)

	body := `{"full_name":"Ana Ruiz","email":"ana@example.com","company_name":"Ruiz Bakery","message":"Need a site"}`
	w := httptest.NewRecorder()
	handler.CreateContact(w, newJSONRequest(http.MethodPost, "/api/contacts", body))

	if w.Code != http.StatusOK {
		t.Fatalf("CreateContact status = %d; want 200 (body %s)", w.Code, w.Body.String())
	}
	var resp struct {
		OK      bool               `json:"ok"`
		Contact crm.WebsiteContact `json:"contact"`
	}
	decodeJSON(t, w, &resp)
	if !resp.OK || resp.Contact.ID == "" || resp.Contact.FullName != "Ana Ruiz" {
		t.Errorf("response = %+v", resp)
	}
	if resp.Contact.Source != "sersweai.com" {
		t.Errorf("source = %q; want the site default", resp.Contact.Source)
	}
	if resp.Contact.Phone != nil {
		t.Errorf("phone = %q; want null", *resp.Contact.Phone)
	}

	if len(notifier.contacts) != 1 || notifier.contacts[0].ID != resp.Contact.ID {
		t.Errorf("notifier got %d contacts; want the created one", len(notifier.contacts))
	}
	select {
	case evt := <-received:
		if evt.Topic != eventbus.TopicContactReceived {
			t.Errorf("topic = %q", evt.Topic)
		}
	default:
		t.Error("expected contact.received event")
	}
}

func TestContactHandler_CreateContact_Incomplete(t *testing.T) {
	t.Parallel()

	notifier := &recordingNotifier{}
	handler := NewContactHandler(crm.NewContactService(mustOpenDBWithMigrations(t)), notifier, nil)

	for _, body := range []string{``, `{}`, `{"full_name":"Ana"}`, `{"email":"ana@example.com"}`, `{"full_name":"  ","email":"ana@example.com"}`} {
		w := httptest.NewRecorder()
		handler.CreateContact(w, newJSONRequest(http.MethodPost, "/api/contacts", body))
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d; want 400", body, w.Code)
			continue
		}
		if msg := errorMessage(t, w); msg != "full_name and email are required" {
			t.Errorf("body %q: error = %q", body, msg)
		}
	}
	if len(notifier.contacts) != 0 {
		t.Errorf("notifier called %d times for rejected contacts", len(notifier.contacts))
	}
}

func TestContactHandler_ListContacts(t *testing.T) {
	t.Parallel()

	svc := crm.NewContactService(mustOpenDBWithMigrations(t))
	handler := NewContactHandler(svc, nil, nil)

	w := httptest.NewRecorder()
	handler.ListContacts(w, httptest.NewRequest(http.MethodGet, "/api/contacts", nil))
	if w.Body.String() != "{\"contacts\":[]}\n" {
		t.Errorf("empty list body = %q", w.Body.String())
	}

	for _, name := range []string{"First", "Second"} {
		if _, err := svc.Create(context.Background(), crm.CreateContactInput{FullName: name, Email: name + "@example.com"}); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}
	w = httptest.NewRecorder()
	handler.ListContacts(w, httptest.NewRequest(http.MethodGet, "/api/contacts", nil))
	var resp struct {
		Contacts []crm.WebsiteContact `json:"contacts"`
	}
	decodeJSON(t, w, &resp)
	if len(resp.Contacts) != 2 || resp.Contacts[0].FullName != "Second" {
		t.Errorf("contacts = %+v; want newest first", resp.Contacts)
	}
}
