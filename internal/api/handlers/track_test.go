package handlers

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sersweai/leadcrm/internal/domain/crm"
	"github.com/sersweai/leadcrm/internal/infra/database"
	"github.com/sersweai/leadcrm/internal/infra/eventbus"
)

type failingRecorder struct{ calls int }

func (f *failingRecorder) Record(context.Context, crm.RecordEventInput) (*crm.EmailEvent, error) {
	f.calls++
	return nil, errors.New("database is locked")
}

func seedSentEmail(t *testing.T, db *database.DB) (leadID, emailID string) {
	t.Helper()
	lead := seedLead(t, crm.NewLeadService(db), crm.UpsertLeadInput{CompanyName: "Acme Plumbing", Zip: "94601", Email: "owner@acme.test"})
	email, err := crm.NewEmailService(db).CreatePending(context.Background(), lead.ID, crm.TemplateEmail1, "owner@acme.test")
	if err != nil {
		t.Fatalf("CreatePending() error = %v", err)
	}
	return lead.ID, email.ID
}

func TestTrackHandler_Open(t *testing.T) {
	t.Parallel()

	db := mustOpenDBWithMigrations(t)
	leadID, emailID := seedSentEmail(t, db)
	events := crm.NewEventService(db)
	bus := eventbus.New()
	opened := bus.Subscribe(eventbus.TopicEmailOpened)
	handler := NewTrackHandler(events, bus, nil)

	w := httptest.NewRecorder()
	handler.Open(w, httptest.NewRequest(http.MethodGet, "/api/track/open?email_id="+emailID+"&lead_id="+leadID, nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Open status = %d; want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/gif" {
		t.Errorf("Content-Type = %q; want image/gif", ct)
	}
	if cc := w.Header().Get("Cache-Control"); cc == "" {
		t.Error("Cache-Control header missing")
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("GIF89a")) {
		t.Errorf("body is not a GIF: % x", w.Body.Bytes())
	}

	list, err := events.ListByEmails(context.Background(), []string{emailID})
	if err != nil {
		t.Fatalf("ListByEmails() error = %v", err)
	}
	if len(list) != 1 || list[0].EventType != crm.EventOpen {
		t.Errorf("events = %+v; want one open", list)
	}
	select {
	case <-opened:
	default:
		t.Error("expected email.opened event")
	}
}

func TestTrackHandler_Open_AlwaysServesPixel(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.WarnLevel)
	recorder := &failingRecorder{}
	handler := NewTrackHandler(recorder, nil, zap.New(core))

	for _, target := range []string{"/api/track/open", "/api/track/open?email_id=e1"} {
		w := httptest.NewRecorder()
		handler.Open(w, httptest.NewRequest(http.MethodGet, target, nil))
		if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "image/gif" {
			t.Errorf("%s: status = %d type %q; want pixel", target, w.Code, w.Header().Get("Content-Type"))
		}
	}
	if recorder.calls != 1 {
		t.Errorf("recorder calls = %d; want 1 (no email_id skips recording)", recorder.calls)
	}
	if logs.FilterMessage("record tracking event").Len() != 1 {
		t.Errorf("expected one warning, got %v", logs.All())
	}
}

func TestTrackHandler_Click(t *testing.T) {
	t.Parallel()

	db := mustOpenDBWithMigrations(t)
	_, emailID := seedSentEmail(t, db)
	events := crm.NewEventService(db)
	handler := NewTrackHandler(events, nil, nil)

	target := "https://sersweai.com/?ref=email"
	req := httptest.NewRequest(http.MethodGet, "/api/track/click?email_id="+emailID+"&url=https%3A%2F%2Fsersweai.com%2F%3Fref%3Demail", nil)
	w := httptest.NewRecorder()
	handler.Click(w, req)

	if w.Code != http.StatusFound {
		t.Fatalf("Click status = %d; want 302", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != target {
		t.Errorf("Location = %q; want %q", loc, target)
	}
	list, err := events.ListByEmails(context.Background(), []string{emailID})
	if err != nil {
		t.Fatalf("ListByEmails() error = %v", err)
	}
	if len(list) != 1 || list[0].EventType != crm.EventClick || list[0].URL == nil || *list[0].URL != target {
		t.Errorf("events = %+v; want one click with the url", list)
	}
}

func TestTrackHandler_Click_RejectsUnsafeURLs(t *testing.T) {
	t.Parallel()

	recorder := &failingRecorder{}
	handler := NewTrackHandler(recorder, nil, nil)

	for _, raw := range []string{"", "javascript%3Aalert(1)", "ftp%3A%2F%2Fexample.com%2Ff", "%2Frelative%2Fpath", "https%3A%2F%2F"} {
		w := httptest.NewRecorder()
		handler.Click(w, httptest.NewRequest(http.MethodGet, "/api/track/click?email_id=e1&url="+raw, nil))
		if w.Code != http.StatusBadRequest {
			t.Errorf("url %q: status = %d; want 400", raw, w.Code)
			continue
		}
		if msg := errorMessage(t, w); msg != "Invalid URL" {
			t.Errorf("url %q: error = %q", raw, msg)
		}
	}
	if recorder.calls != 0 {
		t.Errorf("recorder called %d times for rejected urls", recorder.calls)
	}
}

func TestTrackHandler_Click_RedirectsEvenWhenRecordFails(t *testing.T) {
	t.Parallel()

	handler := NewTrackHandler(&failingRecorder{}, nil, nil)
	w := httptest.NewRecorder()
	handler.Click(w, httptest.NewRequest(http.MethodGet, "/api/track/click?email_id=e1&url=http%3A%2F%2Fexample.com", nil))
	if w.Code != http.StatusFound {
		t.Errorf("Click status = %d; want 302", w.Code)
	}
}
