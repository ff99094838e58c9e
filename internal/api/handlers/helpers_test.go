package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/sersweai/leadcrm/internal/domain/crm"
	"github.com/sersweai/leadcrm/internal/infra/database"
)

func mustOpenDBWithMigrations(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "handlers.db"))
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := database.Migrate(context.Background(), db); err != nil {
		t.Fatalf("database.Migrate() error = %v", err)
	}
	return db
}

// seedLead inserts one lead through the import upsert and returns it.
func seedLead(t *testing.T, svc *crm.LeadService, in crm.UpsertLeadInput) *crm.Lead {
	t.Helper()
	if in.Status == "" {
		in.Status = crm.StatusNotContacted
	}
	if _, err := svc.UpsertBatch(context.Background(), []crm.UpsertLeadInput{in}); err != nil {
		t.Fatalf("UpsertBatch() error = %v", err)
	}
	leads, err := svc.List(context.Background(), crm.ListLeadsInput{Search: in.CompanyName})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	for _, l := range leads {
		if l.CompanyName == in.CompanyName && l.Zip == in.Zip {
			lead := l.Lead
			return &lead
		}
	}
	t.Fatalf("seeded lead %q not found", in.CompanyName)
	return nil
}

func newJSONRequest(method, target, body string) *http.Request {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), dst); err != nil {
		t.Fatalf("json unmarshal error = %v (body %q)", err, w.Body.String())
	}
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp map[string]string
	decodeJSON(t, w, &resp)
	return resp["error"]
}

func strPtr(s string) *string { return &s }
