package handlers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sersweai/leadcrm/internal/domain/crm"
	"github.com/sersweai/leadcrm/internal/domain/leadimport"
)

type stubImporter struct {
	n      int
	err    error
	got    string
	source string
}

func (s *stubImporter) Import(_ context.Context, r io.Reader, source string) (int, error) {
	b, _ := io.ReadAll(r)
	s.got, s.source = string(b), source
	return s.n, s.err
}

func multipartCSV(t *testing.T, field, filename, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("CreateFormFile() error = %v", err)
	}
	_, _ = fw.Write([]byte(content))
	if err := mw.Close(); err != nil {
		t.Fatalf("multipart close error = %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestImportHandler_JSON(t *testing.T) {
	t.Parallel()

	stub := &stubImporter{n: 3}
	handler := NewImportHandler(stub)

	w := httptest.NewRecorder()
	handler.Import(w, newJSONRequest(http.MethodPost, "/api/import", `{"csv":"company_name\nA\nB\nC\n"}`))
	if w.Code != http.StatusOK {
		t.Fatalf("Import status = %d; want 200", w.Code)
	}
	if w.Body.String() != "{\"inserted\":3}\n" {
		t.Errorf("body = %q", w.Body.String())
	}
	if stub.got != "company_name\nA\nB\nC\n" || stub.source != "paste" {
		t.Errorf("importer got %q from %q", stub.got, stub.source)
	}
}

func TestImportHandler_Multipart(t *testing.T) {
	t.Parallel()

	stub := &stubImporter{n: 1}
	handler := NewImportHandler(stub)

	w := httptest.NewRecorder()
	handler.Import(w, multipartCSV(t, "file", "leads.csv", "company_name\nAcme\n"))
	if w.Code != http.StatusOK {
		t.Fatalf("Import status = %d; want 200 (body %s)", w.Code, w.Body.String())
	}
	if stub.source != "leads.csv" {
		t.Errorf("source = %q; want the upload filename", stub.source)
	}
}

func TestImportHandler_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		req      func(t *testing.T) *http.Request
		importer *stubImporter
		wantCode int
		wantMsg  string
	}{
		{
			name:     "json without csv",
			req:      func(*testing.T) *http.Request { return newJSONRequest(http.MethodPost, "/api/import", `{}`) },
			importer: &stubImporter{},
			wantCode: http.StatusBadRequest,
			wantMsg:  "Missing csv field",
		},
		{
			name:     "multipart without file",
			req:      func(t *testing.T) *http.Request { return multipartCSV(t, "other", "x.csv", "a") },
			importer: &stubImporter{},
			wantCode: http.StatusBadRequest,
			wantMsg:  "Missing CSV file",
		},
		{
			name:     "no valid rows",
			req:      func(*testing.T) *http.Request { return newJSONRequest(http.MethodPost, "/api/import", `{"csv":"x"}`) },
			importer: &stubImporter{err: leadimport.ErrNoValidRows},
			wantCode: http.StatusBadRequest,
			wantMsg:  "No valid rows found",
		},
		{
			name:     "store failure",
			req:      func(*testing.T) *http.Request { return newJSONRequest(http.MethodPost, "/api/import", `{"csv":"x"}`) },
			importer: &stubImporter{err: errors.New("disk full")},
			wantCode: http.StatusInternalServerError,
		},
	}
	for _, tc := range tests {
		w := httptest.NewRecorder()
		NewImportHandler(tc.importer).Import(w, tc.req(t))
		if w.Code != tc.wantCode {
			t.Errorf("%s: status = %d; want %d", tc.name, w.Code, tc.wantCode)
			continue
		}
		if tc.wantMsg != "" {
			if msg := errorMessage(t, w); msg != tc.wantMsg {
				t.Errorf("%s: error = %q; want %q", tc.name, msg, tc.wantMsg)
			}
		}
	}
}

func TestImportHandler_RealImporter(t *testing.T) {
	t.Parallel()

	svc := crm.NewLeadService(mustOpenDBWithMigrations(t))
	handler := NewImportHandler(leadimport.NewImporter(svc, nil, nil))

	csv := "company_name,email_or_contact_url,zip,category\n" +
		"Acme Plumbing,owner@acme.test,94601,plumber\n" +
		"Bay Dental,https://baydental.test/contact,94536,dentist\n" +
		",orphan@nowhere.test,00000,\n"
	w := httptest.NewRecorder()
	handler.Import(w, multipartCSV(t, "file", "export.csv", csv))
	if w.Code != http.StatusOK {
		t.Fatalf("Import status = %d; want 200 (body %s)", w.Code, w.Body.String())
	}
	var resp struct {
		Inserted int `json:"inserted"`
	}
	decodeJSON(t, w, &resp)
	if resp.Inserted != 2 {
		t.Errorf("inserted = %d; want 2", resp.Inserted)
	}

	leads, err := svc.List(context.Background(), crm.ListLeadsInput{ContactFormOnly: true})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(leads) != 1 || leads[0].CompanyName != "Bay Dental" {
		t.Errorf("contact-form leads = %d; want Bay Dental only", len(leads))
	}
}
