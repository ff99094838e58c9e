package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sersweai/leadcrm/internal/domain/crm"
)

func TestDealHandler_CreateDeal_Defaults(t *testing.T) {
	t.Parallel()

	handler := NewDealHandler(crm.NewDealService(mustOpenDBWithMigrations(t)))

	w := httptest.NewRecorder()
	handler.CreateDeal(w, newJSONRequest(http.MethodPost, "/api/deals", `{"company_name":"Acme Plumbing"}`))
	if w.Code != http.StatusOK {
		t.Fatalf("CreateDeal status = %d; want 200 (body %s)", w.Code, w.Body.String())
	}
	var resp struct {
		Deal crm.Deal `json:"deal"`
	}
	decodeJSON(t, w, &resp)
	if resp.Deal.ID == "" {
		t.Error("deal id is empty")
	}
	if resp.Deal.Stage != crm.StageDiscovery {
		t.Errorf("stage = %q; want Discovery", resp.Deal.Stage)
	}
	if resp.Deal.Value != 0 || resp.Deal.Notes != "" || resp.Deal.LeadID != nil {
		t.Errorf("defaults = value %v notes %q lead %v", resp.Deal.Value, resp.Deal.Notes, resp.Deal.LeadID)
	}
}

func TestDealHandler_CreateDeal_Validation(t *testing.T) {
	t.Parallel()

	handler := NewDealHandler(crm.NewDealService(mustOpenDBWithMigrations(t)))

	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{"empty body", ``, "Missing company_name"},
		{"missing company", `{"value":100}`, "Missing company_name"},
		{"blank company", `{"company_name":"   "}`, "Missing company_name"},
		{"bad stage", `{"company_name":"Acme","stage":"Negotiation"}`, ""},
		{"negative value", `{"company_name":"Acme","value":-5}`, ""},
	}
	for _, tc := range tests {
		w := httptest.NewRecorder()
		handler.CreateDeal(w, newJSONRequest(http.MethodPost, "/api/deals", tc.body))
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d; want 400", tc.name, w.Code)
			continue
		}
		if tc.wantMsg != "" {
			if msg := errorMessage(t, w); msg != tc.wantMsg {
				t.Errorf("%s: error = %q; want %q", tc.name, msg, tc.wantMsg)
			}
		}
	}
}

func TestDealHandler_ListAndUpdate(t *testing.T) {
	t.Parallel()

	db := mustOpenDBWithMigrations(t)
	dealService := crm.NewDealService(db)
	handler := NewDealHandler(dealService)
	lead := seedLead(t, crm.NewLeadService(db), crm.UpsertLeadInput{CompanyName: "Acme Plumbing", Zip: "94601"})

	deal, err := dealService.Create(context.Background(), crm.CreateDealInput{LeadID: lead.ID, CompanyName: "Acme Plumbing", Value: 1500})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	req := newJSONRequest(http.MethodPatch, "/api/deals/"+deal.ID, `{"stage":"Proposal","value":2400,"notes":"sent quote"}`)
	w := httptest.NewRecorder()
	handler.UpdateDeal(w, withURLParam(req, "id", deal.ID))
	if w.Code != http.StatusOK {
		t.Fatalf("UpdateDeal status = %d; want 200 (body %s)", w.Code, w.Body.String())
	}
	var updated struct {
		Deal crm.Deal `json:"deal"`
	}
	decodeJSON(t, w, &updated)
	if updated.Deal.Stage != crm.StageProposal || updated.Deal.Value != 2400 || updated.Deal.Notes != "sent quote" {
		t.Errorf("updated deal = %+v", updated.Deal)
	}
	if updated.Deal.LeadID == nil || *updated.Deal.LeadID != lead.ID {
		t.Errorf("lead_id = %v; want %s kept", updated.Deal.LeadID, lead.ID)
	}

	req = newJSONRequest(http.MethodPatch, "/api/deals/"+deal.ID, `{"lead_id":null}`)
	w = httptest.NewRecorder()
	handler.UpdateDeal(w, withURLParam(req, "id", deal.ID))
	if w.Code != http.StatusOK {
		t.Fatalf("UpdateDeal detach status = %d; want 200", w.Code)
	}
	decodeJSON(t, w, &updated)
	if updated.Deal.LeadID != nil {
		t.Errorf("lead_id = %q; want null after detach", *updated.Deal.LeadID)
	}

	w = httptest.NewRecorder()
	handler.ListDeals(w, httptest.NewRequest(http.MethodGet, "/api/deals", nil))
	var list struct {
		Deals []crm.Deal `json:"deals"`
	}
	decodeJSON(t, w, &list)
	if len(list.Deals) != 1 || list.Deals[0].ID != deal.ID {
		t.Errorf("ListDeals = %+v; want the one deal", list.Deals)
	}
}

func TestDealHandler_UpdateDeal_Errors(t *testing.T) {
	t.Parallel()

	dealService := crm.NewDealService(mustOpenDBWithMigrations(t))
	handler := NewDealHandler(dealService)
	deal, err := dealService.Create(context.Background(), crm.CreateDealInput{CompanyName: "Acme"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	tests := []struct {
		name string
		id   string
		body string
		want int
	}{
		{"missing deal", "missing", `{"notes":"x"}`, http.StatusNotFound},
		{"bad stage", deal.ID, `{"stage":"Won"}`, http.StatusBadRequest},
		{"blank company", deal.ID, `{"company_name":""}`, http.StatusBadRequest},
		{"unknown field", deal.ID, `{"owner":"me"}`, http.StatusBadRequest},
		{"empty body", deal.ID, ``, http.StatusBadRequest},
	}
	for _, tc := range tests {
		w := httptest.NewRecorder()
		handler.UpdateDeal(w, withURLParam(newJSONRequest(http.MethodPatch, "/api/deals/"+tc.id, tc.body), "id", tc.id))
		if w.Code != tc.want {
			t.Errorf("%s: status = %d; want %d (body %s)", tc.name, w.Code, tc.want, w.Body.String())
		}
	}
}

func TestDealHandler_DeleteDeal(t *testing.T) {
	t.Parallel()

	dealService := crm.NewDealService(mustOpenDBWithMigrations(t))
	handler := NewDealHandler(dealService)
	deal, err := dealService.Create(context.Background(), crm.CreateDealInput{CompanyName: "Acme"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	for _, id := range []string{deal.ID, deal.ID, "never-existed"} {
		w := httptest.NewRecorder()
		handler.DeleteDeal(w, withURLParam(httptest.NewRequest(http.MethodDelete, "/api/deals/"+id, nil), "id", id))
		if w.Code != http.StatusOK {
			t.Errorf("DeleteDeal(%s) status = %d; want 200", id, w.Code)
		}
	}

	deals, err := dealService.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(deals) != 0 {
		t.Errorf("deals left = %d; want 0", len(deals))
	}
}

func TestDealHandler_Summary(t *testing.T) {
	t.Parallel()

	dealService := crm.NewDealService(mustOpenDBWithMigrations(t))
	handler := NewDealHandler(dealService)
	ctx := context.Background()
	for _, in := range []crm.CreateDealInput{
		{CompanyName: "A", Stage: crm.StageDiscovery, Value: 1000},
		{CompanyName: "B", Stage: crm.StageProposal, Value: 2500},
		{CompanyName: "C", Stage: crm.StageClosedWon, Value: 4000},
		{CompanyName: "D", Stage: crm.StageClosedLost, Value: 900},
	} {
		if _, err := dealService.Create(ctx, in); err != nil {
			t.Fatalf("Create(%s) error = %v", in.CompanyName, err)
		}
	}

	w := httptest.NewRecorder()
	handler.Summary(w, httptest.NewRequest(http.MethodGet, "/api/deals/summary", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Summary status = %d; want 200", w.Code)
	}
	var summary crm.DealSummary
	decodeJSON(t, w, &summary)
	if summary.PipelineValue != 3500 {
		t.Errorf("pipelineValue = %v; want 3500", summary.PipelineValue)
	}
	if summary.WonValue != 4000 {
		t.Errorf("wonValue = %v; want 4000", summary.WonValue)
	}
	if summary.ActiveDeals != 2 {
		t.Errorf("activeDeals = %d; want 2", summary.ActiveDeals)
	}
	if got := summary.ByStage[crm.StageClosedLost]; got.Count != 1 || got.Value != 900 {
		t.Errorf("byStage[Closed Lost] = %+v", got)
	}
}
