// Package mcpserver exposes read-mostly CRM tools to agents over the Model Context Protocol.
package mcpserver

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/sersweai/leadcrm/internal/domain/crm"
	"github.com/sersweai/leadcrm/internal/infra/eventbus"
	"github.com/sersweai/leadcrm/internal/version"
)

// Services are the crm services the tools call.
type Services struct {
	Leads    *crm.LeadService
	Timeline *crm.TimelineService
	Stats    *crm.StatsService
	Deals    *crm.DealService
	Bus      eventbus.EventBus
}

// Server wraps the MCP server and its tool handlers.
type Server struct {
	mcp    *mcp.Server
	svc    Services
	logger *zap.Logger
	now    func() time.Time
}

// New registers every tool.
func New(svc Services, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if svc.Bus == nil {
		svc.Bus = eventbus.Nop{}
	}
	s := &Server{
		mcp:    mcp.NewServer(&mcp.Implementation{Name: "leadcrm", Version: version.Version}, nil),
		svc:    svc,
		logger: logger,
		now:    time.Now,
	}

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_leads",
		Description: "List leads, newest first. Optional filters: status, search (company or city), contact_form_only.",
	}, s.listLeads)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "lead_timeline",
		Description: "Show a lead with its sent emails, opens, clicks and reply, oldest first.",
	}, s.leadTimeline)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "set_lead_status",
		Description: "Set a lead's outreach status, e.g. Replied, Not Fit or Do Not Contact.",
	}, s.setLeadStatus)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "dashboard_stats",
		Description: "Lead and email counters shown on the dashboard.",
	}, s.dashboardStats)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "deal_summary",
		Description: "Pipeline value, won value, active deal count and per-stage totals.",
	}, s.dealSummary)
	return s
}

// Run serves over stdin/stdout until the client disconnects or ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("mcp server starting", zap.String("transport", "stdio"))
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

// MCP exposes the underlying server, e.g. to connect an in-memory transport.
func (s *Server) MCP() *mcp.Server { return s.mcp }

type listLeadsInput struct {
	Status          string `json:"status,omitempty" jsonschema:"exact lead status to filter by"`
	Search          string `json:"search,omitempty" jsonschema:"case-insensitive match on company name or city"`
	ContactFormOnly bool   `json:"contact_form_only,omitempty" jsonschema:"only leads reachable through a contact form"`
}

func (s *Server) listLeads(ctx context.Context, _ *mcp.CallToolRequest, in listLeadsInput) (*mcp.CallToolResult, any, error) {
	if in.Status != "" && !crm.LeadStatus(in.Status).Valid() {
		return errorResult("unknown status %q", in.Status), nil, nil
	}
	leads, err := s.svc.Leads.List(ctx, crm.ListLeadsInput{Status: in.Status, Search: in.Search, ContactFormOnly: in.ContactFormOnly})
	if err != nil {
		return nil, nil, fmt.Errorf("list leads: %w", err)
	}
	return jsonResult(map[string]any{"count": len(leads), "leads": leads})
}

type leadIDInput struct {
	LeadID string `json:"lead_id" jsonschema:"the lead id"`
}

func (s *Server) leadTimeline(ctx context.Context, _ *mcp.CallToolRequest, in leadIDInput) (*mcp.CallToolResult, any, error) {
	tl, err := s.svc.Timeline.ForLead(ctx, in.LeadID)
	if errors.Is(err, sql.ErrNoRows) {
		return errorResult("lead %q not found", in.LeadID), nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("lead timeline: %w", err)
	}
	return jsonResult(tl)
}

type setStatusInput struct {
	LeadID string `json:"lead_id" jsonschema:"the lead id"`
	Status string `json:"status" jsonschema:"new status"`
}

// StatusChangedEvent is published on eventbus.TopicLeadStatusChanged by set_lead_status.
type StatusChangedEvent struct {
	LeadID string         `json:"lead_id"`
	Status crm.LeadStatus `json:"status"`
	Source string         `json:"source"`
}

func (s *Server) setLeadStatus(ctx context.Context, _ *mcp.CallToolRequest, in setStatusInput) (*mcp.CallToolResult, any, error) {
	status := crm.LeadStatus(in.Status)
	if !status.Valid() {
		return errorResult("unknown status %q", in.Status), nil, nil
	}
	err := s.svc.Leads.SetStatus(ctx, in.LeadID, status)
	if errors.Is(err, sql.ErrNoRows) {
		return errorResult("lead %q not found", in.LeadID), nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("set lead status: %w", err)
	}
	s.svc.Bus.Publish(eventbus.TopicLeadStatusChanged, StatusChangedEvent{LeadID: in.LeadID, Status: status, Source: "mcp"})
	s.logger.Info("lead status set", zap.String("lead_id", in.LeadID), zap.String("status", in.Status))
	return jsonResult(map[string]any{"ok": true, "lead_id": in.LeadID, "status": status})
}

type noInput struct{}

func (s *Server) dashboardStats(ctx context.Context, _ *mcp.CallToolRequest, _ noInput) (*mcp.CallToolResult, any, error) {
	stats, err := s.svc.Stats.Dashboard(ctx, s.now())
	if err != nil {
		return nil, nil, fmt.Errorf("dashboard stats: %w", err)
	}
	return jsonResult(stats)
}

func (s *Server) dealSummary(ctx context.Context, _ *mcp.CallToolRequest, _ noInput) (*mcp.CallToolResult, any, error) {
	summary, err := s.svc.Deals.Summary(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("deal summary: %w", err)
	}
	return jsonResult(summary)
}

func jsonResult(v any) (*mcp.CallToolResult, any, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("encode result: %w", err)
	}
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: string(b)}}}, nil, nil
}

func errorResult(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
	}
}
