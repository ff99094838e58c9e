package crm

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Timeline entry types.
const (
	TimelineEmailSent = "email_sent"
	TimelineOpen      = "open"
	TimelineClick     = "click"
	TimelineReplied   = "replied"
)

// TimelineEntry is one row of a lead's history. Unused fields are null in JSON.
type TimelineEntry struct {
	Type      string    `json:"type"`
	Date      time.Time `json:"date"`
	Template  *Template `json:"template,omitempty"`
	Subject   *string   `json:"subject,omitempty"`
	EmailID   *string   `json:"email_id,omitempty"`
	URL       *string   `json:"url,omitempty"`
	ReplyType *string   `json:"reply_type,omitempty"`
}

// LeadTimeline is a lead and its ordered history.
type LeadTimeline struct {
	Lead     *Lead            `json:"lead"`
	Timeline []*TimelineEntry `json:"timeline"`
}

type TimelineService struct {
	leads  *LeadService
	emails *EmailService
	events *EventService
}

func NewTimelineService(leads *LeadService, emails *EmailService, events *EventService) *TimelineService {
	return &TimelineService{leads: leads, emails: emails, events: events}
}

// ForLead assembles sends, opens, clicks and the reply marker, oldest first.
// A missing lead yields sql.ErrNoRows.
func (s *TimelineService) ForLead(ctx context.Context, leadID string) (*LeadTimeline, error) {
	lead, err := s.leads.Get(ctx, leadID)
	if err != nil {
		return nil, err
	}
	emails, err := s.emails.ListByLead(ctx, leadID)
	if err != nil {
		return nil, fmt.Errorf("timeline emails: %w", err)
	}

	ids := make([]string, 0, len(emails))
	byID := make(map[string]*Email, len(emails))
	for _, e := range emails {
		ids = append(ids, e.ID)
		byID[e.ID] = e
	}
	events, err := s.events.ListByEmails(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("timeline events: %w", err)
	}

	entries := make([]*TimelineEntry, 0, len(emails)+len(events)+1)
	for _, e := range emails {
		if e.SentAt == nil {
			continue
		}
		template, subject, id := e.Template, e.Subject, e.ID
		entries = append(entries, &TimelineEntry{
			Type:     TimelineEmailSent,
			Date:     *e.SentAt,
			Template: &template,
			Subject:  &subject,
			EmailID:  &id,
		})
	}
	for _, ev := range events {
		email, ok := byID[ev.EmailID]
		if !ok {
			continue
		}
		template, id := email.Template, email.ID
		entries = append(entries, &TimelineEntry{
			Type:     string(ev.EventType),
			Date:     ev.CreatedAt,
			Template: &template,
			EmailID:  &id,
			URL:      ev.URL,
		})
	}
	if lead.Status == StatusReplied && lead.LastContacted != nil {
		if day, err := time.Parse("2006-01-02", *lead.LastContacted); err == nil {
			entries = append(entries, &TimelineEntry{
				Type:      TimelineReplied,
				Date:      day,
				ReplyType: lead.ReplyType,
			})
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Date.Before(entries[j].Date)
	})
	return &LeadTimeline{Lead: lead, Timeline: entries}, nil
}
