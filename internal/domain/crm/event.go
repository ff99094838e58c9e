package crm

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sersweai/leadcrm/internal/infra/database"
	"github.com/sersweai/leadcrm/pkg/uuid"
)

type EmailEvent struct {
	ID        string    `json:"id"`
	EmailID   string    `json:"email_id"`
	LeadID    *string   `json:"lead_id"`
	EventType EventType `json:"event_type"`
	URL       *string   `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

type RecordEventInput struct {
	EmailID string
	LeadID  string
	Type    EventType
	URL     string
}

type EventService struct {
	db *database.DB
}

func NewEventService(db *database.DB) *EventService {
	return &EventService{db: db}
}

// Record stores a tracking event. Email ids are not checked against the emails table.
func (s *EventService) Record(ctx context.Context, input RecordEventInput) (*EmailEvent, error) {
	if input.Type != EventOpen && input.Type != EventClick {
		return nil, fmt.Errorf("record event: unknown type %q", input.Type)
	}
	if input.EmailID == "" {
		return nil, fmt.Errorf("record event: email id required")
	}
	evt := &EmailEvent{
		ID:        uuid.NewString(),
		EmailID:   input.EmailID,
		EventType: input.Type,
		CreatedAt: database.Now(),
	}
	if input.LeadID != "" {
		evt.LeadID = &input.LeadID
	}
	if input.URL != "" {
		evt.URL = &input.URL
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO email_events (id, email_id, lead_id, event_type, url, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		evt.ID, evt.EmailID, nullString(input.LeadID), string(evt.EventType), nullString(input.URL),
		database.FormatTime(evt.CreatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("record %s event: %w", input.Type, err)
	}
	return evt, nil
}

// ListByEmails returns events for the given email ids, oldest first.
func (s *EventService) ListByEmails(ctx context.Context, emailIDs []string) ([]*EmailEvent, error) {
	if len(emailIDs) == 0 {
		return []*EmailEvent{}, nil
	}
	args := make([]any, len(emailIDs))
	for i, id := range emailIDs {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, email_id, lead_id, event_type, url, created_at FROM email_events
		WHERE email_id IN (`+database.Placeholders(len(emailIDs))+`)
		ORDER BY created_at ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list email events: %w", err)
	}
	defer rows.Close()

	out := make([]*EmailEvent, 0)
	for rows.Next() {
		var (
			e                    EmailEvent
			leadID, url          sql.NullString
			eventType, createdAt string
		)
		if err := rows.Scan(&e.ID, &e.EmailID, &leadID, &eventType, &url, &createdAt); err != nil {
			return nil, fmt.Errorf("scan email event: %w", err)
		}
		e.LeadID = stringPtr(leadID)
		e.URL = stringPtr(url)
		e.EventType = EventType(eventType)
		e.CreatedAt = parseStamp(createdAt)
		out = append(out, &e)
	}
	return out, rows.Err()
}
