package crm

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sersweai/leadcrm/internal/infra/database"
	"github.com/sersweai/leadcrm/pkg/uuid"
)

const pendingBody = "pending"

// Email is one outbound message. SentAt is nil while the record is pending.
type Email struct {
	ID             string     `json:"id"`
	LeadID         string     `json:"lead_id"`
	Template       Template   `json:"template"`
	Subject        string     `json:"subject"`
	SubjectVariant *string    `json:"subject_variant"`
	Body           string     `json:"body"`
	ToEmail        string     `json:"to_email"`
	MessageID      *string    `json:"message_id"`
	SentAt         *time.Time `json:"sent_at"`
	CreatedAt      time.Time  `json:"created_at"`
}

// MarkSentInput is what the provider returned for a pending record.
type MarkSentInput struct {
	Subject        string
	SubjectVariant string
	Body           string
	MessageID      string
	SentAt         time.Time
}

type EmailService struct {
	db *database.DB
}

func NewEmailService(db *database.DB) *EmailService {
	return &EmailService{db: db}
}

const emailColumns = `id, lead_id, template, subject, subject_variant, body, to_email, message_id, sent_at, created_at`

// CreatePending inserts a placeholder record so its id can be embedded in tracking links.
func (s *EmailService) CreatePending(ctx context.Context, leadID string, template Template, to string) (*Email, error) {
	id := uuid.NewString()
	now := nowStamp()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO emails (id, lead_id, template, subject, body, to_email, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, leadID, string(template), pendingBody, pendingBody, to, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create pending email: %w", err)
	}
	return s.Get(ctx, id)
}

// MarkSent fills in a pending record after the provider accepted it.
func (s *EmailService) MarkSent(ctx context.Context, emailID string, input MarkSentInput) error {
	sentAt := input.SentAt
	if sentAt.IsZero() {
		sentAt = database.Now()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE emails SET subject = ?, subject_variant = ?, body = ?, message_id = ?, sent_at = ? WHERE id = ?`,
		input.Subject, nullString(input.SubjectVariant), input.Body, nullString(input.MessageID),
		database.FormatTime(sentAt), emailID,
	)
	if err != nil {
		return fmt.Errorf("mark email sent: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Discard removes a record that was never sent.
func (s *EmailService) Discard(ctx context.Context, emailID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM emails WHERE id = ? AND sent_at IS NULL`, emailID); err != nil {
		return fmt.Errorf("discard email: %w", err)
	}
	return nil
}

func (s *EmailService) Get(ctx context.Context, emailID string) (*Email, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+emailColumns+` FROM emails WHERE id = ?`, emailID)
	return scanEmail(row)
}

// CountSentSince counts records with sent_at at or after since.
func (s *EmailService) CountSentSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM emails WHERE sent_at IS NOT NULL AND sent_at >= ?`,
		database.FormatTime(since),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count sent emails: %w", err)
	}
	return n, nil
}

// LeadIDByMessageID resolves a provider message id to the lead it was sent to.
// SendGrid event ids carry a ".filter..." suffix after the message id, so a prefix up to the
// first '.' is also tried.
func (s *EmailService) LeadIDByMessageID(ctx context.Context, messageID string) (string, error) {
	messageID = strings.TrimSpace(messageID)
	if messageID == "" {
		return "", sql.ErrNoRows
	}
	candidates := []string{messageID}
	if i := strings.Index(messageID, "."); i > 0 {
		candidates = append(candidates, messageID[:i])
	}
	for _, candidate := range candidates {
		var leadID string
		err := s.db.QueryRowContext(ctx,
			`SELECT lead_id FROM emails WHERE message_id = ? ORDER BY created_at DESC LIMIT 1`, candidate,
		).Scan(&leadID)
		if err == nil {
			return leadID, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("find email by message id: %w", err)
		}
	}
	return "", sql.ErrNoRows
}

// ListByLead returns sent emails for a lead, oldest first.
func (s *EmailService) ListByLead(ctx context.Context, leadID string) ([]*Email, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+emailColumns+` FROM emails WHERE lead_id = ? AND sent_at IS NOT NULL ORDER BY sent_at ASC, id ASC`, leadID)
	if err != nil {
		return nil, fmt.Errorf("list emails by lead: %w", err)
	}
	defer rows.Close()

	out := make([]*Email, 0)
	for rows.Next() {
		e, err := scanEmail(rows)
		if err != nil {
			return nil, fmt.Errorf("scan email: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEmail(row scanner) (*Email, error) {
	var (
		e                          Email
		template, createdAt        string
		variant, messageID, sentAt sql.NullString
	)
	if err := row.Scan(&e.ID, &e.LeadID, &template, &e.Subject, &variant, &e.Body, &e.ToEmail,
		&messageID, &sentAt, &createdAt); err != nil {
		return nil, err
	}
	e.Template = Template(template)
	e.SubjectVariant = stringPtr(variant)
	e.MessageID = stringPtr(messageID)
	if sentAt.Valid {
		t := parseStamp(sentAt.String)
		e.SentAt = &t
	}
	e.CreatedAt = parseStamp(createdAt)
	return &e, nil
}
