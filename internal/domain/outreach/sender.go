package outreach

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sersweai/leadcrm/internal/domain/crm"
	"github.com/sersweai/leadcrm/internal/infra/eventbus"
	"github.com/sersweai/leadcrm/internal/infra/mailer"
)

var (
	ErrLeadNotFound        = errors.New("lead not found")
	ErrLeadHasNoEmail      = errors.New("lead has no email")
	ErrMailerNotConfigured = errors.New("mailer not configured")
	ErrDailyLimitReached   = errors.New("daily send limit reached")
)

// DefaultDailyLimit caps sends per UTC day when Policy.DailyLimit is not positive.
const DefaultDailyLimit = 25

type leadStore interface {
	Get(ctx context.Context, leadID string) (*crm.Lead, error)
	RecordSend(ctx context.Context, leadID string, status crm.LeadStatus, lastContacted string, nextFollowUp *string) error
}

type emailStore interface {
	CreatePending(ctx context.Context, leadID string, template crm.Template, to string) (*crm.Email, error)
	MarkSent(ctx context.Context, emailID string, input crm.MarkSentInput) error
	Discard(ctx context.Context, emailID string) error
	CountSentSince(ctx context.Context, since time.Time) (int, error)
}

// Policy is the sending envelope.
type Policy struct {
	DailyLimit int
	Location   *time.Location
	From       string
	ReplyTo    string
}

// SendResult reports an accepted send.
type SendResult struct {
	EmailID        string         `json:"email_id"`
	MessageID      string         `json:"message_id"`
	ScheduledAt    time.Time      `json:"scheduled_at"`
	Subject        string         `json:"subject"`
	SubjectVariant string         `json:"subject_variant,omitempty"`
	Status         crm.LeadStatus `json:"status"`
	NextFollowUp   *string        `json:"next_follow_up"`
}

// EmailSentEvent is published on eventbus.TopicEmailSent.
type EmailSentEvent struct {
	LeadID    string       `json:"lead_id"`
	EmailID   string       `json:"email_id"`
	Template  crm.Template `json:"template"`
	MessageID string       `json:"message_id"`
}

type Sender struct {
	leads    leadStore
	emails   emailStore
	mailer   mailer.Mailer
	renderer *Renderer
	catalog  *Catalog
	bus      eventbus.EventBus
	policy   Policy
	logger   *zap.Logger
	now      func() time.Time
}

// NewSender wires the send flow. A nil mailer makes every send fail with ErrMailerNotConfigured.
func NewSender(leads leadStore, emails emailStore, m mailer.Mailer, renderer *Renderer, catalog *Catalog,
	bus eventbus.EventBus, policy Policy, logger *zap.Logger) *Sender {
	if policy.DailyLimit <= 0 {
		policy.DailyLimit = DefaultDailyLimit
	}
	if policy.Location == nil {
		policy.Location = time.UTC
	}
	if bus == nil {
		bus = eventbus.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sender{
		leads:    leads,
		emails:   emails,
		mailer:   m,
		renderer: renderer,
		catalog:  catalog,
		bus:      bus,
		policy:   policy,
		logger:   logger,
		now:      time.Now,
	}
}

// DailyLimit is the effective per-day cap.
func (s *Sender) DailyLimit() int { return s.policy.DailyLimit }

// Send delivers template to the lead, scheduled for 08:00 on the next business day in the
// sending timezone, and advances the lead's status and follow-up date.
func (s *Sender) Send(ctx context.Context, leadID string, template crm.Template) (*SendResult, error) {
	sentStatus, ok := template.SentStatus()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTemplate, template)
	}

	lead, err := s.leads.Get(ctx, leadID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrLeadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load lead: %w", err)
	}
	if !lead.HasEmail() {
		return nil, ErrLeadHasNoEmail
	}
	if s.mailer == nil {
		return nil, ErrMailerNotConfigured
	}

	now := s.now().UTC()
	sentToday, err := s.emails.CountSentSince(ctx, time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC))
	if err != nil {
		return nil, err
	}
	if sentToday >= s.policy.DailyLimit {
		return nil, ErrDailyLimitReached
	}

	pending, err := s.emails.CreatePending(ctx, lead.ID, template, *lead.Email)
	if err != nil {
		return nil, err
	}
	rendered, err := s.renderer.Render(lead, template, pending.ID)
	if err != nil {
		s.discard(ctx, pending.ID)
		return nil, err
	}

	scheduledAt := NextBusinessDay8AM(now, s.policy.Location)
	messageID, err := s.mailer.Send(ctx, mailer.Message{
		From:        s.policy.From,
		To:          *lead.Email,
		ReplyTo:     s.policy.ReplyTo,
		Subject:     rendered.Subject,
		Text:        rendered.Text,
		HTML:        rendered.HTML,
		ScheduledAt: scheduledAt,
	})
	if err != nil {
		s.discard(ctx, pending.ID)
		return nil, fmt.Errorf("send email: %w", err)
	}

	if err := s.emails.MarkSent(ctx, pending.ID, crm.MarkSentInput{
		Subject:        rendered.Subject,
		SubjectVariant: rendered.SubjectVariant,
		Body:           rendered.Text,
		MessageID:      messageID,
		SentAt:         now,
	}); err != nil {
		return nil, err
	}

	category := ""
	if lead.Category != nil {
		category = *lead.Category
	}
	next := s.catalog.NextFollowUp(now, category, template)
	if err := s.leads.RecordSend(ctx, lead.ID, sentStatus, now.Format(dateLayout), next); err != nil {
		return nil, err
	}

	s.bus.Publish(eventbus.TopicEmailSent, EmailSentEvent{
		LeadID:    lead.ID,
		EmailID:   pending.ID,
		Template:  template,
		MessageID: messageID,
	})
	s.logger.Info("email sent",
		zap.String("lead_id", lead.ID),
		zap.String("email_id", pending.ID),
		zap.String("template", string(template)),
		zap.String("message_id", messageID),
		zap.Time("scheduled_at", scheduledAt),
	)

	return &SendResult{
		EmailID:        pending.ID,
		MessageID:      messageID,
		ScheduledAt:    scheduledAt,
		Subject:        rendered.Subject,
		SubjectVariant: rendered.SubjectVariant,
		Status:         sentStatus,
		NextFollowUp:   next,
	}, nil
}

func (s *Sender) discard(ctx context.Context, emailID string) {
	if err := s.emails.Discard(ctx, emailID); err != nil {
		s.logger.Warn("discard pending email", zap.String("email_id", emailID), zap.Error(err))
	}
}
