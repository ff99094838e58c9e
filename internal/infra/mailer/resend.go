package mailer

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/resend/resend-go/v2"
)

// Resend sends through the Resend HTTP API. Scheduled messages use scheduled_at.
type Resend struct {
	client *resend.Client
}

// NewResend builds a Resend mailer for apiKey.
func NewResend(apiKey string) *Resend {
	return &Resend{client: resend.NewClient(apiKey)}
}

// withBaseURL points the client at another API root (tests).
func (m *Resend) withBaseURL(base string) error {
	u, err := url.Parse(base)
	if err != nil {
		return err
	}
	m.client.BaseURL = u
	return nil
}

func (m *Resend) Send(ctx context.Context, msg Message) (string, error) {
	if err := validate(msg); err != nil {
		return "", err
	}
	req := &resend.SendEmailRequest{
		From:    msg.From,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
		ReplyTo: msg.ReplyTo,
	}
	if !msg.ScheduledAt.IsZero() {
		req.ScheduledAt = msg.ScheduledAt.UTC().Format(time.RFC3339)
	}
	sent, err := m.client.Emails.SendWithContext(ctx, req)
	if err != nil {
		return "", fmt.Errorf("resend send: %w", err)
	}
	return sent.Id, nil
}
