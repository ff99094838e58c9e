package mailer

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

const sendGridEndpoint = "/v3/mail/send"

// SendGrid sends through the SendGrid v3 mail API. Scheduled messages use send_at.
type SendGrid struct {
	apiKey string
	host   string
}

// NewSendGrid builds a SendGrid mailer. An empty host uses the public API.
func NewSendGrid(apiKey, host string) *SendGrid {
	if host == "" {
		host = "https://api.sendgrid.com"
	}
	return &SendGrid{apiKey: apiKey, host: host}
}

func (m *SendGrid) Send(ctx context.Context, msg Message) (string, error) {
	if err := validate(msg); err != nil {
		return "", err
	}
	fromName, fromAddr := splitAddress(msg.From)
	email := mail.NewSingleEmail(
		mail.NewEmail(fromName, fromAddr),
		msg.Subject,
		mail.NewEmail("", msg.To),
		msg.Text,
		msg.HTML,
	)
	if msg.ReplyTo != "" {
		email.SetReplyTo(mail.NewEmail("", msg.ReplyTo))
	}
	if !msg.ScheduledAt.IsZero() {
		email.SetSendAt(int(msg.ScheduledAt.Unix()))
	}

	req := sendgrid.GetRequest(m.apiKey, sendGridEndpoint, m.host)
	req.Method = http.MethodPost
	client := &sendgrid.Client{Request: req}
	resp, err := client.SendWithContext(ctx, email)
	if err != nil {
		return "", fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("sendgrid send: status %d: %s", resp.StatusCode, resp.Body)
	}
	if ids := resp.Headers["X-Message-Id"]; len(ids) > 0 {
		return ids[0], nil
	}
	return "", nil
}
