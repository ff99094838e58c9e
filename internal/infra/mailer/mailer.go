// Package mailer sends outbound email through one of several providers.
// Resend is the default; SendGrid and Amazon SES are alternatives and Log is a dry-run sink.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sersweai/leadcrm/internal/infra/config"
)

// Provider names accepted in MAIL_PROVIDER.
const (
	ProviderResend   = "resend"
	ProviderSendGrid = "sendgrid"
	ProviderSES      = "ses"
	ProviderLog      = "log"
)

// ErrEmptyBody is returned when a message has neither text nor HTML content.
var ErrEmptyBody = errors.New("message has no body")

// Message is one outbound email. A zero ScheduledAt sends immediately.
type Message struct {
	From        string
	To          string
	ReplyTo     string
	Subject     string
	Text        string
	HTML        string
	ScheduledAt time.Time
}

// Mailer delivers a Message and returns the provider's message id.
type Mailer interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// New returns the Mailer selected by cfg.MailProvider, or nil when that provider has no
// credentials configured.
func New(cfg config.Config, logger *zap.Logger) (Mailer, error) {
	switch cfg.MailProvider {
	case ProviderResend, "":
		if cfg.ResendAPIKey == "" {
			return nil, nil
		}
		return NewResend(cfg.ResendAPIKey), nil
	case ProviderSendGrid:
		if cfg.SendGridAPIKey == "" {
			return nil, nil
		}
		return NewSendGrid(cfg.SendGridAPIKey, ""), nil
	case ProviderSES:
		if cfg.AWSRegion == "" {
			return nil, nil
		}
		m, err := NewSES(cfg.AWSRegion)
		if err != nil {
			return nil, err
		}
		return m, nil
	case ProviderLog:
		return NewLog(logger), nil
	default:
		return nil, fmt.Errorf("unknown mail provider %q", cfg.MailProvider)
	}
}

func validate(msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return errors.New("message has no recipient")
	}
	if msg.Text == "" && msg.HTML == "" {
		return ErrEmptyBody
	}
	return nil
}

// FormatAddress renders `Name <addr>`, or just addr when name is empty.
func FormatAddress(name, addr string) string {
	if name == "" {
		return addr
	}
	return fmt.Sprintf("%s <%s>", name, addr)
}

// splitAddress is the inverse of FormatAddress.
func splitAddress(s string) (name, addr string) {
	s = strings.TrimSpace(s)
	open := strings.LastIndex(s, "<")
	if open < 0 || !strings.HasSuffix(s, ">") {
		return "", s
	}
	return strings.TrimSpace(s[:open]), s[open+1 : len(s)-1]
}
