package mailer

import (
	"context"

	"go.uber.org/zap"

	"github.com/sersweai/leadcrm/pkg/uuid"
)

// Log writes messages to the logger instead of sending them.
type Log struct {
	logger *zap.Logger
}

// NewLog builds a dry-run mailer. A nil logger discards output.
func NewLog(logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{logger: logger}
}

func (m *Log) Send(_ context.Context, msg Message) (string, error) {
	if err := validate(msg); err != nil {
		return "", err
	}
	id := "log-" + uuid.NewString()
	m.logger.Info("mail (dry run)",
		zap.String("message_id", id),
		zap.String("from", msg.From),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Time("scheduled_at", msg.ScheduledAt),
		zap.Int("text_bytes", len(msg.Text)),
		zap.Int("html_bytes", len(msg.HTML)),
	)
	return id, nil
}
