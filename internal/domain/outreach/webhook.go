package outreach

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/sersweai/leadcrm/internal/domain/crm"
	"github.com/sersweai/leadcrm/internal/infra/eventbus"
)

// Resend delivery event types that change a lead.
const (
	ResendEmailBounced    = "email.bounced"
	ResendEmailComplained = "email.complained"
)

// SendGrid event names that change a lead.
const (
	SendGridBounce     = "bounce"
	SendGridDropped    = "dropped"
	SendGridSpamReport = "spamreport"
)

// ResendTransition maps a Resend event type to the lead status it implies.
func ResendTransition(eventType string) (crm.LeadStatus, bool) {
	switch eventType {
	case ResendEmailBounced:
		return crm.StatusNotFit, true
	case ResendEmailComplained:
		return crm.StatusDoNotContact, true
	}
	return "", false
}

// SendGridTransition maps a SendGrid event name to the lead status it implies.
func SendGridTransition(event string) (crm.LeadStatus, bool) {
	switch event {
	case SendGridBounce, SendGridDropped:
		return crm.StatusNotFit, true
	case SendGridSpamReport:
		return crm.StatusDoNotContact, true
	}
	return "", false
}

type messageLookup interface {
	LeadIDByMessageID(ctx context.Context, messageID string) (string, error)
}

type statusSetter interface {
	SetStatus(ctx context.Context, leadID string, status crm.LeadStatus) error
}

// Transition is the outcome of applying a delivery event.
type Transition struct {
	Matched bool
	LeadID  string
	Status  crm.LeadStatus
}

// StatusChangedEvent is published on eventbus.TopicLeadStatusChanged.
type StatusChangedEvent struct {
	LeadID string         `json:"lead_id"`
	Status crm.LeadStatus `json:"status"`
	Source string         `json:"source"`
}

// StatusUpdater moves leads in response to provider webhooks.
type StatusUpdater struct {
	emails messageLookup
	leads  statusSetter
	bus    eventbus.EventBus
	logger *zap.Logger
}

func NewStatusUpdater(emails messageLookup, leads statusSetter, bus eventbus.EventBus, logger *zap.Logger) *StatusUpdater {
	if bus == nil {
		bus = eventbus.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatusUpdater{emails: emails, leads: leads, bus: bus, logger: logger}
}

// Apply sets status on the lead that received messageID. An unknown message id is not an error;
// the result reports Matched=false.
func (u *StatusUpdater) Apply(ctx context.Context, source, messageID string, status crm.LeadStatus) (Transition, error) {
	leadID, err := u.emails.LeadIDByMessageID(ctx, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return Transition{}, nil
	}
	if err != nil {
		return Transition{}, fmt.Errorf("lookup message %q: %w", messageID, err)
	}
	if err := u.leads.SetStatus(ctx, leadID, status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Transition{}, nil
		}
		return Transition{}, err
	}
	u.bus.Publish(eventbus.TopicLeadStatusChanged, StatusChangedEvent{LeadID: leadID, Status: status, Source: source})
	u.logger.Info("lead status changed by webhook",
		zap.String("source", source),
		zap.String("lead_id", leadID),
		zap.String("status", string(status)),
	)
	return Transition{Matched: true, LeadID: leadID, Status: status}, nil
}
