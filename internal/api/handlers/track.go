package handlers

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/sersweai/leadcrm/internal/domain/crm"
	"github.com/sersweai/leadcrm/internal/infra/eventbus"
)

var trackingPixel, _ = base64.StdEncoding.DecodeString("R0lGODlhAQABAPAAAP///wAAACH5BAAAAAAALAAAAAABAAEAAAICRAEAOw==")

// EventRecorder stores open and click events.
type EventRecorder interface {
	Record(ctx context.Context, input crm.RecordEventInput) (*crm.EmailEvent, error)
}

// TrackHandler serves the open pixel and click redirects embedded in outreach emails.
// Recording is best-effort; the recipient always gets the pixel or the redirect.
type TrackHandler struct {
	events EventRecorder
	bus    eventbus.EventBus
	logger *zap.Logger
}

func NewTrackHandler(events EventRecorder, bus eventbus.EventBus, logger *zap.Logger) *TrackHandler {
	if bus == nil {
		bus = eventbus.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TrackHandler{events: events, bus: bus, logger: logger}
}

// Open handles GET /api/track/open?email_id=&lead_id=
func (h *TrackHandler) Open(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if emailID := q.Get("email_id"); emailID != "" {
		h.record(r.Context(), eventbus.TopicEmailOpened, crm.RecordEventInput{
			EmailID: emailID,
			LeadID:  q.Get("lead_id"),
			Type:    crm.EventOpen,
		})
	}

	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, proxy-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.WriteHeader(http.StatusOK)
	w.Write(trackingPixel) //nolint:errcheck
}

// Click handles GET /api/track/click?email_id=&lead_id=&url=. Only http and https targets are
// followed.
func (h *TrackHandler) Click(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	target := q.Get("url")
	if !isSafeURL(target) {
		writeError(w, http.StatusBadRequest, "Invalid URL")
		return
	}
	if emailID := q.Get("email_id"); emailID != "" {
		h.record(r.Context(), eventbus.TopicEmailClicked, crm.RecordEventInput{
			EmailID: emailID,
			LeadID:  q.Get("lead_id"),
			Type:    crm.EventClick,
			URL:     target,
		})
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (h *TrackHandler) record(ctx context.Context, topic string, input crm.RecordEventInput) {
	evt, err := h.events.Record(ctx, input)
	if err != nil {
		h.logger.Warn("record tracking event",
			zap.String("type", string(input.Type)),
			zap.String("email_id", input.EmailID),
			zap.Error(err),
		)
		return
	}
	h.bus.Publish(topic, evt)
}

func isSafeURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
