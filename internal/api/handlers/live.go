package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/sersweai/leadcrm/internal/infra/eventbus"
)

const (
	livePingInterval = 30 * time.Second
	liveWriteTimeout = 5 * time.Second
)

// LiveHandler streams event-bus events to dashboards over a websocket.
type LiveHandler struct {
	bus            eventbus.EventBus
	logger         *zap.Logger
	originPatterns []string
}

// NewLiveHandler accepts same-origin upgrades plus any host in originPatterns.
func NewLiveHandler(bus eventbus.EventBus, logger *zap.Logger, originPatterns ...string) *LiveHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LiveHandler{bus: bus, logger: logger, originPatterns: originPatterns}
}

// Stream handles GET /api/live. Every published event is sent as one JSON text message:
// {"topic": "...", "payload": {...}, "at": "..."}.
func (h *LiveHandler) Stream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.originPatterns})
	if err != nil {
		h.logger.Debug("websocket accept", zap.Error(err))
		return
	}
	defer conn.CloseNow() //nolint:errcheck

	events := h.bus.Subscribe(eventbus.TopicAll)
	defer h.bus.Unsubscribe(events)

	// Clients never send data; CloseRead handles control frames and cancels ctx on disconnect.
	ctx := conn.CloseRead(r.Context())

	ping := time.NewTicker(livePingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "") //nolint:errcheck
			return
		case evt, ok := <-events:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "bus closed") //nolint:errcheck
				return
			}
			if err := writeWithTimeout(ctx, func(ctx context.Context) error { return wsjson.Write(ctx, conn, evt) }); err != nil {
				h.logger.Debug("live write", zap.Error(err))
				return
			}
		case <-ping.C:
			if err := writeWithTimeout(ctx, conn.Ping); err != nil {
				return
			}
		}
	}
}

func writeWithTimeout(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, liveWriteTimeout)
	defer cancel()
	return fn(ctx)
}
