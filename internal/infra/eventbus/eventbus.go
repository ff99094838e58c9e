// Package eventbus is an in-memory publish/subscribe bus for CRM activity.
// Send, tracking, webhook and import paths publish to it; the live dashboard feed consumes it.
//
// Design:
//   - Buffered channel per subscriber (buffer=100).
//   - Publish is non-blocking: the event is dropped for a subscriber whose buffer is full.
//   - Subscribing to TopicAll receives every topic.
//   - No persistence: the database is the record, events are notifications.
package eventbus

import (
	"sync"
	"time"
)

// Topics published by the CRM.
const (
	TopicAll               = "*"
	TopicEmailSent         = "email.sent"
	TopicEmailOpened       = "email.opened"
	TopicEmailClicked      = "email.clicked"
	TopicLeadStatusChanged = "lead.status_changed"
	TopicLeadsImported     = "lead.imported"
	TopicContactReceived   = "contact.received"
)

// Event is a single published message.
type Event struct {
	Topic   string    `json:"topic"`
	Payload any       `json:"payload"`
	At      time.Time `json:"at"`
}

// EventBus is the interface for publishing and subscribing to topics.
type EventBus interface {
	Publish(topic string, payload any)
	Subscribe(topic string) <-chan Event
	Unsubscribe(ch <-chan Event)
}

const defaultBufferSize = 100

type subscription struct {
	topic string
	ch    chan Event
}

// Bus is the in-memory implementation of EventBus.
type Bus struct {
	mu   sync.RWMutex
	subs []subscription
	now  func() time.Time
}

// New returns a new in-memory Bus.
func New() *Bus {
	return &Bus{now: time.Now}
}

// Subscribe registers a subscriber for topic (or TopicAll) and returns a read-only channel.
// The caller must drain the channel or Unsubscribe it.
func (b *Bus) Subscribe(topic string) <-chan Event {
	ch := make(chan Event, defaultBufferSize)
	b.mu.Lock()
	b.subs = append(b.subs, subscription{topic: topic, ch: ch})
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes the subscription owning ch and closes it. Unknown channels are ignored.
func (b *Bus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if (<-chan Event)(s.ch) == ch {
			close(s.ch)
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish sends an Event to all subscribers of topic and of TopicAll.
func (b *Bus) Publish(topic string, payload any) {
	evt := Event{Topic: topic, Payload: payload, At: b.now().UTC()}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs {
		if s.topic != topic && s.topic != TopicAll {
			continue
		}
		select {
		case s.ch <- evt:
		default:
			// buffer full, drop
		}
	}
}

// Nop is an EventBus that discards everything. Useful for CLI paths with no listeners.
type Nop struct{}

func (Nop) Publish(string, any) {}

func (Nop) Subscribe(string) <-chan Event { return nil }

func (Nop) Unsubscribe(<-chan Event) {}
