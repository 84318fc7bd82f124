// Package stream pushes conversation events to browsers over WebSocket and
// accepts turns sent back on the same connection.
package stream

import (
	"log/slog"
	"sync"

	"github.com/ashureev/advisor-chat/internal/conversation"
	"github.com/ashureev/advisor-chat/internal/domain"
	"github.com/ashureev/advisor-chat/internal/session"
)

// Event types pushed to clients.
const (
	EventSnapshot = "snapshot"
	EventMessage  = "message"
	EventReset    = "reset"
	EventOpenURL  = "open_url"
	EventPong     = "pong"
	EventError    = "error"
)

// sendQueueSize bounds per-connection buffering before a client is dropped.
const sendQueueSize = 64

// Event is a server-to-client frame.
type Event struct {
	Type      string                 `json:"type"`
	SessionID string                 `json:"session_id,omitempty"`
	Message   *domain.Message        `json:"message,omitempty"`
	Snapshot  *conversation.Snapshot `json:"snapshot,omitempty"`
	URL       string                 `json:"url,omitempty"`
	Error     string                 `json:"error,omitempty"`
}

// MessageEvent wraps an appended transcript message.
func MessageEvent(sessionID string, msg domain.Message) Event {
	return Event{Type: EventMessage, SessionID: sessionID, Message: &msg}
}

// ResetEvent announces a new session.
func ResetEvent(sessionID string) Event {
	return Event{Type: EventReset, SessionID: sessionID}
}

type subscriber struct {
	send chan Event
	// gone is closed when the hub drops the subscriber.
	gone     chan struct{}
	goneOnce sync.Once
}

func newSubscriber() *subscriber {
	return &subscriber{
		send: make(chan Event, sendQueueSize),
		gone: make(chan struct{}),
	}
}

func (s *subscriber) drop() {
	s.goneOnce.Do(func() { close(s.gone) })
}

// Hub fans events out to every connection watching a key.
type Hub struct {
	mu     sync.RWMutex
	active map[session.Key]map[*subscriber]struct{}
	logger *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		active: make(map[session.Key]map[*subscriber]struct{}),
		logger: logger,
	}
}

// Publish delivers ev to every subscriber of key and returns how many
// received it. Subscribers whose queue is full are dropped.
func (h *Hub) Publish(key session.Key, ev Event) int {
	h.mu.RLock()
	subs := make([]*subscriber, 0, len(h.active[key]))
	for s := range h.active[key] {
		subs = append(subs, s)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, s := range subs {
		select {
		case s.send <- ev:
			delivered++
		case <-s.gone:
		default:
			h.logger.Warn("Dropping slow stream subscriber", "key", key.String())
			h.unregister(key, s)
			s.drop()
		}
	}
	return delivered
}

// Count returns the number of subscribers for key.
func (h *Hub) Count(key session.Key) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.active[key])
}

// CloseKey drops every subscriber of key.
func (h *Hub) CloseKey(key session.Key) {
	h.mu.Lock()
	subs := h.active[key]
	delete(h.active, key)
	h.mu.Unlock()

	for s := range subs {
		s.drop()
	}
	if len(subs) > 0 {
		h.logger.Info("Stream subscribers closed", "key", key.String(), "count", len(subs))
	}
}

func (h *Hub) register(key session.Key) *subscriber {
	s := newSubscriber()
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.active[key]; !ok {
		h.active[key] = make(map[*subscriber]struct{})
	}
	h.active[key][s] = struct{}{}
	h.logger.Debug("Stream subscriber registered", "key", key.String())
	return s
}

func (h *Hub) unregister(key session.Key, s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.active[key]; ok {
		if _, exists := subs[s]; exists {
			delete(subs, s)
			if len(subs) == 0 {
				delete(h.active, key)
			}
			h.logger.Debug("Stream subscriber unregistered", "key", key.String())
		}
	}
}
