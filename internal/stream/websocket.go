package stream

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/ashureev/advisor-chat/internal/chatlog"
	"github.com/ashureev/advisor-chat/internal/conversation"
	"github.com/ashureev/advisor-chat/internal/identity"
	"github.com/ashureev/advisor-chat/internal/session"
	"github.com/coder/websocket"
)

// Client frame types.
const (
	FrameOption  = "option"
	FrameText    = "text"
	FrameNewChat = "new_chat"
	FramePing    = "ping"
)

const (
	writeTimeout  = 10 * time.Second
	turnQueueSize = 16
)

// clientFrame is a client-to-server message.
type clientFrame struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

// WebSocketHandler serves /api/chat/stream.
type WebSocketHandler struct {
	registry      *session.Registry
	hub           *Hub
	chatlog       chatlog.Logger
	allowedOrigin string
	isDev         bool
	logger        *slog.Logger
}

// NewWebSocketHandler creates a new WebSocket handler.
func NewWebSocketHandler(registry *session.Registry, hub *Hub, convLog chatlog.Logger, allowedOrigin string, isDev bool, logger *slog.Logger) *WebSocketHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if convLog == nil {
		convLog = chatlog.Nop()
	}
	return &WebSocketHandler{
		registry:      registry,
		hub:           hub,
		chatlog:       convLog,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
		logger:        logger,
	}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := session.Key{
		UserID: identity.UserIDFromContext(r.Context()),
		TabID:  identity.SessionIDFromContext(r.Context()),
	}
	h.logger.Info("WebSocket connection request", "key", key.String(), "ip", identity.IPFromRequest(r))

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("Failed to accept WebSocket", "error", err, "key", key.String())
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "stream ended"); closeErr != nil {
			h.logger.Debug("Failed to close websocket", "error", closeErr, "key", key.String())
		}
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conv, err := h.registry.GetOrCreate(ctx, key)
	if err != nil {
		h.logger.Error("Failed to open conversation", "error", err, "key", key.String())
		if err := writeJSON(ctx, ws, Event{Type: EventError, Error: "conversation_unavailable"}); err != nil {
			h.logger.Debug("Failed to send conversation_unavailable error", "error", err)
		}
		return
	}

	// Subscribe before snapshotting so no message falls between the two.
	// Clients de-duplicate by message id.
	sub := h.hub.register(key)
	defer h.hub.unregister(key, sub)

	snap := conv.Snapshot()
	select {
	case sub.send <- Event{Type: EventSnapshot, SessionID: snap.SessionID, Snapshot: &snap}:
	case <-sub.gone:
		return
	}

	turns := make(chan clientFrame, turnQueueSize)
	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		defer cancel()
		h.inputLoop(ctx, ws, key, conv, sub, turns)
	}()

	go func() {
		defer wg.Done()
		defer cancel()
		h.turnLoop(ctx, key, conv, sub, turns)
	}()

	go func() {
		defer wg.Done()
		defer cancel()
		h.outputLoop(ctx, ws, key, sub)
	}()

	wg.Wait()
	h.logger.Info("Stream ended", "key", key.String())
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	h.logger.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

// inputLoop reads client frames. Turns are queued for turnLoop so that a
// new_chat or ping is handled even while a turn waits on the advisor.
func (h *WebSocketHandler) inputLoop(ctx context.Context, ws *websocket.Conn, key session.Key, conv *conversation.Conversation, sub *subscriber, turns chan<- clientFrame) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled) {
				h.logger.Debug("WebSocket closed", "key", key.String())
			} else {
				h.logger.Warn("WebSocket read error", "error", err, "key", key.String())
			}
			return
		}
		h.registry.Touch(key)

		var frame clientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			reply(sub, Event{Type: EventError, Error: "invalid_frame"})
			continue
		}

		switch frame.Type {
		case FrameOption, FrameText:
			h.logInbound(key, conv.SessionID(), frame)
			select {
			case turns <- frame:
			case <-ctx.Done():
				return
			}
		case FrameNewChat:
			h.logInbound(key, conv.SessionID(), frame)
			if err := conv.Reset(ctx); err != nil {
				h.logger.Warn("New chat failed", "error", err, "key", key.String())
				reply(sub, Event{Type: EventError, Error: "conversation_closed"})
				return
			}
		case FramePing:
			reply(sub, Event{Type: EventPong})
		default:
			reply(sub, Event{Type: EventError, Error: "unknown_frame_type"})
		}
	}
}

func (h *WebSocketHandler) turnLoop(ctx context.Context, key session.Key, conv *conversation.Conversation, sub *subscriber, turns <-chan clientFrame) {
	for {
		select {
		case frame := <-turns:
			var res conversation.TurnResult
			var err error
			if frame.Type == FrameOption {
				res, err = conv.SubmitOption(ctx, frame.Content)
			} else {
				res, err = conv.SubmitText(ctx, frame.Content)
			}
			if err != nil {
				h.logger.Warn("Turn rejected", "error", err, "key", key.String())
				reply(sub, Event{Type: EventError, Error: "conversation_closed"})
				return
			}
			if res.OpenURL != "" {
				reply(sub, Event{Type: EventOpenURL, URL: res.OpenURL})
			}
		case <-ctx.Done():
			return
		}
	}
}

func (h *WebSocketHandler) outputLoop(ctx context.Context, ws *websocket.Conn, key session.Key, sub *subscriber) {
	for {
		select {
		case ev := <-sub.send:
			if err := writeJSON(ctx, ws, ev); err != nil {
				if ctx.Err() == nil {
					h.logger.Debug("WebSocket write error", "error", err, "key", key.String())
				}
				return
			}
		case <-sub.gone:
			_ = ws.Close(websocket.StatusPolicyViolation, "subscriber dropped")
			return
		case <-ctx.Done():
			return
		}
	}
}

func (h *WebSocketHandler) logInbound(key session.Key, sessionID string, frame clientFrame) {
	h.chatlog.Log(chatlog.Event{
		UserID:     key.UserID,
		SessionID:  sessionID,
		Channel:    chatlog.ChannelWebSocket,
		Direction:  chatlog.DirectionInbound,
		EventType:  frame.Type,
		ContentRaw: frame.Content,
		Meta:       map[string]any{"tab_id": key.TabID},
	})
}

// reply queues ev for this connection only. It never blocks.
func reply(sub *subscriber, ev Event) {
	select {
	case sub.send <- ev:
	default:
	}
}

func writeJSON(ctx context.Context, ws *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return ws.Write(ctx, websocket.MessageText, data)
}
