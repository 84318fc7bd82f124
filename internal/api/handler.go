// Package api provides HTTP handlers for the advisor chat API.
//
//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/advisor-chat/internal/advisor"
	"github.com/ashureev/advisor-chat/internal/chatlog"
	"github.com/ashureev/advisor-chat/internal/conversation"
	"github.com/ashureev/advisor-chat/internal/identity"
	"github.com/ashureev/advisor-chat/internal/session"
	"github.com/ashureev/advisor-chat/internal/store"
	"github.com/go-chi/chi/v5"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 64 << 10

// Handler serves the chat, profile and configuration endpoints.
type Handler struct {
	registry *session.Registry
	repo     store.Repository
	vocab    *conversation.Vocabulary
	mode     advisor.Mode
	chatlog  chatlog.Logger
	logger   *slog.Logger
	now      func() time.Time
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(
	registry *session.Registry,
	repo store.Repository,
	vocab *conversation.Vocabulary,
	mode advisor.Mode,
	convLog chatlog.Logger,
	logger *slog.Logger,
) *Handler {
	if convLog == nil {
		convLog = chatlog.Nop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		registry: registry,
		repo:     repo,
		vocab:    vocab,
		mode:     mode,
		chatlog:  convLog,
		logger:   logger,
		now:      time.Now,
	}
}

// RegisterRoutes mounts the API under the given router. The router must
// already carry identity.Middleware.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/config", h.GetConfig)
	r.Get("/me", h.GetMe)
	r.Route("/chat", func(r chi.Router) {
		r.Get("/", h.GetChat)
		r.Post("/options", h.SelectOption)
		r.Post("/messages", h.SendMessage)
		r.Post("/new", h.NewChat)
	})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

var errEmptyBody = errors.New("request body is empty")

// decodeJSON reads a single JSON object from the request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

// keyFromRequest builds the registry key from the identity middleware values.
func keyFromRequest(r *http.Request) session.Key {
	return session.Key{
		UserID: identity.UserIDFromContext(r.Context()),
		TabID:  identity.SessionIDFromContext(r.Context()),
	}
}
