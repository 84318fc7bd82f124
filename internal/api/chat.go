package api

import (
	"errors"
	"net/http"

	"github.com/ashureev/advisor-chat/internal/chatlog"
	"github.com/ashureev/advisor-chat/internal/conversation"
	"github.com/ashureev/advisor-chat/internal/domain"
)

// OptionRequest is the body of POST /api/chat/options.
type OptionRequest struct {
	Label string `json:"label"`
}

// MessageRequest is the body of POST /api/chat/messages.
type MessageRequest struct {
	Message string `json:"message"`
}

// TurnResponse pairs the outcome of a turn with the conversation after it.
type TurnResponse struct {
	Result   conversation.TurnResult `json:"result"`
	Snapshot conversation.Snapshot   `json:"snapshot"`
}

// ConfigResponse describes the client-facing vocabulary.
type ConfigResponse struct {
	AssistantName  string   `json:"assistant_name"`
	Years          []string `json:"years"`
	Semesters      []string `json:"semesters"`
	PrimaryActions []string `json:"primary_actions"`
	ReferenceLabel string   `json:"reference_label"`
	ReferenceURL   string   `json:"reference_url"`
	AdvisorMode    string   `json:"advisor_mode"`
}

// MeResponse describes the anonymous user and their completed onboardings.
type MeResponse struct {
	User     *domain.User            `json:"user"`
	TabID    string                  `json:"tab_id"`
	Profiles []domain.SessionProfile `json:"profiles"`
}

const profileHistoryLimit = 10

// GetChat returns the current conversation, creating it on first access.
func (h *Handler) GetChat(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.conversation(w, r)
	if !ok {
		return
	}
	JSON(w, http.StatusOK, conv.Snapshot())
}

// SelectOption submits a click on one of the active option labels.
func (h *Handler) SelectOption(w http.ResponseWriter, r *http.Request) {
	var req OptionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Label == "" {
		Error(w, http.StatusBadRequest, "label is required")
		return
	}

	conv, ok := h.conversation(w, r)
	if !ok {
		return
	}
	h.logInbound(r, conv.SessionID(), "option", req.Label)

	res, err := conv.SubmitOption(r.Context(), req.Label)
	h.writeTurn(w, r, conv, res, err)
}

// SendMessage submits free text typed by the student.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	conv, ok := h.conversation(w, r)
	if !ok {
		return
	}
	h.logInbound(r, conv.SessionID(), "text", req.Message)

	res, err := conv.SubmitText(r.Context(), req.Message)
	h.writeTurn(w, r, conv, res, err)
}

// NewChat abandons the current session and starts a fresh onboarding.
func (h *Handler) NewChat(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.conversation(w, r)
	if !ok {
		return
	}
	h.logInbound(r, conv.SessionID(), "new_chat", "")

	if err := conv.Reset(r.Context()); err != nil {
		h.turnError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, conv.Snapshot())
}

// GetConfig returns the assistant vocabulary and the advisor transport.
func (h *Handler) GetConfig(w http.ResponseWriter, _ *http.Request) {
	vocab := h.vocab.At(h.now())
	JSON(w, http.StatusOK, ConfigResponse{
		AssistantName:  vocab.AssistantName,
		Years:          conversation.YearOptions(),
		Semesters:      vocab.Semesters,
		PrimaryActions: conversation.PrimaryActions(),
		ReferenceLabel: vocab.ReferenceLabel,
		ReferenceURL:   vocab.ReferenceURL,
		AdvisorMode:    string(h.mode),
	})
}

// GetMe returns the caller's anonymous user record and recent profiles.
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	key := keyFromRequest(r)
	user, err := h.repo.GetUser(r.Context(), key.UserID)
	if err != nil {
		h.logger.Error("Failed to load user", "user_id", key.UserID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load user")
		return
	}
	if user == nil {
		Error(w, http.StatusNotFound, "user not found")
		return
	}

	records, err := h.repo.ListProfiles(r.Context(), key.UserID, profileHistoryLimit)
	if err != nil {
		h.logger.Error("Failed to list profiles", "user_id", key.UserID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to list profiles")
		return
	}
	profiles := make([]domain.SessionProfile, 0, len(records))
	for _, rec := range records {
		profiles = append(profiles, rec.Profile)
	}

	JSON(w, http.StatusOK, MeResponse{User: user, TabID: key.TabID, Profiles: profiles})
}

func (h *Handler) conversation(w http.ResponseWriter, r *http.Request) (*conversation.Conversation, bool) {
	key := keyFromRequest(r)
	conv, err := h.registry.GetOrCreate(r.Context(), key)
	if err != nil {
		h.logger.Error("Failed to open conversation", "key", key.String(), "error", err)
		Error(w, http.StatusServiceUnavailable, "conversation unavailable")
		return nil, false
	}
	return conv, true
}

func (h *Handler) writeTurn(w http.ResponseWriter, r *http.Request, conv *conversation.Conversation, res conversation.TurnResult, err error) {
	if err != nil {
		h.turnError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, TurnResponse{Result: res, Snapshot: conv.Snapshot()})
}

func (h *Handler) turnError(w http.ResponseWriter, r *http.Request, err error) {
	key := keyFromRequest(r)
	if errors.Is(err, conversation.ErrClosed) {
		h.registry.Remove(key)
		Error(w, http.StatusConflict, "conversation closed, retry to start a new one")
		return
	}
	if r.Context().Err() != nil {
		h.logger.Debug("Turn abandoned by client", "key", key.String(), "error", err)
		return
	}
	h.logger.Error("Turn failed", "key", key.String(), "error", err)
	Error(w, http.StatusInternalServerError, "turn failed")
}

func (h *Handler) logInbound(r *http.Request, sessionID, eventType, content string) {
	key := keyFromRequest(r)
	h.chatlog.Log(chatlog.Event{
		UserID:     key.UserID,
		SessionID:  sessionID,
		Channel:    chatlog.ChannelHTTP,
		Direction:  chatlog.DirectionInbound,
		EventType:  eventType,
		ContentRaw: content,
		Meta:       map[string]any{"tab_id": key.TabID},
	})
}
