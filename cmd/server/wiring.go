package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/advisor-chat/internal/advisor"
	"github.com/ashureev/advisor-chat/internal/chatlog"
	"github.com/ashureev/advisor-chat/internal/config"
	"github.com/ashureev/advisor-chat/internal/conversation"
	"github.com/ashureev/advisor-chat/internal/domain"
	"github.com/ashureev/advisor-chat/internal/metrics"
	"github.com/ashureev/advisor-chat/internal/session"
	"github.com/ashureev/advisor-chat/internal/store"
	"github.com/ashureev/advisor-chat/internal/stream"
)

// profileWriteTimeout bounds the profile audit write made when onboarding completes.
const profileWriteTimeout = 5 * time.Second

// newAdvisorClient picks gRPC when an address is configured and HTTP otherwise.
// The returned close func is always non-nil.
func newAdvisorClient(cfg config.AdvisorConfig, recorder *metrics.Recorder, logger *slog.Logger) (advisor.Client, advisor.Mode, func(), error) {
	if cfg.GRPCAddr != "" {
		gcfg := advisor.DefaultGrpcClientConfig()
		gcfg.Address = cfg.GRPCAddr
		gcfg.RequestTimeout = cfg.Timeout
		client, err := advisor.NewGrpcClientWithConfig(gcfg, logger)
		if err != nil {
			return nil, "", nil, fmt.Errorf("connect advisor gRPC service at %s: %w", cfg.GRPCAddr, err)
		}
		return advisor.Instrument(client, recorder), advisor.ModeGRPC, client.Close, nil
	}

	client := advisor.NewHTTPClient(advisor.HTTPClientConfig{
		BaseURL: cfg.APIURL,
		Timeout: cfg.Timeout,
	}, logger)
	return advisor.Instrument(client, recorder), advisor.ModeHTTP, func() {}, nil
}

type factoryDeps struct {
	client   advisor.Client
	vocab    *conversation.Vocabulary
	cfg      config.ConversationConfig
	repo     store.Repository
	hub      *stream.Hub
	chatlog  chatlog.Logger
	recorder *metrics.Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// newConversationFactory builds conversations whose transcript changes fan
// out to the stream hub and the conversation log, and whose completed
// profiles are recorded in the store.
func newConversationFactory(d factoryDeps) session.Factory {
	if d.now == nil {
		d.now = time.Now
	}
	return func(ctx context.Context, key session.Key) (*conversation.Conversation, error) {
		logger := d.logger.With("user_id", key.UserID, "tab_id", key.TabID)
		return conversation.New(ctx, conversation.Options{
			Client:        d.client,
			Vocabulary:    d.vocab.At(d.now()),
			GreetingDelay: d.cfg.GreetingDelay,
			FollowUpDelay: d.cfg.FollowUpDelay,
			Metrics:       d.recorder,
			Logger:        logger,
			Hooks: conversation.Hooks{
				OnAppend: func(sid string, msg domain.Message) {
					d.hub.Publish(key, stream.MessageEvent(sid, msg))
					d.chatlog.Log(chatlog.Event{
						UserID:    key.UserID,
						SessionID: sid,
						Direction: chatlog.DirectionOutbound,
						EventType: "message",
						Content:   msg.Content,
						Meta: map[string]any{
							"tab_id":     key.TabID,
							"author":     string(msg.Author),
							"message_id": msg.ID,
							"options":    msg.Options,
						},
					})
				},
				OnReset: func(sid string) {
					d.hub.Publish(key, stream.ResetEvent(sid))
				},
				OnFinalize: func(p domain.SessionProfile) {
					ctx, cancel := context.WithTimeout(context.Background(), profileWriteTimeout)
					defer cancel()
					err := d.repo.RecordProfile(ctx, &domain.ProfileRecord{
						UserID:    key.UserID,
						Profile:   p,
						CreatedAt: time.Now(),
					})
					if err != nil {
						logger.Error("Failed to record onboarding profile", "session_id", p.SessionID, "error", err)
						return
					}
					logger.Info("Onboarding profile recorded", "session_id", p.SessionID, "concentration", p.Concentration())
				},
			},
		})
	}
}
