// Advisor Chat - course planning assistant server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/advisor-chat/internal/api"
	"github.com/ashureev/advisor-chat/internal/chatlog"
	"github.com/ashureev/advisor-chat/internal/config"
	"github.com/ashureev/advisor-chat/internal/conversation"
	"github.com/ashureev/advisor-chat/internal/identity"
	"github.com/ashureev/advisor-chat/internal/metrics"
	"github.com/ashureev/advisor-chat/internal/middleware"
	"github.com/ashureev/advisor-chat/internal/session"
	"github.com/ashureev/advisor-chat/internal/store"
	"github.com/ashureev/advisor-chat/internal/stream"
	"github.com/ashureev/advisor-chat/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()
	slog.Info("Database connected", "path", cfg.DBPath)

	vocab, err := loadVocabulary(cfg.Conversation.VocabularyFile)
	if err != nil {
		slog.Error("Failed to load vocabulary", "error", err, "path", cfg.Conversation.VocabularyFile)
		os.Exit(1)
	}
	slog.Info("Vocabulary ready", "assistant", vocab.AssistantName, "semesters", vocab.Semesters)

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewRecorder(promRegistry)

	client, mode, closeClient, err := newAdvisorClient(cfg.Advisor, recorder, logger)
	if err != nil {
		slog.Error("Failed to initialize advisor client", "error", err)
		os.Exit(1)
	}
	defer closeClient()
	slog.Info("Advisor client initialized", "mode", mode)

	convLog, err := chatlog.New(chatlog.Config{
		Enabled:       cfg.ConversationLog.Enabled,
		Dir:           cfg.ConversationLog.Dir,
		GlobalEnabled: cfg.ConversationLog.GlobalEnabled,
		GlobalPath:    cfg.ConversationLog.GlobalPath,
		QueueSize:     cfg.ConversationLog.QueueSize,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize conversation logger", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := convLog.Close(); closeErr != nil {
			slog.Error("Failed to close conversation logger", "error", closeErr)
		}
	}()

	// Initialize services.
	hub := stream.NewHub(logger)
	registry := session.NewRegistry(newConversationFactory(factoryDeps{
		client:   client,
		vocab:    vocab,
		cfg:      cfg.Conversation,
		repo:     repo,
		hub:      hub,
		chatlog:  convLog,
		recorder: recorder,
		logger:   logger,
	}), recorder, logger)
	defer registry.CloseAll()

	// Initialize handlers.
	apiHandler := api.NewHandler(registry, repo, vocab, mode, convLog, logger)
	healthHandler := api.NewHealthHandler(repo, cfg.Timeout.HealthCheck)
	wsHandler := stream.NewWebSocketHandler(registry, hub, convLog, cfg.AllowedOrigins()[0], cfg.IsDevelopment(), logger)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(cfg.AllowedOrigins()))

	// Public routes.
	healthHandler.RegisterHealth(r)
	r.Handle("/metrics", metrics.Handler(promRegistry))

	// API routes carry anonymous identity.
	r.Route("/api", func(r chi.Router) {
		r.Use(identity.Middleware(repo, cfg.IsDevelopment()))
		apiHandler.RegisterRoutes(r)
		r.Get("/chat/stream", wsHandler.ServeHTTP)
	})

	// Serve embedded frontend (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	// Note: WebSocket streams are long-lived, so there is no WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	// Start TTL worker.
	g.Go(func() error {
		return session.RunTTLWorker(gctx, registry, repo, session.TTLConfig{
			TTL:           cfg.Conversation.TTL,
			UserRetention: cfg.Conversation.UserRetention,
		}, hub.CloseKey)
	})

	// Start server.
	g.Go(func() error {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Wait for shutdown signal or a failed component.
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeout.Shutdown)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("Server stopped with error", "error", err)
		registry.CloseAll()
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}

func loadVocabulary(path string) (*conversation.Vocabulary, error) {
	if path == "" {
		return conversation.DefaultVocabulary(time.Now()), nil
	}
	return conversation.LoadVocabulary(path, time.Now())
}
