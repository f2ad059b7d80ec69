// AnalystAI - requirements interview server
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

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ashureev/analystai/internal/api"
	"github.com/ashureev/analystai/internal/chat"
	"github.com/ashureev/analystai/internal/chatlog"
	"github.com/ashureev/analystai/internal/config"
	"github.com/ashureev/analystai/internal/conversation"
	"github.com/ashureev/analystai/internal/flows"
	"github.com/ashureev/analystai/internal/generation"
	"github.com/ashureev/analystai/internal/history"
	"github.com/ashureev/analystai/internal/identity"
	"github.com/ashureev/analystai/internal/middleware"
	"github.com/ashureev/analystai/internal/publish"
	"github.com/ashureev/analystai/internal/store"
	"github.com/ashureev/analystai/internal/synthesis"
	"github.com/ashureev/analystai/web"
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

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "backend", cfg.Generation.Backend)

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

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	script := conversation.DefaultScript()
	if cfg.ScriptPath != "" {
		script, err = conversation.LoadScript(cfg.ScriptPath)
		if err != nil {
			slog.Error("Failed to load interview script", "path", cfg.ScriptPath, "error", err)
			os.Exit(1)
		}
		slog.Info("Interview script loaded", "path", cfg.ScriptPath, "questions", script.Len())
	}

	checks := map[string]api.Pinger{"database": repo}

	backend, closeBackend, err := generation.NewBackend(cfg.Generation, logger)
	if err != nil {
		slog.Error("Failed to initialize generation backend", "backend", cfg.Generation.Backend, "error", err)
		os.Exit(1)
	}
	defer closeBackend()
	if p, ok := backend.(api.Pinger); ok {
		checks["generation"] = p
	}
	slog.Info("Generation backend ready", "backend", backend.Name())

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	gateway := generation.NewGateway(backend,
		generation.WithLogger(logger),
		generation.WithMetrics(generation.NewMetrics(reg)),
		generation.WithTimeout(cfg.Generation.Timeout),
	)
	assistant := flows.New(gateway)
	orchestrator := synthesis.NewOrchestrator(assistant, logger)
	archive := history.NewArchive(repo, logger)

	// Wiki export is optional.
	var publisher api.Publisher
	if cfg.Confluence.Enabled() {
		client, err := publish.NewConfluenceClient(publish.Config{
			BaseURL:      cfg.Confluence.BaseURL,
			SpaceKey:     cfg.Confluence.SpaceKey,
			ParentPageID: cfg.Confluence.ParentPageID,
			Email:        cfg.Confluence.Email,
			APIToken:     cfg.Confluence.APIToken,
		}, logger)
		if err != nil {
			slog.Error("Failed to initialize Confluence client", "error", err)
			os.Exit(1)
		}
		publisher = client
		slog.Info("Confluence export enabled", "space", cfg.Confluence.SpaceKey)
	} else {
		slog.Info("Confluence export disabled (CONFLUENCE_* not set)")
	}

	events, err := chatlog.New(chatlog.Config{
		Enabled:   cfg.ChatLog.Enabled,
		Dir:       cfg.ChatLog.Dir,
		QueueSize: cfg.ChatLog.QueueSize,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize chat log", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := events.Close(); closeErr != nil {
			slog.Warn("Failed to close chat log", "error", closeErr)
		}
	}()

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	defer limiter.Stop()

	// Initialize handlers.
	handler := api.NewHandler(api.Deps{
		Repo:        repo,
		Assistant:   assistant,
		Synthesizer: orchestrator,
		Publisher:   publisher,
		Archive:     archive,
		Script:      script,
		Backend:     backend.Name(),
		Logger:      logger,
	})
	healthHandler := api.NewHealthHandler(checks, 5*time.Second)
	sm := chat.NewSessionManager(logger)
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "analystai",
		Name:      "chat_connections",
		Help:      "Open chat WebSocket connections.",
	}, func() float64 { return float64(sm.Count()) }))
	wsHandler := chat.NewHandler(script, orchestrator, archive, sm, events, chat.Config{
		AllowedOrigin: cfg.FrontendURL,
		IsDev:         cfg.IsDevelopment(),
	}, logger)

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
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(repo, cfg.IsDevelopment()))
		handler.RegisterRoutes(r, limiter.Middleware)

		// WebSocket endpoint.
		r.Get("/ws/chat", wsHandler.ServeHTTP)

		// Serve embedded frontend (SPA catch-all).
		r.Handle("/*", web.SPAHandler())
	})

	// No WriteTimeout: finalize keeps a websocket busy for the length of two model calls.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...", "chat_connections", sm.Count())
	sm.CloseAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
