package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spurstore/supportchat/db"
	"github.com/spurstore/supportchat/internal/api"
	"github.com/spurstore/supportchat/internal/chat"
	"github.com/spurstore/supportchat/internal/config"
	"github.com/spurstore/supportchat/internal/gemini"
	"github.com/spurstore/supportchat/internal/log"
	"github.com/spurstore/supportchat/internal/observability"
	"github.com/spurstore/supportchat/internal/store"
)

// runServe initializes dependencies and starts the HTTP API server.
// It blocks until SIGINT/SIGTERM, then shuts down gracefully.
func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := log.New(log.Config{Level: cfg.SlogLevel(), JSON: cfg.LogJSON})
	logger.Info("starting supportchat", "version", Version, "model", cfg.ModelName)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := observability.Setup(ctx, observability.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
		Environment: cfg.Tracing.Environment,
	}, logger)
	if err != nil {
		return fmt.Errorf("setting up tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing shutdown error", "error", err)
		}
	}()

	if err := db.Migrate(cfg.PostgresURL(), logger); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	pool, err := pgxpool.New(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return fmt.Errorf("creating connection pool: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("pinging database: %w", err)
	}

	st, err := store.New(pool, logger)
	if err != nil {
		return fmt.Errorf("creating store: %w", err)
	}

	gen, err := gemini.New(ctx, gemini.Config{
		APIKey:          cfg.GeminiAPIKey,
		Model:           cfg.ModelName,
		MaxOutputTokens: cfg.MaxOutputTokens,
		Temperature:     cfg.Temperature,
		Timeout:         cfg.GenerateTimeout(),
	}, logger)
	if err != nil {
		return fmt.Errorf("creating gemini client: %w", err)
	}

	svc, err := chat.NewService(st, gen, chat.Config{
		Persona:       cfg.Persona,
		HistoryWindow: cfg.HistoryWindow,
	}, logger)
	if err != nil {
		return fmt.Errorf("creating chat service: %w", err)
	}

	srv, err := api.NewServer(api.ServerConfig{
		Logger:        logger,
		Chat:          svc,
		Pool:          pool,
		CORSOrigins:   cfg.CORSOrigins,
		MaxMessageLen: cfg.MaxMessageLen,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	logger.Info("HTTP server ready",
		"addr", cfg.Addr,
		"api", "/api/v1/*",
		"health", "/health, /ready",
	)

	if err := srv.Run(ctx, cfg.Addr); err != nil {
		return fmt.Errorf("HTTP server: %w", err)
	}
	return nil
}
