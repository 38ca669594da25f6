// Package api provides the HTTP JSON API for supportchat.
//
// Endpoints:
//
//	POST /api/v1/chat/message  send a message, get the reply
//	GET  /api/v1/chat/history  full chronological history for a session
//	GET  /health               liveness probe
//	GET  /ready                readiness probe (database ping)
//
// Request validation (empty message, malformed session id) happens here,
// before the orchestrator runs; the core never sees invalid input.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spurstore/supportchat/internal/config"
	"github.com/spurstore/supportchat/internal/log"
)

// Server timeout configuration.
const (
	// ReadHeaderTimeout bounds header reads to resist slow-client abuse.
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 30 * time.Second

	// WriteTimeout must cover the generation call's hard timeout plus
	// store round-trips.
	WriteTimeout = 60 * time.Second

	// IdleTimeout applies to keep-alive connections.
	IdleTimeout = 120 * time.Second

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger        log.Logger
	Chat          ChatService   // Required
	Pool          *pgxpool.Pool // Optional: nil degrades /ready to 503
	CORSOrigins   []string
	MaxMessageLen int // 0 = config.DefaultMaxMessageLen
}

// Server is the HTTP server for the supportchat JSON API.
type Server struct {
	mux    *http.ServeMux
	logger log.Logger
}

// NewServer creates an HTTP server with all routes registered.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Chat == nil {
		return nil, errors.New("chat service is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	maxLen := cfg.MaxMessageLen
	if maxLen <= 0 {
		maxLen = config.DefaultMaxMessageLen
	}

	ch := &chatHandler{
		chat:          cfg.Chat,
		maxMessageLen: maxLen,
		logger:        logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/chat/message", ch.sendMessage)
	mux.HandleFunc("GET /api/v1/chat/history", ch.history)

	// Middleware stack (outermost first):
	//   recovery → requestID → logging → CORS → routes
	// requestID runs before logging so request_id appears in log attributes.
	var handler http.Handler = mux
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Health probes stay outside the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", liveness)
	topMux.Handle("GET /ready", readiness(cfg.Pool, logger))
	topMux.Handle("/", handler)

	return &Server{mux: topMux, logger: logger}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run starts the HTTP server and blocks until the context is cancelled,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
