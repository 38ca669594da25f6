// Package chat implements the chat orchestration workflow: session
// resolution, ordered turn persistence, bounded context assembly, and the
// generation call with its fallback policy.
package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/spurstore/supportchat/internal/log"
	"github.com/spurstore/supportchat/internal/store"
)

// FallbackReply is the fixed user-facing text substituted when the
// generation call fails. It is persisted as a normal agent turn, so
// history records exactly what the user was shown.
const FallbackReply = "Sorry — I’m having trouble responding right now. " +
	"Please try again in a moment, or ask for a human agent."

// Store is the conversation persistence contract the orchestrator needs.
// Satisfied by *store.Store; defined here so tests can inject fakes.
type Store interface {
	ResolveOrCreate(ctx context.Context, existing *uuid.UUID) (uuid.UUID, error)
	AppendTurn(ctx context.Context, conversationID uuid.UUID, role store.Role, text string) (store.Turn, error)
	RecentTurns(ctx context.Context, conversationID uuid.UUID, limit int) ([]store.Turn, error)
	AllTurns(ctx context.Context, conversationID uuid.UUID) ([]store.Turn, error)
}

// Generator produces a reply for a prompt. Satisfied by *gemini.Client.
// Any non-nil error from Generate is a generation failure; the
// orchestrator absorbs it and substitutes FallbackReply.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Config holds the orchestrator's fixed knobs.
type Config struct {
	// Persona is the policy/system-instruction block prepended to every
	// transcript.
	Persona string

	// HistoryWindow bounds how many recent turns are supplied as context
	// to each generation call.
	HistoryWindow int
}

// Reply is the outcome of one SendMessage call.
type Reply struct {
	SessionID uuid.UUID `json:"sessionId"`
	Text      string    `json:"reply"`
}

// Service orchestrates one chat request end to end. It holds no state of
// its own and is safe for concurrent use; many requests may be in flight
// at once, including against the same conversation.
//
// Turn ordering across concurrent requests on one conversation follows
// store commit order; only the turns within a single request are
// guaranteed to be written in sequence.
type Service struct {
	store     Store
	generator Generator
	persona   string
	window    int
	logger    log.Logger
	tracer    trace.Tracer
}

// NewService creates a chat Service.
func NewService(st Store, gen Generator, cfg Config, logger log.Logger) (*Service, error) {
	if st == nil {
		return nil, errors.New("store is required")
	}
	if gen == nil {
		return nil, errors.New("generator is required")
	}
	if cfg.Persona == "" {
		return nil, errors.New("persona is required")
	}
	if cfg.HistoryWindow <= 0 {
		return nil, fmt.Errorf("history window must be positive, got %d", cfg.HistoryWindow)
	}
	if logger == nil {
		logger = log.NewNop()
	}

	return &Service{
		store:     st,
		generator: gen,
		persona:   cfg.Persona,
		window:    cfg.HistoryWindow,
		logger:    logger,
		tracer:    otel.Tracer("github.com/spurstore/supportchat/internal/chat"),
	}, nil
}

// SendMessage runs the chat workflow for one user message:
//
//  1. Resolve or create the conversation.
//  2. Persist the user turn, before generation is attempted, so the
//     message survives a generation failure.
//  3. Fetch the recent-history window in chronological order.
//  4. Build the transcript with the persona block prepended.
//  5. Generate; on failure substitute FallbackReply. Generation failure
//     never fails the request.
//  6. Persist the agent turn, real or fallback.
//  7. Return the reply with the session id.
//
// Store failures at any step propagate to the caller: they mean the
// system cannot durably record state, and the request must fail.
func (s *Service) SendMessage(ctx context.Context, message string, sessionID *uuid.UUID) (Reply, error) {
	ctx, span := s.tracer.Start(ctx, "chat.SendMessage")
	defer span.End()

	conversationID, err := s.store.ResolveOrCreate(ctx, sessionID)
	if err != nil {
		return Reply{}, fmt.Errorf("resolving conversation: %w", err)
	}
	span.SetAttributes(attribute.String("chat.session_id", conversationID.String()))

	if _, err := s.store.AppendTurn(ctx, conversationID, store.RoleUser, message); err != nil {
		return Reply{}, fmt.Errorf("persisting user turn: %w", err)
	}

	history, err := s.store.RecentTurns(ctx, conversationID, s.window)
	if err != nil {
		return Reply{}, fmt.Errorf("fetching history window: %w", err)
	}

	prompt := s.persona + "\n\n" + BuildTranscript(history, message)

	reply, genErr := s.generator.Generate(ctx, prompt)
	if genErr != nil {
		// Absorbed: the user always gets a reply, and the fallback is
		// recorded in history exactly as shown.
		s.logger.Warn("generation failed, substituting fallback reply",
			"session_id", conversationID,
			"error", genErr)
		span.SetAttributes(attribute.Bool("chat.fallback", true))
		reply = FallbackReply
	}

	if _, err := s.store.AppendTurn(ctx, conversationID, store.RoleAgent, reply); err != nil {
		return Reply{}, fmt.Errorf("persisting agent turn: %w", err)
	}

	s.logger.Info("chat message handled",
		"session_id", conversationID,
		"fallback", genErr != nil,
		"reply_len", len(reply))

	return Reply{SessionID: conversationID, Text: reply}, nil
}

// History returns the full chronological history for a conversation.
func (s *Service) History(ctx context.Context, sessionID uuid.UUID) ([]store.Turn, error) {
	turns, err := s.store.AllTurns(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("fetching history: %w", err)
	}
	return turns, nil
}
