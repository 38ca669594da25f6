package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/spurstore/supportchat/internal/log"
)

// foreignKeyViolation is PostgreSQL error code 23503.
const foreignKeyViolation = "23503"

// Querier is the subset of pgx operations the Store needs.
// Satisfied by *pgxpool.Pool and pgx.Tx; interfaces are defined by the
// consumer, not the provider.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// turnCols is the standard SELECT column list for scanTurns.
const turnCols = `id, conversation_id, sender, text, created_at`

// Store manages conversation persistence with a PostgreSQL backend.
//
// Store is safe for concurrent use by multiple goroutines; it holds no
// state beyond the connection handle and performs no locking of its own.
// Each call commits independently.
type Store struct {
	db     Querier
	logger log.Logger
}

// New creates a Store. db is typically a *pgxpool.Pool.
func New(db Querier, logger log.Logger) (*Store, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{db: db, logger: logger}, nil
}

// ResolveOrCreate returns the supplied conversation id unchanged, or
// creates a new conversation and returns its id when none is supplied.
//
// No existence check is performed for a supplied id: a stale or bogus id
// is caught by the foreign key constraint on the first AppendTurn, which
// reports ErrConversationNotFound.
func (s *Store) ResolveOrCreate(ctx context.Context, existing *uuid.UUID) (uuid.UUID, error) {
	if existing != nil {
		return *existing, nil
	}

	id := uuid.New()
	_, err := s.db.Exec(ctx,
		`INSERT INTO conversations (id) VALUES ($1)`,
		uuidToPg(id))
	if err != nil {
		return uuid.Nil, fmt.Errorf("creating conversation: %w", err)
	}

	s.logger.Debug("created conversation", "id", id)
	return id, nil
}

// AppendTurn durably appends one turn to a conversation.
// Returns ErrConversationNotFound when conversationID does not reference
// an existing conversation; nothing is written in that case.
func (s *Store) AppendTurn(ctx context.Context, conversationID uuid.UUID, role Role, text string) (Turn, error) {
	if !role.Valid() {
		return Turn{}, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if strings.TrimSpace(text) == "" {
		return Turn{}, ErrEmptyText
	}

	id := uuid.New()
	var createdAt pgtype.Timestamptz
	err := s.db.QueryRow(ctx,
		`INSERT INTO turns (id, conversation_id, sender, text) VALUES ($1, $2, $3, $4) RETURNING created_at`,
		uuidToPg(id), uuidToPg(conversationID), string(role), text,
	).Scan(&createdAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return Turn{}, fmt.Errorf("%w: %s", ErrConversationNotFound, conversationID)
		}
		return Turn{}, fmt.Errorf("appending turn: %w", err)
	}

	s.logger.Debug("appended turn", "conversation_id", conversationID, "role", role)
	return Turn{
		ID:             id,
		ConversationID: conversationID,
		Role:           role,
		Text:           text,
		CreatedAt:      createdAt.Time,
	}, nil
}

// RecentTurns returns up to limit of the newest turns for a conversation,
// reordered oldest-first so callers receive chronological order.
// An unknown conversation id yields an empty slice, not an error.
func (s *Store) RecentTurns(ctx context.Context, conversationID uuid.UUID, limit int) ([]Turn, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.Query(ctx,
		`SELECT `+turnCols+` FROM turns
		 WHERE conversation_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`,
		uuidToPg(conversationID), limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent turns: %w", err)
	}

	turns, err := scanTurns(rows)
	if err != nil {
		return nil, err
	}

	// Newest-first from the index scan; hand out chronological order.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// AllTurns returns the full chronological history for a conversation.
func (s *Store) AllTurns(ctx context.Context, conversationID uuid.UUID) ([]Turn, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+turnCols+` FROM turns
		 WHERE conversation_id = $1
		 ORDER BY created_at ASC, id ASC`,
		uuidToPg(conversationID))
	if err != nil {
		return nil, fmt.Errorf("querying turns: %w", err)
	}

	return scanTurns(rows)
}

// scanTurns drains rows into Turn values.
func scanTurns(rows pgx.Rows) ([]Turn, error) {
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var (
			id, convID pgtype.UUID
			sender     string
			text       string
			createdAt  pgtype.Timestamptz
		)
		if err := rows.Scan(&id, &convID, &sender, &text, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		turns = append(turns, Turn{
			ID:             pgToUUID(id),
			ConversationID: pgToUUID(convID),
			Role:           Role(sender),
			Text:           text,
			CreatedAt:      createdAt.Time,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading turns: %w", err)
	}
	return turns, nil
}

// uuidToPg converts uuid.UUID to pgtype.UUID.
func uuidToPg(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

// pgToUUID converts pgtype.UUID to uuid.UUID.
func pgToUUID(id pgtype.UUID) uuid.UUID {
	if !id.Valid {
		return uuid.Nil
	}
	return id.Bytes
}
