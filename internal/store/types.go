// Package store provides durable conversation state backed by PostgreSQL.
//
// Responsibilities: create conversations, append turns, retrieve ordered
// history (full or most-recent-N). Turns within a conversation are
// append-only and time-ordered; they are never mutated or reordered.
package store

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a turn.
type Role string

// The two valid turn roles. The database enforces the same set via the
// sender enum.
const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// Valid reports whether the role is one of the two known variants.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAgent
}

// Conversation is a durable grouping of turns, identified by one opaque id.
// The API boundary calls this a "session".
type Conversation struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}

// Turn is one message, authored by either the user or the agent,
// permanently ordered within its conversation.
type Turn struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"-"`
	Role           Role      `json:"role"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"createdAt"`
}
