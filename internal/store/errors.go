package store

import "errors"

// Sentinel errors for store operations.
// These are part of the Store's public API; check with errors.Is().
var (
	// ErrConversationNotFound indicates the referenced conversation does
	// not exist. Surfaced when a turn insert violates the foreign key to
	// conversations.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrInvalidRole indicates a turn role outside the user/agent set.
	ErrInvalidRole = errors.New("invalid turn role")

	// ErrEmptyText indicates a turn body that is empty after trimming.
	ErrEmptyText = errors.New("empty turn text")
)
