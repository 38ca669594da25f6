package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/spurstore/supportchat/internal/chat"
	"github.com/spurstore/supportchat/internal/log"
	"github.com/spurstore/supportchat/internal/store"
)

// ChatService is the orchestration contract the HTTP layer needs.
// Satisfied by *chat.Service; defined here so handler tests inject fakes.
type ChatService interface {
	SendMessage(ctx context.Context, message string, sessionID *uuid.UUID) (chat.Reply, error)
	History(ctx context.Context, sessionID uuid.UUID) ([]store.Turn, error)
}

// chatHandler handles the chat endpoints.
type chatHandler struct {
	chat          ChatService
	maxMessageLen int
	logger        log.Logger
}

// sendMessageRequest is the body for POST /api/v1/chat/message.
type sendMessageRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId,omitempty"`
}

// sendMessageResponse mirrors chat.Reply on the wire.
type sendMessageResponse struct {
	SessionID string `json:"sessionId"`
	Reply     string `json:"reply"`
}

// sendMessage handles POST /api/v1/chat/message.
func (h *chatHandler) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "Invalid JSON body. Expected { message, sessionId? }")
		return
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		writeError(w, http.StatusBadRequest, "empty_message", "Message cannot be empty.")
		return
	}
	if runes := []rune(message); len(runes) > h.maxMessageLen {
		message = string(runes[:h.maxMessageLen])
	}

	var sessionID *uuid.UUID
	if req.SessionID != "" {
		id, err := uuid.Parse(req.SessionID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_session_id", "sessionId must be a UUID.")
			return
		}
		sessionID = &id
	}

	reply, err := h.chat.SendMessage(r.Context(), message, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrConversationNotFound) {
			writeError(w, http.StatusNotFound, "session_not_found", "No conversation exists for the given sessionId.")
			return
		}
		h.logger.Error("chat request failed", "error", err, "request_id", requestIDFromContext(r.Context()))
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to process the message.")
		return
	}

	writeJSON(w, http.StatusOK, sendMessageResponse{
		SessionID: reply.SessionID.String(),
		Reply:     reply.Text,
	})
}

// historyResponse is the body for GET /api/v1/chat/history.
type historyResponse struct {
	SessionID string       `json:"sessionId"`
	Turns     []store.Turn `json:"turns"`
}

// history handles GET /api/v1/chat/history?sessionId=<uuid>.
func (h *chatHandler) history(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("sessionId")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "missing_session_id", "sessionId is required.")
		return
	}

	sessionID, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_session_id", "sessionId must be a UUID.")
		return
	}

	turns, err := h.chat.History(r.Context(), sessionID)
	if err != nil {
		h.logger.Error("history request failed", "error", err, "request_id", requestIDFromContext(r.Context()))
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to load history.")
		return
	}
	if turns == nil {
		turns = []store.Turn{}
	}

	writeJSON(w, http.StatusOK, historyResponse{
		SessionID: sessionID.String(),
		Turns:     turns,
	})
}
