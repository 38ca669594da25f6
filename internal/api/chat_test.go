package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/spurstore/supportchat/internal/chat"
	"github.com/spurstore/supportchat/internal/log"
	"github.com/spurstore/supportchat/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeChat records the arguments SendMessage and History receive and
// returns canned results.
type fakeChat struct {
	reply   chat.Reply
	turns   []store.Turn
	err     error
	gotMsg  string
	gotSess *uuid.UUID
}

func (f *fakeChat) SendMessage(_ context.Context, message string, sessionID *uuid.UUID) (chat.Reply, error) {
	f.gotMsg = message
	f.gotSess = sessionID
	if f.err != nil {
		return chat.Reply{}, f.err
	}
	return f.reply, nil
}

func (f *fakeChat) History(_ context.Context, _ uuid.UUID) ([]store.Turn, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.turns, nil
}

func newTestServer(t *testing.T, fc *fakeChat) *Server {
	t.Helper()

	srv, err := NewServer(ServerConfig{
		Logger:      log.NewNop(),
		Chat:        fc,
		CORSOrigins: []string{"http://localhost:5173"},
	})
	require.NoError(t, err)
	return srv
}

func postMessage(t *testing.T, srv *Server, body string) *httptest.ResponseRecorder {
	t.Helper()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/chat/message", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	srv.Handler().ServeHTTP(w, r)
	return w
}

func TestSendMessage_NewSession(t *testing.T) {
	sessionID := uuid.New()
	fc := &fakeChat{reply: chat.Reply{SessionID: sessionID, Text: "Hi! How can I help?"}}
	srv := newTestServer(t, fc)

	w := postMessage(t, srv, `{"message":"My order is late"}`)

	require.Equal(t, http.StatusOK, w.Code)

	var resp sendMessageResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, sessionID.String(), resp.SessionID)
	assert.Equal(t, "Hi! How can I help?", resp.Reply)

	assert.Equal(t, "My order is late", fc.gotMsg)
	assert.Nil(t, fc.gotSess, "no sessionId in body should reach the service as nil")
}

func TestSendMessage_ExistingSession(t *testing.T) {
	sessionID := uuid.New()
	fc := &fakeChat{reply: chat.Reply{SessionID: sessionID, Text: "ok"}}
	srv := newTestServer(t, fc)

	w := postMessage(t, srv, `{"message":"hi","sessionId":"`+sessionID.String()+`"}`)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, fc.gotSess)
	assert.Equal(t, sessionID, *fc.gotSess)
}

func TestSendMessage_InvalidJSON(t *testing.T) {
	fc := &fakeChat{}
	srv := newTestServer(t, fc)

	w := postMessage(t, srv, `{not json`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, fc.gotMsg, "service must not be called on invalid input")
}

func TestSendMessage_EmptyMessage(t *testing.T) {
	fc := &fakeChat{}
	srv := newTestServer(t, fc)

	for _, body := range []string{`{"message":""}`, `{"message":"   "}`, `{}`} {
		w := postMessage(t, srv, body)
		assert.Equal(t, http.StatusBadRequest, w.Code, "body %s", body)
	}
	assert.Empty(t, fc.gotMsg)
}

func TestSendMessage_InvalidSessionID(t *testing.T) {
	fc := &fakeChat{}
	srv := newTestServer(t, fc)

	w := postMessage(t, srv, `{"message":"hi","sessionId":"not-a-uuid"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "invalid_session_id", resp.Error)
}

func TestSendMessage_TruncatesLongMessage(t *testing.T) {
	fc := &fakeChat{reply: chat.Reply{SessionID: uuid.New(), Text: "ok"}}
	srv := newTestServer(t, fc)

	long := strings.Repeat("a", 3000)
	w := postMessage(t, srv, `{"message":"`+long+`"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, fc.gotMsg, 2000)
}

func TestSendMessage_UnknownSession(t *testing.T) {
	fc := &fakeChat{err: store.ErrConversationNotFound}
	srv := newTestServer(t, fc)

	w := postMessage(t, srv, `{"message":"hi","sessionId":"`+uuid.NewString()+`"}`)

	assert.Equal(t, http.StatusNotFound, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "session_not_found", resp.Error)
}

func TestSendMessage_ServiceError(t *testing.T) {
	fc := &fakeChat{err: assert.AnError}
	srv := newTestServer(t, fc)

	w := postMessage(t, srv, `{"message":"hi"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHistory(t *testing.T) {
	sessionID := uuid.New()
	now := time.Now().UTC()
	fc := &fakeChat{turns: []store.Turn{
		{ID: uuid.New(), Role: store.RoleUser, Text: "hi", CreatedAt: now},
		{ID: uuid.New(), Role: store.RoleAgent, Text: "hello", CreatedAt: now.Add(time.Second)},
	}}
	srv := newTestServer(t, fc)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/chat/history?sessionId="+sessionID.String(), nil)
	srv.Handler().ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)

	var resp historyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, sessionID.String(), resp.SessionID)
	require.Len(t, resp.Turns, 2)
	assert.Equal(t, "hi", resp.Turns[0].Text)
	assert.Equal(t, store.RoleAgent, resp.Turns[1].Role)
}

func TestHistory_EmptyIsArray(t *testing.T) {
	fc := &fakeChat{turns: nil}
	srv := newTestServer(t, fc)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/chat/history?sessionId="+uuid.NewString(), nil)
	srv.Handler().ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"turns":[]`)
}

func TestHistory_MissingSessionID(t *testing.T) {
	srv := newTestServer(t, &fakeChat{})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/chat/history", nil)
	srv.Handler().ServeHTTP(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHistory_InvalidSessionID(t *testing.T) {
	srv := newTestServer(t, &fakeChat{})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/chat/history?sessionId=nope", nil)
	srv.Handler().ServeHTTP(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
