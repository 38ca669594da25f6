package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spurstore/supportchat/internal/log"
	"github.com/spurstore/supportchat/internal/store"
)

// fakeStore is an in-memory Store with per-operation failure injection.
type fakeStore struct {
	mu      sync.Mutex
	convos  map[uuid.UUID]bool
	turns   map[uuid.UUID][]store.Turn
	created int

	failAppendRole store.Role // AppendTurn fails for this role when set
	appendErr      error
	recentErr      error
	lastLimit      int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		convos: make(map[uuid.UUID]bool),
		turns:  make(map[uuid.UUID][]store.Turn),
	}
}

func (f *fakeStore) ResolveOrCreate(_ context.Context, existing *uuid.UUID) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing != nil {
		return *existing, nil
	}
	id := uuid.New()
	f.convos[id] = true
	f.created++
	return id, nil
}

func (f *fakeStore) AppendTurn(_ context.Context, conversationID uuid.UUID, role store.Role, text string) (store.Turn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil && role == f.failAppendRole {
		return store.Turn{}, f.appendErr
	}
	if !f.convos[conversationID] {
		return store.Turn{}, store.ErrConversationNotFound
	}
	turn := store.Turn{
		ID:             uuid.New(),
		ConversationID: conversationID,
		Role:           role,
		Text:           text,
		CreatedAt:      time.Now(),
	}
	f.turns[conversationID] = append(f.turns[conversationID], turn)
	return turn, nil
}

func (f *fakeStore) RecentTurns(_ context.Context, conversationID uuid.UUID, limit int) ([]store.Turn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.recentErr != nil {
		return nil, f.recentErr
	}
	f.lastLimit = limit
	all := f.turns[conversationID]
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]store.Turn, len(all))
	copy(out, all)
	return out, nil
}

func (f *fakeStore) AllTurns(_ context.Context, conversationID uuid.UUID) ([]store.Turn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]store.Turn, len(f.turns[conversationID]))
	copy(out, f.turns[conversationID])
	return out, nil
}

// fakeGenerator records prompts and returns a canned reply or error.
type fakeGenerator struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts []string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func newTestService(t *testing.T, st Store, gen Generator) *Service {
	t.Helper()
	svc, err := NewService(st, gen, Config{
		Persona:       "You are TestStore support.",
		HistoryWindow: 12,
	}, log.NewNop())
	require.NoError(t, err)
	return svc
}

func TestSendMessage_NewSessionCreatesOneConversation(t *testing.T) {
	st := newFakeStore()
	gen := &fakeGenerator{reply: "Hello! How can I help?"}
	svc := newTestService(t, st, gen)

	reply, err := svc.SendMessage(context.Background(), "Hi", nil)

	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, reply.SessionID)
	assert.Equal(t, 1, st.created)
	assert.Equal(t, "Hello! How can I help?", reply.Text)
}

func TestSendMessage_ExistingSessionCreatesNoConversation(t *testing.T) {
	st := newFakeStore()
	gen := &fakeGenerator{reply: "Sure."}
	svc := newTestService(t, st, gen)

	first, err := svc.SendMessage(context.Background(), "Hi", nil)
	require.NoError(t, err)
	require.Equal(t, 1, st.created)

	second, err := svc.SendMessage(context.Background(), "What about returns?", &first.SessionID)
	require.NoError(t, err)

	assert.Equal(t, first.SessionID, second.SessionID)
	assert.Equal(t, 1, st.created)
}

func TestSendMessage_AppendsUserThenAgentInOrder(t *testing.T) {
	st := newFakeStore()
	gen := &fakeGenerator{reply: "We offer a 7-day return window."}
	svc := newTestService(t, st, gen)

	reply, err := svc.SendMessage(context.Background(), "What about returns?", nil)
	require.NoError(t, err)

	history, err := svc.History(context.Background(), reply.SessionID)
	require.NoError(t, err)
	require.Len(t, history, 2)

	assert.Equal(t, store.RoleUser, history[0].Role)
	assert.Equal(t, "What about returns?", history[0].Text)
	assert.Equal(t, store.RoleAgent, history[1].Role)
	assert.Equal(t, "We offer a 7-day return window.", history[1].Text)
}

func TestSendMessage_HistoryGrowsAcrossExchanges(t *testing.T) {
	st := newFakeStore()
	gen := &fakeGenerator{reply: "Answer."}
	svc := newTestService(t, st, gen)

	first, err := svc.SendMessage(context.Background(), "Hi", nil)
	require.NoError(t, err)

	before, err := svc.History(context.Background(), first.SessionID)
	require.NoError(t, err)
	require.Len(t, before, 2)

	_, err = svc.SendMessage(context.Background(), "What about returns?", &first.SessionID)
	require.NoError(t, err)

	after, err := svc.History(context.Background(), first.SessionID)
	require.NoError(t, err)
	require.Len(t, after, 4)

	// Prior turns are unchanged; new turns are appended at the end.
	for i := range before {
		assert.Equal(t, before[i].ID, after[i].ID)
		assert.Equal(t, before[i].Text, after[i].Text)
	}
	assert.Equal(t, "What about returns?", after[2].Text)
	assert.Equal(t, store.RoleAgent, after[3].Role)
}

func TestSendMessage_GenerationFailureYieldsPersistedFallback(t *testing.T) {
	st := newFakeStore()
	gen := &fakeGenerator{err: errors.New("generation failed: connection refused")}
	svc := newTestService(t, st, gen)

	reply, err := svc.SendMessage(context.Background(), "Hi", nil)

	// The request succeeds despite the generation failure.
	require.NoError(t, err)
	assert.Equal(t, FallbackReply, reply.Text)

	history, err := svc.History(context.Background(), reply.SessionID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "Hi", history[0].Text)
	// The exact fallback text is what history records.
	assert.Equal(t, FallbackReply, history[1].Text)
}

func TestSendMessage_UserTurnPersistedBeforeGeneration(t *testing.T) {
	st := newFakeStore()
	gen := &fakeGenerator{err: errors.New("boom")}
	svc := newTestService(t, st, gen)

	reply, err := svc.SendMessage(context.Background(), "Hi", nil)
	require.NoError(t, err)

	history, err := svc.History(context.Background(), reply.SessionID)
	require.NoError(t, err)
	require.NotEmpty(t, history)
	assert.Equal(t, store.RoleUser, history[0].Role)
	assert.Equal(t, "Hi", history[0].Text)
}

func TestSendMessage_StoreFailuresPropagate(t *testing.T) {
	t.Run("user turn append fails", func(t *testing.T) {
		st := newFakeStore()
		st.failAppendRole = store.RoleUser
		st.appendErr = errors.New("connection lost")
		gen := &fakeGenerator{reply: "unused"}
		svc := newTestService(t, st, gen)

		_, err := svc.SendMessage(context.Background(), "Hi", nil)

		require.Error(t, err)
		// Generation is never attempted when the user turn cannot be saved.
		assert.Empty(t, gen.prompts)
	})

	t.Run("agent turn append fails", func(t *testing.T) {
		st := newFakeStore()
		st.failAppendRole = store.RoleAgent
		st.appendErr = errors.New("connection lost")
		gen := &fakeGenerator{reply: "Hello"}
		svc := newTestService(t, st, gen)

		_, err := svc.SendMessage(context.Background(), "Hi", nil)
		assert.Error(t, err)
	})

	t.Run("window fetch fails", func(t *testing.T) {
		st := newFakeStore()
		st.recentErr = errors.New("connection lost")
		gen := &fakeGenerator{reply: "unused"}
		svc := newTestService(t, st, gen)

		_, err := svc.SendMessage(context.Background(), "Hi", nil)

		require.Error(t, err)
		assert.Empty(t, gen.prompts)
	})

	t.Run("unknown session id surfaces not-found", func(t *testing.T) {
		st := newFakeStore()
		gen := &fakeGenerator{reply: "unused"}
		svc := newTestService(t, st, gen)

		bogus := uuid.New()
		_, err := svc.SendMessage(context.Background(), "Hi", &bogus)

		assert.ErrorIs(t, err, store.ErrConversationNotFound)
	})
}

func TestSendMessage_PromptShape(t *testing.T) {
	st := newFakeStore()
	gen := &fakeGenerator{reply: "ok"}
	svc := newTestService(t, st, gen)

	_, err := svc.SendMessage(context.Background(), "Hi", nil)
	require.NoError(t, err)

	require.Len(t, gen.prompts, 1)
	prompt := gen.prompts[0]

	assert.True(t, strings.HasPrefix(prompt, "You are TestStore support.\n\n"))
	assert.True(t, strings.HasSuffix(prompt, "User: Hi\nAgent:"))
}

func TestSendMessage_WindowBoundsContext(t *testing.T) {
	st := newFakeStore()
	gen := &fakeGenerator{reply: "ok"}
	svc, err := NewService(st, gen, Config{Persona: "P.", HistoryWindow: 3}, log.NewNop())
	require.NoError(t, err)

	first, err := svc.SendMessage(context.Background(), "one", nil)
	require.NoError(t, err)
	for _, msg := range []string{"two", "three", "four", "five"} {
		_, err = svc.SendMessage(context.Background(), msg, &first.SessionID)
		require.NoError(t, err)
	}

	assert.Equal(t, 3, st.lastLimit)

	// The final prompt carries at most 3 history lines between the header
	// and the new user line.
	last := gen.prompts[len(gen.prompts)-1]
	lines := strings.Split(last, "\n")
	// Fixed lines: persona, blank, header, trailing user line, cue.
	historyLines := len(lines) - 5
	assert.LessOrEqual(t, historyLines, 3)
}

func TestNewService_Validation(t *testing.T) {
	st := newFakeStore()
	gen := &fakeGenerator{}

	tests := []struct {
		name string
		st   Store
		gen  Generator
		cfg  Config
	}{
		{"nil store", nil, gen, Config{Persona: "p", HistoryWindow: 12}},
		{"nil generator", st, nil, Config{Persona: "p", HistoryWindow: 12}},
		{"empty persona", st, gen, Config{HistoryWindow: 12}},
		{"zero window", st, gen, Config{Persona: "p"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewService(tt.st, tt.gen, tt.cfg, log.NewNop())
			assert.Error(t, err)
		})
	}
}

func TestHistory_ReturnsAllTurns(t *testing.T) {
	st := newFakeStore()
	gen := &fakeGenerator{reply: "r"}
	svc := newTestService(t, st, gen)

	first, err := svc.SendMessage(context.Background(), "one", nil)
	require.NoError(t, err)
	_, err = svc.SendMessage(context.Background(), "two", &first.SessionID)
	require.NoError(t, err)

	history, err := svc.History(context.Background(), first.SessionID)
	require.NoError(t, err)
	assert.Len(t, history, 4)
}
