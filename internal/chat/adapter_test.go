package chat

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxgo-dev/voxgo/internal/agents"
	"github.com/voxgo-dev/voxgo/internal/provider/llm"
	"github.com/voxgo-dev/voxgo/internal/route"
	"github.com/voxgo-dev/voxgo/pkg/config"
	"github.com/voxgo-dev/voxgo/pkg/session"
)

type stubCompleter struct {
	reply     string
	err       error
	fallback  bool
	requests  []llm.Request
	preferred []string
}

func (s *stubCompleter) Complete(_ context.Context, _ string, preferred string, req llm.Request) (*llm.Response, *route.Decision, error) {
	s.requests = append(s.requests, req)
	s.preferred = append(s.preferred, preferred)
	if s.err != nil {
		return nil, nil, s.err
	}
	return &llm.Response{Content: s.reply, Provider: "stub", Model: "stub-1"},
		&route.Decision{Provider: "stub", Fallback: s.fallback}, nil
}

func newTestAdapter(t *testing.T, models *stubCompleter) *Adapter {
	t.Helper()

	cfg := config.Default()
	cfg.Agents.DefaultID = "sales"
	cfg.Agents.File = filepath.Join(t.TempDir(), "agents.yaml")

	reg, err := agents.NewRegistry(agents.NewFileStore(cfg.Agents.File), []agents.Profile{{
		ID:           "sales",
		Name:         "Sales Assistant",
		Instructions: "You are a sales assistant.",
		Active:       true,
	}})
	require.NoError(t, err)

	sessions := session.NewMemoryStore()
	t.Cleanup(func() { _ = sessions.Close() })

	return NewAdapter(cfg, reg, sessions, models)
}

func TestHandleMessage(t *testing.T) {
	models := &stubCompleter{reply: "We close at five."}
	a := newTestAdapter(t, models)

	reply, err := a.HandleMessage(context.Background(), Message{
		Sender: "user-7",
		Text:   "what time do you close",
	})
	require.NoError(t, err)

	assert.Equal(t, "We close at five.", reply.Text)
	assert.Equal(t, "stub", reply.Provider)
	assert.Equal(t, "sales", reply.AgentID)

	require.Len(t, models.requests, 1)
	msgs := models.requests[0].Messages
	require.NotEmpty(t, msgs)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Equal(t, "You are a sales assistant.", msgs[0].Content)
	assert.Equal(t, "what time do you close", msgs[len(msgs)-1].Content)
}

func TestHandleMessageThreadsHistory(t *testing.T) {
	models := &stubCompleter{reply: "ok"}
	a := newTestAdapter(t, models)

	_, err := a.HandleMessage(context.Background(), Message{Sender: "user-7", Text: "first"})
	require.NoError(t, err)
	_, err = a.HandleMessage(context.Background(), Message{Sender: "user-7", Text: "second"})
	require.NoError(t, err)

	// The second request carries the first exchange.
	require.Len(t, models.requests, 2)
	msgs := models.requests[1].Messages
	require.Len(t, msgs, 4) // system, user, assistant, user
	assert.Equal(t, "first", msgs[1].Content)
	assert.Equal(t, "ok", msgs[2].Content)
	assert.Equal(t, "second", msgs[3].Content)
}

func TestHandleMessageSeparateSenders(t *testing.T) {
	models := &stubCompleter{reply: "ok"}
	a := newTestAdapter(t, models)

	_, err := a.HandleMessage(context.Background(), Message{Sender: "alice", Text: "hello from alice"})
	require.NoError(t, err)
	_, err = a.HandleMessage(context.Background(), Message{Sender: "bob", Text: "hello from bob"})
	require.NoError(t, err)

	// Bob's request must not contain Alice's transcript.
	msgs := models.requests[1].Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello from bob", msgs[1].Content)
}

func TestHandleMessageValidation(t *testing.T) {
	a := newTestAdapter(t, &stubCompleter{reply: "ok"})

	_, err := a.HandleMessage(context.Background(), Message{Sender: "", Text: "hi"})
	assert.Error(t, err)

	_, err = a.HandleMessage(context.Background(), Message{Sender: "user-7", Text: "   "})
	assert.Error(t, err)
}

func TestHandleMessageModelFailure(t *testing.T) {
	models := &stubCompleter{err: errors.New("all providers down")}
	a := newTestAdapter(t, models)

	_, err := a.HandleMessage(context.Background(), Message{Sender: "user-7", Text: "hi"})
	require.Error(t, err)

	// A failed exchange leaves no trace in the transcript.
	models.err = nil
	models.reply = "ok"
	_, err = a.HandleMessage(context.Background(), Message{Sender: "user-7", Text: "again"})
	require.NoError(t, err)
	require.Len(t, models.requests, 2)
	assert.Len(t, models.requests[1].Messages, 2) // system + user only
}

func TestHandleMessagePinsProvider(t *testing.T) {
	models := &stubCompleter{reply: "ok"}
	a := newTestAdapter(t, models)

	_, err := a.HandleMessage(context.Background(), Message{
		Sender:   "user-7",
		Text:     "hi",
		Provider: "anthropic",
	})
	require.NoError(t, err)

	require.Len(t, models.preferred, 1)
	assert.Equal(t, "anthropic", models.preferred[0])
}

func TestHandleMessageUnknownAgentFallsBack(t *testing.T) {
	models := &stubCompleter{reply: "ok"}
	a := newTestAdapter(t, models)

	reply, err := a.HandleMessage(context.Background(), Message{
		Sender:  "user-7",
		Text:    "hi",
		AgentID: "nonexistent",
	})
	require.NoError(t, err)
	assert.Equal(t, "sales", reply.AgentID)
}
