// Package chat adapts inbound text-channel messages onto the same
// session store and model router the voice channel uses.
package chat

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/voxgo-dev/voxgo/internal/agents"
	"github.com/voxgo-dev/voxgo/internal/provider/llm"
	"github.com/voxgo-dev/voxgo/internal/route"
	"github.com/voxgo-dev/voxgo/pkg/config"
	"github.com/voxgo-dev/voxgo/pkg/session"
)

// Message is one inbound text-channel message.
type Message struct {
	// Sender is the external identity (chat id, handle).
	Sender string `json:"sender"`
	// Text is the message body.
	Text string `json:"text"`
	// AgentID optionally selects the persona; empty uses the default.
	AgentID string `json:"agent_id,omitempty"`
	// Provider optionally pins a model provider for this message; empty
	// defers to the routing configuration.
	Provider string `json:"provider,omitempty"`
}

// Reply is the agent's answer to one inbound message.
type Reply struct {
	Text     string `json:"text"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
	AgentID  string `json:"agent_id"`
}

// Completer produces the next assistant utterance for a channel.
// Satisfied by route.ModelRouter.
type Completer interface {
	Complete(ctx context.Context, channel, preferred string, req llm.Request) (*llm.Response, *route.Decision, error)
}

// Adapter handles the text-chat channel.
type Adapter struct {
	cfg      *config.Config
	agents   *agents.Registry
	sessions session.Store
	models   Completer
}

// NewAdapter wires the chat adapter.
func NewAdapter(cfg *config.Config, reg *agents.Registry, sessions session.Store, models Completer) *Adapter {
	return &Adapter{cfg: cfg, agents: reg, sessions: sessions, models: models}
}

// HandleMessage answers one inbound message, threading the session
// transcript through the model so the conversation has memory.
func (a *Adapter) HandleMessage(ctx context.Context, msg Message) (*Reply, error) {
	text := strings.TrimSpace(msg.Text)
	if msg.Sender == "" || text == "" {
		return nil, fmt.Errorf("sender and text are required")
	}

	profile, err := a.agents.Get(msg.AgentID)
	if err != nil {
		profile = a.agents.ResolveByNumber("", a.cfg.Agents.DefaultID)
	}

	sess, err := a.sessions.GetOrCreate(ctx, session.ChannelChat, msg.Sender)
	if err != nil {
		return nil, fmt.Errorf("load chat session: %w", err)
	}

	messages := []llm.Message{{Role: "system", Content: profile.Instructions}}
	for _, t := range sess.Transcript {
		messages = append(messages, llm.Message{Role: t.Role, Content: t.Text})
	}
	messages = append(messages, llm.Message{Role: "user", Content: text})

	resp, decision, err := a.models.Complete(ctx, session.ChannelChat, msg.Provider, llm.Request{Messages: messages})
	if err != nil {
		return nil, err
	}
	if decision.Fallback {
		log.Printf("[Chat %s] answered by fallback provider %s", msg.Sender, decision.Provider)
	}

	now := time.Now()
	_ = a.sessions.Append(ctx, session.ChannelChat, msg.Sender, session.Turn{Role: "user", Text: text, Timestamp: now})
	_ = a.sessions.Append(ctx, session.ChannelChat, msg.Sender, session.Turn{Role: "assistant", Text: resp.Content, Timestamp: now})

	return &Reply{
		Text:     resp.Content,
		Provider: resp.Provider,
		Model:    resp.Model,
		AgentID:  profile.ID,
	}, nil
}
