// Package llm defines the language-model provider interface and the
// vendor adapters behind it. Each adapter normalizes its vendor's
// request/response shapes into the common Request/Response types.
package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/voxgo-dev/voxgo/pkg/config"
)

// Provider defines the interface for language-model vendors
type Provider interface {
	// Complete sends the conversation and returns the next assistant turn.
	Complete(ctx context.Context, req Request) (*Response, error)

	// Name returns the provider id (e.g., "openai", "anthropic")
	Name() string
}

// Message represents a chat message
type Message struct {
	Role    string `json:"role"`    // "system", "user", "assistant"
	Content string `json:"content"` // The message content
}

// Request represents a completion request
type Request struct {
	// Messages is the conversation history, system instruction first.
	Messages []Message `json:"messages"`

	// Model is the model to use; empty selects the provider default.
	Model string `json:"model,omitempty"`

	// Temperature controls randomness (0.0-2.0)
	Temperature float64 `json:"temperature,omitempty"`

	// MaxTokens is the maximum number of tokens to generate
	MaxTokens int `json:"max_tokens,omitempty"`
}

// Response represents a completion response
type Response struct {
	// Content is the generated text
	Content string `json:"content"`

	// Provider is the id of the vendor that produced the response.
	Provider string `json:"provider"`

	// Model is the model that produced the response.
	Model string `json:"model"`

	// Latency is the wall-clock duration of the vendor round-trip.
	Latency time.Duration `json:"latency"`

	// Usage contains token usage information
	Usage Usage `json:"usage"`
}

// Usage represents token usage information
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Factory creates a provider from the loaded configuration.
type Factory func(cfg *config.Config) (Provider, error)

var (
	factories = make(map[string]Factory)
	mu        sync.RWMutex
)

// RegisterFactory registers a provider factory under an id.
// Adapters call this from init().
func RegisterFactory(name string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()

	if factory == nil {
		panic("llm: RegisterFactory factory is nil")
	}
	if _, dup := factories[name]; dup {
		panic("llm: RegisterFactory called twice for provider " + name)
	}
	factories[name] = factory
}

// New creates a provider by id using its registered factory.
func New(name string, cfg *config.Config) (Provider, error) {
	mu.RLock()
	factory, ok := factories[name]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("llm provider '%s' not registered", name)
	}
	return factory(cfg)
}

// Registered returns the ids of all registered factories.
func Registered() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	return names
}
