package llm

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/voxgo-dev/voxgo/internal/provider"
	"github.com/voxgo-dev/voxgo/pkg/config"
)

const (
	xaiBaseURL      = "https://api.x.ai/v1"
	xaiDefaultModel = "grok-2-latest"
)

func init() {
	RegisterFactory("xai", func(cfg *config.Config) (Provider, error) {
		apiKey := cfg.XAIKey
		if apiKey == "" {
			apiKey = os.Getenv("XAI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("XAI_API_KEY not set")
		}
		return NewXAIProvider(apiKey, ""), nil
	})
}

// XAIProvider implements Provider for the X.AI (Grok) API, which is
// OpenAI-compatible.
type XAIProvider struct {
	client *openai.Client
}

// NewXAIProvider creates a new X.AI provider
func NewXAIProvider(apiKey, baseURL string) *XAIProvider {
	if baseURL == "" {
		baseURL = xaiBaseURL
	}
	clientCfg := openai.DefaultConfig(apiKey)
	clientCfg.BaseURL = baseURL
	return &XAIProvider{
		client: openai.NewClientWithConfig(clientCfg),
	}
}

// Name returns the provider name
func (p *XAIProvider) Name() string {
	return "xai"
}

// Complete sends the conversation to the Grok chat completions API
func (p *XAIProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = xaiDefaultModel
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	start := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
	})
	latency := time.Since(start)

	if err != nil {
		return nil, normalizeOpenAIError(p.Name(), err)
	}
	if len(resp.Choices) == 0 {
		return nil, provider.NewInvocationError(p.Name(), provider.ErrorCodeEmptyResponse, "no choices in response", nil)
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return nil, provider.NewInvocationError(p.Name(), provider.ErrorCodeEmptyResponse, "empty completion content", nil)
	}

	return &Response{
		Content:  content,
		Provider: p.Name(),
		Model:    model,
		Latency:  latency,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}
