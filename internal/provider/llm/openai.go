package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/voxgo-dev/voxgo/internal/provider"
	"github.com/voxgo-dev/voxgo/pkg/config"
)

const openaiDefaultModel = "gpt-4o-mini"

func init() {
	RegisterFactory("openai", func(cfg *config.Config) (Provider, error) {
		apiKey := cfg.OpenAIKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY not set")
		}
		return NewOpenAIProvider(apiKey, ""), nil
	})
}

// OpenAIProvider implements Provider using the OpenAI chat API
type OpenAIProvider struct {
	client *openai.Client
}

// NewOpenAIProvider creates a new OpenAI provider. baseURL overrides the
// API endpoint (used in tests).
func NewOpenAIProvider(apiKey, baseURL string) *OpenAIProvider {
	clientCfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientCfg.BaseURL = baseURL
	}
	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientCfg),
	}
}

// Name returns the provider name
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Complete sends the conversation to the OpenAI chat completions API
func (p *OpenAIProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = openaiDefaultModel
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

// normalizeOpenAIError maps go-openai errors onto the common taxonomy.
// Shared with the xai adapter, which speaks the same API.
func normalizeOpenAIError(name string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code := provider.CodeForStatus(apiErr.HTTPStatusCode)
		return provider.NewInvocationError(name, code, apiErr.Message, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return provider.NewInvocationError(name, provider.ErrorCodeTimeout, "request timed out", err)
	}
	return provider.NewInvocationError(name, provider.ErrorCodeUnknown, err.Error(), err)
}
