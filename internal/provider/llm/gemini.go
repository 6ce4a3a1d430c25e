package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/voxgo-dev/voxgo/internal/provider"
	"github.com/voxgo-dev/voxgo/pkg/config"
)

const (
	geminiDefaultModel  = "gemini-2.0-flash"
	geminiClientTimeout = 30 * time.Second
)

func init() {
	RegisterFactory("gemini", func(cfg *config.Config) (Provider, error) {
		apiKey := cfg.GeminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GOOGLE_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("GOOGLE_API_KEY not set")
		}
		return NewGeminiProvider(apiKey)
	})
}

// GeminiProvider implements Provider using the Google Gen AI SDK against
// the Gemini Developer API.
type GeminiProvider struct {
	client *genai.Client
}

// NewGeminiProvider creates a new Gemini provider
func NewGeminiProvider(apiKey string) (*GeminiProvider, error) {
	ctx, cancel := context.WithTimeout(context.Background(), geminiClientTimeout)
	defer cancel()

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiProvider{client: client}, nil
}

// Name returns the provider name
func (p *GeminiProvider) Name() string {
	return "gemini"
}

// Complete sends the conversation to the Gemini generate-content API
func (p *GeminiProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = geminiDefaultModel
	}

	genCfg := &genai.GenerateContentConfig{}
	genCfg.Temperature = genai.Ptr(float32(req.Temperature))
	if req.MaxTokens > 0 && req.MaxTokens <= math.MaxInt32 {
		genCfg.MaxOutputTokens = int32(req.MaxTokens)
	}

	contents, systemInstruction := buildGeminiContents(req.Messages)
	if systemInstruction != nil {
		genCfg.SystemInstruction = systemInstruction
	}

	start := time.Now()
	resp, err := p.client.Models.GenerateContent(ctx, model, contents, genCfg)
	latency := time.Since(start)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, provider.NewInvocationError(p.Name(), provider.ErrorCodeTimeout, "request timed out", err)
		}
		return nil, provider.NewInvocationError(p.Name(), provider.ErrorCodeServerError, err.Error(), err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, provider.NewInvocationError(p.Name(), provider.ErrorCodeEmptyResponse, "no candidates in response", nil)
	}

	var content string
	if c := resp.Candidates[0].Content; c != nil {
		for _, part := range c.Parts {
			content += part.Text
		}
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, provider.NewInvocationError(p.Name(), provider.ErrorCodeEmptyResponse, "empty candidate content", nil)
	}

	var usage Usage
	if resp.UsageMetadata != nil {
		usage.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		usage.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		usage.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
	}

	return &Response{
		Content:  content,
		Provider: p.Name(),
		Model:    model,
		Latency:  latency,
		Usage:    usage,
	}, nil
}

// buildGeminiContents converts messages to Gen AI content format.
// Gemini carries the system instruction separately from the turns.
func buildGeminiContents(messages []Message) ([]*genai.Content, *genai.Content) {
	var systemInstruction *genai.Content
	contents := make([]*genai.Content, 0, len(messages))

	for _, m := range messages {
		if m.Role == "system" {
			systemInstruction = &genai.Content{
				Parts: []*genai.Part{{Text: m.Content}},
			}
			continue
		}

		role := m.Role
		if role == "assistant" {
			role = "model"
		}

		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Content}},
		})
	}

	return contents, systemInstruction
}
