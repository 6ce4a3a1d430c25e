package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/voxgo-dev/voxgo/internal/provider"
	"github.com/voxgo-dev/voxgo/pkg/config"
)

const openaiDefaultVoice = "alloy"

func init() {
	RegisterFactory("openai", func(cfg *config.Config) (Synthesizer, error) {
		apiKey := cfg.OpenAIKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY not set")
		}
		return NewOpenAISynthesizer(apiKey, ""), nil
	})
}

// OpenAISynthesizer implements Synthesizer using the OpenAI speech API
type OpenAISynthesizer struct {
	client *openai.Client
}

// NewOpenAISynthesizer creates a new OpenAI TTS synthesizer. baseURL
// overrides the API endpoint (used in tests).
func NewOpenAISynthesizer(apiKey, baseURL string) *OpenAISynthesizer {
	clientCfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientCfg.BaseURL = baseURL
	}
	return &OpenAISynthesizer{
		client: openai.NewClientWithConfig(clientCfg),
	}
}

// Name returns the provider name
func (s *OpenAISynthesizer) Name() string {
	return "openai"
}

// Native reports whether synthesis rides on the telephony platform
func (s *OpenAISynthesizer) Native() bool {
	return false
}

// Synthesize converts text to MP3 audio via the OpenAI speech API
func (s *OpenAISynthesizer) Synthesize(ctx context.Context, text, voice string) (*Audio, error) {
	if voice == "" {
		voice = openaiDefaultVoice
	}

	start := time.Now()
	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.TTSModel1,
		Input:          text,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	latency := time.Since(start)

	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return nil, provider.NewInvocationError(s.Name(), provider.CodeForStatus(apiErr.HTTPStatusCode), apiErr.Message, err)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, provider.NewInvocationError(s.Name(), provider.ErrorCodeTimeout, "request timed out", err)
		}
		return nil, provider.NewInvocationError(s.Name(), provider.ErrorCodeUnknown, err.Error(), err)
	}
	defer func() { _ = resp.Close() }()

	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, provider.NewInvocationError(s.Name(), provider.ErrorCodeServerError, "failed to read audio body", err)
	}
	if len(data) == 0 {
		return nil, provider.NewInvocationError(s.Name(), provider.ErrorCodeEmptyResponse, "empty audio response", nil)
	}

	return &Audio{
		Data:     data,
		MIME:     "audio/mpeg",
		Provider: s.Name(),
		Voice:    voice,
		Latency:  latency,
	}, nil
}
