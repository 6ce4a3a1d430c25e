package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/voxgo-dev/voxgo/internal/provider"
	"github.com/voxgo-dev/voxgo/pkg/config"
)

const (
	elevenLabsBaseURL      = "https://api.elevenlabs.io/v1"
	elevenLabsDefaultVoice = "rachel"
	elevenLabsModel        = "eleven_turbo_v2_5"
)

func init() {
	RegisterFactory("elevenlabs", func(cfg *config.Config) (Synthesizer, error) {
		apiKey := cfg.ElevenLabsKey
		if apiKey == "" {
			apiKey = os.Getenv("ELEVENLABS_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("ELEVENLABS_API_KEY not set")
		}
		return NewElevenLabsSynthesizer(apiKey, ""), nil
	})
}

// ElevenLabsSynthesizer implements Synthesizer for the ElevenLabs API
type ElevenLabsSynthesizer struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewElevenLabsSynthesizer creates a new ElevenLabs synthesizer. baseURL
// overrides the API endpoint (used in tests).
func NewElevenLabsSynthesizer(apiKey, baseURL string) *ElevenLabsSynthesizer {
	if baseURL == "" {
		baseURL = elevenLabsBaseURL
	}
	return &ElevenLabsSynthesizer{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

// Name returns the provider name
func (s *ElevenLabsSynthesizer) Name() string {
	return "elevenlabs"
}

// Native reports whether synthesis rides on the telephony platform
func (s *ElevenLabsSynthesizer) Native() bool {
	return false
}

type elevenLabsRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

// Synthesize converts text to MP3 audio via the ElevenLabs REST API
func (s *ElevenLabsSynthesizer) Synthesize(ctx context.Context, text, voice string) (*Audio, error) {
	if voice == "" {
		voice = elevenLabsDefaultVoice
	}

	body, err := json.Marshal(elevenLabsRequest{
		Text:    text,
		ModelID: elevenLabsModel,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/text-to-speech/%s", s.baseURL, voice)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("xi-api-key", s.apiKey)
	httpReq.Header.Set("Accept", "audio/mpeg")

	start := time.Now()
	httpResp, err := s.client.Do(httpReq)
	latency := time.Since(start)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, provider.NewInvocationError(s.Name(), provider.ErrorCodeTimeout, "request timed out", err)
		}
		return nil, provider.NewInvocationError(s.Name(), provider.ErrorCodeServerError, err.Error(), err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	if httpResp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(httpResp.Body, 512))
		return nil, provider.NewInvocationError(s.Name(), provider.CodeForStatus(httpResp.StatusCode), string(msg), nil)
	}

	data, err := io.ReadAll(httpResp.Body)
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
