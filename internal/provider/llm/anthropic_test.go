package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxgo-dev/voxgo/internal/provider"
	"github.com/voxgo-dev/voxgo/pkg/config"
)

func minimalConfig() *config.Config {
	return &config.Config{}
}

func TestAnthropicComplete(t *testing.T) {
	var gotReq anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/messages", r.URL.Path)
		require.Equal(t, "test-key", r.Header.Get("x-api-key"))
		require.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":    "msg_test",
			"model": anthropicDefaultModel,
			"content": []map[string]string{
				{"type": "text", "text": "We're open 9 to 5."},
			},
			"stop_reason": "end_turn",
			"usage":       map[string]int{"input_tokens": 10, "output_tokens": 8},
		})
	}))
	defer srv.Close()

	p := NewAnthropicProvider("test-key", srv.URL)
	resp, err := p.Complete(context.Background(), Request{
		Messages: []Message{
			{Role: "system", Content: "be helpful"},
			{Role: "user", Content: "What are your hours?"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "We're open 9 to 5.", resp.Content)
	assert.Equal(t, "anthropic", resp.Provider)
	assert.Equal(t, 18, resp.Usage.TotalTokens)

	// The system instruction rides outside the message list.
	assert.Equal(t, "be helpful", gotReq.System)
	require.Len(t, gotReq.Messages, 1)
	assert.Equal(t, "user", gotReq.Messages[0].Role)
}

func TestAnthropicRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"type": "rate_limit_error", "message": "slow down"},
		})
	}))
	defer srv.Close()

	p := NewAnthropicProvider("test-key", srv.URL)
	_, err := p.Complete(context.Background(), Request{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})

	var invErr *provider.InvocationError
	require.True(t, errors.As(err, &invErr))
	assert.Equal(t, provider.ErrorCodeRateLimit, invErr.Code)
	assert.True(t, invErr.IsRetryable)
	assert.Equal(t, "slow down", invErr.Message)
}

func TestAnthropicEmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "msg_test",
			"content": []map[string]string{},
			"usage":   map[string]int{},
		})
	}))
	defer srv.Close()

	p := NewAnthropicProvider("test-key", srv.URL)
	_, err := p.Complete(context.Background(), Request{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})

	var invErr *provider.InvocationError
	require.True(t, errors.As(err, &invErr))
	assert.Equal(t, provider.ErrorCodeEmptyResponse, invErr.Code)
}
