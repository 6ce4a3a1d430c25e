package speech

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
)

func TestElevenLabsSynthesize(t *testing.T) {
	audio := []byte{0xff, 0xf3, 0x01}
	var gotPath, gotKey string
	var gotReq elevenLabsRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("xi-api-key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write(audio)
	}))
	defer srv.Close()

	s := NewElevenLabsSynthesizer("test-key", srv.URL)
	got, err := s.Synthesize(context.Background(), "Hello there", "bella")
	require.NoError(t, err)

	assert.Equal(t, audio, got.Data)
	assert.Equal(t, "audio/mpeg", got.MIME)
	assert.Equal(t, "bella", got.Voice)
	assert.Equal(t, "/text-to-speech/bella", gotPath)
	assert.Equal(t, "test-key", gotKey)
	assert.Equal(t, "Hello there", gotReq.Text)
	assert.False(t, s.Native())
}

func TestElevenLabsDefaultVoice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/text-to-speech/"+elevenLabsDefaultVoice, r.URL.Path)
		_, _ = w.Write([]byte("mp3"))
	}))
	defer srv.Close()

	s := NewElevenLabsSynthesizer("test-key", srv.URL)
	got, err := s.Synthesize(context.Background(), "hi", "")
	require.NoError(t, err)
	assert.Equal(t, elevenLabsDefaultVoice, got.Voice)
}

func TestElevenLabsAuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail": "invalid api key"}`))
	}))
	defer srv.Close()

	s := NewElevenLabsSynthesizer("bad-key", srv.URL)
	_, err := s.Synthesize(context.Background(), "hi", "")

	var invErr *provider.InvocationError
	require.True(t, errors.As(err, &invErr))
	assert.Equal(t, provider.ErrorCodeAuthentication, invErr.Code)
	assert.False(t, invErr.IsRetryable)
}

func TestElevenLabsEmptyAudio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewElevenLabsSynthesizer("test-key", srv.URL)
	_, err := s.Synthesize(context.Background(), "hi", "")

	var invErr *provider.InvocationError
	require.True(t, errors.As(err, &invErr))
	assert.Equal(t, provider.ErrorCodeEmptyResponse, invErr.Code)
}
