package route

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxgo-dev/voxgo/internal/audiocache"
	"github.com/voxgo-dev/voxgo/internal/provider"
	"github.com/voxgo-dev/voxgo/internal/provider/speech"
	"github.com/voxgo-dev/voxgo/pkg/config"
)

type stubSynthesizer struct {
	name   string
	native bool
	data   []byte
	err    error
	calls  int
}

func (s *stubSynthesizer) Name() string { return s.name }
func (s *stubSynthesizer) Native() bool { return s.native }

func (s *stubSynthesizer) Synthesize(ctx context.Context, text, voice string) (*speech.Audio, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &speech.Audio{Data: s.data, MIME: "audio/mpeg", Provider: s.name, Voice: voice}, nil
}

func newTestSpeechRouter(t *testing.T, cfg *config.Config, stubs map[string]*stubSynthesizer) *SpeechRouter {
	t.Helper()
	cache, err := audiocache.New(audiocache.Options{TTL: time.Hour, FlushInterval: time.Hour})
	require.NoError(t, err)

	r := NewSpeechRouter(cfg, provider.NewRegistry(cfg), cache)
	r.newSynthesizer = func(name string, _ *config.Config) (speech.Synthesizer, error) {
		s, ok := stubs[name]
		if !ok {
			return nil, errors.New("no stub for " + name)
		}
		return s, nil
	}
	return r
}

func TestSpeechRouterCachesSynthesis(t *testing.T) {
	cfg := testConfig(t, "elevenlabs")
	stub := &stubSynthesizer{name: "elevenlabs", data: []byte("mp3-bytes")}
	r := newTestSpeechRouter(t, cfg, map[string]*stubSynthesizer{"elevenlabs": stub})

	audio, decision, err := r.Synthesize(context.Background(), "", "rachel", "hello there")
	require.NoError(t, err)
	assert.Equal(t, []byte("mp3-bytes"), audio.Data)
	assert.False(t, decision.FromCache)

	// Second synthesis of the same text must come from the cache.
	audio, decision, err = r.Synthesize(context.Background(), "", "rachel", "hello there")
	require.NoError(t, err)
	assert.Equal(t, []byte("mp3-bytes"), audio.Data)
	assert.True(t, decision.FromCache)
	assert.Equal(t, 1, stub.calls, "cache hit must not invoke the vendor")
}

func TestSpeechRouterFallsBackToNative(t *testing.T) {
	cfg := testConfig(t, "elevenlabs")
	stubs := map[string]*stubSynthesizer{
		"elevenlabs": {name: "elevenlabs", err: errors.New("down")},
		"twilio":     {name: "twilio", native: true},
	}
	r := newTestSpeechRouter(t, cfg, stubs)

	audio, decision, err := r.Synthesize(context.Background(), "", "", "hello")
	require.NoError(t, err)
	assert.Equal(t, "twilio", audio.Provider)
	assert.True(t, decision.Fallback)
	assert.Empty(t, audio.Data, "native synthesis carries no audio bytes")
}

func TestSpeechRouterNativeBypassesCache(t *testing.T) {
	cfg := testConfig(t)
	cfg.Routing.DefaultSpeech = "twilio"
	stub := &stubSynthesizer{name: "twilio", native: true}
	r := newTestSpeechRouter(t, cfg, map[string]*stubSynthesizer{"twilio": stub})

	for i := 0; i < 2; i++ {
		_, decision, err := r.Synthesize(context.Background(), "", "Polly.Joanna", "hello")
		require.NoError(t, err)
		assert.False(t, decision.FromCache)
	}
	assert.Equal(t, 2, stub.calls, "native synthesis is never cached")
}

func TestSpeechRouterPreferredProviderFirst(t *testing.T) {
	cfg := testConfig(t, "elevenlabs", "openai")
	stubs := map[string]*stubSynthesizer{
		"elevenlabs": {name: "elevenlabs", data: []byte("el")},
		"openai":     {name: "openai", data: []byte("oa")},
	}
	r := newTestSpeechRouter(t, cfg, stubs)

	audio, _, err := r.Synthesize(context.Background(), "openai", "alloy", "hello")
	require.NoError(t, err)
	assert.Equal(t, "openai", audio.Provider)
	assert.Zero(t, stubs["elevenlabs"].calls)
}
