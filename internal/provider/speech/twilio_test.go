package speech

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxgo-dev/voxgo/pkg/config"
)

func TestTwilioPassthrough(t *testing.T) {
	s := NewTwilioSynthesizer()
	require.True(t, s.Native())

	got, err := s.Synthesize(context.Background(), "Hello there", "Polly.Matthew")
	require.NoError(t, err)

	// Native synthesis carries no audio bytes; the platform speaks the text.
	assert.Empty(t, got.Data)
	assert.Equal(t, "twilio", got.Provider)
	assert.Equal(t, "Polly.Matthew", got.Voice)
}

func TestTwilioDefaultVoice(t *testing.T) {
	s := NewTwilioSynthesizer()
	got, err := s.Synthesize(context.Background(), "hi", "")
	require.NoError(t, err)
	assert.Equal(t, twilioDefaultVoice, got.Voice)
}

func TestNativeFactoryNeedsNoCredential(t *testing.T) {
	t.Setenv("ELEVENLABS_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")

	s, err := New("twilio", &config.Config{})
	require.NoError(t, err)
	assert.Equal(t, "twilio", s.Name())
}
