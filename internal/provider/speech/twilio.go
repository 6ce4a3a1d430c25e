package speech

import (
	"context"
	"time"

	"github.com/voxgo-dev/voxgo/pkg/config"
)

const twilioDefaultVoice = "Polly.Joanna"

func init() {
	RegisterFactory("twilio", func(cfg *config.Config) (Synthesizer, error) {
		return NewTwilioSynthesizer(), nil
	})
}

// TwilioSynthesizer is the native passthrough: the telephony platform
// renders the text itself via its Say verb, so there is no synthesis
// round-trip and nothing to cache. It never fails and needs no credential
// beyond the already-verified telephony account.
type TwilioSynthesizer struct{}

// NewTwilioSynthesizer creates the native passthrough synthesizer
func NewTwilioSynthesizer() *TwilioSynthesizer {
	return &TwilioSynthesizer{}
}

// Name returns the provider name
func (s *TwilioSynthesizer) Name() string {
	return "twilio"
}

// Native reports whether synthesis rides on the telephony platform
func (s *TwilioSynthesizer) Native() bool {
	return true
}

// Synthesize returns a voice directive with no audio bytes. The caller
// passes the text and voice hint through to the platform.
func (s *TwilioSynthesizer) Synthesize(_ context.Context, _ string, voice string) (*Audio, error) {
	if voice == "" {
		voice = twilioDefaultVoice
	}
	return &Audio{
		Provider: s.Name(),
		Voice:    voice,
		Latency:  time.Duration(0),
	}, nil
}
