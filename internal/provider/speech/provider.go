// Package speech defines the speech-synthesis provider interface and the
// vendor adapters behind it.
package speech

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/voxgo-dev/voxgo/pkg/config"
)

// Synthesizer defines the interface for speech-synthesis vendors
type Synthesizer interface {
	// Synthesize converts text to audio with the given voice.
	// Voice may be empty, selecting the provider default.
	Synthesize(ctx context.Context, text, voice string) (*Audio, error)

	// Name returns the provider id (e.g., "elevenlabs", "openai")
	Name() string

	// Native reports whether synthesis rides on the telephony platform.
	// Native providers return no audio bytes, only a voice directive,
	// and are always available.
	Native() bool
}

// Audio is a synthesized utterance
type Audio struct {
	// Data is the raw audio. Empty for native providers.
	Data []byte `json:"-"`

	// MIME is the audio content type ("audio/mpeg", ...).
	MIME string `json:"mime"`

	// Provider is the id of the vendor that produced the audio.
	Provider string `json:"provider"`

	// Voice is the voice that was used.
	Voice string `json:"voice"`

	// Latency is the wall-clock duration of the vendor round-trip.
	Latency time.Duration `json:"latency"`
}

// Factory creates a synthesizer from the loaded configuration.
type Factory func(cfg *config.Config) (Synthesizer, error)

var (
	factories = make(map[string]Factory)
	mu        sync.RWMutex
)

// RegisterFactory registers a synthesizer factory under an id.
// Adapters call this from init().
func RegisterFactory(name string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()

	if factory == nil {
		panic("speech: RegisterFactory factory is nil")
	}
	if _, dup := factories[name]; dup {
		panic("speech: RegisterFactory called twice for provider " + name)
	}
	factories[name] = factory
}

// New creates a synthesizer by id using its registered factory.
func New(name string, cfg *config.Config) (Synthesizer, error) {
	mu.RLock()
	factory, ok := factories[name]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("speech provider '%s' not registered", name)
	}
	return factory(cfg)
}
