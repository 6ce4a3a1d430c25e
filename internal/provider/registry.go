// Package provider describes the language-model and speech-synthesis
// vendors Voxgo knows about. Descriptors are static; availability is
// computed fresh from configuration on every call so a credential added
// while the process is running becomes usable without a restart.
package provider

import (
	"os"

	"github.com/voxgo-dev/voxgo/pkg/config"
)

// Kind distinguishes the two provider families.
type Kind string

const (
	// KindLLM marks language-model providers.
	KindLLM Kind = "llm"
	// KindSpeech marks speech-synthesis providers.
	KindSpeech Kind = "speech"
)

// Descriptor is the static description of a single vendor.
type Descriptor struct {
	// ID is the provider identifier ("openai", "elevenlabs", ...).
	ID string
	// Name is the human-readable vendor name.
	Name string
	// Models lists supported model ids (KindLLM) or voice ids (KindSpeech).
	Models []string
	// Default is the default model or voice.
	Default string
	// EnvKey is the environment variable holding the credential.
	EnvKey string
	// Native marks a speech provider that rides on the telephony
	// platform and needs no credential of its own.
	Native bool
}

// Registry is a read-only lookup over the known providers.
type Registry struct {
	cfg    *config.Config
	llm    []Descriptor
	speech []Descriptor
}

// NewRegistry builds the registry from the static vendor catalog.
func NewRegistry(cfg *config.Config) *Registry {
	return &Registry{
		cfg: cfg,
		llm: []Descriptor{
			{
				ID:      "openai",
				Name:    "OpenAI",
				Models:  []string{"gpt-4o", "gpt-4o-mini", "gpt-4-turbo"},
				Default: "gpt-4o-mini",
				EnvKey:  "OPENAI_API_KEY",
			},
			{
				ID:      "anthropic",
				Name:    "Anthropic",
				Models:  []string{"claude-sonnet-4-20250514", "claude-3-5-haiku-20241022"},
				Default: "claude-3-5-haiku-20241022",
				EnvKey:  "ANTHROPIC_API_KEY",
			},
			{
				ID:      "gemini",
				Name:    "Google Gemini",
				Models:  []string{"gemini-2.0-flash", "gemini-1.5-pro"},
				Default: "gemini-2.0-flash",
				EnvKey:  "GOOGLE_API_KEY",
			},
			{
				ID:      "xai",
				Name:    "xAI",
				Models:  []string{"grok-2-latest", "grok-beta"},
				Default: "grok-2-latest",
				EnvKey:  "XAI_API_KEY",
			},
		},
		speech: []Descriptor{
			{
				ID:      "elevenlabs",
				Name:    "ElevenLabs",
				Models:  []string{"rachel", "adam", "bella"},
				Default: "rachel",
				EnvKey:  "ELEVENLABS_API_KEY",
			},
			{
				ID:      "openai",
				Name:    "OpenAI TTS",
				Models:  []string{"alloy", "echo", "nova", "shimmer"},
				Default: "alloy",
				EnvKey:  "OPENAI_API_KEY",
			},
			{
				ID:      "twilio",
				Name:    "Twilio Say",
				Models:  []string{"Polly.Joanna", "Polly.Matthew", "alice"},
				Default: "Polly.Joanna",
				Native:  true,
			},
		},
	}
}

// Describe returns the descriptor for a provider id, or ok=false for an
// unknown id.
func (r *Registry) Describe(kind Kind, id string) (Descriptor, bool) {
	for _, d := range r.list(kind) {
		if d.ID == id {
			return d, true
		}
	}
	return Descriptor{}, false
}

// IsAvailable reports whether the provider currently has a usable
// credential. Native providers are always available.
func (r *Registry) IsAvailable(kind Kind, id string) bool {
	d, ok := r.Describe(kind, id)
	if !ok {
		return false
	}
	if d.Native {
		return true
	}
	return r.credential(d) != ""
}

// ListAvailable returns the descriptors that currently have credentials,
// in catalog order.
func (r *Registry) ListAvailable(kind Kind) []Descriptor {
	var out []Descriptor
	for _, d := range r.list(kind) {
		if d.Native || r.credential(d) != "" {
			out = append(out, d)
		}
	}
	return out
}

// List returns every known descriptor for a kind, in catalog order.
func (r *Registry) List(kind Kind) []Descriptor {
	return append([]Descriptor(nil), r.list(kind)...)
}

func (r *Registry) list(kind Kind) []Descriptor {
	switch kind {
	case KindLLM:
		return r.llm
	case KindSpeech:
		return r.speech
	default:
		return nil
	}
}

// credential resolves the provider credential, preferring the loaded
// configuration and falling back to the live environment.
func (r *Registry) credential(d Descriptor) string {
	if r.cfg != nil {
		if key := r.configKey(d); key != "" {
			return key
		}
	}
	if d.EnvKey == "" {
		return ""
	}
	return os.Getenv(d.EnvKey)
}

func (r *Registry) configKey(d Descriptor) string {
	switch d.EnvKey {
	case "OPENAI_API_KEY":
		return r.cfg.OpenAIKey
	case "ANTHROPIC_API_KEY":
		return r.cfg.AnthropicKey
	case "GOOGLE_API_KEY":
		return r.cfg.GeminiKey
	case "XAI_API_KEY":
		return r.cfg.XAIKey
	case "ELEVENLABS_API_KEY":
		return r.cfg.ElevenLabsKey
	}
	return ""
}
