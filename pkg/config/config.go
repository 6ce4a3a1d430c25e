// Package config loads Voxgo runtime configuration from YAML with
// environment-variable fallback for credentials.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	// API Keys
	OpenAIKey     string `yaml:"openai_key"`
	AnthropicKey  string `yaml:"anthropic_key"`
	GeminiKey     string `yaml:"gemini_key"`
	XAIKey        string `yaml:"xai_key"`
	ElevenLabsKey string `yaml:"elevenlabs_key"`

	// Telephony platform credentials
	Telephony TelephonyConfig `yaml:"telephony"`

	// Routing configuration
	Routing RoutingConfig `yaml:"routing"`

	// Agents holds the seed agent profiles and the default agent id.
	Agents AgentsConfig `yaml:"agents"`

	// Session store configuration
	Session SessionConfig `yaml:"session"`

	// AudioCache configuration
	AudioCache AudioCacheConfig `yaml:"audio_cache"`

	// Call handling configuration
	Call CallConfig `yaml:"call"`

	// Server configuration
	Server ServerConfig `yaml:"server"`
}

// TelephonyConfig holds telephony platform (Twilio) settings
type TelephonyConfig struct {
	AccountSID string `yaml:"account_sid"`
	AuthToken  string `yaml:"auth_token"`
	// FromNumber is the source number for outbound calls.
	FromNumber string `yaml:"from_number"`
	// BaseURL overrides the Twilio API base URL (used in tests).
	BaseURL string `yaml:"base_url"`
}

// RoutingConfig holds provider selection defaults and fallback chains
type RoutingConfig struct {
	// DefaultLLM is the global default language-model provider id.
	DefaultLLM string `yaml:"default_llm"`
	// DefaultSpeech is the global default speech-synthesis provider id.
	DefaultSpeech string `yaml:"default_speech"`
	// ChannelLLM maps a channel name ("voice", "chat") to a provider id.
	ChannelLLM map[string]string `yaml:"channel_llm"`
	// LLMFallbacks is the ordered fallback chain for language models.
	LLMFallbacks []string `yaml:"llm_fallbacks"`
	// SpeechFallbacks is the ordered fallback chain for speech synthesis.
	SpeechFallbacks []string `yaml:"speech_fallbacks"`
	// ProviderTimeout bounds each individual provider invocation.
	ProviderTimeout time.Duration `yaml:"provider_timeout"`
	// HistoryWindow is the number of prior turns sent to the model.
	HistoryWindow int `yaml:"history_window"`
}

// AgentsConfig holds agent profile seed data
type AgentsConfig struct {
	// DefaultID is the profile used when no phone-number binding matches.
	DefaultID string `yaml:"default_id"`
	// File is the YAML file agent profiles are persisted to.
	File string `yaml:"file"`
	// Seed profiles loaded when the profile file does not exist yet.
	Seed []AgentProfileConfig `yaml:"seed"`
}

// AgentProfileConfig is the YAML shape of a seeded agent profile
type AgentProfileConfig struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	Description  string `yaml:"description"`
	Greeting     string `yaml:"greeting"`
	Instructions string `yaml:"instructions"`
	Voice        string `yaml:"voice"`
	PhoneNumber  string `yaml:"phone_number"`
}

// SessionConfig holds conversation-session store settings
type SessionConfig struct {
	// Backend selects the storage backend: "memory" or "redis".
	Backend string `yaml:"backend"`
	// MaxIdle is the inactivity threshold before a session is evicted.
	MaxIdle time.Duration `yaml:"max_idle"`
	// SweepInterval is how often the eviction sweep runs.
	SweepInterval time.Duration `yaml:"sweep_interval"`
	// RedisAddr is the Redis server address (backend=redis).
	RedisAddr string `yaml:"redis_addr"`
	// RedisPassword is the Redis password (optional).
	RedisPassword string `yaml:"redis_password"`
	// RedisDB is the Redis database number.
	RedisDB int `yaml:"redis_db"`
}

// AudioCacheConfig holds synthesized-audio cache settings
type AudioCacheConfig struct {
	// TTL is the maximum age of a cached entry.
	TTL time.Duration `yaml:"ttl"`
	// FlushInterval is how often the whole cache is flushed.
	FlushInterval time.Duration `yaml:"flush_interval"`
	// MaxEntries bounds the number of cached entries.
	MaxEntries int `yaml:"max_entries"`
}

// CallConfig holds call state-machine settings
type CallConfig struct {
	// MaxRecords bounds call-record retention (oldest dropped).
	MaxRecords int `yaml:"max_records"`
	// SpeechMaxChars is the hard length cap on spoken replies.
	SpeechMaxChars int `yaml:"speech_max_chars"`
	// PublicBaseURL is the externally reachable address for webhook callbacks.
	PublicBaseURL string `yaml:"public_base_url"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port        int `yaml:"port"`
	MetricsPort int `yaml:"metrics_port"`
	// RateLimit is requests per second per remote on the webhook surface.
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()

	return &cfg, nil
}

// Default returns a configuration with defaults applied and credentials
// taken from the environment.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.applyEnv()
	return cfg
}

func (cfg *Config) applyDefaults() {
	if cfg.Routing.DefaultLLM == "" {
		cfg.Routing.DefaultLLM = "openai"
	}
	if cfg.Routing.DefaultSpeech == "" {
		cfg.Routing.DefaultSpeech = "elevenlabs"
	}
	if len(cfg.Routing.LLMFallbacks) == 0 {
		cfg.Routing.LLMFallbacks = []string{"openai", "anthropic", "gemini", "xai"}
	}
	if len(cfg.Routing.SpeechFallbacks) == 0 {
		cfg.Routing.SpeechFallbacks = []string{"elevenlabs", "openai", "twilio"}
	}
	if cfg.Routing.ProviderTimeout == 0 {
		cfg.Routing.ProviderTimeout = 30 * time.Second
	}
	if cfg.Routing.HistoryWindow == 0 {
		cfg.Routing.HistoryWindow = 10
	}
	if cfg.Session.Backend == "" {
		cfg.Session.Backend = "memory"
	}
	if cfg.Session.MaxIdle == 0 {
		cfg.Session.MaxIdle = 30 * time.Minute
	}
	if cfg.Session.SweepInterval == 0 {
		cfg.Session.SweepInterval = 5 * time.Minute
	}
	if cfg.AudioCache.TTL == 0 {
		cfg.AudioCache.TTL = time.Hour
	}
	if cfg.AudioCache.FlushInterval == 0 {
		cfg.AudioCache.FlushInterval = time.Hour
	}
	if cfg.AudioCache.MaxEntries == 0 {
		cfg.AudioCache.MaxEntries = 256
	}
	if cfg.Call.MaxRecords == 0 {
		cfg.Call.MaxRecords = 1000
	}
	if cfg.Call.SpeechMaxChars == 0 {
		cfg.Call.SpeechMaxChars = 1500
	}
	if cfg.Agents.DefaultID == "" {
		cfg.Agents.DefaultID = "assistant"
	}
	if cfg.Agents.File == "" {
		cfg.Agents.File = "config/agents.yaml"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.MetricsPort == 0 {
		cfg.Server.MetricsPort = 9090
	}
	if cfg.Server.RateLimit == 0 {
		cfg.Server.RateLimit = 10
	}
	if cfg.Server.RateBurst == 0 {
		cfg.Server.RateBurst = 20
	}
}

func (cfg *Config) applyEnv() {
	if cfg.OpenAIKey == "" {
		cfg.OpenAIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.AnthropicKey == "" {
		cfg.AnthropicKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if cfg.GeminiKey == "" {
		cfg.GeminiKey = os.Getenv("GOOGLE_API_KEY")
	}
	if cfg.XAIKey == "" {
		cfg.XAIKey = os.Getenv("XAI_API_KEY")
	}
	if cfg.ElevenLabsKey == "" {
		cfg.ElevenLabsKey = os.Getenv("ELEVENLABS_API_KEY")
	}
	if cfg.Telephony.AccountSID == "" {
		cfg.Telephony.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.Telephony.AuthToken == "" {
		cfg.Telephony.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if cfg.Telephony.FromNumber == "" {
		cfg.Telephony.FromNumber = os.Getenv("TWILIO_FROM_NUMBER")
	}
}

// SaveConfig saves configuration to a YAML file
func SaveConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
