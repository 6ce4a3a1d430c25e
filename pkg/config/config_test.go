package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "openai", cfg.Routing.DefaultLLM)
	assert.Equal(t, "elevenlabs", cfg.Routing.DefaultSpeech)
	assert.Equal(t, []string{"openai", "anthropic", "gemini", "xai"}, cfg.Routing.LLMFallbacks)
	assert.Equal(t, []string{"elevenlabs", "openai", "twilio"}, cfg.Routing.SpeechFallbacks)
	assert.Equal(t, 30*time.Second, cfg.Routing.ProviderTimeout)
	assert.Equal(t, "memory", cfg.Session.Backend)
	assert.Equal(t, 30*time.Minute, cfg.Session.MaxIdle)
	assert.Equal(t, time.Hour, cfg.AudioCache.TTL)
	assert.Equal(t, 1000, cfg.Call.MaxRecords)
	assert.Equal(t, "assistant", cfg.Agents.DefaultID)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voxgo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
openai_key: sk-from-file
routing:
  default_llm: anthropic
  channel_llm:
    chat: xai
  provider_timeout: 10s
  history_window: 4
session:
  backend: redis
  redis_addr: localhost:6379
call:
  public_base_url: https://voxgo.example.com
server:
  port: 9999
`), 0600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "sk-from-file", cfg.OpenAIKey)
	assert.Equal(t, "anthropic", cfg.Routing.DefaultLLM)
	assert.Equal(t, "xai", cfg.Routing.ChannelLLM["chat"])
	assert.Equal(t, 10*time.Second, cfg.Routing.ProviderTimeout)
	assert.Equal(t, 4, cfg.Routing.HistoryWindow)
	assert.Equal(t, "redis", cfg.Session.Backend)
	assert.Equal(t, "https://voxgo.example.com", cfg.Call.PublicBaseURL)
	assert.Equal(t, 9999, cfg.Server.Port)

	// Unset fields still get their defaults.
	assert.Equal(t, "elevenlabs", cfg.Routing.DefaultSpeech)
	assert.Equal(t, 1500, cfg.Call.SpeechMaxChars)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("routing: [not a map"), 0600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestEnvFallbackForCredentials(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-from-env")
	t.Setenv("TWILIO_ACCOUNT_SID", "AC-from-env")

	cfg := Default()
	assert.Equal(t, "sk-from-env", cfg.OpenAIKey)
	assert.Equal(t, "AC-from-env", cfg.Telephony.AccountSID)
}

func TestFileBeatsEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-from-env")

	path := filepath.Join(t.TempDir(), "voxgo.yaml")
	require.NoError(t, os.WriteFile(path, []byte("openai_key: sk-from-file\n"), 0600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-from-file", cfg.OpenAIKey)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voxgo.yaml")

	cfg := Default()
	cfg.Routing.DefaultLLM = "gemini"
	cfg.Call.PublicBaseURL = "https://voxgo.example.com"
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "gemini", loaded.Routing.DefaultLLM)
	assert.Equal(t, "https://voxgo.example.com", loaded.Call.PublicBaseURL)
}
