package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		EnvModelName, EnvTemperature, EnvEmbeddingModel, EnvStorePath, EnvChatHost, EnvEmbeddingHost,
		"LEARNBOT_API_KEY", "GROQ_API_KEY", "OPENAI_API_KEY",
	} {
		t.Setenv(name, "")
	}
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "learnbot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
llm:
  chat_host: https://api.groq.com/openai
  chat_model: llama-3.1-8b-instant
store:
  path: /var/lib/learnbot
  min_similarity: 0
pipeline:
  context_size: 5
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://api.groq.com/openai", cfg.LLM.ChatHost)
	assert.Equal(t, "llama-3.1-8b-instant", cfg.LLM.ChatModel)
	assert.Equal(t, Default().LLM.EmbeddingModel, cfg.LLM.EmbeddingModel)
	assert.Equal(t, 0.7, cfg.LLM.Temperature)
	assert.Equal(t, "/var/lib/learnbot", cfg.Store.Path)
	assert.Equal(t, float32(0), cfg.Store.MinSimilarity)
	assert.Equal(t, 5, cfg.Pipeline.ContextSize)
	assert.Equal(t, 0.7, cfg.Session.Temperature)
}

func TestLoad_InvalidYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm: [unclosed"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvModelName, "mixtral-8x7b-32768")
	t.Setenv(EnvEmbeddingModel, "all-minilm")
	t.Setenv(EnvStorePath, "/tmp/kb")
	t.Setenv(EnvTemperature, "0.2")
	t.Setenv(EnvChatHost, "https://api.groq.com/openai/v1")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "mixtral-8x7b-32768", cfg.LLM.ChatModel)
	assert.Equal(t, "all-minilm", cfg.LLM.EmbeddingModel)
	assert.Equal(t, "/tmp/kb", cfg.Store.Path)
	assert.Equal(t, 0.2, cfg.LLM.Temperature)
	assert.Equal(t, 0.2, cfg.Session.Temperature)
	assert.Equal(t, "https://api.groq.com/openai/v1", cfg.LLM.ChatHost)
	assert.Equal(t, Default().LLM.EmbeddingHost, cfg.LLM.EmbeddingHost)
}

func TestLoad_BadTemperatureEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvTemperature, "warm")

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, EnvTemperature)
}

func TestAPIKey_Fallbacks(t *testing.T) {
	clearEnv(t)
	cfg := Default()
	assert.Empty(t, cfg.APIKey())

	t.Setenv("OPENAI_API_KEY", "sk-openai")
	assert.Equal(t, "sk-openai", cfg.APIKey())

	t.Setenv("GROQ_API_KEY", "gsk-groq")
	assert.Equal(t, "gsk-groq", cfg.APIKey())

	t.Setenv("LEARNBOT_API_KEY", "lb-key")
	assert.Equal(t, "lb-key", cfg.APIKey())

	cfg.LLM.APIKeyEnv = "CUSTOM_KEY"
	t.Setenv("CUSTOM_KEY", "custom")
	assert.Equal(t, "custom", cfg.APIKey())
}

func TestSaveRoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.LLM.ChatModel = "qwen2.5:7b"
	cfg.Store.CacheTTLHours = 48
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
	assert.Equal(t, 48*time.Hour, loaded.CacheTTL())
}

func TestToAIConfig(t *testing.T) {
	clearEnv(t)
	t.Setenv("GROQ_API_KEY", "gsk-groq")

	cfg := Default()
	cfg.LLM.ChatHost = "https://api.groq.com/openai"
	cfg.LLM.MaxRetries = 2
	cfg.LLM.RetryDelayMillis = 250
	cfg.LLM.TimeoutSecs = 10
	cfg.LLM.RequestsPerSecond = 0.5

	aiCfg, err := cfg.ToAIConfig()
	require.NoError(t, err)
	assert.Equal(t, "https://api.groq.com/openai/v1", aiCfg.ChatHost)
	assert.Equal(t, "gsk-groq", aiCfg.APIKey)
	assert.Equal(t, 3, aiCfg.MaxAttempts())
	assert.Equal(t, 250*time.Millisecond, aiCfg.RetryDelay)
	assert.Equal(t, 10*time.Second, aiCfg.Timeout)
	assert.Equal(t, 0.5, aiCfg.RequestsPerSecond)
}

func TestToAIConfig_Invalid(t *testing.T) {
	clearEnv(t)
	cfg := Default()
	cfg.LLM.TimeoutSecs = 0

	_, err := cfg.ToAIConfig()
	assert.Error(t, err)
}

func TestLoadDefault_WritesUserConfig(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(t.TempDir())

	cfg, path, err := LoadDefault()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "learnbot", "config.yaml"), path)
	assert.Equal(t, Default(), cfg)

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestLoad_DotEnv(t *testing.T) {
	clearEnv(t)
	os.Unsetenv(EnvEmbeddingModel)
	t.Chdir(t.TempDir())
	require.NoError(t, os.WriteFile(".env", []byte("EMBEDDING_MODEL=bge-small\nMODEL_NAME=from-dotenv\n"), 0o644))
	t.Setenv(EnvModelName, "from-env")
	t.Cleanup(func() { os.Unsetenv(EnvEmbeddingModel) })

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "bge-small", cfg.LLM.EmbeddingModel)
	assert.Equal(t, "from-env", cfg.LLM.ChatModel, "the environment wins over .env")
}
