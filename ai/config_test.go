package ai

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, "http://localhost:11434/v1", cfg.ChatHost)
	assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
	assert.Equal(t, "qwen2.5:3b", cfg.ChatModel)
	assert.Equal(t, "embeddinggemma", cfg.EmbeddingModel)
	assert.Equal(t, 0.7, cfg.Temperature)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 4, cfg.MaxAttempts())
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Zero(t, cfg.RequestsPerSecond)
}

func TestNewConfig(t *testing.T) {
	t.Run("with no options", func(t *testing.T) {
		cfg := NewConfig()

		assert.Equal(t, "http://localhost:11434/v1", cfg.ChatHost)
		assert.Equal(t, 0.7, cfg.Temperature)
	})

	t.Run("with separate hosts", func(t *testing.T) {
		cfg := NewConfig(
			WithChatHost("https://api.groq.com/openai/v1"),
			WithEmbeddingHost("http://embed:8080/v1"),
		)

		assert.Equal(t, "https://api.groq.com/openai/v1", cfg.ChatHost)
		assert.Equal(t, "http://embed:8080/v1", cfg.EmbeddingHost)
	})

	t.Run("with multiple options", func(t *testing.T) {
		cfg := NewConfig(
			WithHost("http://custom:8080/v1"),
			WithAPIKey("secret"),
			WithChatModel("llama-3.1-8b-instant"),
			WithEmbeddingModel("custom-embed"),
			WithTemperature(0.2),
			WithRetry(5, 50*time.Millisecond),
			WithTimeout(5*time.Second),
			WithRequestsPerSecond(2),
		)

		assert.Equal(t, "http://custom:8080/v1", cfg.ChatHost)
		assert.Equal(t, "http://custom:8080/v1", cfg.EmbeddingHost)
		assert.Equal(t, "secret", cfg.APIKey)
		assert.Equal(t, "llama-3.1-8b-instant", cfg.ChatModel)
		assert.Equal(t, "custom-embed", cfg.EmbeddingModel)
		assert.Equal(t, 0.2, cfg.Temperature)
		assert.Equal(t, 5, cfg.MaxRetries)
		assert.Equal(t, 50*time.Millisecond, cfg.RetryDelay)
		assert.Equal(t, 5*time.Second, cfg.Timeout)
		assert.Equal(t, 2.0, cfg.RequestsPerSecond)
	})
}

func TestConfigNormalize(t *testing.T) {
	tests := []struct {
		name     string
		host     string
		expected string
	}{
		{name: "already has /v1", host: "http://localhost:11434/v1", expected: "http://localhost:11434/v1"},
		{name: "missing /v1", host: "http://localhost:11434", expected: "http://localhost:11434/v1"},
		{name: "has trailing slash", host: "http://localhost:11434/", expected: "http://localhost:11434/v1"},
		{name: "empty host", host: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{ChatHost: tt.host, EmbeddingHost: tt.host}

			cfg.Normalize()

			assert.Equal(t, tt.expected, cfg.ChatHost)
			assert.Equal(t, tt.expected, cfg.EmbeddingHost)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	t.Run("valid config normalizes hosts", func(t *testing.T) {
		cfg := NewConfig(WithHost("http://localhost:11434"))

		require.NoError(t, cfg.Validate())
		assert.Equal(t, "http://localhost:11434/v1", cfg.ChatHost)
		assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
	})

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"missing chat host", func(c *Config) { c.ChatHost = "" }, "ChatHost"},
		{"missing embedding host", func(c *Config) { c.EmbeddingHost = "" }, "EmbeddingHost"},
		{"missing chat model", func(c *Config) { c.ChatModel = "" }, "ChatModel"},
		{"missing embedding model", func(c *Config) { c.EmbeddingModel = "" }, "EmbeddingModel"},
		{"temperature too low", func(c *Config) { c.Temperature = -0.1 }, "Temperature"},
		{"temperature too high", func(c *Config) { c.Temperature = 2.5 }, "Temperature"},
		{"negative retries", func(c *Config) { c.MaxRetries = -1 }, "MaxRetries"},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, "Timeout"},
		{"negative rate", func(c *Config) { c.RequestsPerSecond = -1 }, "RequestsPerSecond"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}

	t.Run("temperature boundaries", func(t *testing.T) {
		cfg := NewConfig(WithTemperature(0))
		assert.NoError(t, cfg.Validate())

		cfg.Temperature = 2
		assert.NoError(t, cfg.Validate())
	})
}
