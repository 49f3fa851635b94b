// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package config loads the learnbot application settings from a YAML file
// and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/poiesic/learnbot/ai"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file settings.
const (
	EnvModelName      = "MODEL_NAME"
	EnvTemperature    = "TEMPERATURE"
	EnvEmbeddingModel = "EMBEDDING_MODEL"
	EnvStorePath      = "STORE_PATH"
	EnvChatHost       = "CHAT_HOST"
	EnvEmbeddingHost  = "EMBEDDING_HOST"
)

// fallbackKeyEnvs are consulted, in order, when the configured key variable is unset.
var fallbackKeyEnvs = []string{"GROQ_API_KEY", "OPENAI_API_KEY"}

// LLMConfig describes the chat and embedding services.
type LLMConfig struct {
	ChatHost          string  `yaml:"chat_host"`
	EmbeddingHost     string  `yaml:"embedding_host"`
	APIKeyEnv         string  `yaml:"api_key_env"`
	ChatModel         string  `yaml:"chat_model"`
	EmbeddingModel    string  `yaml:"embedding_model"`
	Temperature       float64 `yaml:"temperature"`
	MaxRetries        int     `yaml:"max_retries"`
	RetryDelayMillis  int     `yaml:"retry_delay_ms"`
	TimeoutSecs       int     `yaml:"timeout_secs"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// StoreConfig describes the knowledge store.
type StoreConfig struct {
	Path          string  `yaml:"path"`
	CacheTTLHours int     `yaml:"cache_ttl_hours"`
	MinSimilarity float32 `yaml:"min_similarity"`
}

// PipelineConfig tunes the conversation pipeline.
type PipelineConfig struct {
	ContextSize int `yaml:"context_size"`
}

// SessionConfig tunes interactive sessions.
type SessionConfig struct {
	Temperature      float64 `yaml:"temperature"`
	RecorderPoolSize int     `yaml:"recorder_pool_size"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	LLM      LLMConfig      `yaml:"llm"`
	Store    StoreConfig    `yaml:"store"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Session  SessionConfig  `yaml:"session"`
}

// Load reads a config from path and applies environment overrides, including
// those from a .env file in the working directory. A missing file yields the
// defaults. Variables already set in the environment win over .env entries.
func Load(path string) (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		cfg := Default()
		if err := cfg.applyEnv(); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	// Fields missing from the file keep their defaults.
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault tries ./learnbot.yaml first, then ~/.config/learnbot/config.yaml.
// If neither exists, it writes the defaults to the user path and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "learnbot.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	if err := Save(userPath, Default()); err != nil {
		return nil, "", err
	}
	cfg, err := Load(userPath)
	return cfg, userPath, err
}

// Save writes cfg to path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "learnbot", "config.yaml"), nil
}

// Default returns the built-in configuration.
func Default() *AppConfig {
	base := ai.DefaultConfig()
	return &AppConfig{
		LLM: LLMConfig{
			ChatHost:         base.ChatHost,
			EmbeddingHost:    base.EmbeddingHost,
			APIKeyEnv:        "LEARNBOT_API_KEY",
			ChatModel:        base.ChatModel,
			EmbeddingModel:   base.EmbeddingModel,
			Temperature:      base.Temperature,
			MaxRetries:       base.MaxRetries,
			RetryDelayMillis: int(base.RetryDelay / time.Millisecond),
			TimeoutSecs:      int(base.Timeout / time.Second),
		},
		Store: StoreConfig{
			Path:          "data/learnbot",
			MinSimilarity: -1,
		},
		Pipeline: PipelineConfig{ContextSize: 3},
		Session:  SessionConfig{Temperature: 0.7, RecorderPoolSize: 2},
	}
}

func (c *AppConfig) applyEnv() error {
	if v := os.Getenv(EnvModelName); v != "" {
		c.LLM.ChatModel = v
	}
	if v := os.Getenv(EnvEmbeddingModel); v != "" {
		c.LLM.EmbeddingModel = v
	}
	if v := os.Getenv(EnvStorePath); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv(EnvChatHost); v != "" {
		c.LLM.ChatHost = v
	}
	if v := os.Getenv(EnvEmbeddingHost); v != "" {
		c.LLM.EmbeddingHost = v
	}
	if v := os.Getenv(EnvTemperature); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTemperature, err)
		}
		c.LLM.Temperature = t
		c.Session.Temperature = t
	}
	return nil
}

// APIKey returns the credential from the configured variable, falling back
// to GROQ_API_KEY and then OPENAI_API_KEY. It returns "" when none is set.
func (c *AppConfig) APIKey() string {
	for _, name := range append([]string{c.LLM.APIKeyEnv}, fallbackKeyEnvs...) {
		if name == "" {
			continue
		}
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// CacheTTL returns the embedding cache entry lifetime. Zero keeps entries forever.
func (c *AppConfig) CacheTTL() time.Duration {
	return time.Duration(c.Store.CacheTTLHours) * time.Hour
}

// ToAIConfig maps the LLM section onto an ai.Config and validates it.
func (c *AppConfig) ToAIConfig() (*ai.Config, error) {
	cfg := ai.NewConfig(
		ai.WithChatHost(c.LLM.ChatHost),
		ai.WithEmbeddingHost(c.LLM.EmbeddingHost),
		ai.WithAPIKey(c.APIKey()),
		ai.WithChatModel(c.LLM.ChatModel),
		ai.WithEmbeddingModel(c.LLM.EmbeddingModel),
		ai.WithTemperature(c.LLM.Temperature),
		ai.WithRetry(c.LLM.MaxRetries, time.Duration(c.LLM.RetryDelayMillis)*time.Millisecond),
		ai.WithTimeout(time.Duration(c.LLM.TimeoutSecs)*time.Second),
		ai.WithRequestsPerSecond(c.LLM.RequestsPerSecond),
	)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
