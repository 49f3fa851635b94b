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


package openai

import (
	"context"
	"log/slog"
	"time"

	"github.com/poiesic/learnbot/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/time/rate"
)

// ChatModel implements ai.ChatModel using OpenAI-compatible chat APIs.
type ChatModel struct {
	client      llms.Model
	model       string
	timeout     time.Duration
	maxAttempts int
	retryDelay  time.Duration
	limiter     *rate.Limiter
	logger      *slog.Logger
}

// newChatModel is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newChatModel(config *ai.Config) (*ChatModel, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.ChatHost),
		openai.WithToken(token(config.APIKey)),
		openai.WithModel(config.ChatModel),
	)
	if err != nil {
		return nil, err
	}

	return newChatModelWithClient(client, config), nil
}

func newChatModelWithClient(client llms.Model, config *ai.Config) *ChatModel {
	m := &ChatModel{
		client:      client,
		model:       config.ChatModel,
		timeout:     config.Timeout,
		maxAttempts: config.MaxAttempts(),
		retryDelay:  config.RetryDelay,
		logger:      slog.Default().With("component", "openai-chat"),
	}
	if config.RequestsPerSecond > 0 {
		burst := int(config.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		m.limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), burst)
	}
	return m
}

// NewChatModel creates a new chat model using the provided configuration.
//
// Returns ai.ChatModel interface to enforce abstraction.
func NewChatModel(config *ai.Config) (ai.ChatModel, error) {
	return newChatModel(config)
}

// Invoke sends the messages and returns the first completion's text.
// Each attempt is bounded by the configured timeout; failed attempts are
// retried with exponential backoff.
func (m *ChatModel) Invoke(ctx context.Context, messages []ai.Message, temperature float64) (string, error) {
	content := toMessageContent(messages)

	var text string
	attempts, err := ai.RetryWithBackoff(ctx, func() error {
		if m.limiter != nil {
			if err := m.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, m.timeout)
		defer cancel()

		response, err := m.client.GenerateContent(callCtx, content, llms.WithTemperature(temperature))
		if err != nil {
			m.logger.Warn("chat completion failed", "model", m.model, "err", err)
			return err
		}
		if len(response.Choices) < 1 {
			return ai.ErrEmptyCompletion
		}
		text = response.Choices[0].Content
		return nil
	}, m.maxAttempts, m.retryDelay)
	if err != nil {
		m.logger.Error("chat completion gave up", "model", m.model, "attempts", attempts, "err", err)
		return "", &ai.GatewayError{Op: "invoke", Model: m.model, Attempts: attempts, Err: err}
	}

	m.logger.Debug("chat completion", "model", m.model, "attempts", attempts, "length", len(text))
	return text, nil
}

func toMessageContent(messages []ai.Message) []llms.MessageContent {
	content := make([]llms.MessageContent, 0, len(messages))
	for _, msg := range messages {
		role := llms.ChatMessageTypeHuman
		switch msg.Role {
		case ai.RoleSystem:
			role = llms.ChatMessageTypeSystem
		case ai.RoleAssistant:
			role = llms.ChatMessageTypeAI
		}
		content = append(content, llms.MessageContent{
			Role:  role,
			Parts: []llms.ContentPart{llms.TextPart(msg.Content)},
		})
	}
	return content
}

// token returns the bearer token for the client.
// Use "none" for local OpenAI-compatible services that don't require authentication.
func token(apiKey string) string {
	if apiKey == "" {
		return "none"
	}
	return apiKey
}
