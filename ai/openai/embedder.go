package openai

import (
	"context"
	"log/slog"
	"time"

	"github.com/poiesic/learnbot/ai"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// Embedder implements ai.Embedder using OpenAI-compatible embedding APIs.
type Embedder struct {
	embedder    embeddings.Embedder
	model       string
	timeout     time.Duration
	maxAttempts int
	retryDelay  time.Duration
	logger      *slog.Logger
}

// newEmbedder is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newEmbedder(config *ai.Config) (*Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.EmbeddingHost),
		openai.WithToken(token(config.APIKey)),
		openai.WithEmbeddingModel(config.EmbeddingModel),
	)
	if err != nil {
		return nil, err
	}

	// Wrap in langchaingo embedder
	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, err
	}

	return newEmbedderWithClient(embedder, config), nil
}

func newEmbedderWithClient(embedder embeddings.Embedder, config *ai.Config) *Embedder {
	return &Embedder{
		embedder:    embedder,
		model:       config.EmbeddingModel,
		timeout:     config.Timeout,
		maxAttempts: config.MaxAttempts(),
		retryDelay:  config.RetryDelay,
		logger:      slog.Default().With("component", "openai-embedder"),
	}
}

// NewEmbedder creates a new embedder using the provided configuration.
//
// Returns ai.Embedder interface to enforce abstraction.
func NewEmbedder(config *ai.Config) (ai.Embedder, error) {
	return newEmbedder(config)
}

// Model returns the embedding model identifier.
func (e *Embedder) Model() string {
	return e.model
}

// EmbedText generates a vector embedding for a single text string.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	e.logger.Debug("generating embedding for single text", "length", len(text))

	vectors, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}

	if len(vectors) == 0 {
		e.logger.Warn("embedder returned empty result")
		return []float32{}, nil
	}

	return vectors[0], nil
}

// EmbedTexts generates vector embeddings for multiple text strings in a batch.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	e.logger.Debug("generating embeddings for texts", "count", len(texts))

	var vectors [][]float32
	attempts, err := ai.RetryWithBackoff(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()

		var err error
		vectors, err = e.embedder.EmbedDocuments(callCtx, texts)
		return err
	}, e.maxAttempts, e.retryDelay)
	if err != nil {
		e.logger.Error("failed to generate embeddings", "count", len(texts), "attempts", attempts, "err", err)
		return nil, &ai.GatewayError{Op: "embed", Model: e.model, Attempts: attempts, Err: err}
	}

	return vectors, nil
}
