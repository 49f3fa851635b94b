package reindex

import (
	"context"
	"fmt"
	"time"

	"github.com/poiesic/learnbot/ai"
	"github.com/poiesic/learnbot/core"
	"github.com/poiesic/learnbot/knowledge"
	"github.com/poiesic/learnbot/storage"
)

// batchEmbedder embeds one batch of fragments and writes the new vectors back.
type batchEmbedder struct {
	fragments   storage.FragmentRepository
	embedder    ai.Embedder
	maxAttempts int
	retryDelay  time.Duration
}

// embed replaces the vectors of batch in place and persists them.
func (b *batchEmbedder) embed(ctx context.Context, batch []*core.Fragment) error {
	if len(batch) == 0 {
		return nil
	}

	texts := make([]string, len(batch))
	for i, fragment := range batch {
		texts[i] = fragment.Content
	}

	var vectors [][]float32
	attempts, err := ai.RetryWithBackoff(ctx, func() error {
		var err error
		vectors, err = b.embedder.EmbedTexts(ctx, texts)
		return err
	}, b.maxAttempts, b.retryDelay)
	if err != nil {
		return fmt.Errorf("embedding %d fragments failed after %d attempt(s): %w", len(batch), attempts, err)
	}
	if len(vectors) != len(batch) {
		return fmt.Errorf("%w: expected %d, got %d", knowledge.ErrEmbeddingCountMismatch, len(batch), len(vectors))
	}

	model := b.embedder.Model()
	for i, fragment := range batch {
		fragment.Vector = knowledge.NormalizeVector(vectors[i])
		fragment.EmbeddingModel = model
	}

	if _, err := b.fragments.UpdateFragments(ctx, batch...); err != nil {
		return fmt.Errorf("updating fragments: %w", err)
	}
	return nil
}
