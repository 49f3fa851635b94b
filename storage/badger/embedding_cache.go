package badger

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/learnbot/core"
	"github.com/poiesic/learnbot/storage"
)

// EmbeddingCache implements storage.EmbeddingCache for BadgerDB.
// Entries are keyed by a hash of model and text; the stored value keeps
// both so a hash collision reads as a miss.
type EmbeddingCache struct {
	backend *Backend
	ttl     time.Duration
}

var _ storage.EmbeddingCache = (*EmbeddingCache)(nil)

// NewEmbeddingCache creates a cache whose entries expire after ttl.
// A zero ttl keeps entries forever.
func NewEmbeddingCache(backend *Backend, ttl time.Duration) *EmbeddingCache {
	return &EmbeddingCache{backend: backend, ttl: ttl}
}

// GetEmbedding returns the cached vector for model and text.
func (c *EmbeddingCache) GetEmbedding(ctx context.Context, model, text string) ([]float32, bool, error) {
	var vector []float32
	err := c.backend.WithTx(func(tx *badger.Txn) error {
		entry, err := readFragment(tx, makeEmbeddingKey(model, text))
		if err != nil {
			return err
		}
		if entry != nil && entry.EmbeddingModel == model && entry.Content == text {
			vector = entry.Vector
		}
		return nil
	}, false)
	if err != nil {
		return nil, false, err
	}
	return vector, vector != nil, nil
}

// PutEmbedding stores the vector for model and text.
func (c *EmbeddingCache) PutEmbedding(ctx context.Context, model, text string, vector []float32) error {
	if len(vector) == 0 {
		return errors.New("embedding cache: refusing to store empty vector")
	}
	entry := &core.Fragment{
		Content:        text,
		Vector:         vector,
		EmbeddingModel: model,
		InsertedAt:     storedNow(),
	}
	return c.backend.WithTx(func(tx *badger.Txn) error {
		e := badger.NewEntry(makeEmbeddingKey(model, text), storage.MarshalFragment(entry))
		if c.ttl > 0 {
			e = e.WithTTL(c.ttl)
		}
		if err := tx.SetEntry(e); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}
