package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/poiesic/learnbot/ai"
	"github.com/poiesic/learnbot/core"
	"github.com/poiesic/learnbot/storage"
)

const (
	// DefaultMinSimilarity admits every stored fragment, so a search
	// always returns the k nearest fragments when at least k exist.
	DefaultMinSimilarity float32 = -1

	// verbatimBoost is added to the score of a fragment containing every
	// significant query word.
	verbatimBoost float32 = 0.3

	// candidateFactor widens the semantic candidate pool before re-ranking.
	candidateFactor = 2
)

// Store is the text-level semantic knowledge store the conversation
// pipeline reads from and writes to.
type Store interface {
	// SimilaritySearch returns up to k documents most relevant to query,
	// most relevant first.
	SimilaritySearch(ctx context.Context, query string, k int) ([]core.Document, error)

	// AddDocuments embeds and persists documents.
	AddDocuments(ctx context.Context, docs ...core.Document) error
}

// VectorStore implements Store over an embedder and a fragment repository.
type VectorStore struct {
	fragments     storage.FragmentRepository
	embedder      ai.Embedder
	cache         storage.EmbeddingCache
	minSimilarity float32
	logger        *slog.Logger
}

var _ Store = (*VectorStore)(nil)

// Option configures a VectorStore.
type Option func(*VectorStore) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *VectorStore) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger.With("component", "knowledge-store")
		return nil
	}
}

// WithEmbeddingCache reuses embeddings across searches and writes.
func WithEmbeddingCache(cache storage.EmbeddingCache) Option {
	return func(s *VectorStore) error {
		s.cache = cache
		return nil
	}
}

// WithMinSimilarity drops candidates scoring below min.
func WithMinSimilarity(min float32) Option {
	return func(s *VectorStore) error {
		if min < -1 || min > 1 {
			return fmt.Errorf("min similarity must be between -1 and 1, got %v", min)
		}
		s.minSimilarity = min
		return nil
	}
}

// NewVectorStore creates a new knowledge store.
func NewVectorStore(fragments storage.FragmentRepository, embedder ai.Embedder, opts ...Option) (*VectorStore, error) {
	if fragments == nil {
		return nil, ErrFragmentRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	s := &VectorStore{
		fragments:     fragments,
		embedder:      embedder,
		minSimilarity: DefaultMinSimilarity,
		logger:        slog.Default().With("component", "knowledge-store"),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// SimilaritySearch returns the content and metadata of the k best matches.
func (s *VectorStore) SimilaritySearch(ctx context.Context, query string, k int) ([]core.Document, error) {
	matches, err := s.Search(ctx, query, k)
	if err != nil {
		return nil, err
	}

	docs := make([]core.Document, 0, len(matches))
	for _, m := range matches {
		docs = append(docs, m.Fragment.Document())
	}
	return docs, nil
}

// Search returns the k best matches with their scores.
func (s *VectorStore) Search(ctx context.Context, query string, k int) ([]*core.SimilarityMatch, error) {
	return s.SearchWithMonitor(ctx, query, k, nil)
}

// SearchWithMonitor is Search with callbacks at each step.
func (s *VectorStore) SearchWithMonitor(ctx context.Context, query string, k int, monitor SearchMonitor) ([]*core.SimilarityMatch, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	monitor.Start(query, k)

	vectors, err := s.embed(ctx, []string{query})
	if err != nil {
		s.logger.Error("error generating embedding for query", "err", err)
		return nil, &StoreError{Op: "search", Err: err}
	}

	candidates, err := s.fragments.FindSimilar(ctx, vectors[0], s.minSimilarity, k*candidateFactor)
	if err != nil {
		s.logger.Error("error querying for similar fragments", "err", err)
		return nil, &StoreError{Op: "search", Err: err}
	}
	monitor.AfterSemanticSearch(candidates)

	for _, c := range candidates {
		if containsAllQueryWords(c.Fragment.Content, query) {
			c.Score += verbatimBoost
			monitor.VerbatimHit(c.Fragment)
		}
	}

	slices.SortStableFunc(candidates, func(a, b *core.SimilarityMatch) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return 0
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}

	s.logger.Debug("similarity search", "k", k, "results", len(candidates))
	monitor.Finish(candidates)
	return candidates, nil
}

// AddDocuments embeds each document's content and stores it as a fragment.
// Either every document is stored or none is.
func (s *VectorStore) AddDocuments(ctx context.Context, docs ...core.Document) error {
	if len(docs) == 0 {
		return nil
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}

	vectors, err := s.embed(ctx, texts)
	if err != nil {
		s.logger.Error("error generating embeddings for documents", "count", len(docs), "err", err)
		return &StoreError{Op: "add", Err: err}
	}

	fragments := make([]*core.Fragment, len(docs))
	for i, d := range docs {
		meta := make(map[string]string, len(d.Metadata))
		for k, v := range d.Metadata {
			meta[k] = v
		}
		fragments[i] = &core.Fragment{
			Content:        d.Content,
			Metadata:       meta,
			Vector:         vectors[i],
			EmbeddingModel: s.embedder.Model(),
		}
	}

	if _, err := s.fragments.AddFragments(ctx, fragments...); err != nil {
		s.logger.Error("error storing fragments", "count", len(fragments), "err", err)
		return &StoreError{Op: "add", Err: err}
	}

	s.logger.Debug("stored documents", "count", len(fragments))
	return nil
}

// embed returns normalized vectors for texts, consulting the cache first
// and embedding only the misses in one batch.
func (s *VectorStore) embed(ctx context.Context, texts []string) ([][]float32, error) {
	model := s.embedder.Model()
	vectors := make([][]float32, len(texts))

	var missing []int
	for i, text := range texts {
		if s.cache != nil {
			v, ok, err := s.cache.GetEmbedding(ctx, model, text)
			if err != nil {
				s.logger.Warn("embedding cache read failed", "err", err)
			} else if ok {
				vectors[i] = v
				continue
			}
		}
		missing = append(missing, i)
	}

	if len(missing) == 0 {
		return vectors, nil
	}

	batch := make([]string, len(missing))
	for j, i := range missing {
		batch[j] = texts[i]
	}

	embedded, err := s.embedder.EmbedTexts(ctx, batch)
	if err != nil {
		return nil, err
	}
	if len(embedded) != len(batch) {
		return nil, fmt.Errorf("%w: want %d, got %d", ErrEmbeddingCountMismatch, len(batch), len(embedded))
	}

	for j, i := range missing {
		v := NormalizeVector(embedded[j])
		vectors[i] = v
		if s.cache != nil && len(v) > 0 {
			if err := s.cache.PutEmbedding(ctx, model, texts[i], v); err != nil {
				s.logger.Warn("embedding cache write failed", "err", err)
			}
		}
	}

	return vectors, nil
}
