package storage

import (
	"context"
	"time"

	"github.com/poiesic/learnbot/core"
)

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// WithTransaction executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Close releases resources held by the repository.
	Close() error
}

// FragmentRepository stores knowledge fragments and answers similarity queries.
type FragmentRepository interface {
	Repository

	// FindSimilar finds fragments similar to the given vector.
	// Returns fragments with similarity >= minSimilarity, up to limit results.
	// Results are ordered by similarity score (highest first).
	FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*core.SimilarityMatch, error)

	// AddFragments adds one or more fragments to storage.
	// Always generates new IDs from sequence and sets InsertedAt/UpdatedAt.
	// Returns the fragments with generated IDs and timestamps populated.
	AddFragments(ctx context.Context, fragments ...*core.Fragment) ([]*core.Fragment, error)

	// UpdateFragments updates existing fragments.
	// Updates the UpdatedAt timestamp automatically.
	// Returns ErrNotFound if any fragment doesn't exist.
	UpdateFragments(ctx context.Context, fragments ...*core.Fragment) ([]*core.Fragment, error)

	// GetFragment retrieves a single fragment by ID.
	// Returns ErrNotFound if the fragment doesn't exist.
	GetFragment(ctx context.Context, id core.ID) (*core.Fragment, error)

	// GetFragmentsByDateRange retrieves fragments inserted within a time range,
	// ordered by insertion time.
	GetFragmentsByDateRange(ctx context.Context, start, end time.Time) ([]*core.Fragment, error)

	// CountFragments returns the number of stored fragments.
	CountFragments(ctx context.Context) (int, error)
}

// TranscriptRepository stores the record of every processed turn.
type TranscriptRepository interface {
	Repository

	// AddTurns adds one or more turns, generating IDs from sequence.
	AddTurns(ctx context.Context, turns ...*core.Turn) ([]*core.Turn, error)

	// GetTurn retrieves a single turn by ID.
	// Returns ErrNotFound if the turn doesn't exist.
	GetTurn(ctx context.Context, id core.ID) (*core.Turn, error)

	// GetRecentTurns retrieves the N most recent turns, most recent first.
	GetRecentTurns(ctx context.Context, limit int) ([]*core.Turn, error)

	// GetTurnsBySession retrieves every turn of one session in timestamp order.
	GetTurnsBySession(ctx context.Context, sessionID string) ([]*core.Turn, error)
}

// EmbeddingCache remembers embeddings by model and exact text.
type EmbeddingCache interface {
	// GetEmbedding returns the cached vector and true, or nil and false on a miss.
	GetEmbedding(ctx context.Context, model, text string) ([]float32, bool, error)

	// PutEmbedding stores a vector for model and text, replacing any previous entry.
	PutEmbedding(ctx context.Context, model, text string, vector []float32) error
}
