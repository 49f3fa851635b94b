package reindex

import "errors"

var (
	// ErrFragmentRepositoryRequired is returned when a fragment repository is not provided.
	ErrFragmentRepositoryRequired = errors.New("fragment repository required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")
)
