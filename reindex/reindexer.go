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


package reindex

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/learnbot/ai"
	"github.com/poiesic/learnbot/core"
	"github.com/poiesic/learnbot/storage"
)

// Config controls a reindex run.
type Config struct {
	// BatchSize is the number of fragments embedded per request.
	BatchSize int

	// ReportEvery redraws the progress line after this many fragments.
	ReportEvery int

	// MaxAttempts bounds the embedding calls made for each batch.
	MaxAttempts int

	// RetryDelay is the base delay of the exponential backoff between attempts.
	RetryDelay time.Duration

	// OnlyStale skips fragments already embedded with the current model.
	OnlyStale bool
}

// DefaultConfig returns the settings used when no Config is given.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:   64,
		ReportEvery: 64,
		MaxAttempts: 4,
		RetryDelay:  time.Second,
	}
}

// Summary describes a finished run.
type Summary struct {
	Total     int
	Reindexed int
	Skipped   int
	Elapsed   time.Duration
}

// Reindexer re-embeds every fragment in a repository.
type Reindexer struct {
	fragments storage.FragmentRepository
	embedder  ai.Embedder
	config    *Config
	out       io.Writer
	logger    *slog.Logger
}

// New creates a Reindexer. Progress is written to out, which may be io.Discard.
func New(fragments storage.FragmentRepository, embedder ai.Embedder, config *Config, out io.Writer) (*Reindexer, error) {
	if fragments == nil {
		return nil, ErrFragmentRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.BatchSize < 1 {
		config.BatchSize = DefaultConfig().BatchSize
	}
	if config.MaxAttempts < 1 {
		return nil, fmt.Errorf("%w: got %d", ai.ErrInvalidMaxAttempts, config.MaxAttempts)
	}
	if out == nil {
		out = io.Discard
	}
	return &Reindexer{
		fragments: fragments,
		embedder:  embedder,
		config:    config,
		out:       out,
		logger:    slog.Default().With("component", "reindex"),
	}, nil
}

// Run re-embeds the stored fragments in insertion order. It stops at the
// first batch that cannot be embedded or saved; batches already written
// keep their new vectors.
func (r *Reindexer) Run(ctx context.Context) (Summary, error) {
	all, err := r.fragments.GetFragmentsByDateRange(ctx, time.Unix(0, 0).UTC(), time.Date(2100, 12, 31, 23, 59, 59, 0, time.UTC))
	if err != nil {
		return Summary{}, fmt.Errorf("listing fragments: %w", err)
	}

	summary := Summary{Total: len(all)}
	pending := all
	if r.config.OnlyStale {
		pending = staleFragments(all, r.embedder.Model())
		summary.Skipped = len(all) - len(pending)
	}

	if len(pending) == 0 {
		fmt.Fprintf(r.out, "Nothing to reindex (%d fragments, %d up to date)\n", summary.Total, summary.Skipped)
		return summary, nil
	}

	fmt.Fprintf(r.out, "Reindexing %d fragments with %s (batch size %d)\n", len(pending), r.embedder.Model(), r.config.BatchSize)
	r.logger.Info("reindex started", "fragments", len(pending), "model", r.embedder.Model())

	batches := &batchEmbedder{
		fragments:   r.fragments,
		embedder:    r.embedder,
		maxAttempts: r.config.MaxAttempts,
		retryDelay:  r.config.RetryDelay,
	}
	progress := NewProgress(r.out, len(pending), r.config.ReportEvery)
	progress.Start()

	for start := 0; start < len(pending); start += r.config.BatchSize {
		if err := ctx.Err(); err != nil {
			summary.Reindexed = progress.Done()
			summary.Elapsed = progress.Elapsed()
			return summary, err
		}
		end := min(start+r.config.BatchSize, len(pending))
		if err := batches.embed(ctx, pending[start:end]); err != nil {
			summary.Reindexed = progress.Done()
			summary.Elapsed = progress.Elapsed()
			r.logger.Error("reindex aborted", "done", summary.Reindexed, "err", err)
			return summary, err
		}
		progress.Add(end - start)
	}
	progress.Finish()

	summary.Reindexed = progress.Done()
	summary.Elapsed = progress.Elapsed()
	fmt.Fprintf(r.out, "Reindex complete: %d fragments in %v\n", summary.Reindexed, summary.Elapsed.Round(time.Millisecond))
	r.logger.Info("reindex complete", "fragments", summary.Reindexed, "elapsed", summary.Elapsed)
	return summary, nil
}

func staleFragments(fragments []*core.Fragment, model string) []*core.Fragment {
	stale := make([]*core.Fragment, 0, len(fragments))
	for _, f := range fragments {
		if f.EmbeddingModel != model || len(f.Vector) == 0 {
			stale = append(stale, f)
		}
	}
	return stale
}
