package session

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/learnbot/core"
	"github.com/poiesic/learnbot/storage"
)

// Recorder writes turns to a transcript repository on a worker pool, so a
// slow disk never delays a reply.
type Recorder struct {
	transcript storage.TranscriptRepository
	pool       *ants.Pool
	wg         sync.WaitGroup
	mu         sync.RWMutex
	closed     bool
	failures   atomic.Int64
	logger     *slog.Logger
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder) error

// WithRecorderLogger sets a custom logger.
// Default is slog.Default().
func WithRecorderLogger(logger *slog.Logger) RecorderOption {
	return func(r *Recorder) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger.With("component", "recorder")
		return nil
	}
}

// WithPoolSize sets the number of concurrent transcript writers.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) RecorderOption {
	return func(r *Recorder) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if r.pool != nil {
			r.pool.Release()
		}
		r.pool = pool
		return nil
	}
}

// NewRecorder creates a transcript recorder.
// Close must be called to flush pending writes and release the pool.
func NewRecorder(transcript storage.TranscriptRepository, opts ...RecorderOption) (*Recorder, error) {
	if transcript == nil {
		return nil, ErrTranscriptRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	r := &Recorder{
		transcript: transcript,
		pool:       pool,
		logger:     slog.Default().With("component", "recorder"),
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			r.pool.Release()
			return nil, err
		}
	}
	return r, nil
}

// Record queues turn for writing. Write failures are logged and counted,
// never returned.
func (r *Recorder) Record(turn *core.Turn) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrRecorderClosed
	}

	r.wg.Add(1)
	err := r.pool.Submit(func() {
		defer r.wg.Done()
		if _, err := r.transcript.AddTurns(context.Background(), turn); err != nil {
			r.failures.Add(1)
			r.logger.Error("error recording turn", "session", turn.SessionID, "err", err)
		}
	})
	if err != nil {
		r.wg.Done()
		return err
	}
	return nil
}

// Flush blocks until every queued turn has been written.
func (r *Recorder) Flush() {
	r.wg.Wait()
}

// Failures returns the number of turns that could not be written.
func (r *Recorder) Failures() int64 {
	return r.failures.Load()
}

// Close flushes pending writes and releases the worker pool.
// Close is idempotent.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	r.wg.Wait()
	r.pool.Release()
	return nil
}
