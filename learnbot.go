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


package learnbot

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/learnbot/ai"
	"github.com/poiesic/learnbot/ai/openai"
	"github.com/poiesic/learnbot/knowledge"
	"github.com/poiesic/learnbot/pipeline"
	"github.com/poiesic/learnbot/reindex"
	"github.com/poiesic/learnbot/session"
	"github.com/poiesic/learnbot/storage"
	"github.com/poiesic/learnbot/storage/badger"
)

// Assistant wires the knowledge store, the AI provider and the conversation
// pipeline over a single BadgerDB database.
type Assistant struct {
	backend    *badger.Backend
	fragments  *badger.FragmentRepository
	transcript *badger.TranscriptRepository
	cache      *badger.EmbeddingCache
	provider   ai.AIProvider
	store      *knowledge.VectorStore
	pipeline   *pipeline.Pipeline
	recorder   *session.Recorder
	logger     *slog.Logger
}

// Option configures an Assistant.
type Option func(*options)

type options struct {
	aiConfig     *ai.Config
	provider     ai.AIProvider
	inMemory     bool
	cacheTTL     time.Duration
	storeOpts    []knowledge.Option
	pipelineOpts []pipeline.Option
	recorderOpts []session.RecorderOption
	logger       *slog.Logger
}

// WithAIConfig sets the configuration of the OpenAI-compatible provider.
// Default is ai.DefaultConfig().
func WithAIConfig(cfg *ai.Config) Option {
	return func(o *options) {
		o.aiConfig = cfg
	}
}

// WithProvider uses provider instead of building one from the AI config.
// The Assistant takes ownership and closes it.
func WithProvider(provider ai.AIProvider) Option {
	return func(o *options) {
		o.provider = provider
	}
}

// WithInMemory keeps the database in memory. The path is ignored.
func WithInMemory() Option {
	return func(o *options) {
		o.inMemory = true
	}
}

// WithCacheTTL expires cached embeddings after ttl. Zero keeps them forever.
func WithCacheTTL(ttl time.Duration) Option {
	return func(o *options) {
		o.cacheTTL = ttl
	}
}

// WithStoreOptions passes options to the knowledge store.
func WithStoreOptions(opts ...knowledge.Option) Option {
	return func(o *options) {
		o.storeOpts = append(o.storeOpts, opts...)
	}
}

// WithPipelineOptions passes options to the conversation pipeline.
func WithPipelineOptions(opts ...pipeline.Option) Option {
	return func(o *options) {
		o.pipelineOpts = append(o.pipelineOpts, opts...)
	}
}

// WithRecorderOptions passes options to the transcript recorder.
func WithRecorderOptions(opts ...session.RecorderOption) Option {
	return func(o *options) {
		o.recorderOpts = append(o.recorderOpts, opts...)
	}
}

// WithLogger sets the logger handed to every component.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Open opens or creates the database at path and assembles an Assistant.
func Open(path string, opts ...Option) (*Assistant, error) {
	o := &options{
		aiConfig: ai.DefaultConfig(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	a := &Assistant{logger: o.logger}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	var err error
	a.backend, err = badger.OpenBackend(path, o.inMemory)
	if err != nil {
		return nil, err
	}
	a.fragments, err = badger.NewFragmentRepository(a.backend)
	if err != nil {
		return nil, err
	}
	a.transcript, err = badger.NewTranscriptRepository(a.backend)
	if err != nil {
		return nil, err
	}
	a.cache = badger.NewEmbeddingCache(a.backend, o.cacheTTL)

	a.provider = o.provider
	if a.provider == nil {
		a.provider, err = openai.NewProvider(o.aiConfig)
		if err != nil {
			return nil, err
		}
	}

	storeOpts := append([]knowledge.Option{
		knowledge.WithLogger(o.logger),
		knowledge.WithEmbeddingCache(a.cache),
	}, o.storeOpts...)
	a.store, err = knowledge.NewVectorStore(a.fragments, a.provider.Embedder(), storeOpts...)
	if err != nil {
		return nil, err
	}

	pipelineOpts := append([]pipeline.Option{pipeline.WithLogger(o.logger)}, o.pipelineOpts...)
	a.pipeline, err = pipeline.NewPipeline(a.provider.ChatModel(), a.store, pipelineOpts...)
	if err != nil {
		return nil, err
	}

	recorderOpts := append([]session.RecorderOption{session.WithRecorderLogger(o.logger)}, o.recorderOpts...)
	a.recorder, err = session.NewRecorder(a.transcript, recorderOpts...)
	if err != nil {
		return nil, err
	}

	ok = true
	return a, nil
}

// Process runs one turn without session bookkeeping.
func (a *Assistant) Process(ctx context.Context, message string, opts ...pipeline.TurnOption) pipeline.Result {
	return a.pipeline.Process(ctx, message, opts...)
}

// NewSession starts a conversation whose turns are recorded to the transcript.
func (a *Assistant) NewSession(opts ...session.Option) (*session.Session, error) {
	opts = append([]session.Option{
		session.WithLogger(a.logger),
		session.WithRecorder(a.recorder),
	}, opts...)
	return session.New(a.pipeline, opts...)
}

// NewReindexer creates a reindexer over the stored fragments using the
// provider's embedder. A nil config uses reindex.DefaultConfig().
func (a *Assistant) NewReindexer(config *reindex.Config, out io.Writer) (*reindex.Reindexer, error) {
	return reindex.New(a.fragments, a.provider.Embedder(), config, out)
}

// Store returns the knowledge store.
func (a *Assistant) Store() *knowledge.VectorStore {
	return a.store
}

// Pipeline returns the conversation pipeline.
func (a *Assistant) Pipeline() *pipeline.Pipeline {
	return a.pipeline
}

// Fragments returns the fragment repository.
func (a *Assistant) Fragments() storage.FragmentRepository {
	return a.fragments
}

// Transcript returns the transcript repository.
func (a *Assistant) Transcript() storage.TranscriptRepository {
	return a.transcript
}

// Provider returns the AI provider.
func (a *Assistant) Provider() ai.AIProvider {
	return a.provider
}

// FlushTranscript blocks until every recorded turn has been written.
func (a *Assistant) FlushTranscript() {
	if a.recorder != nil {
		a.recorder.Flush()
	}
}

// Close flushes the transcript and releases every component, storage last.
// It is safe to call on a partially opened Assistant.
func (a *Assistant) Close() error {
	if a.recorder != nil {
		if err := a.recorder.Close(); err != nil {
			a.logger.Error("error closing transcript recorder", "err", err)
		}
	}
	if a.provider != nil {
		if err := a.provider.Close(); err != nil {
			a.logger.Error("error closing AI provider", "err", err)
		}
	}
	if a.transcript != nil {
		if err := a.transcript.Close(); err != nil {
			a.logger.Error("error closing transcript repository", "err", err)
			return err
		}
	}
	if a.fragments != nil {
		if err := a.fragments.Close(); err != nil {
			a.logger.Error("error closing fragment repository", "err", err)
			return err
		}
	}
	if a.backend != nil {
		if err := a.backend.Close(); err != nil {
			a.logger.Error("error closing backend storage", "err", err)
			return err
		}
	}
	return nil
}
