package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/learnbot/ai"
	"github.com/poiesic/learnbot/core"
	"github.com/poiesic/learnbot/knowledge"
)

const (
	// DefaultContextSize is the number of fragments retrieved per turn.
	DefaultContextSize = 3

	// DefaultTemperature is used when neither the pipeline nor the turn sets one.
	DefaultTemperature = 0.7

	// MinTemperature and MaxTemperature bound every temperature sent to the model.
	MinTemperature = 0.0
	MaxTemperature = 2.0
)

// stage is one step of a turn. Stages record failures on the state instead
// of returning them, so every stage always runs.
type stage struct {
	name string
	run  func(ctx context.Context, s *State)
}

// Pipeline runs the fixed sequence of stages that turns a user message into
// a reply: classify, retrieve, validate, extract preferences, persist and
// respond. A Pipeline holds no per-turn state and is safe for concurrent use.
type Pipeline struct {
	model       ai.ChatModel
	store       knowledge.Store
	contextSize int
	temperature float64
	stages      []stage
	logger      *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger.With("component", "pipeline")
		return nil
	}
}

// WithContextSize sets how many fragments are retrieved for fact and question turns.
// Default is DefaultContextSize.
func WithContextSize(k int) Option {
	return func(p *Pipeline) error {
		if k < 1 {
			return fmt.Errorf("context size must be positive, got %d", k)
		}
		p.contextSize = k
		return nil
	}
}

// WithDefaultTemperature sets the temperature used by turns that do not override it.
// Default is DefaultTemperature.
func WithDefaultTemperature(t float64) Option {
	return func(p *Pipeline) error {
		if t < MinTemperature || t > MaxTemperature {
			return fmt.Errorf("temperature must be between %v and %v, got %v", MinTemperature, MaxTemperature, t)
		}
		p.temperature = t
		return nil
	}
}

// NewPipeline creates a conversation pipeline over a chat model and a knowledge store.
func NewPipeline(model ai.ChatModel, store knowledge.Store, opts ...Option) (*Pipeline, error) {
	if model == nil {
		return nil, ErrChatModelRequired
	}
	if store == nil {
		return nil, ErrStoreRequired
	}

	p := &Pipeline{
		model:       model,
		store:       store,
		contextSize: DefaultContextSize,
		temperature: DefaultTemperature,
		logger:      slog.Default().With("component", "pipeline"),
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}

	p.stages = []stage{
		{"classify", p.classifyIntent},
		{"retrieve", p.retrieveContext},
		{"validate", p.validateFact},
		{"preferences", p.extractPreferences},
		{"persist", p.persist},
		{"respond", p.generateResponse},
	}
	return p, nil
}

// TurnOption adjusts a single call to Process.
type TurnOption func(*turnConfig)

type turnConfig struct {
	temperature float64
}

// WithTemperature overrides the model temperature for one turn.
// Values outside [MinTemperature, MaxTemperature] are clamped.
func WithTemperature(t float64) TurnOption {
	return func(c *turnConfig) {
		c.temperature = min(max(t, MinTemperature), MaxTemperature)
	}
}

// Process runs every stage over message and returns the outcome of the turn.
// It never panics and never returns an error directly: failures are reported
// through Result.Err and Result.Error, and Result.Response is always set.
func (p *Pipeline) Process(ctx context.Context, message string, opts ...TurnOption) (result Result) {
	cfg := turnConfig{temperature: p.temperature}
	for _, opt := range opts {
		opt(&cfg)
	}

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%w: %v", ErrOrchestration, r)
			p.logger.Error("turn aborted", "err", err)
			result = errorResult(err, "", core.DefaultPreferences())
		}
	}()

	if strings.TrimSpace(message) == "" {
		err := fmt.Errorf("%w: %w", ErrOrchestration, core.ErrEmptyContent)
		p.logger.Warn("rejected empty message")
		return errorResult(err, "", core.DefaultPreferences())
	}

	start := time.Now()
	state := newState(message, cfg.temperature)
	for _, st := range p.stages {
		p.logger.Debug("running stage", "stage", st.name)
		st.run(ctx, state)
	}

	if state.Err != nil {
		p.logger.Error("turn completed with error", "intent", state.Intent, "err", state.Err, "elapsed", time.Since(start))
	} else {
		p.logger.Info("turn completed", "intent", state.Intent, "valid", state.IsValid, "elapsed", time.Since(start))
	}
	return state.result()
}

func (p *Pipeline) invoke(ctx context.Context, s *State, system string) (string, error) {
	return p.model.Invoke(ctx, []ai.Message{
		ai.SystemMessage(system),
		ai.UserMessage(s.Input),
	}, s.temperature)
}

func (p *Pipeline) classifyIntent(ctx context.Context, s *State) {
	reply, err := p.invoke(ctx, s, classificationPrompt)
	if err != nil {
		p.logger.Error("error classifying intent", "err", err)
		s.fail(ErrClassification, err)
		return
	}
	s.Intent = ParseIntent(reply)
	p.logger.Debug("intent classified", "intent", s.Intent, "reply", reply)
}

func (p *Pipeline) retrieveContext(ctx context.Context, s *State) {
	if s.Intent != core.IntentFact && s.Intent != core.IntentQuestion {
		s.Context = []core.Document{}
		return
	}
	docs, err := p.store.SimilaritySearch(ctx, s.Input, p.contextSize)
	if err != nil {
		p.logger.Error("error retrieving context", "err", err)
		s.Context = []core.Document{}
		s.fail(ErrRetrieval, err)
		return
	}
	s.Context = docs
	p.logger.Debug("context retrieved", "count", len(docs))
}

func (p *Pipeline) validateFact(ctx context.Context, s *State) {
	if s.Intent != core.IntentFact {
		s.IsValid = false
		return
	}
	reply, err := p.invoke(ctx, s, buildValidationPrompt(s.Context))
	if err != nil {
		p.logger.Error("error validating fact", "err", err)
		s.IsValid = false
		s.fail(ErrValidation, err)
		return
	}
	s.IsValid = ParseValidation(reply)
	p.logger.Debug("fact validated", "valid", s.IsValid)
}

func (p *Pipeline) extractPreferences(ctx context.Context, s *State) {
	if s.Intent != core.IntentPreference {
		s.Preferences = core.DefaultPreferences()
		return
	}
	reply, err := p.invoke(ctx, s, extractionPrompt)
	if err != nil {
		p.logger.Error("error extracting preferences", "err", err)
		s.Preferences = core.DefaultPreferences()
		s.fail(ErrExtraction, err)
		return
	}

	prefs, extracted, err := ParsePreferences(reply)
	if err != nil {
		p.logger.Warn("discarding unparseable preferences", "reply", reply, "err", err)
	}
	s.Preferences = prefs
	s.IsValid = extracted > 0
	p.logger.Debug("preferences updated", "preferences", prefs, "extracted", extracted)
}

func (p *Pipeline) persist(ctx context.Context, s *State) {
	if s.Err != nil {
		p.logger.Warn("skipping persistence after earlier error", "err", s.Err)
		return
	}
	if !s.IsValid || (s.Intent != core.IntentFact && s.Intent != core.IntentPreference) {
		p.logger.Debug("nothing to persist", "intent", s.Intent, "valid", s.IsValid)
		return
	}

	doc, err := fragmentDocument(s)
	if err != nil {
		p.logger.Error("error building knowledge document", "err", err)
		s.fail(ErrPersistence, err)
		return
	}
	if err := p.store.AddDocuments(ctx, doc); err != nil {
		p.logger.Error("error persisting knowledge", "err", err)
		s.fail(ErrPersistence, err)
		return
	}
	p.logger.Info("knowledge persisted", "type", s.Intent)
}

func (p *Pipeline) generateResponse(ctx context.Context, s *State) {
	reply, err := p.model.Invoke(ctx, []ai.Message{
		ai.SystemMessage(buildResponsePrompt(s.Preferences, s.Intent)),
		ai.UserMessage(buildContextMessage(s.Context)),
		ai.UserMessage(s.Input),
	}, s.temperature)
	if err != nil {
		p.logger.Error("error generating response", "err", err)
		s.Response = ApologyMessage
		s.fail(ErrGeneration, err)
		return
	}
	s.Response = reply
}
