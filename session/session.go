package session

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/learnbot/core"
	"github.com/poiesic/learnbot/pipeline"
)

// Session temperature bounds and default.
const (
	MinTemperature     = 0.0
	MaxTemperature     = 1.0
	DefaultTemperature = 0.7
)

// Processor runs one conversational turn. *pipeline.Pipeline implements it.
type Processor interface {
	Process(ctx context.Context, message string, opts ...pipeline.TurnOption) pipeline.Result
}

// Stats are the running counters of a session.
type Stats struct {
	TotalMessages int                 `json:"total_messages"`
	ByIntent      map[core.Intent]int `json:"by_intent"`
	FactsLearned  int                 `json:"facts_learned"`
	Errors        int                 `json:"errors"`
}

// Exchange is one message and the outcome of processing it.
type Exchange struct {
	Input     string          `json:"input"`
	Result    pipeline.Result `json:"result"`
	Timestamp time.Time       `json:"timestamp"`
}

// Session is a single user's conversation. It is safe for concurrent use,
// but turns are processed one at a time.
type Session struct {
	id        string
	processor Processor
	recorder  *Recorder
	logger    *slog.Logger

	turnMu sync.Mutex

	mu          sync.RWMutex
	temperature float64
	stats       Stats
	preferences core.Preferences
	history     []Exchange
}

// Option configures a Session.
type Option func(*Session) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithID sets the session identifier instead of generating one.
func WithID(id string) Option {
	return func(s *Session) error {
		if id == "" {
			return fmt.Errorf("session id cannot be empty")
		}
		s.id = id
		return nil
	}
}

// WithRecorder records every turn of the session to the transcript.
func WithRecorder(recorder *Recorder) Option {
	return func(s *Session) error {
		s.recorder = recorder
		return nil
	}
}

// WithTemperature sets the initial session temperature.
// Default is DefaultTemperature.
func WithTemperature(t float64) Option {
	return func(s *Session) error {
		if err := checkTemperature(t); err != nil {
			return err
		}
		s.temperature = t
		return nil
	}
}

// New creates a session over processor.
func New(processor Processor, opts ...Option) (*Session, error) {
	if processor == nil {
		return nil, ErrProcessorRequired
	}

	s := &Session{
		id:          uuid.NewString(),
		processor:   processor,
		temperature: DefaultTemperature,
		preferences: core.DefaultPreferences(),
		stats:       Stats{ByIntent: newIntentCounts()},
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "session", "session", s.id)
	return s, nil
}

func newIntentCounts() map[core.Intent]int {
	counts := make(map[core.Intent]int, len(core.Intents))
	for _, intent := range core.Intents {
		counts[intent] = 0
	}
	return counts
}

func checkTemperature(t float64) error {
	if t < MinTemperature || t > MaxTemperature {
		return fmt.Errorf("%w: %v not in [%v, %v]", ErrInvalidTemperature, t, MinTemperature, MaxTemperature)
	}
	return nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Send processes message at the session temperature and updates the
// session counters, preferences and history.
func (s *Session) Send(ctx context.Context, message string) pipeline.Result {
	s.turnMu.Lock()
	defer s.turnMu.Unlock()

	temperature := s.Temperature()
	started := time.Now().UTC()
	result := s.processor.Process(ctx, message, pipeline.WithTemperature(temperature))

	s.mu.Lock()
	s.stats.TotalMessages++
	if result.Intent != "" {
		s.stats.ByIntent[result.Intent]++
	}
	if result.Intent == core.IntentFact && result.IsValid {
		s.stats.FactsLearned++
	}
	if result.Failed() {
		s.stats.Errors++
	} else if result.Intent == core.IntentPreference && result.IsValid {
		s.preferences = result.Preferences.Clone()
	}
	s.history = append(s.history, Exchange{Input: message, Result: result, Timestamp: started})
	s.mu.Unlock()

	if s.recorder != nil && strings.TrimSpace(message) != "" {
		turn := &core.Turn{
			SessionID: s.id,
			Input:     message,
			Response:  result.Response,
			Intent:    result.Intent,
			IsValid:   result.IsValid,
			Error:     result.Error,
			Timestamp: started,
		}
		if err := s.recorder.Record(turn); err != nil {
			s.logger.Warn("turn not recorded", "err", err)
		}
	}
	return result
}

// Temperature returns the temperature applied to each turn.
func (s *Session) Temperature() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.temperature
}

// SetTemperature changes the temperature for subsequent turns.
func (s *Session) SetTemperature(t float64) error {
	if err := checkTemperature(t); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.temperature = t
	return nil
}

// Stats returns a snapshot of the session counters.
func (s *Session) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.stats
	out.ByIntent = maps.Clone(s.stats.ByIntent)
	return out
}

// Preferences returns the preferences most recently set in this session.
func (s *Session) Preferences() core.Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.preferences.Clone()
}

// History returns every exchange so far, oldest first.
func (s *Session) History() []Exchange {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Exchange(nil), s.history...)
}

// Reset clears the history, counters and preferences. The temperature is kept.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
	s.stats = Stats{ByIntent: newIntentCounts()}
	s.preferences = core.DefaultPreferences()
}
