package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/poiesic/learnbot/ai"
	"github.com/poiesic/learnbot/ai/mock"
	"github.com/poiesic/learnbot/core"
	"github.com/poiesic/learnbot/knowledge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTimeout = &ai.GatewayError{Op: "invoke", Model: "mock", Attempts: 4, Err: context.DeadlineExceeded}

// script answers each stage's prompt with a fixed reply.
type script struct {
	intent     string
	validation string
	extraction string
	response   string
	failOn     string // classify, validate, extract or respond
}

func (sc script) model() *mock.MockChatModel {
	m := mock.NewMockChatModel()
	m.InvokeFunc = func(_ context.Context, messages []ai.Message, _ float64) (string, error) {
		step, reply := sc.route(messages[0].Content)
		if step == sc.failOn {
			return "", errTimeout
		}
		return reply, nil
	}
	return m
}

func (sc script) route(system string) (string, string) {
	switch {
	case system == classificationPrompt:
		return "classify", sc.intent
	case strings.HasPrefix(system, "You are an assistant that validates"):
		return "validate", sc.validation
	case system == extractionPrompt:
		return "extract", sc.extraction
	default:
		return "respond", sc.response
	}
}

// recordingStore is an in-memory knowledge.Store that records every call.
type recordingStore struct {
	mu        sync.Mutex
	results   []core.Document
	added     []core.Document
	queries   []string
	ks        []int
	searchErr error
	addErr    error
	panicOn   string
}

func (s *recordingStore) SimilaritySearch(_ context.Context, query string, k int) ([]core.Document, error) {
	if s.panicOn == "search" {
		panic("index corrupted")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, query)
	s.ks = append(s.ks, k)
	if s.searchErr != nil {
		return nil, &knowledge.StoreError{Op: "search", Err: s.searchErr}
	}
	return s.results, nil
}

func (s *recordingStore) AddDocuments(_ context.Context, docs ...core.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.addErr != nil {
		return &knowledge.StoreError{Op: "add", Err: s.addErr}
	}
	s.added = append(s.added, docs...)
	return nil
}

func newTestPipeline(t *testing.T, model ai.ChatModel, store knowledge.Store, opts ...Option) *Pipeline {
	t.Helper()
	p, err := NewPipeline(model, store, opts...)
	require.NoError(t, err)
	return p
}

func TestNewPipeline_RequiresCollaborators(t *testing.T) {
	_, err := NewPipeline(nil, &recordingStore{})
	assert.ErrorIs(t, err, ErrChatModelRequired)

	_, err = NewPipeline(mock.NewMockChatModel(), nil)
	assert.ErrorIs(t, err, ErrStoreRequired)

	_, err = NewPipeline(mock.NewMockChatModel(), &recordingStore{}, WithContextSize(0))
	assert.Error(t, err)

	_, err = NewPipeline(mock.NewMockChatModel(), &recordingStore{}, WithDefaultTemperature(3))
	assert.Error(t, err)
}

func TestProcess_FactScenario(t *testing.T) {
	store := &recordingStore{results: []core.Document{
		{Content: "The Sun is a star", Metadata: map[string]string{core.MetadataType: "fact"}},
	}}
	model := script{
		intent:     "fact",
		validation: "true",
		response:   "Got it! I validated and stored that fact.",
	}.model()
	p := newTestPipeline(t, model, store)

	result := p.Process(context.Background(), "The Earth orbits the Sun")

	require.NoError(t, result.Err)
	assert.Empty(t, result.Error)
	assert.Equal(t, core.IntentFact, result.Intent)
	assert.True(t, result.IsValid)
	assert.Contains(t, result.Response, "stored")
	assert.Equal(t, core.DefaultPreferences(), result.Preferences)

	require.Len(t, store.added, 1)
	assert.Equal(t, "The Earth orbits the Sun", store.added[0].Content)
	assert.Equal(t, map[string]string{core.MetadataType: "fact"}, store.added[0].Metadata)

	assert.Equal(t, []string{"The Earth orbits the Sun"}, store.queries)
	assert.Equal(t, []int{DefaultContextSize}, store.ks)

	calls := model.Calls()
	require.Len(t, calls, 3)
	assert.Contains(t, calls[1][0].Content, "- The Sun is a star")
	assert.Equal(t, "Available context: - The Sun is a star", calls[2][1].Content)
	assert.Equal(t, "The Earth orbits the Sun", calls[2][2].Content)
}

func TestProcess_PreferenceScenario(t *testing.T) {
	store := &recordingStore{}
	model := script{
		intent:     "preference",
		extraction: `{"tone":"formal","verbosity":"concise"}`,
		response:   "Understood. I will keep my answers formal and concise.",
	}.model()
	p := newTestPipeline(t, model, store)

	result := p.Process(context.Background(), "I prefer formal and concise responses")

	require.NoError(t, result.Err)
	want := core.Preferences{"tone": "formal", "verbosity": "concise", "formality": "informal"}
	assert.Equal(t, core.IntentPreference, result.Intent)
	assert.Equal(t, want, result.Preferences)
	assert.True(t, result.IsValid)
	assert.Empty(t, store.queries, "preferences never retrieve context")

	require.Len(t, store.added, 1)
	meta := store.added[0].Metadata
	assert.Equal(t, "preference", meta[core.MetadataType])

	var snapshot core.Preferences
	require.NoError(t, json.Unmarshal([]byte(meta[core.MetadataPreferences]), &snapshot))
	assert.Equal(t, want, snapshot)

	calls := model.Calls()
	require.Len(t, calls, 3)
	system := calls[2][0].Content
	assert.Contains(t, system, "- tone: formal")
	assert.Contains(t, system, "- verbosity: concise")
	assert.Contains(t, system, "- formality: informal")
	assert.Equal(t, noContextMarker, calls[2][1].Content)
}

func TestProcess_ClassificationTimeout(t *testing.T) {
	store := &recordingStore{}
	model := script{failOn: "classify", response: "hello"}.model()
	p := newTestPipeline(t, model, store)

	result := p.Process(context.Background(), "The Earth orbits the Sun")

	require.Error(t, result.Err)
	assert.ErrorIs(t, result.Err, ErrClassification)
	assert.ErrorIs(t, result.Err, ai.ErrGateway)
	assert.ErrorIs(t, result.Err, context.DeadlineExceeded)
	assert.NotEmpty(t, result.Error)
	assert.Equal(t, core.Intent(""), result.Intent)
	assert.False(t, result.IsValid)
	assert.Equal(t, core.DefaultPreferences(), result.Preferences)
	assert.True(t, strings.HasPrefix(result.Response, errorResponsePrefix))
	assert.Contains(t, result.Response, result.Error)

	assert.Empty(t, store.queries)
	assert.Empty(t, store.added)
	assert.Equal(t, 2, model.CallCount(), "classification and response generation still run")
}

func TestProcess_NonFactIsNeverValid(t *testing.T) {
	for _, intent := range []string{"question", "feedback"} {
		t.Run(intent, func(t *testing.T) {
			store := &recordingStore{}
			model := script{intent: intent, validation: "true", response: "ok"}.model()
			p := newTestPipeline(t, model, store)

			result := p.Process(context.Background(), "some message")

			require.NoError(t, result.Err)
			assert.False(t, result.IsValid)
			assert.Empty(t, store.added)
			assert.Equal(t, 2, model.CallCount())
		})
	}
}

func TestProcess_NonPreferenceUsesDefaults(t *testing.T) {
	for _, intent := range []string{"fact", "question", "feedback"} {
		t.Run(intent, func(t *testing.T) {
			model := script{
				intent:     intent,
				validation: "false",
				extraction: `{"tone":"formal"}`,
				response:   "ok",
			}.model()
			p := newTestPipeline(t, model, &recordingStore{})

			result := p.Process(context.Background(), "some message")

			assert.Equal(t, core.DefaultPreferences(), result.Preferences)
		})
	}
}

func TestProcess_UnparseablePreferences(t *testing.T) {
	store := &recordingStore{}
	model := script{intent: "preference", extraction: "not json", response: "ok"}.model()
	p := newTestPipeline(t, model, store)

	result := p.Process(context.Background(), "I want something")

	require.NoError(t, result.Err)
	assert.Equal(t, core.DefaultPreferences(), result.Preferences)
	assert.False(t, result.IsValid)
	assert.Empty(t, store.added)
}

func TestProcess_InvalidFactNotPersisted(t *testing.T) {
	store := &recordingStore{}
	model := script{intent: "fact", validation: "false", response: "That sounds like an opinion."}.model()
	p := newTestPipeline(t, model, store)

	result := p.Process(context.Background(), "Blue is the most beautiful color")

	require.NoError(t, result.Err)
	assert.Equal(t, core.IntentFact, result.Intent)
	assert.False(t, result.IsValid)
	assert.Empty(t, store.added)
	assert.Equal(t, noContextMarker, model.Calls()[2][1].Content)
}

func TestProcess_RetrievalFailureSkipsPersistence(t *testing.T) {
	store := &recordingStore{searchErr: errors.New("backend unavailable")}
	model := script{intent: "fact", validation: "true", response: "ok"}.model()
	p := newTestPipeline(t, model, store)

	result := p.Process(context.Background(), "Water boils at 100C at sea level")

	assert.ErrorIs(t, result.Err, ErrRetrieval)
	assert.ErrorIs(t, result.Err, knowledge.ErrStore)
	assert.Contains(t, result.Error, "backend unavailable")
	assert.Equal(t, core.IntentFact, result.Intent)
	assert.False(t, result.IsValid)
	assert.Empty(t, store.added)
	assert.Equal(t, 3, model.CallCount(), "validation and generation run after a retrieval failure")
}

func TestProcess_ValidationFailure(t *testing.T) {
	store := &recordingStore{}
	model := script{intent: "fact", failOn: "validate", response: "ok"}.model()
	p := newTestPipeline(t, model, store)

	result := p.Process(context.Background(), "Water boils at 100C at sea level")

	assert.ErrorIs(t, result.Err, ErrValidation)
	assert.False(t, result.IsValid)
	assert.Empty(t, store.added)
}

func TestProcess_ExtractionFailure(t *testing.T) {
	store := &recordingStore{}
	model := script{intent: "preference", failOn: "extract", response: "ok"}.model()
	p := newTestPipeline(t, model, store)

	result := p.Process(context.Background(), "Be more formal")

	assert.ErrorIs(t, result.Err, ErrExtraction)
	assert.Equal(t, core.DefaultPreferences(), result.Preferences)
	assert.Empty(t, store.added)
}

func TestProcess_PersistenceFailure(t *testing.T) {
	store := &recordingStore{addErr: errors.New("disk full")}
	model := script{intent: "fact", validation: "true", response: "stored"}.model()
	p := newTestPipeline(t, model, store)

	result := p.Process(context.Background(), "The Earth orbits the Sun")

	assert.ErrorIs(t, result.Err, ErrPersistence)
	assert.ErrorIs(t, result.Err, knowledge.ErrStore)
	assert.False(t, result.IsValid)
	assert.Equal(t, core.IntentFact, result.Intent)
	assert.Equal(t, 3, model.CallCount(), "response generation runs after a persistence failure")
}

func TestProcess_GenerationFailure(t *testing.T) {
	store := &recordingStore{}
	model := script{intent: "question", failOn: "respond"}.model()
	p := newTestPipeline(t, model, store)

	result := p.Process(context.Background(), "What is the capital of France?")

	assert.ErrorIs(t, result.Err, ErrGeneration)
	assert.NotEmpty(t, result.Response)
	assert.Equal(t, core.IntentQuestion, result.Intent)
}

func TestProcess_LaterFailureReplacesEarlier(t *testing.T) {
	store := &recordingStore{searchErr: errors.New("backend unavailable")}
	model := script{intent: "fact", failOn: "validate", response: "ok"}.model()
	p := newTestPipeline(t, model, store)

	result := p.Process(context.Background(), "The Earth orbits the Sun")

	assert.ErrorIs(t, result.Err, ErrValidation)
	assert.NotErrorIs(t, result.Err, ErrRetrieval)
}

func TestProcess_RecoversFromPanic(t *testing.T) {
	store := &recordingStore{panicOn: "search"}
	model := script{intent: "question", response: "ok"}.model()
	p := newTestPipeline(t, model, store)

	var result Result
	require.NotPanics(t, func() {
		result = p.Process(context.Background(), "What is the capital of France?")
	})

	assert.ErrorIs(t, result.Err, ErrOrchestration)
	assert.Contains(t, result.Error, "index corrupted")
	assert.Contains(t, result.Response, "index corrupted")
	assert.False(t, result.IsValid)
	assert.Equal(t, core.Intent(""), result.Intent)
	assert.Equal(t, core.DefaultPreferences(), result.Preferences)
}

func TestProcess_EmptyInput(t *testing.T) {
	model := mock.NewMockChatModel()
	p := newTestPipeline(t, model, &recordingStore{})

	for _, input := range []string{"", "   ", "\n\t"} {
		result := p.Process(context.Background(), input)
		assert.ErrorIs(t, result.Err, ErrOrchestration)
		assert.ErrorIs(t, result.Err, core.ErrEmptyContent)
		assert.NotEmpty(t, result.Response)
		assert.Equal(t, core.DefaultPreferences(), result.Preferences)
	}
	assert.Zero(t, model.CallCount())
}

func TestProcess_Temperature(t *testing.T) {
	t.Run("pipeline default", func(t *testing.T) {
		model := script{intent: "question", response: "ok"}.model()
		p := newTestPipeline(t, model, &recordingStore{})
		p.Process(context.Background(), "hi?")
		assert.Equal(t, []float64{DefaultTemperature, DefaultTemperature}, model.Temperatures())
	})

	t.Run("configured default", func(t *testing.T) {
		model := script{intent: "question", response: "ok"}.model()
		p := newTestPipeline(t, model, &recordingStore{}, WithDefaultTemperature(0.1))
		p.Process(context.Background(), "hi?")
		assert.Equal(t, []float64{0.1, 0.1}, model.Temperatures())
	})

	t.Run("per turn", func(t *testing.T) {
		model := script{intent: "question", response: "ok"}.model()
		p := newTestPipeline(t, model, &recordingStore{})
		p.Process(context.Background(), "hi?", WithTemperature(0.25))
		assert.Equal(t, []float64{0.25, 0.25}, model.Temperatures())
	})

	t.Run("per turn out of range is clamped", func(t *testing.T) {
		model := script{intent: "question", response: "ok"}.model()
		p := newTestPipeline(t, model, &recordingStore{})
		p.Process(context.Background(), "hi?", WithTemperature(-5))
		p.Process(context.Background(), "hi?", WithTemperature(7.5))
		assert.Equal(t, []float64{0, 0, 2, 2}, model.Temperatures())
	})
}

func TestProcess_ContextSize(t *testing.T) {
	store := &recordingStore{}
	model := script{intent: "question", response: "ok"}.model()
	p := newTestPipeline(t, model, store, WithContextSize(5))

	p.Process(context.Background(), "What do you know?")

	assert.Equal(t, []int{5}, store.ks)
}

func TestPersist_SkipsWhenErrorRecorded(t *testing.T) {
	store := &recordingStore{}
	p := newTestPipeline(t, mock.NewMockChatModel(), store)

	for _, intent := range []core.Intent{core.IntentFact, core.IntentPreference} {
		s := newState("The Earth orbits the Sun", DefaultTemperature)
		s.Intent = intent
		s.IsValid = true
		s.Err = errors.New("earlier failure")

		p.persist(context.Background(), s)
	}
	assert.Empty(t, store.added)
}

func TestPersist_RejectsIncompletePreferenceSnapshot(t *testing.T) {
	store := &recordingStore{}
	p := newTestPipeline(t, mock.NewMockChatModel(), store)

	s := newState("Keep it short", DefaultTemperature)
	s.Intent = core.IntentPreference
	s.IsValid = true
	s.Preferences = core.Preferences{core.PreferenceVerbosity: "concise"}

	p.persist(context.Background(), s)
	assert.Empty(t, store.added)
	assert.ErrorIs(t, s.Err, ErrPersistence)
	assert.ErrorIs(t, s.Err, core.ErrMissingPreference)
}

func TestResult_JSON(t *testing.T) {
	ok := Result{Response: "hi", Intent: core.IntentQuestion, Preferences: core.DefaultPreferences()}
	data, err := json.Marshal(ok)
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"error"`)
	assert.Contains(t, string(data), `"is_valid":false`)

	failed := errorResult(ErrOrchestration, "", core.DefaultPreferences())
	data, err = json.Marshal(failed)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"error":"message processing failed"`)
	assert.True(t, failed.Failed())
}

func TestBuildResponsePrompt_LeadsWithIntentGuidance(t *testing.T) {
	prompt := buildResponsePrompt(core.DefaultPreferences(), core.IntentFeedback)
	feedback := strings.Index(prompt, intentGuidance[core.IntentFeedback])
	fact := strings.Index(prompt, intentGuidance[core.IntentFact])
	require.GreaterOrEqual(t, feedback, 0)
	require.GreaterOrEqual(t, fact, 0)
	assert.Less(t, feedback, fact)
}
