package learnbot

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/poiesic/learnbot/ai"
	"github.com/poiesic/learnbot/ai/mock"
	"github.com/poiesic/learnbot/core"
	"github.com/poiesic/learnbot/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// replies scripts the chat model by prompt kind.
type replies struct {
	intent     string
	validation string
	extraction string
	respond    func(messages []ai.Message) string
	err        error
}

func scriptedModel(r *replies) *mock.MockChatModel {
	m := mock.NewMockChatModel()
	m.InvokeFunc = func(_ context.Context, messages []ai.Message, _ float64) (string, error) {
		system := messages[0].Content
		switch {
		case strings.HasPrefix(system, "You are an intent classifier"):
			if r.err != nil {
				return "", r.err
			}
			return r.intent, nil
		case strings.HasPrefix(system, "You are an assistant that validates"):
			return r.validation, nil
		case strings.HasPrefix(system, "You are a preference analyzer"):
			return r.extraction, nil
		default:
			if r.respond != nil {
				return r.respond(messages), nil
			}
			return "ok", nil
		}
	}
	return m
}

func openTestAssistant(t *testing.T, r *replies) *Assistant {
	t.Helper()
	provider := mock.NewMockProviderWithServices(scriptedModel(r), mock.NewMockEmbedder())
	bot, err := Open("", WithInMemory(), WithProvider(provider))
	require.NoError(t, err)
	t.Cleanup(func() { bot.Close() })
	return bot
}

func TestOpen_OnDisk(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "kb")
	provider := mock.NewMockProvider()

	bot, err := Open(dir, WithProvider(provider))
	require.NoError(t, err)

	assert.NotNil(t, bot.Store())
	assert.NotNil(t, bot.Pipeline())
	assert.NotNil(t, bot.Fragments())
	assert.NotNil(t, bot.Transcript())
	assert.Same(t, provider, bot.Provider())

	require.NoError(t, bot.Close())
	assert.True(t, provider.(*mock.MockProvider).Closed())
}

func TestOpen_InvalidPath(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not_a_dir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	bot, err := Open(file, WithProvider(mock.NewMockProvider()))
	assert.Error(t, err)
	assert.Nil(t, bot)
}

func TestOpen_InvalidPipelineOption(t *testing.T) {
	bot, err := Open("", WithInMemory(), WithProvider(mock.NewMockProvider()),
		WithPipelineOptions(pipeline.WithContextSize(0)))
	assert.Error(t, err)
	assert.Nil(t, bot)
}

func TestAssistant_LearnsFactThenAnswers(t *testing.T) {
	r := &replies{intent: "fact", validation: "true"}
	r.respond = func([]ai.Message) string {
		return "Got it, I validated and stored that fact."
	}
	bot := openTestAssistant(t, r)
	ctx := context.Background()

	result := bot.Process(ctx, "The Earth orbits the Sun")
	require.NoError(t, result.Err)
	assert.Equal(t, core.IntentFact, result.Intent)
	assert.True(t, result.IsValid)
	assert.Contains(t, result.Response, "stored")

	count, err := bot.Fragments().CountFragments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	stored, err := bot.Fragments().GetFragment(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "The Earth orbits the Sun", stored.Content)
	assert.Equal(t, "fact", stored.Metadata[core.MetadataType])
	assert.Equal(t, "mock-embedding", stored.EmbeddingModel)

	r.intent = "question"
	var contextMessage string
	r.respond = func(messages []ai.Message) string {
		contextMessage = messages[1].Content
		return "The Earth orbits the Sun."
	}

	result = bot.Process(ctx, "What does the Earth orbit?")
	require.NoError(t, result.Err)
	assert.Equal(t, core.IntentQuestion, result.Intent)
	assert.False(t, result.IsValid)
	assert.Equal(t, "Available context: - The Earth orbits the Sun", contextMessage)

	count, err = bot.Fragments().CountFragments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "questions are never stored")
}

func TestAssistant_StoresPreferenceSnapshot(t *testing.T) {
	bot := openTestAssistant(t, &replies{
		intent:     "preference",
		extraction: "```json\n{\"tone\":\"formal\",\"verbosity\":\"concise\"}\n```",
	})
	ctx := context.Background()

	result := bot.Process(ctx, "I prefer formal and concise responses")
	require.NoError(t, result.Err)

	want := core.Preferences{"tone": "formal", "verbosity": "concise", "formality": "informal"}
	assert.Equal(t, want, result.Preferences)

	stored, err := bot.Fragments().GetFragment(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "preference", stored.Metadata[core.MetadataType])

	var snapshot core.Preferences
	require.NoError(t, json.Unmarshal([]byte(stored.Metadata[core.MetadataPreferences]), &snapshot))
	assert.Equal(t, want, snapshot)
}

func TestAssistant_GatewayTimeout(t *testing.T) {
	timeout := &ai.GatewayError{Op: "invoke", Model: "mock", Attempts: 4, Err: context.DeadlineExceeded}
	bot := openTestAssistant(t, &replies{err: timeout})

	result := bot.Process(context.Background(), "The Earth orbits the Sun")

	assert.True(t, errors.Is(result.Err, pipeline.ErrClassification))
	assert.NotEmpty(t, result.Error)
	assert.Equal(t, core.Intent(""), result.Intent)
	assert.Equal(t, core.DefaultPreferences(), result.Preferences)
	assert.NotEmpty(t, result.Response)

	count, err := bot.Fragments().CountFragments(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestAssistant_SessionRecordsTranscript(t *testing.T) {
	bot := openTestAssistant(t, &replies{intent: "fact", validation: "true"})
	ctx := context.Background()

	chat, err := bot.NewSession()
	require.NoError(t, err)

	chat.Send(ctx, "Water boils at 100C at sea level")
	chat.Send(ctx, "Mount Everest is the highest mountain")
	bot.FlushTranscript()

	stats := chat.Stats()
	assert.Equal(t, 2, stats.TotalMessages)
	assert.Equal(t, 2, stats.FactsLearned)

	turns, err := bot.Transcript().GetTurnsBySession(ctx, chat.ID())
	require.NoError(t, err)
	require.Len(t, turns, 2)
	for _, turn := range turns {
		assert.Equal(t, core.IntentFact, turn.Intent)
		assert.True(t, turn.IsValid)
	}
}

func TestAssistant_Reindex(t *testing.T) {
	bot := openTestAssistant(t, &replies{intent: "fact", validation: "true"})
	ctx := context.Background()

	bot.Process(ctx, "The Moon orbits the Earth")
	bot.Process(ctx, "Mars has two moons")

	reindexer, err := bot.NewReindexer(nil, io.Discard)
	require.NoError(t, err)

	summary, err := reindexer.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Reindexed)
}
