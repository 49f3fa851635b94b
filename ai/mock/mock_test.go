package mock

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/poiesic/learnbot/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockChatModel_Echo(t *testing.T) {
	m := NewMockChatModel()

	reply, err := m.Invoke(context.Background(), []ai.Message{
		ai.SystemMessage("sys"),
		ai.UserMessage("hello"),
	}, 0.5)

	require.NoError(t, err)
	assert.Equal(t, "hello", reply)
	assert.Equal(t, 1, m.CallCount())
	assert.Equal(t, []float64{0.5}, m.Temperatures())
}

func TestMockChatModel_InvokeFunc(t *testing.T) {
	m := NewMockChatModel()
	boom := errors.New("boom")
	m.InvokeFunc = func(ctx context.Context, messages []ai.Message, temperature float64) (string, error) {
		return "", boom
	}

	_, err := m.Invoke(context.Background(), nil, 0)
	assert.ErrorIs(t, err, boom)

	m.Reset()
	assert.Equal(t, 0, m.CallCount())
	assert.Nil(t, m.InvokeFunc)
}

func TestMockEmbedder_Deterministic(t *testing.T) {
	e := NewMockEmbedder()

	v1, err := e.EmbedText(context.Background(), "same")
	require.NoError(t, err)
	v2, err := e.EmbedText(context.Background(), "same")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Len(t, v1, 384)
	assert.Equal(t, 2, e.CallCount())

	var sum float64
	for _, v := range v1 {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-4)
}

func TestMockProvider(t *testing.T) {
	p := NewMockProvider().(*MockProvider)

	assert.Same(t, p.GetMockChatModel(), p.ChatModel())
	assert.Same(t, p.GetMockEmbedder(), p.Embedder())
	assert.Equal(t, "mock-embedding", p.Embedder().Model())

	require.NoError(t, p.Close())
	assert.True(t, p.Closed())
}
