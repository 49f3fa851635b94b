package mock

import (
	"context"
	"sync"

	"github.com/poiesic/learnbot/ai"
)

// MockChatModel is a test double for ai.ChatModel.
// It allows custom behavior injection via function fields and records
// every prompt it receives.
type MockChatModel struct {
	// InvokeFunc is called by Invoke if set.
	// If nil, the model echoes the last user message.
	InvokeFunc func(ctx context.Context, messages []ai.Message, temperature float64) (string, error)

	mu           sync.Mutex
	calls        [][]ai.Message
	temperatures []float64
}

// NewMockChatModel creates a mock chat model with echo behavior.
// Note: Returns concrete type to allow test assertions via GetMockChatModel().
func NewMockChatModel() *MockChatModel {
	return &MockChatModel{}
}

// Invoke records the call and delegates to InvokeFunc.
func (m *MockChatModel) Invoke(ctx context.Context, messages []ai.Message, temperature float64) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, append([]ai.Message(nil), messages...))
	m.temperatures = append(m.temperatures, temperature)
	fn := m.InvokeFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, messages, temperature)
	}

	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == ai.RoleUser {
			return messages[i].Content, nil
		}
	}
	return "", nil
}

// CallCount returns the number of times Invoke was called.
func (m *MockChatModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Calls returns a copy of every prompt received, in call order.
func (m *MockChatModel) Calls() [][]ai.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]ai.Message(nil), m.calls...)
}

// Temperatures returns the temperature passed to each call, in call order.
func (m *MockChatModel) Temperatures() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]float64(nil), m.temperatures...)
}

// Reset clears recorded calls and the custom function.
func (m *MockChatModel) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.temperatures = nil
	m.InvokeFunc = nil
}
