// Package mock provides test double implementations of AI service interfaces.
//
// This package contains mock implementations of ai.ChatModel, ai.Embedder,
// and ai.AIProvider for use in unit tests. The mocks allow tests to run without
// external AI service dependencies and enable controlled, deterministic behavior.
//
// # Usage in Tests
//
//	chat := mock.NewMockChatModel()
//	chat.InvokeFunc = func(ctx context.Context, msgs []ai.Message, temp float64) (string, error) {
//	    return "question", nil
//	}
//	provider := mock.NewMockProviderWithServices(chat, mock.NewMockEmbedder())
//
//	// Check recorded prompts
//	calls := chat.Calls()
//
// # Default Behavior
//
//   - MockChatModel: Echoes the last user message
//   - MockEmbedder: Returns deterministic unit vectors based on text hash
//   - MockProvider: Aggregates the two
package mock
