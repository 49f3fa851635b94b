package ai

import "context"

// Role identifies the author of a chat message.
type Role string

const (
	// RoleSystem carries instructions for the model.
	RoleSystem Role = "system"
	// RoleUser carries text written by the user, or context injected on the user's behalf.
	RoleUser Role = "user"
	// RoleAssistant carries earlier model output.
	RoleAssistant Role = "assistant"
)

// Message is a single entry in a chat prompt.
type Message struct {
	Role    Role
	Content string
}

// SystemMessage builds a system-role message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage builds a user-role message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// ChatModel sends an ordered prompt to a language model and returns its text reply.
// Implementations must be thread-safe for concurrent use.
type ChatModel interface {
	// Invoke sends messages in order and returns the text of the first completion.
	// temperature is applied to this call only.
	// Implementations apply their own timeout and retry policy; the returned
	// error, if any, is a *GatewayError describing the final failed attempt.
	Invoke(ctx context.Context, messages []Message, temperature float64) (string, error)
}

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// The returned vector represents the semantic meaning of the text.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// Batch processing is more efficient than calling EmbedText multiple times.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)

	// Model returns the identifier of the embedding model in use.
	Model() string
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
// A provider creates and manages ChatModel and Embedder instances,
// ensuring they share configuration and resources appropriately.
type AIProvider interface {
	// ChatModel returns the chat completion service.
	// The returned ChatModel is safe for concurrent use.
	ChatModel() ChatModel

	// Embedder returns the text embedding service.
	// The returned Embedder is safe for concurrent use.
	Embedder() Embedder

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
