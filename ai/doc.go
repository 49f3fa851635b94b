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


// Package ai provides abstractions for the language model and embedding
// services the assistant depends on.
//
// The package defines three interfaces:
//
//   - ChatModel: Sends an ordered prompt and returns the model's text reply
//   - Embedder: Generates vector embeddings from text
//   - AIProvider: Aggregates both for convenient initialization
//
// It also owns the shared call policy: Config (hosts, models, temperature,
// timeout, retry, rate limit), RetryWithBackoff, and GatewayError, the single
// error type every implementation returns once retries are exhausted.
//
// # Implementation Packages
//
//   - ai/openai: Production implementation using OpenAI-compatible APIs
//   - ai/mock: Test doubles for unit testing without external dependencies
//
// # Constructor Return Type Pattern
//
// Public constructors (openai.NewProvider, openai.NewChatModel, etc.) return
// INTERFACE types to enforce abstraction. Test constructors
// (mock.NewMockChatModel, mock.NewMockEmbedder) return CONCRETE types so
// tests can inject behavior and inspect recorded calls.
//
// # Usage Example
//
//	config := ai.NewConfig(ai.WithAPIKey(key))
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	reply, err := provider.ChatModel().Invoke(ctx, []ai.Message{
//	    ai.SystemMessage("Answer briefly."),
//	    ai.UserMessage("What is the capital of France?"),
//	}, config.Temperature)
//	if errors.Is(err, ai.ErrGateway) {
//	    // the service failed after every retry
//	}
package ai
