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


// Package openai provides AI service implementations using OpenAI-compatible APIs.
//
// This package implements the ai.AIProvider interface using the langchaingo
// library to communicate with OpenAI or OpenAI-compatible services (Groq,
// Ollama, LocalAI, vLLM).
//
// Every call is bounded by Config.Timeout, retried Config.MaxRetries times with
// exponential backoff, and optionally throttled by Config.RequestsPerSecond.
// Errors that survive the retries are returned as *ai.GatewayError.
//
// # Usage
//
//	config := ai.NewConfig(
//	    ai.WithChatHost("https://api.groq.com/openai"),  // /v1 added automatically
//	    ai.WithAPIKey(os.Getenv("GROQ_API_KEY")),
//	    ai.WithChatModel("llama-3.1-8b-instant"),
//	)
//
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	reply, err := provider.ChatModel().Invoke(ctx, []ai.Message{ai.UserMessage("hi")}, 0.7)
//	vector, err := provider.Embedder().EmbedText(ctx, "sample text")
package openai
