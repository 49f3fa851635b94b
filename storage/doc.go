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


// Package storage provides the storage abstraction layer for learnbot.
//
// This package defines repository interfaces that decouple storage implementation
// from the conversation pipeline and the knowledge store. The BadgerDB
// implementation lives in storage/badger.
//
// # Constructor Return Type Pattern
//
// Public constructors in implementation packages return the concrete
// repository type, which satisfies the interfaces declared here. Consumers
// (knowledge, session, reindex) accept the interfaces.
//
// # Architecture
//
//   - Repository: Transaction and lifecycle operations shared by all repositories
//   - FragmentRepository: Knowledge fragments and vector similarity search
//   - TranscriptRepository: Processed turns, newest first or per session
//   - EmbeddingCache: Vectors keyed by embedding model and text
//
// Records are encoded with mus-go (see serialization.go).
//
// # Usage
//
//	fragments, transcript, cache, backend, err := badger.NewMemoryRepositories()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
//
// # Context Support
//
// All repository methods accept context.Context for cancellation
// and timeout support. Pass context.Background() for operations
// without specific timeout requirements.
package storage
