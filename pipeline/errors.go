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


package pipeline

import "errors"

// Stage errors. Each stage records its failure wrapped with one of these, so
// callers can tell which step of a turn failed with errors.Is.
var (
	// ErrClassification is recorded when the intent classifier call fails.
	ErrClassification = errors.New("intent classification failed")

	// ErrRetrieval is recorded when the knowledge store search fails.
	ErrRetrieval = errors.New("context retrieval failed")

	// ErrValidation is recorded when the fact validation call fails.
	ErrValidation = errors.New("fact validation failed")

	// ErrExtraction is recorded when the preference extraction call fails.
	ErrExtraction = errors.New("preference extraction failed")

	// ErrPersistence is recorded when writing to the knowledge store fails.
	ErrPersistence = errors.New("knowledge persistence failed")

	// ErrGeneration is recorded when the reply cannot be generated.
	ErrGeneration = errors.New("response generation failed")

	// ErrOrchestration is returned when a turn fails outside any stage.
	ErrOrchestration = errors.New("message processing failed")

	// ErrChatModelRequired is returned when a chat model is not provided.
	ErrChatModelRequired = errors.New("chat model required")

	// ErrStoreRequired is returned when a knowledge store is not provided.
	ErrStoreRequired = errors.New("knowledge store required")
)
