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


package knowledge

import "errors"

var (
	// ErrStore is matched by every error returned from a Store operation.
	ErrStore = errors.New("knowledge store error")

	// ErrFragmentRepositoryRequired is returned when a fragment repository is not provided.
	ErrFragmentRepositoryRequired = errors.New("fragment repository required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrEmbeddingCountMismatch is returned when the embedder returns a
	// different number of vectors than texts it was given.
	ErrEmbeddingCountMismatch = errors.New("embedding count mismatch")
)

// StoreError describes a failed search or write.
type StoreError struct {
	Op  string // "search" or "add"
	Err error
}

func (e *StoreError) Error() string {
	return "knowledge store " + e.Op + ": " + e.Err.Error()
}

// Unwrap exposes both the ErrStore sentinel and the underlying cause.
func (e *StoreError) Unwrap() []error {
	return []error{ErrStore, e.Err}
}
