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


package badger

// MemoryRepositories bundles in-memory repositories for tests.
type MemoryRepositories struct {
	Backend    *Backend
	Fragments  *FragmentRepository
	Transcript *TranscriptRepository
	Cache      *EmbeddingCache
}

// Close releases the repositories and then the backend.
func (m *MemoryRepositories) Close() error {
	m.Transcript.Close()
	m.Fragments.Close()
	return m.Backend.Close()
}

// NewMemoryRepositories creates in-memory fragment, transcript and cache
// repositories for testing. Caller must Close the result when done.
func NewMemoryRepositories() (*MemoryRepositories, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, err
	}

	fragments, err := NewFragmentRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	transcript, err := NewTranscriptRepository(backend)
	if err != nil {
		fragments.Close()
		backend.Close()
		return nil, err
	}

	return &MemoryRepositories{
		Backend:    backend,
		Fragments:  fragments,
		Transcript: transcript,
		Cache:      NewEmbeddingCache(backend, 0),
	}, nil
}
