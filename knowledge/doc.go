// Package knowledge is the semantic knowledge store: text in, text out.
//
// VectorStore embeds text with an ai.Embedder, normalizes the vectors, and
// keeps them as fragments in a storage.FragmentRepository. Searches rank
// fragments by cosine similarity and lift fragments that contain every
// significant query word. Embeddings are optionally cached by model and
// text, so a fact embedded for retrieval is not embedded again when it is
// persisted in the same turn.
//
// All failures are returned as *StoreError and match ErrStore.
package knowledge
