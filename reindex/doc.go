// Package reindex re-embeds stored knowledge fragments, typically after the
// embedding model changes. Fragments are read in batches, embedded again with
// retries, normalized and written back with the new model name recorded on
// each fragment.
package reindex
