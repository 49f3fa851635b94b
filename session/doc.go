// Package session tracks one user's conversation on top of a pipeline.
//
// A Session sends messages through a turn processor, keeps the history of
// the conversation, counts messages per intent and facts learned, remembers
// the preferences set most recently and applies the session temperature to
// every turn. When a Recorder is attached, each turn is also written to the
// transcript repository in the background.
package session
