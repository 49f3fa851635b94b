package pipeline

import (
	"encoding/json"
	"fmt"

	"github.com/poiesic/learnbot/core"
)

// State is the working record of a single turn. It is created fresh by
// Process and handed by pointer to each stage in turn.
type State struct {
	// Input is the user's message. Stages never modify it.
	Input string
	// Intent is empty until classification succeeds.
	Intent core.Intent
	// IsValid is only meaningful for fact and preference turns.
	IsValid bool
	// Response is set by the final stage.
	Response string
	// Err holds the most recent stage failure.
	Err error
	// Preferences is always a complete map.
	Preferences core.Preferences
	// Context holds retrieved fragments for fact and question turns.
	Context []core.Document

	temperature float64
}

func newState(input string, temperature float64) *State {
	return &State{
		Input:       input,
		Preferences: core.DefaultPreferences(),
		Context:     []core.Document{},
		temperature: temperature,
	}
}

// fail records a stage failure, replacing any earlier one.
func (s *State) fail(stage error, cause error) {
	s.Err = fmt.Errorf("%w: %w", stage, cause)
}

// Result is what a turn hands back to the caller.
type Result struct {
	Response    string           `json:"response"`
	IsValid     bool             `json:"is_valid"`
	Error       string           `json:"error,omitempty"`
	Err         error            `json:"-"`
	Intent      core.Intent      `json:"intent"`
	Preferences core.Preferences `json:"preferences"`
}

// Failed reports whether the turn recorded an error.
func (r Result) Failed() bool {
	return r.Err != nil
}

func (s *State) result() Result {
	if s.Err != nil {
		return errorResult(s.Err, s.Intent, s.Preferences)
	}
	return Result{
		Response:    s.Response,
		IsValid:     s.IsValid,
		Intent:      s.Intent,
		Preferences: s.Preferences.Clone(),
	}
}

func errorResult(err error, intent core.Intent, prefs core.Preferences) Result {
	return Result{
		Response:    fmt.Sprintf("%s: %v", errorResponsePrefix, err),
		IsValid:     false,
		Error:       err.Error(),
		Err:         err,
		Intent:      intent,
		Preferences: prefs.Clone(),
	}
}

// fragmentDocument builds the knowledge document persisted for a turn.
// Preference turns carry a snapshot of the full preference map, which must
// hold every key with an allowed value.
func fragmentDocument(s *State) (core.Document, error) {
	doc := core.Document{
		Content:  s.Input,
		Metadata: map[string]string{core.MetadataType: string(s.Intent)},
	}
	if s.Intent == core.IntentPreference {
		if err := core.ValidatePreferences(s.Preferences); err != nil {
			return core.Document{}, err
		}
		snapshot, err := json.Marshal(s.Preferences)
		if err != nil {
			return core.Document{}, err
		}
		doc.Metadata[core.MetadataPreferences] = string(snapshot)
	}
	return doc, nil
}
