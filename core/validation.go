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


package core

import (
	"fmt"
	"strings"
	"time"
)

// ValidateFragment validates a Fragment according to domain rules.
//
// Validation rules:
//   - Content must not be blank
//   - metadata type, when present, must be fact or preference
//
// NOT validated:
//   - Vector (filled in by the knowledge store before writing)
//   - ID (assigned from database sequences)
func ValidateFragment(fragment *Fragment) error {
	if fragment == nil {
		return fmt.Errorf("%w: fragment is nil", ErrInvalidFragment)
	}

	if strings.TrimSpace(fragment.Content) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidFragment, ErrEmptyContent)
	}

	if t, ok := fragment.Metadata[MetadataType]; ok {
		if t != string(IntentFact) && t != string(IntentPreference) {
			return fmt.Errorf("%w: %w: %q", ErrInvalidFragment, ErrInvalidIntent, t)
		}
	}

	return nil
}

// ValidateTurn validates a Turn according to domain rules.
//
// Validation rules:
//   - Input must not be empty
//   - Intent must be empty (unclassified) or one of the known intents
//   - Timestamp must not be in the future
func ValidateTurn(turn *Turn) error {
	if turn == nil {
		return fmt.Errorf("%w: turn is nil", ErrInvalidTurn)
	}

	if turn.Input == "" {
		return fmt.Errorf("%w: %w", ErrInvalidTurn, ErrEmptyContent)
	}

	if turn.Intent != "" && !IsValidIntent(string(turn.Intent)) {
		return fmt.Errorf("%w: %w: %q", ErrInvalidTurn, ErrInvalidIntent, turn.Intent)
	}

	if !IsValidTimestamp(turn.Timestamp) {
		return fmt.Errorf("%w: %w", ErrInvalidTurn, ErrInvalidTimestamp)
	}

	return nil
}

// ValidatePreferences checks that prefs holds every known key with an allowed value.
func ValidatePreferences(prefs Preferences) error {
	for _, key := range PreferenceKeys {
		value, ok := prefs[key]
		if !ok {
			return fmt.Errorf("%w: %w: %s", ErrInvalidPreferences, ErrMissingPreference, key)
		}
		if !IsValidPreferenceValue(key, value) {
			return fmt.Errorf("%w: %w: %s=%q", ErrInvalidPreferences, ErrInvalidPreferenceValue, key, value)
		}
	}
	return nil
}

// IsValidTimestamp checks if a timestamp is valid (not in the future).
func IsValidTimestamp(ts time.Time) bool {
	return !ts.After(time.Now())
}
