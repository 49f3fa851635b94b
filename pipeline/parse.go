package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/poiesic/learnbot/core"
)

// ParseIntent picks the first recognized intent word in a classifier reply.
// Matching ignores case and surrounding punctuation, so "FACT." is a fact.
// Replies without a recognized word resolve to IntentQuestion.
func ParseIntent(reply string) core.Intent {
	for _, word := range strings.Fields(strings.ToLower(reply)) {
		word = strings.TrimFunc(word, func(r rune) bool {
			return unicode.IsPunct(r) || unicode.IsSymbol(r)
		})
		if core.IsValidIntent(word) {
			return core.Intent(word)
		}
	}
	return core.IntentQuestion
}

// ParseValidation reports whether the validator reply contains the word "true".
func ParseValidation(reply string) bool {
	for _, word := range strings.Fields(strings.ToLower(reply)) {
		if word == "true" {
			return true
		}
	}
	return false
}

// ParsePreferences decodes an extractor reply into a complete preference map.
//
// The reply may be wrapped in a markdown code fence. Unknown keys, non-string
// values and values outside a key's allowed set are discarded; the remaining
// pairs are lower-cased and laid over the defaults. The returned count is the
// number of pairs kept. A reply that is not a JSON object yields the defaults
// and a non-nil error.
func ParsePreferences(reply string) (core.Preferences, int, error) {
	defaults := core.DefaultPreferences()

	raw := make(map[string]any)
	if err := json.Unmarshal([]byte(stripCodeFence(reply)), &raw); err != nil {
		return defaults, 0, fmt.Errorf("malformed preference object: %w", err)
	}

	update := make(core.Preferences)
	for key, value := range raw {
		s, ok := value.(string)
		if !ok || !core.IsValidPreferenceValue(key, s) {
			continue
		}
		update[key] = strings.ToLower(s)
	}
	return defaults.Merge(update), len(update), nil
}

// stripCodeFence removes a leading ``` or ```json line and a trailing ```.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
