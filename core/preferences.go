package core

import "strings"

// Preference keys.
const (
	PreferenceTone      = "tone"
	PreferenceVerbosity = "verbosity"
	PreferenceFormality = "formality"
)

// PreferenceKeys lists the recognized preference keys in display order.
var PreferenceKeys = []string{PreferenceTone, PreferenceVerbosity, PreferenceFormality}

// PreferenceValues lists the allowed values for each preference key.
var PreferenceValues = map[string][]string{
	PreferenceTone:      {"formal", "casual"},
	PreferenceVerbosity: {"concise", "balanced", "detailed"},
	PreferenceFormality: {"formal", "informal"},
}

// Preferences maps a preference key to its chosen value.
type Preferences map[string]string

// DefaultPreferences returns a fresh copy of the default preference map.
func DefaultPreferences() Preferences {
	return Preferences{
		PreferenceTone:      "casual",
		PreferenceVerbosity: "balanced",
		PreferenceFormality: "informal",
	}
}

// IsValidPreferenceValue reports whether value is allowed for key.
// The comparison is case-insensitive.
func IsValidPreferenceValue(key, value string) bool {
	allowed, ok := PreferenceValues[key]
	if !ok {
		return false
	}
	value = strings.ToLower(value)
	for _, v := range allowed {
		if v == value {
			return true
		}
	}
	return false
}

// Clone returns an independent copy of p.
func (p Preferences) Clone() Preferences {
	out := make(Preferences, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Merge returns a copy of p with every entry in update applied on top.
func (p Preferences) Merge(update Preferences) Preferences {
	out := p.Clone()
	for k, v := range update {
		out[k] = v
	}
	return out
}
