package core

import (
	"encoding/binary"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// It is generated using content-based hashing or database sequences.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Intent is the category assigned to a user message.
type Intent string

const (
	// IntentFact is a factual claim the user wants remembered.
	IntentFact Intent = "fact"
	// IntentQuestion is a request for information.
	IntentQuestion Intent = "question"
	// IntentPreference states how the user wants to be answered.
	IntentPreference Intent = "preference"
	// IntentFeedback is commentary on a previous answer.
	IntentFeedback Intent = "feedback"
)

// Intents lists every valid intent in classification order.
var Intents = []Intent{IntentFact, IntentQuestion, IntentPreference, IntentFeedback}

// IsValidIntent reports whether s names one of the four intents.
func IsValidIntent(s string) bool {
	for _, i := range Intents {
		if string(i) == s {
			return true
		}
	}
	return false
}

// Metadata keys attached to persisted fragments.
const (
	MetadataType        = "type"
	MetadataPreferences = "preferences"
)

// Document is the unit exchanged with the knowledge store: a piece of text
// and its string metadata. Search results and write requests both use it.
type Document struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Fragment is a persisted piece of knowledge with its embedding.
type Fragment struct {
	Id             ID
	Content        string
	Metadata       map[string]string
	Vector         []float32 // Normalized embedding used for similarity search
	EmbeddingModel string    // Model that produced Vector
	InsertedAt     time.Time
	UpdatedAt      time.Time
}

// Document converts the fragment to its store-boundary form.
func (f *Fragment) Document() Document {
	meta := make(map[string]string, len(f.Metadata))
	for k, v := range f.Metadata {
		meta[k] = v
	}
	return Document{Content: f.Content, Metadata: meta}
}

// Turn is the transcript record of one processed message.
type Turn struct {
	Id         ID
	SessionID  string
	Input      string
	Response   string
	Intent     Intent
	IsValid    bool
	Error      string
	Timestamp  time.Time // When the message was processed
	InsertedAt time.Time // When the record was inserted into the database
}

// SimilarityMatch represents a fragment match from vector similarity search.
type SimilarityMatch struct {
	Fragment *Fragment
	Score    float32
}
