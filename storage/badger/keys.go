package badger

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/poiesic/learnbot/core"
)

// Key prefixes for different data types.
// Every prefix ends in a separator so no prefix is a prefix of another.
const (
	fragmentPrefix      = "frag:"
	fragmentDatePrefix  = "fragd:"
	fragmentIDSeq       = "seq:frag"
	turnPrefix          = "turn:"
	turnDatePrefix      = "turnd:"
	turnSessionPrefix   = "turns:"
	turnIDSeq           = "seq:turn"
	embeddingPrefix     = "emb:"
	sessionKeySeparator = 0x00
)

// makeFragmentKey generates a key for a fragment by ID.
func makeFragmentKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s%d", fragmentPrefix, id))
}

// makeFragmentDateKey generates a composite key for the fragment insertion index.
// Format: prefix|timestamp|id
func makeFragmentDateKey(timestamp time.Time, id core.ID) []byte {
	return makeDateKey(fragmentDatePrefix, timestamp, id)
}

// makeTurnKey generates a key for a turn by ID.
func makeTurnKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s%d", turnPrefix, id))
}

// makeTurnDateKey generates a composite key for the turn timestamp index.
func makeTurnDateKey(timestamp time.Time, id core.ID) []byte {
	return makeDateKey(turnDatePrefix, timestamp, id)
}

// makeTurnSessionPrefix generates the prefix shared by one session's index keys.
// Format: prefix|sessionID|0x00
func makeTurnSessionPrefix(sessionID string) []byte {
	buf := make([]byte, 0, len(turnSessionPrefix)+len(sessionID)+1)
	buf = append(buf, turnSessionPrefix...)
	buf = append(buf, sessionID...)
	return append(buf, sessionKeySeparator)
}

// makeTurnSessionKey generates a composite key for the per-session index.
// Format: prefix|sessionID|0x00|timestamp|id
func makeTurnSessionKey(sessionID string, timestamp time.Time, id core.ID) []byte {
	prefix := makeTurnSessionPrefix(sessionID)
	buf := make([]byte, len(prefix)+16)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(timestamp.UnixMicro()))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makeEmbeddingKey generates the cache key for a model and text pair.
func makeEmbeddingKey(model, text string) []byte {
	id := core.IDFromContent(model + "\x00" + text)
	buf := make([]byte, len(embeddingPrefix)+8)
	offset := copy(buf, embeddingPrefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makeDateKey writes prefix, then timestamp and id in BigEndian order so
// lexicographic key order is chronological.
func makeDateKey(prefix string, timestamp time.Time, id core.ID) []byte {
	buf := make([]byte, len(prefix)+16) // 8 bytes for timestamp + 8 bytes for ID
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(timestamp.UnixMicro()))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makePartialDateKey generates a partial key for date range queries.
// Format: prefix|timestamp
func makePartialDateKey(prefix string, timestamp time.Time) []byte {
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(timestamp.UnixMicro()))
	return buf
}
