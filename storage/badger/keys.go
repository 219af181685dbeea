package badger

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/poiesic/counsel/core"
)

// Key prefixes for different data types
const (
	sessionPrefix         = "chases"
	sessionActivityPrefix = "chasesa"
	messagePrefix         = "chamsg"
	messageSessionPrefix  = "chamsgs"
	messageIDSeq          = "chamsgseq"
	evidencePrefix        = "chaevd"
	evidenceMessagePrefix = "chaevdm"
	evidenceIDSeq         = "chaevdseq"
	documentPrefix        = "docrec"
	documentIDSeq         = "docrecseq"
	chunkPrefix           = "chkrec"
	chunkDocumentPrefix   = "chkrecd"
	chunkIDSeq            = "chkrecseq"
	cachePrefix           = "qacache"
)

// makeSessionKey generates a key for a session by identifier.
func makeSessionKey(id string) []byte {
	return []byte(sessionPrefix + ":" + id)
}

// makeSessionActivityKey generates a composite key for the session activity index.
// Format: prefix:timestamp:sessionHash
func makeSessionActivityKey(lastActivity time.Time, sessionID string) []byte {
	return makeFixedKey(sessionActivityPrefix, uint64(lastActivity.UnixMicro()), uint64(core.IDFromContent(sessionID)))
}

// makeMessageKey generates a key for a message by ID.
func makeMessageKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", messagePrefix, id))
}

// makeSessionMessageKey generates a composite key for the per-session message index.
// Session identifiers are hashed so every key in the index has a fixed width.
// Format: prefix:sessionHash:timestamp:messageID
func makeSessionMessageKey(sessionID string, createdAt time.Time, id core.ID) []byte {
	return makeFixedKey(messageSessionPrefix, uint64(core.IDFromContent(sessionID)), uint64(createdAt.UnixMicro()), uint64(id))
}

// makePartialSessionMessageKey generates the prefix shared by all messages of a session.
// Format: prefix:sessionHash
func makePartialSessionMessageKey(sessionID string) []byte {
	return makeFixedKey(messageSessionPrefix, uint64(core.IDFromContent(sessionID)))
}

// makeEvidenceKey generates a key for an evidence record by ID.
func makeEvidenceKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", evidencePrefix, id))
}

// makeMessageEvidenceKey generates a composite key for the evidence-by-message index.
// Format: prefix:messageID:evidenceID
func makeMessageEvidenceKey(messageID, evidenceID core.ID) []byte {
	return makeFixedKey(evidenceMessagePrefix, uint64(messageID), uint64(evidenceID))
}

// makePartialMessageEvidenceKey generates a partial key for evidence queries.
// Format: prefix:messageID
func makePartialMessageEvidenceKey(messageID core.ID) []byte {
	return makeFixedKey(evidenceMessagePrefix, uint64(messageID))
}

// makeDocumentKey generates a key for a document by ID.
// IDs are written big endian so iteration follows ID order.
func makeDocumentKey(id core.ID) []byte {
	return makeFixedKey(documentPrefix, uint64(id))
}

// makeChunkKey generates a key for a chunk by ID.
func makeChunkKey(id core.ID) []byte {
	return makeFixedKey(chunkPrefix, uint64(id))
}

// makeDocumentChunkKey generates a composite key for the chunk-by-document index.
// Format: prefix:documentID:chunkID
func makeDocumentChunkKey(documentID, chunkID core.ID) []byte {
	return makeFixedKey(chunkDocumentPrefix, uint64(documentID), uint64(chunkID))
}

// makePartialDocumentChunkKey generates a partial key for chunk-by-document queries.
func makePartialDocumentChunkKey(documentID core.ID) []byte {
	return makeFixedKey(chunkDocumentPrefix, uint64(documentID))
}

// makeCacheKey generates a key for a cached answer.
func makeCacheKey(key string) []byte {
	return []byte(cachePrefix + ":" + key)
}

// seekPastPrefix returns a key that sorts after every key starting with prefix.
// Used as the starting point for reverse iteration.
func seekPastPrefix(prefix []byte) []byte {
	buf := make([]byte, len(prefix)+8)
	copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[len(prefix):], math.MaxUint64)
	return buf
}

// makeFixedKey builds prefix followed by a colon and BigEndian encoded parts,
// so lexicographic order matches numeric order.
func makeFixedKey(prefix string, parts ...uint64) []byte {
	buf := make([]byte, len(prefix)+1+8*len(parts))
	offset := copy(buf, prefix)
	buf[offset] = ':'
	offset++
	for _, part := range parts {
		binary.BigEndian.PutUint64(buf[offset:], part)
		offset += 8
	}
	return buf
}
