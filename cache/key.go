package cache

import (
	"encoding/hex"
	"strings"

	"github.com/go-crypt/x/blake2b"
)

// KeyPrefix namespaces answer entries within a shared store.
const KeyPrefix = "qa:"

// Normalize trims the question and collapses internal whitespace runs to a
// single space. Case is preserved.
func Normalize(question string) string {
	return strings.Join(strings.Fields(question), " ")
}

// Key returns the cache key for a question.
func Key(question string) string {
	h, _ := blake2b.New(16, nil) // 16 bytes = 128 bits
	h.Write([]byte(Normalize(question)))
	return KeyPrefix + hex.EncodeToString(h.Sum(nil))
}
