package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// QueryHash returns a stable cache key for a user query. Queries are
// normalized to lower case with collapsed whitespace so trivially
// different phrasings share one cache entry.
func QueryHash(query string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(query), " "))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// DocumentID derives a deterministic identifier from a document source
// name, so re-ingesting the same document overwrites rather than
// duplicates.
func DocumentID(source string) string {
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:16])
}
