// Package cache provides translation result caching keyed by content hash,
// so identical chunks across jobs hit the provider only once.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Cache is the interface for translation caching.
type Cache interface {
	// Get retrieves a cached translation. Returns false on miss or expiry.
	Get(key string) (string, bool)

	// Set stores a translation in the cache.
	Set(key string, value string) error
}

// Key derives a cache key from the chunk text and translation parameters.
// Texts differing only in surrounding whitespace share a key.
func Key(text, sourceLang, targetLang, model string) string {
	hash := sha256.Sum256([]byte(strings.TrimSpace(text)))
	return hex.EncodeToString(hash[:]) + ":" + sourceLang + ":" + targetLang + ":" + model
}
