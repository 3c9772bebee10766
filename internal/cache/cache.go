// Package cache stores raw extraction responses keyed by prompt content.
//
// The orchestrator re-dispatches at most one already-completed batch after a
// crash (checkpoint advances only after output is flushed); the disk layer
// turns that duplicate dispatch into a local read instead of a second model
// call.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache defines the interface for response caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key derives a cache key from the provider, model and full prompt text
func Key(provider, model, prompt string) string {
	h := sha256.New()
	h.Write([]byte(provider))
	h.Write([]byte{0})
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(prompt))
	return "warrantex:v1:" + hex.EncodeToString(h.Sum(nil))
}
