package upstage

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

type cacheEntry struct {
	vector    []float32
	expiresAt time.Time
}

// embeddingCache is a process-local TTL cache. Expired entries are dropped
// lazily on read and swept opportunistically on write.
type embeddingCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry
	now     func() time.Time
}

func newEmbeddingCache(ttl time.Duration) *embeddingCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &embeddingCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

func cacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

func (c *embeddingCache) get(model, text string) ([]float32, bool) {
	key := cacheKey(model, text)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return entry.vector, true
}

func (c *embeddingCache) put(model, text string, vector []float32) {
	key := cacheKey(model, text)
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Sweep a handful of expired entries so the map does not grow without
	// bound under churn.
	swept := 0
	for k, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, k)
			swept++
			if swept >= 32 {
				break
			}
		}
	}

	c.entries[key] = cacheEntry{vector: vector, expiresAt: now.Add(c.ttl)}
}
