package core

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// QueryCache is the hybrid retriever's (C8) cache-lookup layer: a
// capacity-bounded, oldest-first-eviction store of assembled context
// strings keyed by a normalized-query digest, with an explicit TTL on top
// of golang-lru's plain capacity eviction (the library itself carries no
// expiry concept).
type QueryCache struct {
	mu    sync.Mutex
	cache *lru.Cache[string, CachedQueryResult]
	ttl   time.Duration
}

// NewQueryCache builds a QueryCache with the given capacity (entries) and
// TTL. capacity <= 0 defaults to 256.
func NewQueryCache(capacity int, ttl time.Duration) (*QueryCache, error) {
	if capacity <= 0 {
		capacity = 256
	}
	c, err := lru.New[string, CachedQueryResult](capacity)
	if err != nil {
		return nil, err
	}
	return &QueryCache{cache: c, ttl: ttl}, nil
}

// QueryDigest normalizes (lowercase, trim) and digests a query string into
// the cache key (spec §4.8).
func QueryDigest(query string) string {
	sum := sha256.Sum256([]byte(normalizeQuery(query)))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached context string for query, if present and not
// expired. It peeks rather than touching the entry, so a lookup does not
// refresh its position and eviction stays oldest-inserted-first.
func (c *QueryCache) Get(query string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := QueryDigest(query)
	entry, ok := c.cache.Peek(key)
	if !ok {
		return "", false
	}
	if time.Now().After(entry.Expiry) {
		c.cache.Remove(key)
		return "", false
	}
	return entry.ContextString, true
}

// Put stores the assembled context string for query, evicting the oldest
// entry on capacity overflow (golang-lru's default policy).
func (c *QueryCache) Put(query, contextString string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := QueryDigest(query)
	c.cache.Add(key, CachedQueryResult{
		QueryHash:     key,
		ContextString: contextString,
		Expiry:        time.Now().Add(c.ttl),
	})
}
