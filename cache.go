package financial

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// DefaultCacheTTL is the age past which a cache entry is treated as absent.
const DefaultCacheTTL = 5 * time.Minute

type cacheEntry struct {
	value   any
	written time.Time
}

// Cache is a time-bounded memoization of read results keyed by query shape.
// An entry older than the TTL is evicted on the next read and reported as a
// miss. The cache has no side effects beyond its own state.
type Cache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]cacheEntry
}

// NewCache creates a cache with the given TTL. now is injected so tests can
// control the clock; nil defaults to time.Now.
func NewCache(ttl time.Duration, now func() time.Time) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Cache{ttl: ttl, now: now, entries: make(map[string]cacheEntry)}
}

// Get returns the cached value for key. A read is a hit only if the entry
// exists and its age is below the TTL; an expired entry is evicted and
// reported as a miss.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.written) >= c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

// Set stores a value under key, resetting its age.
func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{value: value, written: c.now()}
}

// Invalidate removes the exact key.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// InvalidateByPattern removes every key matching the wildcard pattern, where
// '*' matches any run of characters, '/' included (e.g. "list|*"). Keys embed
// raw filter values, so a matcher that stops at separators would leave
// entries behind.
func (c *Cache) InvalidateByPattern(pattern string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if wildcardMatch(pattern, key) {
			delete(c.entries, key)
		}
	}
}

// wildcardMatch reports whether s matches pattern, treating '*' as any run of
// characters and every other byte literally.
func wildcardMatch(pattern, s string) bool {
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == s
	}
	if !strings.HasPrefix(s, parts[0]) {
		return false
	}
	s = s[len(parts[0]):]
	last := len(parts) - 1
	for _, part := range parts[1:last] {
		if part == "" {
			continue
		}
		i := strings.Index(s, part)
		if i < 0 {
			return false
		}
		s = s[i+len(part):]
	}
	return strings.HasSuffix(s, parts[last])
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

// Len returns the number of entries currently stored, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// CacheKey builds a deterministic cache key from an operation name and its
// filter parameters. Empty values are dropped and the remaining fields are
// sorted, so identical filters resolve to the same key regardless of
// call-site argument ordering.
func CacheKey(op string, filters map[string]string) string {
	fields := make([]string, 0, len(filters))
	for k, v := range filters {
		if v == "" {
			continue
		}
		fields = append(fields, k+"="+v)
	}
	sort.Strings(fields)
	return op + "|" + strings.Join(fields, "&")
}
