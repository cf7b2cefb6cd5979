package common

import (
	"sync"
	"time"
)

// DataCache holds the most recent payload per source key, stamped with the
// wall-clock time it was recorded. Freshness is the caller's concern: Get
// returns whatever is stored, and IsExpired answers "is this older than
// maxAge" without ever evicting anything.
//
// One coarse mutex guards the whole map. With single digits of keys, writes
// minutes apart and reads at render-loop frequency, the lost parallelism is
// not measurable, and the single lock keeps every operation trivially atomic.
type DataCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
}

// cacheEntry pairs a payload with the time it was stored. Entries are
// replaced wholesale on Set, never patched in place.
type cacheEntry struct {
	data     interface{}
	recorded time.Time
}

// NewDataCache returns an empty cache ready for concurrent use.
func NewDataCache() *DataCache {
	return &DataCache{
		entries: make(map[string]cacheEntry),
	}
}

// Get returns the stored payload for key, or (nil, false) if the key was
// never set or has been deleted. No freshness check happens here.
func (c *DataCache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ent, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return ent.data, true
}

// Set stores data under key with the current time, unconditionally
// overwriting any previous entry.
func (c *DataCache) Set(key string, data interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{data: data, recorded: time.Now()}
}

// IsExpired reports whether the entry for key is older than maxAge.
// An absent key counts as expired, so a single call drives both the
// "never fetched" and the "too old" cases.
func (c *DataCache) IsExpired(key string, maxAge time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	ent, ok := c.entries[key]
	if !ok {
		return true
	}
	return time.Since(ent.recorded) > maxAge
}

// Age returns how long ago the entry for key was recorded, or false if the
// key is not present.
func (c *DataCache) Age(key string) (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ent, ok := c.entries[key]
	if !ok {
		return 0, false
	}
	return time.Since(ent.recorded), true
}

// Delete removes the entry for key, if any.
func (c *DataCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear removes every entry. Used for forced cold refreshes and test
// isolation.
func (c *DataCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

// Keys returns the currently stored keys in no particular order.
func (c *DataCache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	return keys
}

// Len returns the number of stored entries.
func (c *DataCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
