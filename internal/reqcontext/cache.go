package reqcontext

import "sync"

// Cache is the per-request (CommandKey, cache key) → Future map described in
// spec.md §4.6. Keys are unique within a command; insertion order is
// irrelevant.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*Future
}

func newCache() *Cache {
	return &Cache{entries: make(map[string]*Future)}
}

func compositeKey(commandKey, cacheKey string) string {
	return commandKey + "\x00" + cacheKey
}

// PutIfAbsent atomically inserts future under (commandKey, cacheKey) if
// absent, returning (future, true). If an entry already exists it returns
// the existing Future and false, and the caller's future is discarded.
func (c *Cache) PutIfAbsent(commandKey, cacheKey string, future *Future) (*Future, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := compositeKey(commandKey, cacheKey)
	if existing, ok := c.entries[key]; ok {
		return existing, false
	}
	c.entries[key] = future
	return future, true
}

// Get returns the Future for (commandKey, cacheKey), if present.
func (c *Cache) Get(commandKey, cacheKey string) (*Future, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.entries[compositeKey(commandKey, cacheKey)]
	return f, ok
}

// Clear removes the entry for (commandKey, cacheKey).
func (c *Cache) Clear(commandKey, cacheKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, compositeKey(commandKey, cacheKey))
}

// clearAll discards every entry, called from RequestContext.Shutdown.
func (c *Cache) clearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*Future)
}
