package aggregate

import "sync"

// Cache is the in-memory snapshot of previously loaded collections.
//
// It exists so repeated client-side filtering works off one fetch instead
// of hammering the store on every keystroke. The invalidation triggers are
// explicit: a mutation to a collection calls Invalidate with its name, and
// a view change calls Reset. There is no TTL; staleness is bounded by the
// lifetime of the current page view, never by wall-clock time.
type Cache struct {
	mu      sync.Mutex
	entries map[string]any
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]any)}
}

func (c *Cache) get(collection string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[collection]
	return v, ok
}

func (c *Cache) put(collection string, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[collection] = v
}

// Invalidate drops the snapshot for one collection. The next load re-reads
// the store, which is how every on-screen instance of a mutated entity
// comes to reflect the new state.
func (c *Cache) Invalidate(collection string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, collection)
}

// Reset drops every snapshot. Called on navigation. The cache never
// outlives the page view that filled it.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]any)
}
