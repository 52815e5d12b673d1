package cache

import (
	"github.com/maypok86/otter"
)

// Cache stores rendered SQL statement text keyed by a statement-shape
// hash, so repeated flushes of same-shaped records skip re-rendering
type Cache struct {
	store otter.Cache[uint64, string]
}

// New creates a statement cache holding up to maxSize entries
func New(maxSize int) (*Cache, error) {
	store, err := otter.MustBuilder[uint64, string](maxSize).Build()
	if err != nil {
		return nil, err
	}
	return &Cache{store: store}, nil
}

// Get retrieves cached statement text by shape key
func (c *Cache) Get(key uint64) (string, bool) {
	return c.store.Get(key)
}

// Set stores rendered statement text under a shape key
func (c *Cache) Set(key uint64, text string) {
	c.store.Set(key, text)
}

// Delete removes an entry from the cache
func (c *Cache) Delete(key uint64) {
	c.store.Delete(key)
}

// Close releases the cache's resources
func (c *Cache) Close() {
	c.store.Close()
}
