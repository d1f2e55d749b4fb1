package internal

import (
	"strings"
	"sync"

	"github.com/lychee-technology/openvocab"
	"github.com/patrickmn/go-cache"
)

const schemaCacheKeySep = "\x00"

// SchemaCache keeps synthesized virtual field sets keyed by host type and
// bundle. Entries never expire; they are dropped by Invalidate only.
//
// A synthesis reads the generation before building and stores its result with
// SetIfGeneration, so a set computed before a concurrent invalidation is never
// published.
type SchemaCache struct {
	entries *cache.Cache

	mu         sync.Mutex
	generation uint64
}

// NewSchemaCache creates an empty cache.
func NewSchemaCache() *SchemaCache {
	return &SchemaCache{entries: cache.New(cache.NoExpiration, 0)}
}

func schemaCacheKey(hostType, bundle string) string {
	return hostType + schemaCacheKeySep + bundle
}

// Get returns a copy of the cached set for the bundle.
func (c *SchemaCache) Get(hostType, bundle string) (openvocab.BundleFields, bool) {
	v, ok := c.entries.Get(schemaCacheKey(hostType, bundle))
	if !ok {
		emitCacheLookup(hostType, false)
		return nil, false
	}
	emitCacheLookup(hostType, true)
	return v.(openvocab.BundleFields).Clone(), true
}

// Generation returns the current invalidation generation.
func (c *SchemaCache) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// SetIfGeneration stores fields unless an invalidation happened since
// generation was read. It reports whether the set was stored.
func (c *SchemaCache) SetIfGeneration(hostType, bundle string, fields openvocab.BundleFields, generation uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != generation {
		return false
	}
	c.entries.Set(schemaCacheKey(hostType, bundle), fields.Clone(), cache.NoExpiration)
	return true
}

// Invalidate drops cached sets. An empty hostType drops everything; an empty
// bundle drops every bundle of hostType.
func (c *SchemaCache) Invalidate(hostType, bundle string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++

	switch {
	case hostType == "":
		c.entries.Flush()
	case bundle == "":
		prefix := hostType + schemaCacheKeySep
		for key := range c.entries.Items() {
			if strings.HasPrefix(key, prefix) {
				c.entries.Delete(key)
			}
		}
	default:
		c.entries.Delete(schemaCacheKey(hostType, bundle))
	}
}

// Len returns the number of cached bundles.
func (c *SchemaCache) Len() int {
	return c.entries.ItemCount()
}
