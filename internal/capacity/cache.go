package capacity

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CacheKey identifies one memoized resolution. Snapshot is the digest of the override table the
// answer was computed against, so an answer never outlives the table it came from.
type CacheKey struct {
	Raw        string
	Normalized string
	Snapshot   string
}

// Cache is a bounded LRU of resolved capacities. A zero ttl keeps entries until evicted.
type Cache struct {
	entries *expirable.LRU[CacheKey, int]
}

func NewCache(size int, ttl time.Duration) *Cache {
	return &Cache{entries: expirable.NewLRU[CacheKey, int](size, nil, ttl)}
}

// GetOrCompute returns the cached value for key or returns compute(), storing it only when
// compute reports the value as final.
func (c *Cache) GetOrCompute(key CacheKey, compute func() (int, bool)) int {
	if value, ok := c.entries.Get(key); ok {
		return value
	}

	value, final := compute()
	if final {
		c.entries.Add(key, value)
	}

	return value
}

// InvalidateAll drops every entry.
func (c *Cache) InvalidateAll() {
	c.entries.Purge()
}

func (c *Cache) Len() int {
	return c.entries.Len()
}
