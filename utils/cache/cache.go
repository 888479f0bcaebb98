package cache

import (
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
)

// Cache is a bounded LRU keyed by plan hash. It is safe for concurrent use.
type Cache[K comparable, V any] struct {
	lru     *lru.Cache[K, V]
	hits    atomic.Uint64
	misses  atomic.Uint64
	evicted atomic.Uint64
}

func NewCache[K comparable, V any](numEntries int) (*Cache[K, V], error) {
	if numEntries < 1 {
		numEntries = 1
	}
	c := &Cache[K, V]{}
	l, err := lru.NewWithEvict[K, V](numEntries, func(K, V) {
		c.evicted.Add(1)
	})
	if err != nil {
		return nil, errors.Wrap(err, "create plan cache")
	}
	c.lru = l
	return c, nil
}

// Set stores val under key and reports whether an older entry was evicted.
func (c *Cache[K, V]) Set(key K, val V) bool {
	return c.lru.Add(key, val)
}

func (c *Cache[K, V]) Get(key K) (V, bool) {
	v, ok := c.lru.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return v, ok
}

func (c *Cache[K, V]) Del(key K) bool {
	return c.lru.Remove(key)
}

func (c *Cache[K, V]) Len() int {
	return c.lru.Len()
}

// Purge drops every entry, e.g. after the index-state snapshot changes.
func (c *Cache[K, V]) Purge() {
	c.lru.Purge()
}

func (c *Cache[K, V]) String() string {
	return fmt.Sprintf("hits=%d misses=%d evicted=%d", c.hits.Load(), c.misses.Load(), c.evicted.Load())
}
