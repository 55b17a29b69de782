// Package lru provides a generic thread-safe LRU cache with count-based
// eviction and an optional eviction callback.
package lru

import "sync"

// node is a doubly-linked list element holding one cached pair.
type node[K comparable, V any] struct {
	key   K
	value V
	prev  *node[K, V]
	next  *node[K, V]
}

// Cache is a thread-safe generic LRU cache.
type Cache[K comparable, V any] struct {
	mu    sync.Mutex
	nodes map[K]*node[K, V]
	head  *node[K, V] // Most recently used.
	tail  *node[K, V] // Least recently used.

	maxEntries int
	onEvict    func(K, V)
}

// Option configures a Cache.
type Option[K comparable, V any] func(*Cache[K, V])

// WithOnEvict registers fn to be called with each entry dropped for capacity.
// fn runs with the cache lock held and must not call back into the cache.
func WithOnEvict[K comparable, V any](fn func(K, V)) Option[K, V] {
	return func(c *Cache[K, V]) {
		c.onEvict = fn
	}
}

// New creates a cache holding at most maxEntries entries. New panics if
// maxEntries is not positive.
func New[K comparable, V any](maxEntries int, opts ...Option[K, V]) *Cache[K, V] {
	if maxEntries <= 0 {
		panic("lru: maxEntries must be positive")
	}

	c := &Cache[K, V]{
		nodes:      make(map[K]*node[K, V]),
		maxEntries: maxEntries,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Len returns the number of entries in the cache.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.nodes)
}
