package lru_test

import (
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/heatmap/pkg/alg/lru"
)

const (
	// smallMaxEntries limits the cache to 3 entries for eviction tests.
	smallMaxEntries = 3

	// testConcurrentGoroutines is the number of goroutines for concurrency tests.
	testConcurrentGoroutines = 20

	// testConcurrentOps is the number of operations per goroutine.
	testConcurrentOps = 200
)

func TestCache_GetPut(t *testing.T) {
	t.Parallel()

	c := lru.New[string, int](smallMaxEntries)

	c.Put("a", 1)
	c.Put("b", 2)

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = c.Get("missing")
	assert.False(t, ok)

	c.Put("a", 10)

	v, _ = c.Get("a")
	assert.Equal(t, 10, v)
	assert.Equal(t, 2, c.Len())
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	t.Parallel()

	var evicted []string

	c := lru.New(smallMaxEntries, lru.WithOnEvict(func(k string, _ int) {
		evicted = append(evicted, k)
	}))

	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("c", 3)

	// Touch "a" so "b" becomes the eviction victim.
	_, _ = c.Get("a")

	c.Put("d", 4)

	assert.Equal(t, []string{"b"}, evicted)
	assert.Equal(t, smallMaxEntries, c.Len())

	_, ok := c.Peek("b")
	assert.False(t, ok)

	for _, key := range []string{"a", "c", "d"} {
		_, ok = c.Peek(key)
		assert.True(t, ok, key)
	}

	// Replacing a present key never evicts.
	c.Put("a", 10)
	assert.Equal(t, []string{"b"}, evicted)
}

func TestCache_PeekDoesNotPromote(t *testing.T) {
	t.Parallel()

	c := lru.New[string, int](2)

	c.Put("a", 1)
	c.Put("b", 2)

	v, ok := c.Peek("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	c.Put("c", 3)

	_, ok = c.Peek("a")
	assert.False(t, ok)
}

func TestCache_NewPanicsWithoutCapacity(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { lru.New[int, int](0) })
}

func TestCache_Concurrent(t *testing.T) {
	t.Parallel()

	c := lru.New[string, int](testConcurrentOps / 2)

	var wg sync.WaitGroup

	for g := range testConcurrentGoroutines {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for i := range testConcurrentOps {
				key := strconv.Itoa((g + i) % testConcurrentOps)
				c.Put(key, i)
				_, _ = c.Get(key)
			}
		}()
	}

	wg.Wait()

	assert.LessOrEqual(t, c.Len(), testConcurrentOps/2)
}
