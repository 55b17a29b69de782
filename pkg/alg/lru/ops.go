package lru

// Get returns the value of key and marks it as most recently used.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.nodes[key]
	if !ok {
		var zero V

		return zero, false
	}

	c.moveToFront(n)

	return n.value, true
}

// Peek returns the value of key without touching its recency.
func (c *Cache[K, V]) Peek(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.nodes[key]
	if !ok {
		var zero V

		return zero, false
	}

	return n.value, true
}

// Put adds or replaces the value of key, evicting the least recently used
// entry when the cache is full.
func (c *Cache[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n, ok := c.nodes[key]; ok {
		n.value = value
		c.moveToFront(n)

		return
	}

	for len(c.nodes) >= c.maxEntries && c.tail != nil {
		c.evictTail()
	}

	n := &node[K, V]{key: key, value: value}
	c.nodes[key] = n
	c.addToFront(n)
}

func (c *Cache[K, V]) evictTail() {
	victim := c.tail
	c.unlink(victim)
	delete(c.nodes, victim.key)

	if c.onEvict != nil {
		c.onEvict(victim.key, victim.value)
	}
}

func (c *Cache[K, V]) moveToFront(n *node[K, V]) {
	if n == c.head {
		return
	}

	c.unlink(n)
	c.addToFront(n)
}

func (c *Cache[K, V]) addToFront(n *node[K, V]) {
	n.prev = nil
	n.next = c.head

	if c.head != nil {
		c.head.prev = n
	}

	c.head = n

	if c.tail == nil {
		c.tail = n
	}
}

func (c *Cache[K, V]) unlink(n *node[K, V]) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		c.head = n.next
	}

	if n.next != nil {
		n.next.prev = n.prev
	} else {
		c.tail = n.prev
	}

	n.prev, n.next = nil, nil
}
