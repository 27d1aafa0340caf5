package market

import (
	"container/list"
	"sync"
)

// addressCache is a bounded LRU. Lookups come from client supplied token
// pairs, so the size must not grow with traffic.
type addressCache[K comparable, V any] struct {
	mu      sync.Mutex
	items   map[K]*list.Element
	lru     *list.List
	maxSize int
}

type cacheEntry[K comparable, V any] struct {
	key   K
	value V
}

func newAddressCache[K comparable, V any](maxSize int) *addressCache[K, V] {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &addressCache[K, V]{
		items:   make(map[K]*list.Element),
		lru:     list.New(),
		maxSize: maxSize,
	}
}

func (c *addressCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.lru.MoveToFront(elem)
	return elem.Value.(*cacheEntry[K, V]).value, true
}

func (c *addressCache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.lru.MoveToFront(elem)
		elem.Value.(*cacheEntry[K, V]).value = value
		return
	}

	for len(c.items) >= c.maxSize {
		back := c.lru.Back()
		c.lru.Remove(back)
		delete(c.items, back.Value.(*cacheEntry[K, V]).key)
	}
	c.items[key] = c.lru.PushFront(&cacheEntry[K, V]{key: key, value: value})
}

func (c *addressCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
