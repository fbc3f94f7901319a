package cache

import "container/list"

// Entry is a key/value pair handed back to the caller on eviction. The caller
// becomes the sole owner of the value and is responsible for any write-back.
type Entry[K comparable, V any] struct {
	Key   K
	Value V
}

// LRU is a fixed-capacity least-recently-used map. Both Get and Put refresh
// recency. It performs no I/O and holds no locks: the managed raster that owns
// it is single-threaded by contract.
type LRU[K comparable, V any] struct {
	capacity int
	items    map[K]*list.Element
	order    *list.List // front = most recently used
}

type lruEntry[K comparable, V any] struct {
	key   K
	value V
}

// New creates an LRU holding at most capacity entries. capacity must be > 0.
func New[K comparable, V any](capacity int) *LRU[K, V] {
	if capacity <= 0 {
		panic("cache: capacity must be positive")
	}
	return &LRU[K, V]{
		capacity: capacity,
		items:    make(map[K]*list.Element, capacity),
		order:    list.New(),
	}
}

// Exists reports whether key is resident. It does not refresh recency.
func (c *LRU[K, V]) Exists(key K) bool {
	_, ok := c.items[key]
	return ok
}

// Get returns the resident value for key and refreshes its recency.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	if el, ok := c.items[key]; ok {
		c.order.MoveToFront(el)
		return el.Value.(*lruEntry[K, V]).value, true
	}
	var zero V
	return zero, false
}

// Put inserts or replaces the value for key and refreshes its recency.
// When the insert would exceed capacity, the single least-recently-used entry
// is removed and returned; ownership of the evicted value transfers to the
// caller. Replacing an existing key never evicts.
func (c *LRU[K, V]) Put(key K, value V) []Entry[K, V] {
	if el, ok := c.items[key]; ok {
		c.order.MoveToFront(el)
		el.Value.(*lruEntry[K, V]).value = value
		return nil
	}

	c.items[key] = c.order.PushFront(&lruEntry[K, V]{key: key, value: value})

	var evicted []Entry[K, V]
	for c.order.Len() > c.capacity {
		el := c.order.Back()
		ent := el.Value.(*lruEntry[K, V])
		c.order.Remove(el)
		delete(c.items, ent.key)
		evicted = append(evicted, Entry[K, V]{Key: ent.key, Value: ent.value})
	}
	return evicted
}

// Len returns the number of resident entries.
func (c *LRU[K, V]) Len() int { return c.order.Len() }

// Range calls f for every resident entry in most-recently-used order,
// stopping early if f returns false. It does not refresh recency.
func (c *LRU[K, V]) Range(f func(key K, value V) bool) {
	for el := c.order.Front(); el != nil; el = el.Next() {
		ent := el.Value.(*lruEntry[K, V])
		if !f(ent.key, ent.value) {
			return
		}
	}
}

// Clear drops every resident entry without handing them back.
func (c *LRU[K, V]) Clear() {
	c.items = make(map[K]*list.Element, c.capacity)
	c.order.Init()
}
