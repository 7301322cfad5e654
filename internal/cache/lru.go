package cache

import (
	"container/list"
	"sync"
	"time"
)

// LRUCache is an LRU cache with TTL and size-based eviction. The eviction
// callback runs after the cache lock is released.
type LRUCache[T any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	items   map[string]*list.Element
	lru     *list.List
	now     func() time.Time
	onEvict func(key string, data T)
}

type cacheItem[T any] struct {
	key       string
	data      T
	expiresAt time.Time
}

// NewLRUCache creates a new LRU cache with TTL
func NewLRUCache[T any](maxSize int, ttl time.Duration) *LRUCache[T] {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &LRUCache[T]{
		maxSize: maxSize,
		ttl:     ttl,
		items:   make(map[string]*list.Element),
		lru:     list.New(),
		now:     time.Now,
	}
}

// OnEvict registers fn for entries dropped by expiry, capacity, Delete or
// replacement by Set.
func (c *LRUCache[T]) OnEvict(fn func(key string, data T)) {
	c.mu.Lock()
	c.onEvict = fn
	c.mu.Unlock()
}

// Get retrieves a value from the cache and refreshes its TTL.
func (c *LRUCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	var zero T
	elem, exists := c.items[key]
	if !exists {
		c.mu.Unlock()
		return zero, false
	}

	item := elem.Value.(*cacheItem[T])
	now := c.now()
	if now.After(item.expiresAt) {
		c.removeElement(elem)
		fn := c.onEvict
		c.mu.Unlock()
		if fn != nil {
			fn(item.key, item.data)
		}
		return zero, false
	}

	item.expiresAt = now.Add(c.ttl)
	c.lru.MoveToFront(elem)
	c.mu.Unlock()
	return item.data, true
}

// Set stores a value in the cache
func (c *LRUCache[T]) Set(key string, data T) {
	c.mu.Lock()
	item := &cacheItem[T]{
		key:       key,
		data:      data,
		expiresAt: c.now().Add(c.ttl),
	}

	var evicted []*cacheItem[T]
	if elem, exists := c.items[key]; exists {
		evicted = append(evicted, elem.Value.(*cacheItem[T]))
		elem.Value = item
		c.lru.MoveToFront(elem)
	} else {
		c.items[key] = c.lru.PushFront(item)
		if c.lru.Len() > c.maxSize {
			if oldest := c.lru.Back(); oldest != nil {
				evicted = append(evicted, oldest.Value.(*cacheItem[T]))
				c.removeElement(oldest)
			}
		}
	}
	fn := c.onEvict
	c.mu.Unlock()
	c.notify(fn, evicted)
}

// Delete removes a key from the cache
func (c *LRUCache[T]) Delete(key string) {
	c.mu.Lock()
	var evicted []*cacheItem[T]
	if elem, exists := c.items[key]; exists {
		evicted = append(evicted, elem.Value.(*cacheItem[T]))
		c.removeElement(elem)
	}
	fn := c.onEvict
	c.mu.Unlock()
	c.notify(fn, evicted)
}

func (c *LRUCache[T]) removeElement(elem *list.Element) {
	item := elem.Value.(*cacheItem[T])
	delete(c.items, item.key)
	c.lru.Remove(elem)
}

func (c *LRUCache[T]) notify(fn func(string, T), items []*cacheItem[T]) {
	if fn == nil {
		return
	}
	for _, it := range items {
		fn(it.key, it.data)
	}
}

// CleanExpired removes all expired entries and returns count of removed items
func (c *LRUCache[T]) CleanExpired() int {
	c.mu.Lock()
	now := c.now()
	var toRemove []*list.Element
	for elem := c.lru.Front(); elem != nil; elem = elem.Next() {
		item := elem.Value.(*cacheItem[T])
		if now.After(item.expiresAt) {
			toRemove = append(toRemove, elem)
		}
	}

	evicted := make([]*cacheItem[T], 0, len(toRemove))
	for _, elem := range toRemove {
		evicted = append(evicted, elem.Value.(*cacheItem[T]))
		c.removeElement(elem)
	}
	fn := c.onEvict
	c.mu.Unlock()
	c.notify(fn, evicted)
	return len(evicted)
}

// Purge drops every entry.
func (c *LRUCache[T]) Purge() {
	c.mu.Lock()
	evicted := make([]*cacheItem[T], 0, c.lru.Len())
	for elem := c.lru.Front(); elem != nil; elem = elem.Next() {
		evicted = append(evicted, elem.Value.(*cacheItem[T]))
	}
	c.items = make(map[string]*list.Element)
	c.lru.Init()
	fn := c.onEvict
	c.mu.Unlock()
	c.notify(fn, evicted)
}

// Size returns the current number of items in the cache
func (c *LRUCache[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
