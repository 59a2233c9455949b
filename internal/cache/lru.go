package cache

import (
	"container/list"
	"sync"
	"time"
)

// entry is one cached value with metadata.
type entry struct {
	key       string
	value     interface{}
	timestamp time.Time
}

// LRU is a thread-safe least-recently-used cache with an item limit.
// chesslens uses it to keep completed analysis snapshots per position so
// revisiting a move repaints instantly while fresh analysis is underway.
type LRU struct {
	mu           sync.Mutex
	maxItems     int
	items        map[string]*list.Element
	evictionList *list.List

	hits      int64
	misses    int64
	evictions int64
}

// NewLRU creates an LRU holding at most maxItems entries (0 = unlimited).
func NewLRU(maxItems int) *LRU {
	return &LRU{
		maxItems:     maxItems,
		items:        make(map[string]*list.Element),
		evictionList: list.New(),
	}
}

// Get retrieves a value.
func (c *LRU) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.evictionList.MoveToFront(elem)
		c.hits++
		e, ok := elem.Value.(*entry)
		if !ok {
			return nil, false
		}
		return e.value, true
	}

	c.misses++
	return nil, false
}

// Put adds or updates a value, evicting the least recently used entry when
// over capacity.
func (c *LRU) Put(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.evictionList.MoveToFront(elem)
		if e, ok := elem.Value.(*entry); ok {
			e.value = value
			e.timestamp = time.Now()
		}
		return
	}

	elem := c.evictionList.PushFront(&entry{
		key:       key,
		value:     value,
		timestamp: time.Now(),
	})
	c.items[key] = elem

	if c.maxItems > 0 && len(c.items) > c.maxItems {
		c.evictOldest()
	}
}

// Remove deletes a key.
func (c *LRU) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.evictionList.Remove(elem)
		delete(c.items, key)
	}
}

// Clear empties the cache.
func (c *LRU) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.evictionList.Init()
}

// Len returns the number of cached entries.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats returns hit/miss/eviction counts.
func (c *LRU) Stats() (hits, misses, evictions int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses, c.evictions
}

func (c *LRU) evictOldest() {
	elem := c.evictionList.Back()
	if elem == nil {
		return
	}
	c.evictionList.Remove(elem)
	if e, ok := elem.Value.(*entry); ok {
		delete(c.items, e.key)
	}
	c.evictions++
}
