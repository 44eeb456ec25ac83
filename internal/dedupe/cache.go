// ABOUTME: Thread-safe TTL replay cache keyed by idempotency key.
// ABOUTME: Reserves a key while the first request runs, then stores its result for replay.

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

// Status is the state of a key returned by Reserve.
type Status int

const (
	// Reserved means the key was new and now belongs to the caller, who must
	// call Complete or Release.
	Reserved Status = iota
	// InFlight means another request holds the key and has not finished.
	InFlight
	// Done means a stored result is available for replay.
	Done
)

// cacheEntry stores the timestamp, list element and stored result of a key.
type cacheEntry[V any] struct {
	timestamp time.Time
	element   *list.Element
	value     V
	done      bool
}

// Cache is a TTL-based, size-limited replay cache. A doubly-linked list keeps
// insertion order so the oldest finished key is evicted first. In-flight
// reservations are never evicted for size.
type Cache[V any] struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry[V]
	order   *list.List // keys in insertion order (oldest at front)
	ttl     time.Duration
	maxSize int
	now     func() time.Time
	done    chan struct{}
	closed  bool
}

// New creates a replay cache with the specified TTL and maximum size.
// A background goroutine periodically cleans up expired entries.
func New[V any](ttl time.Duration, maxSize int) *Cache[V] {
	if maxSize < 1 {
		maxSize = 1
	}
	c := &Cache[V]{
		entries: make(map[string]*cacheEntry[V]),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go c.cleanup()
	return c
}

// Reserve atomically looks key up and claims it when absent or expired.
// The stored value is only meaningful when the status is Done.
func (c *Cache[V]) Reserve(key string) (V, Status) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	if entry, ok := c.entries[key]; ok && c.live(entry) {
		if entry.done {
			return entry.value, Done
		}
		return zero, InFlight
	}

	c.insertLocked(key)
	return zero, Reserved
}

// Complete stores the result for a reserved key and restarts its TTL.
func (c *Cache[V]) Complete(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		entry = c.insertLocked(key)
	}
	entry.value = value
	entry.done = true
	entry.timestamp = c.now()
	c.order.MoveToBack(entry.element)
}

// Release drops a reservation without storing a result, so a retry runs again.
func (c *Cache[V]) Release(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[key]; ok && !entry.done {
		c.removeLocked(key, entry)
	}
}

// Len returns the number of tracked keys, expired or not.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache[V]) live(entry *cacheEntry[V]) bool {
	return c.now().Sub(entry.timestamp) < c.ttl
}

// insertLocked adds or resets key as a fresh reservation. Must be called with mu held.
func (c *Cache[V]) insertLocked(key string) *cacheEntry[V] {
	if entry, exists := c.entries[key]; exists {
		c.removeLocked(key, entry)
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	entry := &cacheEntry[V]{
		timestamp: c.now(),
		element:   c.order.PushBack(key),
	}
	c.entries[key] = entry
	return entry
}

func (c *Cache[V]) removeLocked(key string, entry *cacheEntry[V]) {
	c.order.Remove(entry.element)
	delete(c.entries, key)
}

// evictOldest removes the oldest entry that is not a live reservation, so a
// request still running keeps its key. When every key is in flight nothing is
// evicted and the cache briefly exceeds maxSize. Must be called with mu held.
func (c *Cache[V]) evictOldest() {
	for e := c.order.Front(); e != nil; e = e.Next() {
		key, _ := e.Value.(string)
		entry := c.entries[key]
		if entry != nil && !entry.done && c.live(entry) {
			continue
		}
		c.order.Remove(e)
		delete(c.entries, key)
		return
	}
}

// cleanup runs in a background goroutine, periodically removing expired entries.
func (c *Cache[V]) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.runCleanup()
		case <-c.done:
			return
		}
	}
}

// runCleanup removes all expired entries from the cache.
func (c *Cache[V]) runCleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, entry := range c.entries {
		if !c.live(entry) {
			c.removeLocked(key, entry)
		}
	}
}

// Close stops the background cleanup goroutine. It is safe to call multiple times.
func (c *Cache[V]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
