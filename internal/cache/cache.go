package cache

import (
	"sync"
	"time"

	"github.com/drallgood/book-catalog/internal/logger"
)

// Cache stores values with an optional time to live
type Cache[K comparable, V any] interface {
	// Set stores value under key; a non-positive ttl never expires
	Set(key K, value V, ttl time.Duration)
	// Get returns the value and whether a live entry was found
	Get(key K) (V, bool)
	Delete(key K)
	Clear()
	// Len returns the number of stored entries, expired ones included
	Len() int
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

func (e entry[V]) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

type memoryCache[K comparable, V any] struct {
	mu    sync.RWMutex
	items map[K]entry[V]
	now   func() time.Time
	log   *logger.Logger
}

// NewMemoryCache creates an in-memory cache
func NewMemoryCache[K comparable, V any](log *logger.Logger) Cache[K, V] {
	return newMemoryCache[K, V](log, time.Now)
}

func newMemoryCache[K comparable, V any](log *logger.Logger, now func() time.Time) *memoryCache[K, V] {
	if log == nil {
		log = logger.Nop()
	}
	return &memoryCache[K, V]{
		items: make(map[K]entry[V]),
		now:   now,
		log:   log,
	}
}

func (c *memoryCache[K, V]) Set(key K, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := entry[V]{value: value}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}
	c.items[key] = e

	c.log.Debug("Item added to cache", map[string]interface{}{
		"key":        key,
		"cache_size": len(c.items),
	})
}

func (c *memoryCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	e, found := c.items[key]
	c.mu.RUnlock()

	var zero V
	if !found {
		return zero, false
	}
	if e.expired(c.now()) {
		c.mu.Lock()
		// re-check: the entry may have been replaced meanwhile
		if cur, ok := c.items[key]; ok && cur.expired(c.now()) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		c.log.Debug("Cache item expired", map[string]interface{}{"key": key})
		return zero, false
	}
	return e.value, true
}

func (c *memoryCache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

func (c *memoryCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[K]entry[V])
	c.log.Debug("Cache cleared")
}

func (c *memoryCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// GetOrLoad returns the cached value for key, or calls load and caches
// its result when it succeeds
func GetOrLoad[K comparable, V any](c Cache[K, V], key K, ttl time.Duration, load func() (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := load()
	if err != nil {
		return v, err
	}
	c.Set(key, v, ttl)
	return v, nil
}
