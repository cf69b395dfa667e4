package cache

import (
	"container/list"
	"sync"
	"time"
)

// boundedEntry is an entry in the bounded expiring cache.
type boundedEntry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
}

// boundedCache combines per-entry TTL expiry with LRU-bounded capacity.
//
// Entries are kept in recency order (most recently used at the front of the
// list). Expired entries are invisible to readers and pruned lazily on
// access and on insert; when the cache exceeds capacity after a prune, the
// least recently used entries are evicted. There is no background cleanup
// goroutine: all maintenance happens under the single mutex, and no I/O is
// ever performed while holding it.
type boundedCache[V any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	items   map[string]*list.Element
	order   *list.List // recency order, MRU at front
	stats   *Statistics
	metrics *cacheMetrics
	now     func() time.Time
}

// NewBounded creates a bounded expiring cache with the given capacity and
// default TTL. If either is non-positive the returned cache is permanently
// disabled (see NewNoop).
func NewBounded[V any](maxSize int, ttl time.Duration, options ...Option[V]) (Cache[V], error) {
	if maxSize <= 0 || ttl <= 0 {
		return NewNoop[V](), nil
	}

	opts := applyOptions(options...)

	var metrics *cacheMetrics
	if opts.metricsReg != nil && opts.metricsPrefix != "" {
		var err error
		metrics, err = newCacheMetrics(opts.metricsReg, opts.metricsPrefix)
		if err != nil {
			return nil, err
		}
	}

	now := opts.clock
	if now == nil {
		now = time.Now
	}

	return &boundedCache[V]{
		maxSize: maxSize,
		ttl:     ttl,
		items:   make(map[string]*list.Element),
		order:   list.New(),
		stats:   NewStatistics(),
		metrics: metrics,
		now:     now,
	}, nil
}

// Get retrieves a value by key. An expired entry is removed and reported as
// a miss; a live entry gets a recency bump.
func (c *boundedCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	element, exists := c.items[key]
	if !exists {
		c.recordMiss()
		var zero V
		return zero, false
	}

	entry := element.Value.(*boundedEntry[V])
	if !c.now().Before(entry.expiresAt) {
		c.removeElement(element)
		c.recordEviction()
		c.recordMiss()
		var zero V
		return zero, false
	}

	c.order.MoveToFront(element)
	c.stats.Hit()
	if c.metrics != nil {
		c.metrics.recordHit()
	}
	return entry.value, true
}

// Set stores a value using the cache-wide default TTL.
func (c *boundedCache[V]) Set(key string, value V) (bool, error) {
	return c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores a value with an explicit TTL, then prunes: expired
// entries first, then LRU eviction while over capacity. A non-positive TTL
// is a no-op.
func (c *boundedCache[V]) SetWithTTL(key string, value V, ttl time.Duration) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	if ttl <= 0 {
		return false, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	expiresAt := now.Add(ttl)

	created := false
	if element, exists := c.items[key]; exists {
		entry := element.Value.(*boundedEntry[V])
		entry.value = value
		entry.expiresAt = expiresAt
		c.order.MoveToFront(element)
	} else {
		element := c.order.PushFront(&boundedEntry[V]{key: key, value: value, expiresAt: expiresAt})
		c.items[key] = element
		created = true
	}

	c.pruneExpired(now)
	for len(c.items) > c.maxSize {
		c.evictLRU()
	}

	c.stats.Set()
	c.stats.UpdateSize(int64(len(c.items)))
	if c.metrics != nil {
		c.metrics.recordSet()
		c.metrics.updateSize(len(c.items))
	}

	return created, nil
}

// Delete removes an entry by key unconditionally.
func (c *boundedCache[V]) Delete(key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	element, exists := c.items[key]
	if !exists {
		return false, nil
	}

	c.removeElement(element)
	c.stats.Delete()
	c.stats.UpdateSize(int64(len(c.items)))
	if c.metrics != nil {
		c.metrics.recordDelete()
		c.metrics.updateSize(len(c.items))
	}
	return true, nil
}

// Clear removes all entries from the cache.
func (c *boundedCache[V]) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.order.Init()

	c.stats.UpdateSize(0)
	if c.metrics != nil {
		c.metrics.updateSize(0)
	}
	return nil
}

// Size returns the current number of entries, including entries that have
// expired but not yet been pruned.
func (c *boundedCache[V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Keys returns unexpired keys in recency order (most recently used first).
func (c *boundedCache[V]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.items))
	now := c.now()
	for element := c.order.Front(); element != nil; element = element.Next() {
		entry := element.Value.(*boundedEntry[V])
		if now.Before(entry.expiresAt) {
			keys = append(keys, entry.key)
		}
	}
	return keys
}

// Stats returns cache statistics.
func (c *boundedCache[V]) Stats() *Statistics {
	return c.stats
}

// pruneExpired removes every expired entry. Must be called with mutex held.
func (c *boundedCache[V]) pruneExpired(now time.Time) {
	for element := c.order.Front(); element != nil; {
		next := element.Next()
		entry := element.Value.(*boundedEntry[V])
		if !now.Before(entry.expiresAt) {
			c.removeElement(element)
			c.recordEviction()
		}
		element = next
	}
}

// evictLRU removes the least recently used entry. Must be called with mutex held.
func (c *boundedCache[V]) evictLRU() {
	element := c.order.Back()
	if element != nil {
		c.removeElement(element)
		c.recordEviction()
	}
}

// removeElement removes an element from both the list and map.
// Must be called with mutex held.
func (c *boundedCache[V]) removeElement(element *list.Element) {
	entry := element.Value.(*boundedEntry[V])
	delete(c.items, entry.key)
	c.order.Remove(element)
}

func (c *boundedCache[V]) recordMiss() {
	c.stats.Miss()
	if c.metrics != nil {
		c.metrics.recordMiss()
	}
}

func (c *boundedCache[V]) recordEviction() {
	c.stats.Eviction()
	c.stats.UpdateSize(int64(len(c.items)))
	if c.metrics != nil {
		c.metrics.recordEviction()
		c.metrics.updateSize(len(c.items))
	}
}
