// Package cache provides the in-process stores shared across concurrent
// pipeline invocations.
package cache

import (
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultCapacity is the entry bound used when New is given a non-positive capacity.
	DefaultCapacity = 2000
	// DefaultSweepInterval is the cleanup period used when New is given a non-positive interval.
	DefaultSweepInterval = 5 * time.Minute
	// DefaultTTL applies to Set calls made with a non-positive ttl.
	DefaultTTL = 5 * time.Minute
)

// entry is owned by ResultCache and never handed out.
type entry[V any] struct {
	value       V
	createdAt   time.Time
	ttl         time.Duration
	accessCount int64
	seq         uint64 // insertion order, used to break eviction ties
}

func (e *entry[V]) expired(now time.Time) bool {
	return now.Sub(e.createdAt) > e.ttl
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Size      int   `json:"size"`
	Capacity  int   `json:"capacity"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
}

// ResultCache is a capacity-bounded TTL store with frequency-based eviction.
//
// When full, Set evicts the entry with the lowest cumulative access count,
// oldest insertion first on ties. This is not LRU: a freshly inserted entry
// starts at zero and is the first candidate on the next insert at capacity,
// however hot it becomes afterwards.
//
// All operations take one mutex, including the background sweep.
type ResultCache[V any] struct {
	mu       sync.Mutex
	entries  map[string]*entry[V]
	capacity int
	seq      uint64

	hits      int64
	misses    int64
	evictions int64

	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// New creates a ResultCache and starts its periodic cleanup. Callers own the
// returned cache and must call Shutdown to stop the sweeper.
func New[V any](capacity int, sweepInterval time.Duration) *ResultCache[V] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}

	c := &ResultCache[V]{
		entries:  make(map[string]*entry[V], capacity),
		capacity: capacity,
		now:      time.Now,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go c.sweep(sweepInterval)
	return c
}

func (c *ResultCache[V]) sweep(interval time.Duration) {
	defer close(c.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if removed := c.Cleanup(); removed > 0 {
				slog.Debug("Result cache sweep", "removed", removed, "size", c.Size())
			}
		case <-c.stop:
			return
		}
	}
}

// Shutdown stops the background sweeper. It is safe to call more than once.
// The cache stays usable afterwards; expired entries are then only dropped on read.
func (c *ResultCache[V]) Shutdown() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
	<-c.done
}

// Set stores value under key. If key is new and the store is at capacity,
// one entry is evicted first. The access count always restarts at zero.
func (c *ResultCache[V]) Set(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(key, value, ttl)
}

func (c *ResultCache[V]) setLocked(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.capacity {
		c.evictLocked()
	}
	c.seq++
	c.entries[key] = &entry[V]{
		value:     value,
		createdAt: c.now(),
		ttl:       ttl,
		seq:       c.seq,
	}
}

// evictLocked removes the least accessed entry. O(capacity).
func (c *ResultCache[V]) evictLocked() {
	var (
		victim string
		best   *entry[V]
	)
	for key, e := range c.entries {
		if best == nil || e.accessCount < best.accessCount ||
			(e.accessCount == best.accessCount && e.seq < best.seq) {
			victim, best = key, e
		}
	}
	if best != nil {
		delete(c.entries, victim)
		c.evictions++
	}
}

// Get returns the value for key. Expired entries are removed and reported absent.
func (c *ResultCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return zero, false
	}
	if e.expired(c.now()) {
		delete(c.entries, key)
		c.misses++
		return zero, false
	}
	e.accessCount++
	c.hits++
	return e.value, true
}

// Has reports whether key holds a live entry without counting an access.
func (c *ResultCache[V]) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return false
	}
	if e.expired(c.now()) {
		delete(c.entries, key)
		return false
	}
	return true
}

// Warmup stores value only if key has no live entry.
func (c *ResultCache[V]) Warmup(key string, value V, ttl time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		if !e.expired(c.now()) {
			return false
		}
		delete(c.entries, key)
	}
	c.setLocked(key, value, ttl)
	return true
}

func (c *ResultCache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

func (c *ResultCache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry[V], c.capacity)
}

func (c *ResultCache[V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Capacity returns the configured entry bound.
func (c *ResultCache[V]) Capacity() int {
	return c.capacity
}

// Cleanup removes every expired entry and returns how many were dropped.
func (c *ResultCache[V]) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Stats returns the current counters.
func (c *ResultCache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Size:      len(c.entries),
		Capacity:  c.capacity,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}
