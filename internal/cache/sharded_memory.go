package cache

import (
	"time"

	"github.com/cespare/xxhash/v2"
	gocache "github.com/patrickmn/go-cache"
)

const shardCount = 64 // power of two

// ShardedMemoryCache is a typed TTL cache spread over go-cache shards picked
// by xxhash. It has no capacity bound; use it for per-URL content where
// expiry alone keeps the working set small.
type ShardedMemoryCache[V any] struct {
	shards []*gocache.Cache
}

// NewShardedMemoryCache creates the shards. Each shard purges expired items
// every cleanupInterval.
func NewShardedMemoryCache[V any](defaultExpiration, cleanupInterval time.Duration) *ShardedMemoryCache[V] {
	c := &ShardedMemoryCache[V]{
		shards: make([]*gocache.Cache, shardCount),
	}
	for i := range c.shards {
		c.shards[i] = gocache.New(defaultExpiration, cleanupInterval)
	}
	return c
}

func (c *ShardedMemoryCache[V]) getShard(key string) *gocache.Cache {
	return c.shards[xxhash.Sum64String(key)&(shardCount-1)]
}

// Get returns the value stored under key, if present and of type V.
func (c *ShardedMemoryCache[V]) Get(key string) (V, bool) {
	var zero V
	val, found := c.getShard(key).Get(key)
	if !found {
		return zero, false
	}
	v, ok := val.(V)
	if !ok {
		return zero, false
	}
	return v, true
}

// Set stores value for duration. A zero duration uses the default expiration.
func (c *ShardedMemoryCache[V]) Set(key string, value V, duration time.Duration) {
	if duration == 0 {
		duration = gocache.DefaultExpiration
	}
	c.getShard(key).Set(key, value, duration)
}

func (c *ShardedMemoryCache[V]) Delete(key string) {
	c.getShard(key).Delete(key)
}

// ItemCount sums live and not yet purged items across shards.
func (c *ShardedMemoryCache[V]) ItemCount() int {
	n := 0
	for _, s := range c.shards {
		n += s.ItemCount()
	}
	return n
}
