package cache

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, capacity int) *ResultCache[string] {
	t.Helper()
	c := New[string](capacity, time.Hour)
	t.Cleanup(c.Shutdown)
	return c
}

func TestResultCache_SetGet(t *testing.T) {
	c := newTestCache(t, 10)

	c.Set("a", "alpha", time.Minute)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "alpha", v)

	_, ok = c.Get("missing")
	assert.False(t, ok)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestResultCache_TTLExpiry(t *testing.T) {
	c := newTestCache(t, 10)

	c.Set("k", "v", 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Size(), "expired entry should be removed on read")
}

func TestResultCache_HasDoesNotCountAccess(t *testing.T) {
	c := newTestCache(t, 2)

	c.Set("a", "1", time.Minute)
	c.Set("b", "2", time.Minute)

	// Has on "a" must not protect it from eviction.
	for i := 0; i < 5; i++ {
		assert.True(t, c.Has("a"))
	}
	_, _ = c.Get("b")

	c.Set("c", "3", time.Minute)
	assert.False(t, c.Has("a"))
	assert.True(t, c.Has("b"))
	assert.True(t, c.Has("c"))
}

func TestResultCache_HasExpired(t *testing.T) {
	c := newTestCache(t, 2)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Set("a", "1", time.Second)
	assert.True(t, c.Has("a"))

	now = now.Add(2 * time.Second)
	assert.False(t, c.Has("a"))
	assert.Equal(t, 0, c.Size())
}

func TestResultCache_EvictionBound(t *testing.T) {
	const capacity = 50
	c := newTestCache(t, capacity)

	for i := 0; i < capacity+1; i++ {
		c.Set(fmt.Sprintf("key-%d", i), "v", time.Minute)
		assert.LessOrEqual(t, c.Size(), capacity)
	}
	assert.Equal(t, capacity, c.Size())
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestResultCache_EvictsLowestAccessCount(t *testing.T) {
	c := newTestCache(t, 3)

	c.Set("hot", "1", time.Minute)
	c.Set("warm", "2", time.Minute)
	c.Set("cold", "3", time.Minute)

	for i := 0; i < 3; i++ {
		c.Get("hot")
	}
	c.Get("warm")

	c.Set("new", "4", time.Minute)
	assert.False(t, c.Has("cold"))
	assert.True(t, c.Has("hot"))
	assert.True(t, c.Has("warm"))
	assert.True(t, c.Has("new"))
}

func TestResultCache_NewEntryIsNextVictim(t *testing.T) {
	c := newTestCache(t, 2)

	c.Set("a", "1", time.Minute)
	c.Set("b", "2", time.Minute)
	c.Get("a")
	c.Get("b")

	c.Set("fresh", "3", time.Minute) // evicts a (tie at 1, older)
	c.Set("next", "4", time.Minute)  // evicts fresh, count 0

	assert.False(t, c.Has("fresh"))
	assert.True(t, c.Has("b"))
	assert.True(t, c.Has("next"))
}

func TestResultCache_TieBreakByInsertionOrder(t *testing.T) {
	c := newTestCache(t, 3)

	c.Set("first", "1", time.Minute)
	c.Set("second", "2", time.Minute)
	c.Set("third", "3", time.Minute)

	c.Set("fourth", "4", time.Minute)
	assert.False(t, c.Has("first"))
	assert.True(t, c.Has("second"))
}

func TestResultCache_OverwriteDoesNotEvict(t *testing.T) {
	c := newTestCache(t, 2)

	c.Set("a", "1", time.Minute)
	c.Set("b", "2", time.Minute)
	c.Set("a", "1b", time.Minute)

	assert.Equal(t, 2, c.Size())
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "1b", v)
	assert.Equal(t, int64(0), c.Stats().Evictions)
}

func TestResultCache_Warmup(t *testing.T) {
	c := newTestCache(t, 10)

	assert.True(t, c.Warmup("k", "first", time.Minute))
	assert.False(t, c.Warmup("k", "second", time.Minute))

	v, _ := c.Get("k")
	assert.Equal(t, "first", v)
}

func TestResultCache_DeleteClear(t *testing.T) {
	c := newTestCache(t, 10)

	c.Set("a", "1", time.Minute)
	c.Set("b", "2", time.Minute)
	c.Delete("a")
	assert.False(t, c.Has("a"))
	assert.Equal(t, 1, c.Size())

	c.Clear()
	assert.Equal(t, 0, c.Size())
}

func TestResultCache_Cleanup(t *testing.T) {
	c := newTestCache(t, 10)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Set("short", "1", time.Second)
	c.Set("long", "2", time.Hour)

	now = now.Add(time.Minute)
	assert.Equal(t, 1, c.Cleanup())
	assert.Equal(t, 1, c.Size())
	assert.True(t, c.Has("long"))
}

func TestResultCache_BackgroundSweep(t *testing.T) {
	c := New[string](10, 5*time.Millisecond)
	defer c.Shutdown()

	c.Set("k", "v", time.Millisecond)
	assert.Eventually(t, func() bool { return c.Size() == 0 }, time.Second, 5*time.Millisecond)
}

func TestResultCache_ShutdownIdempotent(t *testing.T) {
	c := New[int](1, time.Hour)
	c.Shutdown()
	c.Shutdown()

	c.Set("still", 1, time.Minute)
	v, ok := c.Get("still")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestResultCache_ConcurrentAccess(t *testing.T) {
	const capacity = 100
	c := newTestCache(t, capacity)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				key := fmt.Sprintf("w%d-%d", w, i%150)
				c.Set(key, key, time.Minute)
				c.Get(key)
				c.Has(key)
				if i%50 == 0 {
					c.Cleanup()
				}
			}
		}(w)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Size(), capacity)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "search:hello", Key("search", "hello"))

	long := strings.Repeat("天", MaxKeyPrefix) + "a"
	other := strings.Repeat("天", MaxKeyPrefix) + "b"
	k1, k2 := Key("search", long), Key("search", other)

	assert.NotEqual(t, k1, k2)
	assert.True(t, strings.HasPrefix(k1, "search:"+strings.Repeat("天", MaxKeyPrefix)+"#"))
}

func TestShardedMemoryCache(t *testing.T) {
	c := NewShardedMemoryCache[int](time.Minute, time.Minute)

	c.Set("a", 1, 0)
	c.Set("b", 2, time.Millisecond)

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	time.Sleep(5 * time.Millisecond)
	_, ok = c.Get("b")
	assert.False(t, ok)

	c.Delete("a")
	_, ok = c.Get("a")
	assert.False(t, ok)
}
