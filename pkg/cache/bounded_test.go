package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a controllable time source for expiry tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestCache(t *testing.T, maxSize int, ttl time.Duration, clock *fakeClock) Cache[string] {
	t.Helper()
	c, err := NewBounded(maxSize, ttl, WithClock[string](clock.Now))
	require.NoError(t, err)
	return c
}

func TestBoundedBasicOperations(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, 10, time.Minute, clock)

	_, found := c.Get("missing")
	assert.False(t, found)

	created, err := c.Set("k1", "v1")
	require.NoError(t, err)
	assert.True(t, created)

	value, found := c.Get("k1")
	require.True(t, found)
	assert.Equal(t, "v1", value)

	created, err = c.Set("k1", "v2")
	require.NoError(t, err)
	assert.False(t, created, "overwrite should not report a new entry")

	value, _ = c.Get("k1")
	assert.Equal(t, "v2", value)

	deleted, err := c.Delete("k1")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = c.Delete("k1")
	require.NoError(t, err)
	assert.False(t, deleted)

	_, found = c.Get("k1")
	assert.False(t, found)
}

func TestBoundedRejectsEmptyKey(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, 10, time.Minute, clock)

	_, err := c.Set("", "v")
	assert.Error(t, err)
	_, err = c.Delete("")
	assert.Error(t, err)
}

func TestBoundedTTLExpiry(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, 10, time.Minute, clock)

	_, err := c.SetWithTTL("k1", "v1", time.Second)
	require.NoError(t, err)

	value, found := c.Get("k1")
	require.True(t, found, "entry should be visible before expiry")
	assert.Equal(t, "v1", value)

	clock.Advance(time.Second)

	_, found = c.Get("k1")
	assert.False(t, found, "entry at its expiry instant should be invisible")
	assert.Equal(t, 0, c.Size(), "expired entry should be removed on read")
}

func TestBoundedExpiredEntriesInvisibleBeforePrune(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, 10, time.Second, clock)

	_, err := c.Set("k1", "v1")
	require.NoError(t, err)

	clock.Advance(2 * time.Second)

	// Not pruned yet, but must not be returned by Keys or Get.
	assert.Empty(t, c.Keys())
	_, found := c.Get("k1")
	assert.False(t, found)
}

func TestBoundedNonPositiveTTLIsNoop(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, 10, time.Minute, clock)

	created, err := c.SetWithTTL("k1", "v1", 0)
	require.NoError(t, err)
	assert.False(t, created)

	_, found := c.Get("k1")
	assert.False(t, found)
}

func TestBoundedCapacityEvictsLeastRecentlyUsed(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, 3, time.Minute, clock)

	for i := 1; i <= 3; i++ {
		_, err := c.Set(fmt.Sprintf("k%d", i), fmt.Sprintf("v%d", i))
		require.NoError(t, err)
	}

	// Touch k1 so k2 becomes the LRU victim.
	_, found := c.Get("k1")
	require.True(t, found)

	_, err := c.Set("k4", "v4")
	require.NoError(t, err)

	assert.Equal(t, 3, c.Size())
	_, found = c.Get("k2")
	assert.False(t, found, "least recently touched key should be evicted")
	for _, key := range []string{"k1", "k3", "k4"} {
		_, found := c.Get(key)
		assert.True(t, found, "key %s should survive", key)
	}
}

func TestBoundedSetPrunesExpiredBeforeEvicting(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, 2, time.Minute, clock)

	_, err := c.SetWithTTL("short", "v", time.Second)
	require.NoError(t, err)
	_, err = c.Set("long", "v")
	require.NoError(t, err)

	clock.Advance(2 * time.Second)

	// Inserting at capacity should drop the expired entry, not the live one.
	_, err = c.Set("new", "v")
	require.NoError(t, err)

	_, found := c.Get("long")
	assert.True(t, found)
	_, found = c.Get("new")
	assert.True(t, found)
	assert.Equal(t, 2, c.Size())
}

func TestDisabledCacheModes(t *testing.T) {
	tests := []struct {
		name    string
		maxSize int
		ttl     time.Duration
	}{
		{"zero capacity", 0, time.Minute},
		{"zero ttl", 10, 0},
		{"negative capacity", -1, time.Minute},
		{"negative ttl", 10, -time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewBounded[string](tt.maxSize, tt.ttl)
			require.NoError(t, err)

			created, err := c.Set("k1", "v1")
			require.NoError(t, err)
			assert.False(t, created)

			_, found := c.Get("k1")
			assert.False(t, found, "disabled cache must always miss")
			assert.Equal(t, 0, c.Size())
			assert.Nil(t, c.Stats())
		})
	}
}

func TestBoundedKeysRecencyOrder(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, 5, time.Minute, clock)

	_, _ = c.Set("a", "1")
	_, _ = c.Set("b", "2")
	_, _ = c.Set("c", "3")
	_, _ = c.Get("a")

	assert.Equal(t, []string{"a", "c", "b"}, c.Keys())
}

func TestBoundedStats(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, 2, time.Minute, clock)

	_, _ = c.Set("a", "1")
	_, _ = c.Get("a")
	_, _ = c.Get("missing")
	_, _ = c.Set("b", "2")
	_, _ = c.Set("c", "3") // evicts one

	stats := c.Stats()
	require.NotNil(t, stats)
	assert.Equal(t, int64(1), stats.Hits())
	assert.Equal(t, int64(1), stats.Misses())
	assert.Equal(t, int64(3), stats.Sets())
	assert.Equal(t, int64(1), stats.Evictions())
	assert.Equal(t, int64(2), stats.CurrentSize())
	assert.InDelta(t, 0.5, stats.HitRatio(), 1e-9)
}

func TestBoundedConcurrentAccess(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, 100, time.Minute, clock)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("k%d", j%20)
				_, _ = c.Set(key, "v")
				_, _ = c.Get(key)
				if j%10 == 0 {
					_, _ = c.Delete(key)
				}
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Size(), 100)
}

func TestNewFromConfig(t *testing.T) {
	c, err := NewFromConfig[string](Config{Enabled: false, MaxEntries: 10, TTL: time.Minute})
	require.NoError(t, err)
	_, _ = c.Set("k", "v")
	_, found := c.Get("k")
	assert.False(t, found)

	c, err = NewFromConfig[string](Config{Enabled: true, MaxEntries: 10, TTL: time.Minute})
	require.NoError(t, err)
	_, _ = c.Set("k", "v")
	_, found = c.Get("k")
	assert.True(t, found)
}
