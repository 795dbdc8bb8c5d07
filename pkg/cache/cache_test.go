package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func TestSetThenGet(t *testing.T) {
	c := New[string, string](Options{MaxEntries: 10, TTL: time.Minute})
	c.Set("hello|ja", "こんにちは")

	v, ok := c.Get("hello|ja")
	require.True(t, ok)
	require.Equal(t, "こんにちは", v)

	_, ok = c.Get("missing")
	require.False(t, ok)

	st := c.Stats()
	require.Equal(t, uint64(1), st.Hits)
	require.Equal(t, uint64(1), st.Misses)
}

func TestSetOverwritesLatestWins(t *testing.T) {
	c := New[string, int](Options{MaxEntries: 2})
	c.Set("a", 1)
	c.Set("a", 2)

	v, ok := c.Get("a")
	require.True(t, ok)
	require.Equal(t, 2, v)
	require.Equal(t, 1, c.Len())
}

func TestCapacityEvictsLeastRecentlyUsed(t *testing.T) {
	c := New[string, int](Options{MaxEntries: 3})
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	// Touch "a" so "b" becomes the least recently used entry.
	_, ok := c.Get("a")
	require.True(t, ok)

	c.Set("d", 4)
	require.Equal(t, 3, c.Len())

	_, ok = c.Get("b")
	require.False(t, ok)
	for _, k := range []string{"a", "c", "d"} {
		_, ok := c.Get(k)
		require.True(t, ok, k)
	}
	require.Equal(t, uint64(1), c.Stats().Evictions)
}

func TestReinsertMovesToFront(t *testing.T) {
	c := New[string, int](Options{MaxEntries: 2})
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("a", 10)
	c.Set("c", 3)

	_, ok := c.Get("b")
	require.False(t, ok)
	v, ok := c.Get("a")
	require.True(t, ok)
	require.Equal(t, 10, v)
}

func TestSizeNeverExceedsMax(t *testing.T) {
	c := New[string, int](Options{MaxEntries: 5})
	for i := 0; i < 50; i++ {
		c.Set(fmt.Sprintf("k%d", i), i)
		require.LessOrEqual(t, c.Len(), 5)
	}
}

func TestTTLExpiry(t *testing.T) {
	clk := newClock()
	c := New[string, string](Options{MaxEntries: 10, TTL: time.Hour, Clock: clk.Now})
	c.Set("k", "v")

	clk.Advance(time.Hour)
	v, ok := c.Get("k")
	require.True(t, ok, "entry at exactly ttl age is still live")
	require.Equal(t, "v", v)

	clk.Advance(time.Second)
	_, ok = c.Get("k")
	require.False(t, ok)
	require.Equal(t, 0, c.Len(), "expired entry is dropped on read")
}

func TestGetDoesNotRefreshTTL(t *testing.T) {
	clk := newClock()
	c := New[string, string](Options{TTL: 10 * time.Second, Clock: clk.Now})
	c.Set("k", "v")

	clk.Advance(8 * time.Second)
	_, ok := c.Get("k")
	require.True(t, ok)

	clk.Advance(3 * time.Second)
	_, ok = c.Get("k")
	require.False(t, ok)
}

func TestInvalidateAndPurge(t *testing.T) {
	c := New[string, int](Options{})
	c.Set("a", 1)
	c.Set("b", 2)

	c.Invalidate("a")
	_, ok := c.Get("a")
	require.False(t, ok)
	require.Equal(t, 1, c.Len())

	c.Invalidate("missing")
	c.Purge()
	require.Equal(t, 0, c.Len())
}

func TestConcurrentAccess(t *testing.T) {
	c := New[int, int](Options{MaxEntries: 64, TTL: time.Minute})

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				k := (g*500 + i) % 100
				c.Set(k, i)
				c.Get(k)
				if i%7 == 0 {
					c.Invalidate(k)
				}
			}
		}(g)
	}
	wg.Wait()

	require.LessOrEqual(t, c.Len(), 64)
}
