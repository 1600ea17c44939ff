package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pders01/feedscout/internal/config"
)

type blob int

func (b blob) ApproxSize() int { return int(b) }

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestCache(t *testing.T, mutate func(*config.CacheConfig)) (*Cache, *clock) {
	t.Helper()
	cfg := config.TestConfig().Cache
	if mutate != nil {
		mutate(&cfg)
	}
	clk := &clock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	return New(cfg, WithClock(clk.Now)), clk
}

func TestGetSet(t *testing.T) {
	c, _ := newTestCache(t, nil)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("k", blob(10), ClassSuccess)
	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, blob(10), v)

	stats := c.Stats()
	assert.Equal(t, 1, stats.TotalEntries)
	assert.Equal(t, int64(1), stats.HitCount)
	assert.Equal(t, int64(1), stats.MissCount)
	assert.InDelta(t, 0.5, stats.HitRate, 1e-9)
}

func TestTTLByClass(t *testing.T) {
	c, clk := newTestCache(t, nil)

	c.Set("ok", blob(1), ClassSuccess)
	c.Set("fail", blob(1), ClassFailure)
	c.Set("disc", blob(1), ClassDiscovery)

	dist := c.Stats().TTLDistribution
	assert.Equal(t, 1, dist[ClassSuccess])
	assert.Equal(t, 1, dist[ClassFailure])
	assert.Equal(t, 1, dist[ClassDiscovery])

	clk.Advance(6 * time.Minute)
	_, ok := c.Get("fail")
	assert.False(t, ok, "failure entries expire after 5m")
	_, ok = c.Get("disc")
	assert.True(t, ok)

	clk.Advance(10 * time.Minute)
	_, ok = c.Get("disc")
	assert.False(t, ok, "discovery entries expire after 15m")
	_, ok = c.Get("ok")
	assert.True(t, ok)

	clk.Advance(time.Hour)
	_, ok = c.Get("ok")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Stats().TotalEntries)
}

func TestExpiryBoundary(t *testing.T) {
	c, clk := newTestCache(t, nil)
	c.Set("k", blob(1), ClassFailure)

	clk.Advance(5*time.Minute - time.Nanosecond)
	_, ok := c.Get("k")
	assert.True(t, ok)

	clk.Advance(time.Nanosecond)
	_, ok = c.Get("k")
	assert.False(t, ok)
}

func TestCleanup(t *testing.T) {
	c, clk := newTestCache(t, nil)
	for i := 0; i < 60; i++ {
		class := ClassFailure
		if i%2 == 0 {
			class = ClassSuccess
		}
		c.Set(fmt.Sprintf("k%d", i), blob(50), class)
	}
	clk.Advance(10 * time.Minute)

	start := time.Now()
	removed := c.Cleanup()
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Equal(t, 30, removed)
	assert.Equal(t, 30, c.Stats().TotalEntries)
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestCache(t, func(cfg *config.CacheConfig) { cfg.MaxEntries = 3 })

	c.Set("a", blob(1), ClassSuccess)
	c.Set("b", blob(1), ClassSuccess)
	c.Set("c", blob(1), ClassSuccess)
	_, _ = c.Get("a") // a is now most recent

	c.Set("d", blob(1), ClassSuccess)

	_, ok := c.Get("b")
	assert.False(t, ok, "b was least recently used")
	for _, k := range []string{"a", "c", "d"} {
		_, ok := c.Get(k)
		assert.True(t, ok, k)
	}
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestEvictsExpiredBeforeLive(t *testing.T) {
	c, clk := newTestCache(t, func(cfg *config.CacheConfig) { cfg.MaxEntries = 2 })

	c.Set("old-failure", blob(1), ClassFailure)
	c.Set("live", blob(1), ClassSuccess)
	_, _ = c.Get("old-failure")
	clk.Advance(6 * time.Minute)

	c.Set("new", blob(1), ClassSuccess)

	_, ok := c.Get("live")
	assert.True(t, ok, "expired entry is purged before a live one is evicted")
	assert.Equal(t, int64(0), c.Stats().Evictions)
}

func TestMemoryBudgetNeverFull(t *testing.T) {
	c, _ := newTestCache(t, func(cfg *config.CacheConfig) {
		cfg.MaxBytes = 4096
		cfg.MaxEntries = 1000
	})

	for i := 0; i < 200; i++ {
		c.Set(fmt.Sprintf("key-%d", i), blob(300), ClassSuccess)
		usage := c.Stats().MemoryUsage
		require.Less(t, usage.Percentage, 100.0)
		require.LessOrEqual(t, usage.UsedBytes, usage.MaxBytes)
	}

	// oversized values are refused outright
	c.Set("huge", blob(10000), ClassSuccess)
	_, ok := c.Get("huge")
	assert.False(t, ok)
}

func TestReplaceKeepsAccounting(t *testing.T) {
	c, _ := newTestCache(t, nil)
	c.Set("k", blob(100), ClassSuccess)
	before := c.Stats().MemoryUsage.UsedBytes
	c.Set("k", blob(100), ClassFailure)
	after := c.Stats()
	assert.Equal(t, before, after.MemoryUsage.UsedBytes)
	assert.Equal(t, 1, after.TotalEntries)
	assert.Equal(t, 1, after.TTLDistribution[ClassFailure])
}

func TestClear(t *testing.T) {
	c, _ := newTestCache(t, nil)
	c.Set("k", blob(1), ClassSuccess)
	_, _ = c.Get("k")
	c.Clear()

	stats := c.Stats()
	assert.Zero(t, stats.TotalEntries)
	assert.Zero(t, stats.HitCount)
	assert.Zero(t, stats.MemoryUsage.UsedBytes)
}

func TestConcurrentAccess(t *testing.T) {
	c, _ := newTestCache(t, nil)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				key := fmt.Sprintf("k%d", j%10)
				c.Set(key, blob(10), ClassSuccess)
				c.Get(key)
			}
		}(i)
	}
	wg.Wait()

	stats := c.Stats()
	assert.Equal(t, 10, stats.TotalEntries)
	assert.Equal(t, int64(1000), stats.HitCount+stats.MissCount)
}

func TestRunCleanup(t *testing.T) {
	c, clk := newTestCache(t, nil)
	c.Set("k", blob(1), ClassFailure)
	clk.Advance(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.RunCleanup(ctx, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return c.Stats().TotalEntries == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}

func TestKey(t *testing.T) {
	assert.NotEqual(t, Key("https://example.com", "validate"), Key("https://example.com", "discovery"))
}
