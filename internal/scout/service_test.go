package scout

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pders01/feedscout/internal/cache"
	"github.com/pders01/feedscout/internal/config"
	"github.com/pders01/feedscout/internal/dedupe"
	"github.com/pders01/feedscout/internal/feed"
	"github.com/pders01/feedscout/internal/plugins"
)

func rss(title string) string {
	return fmt.Sprintf(`<?xml version="1.0"?><rss version="2.0"><channel><title>%s</title><description>About %s</description></channel></rss>`, title, title)
}

type web struct {
	mu    sync.Mutex
	pages map[string]string
	down  map[string]bool
	calls atomic.Int64
}

func newWeb(pages map[string]string) *web {
	if pages == nil {
		pages = map[string]string{}
	}
	return &web{pages: pages, down: map[string]bool{}}
}

func (w *web) Fetch(_ context.Context, rawURL string, _ feed.FetchOptions) (*feed.Response, error) {
	w.calls.Add(1)
	w.mu.Lock()
	defer w.mu.Unlock()
	if u, err := url.Parse(rawURL); err == nil && w.down[u.Host] {
		return nil, feed.NewError(feed.KindNetwork, rawURL, errors.New("connection refused"))
	}
	if body, ok := w.pages[rawURL]; ok {
		return &feed.Response{URL: rawURL, Status: http.StatusOK, Body: []byte(body)}, nil
	}
	return nil, feed.StatusError(rawURL, http.StatusNotFound)
}

func newService(w *web, opts ...Option) *Service {
	return New(config.TestConfig(), append([]Option{WithFetcher(w)}, opts...)...)
}

func TestValidateFeed_Cached(t *testing.T) {
	w := newWeb(map[string]string{"https://example.com/feed.xml": rss("Example")})
	s := newService(w)

	first := s.ValidateFeed(context.Background(), "https://example.com/feed.xml")
	require.True(t, first.IsValid)
	calls := w.calls.Load()

	second := s.ValidateFeed(context.Background(), "https://www.example.com/feed.xml/")
	assert.True(t, second.IsValid)
	assert.True(t, second.Cached)
	assert.Equal(t, calls, w.calls.Load())

	stats := s.GetCacheStats()
	assert.Equal(t, 1, stats.TotalEntries)
	assert.EqualValues(t, 1, stats.HitCount)
	assert.Equal(t, 1, stats.TTLDistribution[cache.ClassSuccess])
}

func TestValidateFeedWithDiscovery_Progress(t *testing.T) {
	w := newWeb(map[string]string{
		"https://blog.example/":          `<html><head><link rel="alternate" type="application/rss+xml" href="/posts.xml"></head></html>`,
		"https://blog.example/posts.xml": rss("Posts"),
	})
	s := newService(w)

	var last int
	res := s.ValidateFeedWithDiscovery(context.Background(), "https://blog.example/", func(_ string, pct int) {
		last = pct
	})
	assert.True(t, res.IsValid)
	assert.Equal(t, feed.MethodDiscovery, res.FinalMethod)
	assert.Equal(t, "https://blog.example/posts.xml", res.URL)
	assert.Equal(t, 100, last)
}

func TestDiscoverFromWebsite_CachedUntilCleared(t *testing.T) {
	w := newWeb(map[string]string{"https://example.com/rss.xml": rss("Example")})
	s := newService(w)

	first := s.DiscoverFromWebsite(context.Background(), "https://example.com")
	require.Len(t, first.DiscoveredFeeds, 1)
	calls := w.calls.Load()

	second := s.DiscoverFromWebsite(context.Background(), "https://example.com/")
	assert.Equal(t, first.RunID, second.RunID)
	assert.Equal(t, calls, w.calls.Load())

	second.DiscoveredFeeds[0].URL = "mutated"
	third := s.DiscoverFromWebsite(context.Background(), "https://example.com")
	assert.Equal(t, "https://example.com/rss.xml", third.DiscoveredFeeds[0].URL)

	s.ClearCache()
	assert.Zero(t, s.GetCacheStats().TotalEntries)
	fresh := s.DiscoverFromWebsite(context.Background(), "https://example.com")
	assert.NotEqual(t, first.RunID, fresh.RunID)
	assert.Greater(t, w.calls.Load(), calls)
}

func TestDiscoverFromWebsite_HostRules(t *testing.T) {
	w := newWeb(map[string]string{"https://www.reddit.com/r/golang.rss": rss("golang")})

	s := newService(w)
	res := s.DiscoverFromWebsite(context.Background(), "https://www.reddit.com/r/golang")
	require.Len(t, res.DiscoveredFeeds, 1)
	assert.Equal(t, "https://www.reddit.com/r/golang.rss", res.DiscoveredFeeds[0].URL)

	bare := newService(newWeb(w.pages), WithRules(plugins.NewRegistry()))
	assert.Empty(t, bare.DiscoverFromWebsite(context.Background(), "https://www.reddit.com/r/golang").DiscoveredFeeds)
}

func TestRelayStats(t *testing.T) {
	w := newWeb(nil)
	w.down["blocked.example"] = true
	s := newService(w)

	res := s.ValidateFeed(context.Background(), "https://blocked.example/feed.xml")
	assert.False(t, res.IsValid)

	overall := s.GetOverallStats()
	assert.EqualValues(t, len(config.DefaultRelayEndpoints), overall.TotalRequests)
	assert.EqualValues(t, overall.TotalRequests, overall.Failures)

	stat, ok := s.GetProxyStatsByName("corsproxy")
	require.True(t, ok)
	assert.EqualValues(t, 1, stat.Failures)
	_, ok = s.GetProxyStatsByName("nope")
	assert.False(t, ok)

	s.ResetStats()
	assert.Zero(t, s.GetOverallStats().TotalRequests)
}

func TestDuplicates(t *testing.T) {
	w := newWeb(map[string]string{
		"https://example.com/feed.xml":   rss("Example"),
		"https://mirror.example/rss":     rss("Example"),
		"https://different.example/feed": rss("Something else"),
	})
	s := newService(w)

	existing := []dedupe.Feed{{ID: "1", URL: "https://example.com/feed.xml"}}
	check := s.DetectDuplicate(context.Background(), "https://mirror.example/rss", existing)
	assert.True(t, check.IsDuplicate)
	assert.Equal(t, dedupe.ReasonSameFingerprint, check.Reason)

	feeds := append(existing,
		dedupe.Feed{ID: "2", URL: "https://different.example/feed"},
		dedupe.Feed{ID: "3", URL: "https://mirror.example/rss"},
	)
	groups := s.FindDuplicateGroups(context.Background(), feeds)
	require.Len(t, groups, 1)
	assert.Len(t, groups[0].Feeds, 2)

	out := s.RemoveDuplicates(context.Background(), feeds, dedupe.RemoveOptions{Strategy: dedupe.StrategyKeepFirst})
	assert.Len(t, out.UniqueFeeds, 2)
	require.Len(t, out.RemovedDuplicates, 1)
	assert.Equal(t, "3", out.RemovedDuplicates[0].OriginalFeed.ID)
}
