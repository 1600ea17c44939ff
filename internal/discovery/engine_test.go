package discovery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pders01/feedscout/internal/config"
	"github.com/pders01/feedscout/internal/feed"
	"github.com/pders01/feedscout/internal/plugins"
	"github.com/pders01/feedscout/internal/plugins/user"
)

func rssDoc(title string) string {
	return fmt.Sprintf(`<?xml version="1.0"?><rss version="2.0"><channel><title>%s</title><description>%s feed</description></channel></rss>`, title, title)
}

func atomDoc(title string) string {
	return fmt.Sprintf(`<?xml version="1.0"?><feed xmlns="http://www.w3.org/2005/Atom"><title>%s</title><id>urn:x</id><updated>2025-01-01T00:00:00Z</updated></feed>`, title)
}

// site serves a fixed set of pages; anything else is a 404.
type site struct {
	pages    map[string]string
	failWith feed.ErrorKind
	delay    time.Duration

	calls    atomic.Int64
	inFlight atomic.Int64
	maxSeen  atomic.Int64
}

func (s *site) Fetch(ctx context.Context, rawURL string, opts feed.FetchOptions) (*feed.Response, error) {
	s.calls.Add(1)
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		m := s.maxSeen.Load()
		if n <= m || s.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	if s.failWith != "" {
		return nil, feed.NewError(s.failWith, rawURL, errors.New("connection refused"))
	}
	if body, ok := s.pages[rawURL]; ok {
		return &feed.Response{URL: rawURL, Status: http.StatusOK, Body: []byte(body)}, nil
	}
	return nil, feed.StatusError(rawURL, http.StatusNotFound)
}

func newEngine(f feed.Fetcher, registry *plugins.Registry) *Engine {
	return NewEngine(config.TestConfig(), f, feed.NewParser(), registry)
}

func assertSortedAndBounded(t *testing.T, feeds []feed.DiscoveredFeed) {
	t.Helper()
	for i, f := range feeds {
		assert.GreaterOrEqual(t, f.Confidence, 0.0)
		assert.LessOrEqual(t, f.Confidence, 1.0)
		if f.DiscoveryMethod == feed.DiscoveryCommonPath || f.DiscoveryMethod == feed.DiscoveryLinkTag {
			assert.Greater(t, f.Confidence, 0.8)
		}
		if i > 0 {
			assert.GreaterOrEqual(t, feeds[i-1].Confidence, f.Confidence, "feeds must be sorted by confidence")
		}
	}
}

func TestTryCommonFeedPaths(t *testing.T) {
	s := &site{pages: map[string]string{
		"https://example.com/rss.xml":  rssDoc("Example RSS"),
		"https://example.com/atom.xml": atomDoc("Example Atom"),
		"https://example.com/feed":     "<html><body>not a feed</body></html>",
	}}
	e := newEngine(s, nil)

	found := e.TryCommonFeedPaths(context.Background(), "example.com/some/page")
	require.Len(t, found, 2)
	assert.Equal(t, "https://example.com/atom.xml", found[0].URL)
	assert.Equal(t, feed.TypeAtom, found[0].Type)
	assert.Equal(t, "https://example.com/rss.xml", found[1].URL)
	assert.Equal(t, "Example RSS", found[1].Title)
	for _, f := range found {
		assert.Equal(t, feed.DiscoveryCommonPath, f.DiscoveryMethod)
	}
	assertSortedAndBounded(t, found)
	assert.Equal(t, int64(len(config.DefaultCommonPaths)), s.calls.Load())
}

func TestTryCommonFeedPaths_BoundedConcurrency(t *testing.T) {
	s := &site{delay: 5 * time.Millisecond}
	e := newEngine(s, nil)

	found := e.TryCommonFeedPaths(context.Background(), "https://example.com")
	assert.Empty(t, found)
	assert.LessOrEqual(t, s.maxSeen.Load(), int64(config.TestConfig().Discovery.Concurrency))
	assert.Equal(t, int64(len(config.DefaultCommonPaths)), s.calls.Load())
}

func TestScanHTMLForFeeds(t *testing.T) {
	html := `<html><head>
<link rel="alternate" type="application/rss+xml" title="Posts" href="/posts.xml">
<link rel="alternate" type="application/atom+xml" href="broken.xml">
<meta name="rss" content="https://example.com/meta.rss">
</head><body><a href="/archive.rss">Archive feed</a></body></html>`

	s := &site{pages: map[string]string{
		"https://example.com/posts.xml":   rssDoc("Posts"),
		"https://example.com/meta.rss":    rssDoc("Meta"),
		"https://example.com/archive.rss": rssDoc(""),
	}}
	e := newEngine(s, nil)

	found := e.ScanHTMLForFeeds(context.Background(), []byte(html), "https://example.com/")
	require.Len(t, found, 3, "the broken reference is dropped, not fatal")
	assert.Equal(t, feed.DiscoveryLinkTag, found[0].DiscoveryMethod)
	assert.Equal(t, ConfidenceLinkTag, found[0].Confidence)
	assert.Equal(t, feed.DiscoveryMetaTag, found[1].DiscoveryMethod)
	assert.Equal(t, feed.DiscoveryContentScan, found[2].DiscoveryMethod)
	assert.Equal(t, "Archive feed", found[2].Title, "anchor text fills a missing title")
	assertSortedAndBounded(t, found)
}

func TestDiscoverFromWebsite_MergesMethods(t *testing.T) {
	home := `<html><head>
<link rel="alternate" type="application/rss+xml" href="/rss.xml">
<link rel="alternate" type="application/atom+xml" href="/blog/atom.xml">
</head><body><a href="/comments/feed/">Comments</a></body></html>`

	s := &site{pages: map[string]string{
		"https://example.com":                home,
		"https://example.com/rss.xml":        rssDoc("Main"),
		"https://example.com/blog/atom.xml":  atomDoc("Blog"),
		"https://example.com/comments/feed/": rssDoc("Comments"),
	}}
	e := newEngine(s, nil)

	res := e.DiscoverFromWebsite(context.Background(), "https://example.com")
	require.Len(t, res.DiscoveredFeeds, 3)
	assertSortedAndBounded(t, res.DiscoveredFeeds)

	byURL := map[string]feed.DiscoveredFeed{}
	for _, f := range res.DiscoveredFeeds {
		byURL[f.URL] = f
	}
	// /rss.xml is both a common path and a link tag: one entry, stronger method
	assert.Equal(t, feed.DiscoveryCommonPath, byURL["https://example.com/rss.xml"].DiscoveryMethod)
	assert.Equal(t, feed.DiscoveryCommonPath, byURL["https://example.com/blog/atom.xml"].DiscoveryMethod)
	assert.Equal(t, feed.DiscoveryContentScan, byURL["https://example.com/comments/feed/"].DiscoveryMethod)

	assert.Equal(t, []feed.DiscoveryMethod{feed.DiscoveryCommonPath, feed.DiscoveryContentScan}, res.DiscoveryMethods)
	// the page fetch counts as an attempt; shared addresses are probed once
	assert.Equal(t, 4, res.SuccessfulAttempts)
	assert.Equal(t, 1+len(config.DefaultCommonPaths)+1, res.TotalAttempts)
	assert.NotEmpty(t, res.RunID)
	assert.Contains(t, res.Suggestions, "Found 3 RSS feeds on this website")
}

func TestDiscoverFromWebsite_NetworkOutage(t *testing.T) {
	s := &site{failWith: feed.KindNetwork}
	e := newEngine(s, nil)

	done := make(chan *feed.DiscoveryResult, 1)
	go func() { done <- e.DiscoverFromWebsite(context.Background(), "https://example.com") }()

	select {
	case res := <-done:
		assert.Empty(t, res.DiscoveredFeeds)
		assert.NotNil(t, res.DiscoveredFeeds)
		assert.Contains(t, res.Suggestions, SuggestionNoFeeds)
		assert.Equal(t, int64(1), s.calls.Load(), "outage short-circuits after the page fetch")
	case <-time.After(2 * time.Second):
		t.Fatal("discovery did not finish")
	}
}

func TestDiscoverFromWebsite_TimeoutShortCircuits(t *testing.T) {
	s := &site{failWith: feed.KindTimeout}
	res := newEngine(s, nil).DiscoverFromWebsite(context.Background(), "https://example.com/blog")
	assert.Empty(t, res.DiscoveredFeeds)
	assert.Equal(t, 1, res.TotalAttempts)
}

func TestDiscoverFromWebsite_FallsBackToRoot(t *testing.T) {
	s := &site{pages: map[string]string{
		"https://example.com/":                `<link rel="alternate" type="application/rss+xml" href="/posts/index.xml">`,
		"https://example.com/posts/index.xml": rssDoc("Posts"),
	}}
	res := newEngine(s, nil).DiscoverFromWebsite(context.Background(), "https://example.com/missing.xml")

	require.Len(t, res.DiscoveredFeeds, 1)
	assert.Equal(t, "https://example.com/posts/index.xml", res.DiscoveredFeeds[0].URL)
	assert.Equal(t, feed.DiscoveryLinkTag, res.DiscoveredFeeds[0].DiscoveryMethod)
	assert.Equal(t, []string{"Found 1 RSS feed on this website"}, res.Suggestions)
}

func TestDiscoverFromWebsite_NothingFound(t *testing.T) {
	s := &site{pages: map[string]string{
		"https://example.com": "<html><body>hello</body></html>",
	}}
	res := newEngine(s, nil).DiscoverFromWebsite(context.Background(), "example.com")
	assert.Empty(t, res.DiscoveredFeeds)
	assert.Contains(t, res.Suggestions, SuggestionNoFeeds)
	assert.Equal(t, "example.com", res.OriginalURL)
}

func TestDiscoverFromWebsite_InvalidAddress(t *testing.T) {
	s := &site{}
	res := newEngine(s, nil).DiscoverFromWebsite(context.Background(), "ftp://example.com")
	assert.Empty(t, res.DiscoveredFeeds)
	assert.Contains(t, res.Suggestions, SuggestionNoFeeds)
	assert.Zero(t, s.calls.Load())
}

func TestDiscoverFromWebsite_PluginRules(t *testing.T) {
	s := &site{pages: map[string]string{
		"https://www.reddit.com/r/golang":     "<html></html>",
		"https://www.reddit.com/r/golang.rss": atomDoc(""),
	}}
	registry := user.RegisterDefaults(plugins.NewRegistry())
	res := newEngine(s, registry).DiscoverFromWebsite(context.Background(), "https://www.reddit.com/r/golang")

	require.Len(t, res.DiscoveredFeeds, 1)
	got := res.DiscoveredFeeds[0]
	assert.Equal(t, "https://www.reddit.com/r/golang.rss", got.URL)
	assert.Equal(t, feed.DiscoveryCommonPath, got.DiscoveryMethod)
	assert.Equal(t, "Reddit - r/golang", got.Title, "plugin title fills an untitled feed")
}

func TestSetCommonPaths(t *testing.T) {
	s := &site{pages: map[string]string{
		"https://example.com/custom/feed.rss": rssDoc("Custom"),
	}}
	e := newEngine(s, nil)
	e.SetCommonPaths([]string{"custom/feed.rss"})

	found := e.TryCommonFeedPaths(context.Background(), "https://example.com")
	require.Len(t, found, 1)
	assert.Equal(t, int64(1), s.calls.Load())
}

func TestMerge(t *testing.T) {
	in := []feed.DiscoveredFeed{
		{URL: "https://example.com/b.xml", DiscoveryMethod: feed.DiscoveryContentScan, Confidence: 0.5},
		{URL: "https://www.example.com/b.xml/", DiscoveryMethod: feed.DiscoveryLinkTag, Confidence: 0.9},
		{URL: "https://example.com/a.xml", DiscoveryMethod: feed.DiscoveryMetaTag, Confidence: 0.6},
		{URL: "https://example.com/c.xml", DiscoveryMethod: feed.DiscoveryLinkTag, Confidence: 0.9},
		{URL: "https://example.com/c.xml", DiscoveryMethod: feed.DiscoveryCommonPath, Confidence: 0.9},
	}
	out := Merge(in)
	require.Len(t, out, 3)
	assert.Equal(t, "https://example.com/c.xml", out[0].URL)
	assert.Equal(t, feed.DiscoveryCommonPath, out[0].DiscoveryMethod)
	assert.Equal(t, "https://www.example.com/b.xml/", out[1].URL)
	assert.Equal(t, "https://example.com/a.xml", out[2].URL)
	assertSortedAndBounded(t, out)
}

func TestExtractFeedMetadata(t *testing.T) {
	e := newEngine(&site{}, nil)

	meta, err := e.ExtractFeedMetadata([]byte(atomDoc("Atom")))
	require.NoError(t, err)
	assert.Equal(t, feed.TypeAtom, meta.Type)

	_, err = e.ExtractFeedMetadata([]byte("<html></html>"))
	assert.Equal(t, feed.KindParse, feed.KindOf(err))
}
