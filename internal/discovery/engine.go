package discovery

import (
	"cmp"
	"context"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/pders01/feedscout/internal/config"
	"github.com/pders01/feedscout/internal/debuglog"
	"github.com/pders01/feedscout/internal/feed"
	"github.com/pders01/feedscout/internal/plugins"
	"github.com/pders01/feedscout/internal/validation"
)

const (
	SuggestionNoFeeds = "No RSS feeds found on this website"
)

// Engine locates feeds for a website address.
type Engine struct {
	fetcher        feed.Fetcher
	parser         *feed.Parser
	rules          *plugins.Registry
	concurrency    int
	probeTimeout   time.Duration
	pageTimeout    time.Duration
	maxContentScan int
	log            *logrus.Entry

	mu    sync.RWMutex
	paths []string
}

func NewEngine(cfg *config.Config, fetcher feed.Fetcher, parser *feed.Parser, rules *plugins.Registry) *Engine {
	concurrency := cfg.Discovery.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	paths := cfg.Discovery.CommonPaths
	if len(paths) == 0 {
		paths = config.DefaultCommonPaths
	}
	return &Engine{
		fetcher:        fetcher,
		parser:         parser,
		rules:          rules,
		concurrency:    concurrency,
		probeTimeout:   cfg.Discovery.ProbeTimeout,
		pageTimeout:    cfg.Discovery.PageTimeout,
		maxContentScan: cfg.Discovery.MaxContentScan,
		log:            debuglog.Component("discovery"),
		paths:          append([]string(nil), paths...),
	}
}

// SetCommonPaths replaces the conventional path list used by later runs.
func (e *Engine) SetCommonPaths(paths []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paths = append([]string(nil), paths...)
}

func (e *Engine) commonPaths() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.paths
}

// ExtractFeedMetadata classifies content and returns its title, description
// and type, or a parse_error when it is not a feed.
func (e *Engine) ExtractFeedMetadata(content []byte) (*feed.Metadata, error) {
	return e.parser.ExtractMetadata(content)
}

// probe is one candidate address to fetch and validate.
type probe struct {
	url        string
	title      string
	typeHint   feed.FeedType
	method     feed.DiscoveryMethod
	confidence float64
}

// counters tracks probe outcomes within one run.
type counters struct {
	total     atomic.Int64
	succeeded atomic.Int64
}

// TryCommonFeedPaths probes the conventional feed locations of the site's
// origin, plus any host-specific addresses the plugin rules propose.
func (e *Engine) TryCommonFeedPaths(ctx context.Context, siteURL string) []feed.DiscoveredFeed {
	base, err := parseSite(siteURL)
	if err != nil {
		return nil
	}
	return e.run(ctx, e.commonProbes(base), &counters{})
}

// ScanHTMLForFeeds finds feed references in html and keeps those that
// fetch and parse as feeds. A reference that fails is dropped.
func (e *Engine) ScanHTMLForFeeds(ctx context.Context, html []byte, baseURL string) []feed.DiscoveredFeed {
	return e.run(ctx, e.referenceProbes(html, baseURL), &counters{})
}

func (e *Engine) commonProbes(base *url.URL) []probe {
	origin := base.Scheme + "://" + base.Host
	var probes []probe
	for _, c := range e.rules.Candidates(base.String()) {
		probes = append(probes, probe{
			url:        c.URL,
			title:      c.Title,
			method:     feed.DiscoveryCommonPath,
			confidence: ConfidenceCommonPath,
		})
	}
	for _, p := range e.commonPaths() {
		if !strings.HasPrefix(p, "/") {
			p = "/" + p
		}
		probes = append(probes, probe{
			url:        origin + p,
			method:     feed.DiscoveryCommonPath,
			confidence: ConfidenceCommonPath,
		})
	}
	return probes
}

func (e *Engine) referenceProbes(html []byte, baseURL string) []probe {
	refs := FindFeedReferences(html, baseURL, e.maxContentScan)
	probes := make([]probe, 0, len(refs))
	for _, r := range refs {
		probes = append(probes, probe{
			url:        r.URL,
			title:      r.Title,
			typeHint:   r.TypeHint,
			method:     r.Method,
			confidence: r.Confidence,
		})
	}
	return probes
}

// run fetches every probe with bounded concurrency and returns the merged,
// sorted discoveries. Probes never cancel each other.
func (e *Engine) run(ctx context.Context, probes []probe, c *counters) []feed.DiscoveredFeed {
	probes = dedupeProbes(probes)

	var (
		mu    sync.Mutex
		found []feed.DiscoveredFeed
		g     errgroup.Group
	)
	g.SetLimit(e.concurrency)

	for _, p := range probes {
		g.Go(func() error {
			df, ok := e.probe(ctx, p, c)
			if ok {
				mu.Lock()
				found = append(found, df)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return Merge(found)
}

func (e *Engine) probe(ctx context.Context, p probe, c *counters) (feed.DiscoveredFeed, bool) {
	c.total.Add(1)
	log := e.log.WithFields(logrus.Fields{"url": p.url, "method": p.method})

	resp, err := e.fetcher.Fetch(ctx, p.url, feed.FetchOptions{Timeout: e.probeTimeout})
	if err != nil {
		log.WithField("kind", feed.KindOf(err)).Debug("Probe failed")
		return feed.DiscoveredFeed{}, false
	}
	meta, err := e.parser.ExtractMetadata(resp.Body)
	if err != nil {
		log.Debug("Probe returned a non-feed document")
		return feed.DiscoveredFeed{}, false
	}
	c.succeeded.Add(1)

	title := meta.Title
	if title == "" {
		title = p.title
	}
	typ := meta.Type
	if typ == "" {
		typ = p.typeHint
	}
	log.WithField("type", typ).Debug("Probe found a feed")
	return feed.DiscoveredFeed{
		URL:             p.url,
		Title:           title,
		Description:     meta.Description,
		Type:            typ,
		DiscoveryMethod: p.method,
		Confidence:      clamp(p.confidence),
	}, true
}

// dedupeProbes drops repeated addresses before anything is fetched, keeping
// the strongest method for each.
func dedupeProbes(probes []probe) []probe {
	best := make(map[string]int)
	var out []probe
	for _, p := range probes {
		key := validation.NormalizeURL(p.url)
		if i, ok := best[key]; ok {
			if stronger(p.confidence, p.method, out[i].confidence, out[i].method) {
				if p.title == "" {
					p.title = out[i].title
				}
				out[i] = p
			}
			continue
		}
		best[key] = len(out)
		out = append(out, p)
	}
	return out
}

func stronger(conf float64, m feed.DiscoveryMethod, otherConf float64, other feed.DiscoveryMethod) bool {
	if conf != otherConf {
		return conf > otherConf
	}
	return m.Rank() < other.Rank()
}

// Merge deduplicates feeds by normalized address, keeping the higher
// confidence entry (stronger method on ties), and sorts the result by
// confidence descending, then method rank, then address.
func Merge(feeds []feed.DiscoveredFeed) []feed.DiscoveredFeed {
	best := make(map[string]int)
	out := make([]feed.DiscoveredFeed, 0, len(feeds))
	for _, f := range feeds {
		key := validation.NormalizeURL(f.URL)
		if i, ok := best[key]; ok {
			if stronger(f.Confidence, f.DiscoveryMethod, out[i].Confidence, out[i].DiscoveryMethod) {
				out[i] = f
			}
			continue
		}
		best[key] = len(out)
		out = append(out, f)
	}
	slices.SortStableFunc(out, func(a, b feed.DiscoveredFeed) int {
		if c := cmp.Compare(b.Confidence, a.Confidence); c != 0 {
			return c
		}
		if c := cmp.Compare(a.DiscoveryMethod.Rank(), b.DiscoveryMethod.Rank()); c != 0 {
			return c
		}
		return strings.Compare(a.URL, b.URL)
	})
	return out
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// parseSite accepts addresses with or without a scheme.
func parseSite(siteURL string) (*url.URL, error) {
	raw := strings.TrimSpace(siteURL)
	if raw == "" {
		return nil, fmt.Errorf("empty website address")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("not a website address: %q", siteURL)
	}
	u.Fragment = ""
	return u, nil
}

// DiscoverFromWebsite runs every discovery method against siteURL.
//
// The page at siteURL is scanned for references; when it 404s and has a
// path, the site root is scanned instead. A page fetch that fails with a
// network error or timeout ends the run early with no results.
func (e *Engine) DiscoverFromWebsite(ctx context.Context, siteURL string) *feed.DiscoveryResult {
	start := time.Now()
	result := &feed.DiscoveryResult{
		RunID:       uuid.NewString(),
		OriginalURL: siteURL,
	}
	log := e.log.WithFields(logrus.Fields{"run": result.RunID, "site": siteURL})

	finish := func() *feed.DiscoveryResult {
		result.DiscoveryTimeMs = time.Since(start).Milliseconds()
		result.Suggestions = suggestionsFor(result.DiscoveredFeeds)
		log.WithField("duration", time.Since(start)).Infof("Discovery found %d feeds", len(result.DiscoveredFeeds))
		return result
	}

	base, err := parseSite(siteURL)
	if err != nil {
		result.DiscoveredFeeds = []feed.DiscoveredFeed{}
		finish()
		result.Suggestions = append(result.Suggestions, fmt.Sprintf("Invalid website address: %v", err))
		return result
	}

	c := &counters{}
	page, pageURL, reachable := e.fetchPage(ctx, base, c)
	if !reachable {
		result.TotalAttempts = int(c.total.Load())
		result.DiscoveredFeeds = []feed.DiscoveredFeed{}
		finish()
		result.Suggestions = append(result.Suggestions, "The website could not be reached; check the address or try again later")
		return result
	}

	probes := e.commonProbes(base)
	if page != nil {
		probes = append(probes, e.referenceProbes(page, pageURL)...)
	}
	result.DiscoveredFeeds = e.run(ctx, probes, c)
	result.TotalAttempts = int(c.total.Load())
	result.SuccessfulAttempts = int(c.succeeded.Load())
	result.DiscoveryMethods = methodsOf(result.DiscoveredFeeds)
	return finish()
}

// fetchPage loads the HTML page to scan. It reports reachable=false only
// for network and timeout failures.
func (e *Engine) fetchPage(ctx context.Context, base *url.URL, c *counters) ([]byte, string, bool) {
	targets := []string{base.String()}
	if strings.Trim(base.Path, "/") != "" || base.RawQuery != "" {
		targets = append(targets, base.Scheme+"://"+base.Host+"/")
	}

	for i, target := range targets {
		c.total.Add(1)
		resp, err := e.fetcher.Fetch(ctx, target, feed.FetchOptions{Timeout: e.pageTimeout, HTML: true})
		if err == nil {
			c.succeeded.Add(1)
			pageURL := resp.URL
			if pageURL == "" {
				pageURL = target
			}
			return resp.Body, pageURL, true
		}

		kind := feed.KindOf(err)
		e.log.WithFields(logrus.Fields{"url": target, "kind": kind}).Debugf("Page fetch failed: %v", err)
		switch {
		case kind == feed.KindNetwork || kind == feed.KindTimeout:
			return nil, "", false
		case kind == feed.KindNotFound && i+1 < len(targets):
			continue
		default:
			return nil, "", true
		}
	}
	return nil, "", true
}

func methodsOf(feeds []feed.DiscoveredFeed) []feed.DiscoveryMethod {
	seen := make(map[feed.DiscoveryMethod]bool)
	var methods []feed.DiscoveryMethod
	for _, f := range feeds {
		if !seen[f.DiscoveryMethod] {
			seen[f.DiscoveryMethod] = true
			methods = append(methods, f.DiscoveryMethod)
		}
	}
	slices.SortFunc(methods, func(a, b feed.DiscoveryMethod) int { return a.Rank() - b.Rank() })
	return methods
}

func suggestionsFor(feeds []feed.DiscoveredFeed) []string {
	switch len(feeds) {
	case 0:
		return []string{
			SuggestionNoFeeds,
			"Try entering the feed address directly if you know it",
		}
	case 1:
		return []string{"Found 1 RSS feed on this website"}
	default:
		return []string{
			fmt.Sprintf("Found %d RSS feeds on this website", len(feeds)),
			"Choose the feed you want to subscribe to",
		}
	}
}
