// Package scout wires the feed resolution components into one process-scoped
// service. Construct it once at startup and share it; tests build their own.
package scout

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/pders01/feedscout/internal/cache"
	"github.com/pders01/feedscout/internal/config"
	"github.com/pders01/feedscout/internal/debuglog"
	"github.com/pders01/feedscout/internal/dedupe"
	"github.com/pders01/feedscout/internal/discovery"
	"github.com/pders01/feedscout/internal/feed"
	"github.com/pders01/feedscout/internal/plugins"
	"github.com/pders01/feedscout/internal/plugins/user"
	"github.com/pders01/feedscout/internal/relay"
	"github.com/pders01/feedscout/internal/resolve"
	"github.com/pders01/feedscout/internal/validation"
)

// PurposeSite keys cached website discovery runs.
const PurposeSite = "site"

type Service struct {
	cfg       *config.Config
	relays    *relay.Manager
	discovery *discovery.Engine
	cache     *cache.Cache
	resolver  *resolve.Orchestrator
	detector  *dedupe.Detector
	rules     *plugins.Registry
	log       *logrus.Entry
}

type options struct {
	fetcher feed.Fetcher
	rules   *plugins.Registry
}

type Option func(*options)

// WithFetcher replaces the HTTP fetcher, for tests and alternative transports.
func WithFetcher(f feed.Fetcher) Option {
	return func(o *options) { o.fetcher = f }
}

// WithRules replaces the built-in host rules.
func WithRules(r *plugins.Registry) Option {
	return func(o *options) { o.rules = r }
}

func New(cfg *config.Config, opts ...Option) *Service {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.fetcher == nil {
		o.fetcher = feed.NewHTTPFetcher(cfg)
	}
	if o.rules == nil {
		o.rules = user.RegisterDefaults(plugins.NewRegistry())
	}

	parser := feed.NewParser()
	s := &Service{
		cfg:       cfg,
		relays:    relay.NewManager(cfg, o.fetcher),
		discovery: discovery.NewEngine(cfg, o.fetcher, parser, o.rules),
		cache:     cache.New(cfg.Cache),
		rules:     o.rules,
		log:       debuglog.Component("scout"),
	}
	s.resolver = resolve.New(cfg, resolve.Deps{
		Fetcher:   o.fetcher,
		Parser:    parser,
		Relays:    s.relays,
		Discovery: s.discovery,
		Cache:     s.cache,
	})
	s.detector = dedupe.NewDetector(cfg, s.resolver)

	s.log.WithFields(logrus.Fields{
		"relays":  len(s.relays.Relays()),
		"plugins": len(o.rules.ListPlugins()),
	}).Debug("Service ready")
	return s
}

func (s *Service) Config() *config.Config {
	return s.cfg
}

func (s *Service) Rules() *plugins.Registry {
	return s.rules
}

// ValidateFeed validates an address directly, falling back to relays.
func (s *Service) ValidateFeed(ctx context.Context, rawURL string) *feed.ValidationResult {
	return s.resolver.Validate(ctx, rawURL)
}

// ValidateFeedWithDiscovery also discovers feeds on the site when the
// address itself is not a feed. onProgress may be nil.
func (s *Service) ValidateFeedWithDiscovery(ctx context.Context, rawURL string, onProgress resolve.ProgressFunc) *feed.ValidationResult {
	return s.resolver.ValidateWithDiscovery(ctx, rawURL, onProgress)
}

// DiscoverFromWebsite runs site discovery. Runs that found feeds are cached
// with the discovery TTL, empty runs with the failure TTL.
func (s *Service) DiscoverFromWebsite(ctx context.Context, siteURL string) *feed.DiscoveryResult {
	key := cache.Key(validation.NormalizeURL(siteURL), PurposeSite)
	if v, ok := s.cache.Get(key); ok {
		if res, ok := v.(*feed.DiscoveryResult); ok {
			return res.Clone()
		}
	}

	res := s.discovery.DiscoverFromWebsite(ctx, siteURL)
	if ctx.Err() != nil {
		return res
	}
	class := cache.ClassDiscovery
	if len(res.DiscoveredFeeds) == 0 {
		class = cache.ClassFailure
	}
	s.cache.Set(key, res.Clone(), class)
	return res
}

func (s *Service) DetectDuplicate(ctx context.Context, rawURL string, existing []dedupe.Feed) dedupe.CheckResult {
	return s.detector.DetectDuplicate(ctx, rawURL, existing)
}

func (s *Service) FindDuplicateGroups(ctx context.Context, feeds []dedupe.Feed) []dedupe.Group {
	return s.detector.FindDuplicateGroups(ctx, feeds)
}

func (s *Service) RemoveDuplicates(ctx context.Context, feeds []dedupe.Feed, opts dedupe.RemoveOptions) dedupe.RemoveResult {
	return s.detector.RemoveDuplicates(ctx, feeds, opts)
}

func (s *Service) GetCacheStats() cache.Stats {
	return s.cache.Stats()
}

// ClearCache drops cached results and content fingerprints.
func (s *Service) ClearCache() {
	s.cache.Clear()
	s.detector.ClearFingerprints()
	s.log.Info("Caches cleared")
}

func (s *Service) GetProxyStatsByName(name string) (relay.ProxyStat, bool) {
	return s.relays.Stats(name)
}

func (s *Service) GetOverallStats() relay.OverallStats {
	return s.relays.OverallStats()
}

func (s *Service) ResetStats() {
	s.relays.ResetStats()
	s.log.Info("Relay statistics reset")
}

// RunCleanup purges expired cache entries until ctx is done.
func (s *Service) RunCleanup(ctx context.Context) {
	s.cache.RunCleanup(ctx, s.cfg.Cache.CleanupInterval)
}
