package api

import (
	"context"

	"github.com/pders01/feedscout/internal/cache"
	"github.com/pders01/feedscout/internal/dedupe"
	"github.com/pders01/feedscout/internal/feed"
	"github.com/pders01/feedscout/internal/relay"
	"github.com/pders01/feedscout/internal/resolve"
	"github.com/pders01/feedscout/internal/scout"
)

// Scout is the service surface the handlers expose.
type Scout interface {
	ValidateFeed(ctx context.Context, rawURL string) *feed.ValidationResult
	ValidateFeedWithDiscovery(ctx context.Context, rawURL string, onProgress resolve.ProgressFunc) *feed.ValidationResult
	DiscoverFromWebsite(ctx context.Context, siteURL string) *feed.DiscoveryResult
	DetectDuplicate(ctx context.Context, rawURL string, existing []dedupe.Feed) dedupe.CheckResult
	FindDuplicateGroups(ctx context.Context, feeds []dedupe.Feed) []dedupe.Group
	RemoveDuplicates(ctx context.Context, feeds []dedupe.Feed, opts dedupe.RemoveOptions) dedupe.RemoveResult
	GetCacheStats() cache.Stats
	ClearCache()
	GetProxyStatsByName(name string) (relay.ProxyStat, bool)
	GetOverallStats() relay.OverallStats
	ResetStats()
}

var _ Scout = (*scout.Service)(nil)

type Handler struct {
	scout   Scout
	version string
}

type validateRequest struct {
	URL      string `json:"url" binding:"required"`
	Discover bool   `json:"discover"`
}

type discoverRequest struct {
	URL string `json:"url" binding:"required"`
}

type checkRequest struct {
	URL   string        `json:"url" binding:"required"`
	Feeds []dedupe.Feed `json:"feeds"`
}

type groupsRequest struct {
	Feeds []dedupe.Feed `json:"feeds"`
}

type removeRequest struct {
	Feeds     []dedupe.Feed `json:"feeds"`
	Strategy  string        `json:"strategy"`
	Preferred []string      `json:"preferred"`
}
