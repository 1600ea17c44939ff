package dedupe

import (
	"time"

	"github.com/pders01/feedscout/internal/feed"
)

// Feed is an entry of the caller's subscription collection.
type Feed struct {
	ID          string `json:"id,omitempty" yaml:"id,omitempty" toml:"id,omitempty"`
	URL         string `json:"url" yaml:"url" toml:"url"`
	Title       string `json:"title,omitempty" yaml:"title,omitempty" toml:"title,omitempty"`
	CustomTitle string `json:"customTitle,omitempty" yaml:"custom_title,omitempty" toml:"custom_title,omitempty"`
	Category    string `json:"category,omitempty" yaml:"category,omitempty" toml:"category,omitempty"`
}

// displayTitle prefers the user's own title.
func (f Feed) displayTitle() string {
	if f.CustomTitle != "" {
		return f.CustomTitle
	}
	return f.Title
}

// ContentFingerprint identifies a feed by what it publishes rather than
// where it lives.
type ContentFingerprint struct {
	URL           string        `json:"url"`
	NormalizedURL string        `json:"normalizedUrl"`
	Hash          string        `json:"hash"`
	Title         string        `json:"title"`
	Description   string        `json:"description"`
	FeedType      feed.FeedType `json:"feedType,omitempty"`
	GeneratedAt   time.Time     `json:"generatedAt"`
}

// CheckResult is the verdict for one candidate address against a collection.
type CheckResult struct {
	IsDuplicate        bool                `json:"isDuplicate"`
	DuplicateOf        *Feed               `json:"duplicateOf,omitempty"`
	Confidence         float64             `json:"confidence"`
	Reason             string              `json:"reason"`
	NormalizedURL      string              `json:"normalizedUrl"`
	ContentFingerprint *ContentFingerprint `json:"contentFingerprint,omitempty"`
}

// Group is a cluster of feeds that are duplicates of each other.
type Group struct {
	Feeds      []Feed  `json:"feeds"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// Strategy decides which member of a group survives RemoveDuplicates.
type Strategy string

const (
	StrategyKeepFirst  Strategy = "keep_first"
	StrategyKeepLast   Strategy = "keep_last"
	StrategyMerge      Strategy = "merge"
	StrategyUserSelect Strategy = "user_select"
)

// ParseStrategy accepts the strategy names above; empty means keep_first.
func ParseStrategy(s string) (Strategy, bool) {
	switch Strategy(s) {
	case "":
		return StrategyKeepFirst, true
	case StrategyKeepFirst, StrategyKeepLast, StrategyMerge, StrategyUserSelect:
		return Strategy(s), true
	}
	return "", false
}

// RemoveOptions configure RemoveDuplicates. Preferred lists the IDs or
// addresses to keep under StrategyUserSelect.
type RemoveOptions struct {
	Strategy  Strategy `json:"strategy"`
	Preferred []string `json:"preferred,omitempty"`
}

// Removed records a feed dropped from the collection and the feed it
// duplicated, so the removal can be audited or undone.
type Removed struct {
	OriginalFeed Feed `json:"originalFeed"`
	DuplicateOf  Feed `json:"duplicateOf"`
}

// RemoveResult is the deduplicated collection.
type RemoveResult struct {
	UniqueFeeds       []Feed    `json:"uniqueFeeds"`
	RemovedDuplicates []Removed `json:"removedDuplicates"`
}
