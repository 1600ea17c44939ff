package feed

import "time"

// FeedType is the document family of a feed.
type FeedType string

const (
	TypeRSS  FeedType = "rss"
	TypeAtom FeedType = "atom"
	TypeRDF  FeedType = "rdf"
)

// Method identifies the strategy that produced a validation attempt.
type Method string

const (
	MethodDirect    Method = "direct"
	MethodRelay     Method = "relay"
	MethodDiscovery Method = "discovery"
)

// Status is the terminal state of a validation run.
type Status string

const (
	StatusValid             Status = "valid"
	StatusInvalid           Status = "invalid"
	StatusNotFound          Status = "not_found"
	StatusTimeout           Status = "timeout"
	StatusDiscoveryRequired Status = "discovery_required"
)

// DiscoveryMethod names the technique that surfaced a candidate feed.
type DiscoveryMethod string

const (
	DiscoveryCommonPath  DiscoveryMethod = "common-path"
	DiscoveryLinkTag     DiscoveryMethod = "link-tag"
	DiscoveryMetaTag     DiscoveryMethod = "meta-tag"
	DiscoveryContentScan DiscoveryMethod = "content-scan"
)

// Rank orders discovery methods by strength of evidence, lower is stronger.
func (m DiscoveryMethod) Rank() int {
	switch m {
	case DiscoveryCommonPath:
		return 0
	case DiscoveryLinkTag:
		return 1
	case DiscoveryMetaTag:
		return 2
	case DiscoveryContentScan:
		return 3
	default:
		return 4
	}
}

// Metadata is the subset of a feed document needed for validation.
type Metadata struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Type        FeedType `json:"type"`
}

// ValidationAttempt is one try within a validation run. Attempts are
// appended in chronological order and never modified afterwards.
type ValidationAttempt struct {
	Method     Method    `json:"method"`
	URL        string    `json:"url"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
	ErrorKind  ErrorKind `json:"errorKind,omitempty"`
	RelayUsed  string    `json:"relayUsed,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	DurationMs int64     `json:"durationMs"`
}

// DiscoveredFeed is a candidate feed address found during discovery.
type DiscoveredFeed struct {
	URL             string          `json:"url"`
	Title           string          `json:"title,omitempty"`
	Description     string          `json:"description,omitempty"`
	Type            FeedType        `json:"type"`
	DiscoveryMethod DiscoveryMethod `json:"discoveryMethod"`
	Confidence      float64         `json:"confidence"`
}

// ValidationResult is the outcome of one address's validation run.
type ValidationResult struct {
	RunID                 string              `json:"runId"`
	URL                   string              `json:"url"`
	OriginalURL           string              `json:"originalUrl"`
	IsValid               bool                `json:"isValid"`
	Status                Status              `json:"status"`
	Title                 string              `json:"title"`
	Description           string              `json:"description"`
	FeedType              FeedType            `json:"feedType,omitempty"`
	Error                 string              `json:"error,omitempty"`
	ErrorKind             ErrorKind           `json:"errorKind,omitempty"`
	FinalMethod           Method              `json:"finalMethod"`
	Attempts              []ValidationAttempt `json:"attempts"`
	TotalRetries          int                 `json:"totalRetries"`
	TotalValidationTimeMs int64               `json:"totalValidationTimeMs"`
	DiscoveredFeeds       []DiscoveredFeed    `json:"discoveredFeeds,omitempty"`
	RequiresUserSelection bool                `json:"requiresUserSelection"`
	Suggestions           []string            `json:"suggestions"`
	Cached                bool                `json:"cached"`
}

// Clone returns a deep copy so cached results cannot be mutated by callers.
func (r *ValidationResult) Clone() *ValidationResult {
	if r == nil {
		return nil
	}
	c := *r
	c.Attempts = append([]ValidationAttempt(nil), r.Attempts...)
	c.DiscoveredFeeds = append([]DiscoveredFeed(nil), r.DiscoveredFeeds...)
	c.Suggestions = append([]string(nil), r.Suggestions...)
	return &c
}

// ApproxSize estimates the in-memory footprint in bytes for cache accounting.
func (r *ValidationResult) ApproxSize() int {
	if r == nil {
		return 0
	}
	n := 256 + len(r.RunID) + len(r.URL) + len(r.OriginalURL) + len(r.Title) + len(r.Description) + len(r.Error)
	n += len(r.Attempts) * 160
	for _, a := range r.Attempts {
		n += len(a.URL) + len(a.Error) + len(a.RelayUsed)
	}
	for _, f := range r.DiscoveredFeeds {
		n += 96 + len(f.URL) + len(f.Title) + len(f.Description)
	}
	for _, s := range r.Suggestions {
		n += 16 + len(s)
	}
	return n
}

// DiscoveryResult is the outcome of a site-wide discovery run.
type DiscoveryResult struct {
	RunID              string            `json:"runId"`
	OriginalURL        string            `json:"originalUrl"`
	DiscoveredFeeds    []DiscoveredFeed  `json:"discoveredFeeds"`
	DiscoveryMethods   []DiscoveryMethod `json:"discoveryMethods"`
	TotalAttempts      int               `json:"totalAttempts"`
	SuccessfulAttempts int               `json:"successfulAttempts"`
	DiscoveryTimeMs    int64             `json:"discoveryTime"`
	Suggestions        []string          `json:"suggestions"`
}

// Clone returns a deep copy.
func (r *DiscoveryResult) Clone() *DiscoveryResult {
	if r == nil {
		return nil
	}
	c := *r
	c.DiscoveredFeeds = append([]DiscoveredFeed(nil), r.DiscoveredFeeds...)
	c.DiscoveryMethods = append([]DiscoveryMethod(nil), r.DiscoveryMethods...)
	c.Suggestions = append([]string(nil), r.Suggestions...)
	return &c
}

// ApproxSize estimates the in-memory footprint in bytes for cache accounting.
func (r *DiscoveryResult) ApproxSize() int {
	if r == nil {
		return 0
	}
	n := 192 + len(r.RunID) + len(r.OriginalURL)
	for _, f := range r.DiscoveredFeeds {
		n += 96 + len(f.URL) + len(f.Title) + len(f.Description)
	}
	for _, s := range r.Suggestions {
		n += 16 + len(s)
	}
	return n
}
