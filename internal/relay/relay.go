package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pders01/feedscout/internal/config"
	"github.com/pders01/feedscout/internal/debuglog"
	"github.com/pders01/feedscout/internal/feed"
)

// Format describes how a relay wraps the fetched resource.
type Format string

const (
	FormatRaw  Format = "raw"
	FormatJSON Format = "json"
)

// ErrNoRelays is returned by failover when no relay is configured.
var ErrNoRelays = errors.New("no relays configured")

// Relay is a third-party endpoint that fetches a resource on our behalf.
type Relay struct {
	Name        string `json:"name"`
	URLTemplate string `json:"urlTemplate"`
	Format      Format `json:"format"`
	JSONField   string `json:"jsonField,omitempty"`
}

// RequestURL substitutes the escaped target into the relay's template.
func (r Relay) RequestURL(target string) string {
	return strings.ReplaceAll(r.URLTemplate, "{url}", url.QueryEscape(target))
}

// FromConfig converts configured endpoints, skipping entries without a
// name or a {url} placeholder.
func FromConfig(endpoints []config.RelayEndpoint) []Relay {
	relays := make([]Relay, 0, len(endpoints))
	for _, ep := range endpoints {
		if ep.Name == "" || !strings.Contains(ep.URLTemplate, "{url}") {
			debuglog.Warnf("Skipping relay %q: missing name or {url} placeholder", ep.Name)
			continue
		}
		format := Format(strings.ToLower(ep.Format))
		if format != FormatJSON {
			format = FormatRaw
		}
		relays = append(relays, Relay{
			Name:        ep.Name,
			URLTemplate: ep.URLTemplate,
			Format:      format,
			JSONField:   ep.JSONField,
		})
	}
	return relays
}

// Attempt records one relay try.
type Attempt struct {
	Relay      string         `json:"relay"`
	Success    bool           `json:"success"`
	Err        error          `json:"-"`
	ErrorKind  feed.ErrorKind `json:"errorKind,omitempty"`
	StartedAt  time.Time      `json:"startedAt"`
	DurationMs int64          `json:"durationMs"`
}

// AcceptFunc inspects relayed content and rejects what the caller cannot
// use, such as a block page served with status 200.
type AcceptFunc func(content []byte) error

// Result is the outcome of a successful failover run.
type Result struct {
	Content   []byte
	RelayUsed string
	Attempts  []Attempt
}

// FailoverError is returned when every relay failed. It carries each relay's
// error in the order they were tried.
type FailoverError struct {
	URL      string
	Attempts []Attempt
}

func (e *FailoverError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Relay, a.Err))
	}
	return fmt.Sprintf("all %d relays failed for %s: %s", len(e.Attempts), e.URL, strings.Join(parts, "; "))
}

func (e *FailoverError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		if a.Err != nil {
			errs = append(errs, a.Err)
		}
	}
	return errs
}

// Manager tries relays in order and keeps per-relay reliability statistics.
// It is safe for concurrent use; the relay list may be swapped between runs.
type Manager struct {
	fetcher feed.Fetcher
	timeout time.Duration
	reorder bool
	log     *logrus.Entry
	now     func() time.Time

	mu     sync.RWMutex
	relays []Relay
	stats  map[string]*ProxyStat
}

func NewManager(cfg *config.Config, fetcher feed.Fetcher) *Manager {
	m := &Manager{
		fetcher: fetcher,
		timeout: cfg.Relay.Timeout,
		reorder: cfg.Relay.ReorderBySuccess,
		log:     debuglog.Component("relay"),
		now:     time.Now,
		stats:   make(map[string]*ProxyStat),
	}
	if cfg.Relay.Enabled {
		m.SetRelays(FromConfig(cfg.Relay.Endpoints))
	}
	return m
}

// SetRelays replaces the relay list. Statistics of relays no longer in the
// list are kept until ResetStats.
func (m *Manager) SetRelays(relays []Relay) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.relays = append([]Relay(nil), relays...)
	for _, r := range m.relays {
		if _, ok := m.stats[r.Name]; !ok {
			m.stats[r.Name] = &ProxyStat{Name: r.Name}
		}
	}
}

// Relays returns the current relay list in configured order.
func (m *Manager) Relays() []Relay {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Relay(nil), m.relays...)
}

// ordered returns the relays in the order failover should try them.
func (m *Manager) ordered() []Relay {
	m.mu.RLock()
	defer m.mu.RUnlock()
	relays := append([]Relay(nil), m.relays...)
	if !m.reorder {
		return relays
	}
	rate := func(name string) float64 {
		s, ok := m.stats[name]
		if !ok {
			return 0.5
		}
		return s.score()
	}
	slices.SortStableFunc(relays, func(a, b Relay) int {
		ra, rb := rate(a.Name), rate(b.Name)
		switch {
		case ra > rb:
			return -1
		case ra < rb:
			return 1
		default:
			return 0
		}
	})
	return relays
}

// TryProxy makes a single attempt through r and returns the unwrapped body.
func (m *Manager) TryProxy(ctx context.Context, r Relay, target string) ([]byte, error) {
	content, _, err := m.try(ctx, r, target, nil)
	return content, err
}

func (m *Manager) try(ctx context.Context, r Relay, target string, accept AcceptFunc) ([]byte, Attempt, error) {
	start := m.now()
	content, err := m.fetchThrough(ctx, r, target)
	if err == nil && accept != nil {
		if aerr := accept(content); aerr != nil {
			err = feed.NewError(feed.KindOf(aerr), target, fmt.Errorf("relay %s: %w", r.Name, aerr))
		}
	}
	elapsed := m.now().Sub(start)

	attempt := Attempt{
		Relay:      r.Name,
		Success:    err == nil,
		Err:        err,
		ErrorKind:  feed.KindOf(err),
		StartedAt:  start,
		DurationMs: elapsed.Milliseconds(),
	}
	m.record(r.Name, err == nil, elapsed)

	entry := m.log.WithFields(logrus.Fields{"relay": r.Name, "url": target, "duration": elapsed})
	if err != nil {
		entry.WithField("kind", attempt.ErrorKind).Debugf("Relay attempt failed: %v", err)
		return nil, attempt, err
	}
	entry.Debug("Relay attempt succeeded")
	return content, attempt, nil
}

func (m *Manager) fetchThrough(ctx context.Context, r Relay, target string) ([]byte, error) {
	resp, err := m.fetcher.Fetch(ctx, r.RequestURL(target), feed.FetchOptions{Timeout: m.timeout})
	if err != nil {
		return nil, err
	}

	content := resp.Body
	if r.Format == FormatJSON {
		content, err = unwrapJSON(r, target, resp.Body)
		if err != nil {
			return nil, err
		}
	}
	if len(strings.TrimSpace(string(content))) == 0 {
		return nil, feed.NewError(feed.KindHTTP, target, fmt.Errorf("relay %s returned an empty body", r.Name))
	}
	return content, nil
}

// unwrapJSON extracts the payload from relays that wrap the upstream
// response in a JSON envelope, e.g. {"contents": "...", "status": {"http_code": 200}}.
func unwrapJSON(r Relay, target string, body []byte) ([]byte, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, feed.NewError(feed.KindParse, target, fmt.Errorf("relay %s: decoding envelope: %w", r.Name, err))
	}

	if raw, ok := envelope["status"]; ok {
		var status struct {
			HTTPCode int `json:"http_code"`
		}
		if json.Unmarshal(raw, &status) == nil && status.HTTPCode >= 400 {
			return nil, feed.StatusError(target, status.HTTPCode)
		}
	}

	field := r.JSONField
	if field == "" {
		field = "contents"
	}
	raw, ok := envelope[field]
	if !ok {
		return nil, feed.NewError(feed.KindParse, target, fmt.Errorf("relay %s: envelope has no %q field", r.Name, field))
	}
	var contents string
	if err := json.Unmarshal(raw, &contents); err != nil {
		return nil, feed.NewError(feed.KindParse, target, fmt.Errorf("relay %s: field %q is not a string", r.Name, field))
	}
	return []byte(contents), nil
}

// TryProxiesWithFailover tries each relay in turn and returns the first
// success. Content rejected by accept counts as that relay's failure; a nil
// accept takes any non-empty body. When every relay fails the error is a
// *FailoverError.
func (m *Manager) TryProxiesWithFailover(ctx context.Context, target string, accept AcceptFunc) (*Result, error) {
	relays := m.ordered()
	if len(relays) == 0 {
		return nil, ErrNoRelays
	}

	var attempts []Attempt
	for _, r := range relays {
		if ctx.Err() != nil {
			break
		}
		content, attempt, err := m.try(ctx, r, target, accept)
		attempts = append(attempts, attempt)
		if err == nil {
			return &Result{Content: content, RelayUsed: r.Name, Attempts: attempts}, nil
		}
	}

	m.log.WithField("url", target).Infof("All %d relay attempts failed", len(attempts))
	return nil, &FailoverError{URL: target, Attempts: attempts}
}
