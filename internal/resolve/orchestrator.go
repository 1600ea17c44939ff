// Package resolve turns a user-supplied address into a validated feed by
// trying direct retrieval, then the relay chain, then site discovery.
package resolve

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pders01/feedscout/internal/cache"
	"github.com/pders01/feedscout/internal/config"
	"github.com/pders01/feedscout/internal/debuglog"
	"github.com/pders01/feedscout/internal/discovery"
	"github.com/pders01/feedscout/internal/feed"
	"github.com/pders01/feedscout/internal/relay"
	"github.com/pders01/feedscout/internal/validation"
)

// Cache purposes. Results of Validate and ValidateWithDiscovery for the same
// address are cached separately since they can legitimately differ.
const (
	PurposeValidate  = "validate"
	PurposeDiscovery = "discovery"
)

// ProgressFunc receives human-readable status updates and a completion
// percentage in [0,100]. The last call of a run always reports 100.
type ProgressFunc func(status string, pct int)

// Deps are the collaborators an Orchestrator drives. Relays and Discovery
// may be nil, which disables that strategy.
type Deps struct {
	Fetcher   feed.Fetcher
	Parser    *feed.Parser
	Relays    *relay.Manager
	Discovery *discovery.Engine
	Cache     *cache.Cache
}

// Orchestrator runs validation strategies in order and caches outcomes.
// It holds no per-run state and is safe for concurrent use.
type Orchestrator struct {
	fetcher   feed.Fetcher
	parser    *feed.Parser
	relays    *relay.Manager
	discovery *discovery.Engine
	cache     *cache.Cache
	validator *validation.FeedURLValidator

	timeout      time.Duration
	maxRetries   int
	initialDelay time.Duration
	maxDelay     time.Duration

	log *logrus.Entry
}

func New(cfg *config.Config, deps Deps) *Orchestrator {
	parser := deps.Parser
	if parser == nil {
		parser = feed.NewParser()
	}
	c := deps.Cache
	if c == nil {
		c = cache.New(cfg.Cache)
	}
	return &Orchestrator{
		fetcher:      deps.Fetcher,
		parser:       parser,
		relays:       deps.Relays,
		discovery:    deps.Discovery,
		cache:        c,
		validator:    validation.FromConfig(cfg.Validation),
		timeout:      cfg.Fetch.Timeout,
		maxRetries:   max(cfg.Fetch.MaxRetries, 0),
		initialDelay: cfg.Fetch.InitialRetryDelay,
		maxDelay:     cfg.Fetch.MaxRetryDelay,
		log:          debuglog.Component("resolve"),
	}
}

// Cache returns the result cache the orchestrator writes to.
func (o *Orchestrator) Cache() *cache.Cache {
	return o.cache
}

// run carries the state of one validation run.
type run struct {
	o        *Orchestrator
	result   *feed.ValidationResult
	start    time.Time
	progress ProgressFunc
	log      *logrus.Entry

	succeeded bool
}

func (o *Orchestrator) newRun(rawURL string, progress ProgressFunc) *run {
	id := uuid.NewString()
	if progress == nil {
		progress = func(string, int) {}
	}
	return &run{
		o: o,
		result: &feed.ValidationResult{
			RunID:       id,
			URL:         rawURL,
			OriginalURL: rawURL,
			Attempts:    []feed.ValidationAttempt{},
		},
		start:    time.Now(),
		progress: progress,
		log:      o.log.WithFields(logrus.Fields{"run": id, "url": rawURL}),
	}
}

// record appends an attempt. Failures before the first success count as retries.
func (r *run) record(a feed.ValidationAttempt) {
	r.result.Attempts = append(r.result.Attempts, a)
	if a.Success {
		r.succeeded = true
	} else if !r.succeeded {
		r.result.TotalRetries++
	}
}

func (r *run) finish() *feed.ValidationResult {
	r.result.TotalValidationTimeMs = time.Since(r.start).Milliseconds()
	r.log.WithFields(logrus.Fields{
		"status":   r.result.Status,
		"method":   r.result.FinalMethod,
		"attempts": len(r.result.Attempts),
		"duration": time.Since(r.start),
	}).Info("Validation finished")
	return r.result
}

// prepare checks the address and consults the cache. It returns a terminal
// result when the run must not go any further.
func (r *run) prepare(purpose string) (string, *feed.ValidationResult) {
	target, err := r.o.validator.ValidateAndNormalize(r.result.OriginalURL)
	if err != nil {
		r.result.Status = feed.StatusInvalid
		r.result.ErrorKind = feed.KindInvalidURL
		r.result.Error = err.Error()
		r.result.Suggestions = []string{"Check the address and try again"}
		return "", r.finish()
	}
	r.result.URL = target
	r.log = r.log.WithField("url", target)

	if cached, ok := r.o.lookup(target, purpose); ok {
		r.log.Debug("Cache hit")
		return target, cached
	}
	return target, nil
}

func (o *Orchestrator) lookup(target, purpose string) (*feed.ValidationResult, bool) {
	v, ok := o.cache.Get(cache.Key(validation.NormalizeURL(target), purpose))
	if !ok {
		return nil, false
	}
	res, ok := v.(*feed.ValidationResult)
	if !ok {
		return nil, false
	}
	out := res.Clone()
	out.Cached = true
	return out, true
}

func (o *Orchestrator) store(target, purpose string, res *feed.ValidationResult, class cache.Class) {
	o.cache.Set(cache.Key(validation.NormalizeURL(target), purpose), res.Clone(), class)
}

// Validate checks a feed address with direct retrieval and, when that fails
// for a network-type reason, the relay chain. It never runs discovery.
func (o *Orchestrator) Validate(ctx context.Context, rawURL string) *feed.ValidationResult {
	r := o.newRun(rawURL, nil)
	target, done := r.prepare(PurposeValidate)
	if done != nil {
		return done
	}

	meta, method, err := r.fetchWithFallback(ctx, target)
	class := cache.ClassSuccess
	if err == nil {
		r.succeed(method, target, meta)
	} else {
		r.fail(err)
		class = cache.ClassFailure
	}
	res := r.finish()
	// a cancelled run says nothing about the feed
	if ctx.Err() == nil {
		o.store(target, PurposeValidate, res, class)
	}
	return res
}

// ValidateWithDiscovery runs every strategy in order. When the address is
// not a feed, the site behind it is searched: a single candidate is
// validated and returned in its place, several candidates end the run with
// StatusDiscoveryRequired for the caller to pick one.
func (o *Orchestrator) ValidateWithDiscovery(ctx context.Context, rawURL string, onProgress ProgressFunc) *feed.ValidationResult {
	r := o.newRun(rawURL, onProgress)
	r.progress("Starting validation...", 10)

	target, done := r.prepare(PurposeDiscovery)
	if done != nil {
		r.progress("Validation complete", 100)
		return done
	}

	meta, method, err := r.fetchWithFallback(ctx, target)
	class := cache.ClassSuccess
	switch {
	case err == nil:
		r.succeed(method, target, meta)
	case o.discovery == nil:
		r.fail(err)
		class = cache.ClassFailure
	default:
		r.progress("Direct access failed, attempting discovery...", 30)
		class = r.discover(ctx, target, err)
	}

	res := r.finish()
	if ctx.Err() == nil {
		o.store(target, PurposeDiscovery, res, class)
	}
	r.progress("Validation complete", 100)
	return res
}

// fetchWithFallback tries direct retrieval, then the relay chain when the
// direct failure looks like a connectivity problem.
func (r *run) fetchWithFallback(ctx context.Context, target string) (*feed.Metadata, feed.Method, error) {
	r.progress("Trying direct connection...", 20)
	meta, err := r.direct(ctx, target)
	if err == nil {
		return meta, feed.MethodDirect, nil
	}
	if r.o.relays == nil || !relayEligible(feed.KindOf(err)) {
		return nil, "", err
	}

	r.progress("Trying relay servers...", 25)
	meta, relayErr := r.viaRelays(ctx, target)
	if relayErr == nil {
		return meta, feed.MethodRelay, nil
	}
	// the direct failure explains the outcome better than the relays' own
	return nil, "", err
}

// relayEligible reports whether a direct failure is worth retrying through
// relays. A 404 or a document that is not a feed will not improve.
func relayEligible(kind feed.ErrorKind) bool {
	switch kind {
	case feed.KindNetwork, feed.KindTimeout, feed.KindCORS, feed.KindHTTP:
		return true
	}
	return false
}

func (r *run) succeed(method feed.Method, target string, meta *feed.Metadata) {
	r.result.URL = target
	r.result.IsValid = true
	r.result.Status = feed.StatusValid
	r.result.FinalMethod = method
	r.result.Title = meta.Title
	r.result.Description = meta.Description
	r.result.FeedType = meta.Type
	r.result.Error = ""
	r.result.ErrorKind = ""
	r.result.Suggestions = []string{"Feed validated successfully"}
}

func (r *run) fail(err error) {
	kind := feed.KindOf(err)
	r.result.IsValid = false
	r.result.FinalMethod = feed.MethodDirect
	if n := len(r.result.Attempts); n > 0 {
		r.result.FinalMethod = r.result.Attempts[n-1].Method
	}
	r.result.ErrorKind = kind
	r.result.Status = statusFor(kind)
	r.result.Error, r.result.Suggestions = describeFailure(err)
}

// discover searches the site behind target and fills in the result. It
// returns the cache class the outcome belongs to. directErr is the failure
// that led here.
func (r *run) discover(ctx context.Context, target string, directErr error) cache.Class {
	started := time.Now()
	disc := r.o.discovery.DiscoverFromWebsite(ctx, target)
	r.progress("Discovery completed", 70)

	candidates := disc.DiscoveredFeeds
	attempt := feed.ValidationAttempt{
		Method:     feed.MethodDiscovery,
		URL:        target,
		Success:    len(candidates) > 0,
		StartedAt:  started,
		DurationMs: time.Since(started).Milliseconds(),
	}
	if len(candidates) == 0 {
		attempt.Error = "no feeds found"
		attempt.ErrorKind = feed.KindDiscoveryFailed
	}
	r.record(attempt)

	res := r.result
	res.FinalMethod = feed.MethodDiscovery

	switch len(candidates) {
	case 0:
		res.IsValid = false
		res.Status = feed.StatusInvalid
		res.Error = "Feed discovery failed"
		res.ErrorKind = feed.KindDiscoveryFailed
		_, hints := describeFailure(directErr)
		res.Suggestions = append(append([]string(nil), disc.Suggestions...), hints...)
		return cache.ClassFailure

	case 1:
		candidate := candidates[0]
		r.progress("Validating discovered feed...", 85)
		meta, err := r.direct(ctx, candidate.URL)
		if err != nil {
			res.IsValid = false
			res.Status = feed.StatusInvalid
			res.DiscoveredFeeds = []feed.DiscoveredFeed{candidate}
			res.ErrorKind = feed.KindOf(err)
			res.Error = fmt.Sprintf("Discovered feed %s could not be validated", candidate.URL)
			res.Suggestions = []string{"Try again later or enter the feed address directly"}
			return cache.ClassFailure
		}
		r.succeed(feed.MethodDiscovery, candidate.URL, meta)
		if res.Title == "" {
			res.Title = candidate.Title
		}
		res.DiscoveredFeeds = []feed.DiscoveredFeed{candidate}
		res.Suggestions = []string{fmt.Sprintf("Feed discovered and validated from %s", validation.Origin(target))}
		return cache.ClassSuccess

	default:
		res.IsValid = false
		res.Status = feed.StatusDiscoveryRequired
		res.RequiresUserSelection = true
		res.DiscoveredFeeds = append([]feed.DiscoveredFeed(nil), candidates...)
		res.ErrorKind = ""
		res.Error = fmt.Sprintf("Found %d RSS feeds - user selection required", len(candidates))
		res.Suggestions = []string{
			fmt.Sprintf("Found %d RSS feeds on this website", len(candidates)),
			"Choose the feed you want to subscribe to",
		}
		return cache.ClassDiscovery
	}
}
