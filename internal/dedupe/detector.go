// Package dedupe recognizes the same logical feed under different addresses.
package dedupe

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/pders01/feedscout/internal/config"
	"github.com/pders01/feedscout/internal/debuglog"
	"github.com/pders01/feedscout/internal/feed"
	"github.com/pders01/feedscout/internal/validation"
)

const (
	ReasonSameURL         = "Identical normalized URLs"
	ReasonSameFingerprint = "Identical content fingerprint"
	ReasonNoFingerprint   = "Unable to generate content fingerprint"
	ReasonNone            = "No duplicates detected"

	confidenceSameURL         = 1.0
	confidenceSameFingerprint = 0.95
)

// Validator fetches and validates a single feed address.
type Validator interface {
	Validate(ctx context.Context, rawURL string) *feed.ValidationResult
}

// Detector compares feeds by address, content fingerprint and title.
// Fingerprints are cached per normalized address for the detector's
// lifetime. Failed attempts are not kept; the validator's own result cache
// limits how often an unreachable feed is retried.
type Detector struct {
	validator   Validator
	threshold   float64
	concurrency int64
	log         *logrus.Entry

	mu           sync.Mutex
	fingerprints map[string]*ContentFingerprint
}

func NewDetector(cfg *config.Config, v Validator) *Detector {
	threshold := cfg.Duplicates.TitleSimilarityThreshold
	if threshold <= 0 || threshold > 1 {
		threshold = 0.9
	}
	concurrency := cfg.Duplicates.FingerprintConcurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Detector{
		validator:    v,
		threshold:    threshold,
		concurrency:  int64(concurrency),
		log:          debuglog.Component("dedupe"),
		fingerprints: make(map[string]*ContentFingerprint),
	}
}

// NormalizeURL is the comparison form of an address. It never fails.
func NormalizeURL(rawURL string) string {
	return validation.NormalizeURL(rawURL)
}

// GenerateContentFingerprint validates rawURL and hashes what it publishes.
// It returns nil when the address is not a valid feed or carries neither a
// title nor a description.
func (d *Detector) GenerateContentFingerprint(ctx context.Context, rawURL string) *ContentFingerprint {
	key := NormalizeURL(rawURL)

	d.mu.Lock()
	fp, ok := d.fingerprints[key]
	d.mu.Unlock()
	if ok {
		return fp
	}

	fp = d.fingerprint(ctx, rawURL)
	if fp == nil {
		return nil
	}

	d.mu.Lock()
	if existing, ok := d.fingerprints[key]; ok {
		fp = existing
	} else {
		d.fingerprints[key] = fp
	}
	d.mu.Unlock()
	return fp
}

func (d *Detector) fingerprint(ctx context.Context, rawURL string) *ContentFingerprint {
	if d.validator == nil {
		return nil
	}
	res := d.validator.Validate(ctx, rawURL)
	if res == nil || !res.IsValid {
		d.log.WithField("url", rawURL).Debug("Feed could not be fingerprinted")
		return nil
	}
	if res.Title == "" && res.Description == "" {
		return nil
	}
	return &ContentFingerprint{
		URL:           rawURL,
		NormalizedURL: NormalizeURL(rawURL),
		Hash:          fingerprintHash(res.Title, res.Description),
		Title:         res.Title,
		Description:   res.Description,
		FeedType:      res.FeedType,
		GeneratedAt:   time.Now(),
	}
}

// ClearFingerprints forgets every cached fingerprint.
func (d *Detector) ClearFingerprints() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fingerprints = make(map[string]*ContentFingerprint)
}

// prefetch fingerprints every address with bounded concurrency.
func (d *Detector) prefetch(ctx context.Context, urls []string) []*ContentFingerprint {
	out := make([]*ContentFingerprint, len(urls))
	sem := semaphore.NewWeighted(d.concurrency)
	var wg sync.WaitGroup
	for i, u := range urls {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			out[i] = d.GenerateContentFingerprint(ctx, u)
		}()
	}
	wg.Wait()
	return out
}

// titleConfidence maps a similarity at or above the threshold into (0.9, 0.95).
func (d *Detector) titleConfidence(sim float64) float64 {
	if d.threshold >= 1 {
		return 0.94
	}
	c := 0.91 + 0.03*(sim-d.threshold)/(1-d.threshold)
	return math.Min(math.Max(c, 0.91), 0.94)
}

func titleReason(sim float64) string {
	return fmt.Sprintf("Very similar titles (%d%% match)", int(math.Round(sim*100)))
}

// DetectDuplicate checks newURL against existing. Tiers are tried in order
// across the whole collection and the first tier with a match decides:
// normalized address, then content fingerprint, then title similarity.
func (d *Detector) DetectDuplicate(ctx context.Context, newURL string, existing []Feed) CheckResult {
	normalized := NormalizeURL(newURL)
	result := CheckResult{NormalizedURL: normalized, Reason: ReasonNone}

	for i := range existing {
		if NormalizeURL(existing[i].URL) == normalized {
			return d.match(result, existing[i], confidenceSameURL, ReasonSameURL)
		}
	}
	if len(existing) == 0 {
		return result
	}

	fp := d.GenerateContentFingerprint(ctx, newURL)
	if fp == nil {
		result.Reason = ReasonNoFingerprint
		return result
	}
	result.ContentFingerprint = fp

	urls := make([]string, len(existing))
	for i, f := range existing {
		urls[i] = f.URL
	}
	others := d.prefetch(ctx, urls)

	for i, other := range others {
		if other != nil && other.Hash == fp.Hash {
			return d.match(result, existing[i], confidenceSameFingerprint, ReasonSameFingerprint)
		}
	}

	best, bestSim := -1, 0.0
	for i, other := range others {
		title := existing[i].Title
		if other != nil {
			title = other.Title
		}
		if title == "" || fp.Title == "" {
			continue
		}
		if sim := Similarity(fp.Title, title); sim >= d.threshold && sim > bestSim {
			best, bestSim = i, sim
		}
	}
	if best >= 0 {
		return d.match(result, existing[best], d.titleConfidence(bestSim), titleReason(bestSim))
	}
	return result
}

func (d *Detector) match(result CheckResult, of Feed, confidence float64, reason string) CheckResult {
	result.IsDuplicate = true
	result.DuplicateOf = &of
	result.Confidence = confidence
	result.Reason = reason
	d.log.WithFields(logrus.Fields{"url": result.NormalizedURL, "of": of.URL, "confidence": confidence}).Debug(reason)
	return result
}

// pair decides whether two collection members are duplicates using the same
// tiers as DetectDuplicate.
func (d *Detector) pair(na, nb string, fa, fb *ContentFingerprint) (float64, string, bool) {
	if na == nb {
		return confidenceSameURL, ReasonSameURL, true
	}
	if fa == nil || fb == nil {
		return 0, "", false
	}
	if fa.Hash == fb.Hash {
		return confidenceSameFingerprint, ReasonSameFingerprint, true
	}
	if fa.Title == "" || fb.Title == "" {
		return 0, "", false
	}
	if sim := Similarity(fa.Title, fb.Title); sim >= d.threshold {
		return d.titleConfidence(sim), titleReason(sim), true
	}
	return 0, "", false
}

// FindDuplicateGroups clusters the collection. Duplicate relations are
// joined transitively; a group's confidence is its weakest link and its
// reason that of the first link found. Feeds without a partner are left out.
func (d *Detector) FindDuplicateGroups(ctx context.Context, feeds []Feed) []Group {
	return d.groups(ctx, feeds).groups
}

type clustering struct {
	groups  []Group
	members [][]int
}

func (d *Detector) groups(ctx context.Context, feeds []Feed) clustering {
	n := len(feeds)
	if n < 2 {
		return clustering{groups: []Group{}}
	}

	normalized := make([]string, n)
	urls := make([]string, n)
	for i, f := range feeds {
		normalized[i] = NormalizeURL(f.URL)
		urls[i] = f.URL
	}
	fps := d.prefetch(ctx, urls)

	uf := newUnionFind(n)
	type link struct {
		confidence float64
		reason     string
	}
	links := make(map[int]*link)

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			conf, reason, ok := d.pair(normalized[i], normalized[j], fps[i], fps[j])
			if !ok {
				continue
			}
			ri, rj := uf.find(i), uf.find(j)
			li, lj := links[ri], links[rj]
			root := uf.union(i, j)

			merged := &link{confidence: conf, reason: reason}
			for _, l := range []*link{li, lj} {
				if l == nil {
					continue
				}
				merged.confidence = math.Min(merged.confidence, l.confidence)
			}
			switch {
			case li != nil:
				merged.reason = li.reason
			case lj != nil:
				merged.reason = lj.reason
			}
			delete(links, ri)
			delete(links, rj)
			links[root] = merged
		}
	}

	var out clustering
	index := make(map[int]int)
	for i := 0; i < n; i++ {
		root := uf.find(i)
		l, ok := links[root]
		if !ok {
			continue
		}
		g, seen := index[root]
		if !seen {
			g = len(out.groups)
			index[root] = g
			out.groups = append(out.groups, Group{Confidence: l.confidence, Reason: l.reason})
			out.members = append(out.members, nil)
		}
		out.groups[g].Feeds = append(out.groups[g].Feeds, feeds[i])
		out.members[g] = append(out.members[g], i)
	}
	if out.groups == nil {
		out.groups = []Group{}
	}
	return out
}

type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), rank: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

// union joins the sets of a and b and returns the new root.
func (u *unionFind) union(a, b int) int {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return ra
	}
	if u.rank[ra] < u.rank[rb] {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
	if u.rank[ra] == u.rank[rb] {
		u.rank[ra]++
	}
	return ra
}
