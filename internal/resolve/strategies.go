package resolve

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pders01/feedscout/internal/feed"
	"github.com/pders01/feedscout/internal/relay"
)

// direct fetches and parses target, retrying transient failures with
// exponential backoff. Every try is recorded as its own attempt.
func (r *run) direct(ctx context.Context, target string) (*feed.Metadata, error) {
	var lastErr error
	for try := 0; try <= r.o.maxRetries; try++ {
		if try > 0 {
			delay := r.o.backoff(try)
			r.log.WithFields(logrus.Fields{"try": try, "delay": delay, "kind": feed.KindOf(lastErr)}).Debug("Retrying direct fetch")
			if err := sleep(ctx, delay); err != nil {
				break
			}
		}

		meta, err := r.fetchFeed(ctx, target)
		if err == nil {
			return meta, nil
		}
		lastErr = err
		if !feed.IsTransient(err) {
			break
		}
	}
	return nil, lastErr
}

func (r *run) fetchFeed(ctx context.Context, target string) (*feed.Metadata, error) {
	started := time.Now()
	meta, err := r.o.fetchAndParse(ctx, target)

	attempt := feed.ValidationAttempt{
		Method:     feed.MethodDirect,
		URL:        target,
		Success:    err == nil,
		StartedAt:  started,
		DurationMs: time.Since(started).Milliseconds(),
	}
	if err != nil {
		attempt.Error = err.Error()
		attempt.ErrorKind = feed.KindOf(err)
	}
	r.record(attempt)
	return meta, err
}

func (o *Orchestrator) fetchAndParse(ctx context.Context, target string) (*feed.Metadata, error) {
	resp, err := o.fetcher.Fetch(ctx, target, feed.FetchOptions{Timeout: o.timeout})
	if err != nil {
		return nil, feed.Classify(target, err)
	}
	meta, err := o.parser.ExtractMetadata(resp.Body)
	if err != nil {
		return nil, feed.Classify(target, err)
	}
	return meta, nil
}

// viaRelays runs the relay chain. Relayed content must parse as a feed, so
// a relay serving a block page counts as failed and the next one is tried.
func (r *run) viaRelays(ctx context.Context, target string) (*feed.Metadata, error) {
	var meta *feed.Metadata
	res, err := r.o.relays.TryProxiesWithFailover(ctx, target, func(content []byte) error {
		m, err := r.o.parser.ExtractMetadata(content)
		if err != nil {
			return err
		}
		meta = m
		return nil
	})
	if err != nil {
		var failover *relay.FailoverError
		if errors.As(err, &failover) {
			for _, a := range failover.Attempts {
				r.record(relayAttempt(target, a))
			}
		}
		return nil, err
	}

	for _, a := range res.Attempts {
		r.record(relayAttempt(target, a))
	}
	return meta, nil
}

func relayAttempt(target string, a relay.Attempt) feed.ValidationAttempt {
	out := feed.ValidationAttempt{
		Method:     feed.MethodRelay,
		URL:        target,
		Success:    a.Success,
		RelayUsed:  a.Relay,
		StartedAt:  a.StartedAt,
		DurationMs: a.DurationMs,
		ErrorKind:  a.ErrorKind,
	}
	if a.Err != nil {
		out.Error = a.Err.Error()
	}
	return out
}

// backoff returns initial·2^(try-1) capped at the maximum, with ±10% jitter.
func (o *Orchestrator) backoff(try int) time.Duration {
	delay := time.Duration(float64(o.initialDelay) * math.Pow(2, float64(try-1)))
	if delay <= 0 || (o.maxDelay > 0 && delay > o.maxDelay) {
		delay = o.maxDelay
	}
	if delay <= 0 {
		return 0
	}
	var jitter time.Duration
	if spread := int64(delay) / 5; spread > 0 {
		jitter = time.Duration(rand.Int64N(spread)) - delay/10
	}
	return max(delay+jitter, 0)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func statusFor(kind feed.ErrorKind) feed.Status {
	switch kind {
	case feed.KindNotFound:
		return feed.StatusNotFound
	case feed.KindTimeout:
		return feed.StatusTimeout
	default:
		return feed.StatusInvalid
	}
}

// describeFailure turns a classified error into a user-facing message and
// at least one suggestion.
func describeFailure(err error) (string, []string) {
	switch feed.KindOf(err) {
	case feed.KindNotFound:
		return "Feed not found", []string{
			"Check the address for typos",
			"Try the website's home page to discover its feeds",
		}
	case feed.KindTimeout:
		return "The server took too long to respond", []string{"Try again later"}
	case feed.KindParse:
		return "The address does not point to an RSS or Atom feed", []string{
			"Try the website address to discover its feeds",
		}
	case feed.KindCORS:
		return "The server refused a cross-origin request", []string{"Try again later; relays may be unavailable"}
	case feed.KindHTTP:
		if status := feed.StatusOf(err); status != 0 {
			return fmt.Sprintf("The server responded with HTTP %d", status), []string{"Try again later"}
		}
		return "The server returned an unusable response", []string{"Try again later"}
	case feed.KindNetwork:
		return "Could not connect to the server", []string{"Check your internet connection and the address"}
	case "":
		return "", []string{"Try entering the feed address directly"}
	default:
		return err.Error(), []string{"Check the address and try again"}
	}
}
