package feed

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorKind is the closed classification every fetch, parse and discovery
// failure is reduced to. Downstream branching uses only the kind.
type ErrorKind string

const (
	KindNetwork         ErrorKind = "network"
	KindTimeout         ErrorKind = "timeout"
	KindCORS            ErrorKind = "cors"
	KindNotFound        ErrorKind = "http_not_found"
	KindHTTP            ErrorKind = "http_error"
	KindParse           ErrorKind = "parse_error"
	KindDiscoveryFailed ErrorKind = "discovery_failed"
	KindCacheMiss       ErrorKind = "cache_miss"
	KindInvalidURL      ErrorKind = "invalid_url"
)

var (
	// ErrCrossOrigin is wrapped by fetchers that are blocked by a
	// cross-origin policy (browser bridges, filtering proxies).
	ErrCrossOrigin = errors.New("cross-origin request blocked")
	// ErrNotFeed is returned when content is not a recognizable feed document.
	ErrNotFeed = errors.New("content is not a recognizable feed")
)

// Error is a classified failure.
type Error struct {
	Kind   ErrorKind
	URL    string
	Status int
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Status != 0 && e.Err != nil:
		return fmt.Sprintf("%s: HTTP %d: %v", e.Kind, e.Status, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("%s: HTTP %d %s", e.Kind, e.Status, http.StatusText(e.Status))
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds a classified error.
func NewError(kind ErrorKind, rawURL string, err error) *Error {
	return &Error{Kind: kind, URL: rawURL, Err: err}
}

// StatusError classifies a non-2xx HTTP status.
func StatusError(rawURL string, status int) *Error {
	kind := KindHTTP
	if status == http.StatusNotFound || status == http.StatusGone {
		kind = KindNotFound
	}
	return &Error{Kind: kind, URL: rawURL, Status: status}
}

// Classify reduces an arbitrary transport error to a classified *Error.
// Errors that are already classified pass through unchanged.
func Classify(rawURL string, err error) *Error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(KindTimeout, rawURL, err)
	}
	if errors.Is(err, ErrCrossOrigin) {
		return NewError(KindCORS, rawURL, err)
	}
	if errors.Is(err, ErrNotFeed) {
		return NewError(KindParse, rawURL, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewError(KindTimeout, rawURL, err)
	}
	return NewError(KindNetwork, rawURL, err)
}

// KindOf returns the classification of err, or "" for nil.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Classify("", err).Kind
}

// StatusOf returns the HTTP status carried by err, if any.
func StatusOf(err error) int {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Status
	}
	return 0
}

// IsTransient reports whether err is worth retrying within the same strategy:
// network resets, timeouts, server errors and rate limiting.
func IsTransient(err error) bool {
	switch KindOf(err) {
	case KindNetwork, KindTimeout:
		return true
	case KindHTTP:
		status := StatusOf(err)
		return status >= 500 || status == http.StatusTooManyRequests
	}
	return false
}
