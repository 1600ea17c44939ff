package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pders01/feedscout/internal/config"
)

const (
	acceptFeed = "application/rss+xml, application/atom+xml, application/rdf+xml, application/xml, text/xml;q=0.9, */*;q=0.8"
	acceptHTML = "text/html, application/xhtml+xml, application/xml;q=0.9, */*;q=0.8"
)

// Response is the body of a successful fetch.
type Response struct {
	URL         string
	Status      int
	StatusText  string
	ContentType string
	Body        []byte
}

// FetchOptions tune a single fetch.
type FetchOptions struct {
	Timeout time.Duration
	// HTML asks for a web page rather than a feed document.
	HTML bool
}

// Fetcher retrieves a resource. Implementations return a classified *Error
// for every failure, including non-2xx responses.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, opts FetchOptions) (*Response, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, rawURL string, opts FetchOptions) (*Response, error)

func (f FetcherFunc) Fetch(ctx context.Context, rawURL string, opts FetchOptions) (*Response, error) {
	return f(ctx, rawURL, opts)
}

// HTTPFetcher is the net/http implementation of Fetcher.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	timeout   time.Duration
	maxBody   int64
}

func NewHTTPFetcher(cfg *config.Config) *HTTPFetcher {
	return &HTTPFetcher{
		client:    &http.Client{},
		userAgent: cfg.Fetch.UserAgent,
		timeout:   cfg.Fetch.Timeout,
		maxBody:   cfg.Fetch.MaxBodyBytes,
	}
}

// WithClient swaps the underlying HTTP client.
func (f *HTTPFetcher) WithClient(client *http.Client) *HTTPFetcher {
	f.client = client
	return f
}

func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string, opts FetchOptions) (*Response, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = f.timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, NewError(KindInvalidURL, rawURL, fmt.Errorf("creating request: %w", err))
	}

	req.Header.Set("User-Agent", f.userAgent)
	if opts.HTML {
		req.Header.Set("Accept", acceptHTML)
	} else {
		req.Header.Set("Accept", acceptFeed)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, Classify(rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, StatusError(rawURL, resp.StatusCode)
	}

	var body io.Reader = resp.Body
	if f.maxBody > 0 {
		body = io.LimitReader(resp.Body, f.maxBody)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, Classify(rawURL, fmt.Errorf("reading response: %w", err))
	}

	return &Response{
		URL:         resp.Request.URL.String(),
		Status:      resp.StatusCode,
		StatusText:  resp.Status,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        data,
	}, nil
}
