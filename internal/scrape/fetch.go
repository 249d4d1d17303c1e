// Package scrape fetches HTML pages with retries and parses them into
// goquery documents.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/avast/retry-go/v4"
)

// Defaults applied by NewFetcher.
const (
	DefaultUserAgent = "Mozilla/5.0 cineplexx-rss"
	DefaultTimeout   = 60 * time.Second
	DefaultAttempts  = 3
	MaxBodyBytes     = 10 << 20
)

const (
	retryDelay     = 500 * time.Millisecond
	retryMaxJitter = 250 * time.Millisecond
)

// Errors that are never retried.
var (
	ErrBodyTooLarge = errors.New("scrape: response body too large")
	ErrBadRequest   = errors.New("scrape: invalid request")
)

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("scrape: GET %s: status %d", e.URL, e.StatusCode)
}

// Temporary reports whether retrying the request may succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Getter loads a URL as an HTML document.
type Getter interface {
	Get(ctx context.Context, url string) (*goquery.Document, error)
}

// Fetcher is the HTTP implementation of Getter.
type Fetcher struct {
	client    *http.Client
	userAgent string
	attempts  uint
	delay     time.Duration
	logger    *slog.Logger
}

var _ Getter = (*Fetcher)(nil)

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithClient replaces the HTTP client.
func WithClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithAttempts sets the total number of tries per request.
func WithAttempts(n uint) Option {
	return func(f *Fetcher) { f.attempts = n }
}

// WithRetryDelay sets the base delay between tries.
func WithRetryDelay(d time.Duration) Option {
	return func(f *Fetcher) { f.delay = d }
}

// NewFetcher creates a Fetcher with the default timeout, user agent and
// retry policy.
func NewFetcher(logger *slog.Logger, opts ...Option) *Fetcher {
	f := &Fetcher{
		client:    &http.Client{Timeout: DefaultTimeout},
		userAgent: DefaultUserAgent,
		attempts:  DefaultAttempts,
		delay:     retryDelay,
		logger:    logger.With("component", "scrape"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Get fetches url and parses the body. Transport errors, 429 and 5xx
// responses are retried; other 4xx responses fail immediately.
func (f *Fetcher) Get(ctx context.Context, url string) (*goquery.Document, error) {
	var doc *goquery.Document
	err := retry.Do(func() error {
		d, err := f.get(ctx, url)
		if err != nil {
			return err
		}
		doc = d
		return nil
	},
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.Attempts(f.attempts),
		retry.Delay(f.delay),
		retry.MaxJitter(retryMaxJitter),
		retry.RetryIf(func(err error) bool {
			return ctx.Err() == nil && retryable(err)
		}),
		retry.OnRetry(func(n uint, err error) {
			f.logger.Debug("fetch retry", "url", url, "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (f *Fetcher) get(ctx context.Context, url string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scrape: GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	body := io.LimitReader(resp.Body, MaxBodyBytes+1)
	limited := &countingReader{r: body}
	doc, err := goquery.NewDocumentFromReader(limited)
	if err != nil {
		return nil, fmt.Errorf("scrape: parse %s: %w", url, err)
	}
	if limited.n > MaxBodyBytes {
		return nil, fmt.Errorf("%w: %s", ErrBodyTooLarge, url)
	}
	return doc, nil
}

func retryable(err error) bool {
	if errors.Is(err, ErrBodyTooLarge) || errors.Is(err, ErrBadRequest) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return true
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
