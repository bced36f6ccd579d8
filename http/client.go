// Package http provides the HTTP client for the remote comic archive and
// the HTTP handler serving the local catalog.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fwojciec/comics"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the root of the remote archive.
const DefaultBaseURL = "https://xkcd.com"

// DefaultFetchTimeout is the default timeout for HTTP requests.
const DefaultFetchTimeout = 10 * time.Second

// maxBodySize bounds a single metadata response.
const maxBodySize = 1 << 20

// DefaultRetryDelays returns the backoff delays for fetch retries: 1s, 2s, 4s.
func DefaultRetryDelays() []time.Duration {
	return []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}
}

// Ensure Client implements comics.Source at compile time.
var _ comics.Source = (*Client)(nil)

// Client retrieves comic metadata from the remote archive. The latest comic
// is served at <base>/info.0.json and comic n at <base>/n/info.0.json.
type Client struct {
	client      *http.Client
	baseURL     string
	timeout     time.Duration
	limiter     *rate.Limiter
	retryDelays []time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets the archive root. Defaults to DefaultBaseURL.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithTimeout sets the timeout for HTTP requests.
// Defaults to DefaultFetchTimeout (10s) if not specified.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithHTTPClient replaces the underlying HTTP client. The timeout option
// is ignored when set.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.client = hc
	}
}

// WithRateLimit limits requests to rps per second with no bursting.
// A value <= 0 disables the limit.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithRetryDelays sets the delays between attempts of a failed request.
// Defaults to DefaultRetryDelays() if not specified.
func WithRetryDelays(delays []time.Duration) Option {
	return func(c *Client) {
		c.retryDelays = delays
	}
}

// NewClient creates a new Client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:     DefaultBaseURL,
		timeout:     DefaultFetchTimeout,
		retryDelays: DefaultRetryDelays(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.client == nil {
		c.client = &http.Client{
			Timeout: c.timeout,
		}
	}

	return c
}

// BaseURL returns the archive root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Latest returns the number of the newest comic in the archive.
func (c *Client) Latest(ctx context.Context) (int, error) {
	comic, err := c.get(ctx, c.baseURL+"/info.0.json")
	if err != nil {
		return 0, err
	}
	if comic.Num <= 0 {
		return 0, comics.Errorf(comics.EUNAVAILABLE, "archive reported invalid latest number %d", comic.Num)
	}
	return comic.Num, nil
}

// FetchComic returns comic num. Returns ENOTFOUND if the archive has no
// such comic.
func (c *Client) FetchComic(ctx context.Context, num int) (*comics.Comic, error) {
	if num <= 0 {
		return nil, comics.Errorf(comics.EINVALID, "comic number must be positive, got %d", num)
	}
	return c.get(ctx, fmt.Sprintf("%s/%d/info.0.json", c.baseURL, num))
}

// get fetches url with retries. ENOTFOUND and malformed responses are
// returned without retrying.
func (c *Client) get(ctx context.Context, url string) (*comics.Comic, error) {
	maxAttempts := len(c.retryDelays) + 1 // 1 initial + N retries

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		comic, err := c.getOnce(ctx, url)
		if err == nil {
			return comic, nil
		}
		lastErr = err

		if ctx.Err() != nil || !retryable(err) || attempt >= maxAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.retryDelays[attempt]):
		}
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return nil, lastErr
}

func (c *Client) getOnce(ctx context.Context, url string) (*comics.Comic, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, comics.Wrapf(err, comics.EUNAVAILABLE, "request to %s failed", url)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, comics.Errorf(comics.ENOTFOUND, "%s not found", url)
	case resp.StatusCode != http.StatusOK:
		return nil, comics.Errorf(comics.EUNAVAILABLE, "HTTP %d for %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, comics.Wrapf(err, comics.EUNAVAILABLE, "failed to read %s", url)
	}

	var comic comics.Comic
	if err := json.Unmarshal(body, &comic); err != nil {
		return nil, &permanentError{comics.Wrapf(err, comics.EUNAVAILABLE, "malformed response from %s", url)}
	}
	return &comic, nil
}

// permanentError marks a failure that a retry cannot fix.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func retryable(err error) bool {
	var perm *permanentError
	if errors.As(err, &perm) {
		return false
	}
	return comics.ErrorCode(err) != comics.ENOTFOUND
}
