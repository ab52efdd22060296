// Package source fetches pages of random trivia questions from a
// jservice-compatible HTTP API.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// MaxPageSize is the largest count the provider serves in one request.
const MaxPageSize = 100

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 30 * time.Second

// DefaultUserAgent is the user agent string for provider requests.
const DefaultUserAgent = "quizbank/1.0 (+https://github.com/quizbank/quizbank)"

// DefaultBaseURL points at the public jservice API.
const DefaultBaseURL = "https://jservice.io"

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 8 << 20

// ErrMalformedPage means the provider answered successfully but the body is
// not a JSON array of objects. Callers treat it like a page that failed
// validation.
var ErrMalformedPage = errors.New("malformed page")

// ErrInvalidCount is returned for counts outside 1..MaxPageSize.
var ErrInvalidCount = errors.New("page count out of range")

// Error is a transport-level failure talking to the provider.
type Error struct {
	URL        string
	StatusCode int
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("source error for %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("source error for %s: %s", e.URL, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Options configures the client.
type Options struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	// RequestsPerSecond paces outgoing requests; zero disables pacing.
	RequestsPerSecond float64
	HTTPClient        *http.Client
}

// DefaultOptions returns defaults for the public API.
func DefaultOptions() *Options {
	return &Options{
		BaseURL:   DefaultBaseURL,
		Timeout:   DefaultTimeout,
		UserAgent: DefaultUserAgent,
	}
}

// Client requests pages from the provider's /api/random endpoint.
type Client struct {
	endpoint  *url.URL
	userAgent string
	http      *http.Client
	limiter   *rate.Limiter
}

// NewClient validates opts and builds a client.
func NewClient(opts *Options) (*Client, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	base := opts.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	u, err := url.Parse(strings.TrimRight(base, "/") + "/api/random")
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, &Error{URL: base, Message: "invalid base URL", Cause: err}
	}
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	c := &Client{endpoint: u, userAgent: ua, http: hc}
	if opts.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return c, nil
}

// FetchPage requests count random questions. Elements are returned
// undecoded; validation is the caller's job.
func (c *Client) FetchPage(ctx context.Context, count int) ([]map[string]any, error) {
	if count < 1 || count > MaxPageSize {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCount, count)
	}

	u := *c.endpoint
	q := u.Query()
	q.Set("count", strconv.Itoa(count))
	u.RawQuery = q.Encode()
	target := u.String()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &Error{URL: target, Message: "rate limiter wait", Cause: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &Error{URL: target, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{URL: target, Message: "HTTP request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, &Error{URL: target, StatusCode: resp.StatusCode, Message: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &Error{URL: target, StatusCode: resp.StatusCode, Message: "failed to read response body", Cause: err}
	}

	var page []map[string]any
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPage, err)
	}
	if page == nil {
		return nil, fmt.Errorf("%w: body is null", ErrMalformedPage)
	}
	return page, nil
}
