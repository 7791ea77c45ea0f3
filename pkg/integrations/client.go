package integrations

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/matzehuels/stacktower/pkg/cache"
	"github.com/matzehuels/stacktower/pkg/httputil"
)

// Client provides shared HTTP functionality for the npm and PyPI registry
// clients: a cache-first fetch helper, retry on transient failure, and
// typed non-2xx errors.
//
// Client is safe for concurrent use by multiple goroutines.
type Client struct {
	http      *http.Client
	cache     *cache.Cache
	namespace string // cache key prefix, e.g. "pypi", "npm"
	ttl       float64 // hours
	headers   map[string]string
}

// NewClient creates a Client with the given cache and default headers.
// c may be nil, in which case every Cached call is a pass-through fetch.
func NewClient(c *cache.Cache, namespace string, ttlHours float64, timeout time.Duration, headers map[string]string) *Client {
	return &Client{
		http:      &http.Client{Timeout: timeout},
		cache:     c,
		namespace: namespace,
		ttl:       ttlHours,
		headers:   headers,
	}
}

// Cached retrieves a value from the cache or executes fetch and caches the
// result. Satisfies the cache-first discipline required before any
// outbound registry call (spec Testable Property 4).
func (c *Client) Cached(ctx context.Context, key string, v any, fetch func() error) error {
	cacheKey := cache.Key(c.namespace+":"+key, "registry")

	if c.cache != nil {
		if data, hit := c.cache.Get(ctx, cacheKey); hit {
			if err := json.Unmarshal(data, v); err == nil {
				return nil
			}
		}
	}

	if err := httputil.Retry(ctx, 3, time.Second, fetch); err != nil {
		return err
	}

	if c.cache != nil {
		if data, err := json.Marshal(v); err == nil {
			c.cache.Store(ctx, cacheKey, data, c.ttl)
		}
	}
	return nil
}

// Get performs an HTTP GET and JSON-decodes the response into v.
func (c *Client) Get(ctx context.Context, url string, v any) error {
	return c.GetWithHeaders(ctx, url, nil, v)
}

// GetWithHeaders performs an HTTP GET with extra headers merged over the
// client defaults.
func (c *Client) GetWithHeaders(ctx context.Context, url string, headers map[string]string, v any) error {
	body, err := c.doRequest(ctx, url, headers)
	if err != nil {
		return err
	}
	defer body.Close()
	return json.NewDecoder(body).Decode(v)
}

// GetText performs an HTTP GET and returns the body as a string.
func (c *Client) GetText(ctx context.Context, url string) (string, error) {
	body, err := c.doRequest(ctx, url, nil)
	if err != nil {
		return "", err
	}
	defer body.Close()
	data, err := io.ReadAll(body)
	return string(data), err
}

func (c *Client) doRequest(ctx context.Context, url string, headers map[string]string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, httputil.Retryable(fmt.Errorf("%w: %v", ErrNetwork, err))
	}

	if err := checkStatus(resp.StatusCode); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp.Body, nil
}

func checkStatus(code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusTooManyRequests:
		return &RateLimitedError{}
	case code >= 500:
		return httputil.Retryable(fmt.Errorf("%w: status %d", ErrNetwork, code))
	default:
		return fmt.Errorf("%w: status %d", ErrNetwork, code)
	}
}

// RateLimitedError indicates the registry's own rate limit was exceeded
// (distinct from our outbound RateLimiter, which prevents triggering this).
type RateLimitedError struct {
	RetryAfter int
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited: retry after %d seconds", e.RetryAfter)
	}
	return "rate limited: too many requests"
}
