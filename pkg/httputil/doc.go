// Package httputil provides the retry-with-backoff helper used by the
// registry clients and the minimum-interval rate limiter used by the
// reputation scorer. It holds no HTTP client of its own.
//
// # Retry
//
// [Retry] wraps calls with automatic retry for transient failures, honoring
// only errors wrapped with [Retryable]:
//
//	err := httputil.Retry(ctx, 3, time.Second, func() error {
//	    return doRequest()
//	})
//
// # Rate limiting
//
// [RateLimiter] enforces a fixed minimum interval between calls across all
// goroutines sharing one instance:
//
//	rl := httputil.NewRateLimiter(10) // 10 req/s
//	rl.Wait(ctx)
//	resp, err := client.Get(ctx, url)
package httputil
