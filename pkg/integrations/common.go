package integrations

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/matzehuels/stacktower/pkg/cache"
)

// httpTimeout is the timeout of clients built by NewHTTPClient. Registry
// clients built with NewClient take their own timeout instead (the
// resolver gives PyPI a shorter one than npm).
const httpTimeout = 10 * time.Second

var (
	// ErrNotFound is returned when a package or resource doesn't exist in the registry.
	// This corresponds to HTTP 404 responses.
	// The npm and PyPI clients wrap it with the package name, so callers
	// should check with errors.Is(err, integrations.ErrNotFound).
	ErrNotFound = errors.New("resource not found")

	// ErrNetwork is returned for HTTP failures (timeouts, connection errors, 5xx responses).
	// This error may be wrapped with [httputil.RetryableError] for 5xx status codes.
	// Callers should check with errors.Is(err, integrations.ErrNetwork) for any network issue,
	// or errors.As with a *httputil.RetryableError target to detect retryable failures specifically.
	ErrNetwork = errors.New("network error")
)

// NewHTTPClient creates an HTTP client with a standard timeout for registry requests.
// The returned client has a 10-second timeout applied to all requests.
//
// The client is safe for concurrent use by multiple goroutines.
// Returns a new client on every call; clients are not pooled.
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: httpTimeout}
}

// NewRegistryCache builds the shared on-disk cache used by every registry
// client, rooted at dir (a process-wide cache directory; each client
// namespaces its own keys via [Client.Cached]).
func NewRegistryCache(dir string) *cache.Cache {
	return cache.New(cache.Config{Dir: dir})
}

// NormalizePkgName converts a package name to its canonical form.
// Applies lowercase and replaces underscores with hyphens, following PEP 503
// normalization rules used by PyPI and other registries.
//
// Normalization steps:
//  1. Trim leading and trailing whitespace
//  2. Convert to lowercase
//  3. Replace all underscores with hyphens
//
// Examples:
//
//	NormalizePkgName("FastAPI")      → "fastapi"
//	NormalizePkgName("my_package")   → "my-package"
//	NormalizePkgName("  Spaces  ")   → "spaces"
//
// An empty string input returns an empty string.
// This function is safe for concurrent use.
func NormalizePkgName(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "-")
}

var repoURLReplacer = strings.NewReplacer(
	"git@github.com:", "https://github.com/",
	"git://github.com/", "https://github.com/",
)

// NormalizeRepoURL converts various repository URL formats to canonical HTTPS form.
// Handles git@, git://, and git+ prefixes, and removes .git suffixes.
//
// Transformations applied:
//   - git@github.com:user/repo → https://github.com/user/repo
//   - git://github.com/user/repo → https://github.com/user/repo
//   - git+https://example.com/repo.git → https://example.com/repo
//   - https://example.com/repo.git → https://example.com/repo
//
// Returns an empty string if the input is empty or contains only whitespace.
// Non-git URLs are returned unchanged after whitespace trimming and .git suffix removal.
// This function is safe for concurrent use.
func NormalizeRepoURL(raw string) string {
	if raw == "" {
		return ""
	}
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "git+")
	s = repoURLReplacer.Replace(s)
	return strings.TrimSuffix(s, ".git")
}

// URLEncode percent-encodes a string for use in URLs.
// This is a convenience wrapper around [url.QueryEscape].
//
// Spaces are encoded as "+", and special characters as "%XX" hex sequences.
// An empty string returns an empty string.
// This function is safe for concurrent use.
func URLEncode(s string) string { return url.QueryEscape(s) }
