// Package reputation computes an ecosystem-agnostic [0,1] trust score for a
// package from registry metadata: package age, download volume, author
// verification, and maintenance recency, combined into a weighted
// composite plus qualitative flags.
package reputation

import (
	"context"
	"errors"
	"time"

	"github.com/matzehuels/stacktower/pkg/cache"
	"github.com/matzehuels/stacktower/pkg/ecosystem"
	stackerrors "github.com/matzehuels/stacktower/pkg/errors"
	"github.com/matzehuels/stacktower/pkg/httputil"
	"github.com/matzehuels/stacktower/pkg/integrations"
)

// DefaultRateLimit matches the Python original's default of 10 requests
// per second.
const DefaultRateLimit = 10.0

// DefaultTTLHours is the reputation-result cache lifetime (24h per spec).
const DefaultTTLHours = 24.0

// Factors holds the four independently-computed sub-scores.
type Factors struct {
	Age         float64 `json:"age_score"`
	Downloads   float64 `json:"downloads_score"`
	Author      float64 `json:"author_score"`
	Maintenance float64 `json:"maintenance_score"`
}

// Result is the full reputation output for one package.
type Result struct {
	Score    float64        `json:"score"`
	Factors  Factors        `json:"factors"`
	Flags    []string       `json:"flags"`
	Metadata map[string]any `json:"metadata"`
}

// Scorer computes Results, fetching registry metadata through a rate
// limiter shared across all calls on one instance and caching results
// cache-first.
type Scorer struct {
	client   *integrations.Client
	limiter  *httputil.RateLimiter
	registry *ecosystem.Registry
	cache    *cache.Cache
}

// New builds a Scorer. registry supplies GetRegistryURL per ecosystem; c
// backs the reputation-result cache (the metadata fetches themselves are
// not cached).
// requestsPerSecond <= 0 falls back to DefaultRateLimit.
func New(c *cache.Cache, registry *ecosystem.Registry, requestsPerSecond float64) *Scorer {
	if requestsPerSecond <= 0 {
		requestsPerSecond = DefaultRateLimit
	}
	return &Scorer{
		client:   integrations.NewClient(c, "reputation", 0, 10*time.Second, nil),
		limiter:  httputil.NewRateLimiter(requestsPerSecond),
		registry: registry,
		cache:    c,
	}
}

// Calculate computes the reputation of name@version within ecosystemName.
// version only affects the result cache key: the registry metadata fetch
// always targets the package's current listing, matching the upstream
// registries' lack of per-version reputation data.
func (s *Scorer) Calculate(ctx context.Context, name, version, ecosystemName string) (*Result, error) {
	analyzer, ok := s.registry.Get(ecosystemName)
	if !ok {
		return nil, stackerrors.New(stackerrors.ErrCodeUnsupported, "unsupported ecosystem: %s", ecosystemName)
	}

	key := cache.Key("reputation:"+ecosystemName+":"+name+":"+version, "")
	if raw, hit := s.cache.Get(ctx, key); hit {
		if result, ok := decodeResult(raw); ok {
			return result, nil
		}
	}

	var metadata map[string]any
	fetch := func() error {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
		return s.client.Get(ctx, analyzer.GetRegistryURL(name), &metadata)
	}
	if err := httputil.Retry(ctx, 3, time.Second, func() error {
		err := fetch()
		if err != nil {
			return httputil.Retryable(err)
		}
		return nil
	}); err != nil {
		if errors.Is(err, integrations.ErrNotFound) {
			return nil, stackerrors.Wrap(stackerrors.ErrCodeRegistryNotFound, err, "fetching reputation metadata for %s", name)
		}
		return nil, stackerrors.Wrap(stackerrors.ErrCodeRegistryUnavailable, err, "fetching reputation metadata for %s", name)
	}

	result := computeScores(metadata)
	if raw, err := encodeResult(result); err == nil {
		s.cache.Store(ctx, key, raw, DefaultTTLHours)
	}
	return result, nil
}

func computeScores(metadata map[string]any) *Result {
	factors := Factors{
		Age:         ageScore(metadata),
		Downloads:   downloadsScore(metadata),
		Author:      authorScore(metadata),
		Maintenance: maintenanceScore(metadata),
	}

	composite := 0.3*factors.Age + 0.3*factors.Downloads + 0.2*factors.Author + 0.2*factors.Maintenance

	var flags []string
	if factors.Age < 0.5 {
		flags = append(flags, "new_package")
	}
	if factors.Downloads < 0.5 {
		flags = append(flags, "low_downloads")
	}
	if factors.Author < 0.5 {
		flags = append(flags, "unknown_author")
	}
	if factors.Maintenance < 0.5 {
		flags = append(flags, "unmaintained")
	}

	return &Result{
		Score:    composite,
		Factors:  factors,
		Flags:    flags,
		Metadata: metadata,
	}
}

// parseTime accepts both zoned timestamps (npm's time.created/time.modified,
// e.g. "2021-11-29T18:46:45.000Z") and naive ones (PyPI's upload_time, e.g.
// "2021-11-29T18:46:45", with no zone), matching the original's
// datetime.fromisoformat(created_date.replace('Z', '+00:00')) which accepts
// both forms.
func parseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	layouts := []string{
		time.RFC3339,
		time.RFC3339Nano,
		"2006-01-02T15:04:05",
		"2006-01-02T15:04:05.999999",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asFloat(v any) (float64, bool) {
	f, ok := v.(float64)
	return f, ok
}

func daysSince(t time.Time) float64 {
	return time.Since(t).Hours() / 24
}
