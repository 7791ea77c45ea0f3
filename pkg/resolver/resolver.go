// Package resolver crawls a package's transitive dependency graph by
// breadth-first traversal over registry metadata, resolving loose version
// specifiers to concrete versions as it descends.
package resolver

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/matzehuels/stacktower/pkg/cache"
	"github.com/matzehuels/stacktower/pkg/integrations/npm"
	"github.com/matzehuels/stacktower/pkg/integrations/pypi"
)

// DefaultMaxDepth bounds BFS traversal depth.
const DefaultMaxDepth = 10

// DefaultWorkers is the bounded worker-pool width used to fetch each BFS
// level concurrently.
const DefaultWorkers = 10

// DefaultTTLHours is the per-(ecosystem,name,version) metadata cache
// lifetime.
const DefaultTTLHours = 5.0

// cacheVersion gates a full cache flush whenever the on-disk entry shape
// changes. Bump this alongside any change to Metadata's JSON encoding.
const cacheVersion = "2.0"

const (
	EcosystemNPM  = "npm"
	EcosystemPyPI = "pypi"

	// npmTimeout and pypiTimeout reproduce the original service's
	// asymmetric per-request budgets: PyPI's JSON API is fetched against a
	// tighter timeout than npm's.
	npmTimeout  = 10 * time.Second
	pypiTimeout = 3 * time.Second
)

// Metadata is the ecosystem-agnostic package record the resolver attaches
// to each tree node.
type Metadata struct {
	Name         string            `json:"name"`
	Version      string            `json:"version"`
	Dependencies map[string]string `json:"dependencies"`
	Repository   string            `json:"repository_url"`
}

// Node pairs fetched Metadata with the BFS depth it was first reached at.
type Node struct {
	Metadata Metadata `json:"metadata"`
	Depth    int      `json:"depth"`
}

// Tree maps "name@version" to the Node it resolved to, each key present at
// its shallowest reachable depth.
type Tree map[string]Node

// Result is the full output of a Resolve call.
type Result struct {
	RootPackage     string `json:"root_package"`
	Ecosystem       string `json:"ecosystem"`
	TotalPackages   int    `json:"total_packages"`
	MaxDepthReached int    `json:"max_depth_reached"`
	Packages        Tree   `json:"packages"`
}

// fetcher retrieves one package version's Metadata from a registry.
type fetcher interface {
	fetch(ctx context.Context, name, version string) (*Metadata, error)
	namespace() string
}

// Resolver performs parallel BFS dependency resolution for npm and PyPI.
//
// Resolver is safe for concurrent use by multiple goroutines.
type Resolver struct {
	cache    *cache.Cache
	fetchers map[string]fetcher
	workers  int
	ttlHours float64
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithWorkers overrides the bounded worker-pool width (default 10).
func WithWorkers(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithTTLHours overrides the metadata cache lifetime (default 5h).
func WithTTLHours(hours float64) Option {
	return func(r *Resolver) {
		if hours > 0 {
			r.ttlHours = hours
		}
	}
}

// New builds a Resolver backed by c. c may be nil to disable caching
// entirely. Construction checks the cache-format sentinel and flushes c if
// it is stale, matching the Python original's .cache_version gate.
func New(c *cache.Cache, opts ...Option) *Resolver {
	r := &Resolver{
		cache:    c,
		workers:  DefaultWorkers,
		ttlHours: DefaultTTLHours,
		fetchers: map[string]fetcher{
			EcosystemNPM:  npmFetcher{client: npm.NewClientWithTimeout(c, DefaultTTLHours, npmTimeout)},
			EcosystemPyPI: pypiFetcher{client: pypi.NewClientWithTimeout(c, DefaultTTLHours, pypiTimeout)},
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	r.checkCacheVersion()
	return r
}

func (r *Resolver) checkCacheVersion() {
	if r.cache == nil {
		return
	}
	ctx := context.Background()
	key := cache.Key("resolver-cache-version", "sentinel")
	if raw, hit := r.cache.Get(ctx, key); hit && string(raw) == cacheVersion {
		return
	}
	r.cache.ClearAll(ctx)
	r.cache.Store(ctx, key, []byte(cacheVersion), 24*365)
}

type bfsItem struct {
	name    string
	version string
	depth   int
}

// Resolve performs parallel BFS from (name, version) within ecosystemName,
// up to maxDepth levels (DefaultMaxDepth if maxDepth <= 0). A fetch failure
// for any single (name, version) leaves that package out of the Result,
// is not logged, and never aborts the rest of the traversal.
func (r *Resolver) Resolve(ctx context.Context, name, version, ecosystemName string, maxDepth int) (*Result, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	fetch, ok := r.fetchers[ecosystemName]
	if !ok {
		return nil, fmt.Errorf("resolver: unsupported ecosystem %q", ecosystemName)
	}

	visited := map[string]bool{}
	tree := Tree{}
	maxReached := 0

	level := []bfsItem{{name: name, version: version, depth: 0}}
	for len(level) > 0 {
		var toFetch []bfsItem
		for _, item := range level {
			if item.depth > maxDepth {
				continue
			}
			key := item.name + "@" + item.version
			if visited[key] {
				continue
			}
			visited[key] = true
			toFetch = append(toFetch, item)
		}
		if len(toFetch) == 0 {
			break
		}

		fetched := r.fetchLevel(ctx, fetch, toFetch)

		var next []bfsItem
		for _, f := range fetched {
			if f.meta == nil {
				continue
			}
			key := f.item.name + "@" + f.item.version
			tree[key] = Node{Metadata: *f.meta, Depth: f.item.depth}
			if f.item.depth > maxReached {
				maxReached = f.item.depth
			}
			for dep, spec := range f.meta.Dependencies {
				if resolved := ResolveVersion(spec); resolved != "" {
					next = append(next, bfsItem{name: dep, version: resolved, depth: f.item.depth + 1})
				}
			}
		}
		level = next
	}

	return &Result{
		RootPackage:     name + "@" + version,
		Ecosystem:       ecosystemName,
		TotalPackages:   len(tree),
		MaxDepthReached: maxReached,
		Packages:        tree,
	}, nil
}

type fetchResult struct {
	item bfsItem
	meta *Metadata
}

// fetchLevel runs one BFS level's fetches through a bounded worker pool.
// Per-item failures are swallowed (meta == nil in the result): a registry
// miss for one package must never fail the rest of the level.
func (r *Resolver) fetchLevel(ctx context.Context, fetch fetcher, items []bfsItem) []fetchResult {
	results := make([]fetchResult, len(items))
	jobs := make(chan int, len(items))
	for i := range items {
		jobs <- i
	}
	close(jobs)

	workers := r.workers
	if workers > len(items) {
		workers = len(items)
	}
	if workers < 1 {
		workers = 1
	}

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				item := items[i]
				meta, err := r.fetchCached(ctx, fetch, item.name, item.version)
				if err != nil {
					meta = nil
				}
				results[i] = fetchResult{item: item, meta: meta}
			}
		}()
	}
	wg.Wait()
	return results
}

// fetchCached wraps a fetcher with the (ecosystem, name, version) cache
// Metadata fetches are stored behind, independent of each registry
// client's own HTTP-response cache (these two caches serve different
// consumers and may legitimately disagree in the presence of a version
// floor like "latest").
func (r *Resolver) fetchCached(ctx context.Context, fetch fetcher, name, version string) (*Metadata, error) {
	cacheKey := cache.Key(fetch.namespace()+":"+name+"@"+version, "resolver")

	if r.cache != nil {
		if raw, hit := r.cache.Get(ctx, cacheKey); hit {
			if m, ok := decodeMetadata(raw); ok {
				return m, nil
			}
		}
	}

	meta, err := fetch.fetch(ctx, name, version)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		if raw, err := encodeMetadata(meta); err == nil {
			r.cache.Store(ctx, cacheKey, raw, r.ttlHours)
		}
	}
	return meta, nil
}

// ResolveVersion maps a raw dependency version specifier to a concrete
// version string the resolver can query, or the sentinel "latest" for
// anything it can't narrow without a SAT solver. Complex range specs
// (comparisons, comma-separated unions) resolve to "latest" rather than
// being solved, matching the upstream service's stated scope.
func ResolveVersion(spec string) string {
	spec = strings.TrimSpace(spec)

	switch spec {
	case "", "*", "latest", "x", "X":
		return "latest"
	}

	if strings.Contains(spec, ",") {
		return "latest"
	}
	for _, op := range []string{">=", "<=", "~=", "!=", ">", "<"} {
		if strings.Contains(spec, op) {
			return "latest"
		}
	}

	if len(spec) > 0 && (spec[0] == '^' || spec[0] == '~') {
		return spec[1:]
	}
	if len(spec) > 0 && spec[0] == '=' {
		return strings.TrimLeft(spec, "=")
	}

	return spec
}

