// Package integrations provides HTTP clients for the npm and PyPI registry
// APIs, the only two ecosystems this audit system supports.
//
// # Overview
//
//   - [pypi]: Python Package Index
//   - [npm]: Node Package Manager
//
// # Client Pattern
//
// Both registry clients embed the shared [Client] and follow a consistent
// pattern:
//
//	client := pypi.NewClient(c, 24) // cache TTL in hours
//	pkg, err := client.FetchPackage(ctx, "fastapi")
//
// Clients handle:
//   - HTTP requests with retry on transient failure
//   - Cache-first response fetching via [Client.Cached]
//   - API-specific parsing and name normalization
//
// # Shared Infrastructure
//
// The [Client] type provides shared HTTP functionality used by both registry
// clients, including response caching via [cache.Cache].
//
// [pypi]: github.com/matzehuels/stacktower/pkg/integrations/pypi
// [npm]: github.com/matzehuels/stacktower/pkg/integrations/npm
// [cache.Cache]: github.com/matzehuels/stacktower/pkg/cache.Cache
package integrations
