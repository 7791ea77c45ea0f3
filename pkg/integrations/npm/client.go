package npm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/matzehuels/stacktower/pkg/cache"
	"github.com/matzehuels/stacktower/pkg/integrations"
)

// PackageInfo holds metadata for a JavaScript/TypeScript package from npm,
// resolved at the "latest" dist-tag.
//
// Dependencies unions "dependencies" and "peerDependencies": the set the
// transitive resolver crawls. devDependencies and optionalDependencies are
// never part of a package's runtime dependency edge.
type PackageInfo struct {
	Name         string            // Package name as published (e.g., "@scope/package")
	Version      string            // Latest version tag (e.g., "4.18.2")
	Dependencies map[string]string // Runtime dependency name -> version range
	Repository   string            // Normalized repository URL (empty if not provided)
	HomePage     string            // Homepage URL (may be empty)
	Description  string            // Package description (may be empty)
	License      string            // License identifier (e.g., "MIT", may be empty)
	Author       string            // Author name (may be empty)
}

// Client provides access to the npm package registry API.
// It handles HTTP requests with caching and automatic retries.
//
// All methods are safe for concurrent use by multiple goroutines.
type Client struct {
	*integrations.Client
	baseURL string
}

// DefaultTimeout is the per-request timeout used by NewClient.
const DefaultTimeout = 10 * time.Second

// NewClient creates an npm client backed by c. c may be nil to disable
// caching.
func NewClient(c *cache.Cache, cacheTTLHours float64) *Client {
	return NewClientWithTimeout(c, cacheTTLHours, DefaultTimeout)
}

// NewClientWithTimeout creates an npm client with a caller-chosen
// per-request timeout. The transitive resolver uses this to apply npm's
// longer timeout budget relative to PyPI.
func NewClientWithTimeout(c *cache.Cache, cacheTTLHours float64, timeout time.Duration) *Client {
	return &Client{
		Client:  integrations.NewClient(c, "npm", cacheTTLHours, timeout, nil),
		baseURL: "https://registry.npmjs.org",
	}
}

// FetchPackage retrieves metadata for a JavaScript/TypeScript package from
// npm, resolved to its "latest" dist-tag version.
//
// pkg is normalized to lowercase with whitespace trimmed; scoped packages
// (e.g. "@types/node") are supported.
//
// Returns [integrations.ErrNotFound] if the package doesn't exist, and
// [integrations.ErrNetwork] for HTTP failures.
func (c *Client) FetchPackage(ctx context.Context, pkg string) (*PackageInfo, error) {
	pkg = strings.ToLower(strings.TrimSpace(pkg))

	var info PackageInfo
	err := c.Cached(ctx, pkg, &info, func() error {
		return c.fetch(ctx, pkg, &info)
	})
	if err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) fetch(ctx context.Context, pkg string, info *PackageInfo) error {
	encoded := encodeScoped(pkg)

	var data registryResponse
	if err := c.Get(ctx, c.baseURL+"/"+encoded, &data); err != nil {
		if errors.Is(err, integrations.ErrNotFound) {
			return fmt.Errorf("%w: npm package %s", err, pkg)
		}
		return err
	}

	latest := data.DistTags.Latest
	v, ok := data.Versions.byVersion[latest]
	if !ok {
		// dist-tags.latest missing or stale: fall back to the last
		// published version, matching the original's
		// "versions[-1] if versions else version".
		if fallback, hasAny := data.Versions.last(); hasAny {
			latest = fallback
			v = data.Versions.byVersion[latest]
		} else {
			return fmt.Errorf("version %s not found", latest)
		}
	}

	*info = packageInfoFromVersion(data.Name, latest, v)
	return nil
}

// FetchVersion retrieves metadata for an exact published version of pkg,
// bypassing the "latest" dist-tag. version == "latest" delegates to the
// full package document, resolving dist-tags.latest exactly like
// FetchPackage; this lets callers pass the resolver's own "latest"
// sentinel through uniformly.
//
// Results are cached under a key that includes the version so distinct
// versions of the same package never collide.
func (c *Client) FetchVersion(ctx context.Context, pkg, version string) (*PackageInfo, error) {
	pkg = strings.ToLower(strings.TrimSpace(pkg))
	version = strings.TrimSpace(version)

	if version == "" || version == "latest" {
		return c.FetchPackage(ctx, pkg)
	}

	var info PackageInfo
	err := c.Cached(ctx, pkg+"@"+version, &info, func() error {
		return c.fetchVersion(ctx, pkg, version, &info)
	})
	if err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) fetchVersion(ctx context.Context, pkg, version string, info *PackageInfo) error {
	encoded := encodeScoped(pkg)

	var v versionDetails
	if err := c.Get(ctx, c.baseURL+"/"+encoded+"/"+version, &v); err != nil {
		if errors.Is(err, integrations.ErrNotFound) {
			return fmt.Errorf("%w: npm package %s@%s", err, pkg, version)
		}
		return err
	}

	*info = packageInfoFromVersion(pkg, version, v)
	return nil
}

func encodeScoped(pkg string) string {
	if strings.HasPrefix(pkg, "@") {
		return strings.Replace(pkg, "@", "%40", 1)
	}
	return pkg
}

func packageInfoFromVersion(name, version string, v versionDetails) PackageInfo {
	deps := make(map[string]string, len(v.Dependencies)+len(v.PeerDependencies))
	for name, spec := range v.Dependencies {
		deps[name] = spec
	}
	for name, spec := range v.PeerDependencies {
		if _, exists := deps[name]; !exists {
			deps[name] = spec
		}
	}

	return PackageInfo{
		Name:         name,
		Version:      version,
		Description:  v.Description,
		License:      extractField(v.License, "type"),
		Author:       extractField(v.Author, "name"),
		Repository:   integrations.NormalizeRepoURL(extractField(v.Repository, "url")),
		HomePage:     v.HomePage,
		Dependencies: deps,
	}
}

func extractField(v any, field string) string {
	switch val := v.(type) {
	case string:
		return val
	case map[string]any:
		if s, ok := val[field].(string); ok {
			return s
		}
	}
	return ""
}

type registryResponse struct {
	Name     string      `json:"name"`
	DistTags distTags    `json:"dist-tags"`
	Versions versionsMap `json:"versions"`
}

// versionsMap preserves the order versions appear in the registry response
// so the "latest" fallback below can reach for the last published version,
// the same way the original's "versions[-1] if versions else version" does
// over Python's order-preserving dict.
type versionsMap struct {
	byVersion map[string]versionDetails
	order     []string
}

func (m *versionsMap) UnmarshalJSON(data []byte) error {
	m.byVersion = map[string]versionDetails{}
	m.order = nil

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("versions: expected JSON object")
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)

		var v versionDetails
		if err := dec.Decode(&v); err != nil {
			return err
		}
		m.byVersion[key] = v
		m.order = append(m.order, key)
	}
	return nil
}

// last returns the most recently published version's key, mirroring the
// original's versions[-1] fallback when no dist-tags.latest is present.
func (m versionsMap) last() (string, bool) {
	if len(m.order) == 0 {
		return "", false
	}
	return m.order[len(m.order)-1], true
}

type distTags struct {
	Latest string `json:"latest"`
}

type versionDetails struct {
	Description      string            `json:"description"`
	License          any               `json:"license"`
	Author           any               `json:"author"`
	Repository       any               `json:"repository"`
	HomePage         string            `json:"homepage"`
	Dependencies     map[string]string `json:"dependencies"`
	PeerDependencies map[string]string `json:"peerDependencies"`
}
