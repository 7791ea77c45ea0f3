package pypi

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/matzehuels/stacktower/pkg/cache"
	"github.com/matzehuels/stacktower/pkg/integrations"
)

var (
	depRE    = regexp.MustCompile(`^\s*([A-Za-z0-9][A-Za-z0-9._-]*)\s*(\(([^)]*)\)|[^;]*)?`)
	markerRE = regexp.MustCompile(`;\s*(.+)`)
	extraRE  = regexp.MustCompile(`extra\s*==`)
)

// PackageInfo holds metadata for a Python package from PyPI.
//
// The requested name and dependency names are normalized following PEP 503
// (lowercase, underscores→hyphens); Name keeps the registry's own spelling.
// Dependencies carries only runtime requires_dist entries: lines marked with
// an "extra ==" environment marker (optional-dependency extras) are excluded.
type PackageInfo struct {
	Name         string            // Package name as published (e.g., "Flask")
	Version      string            // Version string (e.g., "0.104.1")
	Dependencies map[string]string // Direct runtime dependency name -> raw version spec (may be "")
	ProjectURLs  map[string]string // Project URLs from metadata (e.g., "Homepage", "Repository")
	HomePage     string            // Homepage URL (may be empty)
	Summary      string            // Short package description (may be empty)
	License      string            // License name or expression (may be empty)
	Author       string            // Author name (may be empty)
}

// Client provides access to the PyPI package registry API.
// It handles HTTP requests with caching and automatic retries.
//
// All methods are safe for concurrent use by multiple goroutines.
type Client struct {
	*integrations.Client
	baseURL string
}

// DefaultTimeout is the per-request timeout used by NewClient.
const DefaultTimeout = 10 * time.Second

// NewClient creates a PyPI client backed by c. c may be nil to disable
// caching.
func NewClient(c *cache.Cache, cacheTTLHours float64) *Client {
	return NewClientWithTimeout(c, cacheTTLHours, DefaultTimeout)
}

// NewClientWithTimeout creates a PyPI client with a caller-chosen
// per-request timeout. The transitive resolver applies a shorter timeout
// here than it does for npm.
func NewClientWithTimeout(c *cache.Cache, cacheTTLHours float64, timeout time.Duration) *Client {
	return &Client{
		Client:  integrations.NewClient(c, "pypi", cacheTTLHours, timeout, nil),
		baseURL: "https://pypi.org/pypi",
	}
}

// FetchPackage retrieves metadata for a Python package from PyPI.
//
// pkg is normalized automatically (case-insensitive, underscores→hyphens).
//
// Returns [integrations.ErrNotFound] if the package doesn't exist, and
// [integrations.ErrNetwork] for HTTP failures.
func (c *Client) FetchPackage(ctx context.Context, pkg string) (*PackageInfo, error) {
	pkg = integrations.NormalizePkgName(pkg)

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
	return c.fetchURL(ctx, fmt.Sprintf("%s/%s/json", c.baseURL, pkg), pkg, "", info)
}

// FetchVersion retrieves metadata for an exact published release of pkg.
// version == "latest" (or empty) delegates to FetchPackage, which PyPI
// resolves by omitting the version segment from the URL entirely.
func (c *Client) FetchVersion(ctx context.Context, pkg, version string) (*PackageInfo, error) {
	pkg = integrations.NormalizePkgName(pkg)
	version = strings.TrimSpace(version)

	if version == "" || version == "latest" {
		return c.FetchPackage(ctx, pkg)
	}

	var info PackageInfo
	err := c.Cached(ctx, pkg+"@"+version, &info, func() error {
		return c.fetchURL(ctx, fmt.Sprintf("%s/%s/%s/json", c.baseURL, pkg, version), pkg, version, &info)
	})
	if err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) fetchURL(ctx context.Context, url, pkg, version string, info *PackageInfo) error {
	var data apiResponse
	if err := c.Get(ctx, url, &data); err != nil {
		if errors.Is(err, integrations.ErrNotFound) {
			if version != "" {
				return fmt.Errorf("%w: pypi package %s@%s", err, pkg, version)
			}
			return fmt.Errorf("%w: pypi package %s", err, pkg)
		}
		return err
	}

	urls := make(map[string]string, len(data.Info.ProjectURLs))
	for k, v := range data.Info.ProjectURLs {
		if s, ok := v.(string); ok {
			urls[k] = s
		}
	}

	*info = PackageInfo{
		Name:         data.Info.Name,
		Version:      data.Info.Version,
		Summary:      data.Info.Summary,
		License:      extractLicenseType(data.Info.License, data.Info.Classifiers),
		Dependencies: extractDeps(data.Info.RequiresDist),
		ProjectURLs:  urls,
		HomePage:     data.Info.HomePage,
		Author:       data.Info.Author,
	}
	return nil
}

// extractDeps parses requires_dist entries, discarding anything gated behind
// an "extra ==" marker (an optional extras group, not a runtime dependency).
func extractDeps(requires []string) map[string]string {
	deps := make(map[string]string)
	for _, req := range requires {
		if m := markerRE.FindStringSubmatch(req); len(m) > 1 && extraRE.MatchString(m[1]) {
			continue
		}
		m := depRE.FindStringSubmatch(req)
		if len(m) < 2 || m[1] == "" {
			continue
		}
		name := integrations.NormalizePkgName(m[1])
		spec := strings.TrimSpace(m[3])
		if spec == "" {
			spec = strings.TrimSpace(strings.TrimPrefix(m[2], m[1]))
		}
		if _, exists := deps[name]; !exists {
			deps[name] = spec
		}
	}
	return deps
}

type apiResponse struct {
	Info apiInfo `json:"info"`
}

type apiInfo struct {
	Name         string         `json:"name"`
	Version      string         `json:"version"`
	Summary      string         `json:"summary"`
	License      string         `json:"license"`
	Classifiers  []string       `json:"classifiers"`
	RequiresDist []string       `json:"requires_dist"`
	ProjectURLs  map[string]any `json:"project_urls"`
	HomePage     string         `json:"home_page"`
	Author       string         `json:"author"`
}

// extractLicenseType extracts a short license identifier from PyPI data.
// It prefers the classifier (e.g., "License :: OSI Approved :: MIT License" -> "MIT License")
// and falls back to the license field if it's short enough.
func extractLicenseType(license string, classifiers []string) string {
	for _, c := range classifiers {
		if strings.HasPrefix(c, "License :: ") {
			parts := strings.Split(c, " :: ")
			if len(parts) >= 3 {
				return parts[len(parts)-1]
			}
		}
	}

	if license != "" && len(license) < 100 && !strings.Contains(license, "\n") {
		return strings.TrimSpace(license)
	}

	if license != "" {
		firstLine := strings.Split(license, "\n")[0]
		firstLine = strings.TrimSpace(firstLine)
		if len(firstLine) < 50 {
			return firstLine
		}
	}

	return ""
}
