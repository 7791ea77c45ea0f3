// Package ecosystem abstracts per-package-manager knowledge (npm, PyPI)
// behind a uniform capability set, so the resolver and orchestrator stay
// ecosystem-free. Concrete analyzers live in the npm and pypi subpackages
// and register themselves at init time.
package ecosystem

import (
	"context"
)

// Dependency is a single direct dependency extracted from a manifest.
type Dependency struct {
	Name           string // Package name as declared in the manifest
	VersionSpec    string // Raw version range/spec as declared (e.g. "^1.3.0")
	DependencyType string // "runtime", "dev", "peer", "optional"
	SourceFile     string // Manifest file the dependency was declared in
}

// Finding is a single audit observation surfaced by any component.
type Finding struct {
	Package         string   `json:"package"`
	Version         string   `json:"version"`
	FindingType     string   `json:"finding_type"`
	Severity        string   `json:"severity"` // critical, high, medium, low
	Confidence      float64  `json:"confidence"`
	Evidence        []string `json:"evidence"`
	Recommendations []string `json:"recommendations"`
	Source          string   `json:"source"`
	AnalysisSource  string   `json:"analysis_source,omitempty"` // e.g. "pattern_only"
}

// Severity levels, in descending order of urgency.
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
)

// Finding types emitted across the pipeline.
const (
	FindingMaliciousPackage   = "malicious_package"
	FindingMaliciousScript    = "malicious_script"
	FindingLowReputation      = "low_reputation"
	FindingInstallationHooks  = "installation_hooks"
	FindingVersionConflict    = "version_conflict"
	FindingCircularDependency = "circular_dependency"
)

// MaliciousEntry is a single row in the known-malicious package table.
type MaliciousEntry struct {
	Name       string
	Version    string // exact version, "*" for any, or ">=X" for a floor
	Reason     string
	Severity   string
	References []string
}

// Analyzer is the capability set every supported ecosystem implements.
type Analyzer interface {
	// EcosystemName returns the canonical ecosystem identifier, e.g. "npm".
	EcosystemName() string

	// DetectManifestFiles returns the manifest filenames recognized by this
	// ecosystem that are present directly under dir.
	DetectManifestFiles(dir string) ([]string, error)

	// ExtractDependencies parses a single manifest file into its direct
	// dependencies. Parse failures never propagate: an empty slice and a nil
	// error are returned, and nothing is logged.
	ExtractDependencies(manifestPath string) ([]Dependency, error)

	// AnalyzeInstallScripts inspects install-time hooks under dir and
	// returns any findings. ctx bounds the (possibly LLM-backed) analysis.
	AnalyzeInstallScripts(ctx context.Context, dir string) ([]Finding, error)

	// GetRegistryURL returns the canonical metadata URL for name.
	GetRegistryURL(name string) string

	// GetMaliciousPatterns returns the install-script regex bank, keyed by
	// severity. An analyzer with no patterns returns an empty map.
	GetMaliciousPatterns() map[string][]string

	// IsMaliciousPackage looks up (name, version) in the shared
	// known-malicious table for this ecosystem.
	IsMaliciousPackage(name, version string) *MaliciousEntry
}
