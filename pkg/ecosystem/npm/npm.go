// Package npm implements the ecosystem.Analyzer capability set for the npm
// registry: package.json manifest parsing, lifecycle-script pattern
// matching, and registry URL construction.
package npm

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/matzehuels/stacktower/pkg/ecosystem"
	"github.com/matzehuels/stacktower/pkg/malicious"
)

const name = "npm"

var manifestFiles = []string{"package.json", "package-lock.json", "yarn.lock", "npm-shrinkwrap.json"}

// patterns is the npm install-script regex bank, partitioned by severity.
// Targets shell download-and-execute, privilege elevation, base64 pipes
// into interpreters, and high-risk TLDs.
var patterns = map[string][]string{
	ecosystem.SeverityCritical: {
		`curl\s+.*\|\s*(?:bash|sh)`,
		`wget\s+.*\|\s*(?:bash|sh)`,
		`eval\s*\(\s*(?:atob|Buffer\.from)`,
		`exec\s*\(\s*(?:atob|Buffer\.from)`,
	},
	ecosystem.SeverityHigh: {
		`rm\s+-rf\s+(?:/|~|\$HOME)`,
		`chmod\s+\+[sx]`,
		`sudo\s+`,
		`base64\s+-d`,
		`>/etc/`,
	},
	ecosystem.SeverityMedium: {
		`curl\s+.*\.(?:tk|ml|ga|cf|cc)\b`,
		`wget\s+.*\.(?:tk|ml|ga|cf|cc)\b`,
		`discord\.com/api/webhooks`,
		`\beval\s*\(`,
		`child_process\.exec`,
	},
}

var compiled = compilePatterns(patterns)

func compilePatterns(bank map[string][]string) map[string][]*regexp.Regexp {
	out := make(map[string][]*regexp.Regexp, len(bank))
	for severity, exprs := range bank {
		for _, expr := range exprs {
			out[severity] = append(out[severity], regexp.MustCompile(expr))
		}
	}
	return out
}

// severityOrder ranks severities for "max severity of any match" comparisons.
var severityOrder = map[string]int{
	ecosystem.SeverityLow:      0,
	ecosystem.SeverityMedium:   1,
	ecosystem.SeverityHigh:     2,
	ecosystem.SeverityCritical: 3,
}

// Analyzer implements ecosystem.Analyzer for npm.
type Analyzer struct{}

func init() {
	ecosystem.Register(&Analyzer{})
}

// New returns a standalone npm Analyzer (for tests or isolated registries).
func New() *Analyzer { return &Analyzer{} }

func (a *Analyzer) EcosystemName() string { return name }

func (a *Analyzer) DetectManifestFiles(dir string) ([]string, error) {
	var found []string
	for _, f := range manifestFiles {
		if _, err := os.Stat(filepath.Join(dir, f)); err == nil {
			found = append(found, f)
		}
	}
	return found, nil
}

type packageJSON struct {
	Name             string            `json:"name"`
	Version          string            `json:"version"`
	Dependencies     map[string]string `json:"dependencies"`
	DevDependencies  map[string]string `json:"devDependencies"`
	PeerDependencies map[string]string `json:"peerDependencies"`
	OptionalDeps     map[string]string `json:"optionalDependencies"`
	Scripts          map[string]string `json:"scripts"`
}

// ExtractDependencies parses package.json into direct dependencies, tagged
// by declaration type (runtime, dev, peer, optional). Parse failures never
// propagate: a malformed manifest yields an empty slice.
func (a *Analyzer) ExtractDependencies(manifestPath string) ([]ecosystem.Dependency, error) {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, nil
	}

	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, nil
	}

	var deps []ecosystem.Dependency
	add := func(set map[string]string, depType string) {
		for pkgName, spec := range set {
			deps = append(deps, ecosystem.Dependency{
				Name:           pkgName,
				VersionSpec:    spec,
				DependencyType: depType,
				SourceFile:     manifestPath,
			})
		}
	}
	add(pkg.Dependencies, "runtime")
	add(pkg.PeerDependencies, "peer")
	add(pkg.DevDependencies, "dev")
	add(pkg.OptionalDeps, "optional")
	return deps, nil
}

// lifecycleHooks are the npm install-time script names inspected for
// malicious patterns.
var lifecycleHooks = []string{"preinstall", "install", "postinstall"}

// AnalyzeInstallScripts inspects package.json lifecycle scripts for
// patterns in the npm regex bank.
func (a *Analyzer) AnalyzeInstallScripts(ctx context.Context, dir string) ([]ecosystem.Finding, error) {
	data, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		return nil, nil
	}
	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, nil
	}

	var findings []ecosystem.Finding
	for _, hook := range lifecycleHooks {
		script, ok := pkg.Scripts[hook]
		if !ok || script == "" {
			continue
		}
		if f, matched := matchScript(pkg.Name, pkg.Version, hook, script); matched {
			findings = append(findings, f)
		}
	}
	return findings, nil
}

func matchScript(pkgName, version, hook, script string) (ecosystem.Finding, bool) {
	bestSeverity := ""
	var evidence []string

	for severity, exprs := range compiled {
		for _, re := range exprs {
			if re.MatchString(script) {
				evidence = append(evidence, fmt.Sprintf("%s script matches %s pattern: %s", hook, severity, re.String()))
				if bestSeverity == "" || severityOrder[severity] > severityOrder[bestSeverity] {
					bestSeverity = severity
				}
			}
		}
	}
	if bestSeverity == "" {
		return ecosystem.Finding{}, false
	}

	return ecosystem.Finding{
		Package:     pkgName,
		Version:     version,
		FindingType: ecosystem.FindingMaliciousScript,
		Severity:    bestSeverity,
		Confidence:  0.8,
		Evidence:    evidence,
		Recommendations: []string{
			fmt.Sprintf("Review the %q lifecycle script before installing", hook),
		},
		Source:         "ecosystem.npm",
		AnalysisSource: "pattern_only",
	}, true
}

// GetRegistryURL returns the npm registry metadata URL for a package name,
// percent-encoding the leading '@' of scoped names.
func (a *Analyzer) GetRegistryURL(pkgName string) string {
	encoded := pkgName
	if strings.HasPrefix(pkgName, "@") {
		encoded = "%40" + pkgName[1:]
	}
	return "https://registry.npmjs.org/" + encoded
}

func (a *Analyzer) GetMaliciousPatterns() map[string][]string { return patterns }

func (a *Analyzer) IsMaliciousPackage(pkgName, version string) *ecosystem.MaliciousEntry {
	return malicious.Lookup(name, pkgName, version)
}

var _ ecosystem.Analyzer = (*Analyzer)(nil)
