// Package pypi implements the ecosystem.Analyzer capability set for PyPI:
// requirements.txt/setup.py/pyproject.toml/Pipfile manifest parsing and the
// two-layer (pattern + opt-in LLM) install-script analysis described for
// setup.py.
package pypi

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/stacktower/pkg/cache"
	"github.com/matzehuels/stacktower/pkg/ecosystem"
	"github.com/matzehuels/stacktower/pkg/llm"
	"github.com/matzehuels/stacktower/pkg/malicious"
)

const ecosystemName = "pypi"

var manifestFiles = []string{"setup.py", "requirements.txt", "pyproject.toml", "Pipfile", "Pipfile.lock"}

// patterns is the PyPI install-script regex bank, partitioned by severity.
// Grounded directly on the Python analyzer's malicious-pattern table:
// dynamic execution and process spawning at critical, sensitive-path
// access and deserialization at high, network/environment primitives at
// medium.
var patterns = map[string][]string{
	ecosystem.SeverityCritical: {
		`os\.system\s*\(`,
		`subprocess\.(?:call|run|Popen)\s*\(`,
		`eval\s*\(`,
		`exec\s*\(`,
		`__import__\s*\(\s*["'](?:os|subprocess)`,
		`urllib\.request\.urlopen`,
		`requests\.get.*\|\s*(?:sh|bash)`,
	},
	ecosystem.SeverityHigh: {
		`open\s*\(\s*["'](?:/etc/|/root/|~/.ssh)`,
		`compile\s*\(`,
		`globals\s*\(\s*\)`,
		`locals\s*\(\s*\)`,
		`base64\.b64decode`,
		`pickle\.loads`,
	},
	ecosystem.SeverityMedium: {
		`socket\.socket`,
		`http\.client`,
		`ftplib`,
		`telnetlib`,
		`smtplib`,
		`os\.environ`,
		`sys\.path\.insert`,
	},
}

var compiled = compilePatterns(patterns)

func compilePatterns(bank map[string][]string) map[string][]*regexp.Regexp {
	out := make(map[string][]*regexp.Regexp, len(bank))
	for severity, exprs := range bank {
		for _, expr := range exprs {
			out[severity] = append(out[severity], regexp.MustCompile("(?i)"+expr))
		}
	}
	return out
}

var severityOrder = map[string]int{
	ecosystem.SeverityLow:      0,
	ecosystem.SeverityMedium:   1,
	ecosystem.SeverityHigh:     2,
	ecosystem.SeverityCritical: 3,
}

// Analyzer implements ecosystem.Analyzer for PyPI. The zero value is
// pattern-only (no cache, no LLM escalation); Configure wires in a cache
// and LLM client so setup.py analysis can use the opt-in LLM layer with
// cache-first verdict lookup.
type Analyzer struct {
	cache *cache.Cache
	llm   llm.Client
}

func init() {
	ecosystem.Register(&Analyzer{})
}

// New returns a standalone, pattern-only PyPI Analyzer (for tests or
// isolated registries).
func New() *Analyzer { return &Analyzer{} }

// Configure returns an Analyzer with LLM escalation wired in: verdicts are
// cached in c under the "llm_python" prefix for llmTTLHours (168 hours).
func Configure(c *cache.Cache, client llm.Client) *Analyzer {
	return &Analyzer{cache: c, llm: client}
}

func (a *Analyzer) EcosystemName() string { return ecosystemName }

func (a *Analyzer) DetectManifestFiles(dir string) ([]string, error) {
	var found []string
	for _, f := range manifestFiles {
		if info, err := os.Stat(filepath.Join(dir, f)); err == nil && !info.IsDir() {
			found = append(found, f)
		}
	}
	return found, nil
}

// ExtractDependencies dispatches on the manifest's basename to the format
// appropriate parser. Unrecognized files yield an empty, non-error result.
func (a *Analyzer) ExtractDependencies(manifestPath string) ([]ecosystem.Dependency, error) {
	base := strings.ToLower(filepath.Base(manifestPath))
	switch {
	case strings.Contains(base, "requirements") && strings.HasSuffix(base, ".txt"):
		return extractFromRequirementsTxt(manifestPath)
	case base == "setup.py":
		return extractFromSetupPy(manifestPath)
	case base == "pyproject.toml":
		return extractFromPyprojectToml(manifestPath)
	case base == "pipfile" || base == "pipfile.lock":
		return extractFromPipfile(manifestPath)
	default:
		return nil, nil
	}
}

var requirementRE = regexp.MustCompile(`^([a-zA-Z0-9_.-]+)\s*([><=!~]+)\s*(.+)$`)
var bareNameRE = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

func extractFromRequirementsTxt(path string) ([]ecosystem.Dependency, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil
	}
	defer f.Close()

	var deps []ecosystem.Dependency
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "-r") || strings.HasPrefix(line, "-e") {
			continue
		}
		if m := requirementRE.FindStringSubmatch(line); m != nil {
			deps = append(deps, ecosystem.Dependency{
				Name:           m[1],
				VersionSpec:    m[2] + strings.TrimSpace(m[3]),
				DependencyType: "runtime",
				SourceFile:     path,
			})
			continue
		}
		if bareNameRE.MatchString(line) {
			deps = append(deps, ecosystem.Dependency{
				Name:           line,
				VersionSpec:    "*",
				DependencyType: "runtime",
				SourceFile:     path,
			})
		}
	}
	return deps, nil
}

// installRequiresRE matches a keyword argument to setup() whose value is a
// string list literal, e.g. install_requires=["requests>=2.0.0", "click"].
// This is deliberately syntactic rather than a full AST walk: Go has no
// standard Python parser, and a setup.py is never executed to extract its
// dependencies regardless.
var installRequiresRE = regexp.MustCompile(`(?s)(install_requires|requires|setup_requires)\s*=\s*\[(.*?)\]`)
var stringLiteralRE = regexp.MustCompile(`['"]([^'"]+)['"]`)

func extractFromSetupPy(path string) ([]ecosystem.Dependency, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil
	}
	content := string(data)

	var deps []ecosystem.Dependency
	for _, m := range installRequiresRE.FindAllStringSubmatch(content, -1) {
		depType := m[1]
		for _, lit := range stringLiteralRE.FindAllStringSubmatch(m[2], -1) {
			dep, ok := parseDependencyString(lit[1])
			if !ok {
				continue
			}
			dep.DependencyType = depType
			dep.SourceFile = path
			deps = append(deps, dep)
		}
	}
	return deps, nil
}

func parseDependencyString(s string) (ecosystem.Dependency, bool) {
	s = strings.TrimSpace(s)
	if m := requirementRE.FindStringSubmatch(s); m != nil {
		return ecosystem.Dependency{Name: m[1], VersionSpec: m[2] + strings.TrimSpace(m[3])}, true
	}
	if bareNameRE.MatchString(s) {
		return ecosystem.Dependency{Name: s, VersionSpec: "*"}, true
	}
	return ecosystem.Dependency{}, false
}

type pyprojectFile struct {
	Tool struct {
		Poetry struct {
			Dependencies map[string]any `toml:"dependencies"`
		} `toml:"poetry"`
	} `toml:"tool"`
	Project struct {
		Dependencies []string `toml:"dependencies"`
	} `toml:"project"`
}

func extractFromPyprojectToml(path string) ([]ecosystem.Dependency, error) {
	var doc pyprojectFile
	if _, err := toml.DecodeFile(path, &doc); err != nil {
		return nil, nil
	}

	var deps []ecosystem.Dependency
	for name, spec := range doc.Tool.Poetry.Dependencies {
		if name == "python" {
			continue
		}
		version := "*"
		if s, ok := spec.(string); ok {
			version = s
		}
		deps = append(deps, ecosystem.Dependency{
			Name:           name,
			VersionSpec:    version,
			DependencyType: "poetry_dependencies",
			SourceFile:     path,
		})
	}
	for _, raw := range doc.Project.Dependencies {
		dep, ok := parseDependencyString(raw)
		if !ok {
			continue
		}
		dep.DependencyType = "project_dependencies"
		dep.SourceFile = path
		deps = append(deps, dep)
	}
	return deps, nil
}

type pipfileFile struct {
	Packages    map[string]any `toml:"packages"`
	DevPackages map[string]any `toml:"dev-packages"`
}

func extractFromPipfile(path string) ([]ecosystem.Dependency, error) {
	var doc pipfileFile
	if _, err := toml.DecodeFile(path, &doc); err != nil {
		return nil, nil
	}

	var deps []ecosystem.Dependency
	addSection := func(section map[string]any, depType string) {
		for name, spec := range section {
			version := "*"
			if s, ok := spec.(string); ok {
				version = s
			}
			deps = append(deps, ecosystem.Dependency{
				Name:           name,
				VersionSpec:    version,
				DependencyType: depType,
				SourceFile:     path,
			})
		}
	}
	addSection(doc.Packages, "packages")
	addSection(doc.DevPackages, "dev-packages")
	return deps, nil
}

func (a *Analyzer) GetRegistryURL(pkgName string) string {
	return "https://pypi.org/pypi/" + pkgName + "/json"
}

func (a *Analyzer) GetMaliciousPatterns() map[string][]string { return patterns }

func (a *Analyzer) IsMaliciousPackage(pkgName, version string) *ecosystem.MaliciousEntry {
	return malicious.Lookup(ecosystemName, pkgName, version)
}

var _ ecosystem.Analyzer = (*Analyzer)(nil)
