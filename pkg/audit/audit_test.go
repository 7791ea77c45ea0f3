package audit

import (
	"context"
	"testing"

	"github.com/matzehuels/stacktower/pkg/depgraph"
	"github.com/matzehuels/stacktower/pkg/ecosystem"
)

// fakeAnalyzer is a minimal ecosystem.Analyzer double: no real manifest
// parsing or install-script scanning, so Run can be exercised without a
// filesystem or the live npm/PyPI registries.
type fakeAnalyzer struct {
	name      string
	deps      []ecosystem.Dependency
	malicious map[string]*ecosystem.MaliciousEntry // keyed "name@version"
}

func (a *fakeAnalyzer) EcosystemName() string                            { return a.name }
func (a *fakeAnalyzer) DetectManifestFiles(dir string) ([]string, error) { return nil, nil }
func (a *fakeAnalyzer) ExtractDependencies(p string) ([]ecosystem.Dependency, error) {
	return a.deps, nil
}
func (a *fakeAnalyzer) AnalyzeInstallScripts(ctx context.Context, dir string) ([]ecosystem.Finding, error) {
	return nil, nil
}
func (a *fakeAnalyzer) GetRegistryURL(name string) string         { return "" }
func (a *fakeAnalyzer) GetMaliciousPatterns() map[string][]string { return nil }
func (a *fakeAnalyzer) IsMaliciousPackage(name, version string) *ecosystem.MaliciousEntry {
	return a.malicious[name+"@"+version]
}

func TestOptionsValidateAndSetDefaults(t *testing.T) {
	var o Options
	if err := o.ValidateAndSetDefaults(); err == nil {
		t.Fatal("expected error for missing manifest path")
	}

	o = Options{ManifestPath: "package.json"}
	if err := o.ValidateAndSetDefaults(); err != nil {
		t.Fatalf("ValidateAndSetDefaults() error: %v", err)
	}
	if o.MaxDepth != DefaultMaxDepth {
		t.Errorf("MaxDepth = %d, want %d", o.MaxDepth, DefaultMaxDepth)
	}
	if o.ConfidenceThreshold != DefaultConfidenceThreshold {
		t.Errorf("ConfidenceThreshold = %v, want %v", o.ConfidenceThreshold, DefaultConfidenceThreshold)
	}
	if o.ReputationFloor != DefaultReputationFloor {
		t.Errorf("ReputationFloor = %v, want %v", o.ReputationFloor, DefaultReputationFloor)
	}
}

func TestRunWithNoDependenciesProducesEmptyReport(t *testing.T) {
	reg := ecosystem.NewRegistry(nil)
	reg.Register(&fakeAnalyzer{name: "fakeeco"})

	o := New(nil, reg, nil)
	report, err := o.Run(context.Background(), Options{ManifestPath: "manifest.json", Ecosystem: "fakeeco"})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(report.Findings) != 0 {
		t.Errorf("expected no findings, got %v", report.Findings)
	}
	if report.Summary.EcosystemsAnalyzed[0] != "fakeeco" {
		t.Errorf("ecosystems_analyzed = %v, want [fakeeco]", report.Summary.EcosystemsAnalyzed)
	}
	if report.Summary.TotalPackages != 1 {
		t.Errorf("total_packages = %d, want 1 (root only)", report.Summary.TotalPackages)
	}
}

func TestRunUnknownEcosystemErrors(t *testing.T) {
	reg := ecosystem.NewRegistry(nil)
	o := New(nil, reg, nil)
	if _, err := o.Run(context.Background(), Options{ManifestPath: "manifest.json", Ecosystem: "nope"}); err == nil {
		t.Fatal("expected error for unregistered ecosystem")
	}
}

func TestRunSkipsDependencyWhenResolverDoesNotSupportTheEcosystem(t *testing.T) {
	reg := ecosystem.NewRegistry(nil)
	reg.Register(&fakeAnalyzer{
		name: "fakeeco",
		deps: []ecosystem.Dependency{{Name: "ghost", VersionSpec: "^1.0.0", DependencyType: "runtime"}},
	})

	o := New(nil, reg, nil)
	report, err := o.Run(context.Background(), Options{ManifestPath: "manifest.json", Ecosystem: "fakeeco"})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(report.Graph.Dependencies) != 0 {
		t.Errorf("expected no resolved dependencies, got %v", report.Graph.Dependencies)
	}
}

func TestGraphFindingsEmitsCircularAndConflictFindings(t *testing.T) {
	doc := &depgraph.Doc{
		Name:    "root",
		Version: "1.0.0",
		CircularDependencies: []depgraph.CircularDependency{
			{Cycle: []string{"a", "b"}, Severity: ecosystem.SeverityMedium},
		},
		VersionConflicts: []depgraph.VersionConflict{
			{Package: "lodash", Versions: []string{"3.0.0", "4.0.0"}, Severity: ecosystem.SeverityMedium},
		},
	}

	findings := graphFindings(doc)
	if len(findings) != 2 {
		t.Fatalf("expected 2 findings, got %d: %v", len(findings), findings)
	}

	var sawCycle, sawConflict bool
	for _, f := range findings {
		switch f.FindingType {
		case ecosystem.FindingCircularDependency:
			sawCycle = true
		case ecosystem.FindingVersionConflict:
			sawConflict = true
			if f.Package != "lodash" {
				t.Errorf("conflict finding package = %q, want lodash", f.Package)
			}
		}
	}
	if !sawCycle || !sawConflict {
		t.Errorf("expected both a circular_dependency and version_conflict finding, got %v", findings)
	}
}

func TestScreenMaliciousFindsKnownBadPackage(t *testing.T) {
	analyzer := &fakeAnalyzer{
		malicious: map[string]*ecosystem.MaliciousEntry{
			"evil@1.0.0": {Name: "evil", Version: "1.0.0", Reason: "known malware", Severity: ecosystem.SeverityCritical},
		},
	}
	doc := &depgraph.Doc{
		Dependencies: map[string]*depgraph.SerializedNode{
			"evil": {Name: "evil", Version: "1.0.0", Dependencies: map[string]*depgraph.SerializedNode{}},
			"fine": {Name: "fine", Version: "1.0.0", Dependencies: map[string]*depgraph.SerializedNode{}},
		},
	}

	o := &Orchestrator{}
	findings := o.screenMalicious(doc, analyzer)
	if len(findings) != 1 {
		t.Fatalf("expected 1 malicious finding, got %d: %v", len(findings), findings)
	}
	if findings[0].Package != "evil" || findings[0].FindingType != ecosystem.FindingMaliciousPackage {
		t.Errorf("unexpected finding: %+v", findings[0])
	}
}

func TestFilterByConfidenceDropsBelowThreshold(t *testing.T) {
	findings := []ecosystem.Finding{
		{Package: "a", Confidence: 0.9},
		{Package: "b", Confidence: 0.2},
	}
	got := filterByConfidence(findings, 0.5)
	if len(got) != 1 || got[0].Package != "a" {
		t.Errorf("filterByConfidence() = %v, want only package a", got)
	}
}

func TestCountByType(t *testing.T) {
	findings := []ecosystem.Finding{
		{FindingType: ecosystem.FindingMaliciousPackage},
		{FindingType: ecosystem.FindingMaliciousPackage},
		{FindingType: ecosystem.FindingLowReputation},
	}
	counts := countByType(findings)
	if counts[ecosystem.FindingMaliciousPackage] != 2 || counts[ecosystem.FindingLowReputation] != 1 {
		t.Errorf("countByType() = %v", counts)
	}
}

func TestReputationSeverityOrdering(t *testing.T) {
	if reputationSeverity(0.5) != ecosystem.SeverityLow {
		t.Error("expected low severity for a score above the floor")
	}
	if reputationSeverity(0.2) != ecosystem.SeverityMedium {
		t.Error("expected medium severity just under the floor")
	}
	if reputationSeverity(0.05) != ecosystem.SeverityHigh {
		t.Error("expected high severity for a near-zero score")
	}
}

func TestManifestDir(t *testing.T) {
	tests := []struct{ path, want string }{
		{"a/b/package.json", "a/b"},
		{"package.json", "."},
		{"/abs/path/requirements.txt", "/abs/path"},
	}
	for _, tt := range tests {
		if got := manifestDir(tt.path); got != tt.want {
			t.Errorf("manifestDir(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
