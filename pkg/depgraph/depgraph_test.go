package depgraph

import (
	"context"
	"testing"

	"github.com/matzehuels/stacktower/pkg/ecosystem"
	"github.com/matzehuels/stacktower/pkg/resolver"
)

type fakeAnalyzer struct {
	name string
	deps []ecosystem.Dependency
}

func (a *fakeAnalyzer) EcosystemName() string                            { return a.name }
func (a *fakeAnalyzer) DetectManifestFiles(dir string) ([]string, error) { return nil, nil }
func (a *fakeAnalyzer) ExtractDependencies(p string) ([]ecosystem.Dependency, error) {
	return a.deps, nil
}
func (a *fakeAnalyzer) AnalyzeInstallScripts(ctx context.Context, dir string) ([]ecosystem.Finding, error) {
	return nil, nil
}
func (a *fakeAnalyzer) GetRegistryURL(name string) string          { return "" }
func (a *fakeAnalyzer) GetMaliciousPatterns() map[string][]string  { return nil }
func (a *fakeAnalyzer) IsMaliciousPackage(name, version string) *ecosystem.MaliciousEntry {
	return nil
}

// buildTestNode constructs a Node tree by hand, bypassing BuildGraph's
// registry/resolver wiring, to exercise the pure graph algorithms in
// isolation.
func buildTestNode(name, version string, deps ...*Node) *Node {
	n := &Node{Name: name, Version: version, Ecosystem: "npm", Dependencies: map[string]*Node{}}
	for _, d := range deps {
		n.Dependencies[d.Name] = d
	}
	return n
}

func TestTraceVulnerabilityImpactFindsAllPaths(t *testing.T) {
	lodash1 := buildTestNode("lodash", "4.0.0")
	bodyParser := buildTestNode("body-parser", "1.0.0", lodash1)
	lodash2 := buildTestNode("lodash", "4.0.0")
	express := buildTestNode("express", "4.0.0", bodyParser, lodash2)
	root := buildTestNode("root", "1.0.0", express)

	a := &Analyzer{graph: root}
	paths := a.TraceVulnerabilityImpact("lodash")

	if len(paths) != 2 {
		t.Fatalf("expected 2 paths to lodash, got %d: %v", len(paths), paths)
	}
}

func TestDetectCircularDependencies(t *testing.T) {
	// a -> b -> a (cycle)
	a := &Node{Name: "a", Version: "1.0.0", Dependencies: map[string]*Node{}}
	b := &Node{Name: "b", Version: "1.0.0", Dependencies: map[string]*Node{"a": a}}
	a.Dependencies["b"] = b
	root := buildTestNode("root", "1.0.0", a)

	an := &Analyzer{graph: root}
	cycles := an.DetectCircularDependencies()
	if len(cycles) == 0 {
		t.Fatal("expected at least one cycle detected")
	}
	if cycles[0].Severity != ecosystem.SeverityMedium {
		t.Errorf("severity = %q, want %q", cycles[0].Severity, ecosystem.SeverityMedium)
	}
}

func TestDetectVersionConflicts(t *testing.T) {
	lodashV1 := buildTestNode("lodash", "3.0.0")
	lodashV2 := buildTestNode("lodash", "4.0.0")
	a := buildTestNode("a", "1.0.0", lodashV1)
	b := buildTestNode("b", "1.0.0", lodashV2)
	root := buildTestNode("root", "1.0.0", a, b)

	an := &Analyzer{graph: root}
	conflicts := an.DetectVersionConflicts()
	if len(conflicts) != 1 {
		t.Fatalf("expected 1 conflict, got %d: %v", len(conflicts), conflicts)
	}
	if conflicts[0].Package != "lodash" {
		t.Errorf("package = %q, want lodash", conflicts[0].Package)
	}
	if len(conflicts[0].Versions) != 2 {
		t.Errorf("versions = %v, want 2 entries", conflicts[0].Versions)
	}
}

func TestDetectVersionConflictsNoneWhenConsistent(t *testing.T) {
	shared1 := buildTestNode("shared", "1.0.0")
	shared2 := buildTestNode("shared", "1.0.0")
	a := buildTestNode("a", "1.0.0", shared1)
	b := buildTestNode("b", "1.0.0", shared2)
	root := buildTestNode("root", "1.0.0", a, b)

	an := &Analyzer{graph: root}
	if conflicts := an.DetectVersionConflicts(); len(conflicts) != 0 {
		t.Errorf("expected no conflicts, got %v", conflicts)
	}
}

func TestSerializeMarksCircularReference(t *testing.T) {
	a := &Node{Name: "a", Version: "1.0.0", Depth: 1, Dependencies: map[string]*Node{}}
	b := &Node{Name: "b", Version: "1.0.0", Depth: 2, Dependencies: map[string]*Node{"a": a}}
	a.Dependencies["b"] = b

	visited := map[string]bool{"a@1.0.0": true}
	got := serialize(a, visited, DefaultSerializeDepth)
	if !got.CircularReference {
		t.Fatal("expected circular_reference=true for revisited node")
	}
	if len(got.Dependencies) != 0 {
		t.Errorf("circular stub should not expand dependencies, got %v", got.Dependencies)
	}
}

func TestSerializeDiamondNotFlaggedCircular(t *testing.T) {
	// root -> a -> shared
	//      -> b -> shared   (diamond: shared is not an ancestor of itself)
	sharedA := &Node{Name: "shared", Version: "1.0.0", Depth: 2, Dependencies: map[string]*Node{}}
	sharedB := &Node{Name: "shared", Version: "1.0.0", Depth: 2, Dependencies: map[string]*Node{}}
	a := &Node{Name: "a", Version: "1.0.0", Depth: 1, Dependencies: map[string]*Node{"shared": sharedA}}
	b := &Node{Name: "b", Version: "1.0.0", Depth: 1, Dependencies: map[string]*Node{"shared": sharedB}}
	root := buildTestNode("root", "1.0.0", a, b)

	an := &Analyzer{graph: root}
	doc := an.toDoc(DefaultSerializeDepth)

	for _, childName := range []string{"a", "b"} {
		child, ok := doc.Dependencies[childName]
		if !ok {
			t.Fatalf("missing %s in doc", childName)
		}
		shared, ok := child.Dependencies["shared"]
		if !ok {
			t.Fatalf("missing shared under %s", childName)
		}
		if shared.CircularReference {
			t.Errorf("shared under %s should not be flagged circular (diamond, not a cycle)", childName)
		}
	}
}

func TestVisualizeGraphIncludesKeySubstrings(t *testing.T) {
	child := buildTestNode("leaf", "1.0.0")
	root := buildTestNode("root", "1.0.0", child)
	an := &Analyzer{
		graph:    root,
		circular: []CircularDependency{{Cycle: []string{"x", "y"}, Severity: ecosystem.SeverityMedium}},
		conflicts: []VersionConflict{
			{Package: "lodash", Versions: []string{"3.0.0", "4.0.0"}, Severity: ecosystem.SeverityMedium},
		},
	}

	out := an.VisualizeGraph(0)
	for _, want := range []string{"root@1.0.0", "leaf@1.0.0", "root@1.0.0 -> leaf@1.0.0", "Circular Dependencies Detected", "Version Conflicts Detected", "lodash"} {
		if !contains(out, want) {
			t.Errorf("VisualizeGraph() missing substring %q; got:\n%s", want, out)
		}
	}
}

func TestToDOTContainsEdges(t *testing.T) {
	child := buildTestNode("leaf", "1.0.0")
	root := buildTestNode("root", "1.0.0", child)
	an := &Analyzer{graph: root}

	dot := an.ToDOT()
	if !contains(dot, "digraph dependencies") {
		t.Error("expected digraph header")
	}
	if !contains(dot, `"root@1.0.0" -> "leaf@1.0.0"`) {
		t.Errorf("expected edge in DOT output, got:\n%s", dot)
	}
}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && (func() bool {
		for i := 0; i+len(needle) <= len(haystack); i++ {
			if haystack[i:i+len(needle)] == needle {
				return true
			}
		}
		return false
	})()
}

func TestBuildSubtreeReconstructsTreeFromResolverOutput(t *testing.T) {
	tree := resolver.Tree{
		"root@1.0.0": {Depth: 0, Metadata: resolver.Metadata{
			Name: "root", Version: "1.0.0",
			Dependencies: map[string]string{"leaf": "^2.0.0"},
		}},
		"leaf@2.0.0": {Depth: 1, Metadata: resolver.Metadata{Name: "leaf", Version: "2.0.0"}},
	}

	n := buildSubtree(tree, "root@1.0.0", "npm", 0, map[string]bool{})
	if n == nil {
		t.Fatal("expected non-nil root node")
	}
	leaf, ok := n.Dependencies["leaf"]
	if !ok {
		t.Fatal("expected leaf dependency attached")
	}
	if leaf.Version != "2.0.0" || leaf.Depth != 1 {
		t.Errorf("leaf = %+v, want version 2.0.0 depth 1", leaf)
	}
}

func TestBuildSubtreeMissingEntryReturnsNil(t *testing.T) {
	tree := resolver.Tree{}
	if n := buildSubtree(tree, "missing@1.0.0", "npm", 0, map[string]bool{}); n != nil {
		t.Errorf("expected nil for a key absent from the resolver tree, got %+v", n)
	}
}

func TestBuildGraphSkipsDependenciesTheResolverCannotHandle(t *testing.T) {
	// The ecosystem registry and the resolver track ecosystems
	// independently; an analyzer registered under a name the resolver
	// doesn't recognize (anything but "npm"/"pypi") must not fail
	// BuildGraph — its dependencies are simply absent from the result.
	reg := ecosystem.NewRegistry(nil)
	reg.Register(&fakeAnalyzer{
		name: "rubygems-like",
		deps: []ecosystem.Dependency{{Name: "ghost", VersionSpec: "^4.0.0", DependencyType: "runtime"}},
	})
	res := resolver.New(nil)
	a := New(reg, res)

	doc, err := a.BuildGraph(context.Background(), "package.json", "rubygems-like", 0)
	if err != nil {
		t.Fatalf("BuildGraph() error: %v", err)
	}
	if len(doc.Dependencies) != 0 {
		t.Errorf("expected no dependencies resolved, got %v", doc.Dependencies)
	}
}

func TestBuildGraphUnsupportedEcosystem(t *testing.T) {
	reg := ecosystem.NewRegistry(nil)
	res := resolver.New(nil)
	a := New(reg, res)

	if _, err := a.BuildGraph(context.Background(), "package.json", "unknown", 0); err == nil {
		t.Fatal("expected error for unregistered ecosystem")
	}
}
