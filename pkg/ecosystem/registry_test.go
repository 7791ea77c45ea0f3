package ecosystem

import (
	"context"
	"testing"
)

type fakeAnalyzer struct {
	name     string
	manifest string
}

func (f *fakeAnalyzer) EcosystemName() string { return f.name }
func (f *fakeAnalyzer) DetectManifestFiles(dir string) ([]string, error) {
	if dir == f.manifest {
		return []string{f.manifest}, nil
	}
	return nil, nil
}
func (f *fakeAnalyzer) ExtractDependencies(string) ([]Dependency, error)               { return nil, nil }
func (f *fakeAnalyzer) AnalyzeInstallScripts(context.Context, string) ([]Finding, error) { return nil, nil }
func (f *fakeAnalyzer) GetRegistryURL(name string) string                              { return name }
func (f *fakeAnalyzer) GetMaliciousPatterns() map[string][]string                      { return nil }
func (f *fakeAnalyzer) IsMaliciousPackage(string, string) *MaliciousEntry              { return nil }

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(&fakeAnalyzer{name: "npm"})

	a, ok := r.Get("npm")
	if !ok || a.EcosystemName() != "npm" {
		t.Fatalf("Get(npm) = %v, %v", a, ok)
	}
	if _, ok := r.Get("pypi"); ok {
		t.Fatal("Get(pypi) should not find anything")
	}
}

func TestRegistryReRegisterOverwrites(t *testing.T) {
	r := NewRegistry(nil)
	first := &fakeAnalyzer{name: "npm", manifest: "first"}
	second := &fakeAnalyzer{name: "npm", manifest: "second"}
	r.Register(first)
	r.Register(second)

	a, _ := r.Get("npm")
	if a != second {
		t.Error("second registration should win")
	}
	if len(r.All()) != 1 {
		t.Errorf("All() len = %d, want 1", len(r.All()))
	}
}

func TestRegistryDetectOrder(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(&fakeAnalyzer{name: "npm", manifest: "/proj"})
	r.Register(&fakeAnalyzer{name: "pypi", manifest: "/proj"})

	a, ok := r.Detect("/proj")
	if !ok || a.EcosystemName() != "npm" {
		t.Errorf("Detect should return first registered match, got %v", a)
	}
}

func TestRegistryUnregister(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(&fakeAnalyzer{name: "npm"})
	r.Unregister("npm")
	if _, ok := r.Get("npm"); ok {
		t.Error("npm should be gone after Unregister")
	}
}
