package reputation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/matzehuels/stacktower/pkg/cache"
	"github.com/matzehuels/stacktower/pkg/ecosystem"
)

type fakeAnalyzer struct {
	name string
	url  string
}

func (a *fakeAnalyzer) EcosystemName() string                                  { return a.name }
func (a *fakeAnalyzer) DetectManifestFiles(dir string) ([]string, error)       { return nil, nil }
func (a *fakeAnalyzer) ExtractDependencies(p string) ([]ecosystem.Dependency, error) {
	return nil, nil
}
func (a *fakeAnalyzer) AnalyzeInstallScripts(ctx context.Context, dir string) ([]ecosystem.Finding, error) {
	return nil, nil
}
func (a *fakeAnalyzer) GetRegistryURL(name string) string                   { return a.url }
func (a *fakeAnalyzer) GetMaliciousPatterns() map[string][]string          { return nil }
func (a *fakeAnalyzer) IsMaliciousPackage(name, version string) *ecosystem.MaliciousEntry {
	return nil
}

func TestAgeScoreThresholds(t *testing.T) {
	tests := []struct {
		days float64
		want float64
	}{
		{10, 0.2}, {60, 0.5}, {200, 0.7}, {600, 0.9}, {1000, 1.0},
	}
	for _, tt := range tests {
		if got := byAgeDays(tt.days); got != tt.want {
			t.Errorf("byAgeDays(%v) = %v, want %v", tt.days, got, tt.want)
		}
	}
}

func TestMaintenanceScoreThresholds(t *testing.T) {
	tests := []struct {
		days float64
		want float64
	}{
		{800, 0.2}, {500, 0.5}, {200, 0.7}, {30, 1.0},
	}
	for _, tt := range tests {
		if got := byMaintenanceDays(tt.days); got != tt.want {
			t.Errorf("byMaintenanceDays(%v) = %v, want %v", tt.days, got, tt.want)
		}
	}
}

func TestDownloadsScoreMissingIsNeutral(t *testing.T) {
	if got := downloadsScore(map[string]any{}); got != 0.5 {
		t.Errorf("downloadsScore(missing) = %v, want 0.5", got)
	}
}

func TestDownloadsScoreThresholds(t *testing.T) {
	tests := []struct {
		weekly float64
		want   float64
	}{
		{50, 0.2}, {500, 0.5}, {5000, 0.7}, {50000, 0.9}, {500000, 1.0},
	}
	for _, tt := range tests {
		if got := downloadsScore(map[string]any{"downloads": tt.weekly}); got != tt.want {
			t.Errorf("downloadsScore(%v) = %v, want %v", tt.weekly, got, tt.want)
		}
	}
}

func TestAuthorScoreVerifiedOrgBeatsNamedAuthor(t *testing.T) {
	org := authorScore(map[string]any{
		"author":      "Jane Doe",
		"maintainers": []any{"a", "b"},
	})
	named := authorScore(map[string]any{"author": "Jane Doe"})
	unknown := authorScore(map[string]any{})

	if !(org > named && named > unknown) {
		t.Errorf("expected org(%v) > named(%v) > unknown(%v)", org, named, unknown)
	}
	if org != 1.0 || named != 0.8 || unknown != 0.3 {
		t.Errorf("unexpected scores: org=%v named=%v unknown=%v", org, named, unknown)
	}
}

func TestAuthorScorePyPIFormat(t *testing.T) {
	got := authorScore(map[string]any{"info": map[string]any{"author": "pypi author"}})
	if got != 0.8 {
		t.Errorf("authorScore(pypi) = %v, want 0.8", got)
	}
}

func TestFlagsDerivedFromSubScores(t *testing.T) {
	result := computeScores(map[string]any{})
	wantFlags := map[string]bool{"new_package": false, "low_downloads": false, "unknown_author": true, "unmaintained": false}
	got := map[string]bool{}
	for _, f := range result.Flags {
		got[f] = true
	}
	for flag, want := range wantFlags {
		if got[flag] != want {
			t.Errorf("flag %q present=%v, want %v (flags=%v)", flag, got[flag], want, result.Flags)
		}
	}
}

func TestCalculateCachesResult(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(map[string]any{
			"author":      "Jane Doe",
			"maintainers": []any{"a", "b"},
		})
	}))
	defer srv.Close()

	c := cache.New(cache.Config{Dir: t.TempDir()})
	defer c.Close()
	reg := ecosystem.NewRegistry(nil)
	reg.Register(&fakeAnalyzer{name: "npm", url: srv.URL})

	scorer := New(c, reg, 1000) // high limit to avoid slow tests
	ctx := context.Background()

	r1, err := scorer.Calculate(ctx, "demo", "1.0.0", "npm")
	if err != nil {
		t.Fatalf("Calculate() error: %v", err)
	}
	if r1.Factors.Author != 1.0 {
		t.Errorf("author factor = %v, want 1.0", r1.Factors.Author)
	}

	if _, err := scorer.Calculate(ctx, "demo", "1.0.0", "npm"); err != nil {
		t.Fatalf("second Calculate() error: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (second call should hit cache)", calls)
	}
}

func TestCalculateUnsupportedEcosystem(t *testing.T) {
	c := cache.New(cache.Config{Dir: t.TempDir()})
	defer c.Close()
	reg := ecosystem.NewRegistry(nil)
	scorer := New(c, reg, 1000)

	if _, err := scorer.Calculate(context.Background(), "demo", "1.0.0", "unknown"); err == nil {
		t.Fatal("expected error for unregistered ecosystem")
	}
}
