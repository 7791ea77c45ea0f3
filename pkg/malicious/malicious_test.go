package malicious

import (
	"testing"

	"github.com/matzehuels/stacktower/pkg/ecosystem"
)

func TestLookupExactVersion(t *testing.T) {
	if Lookup("npm", "eslint-scope", "3.7.2") == nil {
		t.Fatal("expected exact-version match")
	}
	if Lookup("npm", "eslint-scope", "3.7.1") != nil {
		t.Fatal("expected no match for a different exact version")
	}
}

func TestLookupWildcard(t *testing.T) {
	if Lookup("pypi", "ctx", "0.1.2") == nil {
		t.Fatal("expected wildcard entry to match any version")
	}
	if Lookup("pypi", "ctx", "99.9.9") == nil {
		t.Fatal("wildcard should match any version")
	}
}

func TestLookupGreaterEqualFloor(t *testing.T) {
	if Lookup("npm", "event-stream", "3.3.6") == nil {
		t.Fatal("expected floor match at exactly the floor version")
	}
	if Lookup("npm", "event-stream", "3.4.0") == nil {
		t.Fatal("expected floor match above the floor version")
	}
	if Lookup("npm", "event-stream", "3.3.5") != nil {
		t.Fatal("expected no match below the floor version")
	}
}

func TestLookupNoMatch(t *testing.T) {
	if Lookup("npm", "left-pad", "1.0.0") != nil {
		t.Fatal("left-pad should not be flagged")
	}
}

func TestLookupCaseInsensitiveName(t *testing.T) {
	if Lookup("pypi", "CTX", "1.0.0") == nil {
		t.Fatal("lookup should be case-insensitive on name")
	}
}

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.0", 0},
		{"1.2.0", "1.10.0", -1},
		{"2.0.0", "1.9.9", 1},
		{"1.0", "1.0.0", 0},
	}
	for _, tt := range tests {
		if got := compareVersions(tt.a, tt.b); got != tt.want {
			t.Errorf("compareVersions(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestRegisterAddsEntry(t *testing.T) {
	Register("npm", ecosystem.MaliciousEntry{Name: "totally-fake-pkg", Version: "1.0.0", Severity: ecosystem.SeverityHigh})
	if Lookup("npm", "totally-fake-pkg", "1.0.0") == nil {
		t.Fatal("expected freshly registered entry to be found")
	}
}
