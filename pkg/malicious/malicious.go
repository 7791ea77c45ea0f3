// Package malicious holds the known-malicious package table shared by both
// ecosystem analyzers. It is process-wide state seeded at init(); Register
// may add entries later, and all access is guarded by a mutex.
package malicious

import (
	"strconv"
	"strings"
	"sync"

	"github.com/matzehuels/stacktower/pkg/ecosystem"
)

var (
	mu     sync.RWMutex
	table  = map[string][]ecosystem.MaliciousEntry{}
)

// Register adds an entry to the known-malicious table for ecosystemName.
// Intended for use at init() time by seed data and tests; safe to call at
// any time since the table is guarded by a mutex, but callers should treat
// the table as effectively immutable after startup.
func Register(ecosystemName string, entry ecosystem.MaliciousEntry) {
	mu.Lock()
	defer mu.Unlock()
	table[ecosystemName] = append(table[ecosystemName], entry)
}

// Lookup finds a matching entry for (name, version) within ecosystemName's
// table. Matching rules:
//   - version == "*" on either side of the comparison matches any version
//   - exact string match
//   - an entry version of the form ">=X" matches when the queried version
//     is not less than X under dotted-numeric version ordering
func Lookup(ecosystemName, name, version string) *ecosystem.MaliciousEntry {
	mu.RLock()
	defer mu.RUnlock()

	for _, e := range table[ecosystemName] {
		if !strings.EqualFold(e.Name, name) {
			continue
		}
		if e.Version == "*" || version == "*" {
			entry := e
			return &entry
		}
		if e.Version == version {
			entry := e
			return &entry
		}
		if strings.HasPrefix(e.Version, ">=") {
			floor := strings.TrimSpace(strings.TrimPrefix(e.Version, ">="))
			if compareVersions(version, floor) >= 0 {
				entry := e
				return &entry
			}
		}
	}
	return nil
}

// compareVersions compares two dotted-numeric version strings. Returns -1,
// 0, or 1. Non-numeric components compare as equal (0) so comparisons never
// panic on malformed input; missing trailing components are treated as 0.
func compareVersions(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	n := len(as)
	if len(bs) > n {
		n = len(bs)
	}
	for i := 0; i < n; i++ {
		var av, bv int
		if i < len(as) {
			av, _ = strconv.Atoi(strings.TrimSpace(as[i]))
		}
		if i < len(bs) {
			bv, _ = strconv.Atoi(strings.TrimSpace(bs[i]))
		}
		if av != bv {
			if av < bv {
				return -1
			}
			return 1
		}
	}
	return 0
}
