package ecosystem

import (
	"io"
	"sync"

	"github.com/charmbracelet/log"
)

// Registry maps ecosystem name -> Analyzer. It is read-mostly: registration
// happens at startup, lookups happen throughout a run.
//
// Registry is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Analyzer
	order  []string
	logger *log.Logger
}

// NewRegistry creates an empty Registry. A nil logger discards warnings.
func NewRegistry(logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Registry{byName: make(map[string]Analyzer), logger: logger}
}

// Register adds or replaces the analyzer for its EcosystemName(). A second
// registration under the same name replaces the first and logs a warning;
// registration order is otherwise preserved for Detect.
func (r *Registry) Register(a Analyzer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := a.EcosystemName()
	if _, exists := r.byName[name]; exists {
		r.logger.Warn("ecosystem analyzer re-registered, overwriting", "ecosystem", name)
	} else {
		r.order = append(r.order, name)
	}
	r.byName[name] = a
}

// Unregister removes the analyzer for name, if any.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byName, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Get returns the analyzer registered under name, if any.
func (r *Registry) Get(name string) (Analyzer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byName[name]
	return a, ok
}

// All returns every registered analyzer in registration order.
func (r *Registry) All() []Analyzer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Analyzer, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.byName[n])
	}
	return out
}

// Detect probes each registered analyzer, in registration order, for a
// manifest file under dir, and returns the first that finds one.
func (r *Registry) Detect(dir string) (Analyzer, bool) {
	for _, a := range r.All() {
		files, err := a.DetectManifestFiles(dir)
		if err == nil && len(files) > 0 {
			return a, true
		}
	}
	return nil, false
}
