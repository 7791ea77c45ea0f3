package ecosystem

// Default is the process-wide registry instance. Ecosystem subpackages
// register themselves here from init(); callers needing an isolated
// registry (tests) should construct their own via NewRegistry instead.
var Default = NewRegistry(nil)

// Register adds a to the default registry.
func Register(a Analyzer) { Default.Register(a) }

// Get returns the analyzer registered under name in the default registry.
func Get(name string) (Analyzer, bool) { return Default.Get(name) }

// DetectEcosystem probes the default registry for a manifest under dir.
func DetectEcosystem(dir string) (Analyzer, bool) { return Default.Detect(dir) }

// All returns every analyzer registered in the default registry.
func All() []Analyzer { return Default.All() }
