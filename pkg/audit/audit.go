// Package audit orchestrates the full supply-chain audit pipeline: manifest
// detection, transitive resolution, graph analysis, install-script and
// known-malicious screening, and reputation scoring, combined into one
// aggregated Report.
package audit

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/stacktower/pkg/cache"
	"github.com/matzehuels/stacktower/pkg/depgraph"
	"github.com/matzehuels/stacktower/pkg/ecosystem"
	stackerrors "github.com/matzehuels/stacktower/pkg/errors"
	"github.com/matzehuels/stacktower/pkg/observability"
	"github.com/matzehuels/stacktower/pkg/reputation"
	"github.com/matzehuels/stacktower/pkg/resolver"
)

// DefaultMaxDepth matches the Resolver's own default, kept distinct so the
// orchestrator can diverge from it without touching pkg/resolver.
const DefaultMaxDepth = resolver.DefaultMaxDepth

// DefaultConfidenceThreshold matches the Python original's
// create_analyzer(confidence_threshold=0.5) default; findings below this
// confidence are dropped from the report before it is returned.
const DefaultConfidenceThreshold = 0.5

// DefaultReputationFloor is the composite reputation score below which a
// low_reputation Finding is synthesized for a resolved package. Not
// specified verbatim by spec.md beyond the per-factor 0.5 flag thresholds;
// 0.3 is chosen to match the confidence_threshold value the original test
// suite uses specifically for its low-reputation scenario
// (test_production_integration.py::test_low_reputation_package_flagged).
const DefaultReputationFloor = 0.3

// Options configures one Run. Mirrors pipeline.Options's validate-and-
// default idiom: zero-value fields are filled in by ValidateAndSetDefaults.
type Options struct {
	ManifestPath string // required
	Ecosystem    string // empty triggers auto-detection via the registry

	MaxDepth            int
	ConfidenceThreshold float64
	ReputationFloor     float64
	ScoreReputation     bool // reputation fetches one extra request per package; opt-in

	Logger *log.Logger

	validated bool
}

// ValidateAndSetDefaults applies defaults in place. Idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.ManifestPath == "" {
		return stackerrors.New(stackerrors.ErrCodeManifestNotFound, "manifest path is required")
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	if o.ConfidenceThreshold <= 0 {
		o.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	if o.ReputationFloor <= 0 {
		o.ReputationFloor = DefaultReputationFloor
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	o.validated = true
	return nil
}

// Summary carries the report's always-present top-level counters, per
// spec.md §7 "User-visible behavior".
type Summary struct {
	TotalPackages      int            `json:"total_packages"`
	FindingCounts      map[string]int `json:"finding_counts"`
	EcosystemsAnalyzed []string       `json:"ecosystems_analyzed"`
	CacheStatistics    cache.Stats    `json:"cache_statistics"`
}

// Stats carries pipeline timing, matching pipeline.Stats's shape.
type Stats struct {
	ResolveTime time.Duration `json:"resolve_time"`
	ScreenTime  time.Duration `json:"screen_time"`
	ScoreTime   time.Duration `json:"score_time"`
}

// Report is the final aggregated audit output.
type Report struct {
	Findings []ecosystem.Finding `json:"findings"`
	Graph    *depgraph.Doc       `json:"graph"`
	Summary  Summary             `json:"summary"`
	Stats    Stats               `json:"stats"`
}

// Orchestrator wires the five core components into one pipeline. Stateless
// beyond its dependencies, matching Runner's cache+logger-only state.
type Orchestrator struct {
	registry *ecosystem.Registry
	resolver *resolver.Resolver
	graph    *depgraph.Analyzer
	scorer   *reputation.Scorer
	cache    *cache.Cache
	logger   *log.Logger
}

// New builds an Orchestrator. registry supplies ecosystem detection and
// install-script/malicious screening; c backs the Resolver, the Cache
// statistics echoed into the report, and (if scoring is enabled in
// Options) the Reputation Scorer.
func New(c *cache.Cache, registry *ecosystem.Registry, logger *log.Logger) *Orchestrator {
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	res := resolver.New(c)
	return &Orchestrator{
		registry: registry,
		resolver: res,
		graph:    depgraph.New(registry, res),
		scorer:   reputation.New(c, registry, reputation.DefaultRateLimit),
		cache:    c,
		logger:   logger,
	}
}

// Run executes the full audit pipeline and returns the aggregated Report.
// A malformed or missing manifest fails the whole run (spec.md §7
// propagation rule); per-package failures during resolution, screening, or
// scoring are logged and skipped, never aborting the run.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*Report, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}

	analyzer, ecosystemName, err := o.detectAnalyzer(opts)
	if err != nil {
		return nil, err
	}

	var findings []ecosystem.Finding

	observability.Pipeline().OnResolveStart(ctx, ecosystemName, opts.ManifestPath)
	resolveStart := time.Now()
	doc, err := o.graph.BuildGraph(ctx, opts.ManifestPath, ecosystemName, opts.MaxDepth)
	resolveTime := time.Since(resolveStart)
	if err != nil {
		observability.Pipeline().OnResolveComplete(ctx, ecosystemName, opts.ManifestPath, 0, resolveTime, err)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, stackerrors.Wrap(stackerrors.ErrCodeCancelled, ctxErr, "audit of %s cancelled during resolution", opts.ManifestPath)
		}
		return nil, stackerrors.Wrap(stackerrors.ErrCodeManifestMalformed, err, "building dependency graph for %s", opts.ManifestPath)
	}
	observability.Pipeline().OnResolveComplete(ctx, ecosystemName, opts.ManifestPath, doc.Metadata.TotalPackages, resolveTime, nil)

	findings = append(findings, graphFindings(doc)...)

	observability.Pipeline().OnScreenStart(ctx, ecosystemName, doc.Metadata.TotalPackages)
	screenStart := time.Now()
	scriptFindings, err := analyzer.AnalyzeInstallScripts(ctx, manifestDir(opts.ManifestPath))
	if err != nil {
		o.logger.Warn("install-script analysis failed", "manifest", opts.ManifestPath, "err", err)
	} else {
		findings = append(findings, scriptFindings...)
	}
	findings = append(findings, o.screenMalicious(doc, analyzer)...)
	screenTime := time.Since(screenStart)
	observability.Pipeline().OnScreenComplete(ctx, ecosystemName, len(findings), screenTime, nil)

	observability.Pipeline().OnScoreStart(ctx, ecosystemName, doc.Metadata.TotalPackages)
	scoreStart := time.Now()
	if opts.ScoreReputation {
		findings = append(findings, o.scoreReputation(ctx, doc, ecosystemName, opts.ReputationFloor)...)
	}
	scoreTime := time.Since(scoreStart)
	observability.Pipeline().OnScoreComplete(ctx, ecosystemName, scoreTime, nil)

	findings = filterByConfidence(findings, opts.ConfidenceThreshold)

	report := &Report{
		Findings: findings,
		Graph:    doc,
		Summary: Summary{
			TotalPackages:      doc.Metadata.TotalPackages,
			FindingCounts:      countByType(findings),
			EcosystemsAnalyzed: []string{ecosystemName},
			CacheStatistics:    o.cacheStats(ctx),
		},
		Stats: Stats{
			ResolveTime: resolveTime,
			ScreenTime:  screenTime,
			ScoreTime:   scoreTime,
		},
	}
	return report, nil
}

// detectAnalyzer resolves opts.Ecosystem against the registry, or
// auto-detects it from the manifest's directory when unset.
func (o *Orchestrator) detectAnalyzer(opts Options) (ecosystem.Analyzer, string, error) {
	if opts.Ecosystem != "" {
		a, ok := o.registry.Get(opts.Ecosystem)
		if !ok {
			return nil, "", stackerrors.New(stackerrors.ErrCodeUnsupported, "unsupported ecosystem: %s", opts.Ecosystem)
		}
		return a, opts.Ecosystem, nil
	}

	a, ok := o.registry.Detect(manifestDir(opts.ManifestPath))
	if !ok {
		return nil, "", stackerrors.New(stackerrors.ErrCodeManifestNotFound, "could not detect ecosystem for %s", opts.ManifestPath)
	}
	return a, a.EcosystemName(), nil
}

// cacheStats returns the Cache's occupancy statistics, or a zero Stats
// struct if the orchestrator has no cache configured.
func (o *Orchestrator) cacheStats(ctx context.Context) cache.Stats {
	if o.cache == nil {
		return cache.Stats{}
	}
	return o.cache.Stats(ctx)
}

func manifestDir(manifestPath string) string {
	dir := manifestPath
	for i := len(dir) - 1; i >= 0; i-- {
		if dir[i] == '/' {
			return dir[:i]
		}
	}
	return "."
}

// graphFindings derives circular-dependency and version-conflict findings
// from an already-built graph document, per spec.md's Finding taxonomy.
func graphFindings(doc *depgraph.Doc) []ecosystem.Finding {
	var out []ecosystem.Finding
	for _, cd := range doc.CircularDependencies {
		out = append(out, ecosystem.Finding{
			Package:         doc.Name,
			Version:         doc.Version,
			FindingType:     ecosystem.FindingCircularDependency,
			Severity:        cd.Severity,
			Confidence:      0.9,
			Evidence:        []string{cd.Description()},
			Recommendations: []string{"break the cycle by removing or inverting one of the listed dependency edges"},
			Source:          "dependency_graph_analyzer",
		})
	}
	for _, vc := range doc.VersionConflicts {
		out = append(out, ecosystem.Finding{
			Package:     vc.Package,
			Version:     "",
			FindingType: ecosystem.FindingVersionConflict,
			Severity:    vc.Severity,
			Confidence:  0.9,
			Evidence:    []string{fmt.Sprintf("%s resolves to conflicting versions: %v", vc.Package, vc.Versions)},
			Recommendations: []string{
				fmt.Sprintf("pin %s to a single version across all dependency paths", vc.Package),
			},
			Source: "dependency_graph_analyzer",
		})
	}
	return out
}

// screenMalicious walks the resolved graph and checks each package against
// the ecosystem's known-malicious table.
func (o *Orchestrator) screenMalicious(doc *depgraph.Doc, analyzer ecosystem.Analyzer) []ecosystem.Finding {
	var out []ecosystem.Finding
	seen := map[string]bool{}
	var walk func(nodes map[string]*depgraph.SerializedNode)
	walk = func(nodes map[string]*depgraph.SerializedNode) {
		for _, n := range nodes {
			key := n.Name + "@" + n.Version
			if seen[key] {
				continue
			}
			seen[key] = true
			if entry := analyzer.IsMaliciousPackage(n.Name, n.Version); entry != nil {
				out = append(out, ecosystem.Finding{
					Package:         n.Name,
					Version:         n.Version,
					FindingType:     ecosystem.FindingMaliciousPackage,
					Severity:        entry.Severity,
					Confidence:      0.95,
					Evidence:        append([]string{entry.Reason}, entry.References...),
					Recommendations: []string{fmt.Sprintf("remove %s immediately and audit for compromise", n.Name)},
					Source:          "known_malicious_table",
				})
			}
			walk(n.Dependencies)
		}
	}
	walk(doc.Dependencies)
	return out
}

// scoreReputation scores every distinct resolved package and synthesizes a
// low_reputation Finding for any package whose composite score falls below
// floor. Per-package scoring failures are swallowed (spec.md §7: reputation
// calls are per-package, never fatal to the run).
func (o *Orchestrator) scoreReputation(ctx context.Context, doc *depgraph.Doc, ecosystemName string, floor float64) []ecosystem.Finding {
	var out []ecosystem.Finding
	seen := map[string]bool{}
	var walk func(nodes map[string]*depgraph.SerializedNode)
	walk = func(nodes map[string]*depgraph.SerializedNode) {
		for _, n := range nodes {
			key := n.Name + "@" + n.Version
			if seen[key] {
				continue
			}
			seen[key] = true

			result, err := o.scorer.Calculate(ctx, n.Name, n.Version, ecosystemName)
			if err != nil {
				o.logger.Warn("reputation lookup failed", "package", n.Name, "err", err)
			} else if result.Score < floor {
				out = append(out, ecosystem.Finding{
					Package:         n.Name,
					Version:         n.Version,
					FindingType:     ecosystem.FindingLowReputation,
					Severity:        reputationSeverity(result.Score),
					Confidence:      1 - result.Score,
					Evidence:        result.Flags,
					Recommendations: []string{"review this package's maintenance history before depending on it"},
					Source:          "reputation_scorer",
				})
			}
			walk(n.Dependencies)
		}
	}
	walk(doc.Dependencies)
	return out
}

func reputationSeverity(score float64) string {
	switch {
	case score < 0.15:
		return ecosystem.SeverityHigh
	case score < 0.3:
		return ecosystem.SeverityMedium
	default:
		return ecosystem.SeverityLow
	}
}

func filterByConfidence(findings []ecosystem.Finding, threshold float64) []ecosystem.Finding {
	out := findings[:0]
	for _, f := range findings {
		if f.Confidence >= threshold {
			out = append(out, f)
		}
	}
	return out
}

func countByType(findings []ecosystem.Finding) map[string]int {
	counts := make(map[string]int)
	for _, f := range findings {
		counts[f.FindingType]++
	}
	return counts
}
