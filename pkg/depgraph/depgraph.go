// Package depgraph builds a package's complete dependency tree, then traces
// vulnerability impact paths, detects circular dependencies and version
// conflicts, and renders the tree as text or Graphviz DOT.
package depgraph

import (
	"context"
	"fmt"

	"github.com/matzehuels/stacktower/pkg/ecosystem"
	stackerrors "github.com/matzehuels/stacktower/pkg/errors"
	"github.com/matzehuels/stacktower/pkg/resolver"
)

// Node is one package in the built dependency tree.
type Node struct {
	Name         string
	Version      string
	Ecosystem    string
	Depth        int
	Dependencies map[string]*Node
}

// CircularDependency is one detected cycle fragment.
type CircularDependency struct {
	Cycle    []string `json:"cycle"`
	Severity string   `json:"severity"`
}

// Description renders the human-readable cycle summary.
func (c CircularDependency) Description() string {
	s := ""
	for i, name := range c.Cycle {
		if i > 0 {
			s += " -> "
		}
		s += name
	}
	return "Circular dependency: " + s
}

// VersionConflict records a package name resolved to more than one version
// somewhere in the tree.
type VersionConflict struct {
	Package  string     `json:"package"`
	Versions []string   `json:"conflicting_versions"`
	Paths    [][]string `json:"dependency_paths"`
	Severity string     `json:"severity"`
}

// SerializedNode is the bounded, JSON-safe view of a Node: a revisited
// name@version anywhere on the current root-to-node path is replaced with a
// shallow CircularReference stub instead of being re-expanded.
type SerializedNode struct {
	Name              string                     `json:"name"`
	Version           string                     `json:"version"`
	Ecosystem         string                     `json:"ecosystem"`
	Depth             int                        `json:"depth"`
	Dependencies      map[string]*SerializedNode `json:"dependencies"`
	CircularReference bool                       `json:"circular_reference,omitempty"`
}

// Metadata is the summary block attached to a Doc.
type Metadata struct {
	Ecosystem                 string `json:"ecosystem"`
	ManifestPath              string `json:"manifest_path"`
	TotalPackages              int   `json:"total_packages"`
	CircularDependenciesCount int    `json:"circular_dependencies_count"`
	VersionConflictsCount     int    `json:"version_conflicts_count"`
}

// Doc is the full build_graph output.
type Doc struct {
	Name                 string                     `json:"name"`
	Version              string                     `json:"version"`
	Ecosystem            string                     `json:"ecosystem"`
	Depth                int                        `json:"depth"`
	Dependencies         map[string]*SerializedNode `json:"dependencies"`
	Metadata             Metadata                   `json:"metadata"`
	CircularDependencies []CircularDependency       `json:"circular_dependencies"`
	VersionConflicts     []VersionConflict          `json:"version_conflicts"`
}

// DefaultSerializeDepth matches the Python original's to_dict default.
const DefaultSerializeDepth = 10

// Analyzer builds and inspects dependency trees.
//
// Analyzer is not safe for concurrent use: BuildGraph replaces the
// analyzer's current graph and issue lists, and the other methods read
// that state.
type Analyzer struct {
	registry *ecosystem.Registry
	resolver *resolver.Resolver

	graph     *Node
	circular  []CircularDependency
	conflicts []VersionConflict
}

// New builds an Analyzer. registry supplies per-ecosystem manifest parsing;
// res supplies transitive metadata.
func New(registry *ecosystem.Registry, res *resolver.Resolver) *Analyzer {
	return &Analyzer{registry: registry, resolver: res}
}

// BuildGraph extracts direct dependencies from manifestPath via the
// registered ecosystem analyzer, resolves each one's full transitive tree
// through the Resolver, and returns a bounded document with cycle and
// version-conflict summaries attached. maxDepth <= 0 uses the resolver's
// own default.
func (a *Analyzer) BuildGraph(ctx context.Context, manifestPath, ecosystemName string, maxDepth int) (*Doc, error) {
	an, ok := a.registry.Get(ecosystemName)
	if !ok {
		return nil, stackerrors.New(stackerrors.ErrCodeUnsupported, "unsupported ecosystem: %s", ecosystemName)
	}

	deps, err := an.ExtractDependencies(manifestPath)
	if err != nil {
		return nil, stackerrors.Wrap(stackerrors.ErrCodeManifestMalformed, err, "extracting dependencies from %s", manifestPath)
	}

	root := &Node{
		Name:         "root",
		Version:      "1.0.0",
		Ecosystem:    ecosystemName,
		Depth:        0,
		Dependencies: make(map[string]*Node, len(deps)),
	}

	for _, dep := range deps {
		version := resolver.ResolveVersion(dep.VersionSpec)
		result, err := a.resolver.Resolve(ctx, dep.Name, version, ecosystemName, maxDepth)
		if err != nil {
			continue // the resolver does not handle this ecosystem; the dependency is left out
		}
		rootKey := dep.Name + "@" + version
		path := map[string]bool{}
		child := buildSubtree(result.Packages, rootKey, ecosystemName, 1, path)
		if child == nil {
			child = &Node{Name: dep.Name, Version: version, Ecosystem: ecosystemName, Depth: 1, Dependencies: map[string]*Node{}}
		}
		root.Dependencies[dep.Name] = child
	}

	a.graph = root
	a.circular = a.DetectCircularDependencies()
	a.conflicts = a.DetectVersionConflicts()

	doc := a.toDoc(DefaultSerializeDepth)
	doc.Metadata = Metadata{
		Ecosystem:                 ecosystemName,
		ManifestPath:              manifestPath,
		TotalPackages:             countPackages(root),
		CircularDependenciesCount: len(a.circular),
		VersionConflictsCount:     len(a.conflicts),
	}
	doc.CircularDependencies = a.circular
	doc.VersionConflicts = a.conflicts
	return doc, nil
}

// buildSubtree reconstructs a Node tree for key out of the Resolver's flat
// Tree, following each dependency's resolved version. path tracks the
// current root-to-node chain of keys so a genuine cycle (a key reappearing
// among its own ancestors) terminates the branch instead of recursing
// forever; sibling branches reaching the same key (a diamond) are
// unaffected, matching the upstream service's per-descent visited set.
func buildSubtree(tree resolver.Tree, key, ecosystemName string, depth int, path map[string]bool) *Node {
	if path[key] {
		return nil
	}
	entry, ok := tree[key]
	if !ok {
		return nil
	}

	path[key] = true
	defer delete(path, key)

	n := &Node{
		Name:         entry.Metadata.Name,
		Version:      entry.Metadata.Version,
		Ecosystem:    ecosystemName,
		Depth:        depth,
		Dependencies: make(map[string]*Node, len(entry.Metadata.Dependencies)),
	}

	for depName, spec := range entry.Metadata.Dependencies {
		depVersion := resolver.ResolveVersion(spec)
		depKey := depName + "@" + depVersion
		if child := buildSubtree(tree, depKey, ecosystemName, depth+1, path); child != nil {
			n.Dependencies[depName] = child
		}
	}
	return n
}

func countPackages(root *Node) int {
	seen := map[string]bool{}
	var walk func(n *Node)
	walk = func(n *Node) {
		seen[n.Name+"@"+n.Version] = true
		for _, child := range n.Dependencies {
			walk(child)
		}
	}
	walk(root)
	return len(seen)
}

// TraceVulnerabilityImpact returns every root-to-node path whose terminal
// node has name pkgName. Multiple occurrences of the same name anywhere in
// the tree produce multiple distinct paths.
func (a *Analyzer) TraceVulnerabilityImpact(pkgName string) [][]string {
	if a.graph == nil {
		return nil
	}
	var paths [][]string
	var path []string
	var walk func(n *Node)
	walk = func(n *Node) {
		path = append(path, n.Name)
		if n.Name == pkgName {
			cp := make([]string, len(path))
			copy(cp, path)
			paths = append(paths, cp)
		}
		for _, child := range n.Dependencies {
			walk(child)
		}
		path = path[:len(path)-1]
	}
	walk(a.graph)
	return paths
}

// DetectCircularDependencies runs a DFS with a recursion stack of package
// names. When a dependency's name matches an entry already on the stack,
// the cycle fragment from that entry onward (plus the repeated name) is
// recorded, deduplicated by node-set equality.
func (a *Analyzer) DetectCircularDependencies() []CircularDependency {
	if a.graph == nil {
		return nil
	}
	var found []CircularDependency
	visited := map[string]bool{}
	var recStack []string

	var dfs func(n *Node)
	dfs = func(n *Node) {
		key := n.Name + "@" + n.Version
		recStack = append(recStack, n.Name)
		visited[key] = true

		for _, dep := range n.Dependencies {
			depKey := dep.Name + "@" + dep.Version
			if onStack(recStack, dep.Name) {
				idx := indexOf(recStack, dep.Name)
				cycle := append(append([]string{}, recStack[idx:]...), dep.Name)
				if !hasEquivalentCycle(found, cycle) {
					found = append(found, CircularDependency{Cycle: cycle, Severity: ecosystem.SeverityMedium})
				}
			} else if !visited[depKey] {
				dfs(dep)
			}
		}

		recStack = recStack[:len(recStack)-1]
	}
	dfs(a.graph)
	return found
}

func onStack(stack []string, name string) bool {
	for _, s := range stack {
		if s == name {
			return true
		}
	}
	return false
}

func indexOf(stack []string, name string) int {
	for i, s := range stack {
		if s == name {
			return i
		}
	}
	return -1
}

func hasEquivalentCycle(existing []CircularDependency, cycle []string) bool {
	want := toSet(cycle)
	for _, cd := range existing {
		if setsEqual(toSet(cd.Cycle), want) {
			return true
		}
	}
	return false
}

func toSet(items []string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, i := range items {
		m[i] = true
	}
	return m
}

func setsEqual(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

// DetectVersionConflicts walks the tree collecting, per package name, the
// set of distinct resolved versions and the path under which each
// occurred, emitting one record per name whose version set has size >= 2.
func (a *Analyzer) DetectVersionConflicts() []VersionConflict {
	if a.graph == nil {
		return nil
	}

	versions := map[string]map[string][][]string{}
	var path []string
	var walk func(n *Node)
	walk = func(n *Node) {
		path = append(path, n.Name)
		if versions[n.Name] == nil {
			versions[n.Name] = map[string][][]string{}
		}
		cp := make([]string, len(path))
		copy(cp, path)
		versions[n.Name][n.Version] = append(versions[n.Name][n.Version], cp)

		for _, child := range n.Dependencies {
			walk(child)
		}
		path = path[:len(path)-1]
	}
	walk(a.graph)

	var conflicts []VersionConflict
	for name, byVersion := range versions {
		if len(byVersion) < 2 {
			continue
		}
		var vs []string
		var paths [][]string
		for v, ps := range byVersion {
			vs = append(vs, v)
			paths = append(paths, ps...)
		}
		conflicts = append(conflicts, VersionConflict{
			Package:  name,
			Versions: vs,
			Paths:    paths,
			Severity: ecosystem.SeverityMedium,
		})
	}
	return conflicts
}

// toDoc serializes a.graph into a bounded Doc, tracking visited name@version
// keys on its own descent (a fresh copy passed to each recursive call, not
// a shared set) so a genuine cycle along one root-to-node path is replaced
// with a circular_reference stub instead of re-expanding indefinitely.
func (a *Analyzer) toDoc(maxDepth int) *Doc {
	if a.graph == nil {
		return &Doc{Name: "root", Version: "1.0.0", Ecosystem: "unknown", Dependencies: map[string]*SerializedNode{}}
	}
	deps := make(map[string]*SerializedNode, len(a.graph.Dependencies))
	visited := map[string]bool{a.graph.Name + "@" + a.graph.Version: true}
	for name, child := range a.graph.Dependencies {
		deps[name] = serialize(child, visited, maxDepth)
	}
	return &Doc{
		Name:         a.graph.Name,
		Version:      a.graph.Version,
		Ecosystem:    a.graph.Ecosystem,
		Depth:        a.graph.Depth,
		Dependencies: deps,
	}
}

func serialize(n *Node, visited map[string]bool, maxDepth int) *SerializedNode {
	key := n.Name + "@" + n.Version
	if visited[key] || n.Depth >= maxDepth {
		return &SerializedNode{
			Name:              n.Name,
			Version:           n.Version,
			Ecosystem:         n.Ecosystem,
			Depth:             n.Depth,
			Dependencies:      map[string]*SerializedNode{},
			CircularReference: visited[key],
		}
	}

	next := make(map[string]bool, len(visited)+1)
	for k := range visited {
		next[k] = true
	}
	next[key] = true

	deps := make(map[string]*SerializedNode, len(n.Dependencies))
	for name, child := range n.Dependencies {
		deps[name] = serialize(child, next, maxDepth)
	}
	return &SerializedNode{
		Name:         n.Name,
		Version:      n.Version,
		Ecosystem:    n.Ecosystem,
		Depth:        n.Depth,
		Dependencies: deps,
	}
}

// fmtNode renders a single "name@version" label, used by both text
// visualizers.
func fmtNode(n *Node) string {
	return fmt.Sprintf("%s@%s", n.Name, n.Version)
}
