package depgraph

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goccy/go-graphviz"
)

// DefaultVisualizeDepth matches the Python original's visualize_graph
// default.
const DefaultVisualizeDepth = 3

// VisualizeGraph renders the built tree as a plain-text directed-graph
// description: one line per node, one line per edge, with trailing comments
// listing detected cycles and conflicts. The format is informational only
// and not meant to round-trip; callers needing a renderable diagram should
// use ToDOT (or RenderSVG).
func (a *Analyzer) VisualizeGraph(maxDepth int) string {
	if maxDepth <= 0 {
		maxDepth = DefaultVisualizeDepth
	}
	if a.graph == nil {
		return "graph: (no graph available)"
	}

	var buf bytes.Buffer
	buf.WriteString("graph dependencies {\n")

	seen := map[string]bool{}
	var walk func(n *Node, depth int)
	walk = func(n *Node, depth int) {
		if depth > maxDepth {
			return
		}
		label := fmtNode(n)
		if !seen[label] {
			fmt.Fprintf(&buf, "  %s\n", label)
			seen[label] = true
		}
		for _, child := range n.Dependencies {
			fmt.Fprintf(&buf, "  %s -> %s\n", label, fmtNode(child))
			walk(child, depth+1)
		}
	}
	walk(a.graph, 0)

	if len(a.circular) > 0 {
		buf.WriteString("\n  // Circular Dependencies Detected\n")
		for i, cd := range a.circular {
			if i >= 3 {
				break
			}
			fmt.Fprintf(&buf, "  // Cycle %d: %s\n", i+1, cd.Description())
		}
	}

	if len(a.conflicts) > 0 {
		buf.WriteString("\n  // Version Conflicts Detected\n")
		for i, vc := range a.conflicts {
			if i >= 3 {
				break
			}
			fmt.Fprintf(&buf, "  // Conflict %d: %s (%v)\n", i+1, vc.Package, vc.Versions)
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

// ToDOT renders the built tree as Graphviz DOT source, independent of
// maxDepth truncation (the full tree is shown). A single visited set
// expands each name@version once, so cycles and diamonds can never produce
// an unterminated walk.
func (a *Analyzer) ToDOT() string {
	var buf bytes.Buffer
	buf.WriteString("digraph dependencies {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white];\n\n")

	if a.graph != nil {
		visited := map[string]bool{}
		var walk func(n *Node)
		walk = func(n *Node) {
			key := fmtNode(n)
			if visited[key] {
				return
			}
			visited[key] = true
			fmt.Fprintf(&buf, "  %q;\n", key)
			for _, child := range n.Dependencies {
				fmt.Fprintf(&buf, "  %q -> %q;\n", key, fmtNode(child))
			}
			for _, child := range n.Dependencies {
				walk(child)
			}
		}
		walk(a.graph)
	}

	buf.WriteString("}\n")
	return buf.String()
}

// RenderSVG renders the built tree directly to Graphviz SVG, using ToDOT
// as the intermediate representation.
func (a *Analyzer) RenderSVG(ctx context.Context) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(a.ToDOT()))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}
