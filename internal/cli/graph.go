package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/stacktower/pkg/depgraph"
	"github.com/matzehuels/stacktower/pkg/ecosystem"
	_ "github.com/matzehuels/stacktower/pkg/ecosystem/npm"
	_ "github.com/matzehuels/stacktower/pkg/ecosystem/pypi"
	"github.com/matzehuels/stacktower/pkg/resolver"
)

// graphCommand creates the "graph" command, which resolves a manifest's
// full transitive dependency tree and prints it as text, DOT, or SVG.
func (c *CLI) graphCommand() *cobra.Command {
	var (
		ecosystemName string
		maxDepth      int
		cacheDirFlag  string
		format        string
	)

	cmd := &cobra.Command{
		Use:   "graph <manifest>",
		Short: "Resolve and print a manifest's transitive dependency graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manifestPath := args[0]
			ctx := cmd.Context()

			name, err := resolveEcosystemName(manifestPath, ecosystemName)
			if err != nil {
				return err
			}

			cache := c.newCache(cacheDirFlag)
			defer cache.Close()

			res := resolver.New(cache)
			g := depgraph.New(ecosystem.Default, res)

			prog := newProgress(c.Logger)
			doc, err := g.BuildGraph(ctx, manifestPath, name, maxDepth)
			if err != nil {
				return fmt.Errorf("build graph for %s: %w", manifestPath, err)
			}
			prog.done(fmt.Sprintf("resolved %s", manifestPath))

			switch format {
			case "dot":
				fmt.Println(g.ToDOT())
			case "svg":
				svg, err := g.RenderSVG(ctx)
				if err != nil {
					return fmt.Errorf("render svg: %w", err)
				}
				os.Stdout.Write(svg)
			case "json":
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(doc)
			default:
				fmt.Println(g.VisualizeGraph(maxDepth))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&ecosystemName, "ecosystem", "", "force a specific ecosystem instead of auto-detecting (npm, pypi)")
	cmd.Flags().IntVar(&maxDepth, "max-depth", 10, "maximum transitive resolution depth")
	cmd.Flags().StringVar(&cacheDirFlag, "cache-dir", "", "override the cache directory (empty uses the XDG default)")
	cmd.Flags().StringVar(&format, "format", "text", "output format: text, dot, svg, or json")

	return cmd
}

// resolveEcosystemName returns ecosystemName unchanged when set, otherwise
// auto-detects it from the manifest's containing directory.
func resolveEcosystemName(manifestPath, ecosystemName string) (string, error) {
	if ecosystemName != "" {
		return ecosystemName, nil
	}
	a, ok := ecosystem.DetectEcosystem(manifestDir(manifestPath))
	if !ok {
		return "", fmt.Errorf("could not detect ecosystem for %s", manifestPath)
	}
	return a.EcosystemName(), nil
}

// manifestDir returns the directory portion of a manifest path, "." when
// the path has no directory component.
func manifestDir(manifestPath string) string {
	for i := len(manifestPath) - 1; i >= 0; i-- {
		if manifestPath[i] == '/' {
			if i == 0 {
				return "/"
			}
			return manifestPath[:i]
		}
	}
	return "."
}
