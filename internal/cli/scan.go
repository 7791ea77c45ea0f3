package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/stacktower/pkg/audit"
	"github.com/matzehuels/stacktower/pkg/ecosystem"
	_ "github.com/matzehuels/stacktower/pkg/ecosystem/npm"
	_ "github.com/matzehuels/stacktower/pkg/ecosystem/pypi"
)

// scanCommand creates the "scan" command, which runs the full audit
// pipeline against a manifest file and prints the findings.
func (c *CLI) scanCommand() *cobra.Command {
	var (
		ecosystemName string
		maxDepth      int
		threshold     float64
		scoreRep      bool
		cacheDirFlag  string
		format        string
	)

	cmd := &cobra.Command{
		Use:   "scan <manifest>",
		Short: "Audit a manifest's transitive dependencies for supply-chain risk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manifestPath := args[0]
			ctx := cmd.Context()

			c.Logger.Info("registered ecosystems", "ecosystems", ecosystem.All())

			cache := c.newCache(cacheDirFlag)
			defer cache.Close()

			orch := audit.New(cache, ecosystem.Default, c.Logger)

			prog := newProgress(c.Logger)
			report, err := orch.Run(ctx, audit.Options{
				ManifestPath:        manifestPath,
				Ecosystem:           ecosystemName,
				MaxDepth:            maxDepth,
				ConfidenceThreshold: threshold,
				ScoreReputation:     scoreRep,
				Logger:              c.Logger,
			})
			if err != nil {
				return fmt.Errorf("scan %s: %w", manifestPath, err)
			}
			prog.done(fmt.Sprintf("scanned %s", manifestPath))

			if format == "json" {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}

			printScanReport(report)
			return nil
		},
	}

	cmd.Flags().StringVar(&ecosystemName, "ecosystem", "", "force a specific ecosystem instead of auto-detecting (npm, pypi)")
	cmd.Flags().IntVar(&maxDepth, "max-depth", audit.DefaultMaxDepth, "maximum transitive resolution depth")
	cmd.Flags().Float64Var(&threshold, "confidence-threshold", audit.DefaultConfidenceThreshold, "drop findings below this confidence")
	cmd.Flags().BoolVar(&scoreRep, "score-reputation", false, "fetch reputation signals for every resolved package (slower)")
	cmd.Flags().StringVar(&cacheDirFlag, "cache-dir", "", "override the cache directory (empty uses the XDG default)")
	cmd.Flags().StringVar(&format, "format", "text", "output format: text or json")

	return cmd
}

func printScanReport(report *audit.Report) {
	if len(report.Findings) == 0 {
		printSuccess("No findings above the confidence threshold")
	} else {
		for _, f := range report.Findings {
			printWarning("[%s/%s] %s — %s (confidence %.2f)", f.Package, f.Version, f.FindingType, f.Severity, f.Confidence)
			for _, e := range f.Evidence {
				printDetail("%s", e)
			}
		}
	}
	printNewline()
	printKeyValue("Packages", fmt.Sprintf("%d", report.Summary.TotalPackages))
	printKeyValue("Ecosystems", fmt.Sprintf("%v", report.Summary.EcosystemsAnalyzed))
	printStats(report.Summary.TotalPackages, len(report.Findings), report.Summary.CacheStatistics.TotalHits > 0)
}
