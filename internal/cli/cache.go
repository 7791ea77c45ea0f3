package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the registry/reputation response cache",
	}

	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())
	cmd.AddCommand(c.cacheStatsCommand())

	return cmd
}

// cacheClearCommand creates the "cache clear" subcommand.
func (c *CLI) cacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all cached registry and reputation entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cache := c.newCache("")
			defer cache.Close()

			before := cache.Stats(ctx)
			cache.ClearAll(ctx)
			printSuccess("Cleared %d cached entries", before.TotalEntries)
			return nil
		},
	}
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the cache directory path",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := cacheDir()
			if err != nil {
				return fmt.Errorf("get cache dir: %w", err)
			}
			fmt.Println(dir)
			return nil
		},
	}
}

// cacheStatsCommand creates the "cache stats" subcommand.
func (c *CLI) cacheStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print cache hit and size statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cache := c.newCache("")
			defer cache.Close()

			stats := cache.Stats(ctx)
			printKeyValue("Backend", stats.Backend)
			printKeyValue("Entries", fmt.Sprintf("%d (%d expired)", stats.TotalEntries, stats.ExpiredEntries))
			printKeyValue("Hits", fmt.Sprintf("%d", stats.TotalHits))
			printKeyValue("Size", fmt.Sprintf("%d / %d bytes (%.1f%%)", stats.SizeBytes, stats.MaxSizeBytes, stats.UtilizationPercent))
			return nil
		},
	}
}
