// Package cli implements the auditor command-line interface.
//
// The CLI exposes three subcommands: scan, which runs the full audit
// pipeline and prints findings; graph, which prints the resolved
// dependency tree as text or Graphviz DOT; and cache, which inspects or
// clears the on-disk cache. Logging goes through
// github.com/charmbracelet/log: every command writes to the CLI struct's
// shared Logger.
package cli

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/stacktower/internal/config"
	"github.com/matzehuels/stacktower/pkg/buildinfo"
	"github.com/matzehuels/stacktower/pkg/cache"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "auditor"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
	Config config.Config
}

// New creates a new CLI instance with a default logger and environment
// bound configuration.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: log.NewWithOptions(w, log.Options{
			ReportTimestamp: true,
			TimeFormat:      "15:04:05.00",
			Level:           level,
		}),
		Config: config.Load(),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "auditor",
		Short: "auditor audits npm and PyPI supply chains for risk",
		Long: `auditor resolves a project's transitive dependencies, screens them
against known-malicious packages and install-script heuristics, scores
their reputation, and reports the findings.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())

	root.AddCommand(c.scanCommand())
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.cacheCommand())

	return root
}

// =============================================================================
// Cache Factory
// =============================================================================

// newCache builds the cache backend for CLI use. When the environment has
// disabled caching the cache is memory-only, even if dir is set; otherwise
// an explicit dir wins over the XDG cache directory.
func (c *CLI) newCache(dir string) *cache.Cache {
	if dir == "" && c.Config.CacheEnabled {
		if d, err := cacheDir(); err == nil {
			dir = d
		}
	}
	if !c.Config.CacheEnabled {
		dir = ""
	}
	return cache.New(cache.Config{Dir: dir, Logger: c.Logger})
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using the XDG standard
// ($XDG_CACHE_HOME/auditor or ~/.cache/auditor).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
