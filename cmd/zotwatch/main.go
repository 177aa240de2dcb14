// Package main provides the zotwatch CLI entry point.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zotwatch/zotwatch/internal/config"
	"github.com/zotwatch/zotwatch/internal/index"
)

// Version is set at build time via ldflags
var Version = "dev"

var (
	flagBaseDir string
	flagVerbose bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Print the error since we have SilenceErrors: true
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps sentinel failures to their dedicated exit codes.
func exitCode(err error) int {
	switch {
	case errors.Is(err, config.ErrInvalidConfig):
		return ExitConfigError
	case errors.Is(err, index.ErrIndexNotFound):
		return ExitNoProfile
	}
	return ExitError
}

var rootCmd = &cobra.Command{
	Use:   "zotwatch",
	Short: "Personalized academic paper recommendations",
	Long: `zotwatch watches preprint servers and ranks new papers against your
Zotero library.

Core features:
  - Incremental Zotero sync into a local profile store
  - Embedding-based similarity index over your library
  - Multi-factor ranking of arXiv/bioRxiv/medRxiv candidates
  - HTML reports, RSS feeds, AI summaries, and Zotero push-back`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagBaseDir, "base-dir", "", "Project base directory (default: current directory)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.Version = Version
}

// app bundles what every command needs: resolved paths, settings, and a
// configured logger. Secrets from .env are in the environment after setup.
type app struct {
	paths    config.Paths
	settings *config.Settings
	logger   *zap.Logger
}

func setupApp() (*app, error) {
	base := flagBaseDir
	if base == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getting current directory: %w", err)
		}
		base = cwd
	}

	paths := config.NewPaths(base)

	// Missing .env is fine; keys may come from the environment proper.
	godotenv.Load(paths.EnvFile())

	logger, err := newLogger(flagVerbose)
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	settings, err := config.Load(base)
	if err != nil {
		return nil, err
	}

	return &app{paths: paths, settings: settings, logger: logger}, nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.DisableStacktrace = true
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}
