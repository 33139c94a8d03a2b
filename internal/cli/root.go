// Package cli provides the command-line interface for modelseed.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/raphaelgruber/modelseed-go/internal/config"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose    bool
	configFile string

	// Global config and logger, initialized in PersistentPreRunE.
	cfg        config.Config
	logger     *slog.Logger
	logCleanup func() error
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "modelseed",
	Short: "AI model metadata seeding pipeline",
	Long: `Modelseed extracts AI model metadata from local sources (an Ollama
server or static JSON files), enriches it, maps tags and fields to a
destination catalog's schema, seeds the catalog API, and archives what
was accepted.

Each stage reads records from a directory-backed store and writes to
the next one, so a run can be resumed, repeated, or replayed per stage.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		cfg = config.Load()
		if configFile != "" {
			if err := cfg.ApplyFile(configFile); err != nil {
				return err
			}
		}
		if verbose {
			cfg.LogLevel = slog.LevelDebug
		}

		logger, logCleanup = config.SetupLogger(cfg.LogFile, cfg.LogLevel)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCleanup != nil {
			if err := logCleanup(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
			}
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML config file overlaying environment values")

	// Add subcommands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(tagsCmd)
	rootCmd.AddCommand(cleanupCmd)
}

// reloadConfig rebuilds the configuration after a command mutated the
// environment (for example a --data-dir override).
func reloadConfig() config.Config {
	c := config.Load()
	if configFile != "" {
		if err := c.ApplyFile(configFile); err != nil {
			exitWithError("apply config file: %v", err)
		}
	}
	if verbose {
		c.LogLevel = slog.LevelDebug
	}
	return c
}

// exitWithError prints an error message and exits with code 1.
func exitWithError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
