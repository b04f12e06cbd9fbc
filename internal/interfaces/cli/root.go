// Package cli implements the etl command tree.
package cli

import (
	"github.com/spf13/cobra"
)

const version = "0.1.0"

// globalFlags are shared by every subcommand
type globalFlags struct {
	configPath string
	logLevel   string
}

// NewRootCommand builds the etl command tree
func NewRootCommand() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:     "etl",
		Short:   "E-commerce star-schema ETL",
		Version: version,
		Long: `Extracts the Olist e-commerce datasets, cleans and enriches them, and loads
a staging layer plus a star schema (one order fact, five dimensions) into
PostgreSQL. Re-running over the same input leaves the analytics layer unchanged.`,
		Example: `  # Full run, applying pending migrations first
  $ etl run --migrate

  # Transform only, print the dataset summary
  $ etl run --no-load

  # Check fact foreign keys against the dimensions
  $ etl verify

  # Run nightly until interrupted
  $ etl schedule --cron "0 2 * * *"`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true

	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "config file (default: ./config.toml)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")

	root.AddCommand(newRunCommand(flags))
	root.AddCommand(newVerifyCommand(flags))
	root.AddCommand(newScheduleCommand(flags))
	return root
}

// Execute runs the root command
func Execute() error {
	return NewRootCommand().Execute()
}
