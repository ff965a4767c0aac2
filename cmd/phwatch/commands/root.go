package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose    bool
	jsonOutput bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "phwatch",
	Short: "phwatch - intraday power contract signal monitor",
	Long: `phwatch Unified CLI

Reads per-minute snapshots and trade signals of intraday power contracts
(codes like PH25112123) and serves the derived market views.

Usage:
  go run ./cmd/phwatch [command]

Examples:
  go run ./cmd/phwatch api
  go run ./cmd/phwatch structure
  go run ./cmd/phwatch inspect PH25112123
  go run ./cmd/phwatch timeline --limit 20
  go run ./cmd/phwatch status`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print results as JSON")
}
