package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	weightsPath string
	verbose     bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "picks",
	Short: "kabupicks - daily instrument scoring and pick ranking",
	Long: `kabupicks CLI

Scores instruments from tape signals and corporate events, keeps a ranked
daily pick snapshot in PostgreSQL and serves it over HTTP.

Usage:
  go run ./cmd/picks [command]

Examples:
  go run ./cmd/picks api
  go run ./cmd/picks rebuild
  go run ./cmd/picks refresh
  go run ./cmd/picks verify
  go run ./cmd/picks seed --dir data/sample`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&weightsPath, "weights", "", "weight config file (default config/weights.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
