package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// rebuildCmd represents the rebuild command
var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the pick snapshot once",
	Long: `Determines the latest data date, scores every candidate instrument and
atomically replaces the stored pick snapshot.

Example:
  go run ./cmd/picks rebuild`,
	RunE: runRebuild,
}

func init() {
	rootCmd.AddCommand(rebuildCmd)
}

func runRebuild(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	result, err := a.rebuilder.Rebuild(ctx)
	if err != nil {
		return fmt.Errorf("rebuild: %w", err)
	}

	fmt.Printf("Snapshot rebuilt for %s: %d picks\n", result.DateKey(), result.PicksCount)
	return nil
}
