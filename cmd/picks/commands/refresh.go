package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// refreshCmd represents the refresh command
var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Fetch news, upsert events and rebuild the snapshot",
	Long: `Fetches the configured news feed (falling back to the local sample data),
upserts the derived NEWS events and rebuilds the pick snapshot.

Example:
  go run ./cmd/picks refresh`,
	RunE: runRefresh,
}

func init() {
	rootCmd.AddCommand(refreshCmd)
}

func runRefresh(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	result, err := a.ingest.RefreshNews(ctx)
	if err != nil {
		return fmt.Errorf("refresh: %w", err)
	}

	fmt.Printf("Refreshed %d headlines, %d events upserted\n", result.NewsCount, result.EventsUpserted)
	fmt.Printf("Snapshot rebuilt for %s: %d picks\n", result.Date, result.PicksCount)
	return nil
}
