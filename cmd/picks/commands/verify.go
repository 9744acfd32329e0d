package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// verifyCmd represents the verify command
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Recompute the stored snapshot and report divergence",
	Long: `Recomputes every pick for the stored snapshot date from raw inputs and
compares the scores against what is persisted. Exits non-zero when the
snapshot cannot be reproduced.

Example:
  go run ./cmd/picks verify
  go run ./cmd/picks verify --date 2026-03-10`,
	RunE: runVerify,
}

var verifyDate string

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().StringVar(&verifyDate, "date", "", "snapshot date YYYY-MM-DD (default: stored snapshot date)")
}

func runVerify(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	var date time.Time
	if verifyDate != "" {
		date, err = time.Parse("2006-01-02", verifyDate)
		if err != nil {
			return fmt.Errorf("invalid --date %q: %w", verifyDate, err)
		}
	} else {
		stored, ok, err := a.pickRepo.LatestDate(ctx)
		if err != nil {
			return fmt.Errorf("resolve snapshot date: %w", err)
		}
		if !ok {
			return fmt.Errorf("no snapshot stored, nothing to verify")
		}
		date = stored
	}

	report, err := a.verifier.Verify(ctx, date)
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}

	fmt.Printf("Verified %d picks for %s\n", report.Checked, report.Date.Format("2006-01-02"))
	if report.OK() {
		fmt.Println("Snapshot matches recomputation")
		return nil
	}

	for _, m := range report.Mismatches {
		switch {
		case m.Stored == nil:
			fmt.Printf("  %s: missing from snapshot (recomputed %.2f)\n", m.Code, *m.Recomputed)
		case m.Recomputed == nil:
			fmt.Printf("  %s: stored %.2f no longer qualifies\n", m.Code, *m.Stored)
		default:
			fmt.Printf("  %s: stored %.2f, recomputed %.2f\n", m.Code, *m.Stored, *m.Recomputed)
		}
	}
	return fmt.Errorf("%d mismatches found", len(report.Mismatches))
}
