package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/coverpulse/coverpulse/internal/app"
)

var (
	sweepDryRun    bool
	sweepLimit     int
	sweepBatchSize int
)

var decaySweepCmd = &cobra.Command{
	Use:   "decay-sweep",
	Short: "Recompute confidence scores for aging acceptance records",
	Long:  "Walks all scored acceptance records and persists any score changes caused by the passage of time. Safe to re-run; a second sweep on the same day changes nothing.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		var report app.SweepReport
		err := postAdmin(ctx, "/admin/decay-sweep", map[string]any{
			"dry_run":    sweepDryRun,
			"limit":      sweepLimit,
			"batch_size": sweepBatchSize,
		}, &report)
		if err != nil {
			return err
		}

		return printReport(report)
	},
}

func init() {
	decaySweepCmd.Flags().BoolVar(&sweepDryRun, "dry-run", false, "report what would change without writing")
	decaySweepCmd.Flags().IntVar(&sweepLimit, "limit", 0, "maximum records to process (0 = all)")
	decaySweepCmd.Flags().IntVar(&sweepBatchSize, "batch-size", 0, "records per batch (0 = server default)")
	rootCmd.AddCommand(decaySweepCmd)
}
