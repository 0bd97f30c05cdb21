package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/coverpulse/coverpulse/internal/app"
)

var (
	cleanupDryRun    bool
	cleanupBatchSize int
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete expired observations and acceptance records",
	Long:  "Removes observations and acceptance records whose retention TTL has lapsed, in batches. Votes on deleted observations cascade.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		var report app.CleanupReport
		err := postAdmin(ctx, "/admin/cleanup", map[string]any{
			"dry_run":    cleanupDryRun,
			"batch_size": cleanupBatchSize,
		}, &report)
		if err != nil {
			return err
		}

		return printReport(report)
	},
}

func init() {
	cleanupCmd.Flags().BoolVar(&cleanupDryRun, "dry-run", false, "report what would be deleted without deleting")
	cleanupCmd.Flags().IntVar(&cleanupBatchSize, "batch-size", 0, "records per delete batch (0 = server default)")
	rootCmd.AddCommand(cleanupCmd)
}
