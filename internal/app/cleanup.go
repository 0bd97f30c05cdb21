package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/coverpulse/coverpulse/internal/metrics"
)

const defaultCleanupBatchSize = 500

// CleanupOptions tunes one retention cleanup run.
type CleanupOptions struct {
	DryRun    bool
	BatchSize int
}

// CleanupReport summarizes one retention cleanup run.
type CleanupReport struct {
	Observations      int           `json:"observations"`
	AcceptanceRecords int           `json:"acceptance_records"`
	DryRun            bool          `json:"dry_run"`
	Duration          time.Duration `json:"duration"`
}

// RunCleanup removes expired observations (their votes cascade) and expired
// acceptance records in bounded batches.
func (s *Service) RunCleanup(ctx context.Context, opts CleanupOptions) (*CleanupReport, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultCleanupBatchSize
	}

	start := s.clock.Now()
	report := &CleanupReport{DryRun: opts.DryRun}
	now := s.clock.Now().UTC()

	observations, err := s.drainExpired(ctx, s.ledger.DeleteExpired, now, opts)
	if err != nil {
		return report, err
	}
	report.Observations = observations

	records, err := s.drainExpired(ctx, s.acceptances.DeleteExpired, now, opts)
	if err != nil {
		return report, err
	}
	report.AcceptanceRecords = records

	if !opts.DryRun {
		metrics.CleanupDeletedTotal.WithLabelValues("observation").Add(float64(observations))
		metrics.CleanupDeletedTotal.WithLabelValues("acceptance_record").Add(float64(records))
	}

	report.Duration = s.clock.Since(start)
	slog.Info("retention cleanup finished",
		"observations", report.Observations,
		"acceptance_records", report.AcceptanceRecords,
		"dry_run", opts.DryRun,
		"duration", report.Duration)
	return report, nil
}

type deleteExpiredFunc func(ctx context.Context, now time.Time, batchSize int, dryRun bool) (int, error)

// drainExpired repeats bounded deletes until a batch comes back short. Dry
// runs stop after one batch-sized count; there is nothing to drain.
func (s *Service) drainExpired(ctx context.Context, deleteBatch deleteExpiredFunc, now time.Time, opts CleanupOptions) (int, error) {
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := deleteBatch(ctx, now, opts.BatchSize, opts.DryRun)
		if err != nil {
			return total, err
		}
		total += n
		if opts.DryRun || n < opts.BatchSize {
			return total, nil
		}
	}
}
