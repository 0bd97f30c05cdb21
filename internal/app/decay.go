package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/coverpulse/coverpulse/internal/domain"
	"github.com/coverpulse/coverpulse/internal/metrics"
	"github.com/coverpulse/coverpulse/internal/scoring"
)

const defaultSweepBatchSize = 100

// SweepOptions tunes one decay sweep run.
type SweepOptions struct {
	// DryRun recomputes and reports without writing.
	DryRun bool
	// Limit caps the number of records processed; 0 means all.
	Limit int
	// BatchSize is the keyset page size.
	BatchSize int
	// Progress, when set, is called after each batch with the running total.
	Progress func(processed int)
}

// SweepReport summarizes one decay sweep run.
type SweepReport struct {
	Processed int           `json:"processed"`
	Updated   int           `json:"updated"`
	Unchanged int           `json:"unchanged"`
	Errors    int           `json:"errors"`
	DryRun    bool          `json:"dry_run"`
	Duration  time.Duration `json:"duration"`
}

// RunDecaySweep re-scores acceptance records in keyset-paginated batches so
// recency decay lands without waiting for the next write. Per-record failures
// are counted and logged; the sweep keeps going.
func (s *Service) RunDecaySweep(ctx context.Context, opts SweepOptions) (*SweepReport, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultSweepBatchSize
	}

	start := s.clock.Now()
	report := &SweepReport{DryRun: opts.DryRun}
	defer func() {
		report.Duration = s.clock.Since(start)
		metrics.DecaySweepRunsTotal.Inc()
		metrics.DecaySweepDurationSeconds.Observe(report.Duration.Seconds())
	}()

	afterID := uuid.Nil
	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		batchSize := opts.BatchSize
		if opts.Limit > 0 && opts.Limit-report.Processed < batchSize {
			batchSize = opts.Limit - report.Processed
		}
		if batchSize <= 0 {
			break
		}

		records, err := s.acceptances.ListScorable(ctx, afterID, batchSize)
		if err != nil {
			return report, err
		}
		if len(records) == 0 {
			break
		}

		for i := range records {
			s.sweepRecord(ctx, &records[i], opts.DryRun, report)
		}
		afterID = records[len(records)-1].ID
		report.Processed += len(records)

		if opts.Progress != nil {
			opts.Progress(report.Processed)
		}
		if len(records) < batchSize {
			break
		}
	}

	slog.Info("decay sweep finished",
		"processed", report.Processed,
		"updated", report.Updated,
		"unchanged", report.Unchanged,
		"errors", report.Errors,
		"dry_run", opts.DryRun)
	return report, nil
}

func (s *Service) sweepRecord(ctx context.Context, rec *domain.AcceptanceRecord, dryRun bool, report *SweepReport) {
	observations, err := s.ledger.ListForPair(ctx, rec.ProviderID, rec.PlanID)
	if err != nil {
		report.Errors++
		metrics.DecaySweepRecordsTotal.WithLabelValues("error").Inc()
		slog.Error("decay sweep failed to load observations",
			"record_id", rec.ID.String(), "error", err)
		return
	}

	specialty, err := s.providerSpecialty(ctx, rec.ProviderID)
	if err != nil {
		if !errors.Is(err, domain.ErrProviderNotFound) {
			report.Errors++
			metrics.DecaySweepRecordsTotal.WithLabelValues("error").Inc()
			slog.Error("decay sweep failed to load specialty",
				"record_id", rec.ID.String(), "error", err)
			return
		}
		specialty = ""
	}

	result := scoring.Score(rec, observations, specialty, s.clock.Now().UTC())
	rescore := domain.Rescore{
		Status:            result.Status,
		Score:             result.Score,
		Level:             result.Level,
		VerificationCount: result.ObservationCount,
		LastVerifiedAt:    result.LastVerifiedAt,
		ExpiresAt:         rec.ExpiresAt,
	}

	changed := rescore.Status != rec.Status || rescore.Score != rec.Score ||
		rescore.Level != rec.Level || rescore.VerificationCount != rec.VerificationCount
	if dryRun {
		if changed {
			report.Updated++
		} else {
			report.Unchanged++
		}
		return
	}

	changed, err = s.acceptances.ApplyRescore(ctx, rec.ID, rescore)
	if err != nil {
		report.Errors++
		metrics.DecaySweepRecordsTotal.WithLabelValues("error").Inc()
		slog.Error("decay sweep failed to apply rescore",
			"record_id", rec.ID.String(), "error", err)
		return
	}
	if changed {
		report.Updated++
		metrics.DecaySweepRecordsTotal.WithLabelValues("updated").Inc()
		s.invalidateCache(ctx, rec.ProviderID, rec.PlanID)
	} else {
		report.Unchanged++
		metrics.DecaySweepRecordsTotal.WithLabelValues("unchanged").Inc()
	}
}
