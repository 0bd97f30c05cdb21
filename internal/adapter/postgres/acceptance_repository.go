package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/coverpulse/coverpulse/internal/domain"
)

// acceptanceColumns must match the Scan order in scanAcceptance.
const acceptanceColumns = `id, provider_id, plan_id, status, score, level,
	verification_count, last_verified_at, created_at, updated_at, expires_at`

// AcceptanceRepo implements domain.AcceptanceRepository backed by PostgreSQL.
type AcceptanceRepo struct {
	db DB
}

func NewAcceptanceRepo(db DB) *AcceptanceRepo {
	return &AcceptanceRepo{db: db}
}

func scanAcceptance(row pgx.Row) (*domain.AcceptanceRecord, error) {
	var rec domain.AcceptanceRecord
	err := row.Scan(
		&rec.ID, &rec.ProviderID, &rec.PlanID, &rec.Status, &rec.Score, &rec.Level,
		&rec.VerificationCount, &rec.LastVerifiedAt, &rec.CreatedAt, &rec.UpdatedAt, &rec.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *AcceptanceRepo) GetByPair(ctx context.Context, providerID, planID uuid.UUID) (*domain.AcceptanceRecord, error) {
	record, err := scanAcceptance(r.db.QueryRow(ctx, `
		SELECT `+acceptanceColumns+` FROM acceptance_records
		WHERE provider_id = $1 AND plan_id = $2
	`, providerID, planID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAcceptanceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get acceptance record: %w", err)
	}
	return record, nil
}

func (r *AcceptanceRepo) ListScorable(ctx context.Context, afterID uuid.UUID, limit int) ([]domain.AcceptanceRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+acceptanceColumns+` FROM acceptance_records
		WHERE id > $1 AND verification_count > 0
		ORDER BY id
		LIMIT $2
	`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list scorable records: %w", err)
	}
	defer rows.Close()

	var records []domain.AcceptanceRecord
	for rows.Next() {
		rec, err := scanAcceptance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan acceptance record: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read acceptance records: %w", err)
	}
	return records, nil
}

func (r *AcceptanceRepo) ApplyRescore(ctx context.Context, id uuid.UUID, rescore domain.Rescore) (bool, error) {
	// The WHERE clause makes already-current records a no-op, which keeps the
	// decay sweep idempotent and cheap on quiet data.
	tag, err := r.db.Exec(ctx, `
		UPDATE acceptance_records
		SET status = $2, score = $3, level = $4, verification_count = $5,
			last_verified_at = $6, expires_at = $7, updated_at = NOW()
		WHERE id = $1 AND (
			status IS DISTINCT FROM $2 OR score IS DISTINCT FROM $3 OR level IS DISTINCT FROM $4
			OR verification_count IS DISTINCT FROM $5 OR last_verified_at IS DISTINCT FROM $6
		)
	`, id, rescore.Status, rescore.Score, rescore.Level, rescore.VerificationCount,
		rescore.LastVerifiedAt, rescore.ExpiresAt)
	if err != nil {
		return false, fmt.Errorf("failed to apply rescore: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *AcceptanceRepo) DeleteExpired(ctx context.Context, now time.Time, batchSize int, dryRun bool) (int, error) {
	if dryRun {
		var count int
		err := r.db.QueryRow(ctx, `
			SELECT COUNT(*) FROM (
				SELECT 1 FROM acceptance_records WHERE expires_at <= $1 LIMIT $2
			) batch
		`, now, batchSize).Scan(&count)
		if err != nil {
			return 0, fmt.Errorf("failed to count expired acceptance records: %w", err)
		}
		return count, nil
	}

	tag, err := r.db.Exec(ctx, `
		DELETE FROM acceptance_records WHERE id IN (
			SELECT id FROM acceptance_records WHERE expires_at <= $1 LIMIT $2
		)
	`, now, batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired acceptance records: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
