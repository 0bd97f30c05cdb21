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

// observationColumns must match the Scan order in scanObservation.
const observationColumns = `id, provider_id, plan_id, fingerprint, claimed, accepting_new_patients,
	note, evidence_url, submitter_email, source, approved, upvotes, downvotes, created_at, expires_at`

// LedgerRepo implements domain.LedgerRepository backed by PostgreSQL. Both
// mutating methods take the pair's acceptance row lock first, so every write
// to one (provider, plan) pair is serialized and the rescore it carries sees
// a consistent set of observations.
type LedgerRepo struct {
	db DB
}

func NewLedgerRepo(db DB) *LedgerRepo {
	return &LedgerRepo{db: db}
}

func scanObservation(row pgx.Row) (*domain.Observation, error) {
	var obs domain.Observation
	err := row.Scan(
		&obs.ID, &obs.ProviderID, &obs.PlanID, &obs.Fingerprint,
		&obs.Claimed, &obs.AcceptingNewPatients, &obs.Note, &obs.EvidenceURL,
		&obs.SubmitterEmail, &obs.Source, &obs.Approved,
		&obs.Upvotes, &obs.Downvotes, &obs.CreatedAt, &obs.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	return &obs, nil
}

func (r *LedgerRepo) SubmitObservation(ctx context.Context, obs *domain.Observation, dedupWindow time.Duration, rescore domain.RescoreFunc) (*domain.Observation, *domain.AcceptanceRecord, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	accID, err := lockAcceptanceRow(ctx, tx, obs.ProviderID, obs.PlanID, obs.ExpiresAt)
	if err != nil {
		return nil, nil, err
	}

	// Anti-duplication check: one observation per fingerprint per pair inside
	// the window, expired or not.
	var duplicate bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM observations
			WHERE provider_id = $1 AND plan_id = $2 AND fingerprint = $3 AND created_at > $4
		)
	`, obs.ProviderID, obs.PlanID, obs.Fingerprint, obs.CreatedAt.Add(-dedupWindow)).Scan(&duplicate)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to check for duplicate observation: %w", err)
	}
	if duplicate {
		return nil, nil, domain.ErrDuplicateSubmission
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO observations (provider_id, plan_id, fingerprint, claimed, accepting_new_patients,
			note, evidence_url, submitter_email, source, approved, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`, obs.ProviderID, obs.PlanID, obs.Fingerprint, obs.Claimed, obs.AcceptingNewPatients,
		obs.Note, obs.EvidenceURL, obs.SubmitterEmail, obs.Source, obs.Approved,
		obs.CreatedAt, obs.ExpiresAt).Scan(&obs.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to insert observation: %w", err)
	}

	record, err := rescorePair(ctx, tx, accID, obs.ProviderID, obs.PlanID, obs.CreatedAt, rescore)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return obs, record, nil
}

func (r *LedgerRepo) CastVote(ctx context.Context, observationID uuid.UUID, fingerprint string, direction domain.VoteDirection, rescore domain.RescoreFunc) (*domain.Vote, *domain.AcceptanceRecord, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	var providerID, planID uuid.UUID
	var now time.Time
	err = tx.QueryRow(ctx, `
		SELECT provider_id, plan_id, NOW() FROM observations
		WHERE id = $1 AND expires_at > NOW()
	`, observationID).Scan(&providerID, &planID, &now)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, domain.ErrObservationNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load observation: %w", err)
	}

	// Lock the pair before touching votes so submits and votes on the same
	// pair always take locks in the same order.
	var accID uuid.UUID
	err = tx.QueryRow(ctx, `
		SELECT id FROM acceptance_records WHERE provider_id = $1 AND plan_id = $2 FOR UPDATE
	`, providerID, planID).Scan(&accID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to lock acceptance record: %w", err)
	}

	vote := &domain.Vote{ObservationID: observationID, Fingerprint: fingerprint, Direction: direction}

	var existingID uuid.UUID
	var existingDirection domain.VoteDirection
	err = tx.QueryRow(ctx, `
		SELECT id, direction FROM votes WHERE observation_id = $1 AND fingerprint = $2
	`, observationID, fingerprint).Scan(&existingID, &existingDirection)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		err = tx.QueryRow(ctx, `
			INSERT INTO votes (observation_id, fingerprint, direction)
			VALUES ($1, $2, $3)
			RETURNING id, created_at, updated_at
		`, observationID, fingerprint, direction).Scan(&vote.ID, &vote.CreatedAt, &vote.UpdatedAt)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to insert vote: %w", err)
		}
	case err != nil:
		return nil, nil, fmt.Errorf("failed to load existing vote: %w", err)
	case existingDirection == direction:
		return nil, nil, domain.ErrAlreadyVoted
	default:
		vote.ID = existingID
		err = tx.QueryRow(ctx, `
			UPDATE votes SET direction = $2, updated_at = NOW()
			WHERE id = $1
			RETURNING created_at, updated_at
		`, existingID, direction).Scan(&vote.CreatedAt, &vote.UpdatedAt)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to flip vote: %w", err)
		}
	}

	// One statement moves both counters, so a flip never transiently
	// double-counts.
	upDelta, downDelta := voteDeltas(direction, existingDirection)
	if _, err := tx.Exec(ctx, `
		UPDATE observations SET upvotes = upvotes + $2, downvotes = downvotes + $3 WHERE id = $1
	`, observationID, upDelta, downDelta); err != nil {
		return nil, nil, fmt.Errorf("failed to update vote counters: %w", err)
	}

	record, err := rescorePair(ctx, tx, accID, providerID, planID, now, rescore)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return vote, record, nil
}

// voteDeltas returns the counter movements for a new vote (existing is "")
// or a direction flip.
func voteDeltas(direction, existing domain.VoteDirection) (upDelta, downDelta int) {
	switch direction {
	case domain.VoteUp:
		upDelta = 1
	case domain.VoteDown:
		downDelta = 1
	}
	switch existing {
	case domain.VoteUp:
		upDelta--
	case domain.VoteDown:
		downDelta--
	}
	return upDelta, downDelta
}

func (r *LedgerRepo) GetObservation(ctx context.Context, id uuid.UUID) (*domain.Observation, error) {
	obs, err := scanObservation(r.db.QueryRow(ctx, `
		SELECT `+observationColumns+` FROM observations
		WHERE id = $1 AND expires_at > NOW()
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrObservationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get observation: %w", err)
	}
	return obs, nil
}

func (r *LedgerRepo) ListRecent(ctx context.Context, providerID, planID uuid.UUID, limit int) ([]domain.Observation, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+observationColumns+` FROM observations
		WHERE provider_id = $1 AND plan_id = $2 AND expires_at > NOW()
		ORDER BY created_at DESC
		LIMIT $3
	`, providerID, planID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent observations: %w", err)
	}
	return collectObservations(rows)
}

func (r *LedgerRepo) ListForPair(ctx context.Context, providerID, planID uuid.UUID) ([]domain.Observation, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+observationColumns+` FROM observations
		WHERE provider_id = $1 AND plan_id = $2 AND expires_at > NOW()
		ORDER BY created_at DESC
	`, providerID, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to list observations for pair: %w", err)
	}
	return collectObservations(rows)
}

func (r *LedgerRepo) DeleteExpired(ctx context.Context, now time.Time, batchSize int, dryRun bool) (int, error) {
	if dryRun {
		var count int
		err := r.db.QueryRow(ctx, `
			SELECT COUNT(*) FROM (
				SELECT 1 FROM observations WHERE expires_at <= $1 LIMIT $2
			) batch
		`, now, batchSize).Scan(&count)
		if err != nil {
			return 0, fmt.Errorf("failed to count expired observations: %w", err)
		}
		return count, nil
	}

	tag, err := r.db.Exec(ctx, `
		DELETE FROM observations WHERE id IN (
			SELECT id FROM observations WHERE expires_at <= $1 LIMIT $2
		)
	`, now, batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired observations: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// lockAcceptanceRow creates the pair's acceptance row if missing and takes
// its row lock. The upsert serializes concurrent writers on the same pair.
func lockAcceptanceRow(ctx context.Context, tx pgx.Tx, providerID, planID uuid.UUID, expiresAt time.Time) (uuid.UUID, error) {
	var id uuid.UUID
	err := tx.QueryRow(ctx, `
		INSERT INTO acceptance_records (provider_id, plan_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (provider_id, plan_id) DO UPDATE SET updated_at = NOW()
		RETURNING id
	`, providerID, planID, expiresAt).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to lock acceptance record: %w", err)
	}
	return id, nil
}

// rescorePair reloads the pair's live observations, runs the injected rescore,
// and persists the outcome. Runs inside the caller's transaction while the
// pair lock is held.
func rescorePair(ctx context.Context, tx pgx.Tx, accID uuid.UUID, providerID, planID uuid.UUID, now time.Time, rescore domain.RescoreFunc) (*domain.AcceptanceRecord, error) {
	rows, err := tx.Query(ctx, `
		SELECT `+observationColumns+` FROM observations
		WHERE provider_id = $1 AND plan_id = $2 AND expires_at > $3
		ORDER BY created_at DESC
	`, providerID, planID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to load observations for rescore: %w", err)
	}
	observations, err := collectObservations(rows)
	if err != nil {
		return nil, err
	}

	result := rescore(observations)

	record, err := scanAcceptance(tx.QueryRow(ctx, `
		UPDATE acceptance_records
		SET status = $2, score = $3, level = $4, verification_count = $5,
			last_verified_at = $6, expires_at = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING `+acceptanceColumns+`
	`, accID, result.Status, result.Score, result.Level, result.VerificationCount,
		result.LastVerifiedAt, result.ExpiresAt))
	if err != nil {
		return nil, fmt.Errorf("failed to apply rescore: %w", err)
	}
	return record, nil
}

func collectObservations(rows pgx.Rows) ([]domain.Observation, error) {
	defer rows.Close()

	var observations []domain.Observation
	for rows.Next() {
		obs, err := scanObservation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		observations = append(observations, *obs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read observations: %w", err)
	}
	return observations, nil
}
