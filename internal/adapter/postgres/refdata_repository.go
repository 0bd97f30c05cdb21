package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/coverpulse/coverpulse/internal/domain"
)

// ReferenceDataRepo implements domain.ReferenceData from the provider/plan
// reference tables.
type ReferenceDataRepo struct {
	db DB
}

func NewReferenceDataRepo(db DB) *ReferenceDataRepo {
	return &ReferenceDataRepo{db: db}
}

func (r *ReferenceDataRepo) ProviderSpecialty(ctx context.Context, providerID uuid.UUID) (string, error) {
	var specialty string
	err := r.db.QueryRow(ctx, `
		SELECT specialty FROM providers WHERE id = $1
	`, providerID).Scan(&specialty)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", domain.ErrProviderNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get provider specialty: %w", err)
	}
	return specialty, nil
}

func (r *ReferenceDataRepo) PlanExists(ctx context.Context, planID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM plans WHERE id = $1)
	`, planID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check plan existence: %w", err)
	}
	return exists, nil
}
