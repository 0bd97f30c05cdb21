package domain

import (
	"context"

	"github.com/google/uuid"
)

// ReferenceData is the read-only view the core consumes from the provider/plan
// reference-data collaborator: specialty text for recency classification and
// existence checks for submission validation.
type ReferenceData interface {
	// ProviderSpecialty returns the free-text specialty for a provider, or
	// ErrProviderNotFound.
	ProviderSpecialty(ctx context.Context, providerID uuid.UUID) (string, error)

	// PlanExists reports whether the plan id is known.
	PlanExists(ctx context.Context, planID uuid.UUID) (bool, error)
}

// BotRiskChecker decides whether a request token looks automated. Verify
// returns (true, nil) for likely-human traffic and (false, nil) for a
// legitimate bot determination; errors mean the checking dependency itself
// failed and are subject to the fail-open/fail-closed policy.
type BotRiskChecker interface {
	Verify(ctx context.Context, token, clientIP string) (bool, error)
}
