package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AcceptanceStatus is the aggregated answer for one (provider, plan) pair.
type AcceptanceStatus string

const (
	StatusAccepted    AcceptanceStatus = "ACCEPTED"
	StatusNotAccepted AcceptanceStatus = "NOT_ACCEPTED"
	StatusPending     AcceptanceStatus = "PENDING"
	StatusUnknown     AcceptanceStatus = "UNKNOWN"
)

// ConfidenceLevel buckets the 0-100 confidence score for display.
type ConfidenceLevel string

const (
	LevelVeryLow  ConfidenceLevel = "VERY_LOW"
	LevelLow      ConfidenceLevel = "LOW"
	LevelMedium   ConfidenceLevel = "MEDIUM"
	LevelHigh     ConfidenceLevel = "HIGH"
	LevelVeryHigh ConfidenceLevel = "VERY_HIGH"
)

// AcceptanceRecord is the current aggregated state for one (provider, plan)
// pair. Exactly one record exists per pair; it is created lazily on the first
// observation and mutated only by the ledger and the decay sweep.
type AcceptanceRecord struct {
	ID                uuid.UUID
	ProviderID        uuid.UUID
	PlanID            uuid.UUID
	Status            AcceptanceStatus
	Score             int
	Level             ConfidenceLevel
	VerificationCount int
	LastVerifiedAt    *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
	ExpiresAt         time.Time
}

// Rescore is the persisted outcome of one scoring pass. The ledger writes it
// to the acceptance row inside the same transaction that changed the
// underlying observations or votes.
type Rescore struct {
	Status            AcceptanceStatus
	Score             int
	Level             ConfidenceLevel
	VerificationCount int
	LastVerifiedAt    *time.Time
	ExpiresAt         time.Time
}

// RescoreFunc converts the non-expired observations of one pair into a
// Rescore. Implementations must be pure: the ledger calls them mid-transaction.
type RescoreFunc func(observations []Observation) Rescore

// AcceptanceRepository reads and maintains acceptance records outside the
// submit/vote transactions (read path, decay sweep, retention cleanup).
type AcceptanceRepository interface {
	GetByPair(ctx context.Context, providerID, planID uuid.UUID) (*AcceptanceRecord, error)

	// ListScorable returns up to limit records that have at least one
	// observation, with id > afterID, ordered by id. Keyset pagination for the
	// decay sweep; never a full-table scan.
	ListScorable(ctx context.Context, afterID uuid.UUID, limit int) ([]AcceptanceRecord, error)

	// ApplyRescore persists a recomputed score for one record and reports
	// whether anything actually changed. Used by the decay sweep.
	ApplyRescore(ctx context.Context, id uuid.UUID, r Rescore) (changed bool, err error)

	// DeleteExpired removes up to batchSize acceptance records whose TTL has
	// lapsed, returning the number deleted (or that would be deleted, when
	// dryRun is set).
	DeleteExpired(ctx context.Context, now time.Time, batchSize int, dryRun bool) (int, error)
}
