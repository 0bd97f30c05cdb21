package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DataSource categorizes where an observation came from. Source quality
// scoring ranks these; authoritative registries beat crowd reports.
type DataSource string

const (
	SourceAuthoritativeRegistry DataSource = "authoritative-registry"
	SourceCarrierReported       DataSource = "carrier-reported"
	SourceProviderSelfReported  DataSource = "provider-self-reported"
	SourceCrowdReported         DataSource = "crowd-reported"
	SourcePhoneVerified         DataSource = "phone-verified"
	SourceAutomatedInference    DataSource = "automated-inference"
)

// ValidDataSource reports whether s is a known source category.
func ValidDataSource(s DataSource) bool {
	switch s {
	case SourceAuthoritativeRegistry, SourceCarrierReported, SourceProviderSelfReported,
		SourceCrowdReported, SourcePhoneVerified, SourceAutomatedInference:
		return true
	}
	return false
}

// Observation is one submitted claim about whether a provider accepts a plan.
// At most one non-expired observation may exist per (provider, plan,
// fingerprint) inside the anti-duplication window.
type Observation struct {
	ID          uuid.UUID
	ProviderID  uuid.UUID
	PlanID      uuid.UUID
	Fingerprint string

	Claimed              bool  // true: provider accepts the plan
	AcceptingNewPatients *bool // optional secondary claim
	Note                 string
	EvidenceURL          string
	SubmitterEmail       string
	Source               DataSource
	Approved             bool

	Upvotes   int
	Downvotes int

	CreatedAt time.Time
	ExpiresAt time.Time
}

// VoteDirection is a community opinion on an observation.
type VoteDirection string

const (
	VoteUp   VoteDirection = "up"
	VoteDown VoteDirection = "down"
)

// Vote is one fingerprint's opinion on one observation. At most one vote per
// (observation, fingerprint); the direction may change but never duplicate.
type Vote struct {
	ID            uuid.UUID
	ObservationID uuid.UUID
	Fingerprint   string
	Direction     VoteDirection
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// LedgerRepository is the system of record for observations and votes. Both
// mutating operations run the duplicate checks, the counter updates, and the
// injected rescore inside a single transaction per pair - a vote counted
// without the score recomputed is a forbidden state.
type LedgerRepository interface {
	// SubmitObservation persists obs (TTL already set by the caller), rejects
	// duplicates inside dedupWindow with ErrDuplicateSubmission, and applies
	// rescore to the pair's acceptance record atomically.
	SubmitObservation(ctx context.Context, obs *Observation, dedupWindow time.Duration, rescore RescoreFunc) (*Observation, *AcceptanceRecord, error)

	// CastVote records or flips a vote. Same-direction repeats are rejected
	// with ErrAlreadyVoted. A direction flip moves both counters in one
	// statement so the totals never transiently double-count.
	CastVote(ctx context.Context, observationID uuid.UUID, fingerprint string, direction VoteDirection, rescore RescoreFunc) (*Vote, *AcceptanceRecord, error)

	// GetObservation returns one non-expired observation, or
	// ErrObservationNotFound.
	GetObservation(ctx context.Context, id uuid.UUID) (*Observation, error)

	// ListRecent returns the newest non-expired observations for a pair, for
	// the presentation collaborator.
	ListRecent(ctx context.Context, providerID, planID uuid.UUID, limit int) ([]Observation, error)

	// ListForPair returns all non-expired observations for a pair, as scoring
	// input outside the submit/vote transactions (decay sweep).
	ListForPair(ctx context.Context, providerID, planID uuid.UUID) ([]Observation, error)

	// DeleteExpired removes up to batchSize expired observations (votes
	// cascade), returning the number deleted (or counted, when dryRun is set).
	DeleteExpired(ctx context.Context, now time.Time, batchSize int, dryRun bool) (int, error)
}
