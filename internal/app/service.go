package app

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/coverpulse/coverpulse/internal/domain"
	"github.com/coverpulse/coverpulse/internal/metrics"
	apperrors "github.com/coverpulse/coverpulse/internal/platform/errors"
	"github.com/coverpulse/coverpulse/internal/scoring"
)

const (
	maxNoteLength        = 500
	maxFingerprintLength = 128
	defaultListLimit     = 20
	maxListLimit         = 100
)

// AcceptanceCache is the read-side cache for acceptance records. The redis
// adapter implements it; misses and cache outages fall through to Postgres.
type AcceptanceCache interface {
	Get(ctx context.Context, providerID, planID uuid.UUID) (*domain.AcceptanceRecord, bool)
	Set(ctx context.Context, rec *domain.AcceptanceRecord) error
	Invalidate(ctx context.Context, providerID, planID uuid.UUID) error
}

// NoopCache disables the read cache. Used when the deployment has no Redis
// (local rate-limit backend without REDIS_URL).
type NoopCache struct{}

func (NoopCache) Get(context.Context, uuid.UUID, uuid.UUID) (*domain.AcceptanceRecord, bool) {
	return nil, false
}
func (NoopCache) Set(context.Context, *domain.AcceptanceRecord) error { return nil }

func (NoopCache) Invalidate(context.Context, uuid.UUID, uuid.UUID) error { return nil }

// Settings are the ledger tunables the service applies on every write.
type Settings struct {
	DedupWindow    time.Duration
	ObservationTTL time.Duration
	AcceptanceTTL  time.Duration
}

// Service is the application layer, the only component that references
// multiple domain components. It orchestrates all use cases.
type Service struct {
	ledger      domain.LedgerRepository
	acceptances domain.AcceptanceRepository
	refdata     domain.ReferenceData
	cache       AcceptanceCache
	clock       clockwork.Clock
	settings    Settings

	// specialtyGroup collapses concurrent reference-data lookups for the same
	// provider.
	specialtyGroup singleflight.Group
}

// NewService creates the application layer service.
func NewService(ledger domain.LedgerRepository, acceptances domain.AcceptanceRepository, refdata domain.ReferenceData, cache AcceptanceCache, clock clockwork.Clock, settings Settings) *Service {
	return &Service{
		ledger:      ledger,
		acceptances: acceptances,
		refdata:     refdata,
		cache:       cache,
		clock:       clock,
		settings:    settings,
	}
}

// SubmitInput is one observation submission, already reduced to an opaque
// fingerprint by the transport layer.
type SubmitInput struct {
	ProviderID           uuid.UUID
	PlanID               uuid.UUID
	Fingerprint          string
	Claimed              bool
	AcceptingNewPatients *bool
	Note                 string
	EvidenceURL          string
	SubmitterEmail       string
	Source               domain.DataSource
}

// SubmitObservation validates and records one observation, returning the
// stored observation and the pair's freshly rescored acceptance record.
func (s *Service) SubmitObservation(ctx context.Context, in SubmitInput) (*domain.Observation, *domain.AcceptanceRecord, error) {
	if err := validateSubmitInput(in); err != nil {
		metrics.SubmissionsTotal.WithLabelValues("invalid").Inc()
		return nil, nil, err
	}

	specialty, err := s.providerSpecialty(ctx, in.ProviderID)
	if errors.Is(err, domain.ErrProviderNotFound) {
		metrics.SubmissionsTotal.WithLabelValues("invalid").Inc()
		return nil, nil, apperrors.ValidationError("unknown provider").WithContext("provider_id", in.ProviderID.String())
	}
	if err != nil {
		metrics.SubmissionsTotal.WithLabelValues("error").Inc()
		return nil, nil, err
	}

	exists, err := s.refdata.PlanExists(ctx, in.PlanID)
	if err != nil {
		metrics.SubmissionsTotal.WithLabelValues("error").Inc()
		return nil, nil, err
	}
	if !exists {
		metrics.SubmissionsTotal.WithLabelValues("invalid").Inc()
		return nil, nil, apperrors.ValidationError("unknown plan").WithContext("plan_id", in.PlanID.String())
	}

	now := s.clock.Now().UTC()
	obs := &domain.Observation{
		ProviderID:           in.ProviderID,
		PlanID:               in.PlanID,
		Fingerprint:          in.Fingerprint,
		Claimed:              in.Claimed,
		AcceptingNewPatients: in.AcceptingNewPatients,
		Note:                 in.Note,
		EvidenceURL:          in.EvidenceURL,
		SubmitterEmail:       in.SubmitterEmail,
		Source:               in.Source,
		Approved:             true,
		CreatedAt:            now,
		ExpiresAt:            now.Add(s.settings.ObservationTTL),
	}

	start := s.clock.Now()
	saved, record, err := s.ledger.SubmitObservation(ctx, obs, s.settings.DedupWindow, s.rescoreFunc(specialty, now))
	metrics.RescoreDurationSeconds.Observe(s.clock.Since(start).Seconds())
	if errors.Is(err, domain.ErrDuplicateSubmission) {
		metrics.SubmissionsTotal.WithLabelValues("duplicate").Inc()
		return nil, nil, apperrors.ConflictError("an observation for this provider and plan was already submitted by this fingerprint inside the anti-duplication window").
			WithCode("DUPLICATE_SUBMISSION")
	}
	if err != nil {
		metrics.SubmissionsTotal.WithLabelValues("error").Inc()
		return nil, nil, err
	}

	metrics.SubmissionsTotal.WithLabelValues("accepted").Inc()
	s.invalidateCache(ctx, in.ProviderID, in.PlanID)
	return saved, record, nil
}

// CastVote records or flips one fingerprint's vote on an observation and
// returns the vote and the pair's rescored acceptance record.
func (s *Service) CastVote(ctx context.Context, observationID uuid.UUID, fingerprint string, direction domain.VoteDirection) (*domain.Vote, *domain.AcceptanceRecord, error) {
	if fingerprint == "" || len(fingerprint) > maxFingerprintLength {
		metrics.VotesTotal.WithLabelValues("invalid").Inc()
		return nil, nil, apperrors.ValidationError("fingerprint is required")
	}
	if direction != domain.VoteUp && direction != domain.VoteDown {
		metrics.VotesTotal.WithLabelValues("invalid").Inc()
		return nil, nil, apperrors.ValidationError("direction must be \"up\" or \"down\"").WithContext("direction", string(direction))
	}

	obs, err := s.ledger.GetObservation(ctx, observationID)
	if errors.Is(err, domain.ErrObservationNotFound) {
		metrics.VotesTotal.WithLabelValues("not_found").Inc()
		return nil, nil, apperrors.NotFoundError("observation not found").WithContext("observation_id", observationID.String())
	}
	if err != nil {
		metrics.VotesTotal.WithLabelValues("error").Inc()
		return nil, nil, err
	}

	specialty, err := s.providerSpecialty(ctx, obs.ProviderID)
	if errors.Is(err, domain.ErrProviderNotFound) {
		// Reference data moved under us; score with the default threshold.
		slog.Warn("provider missing for existing observation", "provider_id", obs.ProviderID.String())
		specialty = ""
	} else if err != nil {
		metrics.VotesTotal.WithLabelValues("error").Inc()
		return nil, nil, err
	}

	now := s.clock.Now().UTC()
	start := s.clock.Now()
	vote, record, err := s.ledger.CastVote(ctx, observationID, fingerprint, direction, s.rescoreFunc(specialty, now))
	metrics.RescoreDurationSeconds.Observe(s.clock.Since(start).Seconds())
	switch {
	case errors.Is(err, domain.ErrAlreadyVoted):
		metrics.VotesTotal.WithLabelValues("duplicate").Inc()
		return nil, nil, apperrors.ConflictError("this fingerprint already cast the same vote on this observation").
			WithCode("ALREADY_VOTED")
	case errors.Is(err, domain.ErrObservationNotFound):
		metrics.VotesTotal.WithLabelValues("not_found").Inc()
		return nil, nil, apperrors.NotFoundError("observation not found").WithContext("observation_id", observationID.String())
	case err != nil:
		metrics.VotesTotal.WithLabelValues("error").Inc()
		return nil, nil, err
	}

	if vote.UpdatedAt.After(vote.CreatedAt) {
		metrics.VotesTotal.WithLabelValues("flipped").Inc()
	} else {
		metrics.VotesTotal.WithLabelValues("created").Inc()
	}
	s.invalidateCache(ctx, obs.ProviderID, obs.PlanID)
	return vote, record, nil
}

// AcceptanceView is the read-side answer for one pair: the stored record plus
// freshness metadata derived from the provider's specialty.
type AcceptanceView struct {
	Record    *domain.AcceptanceRecord
	Staleness scoring.Staleness
}

// GetAcceptance returns the current acceptance state for a pair, cache-aside
// through the read cache.
func (s *Service) GetAcceptance(ctx context.Context, providerID, planID uuid.UUID) (*AcceptanceView, error) {
	specialty, err := s.providerSpecialty(ctx, providerID)
	if errors.Is(err, domain.ErrProviderNotFound) {
		return nil, apperrors.NotFoundError("provider not found").WithContext("provider_id", providerID.String())
	}
	if err != nil {
		return nil, err
	}

	rec, hit := s.cache.Get(ctx, providerID, planID)
	if !hit {
		rec, err = s.acceptances.GetByPair(ctx, providerID, planID)
		if errors.Is(err, domain.ErrAcceptanceNotFound) {
			return nil, apperrors.NotFoundError("no acceptance record for this provider and plan").
				WithContext("provider_id", providerID.String()).
				WithContext("plan_id", planID.String())
		}
		if err != nil {
			return nil, err
		}
		if err := s.cache.Set(ctx, rec); err != nil {
			slog.Warn("failed to populate acceptance cache", "error", err)
		}
	}

	return &AcceptanceView{
		Record:    rec,
		Staleness: scoring.StalenessFor(rec.LastVerifiedAt, specialty, s.clock.Now().UTC()),
	}, nil
}

// ListObservations returns the newest non-expired observations for a pair.
func (s *Service) ListObservations(ctx context.Context, providerID, planID uuid.UUID, limit int) ([]domain.Observation, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return s.ledger.ListRecent(ctx, providerID, planID, limit)
}

// rescoreFunc builds the pure closure the ledger runs mid-transaction.
func (s *Service) rescoreFunc(specialty string, now time.Time) domain.RescoreFunc {
	return func(observations []domain.Observation) domain.Rescore {
		result := scoring.Score(nil, observations, specialty, now)
		return domain.Rescore{
			Status:            result.Status,
			Score:             result.Score,
			Level:             result.Level,
			VerificationCount: result.ObservationCount,
			LastVerifiedAt:    result.LastVerifiedAt,
			ExpiresAt:         now.Add(s.settings.AcceptanceTTL),
		}
	}
}

func (s *Service) providerSpecialty(ctx context.Context, providerID uuid.UUID) (string, error) {
	v, err, _ := s.specialtyGroup.Do(providerID.String(), func() (any, error) {
		return s.refdata.ProviderSpecialty(ctx, providerID)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (s *Service) invalidateCache(ctx context.Context, providerID, planID uuid.UUID) {
	if err := s.cache.Invalidate(ctx, providerID, planID); err != nil {
		slog.Warn("failed to invalidate acceptance cache",
			"provider_id", providerID.String(),
			"plan_id", planID.String(),
			"error", err)
	}
}

func validateSubmitInput(in SubmitInput) error {
	if in.ProviderID == uuid.Nil {
		return apperrors.ValidationError("provider_id is required")
	}
	if in.PlanID == uuid.Nil {
		return apperrors.ValidationError("plan_id is required")
	}
	if in.Fingerprint == "" || len(in.Fingerprint) > maxFingerprintLength {
		return apperrors.ValidationError("fingerprint is required")
	}
	if !domain.ValidDataSource(in.Source) {
		return apperrors.ValidationError("unknown data source").WithContext("source", string(in.Source))
	}
	if len(in.Note) > maxNoteLength {
		return apperrors.ValidationError("note exceeds maximum length").WithContext("max_length", maxNoteLength)
	}
	if in.EvidenceURL != "" {
		u, err := url.Parse(in.EvidenceURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return apperrors.ValidationError("evidence_url must be an http(s) URL")
		}
	}
	if in.SubmitterEmail != "" {
		if _, err := mail.ParseAddress(in.SubmitterEmail); err != nil {
			return apperrors.ValidationError("submitter_email is not a valid address")
		}
	}
	return nil
}
