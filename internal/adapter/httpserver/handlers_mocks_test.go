package httpserver

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/coverpulse/coverpulse/internal/admission"
	"github.com/coverpulse/coverpulse/internal/app"
	"github.com/coverpulse/coverpulse/internal/domain"
	"github.com/coverpulse/coverpulse/internal/platform/config"
)

// mockCoreService implements coreService through optional function fields.
type mockCoreService struct {
	submitFn  func(ctx context.Context, in app.SubmitInput) (*domain.Observation, *domain.AcceptanceRecord, error)
	voteFn    func(ctx context.Context, observationID uuid.UUID, fingerprint string, direction domain.VoteDirection) (*domain.Vote, *domain.AcceptanceRecord, error)
	getFn     func(ctx context.Context, providerID, planID uuid.UUID) (*app.AcceptanceView, error)
	listFn    func(ctx context.Context, providerID, planID uuid.UUID, limit int) ([]domain.Observation, error)
	sweepFn   func(ctx context.Context, opts app.SweepOptions) (*app.SweepReport, error)
	cleanupFn func(ctx context.Context, opts app.CleanupOptions) (*app.CleanupReport, error)
}

func (m *mockCoreService) SubmitObservation(ctx context.Context, in app.SubmitInput) (*domain.Observation, *domain.AcceptanceRecord, error) {
	if m.submitFn == nil {
		return &domain.Observation{}, &domain.AcceptanceRecord{}, nil
	}
	return m.submitFn(ctx, in)
}

func (m *mockCoreService) CastVote(ctx context.Context, observationID uuid.UUID, fingerprint string, direction domain.VoteDirection) (*domain.Vote, *domain.AcceptanceRecord, error) {
	if m.voteFn == nil {
		return &domain.Vote{}, &domain.AcceptanceRecord{}, nil
	}
	return m.voteFn(ctx, observationID, fingerprint, direction)
}

func (m *mockCoreService) GetAcceptance(ctx context.Context, providerID, planID uuid.UUID) (*app.AcceptanceView, error) {
	if m.getFn == nil {
		return &app.AcceptanceView{Record: &domain.AcceptanceRecord{}}, nil
	}
	return m.getFn(ctx, providerID, planID)
}

func (m *mockCoreService) ListObservations(ctx context.Context, providerID, planID uuid.UUID, limit int) ([]domain.Observation, error) {
	if m.listFn == nil {
		return nil, nil
	}
	return m.listFn(ctx, providerID, planID, limit)
}

func (m *mockCoreService) RunDecaySweep(ctx context.Context, opts app.SweepOptions) (*app.SweepReport, error) {
	if m.sweepFn == nil {
		return &app.SweepReport{}, nil
	}
	return m.sweepFn(ctx, opts)
}

func (m *mockCoreService) RunCleanup(ctx context.Context, opts app.CleanupOptions) (*app.CleanupReport, error) {
	if m.cleanupFn == nil {
		return &app.CleanupReport{}, nil
	}
	return m.cleanupFn(ctx, opts)
}

// stubLimiter returns a fixed decision for every check.
type stubLimiter struct {
	decision admission.Decision
	err      error
}

func (s stubLimiter) Allow(context.Context, string, string) (admission.Decision, error) {
	return s.decision, s.err
}

func allowAllLimiter() stubLimiter {
	return stubLimiter{decision: admission.Decision{Allowed: true, Remaining: 10}}
}

// stubBotCheck returns a fixed verification outcome.
type stubBotCheck struct {
	ok  bool
	err error
}

func (s stubBotCheck) Verify(context.Context, string, string) (bool, error) {
	return s.ok, s.err
}

const testOperatorToken = "test-operator-token-1234"

type serverOption func(*serverParams)

type serverParams struct {
	limiter      admission.Limiter
	botCheck     domain.BotRiskChecker
	failOpen     bool
	healthChecks []HealthCheck
}

func withLimiter(l admission.Limiter) serverOption {
	return func(p *serverParams) { p.limiter = l }
}

func withBotCheck(b domain.BotRiskChecker) serverOption {
	return func(p *serverParams) { p.botCheck = b }
}

func withFailClosed() serverOption {
	return func(p *serverParams) { p.failOpen = false }
}

func withHealthChecks(checks ...HealthCheck) serverOption {
	return func(p *serverParams) { p.healthChecks = checks }
}

func newTestServer(t *testing.T, core coreService, opts ...serverOption) *Server {
	t.Helper()

	params := &serverParams{
		limiter:  allowAllLimiter(),
		botCheck: stubBotCheck{ok: true},
		failOpen: true,
	}
	for _, opt := range opts {
		opt(params)
	}

	cfg := &config.Config{
		AppEnv:           "test",
		Port:             "8080",
		AdminToken:       testOperatorToken,
		BotCheckFailOpen: params.failOpen,
	}

	return NewServer(cfg, core, params.limiter, params.botCheck, params.healthChecks)
}
