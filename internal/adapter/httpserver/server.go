// Package httpserver is the transport layer: echo routes, admission and
// bot-check middleware, and the JSON handlers for the verification core.
package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/coverpulse/coverpulse/internal/admission"
	"github.com/coverpulse/coverpulse/internal/app"
	"github.com/coverpulse/coverpulse/internal/domain"
	"github.com/coverpulse/coverpulse/internal/platform/config"
)

type coreService interface {
	SubmitObservation(ctx context.Context, in app.SubmitInput) (*domain.Observation, *domain.AcceptanceRecord, error)
	CastVote(ctx context.Context, observationID uuid.UUID, fingerprint string, direction domain.VoteDirection) (*domain.Vote, *domain.AcceptanceRecord, error)
	GetAcceptance(ctx context.Context, providerID, planID uuid.UUID) (*app.AcceptanceView, error)
	ListObservations(ctx context.Context, providerID, planID uuid.UUID, limit int) ([]domain.Observation, error)
	RunDecaySweep(ctx context.Context, opts app.SweepOptions) (*app.SweepReport, error)
	RunCleanup(ctx context.Context, opts app.CleanupOptions) (*app.CleanupReport, error)
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	core     coreService
	limiter  admission.Limiter
	botCheck domain.BotRiskChecker

	healthChecks []HealthCheck
	startTime    time.Time
}

func NewServer(cfg *config.Config, core coreService, limiter admission.Limiter, botCheck domain.BotRiskChecker, healthChecks []HealthCheck) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:         e,
		config:       cfg,
		core:         core,
		limiter:      limiter,
		botCheck:     botCheck,
		healthChecks: healthChecks,
		startTime:    time.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}
