package httpserver

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/coverpulse/coverpulse/internal/app"
	"github.com/coverpulse/coverpulse/internal/domain"
	apperrors "github.com/coverpulse/coverpulse/internal/platform/errors"
)

// observationResponse is the public view of an observation. Fingerprint and
// submitter email never leave the system.
type observationResponse struct {
	ID                   uuid.UUID `json:"id"`
	ProviderID           uuid.UUID `json:"provider_id"`
	PlanID               uuid.UUID `json:"plan_id"`
	Claimed              bool      `json:"claimed"`
	AcceptingNewPatients *bool     `json:"accepting_new_patients,omitempty"`
	Note                 string    `json:"note,omitempty"`
	EvidenceURL          string    `json:"evidence_url,omitempty"`
	Source               string    `json:"source"`
	Upvotes              int       `json:"upvotes"`
	Downvotes            int       `json:"downvotes"`
	CreatedAt            time.Time `json:"created_at"`
	ExpiresAt            time.Time `json:"expires_at"`
}

type acceptanceResponse struct {
	ProviderID          uuid.UUID  `json:"provider_id"`
	PlanID              uuid.UUID  `json:"plan_id"`
	Status              string     `json:"status"`
	Score               int        `json:"score"`
	Level               string     `json:"level"`
	VerificationCount   int        `json:"verification_count"`
	LastVerifiedAt      *time.Time `json:"last_verified_at,omitempty"`
	ThresholdDays       int        `json:"threshold_days,omitempty"`
	DaysSinceVerified   int        `json:"days_since_verified,omitempty"`
	DaysUntilStale      int        `json:"days_until_stale,omitempty"`
	ReverifyRecommended bool       `json:"reverify_recommended"`
}

type voteResponse struct {
	ID            uuid.UUID `json:"id"`
	ObservationID uuid.UUID `json:"observation_id"`
	Direction     string    `json:"direction"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func toObservationResponse(obs *domain.Observation) observationResponse {
	return observationResponse{
		ID:                   obs.ID,
		ProviderID:           obs.ProviderID,
		PlanID:               obs.PlanID,
		Claimed:              obs.Claimed,
		AcceptingNewPatients: obs.AcceptingNewPatients,
		Note:                 obs.Note,
		EvidenceURL:          obs.EvidenceURL,
		Source:               string(obs.Source),
		Upvotes:              obs.Upvotes,
		Downvotes:            obs.Downvotes,
		CreatedAt:            obs.CreatedAt,
		ExpiresAt:            obs.ExpiresAt,
	}
}

func toAcceptanceResponse(rec *domain.AcceptanceRecord) acceptanceResponse {
	return acceptanceResponse{
		ProviderID:        rec.ProviderID,
		PlanID:            rec.PlanID,
		Status:            string(rec.Status),
		Score:             rec.Score,
		Level:             string(rec.Level),
		VerificationCount: rec.VerificationCount,
		LastVerifiedAt:    rec.LastVerifiedAt,
	}
}

func (s *Server) handleGetAcceptance(c echo.Context) error {
	providerID, planID, err := pairParams(c)
	if err != nil {
		return err
	}

	view, err := s.core.GetAcceptance(c.Request().Context(), providerID, planID)
	if err != nil {
		return err
	}

	resp := toAcceptanceResponse(view.Record)
	resp.ThresholdDays = view.Staleness.ThresholdDays
	resp.DaysSinceVerified = view.Staleness.DaysSinceVerified
	resp.DaysUntilStale = view.Staleness.DaysUntilStale
	resp.ReverifyRecommended = view.Staleness.ReverifyRecommended

	if err := c.JSON(http.StatusOK, resp); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleListObservations(c echo.Context) error {
	providerID, planID, err := pairParams(c)
	if err != nil {
		return err
	}

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return apperrors.ValidationError("limit must be a non-negative integer").WithField("limit", raw)
		}
	}

	observations, err := s.core.ListObservations(c.Request().Context(), providerID, planID, limit)
	if err != nil {
		return err
	}

	resp := make([]observationResponse, 0, len(observations))
	for i := range observations {
		resp = append(resp, toObservationResponse(&observations[i]))
	}
	if err := c.JSON(http.StatusOK, map[string]any{"observations": resp}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

type submitObservationRequest struct {
	ProviderID           string `json:"provider_id"`
	PlanID               string `json:"plan_id"`
	Fingerprint          string `json:"fingerprint"`
	Claimed              *bool  `json:"claimed"`
	AcceptingNewPatients *bool  `json:"accepting_new_patients"`
	Note                 string `json:"note"`
	EvidenceURL          string `json:"evidence_url"`
	SubmitterEmail       string `json:"submitter_email"`
	Source               string `json:"source"`
}

func (s *Server) handleSubmitObservation(c echo.Context) error {
	var req submitObservationRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if req.Claimed == nil {
		return apperrors.ValidationError("claimed is required")
	}
	providerID, err := uuid.Parse(req.ProviderID)
	if err != nil {
		return apperrors.ValidationError("invalid provider_id").WithField("provider_id", req.ProviderID)
	}
	planID, err := uuid.Parse(req.PlanID)
	if err != nil {
		return apperrors.ValidationError("invalid plan_id").WithField("plan_id", req.PlanID)
	}

	obs, record, err := s.core.SubmitObservation(c.Request().Context(), app.SubmitInput{
		ProviderID:           providerID,
		PlanID:               planID,
		Fingerprint:          req.Fingerprint,
		Claimed:              *req.Claimed,
		AcceptingNewPatients: req.AcceptingNewPatients,
		Note:                 req.Note,
		EvidenceURL:          req.EvidenceURL,
		SubmitterEmail:       req.SubmitterEmail,
		Source:               domain.DataSource(req.Source),
	})
	if err != nil {
		return err
	}

	resp := map[string]any{
		"observation": toObservationResponse(obs),
		"acceptance":  toAcceptanceResponse(record),
	}
	if err := c.JSON(http.StatusCreated, resp); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

type castVoteRequest struct {
	Fingerprint string `json:"fingerprint"`
	Direction   string `json:"direction"`
}

func (s *Server) handleCastVote(c echo.Context) error {
	observationID, err := uuid.Parse(c.Param("observationID"))
	if err != nil {
		return apperrors.ValidationError("invalid observation ID").WithField("observation_id", c.Param("observationID"))
	}

	var req castVoteRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	vote, record, err := s.core.CastVote(c.Request().Context(), observationID, req.Fingerprint, domain.VoteDirection(req.Direction))
	if err != nil {
		return err
	}

	resp := map[string]any{
		"vote": voteResponse{
			ID:            vote.ID,
			ObservationID: vote.ObservationID,
			Direction:     string(vote.Direction),
			CreatedAt:     vote.CreatedAt,
			UpdatedAt:     vote.UpdatedAt,
		},
		"acceptance": toAcceptanceResponse(record),
	}
	if err := c.JSON(http.StatusCreated, resp); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func pairParams(c echo.Context) (providerID, planID uuid.UUID, err error) {
	providerID, err = uuid.Parse(c.Param("providerID"))
	if err != nil {
		return uuid.Nil, uuid.Nil, apperrors.ValidationError("invalid provider ID").WithField("provider_id", c.Param("providerID"))
	}
	planID, err = uuid.Parse(c.Param("planID"))
	if err != nil {
		return uuid.Nil, uuid.Nil, apperrors.ValidationError("invalid plan ID").WithField("plan_id", c.Param("planID"))
	}
	return providerID, planID, nil
}
