package httpserver

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/coverpulse/coverpulse/internal/app"
	apperrors "github.com/coverpulse/coverpulse/internal/platform/errors"
)

type decaySweepRequest struct {
	DryRun    bool `json:"dry_run"`
	Limit     int  `json:"limit"`
	BatchSize int  `json:"batch_size"`
}

func (s *Server) handleDecaySweep(c echo.Context) error {
	var req decaySweepRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if req.Limit < 0 || req.BatchSize < 0 {
		return apperrors.ValidationError("limit and batch_size must be non-negative")
	}

	report, err := s.core.RunDecaySweep(c.Request().Context(), app.SweepOptions{
		DryRun:    req.DryRun,
		Limit:     req.Limit,
		BatchSize: req.BatchSize,
	})
	if err != nil {
		return err
	}

	if err := c.JSON(http.StatusOK, report); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

type cleanupRequest struct {
	DryRun    bool `json:"dry_run"`
	BatchSize int  `json:"batch_size"`
}

func (s *Server) handleCleanup(c echo.Context) error {
	var req cleanupRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if req.BatchSize < 0 {
		return apperrors.ValidationError("batch_size must be non-negative")
	}

	report, err := s.core.RunCleanup(c.Request().Context(), app.CleanupOptions{
		DryRun:    req.DryRun,
		BatchSize: req.BatchSize,
	})
	if err != nil {
		return err
	}

	if err := c.JSON(http.StatusOK, report); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}
