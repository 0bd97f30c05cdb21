package httpserver

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/coverpulse/coverpulse/internal/metrics"
	"github.com/coverpulse/coverpulse/internal/platform/correlation"
	apperrors "github.com/coverpulse/coverpulse/internal/platform/errors"
)

// botCheckTokenHeader carries the challenge token issued to the client by the
// external bot-likelihood service.
const botCheckTokenHeader = "X-Verification-Token"

func correlationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := correlation.Ensure(c.Request().Context())
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

func ErrorHandlingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			var httpErr *echo.HTTPError
			if errors.As(err, &httpErr) {
				return err
			}

			structuredErr := apperrors.AsStructuredError(err)
			logError(c, structuredErr)

			if err := c.JSON(structuredErr.HTTPStatus(), structuredErr.ToResponse()); err != nil {
				return fmt.Errorf("failed to write error response: %w", err)
			}
			return nil
		}
	}
}

func logError(c echo.Context, err *apperrors.Error) {
	attrs := []any{
		"error_type", err.Type,
		"message", err.Message,
		"path", c.Request().URL.Path,
		"method", c.Request().Method,
		"status", err.HTTPStatus(),
	}

	for k, v := range err.Context {
		attrs = append(attrs, k, v)
	}

	switch err.Type {
	case apperrors.TypeValidation:
		slog.Info("Validation error", attrs...)
	case apperrors.TypeNotFound:
		slog.Info("Not found", attrs...)
	case apperrors.TypeConflict:
		slog.Warn("Conflict", attrs...)
	case apperrors.TypeForbidden:
		slog.Warn("Forbidden", attrs...)
	case apperrors.TypeRateLimited:
		slog.Info("Rate limited", attrs...)
	case apperrors.TypeUnavailable:
		if err.Cause != nil {
			attrs = append(attrs, "cause", err.Cause)
		}
		slog.Error("Dependency unavailable", attrs...)
	case apperrors.TypeInternal:
		if err.Cause != nil {
			attrs = append(attrs, "cause", err.Cause)
		}
		slog.Error("Internal error", attrs...)
	case apperrors.TypeExternal:
		if err.Cause != nil {
			attrs = append(attrs, "cause", err.Cause)
		}
		slog.Error("External service error", attrs...)
	default:
		slog.Error("Unknown error type", attrs...)
	}
}

// admissionMiddleware enforces the named sliding-window profile per client IP.
// Backend failures never block traffic here: the failover wrapper already
// degraded to the stricter local budget, and any error that still escapes is
// logged and waved through.
func (s *Server) admissionMiddleware(profile string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			decision, err := s.limiter.Allow(c.Request().Context(), profile, c.RealIP())
			if err != nil {
				slog.Error("admission check failed open", "limiter", profile, "error", err)
				metrics.AdmissionDecisionsTotal.WithLabelValues(profile, "error").Inc()
				return next(c)
			}

			c.Response().Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			if decision.Degraded {
				c.Response().Header().Set("X-Degraded-Mode", "true")
			}

			if !decision.Allowed {
				metrics.AdmissionDecisionsTotal.WithLabelValues(profile, "rejected").Inc()
				retryAfter := int(decision.RetryAfter.Seconds() + 0.5)
				if retryAfter < 1 {
					retryAfter = 1
				}
				c.Response().Header().Set("Retry-After", strconv.Itoa(retryAfter))
				return apperrors.RateLimitedError("request budget exhausted, retry later").
					WithContext("limiter", profile)
			}

			metrics.AdmissionDecisionsTotal.WithLabelValues(profile, "allowed").Inc()
			return next(c)
		}
	}
}

// botCheckMiddleware verifies the request's challenge token. A legitimate bot
// determination is a 403; a checker outage follows the deployment's fail
// policy (allow degraded, or 503).
func (s *Server) botCheckMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := c.Request().Header.Get(botCheckTokenHeader)

		ok, err := s.botCheck.Verify(c.Request().Context(), token, c.RealIP())
		if err != nil {
			if s.config.BotCheckFailOpen {
				metrics.BotCheckResultsTotal.WithLabelValues("fail_open").Inc()
				slog.Warn("bot check unavailable, failing open", "error", err)
				c.Response().Header().Set("X-Degraded-Mode", "true")
				return next(c)
			}
			metrics.BotCheckResultsTotal.WithLabelValues("fail_closed").Inc()
			return apperrors.UnavailableError("verification service unavailable", err)
		}
		if !ok {
			metrics.BotCheckResultsTotal.WithLabelValues("reject").Inc()
			return apperrors.ForbiddenError("request failed the automated-traffic check").
				WithCode("BOT_RISK_REJECTED")
		}

		metrics.BotCheckResultsTotal.WithLabelValues("pass").Inc()
		return next(c)
	}
}

// requireOperatorToken gates the /admin group with the static operator bearer
// token. Constant-time compare; the token is deployment policy, not part of
// the trust model.
func (s *Server) requireOperatorToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.config.AdminToken)) != 1 {
			return echo.NewHTTPError(http.StatusUnauthorized, "operator token required")
		}
		return next(c)
	}
}
