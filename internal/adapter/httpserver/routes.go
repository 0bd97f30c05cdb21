package httpserver

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/coverpulse/coverpulse/internal/admission"
)

func (s *Server) registerRoutes() {
	s.echo.Use(s.setupRequestLoggerMiddleware())
	s.echo.Use(middleware.Recover())
	s.echo.Use(correlationMiddleware)
	s.echo.Use(ErrorHandlingMiddleware())
	s.echo.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:      "",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
		HSTSMaxAge:         63072000, // 2 years; only sent over HTTPS
		HSTSPreloadEnabled: true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
	}))

	// Coarse per-IP backstop in front of the admission profiles, so a single
	// client cannot even reach the shared store at abusive rates.
	readBackstop := newRateLimiter(20, 40)

	api := s.echo.Group("/api")
	api.GET("/providers/:providerID/plans/:planID/acceptance", s.handleGetAcceptance,
		readBackstop, s.admissionMiddleware(admission.ProfileDefault))
	api.GET("/providers/:providerID/plans/:planID/observations", s.handleListObservations,
		readBackstop, s.admissionMiddleware(admission.ProfileSearch))
	api.POST("/observations", s.handleSubmitObservation,
		s.admissionMiddleware(admission.ProfileSubmission), s.botCheckMiddleware)
	api.POST("/observations/:observationID/votes", s.handleCastVote,
		s.admissionMiddleware(admission.ProfileVote), s.botCheckMiddleware)

	admin := s.echo.Group("/admin", s.requireOperatorToken)
	admin.POST("/decay-sweep", s.handleDecaySweep)
	admin.POST("/cleanup", s.handleCleanup)

	s.registerHealthRoutes()
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

func (s *Server) setupRequestLoggerMiddleware() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
			}
			slog.Info("Request", attrs...)
			return nil
		},
	})
}
