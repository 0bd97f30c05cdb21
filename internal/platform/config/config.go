// Package config loads and validates environment-driven configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" default:"development"`
	Port        string `env:"PORT" default:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`
	LogLevel    string `env:"LOG_LEVEL" default:"info"`
	LogFormat   string `env:"LOG_FORMAT" default:"text"`

	// AdminToken gates the operational endpoints (decay sweep, cleanup).
	// Issued out-of-band to operators; not part of the core trust model.
	AdminToken string `env:"ADMIN_TOKEN"`

	// Admission control.
	RateLimitBackend string        `env:"RATE_LIMIT_BACKEND" default:"redis"` // "redis" or "local"
	RateLimitWindow  time.Duration `env:"RATE_LIMIT_WINDOW" default:"1m"`
	DefaultLimit     int           `env:"RATE_LIMIT_DEFAULT" default:"120"`
	SearchLimit      int           `env:"RATE_LIMIT_SEARCH" default:"30"`
	SubmissionLimit  int           `env:"RATE_LIMIT_SUBMISSION" default:"5"`
	VoteLimit        int           `env:"RATE_LIMIT_VOTE" default:"20"`

	// Bot-likelihood check.
	BotCheckEnabled  bool          `env:"BOT_CHECK_ENABLED" default:"false"`
	BotCheckURL      string        `env:"BOT_CHECK_URL"`
	BotCheckSecret   string        `env:"BOT_CHECK_SECRET"`
	BotCheckFailOpen bool          `env:"BOT_CHECK_FAIL_OPEN" default:"true"`
	BotCheckTimeout  time.Duration `env:"BOT_CHECK_TIMEOUT" default:"2s"`

	// Verification ledger tunables.
	DedupWindow    time.Duration `env:"DEDUP_WINDOW" default:"720h"`     // 30 days
	ObservationTTL time.Duration `env:"OBSERVATION_TTL" default:"4320h"` // ~6 months
	AcceptanceTTL  time.Duration `env:"ACCEPTANCE_TTL" default:"4320h"`

	// Read-side cache for acceptance records.
	ReadCacheTTL time.Duration `env:"READ_CACHE_TTL" default:"60s"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if cfg.AdminToken == "" {
		return errors.New("ADMIN_TOKEN is required")
	}
	if len(cfg.AdminToken) < 16 {
		return errors.New("ADMIN_TOKEN must be at least 16 characters")
	}

	switch cfg.RateLimitBackend {
	case "redis":
		if cfg.RedisURL == "" {
			return errors.New("REDIS_URL is required when RATE_LIMIT_BACKEND=redis")
		}
	case "local":
		// single-instance deployments only
	default:
		return fmt.Errorf("RATE_LIMIT_BACKEND must be \"redis\" or \"local\", got %q", cfg.RateLimitBackend)
	}

	if cfg.BotCheckEnabled {
		if cfg.BotCheckURL == "" {
			return errors.New("BOT_CHECK_URL is required when BOT_CHECK_ENABLED=true")
		}
		if cfg.BotCheckSecret == "" {
			return errors.New("BOT_CHECK_SECRET is required when BOT_CHECK_ENABLED=true")
		}
	}

	for name, limit := range map[string]int{
		"RATE_LIMIT_DEFAULT":    cfg.DefaultLimit,
		"RATE_LIMIT_SEARCH":     cfg.SearchLimit,
		"RATE_LIMIT_SUBMISSION": cfg.SubmissionLimit,
		"RATE_LIMIT_VOTE":       cfg.VoteLimit,
	} {
		if limit < 1 {
			return fmt.Errorf("%s must be at least 1", name)
		}
	}
	if cfg.RateLimitWindow < time.Second {
		return errors.New("RATE_LIMIT_WINDOW must be at least 1s")
	}

	if cfg.DedupWindow <= 0 || cfg.ObservationTTL <= 0 || cfg.AcceptanceTTL <= 0 {
		return errors.New("DEDUP_WINDOW, OBSERVATION_TTL and ACCEPTANCE_TTL must be positive")
	}
	if cfg.ObservationTTL < cfg.DedupWindow {
		return errors.New("OBSERVATION_TTL must not be shorter than DEDUP_WINDOW")
	}

	return nil
}
