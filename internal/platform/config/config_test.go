package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		AppEnv:           "test",
		Port:             "8080",
		DatabaseURL:      "postgres://localhost:5432/coverpulse",
		RedisURL:         "redis://localhost:6379",
		AdminToken:       "an-operator-token-long-enough",
		RateLimitBackend: "redis",
		RateLimitWindow:  time.Minute,
		DefaultLimit:     120,
		SearchLimit:      30,
		SubmissionLimit:  5,
		VoteLimit:        20,
		DedupWindow:      720 * time.Hour,
		ObservationTTL:   4320 * time.Hour,
		AcceptanceTTL:    4320 * time.Hour,
	}
}

func TestValidate_OK(t *testing.T) {
	require.NoError(t, validate(validConfig()))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing database URL",
			mutate:  func(c *Config) { c.DatabaseURL = "" },
			wantErr: "DATABASE_URL is required",
		},
		{
			name:    "missing admin token",
			mutate:  func(c *Config) { c.AdminToken = "" },
			wantErr: "ADMIN_TOKEN is required",
		},
		{
			name:    "short admin token",
			mutate:  func(c *Config) { c.AdminToken = "too-short" },
			wantErr: "at least 16 characters",
		},
		{
			name:    "redis backend without redis URL",
			mutate:  func(c *Config) { c.RedisURL = "" },
			wantErr: "REDIS_URL is required",
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.RateLimitBackend = "memcached" },
			wantErr: "RATE_LIMIT_BACKEND",
		},
		{
			name: "bot check enabled without URL",
			mutate: func(c *Config) {
				c.BotCheckEnabled = true
				c.BotCheckSecret = "secret"
			},
			wantErr: "BOT_CHECK_URL is required",
		},
		{
			name: "bot check enabled without secret",
			mutate: func(c *Config) {
				c.BotCheckEnabled = true
				c.BotCheckURL = "https://verify.example.com"
			},
			wantErr: "BOT_CHECK_SECRET is required",
		},
		{
			name:    "zero submission limit",
			mutate:  func(c *Config) { c.SubmissionLimit = 0 },
			wantErr: "RATE_LIMIT_SUBMISSION must be at least 1",
		},
		{
			name:    "sub-second window",
			mutate:  func(c *Config) { c.RateLimitWindow = 500 * time.Millisecond },
			wantErr: "RATE_LIMIT_WINDOW must be at least 1s",
		},
		{
			name:    "non-positive dedup window",
			mutate:  func(c *Config) { c.DedupWindow = 0 },
			wantErr: "must be positive",
		},
		{
			name:    "observation TTL shorter than dedup window",
			mutate:  func(c *Config) { c.ObservationTTL = 24 * time.Hour },
			wantErr: "OBSERVATION_TTL must not be shorter than DEDUP_WINDOW",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_LocalBackendNeedsNoRedis(t *testing.T) {
	cfg := validConfig()
	cfg.RateLimitBackend = "local"
	cfg.RedisURL = ""

	assert.NoError(t, validate(cfg))
}
