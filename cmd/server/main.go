package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/coverpulse/coverpulse/internal/adapter/botrisk"
	"github.com/coverpulse/coverpulse/internal/adapter/httpserver"
	"github.com/coverpulse/coverpulse/internal/adapter/postgres"
	redisadapter "github.com/coverpulse/coverpulse/internal/adapter/redis"
	"github.com/coverpulse/coverpulse/internal/admission"
	"github.com/coverpulse/coverpulse/internal/app"
	"github.com/coverpulse/coverpulse/internal/domain"
	"github.com/coverpulse/coverpulse/internal/platform/config"
	"github.com/coverpulse/coverpulse/internal/platform/logging"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := postgres.RunMigrationsWithLock(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return pool
}

func setupRedis(ctx context.Context, cfg *config.Config) *goredis.Client {
	client, err := redisadapter.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func admissionProfiles(cfg *config.Config) admission.Profiles {
	return admission.Profiles{
		admission.ProfileDefault:    {Max: cfg.DefaultLimit, Window: cfg.RateLimitWindow},
		admission.ProfileSearch:     {Max: cfg.SearchLimit, Window: cfg.RateLimitWindow},
		admission.ProfileSubmission: {Max: cfg.SubmissionLimit, Window: cfg.RateLimitWindow},
		admission.ProfileVote:       {Max: cfg.VoteLimit, Window: cfg.RateLimitWindow},
	}
}

// setupLimiter selects the admission backend: the shared Redis window store
// wrapped in the fail-open fallback, or the purely local store for
// single-instance deployments. The returned stop function ends the fallback
// sweeper.
func setupLimiter(cfg *config.Config, redisClient *goredis.Client, clock clockwork.Clock) (admission.Limiter, func()) {
	profiles := admissionProfiles(cfg)

	if cfg.RateLimitBackend == "redis" {
		failover := admission.NewFailover(redisadapter.NewWindowStore(redisClient, profiles, clock), profiles, clock)
		return failover, failover.Stop
	}

	local := admission.NewLocalStore(profiles, clock)
	stop := local.StartSweeper(time.Minute)
	return local, stop
}

func setupBotCheck(cfg *config.Config) domain.BotRiskChecker {
	if !cfg.BotCheckEnabled {
		slog.Info("Bot check disabled, all submissions pass")
		return botrisk.AllowAll{}
	}
	return botrisk.NewClient(cfg.BotCheckURL, cfg.BotCheckSecret, cfg.BotCheckTimeout)
}

func runGracefulShutdown(srv *httpserver.Server, stopLimiter func()) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		stopLimiter()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	// Initialize structured logging
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	pool := setupDB(cfg)
	defer pool.Close()

	// Redis backs the shared rate-limit store and the read cache. A local-only
	// deployment without REDIS_URL runs with neither.
	var redisClient *goredis.Client
	if cfg.RedisURL != "" {
		redisClient = setupRedis(context.Background(), cfg)
		defer func() { _ = redisClient.Close() }()
	}

	limiter, stopLimiter := setupLimiter(cfg, redisClient, clock)

	var cache app.AcceptanceCache = app.NoopCache{}
	if redisClient != nil {
		cache = redisadapter.NewAcceptanceCache(redisClient, cfg.ReadCacheTTL)
	}

	ledgerRepo := postgres.NewLedgerRepo(pool)
	acceptanceRepo := postgres.NewAcceptanceRepo(pool)
	refdataRepo := postgres.NewReferenceDataRepo(pool)

	svc := app.NewService(ledgerRepo, acceptanceRepo, refdataRepo, cache, clock, app.Settings{
		DedupWindow:    cfg.DedupWindow,
		ObservationTTL: cfg.ObservationTTL,
		AcceptanceTTL:  cfg.AcceptanceTTL,
	})

	healthChecks := []httpserver.HealthCheck{
		{Name: "postgres", Check: pool.Ping},
	}
	if redisClient != nil {
		healthChecks = append(healthChecks, httpserver.HealthCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	}

	srv := httpserver.NewServer(cfg, svc, limiter, setupBotCheck(cfg), healthChecks)

	done := runGracefulShutdown(srv, stopLimiter)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
