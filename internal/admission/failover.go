package admission

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/coverpulse/coverpulse/internal/metrics"
)

const fallbackSweepInterval = time.Minute

// Failover wraps the shared store with a fail-open local fallback. When the
// shared store errors mid-operation (timeout, connection failure, breaker
// open), the request is admitted against a stricter in-process budget and the
// decision is marked degraded - availability over strict enforcement, abuse
// still bounded.
//
// A "limit exceeded" decision from the shared store is not a failure and never
// triggers the fallback.
type Failover struct {
	shared      Limiter
	fallback    *LocalStore
	stopSweeper func()
}

// NewFailover builds the failover wrapper. The fallback budget is the profile
// set halved (minimum 1). Call Stop at shutdown to end the fallback sweeper.
func NewFailover(shared Limiter, profiles Profiles, clock clockwork.Clock) *Failover {
	fallback := NewLocalStore(profiles.Stricter(), clock)
	return &Failover{
		shared:      shared,
		fallback:    fallback,
		stopSweeper: fallback.StartSweeper(fallbackSweepInterval),
	}
}

var _ Limiter = (*Failover)(nil)

func (f *Failover) Allow(ctx context.Context, limiter, clientKey string) (Decision, error) {
	decision, err := f.shared.Allow(ctx, limiter, clientKey)
	if err == nil {
		return decision, nil
	}

	slog.Warn("Shared rate-limit store unreachable, degrading to local fallback",
		"limiter", limiter,
		"error", err,
	)
	metrics.AdmissionDegradedTotal.WithLabelValues(limiter).Inc()

	decision, _ = f.fallback.Allow(ctx, limiter, clientKey)
	decision.Degraded = true
	return decision, nil
}

// Stop ends the fallback sweeper goroutine.
func (f *Failover) Stop() {
	f.stopSweeper()
}
