package admission

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyLimiter simulates a shared store that can be switched into an outage.
type flakyLimiter struct {
	inner Limiter
	down  bool
}

func (f *flakyLimiter) Allow(ctx context.Context, limiter, clientKey string) (Decision, error) {
	if f.down {
		return Decision{}, errors.New("dial tcp: connection refused")
	}
	return f.inner.Allow(ctx, limiter, clientKey)
}

func TestFailover_PassesThroughWhenSharedHealthy(t *testing.T) {
	clock := clockwork.NewFakeClock()
	shared := &flakyLimiter{inner: NewLocalStore(testProfiles(), clock)}
	f := NewFailover(shared, testProfiles(), clock)
	defer f.Stop()

	d, err := f.Allow(context.Background(), ProfileSubmission, "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.False(t, d.Degraded)
}

func TestFailover_FailsOpenWithStricterBudget(t *testing.T) {
	clock := clockwork.NewFakeClock()
	shared := &flakyLimiter{inner: NewLocalStore(testProfiles(), clock), down: true}
	f := NewFailover(shared, testProfiles(), clock)
	defer f.Stop()
	ctx := context.Background()

	// Submission profile max is 3; the fallback budget is half, floored to 1.
	d, err := f.Allow(ctx, ProfileSubmission, "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, d.Allowed, "fail open: first request admitted despite outage")
	assert.True(t, d.Degraded)

	d, err = f.Allow(ctx, ProfileSubmission, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, d.Allowed, "fallback budget still bounds abuse")
	assert.True(t, d.Degraded)
}

func TestFailover_RejectionIsNotAFailure(t *testing.T) {
	clock := clockwork.NewFakeClock()
	shared := &flakyLimiter{inner: NewLocalStore(testProfiles(), clock)}
	f := NewFailover(shared, testProfiles(), clock)
	defer f.Stop()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.Allow(ctx, ProfileSubmission, "1.2.3.4")
		require.NoError(t, err)
	}

	d, err := f.Allow(ctx, ProfileSubmission, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.False(t, d.Degraded, "an over-budget decision must never be marked degraded")
}

func TestFailover_RecoversWhenSharedReturns(t *testing.T) {
	clock := clockwork.NewFakeClock()
	shared := &flakyLimiter{inner: NewLocalStore(testProfiles(), clock)}
	f := NewFailover(shared, testProfiles(), clock)
	defer f.Stop()
	ctx := context.Background()

	shared.down = true
	d, err := f.Allow(ctx, ProfileVote, "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, d.Degraded)

	shared.down = false
	clock.Advance(time.Minute)
	d, err = f.Allow(ctx, ProfileVote, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, d.Degraded)
}
