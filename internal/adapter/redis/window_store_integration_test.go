package redis

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coverpulse/coverpulse/internal/admission"
)

func windowProfiles() admission.Profiles {
	return admission.Profiles{
		admission.ProfileDefault:    {Max: 100, Window: time.Minute},
		admission.ProfileSubmission: {Max: 5, Window: time.Minute},
	}
}

func TestWindowStore_Integration_BudgetExhaustion(t *testing.T) {
	client := setupTestClient(t)
	clock := clockwork.NewFakeClock()
	store := NewWindowStore(client, windowProfiles(), clock)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		d, err := store.Allow(ctx, admission.ProfileSubmission, "203.0.113.7")
		require.NoError(t, err)
		assert.True(t, d.Allowed, "request %d should be allowed", i+1)
		assert.Equal(t, 5-i-1, d.Remaining)
	}

	d, err := store.Allow(ctx, admission.ProfileSubmission, "203.0.113.7")
	require.NoError(t, err)
	assert.False(t, d.Allowed, "6th request inside the window must be rejected")
	assert.Equal(t, time.Minute, d.RetryAfter)
}

func TestWindowStore_Integration_WindowSlides(t *testing.T) {
	client := setupTestClient(t)
	clock := clockwork.NewFakeClock()
	store := NewWindowStore(client, windowProfiles(), clock)
	ctx := context.Background()

	// Two requests, then three more half a window later.
	for i := 0; i < 2; i++ {
		_, err := store.Allow(ctx, admission.ProfileSubmission, "203.0.113.7")
		require.NoError(t, err)
	}
	clock.Advance(30 * time.Second)
	for i := 0; i < 3; i++ {
		_, err := store.Allow(ctx, admission.ProfileSubmission, "203.0.113.7")
		require.NoError(t, err)
	}

	d, err := store.Allow(ctx, admission.ProfileSubmission, "203.0.113.7")
	require.NoError(t, err)
	require.False(t, d.Allowed)
	assert.Equal(t, 30*time.Second, d.RetryAfter)

	// Once the first two requests age out, exactly two slots open up.
	clock.Advance(31 * time.Second)
	for i := 0; i < 2; i++ {
		d, err = store.Allow(ctx, admission.ProfileSubmission, "203.0.113.7")
		require.NoError(t, err)
		assert.True(t, d.Allowed, "slot %d should reopen", i+1)
	}
	d, err = store.Allow(ctx, admission.ProfileSubmission, "203.0.113.7")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}

func TestWindowStore_Integration_ClientsIndependent(t *testing.T) {
	client := setupTestClient(t)
	clock := clockwork.NewFakeClock()
	store := NewWindowStore(client, windowProfiles(), clock)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := store.Allow(ctx, admission.ProfileSubmission, "203.0.113.7")
		require.NoError(t, err)
	}

	d, err := store.Allow(ctx, admission.ProfileSubmission, "198.51.100.9")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestWindowStore_Integration_KeyExpiryGarbageCollects(t *testing.T) {
	client := setupTestClient(t)
	clock := clockwork.NewFakeClock()
	store := NewWindowStore(client, windowProfiles(), clock)
	ctx := context.Background()

	_, err := store.Allow(ctx, admission.ProfileSubmission, "203.0.113.7")
	require.NoError(t, err)

	ttl, err := client.PTTL(ctx, "ratelimit:submission:203.0.113.7").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Minute, "expiry must exceed the window for GC")
	assert.LessOrEqual(t, ttl, time.Minute+time.Second)
}
