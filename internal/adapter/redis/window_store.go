package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/coverpulse/coverpulse/internal/admission"
)

// slidingWindowScript performs one admission check as a single atomic
// trim-add-count round trip on a sorted set of request timestamps.
// KEYS[1] = window key, ARGV: [1]=window_ms, [2]=max, [3]=now_ms, [4]=member
// Returns {allowed 0|1, remaining, reset_at_ms}.
// The key expiry is set slightly beyond the window so idle entries are
// garbage-collected by Redis itself.
var slidingWindowScript = goredis.NewScript(`
local window = tonumber(ARGV[1])
local max = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', KEYS[1], 0, now - window)
local count = redis.call('ZCARD', KEYS[1])
if count < max then
	redis.call('ZADD', KEYS[1], now, ARGV[4])
	redis.call('PEXPIRE', KEYS[1], window + 1000)
	return {1, max - count - 1, now + window}
end
local oldest = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
local reset = now + window
if oldest[2] then
	reset = tonumber(oldest[2]) + window
end
return {0, 0, reset}
`)

// WindowStore is the shared sliding-window admission backend. Each check is
// one Lua round trip, atomic across instances.
type WindowStore struct {
	rdb      goredis.Scripter
	profiles admission.Profiles
	clock    clockwork.Clock
}

// NewWindowStore creates the Redis-backed admission store.
func NewWindowStore(rdb goredis.Scripter, profiles admission.Profiles, clock clockwork.Clock) *WindowStore {
	return &WindowStore{
		rdb:      rdb,
		profiles: profiles,
		clock:    clock,
	}
}

var _ admission.Limiter = (*WindowStore)(nil)

// Allow checks and records one request. Errors indicate the store itself is
// unreachable, never an over-budget decision.
func (s *WindowStore) Allow(ctx context.Context, limiter, clientKey string) (admission.Decision, error) {
	prof := s.profiles.Get(limiter)
	now := s.clock.Now()

	result, err := slidingWindowScript.Run(ctx, s.rdb,
		[]string{windowKey(limiter, clientKey)},
		strconv.FormatInt(prof.Window.Milliseconds(), 10),
		strconv.Itoa(prof.Max),
		strconv.FormatInt(now.UnixMilli(), 10),
		uuid.NewString(),
	).Slice()
	if err != nil {
		return admission.Decision{}, fmt.Errorf("sliding window script failed: %w", err)
	}
	if len(result) != 3 {
		return admission.Decision{}, fmt.Errorf("sliding window script returned %d values, want 3", len(result))
	}

	allowed, remaining, resetAtMs, err := parseWindowReply(result)
	if err != nil {
		return admission.Decision{}, err
	}

	decision := admission.Decision{
		Allowed:   allowed,
		Remaining: remaining,
		ResetAt:   time.UnixMilli(resetAtMs),
	}
	if !allowed {
		decision.RetryAfter = decision.ResetAt.Sub(now)
		if decision.RetryAfter < 0 {
			decision.RetryAfter = 0
		}
	}
	return decision, nil
}

func parseWindowReply(reply []interface{}) (allowed bool, remaining int, resetAtMs int64, err error) {
	vals := make([]int64, len(reply))
	for i, v := range reply {
		n, ok := v.(int64)
		if !ok {
			return false, 0, 0, fmt.Errorf("sliding window script value %d is %T, want int64", i, v)
		}
		vals[i] = n
	}
	return vals[0] == 1, int(vals[1]), vals[2], nil
}

func windowKey(limiter, clientKey string) string {
	return "ratelimit:" + limiter + ":" + clientKey
}
