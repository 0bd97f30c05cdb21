package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/coverpulse/coverpulse/internal/domain"
	"github.com/coverpulse/coverpulse/internal/metrics"
)

// AcceptanceCache is the shared read cache for acceptance records, keyed per
// (provider, plan). Writes to a pair invalidate its entry; reads fall through
// to Postgres on miss or Redis outage (cache-aside).
type AcceptanceCache struct {
	rdb goredis.Cmdable
	ttl time.Duration
}

// NewAcceptanceCache creates the read cache with the given entry TTL.
func NewAcceptanceCache(rdb goredis.Cmdable, ttl time.Duration) *AcceptanceCache {
	return &AcceptanceCache{rdb: rdb, ttl: ttl}
}

// Get returns the cached record for a pair, or (nil, false) on miss. Redis
// failures are reported as misses so the read path degrades to Postgres.
func (c *AcceptanceCache) Get(ctx context.Context, providerID, planID uuid.UUID) (*domain.AcceptanceRecord, bool) {
	raw, err := c.rdb.Get(ctx, acceptanceKey(providerID, planID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		metrics.ReadCacheRequestsTotal.WithLabelValues("miss").Inc()
		return nil, false
	}
	if err != nil {
		metrics.ReadCacheRequestsTotal.WithLabelValues("error").Inc()
		return nil, false
	}

	var rec domain.AcceptanceRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		metrics.ReadCacheRequestsTotal.WithLabelValues("error").Inc()
		return nil, false
	}
	metrics.ReadCacheRequestsTotal.WithLabelValues("hit").Inc()
	return &rec, true
}

// Set stores a record for its pair. Best-effort: errors are returned for
// logging but the caller already has the authoritative row.
func (c *AcceptanceCache) Set(ctx context.Context, rec *domain.AcceptanceRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal acceptance record: %w", err)
	}
	if err := c.rdb.Set(ctx, acceptanceKey(rec.ProviderID, rec.PlanID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache acceptance record: %w", err)
	}
	return nil
}

// Invalidate drops the cached entry for a pair after a ledger write.
func (c *AcceptanceCache) Invalidate(ctx context.Context, providerID, planID uuid.UUID) error {
	if err := c.rdb.Del(ctx, acceptanceKey(providerID, planID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate acceptance cache: %w", err)
	}
	return nil
}

func acceptanceKey(providerID, planID uuid.UUID) string {
	return "acceptance:" + providerID.String() + ":" + planID.String()
}
