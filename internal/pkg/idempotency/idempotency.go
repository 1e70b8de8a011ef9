package idempotency

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const keyPrefix = "workflow:idem:"

// Guard claims workflow idempotency keys in Redis. Replaying a balance
// workflow is not safe, so callers that retry must supply a key; the guard
// rejects the second claim within the TTL window.
type Guard struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewGuard creates a guard. A nil client disables guarding (every claim
// succeeds) so single-instance dev setups keep working without Redis.
func NewGuard(client *redis.Client, ttl time.Duration) *Guard {
	return &Guard{redis: client, ttl: ttl}
}

// Claim marks the key as used. Returns false when the key was already
// claimed. Redis outages fail open with a warning: blocking every workflow
// on a cache outage would be worse than a rare duplicate.
func (g *Guard) Claim(ctx context.Context, key string) bool {
	if g == nil || g.redis == nil || key == "" {
		return true
	}

	ok, err := g.redis.SetNX(ctx, keyPrefix+key, time.Now().Unix(), g.ttl).Result()
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("idempotency claim failed, allowing request")
		return true
	}
	return ok
}

// Release frees a claimed key so a failed workflow can be retried with the
// same key.
func (g *Guard) Release(ctx context.Context, key string) {
	if g == nil || g.redis == nil || key == "" {
		return
	}
	if err := g.redis.Del(ctx, keyPrefix+key).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to release idempotency key")
	}
}
