package api

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const replayKeyPrefix = "idem:"

// RedisReplayGuard claims Idempotency-Key values in Redis. A claimed key
// answers 409 to every replay until its TTL runs out; a mutation that fails
// releases its key so the client may retry with it.
type RedisReplayGuard struct {
	rc  *redis.Client
	ttl time.Duration
}

func NewRedisReplayGuard(rc *redis.Client, ttl time.Duration) *RedisReplayGuard {
	return &RedisReplayGuard{rc: rc, ttl: ttl}
}

// Claim reports false when userID already used key.
func (g *RedisReplayGuard) Claim(ctx context.Context, userID, key string) (bool, error) {
	return g.rc.SetNX(ctx, replayKey(userID, key), time.Now().UTC().Format(time.RFC3339), g.ttl).Result()
}

func (g *RedisReplayGuard) Release(ctx context.Context, userID, key string) error {
	return g.rc.Del(ctx, replayKey(userID, key)).Err()
}

// Keys are scoped per user so two accounts may reuse the same key.
func replayKey(userID, key string) string {
	return replayKeyPrefix + userID + ":" + key
}
