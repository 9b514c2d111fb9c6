package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// guardTTL slightly exceeds common candle intervals so only exact duplicate
// publishes of the same observation are filtered, and each freshly closed
// window can evaluate again.
const guardTTL = 2 * time.Minute

// RedisPassGuard enforces at most one evaluation pass per (alert, observation
// timestamp) by claiming a short-lived redis key. It fails open: if redis is
// unreachable the pass proceeds and the cooldown gate still bounds triggers.
//
// RedisPassGuard implements alerts.PassGuard.
type RedisPassGuard struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewRedisPassGuard creates the guard.
func NewRedisPassGuard(rdb *redis.Client, logger zerolog.Logger) *RedisPassGuard {
	return &RedisPassGuard{
		rdb:    rdb,
		ttl:    guardTTL,
		logger: logger.With().Str("component", "pass-guard").Logger(),
	}
}

// Begin claims the pass for this alert and observation timestamp, reporting
// false when another pass already claimed it.
func (g *RedisPassGuard) Begin(ctx context.Context, alertID uuid.UUID, at time.Time) bool {
	key := fmt.Sprintf("alertpass:%s:%d", alertID, at.Unix())
	ok, err := g.rdb.SetNX(ctx, key, "1", g.ttl).Result()
	if err != nil {
		g.logger.Error().Err(err).Msg("pass guard check failed, allowing pass")
		return true
	}
	return ok
}
