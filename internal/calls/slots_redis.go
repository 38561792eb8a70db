package calls

import (
	"context"
	"log/slog"
	"time"

	"rtc-signaling/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// RedisSlotLimiter caps concurrent call attempts per caller using atomic
// Redis counters. The TTL guards against leaked slots if the process dies
// while a call is live.
type RedisSlotLimiter struct {
	rdb   *redis.Client
	limit int
	ttl   time.Duration
	log   *slog.Logger
}

const slotKeyPrefix = "calls:slots:"

// Slot TTL outlives any plausible call; a crashed process frees slots
// automatically once it elapses.
const slotTTL = 6 * time.Hour

func NewRedisSlotLimiter(rdb *redis.Client, limit int, log *slog.Logger) *RedisSlotLimiter {
	if limit <= 0 {
		limit = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &RedisSlotLimiter{rdb: rdb, limit: limit, ttl: slotTTL, log: log}
}

func (l *RedisSlotLimiter) Acquire(ctx context.Context, userID string) (bool, error) {
	return utils.AcquireCallSlot(ctx, l.rdb, slotKeyPrefix+userID, l.limit, l.ttl)
}

func (l *RedisSlotLimiter) Release(ctx context.Context, userID string) {
	if err := utils.ReleaseCallSlot(ctx, l.rdb, slotKeyPrefix+userID); err != nil {
		l.log.Error("call slot release failed", "user_id", userID, "err", err)
	}
}
