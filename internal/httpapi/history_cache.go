package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"rtc-signaling/internal/calls"

	"github.com/redis/go-redis/v9"
)

// HistoryCache caches call-history responses in Redis for a short TTL and is
// invalidated whenever the state machine writes a record for a user. A nil
// cache (or a Redis outage) degrades to direct Postgres reads.
//
// It satisfies calls.CacheInvalidator.
type HistoryCache struct {
	rdb *redis.Client
	ttl time.Duration
	log *slog.Logger
}

func NewHistoryCache(rdb *redis.Client, ttl time.Duration, log *slog.Logger) *HistoryCache {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &HistoryCache{rdb: rdb, ttl: ttl, log: log}
}

func historyKey(userID string, limit int) string {
	return fmt.Sprintf("calls:history:%s:%d", userID, limit)
}

// userPattern matches every cached limit variant for a user.
func userPattern(userID string) string {
	return fmt.Sprintf("calls:history:%s:*", userID)
}

func (c *HistoryCache) Get(ctx context.Context, userID string, limit int) ([]calls.Record, bool) {
	if c == nil || c.rdb == nil {
		return nil, false
	}
	raw, err := c.rdb.Get(ctx, historyKey(userID, limit)).Bytes()
	if err != nil {
		return nil, false
	}
	var recs []calls.Record
	if err := json.Unmarshal(raw, &recs); err != nil {
		return nil, false
	}
	return recs, true
}

func (c *HistoryCache) Set(ctx context.Context, userID string, limit int, recs []calls.Record) {
	if c == nil || c.rdb == nil {
		return
	}
	raw, err := json.Marshal(recs)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, historyKey(userID, limit), raw, c.ttl).Err(); err != nil {
		c.log.Debug("history cache set failed", "user_id", userID, "err", err)
	}
}

// Invalidate drops every cached history view for the given users.
// Best-effort: failures are logged at debug and otherwise ignored.
func (c *HistoryCache) Invalidate(ctx context.Context, userIDs ...string) {
	if c == nil || c.rdb == nil {
		return
	}
	for _, userID := range userIDs {
		iter := c.rdb.Scan(ctx, 0, userPattern(userID), 100).Iterator()
		var keys []string
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			c.log.Debug("history cache scan failed", "user_id", userID, "err", err)
			continue
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				c.log.Debug("history cache invalidate failed", "user_id", userID, "err", err)
			}
		}
	}
}
