package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"schedcore/internal/domain/schedule"
	"schedcore/internal/pkg/config"
	"schedcore/internal/pkg/errs"
)

const (
	slotKeyPrefix = "avail:"
	indexPrefix   = "avail-idx:"
)

// SlotCache keeps computed availability grids in Redis. Entries are keyed by
// staff and query range; per staff+day index sets track which entries touch
// a given day so a booking write can invalidate exactly the affected days.
type SlotCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewSlotCache(rdb *redis.Client, cfg config.SchedulingConfig, logger *slog.Logger) *SlotCache {
	return &SlotCache{rdb: rdb, ttl: cfg.CacheTTL, logger: logger}
}

func NewRedisClient(cfg config.RedisConfig) (*redis.Client, func(), error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, nil, errs.Wrap(err, "ping redis")
	}
	cleanup := func() { _ = rdb.Close() }
	return rdb, cleanup, nil
}

// slotKey hashes the query range plus a caller fingerprint (duration,
// buffer, policy knobs). Without the fingerprint two services sharing a
// range would read each other's slots.
func slotKey(staffID int64, from, to time.Time, fingerprint string) string {
	sum := sha256.Sum256([]byte(from.UTC().Format(time.RFC3339) + "|" + to.UTC().Format(time.RFC3339) + "|" + fingerprint))
	return slotKeyPrefix + "s" + strconv.FormatInt(staffID, 10) + ":" + hex.EncodeToString(sum[:])[:16]
}

func indexKey(staffID int64, day time.Time) string {
	return indexPrefix + "s" + strconv.FormatInt(staffID, 10) + ":" + day.UTC().Format("2006-01-02")
}

// Get returns the cached slot list for a staff/range pair, or (nil, false)
// on a miss. Redis trouble is reported as a miss: availability must not
// fail because the cache is down.
func (c *SlotCache) Get(ctx context.Context, staffID int64, from, to time.Time, fingerprint string) ([]schedule.Slot, bool) {
	raw, err := c.rdb.Get(ctx, slotKey(staffID, from, to, fingerprint)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("slot cache read failed", slog.String("error", err.Error()))
		}
		return nil, false
	}
	var slots []schedule.Slot
	if err := json.Unmarshal(raw, &slots); err != nil {
		c.logger.Warn("slot cache entry corrupt", slog.String("error", err.Error()))
		return nil, false
	}
	return slots, true
}

// Set stores a computed slot list and registers the entry in the index set
// of every UTC day the range touches.
func (c *SlotCache) Set(ctx context.Context, staffID int64, from, to time.Time, fingerprint string, slots []schedule.Slot) {
	raw, err := json.Marshal(slots)
	if err != nil {
		return
	}
	key := slotKey(staffID, from, to, fingerprint)
	pipe := c.rdb.TxPipeline()
	pipe.Set(ctx, key, raw, c.ttl)
	for day := from.UTC().Truncate(24 * time.Hour); day.Before(to.UTC()); day = day.AddDate(0, 0, 1) {
		idx := indexKey(staffID, day)
		pipe.SAdd(ctx, idx, key)
		pipe.Expire(ctx, idx, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("slot cache write failed", slog.String("error", err.Error()))
	}
}

// InvalidateDay drops every cached entry for the staff member that touches
// the given UTC day. Merged views are assembled from the per-staff entries
// at read time, so they never land in the cache themselves.
func (c *SlotCache) InvalidateDay(ctx context.Context, staffID int64, day time.Time) {
	c.dropIndexed(ctx, indexKey(staffID, day))
}

func (c *SlotCache) dropIndexed(ctx context.Context, idx string) {
	keys, err := c.rdb.SMembers(ctx, idx).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("slot cache index read failed", slog.String("error", err.Error()))
		}
		return
	}
	if len(keys) > 0 {
		if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
			c.logger.Warn("slot cache invalidation failed", slog.String("error", err.Error()))
		}
	}
	_ = c.rdb.Del(ctx, idx).Err()
}

// InvalidateAll flushes every availability entry. Used when scheduling
// policy changes at runtime.
func (c *SlotCache) InvalidateAll(ctx context.Context) {
	for _, pattern := range []string{slotKeyPrefix + "*", indexPrefix + "*"} {
		iter := c.rdb.Scan(ctx, 0, pattern, 256).Iterator()
		var keys []string
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
			if len(keys) >= 256 {
				_ = c.rdb.Del(ctx, keys...).Err()
				keys = keys[:0]
			}
		}
		if len(keys) > 0 {
			_ = c.rdb.Del(ctx, keys...).Err()
		}
		if err := iter.Err(); err != nil {
			c.logger.Warn("slot cache scan failed", slog.String("error", err.Error()))
		}
	}
}
