// Package idempotency keeps caller-supplied batch IDs from fanning out twice.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"community-notifications/internal/common/config"
	"community-notifications/internal/notification"

	"github.com/redis/go-redis/v9"
)

const pendingMarker = "pending"

type Config struct {
	KeyPrefix string
	LockTTL   time.Duration // how long an unfinished send blocks duplicates
	ResultTTL time.Duration // how long a finished send is replayed
}

// ConfigFrom maps the notifications.idempotency section.
func ConfigFrom(n config.NotificationConfig) Config {
	return Config{
		KeyPrefix: n.Idempotency.KeyPrefix,
		LockTTL:   config.GetDuration(n.Idempotency.LockTTL),
		ResultTTL: config.GetDuration(n.Idempotency.ResultTTL),
	}
}

// RedisGuard stores "pending" under the batch key while a send runs and the JSON result once
// it has committed.
type RedisGuard struct {
	client redis.Cmdable
	cfg    Config
}

func NewRedisGuard(client redis.Cmdable, cfg Config) *RedisGuard {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "notif:batch:"
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 2 * time.Minute
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &RedisGuard{client: client, cfg: cfg}
}

func (g *RedisGuard) key(batchID string) string {
	return g.cfg.KeyPrefix + batchID
}

func (g *RedisGuard) Acquire(ctx context.Context, batchID string) (*notification.FanoutResult, error) {
	key := g.key(batchID)

	// the key can expire between SETNX and GET; one more round settles it
	for attempt := 0; attempt < 2; attempt++ {
		acquired, err := g.client.SetNX(ctx, key, pendingMarker, g.cfg.LockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire batch %s: %w", batchID, err)
		}
		if acquired {
			return nil, nil
		}

		val, err := g.client.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read batch %s: %w", batchID, err)
		}
		if val == pendingMarker {
			return nil, fmt.Errorf("%w: batch %s", notification.ErrFanoutInProgress, batchID)
		}

		var result notification.FanoutResult
		if err := json.Unmarshal([]byte(val), &result); err != nil {
			return nil, fmt.Errorf("decode stored result for batch %s: %w", batchID, err)
		}
		return &result, nil
	}
	return nil, fmt.Errorf("%w: batch %s", notification.ErrFanoutInProgress, batchID)
}

func (g *RedisGuard) Complete(ctx context.Context, batchID string, result notification.FanoutResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result for batch %s: %w", batchID, err)
	}
	if err := g.client.Set(ctx, g.key(batchID), string(data), g.cfg.ResultTTL).Err(); err != nil {
		return fmt.Errorf("store result for batch %s: %w", batchID, err)
	}
	return nil
}

// Release drops the pending marker after a failed send so a retry can proceed.
func (g *RedisGuard) Release(ctx context.Context, batchID string) error {
	if err := g.client.Del(ctx, g.key(batchID)).Err(); err != nil {
		return fmt.Errorf("release batch %s: %w", batchID, err)
	}
	return nil
}
