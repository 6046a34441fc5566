package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisThrottle is the persistent ThrottleStore variant. The cool-down window
// is the key TTL, so Cooling -> Idle happens by expiry without any timer.
type RedisThrottle struct {
	client *redis.Client
	prefix string
	window time.Duration
}

func NewRedisThrottle(client *redis.Client, prefix string, window time.Duration) *RedisThrottle {
	if prefix == "" {
		prefix = "agrosense:alert:last:"
	}
	return &RedisThrottle{client: client, prefix: prefix, window: window}
}

func (r *RedisThrottle) key(sensorID uint) string {
	return fmt.Sprintf("%s%d", r.prefix, sensorID)
}

func (r *RedisThrottle) TryAcquire(ctx context.Context, sensorID uint, now time.Time) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.key(sensorID), now.UTC().Format(time.RFC3339Nano), r.window).Result()
	if err != nil {
		return false, fmt.Errorf("throttle setnx: %w", err)
	}
	return ok, nil
}

func (r *RedisThrottle) Release(ctx context.Context, sensorID uint) error {
	if err := r.client.Del(ctx, r.key(sensorID)).Err(); err != nil {
		return fmt.Errorf("throttle del: %w", err)
	}
	return nil
}

func (r *RedisThrottle) Status(ctx context.Context, sensorID uint, now time.Time) (Status, error) {
	val, err := r.client.Get(ctx, r.key(sensorID)).Result()
	if err == redis.Nil {
		return Status{MaySend: true}, nil
	}
	if err != nil {
		return Status{}, fmt.Errorf("throttle get: %w", err)
	}

	last, err := time.Parse(time.RFC3339Nano, val)
	if err != nil {
		return Status{}, fmt.Errorf("throttle parse timestamp: %w", err)
	}

	elapsed := now.Sub(last)
	st := Status{LastAlertAt: &last, MaySend: elapsed >= r.window}
	if !st.MaySend {
		st.RemainingSec = int((r.window - elapsed).Seconds())
	}
	return st, nil
}

func (r *RedisThrottle) Reset(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("throttle reset del: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("throttle reset scan: %w", err)
	}
	return nil
}
