package funnel

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisRing keeps the buffer in a Redis list so every API instance shares it and restarts keep it.
type RedisRing struct {
	rdb      *redis.Client
	key      string
	capacity int64
}

func NewRedisRing(rdb *redis.Client, key string, capacity int) *RedisRing {
	if capacity < 1 {
		capacity = 1
	}
	return &RedisRing{rdb: rdb, key: key, capacity: int64(capacity)}
}

func (r *RedisRing) Record(ctx context.Context, e Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	pipe := r.rdb.TxPipeline()
	pipe.LPush(ctx, r.key, b)
	pipe.LTrim(ctx, r.key, 0, r.capacity-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("funnel record: %w", err)
	}
	return nil
}

func (r *RedisRing) Recent(ctx context.Context, n int) ([]Event, error) {
	stop := int64(n) - 1
	if n <= 0 || int64(n) > r.capacity {
		stop = r.capacity - 1
	}
	raw, err := r.rdb.LRange(ctx, r.key, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("funnel recent: %w", err)
	}
	out := make([]Event, 0, len(raw))
	for _, s := range raw {
		var e Event
		if err := json.Unmarshal([]byte(s), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
