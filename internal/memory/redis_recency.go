package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/easeaico/project-jobo/internal/types"
)

// RedisRecency is a RecencyBuffer shared across processes through Redis lists.
type RedisRecency struct {
	client   redis.UniversalClient
	capacity int
	ttl      time.Duration
}

// NewRedisRecency wraps an existing client.
func NewRedisRecency(client redis.UniversalClient, capacity int, ttl time.Duration) *RedisRecency {
	if capacity <= 0 {
		capacity = DefaultRecencyCapacity
	}
	if ttl <= 0 {
		ttl = DefaultRecencyTTL
	}
	return &RedisRecency{client: client, capacity: capacity, ttl: ttl}
}

// DialRedis parses url and checks connectivity.
func DialRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// Append runs LPUSH, LTRIM and EXPIRE inside one MULTI/EXEC.
func (r *RedisRecency) Append(ctx context.Context, identity string, turn types.Turn) error {
	if identity == "" {
		return types.ErrEmptyIdentity
	}
	payload, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("failed to encode turn: %w", err)
	}
	k := key(identity)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, k, payload)
		pipe.LTrim(ctx, k, 0, int64(r.capacity-1))
		pipe.Expire(ctx, k, r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append turn: %w", err)
	}
	return nil
}

func (r *RedisRecency) Recent(ctx context.Context, identity string, k int) ([]types.Turn, error) {
	if k <= 0 {
		return []types.Turn{}, nil
	}
	values, err := r.client.LRange(ctx, key(identity), 0, int64(k-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read recent turns: %w", err)
	}
	turns := make([]types.Turn, 0, len(values))
	for _, v := range values {
		var turn types.Turn
		if err := json.Unmarshal([]byte(v), &turn); err != nil {
			slog.Warn("skipping undecodable turn", "user_id", identity, "error", err)
			continue
		}
		turns = append(turns, turn)
	}
	return turns, nil
}
