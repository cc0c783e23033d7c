package middlewares

import (
	"context"
	"time"

	"github.com/tourhub/tourhub/internal/redisclient"
)

// RedisCounter shares rate limit windows across API instances.
type RedisCounter struct {
	client *redisclient.Client
}

func NewRedisCounter(client *redisclient.Client) *RedisCounter {
	return &RedisCounter{client: client}
}

func (r *RedisCounter) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	return r.client.IncrWindow(ctx, key, window)
}
