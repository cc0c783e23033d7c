package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Client struct {
	redisdb *redis.Client
}

type Config struct {
	Addr     string
	Password string
	DB       int
}

func New(cfg Config) *Client {
	redisdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	return &Client{redisdb: redisdb}
}

// this ping function checks redis connectivity

func (c *Client) Ping(ctx context.Context) error {
	return c.redisdb.Ping(ctx).Err()
}

// this closes the client

func (c *Client) Close() error {
	return c.redisdb.Close()
}

func (c *Client) Raw() *redis.Client {
	return c.redisdb
}

// IncrWindow counts one hit against key in a fixed window that starts with
// the first hit. It returns the count so far and the time left in the window.
func (c *Client) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	pipe := c.redisdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	ttl := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, fmt.Errorf("incr window %s: %w", key, err)
	}

	remaining := ttl.Val()
	if remaining < 0 {
		// first hit, or a key left without expiry
		if err := c.redisdb.PExpire(ctx, key, window).Err(); err != nil {
			return 0, 0, fmt.Errorf("expire window %s: %w", key, err)
		}
		remaining = window
	}
	return incr.Val(), remaining, nil
}
