package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient connects the shared store used for cooldowns, relay throttling and
// idempotency records, and verifies connectivity.
func NewRedisClient(ctx context.Context, url string, callTimeout time.Duration) (*redis.Client, error) {
	if url == "" {
		return nil, fmt.Errorf("redis url is required")
	}

	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if callTimeout > 0 {
		opt.DialTimeout = callTimeout
		opt.ReadTimeout = callTimeout
		opt.WriteTimeout = callTimeout
	}

	client := redis.NewClient(opt)

	pingCtx, cancel := withOptionalTimeout(ctx, callTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}
