package cooldown

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "cooldown"

// RedisTable stores entries as expiring Redis keys. Keys are scoped to a
// per-boot namespace so a restart begins with an empty table, matching the
// in-memory behaviour.
type RedisTable struct {
	client    *redis.Client
	namespace string
}

// NewRedisTable returns a table scoped to a fresh boot namespace.
func NewRedisTable(client *redis.Client) *RedisTable {
	return &RedisTable{client: client, namespace: uuid.NewString()}
}

func (t *RedisTable) key(k Key) string {
	return fmt.Sprintf("%s:%s:%s:%s", redisKeyPrefix, t.namespace, sanitize(k.Operation), sanitize(k.RequesterID))
}

func (t *RedisTable) Admit(ctx context.Context, key Key, now time.Time, window time.Duration) (Decision, error) {
	expiry := now.Add(window)
	if window <= 0 {
		return Decision{Admitted: true, NextEligible: expiry}, nil
	}

	redisKey := t.key(key)
	// A key that expires between SETNX and GET is retried once.
	for attempt := 0; attempt < 2; attempt++ {
		ok, err := t.client.SetNX(ctx, redisKey, expiry.UnixMilli(), window).Result()
		if err != nil {
			return Decision{}, fmt.Errorf("admit cooldown: %w", err)
		}
		if ok {
			return Decision{Admitted: true, NextEligible: expiry}, nil
		}

		existing, found, err := t.load(ctx, redisKey)
		if err != nil {
			return Decision{}, err
		}
		if found {
			return Decision{Admitted: false, NextEligible: existing}, nil
		}
	}
	return Decision{}, fmt.Errorf("admit cooldown: entry for %s kept disappearing", key)
}

func (t *RedisTable) Remaining(ctx context.Context, key Key, now time.Time) (time.Duration, error) {
	expiry, found, err := t.load(ctx, t.key(key))
	if err != nil || !found || !now.Before(expiry) {
		return 0, err
	}
	return expiry.Sub(now), nil
}

func (t *RedisTable) load(ctx context.Context, redisKey string) (time.Time, bool, error) {
	raw, err := t.client.Get(ctx, redisKey).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("read cooldown: %w", err)
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("decode cooldown %q: %w", raw, err)
	}
	return time.UnixMilli(ms), true, nil
}
