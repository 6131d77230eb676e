package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"acctlog/internal/core"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// Redis is a Locker backed by redislock, shared by every process using the
// same Redis instance.
type Redis struct {
	client *redislock.Client
	prefix string
}

// NewRedis wraps an existing Redis client. Keys are stored as prefix plus
// the sanitized key.
func NewRedis(rdb redislock.RedisClient, prefix string) *Redis {
	return &Redis{client: redislock.New(rdb), prefix: prefix}
}

// Dial connects to Redis and checks the connection.
func Dial(ctx context.Context, addr, password string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return rdb, nil
}

// RedisKey returns the Redis key used for key.
func (r *Redis) RedisKey(key string) string {
	return r.prefix + core.SanitizeKey(key)
}

func (r *Redis) Obtain(ctx context.Context, key string, ttl time.Duration) (Release, error) {
	l, err := r.client.Obtain(ctx, r.RedisKey(key), ttl, &redislock.Options{
		RetryStrategy: redislock.NoRetry(),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrNotObtained
	}
	if err != nil {
		return nil, fmt.Errorf("obtain redis lock %s: %w", key, err)
	}
	return func(ctx context.Context) error {
		err := l.Release(ctx)
		if errors.Is(err, redislock.ErrLockNotHeld) {
			return nil
		}
		return err
	}, nil
}
