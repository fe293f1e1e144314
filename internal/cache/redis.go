package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fundraiseer/apiserver/config"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "fundraiseer:"

// Redis shares codes and counters between every server replica.
type Redis struct {
	rdb *redis.Client
}

// NewRedis connects and verifies the connection with a ping.
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Redis{rdb: rdb}, nil
}

func (r *Redis) Save(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.rdb.Set(ctx, keyPrefix+key, value, ttl).Err()
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.rdb.Get(ctx, keyPrefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	return val, true, nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, keyPrefix+key).Err()
}

// Incr bumps the counter and arms its expiry on the first hit of a window.
func (r *Redis) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	key = keyPrefix + key

	count, err := r.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, err
	}
	if count == 1 {
		if err := r.rdb.PExpire(ctx, key, window).Err(); err != nil {
			return 0, 0, err
		}
		return count, window, nil
	}
	ttl, err := r.rdb.PTTL(ctx, key).Result()
	if err != nil {
		return 0, 0, err
	}
	if ttl < 0 {
		// The expiry was lost between INCR and PEXPIRE; re-arm it.
		if err := r.rdb.PExpire(ctx, key, window).Err(); err != nil {
			return 0, 0, err
		}
		ttl = window
	}
	return count, ttl, nil
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}
