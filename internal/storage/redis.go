package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisKeyPrefix namespaces marker keys in a shared Redis.
const RedisKeyPrefix = "animenews:marker:"

// RedisKV stores markers as plain Redis strings without expiry.
type RedisKV struct {
	client *redis.Client
}

func OpenRedis(ctx context.Context, addr, password string) (*RedisKV, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           0,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisKV{client: client}, nil
}

func (c *RedisKV) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.client.Get(ctx, RedisKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	return val, true, nil
}

func (c *RedisKV) Set(ctx context.Context, key, value string) error {
	if err := c.client.Set(ctx, RedisKeyPrefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

func (c *RedisKV) Count(ctx context.Context) (int, error) {
	n := 0
	iter := c.client.Scan(ctx, 0, RedisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("scan markers: %w", err)
	}
	return n, nil
}

func (c *RedisKV) Close() error {
	return c.client.Close()
}
