package objectstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "okrsync:object:"

// Redis is a Store backed by a Redis server. A zero TTL keeps objects until
// they are deleted.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if client == nil {
		panic("objectstore.NewRedis: client is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Redis{client: client, ttl: ttl}
}

// DialRedis parses a redis:// URL and verifies the server answers.
func DialRedis(ctx context.Context, url string, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedis(client, ttl), nil
}

func (r *Redis) Put(ctx context.Context, name, text string) error {
	if err := r.client.Set(ctx, objectKey(name), text, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", name, err)
	}
	return nil
}

func (r *Redis) Get(ctx context.Context, name string) (string, error) {
	text, err := r.client.Get(ctx, objectKey(name)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("redis get %s: %w", name, err)
	}
	return text, nil
}

func (r *Redis) Delete(ctx context.Context, name string) error {
	if err := r.client.Del(ctx, objectKey(name)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", name, err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func objectKey(name string) string {
	return keyPrefix + name
}
