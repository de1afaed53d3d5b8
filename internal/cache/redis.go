package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/agustogpt/research-gateway/internal/domain"
	"github.com/go-redis/redis/v8"
)

const redisKeyPrefix = "agusto:profile:"

// Redis is a ProfileCache shared between gateway replicas.
type Redis struct {
	client *redis.Client
}

// RedisConfig holds connection settings for NewRedis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedis connects to redis and verifies the connection.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Redis{client: client}, nil
}

// Get returns the cached profile for key.
func (r *Redis) Get(ctx context.Context, key string) (domain.ClientProfile, bool, error) {
	data, err := r.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.ClientProfile{}, false, nil
	}
	if err != nil {
		return domain.ClientProfile{}, false, fmt.Errorf("redis get: %w", err)
	}
	var p domain.ClientProfile
	if err := json.Unmarshal(data, &p); err != nil {
		return domain.ClientProfile{}, false, fmt.Errorf("decode cached profile: %w", err)
	}
	return p, true, nil
}

// Set stores p under key for ttl.
func (r *Redis) Set(ctx context.Context, key string, p domain.ClientProfile, ttl time.Duration) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	if err := r.client.Set(ctx, redisKeyPrefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Close closes the redis connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}
