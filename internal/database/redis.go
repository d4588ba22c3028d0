package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/abisalde/creator-dashboard/internal/configs"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var ErrCacheMiss = errors.New("cache miss")

const summaryKeyPrefix = "creator:summary:"

// SummaryCacheKey is where the dashboard summary of one creator is cached.
func SummaryCacheKey(uid string) string {
	return summaryKeyPrefix + uid
}

type RedisCache struct {
	client *redis.Client
}

func InitRedis(ctx context.Context, cfg *configs.Config, log zerolog.Logger) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr, err)
	}

	log.Info().Str("addr", cfg.Redis.Addr).Msg("connected to redis")
	return &RedisCache{client: rdb}, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	marshaledValue, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value for Redis: %w", err)
	}
	return r.client.Set(ctx, key, marshaledValue, expiration).Err()
}

// Get decodes the value at key into dest. A missing key is ErrCacheMiss.
func (r *RedisCache) Get(ctx context.Context, key string, dest any) error {
	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	} else if err != nil {
		return fmt.Errorf("failed to get value from Redis: %w", err)
	}
	return json.Unmarshal(val, dest)
}

func (r *RedisCache) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *RedisCache) RawClient() *redis.Client {
	return r.client
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
