package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/example/preorder/pkg/config"
	"github.com/example/preorder/pkg/models"
	"github.com/go-redis/redis/v8"
)

type RedisRepository struct {
	client *redis.Client
	config *config.RedisConfig
}

func NewRedisRepository(cfg *config.RedisConfig) *RedisRepository {
	return &RedisRepository{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
			PoolSize: cfg.PoolSize,
		}),
		config: cfg,
	}
}

func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisRepository) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, expiration).Err()
}

func (r *RedisRepository) GetJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := r.client.Get(ctx, key).Result()
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(data), dest)
}

func (r *RedisRepository) Close() error {
	return r.client.Close()
}

func (r *RedisRepository) summariesKey() string {
	return r.config.KeyPrefix + "metrics"
}

// GetSummaries returns the cached aggregate. ok is false on a cache miss.
func (r *RedisRepository) GetSummaries(ctx context.Context) ([]models.UserSummary, bool, error) {
	var summaries []models.UserSummary
	err := r.GetJSON(ctx, r.summariesKey(), &summaries)
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return summaries, true, nil
}

func (r *RedisRepository) SetSummaries(ctx context.Context, summaries []models.UserSummary) error {
	return r.SetJSON(ctx, r.summariesKey(), summaries, r.config.TTL)
}

func (r *RedisRepository) InvalidateSummaries(ctx context.Context) error {
	return r.client.Del(ctx, r.summariesKey()).Err()
}
