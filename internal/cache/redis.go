package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketchart/config"
	"marketchart/internal/market"

	"github.com/redis/go-redis/v9"
)

type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects to the server in cfg and checks it answers.
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Redis{client: client, ttl: cfg.TTL}, nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Get(ctx context.Context, symbol string, kind market.Kind) ([]byte, bool, error) {
	data, err := r.client.Get(ctx, Key(symbol, kind)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get chart from redis: %w", err)
	}
	return data, true, nil
}

func (r *Redis) Set(ctx context.Context, symbol string, kind market.Kind, payload []byte) error {
	if err := r.client.Set(ctx, Key(symbol, kind), payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set chart in redis: %w", err)
	}
	return nil
}

// Invalidate drops every cached kind of symbol.
func (r *Redis) Invalidate(ctx context.Context, symbol string) error {
	keys := make([]string, 0, len(market.Kinds))
	for _, kind := range market.Kinds {
		keys = append(keys, Key(symbol, kind))
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate %s: %w", symbol, err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
