package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// Redis stores each document under one string key
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis connects to addr and checks the connection
func NewRedis(ctx context.Context, addr, password string) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Redis{client: client, prefix: "intake"}, nil
}

func (r *Redis) key(guildID string, kind Kind) string {
	return fmt.Sprintf("%s:%s:%s", r.prefix, guildID, kind)
}

func (r *Redis) Get(ctx context.Context, guildID string, kind Kind) ([]byte, error) {
	data, err := r.client.Get(ctx, r.key(guildID, kind)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoDocument
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", r.key(guildID, kind), err)
	}
	return data, nil
}

func (r *Redis) Put(ctx context.Context, guildID string, kind Kind, data []byte) error {
	if err := r.client.Set(ctx, r.key(guildID, kind), data, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", r.key(guildID, kind), err)
	}
	return nil
}

// Ping checks if the Redis connection is alive
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
