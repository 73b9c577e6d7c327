package kv

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/mesh-intelligence/rendezvous/pkg/types"
)

// RedisKeyPrefix namespaces every key written by the Redis backend.
const RedisKeyPrefix = "rendezvous:"

// Redis keeps values in a Redis server. Values never expire.
type Redis struct {
	mu     sync.RWMutex
	client *redis.Client
}

var _ types.KV = (*Redis)(nil)

// OpenRedis connects to addr and pings it.
func OpenRedis(ctx context.Context, addr string) (*Redis, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis %s: %w", addr, err)
	}
	return &Redis{client: client}, nil
}

// Get returns the value stored under key.
func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	if err := checkKey(key); err != nil {
		return "", err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.client == nil {
		return "", ErrClosed
	}

	v, err := r.client.Get(ctx, RedisKeyPrefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", types.ErrKeyNotFound
		}
		return "", fmt.Errorf("getting %s: %w", key, err)
	}
	return v, nil
}

// Set replaces the value under key.
func (r *Redis) Set(ctx context.Context, key, value string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.client == nil {
		return ErrClosed
	}

	if err := r.client.Set(ctx, RedisKeyPrefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("setting %s: %w", key, err)
	}
	return nil
}

// Close closes the client. Idempotent.
func (r *Redis) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client == nil {
		return nil
	}
	err := r.client.Close()
	r.client = nil
	return err
}
