// Package rediskv stores keys in Redis, for shells whose session must
// survive on a host shared with other processes.
package rediskv

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	autherrors "github.com/infodancer/shellauth/errors"
	"github.com/infodancer/shellauth/kv"
)

// DefaultPrefix namespaces keys when no prefix option is given.
const DefaultPrefix = "shellauth:"

func init() {
	kv.Register("redis", Open)
}

// Backend stores values as Redis strings.
type Backend struct {
	client *redis.Client
	prefix string
}

// Open connects to the Redis server at cfg.Path.
//
// Options:
//
//	password  AUTH password
//	db        database number (default 0)
//	prefix    key prefix (default "shellauth:")
func Open(cfg kv.Config) (kv.Backend, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("%w: redis backend requires an address", autherrors.ErrBackendConfigInvalid)
	}

	db := 0
	if raw := cfg.Options["db"]; raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: redis db %q", autherrors.ErrBackendConfigInvalid, raw)
		}
		db = n
	}

	prefix := DefaultPrefix
	if p, ok := cfg.Options["prefix"]; ok {
		prefix = p
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Path,
		Password: cfg.Options["password"],
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return New(client, prefix), nil
}

// New wraps an existing client.
func New(client *redis.Client, prefix string) *Backend {
	return &Backend{client: client, prefix: prefix}
}

// Get returns the value stored under key.
func (b *Backend) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := b.client.Get(ctx, b.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, autherrors.ErrKeyNotFound
		}
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, nil
}

// Set stores value under key without expiry.
func (b *Backend) Set(ctx context.Context, key string, value []byte) error {
	if err := b.client.Set(ctx, b.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (b *Backend) Delete(ctx context.Context, key string) error {
	if err := b.client.Del(ctx, b.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// Close closes the client.
func (b *Backend) Close() error {
	return b.client.Close()
}
