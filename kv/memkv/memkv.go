// Package memkv provides an in-process key-value backend. Nothing survives
// a restart; it serves tests and devices where durable storage is disabled.
package memkv

import (
	"context"
	"sync"

	autherrors "github.com/infodancer/shellauth/errors"
	"github.com/infodancer/shellauth/kv"
)

func init() {
	kv.Register("memory", func(kv.Config) (kv.Backend, error) {
		return New(), nil
	})
}

// Backend stores values in a map.
type Backend struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// New creates an empty in-memory backend.
func New() *Backend {
	return &Backend{values: make(map[string][]byte)}
}

// Get returns a copy of the value stored under key.
func (b *Backend) Get(_ context.Context, key string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	v, ok := b.values[key]
	if !ok {
		return nil, autherrors.ErrKeyNotFound
	}
	return append([]byte(nil), v...), nil
}

// Set stores a copy of value under key.
func (b *Backend) Set(_ context.Context, key string, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.values[key] = append([]byte(nil), value...)
	return nil
}

// Delete removes key.
func (b *Backend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.values, key)
	return nil
}

// Close is a no-op.
func (b *Backend) Close() error {
	return nil
}
