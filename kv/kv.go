// Package kv provides the durable key-value storage the shell persists its
// session into. Backends register themselves by type name and are opened
// from a Config, so the storage medium is a configuration choice.
package kv

import (
	"context"
	"fmt"
	"sort"
	"sync"

	autherrors "github.com/infodancer/shellauth/errors"
)

// Backend is a durable key-value store.
type Backend interface {
	// Get returns the value stored under key.
	// Returns errors.ErrKeyNotFound if the key has no value.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the backend.
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	// Type is the backend type (e.g., "file", "memory", "redis", "sqlite").
	Type string

	// Path is the backend location: a directory, database file, or address,
	// depending on Type.
	Path string

	// Options contains backend-specific settings.
	Options map[string]string
}

// Factory creates a backend from its configuration.
type Factory func(cfg Config) (Backend, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register makes a backend type available to Open. It panics if the type is
// registered twice.
func Register(typ string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if factory == nil {
		panic("kv: Register factory is nil for " + typ)
	}
	if _, dup := registry[typ]; dup {
		panic("kv: Register called twice for " + typ)
	}
	registry[typ] = factory
}

// Open creates a backend of the configured type.
// Returns errors.ErrBackendNotRegistered for unknown types.
func Open(cfg Config) (Backend, error) {
	registryMu.RLock()
	factory, ok := registry[cfg.Type]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", autherrors.ErrBackendNotRegistered, cfg.Type)
	}
	return factory(cfg)
}

// Types returns the registered backend types in sorted order.
func Types() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	types := make([]string, 0, len(registry))
	for typ := range registry {
		types = append(types, typ)
	}
	sort.Strings(types)
	return types
}
