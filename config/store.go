package config

import (
	"fmt"
	"log/slog"

	"github.com/infodancer/shellauth/kv"
	"github.com/infodancer/shellauth/sessionstore"
)

// OpenStore opens the configured backend, seals it when a passphrase is set
// and returns a session store over it. Backends must have been registered,
// usually by importing kv/all.
func (c Config) OpenStore(logger *slog.Logger) (*sessionstore.Store, error) {
	timeout, err := c.StoreTimeout()
	if err != nil {
		return nil, fmt.Errorf("store timeout: %w", err)
	}

	backend, err := kv.Open(c.KV())
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", c.Store.Type, err)
	}

	if c.Store.Passphrase != "" {
		sealed, err := kv.NewSealed(backend, c.Store.Passphrase)
		if err != nil {
			_ = backend.Close()
			return nil, fmt.Errorf("seal store: %w", err)
		}
		backend = sealed
	}

	return sessionstore.New(backend, sessionstore.Options{
		Key:     c.Store.Key,
		Timeout: timeout,
		Logger:  logger,
	}), nil
}
