// Package filekv stores each key as a file in a directory.
//
// Directory structure:
//
//	~/.local/state/shellauth/
//	└── session        (value of key "session")
//
// Writes go to a temporary file in the same directory and are renamed into
// place, so a reader never sees a partially-written value.
package filekv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	autherrors "github.com/infodancer/shellauth/errors"
	"github.com/infodancer/shellauth/kv"
)

func init() {
	kv.Register("file", func(cfg kv.Config) (kv.Backend, error) {
		if cfg.Path == "" {
			return nil, fmt.Errorf("%w: file backend requires a path", autherrors.ErrBackendConfigInvalid)
		}
		return New(cfg.Path), nil
	})
}

// Backend is a directory of key files.
type Backend struct {
	dir string
}

// New creates a backend rooted at dir. The directory is created on first write.
func New(dir string) *Backend {
	return &Backend{dir: dir}
}

// Dir returns the backing directory.
func (b *Backend) Dir() string {
	return b.dir
}

// path returns the file path for key, rejecting keys that would escape the
// directory or collide with temporary files.
func (b *Backend) path(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, ".") || strings.ContainsAny(key, `/\`) {
		return "", fmt.Errorf("%w: invalid key %q", autherrors.ErrBackendConfigInvalid, key)
	}
	return filepath.Join(b.dir, key), nil
}

// Get reads the file for key.
func (b *Backend) Get(_ context.Context, key string) ([]byte, error) {
	path, err := b.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, autherrors.ErrKeyNotFound
		}
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

// Set atomically replaces the file for key.
func (b *Backend) Set(_ context.Context, key string, value []byte) error {
	path, err := b.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(b.dir, 0o700); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	tmpPath := filepath.Join(b.dir, "."+key+".tmp")
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	if _, err := f.Write(value); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return err
	}

	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return err
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	return os.Rename(tmpPath, path)
}

// Delete removes the file for key.
func (b *Backend) Delete(_ context.Context, key string) error {
	path, err := b.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

// Close is a no-op; no files are held open between calls.
func (b *Backend) Close() error {
	return nil
}
