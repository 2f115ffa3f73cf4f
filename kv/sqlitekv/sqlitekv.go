// Package sqlitekv stores keys in a single SQLite table.
package sqlitekv

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	autherrors "github.com/infodancer/shellauth/errors"
	"github.com/infodancer/shellauth/kv"
)

const schema = `CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at INTEGER NOT NULL
)`

func init() {
	kv.Register("sqlite", func(cfg kv.Config) (kv.Backend, error) {
		b, err := Open(cfg.Path, nil)
		if err != nil {
			return nil, err
		}
		return b, nil
	})
}

// Backend is a pool of connections to one database file.
type Backend struct {
	pool   *sqlitex.Pool
	path   string
	logger *slog.Logger
}

// Open opens (creating if needed) the database at path. The parent
// directory must exist.
func Open(path string, logger *slog.Logger) (*Backend, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: sqlite backend requires a path", autherrors.ErrBackendConfigInvalid)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	pool, err := sqlitex.NewPool(path, sqlitex.PoolOptions{
		PoolSize:    2,
		PrepareConn: prepareConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	logger.Debug("sqlite store opened", slog.String("path", path))
	return &Backend{pool: pool, path: path, logger: logger}, nil
}

// prepareConnection applies pragmas and creates the table once per connection.
func prepareConnection(conn *sqlite.Conn) error {
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	} {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if err := sqlitex.ExecuteTransient(conn, schema, nil); err != nil {
		return fmt.Errorf("create kv table: %w", err)
	}
	return nil
}

// Get returns the value stored under key.
func (b *Backend) Get(ctx context.Context, key string) ([]byte, error) {
	conn, err := b.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("take connection: %w", err)
	}
	defer b.pool.Put(conn)

	var value []byte
	found := false
	err = sqlitex.Execute(conn, "SELECT value FROM kv WHERE key = ?", &sqlitex.ExecOptions{
		Args: []any{key},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			value = make([]byte, stmt.ColumnLen(0))
			stmt.ColumnBytes(0, value)
			found = true
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", key, err)
	}
	if !found {
		return nil, autherrors.ErrKeyNotFound
	}
	return value, nil
}

// Set upserts value under key.
func (b *Backend) Set(ctx context.Context, key string, value []byte) error {
	conn, err := b.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("take connection: %w", err)
	}
	defer b.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		&sqlitex.ExecOptions{
			Args: []any{key, value, time.Now().Unix()},
		})
	if err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (b *Backend) Delete(ctx context.Context, key string) error {
	conn, err := b.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("take connection: %w", err)
	}
	defer b.pool.Put(conn)

	if err := sqlitex.Execute(conn, "DELETE FROM kv WHERE key = ?", &sqlitex.ExecOptions{
		Args: []any{key},
	}); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Close closes every connection in the pool.
func (b *Backend) Close() error {
	if err := b.pool.Close(); err != nil {
		return fmt.Errorf("close sqlite %s: %w", b.path, err)
	}
	b.logger.Debug("sqlite store closed", slog.String("path", b.path))
	return nil
}
