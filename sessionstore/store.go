// Package sessionstore persists the current session record in a durable
// key-value backend.
//
// The store never fails loudly: storage errors come back wrapped in
// errors.ErrStorageUnavailable for the caller to treat as "not persisted",
// and a record that cannot be read back is cleared and reported as absent so
// the same garbage is not parsed on every start.
package sessionstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/infodancer/shellauth"
	autherrors "github.com/infodancer/shellauth/errors"
	"github.com/infodancer/shellauth/kv"
)

// DefaultKey is the storage key of the session record.
const DefaultKey = "session"

// Options configures a Store.
type Options struct {
	// Key overrides DefaultKey.
	Key string

	// Timeout bounds each storage operation. Zero means no extra bound.
	Timeout time.Duration

	// Logger receives storage warnings. Defaults to slog.Default().
	Logger *slog.Logger
}

// Store implements shellauth.SessionStore on top of a kv.Backend.
type Store struct {
	backend kv.Backend
	key     string
	timeout time.Duration
	logger  *slog.Logger
}

var _ shellauth.SessionStore = (*Store)(nil)

// New creates a store over backend.
func New(backend kv.Backend, opts Options) *Store {
	key := opts.Key
	if key == "" {
		key = DefaultKey
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		backend: backend,
		key:     key,
		timeout: opts.Timeout,
		logger:  logger,
	}
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Save persists sess. Only an active identity (status=success,
// purpose=Authenticated) may be saved; anything else returns
// errors.ErrInvalidSession without touching storage.
func (s *Store) Save(ctx context.Context, sess shellauth.Session) error {
	if !sess.IsActiveIdentity() {
		return fmt.Errorf("save session: %w: not an active identity", autherrors.ErrInvalidSession)
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.backend.Set(ctx, s.key, data); err != nil {
		return fmt.Errorf("save session: %w: %w", autherrors.ErrStorageUnavailable, err)
	}
	return nil
}

// Load returns the persisted session, or nil if there is none.
//
// Malformed, undecryptable, or shape-invalid records are cleared and
// reported as nil, nil. Backend failures return nil and an error wrapping
// errors.ErrStorageUnavailable.
func (s *Store) Load(ctx context.Context) (*shellauth.Session, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	data, err := s.backend.Get(ctx, s.key)
	switch {
	case err == nil:
	case errors.Is(err, autherrors.ErrKeyNotFound):
		return nil, nil
	case errors.Is(err, autherrors.ErrCorruptValue):
		s.discard(ctx, err)
		return nil, nil
	default:
		return nil, fmt.Errorf("load session: %w: %w", autherrors.ErrStorageUnavailable, err)
	}

	sess, err := shellauth.DecodeSession(data)
	if err != nil {
		s.discard(ctx, err)
		return nil, nil
	}
	if err := sess.Validate(); err != nil {
		s.discard(ctx, err)
		return nil, nil
	}
	return &sess, nil
}

// discard clears an unreadable record. A failed clear is logged only; the
// record is still reported as absent.
func (s *Store) discard(ctx context.Context, cause error) {
	s.logger.Warn("discarding unreadable session record",
		slog.String("key", s.key),
		slog.String("error", cause.Error()))

	if err := s.backend.Delete(ctx, s.key); err != nil {
		s.logger.Warn("failed to clear unreadable session record",
			slog.String("key", s.key),
			slog.String("error", err.Error()))
	}
}

// Clear removes the persisted session.
func (s *Store) Clear(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.backend.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("clear session: %w: %w", autherrors.ErrStorageUnavailable, err)
	}
	return nil
}

// Close closes the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}
