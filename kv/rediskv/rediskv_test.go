package rediskv

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"

	autherrors "github.com/infodancer/shellauth/errors"
	"github.com/infodancer/shellauth/kv"
	"github.com/infodancer/shellauth/kv/kvtest"
)

// redisAddr returns the test server address or skips the test.
func redisAddr(t *testing.T) string {
	t.Helper()
	addr := os.Getenv("SHELLAUTH_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("SHELLAUTH_TEST_REDIS_ADDR not set")
	}
	return addr
}

func TestBackend(t *testing.T) {
	addr := redisAddr(t)
	kvtest.Run(t, func(t *testing.T) kv.Backend {
		// A unique prefix per subtest keeps runs isolated on a shared server.
		b, err := Open(kv.Config{
			Type:    "redis",
			Path:    addr,
			Options: map[string]string{"prefix": "shellauth-test:" + uuid.NewString() + ":"},
		})
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		t.Cleanup(func() { _ = b.Close() })
		return b
	})
}

func TestPrefixIsolatesKeys(t *testing.T) {
	addr := redisAddr(t)
	ctx := context.Background()

	open := func(prefix string) kv.Backend {
		b, err := Open(kv.Config{Path: addr, Options: map[string]string{"prefix": prefix}})
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		t.Cleanup(func() { _ = b.Close() })
		return b
	}

	run := uuid.NewString()
	a := open("shellauth-test:" + run + ":a:")
	b := open("shellauth-test:" + run + ":b:")

	if err := a.Set(ctx, "session", []byte("x")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	defer func() { _ = a.Delete(ctx, "session") }()

	if _, err := b.Get(ctx, "session"); !errors.Is(err, autherrors.ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound through other prefix, got %v", err)
	}
}

func TestOpenValidatesConfig(t *testing.T) {
	if _, err := Open(kv.Config{}); !errors.Is(err, autherrors.ErrBackendConfigInvalid) {
		t.Errorf("missing address: expected ErrBackendConfigInvalid, got %v", err)
	}
	_, err := Open(kv.Config{Path: "127.0.0.1:1", Options: map[string]string{"db": "-1"}})
	if !errors.Is(err, autherrors.ErrBackendConfigInvalid) {
		t.Errorf("bad db: expected ErrBackendConfigInvalid, got %v", err)
	}
}
