package filekv

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	autherrors "github.com/infodancer/shellauth/errors"
	"github.com/infodancer/shellauth/kv"
	"github.com/infodancer/shellauth/kv/kvtest"
)

func TestBackend(t *testing.T) {
	kvtest.Run(t, func(t *testing.T) kv.Backend {
		return New(filepath.Join(t.TempDir(), "state"))
	})
}

func TestSetCreatesPrivateFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")
	b := New(dir)

	if err := b.Set(context.Background(), "session", []byte("x")); err != nil {
		t.Fatalf("Set: %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, "session"))
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file mode = %o, want 600", perm)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the key file, found %d entries", len(entries))
	}
}

func TestRejectsUnsafeKeys(t *testing.T) {
	b := New(t.TempDir())
	ctx := context.Background()

	for _, key := range []string{"", ".session", "../session", `a\b`, "a/b"} {
		if err := b.Set(ctx, key, []byte("x")); !errors.Is(err, autherrors.ErrBackendConfigInvalid) {
			t.Errorf("Set(%q): expected ErrBackendConfigInvalid, got %v", key, err)
		}
		if _, err := b.Get(ctx, key); !errors.Is(err, autherrors.ErrBackendConfigInvalid) {
			t.Errorf("Get(%q): expected ErrBackendConfigInvalid, got %v", key, err)
		}
	}
}

func TestRegisteredRequiresPath(t *testing.T) {
	if _, err := kv.Open(kv.Config{Type: "file"}); !errors.Is(err, autherrors.ErrBackendConfigInvalid) {
		t.Errorf("expected ErrBackendConfigInvalid, got %v", err)
	}

	dir := t.TempDir()
	b, err := kv.Open(kv.Config{Type: "file", Path: dir})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if fb, ok := b.(*Backend); !ok || fb.Dir() != dir {
		t.Errorf("Open returned %T with dir %v", b, b)
	}
}
