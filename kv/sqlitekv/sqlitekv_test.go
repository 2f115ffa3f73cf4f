package sqlitekv

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	autherrors "github.com/infodancer/shellauth/errors"
	"github.com/infodancer/shellauth/kv"
	"github.com/infodancer/shellauth/kv/kvtest"
)

func TestBackend(t *testing.T) {
	kvtest.Run(t, func(t *testing.T) kv.Backend {
		b, err := Open(filepath.Join(t.TempDir(), "session.db"), nil)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		t.Cleanup(func() { _ = b.Close() })
		return b
	})
}

func TestPersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")
	ctx := context.Background()

	b, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := b.Set(ctx, "session", []byte("kept")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	b, err = Open(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = b.Close() }()

	got, err := b.Get(ctx, "session")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "kept" {
		t.Errorf("Get = %q, want %q", got, "kept")
	}
}

func TestRegisteredRequiresPath(t *testing.T) {
	if _, err := kv.Open(kv.Config{Type: "sqlite"}); !errors.Is(err, autherrors.ErrBackendConfigInvalid) {
		t.Errorf("expected ErrBackendConfigInvalid, got %v", err)
	}
}
