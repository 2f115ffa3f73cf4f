// Package kvtest checks that a kv.Backend honours the backend contract.
package kvtest

import (
	"bytes"
	"context"
	"errors"
	"testing"

	autherrors "github.com/infodancer/shellauth/errors"
	"github.com/infodancer/shellauth/kv"
)

// Run exercises the backend returned by open. open is called once per
// subtest and must return an empty backend.
func Run(t *testing.T, open func(t *testing.T) kv.Backend) {
	t.Helper()

	t.Run("missing key", func(t *testing.T) {
		b := open(t)
		_, err := b.Get(context.Background(), "session")
		if !errors.Is(err, autherrors.ErrKeyNotFound) {
			t.Fatalf("Get missing key: expected ErrKeyNotFound, got %v", err)
		}
	})

	t.Run("set get", func(t *testing.T) {
		b := open(t)
		ctx := context.Background()
		want := []byte(`{"status":"success"}`)
		if err := b.Set(ctx, "session", want); err != nil {
			t.Fatalf("Set: %v", err)
		}
		got, err := b.Get(ctx, "session")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("Get = %q, want %q", got, want)
		}
	})

	t.Run("overwrite", func(t *testing.T) {
		b := open(t)
		ctx := context.Background()
		if err := b.Set(ctx, "session", []byte("first")); err != nil {
			t.Fatalf("Set: %v", err)
		}
		if err := b.Set(ctx, "session", []byte("second")); err != nil {
			t.Fatalf("Set: %v", err)
		}
		got, err := b.Get(ctx, "session")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if string(got) != "second" {
			t.Errorf("Get = %q, want %q", got, "second")
		}
	})

	t.Run("keys are independent", func(t *testing.T) {
		b := open(t)
		ctx := context.Background()
		if err := b.Set(ctx, "a", []byte("1")); err != nil {
			t.Fatalf("Set a: %v", err)
		}
		if err := b.Set(ctx, "b", []byte("2")); err != nil {
			t.Fatalf("Set b: %v", err)
		}
		if err := b.Delete(ctx, "a"); err != nil {
			t.Fatalf("Delete a: %v", err)
		}
		got, err := b.Get(ctx, "b")
		if err != nil || string(got) != "2" {
			t.Errorf("Get b = %q, %v", got, err)
		}
	})

	t.Run("delete", func(t *testing.T) {
		b := open(t)
		ctx := context.Background()
		if err := b.Set(ctx, "session", []byte("x")); err != nil {
			t.Fatalf("Set: %v", err)
		}
		if err := b.Delete(ctx, "session"); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if _, err := b.Get(ctx, "session"); !errors.Is(err, autherrors.ErrKeyNotFound) {
			t.Errorf("Get after Delete: expected ErrKeyNotFound, got %v", err)
		}
		if err := b.Delete(ctx, "session"); err != nil {
			t.Errorf("Delete missing key: %v", err)
		}
	})

	t.Run("returned value is a copy", func(t *testing.T) {
		b := open(t)
		ctx := context.Background()
		value := []byte("abc")
		if err := b.Set(ctx, "session", value); err != nil {
			t.Fatalf("Set: %v", err)
		}
		value[0] = 'z'
		got, err := b.Get(ctx, "session")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if string(got) != "abc" {
			t.Errorf("stored value changed with caller's slice: %q", got)
		}
	})
}
