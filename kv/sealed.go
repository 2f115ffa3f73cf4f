package kv

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	autherrors "github.com/infodancer/shellauth/errors"
)

// Sealed value layout: magic | salt | nonce | ciphertext.
var sealMagic = []byte("SAK1")

const (
	sealSaltSize = 16

	argon2Time    = 1
	argon2Memory  = 64 * 1024
	argon2Threads = 4
)

// sealedBackend encrypts values before handing them to the inner backend.
// Each value gets its own salt, so the derived key differs per write.
type sealedBackend struct {
	inner      Backend
	passphrase []byte
}

// NewSealed wraps inner so that every stored value is encrypted with
// XChaCha20-Poly1305 under an argon2id key derived from passphrase. The key
// name is bound as additional data, so a value cannot be moved between keys.
//
// Values that cannot be decrypted are reported as errors.ErrCorruptValue.
func NewSealed(inner Backend, passphrase string) (Backend, error) {
	if inner == nil {
		return nil, fmt.Errorf("%w: sealed backend needs an inner backend", autherrors.ErrBackendConfigInvalid)
	}
	if passphrase == "" {
		return nil, fmt.Errorf("%w: empty passphrase", autherrors.ErrBackendConfigInvalid)
	}
	return &sealedBackend{inner: inner, passphrase: []byte(passphrase)}, nil
}

func (b *sealedBackend) deriveKey(salt []byte) []byte {
	return argon2.IDKey(b.passphrase, salt, argon2Time, argon2Memory, argon2Threads, chacha20poly1305.KeySize)
}

// Get decrypts the value stored under key.
func (b *sealedBackend) Get(ctx context.Context, key string) ([]byte, error) {
	sealed, err := b.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	header := len(sealMagic) + sealSaltSize + chacha20poly1305.NonceSizeX
	if len(sealed) < header+chacha20poly1305.Overhead || !bytes.HasPrefix(sealed, sealMagic) {
		return nil, fmt.Errorf("%w: %s: not a sealed value", autherrors.ErrCorruptValue, key)
	}
	rest := sealed[len(sealMagic):]
	salt := rest[:sealSaltSize]
	nonce := rest[sealSaltSize : sealSaltSize+chacha20poly1305.NonceSizeX]
	ciphertext := rest[sealSaltSize+chacha20poly1305.NonceSizeX:]

	aead, err := chacha20poly1305.NewX(b.deriveKey(salt))
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	plain, err := aead.Open(nil, nonce, ciphertext, []byte(key))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: decrypt failed", autherrors.ErrCorruptValue, key)
	}
	return plain, nil
}

// Set encrypts value and stores it under key.
func (b *sealedBackend) Set(ctx context.Context, key string, value []byte) error {
	salt := make([]byte, sealSaltSize)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("generate salt: %w", err)
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}

	aead, err := chacha20poly1305.NewX(b.deriveKey(salt))
	if err != nil {
		return fmt.Errorf("create cipher: %w", err)
	}

	out := make([]byte, 0, len(sealMagic)+len(salt)+len(nonce)+len(value)+aead.Overhead())
	out = append(out, sealMagic...)
	out = append(out, salt...)
	out = append(out, nonce...)
	out = aead.Seal(out, nonce, value, []byte(key))

	return b.inner.Set(ctx, key, out)
}

// Delete removes key from the inner backend.
func (b *sealedBackend) Delete(ctx context.Context, key string) error {
	return b.inner.Delete(ctx, key)
}

// Close zeroes the passphrase and closes the inner backend.
func (b *sealedBackend) Close() error {
	for i := range b.passphrase {
		b.passphrase[i] = 0
	}
	return b.inner.Close()
}
