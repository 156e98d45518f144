// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"sync"

	"golang.org/x/crypto/pbkdf2"
)

// =============================================================================
// ENCRYPTED KV
// =============================================================================

const (
	// KeySize is the AES-256 key size in bytes.
	KeySize = 32

	// SaltSize is the PBKDF2 salt size in bytes.
	SaltSize = 16

	// NonceSize is the AES-GCM nonce size in bytes.
	NonceSize = 12

	// PBKDF2Iterations follows the OWASP recommendation for PBKDF2-SHA256.
	PBKDF2Iterations = 600000
)

// encMagic prefixes every sealed value: magic | salt | nonce | ciphertext.
var encMagic = []byte("CDENC1")

// ErrDecrypt is returned when a value cannot be authenticated.
var ErrDecrypt = errors.New("storage: value could not be decrypted")

// EncryptedKV seals values with AES-256-GCM before handing them to the
// wrapped KV. The key is derived from a passphrase with PBKDF2-SHA-256.
type EncryptedKV struct {
	inner      KV
	passphrase []byte

	mu   sync.Mutex
	salt []byte
	aead cipher.AEAD

	// derived keys by salt, so values written under an older salt still open
	keys map[string]cipher.AEAD
}

// NewEncryptedKV wraps inner. The passphrase must not be empty.
func NewEncryptedKV(inner KV, passphrase string) (*EncryptedKV, error) {
	if passphrase == "" {
		return nil, errors.New("storage: encryption passphrase is empty")
	}

	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	e := &EncryptedKV{
		inner:      inner,
		passphrase: []byte(passphrase),
		salt:       salt,
		keys:       make(map[string]cipher.AEAD),
	}
	aead, err := e.aeadFor(salt)
	if err != nil {
		return nil, err
	}
	e.aead = aead
	return e, nil
}

// Save encrypts value and stores it in the wrapped KV.
func (e *EncryptedKV) Save(ctx context.Context, key string, value []byte) error {
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}

	e.mu.Lock()
	aead, salt := e.aead, e.salt
	e.mu.Unlock()

	out := make([]byte, 0, len(encMagic)+SaltSize+NonceSize+len(value)+aead.Overhead())
	out = append(out, encMagic...)
	out = append(out, salt...)
	out = append(out, nonce...)
	// The key is bound as additional data so blobs cannot be swapped between keys.
	out = aead.Seal(out, nonce, value, []byte(key))

	return e.inner.Save(ctx, key, out)
}

// Load reads and decrypts the value stored under key.
func (e *EncryptedKV) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := e.inner.Load(ctx, key)
	if err != nil {
		return nil, err
	}

	header := len(encMagic) + SaltSize + NonceSize
	if len(data) < header || !bytes.Equal(data[:len(encMagic)], encMagic) {
		return nil, ErrDecrypt
	}
	salt := data[len(encMagic) : len(encMagic)+SaltSize]
	nonce := data[len(encMagic)+SaltSize : header]

	aead, err := e.aeadFor(salt)
	if err != nil {
		return nil, err
	}
	plain, err := aead.Open(nil, nonce, data[header:], []byte(key))
	if err != nil {
		return nil, ErrDecrypt
	}
	return plain, nil
}

func (e *EncryptedKV) aeadFor(salt []byte) (cipher.AEAD, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if aead, ok := e.keys[string(salt)]; ok {
		return aead, nil
	}

	key := pbkdf2.Key(e.passphrase, salt, PBKDF2Iterations, KeySize, sha256.New)
	defer zeroBytes(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	e.keys[string(append([]byte(nil), salt...))] = aead
	return aead, nil
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
