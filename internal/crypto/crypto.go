// Copyright (c) 2026 Opsvault Team
// Opsvault - secure foundation for personal automation jobs
// This source code is licensed under the MIT license found in the LICENSE file.

// package crypto provides the symmetric encryption used by the credential
// vault: AES-256-GCM for encryption and PBKDF2-SHA256 for key derivation.
// The derivation salt is random per installation and persisted next to the
// vault; a fixed salt would allow precomputation across installations.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// DefaultIterations is the PBKDF2 iteration count used for new vaults.
	DefaultIterations = 200_000

	// MinIterations is the lowest acceptable PBKDF2 iteration count.
	MinIterations = 100_000

	// SaltLength is the size in bytes of the per-installation salt.
	SaltLength = 32

	keyLength   = 32 // AES-256
	nonceLength = 12 // GCM standard nonce size
)

var (
	ErrCiphertextTooShort = errors.New("ciphertext too short")
	ErrInvalidSaltLength  = errors.New("invalid salt length")
	ErrEmptyPassword      = errors.New("password cannot be empty")
)

// Key is an opaque symmetric key together with its derivation salt. Keys
// should be destroyed after use to clear sensitive material.
type Key struct {
	key  []byte
	salt []byte
}

// RandomBytes returns n cryptographically secure random bytes.
func RandomBytes(n int) ([]byte, error) {
	if n <= 0 {
		return nil, errors.New("invalid byte count")
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return b, nil
}

// DeriveKey creates a Key from a password and an existing salt using
// PBKDF2-SHA256.
func DeriveKey(password []byte, salt []byte, iterations int) (*Key, error) {
	if len(password) == 0 {
		return nil, ErrEmptyPassword
	}
	if len(salt) != SaltLength {
		return nil, ErrInvalidSaltLength
	}
	if iterations < MinIterations {
		return nil, fmt.Errorf("iteration count too low (minimum %d)", MinIterations)
	}

	derived := pbkdf2.Key(password, salt, iterations, keyLength, sha256.New)

	return &Key{
		key:  derived,
		salt: append([]byte{}, salt...),
	}, nil
}

// NewKey creates a Key from a password with a freshly generated random salt.
func NewKey(password []byte, iterations int) (*Key, error) {
	salt, err := RandomBytes(SaltLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return DeriveKey(password, salt, iterations)
}

// Salt returns a copy of the key's derivation salt.
func (k *Key) Salt() []byte {
	return append([]byte{}, k.salt...)
}

// Encrypt encrypts plaintext using AES-256-GCM. The random nonce is
// prepended to the returned ciphertext.
func (k *Key) Encrypt(plaintext []byte) ([]byte, error) {
	gcm, err := k.aead()
	if err != nil {
		return nil, err
	}

	nonce, err := RandomBytes(nonceLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt reverses Encrypt. It fails with an opaque error on any tampering
// or on a wrong key; callers treat that as a fatal decryption failure.
func (k *Key) Decrypt(ciphertext []byte) ([]byte, error) {
	gcm, err := k.aead()
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < nonceLength {
		return nil, ErrCiphertextTooShort
	}

	nonce, sealed := ciphertext[:nonceLength], ciphertext[nonceLength:]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}
	return plaintext, nil
}

// Destroy zeroes the key material. The Key must not be used afterwards.
func (k *Key) Destroy() {
	for i := range k.key {
		k.key[i] = 0
	}
	for i := range k.salt {
		k.salt[i] = 0
	}
}

func (k *Key) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(k.key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}
