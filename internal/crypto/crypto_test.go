// Copyright (c) 2026 Opsvault Team
// Opsvault - secure foundation for personal automation jobs
// This source code is licensed under the MIT license found in the LICENSE file.
package crypto

import (
	"bytes"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key, err := NewKey([]byte("master-password"), MinIterations)
	if err != nil {
		t.Fatalf("NewKey failed: %v", err)
	}

	plaintext := []byte(`{"gmail":{"oauth_token":"abc123"}}`)
	ciphertext, err := key.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if bytes.Contains(ciphertext, []byte("abc123")) {
		t.Fatal("ciphertext leaks plaintext")
	}

	got, err := key.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("round trip mismatch: %q", got)
	}
}

func TestDecryptWithWrongPasswordFails(t *testing.T) {
	key, err := NewKey([]byte("right"), MinIterations)
	if err != nil {
		t.Fatalf("NewKey failed: %v", err)
	}
	ciphertext, err := key.Encrypt([]byte("payload"))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	wrong, err := DeriveKey([]byte("wrong"), key.Salt(), MinIterations)
	if err != nil {
		t.Fatalf("DeriveKey failed: %v", err)
	}
	if _, err := wrong.Decrypt(ciphertext); err == nil {
		t.Fatal("expected decryption failure with wrong password")
	}
}

func TestDeriveKeyIsDeterministic(t *testing.T) {
	salt, err := RandomBytes(SaltLength)
	if err != nil {
		t.Fatalf("RandomBytes failed: %v", err)
	}

	k1, err := DeriveKey([]byte("pw"), salt, MinIterations)
	if err != nil {
		t.Fatalf("DeriveKey failed: %v", err)
	}
	k2, err := DeriveKey([]byte("pw"), salt, MinIterations)
	if err != nil {
		t.Fatalf("DeriveKey failed: %v", err)
	}

	ciphertext, err := k1.Encrypt([]byte("cross-key"))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if _, err := k2.Decrypt(ciphertext); err != nil {
		t.Fatalf("same password+salt should derive the same key: %v", err)
	}
}

func TestDeriveKeyRejectsBadInputs(t *testing.T) {
	salt, _ := RandomBytes(SaltLength)

	if _, err := DeriveKey(nil, salt, MinIterations); err == nil {
		t.Fatal("expected error for empty password")
	}
	if _, err := DeriveKey([]byte("pw"), []byte("short"), MinIterations); err != ErrInvalidSaltLength {
		t.Fatalf("expected ErrInvalidSaltLength, got %v", err)
	}
	if _, err := DeriveKey([]byte("pw"), salt, MinIterations-1); err == nil {
		t.Fatal("expected error for low iteration count")
	}
}

func TestDecryptRejectsTruncatedCiphertext(t *testing.T) {
	key, err := NewKey([]byte("pw"), MinIterations)
	if err != nil {
		t.Fatalf("NewKey failed: %v", err)
	}
	if _, err := key.Decrypt([]byte{1, 2, 3}); err != ErrCiphertextTooShort {
		t.Fatalf("expected ErrCiphertextTooShort, got %v", err)
	}
}

func TestDecryptRejectsTamperedCiphertext(t *testing.T) {
	key, err := NewKey([]byte("pw"), MinIterations)
	if err != nil {
		t.Fatalf("NewKey failed: %v", err)
	}
	ciphertext, err := key.Encrypt([]byte("integrity"))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	ciphertext[len(ciphertext)-1] ^= 0xff
	if _, err := key.Decrypt(ciphertext); err == nil {
		t.Fatal("expected tampered ciphertext to fail authentication")
	}
}
