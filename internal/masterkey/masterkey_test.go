// Copyright (c) 2026 Opsvault Team
// Opsvault - secure foundation for personal automation jobs
// This source code is licensed under the MIT license found in the LICENSE file.
package masterkey

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/zalando/go-keyring"

	"github.com/opsvault/opsvault/internal/state"
)

func TestPasswordPrefersProcessCache(t *testing.T) {
	state.PasswordCache.Set([]byte("cached-pass"))
	defer state.PasswordCache.Clear()

	got, err := Password()
	if err != nil {
		t.Fatalf("Password failed: %v", err)
	}
	if !bytes.Equal(got.Bytes(), []byte("cached-pass")) {
		t.Fatalf("expected cached password, got %v", got)
	}
}

func TestPasswordIsRedactedWhenFormatted(t *testing.T) {
	state.PasswordCache.Set([]byte("do-not-print"))
	defer state.PasswordCache.Clear()

	got, err := Password()
	if err != nil {
		t.Fatalf("Password failed: %v", err)
	}
	for _, rendered := range []string{fmt.Sprintf("%v", got), fmt.Sprintf("%s", got), got.String()} {
		if rendered != "[SECRET]" {
			t.Fatalf("password leaked through formatting: %q", rendered)
		}
	}
}

func TestPasswordReadsKeyring(t *testing.T) {
	state.PasswordCache.Clear()
	oldGet := keyringGet
	defer func() { keyringGet = oldGet }()
	keyringGet = func(service, user string) (string, error) {
		if service != keyringService || user != keyringUser {
			t.Fatalf("unexpected keyring lookup %s/%s", service, user)
		}
		return "from-keyring", nil
	}

	got, err := Password()
	if err != nil {
		t.Fatalf("Password failed: %v", err)
	}
	if !bytes.Equal(got.Bytes(), []byte("from-keyring")) {
		t.Fatalf("expected keyring password, got %v", got)
	}
}

func TestPasswordGeneratesAndStoresOnFirstUse(t *testing.T) {
	state.PasswordCache.Clear()
	oldGet, oldSet := keyringGet, keyringSet
	defer func() { keyringGet, keyringSet = oldGet, oldSet }()

	keyringGet = func(service, user string) (string, error) {
		return "", keyring.ErrNotFound
	}
	var stored string
	keyringSet = func(service, user, secret string) error {
		stored = secret
		return nil
	}

	got, err := Password()
	if err != nil {
		t.Fatalf("Password failed: %v", err)
	}
	if len(got.Bytes()) == 0 {
		t.Fatal("expected generated password")
	}
	if stored != string(got.Bytes()) {
		t.Fatalf("generated password not persisted to keyring")
	}
}

func TestPasswordStoreFailurePropagates(t *testing.T) {
	state.PasswordCache.Clear()
	oldGet, oldSet := keyringGet, keyringSet
	defer func() { keyringGet, keyringSet = oldGet, oldSet }()

	keyringGet = func(service, user string) (string, error) {
		return "", keyring.ErrNotFound
	}
	keyringSet = func(service, user, secret string) error {
		return errors.New("backend gone")
	}

	if _, err := Password(); err == nil {
		t.Fatal("expected error when keyring store fails")
	}
}
