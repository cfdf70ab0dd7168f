// Copyright (c) 2026 Opsvault Team
// Opsvault - secure foundation for personal automation jobs
// This source code is licensed under the MIT license found in the LICENSE file.

// package masterkey resolves the vault master password. The password lives in
// the operating system's secret store (keychain, Windows Credential Manager,
// Secret Service); it is generated on first use and never written to disk in
// plaintext. When no keyring is available the user is prompted on the
// terminal and the password is held in the in-process cache for the rest of
// the run.
package masterkey

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"

	"github.com/zalando/go-keyring"
	"golang.org/x/term"

	"github.com/opsvault/opsvault/internal/crypto"
	"github.com/opsvault/opsvault/internal/logging"
	"github.com/opsvault/opsvault/internal/security"
	"github.com/opsvault/opsvault/internal/state"
)

const (
	keyringService = "opsvault"
	keyringUser    = "master-password"
)

// ErrUnavailable means no master password could be obtained: the OS keyring
// is unreachable and there is no terminal to prompt on. The vault is
// unrecoverable without it; that is an accepted failure mode.
var ErrUnavailable = errors.New("master password unavailable")

// keyring seams for tests.
var (
	keyringGet = keyring.Get
	keyringSet = keyring.Set
)

// Password returns the master password, creating and storing a fresh random
// one in the OS keyring on first use. The result is a security.Secret so the
// password never shows up in logs or formatted output; the caller should
// Zero it when done.
func Password() (security.Secret, error) {
	if cached := state.PasswordCache.Get(); cached != nil {
		return security.FromBytes(cached), nil
	}

	secret, err := keyringGet(keyringService, keyringUser)
	if err == nil {
		return security.FromString(secret), nil
	}

	if errors.Is(err, keyring.ErrNotFound) {
		generated, genErr := generate()
		if genErr != nil {
			return nil, genErr
		}
		if setErr := keyringSet(keyringService, keyringUser, generated); setErr != nil {
			return nil, fmt.Errorf("could not store master password in keyring: %w", setErr)
		}
		logging.Infof("generated a new master password and stored it in the OS keyring")
		return security.FromString(generated), nil
	}

	// Keyring backend missing or broken (typical on headless hosts). Fall
	// back to an interactive prompt and cache the answer for this process.
	logging.Warnf("OS keyring unavailable (%v), falling back to prompt", err)
	return prompt()
}

func generate() (string, error) {
	raw, err := crypto.RandomBytes(32)
	if err != nil {
		return "", fmt.Errorf("could not generate master password: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func prompt() (security.Secret, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil, ErrUnavailable
	}
	fmt.Fprint(os.Stderr, "Vault master password: ")
	pass, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("could not read master password: %w", err)
	}
	if len(pass) == 0 {
		return nil, ErrUnavailable
	}
	state.PasswordCache.Set(pass)
	return security.Secret(pass), nil
}
