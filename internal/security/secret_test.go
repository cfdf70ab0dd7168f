// Copyright (c) 2026 Opsvault Team
// Opsvault - secure foundation for personal automation jobs
// This source code is licensed under the MIT license found in the LICENSE file.
package security

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

func TestSecretRedactionAndJSON(t *testing.T) {
	s := FromString("supersecret")
	if fmt.Sprintf("%v", s) != "[SECRET]" {
		t.Fatalf("unexpected fmt output: %q", fmt.Sprintf("%v", s))
	}
	b, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("json.Marshal failed: %v", err)
	}
	if string(b) != "\"[SECRET]\"" {
		t.Fatalf("unexpected json marshal: %s", string(b))
	}
}

func TestSecretZero(t *testing.T) {
	s := FromString("abc123")
	(&s).Zero()
	if err := s.Use(func(b []byte) error {
		for i := range b {
			if b[i] != 0 {
				t.Fatalf("expected zeroed byte at index %d, got %d", i, b[i])
			}
		}
		return nil
	}); err != nil {
		t.Fatalf("s.Use failed: %v", err)
	}
}

func TestSecretBytesIsIndependentCopy(t *testing.T) {
	s := Secret([]byte("sensitive"))

	c := s.Bytes()
	c[0] = 'X'
	if s[0] != 's' {
		t.Fatalf("modifying copy affected original: %v", s)
	}
}

func TestSecretUsePropagatesError(t *testing.T) {
	s := FromString("testdata")
	testErr := errors.New("callback error")

	if err := s.Use(func(b []byte) error { return testErr }); err != testErr {
		t.Fatalf("expected %v, got %v", testErr, err)
	}
}

func TestSecretFromBytesCopies(t *testing.T) {
	original := []byte("frombytes")
	s := FromBytes(original)

	original[0] = 'X'
	if s[0] != 'f' {
		t.Fatalf("FromBytes didn't make independent copy")
	}
	if !bytes.Equal(s.Bytes(), []byte("frombytes")) {
		t.Fatalf("unexpected content: %v", s.Bytes())
	}
}

func TestSecretMarshalText(t *testing.T) {
	s := FromString("textdata")
	out, err := s.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText failed: %v", err)
	}
	if string(out) != "[SECRET]" {
		t.Fatalf("unexpected MarshalText output: %q", string(out))
	}
}

func TestSecretZeroNil(t *testing.T) {
	var s *Secret
	s.Zero() // must not panic

	n := Secret(nil)
	(&n).Zero()
	if n != nil {
		t.Fatalf("Zero should leave nil Secret as nil")
	}
}
