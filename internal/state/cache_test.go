// Copyright (c) 2026 Opsvault Team
// Opsvault - secure foundation for personal automation jobs
// This source code is licensed under the MIT license found in the LICENSE file.
package state

import (
	"bytes"
	"testing"
)

func TestPasswordCacheRoundTrip(t *testing.T) {
	defer PasswordCache.Clear()

	PasswordCache.Set([]byte("hunter2"))
	got := PasswordCache.Get()
	if !bytes.Equal(got, []byte("hunter2")) {
		t.Fatalf("unexpected cached value: %q", got)
	}

	// The cache must hand out copies, not its own backing slice.
	got[0] = 'X'
	again := PasswordCache.Get()
	if !bytes.Equal(again, []byte("hunter2")) {
		t.Fatalf("cache shares memory with callers: %q", again)
	}
}

func TestPasswordCacheClear(t *testing.T) {
	PasswordCache.Set([]byte("ephemeral"))
	PasswordCache.Clear()
	if PasswordCache.Get() != nil {
		t.Fatal("expected nil after Clear")
	}
}

func TestPasswordCacheSetNil(t *testing.T) {
	PasswordCache.Set([]byte("something"))
	PasswordCache.Set(nil)
	if PasswordCache.Get() != nil {
		t.Fatal("expected nil after Set(nil)")
	}
}
