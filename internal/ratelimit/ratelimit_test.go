// Copyright (c) 2026 Opsvault Team
// Opsvault - secure foundation for personal automation jobs
// This source code is licensed under the MIT license found in the LICENSE file.
package ratelimit

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

func (f *fakeClock) advance(d time.Duration) { f.now = f.now.Add(d) }

func newTestLimiter(t *testing.T) (*Limiter, *fakeClock) {
	t.Helper()
	clk := &fakeClock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	SetClock(clk)
	t.Cleanup(ResetClock)

	l, err := New(filepath.Join(t.TempDir(), "ratelimit_state.json"), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return l, clk
}

func TestPeriodNormalization(t *testing.T) {
	tests := []struct {
		period  Period
		seconds float64
	}{
		{PerSecond, 1},
		{PerMinute, 60},
		{PerHour, 3600},
		{PerDay, 86400},
	}
	for _, tc := range tests {
		t.Run(string(tc.period), func(t *testing.T) {
			got, err := tc.period.Seconds()
			if err != nil {
				t.Fatalf("Seconds failed: %v", err)
			}
			if got != tc.seconds {
				t.Fatalf("Seconds() = %v, want %v", got, tc.seconds)
			}
		})
	}

	if _, err := Period("fortnight").Seconds(); err == nil {
		t.Fatal("expected error for unknown period")
	}
}

func TestConfigureNormalizesRate(t *testing.T) {
	l, _ := newTestLimiter(t)
	if err := l.ConfigureLimit("email_send", 10, 10, PerHour); err != nil {
		t.Fatalf("ConfigureLimit failed: %v", err)
	}

	status := l.GetStatus()
	if len(status) != 1 {
		t.Fatalf("expected one bucket, got %d", len(status))
	}
	want := 10.0 / 3600.0
	if diff := status[0].RefillRate - want; diff > 1e-12 || diff < -1e-12 {
		t.Fatalf("refill rate %v, want %v", status[0].RefillRate, want)
	}
}

func TestTokenConservation(t *testing.T) {
	l, clk := newTestLimiter(t)
	if err := l.ConfigureLimit("api", 5, 1, PerSecond); err != nil {
		t.Fatalf("ConfigureLimit failed: %v", err)
	}

	// Exactly capacity consumptions succeed with no elapsed time.
	for i := 0; i < 5; i++ {
		if !l.Allow("api", 1) {
			t.Fatalf("consumption %d should succeed", i+1)
		}
	}
	if l.Allow("api", 1) {
		t.Fatal("consumption beyond capacity should fail")
	}

	// After 1/refill_rate seconds exactly one more succeeds.
	clk.advance(time.Second)
	if !l.Allow("api", 1) {
		t.Fatal("one token should have regenerated")
	}
	if l.Allow("api", 1) {
		t.Fatal("only one token should have regenerated")
	}
}

func TestBurstThenHalfSecondRefill(t *testing.T) {
	l, clk := newTestLimiter(t)
	if err := l.ConfigureLimit("x", 2, 2, PerSecond); err != nil {
		t.Fatalf("ConfigureLimit failed: %v", err)
	}

	if !l.Allow("x", 1) || !l.Allow("x", 1) {
		t.Fatal("first two calls should succeed")
	}
	if l.Allow("x", 1) {
		t.Fatal("third immediate call should fail")
	}

	clk.advance(500 * time.Millisecond)
	if !l.Allow("x", 1) {
		t.Fatal("one token should regenerate after 0.5s at 2 tokens/s")
	}
}

func TestRefillCapsAtCapacity(t *testing.T) {
	l, clk := newTestLimiter(t)
	if err := l.ConfigureLimit("slow", 3, 1, PerSecond); err != nil {
		t.Fatalf("ConfigureLimit failed: %v", err)
	}

	// Left unused for a very long time, remaining never exceeds capacity.
	clk.advance(240 * time.Hour)
	remaining, ok := l.Remaining("slow")
	if !ok {
		t.Fatal("bucket should exist")
	}
	if remaining != 3 {
		t.Fatalf("remaining %v, want capacity 3", remaining)
	}
}

func TestUnconfiguredKeyIsUnlimited(t *testing.T) {
	l, _ := newTestLimiter(t)
	for i := 0; i < 1000; i++ {
		if !l.Allow("never_configured", 1) {
			t.Fatal("unconfigured keys must always be allowed")
		}
	}
	if _, ok := l.Remaining("never_configured"); ok {
		t.Fatal("Remaining should report unconfigured keys as absent")
	}
}

func TestStateSurvivesReload(t *testing.T) {
	clk := &fakeClock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	SetClock(clk)
	t.Cleanup(ResetClock)

	path := filepath.Join(t.TempDir(), "state.json")
	l, err := New(path, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := l.ConfigureLimit("api", 4, 1, PerSecond); err != nil {
		t.Fatalf("ConfigureLimit failed: %v", err)
	}
	if !l.Allow("api", 3) {
		t.Fatal("consumption should succeed")
	}

	// A new limiter instance picks up the drained bucket, not a fresh burst.
	l2, err := New(path, nil)
	if err != nil {
		t.Fatalf("New after restart failed: %v", err)
	}
	remaining, ok := l2.Remaining("api")
	if !ok {
		t.Fatal("bucket lost across reload")
	}
	if remaining != 1 {
		t.Fatalf("remaining %v after reload, want 1", remaining)
	}
}

func TestStateFilePermissions(t *testing.T) {
	l, _ := newTestLimiter(t)
	if err := l.ConfigureLimit("api", 1, 1, PerSecond); err != nil {
		t.Fatalf("ConfigureLimit failed: %v", err)
	}

	info, err := os.Stat(l.path)
	if err != nil {
		t.Fatalf("stat state file: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Fatalf("state file mode %v, want 0600", info.Mode().Perm())
	}
}

func TestResetRefillsToCapacity(t *testing.T) {
	l, _ := newTestLimiter(t)
	if err := l.ConfigureLimit("api", 2, 1, PerSecond); err != nil {
		t.Fatalf("ConfigureLimit failed: %v", err)
	}
	l.Allow("api", 2)

	if err := l.Reset("api"); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	remaining, _ := l.Remaining("api")
	if remaining != 2 {
		t.Fatalf("remaining %v after reset, want 2", remaining)
	}

	// Unknown keys reset quietly.
	if err := l.Reset("missing"); err != nil {
		t.Fatalf("Reset of unknown key should be a no-op, got %v", err)
	}
}

func TestGetStatusUtilization(t *testing.T) {
	l, _ := newTestLimiter(t)
	if err := l.ConfigureLimit("api", 4, 1, PerSecond); err != nil {
		t.Fatalf("ConfigureLimit failed: %v", err)
	}
	l.Allow("api", 3)

	status := l.GetStatus()
	if len(status) != 1 {
		t.Fatalf("expected one bucket, got %d", len(status))
	}
	if status[0].Utilization != 75 {
		t.Fatalf("utilization %v, want 75", status[0].Utilization)
	}
}

func TestWaitReturnsImmediatelyWhenTokensAvailable(t *testing.T) {
	l, _ := newTestLimiter(t)
	if err := l.ConfigureLimit("api", 1, 1, PerSecond); err != nil {
		t.Fatalf("ConfigureLimit failed: %v", err)
	}

	if err := l.Wait(context.Background(), "api", 1, time.Second); err != nil {
		t.Fatalf("Wait should succeed immediately: %v", err)
	}
}

func TestWaitTimesOut(t *testing.T) {
	l, _ := newTestLimiter(t)
	// One token a day: drained bucket will not refill within the test.
	if err := l.ConfigureLimit("glacial", 1, 1, PerDay); err != nil {
		t.Fatalf("ConfigureLimit failed: %v", err)
	}
	l.Allow("glacial", 1)

	start := time.Now()
	err := l.Wait(context.Background(), "glacial", 1, 50*time.Millisecond)
	if !errors.Is(err, ErrTimedOut) {
		t.Fatalf("expected ErrTimedOut, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("Wait took too long to time out: %v", elapsed)
	}
}

func TestWaitHonorsContextCancellation(t *testing.T) {
	l, _ := newTestLimiter(t)
	if err := l.ConfigureLimit("glacial", 1, 1, PerDay); err != nil {
		t.Fatalf("ConfigureLimit failed: %v", err)
	}
	l.Allow("glacial", 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Wait(ctx, "glacial", 1, 0); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestConfigureRejectsBadInputs(t *testing.T) {
	l, _ := newTestLimiter(t)
	if err := l.ConfigureLimit("", 1, 1, PerSecond); err == nil {
		t.Fatal("expected error for empty key")
	}
	if err := l.ConfigureLimit("k", 0, 1, PerSecond); err == nil {
		t.Fatal("expected error for zero capacity")
	}
	if err := l.ConfigureLimit("k", 1, -1, PerSecond); err == nil {
		t.Fatal("expected error for negative rate")
	}
	if err := l.ConfigureLimit("k", 1, 1, Period("eon")); err == nil {
		t.Fatal("expected error for unknown period")
	}
}

func TestCorruptStateFileIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := New(path, nil); !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
}
