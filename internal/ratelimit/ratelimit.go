// Copyright (c) 2026 Opsvault Team
// Opsvault - secure foundation for personal automation jobs
// This source code is licensed under the MIT license found in the LICENSE file.

// package ratelimit implements a persistent token-bucket rate limiter keyed
// by named resource ("email_send", "ynab_api", ...). Buckets refill lazily on
// access and the whole bucket set is rewritten to a JSON state file after
// every successful consumption, so limits survive process restarts.
package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/opsvault/opsvault/internal/db"
	"github.com/opsvault/opsvault/internal/logging"
)

// Period is the unit the refill rate is expressed in when configuring a
// limit. Rates are always normalized to tokens/second internally.
type Period string

const (
	PerSecond Period = "second"
	PerMinute Period = "minute"
	PerHour   Period = "hour"
	PerDay    Period = "day"
)

// Seconds returns the number of seconds in the period.
func (p Period) Seconds() (float64, error) {
	switch p {
	case PerSecond:
		return 1, nil
	case PerMinute:
		return 60, nil
	case PerHour:
		return 3600, nil
	case PerDay:
		return 86400, nil
	default:
		return 0, fmt.Errorf("unknown period %q", p)
	}
}

var (
	// ErrPersistence marks state file read/write failures.
	ErrPersistence = errors.New("rate limit persistence failure")

	// ErrTimedOut is returned by Wait when the deadline elapses before
	// enough tokens accumulate.
	ErrTimedOut = errors.New("timed out waiting for rate limit tokens")
)

// waitPollInterval caps how long Wait sleeps between re-checks.
const waitPollInterval = time.Second

// bucket holds the state of one named limit. Tokens are fractional because
// refill is continuous.
type bucket struct {
	Capacity   float64   `json:"capacity"`
	RefillRate float64   `json:"refill_rate"` // tokens per second
	Tokens     float64   `json:"tokens"`
	LastRefill time.Time `json:"last_refill"`
}

// refill advances the bucket to now. Never negative elapsed time, caps at
// capacity.
func (b *bucket) refill(now time.Time) {
	elapsed := now.Sub(b.LastRefill).Seconds()
	if elapsed > 0 {
		b.Tokens = min(b.Capacity, b.Tokens+elapsed*b.RefillRate)
	}
	b.LastRefill = now
}

// Status reports one bucket for dashboards and the status command.
type Status struct {
	Key         string  `json:"key"`
	Capacity    float64 `json:"capacity"`
	RefillRate  float64 `json:"refill_rate"`
	Remaining   float64 `json:"remaining"`
	Utilization float64 `json:"utilization_pct"`
}

// Limiter is a persistent token-bucket rate limiter. All methods are safe
// for concurrent use within one process. Two processes sharing one state
// file race with last-writer-wins semantics; that is acceptable only for
// single-instance cron jobs and flagged in the design notes.
type Limiter struct {
	path  string
	audit db.AuditWriter

	mu      sync.Mutex
	buckets map[string]*bucket
}

// New creates a Limiter backed by the given state file, loading any state a
// previous run left behind.
func New(path string, audit db.AuditWriter) (*Limiter, error) {
	l := &Limiter{
		path:    path,
		audit:   audit,
		buckets: make(map[string]*bucket),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return l, nil
		}
		return nil, fmt.Errorf("%w: could not read %s: %v", ErrPersistence, path, err)
	}
	if err := json.Unmarshal(data, &l.buckets); err != nil {
		return nil, fmt.Errorf("%w: state file %s is corrupt: %v", ErrPersistence, path, err)
	}
	return l, nil
}

// ConfigureLimit creates (or replaces) the bucket for key. rate is expressed
// in tokens per period and normalized to tokens/second. The bucket starts at
// full capacity and is persisted immediately.
func (l *Limiter) ConfigureLimit(key string, capacity, rate float64, period Period) error {
	if key == "" {
		return fmt.Errorf("bucket key must not be empty")
	}
	if capacity <= 0 || rate <= 0 {
		return fmt.Errorf("capacity and rate must be positive")
	}
	seconds, err := period.Seconds()
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.buckets[key] = &bucket{
		Capacity:   capacity,
		RefillRate: rate / seconds,
		Tokens:     capacity,
		LastRefill: defaultClock.Now(),
	}

	if err := l.persist(); err != nil {
		return err
	}
	l.logAudit("RATE_LIMIT_CONFIGURED", fmt.Sprintf("key: %s, capacity: %g, rate: %g/%s", key, capacity, rate, period))
	return nil
}

// Allow attempts to consume tokens from the bucket for key. Unconfigured
// keys are unlimited and always allowed; callers that forget to configure a
// limit must not break.
func (l *Limiter) Allow(key string, tokens float64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		return true
	}

	b.refill(defaultClock.Now())
	if b.Tokens < tokens {
		return false
	}
	b.Tokens -= tokens

	// State is rewritten after every successful consumption so a restart
	// cannot hand out a fresh burst.
	if err := l.persist(); err != nil {
		logging.Errorf("rate limit state not persisted: %v", err)
	}
	return true
}

// Wait blocks until tokens can be consumed from the bucket for key,
// re-checking at one-second intervals. A zero timeout waits forever, which
// matches the historical contract; prefer a positive timeout so a
// misconfigured refill rate cannot hang the caller. Context cancellation is
// honored between polls.
func (l *Limiter) Wait(ctx context.Context, key string, tokens float64, timeout time.Duration) error {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	for {
		if l.Allow(key, tokens) {
			return nil
		}
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return fmt.Errorf("%w: key %s", ErrTimedOut, key)
		}

		sleep := waitPollInterval
		if !deadline.IsZero() {
			if remaining := time.Until(deadline); remaining < sleep {
				sleep = remaining
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
	}
}

// Remaining reports the current token count for key after a lazy refill.
// The second return is false for unconfigured keys.
func (l *Limiter) Remaining(key string) (float64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		return 0, false
	}
	b.refill(defaultClock.Now())
	return b.Tokens, true
}

// Reset refills the bucket for key to full capacity. Unknown keys are a
// quiet no-op.
func (l *Limiter) Reset(key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		return nil
	}
	b.Tokens = b.Capacity
	b.LastRefill = defaultClock.Now()

	if err := l.persist(); err != nil {
		return err
	}
	l.logAudit("RATE_LIMIT_RESET", fmt.Sprintf("key: %s", key))
	return nil
}

// GetStatus returns a snapshot of every configured bucket.
func (l *Limiter) GetStatus() []Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := defaultClock.Now()
	out := make([]Status, 0, len(l.buckets))
	for key, b := range l.buckets {
		b.refill(now)
		out = append(out, Status{
			Key:         key,
			Capacity:    b.Capacity,
			RefillRate:  b.RefillRate,
			Remaining:   b.Tokens,
			Utilization: (b.Capacity - b.Tokens) / b.Capacity * 100,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// persist rewrites the state file. Callers hold the mutex.
func (l *Limiter) persist() error {
	data, err := json.MarshalIndent(l.buckets, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: could not marshal state: %v", ErrPersistence, err)
	}

	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("%w: could not create %s: %v", ErrPersistence, dir, err)
		}
	}

	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("%w: could not write %s: %v", ErrPersistence, tmp, err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: could not replace %s: %v", ErrPersistence, l.path, err)
	}
	return nil
}

func (l *Limiter) logAudit(action, details string) {
	if l.audit == nil {
		return
	}
	if err := l.audit.LogAction(action, details); err != nil {
		logging.Debugf("audit write failed: %v", err)
	}
}
