// Copyright (c) 2026 Opsvault Team
// Opsvault - secure foundation for personal automation jobs
// This source code is licensed under the MIT license found in the LICENSE file.

package alert

import "time"

// Clock provides an abstraction over time.Now for testability.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

var defaultClock Clock = systemClock{}

// SetClock replaces the package clock used for rate windows and log
// partitioning. Tests may set a fake clock.
func SetClock(c Clock) { defaultClock = c }

// ResetClock restores the default system clock.
func ResetClock() { defaultClock = systemClock{} }
