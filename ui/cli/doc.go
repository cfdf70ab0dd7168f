// Copyright (c) 2026 Opsvault Team
// Opsvault - secure foundation for personal automation jobs
// This source code is licensed under the MIT license found in the LICENSE file.

// Package cli implements the Opsvault command-line interface. It wires the
// credential vault, the rate limiter and the alert notifier into cobra
// commands and owns process exit codes.
package cli
