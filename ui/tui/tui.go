// Copyright (c) 2026 Opsvault Team
// Opsvault - secure foundation for personal automation jobs
// This source code is licensed under the MIT license found in the LICENSE file.

// Package tui provides the read-only Opsvault dashboard: credential rotation
// state on top, rate limit bucket fill state below. It is what running
// `opsvault` without a subcommand shows.
package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/opsvault/opsvault/internal/ratelimit"
	"github.com/opsvault/opsvault/internal/vault"
)

// Run starts the dashboard over an unlocked vault and a loaded limiter.
func Run(v *vault.Vault, l *ratelimit.Limiter) error {
	_, err := tea.NewProgram(
		newDashboard(v, l),
		tea.WithAltScreen(),
	).Run()
	return err
}
