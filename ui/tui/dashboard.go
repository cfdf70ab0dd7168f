// Copyright (c) 2026 Opsvault Team
// Opsvault - secure foundation for personal automation jobs
// This source code is licensed under the MIT license found in the LICENSE file.

package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/opsvault/opsvault/internal/ratelimit"
	"github.com/opsvault/opsvault/internal/vault"
)

const (
	colorSubtle    = lipgloss.Color("240")
	colorHighlight = lipgloss.Color("81")
	colorSpecial   = lipgloss.Color("208")
)

var (
	docStyle = lipgloss.NewStyle().Margin(1, 2)

	titleStyle = lipgloss.NewStyle().
			Foreground(colorHighlight).
			Bold(true).
			Padding(0, 1)

	overdueStyle = lipgloss.NewStyle().Foreground(colorSpecial)

	helpStyle = lipgloss.NewStyle().Foreground(colorSubtle)

	tableBorderStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.NormalBorder()).
				BorderForeground(colorSubtle)
)

// focusArea marks which table receives key events.
type focusArea int

const (
	focusCredentials focusArea = iota
	focusLimits
)

// dashboard is the read-only root model: two tables and a help line.
type dashboard struct {
	vault   *vault.Vault
	limiter *ratelimit.Limiter

	creds   table.Model
	limits  table.Model
	focus   focusArea
	overdue int
}

func newDashboard(v *vault.Vault, l *ratelimit.Limiter) *dashboard {
	d := &dashboard{vault: v, limiter: l}

	d.creds = table.New(
		table.WithColumns([]table.Column{
			{Title: "Service", Width: 18},
			{Title: "Key", Width: 18},
			{Title: "Created", Width: 12},
			{Title: "Rotate by", Width: 12},
			{Title: "Rotation", Width: 10},
		}),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	d.limits = table.New(
		table.WithColumns([]table.Column{
			{Title: "Bucket", Width: 18},
			{Title: "Capacity", Width: 10},
			{Title: "Remaining", Width: 10},
			{Title: "Rate/s", Width: 10},
			{Title: "Used", Width: 8},
		}),
		table.WithHeight(8),
	)

	styles := table.DefaultStyles()
	styles.Header = styles.Header.Bold(true).Foreground(colorHighlight)
	styles.Selected = styles.Selected.Foreground(colorHighlight)
	d.creds.SetStyles(styles)
	d.limits.SetStyles(styles)

	d.refresh()
	return d
}

// refresh repopulates both tables from the live components.
func (d *dashboard) refresh() {
	infos := d.vault.List()
	credRows := make([]table.Row, 0, len(infos))
	d.overdue = 0
	for _, info := range infos {
		rotation := "ok"
		if info.NeedsRotation {
			rotation = "OVERDUE"
			d.overdue++
		}
		credRows = append(credRows, table.Row{
			info.Service,
			info.Key,
			info.CreatedAt.Format("2006-01-02"),
			info.RotateBy.Format("2006-01-02"),
			rotation,
		})
	}
	d.creds.SetRows(credRows)

	status := d.limiter.GetStatus()
	limitRows := make([]table.Row, 0, len(status))
	for _, s := range status {
		limitRows = append(limitRows, table.Row{
			s.Key,
			fmt.Sprintf("%.0f", s.Capacity),
			fmt.Sprintf("%.2f", s.Remaining),
			fmt.Sprintf("%.4f", s.RefillRate),
			fmt.Sprintf("%.0f%%", s.Utilization),
		})
	}
	d.limits.SetRows(limitRows)
}

func (d *dashboard) Init() tea.Cmd { return nil }

func (d *dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return d, tea.Quit
		case "tab":
			if d.focus == focusCredentials {
				d.focus = focusLimits
				d.creds.Blur()
				d.limits.Focus()
			} else {
				d.focus = focusCredentials
				d.limits.Blur()
				d.creds.Focus()
			}
			return d, nil
		case "r":
			d.refresh()
			return d, nil
		}
	case tea.WindowSizeMsg:
		h, _ := docStyle.GetFrameSize()
		d.creds.SetWidth(msg.Width - h)
		d.limits.SetWidth(msg.Width - h)
	}

	var cmd tea.Cmd
	if d.focus == focusCredentials {
		d.creds, cmd = d.creds.Update(msg)
	} else {
		d.limits, cmd = d.limits.Update(msg)
	}
	return d, cmd
}

func (d *dashboard) View() string {
	credTitle := titleStyle.Render("Credentials")
	if d.overdue > 0 {
		credTitle += " " + overdueStyle.Render(fmt.Sprintf("(%d overdue)", d.overdue))
	}

	sections := []string{
		titleStyle.Render("Opsvault"),
		credTitle,
		tableBorderStyle.Render(d.creds.View()),
		titleStyle.Render("Rate limits"),
		tableBorderStyle.Render(d.limits.View()),
		helpStyle.Render("tab: switch  r: refresh  q: quit"),
	}
	return docStyle.Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}
