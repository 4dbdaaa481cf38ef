package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func (m MainModel) View() string {
	if m.quitting {
		return ""
	}

	outerStyle := baseStyle.
		Width(max(m.width-2, 0)).
		Height(max(m.height-2, 0)).
		Padding(0, 1)

	var status string
	switch {
	case m.statusMsg != "":
		status = errorStyle.Render("error: " + m.statusMsg)
	case m.lastRefresh.IsZero():
		status = "Scanning /proc..."
	case len(m.conflicts) == 0:
		status = okStyle.Render("No conflicts found.")
	default:
		status = conflictStyle.Render(fmt.Sprintf("%d port(s) with conflicting listeners", len(m.conflicts)))
	}
	if !m.lastRefresh.IsZero() {
		status += "  " + dimStyle.Render("updated "+m.lastRefresh.Format("15:04:05"))
	}

	helpText := fmt.Sprintf("Ports: %d | r: Refresh | Esc/q: Quit | Up/Down: Scroll | every %s", len(m.conflicts), m.interval)
	footerContent := helpText
	if m.version != "" {
		gap := m.width - 6 - lipgloss.Width(helpText) - lipgloss.Width(m.version)
		if gap > 0 {
			footerContent = helpText + strings.Repeat(" ", gap) + m.version
		}
	}

	return outerStyle.Render(
		lipgloss.JoinVertical(lipgloss.Left,
			titleStyle.Render("netports watch"),
			lipgloss.NewStyle().Height(1).Render(""),
			lipgloss.NewStyle().MarginBottom(1).PaddingLeft(1).Render(status),
			m.table.View(),
			lipgloss.NewStyle().Height(1).Render(""),
			footerStyle.Width(max(m.width-4, 0)).Render(footerContent),
		),
	)
}
