package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

type tickMsg time.Time

func waitTick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m MainModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tickMsg:
		if !m.refreshing && !m.quitting {
			m.refreshing = true
			cmd = m.fetch()
		}
		return m, tea.Batch(cmd, waitTick(m.interval))

	case conflictsMsg:
		m.refreshing = false
		m.statusMsg = ""
		m.lastRefresh = msg.at
		m.setConflicts(msg.result.Conflicts)
		return m, nil

	case refreshErrMsg:
		m.refreshing = false
		m.statusMsg = msg.err.Error()
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		tableHeight := msg.Height - 10
		if tableHeight < 5 {
			tableHeight = 5
		}
		m.table.SetHeight(tableHeight)
		m.table.SetWidth(max(msg.Width-6, 10))
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			if m.refreshing {
				return m, nil
			}
			m.refreshing = true
			return m, m.fetch()
		}
	}

	m.table, cmd = m.table.Update(msg)
	return m, cmd
}
