package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/moondance-labs/netports/internal/output"
	"github.com/moondance-labs/netports/pkg/model"
)

type conflictsMsg struct {
	result model.ConflictsResult
	at     time.Time
}

type refreshErrMsg struct{ err error }

func (m MainModel) fetch() tea.Cmd {
	source, ctx := m.source, m.ctx
	return func() tea.Msg {
		res, err := source(ctx)
		if err != nil {
			return refreshErrMsg{err}
		}
		return conflictsMsg{result: res, at: time.Now()}
	}
}

func (m *MainModel) setConflicts(groups []model.ConflictGroup) {
	m.conflicts = groups
	flat := output.ConflictRows(groups)
	rows := make([]table.Row, 0, len(flat))
	for _, r := range flat {
		rows = append(rows, table.Row(r))
	}
	m.table.SetRows(rows)
	if m.table.Cursor() >= len(rows) {
		m.table.SetCursor(max(len(rows)-1, 0))
	}
}
