package tui

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/moondance-labs/netports/pkg/model"
)

var (
	baseStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("#585858")) // Dark Gray

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")). // White
			Background(lipgloss.Color("#7D56F4")). // Purple
			Padding(0, 1)

	tableHeaderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#5f5fd7")). // Purple/Blue
				Bold(true).
				Border(lipgloss.NormalBorder(), false, false, true, false).
				BorderForeground(lipgloss.Color("#585858")). // Dark Gray
				Padding(0, 1)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#767676")). // Dimmed Gray
			Border(lipgloss.NormalBorder(), true, false, false, false).
			BorderForeground(lipgloss.Color("#585858")). // Dark Gray
			Padding(0, 1).
			Width(100)

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#22aa22")). // Green
		Bold(true)

	conflictStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ffdf87")). // Amber
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#767676")) // Dimmed Gray

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ff5f5f")). // Soft red
			Bold(true)
)

// Source produces one fresh system-wide conflict report. It is called once
// per refresh and must not reuse state from earlier calls.
type Source func(ctx context.Context) (model.ConflictsResult, error)

type MainModel struct {
	ctx      context.Context
	table    table.Model
	source   Source
	interval time.Duration

	conflicts   []model.ConflictGroup
	lastRefresh time.Time
	refreshing  bool
	statusMsg   string // last refresh error, shown in the status line
	width       int
	height      int
	quitting    bool
	version     string
}

func InitialModel(ctx context.Context, source Source, interval time.Duration, version string) MainModel {
	columns := []table.Column{
		{Title: "PORT", Width: 7},
		{Title: "PID", Width: 8},
		{Title: "NAME", Width: 30},
		{Title: "N", Width: 4},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(20),
	)

	s := table.DefaultStyles()
	s.Header = tableHeaderStyle
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("#ffffaf")). // Light Yellow
		Background(lipgloss.Color("#5f00d7")). // Purple
		Bold(false)
	t.SetStyles(s)

	return MainModel{
		ctx:      ctx,
		table:    t,
		source:   source,
		interval: interval,
		version:  version,
	}
}

// Start runs the watch view until the user quits or ctx is cancelled.
func Start(ctx context.Context, source Source, interval time.Duration, version string) error {
	if os.Getenv("COLORTERM") == "" {
		os.Setenv("COLORTERM", "truecolor") //nolint:errcheck
	}

	p := tea.NewProgram(InitialModel(ctx, source, interval, version), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running tui: %w", err)
	}
	return nil
}

func (m MainModel) Init() tea.Cmd {
	return tea.Batch(
		m.fetch(),
		waitTick(m.interval),
	)
}
