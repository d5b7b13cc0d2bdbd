package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/felixgeelhaar/pillars/pkg/domain/journey"
	"github.com/felixgeelhaar/pillars/pkg/domain/pillar"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	errorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	hintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// writeTable renders left-aligned rows under header.
func writeTable(w io.Writer, header []string, rows [][]string) error {
	table := tablewriter.NewWriter(w)
	table.Header(header)
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignLeft
	})
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}

func journeyStatusStyle(s journey.Status) lipgloss.Style {
	switch s {
	case journey.StatusActive:
		return okStyle
	case journey.StatusPaused:
		return warnStyle
	default:
		return mutedStyle
	}
}

func pillarStatusStyle(s pillar.Status) lipgloss.Style {
	switch s {
	case pillar.StatusCompleted:
		return okStyle
	case pillar.StatusRequired:
		return titleStyle
	case pillar.StatusAvailable:
		return warnStyle
	default:
		return mutedStyle
	}
}

// progressBar draws a fixed-width bar for a percentage.
func progressBar(percent, width int) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := percent * width / 100
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + fmt.Sprintf(" %3d%%", percent)
}

// shortID keeps ids readable in tables.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func printf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
