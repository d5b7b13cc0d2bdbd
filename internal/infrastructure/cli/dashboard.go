package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/pillars/internal/infrastructure/wiring"
	"github.com/felixgeelhaar/pillars/pkg/application"
	"github.com/felixgeelhaar/pillars/pkg/domain/journey"
)

const dashboardRefresh = 5 * time.Second

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Read-only TUI of your journeys and progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		if os.Getenv("PILLARS_SKIP_DASHBOARD_RUN") == "true" {
			return nil
		}
		services, err := loadServicesForCurrentDir()
		if err != nil {
			return err
		}
		defer services.Close()

		stop, err := services.ServeMetrics()
		if err != nil {
			return err
		}
		defer stop()

		p := tea.NewProgram(newDashboardModel(dashboardSource(services, currentUser()), currentUser()), tea.WithContext(cmd.Context()))
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("dashboard run failed: %w", err)
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(dashboardCmd)
}

// Styles
var baseStyle = lipgloss.NewStyle().
	BorderStyle(lipgloss.NormalBorder()).
	BorderForeground(lipgloss.Color("240"))

var headerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("#FAFAFA")).
	Background(lipgloss.Color("#7D56F4")).
	PaddingLeft(1).
	PaddingRight(1)

// dashboardData is one snapshot shown by the dashboard.
type dashboardData struct {
	Mode     journey.Mode
	Journeys []journey.Journey
	Overview application.Overview
}

type dashboardMsg struct {
	data dashboardData
	err  error
	at   time.Time
}

type tickMsg time.Time

func dashboardSource(services *wiring.AppServices, user string) func(context.Context) (dashboardData, error) {
	return func(ctx context.Context) (dashboardData, error) {
		mode, err := services.Journeys.Mode(ctx, user)
		if err != nil {
			return dashboardData{}, err
		}
		js, err := services.Journeys.List(ctx, user, journey.Filter{})
		if err != nil {
			return dashboardData{}, err
		}
		overview, err := services.Progress.Overview(ctx, user)
		if err != nil {
			return dashboardData{}, err
		}
		return dashboardData{Mode: mode, Journeys: js, Overview: overview}, nil
	}
}

type dashboardModel struct {
	user    string
	load    func(context.Context) (dashboardData, error)
	table   table.Model
	data    dashboardData
	updated time.Time
	err     error
}

func newDashboardModel(load func(context.Context) (dashboardData, error), user string) dashboardModel {
	columns := []table.Column{
		{Title: "Pillar", Width: 12},
		{Title: "Status", Width: 10},
		{Title: "Progress", Width: 17},
		{Title: "Mode", Width: 10},
		{Title: "Started", Width: 11},
		{Title: "ID", Width: 10},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(8),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240"))
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229"))
	t.SetStyles(s)

	return dashboardModel{user: user, load: load, table: t}
}

func (m dashboardModel) refresh() tea.Cmd {
	return func() tea.Msg {
		data, err := m.load(context.Background())
		return dashboardMsg{data: data, err: err, at: time.Now()}
	}
}

func tick() tea.Cmd {
	return tea.Tick(dashboardRefresh, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m dashboardModel) Init() tea.Cmd { return tea.Batch(m.refresh(), tick()) }

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			return m, m.refresh()
		}
	case tickMsg:
		return m, tea.Batch(m.refresh(), tick())
	case dashboardMsg:
		m.err = msg.err
		if msg.err == nil {
			m.data = msg.data
			m.updated = msg.at
			m.table.SetRows(journeyRows(msg.data.Journeys))
		}
		return m, nil
	}
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func journeyRows(js []journey.Journey) []table.Row {
	rows := make([]table.Row, 0, len(js))
	for _, j := range js {
		rows = append(rows, table.Row{
			j.PillarKey.DisplayName(),
			string(j.Status),
			progressBar(j.Progress, 10),
			string(j.Mode),
			j.StartedAt.Local().Format("2006-01-02"),
			shortID(j.ID),
		})
	}
	return rows
}

func (m dashboardModel) View() string {
	if m.err != nil {
		return fmt.Sprintf("Error loading dashboard: %v\nPress q to quit.", m.err)
	}

	header := headerStyle.Render(fmt.Sprintf("Pillars · %s", m.user))
	o := m.data.Overview
	summary := fmt.Sprintf("Mode: %s (up to %d active)   Overall: %s",
		m.data.Mode, m.data.Mode.MaxConcurrent(), progressBar(o.CompletionPercent, 12))
	counts := fmt.Sprintf("Active %d · Paused %d · Completed %d · Abandoned %d   Avg active progress %.0f%%",
		o.Counts[journey.StatusActive], o.Counts[journey.StatusPaused],
		o.Counts[journey.StatusCompleted], o.Counts[journey.StatusAbandoned], o.AverageActiveProgress)

	footer := "\n[q] Quit  [r] Refresh  [Up/Down] Navigate"
	if !m.updated.IsZero() {
		footer += mutedStyle.Render("   updated " + m.updated.Format("15:04:05"))
	}
	if o.AllComplete {
		footer = okStyle.Render("\nEvery pillar is complete.") + footer
	}

	return baseStyle.Render(
		lipgloss.JoinVertical(lipgloss.Left,
			header,
			summary,
			counts,
			"\nJourneys:",
			m.table.View(),
			footer,
		),
	) + "\n"
}
