package monitor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/fallpaper-daemon/fallpaper/admin"
	"github.com/fallpaper-daemon/fallpaper/store"
)

// tickMsg drives the periodic refresh, the teacher's dashboard.TickMsg
// pattern.
type tickMsg time.Time

// dataMsg carries a completed refresh back into the model.
type dataMsg struct {
	sources []store.Source
	devices []store.Device
	running []store.Run
	recent  []store.Run
	err     error
}

// Config configures the dashboard.
type Config struct {
	Admin           *admin.Admin
	RefreshInterval time.Duration
}

// Model is the bubbletea model for the live run dashboard — re-themed from
// the teacher's DashboardModel (download/unpack/activate phases) to
// sources/devices/runs.
type Model struct {
	admin           *admin.Admin
	refreshInterval time.Duration

	spinner spinner.Model
	styles  *styles

	sources []store.Source
	devices []store.Device
	running []store.Run
	recent  []store.Run

	lastRefresh time.Time
	err         error
	quitting    bool
}

// Run starts the bubbletea program for m and blocks until the user quits.
func Run(m *Model) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

// New builds a dashboard Model ready for tea.NewProgram.
func New(cfg Config) *Model {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = time.Second
	}
	s := spinner.New()
	s.Spinner = spinner.Dot
	return &Model{
		admin:           cfg.Admin,
		refreshInterval: cfg.RefreshInterval,
		spinner:         s,
		styles:          defaultStyles(),
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.refreshCmd(), tickCmd(m.refreshInterval))
}

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *Model) refreshCmd() tea.Cmd {
	a := m.admin
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		sources, err := a.ListSources(ctx)
		if err != nil {
			return dataMsg{err: err}
		}
		devices, err := a.ListDevices(ctx)
		if err != nil {
			return dataMsg{err: err}
		}
		running, err := a.ListRuns(ctx, store.RunRunning, 20)
		if err != nil {
			return dataMsg{err: err}
		}
		recent, err := a.ListRuns(ctx, store.RunCompleted, 10)
		if err != nil {
			return dataMsg{err: err}
		}
		return dataMsg{sources: sources, devices: devices, running: running, recent: recent}
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "r":
			return m, m.refreshCmd()
		}
	case tickMsg:
		return m, tea.Batch(m.refreshCmd(), tickCmd(m.refreshInterval))
	case dataMsg:
		m.lastRefresh = time.Now()
		m.err = msg.err
		if msg.err == nil {
			m.sources = msg.sources
			m.devices = msg.devices
			m.running = msg.running
			m.recent = msg.recent
		}
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder

	b.WriteString(m.styles.title.Render("fallpaperd monitor"))
	b.WriteString("\n")

	if m.err != nil {
		b.WriteString(m.styles.errorS.Render(fmt.Sprintf("refresh error: %v", m.err)))
		b.WriteString("\n\n")
	}

	b.WriteString(m.styles.sectionHead.Render("Sources"))
	b.WriteString("\n")
	st := newTable(m.styles, column{"NAME", 20}, column{"KIND", 10}, column{"ENABLED", 9})
	for _, s := range m.sources {
		enabled := "no"
		if s.Enabled {
			enabled = "yes"
		}
		st.addRow(s.Name, s.Kind, enabled)
	}
	b.WriteString(st.render())
	b.WriteString("\n")

	b.WriteString(m.styles.sectionHead.Render(fmt.Sprintf("Running (%d)", len(m.running))))
	b.WriteString("\n")
	rt := newTable(m.styles, column{"", 1}, column{"ID", 12}, column{"PROGRESS", 12}, column{"MESSAGE", 40})
	for _, r := range m.running {
		rt.addRow(stateSymbol(m.styles, string(r.State)), r.ID[:min(12, len(r.ID))], fmt.Sprintf("%d/%d", r.ProgressCurrent, r.ProgressTotal), r.ProgressMessage)
	}
	b.WriteString(rt.render())
	b.WriteString("\n")

	b.WriteString(m.styles.sectionHead.Render("Recently completed"))
	b.WriteString("\n")
	ct := newTable(m.styles, column{"", 1}, column{"ID", 12}, column{"COMPLETED", 20})
	for _, r := range m.recent {
		completedAt := ""
		if r.CompletedAt.Valid {
			completedAt = r.CompletedAt.Time.Format(time.RFC3339)
		}
		ct.addRow(stateSymbol(m.styles, string(r.State)), r.ID[:min(12, len(r.ID))], completedAt)
	}
	b.WriteString(ct.render())

	b.WriteString("\n")
	b.WriteString(m.styles.help.Render(fmt.Sprintf("%s refreshed %s · q to quit · r to refresh", m.spinner.View(), m.lastRefresh.Format("15:04:05"))))
	b.WriteString("\n")

	return b.String()
}
