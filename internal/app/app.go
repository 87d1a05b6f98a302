package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/HaPhanBaoMinh/podcleaner/internal/domain"
	"github.com/HaPhanBaoMinh/podcleaner/internal/ui/styles"
	"github.com/HaPhanBaoMinh/podcleaner/internal/ui/widgets"
)

type View int

const (
	ViewCycles View = iota
	ViewPods
)

const maxHistory = 100

type reportMsg domain.CycleReport
type tickMsg time.Time

// Model is the live dashboard shown by `run --tui`. Reports arrive through
// Sink; the model never talks to the cluster itself.
type Model struct {
	cancel   context.CancelFunc
	interval time.Duration
	source   string

	view  View
	table table.Model

	infoOpen bool
	infoVP   viewport.Model

	// newest first
	reports []domain.CycleReport

	width, height int
	now           time.Time
}

// New builds the dashboard. cancel is invoked on quit so the cleanup loop
// stops with the UI.
func New(cancel context.CancelFunc, interval time.Duration, source string) Model {
	if cancel == nil {
		cancel = func() {}
	}
	t := table.New()
	t.SetHeight(12)
	t.SetWidth(100)

	return Model{
		cancel:   cancel,
		interval: interval,
		source:   source,
		view:     ViewCycles,
		table:    t,
		infoVP:   viewport.New(100, 10),
		now:      time.Now(),
	}
}

func (m Model) Init() tea.Cmd { return tick() }

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height

		headerH := lipgloss.Height(styles.Header.Render("x"))
		footerH := lipgloss.Height(styles.Footer.Render("x"))
		base := m.height - headerH - footerH - 2
		if base < 10 {
			base = 10
		}
		if m.infoOpen {
			m.table.SetHeight(int(float64(base) * 0.55))
			m.infoVP.Height = base - m.table.Height() - 2
		} else {
			m.table.SetHeight(base)
			m.infoVP.Height = 0
		}
		m.infoVP.Width = m.width - 4
		m.table.SetWidth(m.width - 4)
		m.rebuildTable()
		m.infoVP.SetContent(m.renderInfo())
		return m, nil

	case reportMsg:
		m.reports = append([]domain.CycleReport{domain.CycleReport(msg)}, m.reports...)
		if len(m.reports) > maxHistory {
			m.reports = m.reports[:maxHistory]
		}
		m.rebuildTable()
		if m.view == ViewCycles {
			m.table.SetCursor(0)
		}
		m.infoVP.SetContent(m.renderInfo())
		return m, nil

	case tickMsg:
		m.now = time.Time(msg)
		return m, tick()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.cancel()
			return m, tea.Quit

		case "tab":
			if m.view == ViewCycles {
				m.view = ViewPods
			} else {
				m.view = ViewCycles
			}
			m.table.SetCursor(0)
			m.rebuildTable()
			m.infoVP.SetContent(m.renderInfo())
			return m, nil

		case "i":
			m.infoOpen = !m.infoOpen
			return m, func() tea.Msg { return tea.WindowSizeMsg{Width: m.width, Height: m.height} }

		case "esc":
			if m.infoOpen {
				m.infoOpen = false
				return m, func() tea.Msg { return tea.WindowSizeMsg{Width: m.width, Height: m.height} }
			}
			if m.view == ViewPods {
				m.view = ViewCycles
				m.rebuildTable()
				return m, nil
			}
			return m, nil

		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.infoVP, cmd = m.infoVP.Update(msg)
			return m, cmd

		case "up", "k", "down", "j", "home", "end":
			var cmd tea.Cmd
			m.table, cmd = m.table.Update(msg)
			m.infoVP.SetContent(m.renderInfo())
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// selected is the cycle the pods view and info pane describe. In the cycles
// view it follows the cursor, in the pods view it is the latest cycle.
func (m Model) selected() (domain.CycleReport, bool) {
	if len(m.reports) == 0 {
		return domain.CycleReport{}, false
	}
	if m.view == ViewPods {
		return m.reports[0], true
	}
	i := m.table.Cursor()
	if i < 0 || i >= len(m.reports) {
		i = 0
	}
	return m.reports[i], true
}

type podState int

const (
	podRestarted podState = iota
	podDeleteFailed
	podStuck
)

type podRow struct {
	rec   domain.UnhealthyPodRecord
	state podState
}

// podRows lists what the selected cycle found followed by what was still
// broken when recovery polling stopped.
func (m Model) podRows() []podRow {
	r, ok := m.selected()
	if !ok {
		return nil
	}
	failed := map[string]bool{}
	for _, rr := range r.Restarts {
		if rr.Status == domain.RestartFailed {
			failed[rr.Namespace+"/"+rr.Name] = true
		}
	}
	rows := make([]podRow, 0, len(r.Unhealthy))
	for _, p := range r.Unhealthy {
		st := podRestarted
		if failed[p.Key()] {
			st = podDeleteFailed
		}
		rows = append(rows, podRow{rec: p, state: st})
	}
	if r.Recovery != nil {
		for _, p := range r.Recovery.StillUnhealthy {
			rows = append(rows, podRow{rec: p, state: podStuck})
		}
	}
	return rows
}

func (m *Model) rebuildTable() {
	total := m.table.Width()
	switch m.view {
	case ViewCycles:
		wRun, wTime, wDur, wNS, wPods, wBad, wBar, wRst, wRec, wTrend := m.cycleColWidths(total)
		cols := []table.Column{
			{Title: "RUN", Width: wRun},
			{Title: "ENDED", Width: wTime},
			{Title: "TOOK", Width: wDur},
			{Title: "NS", Width: wNS},
			{Title: "PODS", Width: wPods},
			{Title: "BAD", Width: wBad},
			{Title: "", Width: wBar},
			{Title: "OK/FAIL", Width: wRst},
			{Title: "RECOVERY", Width: wRec},
			{Title: "Trend", Width: wTrend},
		}

		var rows []table.Row
		for i, r := range m.reports {
			frac := 0.0
			if r.PodsScanned > 0 {
				frac = float64(len(r.Unhealthy)) / float64(r.PodsScanned)
			}
			rows = append(rows, table.Row{
				fmt.Sprintf("#%d", r.Run),
				r.EndedAt.Format("15:04:05"),
				r.Duration().Round(time.Second).String(),
				fmt.Sprintf("%d", len(r.NamespacesScanned)),
				fmt.Sprintf("%d", r.PodsScanned),
				fmt.Sprintf("%d", len(r.Unhealthy)),
				widgets.Bar(frac, wBar-1),
				fmt.Sprintf("%d/%d", r.Succeeded, r.Failed),
				recoveryLabel(r),
				widgets.Spark8(widgets.Normalize(unhealthyTrend(m.reports[i:])), wTrend),
			})
		}
		m.table.SetColumns(cols)
		m.table.SetRows(rows)

	case ViewPods:
		wPod, wPhase, wReason, wRst, wState, wCPU, wCPUBar, wMem, wMemBar := m.podColWidths(total)
		cols := []table.Column{
			{Title: "POD", Width: wPod},
			{Title: "PHASE", Width: wPhase},
			{Title: "REASON", Width: wReason},
			{Title: "RST", Width: wRst},
			{Title: "STATE", Width: wState},
			{Title: "CPU", Width: wCPU},
			{Title: "", Width: wCPUBar},
			{Title: "MEM", Width: wMem},
			{Title: "", Width: wMemBar},
		}

		prs := m.podRows()
		var maxCPU, maxMem int64 = 1, 1
		for _, p := range prs {
			if u := p.rec.Usage; u != nil {
				maxCPU = max(maxCPU, u.CPUm)
				maxMem = max(maxMem, u.MemBytes)
			}
		}

		var rows []table.Row
		for _, p := range prs {
			cpu, mem, cpuBar, memBar := "-", "-", "", ""
			if u := p.rec.Usage; u != nil {
				cpu = fmt.Sprintf("%4dm", u.CPUm)
				mem = fmt.Sprintf("%6.1fMi", float64(u.MemBytes)/(1024*1024))
				cpuBar = widgets.Bar(float64(u.CPUm)/float64(maxCPU), wCPUBar-1)
				memBar = widgets.Bar(float64(u.MemBytes)/float64(maxMem), wMemBar-1)
			}
			rows = append(rows, table.Row{
				p.rec.Key(),
				string(p.rec.Phase),
				p.rec.ContainerReason,
				fmt.Sprintf("%d", p.rec.RestartCount),
				p.state.String(),
				cpu,
				cpuBar,
				mem,
				memBar,
			})
		}
		m.table.SetColumns(cols)
		m.table.SetRows(rows)
	}
	m.table.Focus()
}

func (m Model) View() string {
	head := styles.Header.Render(fmt.Sprintf("podcleaner  │ source: %s  view: %s  every: %s  next: %s  (Tab switch Cycles/Pods)",
		m.source, map[View]string{ViewCycles: "Cycles", ViewPods: "Pods"}[m.view], m.interval, m.nextIn()))

	var body string
	if len(m.reports) == 0 {
		body = styles.Faint.Render("  waiting for the first cleanup cycle...")
	} else {
		body = lipgloss.NewStyle().Padding(0, 1).Render(m.table.View())
	}

	info := ""
	if m.infoOpen {
		info = styles.Box.Width(m.width - 2).Render(m.infoVP.View())
	}

	footer := styles.Footer.Render("↑/↓ move • [Tab] cycles/pods • [i] details • [PgUp/PgDn] scroll • [q] quit")
	return lipgloss.JoinVertical(lipgloss.Left, head, body, info, footer)
}

func (m Model) nextIn() string {
	if len(m.reports) == 0 {
		return "running"
	}
	left := m.reports[0].EndedAt.Add(m.interval - m.reports[0].Duration()).Sub(m.now)
	if left <= 0 {
		return "due"
	}
	return left.Round(time.Second).String()
}

func (m Model) renderInfo() string {
	r, ok := m.selected()
	if !ok {
		return "No cycles yet"
	}

	if m.view == ViewPods {
		prs := m.podRows()
		if len(prs) == 0 {
			return "No unhealthy pods in the latest cycle"
		}
		i := m.table.Cursor()
		if i < 0 || i >= len(prs) {
			i = 0
		}
		p := prs[i].rec
		return fmt.Sprintf("Pod: %s  phase: %s  created: %s\nReasons: %s\nContainer: %s\n  %s\nPod status: %s\n  %s",
			p.Key(), p.Phase, p.CreatedAt.Format(time.RFC3339),
			strings.Join(p.Reasons, "; "),
			p.ContainerReason, p.ContainerMessage,
			p.Reason, p.Message)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Cycle %s  run #%d  %s → %s\n", r.ID, r.Run, r.StartedAt.Format("15:04:05"), r.EndedAt.Format("15:04:05"))
	fmt.Fprintf(&b, "Namespaces: %s\n", strings.Join(r.NamespacesScanned, ", "))
	if len(r.NamespacesFailed) > 0 {
		b.WriteString(styles.Warn.Render("Skipped: "+strings.Join(r.NamespacesFailed, ", ")) + "\n")
	}
	if r.Budget != nil {
		fmt.Fprintf(&b, "Budget: wait %s, check every %s\n", r.Budget.MaxWait, r.Budget.CheckInterval)
	}
	for _, rr := range r.Restarts {
		line := fmt.Sprintf("  %-7s %s/%s", rr.Status, rr.Namespace, rr.Name)
		if rr.Error != "" {
			line += "  " + rr.Error
		}
		if rr.Status == domain.RestartFailed {
			line = styles.Danger.Render(line)
		}
		b.WriteString(line + "\n")
	}
	if r.NeedsAlert() {
		b.WriteString(styles.Danger.Render(fmt.Sprintf("%d pods still unhealthy after %s", len(r.Recovery.StillUnhealthy), r.Recovery.Waited.Round(time.Second))))
	}
	return strings.TrimRight(b.String(), "\n")
}

func recoveryLabel(r domain.CycleReport) string {
	switch {
	case r.Recovery == nil:
		return "skipped"
	case r.Recovery.AllRecovered:
		return fmt.Sprintf("ok in %d", r.Recovery.Scans)
	default:
		return fmt.Sprintf("%d stuck", len(r.Recovery.StillUnhealthy))
	}
}

func (s podState) String() string {
	switch s {
	case podDeleteFailed:
		return "delete failed"
	case podStuck:
		return "still unhealthy"
	default:
		return "restarted"
	}
}
