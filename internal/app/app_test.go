package app

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HaPhanBaoMinh/podcleaner/internal/domain"
)

func report(run int, unhealthy int, stuck ...domain.UnhealthyPodRecord) domain.CycleReport {
	start := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC).Add(time.Duration(run) * 10 * time.Minute)
	r := domain.CycleReport{
		ID:                "cycle-" + string(rune('a'+run)),
		Run:               run,
		StartedAt:         start,
		EndedAt:           start.Add(95 * time.Second),
		NamespacesScanned: []string{"default", "staging"},
		PodsScanned:       10,
	}
	for i := 0; i < unhealthy; i++ {
		name := []string{"api-1", "worker-2", "cart-3"}[i%3]
		r.Unhealthy = append(r.Unhealthy, domain.UnhealthyPodRecord{Namespace: "default", Name: name, Phase: domain.PhaseRunning, ContainerReason: "CrashLoopBackOff"})
		r.Restarts = append(r.Restarts, domain.RestartResult{Namespace: "default", Name: name, Status: domain.RestartSucceeded})
		r.Succeeded++
	}
	if r.Succeeded > 0 {
		r.Recovery = &domain.RecoveryOutcome{AllRecovered: len(stuck) == 0, StillUnhealthy: append([]domain.UnhealthyPodRecord{}, stuck...), Scans: 2}
	}
	return r
}

func update(t *testing.T, m Model, msgs ...tea.Msg) Model {
	t.Helper()
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		var ok bool
		m, ok = next.(Model)
		require.True(t, ok)
	}
	return m
}

func TestWaitingForFirstCycle(t *testing.T) {
	m := update(t, New(nil, 10*time.Minute, "mock"), tea.WindowSizeMsg{Width: 140, Height: 40})

	v := m.View()
	assert.Contains(t, v, "waiting for the first cleanup cycle")
	assert.Contains(t, v, "source: mock")
	assert.Contains(t, v, "next: running")
}

func TestReportsNewestFirst(t *testing.T) {
	m := update(t, New(nil, 10*time.Minute, "mock"),
		tea.WindowSizeMsg{Width: 160, Height: 40},
		reportMsg(report(1, 1)),
		reportMsg(report(2, 3, domain.UnhealthyPodRecord{Namespace: "default", Name: "cart-9", Phase: domain.PhaseRunning, ContainerReason: "OOMKilled"})),
	)

	require.Len(t, m.reports, 2)
	assert.Equal(t, 2, m.reports[0].Run)

	rows := m.table.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, "#2", rows[0][0])
	assert.Equal(t, "3", rows[0][5])
	assert.Equal(t, "3/0", rows[0][7])
	assert.Equal(t, "1 stuck", rows[0][8])
	assert.Equal(t, "ok in 2", rows[1][8])
	assert.Contains(t, m.View(), "#2")
}

func TestPodsView(t *testing.T) {
	stuck := domain.UnhealthyPodRecord{Namespace: "default", Name: "cart-9", Phase: domain.PhaseRunning, ContainerReason: "OOMKilled", Usage: &domain.PodUsage{CPUm: 120, MemBytes: 256 << 20}}
	r := report(1, 3, stuck)
	r.Restarts[1].Status, r.Restarts[1].Error = domain.RestartFailed, "forbidden"
	r.Succeeded, r.Failed = 2, 1

	m := update(t, New(nil, time.Minute, "cluster"),
		tea.WindowSizeMsg{Width: 160, Height: 40},
		reportMsg(r),
		tea.KeyMsg{Type: tea.KeyTab},
	)
	assert.Equal(t, ViewPods, m.view)

	rows := m.table.Rows()
	require.Len(t, rows, 4)
	assert.Equal(t, "default/api-1", rows[0][0])
	assert.Equal(t, "restarted", rows[0][4])
	assert.Equal(t, "delete failed", rows[1][4])
	assert.Equal(t, "default/cart-9", rows[3][0])
	assert.Equal(t, "still unhealthy", rows[3][4])
	assert.Equal(t, " 120m", rows[3][5])
	assert.Equal(t, "-", rows[0][5])
}

func TestInfoPane(t *testing.T) {
	r := report(4, 1, domain.UnhealthyPodRecord{Namespace: "default", Name: "api-7", Phase: domain.PhaseRunning})
	r.Budget = &domain.PollBudget{MaxWait: 5 * time.Minute, CheckInterval: 15 * time.Second}
	r.Recovery.Waited = 5 * time.Minute

	m := update(t, New(nil, time.Minute, "mock"),
		tea.WindowSizeMsg{Width: 160, Height: 40},
		reportMsg(r),
	)
	info := m.renderInfo()
	assert.Contains(t, info, "run #4")
	assert.Contains(t, info, "Budget: wait 5m0s, check every 15s")
	assert.Contains(t, info, "1 pods still unhealthy after 5m0s")

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("i")})
	m = next.(Model)
	assert.True(t, m.infoOpen)
	require.NotNil(t, cmd)
	m = update(t, m, cmd())
	assert.Contains(t, m.View(), "Namespaces: default, staging")
}

func TestNextIn(t *testing.T) {
	r := report(1, 0)
	m := update(t, New(nil, 10*time.Minute, "mock"), reportMsg(r), tickMsg(r.EndedAt.Add(time.Minute)))
	// 95s cycle + 60s since = 7m25s until the next start
	assert.Equal(t, "7m25s", m.nextIn())

	m = update(t, m, tickMsg(r.StartedAt.Add(11*time.Minute)))
	assert.Equal(t, "due", m.nextIn())
}

func TestQuitCancelsLoop(t *testing.T) {
	cancelled := false
	m := New(func() { cancelled = true }, time.Minute, "mock")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	assert.True(t, cancelled)
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestSink(t *testing.T) {
	var got []tea.Msg
	s := &Sink{send: func(msg tea.Msg) { got = append(got, msg) }}

	require.NoError(t, s.Notify(context.Background(), domain.CycleReport{ID: "x"}))
	require.Len(t, got, 1)
	assert.Equal(t, "x", domain.CycleReport(got[0].(reportMsg)).ID)

	m := update(t, New(nil, time.Minute, "mock"), tea.WindowSizeMsg{Width: 120, Height: 30}, got[0])
	assert.Contains(t, m.View(), "#0")
}

func TestUnhealthyTrend(t *testing.T) {
	reports := []domain.CycleReport{
		{PodsScanned: 10, Unhealthy: make([]domain.UnhealthyPodRecord, 5)},
		{PodsScanned: 10, Unhealthy: make([]domain.UnhealthyPodRecord, 1)},
		{},
	}
	assert.Equal(t, []float64{0, 0.1, 0.5}, unhealthyTrend(reports))
}
