package cleaner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/HaPhanBaoMinh/podcleaner/internal/domain"
	"github.com/HaPhanBaoMinh/podcleaner/internal/infrastructure/mock"
)

type recordingNotifier struct {
	reports []domain.CycleReport
	err     error
}

func (n *recordingNotifier) Notify(_ context.Context, r domain.CycleReport) error {
	n.reports = append(n.reports, r)
	return n.err
}

func TestLoopOnceNotifies(t *testing.T) {
	repo := mock.NewDemo()
	o, _ := newOrchestrator(t, repo)
	n := &recordingNotifier{err: errors.New("bark down")}
	l := NewLoop(o, n, time.Minute, nil, zaptest.NewLogger(t))

	report := l.Once(context.Background(), 7)

	require.Len(t, n.reports, 1)
	assert.Equal(t, report.ID, n.reports[0].ID)
	assert.Equal(t, 7, report.Run)
	assert.Equal(t, []string{"default", "staging"}, report.NamespacesScanned)
	assert.Equal(t, 3, report.Succeeded)
	require.NotNil(t, report.Recovery)
	assert.True(t, report.NeedsAlert(), "cart is stubborn")
}

func TestLoopRunStopsBetweenCycles(t *testing.T) {
	repo := mock.New()
	repo.AddPod(mock.Pod("default", "api-1", domain.PhaseRunning, domain.Running()), "api")
	o, _ := newOrchestrator(t, repo)
	n := &recordingNotifier{}
	l := NewLoop(o, n, time.Hour, nil, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, l.Run(ctx))
	require.Len(t, n.reports, 1, "the cycle in flight completes")
	assert.Equal(t, 1, n.reports[0].Run)
}

// slowNotifier spends cost on the loop clock per report, like a Bark call
// that retries, and cancels the loop once it has seen stopAfter reports.
type slowNotifier struct {
	mu        sync.Mutex
	clk       *testingclock.FakeClock
	cost      time.Duration
	stopAfter int
	cancel    context.CancelFunc
	reports   []domain.CycleReport
}

func (n *slowNotifier) Notify(_ context.Context, r domain.CycleReport) error {
	n.clk.Step(n.cost)
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reports = append(n.reports, r)
	if len(n.reports) == n.stopAfter {
		n.cancel()
	}
	return nil
}

func (n *slowNotifier) seen() []domain.CycleReport {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.CycleReport(nil), n.reports...)
}

func healthyLoop(t *testing.T, interval, notifyCost time.Duration) (*Loop, *slowNotifier, *testingclock.FakeClock, context.Context) {
	t.Helper()
	repo := mock.New()
	repo.AddPod(mock.Pod("default", "api-1", domain.PhaseRunning, domain.Running()), "api")
	o, clk := newOrchestrator(t, repo)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	n := &slowNotifier{clk: clk, cost: notifyCost, stopAfter: 2, cancel: cancel}
	return NewLoop(o, n, interval, clk, zaptest.NewLogger(t)), n, clk, ctx
}

func TestLoopRunWaitsOutTheInterval(t *testing.T) {
	l, n, clk, ctx := healthyLoop(t, 10*time.Minute, 3*time.Minute)

	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	require.Eventually(t, clk.HasWaiters, 5*time.Second, time.Millisecond)
	require.Len(t, n.seen(), 1)

	// the three minutes spent notifying count against the interval
	clk.Step(7*time.Minute - time.Second)
	assert.True(t, clk.HasWaiters(), "woke up before the interval elapsed")
	clk.Step(time.Second)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop after the second run")
	}

	reports := n.seen()
	require.Len(t, reports, 2)
	assert.Equal(t, 1, reports[0].Run)
	assert.Equal(t, 2, reports[1].Run)
	assert.NotEqual(t, reports[0].ID, reports[1].ID)
	assert.Equal(t, reports[0].StartedAt.Add(10*time.Minute), reports[1].StartedAt)
}

func TestLoopRunSkipsWaitWhenCycleOverruns(t *testing.T) {
	l, n, clk, ctx := healthyLoop(t, time.Minute, 2*time.Minute)

	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("loop waited although the interval was already spent")
	}

	reports := n.seen()
	require.Len(t, reports, 2)
	assert.Equal(t, []int{1, 2}, []int{reports[0].Run, reports[1].Run})
	assert.Equal(t, reports[0].StartedAt.Add(2*time.Minute), reports[1].StartedAt, "second run starts as soon as the first one is done")
	assert.False(t, clk.HasWaiters())
}
