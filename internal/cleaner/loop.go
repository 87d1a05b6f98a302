package cleaner

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"k8s.io/utils/clock"

	"github.com/HaPhanBaoMinh/podcleaner/internal/domain"
)

// Loop runs cleanup cycles on a fixed schedule.
type Loop struct {
	orch     *Orchestrator
	notifier domain.Notifier
	interval time.Duration
	clock    clock.Clock
	log      *zap.Logger
}

func NewLoop(orch *Orchestrator, notifier domain.Notifier, interval time.Duration, clk clock.Clock, log *zap.Logger) *Loop {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Loop{orch: orch, notifier: notifier, interval: interval, clock: clk, log: log}
}

// Run blocks until ctx is done. Cancellation is only observed between
// cycles; a cycle in flight always finishes. The next cycle starts
// interval after the previous one started, notification time included,
// or right away when the previous one overran.
func (l *Loop) Run(ctx context.Context) error {
	for run := 1; ; run++ {
		start := l.clock.Now()
		l.Once(context.WithoutCancel(ctx), run)

		wait := l.interval - l.clock.Since(start)
		if wait < 0 {
			wait = 0
		}
		if ctx.Err() != nil {
			return nil
		}
		l.log.Info("waiting for next run", zap.Duration("interval", l.interval), zap.Duration("sleep", wait))
		if wait == 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case <-l.clock.After(wait):
		}
	}
}

// Once runs a single cycle and hands the report to the notifier.
func (l *Loop) Once(ctx context.Context, run int) domain.CycleReport {
	l.log.Info("starting run", zap.Int("run", run))

	namespaces := l.orch.ListNamespaces(ctx)
	report := l.orch.RunCycle(ctx, run, namespaces)

	if l.notifier != nil {
		if err := l.notifier.Notify(ctx, report); err != nil && !errors.Is(err, domain.ErrNotifyDisabled) {
			l.log.Warn("notification failed", zap.Int("run", run), zap.Error(err))
		}
	}

	fields := []zap.Field{
		zap.Int("run_count", run),
		zap.String("cycle_id", report.ID),
		zap.Time("start_time", report.StartedAt),
		zap.Time("end_time", report.EndedAt),
		zap.Float64("duration_seconds", report.Duration().Seconds()),
		zap.Int("unhealthy_pods_count", len(report.Unhealthy)),
		zap.Int("restart_success", report.Succeeded),
		zap.Int("restart_failed", report.Failed),
	}
	if report.Recovery != nil {
		fields = append(fields, zap.Bool("all_recovered", report.Recovery.AllRecovered))
	}
	l.log.Info("run complete", fields...)
	return report
}
