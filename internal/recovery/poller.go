// Package recovery verifies that restarted pods come back within a budget.
package recovery

import (
	"context"
	"time"

	"go.uber.org/zap"
	"k8s.io/utils/clock"

	"github.com/HaPhanBaoMinh/podcleaner/internal/domain"
)

// State of a recovery poll.
type State int

const (
	Checking State = iota
	Waiting
	Recovered
	Exhausted
)

func (s State) String() string {
	switch s {
	case Checking:
		return "checking"
	case Waiting:
		return "waiting"
	case Recovered:
		return "recovered"
	case Exhausted:
		return "exhausted"
	}
	return "unknown"
}

func (s State) Terminal() bool { return s == Recovered || s == Exhausted }

// ScanFunc reports the pods that are unhealthy right now.
type ScanFunc func(ctx context.Context) []domain.UnhealthyPodRecord

// BeforeScan is the transition taken on entry to Checking, before scanning.
// Once the budget is spent no further scan is issued.
func BeforeScan(elapsed time.Duration, b domain.PollBudget) State {
	if elapsed >= b.MaxWait {
		return Exhausted
	}
	return Checking
}

// AfterScan is the transition out of Checking. elapsed is the value measured
// before the scan was issued.
func AfterScan(elapsed time.Duration, b domain.PollBudget, unhealthy int) State {
	if unhealthy == 0 {
		return Recovered
	}
	if b.MaxWait-elapsed <= b.CheckInterval {
		return Exhausted
	}
	return Waiting
}

type Poller struct {
	clock clock.Clock
	log   *zap.Logger
}

func NewPoller(clk clock.Clock, log *zap.Logger) *Poller {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Poller{clock: clk, log: log}
}

// Poll scans until nothing is unhealthy or the budget runs out. The interval
// sleep is its only suspension point and it never sleeps after the scan that
// decides the result.
//
// When the deadline is already past on entry to Checking, the previous scan's
// result is reported without rescanning, so it may be up to one interval old.
func (p *Poller) Poll(ctx context.Context, scan ScanFunc, b domain.PollBudget) domain.RecoveryOutcome {
	start := p.clock.Now()
	var last []domain.UnhealthyPodRecord
	scans := 0

	for {
		elapsed := p.clock.Since(start)
		if BeforeScan(elapsed, b) == Exhausted {
			return p.finish(Exhausted, last, scans, start)
		}

		current := scan(ctx)
		scans++

		st := AfterScan(elapsed, b, len(current))
		p.log.Debug("recovery scan",
			zap.Int("scan", scans),
			zap.Int("unhealthy", len(current)),
			zap.Duration("elapsed", elapsed),
			zap.Stringer("next", st),
		)
		switch st {
		case Recovered:
			return p.finish(Recovered, nil, scans, start)
		case Exhausted:
			return p.finish(Exhausted, current, scans, start)
		}

		last = current
		p.clock.Sleep(b.CheckInterval)
	}
}

func (p *Poller) finish(st State, unhealthy []domain.UnhealthyPodRecord, scans int, start time.Time) domain.RecoveryOutcome {
	if unhealthy == nil {
		unhealthy = []domain.UnhealthyPodRecord{}
	}
	out := domain.RecoveryOutcome{
		StillUnhealthy: unhealthy,
		AllRecovered:   len(unhealthy) == 0,
		Scans:          scans,
		Waited:         p.clock.Since(start),
	}
	p.log.Info("recovery poll finished",
		zap.Stringer("state", st),
		zap.Int("scans", scans),
		zap.Int("still_unhealthy", len(unhealthy)),
		zap.Duration("waited", out.Waited),
	)
	return out
}
