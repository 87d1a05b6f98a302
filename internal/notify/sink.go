package notify

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/HaPhanBaoMinh/podcleaner/internal/domain"
)

// Log writes rendered messages to a zap logger. Used when Bark is disabled so
// alerts still surface somewhere.
type Log struct {
	log *zap.Logger
}

func NewLog(log *zap.Logger) *Log {
	if log == nil {
		log = zap.NewNop()
	}
	return &Log{log: log}
}

func (l *Log) Notify(_ context.Context, r domain.CycleReport) error {
	for _, m := range Messages(r) {
		lvl := zap.InfoLevel
		if m.Level == "timeSensitive" {
			lvl = zap.WarnLevel
		}
		l.log.Check(lvl, m.Title).Write(zap.String("cycle_id", r.ID), zap.String("body", m.Body))
	}
	return nil
}

// Multi fans a report out to every sink. Disabled sinks are skipped silently.
type Multi []domain.Notifier

func (m Multi) Notify(ctx context.Context, r domain.CycleReport) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, r); err != nil && !errors.Is(err, domain.ErrNotifyDisabled) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Func adapts a plain function to domain.Notifier.
type Func func(ctx context.Context, r domain.CycleReport) error

func (f Func) Notify(ctx context.Context, r domain.CycleReport) error { return f(ctx, r) }
