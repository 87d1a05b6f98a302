package app

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/HaPhanBaoMinh/podcleaner/internal/domain"
)

// Sink forwards cycle reports into a running bubbletea program.
type Sink struct {
	send func(tea.Msg)
}

func NewSink(p *tea.Program) *Sink { return &Sink{send: p.Send} }

func (s *Sink) Notify(_ context.Context, r domain.CycleReport) error {
	s.send(reportMsg(r))
	return nil
}
