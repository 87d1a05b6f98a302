package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/HaPhanBaoMinh/podcleaner/internal/app"
	"github.com/HaPhanBaoMinh/podcleaner/internal/cleaner"
	"github.com/HaPhanBaoMinh/podcleaner/internal/config"
	"github.com/HaPhanBaoMinh/podcleaner/internal/domain"
	"github.com/HaPhanBaoMinh/podcleaner/internal/metrics"
	"github.com/HaPhanBaoMinh/podcleaner/internal/notify"
	"github.com/HaPhanBaoMinh/podcleaner/internal/server"
)

var errRecoveryFailed = errors.New("pods still unhealthy after recovery window")

func newRunCmd(opts *rootOptions) *cobra.Command {
	var (
		tui     bool
		logFile string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run cleanup cycles until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if !tui {
				logFile = ""
			}
			log, err := newLogger(cfg, logFile)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			cl, err := opts.connect(cfg, log)
			if err != nil {
				log.Error("could not connect to Kubernetes cluster", zap.Error(err))
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			status := server.NewStatus()
			recorder := metrics.NewRecorder()
			sinks := notify.Multi{status, recorder, alertSink(cfg, log)}

			if cfg.Server.Addr != "" {
				srv := server.New(cfg.Server.Addr, status, recorder.Registry(), log)
				go func() {
					if err := srv.Run(ctx); err != nil {
						log.Error("status server stopped", zap.Error(err))
					}
				}()
			}

			log.Info("pod cleaner started",
				zap.Duration("run_interval", cfg.RunInterval),
				zap.Bool("bark_enabled", cfg.Bark.Enabled),
				zap.Bool("tui", tui))

			if !tui {
				return cleaner.NewLoop(cl.orch, sinks, cfg.RunInterval, nil, log).Run(ctx)
			}
			return runTUI(ctx, cl, sinks, cfg, log)
		},
	}
	cmd.Flags().BoolVar(&tui, "tui", false, "show a live dashboard")
	cmd.Flags().StringVar(&logFile, "log-file", "podcleaner.log", "log destination while the dashboard owns the terminal")
	return cmd
}

// runTUI drives the loop behind the dashboard. Quitting the dashboard stops
// scheduling; a cycle in flight still completes.
func runTUI(ctx context.Context, cl *cluster, sinks notify.Multi, cfg *config.Config, log *zap.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(app.New(cancel, cfg.RunInterval, cl.source), tea.WithAltScreen())
	loop := cleaner.NewLoop(cl.orch, append(sinks, app.NewSink(p)), cfg.RunInterval, nil, log)

	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()
	go func() {
		<-ctx.Done()
		p.Quit()
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		return fmt.Errorf("dashboard: %w", err)
	}
	cancel()
	fmt.Fprintln(os.Stderr, "waiting for the current cycle to finish...")
	return <-done
}

func newOnceCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Run a single cleanup cycle; exit non-zero if pods stay unhealthy",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			log, err := newLogger(cfg, "")
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			cl, err := opts.connect(cfg, log)
			if err != nil {
				log.Error("could not connect to Kubernetes cluster", zap.Error(err))
				return err
			}

			report := cleaner.NewLoop(cl.orch, alertSink(cfg, log), cfg.RunInterval, nil, log).Once(cmd.Context(), 1)
			fmt.Fprintf(cmd.OutOrStdout(), "unhealthy=%d restarted=%d failed=%d\n", len(report.Unhealthy), report.Succeeded, report.Failed)
			if report.NeedsAlert() {
				return fmt.Errorf("%w: %d pods", errRecoveryFailed, len(report.Recovery.StillUnhealthy))
			}
			return nil
		},
	}
}

// alertSink delivers to Bark when configured, otherwise into the log.
func alertSink(cfg *config.Config, log *zap.Logger) domain.Notifier {
	if !cfg.Bark.Enabled {
		return notify.NewLog(log)
	}
	return notify.NewBark(cfg.Bark.PushURL(), true, cfg.Bark.Timeout, cfg.Bark.MaxRetries, log)
}
