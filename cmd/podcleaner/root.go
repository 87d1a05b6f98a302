package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/HaPhanBaoMinh/podcleaner/help"
	"github.com/HaPhanBaoMinh/podcleaner/internal/cleaner"
	"github.com/HaPhanBaoMinh/podcleaner/internal/config"
	"github.com/HaPhanBaoMinh/podcleaner/internal/domain"
	"github.com/HaPhanBaoMinh/podcleaner/internal/health"
	kk "github.com/HaPhanBaoMinh/podcleaner/internal/infrastructure/k8s"
	"github.com/HaPhanBaoMinh/podcleaner/internal/infrastructure/mock"
	"github.com/HaPhanBaoMinh/podcleaner/internal/logging"
	"github.com/HaPhanBaoMinh/podcleaner/internal/recovery"
)

var (
	version = "dev"
	commit  = "none"
)

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	configFile string
	useMock    bool
	v          *viper.Viper
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{v: viper.New()}

	cmd := &cobra.Command{
		Use:   "podcleaner",
		Short: "Restart unhealthy pods and verify they recover",
		Long: `podcleaner periodically scans every namespace, deletes pods that are
crash-looping, stuck pulling images or otherwise broken so their controllers
recreate them, then watches for recovery and alerts on pods that stay broken.`,
		SilenceUsage: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configFile, "config", "", "path to a YAML config file")
	pf.String("kubeconfig", help.DefaultKubeconfig(), "path to kubeconfig (ignored in-cluster)")
	pf.String("context", "", "kube context")
	pf.String("log-level", "info", "debug|info|warn|error")
	pf.BoolVar(&opts.useMock, "mock", false, "use an in-memory demo cluster")
	_ = opts.v.BindPFlag("kubeconfig", pf.Lookup("kubeconfig"))
	_ = opts.v.BindPFlag("context", pf.Lookup("context"))
	_ = opts.v.BindPFlag("log.level", pf.Lookup("log-level"))

	cmd.AddCommand(newRunCmd(opts), newOnceCmd(opts), newCheckCmd(opts), newVersionCmd())
	return cmd
}

func (o *rootOptions) load() (*config.Config, error) {
	cfg, err := config.Load(o.v, o.configFile)
	if err != nil {
		return nil, err
	}
	if o.useMock {
		// demo runs should not need a Bark device key
		if cfg.Bark.BaseURL == "" {
			cfg.Bark.Enabled = false
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// cluster is the wiring shared by run, once and check.
type cluster struct {
	orch   *cleaner.Orchestrator
	source string
}

func (o *rootOptions) connect(cfg *config.Config, log *zap.Logger) (*cluster, error) {
	var (
		repo   domain.PodRepo
		usage  domain.UsageRepo
		source string
	)
	if o.useMock {
		r := mock.NewDemo()
		repo, usage, source = r, r, "mock"
	} else {
		r, err := kk.New(cfg.Kubeconfig, cfg.Context, kk.WithPageSize(cfg.ListPageSize))
		if err != nil {
			return nil, err
		}
		repo, usage, source = r, r, "cluster"
		if cfg.Context != "" {
			source = cfg.Context
		}
	}

	orch := cleaner.New(repo,
		health.NewClassifier(cfg.Phases()...),
		recovery.NewPoller(nil, log),
		cfg.CleanerOptions(),
		log,
	).WithUsage(usage)

	log.Info("connected", zap.String("source", source), zap.Strings("excluded_namespaces", cfg.ExcludedNamespaces))
	return &cluster{orch: orch, source: source}, nil
}

func newLogger(cfg *config.Config, file string) (*zap.Logger, error) {
	if file == "" {
		file = cfg.Log.File
	}
	return logging.New(cfg.Log.Level, cfg.Log.Format, file)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "podcleaner %s (%s)\n", version, commit)
		},
	}
}
