// Package cleaner finds unhealthy pods, deletes them and waits for the
// controllers to bring them back.
package cleaner

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/utils/clock"

	"github.com/HaPhanBaoMinh/podcleaner/internal/domain"
	"github.com/HaPhanBaoMinh/podcleaner/internal/health"
	"github.com/HaPhanBaoMinh/podcleaner/internal/recovery"
)

// DefaultExcludedNamespaces holds the control-plane namespace.
var DefaultExcludedNamespaces = []string{"kube-system"}

type Options struct {
	ExcludedNamespaces []string
	Tiers              Tiers
}

// PodFinding is one classified pod.
type PodFinding struct {
	Pod     domain.PodSnapshot
	Verdict domain.HealthVerdict
}

type ScanResult struct {
	Pods             []PodFinding
	Unhealthy        []domain.UnhealthyPodRecord
	FailedNamespaces []string
}

type Orchestrator struct {
	repo       domain.PodRepo
	usage      domain.UsageRepo
	classifier *health.Classifier
	poller     *recovery.Poller
	excluded   sets.Set[string]
	tiers      Tiers
	clock      clock.PassiveClock
	log        *zap.Logger
}

func New(repo domain.PodRepo, classifier *health.Classifier, poller *recovery.Poller, opts Options, log *zap.Logger) *Orchestrator {
	if opts.ExcludedNamespaces == nil {
		opts.ExcludedNamespaces = DefaultExcludedNamespaces
	}
	if len(opts.Tiers) == 0 {
		opts.Tiers = DefaultTiers()
	}
	if classifier == nil {
		classifier = health.NewClassifier()
	}
	if log == nil {
		log = zap.NewNop()
	}
	if poller == nil {
		poller = recovery.NewPoller(clock.RealClock{}, log)
	}
	return &Orchestrator{
		repo:       repo,
		classifier: classifier,
		poller:     poller,
		excluded:   sets.New(opts.ExcludedNamespaces...),
		tiers:      opts.Tiers,
		clock:      clock.RealClock{},
		log:        log,
	}
}

// WithUsage attaches live usage to pods that fail to recover.
func (o *Orchestrator) WithUsage(u domain.UsageRepo) *Orchestrator {
	o.usage = u
	return o
}

func (o *Orchestrator) WithClock(c clock.PassiveClock) *Orchestrator {
	o.clock = c
	return o
}

func (o *Orchestrator) Excluded(ns string) bool { return o.excluded.Has(ns) }

// ListNamespaces returns the namespaces a cycle may touch. A listing error
// yields zero namespaces for this cycle.
func (o *Orchestrator) ListNamespaces(ctx context.Context) []string {
	all, err := o.repo.ListNamespaces(ctx)
	if err != nil {
		o.log.Warn("failed to list namespaces", zap.Error(err))
		return nil
	}
	return o.filter(all)
}

func (o *Orchestrator) filter(namespaces []string) []string {
	out := make([]string, 0, len(namespaces))
	for _, ns := range namespaces {
		if !o.Excluded(ns) {
			out = append(out, ns)
		}
	}
	return out
}

// Scan classifies every pod in namespaces, in namespace then discovery order.
func (o *Orchestrator) Scan(ctx context.Context, namespaces []string) ScanResult {
	var res ScanResult
	for _, ns := range o.filter(namespaces) {
		pods, err := o.repo.ListPods(ctx, ns)
		if err != nil {
			o.log.Warn("failed to list pods, skipping namespace", zap.String("namespace", ns), zap.Error(err))
			res.FailedNamespaces = append(res.FailedNamespaces, ns)
			continue
		}
		for _, p := range pods {
			v := o.classifier.Classify(p)
			res.Pods = append(res.Pods, PodFinding{Pod: p, Verdict: v})
			if v.Healthy {
				continue
			}
			o.log.Info("found unhealthy pod",
				zap.String("namespace", ns),
				zap.String("pod", p.Name),
				zap.String("phase", string(p.Phase)),
				zap.Strings("reasons", v.Reasons),
			)
			res.Unhealthy = append(res.Unhealthy, health.Record(p, v))
		}
	}
	return res
}

// RunCycle performs one classify, delete and verify pass over namespaces.
func (o *Orchestrator) RunCycle(ctx context.Context, run int, namespaces []string) domain.CycleReport {
	namespaces = o.filter(namespaces)
	report := domain.CycleReport{
		ID:                uuid.NewString(),
		Run:               run,
		StartedAt:         o.clock.Now(),
		NamespacesScanned: namespaces,
		Restarts:          []domain.RestartResult{},
	}
	log := o.log.With(zap.Int("run", run), zap.String("cycle_id", report.ID))

	scan := o.Scan(ctx, namespaces)
	report.PodsScanned = len(scan.Pods)
	report.NamespacesFailed = scan.FailedNamespaces
	report.Unhealthy = scan.Unhealthy
	if report.Unhealthy == nil {
		report.Unhealthy = []domain.UnhealthyPodRecord{}
	}
	log.Info("scan complete",
		zap.Int("namespaces", len(namespaces)),
		zap.Int("pods", report.PodsScanned),
		zap.Int("unhealthy", len(report.Unhealthy)),
	)

	for _, rec := range report.Unhealthy {
		rr := domain.RestartResult{Namespace: rec.Namespace, Name: rec.Name, Phase: rec.Phase, Status: domain.RestartSucceeded}
		if err := o.repo.DeletePod(ctx, rec.Namespace, rec.Name); err != nil {
			log.Warn("failed to delete pod", zap.String("namespace", rec.Namespace), zap.String("pod", rec.Name), zap.Error(err))
			rr.Status, rr.Error = domain.RestartFailed, err.Error()
			report.Failed++
		} else {
			log.Info("deleted pod", zap.String("namespace", rec.Namespace), zap.String("pod", rec.Name))
			report.Succeeded++
		}
		report.Restarts = append(report.Restarts, rr)
	}

	if report.Succeeded > 0 {
		tier := o.tiers.Select(len(namespaces))
		budget := tier.Budget()
		report.Budget = &budget
		log.Info("waiting for recovery",
			zap.String("tier", tier.Name),
			zap.Duration("max_wait", budget.MaxWait),
			zap.Duration("check_interval", budget.CheckInterval),
		)
		out := o.poller.Poll(ctx, func(ctx context.Context) []domain.UnhealthyPodRecord {
			return o.Scan(ctx, namespaces).Unhealthy
		}, budget)
		o.attachUsage(ctx, out.StillUnhealthy)
		report.Recovery = &out
	}

	report.EndedAt = o.clock.Now()
	return report
}

func (o *Orchestrator) attachUsage(ctx context.Context, recs []domain.UnhealthyPodRecord) {
	if o.usage == nil {
		return
	}
	for i := range recs {
		u, err := o.usage.PodUsage(ctx, recs[i].Namespace, recs[i].Name)
		if err != nil {
			o.log.Debug("pod usage unavailable", zap.String("pod", recs[i].Key()), zap.Error(err))
			continue
		}
		recs[i].Usage = &u
	}
}
