package k8s

import (
	"context"
	"fmt"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	metricsclient "k8s.io/metrics/pkg/client/clientset/versioned"

	"github.com/HaPhanBaoMinh/podcleaner/internal/domain"
)

const (
	DefaultPageSize = 500
	DefaultTimeout  = 30 * time.Second
)

type Repo struct {
	core    kubernetes.Interface
	metrics metricsclient.Interface // nil when metrics.k8s.io is not wanted

	pageSize int64
	timeout  time.Duration
}

type Option func(*Repo)

func WithPageSize(n int64) Option {
	return func(r *Repo) {
		if n > 0 {
			r.pageSize = n
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(r *Repo) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// Client constructors, swapped in tests.
var (
	newCoreClient = func(c *rest.Config) (kubernetes.Interface, error) {
		return kubernetes.NewForConfig(c)
	}
	newMetricsClient = func(c *rest.Config) (metricsclient.Interface, error) {
		return metricsclient.NewForConfig(c)
	}
)

// New connects using the in-cluster config, falling back to kubeconfig.
// Failing both is fatal for the caller.
func New(kubeconfigPath, contextName string, opts ...Option) (*Repo, error) {
	cfg, err := loadRESTConfig(kubeconfigPath, contextName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrNoClusterAccess, err)
	}
	return newForConfig(cfg, opts...)
}

// newForConfig builds both clientsets; any failure means the cluster is
// unusable.
func newForConfig(cfg *rest.Config, opts ...Option) (*Repo, error) {
	cfg.QPS = 30
	cfg.Burst = 60
	core, err := newCoreClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrNoClusterAccess, err)
	}
	m, err := newMetricsClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: metrics client: %v", domain.ErrNoClusterAccess, err)
	}
	return NewFromClients(core, m, opts...), nil
}

func NewFromClients(core kubernetes.Interface, metrics metricsclient.Interface, opts ...Option) *Repo {
	r := &Repo{core: core, metrics: metrics, pageSize: DefaultPageSize, timeout: DefaultTimeout}
	for _, o := range opts {
		o(r)
	}
	return r
}

func loadRESTConfig(kubeconfigPath, contextName string) (*rest.Config, error) {
	if cfg, err := rest.InClusterConfig(); err == nil {
		return cfg, nil
	}
	loadingRules := &clientcmd.ClientConfigLoadingRules{ExplicitPath: kubeconfigPath}
	overrides := &clientcmd.ConfigOverrides{}
	if contextName != "" {
		overrides.CurrentContext = contextName
	}
	return clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, overrides).ClientConfig()
}

// -------- PodRepo --------

func (r *Repo) ListNamespaces(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	list, err := r.core.CoreV1().Namespaces().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(list.Items))
	for _, ns := range list.Items {
		out = append(out, ns.Name)
	}
	return out, nil
}

// ListPods walks every page of the namespace's pod list.
func (r *Repo) ListPods(ctx context.Context, ns string) ([]domain.PodSnapshot, error) {
	var out []domain.PodSnapshot
	opts := metav1.ListOptions{Limit: r.pageSize}
	for {
		page, err := r.listPage(ctx, ns, opts)
		if err != nil {
			return nil, err
		}
		for i := range page.Items {
			out = append(out, snapshot(&page.Items[i]))
		}
		if page.Continue == "" {
			return out, nil
		}
		opts.Continue = page.Continue
	}
}

func (r *Repo) listPage(ctx context.Context, ns string, opts metav1.ListOptions) (*corev1.PodList, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.core.CoreV1().Pods(ns).List(ctx, opts)
}

// DeletePod removes the pod immediately so its controller recreates it.
func (r *Repo) DeletePod(ctx context.Context, ns, name string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	grace := int64(0)
	err := r.core.CoreV1().Pods(ns).Delete(ctx, name, metav1.DeleteOptions{GracePeriodSeconds: &grace})
	if apierrors.IsNotFound(err) {
		return nil
	}
	return err
}

// -------- UsageRepo --------

func (r *Repo) PodUsage(ctx context.Context, ns, name string) (domain.PodUsage, error) {
	if r.metrics == nil {
		return domain.PodUsage{}, fmt.Errorf("metrics-server not available")
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	pm, err := r.metrics.MetricsV1beta1().PodMetricses(ns).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return domain.PodUsage{}, fmt.Errorf("metrics-server error: %w", err)
	}
	var u domain.PodUsage
	for _, c := range pm.Containers {
		if q, ok := c.Usage[corev1.ResourceCPU]; ok {
			u.CPUm += q.MilliValue()
		}
		if q, ok := c.Usage[corev1.ResourceMemory]; ok {
			u.MemBytes += q.Value()
		}
	}
	return u, nil
}

func snapshot(p *corev1.Pod) domain.PodSnapshot {
	s := domain.PodSnapshot{
		Namespace: p.Namespace,
		Name:      p.Name,
		Phase:     domain.Phase(p.Status.Phase),
		Reason:    p.Status.Reason,
		Message:   p.Status.Message,
		CreatedAt: p.CreationTimestamp.Time,
	}
	if s.Phase == "" {
		s.Phase = domain.PhaseUnknown
	}
	for _, cs := range p.Status.ContainerStatuses {
		s.Containers = append(s.Containers, domain.ContainerStatus{
			Name:         cs.Name,
			RestartCount: cs.RestartCount,
			State:        containerState(cs.State),
		})
	}
	return s
}

func containerState(st corev1.ContainerState) domain.ContainerState {
	switch {
	case st.Waiting != nil:
		return domain.Waiting(st.Waiting.Reason, st.Waiting.Message)
	case st.Terminated != nil:
		return domain.Terminated(st.Terminated.ExitCode, st.Terminated.Reason, st.Terminated.Message)
	default:
		return domain.Running()
	}
}
