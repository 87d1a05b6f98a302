package mock

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/HaPhanBaoMinh/podcleaner/internal/domain"
)

var podsResource = schema.GroupResource{Resource: "pods"}

// Repo is an in-memory cluster. Deleting a pod makes its "controller"
// recreate it under a new name, healthy unless the pod is marked stubborn.
type Repo struct {
	rnd *rand.Rand

	order     []string
	pods      map[string][]domain.PodSnapshot
	stubborn  map[string]bool // "ns/owner" -> recreated pods stay broken
	owners    map[string]string
	listErr   map[string]error
	deleteErr map[string]error

	Deleted []string // "ns/name" in deletion order
}

func New() *Repo {
	src := rand.NewSource(time.Now().UnixNano())
	return &Repo{
		rnd:       rand.New(src),
		pods:      map[string][]domain.PodSnapshot{},
		stubborn:  map[string]bool{},
		owners:    map[string]string{},
		listErr:   map[string]error{},
		deleteErr: map[string]error{},
	}
}

// NewDemo returns a small cluster with a few typical failures for --mock runs.
func NewDemo() *Repo {
	r := New()
	r.AddPod(pod("default", "api-7cfb9d9c9c-9tghd", domain.PhaseRunning, domain.Running()), "api")
	r.AddPod(pod("default", "api-7cfb9d9c9c-sj2lq", domain.PhaseRunning, domain.Waiting("CrashLoopBackOff", "back-off 5m0s restarting failed container")), "api")
	r.AddPod(pod("staging", "worker-5f7dcbffd6-2jqkz", domain.PhasePending, domain.Waiting("ImagePullBackOff", "Back-off pulling image \"ghcr.io/acme/worker:bad\"")), "worker")
	r.AddPod(pod("staging", "cart-6d79f8b5f7-m2x8l", domain.PhaseRunning, domain.Terminated(137, "OOMKilled", "")), "cart")
	r.AddPod(pod("staging", "migrate-28491-xk2f9", domain.PhaseSucceeded, domain.Terminated(0, "Completed", "")), "migrate")
	r.AddPod(pod("kube-system", "coredns-5d78c9869d-abcde", domain.PhaseFailed, domain.Terminated(1, "Error", "")), "coredns")
	r.SetStubborn("staging", "cart", true)
	return r
}

func pod(ns, name string, phase domain.Phase, states ...domain.ContainerState) domain.PodSnapshot {
	p := domain.PodSnapshot{Namespace: ns, Name: name, Phase: phase, CreatedAt: time.Now().Add(-time.Hour)}
	for i, s := range states {
		p.Containers = append(p.Containers, domain.ContainerStatus{Name: fmt.Sprintf("c%d", i), State: s})
		if !s.IsRunning() {
			p.Containers[i].RestartCount = 3
		}
	}
	return p
}

// Pod is exported for tests that build their own cluster.
func Pod(ns, name string, phase domain.Phase, states ...domain.ContainerState) domain.PodSnapshot {
	return pod(ns, name, phase, states...)
}

// AddPod registers p as managed by owner, which names recreated replicas.
func (r *Repo) AddPod(p domain.PodSnapshot, owner string) {
	if _, ok := r.pods[p.Namespace]; !ok {
		r.order = append(r.order, p.Namespace)
	}
	r.pods[p.Namespace] = append(r.pods[p.Namespace], p)
	r.owners[p.Key()] = owner
}

func (r *Repo) AddNamespace(ns string) {
	if _, ok := r.pods[ns]; !ok {
		r.order = append(r.order, ns)
		r.pods[ns] = nil
	}
}

func (r *Repo) SetStubborn(ns, owner string, v bool) { r.stubborn[ns+"/"+owner] = v }

// FailList makes listing ns fail; ns "" fails the namespace listing itself.
func (r *Repo) FailList(ns string, err error) { r.listErr[ns] = err }

func (r *Repo) FailDelete(ns, name string, err error) { r.deleteErr[ns+"/"+name] = err }

func (r *Repo) ListNamespaces(ctx context.Context) ([]string, error) {
	if err := r.listErr[""]; err != nil {
		return nil, err
	}
	out := append([]string(nil), r.order...)
	return out, nil
}

func (r *Repo) ListPods(ctx context.Context, ns string) ([]domain.PodSnapshot, error) {
	if err := r.listErr[ns]; err != nil {
		return nil, err
	}
	return append([]domain.PodSnapshot(nil), r.pods[ns]...), nil
}

func (r *Repo) DeletePod(ctx context.Context, ns, name string) error {
	key := ns + "/" + name
	if err := r.deleteErr[key]; err != nil {
		return err
	}
	pods := r.pods[ns]
	idx := -1
	for i, p := range pods {
		if p.Name == name {
			idx = i
			break
		}
	}
	r.Deleted = append(r.Deleted, key)
	if idx < 0 {
		// already gone counts as deleted
		return nil
	}

	old := pods[idx]
	owner := coalesce(r.owners[key], name)
	delete(r.owners, key)
	pods = append(pods[:idx], pods[idx+1:]...)

	fresh := domain.PodSnapshot{
		Namespace: ns,
		Name:      fmt.Sprintf("%s-%s", owner, r.suffix()),
		Phase:     domain.PhaseRunning,
		CreatedAt: time.Now(),
	}
	for _, c := range old.Containers {
		c.RestartCount = 0
		c.State = domain.Running()
		fresh.Containers = append(fresh.Containers, c)
	}
	if r.stubborn[ns+"/"+owner] {
		fresh.Containers = []domain.ContainerStatus{{Name: "c0", RestartCount: 1, State: domain.Waiting("CrashLoopBackOff", "back-off 10s restarting failed container")}}
	}
	r.pods[ns] = append(pods, fresh)
	r.owners[fresh.Key()] = owner
	return nil
}

// PodUsage fakes metrics-server numbers; unknown pods are NotFound.
func (r *Repo) PodUsage(ctx context.Context, ns, name string) (domain.PodUsage, error) {
	for _, p := range r.pods[ns] {
		if p.Name == name {
			return domain.PodUsage{
				CPUm:     int64(5 + 20*r.rnd.Float64()),
				MemBytes: int64(64*1024*1024 + 32*1024*1024*r.rnd.Float64()),
			}, nil
		}
	}
	return domain.PodUsage{}, apierrors.NewNotFound(podsResource, name)
}

// Pods returns a sorted copy of every pod, for assertions.
func (r *Repo) Pods() []domain.PodSnapshot {
	var out []domain.PodSnapshot
	for _, ns := range r.order {
		out = append(out, r.pods[ns]...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

const letters = "bcdfghjklmnpqrstvwxz2456789"

func (r *Repo) suffix() string {
	b := make([]byte, 5)
	for i := range b {
		b[i] = letters[r.rnd.Intn(len(letters))]
	}
	return string(b)
}

func coalesce(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
