package domain

import (
	"context"
	"errors"
)

var (
	// ErrNoClusterAccess means no cluster config could be loaded at all.
	ErrNoClusterAccess = errors.New("no cluster access")
	// ErrNotifyDisabled is returned by sinks that are switched off.
	ErrNotifyDisabled = errors.New("notifications disabled")
)

// PodRepo is the pod-data and deletion capability the cleaner consumes.
type PodRepo interface {
	ListNamespaces(ctx context.Context) ([]string, error)
	// ListPods returns every pod in ns; implementations paginate internally.
	ListPods(ctx context.Context, ns string) ([]PodSnapshot, error)
	// DeletePod treats an already-gone pod as success.
	DeletePod(ctx context.Context, ns, name string) error
}

type UsageRepo interface {
	PodUsage(ctx context.Context, ns, name string) (PodUsage, error)
}

// Notifier renders a cycle report somewhere. Failures never fail the cycle.
type Notifier interface {
	Notify(ctx context.Context, report CycleReport) error
}
