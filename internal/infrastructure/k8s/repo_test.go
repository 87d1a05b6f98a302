package k8s

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/kubernetes/fake"
	"k8s.io/client-go/rest"
	k8stesting "k8s.io/client-go/testing"
	metricsv1beta1 "k8s.io/metrics/pkg/apis/metrics/v1beta1"
	metricsclient "k8s.io/metrics/pkg/client/clientset/versioned"
	metricsfake "k8s.io/metrics/pkg/client/clientset/versioned/fake"

	"github.com/HaPhanBaoMinh/podcleaner/internal/domain"
)

func crashingPod(ns, name string) *corev1.Pod {
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Namespace:         ns,
			Name:              name,
			CreationTimestamp: metav1.NewTime(time.Date(2026, 1, 31, 8, 0, 0, 0, time.UTC)),
		},
		Status: corev1.PodStatus{
			Phase:  corev1.PodRunning,
			Reason: "",
			ContainerStatuses: []corev1.ContainerStatus{
				{Name: "app", RestartCount: 7, State: corev1.ContainerState{Waiting: &corev1.ContainerStateWaiting{Reason: "CrashLoopBackOff", Message: "back-off"}}},
				{Name: "sidecar", State: corev1.ContainerState{Running: &corev1.ContainerStateRunning{}}},
				{Name: "init", State: corev1.ContainerState{Terminated: &corev1.ContainerStateTerminated{ExitCode: 2, Reason: "Error"}}},
			},
		},
	}
}

func TestListNamespaces(t *testing.T) {
	cs := fake.NewSimpleClientset(
		&corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: "default"}},
		&corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: "kube-system"}},
	)
	r := NewFromClients(cs, nil)

	nss, err := r.ListNamespaces(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"default", "kube-system"}, nss)
}

func TestListPodsConvertsStatus(t *testing.T) {
	cs := fake.NewSimpleClientset(crashingPod("default", "api-1"))
	r := NewFromClients(cs, nil)

	pods, err := r.ListPods(context.Background(), "default")
	require.NoError(t, err)
	require.Len(t, pods, 1)

	p := pods[0]
	assert.Equal(t, "default/api-1", p.Key())
	assert.Equal(t, domain.PhaseRunning, p.Phase)
	assert.Equal(t, time.Date(2026, 1, 31, 8, 0, 0, 0, time.UTC), p.CreatedAt.UTC())
	require.Len(t, p.Containers, 3)
	assert.Equal(t, int32(7), p.Containers[0].RestartCount)
	assert.Equal(t, domain.Waiting("CrashLoopBackOff", "back-off"), p.Containers[0].State)
	assert.True(t, p.Containers[1].State.IsRunning())
	assert.Equal(t, domain.Terminated(2, "Error", ""), p.Containers[2].State)
}

func TestListPodsPaginates(t *testing.T) {
	cs := fake.NewSimpleClientset()
	var seen []metav1.ListOptions
	cs.PrependReactor("list", "pods", func(action k8stesting.Action) (bool, runtime.Object, error) {
		opts := action.(k8stesting.ListActionImpl).GetListOptions()
		seen = append(seen, opts)
		list := &corev1.PodList{}
		if len(seen) == 1 {
			list.Items = []corev1.Pod{*crashingPod("big", "p-1"), *crashingPod("big", "p-2")}
			list.Continue = "page-2"
		} else {
			list.Items = []corev1.Pod{*crashingPod("big", "p-3")}
		}
		return true, list, nil
	})
	r := NewFromClients(cs, nil, WithPageSize(2))

	pods, err := r.ListPods(context.Background(), "big")
	require.NoError(t, err)
	require.Len(t, pods, 3)
	assert.Equal(t, "p-3", pods[2].Name)
	require.Len(t, seen, 2)
	assert.Equal(t, int64(2), seen[0].Limit)
	assert.Equal(t, "page-2", seen[1].Continue)
}

func TestListPodsError(t *testing.T) {
	cs := fake.NewSimpleClientset()
	cs.PrependReactor("list", "pods", func(k8stesting.Action) (bool, runtime.Object, error) {
		return true, nil, errors.New("etcd timeout")
	})
	r := NewFromClients(cs, nil)

	_, err := r.ListPods(context.Background(), "default")
	assert.Error(t, err)
}

func TestDeletePod(t *testing.T) {
	cs := fake.NewSimpleClientset(crashingPod("default", "api-1"))
	r := NewFromClients(cs, nil)

	require.NoError(t, r.DeletePod(context.Background(), "default", "api-1"))

	var del k8stesting.DeleteActionImpl
	for _, a := range cs.Actions() {
		if d, ok := a.(k8stesting.DeleteActionImpl); ok {
			del = d
		}
	}
	require.NotNil(t, del.DeleteOptions.GracePeriodSeconds)
	assert.Equal(t, int64(0), *del.DeleteOptions.GracePeriodSeconds)

	_, err := cs.CoreV1().Pods("default").Get(context.Background(), "api-1", metav1.GetOptions{})
	assert.True(t, apierrors.IsNotFound(err))
}

func TestDeletePodNotFoundIsSuccess(t *testing.T) {
	r := NewFromClients(fake.NewSimpleClientset(), nil)
	assert.NoError(t, r.DeletePod(context.Background(), "default", "gone"))
}

func TestDeletePodForbidden(t *testing.T) {
	cs := fake.NewSimpleClientset()
	cs.PrependReactor("delete", "pods", func(k8stesting.Action) (bool, runtime.Object, error) {
		return true, nil, apierrors.NewForbidden(schema.GroupResource{Resource: "pods"}, "api-1", errors.New("rbac"))
	})
	r := NewFromClients(cs, nil)

	err := r.DeletePod(context.Background(), "default", "api-1")
	assert.True(t, apierrors.IsForbidden(err))
}

func TestPodUsage(t *testing.T) {
	mc := metricsfake.NewSimpleClientset()
	mc.PrependReactor("get", "pods", func(k8stesting.Action) (bool, runtime.Object, error) {
		return true, &metricsv1beta1.PodMetrics{
			ObjectMeta: metav1.ObjectMeta{Namespace: "default", Name: "api-1"},
			Containers: []metricsv1beta1.ContainerMetrics{
				{Name: "app", Usage: corev1.ResourceList{
					corev1.ResourceCPU:    resource.MustParse("150m"),
					corev1.ResourceMemory: resource.MustParse("128Mi"),
				}},
				{Name: "sidecar", Usage: corev1.ResourceList{
					corev1.ResourceCPU:    resource.MustParse("50m"),
					corev1.ResourceMemory: resource.MustParse("64Mi"),
				}},
			},
		}, nil
	})
	r := NewFromClients(fake.NewSimpleClientset(), mc)

	u, err := r.PodUsage(context.Background(), "default", "api-1")
	require.NoError(t, err)
	assert.Equal(t, int64(200), u.CPUm)
	assert.Equal(t, int64(192*1024*1024), u.MemBytes)
}

func TestPodUsageWithoutMetrics(t *testing.T) {
	r := NewFromClients(fake.NewSimpleClientset(), nil)
	_, err := r.PodUsage(context.Background(), "default", "api-1")
	assert.Error(t, err)
}

func TestNewWithoutKubeconfig(t *testing.T) {
	t.Setenv("KUBERNETES_SERVICE_HOST", "")
	_, err := New(filepath.Join(t.TempDir(), "missing"), "")
	assert.ErrorIs(t, err, domain.ErrNoClusterAccess)
}

func TestNewForConfig(t *testing.T) {
	r, err := newForConfig(&rest.Config{Host: "https://127.0.0.1:6443"}, WithPageSize(50))
	require.NoError(t, err)
	assert.NotNil(t, r.metrics)
	assert.Equal(t, int64(50), r.pageSize)
}

func TestNewForConfigMetricsClientFails(t *testing.T) {
	orig := newMetricsClient
	t.Cleanup(func() { newMetricsClient = orig })
	newMetricsClient = func(*rest.Config) (metricsclient.Interface, error) {
		return nil, errors.New("bad metrics config")
	}

	_, err := newForConfig(&rest.Config{Host: "https://127.0.0.1:6443"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNoClusterAccess)
	assert.ErrorContains(t, err, "metrics client: bad metrics config")
}
