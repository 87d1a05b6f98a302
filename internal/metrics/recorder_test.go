package metrics

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HaPhanBaoMinh/podcleaner/internal/domain"
)

func TestRecorderNotify(t *testing.T) {
	r := NewRecorder()
	start := time.Unix(1_700_000_000, 0)

	require.NoError(t, r.Notify(context.Background(), domain.CycleReport{
		StartedAt:        start,
		EndedAt:          start.Add(90 * time.Second),
		NamespacesFailed: []string{"broken"},
		Unhealthy:        make([]domain.UnhealthyPodRecord, 3),
		Succeeded:        2,
		Failed:           1,
		Recovery: &domain.RecoveryOutcome{
			StillUnhealthy: make([]domain.UnhealthyPodRecord, 1),
		},
	}))
	require.NoError(t, r.Notify(context.Background(), domain.CycleReport{
		StartedAt: start.Add(time.Hour),
		EndedAt:   start.Add(time.Hour + time.Second),
		Unhealthy: make([]domain.UnhealthyPodRecord, 1),
		Succeeded: 1,
		Recovery:  &domain.RecoveryOutcome{AllRecovered: true, StillUnhealthy: []domain.UnhealthyPodRecord{}},
	}))

	assert.Equal(t, 2.0, testutil.ToFloat64(r.cycles))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.unhealthy))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.stillUnhealthy))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.restarts.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.restarts.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.recovery.WithLabelValues("exhausted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.recovery.WithLabelValues("recovered")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.nsFailures))
	assert.Equal(t, float64(start.Add(time.Hour+time.Second).Unix()), testutil.ToFloat64(r.lastCycle))
}

func TestRecorderExposition(t *testing.T) {
	r := NewRecorder()
	require.NoError(t, r.Notify(context.Background(), domain.CycleReport{Unhealthy: make([]domain.UnhealthyPodRecord, 4)}))

	err := testutil.GatherAndCompare(r.Registry(), strings.NewReader(`
# HELP podcleaner_unhealthy_pods Unhealthy pods found by the last scan
# TYPE podcleaner_unhealthy_pods gauge
podcleaner_unhealthy_pods 4
`), "podcleaner_unhealthy_pods")
	assert.NoError(t, err)

	n, err := testutil.GatherAndCount(r.Registry(), "podcleaner_cycle_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
