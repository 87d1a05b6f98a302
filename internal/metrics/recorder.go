package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/HaPhanBaoMinh/podcleaner/internal/domain"
)

const namespace = "podcleaner"

// Recorder turns cycle reports into Prometheus series. It is registered as a
// notification sink so the loop does not know about metrics.
type Recorder struct {
	registry *prometheus.Registry

	cycles         prometheus.Counter
	cycleDuration  prometheus.Histogram
	unhealthy      prometheus.Gauge
	stillUnhealthy prometheus.Gauge
	restarts       *prometheus.CounterVec
	recovery       *prometheus.CounterVec
	nsFailures     prometheus.Counter
	lastCycle      prometheus.Gauge
}

func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Recorder{
		registry: reg,
		cycles: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Completed cleanup cycles",
		}),
		cycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of a cleanup cycle including recovery polling",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 180, 240, 300, 600},
		}),
		unhealthy: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "unhealthy_pods",
			Help:      "Unhealthy pods found by the last scan",
		}),
		stillUnhealthy: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "still_unhealthy_pods",
			Help:      "Pods still unhealthy when the last recovery poll stopped",
		}),
		restarts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pod_restarts_total",
			Help:      "Pod deletions issued, by result",
		}, []string{"result"}),
		recovery: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recovery_total",
			Help:      "Recovery polls, by outcome",
		}, []string{"outcome"}),
		nsFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "namespace_list_failures_total",
			Help:      "Namespaces whose pod listing failed and were skipped",
		}),
		lastCycle: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_cycle_timestamp_seconds",
			Help:      "Unix time the last cycle ended",
		}),
	}
}

func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

func (r *Recorder) Notify(_ context.Context, rep domain.CycleReport) error {
	r.cycles.Inc()
	r.cycleDuration.Observe(rep.Duration().Seconds())
	r.unhealthy.Set(float64(len(rep.Unhealthy)))
	r.restarts.WithLabelValues(string(domain.RestartSucceeded)).Add(float64(rep.Succeeded))
	r.restarts.WithLabelValues(string(domain.RestartFailed)).Add(float64(rep.Failed))
	r.nsFailures.Add(float64(len(rep.NamespacesFailed)))
	r.lastCycle.Set(float64(rep.EndedAt.Unix()))

	switch {
	case rep.Recovery == nil:
		r.stillUnhealthy.Set(0)
	case rep.Recovery.AllRecovered:
		r.recovery.WithLabelValues("recovered").Inc()
		r.stillUnhealthy.Set(0)
	default:
		r.recovery.WithLabelValues("exhausted").Inc()
		r.stillUnhealthy.Set(float64(len(rep.Recovery.StillUnhealthy)))
	}
	return nil
}
