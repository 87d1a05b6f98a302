package health

import (
	"fmt"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/HaPhanBaoMinh/podcleaner/internal/domain"
)

// DefaultHealthyPhases are the phases that pass the first-level check.
var DefaultHealthyPhases = []domain.Phase{domain.PhaseRunning, domain.PhaseInit, domain.PhaseSucceeded}

// Classifier decides whether a pod is broken. It is pure and safe to share.
type Classifier struct {
	healthy sets.Set[domain.Phase]
}

// NewClassifier builds a classifier; an empty phase list means the defaults.
func NewClassifier(healthyPhases ...domain.Phase) *Classifier {
	if len(healthyPhases) == 0 {
		healthyPhases = DefaultHealthyPhases
	}
	return &Classifier{healthy: sets.New(healthyPhases...)}
}

func (c *Classifier) PhaseHealthy(p domain.Phase) bool { return c.healthy.Has(p) }

// Classify runs the phase check, then the per-container check. A failing
// phase short-circuits; failing containers all contribute a reason.
func (c *Classifier) Classify(pod domain.PodSnapshot) domain.HealthVerdict {
	if !c.PhaseHealthy(pod.Phase) {
		return domain.HealthVerdict{Healthy: false, Reasons: []string{fmt.Sprintf("Phase: %s", pod.Phase)}}
	}

	v := domain.HealthVerdict{Healthy: true, Reasons: []string{}}
	for i, cs := range pod.Containers {
		if reason, bad := containerReason(i, cs.State); bad {
			v.Healthy = false
			v.Reasons = append(v.Reasons, reason)
		}
	}
	return v
}

func containerReason(idx int, s domain.ContainerState) (string, bool) {
	switch {
	case s.Waiting != nil:
		return fmt.Sprintf("Container %d: %s", idx, orDefault(s.Waiting.Reason, "Unknown")), true
	case s.Terminated != nil && s.Terminated.ExitCode != 0:
		return fmt.Sprintf("Container %d: terminated with exitCode=%d", idx, s.Terminated.ExitCode), true
	}
	return "", false
}

// Record captures an unhealthy pod together with its verdict reasons.
func Record(pod domain.PodSnapshot, v domain.HealthVerdict) domain.UnhealthyPodRecord {
	rec := domain.UnhealthyPodRecord{
		Namespace:        pod.Namespace,
		Name:             pod.Name,
		Phase:            pod.Phase,
		Reason:           orDefault(pod.Reason, "Unknown"),
		Message:          orDefault(pod.Message, "No message"),
		CreatedAt:        pod.CreatedAt,
		Reasons:          v.Reasons,
		ContainerReason:  "Unknown",
		ContainerMessage: "No message",
	}
	if len(pod.Containers) > 0 {
		rec.RestartCount = pod.Containers[0].RestartCount
	}
	for _, cs := range pod.Containers {
		if w := cs.State.Waiting; w != nil {
			rec.ContainerReason = orDefault(w.Reason, "Unknown")
			rec.ContainerMessage = orDefault(w.Message, "No message")
			break
		}
		if t := cs.State.Terminated; t != nil && t.ExitCode != 0 {
			rec.ContainerReason = fmt.Sprintf("Terminated with exitCode=%d", t.ExitCode)
			rec.ContainerMessage = orDefault(t.Reason, "No message")
			break
		}
	}
	return rec
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
