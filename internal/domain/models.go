package domain

import (
	"fmt"
	"time"
)

// Phase is the coarse lifecycle stage of a pod.
type Phase string

const (
	PhasePending   Phase = "Pending"
	PhaseRunning   Phase = "Running"
	PhaseInit      Phase = "Init"
	PhaseSucceeded Phase = "Succeeded"
	PhaseFailed    Phase = "Failed"
	PhaseUnknown   Phase = "Unknown"
)

// WaitingState describes a container that is not executing yet.
type WaitingState struct {
	Reason  string // CrashLoopBackOff, ImagePullBackOff...
	Message string
}

// TerminatedState describes a container that has exited.
type TerminatedState struct {
	ExitCode int32
	Reason   string
	Message  string
}

// ContainerState holds at most one of Waiting or Terminated. When both are
// nil the container is running.
type ContainerState struct {
	Waiting    *WaitingState
	Terminated *TerminatedState
}

func Running() ContainerState { return ContainerState{} }

func Waiting(reason, message string) ContainerState {
	return ContainerState{Waiting: &WaitingState{Reason: reason, Message: message}}
}

func Terminated(exitCode int32, reason, message string) ContainerState {
	return ContainerState{Terminated: &TerminatedState{ExitCode: exitCode, Reason: reason, Message: message}}
}

func (s ContainerState) IsRunning() bool { return s.Waiting == nil && s.Terminated == nil }

func (s ContainerState) String() string {
	switch {
	case s.Waiting != nil:
		return "Waiting(" + s.Waiting.Reason + ")"
	case s.Terminated != nil:
		return fmt.Sprintf("Terminated(%d)", s.Terminated.ExitCode)
	default:
		return "Running"
	}
}

type ContainerStatus struct {
	Name         string
	RestartCount int32
	State        ContainerState
}

// PodSnapshot is one pod as seen by a single scan.
type PodSnapshot struct {
	Namespace  string
	Name       string
	Phase      Phase
	Reason     string // pod-level status reason, may be empty
	Message    string
	CreatedAt  time.Time
	Containers []ContainerStatus // declaration order
}

func (p PodSnapshot) Key() string { return p.Namespace + "/" + p.Name }

// HealthVerdict is the classifier output for one pod.
type HealthVerdict struct {
	Healthy bool
	Reasons []string
}

// PodUsage is live resource consumption reported by metrics.k8s.io.
type PodUsage struct {
	CPUm     int64 // millicores
	MemBytes int64
}

// UnhealthyPodRecord is captured when a scan finds a broken pod.
type UnhealthyPodRecord struct {
	Namespace    string    `json:"namespace"`
	Name         string    `json:"name"`
	Phase        Phase     `json:"phase"`
	Reason       string    `json:"reason"`
	Message      string    `json:"message"`
	CreatedAt    time.Time `json:"createTime"`
	RestartCount int32     `json:"restartCount"`
	Reasons      []string  `json:"reasons"`

	// first failing container, filled for every record
	ContainerReason  string `json:"containerReason"`
	ContainerMessage string `json:"containerMessage"`

	Usage *PodUsage `json:"usage,omitempty"`
}

func (r UnhealthyPodRecord) Key() string { return r.Namespace + "/" + r.Name }

// RecoveryOutcome is what the recovery poller reports when it stops.
type RecoveryOutcome struct {
	StillUnhealthy []UnhealthyPodRecord `json:"stillUnhealthy"`
	AllRecovered   bool                 `json:"allRecovered"`
	Scans          int                  `json:"scans"`
	Waited         time.Duration        `json:"waited"`
}

// PollBudget bounds one recovery poll.
type PollBudget struct {
	MaxWait       time.Duration `json:"maxWait"`
	CheckInterval time.Duration `json:"checkInterval"`
}

// MaxScans is ceil(MaxWait / CheckInterval), the most scans a poll may issue.
func (b PollBudget) MaxScans() int {
	if b.CheckInterval <= 0 {
		return 1
	}
	n := int(b.MaxWait / b.CheckInterval)
	if b.MaxWait%b.CheckInterval != 0 {
		n++
	}
	if n < 1 {
		n = 1
	}
	return n
}

type RestartStatus string

const (
	RestartSucceeded RestartStatus = "success"
	RestartFailed    RestartStatus = "failed"
)

type RestartResult struct {
	Namespace string        `json:"namespace"`
	Name      string        `json:"name"`
	Phase     Phase         `json:"phase"`
	Status    RestartStatus `json:"status"`
	Error     string        `json:"error,omitempty"`
}

// CycleReport aggregates one cleanup cycle for notification sinks.
type CycleReport struct {
	ID        string    `json:"id"`
	Run       int       `json:"run"`
	StartedAt time.Time `json:"startedAt"`
	EndedAt   time.Time `json:"endedAt"`

	NamespacesScanned []string `json:"namespacesScanned"`
	NamespacesFailed  []string `json:"namespacesFailed,omitempty"`
	PodsScanned       int      `json:"podsScanned"`

	Unhealthy []UnhealthyPodRecord `json:"unhealthy"`
	Restarts  []RestartResult      `json:"restarts"`
	Succeeded int                  `json:"restartSuccess"`
	Failed    int                  `json:"restartFailed"`

	// nil when no deletion succeeded and recovery was not polled
	Budget   *PollBudget      `json:"budget,omitempty"`
	Recovery *RecoveryOutcome `json:"recovery,omitempty"`
}

func (r CycleReport) Duration() time.Duration { return r.EndedAt.Sub(r.StartedAt) }

// NeedsAlert is true when recovery was polled and did not complete.
func (r CycleReport) NeedsAlert() bool { return r.Recovery != nil && !r.Recovery.AllRecovered }

func (r CycleReport) FailedRestarts() []RestartResult {
	var out []RestartResult
	for _, rr := range r.Restarts {
		if rr.Status == RestartFailed {
			out = append(out, rr)
		}
	}
	return out
}
