package notify

import (
	"fmt"
	"strings"

	"github.com/HaPhanBaoMinh/podcleaner/internal/domain"
)

const (
	maxFailedListed = 10
	maxDetailRunes  = 100
	timeLayout      = "2006-01-02 15:04:05"
)

// Message is a rendered notification.
type Message struct {
	Title string
	Body  string
	Level string // Bark level: passive, active, timeSensitive, critical
}

// CleanupMessage summarises the restarts of a cycle.
func CleanupMessage(r domain.CycleReport) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Run #%d\n", r.Run)
	fmt.Fprintf(&b, "Time: %s\n", r.EndedAt.Format(timeLayout))
	fmt.Fprintf(&b, "Success: %d\n", r.Succeeded)
	fmt.Fprintf(&b, "Failed: %d", r.Failed)

	if failed := r.FailedRestarts(); len(failed) > 0 {
		b.WriteString("\n\nFailed Details:")
		for i, f := range failed {
			if i == maxFailedListed {
				fmt.Fprintf(&b, "\n  ... and %d more", len(failed)-maxFailedListed)
				break
			}
			fmt.Fprintf(&b, "\n  - %s/%s", f.Namespace, f.Name)
		}
	}
	return Message{Title: "Pod Cleaner Report", Body: b.String(), Level: "active"}
}

// AlertMessage lists the pods that did not recover. Only meaningful when
// r.NeedsAlert().
func AlertMessage(r domain.CycleReport) Message {
	var still []domain.UnhealthyPodRecord
	if r.Recovery != nil {
		still = r.Recovery.StillUnhealthy
	}
	n := len(still)

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d pods still unhealthy after restart:\n\n", n)
	for _, p := range still {
		fmt.Fprintf(&b, "Pod: %s/%s\n", p.Namespace, p.Name)
		fmt.Fprintf(&b, "Phase: %s\n", p.Phase)
		fmt.Fprintf(&b, "Reason: %s\n", p.ContainerReason)
		fmt.Fprintf(&b, "Details: %s\n", Truncate(p.ContainerMessage, maxDetailRunes))
		if p.Usage != nil {
			fmt.Fprintf(&b, "Usage: cpu=%dm mem=%.1fMi\n", p.Usage.CPUm, float64(p.Usage.MemBytes)/(1024*1024))
		}
		b.WriteString(strings.Repeat("-", 40) + "\n")
	}
	b.WriteString("\nManual inspection required")
	return Message{Title: fmt.Sprintf("WARNING: %d Pods Unhealthy", n), Body: b.String(), Level: "timeSensitive"}
}

// Messages returns what a cycle should announce, in send order.
func Messages(r domain.CycleReport) []Message {
	var out []Message
	if len(r.Restarts) > 0 {
		out = append(out, CleanupMessage(r))
	}
	if r.NeedsAlert() {
		out = append(out, AlertMessage(r))
	}
	return out
}

func Truncate(s string, n int) string {
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	return string(rs[:n]) + "..."
}
