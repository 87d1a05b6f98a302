package app

import "github.com/HaPhanBaoMinh/podcleaner/internal/domain"

// clamp clamps v into [min, max].
func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// compute dynamic widths for the Cycles table based on available total width
func (m *Model) cycleColWidths(total int) (wRun, wTime, wDur, wNS, wPods, wBad, wBar, wRst, wRec, wTrend int) {
	wRun, wTime, wDur, wNS, wPods, wBad, wRst, wRec = 6, 9, 8, 4, 6, 5, 8, 12
	minTrend := 12

	base := wRun + wTime + wDur + wNS + wPods + wBad + wRst + wRec + minTrend
	remain := total - base
	if remain < 8 {
		remain = 8
	}

	// bar gets a third of the slack, trend the rest
	wBar = remain / 3
	wTrend = minTrend + remain - wBar

	wBar = clamp(wBar, 6, 30)
	wTrend = clamp(wTrend, minTrend, 40)
	return
}

// compute dynamic widths for the Pods table based on available total width
func (m *Model) podColWidths(total int) (wPod, wPhase, wReason, wRst, wState, wCPU, wCPUBar, wMem, wMemBar int) {
	minPod, minReason := 28, 16
	wPhase, wRst, wState, wCPU, wMem = 10, 4, 16, 6, 9

	base := minPod + minReason + wPhase + wRst + wState + wCPU + wMem
	remain := total - base
	if remain < 12 {
		remain = 12
	}

	wCPUBar = remain / 4
	wMemBar = remain / 4
	extra := remain - (wCPUBar + wMemBar)

	wPod = minPod + extra/2
	wReason = minReason + extra - extra/2

	wPod = clamp(wPod, 20, 70)
	wReason = clamp(wReason, 12, 40)
	wCPUBar = clamp(wCPUBar, 4, 20)
	wMemBar = clamp(wMemBar, 4, 20)
	return
}

// unhealthyTrend returns the unhealthy ratio of up to 16 cycles ending at
// reports[0], oldest first.
func unhealthyTrend(reports []domain.CycleReport) []float64 {
	n := min(len(reports), 16)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		r := reports[n-1-i]
		if r.PodsScanned > 0 {
			out[i] = float64(len(r.Unhealthy)) / float64(r.PodsScanned)
		}
	}
	return out
}
