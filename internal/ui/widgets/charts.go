package widgets

import (
	"math"
	"strings"
)

var blocks = []rune("▁▂▃▄▅▆▇█")

// Spark8 draws vals (each in [0,1]) as width block characters, sampling
// evenly when there are more values than cells.
func Spark8(vals []float64, width int) string {
	if len(vals) == 0 || width <= 0 {
		return ""
	}
	n := min(width, len(vals))
	step := float64(len(vals)) / float64(n)
	var b strings.Builder
	for i := 0; i < n; i++ {
		idx := int(math.Min(float64(len(vals)-1), math.Floor(float64(i)*step)))
		level := int(math.Round(clamp01(vals[idx]) * float64(len(blocks)-1)))
		b.WriteRune(blocks[level])
	}
	return b.String()
}

// Normalize scales vals so the largest becomes 1. All-zero input stays zero.
func Normalize(vals []float64) []float64 {
	var top float64
	for _, v := range vals {
		top = math.Max(top, v)
	}
	out := make([]float64, len(vals))
	if top <= 0 {
		return out
	}
	for i, v := range vals {
		out[i] = v / top
	}
	return out
}

// Bar renders v in [0,1] as a left-aligned block bar. Any non-zero value
// shows at least one cell.
func Bar(v float64, width int) string {
	if width <= 0 {
		return ""
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	v = clamp01(v)

	fill := int(math.Round(v * float64(width)))
	if v > 0 && fill == 0 {
		fill = 1
	}
	return strings.Repeat("█", fill) + strings.Repeat(" ", width-fill)
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
