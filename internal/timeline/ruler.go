package timeline

import (
	"fmt"
	"iter"
	"math"
)

// stepTable lists the allowed ruler steps in seconds, ascending.
var stepTable = []float64{0.5, 1, 2, 5, 10, 15, 30, 60, 120, 300}

const (
	// TargetMajorPx is the desired spacing between major ticks.
	TargetMajorPx = 80
	// MaxTicks bounds the number of ticks on one ruler.
	MaxTicks = 240
	// minMajorStep is the floor of the target step in seconds.
	minMajorStep = 0.5
	// edgeProximity is the percentage band treated as a timeline edge.
	edgeProximity = 2
)

// Edge is a label-alignment hint for ticks near the timeline edges.
type Edge string

const (
	EdgeLeft   Edge = "left"
	EdgeCenter Edge = "center"
	EdgeRight  Edge = "right"
)

// Tick describes one ruler mark.
type Tick struct {
	Time            float64 `json:"time"`
	PositionPercent float64 `json:"position_percent"`
	IsMajor         bool    `json:"is_major"`
	Label           string  `json:"label,omitempty"`
	Edge            Edge    `json:"edge"`
}

// RulerSpec is the resolved tick spacing for a duration and zoom.
type RulerSpec struct {
	MajorStep float64
	MinorStep float64
}

// Count returns how many minor ticks cover duration, both ends inclusive.
func (r RulerSpec) Count(duration float64) int {
	if r.MinorStep <= 0 || duration < 0 {
		return 0
	}
	return int(math.Floor(duration/r.MinorStep+1e-9)) + 1
}

// Ruler picks major and minor steps so major ticks land roughly
// TargetMajorPx apart and the tick count stays within MaxTicks.
func Ruler(duration, zoom float64) RulerSpec {
	target := minMajorStep
	if zoom > 0 {
		target = math.Max(minMajorStep, TargetMajorPx/zoom)
	}
	major := smallestStepAtLeast(target)

	minor := major / 2
	if major >= 10 {
		minor = major / 5
	}
	spec := RulerSpec{MajorStep: major, MinorStep: minor}

	if duration > 0 && spec.Count(duration) > MaxTicks {
		minor = stepTable[len(stepTable)-1]
		for _, v := range stepTable {
			if (RulerSpec{MinorStep: v}).Count(duration) <= MaxTicks {
				minor = v
				break
			}
		}
		spec = RulerSpec{MajorStep: 2 * minor, MinorStep: minor}
	}
	return spec
}

func smallestStepAtLeast(v float64) float64 {
	for _, s := range stepTable {
		if s >= v {
			return s
		}
	}
	return stepTable[len(stepTable)-1]
}

// Ticks yields the ruler marks for a track. The sequence is computed lazily,
// is finite and can be ranged over any number of times. A non-positive
// duration yields nothing.
func Ticks(duration, zoom float64) iter.Seq[Tick] {
	spec := Ruler(duration, zoom)
	return func(yield func(Tick) bool) {
		if duration <= 0 || math.IsNaN(duration) || math.IsInf(duration, 0) {
			return
		}
		n := spec.Count(duration)
		ratio := int(math.Round(spec.MajorStep / spec.MinorStep))
		if ratio < 1 {
			ratio = 1
		}
		for k := 0; k < n; k++ {
			t := float64(k) * spec.MinorStep
			pos := t / duration * 100
			tick := Tick{
				Time:            t,
				PositionPercent: pos,
				IsMajor:         k%ratio == 0,
				Edge:            edgeFor(pos),
			}
			if tick.IsMajor {
				tick.Label = FormatTickLabel(t, spec.MajorStep)
			}
			if !yield(tick) {
				return
			}
		}
	}
}

func edgeFor(pos float64) Edge {
	switch {
	case pos <= edgeProximity:
		return EdgeLeft
	case pos >= 100-edgeProximity:
		return EdgeRight
	default:
		return EdgeCenter
	}
}

// FormatTickLabel renders t as M:SS.s when the major step is under a minute
// and M:SS otherwise.
func FormatTickLabel(t, majorStep float64) string {
	if t < 0 {
		t = 0
	}
	if majorStep < 60 {
		tenths := int64(math.Round(t * 10))
		minutes := tenths / 600
		rest := tenths % 600
		return fmt.Sprintf("%d:%02d.%d", minutes, rest/10, rest%10)
	}
	secs := int64(math.Round(t))
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

// FormatClock renders seconds as M:SS.ss for status displays.
func FormatClock(t float64) string {
	if t < 0 || math.IsNaN(t) {
		t = 0
	}
	hundredths := int64(math.Round(t * 100))
	minutes := hundredths / 6000
	rest := hundredths % 6000
	return fmt.Sprintf("%d:%02d.%02d", minutes, rest/100, rest%100)
}
