package editor

import (
	"sort"

	"github.com/Dicklesworthstone/wavedit/internal/timeline"
)

// layout holds the screen row of each editor band.
type layout struct {
	status     int
	ticks      int
	labels     int
	wave       int
	waveRows   int
	regions    int
	regionRows int
	preview    int
	thumb      int
	help       int
}

// fixedRows counts everything except the waveform.
const fixedRows = 6

func computeLayout(height, waveRows, regionLanes int) layout {
	if regionLanes < 1 {
		regionLanes = 1
	}
	if avail := height - fixedRows - regionLanes; waveRows > avail {
		waveRows = avail
	}
	if waveRows < 1 {
		waveRows = 1
	}
	l := layout{status: 0, ticks: 1, labels: 2, wave: 3, waveRows: waveRows}
	l.regions = l.wave + waveRows
	l.regionRows = regionLanes
	l.preview = l.regions + regionLanes
	l.thumb = l.preview + 1
	l.help = l.thumb + 1
	return l
}

// regionLane returns the lane index for a screen row, or -1.
func (l layout) regionLane(y int) int {
	if y < l.regions || y >= l.regions+l.regionRows {
		return -1
	}
	return y - l.regions
}

// assignLanes packs segments into at most maxLanes rows so that overlapping
// segments land on different rows where possible. Segments that do not fit
// go to the lane that frees up first. The result is indexed like segs.
func assignLanes(segs []timeline.EffectiveSegment, maxLanes int) []int {
	if maxLanes < 1 {
		maxLanes = 1
	}
	order := make([]int, len(segs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return segs[order[a]].T0 < segs[order[b]].T0
	})

	lanes := make([]int, len(segs))
	var ends []float64
	for _, i := range order {
		s := segs[i]
		lane := -1
		for l, end := range ends {
			if end <= s.T0 {
				lane = l
				break
			}
		}
		if lane < 0 && len(ends) < maxLanes {
			ends = append(ends, s.T1)
			lane = len(ends) - 1
		}
		if lane < 0 {
			lane = 0
			for l := range ends {
				if ends[l] < ends[lane] {
					lane = l
				}
			}
		}
		if s.T1 > ends[lane] {
			ends[lane] = s.T1
		}
		lanes[i] = lane
	}
	return lanes
}

// laneCount returns how many lanes assignLanes used.
func laneCount(lanes []int) int {
	n := 0
	for _, l := range lanes {
		if l+1 > n {
			n = l + 1
		}
	}
	return n
}
