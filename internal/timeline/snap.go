package timeline

import "math"

// DefaultSnapThreshold is the snap distance in seconds.
const DefaultSnapThreshold = 0.2

// Snap returns the candidate closest to value within threshold (inclusive).
// Equal distances resolve to the earlier candidate. With no candidate in
// range the value is returned unchanged.
func Snap(value float64, candidates []float64, threshold float64) float64 {
	best := value
	bestDist := math.Inf(1)
	for _, c := range candidates {
		d := math.Abs(c - value)
		if d <= threshold && d < bestDist {
			best = c
			bestDist = d
		}
	}
	return best
}

// SnapCandidates lists the snap points for the region selfID: boundaries of
// every other segment in the given order, followed by the track edges.
// Segment boundaries therefore win ties against track edges.
func SnapCandidates(duration float64, segments []EffectiveSegment, selfID string) []float64 {
	out := make([]float64, 0, 2*len(segments)+2)
	for _, s := range segments {
		if s.RegionID == selfID {
			continue
		}
		out = append(out, s.T0, s.T1)
	}
	return append(out, 0, duration)
}

// SnapRange snaps both ends of [start, end]. The end is resolved first, then
// the start; a snap that would leave the range empty or inverted is skipped.
func SnapRange(start, end float64, candidates []float64, threshold float64) (float64, float64) {
	if e := Snap(end, candidates, threshold); e > start {
		end = e
	}
	if s := Snap(start, candidates, threshold); s < end {
		start = s
	}
	return start, end
}

// EnforceMinLength widens [start, end] symmetrically around its midpoint to at
// least minLen, then keeps it inside [0, duration] by shifting. A track shorter
// than minLen yields the whole track.
func EnforceMinLength(start, end, minLen, duration float64) (float64, float64) {
	if end-start < minLen {
		mid := (start + end) / 2
		start = mid - minLen/2
		end = mid + minLen/2
	}
	return fitInside(start, end, duration)
}

// fitInside shifts a range into [0, duration] keeping its length when possible.
func fitInside(start, end, duration float64) (float64, float64) {
	length := end - start
	if duration <= 0 {
		return start, end
	}
	if length >= duration {
		return 0, duration
	}
	if start < 0 {
		start, end = 0, length
	}
	if end > duration {
		start, end = duration-length, duration
	}
	return start, end
}
