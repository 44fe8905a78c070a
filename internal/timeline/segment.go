package timeline

import (
	"fmt"
	"hash/fnv"
	"math"
)

// Segment is one detected-sound time range as produced by the detector.
type Segment struct {
	Label string  `json:"label" yaml:"label"`
	T0    float64 `json:"t0" yaml:"t0"`
	T1    float64 `json:"t1" yaml:"t1"`
	Score float64 `json:"score" yaml:"score"`
}

// Valid reports whether the segment has finite bounds and positive length.
func (s Segment) Valid() bool {
	if math.IsNaN(s.T0) || math.IsNaN(s.T1) || math.IsInf(s.T0, 0) || math.IsInf(s.T1, 0) {
		return false
	}
	return s.T1 > s.T0
}

// Length returns t1 - t0.
func (s Segment) Length() float64 {
	return s.T1 - s.T0
}

// Override is a user correction of one segment's bounds.
type Override struct {
	T0 float64 `json:"t0" yaml:"t0"`
	T1 float64 `json:"t1" yaml:"t1"`
}

// EffectiveSegment is the read-only projection handed to renderers.
type EffectiveSegment struct {
	Segment   `yaml:",inline"`
	RegionID  string `json:"region_id" yaml:"region_id"`
	Hue       int    `json:"hue" yaml:"hue"`
	ShowLabel bool   `json:"show_label" yaml:"show_label"`
	Edited    bool   `json:"edited" yaml:"edited"`
}

// SortScore returns the score used for ordering; non-finite scores count as 0.
func SortScore(score float64) float64 {
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0
	}
	return score
}

// FiniteScores returns a copy of segs with non-finite scores replaced by 0,
// for encoders that reject NaN and Inf.
func FiniteScores(segs []EffectiveSegment) []EffectiveSegment {
	out := make([]EffectiveSegment, len(segs))
	for i, s := range segs {
		s.Score = SortScore(s.Score)
		out[i] = s
	}
	return out
}

// baseKey derives the identity of a segment from its original values.
func baseKey(s Segment) string {
	return fmt.Sprintf("%s@%.3f-%.3f", s.Label, s.T0, s.T1)
}

// AssignKeys returns one identity key per segment, suffixing "#n" onto the
// n-th occurrence of a colliding key in first-seen order.
func AssignKeys(segments []Segment) []string {
	keys := make([]string, len(segments))
	seen := make(map[string]int, len(segments))
	for i, s := range segments {
		k := baseKey(s)
		seen[k]++
		if n := seen[k]; n > 1 {
			k = fmt.Sprintf("%s#%d", k, n)
		}
		keys[i] = k
	}
	return keys
}

// LabelHue maps a label to a stable hue in [0, 360).
func LabelHue(label string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(label))
	return int(h.Sum32() % 360)
}
