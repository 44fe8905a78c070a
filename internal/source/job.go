// Package source loads detector jobs: the candidate segments, the committed
// preview window and the waveform peaks a timeline session is built from.
package source

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Dicklesworthstone/wavedit/internal/timeline"
)

var (
	// ErrUnsupportedFormat is returned for job files that are neither JSON nor YAML.
	ErrUnsupportedFormat = errors.New("unsupported job format")
	// ErrNoDuration is returned when a job carries no usable duration.
	ErrNoDuration = errors.New("job has no duration")
)

// Format identifies a job file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFor picks the encoding from a file extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
}

// CandidateSegment is one detected occurrence of a candidate label.
type CandidateSegment struct {
	T0    float64 `json:"t0" yaml:"t0"`
	T1    float64 `json:"t1" yaml:"t1"`
	Score float64 `json:"score" yaml:"score"`
}

// Candidate is a detected sound class with its occurrences.
type Candidate struct {
	Label    string             `json:"label" yaml:"label"`
	Score    float64            `json:"score" yaml:"score"`
	Segments []CandidateSegment `json:"segments" yaml:"segments"`
}

// MixSummary describes the latest mix rendered for the job.
type MixSummary struct {
	Kind           string   `json:"kind" yaml:"kind"`
	OutputName     string   `json:"output_name,omitempty" yaml:"output_name,omitempty"`
	PreviewSeconds *float64 `json:"preview_seconds,omitempty" yaml:"preview_seconds,omitempty"`
	PreviewStart   *float64 `json:"preview_start,omitempty" yaml:"preview_start,omitempty"`
}

// Job is a detector job as written by the analysis service.
type Job struct {
	ID              string      `json:"id" yaml:"id"`
	Status          string      `json:"status,omitempty" yaml:"status,omitempty"`
	FileName        string      `json:"file_name,omitempty" yaml:"file_name,omitempty"`
	DurationSeconds float64     `json:"duration_seconds" yaml:"duration_seconds"`
	Candidates      []Candidate `json:"candidates,omitempty" yaml:"candidates,omitempty"`
	LastMix         *MixSummary `json:"last_mix,omitempty" yaml:"last_mix,omitempty"`

	// Peaks are normalised amplitude peaks in [0, 1] spread evenly over the
	// duration. ProcessedPeaks, when present, describe the latest mix output.
	Peaks          []float64 `json:"peaks,omitempty" yaml:"peaks,omitempty"`
	ProcessedPeaks []float64 `json:"processed_peaks,omitempty" yaml:"processed_peaks,omitempty"`
}

// Load reads and decodes a job file.
func Load(path string) (*Job, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading job: %w", err)
	}
	job, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return job, nil
}

// Parse decodes a job from data.
func Parse(data []byte, format Format) (*Job, error) {
	var job Job
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(&job); err != nil {
			return nil, err
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &job); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	return &job, nil
}

// Duration returns the track length in seconds.
func (j *Job) Duration() (float64, error) {
	d := j.DurationSeconds
	if d <= 0 || math.IsNaN(d) || math.IsInf(d, 0) {
		return 0, fmt.Errorf("%w: %q", ErrNoDuration, j.ID)
	}
	return d, nil
}

// Segments flattens the candidates into timeline segments, in candidate order.
// Each occurrence keeps its own score.
func (j *Job) Segments() []timeline.Segment {
	var out []timeline.Segment
	for _, c := range j.Candidates {
		for _, s := range c.Segments {
			out = append(out, timeline.Segment{Label: c.Label, T0: s.T0, T1: s.T1, Score: s.Score})
		}
	}
	return out
}

// Labels returns the distinct candidate labels in order.
func (j *Job) Labels() []string {
	seen := make(map[string]bool, len(j.Candidates))
	var out []string
	for _, c := range j.Candidates {
		if !seen[c.Label] {
			seen[c.Label] = true
			out = append(out, c.Label)
		}
	}
	return out
}

// Preview returns the committed preview window as (start, length). A preview
// mix on the job wins over the defaults. A negative start is treated as 0 and
// a start past the end falls back to the default start.
func (j *Job) Preview(defaultStart, defaultLength float64) (start, length float64) {
	start, length = defaultStart, defaultLength
	if m := j.LastMix; m != nil && m.Kind == "preview" {
		if m.PreviewStart != nil {
			start = *m.PreviewStart
		}
		if m.PreviewSeconds != nil && *m.PreviewSeconds > 0 {
			length = *m.PreviewSeconds
		}
	}
	if start < 0 || math.IsNaN(start) {
		start = 0
	}
	if d := j.DurationSeconds; d > 0 && start >= d {
		start = math.Max(0, math.Min(defaultStart, d))
	}
	return start, length
}

// HasProcessed reports whether the job carries peaks for a processed output.
func (j *Job) HasProcessed() bool {
	return len(j.ProcessedPeaks) > 0
}

// Snapshot is the exported state of an editing session. It is written only on
// request and never read back as overrides.
type Snapshot struct {
	JobID    string                      `json:"job_id" yaml:"job_id"`
	Duration float64                     `json:"duration" yaml:"duration"`
	Preview  timeline.PreviewWindow      `json:"preview" yaml:"preview"`
	Segments []timeline.EffectiveSegment `json:"segments" yaml:"segments"`
}

// TakeSnapshot captures the exportable state of a controller.
func TakeSnapshot(c *timeline.Controller, jobID string) Snapshot {
	return Snapshot{
		JobID:    jobID,
		Duration: c.Duration(),
		Preview:  c.Preview.Window(),
		Segments: timeline.FiniteScores(c.Regions.Effective()),
	}
}

// WriteSnapshot encodes snap to w.
func WriteSnapshot(w io.Writer, format Format, snap Snapshot) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(snap); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

// ExportFile writes snap to path, choosing the encoding from the extension.
func ExportFile(path string, snap Snapshot) error {
	format, err := FormatFor(path)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating export: %w", err)
	}
	if err := WriteSnapshot(f, format, snap); err != nil {
		f.Close()
		return fmt.Errorf("writing export: %w", err)
	}
	return f.Close()
}

// Apply loads job into a controller. A new duration readies the engine, the
// candidates replace the segments and the preview mix seeds the window.
// Overrides whose segments survive are kept.
func Apply(c *timeline.Controller, job *Job, defaultStart, defaultLength float64) error {
	d, err := job.Duration()
	if err != nil {
		return err
	}
	if !c.Ready() || c.Err() != "" || d != c.Duration() {
		c.HandleReady(d)
	}
	c.SetSegments(job.Segments())
	c.SetPreview(job.Preview(defaultStart, defaultLength))
	return nil
}
