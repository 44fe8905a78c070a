package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Dicklesworthstone/wavedit/internal/output"
	"github.com/Dicklesworthstone/wavedit/internal/timeline"
)

type rulerOptions struct {
	Duration   float64
	Zoom       float64
	Format     string
	MajorsOnly bool
}

// RulerResponse is the structured form of the ruler command.
type RulerResponse struct {
	Duration     float64         `json:"duration" yaml:"duration"`
	Zoom         float64         `json:"zoom" yaml:"zoom"`
	ContentWidth float64         `json:"content_width" yaml:"content_width"`
	MajorStep    float64         `json:"major_step" yaml:"major_step"`
	MinorStep    float64         `json:"minor_step" yaml:"minor_step"`
	Ticks        []timeline.Tick `json:"ticks" yaml:"ticks"`
}

func newRulerCmd() *cobra.Command {
	var opts rulerOptions
	cmd := &cobra.Command{
		Use:   "ruler",
		Short: "Show the time ruler for a duration and zoom",
		Long: `Print the tick layout the timeline draws for a track: the major and minor
steps chosen for the zoom level and every tick with its label.

Examples:
  wavedit ruler --duration 42
  wavedit ruler --duration 600 --zoom 16 --majors-only
  wavedit ruler --duration 42 --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("zoom") {
				opts.Zoom = cfg.Timeline.DefaultZoom
			}
			return runRuler(cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().Float64Var(&opts.Duration, "duration", 0, "Track length in seconds")
	cmd.Flags().Float64Var(&opts.Zoom, "zoom", timeline.DefaultZoom, "Zoom in px/s (default from config)")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "table", "Output format: table, json, yaml")
	cmd.Flags().BoolVar(&opts.MajorsOnly, "majors-only", false, "List labelled ticks only")
	_ = cmd.MarkFlagRequired("duration")
	return cmd
}

func buildRuler(duration, zoom float64, majorsOnly bool) RulerResponse {
	spec := timeline.Ruler(duration, zoom)
	resp := RulerResponse{
		Duration:     duration,
		Zoom:         zoom,
		ContentWidth: duration * zoom,
		MajorStep:    spec.MajorStep,
		MinorStep:    spec.MinorStep,
		Ticks:        []timeline.Tick{},
	}
	for tick := range timeline.Ticks(duration, zoom) {
		if majorsOnly && !tick.IsMajor {
			continue
		}
		resp.Ticks = append(resp.Ticks, tick)
	}
	return resp
}

func runRuler(w io.Writer, opts rulerOptions) error {
	if opts.Duration <= 0 {
		return fmt.Errorf("--duration must be positive, got %g", opts.Duration)
	}
	format, err := output.ParseFormat(opts.Format)
	if err != nil {
		return err
	}
	if IsJSONOutput() {
		format = output.FormatJSON
	}

	limits := timeline.ZoomLimits{Min: cfg.Timeline.ZoomMin, Max: cfg.Timeline.ZoomMax}
	resp := buildRuler(opts.Duration, limits.Clamp(opts.Zoom), opts.MajorsOnly)

	if format != output.FormatTable {
		return output.Encode(w, format, resp)
	}

	summary := fmt.Sprintf("duration %s at %gpx/s (%gpx wide): major step %gs, minor step %gs, %s",
		output.Seconds(resp.Duration), resp.Zoom, resp.ContentWidth,
		resp.MajorStep, resp.MinorStep, output.CountStr(len(resp.Ticks), "tick", "ticks"))
	width := terminalWidth(os.Stdout)
	if width <= 0 {
		width = 80
	}
	fmt.Fprintln(w, output.Wrap(summary, width))

	t := output.NewTable(w, "TIME", "PX", "POS%", "KIND", "LABEL", "EDGE")
	for _, tick := range resp.Ticks {
		kind := "minor"
		if tick.IsMajor {
			kind = "major"
		}
		label := tick.Label
		if label == "" {
			label = "-"
		}
		t.AddRow(
			output.Seconds(tick.Time),
			strconv.FormatFloat(tick.Time*resp.Zoom, 'f', 1, 64),
			strconv.FormatFloat(tick.PositionPercent, 'f', 2, 64),
			kind,
			label,
			string(tick.Edge),
		)
	}
	t.Render()
	return nil
}
