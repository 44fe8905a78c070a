package cli

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Dicklesworthstone/wavedit/internal/output"
	"github.com/Dicklesworthstone/wavedit/internal/source"
	"github.com/Dicklesworthstone/wavedit/internal/timeline"
)

type inspectOptions struct {
	Format string
	Export string
	ByTime bool
}

func newInspectCmd() *cobra.Command {
	var opts inspectOptions
	cmd := &cobra.Command{
		Use:   "inspect <job-file>",
		Short: "Show the effective segments of a job",
		Long: `Load a job the way the editor does and print its effective segments:
identity keys, hues, label visibility and the committed preview window.

Examples:
  wavedit inspect job.json
  wavedit inspect job.json --format yaml
  wavedit inspect job.json --export snapshot.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd.OutOrStdout(), args[0], opts)
		},
	}
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "table", "Output format: table, json, yaml")
	cmd.Flags().StringVar(&opts.Export, "export", "", "Also write a snapshot to this .json or .yaml file")
	cmd.Flags().BoolVar(&opts.ByTime, "by-time", false, "Sort the table by start time instead of input order")
	return cmd
}

func runInspect(w io.Writer, path string, opts inspectOptions) error {
	format, err := output.ParseFormat(opts.Format)
	if err != nil {
		return err
	}
	if IsJSONOutput() {
		format = output.FormatJSON
	}

	job, err := source.Load(path)
	if err != nil {
		return fmt.Errorf("loading job: %w", err)
	}
	c := timeline.NewController(cfg.Controller(), nil, nil)
	if err := source.Apply(c, job, cfg.Preview.DefaultStart, cfg.Preview.DefaultLength); err != nil {
		return err
	}
	snap := source.TakeSnapshot(c, job.ID)

	if opts.Export != "" {
		if err := source.ExportFile(opts.Export, snap); err != nil {
			return err
		}
	}

	if format != output.FormatTable {
		return output.Encode(w, format, snap)
	}

	fmt.Fprintf(w, "%s  %s  %s  preview %s-%s\n",
		job.ID,
		output.Seconds(snap.Duration),
		output.CountStr(len(snap.Segments), "segment", "segments"),
		output.Seconds(snap.Preview.Start),
		output.Seconds(snap.Preview.End),
	)
	if len(snap.Segments) == 0 {
		return nil
	}

	segs := snap.Segments
	if opts.ByTime {
		segs = append([]timeline.EffectiveSegment(nil), segs...)
		sort.SliceStable(segs, func(i, j int) bool { return segs[i].T0 < segs[j].T0 })
	}

	t := output.NewTable(w, "LABEL", "START", "END", "LENGTH", "SCORE", "HUE", "FLAGS", "REGION")
	if width := terminalWidth(os.Stdout); width > 0 {
		t.SetMaxColumnWidth(max(12, width/4))
	}
	for _, s := range segs {
		t.AddRow(
			s.Label,
			output.Seconds(s.T0),
			output.Seconds(s.T1),
			output.Seconds(s.Length()),
			fmt.Sprintf("%.2f", s.Score),
			fmt.Sprintf("%d", s.Hue),
			segmentFlags(s),
			s.RegionID,
		)
	}
	t.Render()
	if opts.Export != "" {
		fmt.Fprintf(w, "exported snapshot to %s\n", opts.Export)
	}
	return nil
}

// segmentFlags renders the boolean columns compactly: L for a drawn label,
// E for a user correction.
func segmentFlags(s timeline.EffectiveSegment) string {
	flags := ""
	if s.ShowLabel {
		flags += "L"
	}
	if s.Edited {
		flags += "E"
	}
	if flags == "" {
		return "-"
	}
	return flags
}

// terminalWidth returns the width of f, or 0 when f is not a terminal.
func terminalWidth(f *os.File) int {
	if !isTerminal(f) {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return width
}
