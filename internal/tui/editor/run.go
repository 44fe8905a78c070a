package editor

import (
	"context"
	"io"

	tea "github.com/charmbracelet/bubbletea"
)

// RunOptions configures the terminal program.
type RunOptions struct {
	Input  io.Reader
	Output io.Writer
	Mouse  bool
}

// Run drives m in a full-screen program until the user quits or ctx ends.
func Run(ctx context.Context, m *Model, ro RunOptions) error {
	opts := []tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}
	if ro.Mouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	if ro.Input != nil {
		opts = append(opts, tea.WithInput(ro.Input))
	}
	if ro.Output != nil {
		opts = append(opts, tea.WithOutput(ro.Output))
	}
	_, err := tea.NewProgram(m, opts...).Run()
	if ctx.Err() != nil {
		return nil
	}
	return err
}
