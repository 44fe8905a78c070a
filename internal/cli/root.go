package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/Dicklesworthstone/wavedit/internal/config"
	"github.com/Dicklesworthstone/wavedit/internal/logging"
	"github.com/Dicklesworthstone/wavedit/internal/output"
	"github.com/Dicklesworthstone/wavedit/internal/tui/theme"
)

var (
	cfgFile string
	cfg     *config.Config

	// Global JSON output flag - inherited by all subcommands
	jsonOutput bool

	// Global color control flag - inherited by all subcommands
	noColor bool

	// Overrides [log] level for this invocation
	logLevel string

	// Build information - set by goreleaser via ldflags
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
	BuiltBy = "unknown"
)

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wavedit",
		Short: "Edit detected sound regions on an audio waveform timeline",
		Long: `wavedit loads a detector job (candidate labels with their time ranges) and
lets you correct the detected regions on a zoomable waveform timeline.

Quick Start:
  wavedit edit job.json              # Terminal editor with mouse support
  wavedit inspect job.json           # Table of effective segments
  wavedit serve job.json             # JSON API + event stream for a browser UI
  wavedit ruler --duration 90        # Show the tick layout for a zoom level`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if noColor || theme.NoColor() {
				os.Setenv("WAVEDIT_NO_COLOR", "1")
				theme.DisableColor()
			}
			if err := config.LoadDotEnv(); err != nil {
				return err
			}

			loaded, err := config.Load(cfgFile)
			if err != nil {
				if errors.Is(err, config.ErrInvalid) || cfgFile != "" {
					return err
				}
				// Use defaults if the default config file is unreadable
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v (using defaults)\n", err)
				loaded = config.Default()
			}
			if logLevel != "" {
				loaded.Log.Level = logLevel
			}
			cfg = loaded
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.config/wavedit/config.toml)")
	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format (machine-readable)")
	cmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level override: debug, info, warn, error")

	cmd.AddCommand(
		newEditCmd(),
		newInspectCmd(),
		newRulerCmd(),
		newServeCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)
	return cmd
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		// SilenceErrors is set so JSON mode can report errors itself
		if jsonOutput {
			_ = printJSON(os.Stdout, map[string]string{"error": err.Error()})
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		return err
	}
	return nil
}

// IsJSONOutput reports whether --json was given.
func IsJSONOutput() bool {
	return jsonOutput
}

func printJSON(w io.Writer, v interface{}) error {
	return output.Encode(w, output.FormatJSON, v)
}

// newLogger builds the logger for a command. w is used when no log file is
// configured.
func newLogger(w io.Writer) (*slog.Logger, func(), error) {
	if cfg.Log.File == "" {
		return logging.New(cfg.Log.Level, cfg.Log.Format, w), func() {}, nil
	}
	f, err := logging.OpenFile(config.ExpandHome(cfg.Log.File))
	if err != nil {
		return nil, nil, err
	}
	return logging.New(cfg.Log.Level, cfg.Log.Format, f), func() { f.Close() }, nil
}

// VersionResponse is the JSON form of the version command.
type VersionResponse struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuiltAt   string `json:"built_at"`
	BuiltBy   string `json:"built_by"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

func newVersionCmd() *cobra.Command {
	var short bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVersion(cmd.OutOrStdout(), short)
		},
	}
	cmd.Flags().BoolVar(&short, "short", false, "Print only the version number")
	return cmd
}

func runVersion(w io.Writer, short bool) error {
	resp := VersionResponse{
		Version:   Version,
		Commit:    Commit,
		BuiltAt:   Date,
		BuiltBy:   BuiltBy,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if IsJSONOutput() {
		return printJSON(w, resp)
	}
	if short {
		fmt.Fprintln(w, resp.Version)
		return nil
	}
	fmt.Fprintf(w, "wavedit version %s\n", resp.Version)
	fmt.Fprintf(w, "  commit:    %s\n", resp.Commit)
	fmt.Fprintf(w, "  built:     %s\n", resp.BuiltAt)
	fmt.Fprintf(w, "  builder:   %s\n", resp.BuiltBy)
	fmt.Fprintf(w, "  go:        %s\n", resp.GoVersion)
	fmt.Fprintf(w, "  platform:  %s\n", resp.Platform)
	return nil
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.CreateDefault()
			if err != nil {
				return err
			}
			if IsJSONOutput() {
				return printJSON(cmd.OutOrStdout(), map[string]string{"path": path})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created config file: %s\n", path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print configuration file path",
		Run: func(cmd *cobra.Command, args []string) {
			path := cfgFile
			if path == "" {
				path = config.DefaultPath()
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if IsJSONOutput() {
				return printJSON(cmd.OutOrStdout(), cfg)
			}
			return config.Print(cfg, cmd.OutOrStdout())
		},
	})

	return cmd
}
