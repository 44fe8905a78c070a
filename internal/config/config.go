package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/Dicklesworthstone/wavedit/internal/timeline"
)

// ErrInvalid marks a configuration that failed validation.
var ErrInvalid = errors.New("invalid configuration")

// Config is the wavedit configuration.
type Config struct {
	Timeline TimelineConfig `toml:"timeline" json:"timeline"`
	Preview  PreviewConfig  `toml:"preview" json:"preview"`
	TUI      TUIConfig      `toml:"tui" json:"tui"`
	Serve    ServeConfig    `toml:"serve" json:"serve"`
	Log      LogConfig      `toml:"log" json:"log"`
}

// TimelineConfig tunes the editing engine.
type TimelineConfig struct {
	SnapThreshold     float64 `toml:"snap_threshold" json:"snap_threshold"`
	MinRegionSeconds  float64 `toml:"min_region_seconds" json:"min_region_seconds"`
	MinPreviewSeconds float64 `toml:"min_preview_seconds" json:"min_preview_seconds"`
	EchoEpsilon       float64 `toml:"echo_epsilon" json:"echo_epsilon"`
	PreviewTolerance  float64 `toml:"preview_tolerance" json:"preview_tolerance"`
	ZoomMin           float64 `toml:"zoom_min" json:"zoom_min"`
	ZoomMax           float64 `toml:"zoom_max" json:"zoom_max"`
	DefaultZoom       float64 `toml:"default_zoom" json:"default_zoom"`
	WheelStep         float64 `toml:"wheel_step" json:"wheel_step"`
	DragThresholdPx   float64 `toml:"drag_threshold_px" json:"drag_threshold_px"`
}

// DefaultTimelineConfig returns the stock engine settings.
func DefaultTimelineConfig() TimelineConfig {
	rc := timeline.DefaultRegionConfig()
	return TimelineConfig{
		SnapThreshold:     rc.SnapThreshold,
		MinRegionSeconds:  rc.MinLength,
		MinPreviewSeconds: timeline.DefaultPreviewMinLength,
		EchoEpsilon:       rc.EchoEpsilon,
		PreviewTolerance:  timeline.DefaultPreviewTolerance,
		ZoomMin:           timeline.MinZoom,
		ZoomMax:           timeline.MaxZoom,
		DefaultZoom:       timeline.DefaultZoom,
		WheelStep:         timeline.DefaultWheelStep,
		DragThresholdPx:   3,
	}
}

// PreviewConfig seeds the preview window when a job has no preview mix.
type PreviewConfig struct {
	DefaultStart  float64 `toml:"default_start" json:"default_start"`
	DefaultLength float64 `toml:"default_length" json:"default_length"`
}

// TUIConfig configures the terminal editor.
type TUIConfig struct {
	Theme          string  `toml:"theme" json:"theme"`
	CellPx         float64 `toml:"cell_px" json:"cell_px"`
	WaveformRows   int     `toml:"waveform_rows" json:"waveform_rows"`
	Mouse          bool    `toml:"mouse" json:"mouse"`
	MaxRegionLanes int     `toml:"max_region_lanes" json:"max_region_lanes"`
	TickMs         int     `toml:"tick_ms" json:"tick_ms"`
}

// ServeConfig configures the HTTP host.
type ServeConfig struct {
	Addr string `toml:"addr" json:"addr"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `toml:"level" json:"level"`
	Format string `toml:"format" json:"format"`
	File   string `toml:"file" json:"file"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Timeline: DefaultTimelineConfig(),
		Preview: PreviewConfig{
			DefaultStart:  0,
			DefaultLength: 10,
		},
		TUI: TUIConfig{
			Theme:          "auto",
			CellPx:         8,
			WaveformRows:   6,
			Mouse:          true,
			MaxRegionLanes: 3,
			TickMs:         50,
		},
		Serve: ServeConfig{Addr: "127.0.0.1:7420"},
		Log:   LogConfig{Level: "info", Format: "text"},
	}
}

// DefaultPath returns the default config file path
func DefaultPath() string {
	if env := os.Getenv("WAVEDIT_CONFIG"); env != "" {
		return ExpandHome(env)
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "wavedit", "config.toml")
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = os.TempDir()
	}
	return filepath.Join(home, ".config", "wavedit", "config.toml")
}

// LoadDotEnv loads .env files into the environment. Missing files are not an
// error; variables already set win over the file.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("loading env file: %w", err)
	}
	return nil
}

// Load builds the configuration: defaults, then the TOML file at path, then
// WAVEDIT_* environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	cfg := Default()

	if data, err := os.ReadFile(path); err == nil {
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	envFloat("WAVEDIT_SNAP_THRESHOLD", &cfg.Timeline.SnapThreshold)
	envFloat("WAVEDIT_MIN_REGION_SECONDS", &cfg.Timeline.MinRegionSeconds)
	envFloat("WAVEDIT_DEFAULT_ZOOM", &cfg.Timeline.DefaultZoom)
	envFloat("WAVEDIT_CELL_PX", &cfg.TUI.CellPx)
	envFloat("WAVEDIT_PREVIEW_LENGTH", &cfg.Preview.DefaultLength)

	if v := os.Getenv("WAVEDIT_THEME"); v != "" {
		cfg.TUI.Theme = v
	}
	if v := os.Getenv("WAVEDIT_MOUSE"); v != "" {
		cfg.TUI.Mouse = v == "1" || v == "true"
	}
	if v := os.Getenv("WAVEDIT_SERVE_ADDR"); v != "" {
		cfg.Serve.Addr = v
	}
	if v := os.Getenv("WAVEDIT_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("WAVEDIT_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("WAVEDIT_LOG_FILE"); v != "" {
		cfg.Log.File = v
	}
}

func envFloat(key string, dst *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

// CreateDefault writes the default config to DefaultPath. It refuses to
// overwrite an existing file.
func CreateDefault() (string, error) {
	path := DefaultPath()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("config file already exists: %s", path)
	}

	var buffer strings.Builder
	if err := Print(Default(), &buffer); err != nil {
		return "", err
	}

	if err := writeFileAtomic(path, []byte(buffer.String()), 0644); err != nil {
		return "", err
	}
	return path, nil
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Print writes cfg as a commented TOML file.
func Print(cfg *Config, w io.Writer) error {
	fmt.Fprintln(w, "# wavedit configuration")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[timeline]")
	fmt.Fprintln(w, "# Seconds within which a dragged boundary snaps to a neighbour or track edge")
	fmt.Fprintf(w, "snap_threshold = %s\n", formatFloat(cfg.Timeline.SnapThreshold))
	fmt.Fprintln(w, "# Shortest region an edit may leave behind")
	fmt.Fprintf(w, "min_region_seconds = %s\n", formatFloat(cfg.Timeline.MinRegionSeconds))
	fmt.Fprintf(w, "min_preview_seconds = %s\n", formatFloat(cfg.Timeline.MinPreviewSeconds))
	fmt.Fprintln(w, "# Tolerance for recognising the region lane echoing a correction")
	fmt.Fprintf(w, "echo_epsilon = %s\n", formatFloat(cfg.Timeline.EchoEpsilon))
	fmt.Fprintf(w, "preview_tolerance = %s\n", formatFloat(cfg.Timeline.PreviewTolerance))
	fmt.Fprintln(w, "# Zoom in pixels per second")
	fmt.Fprintf(w, "zoom_min = %s\n", formatFloat(cfg.Timeline.ZoomMin))
	fmt.Fprintf(w, "zoom_max = %s\n", formatFloat(cfg.Timeline.ZoomMax))
	fmt.Fprintf(w, "default_zoom = %s\n", formatFloat(cfg.Timeline.DefaultZoom))
	fmt.Fprintf(w, "wheel_step = %s\n", formatFloat(cfg.Timeline.WheelStep))
	fmt.Fprintf(w, "drag_threshold_px = %s\n", formatFloat(cfg.Timeline.DragThresholdPx))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[preview]")
	fmt.Fprintln(w, "# Used when the job has no preview mix")
	fmt.Fprintf(w, "default_start = %s\n", formatFloat(cfg.Preview.DefaultStart))
	fmt.Fprintf(w, "default_length = %s\n", formatFloat(cfg.Preview.DefaultLength))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[tui]")
	fmt.Fprintln(w, "# UI Theme (mocha, latte, auto)")
	fmt.Fprintf(w, "theme = %q\n", cfg.TUI.Theme)
	fmt.Fprintln(w, "# Engine pixels per terminal column")
	fmt.Fprintf(w, "cell_px = %s\n", formatFloat(cfg.TUI.CellPx))
	fmt.Fprintf(w, "waveform_rows = %d\n", cfg.TUI.WaveformRows)
	fmt.Fprintf(w, "mouse = %t\n", cfg.TUI.Mouse)
	fmt.Fprintf(w, "max_region_lanes = %d\n", cfg.TUI.MaxRegionLanes)
	fmt.Fprintln(w, "# Transport clock interval in milliseconds")
	fmt.Fprintf(w, "tick_ms = %d\n", cfg.TUI.TickMs)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[serve]")
	fmt.Fprintf(w, "addr = %q\n", cfg.Serve.Addr)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[log]")
	fmt.Fprintln(w, "# Level (debug, info, warn, error) and format (text, json)")
	fmt.Fprintf(w, "level = %q\n", cfg.Log.Level)
	fmt.Fprintf(w, "format = %q\n", cfg.Log.Format)
	if cfg.Log.File != "" {
		fmt.Fprintf(w, "file = %q\n", cfg.Log.File)
	} else {
		fmt.Fprintln(w, "# file = \"~/.cache/wavedit/wavedit.log\"")
	}
	return nil
}

func formatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// ExpandHome expands a leading ~ to the user's home directory.
func ExpandHome(path string) string {
	if path == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			return home
		}
		return path
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}

	return path
}

// Validate checks the configuration and returns every problem found, joined
// and wrapped in ErrInvalid.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalid)
	}

	var errs []error
	tl := cfg.Timeline

	if tl.SnapThreshold < 0 {
		errs = append(errs, fmt.Errorf("timeline.snap_threshold: must be non-negative, got %g", tl.SnapThreshold))
	}
	if tl.MinRegionSeconds <= 0 {
		errs = append(errs, fmt.Errorf("timeline.min_region_seconds: must be positive, got %g", tl.MinRegionSeconds))
	}
	if tl.MinPreviewSeconds <= 0 {
		errs = append(errs, fmt.Errorf("timeline.min_preview_seconds: must be positive, got %g", tl.MinPreviewSeconds))
	}
	if tl.EchoEpsilon <= 0 {
		errs = append(errs, fmt.Errorf("timeline.echo_epsilon: must be positive, got %g", tl.EchoEpsilon))
	}
	if tl.PreviewTolerance < 0 {
		errs = append(errs, fmt.Errorf("timeline.preview_tolerance: must be non-negative, got %g", tl.PreviewTolerance))
	}
	if tl.ZoomMin <= 0 || tl.ZoomMax < tl.ZoomMin {
		errs = append(errs, fmt.Errorf("timeline.zoom_min/zoom_max: need 0 < min <= max, got %g..%g", tl.ZoomMin, tl.ZoomMax))
	} else if tl.DefaultZoom < tl.ZoomMin || tl.DefaultZoom > tl.ZoomMax {
		errs = append(errs, fmt.Errorf("timeline.default_zoom: must be within [%g, %g], got %g", tl.ZoomMin, tl.ZoomMax, tl.DefaultZoom))
	}
	if tl.WheelStep <= 0 {
		errs = append(errs, fmt.Errorf("timeline.wheel_step: must be positive, got %g", tl.WheelStep))
	}
	if tl.DragThresholdPx < 0 {
		errs = append(errs, fmt.Errorf("timeline.drag_threshold_px: must be non-negative, got %g", tl.DragThresholdPx))
	}

	if cfg.Preview.DefaultStart < 0 {
		errs = append(errs, fmt.Errorf("preview.default_start: must be non-negative, got %g", cfg.Preview.DefaultStart))
	}
	if cfg.Preview.DefaultLength < tl.MinPreviewSeconds {
		errs = append(errs, fmt.Errorf("preview.default_length: must be at least min_preview_seconds (%g), got %g", tl.MinPreviewSeconds, cfg.Preview.DefaultLength))
	}

	switch strings.ToLower(cfg.TUI.Theme) {
	case "", "auto", "mocha", "latte":
	default:
		errs = append(errs, fmt.Errorf("tui.theme: must be mocha, latte or auto, got %q", cfg.TUI.Theme))
	}
	if cfg.TUI.CellPx <= 0 {
		errs = append(errs, fmt.Errorf("tui.cell_px: must be positive, got %g", cfg.TUI.CellPx))
	}
	if cfg.TUI.WaveformRows < 1 {
		errs = append(errs, fmt.Errorf("tui.waveform_rows: must be at least 1, got %d", cfg.TUI.WaveformRows))
	}
	if cfg.TUI.MaxRegionLanes < 1 {
		errs = append(errs, fmt.Errorf("tui.max_region_lanes: must be at least 1, got %d", cfg.TUI.MaxRegionLanes))
	}
	if cfg.TUI.TickMs < 10 {
		errs = append(errs, fmt.Errorf("tui.tick_ms: must be at least 10, got %d", cfg.TUI.TickMs))
	}

	if cfg.Serve.Addr == "" {
		errs = append(errs, fmt.Errorf("serve.addr: must not be empty"))
	}

	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level: must be debug, info, warn or error, got %q", cfg.Log.Level))
	}
	switch strings.ToLower(cfg.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: must be text or json, got %q", cfg.Log.Format))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

// Controller converts the timeline settings for the engine.
func (c *Config) Controller() timeline.ControllerConfig {
	cc := timeline.DefaultControllerConfig()
	cc.Region = timeline.RegionConfig{
		SnapThreshold: c.Timeline.SnapThreshold,
		MinLength:     c.Timeline.MinRegionSeconds,
		EchoEpsilon:   c.Timeline.EchoEpsilon,
	}
	cc.PreviewMinLength = c.Timeline.MinPreviewSeconds
	cc.PreviewTolerance = c.Timeline.PreviewTolerance
	cc.Zoom = timeline.ZoomLimits{Min: c.Timeline.ZoomMin, Max: c.Timeline.ZoomMax}
	cc.InitialZoom = c.Timeline.DefaultZoom
	cc.WheelStep = c.Timeline.WheelStep
	cc.DragThresholdPx = c.Timeline.DragThresholdPx
	return cc
}
