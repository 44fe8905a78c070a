// Package theme provides the colour palettes and glyphs used by the terminal
// editor.
package theme

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/muesli/termenv"
)

// Theme is a Catppuccin-style palette.
type Theme struct {
	Name string

	Base     lipgloss.Color
	Surface0 lipgloss.Color
	Surface1 lipgloss.Color
	Overlay  lipgloss.Color
	Text     lipgloss.Color
	Subtext  lipgloss.Color

	Primary  lipgloss.Color
	Lavender lipgloss.Color
	Blue     lipgloss.Color
	Green    lipgloss.Color
	Yellow   lipgloss.Color
	Peach    lipgloss.Color
	Red      lipgloss.Color
	Pink     lipgloss.Color
	Mauve    lipgloss.Color

	// Lightness used for region fills, so hues read on either background.
	RegionLightness float64
}

// Mocha is the dark palette.
func Mocha() Theme {
	return Theme{
		Name:            "mocha",
		Base:            "#1e1e2e",
		Surface0:        "#313244",
		Surface1:        "#45475a",
		Overlay:         "#6c7086",
		Text:            "#cdd6f4",
		Subtext:         "#a6adc8",
		Primary:         "#89b4fa",
		Lavender:        "#b4befe",
		Blue:            "#89b4fa",
		Green:           "#a6e3a1",
		Yellow:          "#f9e2af",
		Peach:           "#fab387",
		Red:             "#f38ba8",
		Pink:            "#f5c2e7",
		Mauve:           "#cba6f7",
		RegionLightness: 0.35,
	}
}

// Latte is the light palette.
func Latte() Theme {
	return Theme{
		Name:            "latte",
		Base:            "#eff1f5",
		Surface0:        "#ccd0da",
		Surface1:        "#bcc0cc",
		Overlay:         "#9ca0b0",
		Text:            "#4c4f69",
		Subtext:         "#6c6f85",
		Primary:         "#1e66f5",
		Lavender:        "#7287fd",
		Blue:            "#1e66f5",
		Green:           "#40a02b",
		Yellow:          "#df8e1d",
		Peach:           "#fe640b",
		Red:             "#d20f39",
		Pink:            "#ea76cb",
		Mauve:           "#8839ef",
		RegionLightness: 0.75,
	}
}

// ForName resolves "mocha", "latte" or "auto". Auto picks by the terminal
// background; unknown names fall back to auto.
func ForName(name string) Theme {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "mocha", "dark":
		return Mocha()
	case "latte", "light":
		return Latte()
	}
	if lipgloss.HasDarkBackground() {
		return Mocha()
	}
	return Latte()
}

// Current resolves the theme from WAVEDIT_THEME, falling back to fallback.
func Current(fallback string) Theme {
	if env := os.Getenv("WAVEDIT_THEME"); env != "" {
		return ForName(env)
	}
	return ForName(fallback)
}

// RegionColor returns the fill colour for a region hue in degrees.
func (t Theme) RegionColor(hue int) lipgloss.Color {
	h := float64(((hue % 360) + 360) % 360)
	return lipgloss.Color(colorful.Hsl(h, 0.7, t.RegionLightness).Hex())
}

// NoColor reports whether colour output was disabled through NO_COLOR or
// WAVEDIT_NO_COLOR.
func NoColor() bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return true
	}
	v := strings.ToLower(os.Getenv("WAVEDIT_NO_COLOR"))
	return v == "1" || v == "true"
}

// DisableColor switches lipgloss to plain ASCII output.
func DisableColor() {
	lipgloss.SetColorProfile(termenv.Ascii)
}
