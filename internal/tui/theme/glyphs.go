package theme

import (
	"os"
	"strings"
)

// Glyphs are the characters the editor draws with.
type Glyphs struct {
	Levels     []string // waveform bar heights, empty to full
	Playing    string
	Paused     string
	Cursor     string
	MajorTick  string
	MinorTick  string
	Handle     string
	PreviewBar string
	Thumb      string
	Track      string
	Edited     string
}

// Unicode uses block elements.
func Unicode() Glyphs {
	return Glyphs{
		Levels:     []string{" ", "▁", "▂", "▃", "▄", "▅", "▆", "▇", "█"},
		Playing:    "▶",
		Paused:     "⏸",
		Cursor:     "│",
		MajorTick:  "┃",
		MinorTick:  "╵",
		Handle:     "▐",
		PreviewBar: "━",
		Thumb:      "█",
		Track:      "░",
		Edited:     "•",
	}
}

// ASCII works on any terminal.
func ASCII() Glyphs {
	return Glyphs{
		Levels:     []string{" ", ".", ".", ":", ":", "|", "|", "#", "#"},
		Playing:    ">",
		Paused:     "=",
		Cursor:     "|",
		MajorTick:  "|",
		MinorTick:  "'",
		Handle:     "|",
		PreviewBar: "=",
		Thumb:      "#",
		Track:      "-",
		Edited:     "*",
	}
}

// UseUnicode decides between Unicode and ASCII glyphs. WAVEDIT_ASCII forces
// ASCII; otherwise the Linux console and dumb terminals get ASCII.
func UseUnicode() bool {
	switch strings.ToLower(os.Getenv("WAVEDIT_ASCII")) {
	case "1", "true", "yes":
		return false
	case "0", "false", "no":
		return true
	}
	switch os.Getenv("TERM") {
	case "linux", "dumb", "vt100":
		return false
	}
	return true
}

// CurrentGlyphs returns the glyph set for the environment.
func CurrentGlyphs() Glyphs {
	if UseUnicode() {
		return Unicode()
	}
	return ASCII()
}
