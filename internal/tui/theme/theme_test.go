package theme

import (
	"strings"
	"testing"
)

func TestForName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"mocha", "mocha"},
		{"DARK", "mocha"},
		{"latte", "latte"},
		{" light ", "latte"},
	}
	for _, tt := range tests {
		if got := ForName(tt.in).Name; got != tt.want {
			t.Errorf("ForName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if name := ForName("auto").Name; name != "mocha" && name != "latte" {
		t.Errorf("auto resolved to %q", name)
	}
}

func TestCurrent_EnvWins(t *testing.T) {
	t.Setenv("WAVEDIT_THEME", "latte")
	if got := Current("mocha").Name; got != "latte" {
		t.Errorf("Current = %q, want latte", got)
	}
	t.Setenv("WAVEDIT_THEME", "")
	if got := Current("mocha").Name; got != "mocha" {
		t.Errorf("Current = %q, want mocha", got)
	}
}

func TestRegionColor(t *testing.T) {
	th := Mocha()
	a, b := th.RegionColor(0), th.RegionColor(360)
	if a != b {
		t.Errorf("hue 0 and 360 differ: %s %s", a, b)
	}
	if th.RegionColor(-120) != th.RegionColor(240) {
		t.Error("negative hue not wrapped")
	}
	if c := string(th.RegionColor(200)); !strings.HasPrefix(c, "#") || len(c) != 7 {
		t.Errorf("color = %q, want #rrggbb", c)
	}
	if Mocha().RegionColor(90) == Latte().RegionColor(90) {
		t.Error("palettes should use different region lightness")
	}
}

func TestNoColor(t *testing.T) {
	t.Setenv("WAVEDIT_NO_COLOR", "true")
	if !NoColor() {
		t.Error("WAVEDIT_NO_COLOR=true should disable colour")
	}
}

func TestUseUnicode(t *testing.T) {
	tests := []struct {
		ascii, term string
		want        bool
	}{
		{"1", "xterm-256color", false},
		{"0", "linux", true},
		{"", "linux", false},
		{"", "dumb", false},
		{"", "xterm-256color", true},
	}
	for _, tt := range tests {
		t.Setenv("WAVEDIT_ASCII", tt.ascii)
		t.Setenv("TERM", tt.term)
		if got := UseUnicode(); got != tt.want {
			t.Errorf("WAVEDIT_ASCII=%q TERM=%q: UseUnicode = %v, want %v", tt.ascii, tt.term, got, tt.want)
		}
	}
}

func TestGlyphSetsComplete(t *testing.T) {
	for name, g := range map[string]Glyphs{"unicode": Unicode(), "ascii": ASCII()} {
		if len(g.Levels) != 9 {
			t.Errorf("%s: %d levels, want 9", name, len(g.Levels))
		}
		for _, s := range []string{g.Playing, g.Paused, g.Cursor, g.MajorTick, g.MinorTick, g.Handle, g.PreviewBar, g.Thumb, g.Track, g.Edited} {
			if s == "" {
				t.Errorf("%s: empty glyph", name)
			}
		}
	}
}
