package editor

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/truncate"

	"github.com/Dicklesworthstone/wavedit/internal/events"
	"github.com/Dicklesworthstone/wavedit/internal/timeline"
)

// row is one line of styled cells. Cells hold a glyph and an index into the
// row's style table; wide runes leave an empty continuation cell.
type row struct {
	glyphs []string
	style  []int
	styles []lipgloss.Style
}

func newRow(width int, base lipgloss.Style, fill string) *row {
	r := &row{glyphs: make([]string, width), style: make([]int, width), styles: []lipgloss.Style{base}}
	for i := range r.glyphs {
		r.glyphs[i] = fill
	}
	return r
}

func (r *row) addStyle(s lipgloss.Style) int {
	r.styles = append(r.styles, s)
	return len(r.styles) - 1
}

func (r *row) set(col int, glyph string, style int) {
	if col >= 0 && col < len(r.glyphs) {
		r.glyphs[col] = glyph
		r.style[col] = style
	}
}

// text writes s from col, clipped to [col, limit).
func (r *row) text(col, limit int, s string, style int) {
	if limit > len(r.glyphs) {
		limit = len(r.glyphs)
	}
	for _, ch := range s {
		w := runewidth.RuneWidth(ch)
		if w == 0 {
			continue
		}
		if col+w > limit {
			return
		}
		if col >= 0 {
			r.set(col, string(ch), style)
			for k := 1; k < w; k++ {
				r.set(col+k, "", style)
			}
		}
		col += w
	}
}

func (r *row) String() string {
	var b strings.Builder
	start := 0
	for i := 1; i <= len(r.glyphs); i++ {
		if i < len(r.glyphs) && r.style[i] == r.style[start] {
			continue
		}
		b.WriteString(r.styles[r.style[start]].Render(strings.Join(r.glyphs[start:i], "")))
		start = i
	}
	return b.String()
}

// column returns the screen column of a content-space pixel offset.
func (m *Model) column(px float64, o timeline.Offsets) int {
	return int(math.Floor((px - o.ScrollOffset) / m.cellPx))
}

// View implements tea.Model
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width <= 0 {
		return "loading…"
	}
	st := m.ctrl.State()
	l := m.layout()

	lines := make([]string, 0, l.help+1)
	lines = append(lines, m.renderStatus(st))
	ticks, labels := m.renderRuler(st)
	lines = append(lines, ticks, labels)
	lines = append(lines, m.renderWaveform(st, l.waveRows)...)
	lines = append(lines, m.renderRegions(st)...)
	lines = append(lines, m.renderPreview(st))
	lines = append(lines, m.renderThumb(st))
	lines = append(lines, m.help.View(m.keys))
	return strings.Join(lines, "\n")
}

func (m *Model) renderStatus(st timeline.State) string {
	t := m.theme
	if st.Error != "" {
		msg := "engine error: " + st.Error
		return lipgloss.NewStyle().Foreground(t.Red).Bold(true).Render(truncate.StringWithTail(msg, uint(m.width), "…"))
	}

	play := m.glyphs.Paused
	if st.Playing {
		play = m.glyphs.Playing
	}
	parts := []string{
		m.job.ID,
		fmt.Sprintf("%s %s / %s", play, timeline.FormatClock(st.CurrentTime), timeline.FormatClock(st.Duration)),
		fmt.Sprintf("%.0fpx/s", st.Zoom),
		st.Mode,
		m.tracks.Active().String(),
		fmt.Sprintf("preview %s–%s", timeline.FormatClock(st.Preview.Start), timeline.FormatClock(st.Preview.End)),
	}
	if from, to := m.ctrl.Viewport().VisibleRange(st.Duration); to > from {
		parts = append(parts, fmt.Sprintf("view %s–%s", timeline.FormatClock(from), timeline.FormatClock(to)))
	}
	if st.Selected != "" {
		if seg, ok := m.ctrl.Regions.Lookup(st.Selected); ok {
			parts = append(parts, fmt.Sprintf("%s %.3f–%.3f", seg.Label, seg.T0, seg.T1))
		}
	}
	if m.loadError != "" {
		parts = append(parts, "reload failed: "+m.loadError)
	} else if ev, ok := m.bus.Last(); ok {
		parts = append(parts, describeEvent(ev))
	}
	line := strings.Join(parts, "  ")
	return lipgloss.NewStyle().Foreground(t.Text).Render(truncate.StringWithTail(line, uint(m.width), "…"))
}

func describeEvent(ev events.Event) string {
	switch {
	case ev.T0 != nil && ev.T1 != nil:
		return fmt.Sprintf("%s %s %.3f–%.3f", ev.Type, ev.Label, *ev.T0, *ev.T1)
	case ev.Start != nil && ev.End != nil:
		return fmt.Sprintf("%s %.3f–%.3f", ev.Type, *ev.Start, *ev.End)
	case ev.Message != "":
		return ev.Type + " " + ev.Message
	}
	return ev.Type
}

func (m *Model) renderRuler(st timeline.State) (string, string) {
	t := m.theme
	o := m.ruler.offsets
	tickRow := newRow(m.width, lipgloss.NewStyle(), " ")
	labelRow := newRow(m.width, lipgloss.NewStyle(), " ")
	major := tickRow.addStyle(lipgloss.NewStyle().Foreground(t.Subtext))
	minor := tickRow.addStyle(lipgloss.NewStyle().Foreground(t.Overlay))
	label := labelRow.addStyle(lipgloss.NewStyle().Foreground(t.Subtext))

	lastEnd := -1
	for tk := range timeline.Ticks(st.Duration, st.Zoom) {
		col := m.column(tk.PositionPercent/100*o.ContentWidth, o)
		if col == m.width && tk.Edge == timeline.EdgeRight {
			col--
		}
		if col < 0 || col >= m.width {
			continue
		}
		if !tk.IsMajor {
			tickRow.set(col, m.glyphs.MinorTick, minor)
			continue
		}
		tickRow.set(col, m.glyphs.MajorTick, major)

		w := runewidth.StringWidth(tk.Label)
		start := col
		switch tk.Edge {
		case timeline.EdgeCenter:
			start = col - w/2
		case timeline.EdgeRight:
			start = col - w + 1
		}
		if start < 0 {
			start = 0
		}
		if start+w > m.width {
			start = m.width - w
		}
		if start <= lastEnd {
			continue
		}
		labelRow.text(start, m.width, tk.Label, label)
		lastEnd = start + w
	}
	return tickRow.String(), labelRow.String()
}

func (m *Model) renderWaveform(st timeline.State, rows int) []string {
	t := m.theme
	peaks := m.peaks()
	o := st.Offsets
	mapper := m.ctrl.Mapper()
	cursorCol := -1
	if px, ok := mapper.TimeToOffset(st.CurrentTime); ok {
		cursorCol = m.column(px, o)
	}
	pw := st.Preview

	waveStyle := func(key int) lipgloss.Style {
		style := lipgloss.NewStyle().Foreground(t.Overlay)
		if key&1 != 0 {
			style = style.Foreground(t.Primary)
		}
		if key&2 != 0 {
			style = style.Background(t.Surface0)
		}
		if key&4 != 0 {
			style = style.Foreground(t.Yellow)
		}
		return style
	}
	out := make([]*row, rows)
	cache := make([]map[int]int, rows)
	for i := range out {
		out[i] = newRow(m.width, lipgloss.NewStyle(), " ")
		cache[i] = make(map[int]int)
	}
	levels := len(m.glyphs.Levels) - 1
	for col := 0; col < m.width; col++ {
		x0 := o.ScrollOffset + float64(col)*m.cellPx
		t0, ok := mapper.OffsetToTime(x0)
		if !ok || x0 >= o.ContentWidth {
			break
		}
		t1, _ := mapper.OffsetToTime(x0 + m.cellPx)
		amp := peakIn(peaks, t0, t1, st.Duration)

		key := 0
		if t0 <= st.CurrentTime {
			key |= 1
		}
		if t1 > pw.Start && t0 < pw.End {
			key |= 2
		}
		isCursor := col == cursorCol
		if isCursor {
			key |= 4
		}

		fill := amp * float64(rows*levels)
		for r := 0; r < rows; r++ {
			fromBottom := rows - 1 - r
			level := int(math.Round(clampf(fill-float64(fromBottom*levels), 0, float64(levels))))
			glyph := m.glyphs.Levels[level]
			if isCursor && level == 0 {
				glyph = m.glyphs.Cursor
			}
			idx, ok := cache[r][key]
			if !ok {
				idx = out[r].addStyle(waveStyle(key))
				cache[r][key] = idx
			}
			out[r].set(col, glyph, idx)
		}
	}

	lines := make([]string, rows)
	for i, r := range out {
		lines[i] = r.String()
	}
	return lines
}

// peakIn returns the largest peak covering [t0, t1). Peaks are spread evenly
// over duration.
func peakIn(peaks []float64, t0, t1, duration float64) float64 {
	n := len(peaks)
	if n == 0 || duration <= 0 {
		return 0
	}
	i0 := int(math.Floor(t0 / duration * float64(n)))
	i1 := int(math.Ceil(t1 / duration * float64(n)))
	if i0 < 0 {
		i0 = 0
	}
	if i1 <= i0 {
		i1 = i0 + 1
	}
	if i1 > n {
		i1 = n
	}
	if i0 >= n {
		i0 = n - 1
	}
	amp := 0.0
	for _, p := range peaks[i0:i1] {
		if !math.IsNaN(p) {
			amp = math.Max(amp, math.Abs(p))
		}
	}
	return math.Min(amp, 1)
}

func (m *Model) renderRegions(st timeline.State) []string {
	t := m.theme
	o := m.lanes.offsets
	mapper := m.ctrl.Mapper()
	n := m.regionLanes()
	rows := make([]*row, n)
	for i := range rows {
		rows[i] = newRow(m.width, lipgloss.NewStyle(), " ")
	}

	lanes := assignLanes(st.Segments, n)
	for i, seg := range st.Segments {
		start, end := seg.T0, seg.T1
		if r, ok := m.ctrl.Lane.Get(seg.RegionID); ok {
			start, end = r.Start, r.End
		}
		x0, ok := mapper.TimeToOffset(start)
		if !ok {
			continue
		}
		x1, _ := mapper.TimeToOffset(end)
		c0, c1 := m.column(x0, o), m.column(x1, o)
		if c1 <= c0 {
			c1 = c0 + 1
		}
		if c1 <= 0 || c0 >= m.width {
			continue
		}

		r := rows[lanes[i]]
		style := lipgloss.NewStyle().Background(t.RegionColor(seg.Hue)).Foreground(t.Text)
		if seg.RegionID == st.Selected {
			style = style.Bold(true).Underline(true)
		}
		idx := r.addStyle(style)
		for c := c0; c < c1; c++ {
			r.set(c, " ", idx)
		}

		text := ""
		if seg.Edited {
			text = m.glyphs.Edited
		}
		if seg.ShowLabel {
			text += seg.Label
		}
		from := c0
		if from < 0 {
			from = 0
		}
		if span := c1 - from; span > 0 && text != "" {
			r.text(from, c1, runewidth.Truncate(text, span, "…"), idx)
		}
	}

	lines := make([]string, n)
	for i, r := range rows {
		lines[i] = r.String()
	}
	return lines
}

func (m *Model) renderPreview(st timeline.State) string {
	t := m.theme
	o := m.preview.offsets
	mapper := m.ctrl.Mapper()
	r := newRow(m.width, lipgloss.NewStyle(), " ")

	x0, ok := mapper.TimeToOffset(st.Preview.Start)
	if !ok || st.Preview.Length() <= 0 {
		return r.String()
	}
	x1, _ := mapper.TimeToOffset(st.Preview.End)
	c0, c1 := m.column(x0, o), m.column(x1, o)
	if c1 <= c0 {
		c1 = c0 + 1
	}

	style := lipgloss.NewStyle().Foreground(t.Peach)
	if st.PreviewDragging {
		style = style.Bold(true)
	}
	bar := r.addStyle(style)
	handle := r.addStyle(style.Foreground(t.Yellow))
	for c := c0; c < c1; c++ {
		r.set(c, m.glyphs.PreviewBar, bar)
	}
	r.set(c0, m.glyphs.Handle, handle)
	r.set(c1-1, m.glyphs.Handle, handle)
	return r.String()
}

func (m *Model) renderThumb(st timeline.State) string {
	t := m.theme
	r := newRow(m.width, lipgloss.NewStyle().Foreground(t.Surface1), m.glyphs.Track)
	if !st.Thumb.Visible {
		return r.String()
	}
	thumb := r.addStyle(lipgloss.NewStyle().Foreground(t.Lavender))
	left := int(math.Round(st.Thumb.LeftPercent / 100 * float64(m.width)))
	width := int(math.Max(1, math.Round(st.Thumb.WidthPercent/100*float64(m.width))))
	for c := left; c < left+width; c++ {
		r.set(c, m.glyphs.Thumb, thumb)
	}
	return r.String()
}
