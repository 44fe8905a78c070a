package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/wordwrap"
)

// Table outputs tabular data in text format. Column widths are measured in
// terminal cells so labels with wide runes stay aligned.
type Table struct {
	writer   io.Writer
	headers  []string
	rows     [][]string
	widths   []int
	maxWidth int
}

// NewTable creates a new table with headers
func NewTable(w io.Writer, headers ...string) *Table {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = runewidth.StringWidth(h)
	}
	return &Table{
		writer:  w,
		headers: headers,
		rows:    [][]string{},
		widths:  widths,
	}
}

// SetMaxColumnWidth truncates cells wider than n cells. Zero disables it.
func (t *Table) SetMaxColumnWidth(n int) {
	t.maxWidth = n
}

// AddRow adds a row to the table
func (t *Table) AddRow(cols ...string) {
	t.rows = append(t.rows, cols)
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

func (t *Table) cell(s string) string {
	if t.maxWidth > 0 {
		return Truncate(s, t.maxWidth)
	}
	return s
}

// Render outputs the table
func (t *Table) Render() {
	widths := append([]int(nil), t.widths...)
	for _, row := range t.rows {
		for i, c := range row {
			if i < len(widths) {
				if w := runewidth.StringWidth(t.cell(c)); w > widths[i] {
					widths[i] = w
				}
			}
		}
	}

	writeRow := func(cols []string) {
		var b strings.Builder
		b.WriteString("  ")
		for i := range widths {
			c := ""
			if i < len(cols) {
				c = t.cell(cols[i])
			}
			if i > 0 {
				b.WriteString("  ")
			}
			if i == len(widths)-1 {
				b.WriteString(c)
			} else {
				b.WriteString(runewidth.FillRight(c, widths[i]))
			}
		}
		fmt.Fprintln(t.writer, strings.TrimRight(b.String(), " "))
	}

	writeRow(t.headers)
	seps := make([]string, len(widths))
	for i, w := range widths {
		seps[i] = strings.Repeat("-", w)
	}
	writeRow(seps)
	for _, row := range t.rows {
		writeRow(row)
	}
}

// Truncate shortens s to at most maxWidth terminal cells, ending with "..."
// when there is room for it.
func Truncate(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	if maxWidth <= 3 {
		return runewidth.Truncate(s, maxWidth, "")
	}
	return runewidth.Truncate(s, maxWidth, "...")
}

// Wrap word-wraps s at width cells.
func Wrap(s string, width int) string {
	if width <= 0 {
		return s
	}
	return wordwrap.String(s, width)
}

// Pluralize returns singular or plural form based on count
func Pluralize(count int, singular, plural string) string {
	if count == 1 {
		return singular
	}
	return plural
}

// CountStr returns "N item(s)" string
func CountStr(count int, singular, plural string) string {
	return fmt.Sprintf("%d %s", count, Pluralize(count, singular, plural))
}

// Seconds formats a time in seconds with millisecond precision.
func Seconds(v float64) string {
	return fmt.Sprintf("%.3fs", v)
}
