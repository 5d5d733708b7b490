package scoring

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

// scoreTable lays out a label column followed by right-aligned value columns.
type scoreTable struct {
	headers []string
	rows    [][]string
}

func (t *scoreTable) add(cells ...string) {
	t.rows = append(t.rows, cells)
}

// columnWidths measures terminal cells, so wide runes in labels line up.
func (t *scoreTable) columnWidths() []int {
	widths := make([]int, len(t.headers))
	for _, row := range append([][]string{t.headers}, t.rows...) {
		for i, cell := range row {
			if i >= len(widths) {
				widths = append(widths, 0)
			}
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}
	return widths
}

func (t *scoreTable) lines() []string {
	widths := t.columnWidths()
	if len(widths) == 0 {
		return nil
	}
	out := make([]string, 0, len(t.rows)+1)
	if len(t.headers) > 0 {
		out = append(out, alignRow(t.headers, widths))
	}
	for _, row := range t.rows {
		out = append(out, alignRow(row, widths))
	}
	return out
}

func (t *scoreTable) write(w io.Writer) error {
	for _, line := range t.lines() {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func alignRow(row []string, widths []int) string {
	cells := make([]string, len(widths))
	for i, width := range widths {
		cell := ""
		if i < len(row) {
			cell = row[i]
		}
		if i == 0 {
			cells[i] = runewidth.FillRight(cell, width)
		} else {
			cells[i] = runewidth.FillLeft(cell, width)
		}
	}
	return strings.Join(cells, "  ")
}
