package tagscan

import (
	"strings"
)

// CellSeparator joins table cells in canonical form.
const CellSeparator = " | "

// SplitRow splits a table row line into unescaped cells. Cells escape the
// pipe as `\|` and the backslash as `\\`.
func SplitRow(line string) []string {
	var cells []string
	var cur strings.Builder
	escaped := false
	for _, r := range line {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == '|':
			cells = append(cells, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	if escaped {
		cur.WriteByte('\\')
	}
	cells = append(cells, strings.TrimSpace(cur.String()))
	return cells
}

// JoinRow renders cells as a canonical row line, escaping pipes and
// backslashes.
func JoinRow(cells []string) string {
	escaped := make([]string, len(cells))
	for i, cell := range cells {
		var out strings.Builder
		for _, r := range cell {
			if r == '|' || r == '\\' {
				out.WriteByte('\\')
			}
			out.WriteRune(r)
		}
		escaped[i] = out.String()
	}
	return strings.Join(escaped, CellSeparator)
}
