package monitor

import "strings"

// column is one table column, matching the teacher's tui.Column shape.
type column struct {
	title string
	width int
}

// table renders string rows under fixed-width columns, the teacher's
// hand-rolled tui.Table/RenderSimple pattern (no bubbles/table dependency,
// since the teacher didn't reach for one either).
type table struct {
	columns []column
	rows    [][]string
	styles  *styles
}

func newTable(s *styles, columns ...column) *table {
	return &table{columns: columns, styles: s}
}

func (t *table) addRow(row ...string) {
	t.rows = append(t.rows, row)
}

func (t *table) render() string {
	var b strings.Builder

	headerCells := make([]string, len(t.columns))
	for i, c := range t.columns {
		headerCells[i] = t.styles.tableHeader.Width(c.width).Render(c.title)
	}
	b.WriteString(strings.Join(headerCells, " ") + "\n")

	for _, c := range t.columns {
		b.WriteString(strings.Repeat("─", c.width) + " ")
	}
	b.WriteString("\n")

	for _, row := range t.rows {
		cells := make([]string, len(t.columns))
		for i, c := range t.columns {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			if len(cell) > c.width && c.width > 3 {
				cell = cell[:c.width-3] + "..."
			}
			cells[i] = t.styles.tableCell.Width(c.width).Render(cell)
		}
		b.WriteString(strings.Join(cells, " ") + "\n")
	}
	return b.String()
}
