package models

import "strconv"

// RawTable is a scraped table before any column reconciliation.
// Headers may be empty or disagree with the row width.
type RawTable struct {
	Headers []string
	Rows    [][]Cell
}

// Width returns the widest row
func (t *RawTable) Width() int {
	width := 0
	for _, row := range t.Rows {
		if len(row) > width {
			width = len(row)
		}
	}
	return width
}

// Table converts the raw table into named columns. Headers are applied only
// when their count matches the row width, otherwise columns are positional
// ("0", "1", ...).
func (t *RawTable) Table() *Table {
	width := t.Width()

	columns := make([]string, width)
	if len(t.Headers) == width && width > 0 {
		copy(columns, t.Headers)
	} else {
		for i := range columns {
			columns[i] = strconv.Itoa(i)
		}
	}

	out := &Table{Columns: columns, Rows: make([]Row, 0, len(t.Rows))}
	for _, cells := range t.Rows {
		row := make(Row, width)
		for i, col := range columns {
			if i < len(cells) {
				row[col] = cells[i]
			} else {
				row[col] = Plain("")
			}
		}
		out.Rows = append(out.Rows, row)
	}
	return out
}

// Row maps column name to cell
type Row map[string]Cell

// Text returns the display text of a column, empty when absent
func (r Row) Text(column string) string {
	return r[column].Text
}

// Table is an ordered set of named columns with rows keyed by column name.
type Table struct {
	Columns []string
	Rows    []Row
}

// HasColumn reports whether the column exists
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// AddColumn appends a column if it is not already present
func (t *Table) AddColumn(name string) {
	if !t.HasColumn(name) {
		t.Columns = append(t.Columns, name)
	}
}

// Len returns the number of rows
func (t *Table) Len() int {
	return len(t.Rows)
}
