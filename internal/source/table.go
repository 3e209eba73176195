// Package source normalizes per-source raw queue snapshots into the
// canonical project model.
//
// Each source publishes its own column names, date formats, and vocabulary.
// An Adapter owns exactly one source; shared logic never branches on the
// source tag. Adapters rename and cast columns, fan multi-valued cells out
// into resource slots and localities, and preserve every raw column under
// the raw_ namespace so quality issues stay visible without corrupting
// canonical fields.
package source

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// RawTable is one source snapshot as a flat table. Column lookups are
// case-insensitive with surrounding whitespace ignored, since sources
// routinely reshuffle header casing between vintages.
type RawTable struct {
	columns []string
	index   map[string]int
	rows    [][]string
}

// ReadCSV parses a snapshot file. The first record is the header; rows
// shorter than the header are padded with empty cells rather than rejected,
// matching how the sources emit trailing-empty columns.
func ReadCSV(r io.Reader) (*RawTable, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading snapshot csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("snapshot csv has no header row")
	}
	return NewRawTable(records[0], records[1:])
}

// NewRawTable builds a table from an in-memory header and rows.
func NewRawTable(columns []string, rows [][]string) (*RawTable, error) {
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		key := columnKey(c)
		if key == "" {
			continue
		}
		if _, dup := index[key]; dup {
			return nil, fmt.Errorf("duplicate column %q", strings.TrimSpace(c))
		}
		index[key] = i
	}
	return &RawTable{columns: columns, index: index, rows: rows}, nil
}

// Columns returns the header as published by the source.
func (t *RawTable) Columns() []string { return t.columns }

// Len returns the number of data rows.
func (t *RawTable) Len() int { return len(t.rows) }

// Has reports whether the table carries the named column.
func (t *RawTable) Has(column string) bool {
	_, ok := t.index[columnKey(column)]
	return ok
}

// Get returns the trimmed cell value at (row, column), or "" when the
// column is absent or the row is short.
func (t *RawTable) Get(row int, column string) string {
	i, ok := t.index[columnKey(column)]
	if !ok || row < 0 || row >= len(t.rows) || i >= len(t.rows[row]) {
		return ""
	}
	return strings.TrimSpace(t.rows[row][i])
}

func columnKey(column string) string {
	return strings.ToLower(strings.TrimSpace(column))
}
