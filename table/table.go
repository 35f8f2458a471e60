// Package table holds decoded recipient tables and decodes them from
// spreadsheet uploads.
package table

import (
	"fmt"
	"strings"

	"github.com/mbland/mailmerge/types"
)

const ErrNoColumns = types.SentinelError("table has no columns")
const ErrInvalidHeader = types.SentinelError("invalid table header")

type header struct {
	names []string
	index map[string]int
}

func newHeader(columns []string) (*header, error) {
	if len(columns) == 0 {
		return nil, ErrNoColumns
	}
	h := &header{names: columns, index: make(map[string]int, len(columns))}

	for i, name := range columns {
		if strings.TrimSpace(name) == "" {
			const errFmt = "%w: column %d has no name"
			return nil, fmt.Errorf(errFmt, ErrInvalidHeader, i+1)
		} else if prev, ok := h.index[name]; ok {
			const errFmt = "%w: column %d duplicates column %d: %q"
			return nil, fmt.Errorf(errFmt, ErrInvalidHeader, i+1, prev+1, name)
		}
		h.index[name] = i
	}
	return h, nil
}

// Record is one recipient row: ordered named fields plus its position in the
// source. Index counts data rows from zero, including skipped blank rows, so
// Index 0 is the row just below the header. Records are never modified after
// decoding.
type Record struct {
	Index  int
	header *header
	values []string
}

// Lookup returns the value of the named column. Every column in the header is
// present; cells missing from short rows are empty strings.
func (r Record) Lookup(name string) (value string, ok bool) {
	if r.header == nil {
		return
	}
	var i int
	if i, ok = r.header.index[name]; ok {
		value = r.values[i]
	}
	return
}

// Get returns the value of the named column, or "" if it doesn't exist.
func (r Record) Get(name string) string {
	value, _ := r.Lookup(name)
	return value
}

func (r Record) Columns() []string {
	if r.header == nil {
		return nil
	}
	return r.header.names
}

// Values returns a copy of the row's values in column order.
func (r Record) Values() []string {
	return append([]string(nil), r.values...)
}

// Map returns the row as a column name to value map.
func (r Record) Map() map[string]string {
	m := make(map[string]string, len(r.values))
	for i, name := range r.Columns() {
		m[name] = r.values[i]
	}
	return m
}

// Table is an ordered list of records sharing one set of column names.
type Table struct {
	Columns []string
	Records []Record
}

// New builds a Table from a header row and data rows. Short rows are padded
// with empty strings and rows with only empty cells are skipped without
// renumbering the rows that follow. A row with a
// non-empty cell beyond the last column is an error.
func New(columns []string, rows [][]string) (*Table, error) {
	columns = append([]string(nil), columns...)
	h, err := newHeader(columns)
	if err != nil {
		return nil, err
	}

	t := &Table{Columns: columns, Records: make([]Record, 0, len(rows))}
	for i, row := range rows {
		if isBlank(row) {
			continue
		} else if len(row) > len(columns) && !isBlank(row[len(columns):]) {
			const errFmt = "row %d has %d cells, but only %d columns"
			return nil, fmt.Errorf(errFmt, i+1, len(row), len(columns))
		}
		values := make([]string, len(columns))
		copy(values, row)
		t.Records = append(
			t.Records, Record{Index: i, header: h, values: values},
		)
	}
	return t, nil
}

// MustNew is New for fixed inputs known to be valid.
func MustNew(columns []string, rows ...[]string) *Table {
	t, err := New(columns, rows)
	if err != nil {
		panic("table.MustNew: " + err.Error())
	}
	return t
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// Len returns the number of records.
func (t *Table) Len() int {
	return len(t.Records)
}

// HasColumn reports whether name is one of the table's columns.
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}
