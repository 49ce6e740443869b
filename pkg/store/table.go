package store

import (
	"sort"

	"github.com/daqstream/daqstream/pkg/errors"
)

// Table is a fixed-row-capacity columnar store keyed by field name. Columns
// are created on first write based on the value's type, so one Table serves
// any decoder's field layout. Scalar fields land in fixed-width columns;
// vector fields ([]float64, []uint32) land in ragged columns.
type Table struct {
	columns map[string]Column
	rows    int
}

// NewTable creates a table with the given row capacity.
func NewTable(rows int) *Table {
	return &Table{
		columns: make(map[string]Column),
		rows:    rows,
	}
}

// RowCapacity returns the number of rows allocated.
func (t *Table) RowCapacity() int {
	return t.rows
}

// SetRow writes the named field values as logical row i, creating columns
// for fields not seen before.
func (t *Table) SetRow(i int, values map[string]interface{}) error {
	if i < 0 || i >= t.rows {
		return errors.Newf(errors.ErrorTypeCapacity,
			"row index %d out of range [0, %d)", i, t.rows)
	}

	for name, value := range values {
		col, ok := t.columns[name]
		if !ok {
			var err error
			col, err = columnFor(value, t.rows)
			if err != nil {
				return errors.Wrap(err, errors.ErrorTypeData, "field "+name)
			}
			t.columns[name] = col
		}
		if err := col.Set(i, value); err != nil {
			return errors.Wrap(err, errors.ErrorTypeData, "field "+name)
		}
	}
	return nil
}

// Row reads back logical row i across all columns.
func (t *Table) Row(i int) (map[string]interface{}, error) {
	if i < 0 || i >= t.rows {
		return nil, errors.Newf(errors.ErrorTypeCapacity,
			"row index %d out of range [0, %d)", i, t.rows)
	}
	row := make(map[string]interface{}, len(t.columns))
	for name, col := range t.columns {
		row[name] = col.Get(i)
	}
	return row, nil
}

// Resize changes the row capacity of every column.
func (t *Table) Resize(rows int) {
	for _, col := range t.columns {
		col.Resize(rows)
	}
	t.rows = rows
}

// Clear logically empties every column, keeping allocations.
func (t *Table) Clear() {
	for _, col := range t.columns {
		col.Clear()
	}
}

// FieldNames returns the column names in sorted order.
func (t *Table) FieldNames() []string {
	names := make([]string, 0, len(t.columns))
	for name := range t.columns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ColumnByName returns the named column, if present.
func (t *Table) ColumnByName(name string) (Column, bool) {
	col, ok := t.columns[name]
	return col, ok
}
