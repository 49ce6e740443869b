package store

import (
	"github.com/daqstream/daqstream/pkg/errors"
)

// ColumnType represents the data type of a table column
type ColumnType int

const (
	ColumnTypeInt ColumnType = iota
	ColumnTypeUint
	ColumnTypeFloat
	ColumnTypeString
	ColumnTypeBool
	ColumnTypeRaggedFloat
	ColumnTypeRaggedUint
)

// Column is the base interface for all column types. Fixed-width columns
// store one scalar per row; ragged columns store a variable-length vector
// per row.
type Column interface {
	Type() ColumnType
	Set(i int, value interface{}) error
	Get(i int) interface{}
	Resize(rows int)
	Clear()
}

// columnFor creates a column sized for rows based on the first value seen.
func columnFor(value interface{}, rows int) (Column, error) {
	switch value.(type) {
	case int, int32, int64:
		return &intColumn{values: make([]int64, rows)}, nil
	case uint, uint16, uint32, uint64:
		return &uintColumn{values: make([]uint32, rows)}, nil
	case float32, float64:
		return &floatColumn{values: make([]float64, rows)}, nil
	case string:
		return &stringColumn{values: make([]string, rows)}, nil
	case bool:
		return &boolColumn{values: make([]bool, rows)}, nil
	case []float64:
		return &raggedFloatColumn{data: NewRagged[float64](rows, defaultRowLenGuess)}, nil
	case []uint32:
		return &raggedUintColumn{data: NewRagged[uint32](rows, defaultRowLenGuess)}, nil
	default:
		return nil, errors.Newf(errors.ErrorTypeData, "unsupported field value type %T", value)
	}
}

// defaultRowLenGuess seeds the flattened capacity of auto-created ragged
// columns; the buffer doubles as needed so only the first growths depend
// on it.
const defaultRowLenGuess = 32

type intColumn struct{ values []int64 }

func (c *intColumn) Type() ColumnType { return ColumnTypeInt }
func (c *intColumn) Set(i int, v interface{}) error {
	switch n := v.(type) {
	case int:
		c.values[i] = int64(n)
	case int32:
		c.values[i] = int64(n)
	case int64:
		c.values[i] = n
	default:
		return errors.Newf(errors.ErrorTypeData, "expected integer, got %T", v)
	}
	return nil
}
func (c *intColumn) Get(i int) interface{} { return c.values[i] }
func (c *intColumn) Resize(rows int)       { c.values = resizeScalar(c.values, rows) }
func (c *intColumn) Clear()                { clearScalar(c.values) }

type uintColumn struct{ values []uint32 }

func (c *uintColumn) Type() ColumnType { return ColumnTypeUint }
func (c *uintColumn) Set(i int, v interface{}) error {
	switch n := v.(type) {
	case uint:
		c.values[i] = uint32(n)
	case uint16:
		c.values[i] = uint32(n)
	case uint32:
		c.values[i] = n
	case uint64:
		c.values[i] = uint32(n)
	default:
		return errors.Newf(errors.ErrorTypeData, "expected unsigned integer, got %T", v)
	}
	return nil
}
func (c *uintColumn) Get(i int) interface{} { return c.values[i] }
func (c *uintColumn) Resize(rows int)       { c.values = resizeScalar(c.values, rows) }
func (c *uintColumn) Clear()                { clearScalar(c.values) }

type floatColumn struct{ values []float64 }

func (c *floatColumn) Type() ColumnType { return ColumnTypeFloat }
func (c *floatColumn) Set(i int, v interface{}) error {
	switch n := v.(type) {
	case float32:
		c.values[i] = float64(n)
	case float64:
		c.values[i] = n
	default:
		return errors.Newf(errors.ErrorTypeData, "expected float, got %T", v)
	}
	return nil
}
func (c *floatColumn) Get(i int) interface{} { return c.values[i] }
func (c *floatColumn) Resize(rows int)       { c.values = resizeScalar(c.values, rows) }
func (c *floatColumn) Clear()                { clearScalar(c.values) }

type stringColumn struct{ values []string }

func (c *stringColumn) Type() ColumnType { return ColumnTypeString }
func (c *stringColumn) Set(i int, v interface{}) error {
	s, ok := v.(string)
	if !ok {
		return errors.Newf(errors.ErrorTypeData, "expected string, got %T", v)
	}
	c.values[i] = s
	return nil
}
func (c *stringColumn) Get(i int) interface{} { return c.values[i] }
func (c *stringColumn) Resize(rows int)       { c.values = resizeScalar(c.values, rows) }
func (c *stringColumn) Clear()                { clearScalar(c.values) }

type boolColumn struct{ values []bool }

func (c *boolColumn) Type() ColumnType { return ColumnTypeBool }
func (c *boolColumn) Set(i int, v interface{}) error {
	b, ok := v.(bool)
	if !ok {
		return errors.Newf(errors.ErrorTypeData, "expected bool, got %T", v)
	}
	c.values[i] = b
	return nil
}
func (c *boolColumn) Get(i int) interface{} { return c.values[i] }
func (c *boolColumn) Resize(rows int)       { c.values = resizeScalar(c.values, rows) }
func (c *boolColumn) Clear()                { clearScalar(c.values) }

type raggedFloatColumn struct{ data *Ragged[float64] }

func (c *raggedFloatColumn) Type() ColumnType { return ColumnTypeRaggedFloat }
func (c *raggedFloatColumn) Set(i int, v interface{}) error {
	vals, ok := v.([]float64)
	if !ok {
		return errors.Newf(errors.ErrorTypeData, "expected []float64, got %T", v)
	}
	return c.data.SetRow(i, vals)
}
func (c *raggedFloatColumn) Get(i int) interface{} {
	row, err := c.data.Row(i)
	if err != nil {
		return nil
	}
	return row
}
func (c *raggedFloatColumn) Resize(rows int) { c.data.Resize(rows) }
func (c *raggedFloatColumn) Clear()          { c.data.Clear() }

type raggedUintColumn struct{ data *Ragged[uint32] }

func (c *raggedUintColumn) Type() ColumnType { return ColumnTypeRaggedUint }
func (c *raggedUintColumn) Set(i int, v interface{}) error {
	vals, ok := v.([]uint32)
	if !ok {
		return errors.Newf(errors.ErrorTypeData, "expected []uint32, got %T", v)
	}
	return c.data.SetRow(i, vals)
}
func (c *raggedUintColumn) Get(i int) interface{} {
	row, err := c.data.Row(i)
	if err != nil {
		return nil
	}
	return row
}
func (c *raggedUintColumn) Resize(rows int) { c.data.Resize(rows) }
func (c *raggedUintColumn) Clear()          { c.data.Clear() }

func resizeScalar[E any](values []E, rows int) []E {
	if rows <= cap(values) {
		return values[:rows]
	}
	grown := make([]E, rows)
	copy(grown, values)
	return grown
}

func clearScalar[E any](values []E) {
	var zero E
	for i := range values {
		values[i] = zero
	}
}
