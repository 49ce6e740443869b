// Package store provides the backing storage primitives for decoded packet
// data: a generic ragged (variable-row-length) container and a fixed-row
// columnar table keyed by field name.
package store

// Store is the backing storage owned by one raw buffer. Implementations hold
// a fixed number of rows; the owning buffer tracks how many rows are filled.
type Store interface {
	// RowCapacity returns the number of rows allocated.
	RowCapacity() int
	// SetRow writes the named field values as logical row i.
	SetRow(i int, values map[string]interface{}) error
	// Row reads back logical row i.
	Row(i int) (map[string]interface{}, error)
	// Resize changes the row capacity.
	Resize(rows int)
	// Clear logically empties the store without releasing memory.
	Clear()
}
