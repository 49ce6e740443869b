package store

import (
	"github.com/daqstream/daqstream/pkg/errors"
)

// Ragged is a variable-length-row container: a flattened payload buffer plus
// a cumulative end-offset per logical row. Row i occupies
// flattened[offsets[i-1]:offsets[i]] (0 for i == 0).
//
// The flattened buffer grows by doubling whenever a row write would exceed
// its capacity; the offsets array sets the row capacity and only changes via
// Resize.
type Ragged[E any] struct {
	flattened []E
	offsets   []uint32
}

// NewRagged allocates a ragged store with the given row capacity and an
// initial flattened capacity of rows*rowLenGuess elements.
func NewRagged[E any](rows, rowLenGuess int) *Ragged[E] {
	if rowLenGuess < 1 {
		rowLenGuess = 1
	}
	return &Ragged[E]{
		flattened: make([]E, rows*rowLenGuess),
		offsets:   make([]uint32, rows),
	}
}

// RowCapacity returns the number of rows the store can hold.
func (r *Ragged[E]) RowCapacity() int {
	return len(r.offsets)
}

// SetRow writes vals as logical row i. Amortized O(1) per element across
// repeated in-order appends.
func (r *Ragged[E]) SetRow(i int, vals []E) error {
	if i < 0 || i >= len(r.offsets) {
		return errors.Newf(errors.ErrorTypeCapacity,
			"row index %d out of range [0, %d)", i, len(r.offsets))
	}

	start := uint32(0)
	if i > 0 {
		start = r.offsets[i-1]
	}
	end := start + uint32(len(vals))

	for int(end) > len(r.flattened) {
		// reallocate-and-copy; never alias the old buffer after growth
		grown := make([]E, max(2*len(r.flattened), 1))
		copy(grown, r.flattened)
		r.flattened = grown
	}

	copy(r.flattened[start:end], vals)
	r.offsets[i] = end
	return nil
}

// Row returns a view of logical row i. The slice aliases the flattened
// buffer and is invalidated by the next growth.
func (r *Ragged[E]) Row(i int) ([]E, error) {
	if i < 0 || i >= len(r.offsets) {
		return nil, errors.Newf(errors.ErrorTypeCapacity,
			"row index %d out of range [0, %d)", i, len(r.offsets))
	}
	start := uint32(0)
	if i > 0 {
		start = r.offsets[i-1]
	}
	return r.flattened[start:r.offsets[i]], nil
}

// Resize truncates or grows the offsets array only; the flattened buffer is
// untouched.
func (r *Ragged[E]) Resize(rows int) {
	if rows <= cap(r.offsets) {
		r.offsets = r.offsets[:rows]
		return
	}
	grown := make([]uint32, rows)
	copy(grown, r.offsets)
	r.offsets = grown
}

// Clear zeroes the offsets, logically emptying every row. The flattened
// buffer keeps its capacity for reuse.
func (r *Ragged[E]) Clear() {
	for i := range r.offsets {
		r.offsets[i] = 0
	}
}

// Iter returns a restartable iterator over rows in index order.
func (r *Ragged[E]) Iter() *RaggedIter[E] {
	return &RaggedIter[E]{store: r, index: -1}
}

// RaggedIter provides sequential access to ragged rows.
type RaggedIter[E any] struct {
	store *Ragged[E]
	index int
}

// Next advances to the next row; it returns false past the last row.
func (it *RaggedIter[E]) Next() bool {
	it.index++
	return it.index < len(it.store.offsets)
}

// Row returns the current row as a view into the flattened buffer.
func (it *RaggedIter[E]) Row() []E {
	row, _ := it.store.Row(it.index)
	return row
}

// Reset restarts the iterator from the first row.
func (it *RaggedIter[E]) Reset() {
	it.index = -1
}
