// Package rawbuf implements the buffer-routing model: raw buffers bound to
// output destinations, ordered lists of buffers sharing a decoder, and the
// declarative-configuration-driven library mapping decoder names to lists.
package rawbuf

import (
	"sort"

	"github.com/daqstream/daqstream/pkg/errors"
	"github.com/daqstream/daqstream/pkg/store"
)

// RawBuffer is one routing target: a backing store, a resolved output
// destination, and a fill cursor. A wildcard buffer is a template that
// materializes concrete buffers on demand for unmatched keys.
type RawBuffer struct {
	// Store is the backing typed store. Nil until the owning stream
	// attaches one during open.
	Store store.Store
	// OutStream is the resolved output destination.
	OutStream string
	// OutName is the resolved sub-path within the destination.
	OutName string
	// KeyList holds the concrete routing keys this buffer catches.
	// Empty for wildcard buffers.
	KeyList []int
	// Wildcard marks a template buffer catching unmatched keys.
	Wildcard bool
	// Loc counts valid rows written since the last reset.
	Loc int
	// FillMargin is the near-full margin in rows.
	FillMargin int
}

// RowCapacity returns the backing store's row capacity, 0 if no store is
// attached yet.
func (rb *RawBuffer) RowCapacity() int {
	if rb.Store == nil {
		return 0
	}
	return rb.Store.RowCapacity()
}

// Full reports whether every row is filled.
func (rb *RawBuffer) Full() bool {
	return rb.Store != nil && rb.Loc >= rb.Store.RowCapacity()
}

// NearFull reports whether the fill cursor is within the configured margin
// of capacity.
func (rb *RawBuffer) NearFull() bool {
	return rb.Store != nil && rb.Loc >= rb.Store.RowCapacity()-rb.FillMargin
}

// Reset clears the fill cursor and the backing store. Consumers must call
// this after draining a buffer and before the stream's next read.
func (rb *RawBuffer) Reset() {
	rb.Loc = 0
	if rb.Store != nil {
		rb.Store.Clear()
	}
}

// RawBufferList is an ordered sequence of raw buffers all fed by the same
// decoder, with an index for O(1) numeric-key dispatch.
type RawBufferList struct {
	Buffers []*RawBuffer

	keyed    map[int]*RawBuffer
	wildcard *RawBuffer
}

// NewRawBufferList creates an empty list.
func NewRawBufferList() *RawBufferList {
	return &RawBufferList{keyed: make(map[int]*RawBuffer)}
}

// Add appends a buffer and indexes its keys. Overlapping declared keys and
// a second wildcard are configuration errors.
func (l *RawBufferList) Add(rb *RawBuffer) error {
	if rb.Wildcard {
		if l.wildcard != nil {
			return errors.New(errors.ErrorTypeConfig,
				"buffer list already has a wildcard binding")
		}
		l.wildcard = rb
		l.Buffers = append(l.Buffers, rb)
		return nil
	}

	for _, key := range rb.KeyList {
		if other, exists := l.keyed[key]; exists {
			return errors.Newf(errors.ErrorTypeConfig,
				"key %d claimed by both %q and %q", key, other.OutName, rb.OutName)
		}
	}
	for _, key := range rb.KeyList {
		l.keyed[key] = rb
	}
	l.Buffers = append(l.Buffers, rb)
	return nil
}

// KeyedIndex returns the key-to-buffer dispatch index.
func (l *RawBufferList) KeyedIndex() map[int]*RawBuffer {
	return l.keyed
}

// BufferForKey returns the buffer owning key, if one is indexed.
func (l *RawBufferList) BufferForKey(key int) (*RawBuffer, bool) {
	rb, ok := l.keyed[key]
	return rb, ok
}

// HasWildcard reports whether the list carries a wildcard template.
func (l *RawBufferList) HasWildcard() bool {
	return l.wildcard != nil
}

// Materialize creates a concrete buffer for key from the wildcard template:
// the template is cloned, {key} placeholders are substituted, and the new
// buffer is inserted into both the list and the index. A second call for
// the same key returns the existing buffer.
func (l *RawBufferList) Materialize(key int, newStore func() store.Store) (*RawBuffer, error) {
	if rb, ok := l.keyed[key]; ok {
		return rb, nil
	}
	if l.wildcard == nil {
		return nil, errors.Newf(errors.ErrorTypeRouting,
			"no binding for key %d and no wildcard", key)
	}

	if !hasKeyPlaceholder(l.wildcard.OutStream) && !hasKeyPlaceholder(l.wildcard.OutName) {
		// catch-all template: every key shares the template buffer
		if l.wildcard.Store == nil && newStore != nil {
			l.wildcard.Store = newStore()
		}
		l.keyed[key] = l.wildcard
		return l.wildcard, nil
	}

	outStream, err := substitute(l.wildcard.OutStream, nil, &key, nil)
	if err != nil {
		return nil, err
	}
	outName, err := substitute(l.wildcard.OutName, nil, &key, nil)
	if err != nil {
		return nil, err
	}

	rb := &RawBuffer{
		OutStream:  outStream,
		OutName:    outName,
		KeyList:    []int{key},
		FillMargin: l.wildcard.FillMargin,
	}
	if newStore != nil {
		rb.Store = newStore()
	}

	l.keyed[key] = rb
	l.Buffers = append(l.Buffers, rb)
	return rb, nil
}

// Keys returns the indexed keys in ascending order.
func (l *RawBufferList) Keys() []int {
	keys := make([]int, 0, len(l.keyed))
	for key := range l.keyed {
		keys = append(keys, key)
	}
	sort.Ints(keys)
	return keys
}
