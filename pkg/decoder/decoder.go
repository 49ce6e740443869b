// Package decoder defines the decoder-registry contract consumed by the
// stream engine, plus a map-backed registry and reference decoders for the
// common packet shapes.
package decoder

import (
	"sort"

	"github.com/daqstream/daqstream/pkg/packet"
	"github.com/daqstream/daqstream/pkg/store"
)

// Decoder maps one packet type to structured field values.
type Decoder interface {
	// Name identifies the decoder; routing configuration entries are
	// keyed by this name.
	Name() string
	// Decode extracts named field values and the routing key from one
	// packet. The returned map must only hold types the backing stores
	// accept (scalars, []float64, []uint32).
	Decode(p packet.Packet) (fields map[string]interface{}, key int, err error)
	// MakeStore allocates a backing store sized for sizeHint rows.
	MakeStore(sizeHint int) store.Store
}

// Registry resolves packet type ids to decoders.
type Registry interface {
	// List returns all registered decoders.
	List() []Decoder
	// Resolve returns the decoder for a shifted type id.
	Resolve(typeID uint32) (Decoder, bool)
}

// MapRegistry is a Registry backed by a type-id map.
type MapRegistry struct {
	byID map[uint32]Decoder
}

// NewMapRegistry creates a registry from type-id/decoder pairs.
func NewMapRegistry() *MapRegistry {
	return &MapRegistry{byID: make(map[uint32]Decoder)}
}

// Register binds a shifted type id to a decoder. Later registrations for
// the same id win; DAQ headers can remap ids between runs.
func (r *MapRegistry) Register(typeID uint32, d Decoder) {
	r.byID[typeID] = d
}

// List returns the registered decoders ordered by type id.
func (r *MapRegistry) List() []Decoder {
	ids := make([]uint32, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]Decoder, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.byID[id])
	}
	return out
}

// Resolve returns the decoder for a shifted type id.
func (r *MapRegistry) Resolve(typeID uint32) (Decoder, bool) {
	d, ok := r.byID[typeID]
	return d, ok
}

// IDNames returns a type-id to decoder-name map, usable for packet dumps.
func (r *MapRegistry) IDNames() map[uint32]string {
	names := make(map[uint32]string, len(r.byID))
	for id, d := range r.byID {
		names[id] = d.Name()
	}
	return names
}
