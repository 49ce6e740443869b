package decoder

import (
	"github.com/daqstream/daqstream/pkg/errors"
	"github.com/daqstream/daqstream/pkg/packet"
	"github.com/daqstream/daqstream/pkg/store"
)

// Default type-id assignments for the reference decoders. Acquisition
// systems can remap ids per run; these match the layout the bundled writers
// emit. Short-form ids carry the short flag bit, so they live in
// [0x20, 0x3F].
const (
	EventTypeID   = 1
	TriggerTypeID = 0x22
)

// NewDefaultRegistry returns a registry with the reference decoders bound
// to their default type ids.
func NewDefaultRegistry() *MapRegistry {
	r := NewMapRegistry()
	r.Register(EventTypeID, EventDecoder{})
	r.Register(TriggerTypeID, TriggerDecoder{})
	return r
}

// EventDecoder decodes long digitizer event packets. Payload layout:
//
//	word 1    channel number (routing key)
//	word 2    event timestamp, clock ticks
//	words 3+  waveform samples, one per word
type EventDecoder struct{}

func (EventDecoder) Name() string { return "EventDecoder" }

func (EventDecoder) Decode(p packet.Packet) (map[string]interface{}, int, error) {
	if p.IsShort() || p.NumWords() < 3 {
		return nil, 0, errors.Newf(errors.ErrorTypeData,
			"event packet needs at least 3 words, got %d", p.NumWords())
	}

	channel := p[1]
	samples := make([]uint32, len(p)-3)
	copy(samples, p[3:])

	fields := map[string]interface{}{
		"channel":   channel,
		"timestamp": p[2],
		"waveform":  samples,
	}
	return fields, int(channel), nil
}

func (EventDecoder) MakeStore(sizeHint int) store.Store {
	return store.NewTable(sizeHint)
}

// TriggerDecoder decodes short trigger packets: the low 26 bits of the
// single header word carry a trigger counter. All triggers route to key 0.
type TriggerDecoder struct{}

func (TriggerDecoder) Name() string { return "TriggerDecoder" }

func (TriggerDecoder) Decode(p packet.Packet) (map[string]interface{}, int, error) {
	if !p.IsShort() {
		return nil, 0, errors.New(errors.ErrorTypeData, "trigger packet must be short form")
	}
	fields := map[string]interface{}{
		"counter": p[0] & 0x03FFFFFF,
	}
	return fields, 0, nil
}

func (TriggerDecoder) MakeStore(sizeHint int) store.Store {
	return store.NewTable(sizeHint)
}
