package decoder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daqstream/daqstream/pkg/packet"
)

func TestEventDecoder(t *testing.T) {
	p := packet.Packet{
		6 | (1 << 18), // long, id 1, 6 words
		14,            // channel
		0xAABBCCDD,    // timestamp
		100, 200, 300, // waveform
	}

	fields, key, err := EventDecoder{}.Decode(p)
	require.NoError(t, err)
	assert.Equal(t, 14, key)
	assert.Equal(t, uint32(14), fields["channel"])
	assert.Equal(t, uint32(0xAABBCCDD), fields["timestamp"])
	assert.Equal(t, []uint32{100, 200, 300}, fields["waveform"])
}

func TestEventDecoderRejectsShort(t *testing.T) {
	p := packet.Packet{0x80000000}
	_, _, err := EventDecoder{}.Decode(p)
	require.Error(t, err)
}

func TestTriggerDecoder(t *testing.T) {
	p := packet.Packet{(TriggerTypeID << 26) | 12345}
	fields, key, err := TriggerDecoder{}.Decode(p)
	require.NoError(t, err)
	assert.Equal(t, 0, key)
	assert.Equal(t, uint32(12345), fields["counter"])
}

func TestMapRegistry(t *testing.T) {
	r := NewDefaultRegistry()

	d, ok := r.Resolve(EventTypeID)
	require.True(t, ok)
	assert.Equal(t, "EventDecoder", d.Name())

	_, ok = r.Resolve(9)
	assert.False(t, ok)

	names := []string{}
	for _, d := range r.List() {
		names = append(names, d.Name())
	}
	assert.Equal(t, []string{"EventDecoder", "TriggerDecoder"}, names)

	assert.Equal(t, "TriggerDecoder", r.IDNames()[TriggerTypeID])
}

func TestDefaultTriggerIDReachable(t *testing.T) {
	// a short packet's extracted id always includes the flag bit, so the
	// registered id must too
	p := packet.Packet{TriggerTypeID << 26}
	require.True(t, p.IsShort())
	assert.Equal(t, uint32(TriggerTypeID), p.TypeID(true))
}
