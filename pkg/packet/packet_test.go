package packet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// The short flag doubles as the top bit of the 6-bit id field, so every
// short-form id carries it: valid short ids live in [0x20, 0x3F].
func shortWord(id uint32) uint32 {
	return id << shortIDShift
}

func longWord(id uint32, nWords int) uint32 {
	return (id << longIDShift) | uint32(nWords)
}

func TestShortPacket(t *testing.T) {
	for id := uint32(0x20); id < 0x40; id++ {
		// low bits carry payload data for short packets, must not leak
		// into the extracted fields
		p := Packet{shortWord(id) | 0x0003ABCD}

		assert.True(t, p.IsShort())
		assert.Equal(t, 1, p.NumWords())
		assert.Equal(t, id, p.TypeID(true))
		assert.Equal(t, id<<shortIDShift, p.TypeID(false))
	}
}

func TestShortIDIncludesFlagBit(t *testing.T) {
	// the lowest id a short packet can produce is 0x20: the flag bit is
	// part of the extracted field
	p := Packet{shortFlagMask}
	assert.True(t, p.IsShort())
	assert.Equal(t, uint32(0x20), p.TypeID(true))
}

func TestLongPacket(t *testing.T) {
	cases := []struct {
		id     uint32
		nWords int
	}{
		{0, 1},
		{1, 2},
		{13, 100},
		{0x3F, MaxWords},
	}

	for _, tc := range cases {
		words := make(Packet, 2)
		words[0] = longWord(tc.id, tc.nWords)
		words[1] = 0xDEADBEEF

		assert.False(t, words.IsShort())
		assert.Equal(t, tc.nWords, words.NumWords())
		assert.Equal(t, tc.id, words.TypeID(true))
		assert.Equal(t, tc.id<<longIDShift, words.TypeID(false))
	}
}

func TestPayload(t *testing.T) {
	short := Packet{shortWord(0x25)}
	assert.Nil(t, short.Payload())

	long := Packet{longWord(5, 3), 0x11, 0x22}
	require.Len(t, long.Payload(), 2)
	assert.Equal(t, uint32(0x11), long.Payload()[0])
}

func TestHexDump(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := zap.New(core)

	p := Packet{longWord(5, 3), 0x11, 0x22}
	HexDump(log, p, DumpOptions{IDNames: map[uint32]string{5: "EventDecoder"}})

	entries := logs.All()
	require.Len(t, entries, 4) // heading plus one line per word
	assert.Contains(t, entries[0].Message, "EventDecoder")
	assert.Contains(t, entries[1].Message, "0x00140003")

	core, logs = observer.New(zapcore.DebugLevel)
	HexDump(zap.New(core), p, DumpOptions{CountOnly: true})
	require.Len(t, logs.All(), 1)
}
