// Package packet provides helpers for interpreting raw DAQ packet headers.
//
// A packet is a read-only view over a contiguous sequence of 32-bit words.
// The first word is self-describing: the top bit selects the short form
// (a single word carrying its type id in the high bits) or the long form
// (an 18-bit word count plus a 6-bit type id).
package packet

import (
	"fmt"

	"go.uber.org/zap"
)

// Header layout of word 0.
const (
	shortFlagMask = 0x80000000 // top bit set means single-word packet
	longCountMask = 0x0003FFFF // bits 0-17, word count for long packets
	longIDMask    = 0x00FC0000 // bits 18-23, type id for long packets
	longIDShift   = 18
	shortIDMask   = 0xFC000000 // bits 26-31, type id for short packets
	shortIDShift  = 26

	// MaxWords is the largest word count a long header can declare.
	MaxWords = longCountMask
)

// Packet is an immutable view over one packet's words. The view aliases the
// stream buffer; it never copies the payload.
type Packet []uint32

// IsShort reports whether the packet is the single-word short form.
func (p Packet) IsShort() bool {
	return p[0]&shortFlagMask != 0
}

// NumWords returns the packet's declared length in words, header included.
// Always >= 1 for a well-formed header.
func (p Packet) NumWords() int {
	if p.IsShort() {
		return 1
	}
	return int(p[0] & longCountMask)
}

// TypeID extracts the packet's type identifier from the header word.
//
// The shifted form is the canonical in-memory representation; the unshifted
// form matches the on-wire header layout and exists for display parity with
// the hardware documentation.
func (p Packet) TypeID(shift bool) uint32 {
	if p.IsShort() {
		if shift {
			return (p[0] & shortIDMask) >> shortIDShift
		}
		return p[0] & shortIDMask
	}
	if shift {
		return (p[0] & longIDMask) >> longIDShift
	}
	return p[0] & longIDMask
}

// Payload returns the packet words after the header word. For short packets
// the payload is empty; the data rides in the header word itself.
func (p Packet) Payload() []uint32 {
	if p.IsShort() {
		return nil
	}
	return p[1:]
}

// DumpOptions controls HexDump output.
type DumpOptions struct {
	// IDNames maps shifted type ids to decoder names for the heading.
	IDNames map[uint32]string
	// MaxWords caps the number of words printed (0 means all).
	MaxWords int
	// CountOnly prints only the heading and word count.
	CountOnly bool
}

// HexDump logs the packet contents at debug level, one word per line with a
// zero-padded index. Debug aid only; not on any hot path.
func HexDump(log *zap.Logger, p Packet, opts DumpOptions) {
	id := p.TypeID(true)
	n := p.NumWords()

	heading := fmt.Sprintf("type id = %d", id)
	if opts.IDNames != nil {
		if name, ok := opts.IDNames[id]; ok {
			heading = fmt.Sprintf("%s (type id = %d)", name, id)
		} else {
			heading = fmt.Sprintf("[unknown] (type id = %d)", id)
		}
	}

	if opts.CountOnly {
		log.Debug(heading, zap.Int("words", n))
		return
	}

	limit := n
	if opts.MaxWords > 0 && opts.MaxWords < limit {
		limit = opts.MaxWords
	}
	if limit > len(p) {
		limit = len(p)
	}

	log.Debug(heading)
	pad := len(fmt.Sprintf("%d", limit-1))
	for i := 0; i < limit; i++ {
		log.Debug(fmt.Sprintf("%0*d 0x%08x", pad, i, p[i]))
	}
}
