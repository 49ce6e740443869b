// Package stream implements the streaming decode-and-route engine: a
// synchronous pull loop that reads packets from a word source, dispatches
// them through a decoder registry, and fills routing buffers until a flush
// condition fires.
package stream

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/daqstream/daqstream/pkg/decoder"
	"github.com/daqstream/daqstream/pkg/errors"
	"github.com/daqstream/daqstream/pkg/metrics"
	"github.com/daqstream/daqstream/pkg/packet"
	"github.com/daqstream/daqstream/pkg/rawbuf"
	"github.com/daqstream/daqstream/pkg/store"
)

// ChunkMode selects the flush policy for ReadChunk.
type ChunkMode string

const (
	// ChunkModeAnyFull stops as soon as any buffer is near capacity.
	// Minimizes per-call latency.
	ChunkModeAnyFull ChunkMode = "any_full"
	// ChunkModeOnlyFull keeps reading up to the packet cap and returns
	// only buffers that reached capacity. Minimizes downstream flushes.
	ChunkModeOnlyFull ChunkMode = "only_full"
	// ChunkModeSinglePacket returns after one packet regardless of
	// fullness. Low-latency pass-through.
	ChunkModeSinglePacket ChunkMode = "single_packet"
)

// State tracks the engine lifecycle. A closed streamer is terminal;
// re-opening means creating a fresh instance.
type State int

const (
	StateClosed State = iota
	StateOpened
	StateStreaming
)

// DefaultPacketCap bounds packets per ReadChunk call when the caller passes
// no cap.
const DefaultPacketCap = 1000000

// DataStreamer orchestrates stream open, decoder-to-buffer reconciliation,
// the packet read loop, and the chunk flush policy. One instance owns its
// buffer library exclusively; it is not safe for concurrent use, but
// independent instances may run on separate goroutines.
type DataStreamer struct {
	registry decoder.Registry

	src        WordSource
	lib        *rawbuf.RawBufferLibrary
	chunkMode  ChunkMode
	bufferSize int
	fillMargin int
	outStream  string

	decoders map[string]decoder.Decoder
	active   []string // decoder names with live buffer lists

	state      State
	nBytesRead int64
	anyFull    bool

	log    *zap.Logger
	tracer trace.Tracer
}

// Option configures a DataStreamer.
type Option func(*DataStreamer)

// WithLogger sets the streamer's logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *DataStreamer) { s.log = log }
}

// WithFillMargin sets the near-full margin in rows for all buffers.
func WithFillMargin(rows int) Option {
	return func(s *DataStreamer) { s.fillMargin = rows }
}

// WithDefaultOutStream sets the destination used when building a default
// library.
func WithDefaultOutStream(out string) Option {
	return func(s *DataStreamer) { s.outStream = out }
}

// WithTracer enables span creation around Open and ReadChunk.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *DataStreamer) { s.tracer = tracer }
}

// NewDataStreamer creates a streamer over the given decoder registry.
func NewDataStreamer(registry decoder.Registry, opts ...Option) *DataStreamer {
	s := &DataStreamer{
		registry: registry,
		state:    StateClosed,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the engine lifecycle state.
func (s *DataStreamer) State() State { return s.state }

// BytesRead returns the total bytes consumed since open.
func (s *DataStreamer) BytesRead() int64 { return s.nBytesRead }

// Library returns the reconciled buffer library. Valid after Open.
func (s *DataStreamer) Library() *rawbuf.RawBufferLibrary { return s.lib }

// Open opens the stream: reads the stream-level header, reconciles the
// buffer library against the decoder registry, and allocates backing
// stores sized by bufferSize. Returns the raw header words.
//
// If lib is nil a default library is built with one binding per decoder,
// named after the decoder. Decoders absent from a supplied library are
// materialized from its top-level wildcard template if one exists, and
// skipped otherwise (the user opted out). Library entries naming no live
// decoder are warned about and ignored.
func (s *DataStreamer) Open(ctx context.Context, src WordSource, lib *rawbuf.RawBufferLibrary, bufferSize int, mode ChunkMode) ([]uint32, error) {
	if s.state != StateClosed {
		return nil, errors.New(errors.ErrorTypeInternal, "streamer is already open")
	}
	if s.tracer != nil {
		var span trace.Span
		_, span = s.tracer.Start(ctx, "daqstream.Open")
		defer span.End()
	}

	header, headerBytes, err := src.ReadHeader()
	if err != nil {
		return nil, err
	}

	s.src = src
	s.chunkMode = mode
	s.bufferSize = bufferSize
	s.nBytesRead = headerBytes

	if lib == nil {
		lib = s.buildDefaultLibrary()
	}
	s.lib = lib

	s.decoders = make(map[string]decoder.Decoder)
	s.active = s.active[:0]
	for _, d := range s.registry.List() {
		name := d.Name()

		list, ok := lib.List(name)
		if !ok {
			if !lib.HasFallback() {
				s.log.Debug("decoder not configured, skipping", zap.String("decoder", name))
				continue
			}
			list, err = lib.MaterializeDecoder(name)
			if err != nil {
				return nil, err
			}
		}

		for _, rb := range list.Buffers {
			rb.FillMargin = s.fillMargin
			if rb.Store == nil && !rb.Wildcard {
				rb.Store = d.MakeStore(bufferSize)
			}
		}

		s.decoders[name] = d
		s.active = append(s.active, name)
	}

	// entries in the library that no live decoder requested
	live := make(map[string]bool, len(s.active))
	for _, name := range s.active {
		live[name] = true
	}
	for _, name := range lib.Names() {
		if !live[name] {
			s.log.Warn("no decoder in registry for configured entry",
				zap.String("decoder", name))
		}
	}

	s.state = StateOpened
	s.log.Info("stream opened",
		zap.Int("header_words", len(header)),
		zap.Int("buffer_size", bufferSize),
		zap.String("chunk_mode", string(mode)),
		zap.Strings("decoders", s.active))
	return header, nil
}

// buildDefaultLibrary makes the most basic library that works for this
// registry: one binding per decoder, named after the decoder.
func (s *DataStreamer) buildDefaultLibrary() *rawbuf.RawBufferLibrary {
	lib := rawbuf.NewLibrary()
	decoders := s.registry.List()
	if len(decoders) == 0 {
		s.log.Warn("decoder registry is empty")
		return lib
	}
	for _, d := range decoders {
		list := rawbuf.NewRawBufferList()
		// single catch-all binding per decoder
		_ = list.Add(&rawbuf.RawBuffer{
			OutStream: s.outStream,
			OutName:   d.Name(),
			Wildcard:  true,
		})
		lib.Set(d.Name(), list)
	}
	return lib
}

// ReadPacket decodes exactly one packet into the buffer library. It
// returns false when the source is exhausted. Unrouted packets are dropped
// with a warning and do not stop the stream; capacity and truncation errors
// abort the call.
func (s *DataStreamer) ReadPacket() (bool, error) {
	if s.state == StateClosed {
		return false, errors.New(errors.ErrorTypeInternal, "streamer is not open")
	}
	s.state = StateStreaming

	head, err := s.src.ReadWords(1)
	if err == ErrNoData {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	p := packet.Packet(head)
	nWords := p.NumWords()
	if nWords < 1 {
		return false, errors.New(errors.ErrorTypeData, "packet header declares zero words")
	}
	if nWords > 1 {
		rest, err := s.src.ReadWords(nWords - 1)
		if err == ErrNoData {
			err = errors.Newf(errors.ErrorTypeTruncated,
				"packet declares %d words but stream is exhausted", nWords)
		}
		if err != nil {
			return false, err
		}
		p = packet.Packet(append(head, rest...))
	}

	s.nBytesRead += int64(4 * nWords)
	metrics.BytesRead.Add(float64(4 * nWords))

	typeID := p.TypeID(true)
	dec, ok := s.registry.Resolve(typeID)
	if !ok {
		metrics.UnroutedPackets.Inc()
		s.log.Warn("unrouted packet",
			zap.Uint32("type_id", typeID),
			zap.Int("words", nWords))
		return true, nil
	}

	list, ok := s.lib.List(dec.Name())
	if !ok {
		// user opted this decoder out of the library
		metrics.SkippedPackets.Inc()
		return true, nil
	}

	fields, key, err := dec.Decode(p)
	if err != nil {
		return false, err
	}

	rb, ok := list.BufferForKey(key)
	if !ok {
		rb, err = list.Materialize(key, func() store.Store {
			return dec.MakeStore(s.bufferSize)
		})
		if err != nil {
			if !errors.IsFatal(err) {
				// no binding and no wildcard template for this key
				metrics.UnroutedPackets.Inc()
				s.log.Warn("no binding for routing key",
					zap.String("decoder", dec.Name()),
					zap.Int("key", key))
				return true, nil
			}
			return false, err
		}
		rb.FillMargin = s.fillMargin
		metrics.WildcardBuffers.Inc()
		s.log.Info("materialized wildcard buffer",
			zap.String("decoder", dec.Name()),
			zap.Int("key", key),
			zap.String("out_name", rb.OutName))
	}

	if err := rb.Store.SetRow(rb.Loc, fields); err != nil {
		return false, err
	}
	rb.Loc++
	if rb.NearFull() {
		s.anyFull = true
	}

	metrics.PacketsRead.WithLabelValues(dec.Name()).Inc()
	metrics.BufferFill.WithLabelValues(dec.Name(), rb.OutName).Set(float64(rb.Loc))
	return true, nil
}

// ReadChunk reads packets until a flush condition fires and returns the
// buffers eligible for emission plus the bytes consumed by this call.
//
// Flush conditions: source exhausted; single_packet mode after one packet;
// packetCap packets read (0 means DefaultPacketCap); any buffer near
// capacity. In only_full mode only buffers at or within the fill margin of
// capacity are returned, so partially filled buffers accumulate across calls
// and downstream flush operations are minimized; other modes return every
// buffer holding data.
//
// Buffers are handed off by reference. The caller must drain and Reset
// every returned buffer before calling ReadChunk again.
func (s *DataStreamer) ReadChunk(ctx context.Context, override ChunkMode, packetCap int) ([]*rawbuf.RawBuffer, int64, error) {
	if s.state == StateClosed {
		return nil, 0, errors.New(errors.ErrorTypeInternal, "streamer is not open")
	}
	if s.tracer != nil {
		var span trace.Span
		ctx, span = s.tracer.Start(ctx, "daqstream.ReadChunk")
		defer span.End()
	}

	mode := s.chunkMode
	if override != "" {
		mode = override
	}
	if packetCap <= 0 {
		packetCap = DefaultPacketCap
	}

	// recompute the backpressure flag and refresh fill gauges: the caller
	// may have reset buffers since the previous call
	s.anyFull = false
	for _, name := range s.active {
		list, _ := s.lib.List(name)
		for _, rb := range list.Buffers {
			if rb.Store == nil {
				continue
			}
			metrics.BufferFill.WithLabelValues(name, rb.OutName).Set(float64(rb.Loc))
			if rb.NearFull() {
				s.anyFull = true
			}
		}
	}

	startBytes := s.nBytesRead
	nPackets := 0
	for !s.anyFull {
		still, err := s.ReadPacket()
		if err != nil {
			return nil, s.nBytesRead - startBytes, err
		}
		if !still {
			break
		}
		nPackets++
		if mode == ChunkModeSinglePacket || nPackets >= packetCap {
			break
		}
	}

	var eligible []*rawbuf.RawBuffer
	for _, name := range s.active {
		list, _ := s.lib.List(name)
		for _, rb := range list.Buffers {
			if rb.Store == nil {
				// unmaterialized wildcard template
				continue
			}
			if mode == ChunkModeOnlyFull {
				// the read loop parks buffers at the near-full line, so
				// with a nonzero margin Loc never reaches capacity;
				// eligibility must use the same line or the stream stalls
				if rb.NearFull() {
					eligible = append(eligible, rb)
				}
				continue
			}
			if rb.Loc > 0 {
				eligible = append(eligible, rb)
			}
		}
	}

	metrics.ChunksFlushed.WithLabelValues(string(mode)).Inc()
	if s.tracer != nil {
		trace.SpanFromContext(ctx).SetAttributes(
			attribute.Int("packets", nPackets),
			attribute.Int("buffers", len(eligible)))
	}
	return eligible, s.nBytesRead - startBytes, nil
}

// Close terminates the stream. The streamer cannot be reused.
func (s *DataStreamer) Close() error {
	s.state = StateClosed
	if c, ok := s.src.(interface{ Close() error }); ok && c != nil {
		return c.Close()
	}
	return nil
}
