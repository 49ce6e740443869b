// Package metrics provides Prometheus metrics for the decode-and-route
// engine: packet and byte throughput, routing outcomes, and chunk flushes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PacketsRead counts decoded packets per decoder.
	PacketsRead = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "daqstream_packets_read_total",
		Help: "Total number of packets decoded, by decoder",
	}, []string{"decoder"})

	// BytesRead counts bytes consumed from the byte source.
	BytesRead = promauto.NewCounter(prometheus.CounterOpts{
		Name: "daqstream_bytes_read_total",
		Help: "Total number of bytes consumed from the stream",
	})

	// UnroutedPackets counts packets whose type id matched no decoder.
	UnroutedPackets = promauto.NewCounter(prometheus.CounterOpts{
		Name: "daqstream_unrouted_packets_total",
		Help: "Total number of packets dropped because no decoder or wildcard matched",
	})

	// SkippedPackets counts packets for decoders the user opted out of.
	SkippedPackets = promauto.NewCounter(prometheus.CounterOpts{
		Name: "daqstream_skipped_packets_total",
		Help: "Total number of packets skipped for unconfigured decoders",
	})

	// ChunksFlushed counts chunk-read returns per flush mode.
	ChunksFlushed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "daqstream_chunks_flushed_total",
		Help: "Total number of chunk reads returned, by flush mode",
	}, []string{"mode"})

	// WildcardBuffers counts buffers materialized from wildcard templates.
	WildcardBuffers = promauto.NewCounter(prometheus.CounterOpts{
		Name: "daqstream_wildcard_buffers_total",
		Help: "Total number of buffers materialized on the fly from wildcard bindings",
	})

	// BufferFill tracks the fill cursor of each routing buffer.
	BufferFill = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "daqstream_buffer_fill_rows",
		Help: "Rows currently filled per routing buffer",
	}, []string{"decoder", "out_name"})
)
