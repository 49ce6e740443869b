package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/daqstream/daqstream/pkg/config"
	"github.com/daqstream/daqstream/pkg/decoder"
	"github.com/daqstream/daqstream/pkg/logger"
	"github.com/daqstream/daqstream/pkg/observability"
	"github.com/daqstream/daqstream/pkg/packet"
	"github.com/daqstream/daqstream/pkg/rawbuf"
	"github.com/daqstream/daqstream/pkg/sink"
	"github.com/daqstream/daqstream/pkg/stream"
)

var version = "0.1.0"

func main() {
	root := &cobra.Command{
		Use:   "daqstream",
		Short: "daqstream - streaming decode-and-route engine for DAQ packet streams",
		Long: `daqstream reads framed binary packet streams from data acquisition
systems, decodes them through a pluggable decoder registry, and routes the
decoded rows into output buffers according to a declarative configuration.`,
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("daqstream v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "decoders",
		Short: "List built-in decoders and their type ids",
		Run: func(cmd *cobra.Command, args []string) {
			names := decoder.NewDefaultRegistry().IDNames()
			ids := make([]uint32, 0, len(names))
			for id := range names {
				ids = append(ids, id)
			}
			sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
			for _, id := range ids {
				fmt.Printf("  %3d  %s\n", id, names[id])
			}
		},
	})

	var (
		dumpInput     string
		dumpPackets   int
		dumpMaxWords  int
		dumpCountOnly bool
	)
	dumpCmd := &cobra.Command{
		Use:   "dump",
		Short: "Hex-dump packets from a capture file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := logger.Init(logger.Config{Level: "debug", Encoding: "console"}); err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			log := logger.Get()

			src, err := stream.OpenFile(dumpInput)
			if err != nil {
				return err
			}
			defer src.Close()

			header, _, err := src.ReadHeader()
			if err != nil {
				return err
			}
			log.Debug("stream header", zap.Int("words", len(header)))

			names := decoder.NewDefaultRegistry().IDNames()
			for n := 0; dumpPackets == 0 || n < dumpPackets; n++ {
				head, err := src.ReadWords(1)
				if err == stream.ErrNoData {
					break
				}
				if err != nil {
					return err
				}
				p := packet.Packet(head)
				nWords := p.NumWords()
				if nWords < 1 {
					return fmt.Errorf("packet header declares zero words")
				}
				if nWords > 1 {
					rest, err := src.ReadWords(nWords - 1)
					if err != nil {
						return err
					}
					p = packet.Packet(append(head, rest...))
				}
				packet.HexDump(log, p, packet.DumpOptions{
					IDNames:   names,
					MaxWords:  dumpMaxWords,
					CountOnly: dumpCountOnly,
				})
			}
			return nil
		},
	}
	dumpCmd.Flags().StringVarP(&dumpInput, "input", "i", "", "Capture file to dump (required)")
	_ = dumpCmd.MarkFlagRequired("input")
	dumpCmd.Flags().IntVar(&dumpPackets, "packets", 0, "Stop after this many packets (0 = all)")
	dumpCmd.Flags().IntVar(&dumpMaxWords, "max-words", 8, "Words printed per packet (0 = all)")
	dumpCmd.Flags().BoolVar(&dumpCountOnly, "count-only", false, "Print only packet headings and word counts")
	root.AddCommand(dumpCmd)

	root.AddCommand(&cobra.Command{
		Use:   "init-config <path>",
		Short: "Write a default engine configuration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.Default().Save(args[0])
		},
	})

	var (
		cfgFile string
		inputs  []string
	)
	streamCmd := &cobra.Command{
		Use:   "stream",
		Short: "Decode one or more packet streams",
		Long: `Decode packet streams into JSON-lines output. Each input file runs on
its own streamer; with multiple inputs, rows for input FILE go to FILE.jsonl
unless the routing configuration names explicit destinations.

Example:
  daqstream stream -i run0042.orca --routing routing.json --chunk-mode only_full`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			if err := applyFlagOverrides(cmd, cfg); err != nil {
				return err
			}
			return runStreams(cmd.Context(), cfg, inputs)
		},
	}

	streamCmd.Flags().StringVar(&cfgFile, "config", "", "Path to YAML engine configuration (optional)")
	streamCmd.Flags().StringSliceVarP(&inputs, "input", "i", nil, "Input stream file; repeat for multiple streams (required)")
	_ = streamCmd.MarkFlagRequired("input")

	streamCmd.Flags().String("routing", "", "Path to JSON routing configuration")
	streamCmd.Flags().String("chunk-mode", "any_full", "Flush policy: any_full, only_full, single_packet")
	streamCmd.Flags().Int("buffer-size", 8192, "Row capacity per routing buffer")
	streamCmd.Flags().Int("fill-margin", 0, "Near-full margin in rows")
	streamCmd.Flags().Int("packet-cap", 0, "Maximum packets per read cycle (0 = engine default)")
	streamCmd.Flags().String("out", "", "Default output destination for unconfigured decoders")
	streamCmd.Flags().StringToString("keyword", nil, "Template substitution, e.g. --keyword file_key=run42")
	streamCmd.Flags().String("log-level", "info", "Log level (debug, info, warn, error)")
	streamCmd.Flags().Bool("trace", false, "Emit tracing spans to stderr")
	streamCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")

	root.AddCommand(streamCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// applyFlagOverrides layers explicitly set command-line flags over the file
// configuration.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.StreamConfig) error {
	flags := cmd.Flags()
	if flags.Changed("routing") {
		cfg.Routing, _ = flags.GetString("routing")
	}
	if flags.Changed("chunk-mode") {
		cfg.ChunkMode, _ = flags.GetString("chunk-mode")
	}
	if flags.Changed("buffer-size") {
		cfg.BufferSize, _ = flags.GetInt("buffer-size")
	}
	if flags.Changed("fill-margin") {
		cfg.FillMargin, _ = flags.GetInt("fill-margin")
	}
	if flags.Changed("packet-cap") {
		cfg.PacketCap, _ = flags.GetInt("packet-cap")
	}
	if flags.Changed("out") {
		cfg.OutStream, _ = flags.GetString("out")
	}
	if flags.Changed("log-level") {
		cfg.Observability.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("trace") {
		cfg.Observability.EnableTracing, _ = flags.GetBool("trace")
	}
	if flags.Changed("metrics-addr") {
		cfg.Observability.MetricsAddr, _ = flags.GetString("metrics-addr")
	}
	if kw, _ := flags.GetStringToString("keyword"); len(kw) > 0 {
		if cfg.Keywords == nil {
			cfg.Keywords = make(map[string]string)
		}
		for k, v := range kw {
			cfg.Keywords[k] = v
		}
	}
	return cfg.Validate()
}

// runStreams drives one streamer per input file, each on its own goroutine.
func runStreams(ctx context.Context, cfg *config.StreamConfig, inputs []string) error {
	if err := logger.Init(logger.Config{
		Level:    cfg.Observability.LogLevel,
		Encoding: cfg.Observability.LogEncoding,
	}); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	if runID, ok := cfg.Keywords["run_id"]; ok {
		ctx = context.WithValue(ctx, logger.RunIDKey, runID)
	}
	log := logger.WithContext(ctx).With(zap.String("component", "daqstream-cli"))

	if cfg.Observability.EnableTracing {
		if err := observability.Init("daqstream"); err != nil {
			return err
		}
		defer func() {
			if err := observability.Shutdown(context.Background()); err != nil {
				log.Warn("tracer shutdown failed", zap.Error(err))
			}
		}()
	}

	if addr := cfg.Observability.MetricsAddr; addr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(addr, mux); err != nil {
				log.Warn("metrics server stopped", zap.Error(err))
			}
		}()
		log.Info("serving metrics", zap.String("addr", addr))
	}

	var routing rawbuf.RoutingConfig
	if cfg.Routing != "" {
		var err error
		routing, err = rawbuf.LoadRoutingConfig(cfg.Routing)
		if err != nil {
			return err
		}
	}

	var wg sync.WaitGroup
	errs := make([]error, len(inputs))
	for i, input := range inputs {
		wg.Add(1)
		go func(i int, input string) {
			defer wg.Done()
			errs[i] = runStreamFile(ctx, cfg, routing, input, len(inputs) > 1)
		}(i, input)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return fmt.Errorf("stream %s: %w", inputs[i], err)
		}
	}
	return nil
}

func runStreamFile(ctx context.Context, cfg *config.StreamConfig, routing rawbuf.RoutingConfig, input string, multi bool) error {
	ctx = context.WithValue(ctx, logger.StreamKey, input)
	log := logger.WithContext(ctx)

	src, err := stream.OpenFile(input)
	if err != nil {
		return err
	}

	// each streamer owns its library exclusively, so build one per input
	var lib *rawbuf.RawBufferLibrary
	if routing != nil {
		lib, err = rawbuf.NewLibraryFromConfig(routing, cfg.Keywords)
		if err != nil {
			return err
		}
	}

	s := stream.NewDataStreamer(decoder.NewDefaultRegistry(),
		stream.WithLogger(log),
		stream.WithFillMargin(cfg.FillMargin),
		stream.WithDefaultOutStream(cfg.OutStream),
		stream.WithTracer(observability.Tracer()),
	)
	defer func() {
		if err := s.Close(); err != nil {
			log.Warn("close failed", zap.Error(err))
		}
	}()

	header, err := s.Open(ctx, src, lib, cfg.BufferSize, stream.ChunkMode(cfg.ChunkMode))
	if err != nil {
		return err
	}
	log.Info("stream header read", zap.Int("header_words", len(header)))

	var defaultOut io.Writer = os.Stdout
	if multi {
		f, err := os.Create(input + ".jsonl")
		if err != nil {
			return err
		}
		defer f.Close()
		defaultOut = f
	}
	snk := sink.NewJSONLSink(defaultOut)
	defer snk.Close()

	var totalRows int
	for {
		chunk, nBytes, err := s.ReadChunk(ctx, "", cfg.PacketCap)
		if err != nil {
			return err
		}
		if len(chunk) == 0 && nBytes == 0 {
			break
		}
		for _, rb := range chunk {
			n, err := snk.Drain(rb)
			if err != nil {
				return err
			}
			totalRows += n
		}
	}

	// only_full leaves partial buffers behind at end of stream; a forced
	// any_full pass returns them without reading more data
	tail, _, err := s.ReadChunk(ctx, stream.ChunkModeAnyFull, 1)
	if err != nil {
		return err
	}
	for _, rb := range tail {
		n, err := snk.Drain(rb)
		if err != nil {
			return err
		}
		totalRows += n
	}

	log.Info("stream complete",
		zap.Int("rows", totalRows),
		zap.Int64("bytes_read", s.BytesRead()))
	return nil
}
