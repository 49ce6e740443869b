// Package sink implements chunk consumers: they drain the rows a stream
// engine accumulated in its routing buffers and reset the buffers for the
// next read cycle.
package sink

import (
	"io"
	"os"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/daqstream/daqstream/pkg/errors"
	"github.com/daqstream/daqstream/pkg/rawbuf"
)

// Sink consumes drained chunks.
type Sink interface {
	// Drain writes every valid row of the buffer to its destination and
	// resets the buffer.
	Drain(rb *rawbuf.RawBuffer) (int, error)
	Close() error
}

// record is one emitted row: the buffer's resolved name plus the decoded
// field values.
type record struct {
	Name string                 `json:"name"`
	Row  map[string]interface{} `json:"row"`
}

// JSONLSink writes rows as JSON lines. A buffer's OutStream selects the
// destination file; an empty OutStream or "-" goes to the default writer.
type JSONLSink struct {
	defaultOut io.Writer
	files      map[string]io.WriteCloser
	openFn     func(path string) (io.WriteCloser, error)
}

// Option configures a JSONLSink.
type Option func(*JSONLSink)

// WithOpenFunc overrides how destination paths are opened. Used by tests
// and by callers writing somewhere other than the local filesystem.
func WithOpenFunc(fn func(path string) (io.WriteCloser, error)) Option {
	return func(s *JSONLSink) { s.openFn = fn }
}

// NewJSONLSink creates a sink whose unaddressed buffers go to defaultOut.
func NewJSONLSink(defaultOut io.Writer, opts ...Option) *JSONLSink {
	s := &JSONLSink{
		defaultOut: defaultOut,
		files:      make(map[string]io.WriteCloser),
		openFn:     openDestination,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *JSONLSink) writer(outStream string) (io.Writer, error) {
	if outStream == "" || outStream == "-" {
		return s.defaultOut, nil
	}
	if w, ok := s.files[outStream]; ok {
		return w, nil
	}
	w, err := s.openFn(outStream)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeFile, "opening destination %q", outStream)
	}
	s.files[outStream] = w
	return w, nil
}

// Drain writes the buffer's valid rows as JSON lines and resets it.
func (s *JSONLSink) Drain(rb *rawbuf.RawBuffer) (int, error) {
	w, err := s.writer(rb.OutStream)
	if err != nil {
		return 0, err
	}

	enc := json.NewEncoder(w)
	for i := 0; i < rb.Loc; i++ {
		row, err := rb.Store.Row(i)
		if err != nil {
			return i, err
		}
		if err := enc.Encode(record{Name: rb.OutName, Row: row}); err != nil {
			return i, errors.Wrap(err, errors.ErrorTypeFile, "encoding row")
		}
	}

	n := rb.Loc
	rb.Reset()
	return n, nil
}

// layeredWriteCloser closes a compressor and its underlying file in order.
type layeredWriteCloser struct {
	io.Writer
	closers []io.Closer
}

func (l *layeredWriteCloser) Close() error {
	var first error
	for _, c := range l.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// openDestination creates a destination file, compressing transparently by
// extension: .gz, .zst, .lz4. Mirrors how capture files are opened on the
// read side.
func openDestination(path string) (io.WriteCloser, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	switch {
	case strings.HasSuffix(path, ".gz"):
		gz := gzip.NewWriter(f)
		return &layeredWriteCloser{Writer: gz, closers: []io.Closer{gz, f}}, nil
	case strings.HasSuffix(path, ".zst"):
		zw, err := zstd.NewWriter(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		return &layeredWriteCloser{Writer: zw, closers: []io.Closer{zw, f}}, nil
	case strings.HasSuffix(path, ".lz4"):
		lw := lz4.NewWriter(f)
		return &layeredWriteCloser{Writer: lw, closers: []io.Closer{lw, f}}, nil
	}
	return f, nil
}

// Close closes every destination file the sink opened.
func (s *JSONLSink) Close() error {
	var first error
	for path, w := range s.files {
		if err := w.Close(); err != nil && first == nil {
			first = errors.Wrapf(err, errors.ErrorTypeFile, "closing %q", path)
		}
	}
	s.files = make(map[string]io.WriteCloser)
	return first
}
