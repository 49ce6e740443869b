package stream

import (
	"bufio"
	"encoding/binary"
	stderrors "errors"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/daqstream/daqstream/pkg/errors"
)

// ErrNoData reports a clean end of stream, or a byte source with nothing
// available right now. Distinct from a truncated trailing packet.
var ErrNoData = stderrors.New("no data available")

// WordSource is the byte-source collaborator: it frames the raw stream into
// 32-bit words. The engine is parameterized over this interface and never
// opens files or sockets itself.
type WordSource interface {
	// ReadHeader reads the stream-level header words and reports how many
	// bytes of the stream they occupied, framing included.
	ReadHeader() ([]uint32, int64, error)
	// ReadWords reads exactly n words. It returns ErrNoData when the
	// stream is cleanly exhausted before the first byte, and a truncated
	// error when it ends mid-request.
	ReadWords(n int) ([]uint32, error)
}

// maxHeaderWords bounds the declared stream-header length; anything larger
// is treated as a corrupt stream rather than allocated.
const maxHeaderWords = 1 << 20

// ReaderSource frames an io.Reader into little-endian 32-bit words.
type ReaderSource struct {
	r *bufio.Reader
}

// NewReaderSource wraps r in a word source.
func NewReaderSource(r io.Reader) *ReaderSource {
	return &ReaderSource{r: bufio.NewReaderSize(r, 1<<16)}
}

// ReadHeader reads the stream header: one count word followed by that many
// header words. The reported byte count includes the count word.
func (s *ReaderSource) ReadHeader() ([]uint32, int64, error) {
	count, err := s.ReadWords(1)
	if err != nil {
		return nil, 0, err
	}
	n := int(count[0])
	if n > maxHeaderWords {
		return nil, 0, errors.Newf(errors.ErrorTypeData, "stream header declares %d words", n)
	}
	nBytes := int64(4 * (n + 1))
	if n == 0 {
		return []uint32{}, nBytes, nil
	}
	words, err := s.ReadWords(n)
	if err == ErrNoData {
		err = errors.Newf(errors.ErrorTypeTruncated, "stream ended inside %d-word header", n)
	}
	return words, nBytes, err
}

// ReadWords reads exactly n words.
func (s *ReaderSource) ReadWords(n int) ([]uint32, error) {
	buf := make([]byte, 4*n)
	nRead, err := io.ReadFull(s.r, buf)
	if err != nil {
		if nRead == 0 && (err == io.EOF) {
			return nil, ErrNoData
		}
		return nil, errors.Wrap(err, errors.ErrorTypeTruncated,
			"stream ended mid-word-sequence")
	}

	words := make([]uint32, n)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(buf[4*i:])
	}
	return words, nil
}

// FileSource is a WordSource over a capture file. Compressed captures are
// opened transparently by extension: .gz, .zst, .lz4.
type FileSource struct {
	*ReaderSource
	closers []io.Closer
}

// OpenFile opens a plain or compressed capture file.
func OpenFile(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "opening stream")
	}

	fs := &FileSource{closers: []io.Closer{f}}

	var r io.Reader = f
	switch {
	case strings.HasSuffix(path, ".gz"):
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, errors.Wrap(err, errors.ErrorTypeFile, "opening gzip stream")
		}
		fs.closers = append(fs.closers, gz)
		r = gz
	case strings.HasSuffix(path, ".zst"):
		zr, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, errors.Wrap(err, errors.ErrorTypeFile, "opening zstd stream")
		}
		fs.closers = append(fs.closers, zr.IOReadCloser())
		r = zr
	case strings.HasSuffix(path, ".lz4"):
		r = lz4.NewReader(f)
	}

	fs.ReaderSource = NewReaderSource(r)
	return fs, nil
}

// Close releases the underlying file and any decompressor.
func (fs *FileSource) Close() error {
	var firstErr error
	for i := len(fs.closers) - 1; i >= 0; i-- {
		if err := fs.closers[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
