package stream

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daqstream/daqstream/pkg/errors"
)

func TestOpenFileGzip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "capture.gz")

	var raw bytes.Buffer
	raw.Write(encode([]uint32{2, 0xDEAD, 0xBEEF}))
	raw.Write(encode(eventPacket(3, 50, 9)))

	f, err := os.Create(path)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	_, err = gz.Write(raw.Bytes())
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	src, err := OpenFile(path)
	require.NoError(t, err)
	defer src.Close()

	header, headerBytes, err := src.ReadHeader()
	require.NoError(t, err)
	assert.Equal(t, []uint32{0xDEAD, 0xBEEF}, header)
	assert.Equal(t, int64(12), headerBytes)

	words, err := src.ReadWords(4)
	require.NoError(t, err)
	assert.Equal(t, eventPacket(3, 50, 9), words)

	_, err = src.ReadWords(1)
	assert.Equal(t, ErrNoData, err)
}

func TestReadHeaderTruncated(t *testing.T) {
	// count word declares 5 header words, only 1 follows
	src := NewReaderSource(bytes.NewReader(encode([]uint32{5, 0xAA})))
	_, _, err := src.ReadHeader()
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeTruncated))
}

func TestReadHeaderEmpty(t *testing.T) {
	src := NewReaderSource(bytes.NewReader(encode([]uint32{0})))
	header, headerBytes, err := src.ReadHeader()
	require.NoError(t, err)
	assert.Empty(t, header)
	assert.Equal(t, int64(4), headerBytes)
}

func TestOpenFileMissing(t *testing.T) {
	_, err := OpenFile("/no/such/capture")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeFile))
}
