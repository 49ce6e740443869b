package sink

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daqstream/daqstream/pkg/rawbuf"
	"github.com/daqstream/daqstream/pkg/store"
)

type closeBuffer struct {
	bytes.Buffer
	closed bool
}

func (b *closeBuffer) Close() error {
	b.closed = true
	return nil
}

func filledBuffer(t *testing.T, outStream, outName string, rows []map[string]interface{}) *rawbuf.RawBuffer {
	t.Helper()
	rb := &rawbuf.RawBuffer{
		Store:     store.NewTable(len(rows) + 2),
		OutStream: outStream,
		OutName:   outName,
	}
	for i, row := range rows {
		require.NoError(t, rb.Store.SetRow(i, row))
		rb.Loc++
	}
	return rb
}

func TestDrainWritesRowsAndResets(t *testing.T) {
	var out bytes.Buffer
	s := NewJSONLSink(&out)

	rb := filledBuffer(t, "", "ch004", []map[string]interface{}{
		{"channel": uint32(4), "timestamp": uint32(100)},
		{"channel": uint32(4), "timestamp": uint32(200)},
	})

	n, err := s.Drain(rb)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Zero(t, rb.Loc)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)

	var rec record
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "ch004", rec.Name)
	assert.Equal(t, float64(100), rec.Row["timestamp"])
}

func TestDrainRoutesByOutStream(t *testing.T) {
	var out bytes.Buffer
	opened := map[string]*closeBuffer{}
	s := NewJSONLSink(&out, WithOpenFunc(func(path string) (io.WriteCloser, error) {
		b := &closeBuffer{}
		opened[path] = b
		return b, nil
	}))

	def := filledBuffer(t, "", "a", []map[string]interface{}{{"v": 1}})
	file := filledBuffer(t, "out.jsonl", "b", []map[string]interface{}{{"v": 2}})

	_, err := s.Drain(def)
	require.NoError(t, err)
	_, err = s.Drain(file)
	require.NoError(t, err)

	assert.Contains(t, out.String(), `"a"`)
	require.Contains(t, opened, "out.jsonl")
	assert.Contains(t, opened["out.jsonl"].String(), `"b"`)

	// second drain to the same destination reuses the handle
	file2 := filledBuffer(t, "out.jsonl", "b", []map[string]interface{}{{"v": 3}})
	_, err = s.Drain(file2)
	require.NoError(t, err)
	assert.Len(t, opened, 1)

	require.NoError(t, s.Close())
	assert.True(t, opened["out.jsonl"].closed)
}

func TestCompressedDestination(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/out.jsonl.gz"

	s := NewJSONLSink(nil)
	rb := filledBuffer(t, path, "ch001", []map[string]interface{}{
		{"channel": uint32(1), "timestamp": uint32(7)},
	})

	_, err := s.Drain(rb)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	data, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"ch001"`)
}

func TestDrainEmptyBuffer(t *testing.T) {
	var out bytes.Buffer
	s := NewJSONLSink(&out)

	rb := filledBuffer(t, "", "empty", nil)
	n, err := s.Drain(rb)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, out.String())
}
