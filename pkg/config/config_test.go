package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daqstream/daqstream/pkg/errors"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 8192, cfg.BufferSize)
	assert.Equal(t, "any_full", cfg.ChunkMode)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []func(*StreamConfig){
		func(c *StreamConfig) { c.BufferSize = 0 },
		func(c *StreamConfig) { c.ChunkMode = "sometimes_full" },
		func(c *StreamConfig) { c.FillMargin = -1 },
		func(c *StreamConfig) { c.FillMargin = c.BufferSize },
		func(c *StreamConfig) { c.PacketCap = -5 },
	}
	for i, mutate := range cases {
		cfg := Default()
		mutate(cfg)
		err := cfg.Validate()
		require.Error(t, err, "case %d", i)
		assert.True(t, errors.IsType(err, errors.ErrorTypeConfig), "case %d", i)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stream.yaml")
	yaml := `
buffer_size: 128
chunk_mode: only_full
keywords:
  file_key: run42
observability:
  log_level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 128, cfg.BufferSize)
	assert.Equal(t, "only_full", cfg.ChunkMode)
	assert.Equal(t, "run42", cfg.Keywords["file_key"])
	assert.Equal(t, "debug", cfg.Observability.LogLevel)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.yaml")

	cfg := Default()
	cfg.BufferSize = 64
	cfg.Keywords = map[string]string{"run_id": "0042"}
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 64, loaded.BufferSize)
	assert.Equal(t, "0042", loaded.Keywords["run_id"])
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/no/such/config.yaml")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}
