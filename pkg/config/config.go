// Package config provides the unified configuration for the daqstream
// engine and CLI: buffer sizing, flush policy, routing, and observability
// settings, loadable from YAML with environment overrides.
package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/daqstream/daqstream/pkg/errors"
)

// StreamConfig configures one stream instance.
type StreamConfig struct {
	// BufferSize is the row capacity allocated per routing buffer.
	BufferSize int `mapstructure:"buffer_size" yaml:"buffer_size"`
	// ChunkMode selects the flush policy: any_full, only_full, or
	// single_packet.
	ChunkMode string `mapstructure:"chunk_mode" yaml:"chunk_mode"`
	// PacketCap bounds packets per chunk read (0 = engine default).
	PacketCap int `mapstructure:"packet_cap" yaml:"packet_cap"`
	// FillMargin is the near-full margin in rows.
	FillMargin int `mapstructure:"fill_margin" yaml:"fill_margin"`
	// OutStream names the default output destination when no routing
	// configuration is supplied.
	OutStream string `mapstructure:"out_stream" yaml:"out_stream"`
	// Routing is the path to a JSON routing configuration, optional.
	Routing string `mapstructure:"routing" yaml:"routing"`
	// Keywords is the substitution dictionary for routing templates
	// (run identifiers and the like).
	Keywords map[string]string `mapstructure:"keywords" yaml:"keywords"`

	Observability ObservabilityConfig `mapstructure:"observability" yaml:"observability"`
}

// ObservabilityConfig controls logging, metrics, and tracing.
type ObservabilityConfig struct {
	LogLevel      string `mapstructure:"log_level" yaml:"log_level"`
	LogEncoding   string `mapstructure:"log_encoding" yaml:"log_encoding"`
	EnableTracing bool   `mapstructure:"enable_tracing" yaml:"enable_tracing"`
	// MetricsAddr serves the Prometheus endpoint when non-empty.
	MetricsAddr string `mapstructure:"metrics_addr" yaml:"metrics_addr"`
}

// Default returns the default stream configuration.
func Default() *StreamConfig {
	return &StreamConfig{
		BufferSize: 8192,
		ChunkMode:  "any_full",
		FillMargin: 0,
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			LogEncoding: "json",
		},
	}
}

// Validate checks the configuration for consistency.
func (c *StreamConfig) Validate() error {
	if c.BufferSize < 1 {
		return errors.Newf(errors.ErrorTypeConfig, "buffer_size must be >= 1, got %d", c.BufferSize)
	}
	switch c.ChunkMode {
	case "any_full", "only_full", "single_packet":
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unknown chunk_mode %q", c.ChunkMode)
	}
	if c.FillMargin < 0 || c.FillMargin >= c.BufferSize {
		return errors.Newf(errors.ErrorTypeConfig,
			"fill_margin must be in [0, buffer_size), got %d", c.FillMargin)
	}
	if c.PacketCap < 0 {
		return errors.Newf(errors.ErrorTypeConfig, "packet_cap must be >= 0, got %d", c.PacketCap)
	}
	return nil
}

// Save writes the configuration to path as YAML.
func (c *StreamConfig) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "marshaling config")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "writing config file")
	}
	return nil
}

// Load reads a YAML configuration file, applying DAQSTREAM_* environment
// overrides on top of the defaults. An empty path yields the defaults with
// environment overrides only.
func Load(path string) (*StreamConfig, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("DAQSTREAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := Default()
	v.SetDefault("buffer_size", defaults.BufferSize)
	v.SetDefault("chunk_mode", defaults.ChunkMode)
	v.SetDefault("packet_cap", defaults.PacketCap)
	v.SetDefault("fill_margin", defaults.FillMargin)
	v.SetDefault("observability.log_level", defaults.Observability.LogLevel)
	v.SetDefault("observability.log_encoding", defaults.Observability.LogEncoding)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "reading config file")
		}
	}

	cfg := &StreamConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "parsing config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
