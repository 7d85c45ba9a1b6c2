package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/oriumgames/schem"
	"github.com/oriumgames/schem/compression"
	"github.com/oriumgames/schem/dialect"
	"gopkg.in/yaml.v3"
)

// configEnv names the environment variable consulted when --config is not given.
const configEnv = "SCHEMCONV_CONFIG"

// Config holds defaults for every command. Flags override it.
type Config struct {
	// Format is the target format when neither --to nor the output extension names one.
	Format string `yaml:"format"`
	// Compression is the output envelope; empty picks the format's usual one.
	Compression string `yaml:"compression"`
	MaxDepth    int    `yaml:"max_depth"`
	// MaxDecompressedSize is in bytes.
	MaxDecompressedSize int64 `yaml:"max_decompressed_size"`
	// MaxVolume is in blocks.
	MaxVolume int64  `yaml:"max_volume"`
	LogLevel  string `yaml:"log_level"`
}

// loadConfig reads the YAML file at path, or at $SCHEMCONV_CONFIG when path is
// empty. With neither set it returns the zero Config.
func loadConfig(path string) (Config, error) {
	var cfg Config
	if path == "" {
		if path = os.Getenv(configEnv); path == "" {
			return cfg, nil
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) level() (slog.Level, error) {
	var l slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return l, fmt.Errorf("log_level: %w", err)
	}
	return l, nil
}

// options converts the limits into library options.
func (c Config) options(log *slog.Logger) []schem.Option {
	opts := []schem.Option{schem.WithLogger(log)}
	if c.MaxDepth > 0 {
		opts = append(opts, schem.WithMaxDepth(c.MaxDepth))
	}
	if c.MaxDecompressedSize > 0 {
		opts = append(opts, schem.WithMaxDecompressedSize(c.MaxDecompressedSize))
	}
	if c.MaxVolume > 0 {
		opts = append(opts, schem.WithMaxVolume(c.MaxVolume))
	}
	return opts
}

// target resolves the output format from an explicit name, the output file name and
// the configured default, in that order.
func (c Config) target(name, output string) (schem.Format, error) {
	if name != "" {
		return dialect.ParseFormat(name)
	}
	if f, err := dialect.ParseFormat(output); err == nil {
		return f, nil
	}
	if c.Format != "" {
		return dialect.ParseFormat(c.Format)
	}
	return schem.FormatAuto, fmt.Errorf("cannot tell the output format of %s; pass --to", output)
}

// envelope resolves the output compression.
func (c Config) envelope(name string, f schem.Format) (schem.Compression, error) {
	if name == "" {
		name = c.Compression
	}
	if name == "" {
		return f.DefaultCompression(), nil
	}
	return compression.ParseMode(name)
}
