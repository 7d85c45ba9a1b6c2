// Package schem loads and saves Minecraft schematic files. Load strips the compression
// envelope, picks the dialect and decodes it into a voxel.Region; Save does the
// reverse for an explicitly chosen format and compression.
//
// The formats themselves live in package dialect, the unified model in package voxel.
// This package re-exports the error kinds of every layer so that callers can match on
// them with errors.Is without importing the subpackages.
package schem

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/oriumgames/schem/bitpack"
	"github.com/oriumgames/schem/compression"
	"github.com/oriumgames/schem/dialect"
	"github.com/oriumgames/schem/nbt"
	"github.com/oriumgames/schem/palette"
	"github.com/oriumgames/schem/voxel"
)

type (
	// Region is the unified in-memory schematic.
	Region = voxel.Region
	// Format identifies a schematic dialect.
	Format = dialect.Format
	// Compression is an outer compression envelope.
	Compression = compression.Mode
)

const (
	FormatAuto        = dialect.FormatAuto
	FormatMCEdit      = dialect.FormatMCEdit
	FormatSpongeV1    = dialect.FormatSpongeV1
	FormatSpongeV2    = dialect.FormatSpongeV2
	FormatSpongeV3    = dialect.FormatSpongeV3
	FormatLitematic   = dialect.FormatLitematic
	FormatBlueprint   = dialect.FormatBlueprint
	FormatMCStructure = dialect.FormatMCStructure
)

const (
	CompressionNone = compression.None
	CompressionGzip = compression.Gzip
	CompressionZlib = compression.Zlib
	CompressionZstd = compression.Zstd
)

var (
	ErrMalformedTag       = nbt.ErrMalformedTag
	ErrRecursionLimit     = nbt.ErrRecursionLimit
	ErrSignatureMismatch  = compression.ErrSignatureMismatch
	ErrTooLarge           = compression.ErrTooLarge
	ErrUnsupportedVersion = dialect.ErrUnsupportedVersion
	ErrUnknownFormat      = dialect.ErrUnknownFormat
	ErrPaletteOutOfRange  = palette.ErrOutOfRange
	ErrPaletteNotDense    = palette.ErrNotDense
	ErrLengthMismatch     = bitpack.ErrLengthMismatch
	ErrInvalidBitWidth    = bitpack.ErrInvalidBitWidth
	ErrInvalidDimensions  = voxel.ErrInvalidDimensions
	ErrVolumeTooLarge     = dialect.ErrVolumeTooLarge
	ErrUnrecognizedFormat = errors.New("schem: unrecognized format")
	errNilRegion          = errors.New("schem: nil region")
)

// Option configures Load, Save, Read and Write.
type Option func(*config)

type config struct {
	maxDepth  int
	maxSize   int64
	maxVolume int64
	logger    *slog.Logger
}

func buildConfig(opts []Option) config {
	c := config{maxDepth: nbt.DefaultMaxDepth, maxSize: compression.DefaultMaxSize, maxVolume: dialect.DefaultMaxVolume}
	for _, o := range opts {
		o(&c)
	}
	return c
}

func (c config) dialectOptions() dialect.Options {
	return dialect.Options{MaxDepth: c.maxDepth, MaxSize: c.maxSize, MaxVolume: c.maxVolume, Logger: c.logger}
}

// WithMaxDepth bounds the nesting of decoded tag trees.
func WithMaxDepth(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxDepth = n
		}
	}
}

// WithMaxDecompressedSize bounds the size of a decompressed payload.
func WithMaxDecompressedSize(n int64) Option {
	return func(c *config) {
		if n > 0 {
			c.maxSize = n
		}
	}
}

// WithMaxVolume bounds the number of blocks a decoded region may hold. Extents are
// checked before any block array is allocated.
func WithMaxVolume(n int64) Option {
	return func(c *config) {
		if n > 0 {
			c.maxVolume = n
		}
	}
}

// WithLogger sets the logger that receives warnings about lossy conversions. By
// default nothing is logged.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// Load decodes a schematic. With FormatAuto the dialects are tried in
// dialect.DetectionOrder; otherwise only the hinted dialect is used.
func Load(data []byte, hint Format, opts ...Option) (*Region, error) {
	c := buildConfig(opts)
	payload, mode, err := compression.Open(data, c.maxSize)
	if err != nil {
		return nil, err
	}
	in := dialect.NewInput(payload, c.dialectOptions())

	var d dialect.Dialect
	if hint == FormatAuto {
		if d, err = detect(in, mode); err != nil {
			return nil, err
		}
	} else if d, err = dialect.For(hint); err != nil {
		return nil, err
	}
	r, err := d.Decode(in)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", d.Format(), err)
	}
	return r, nil
}

func detect(in *dialect.Input, mode Compression) (dialect.Dialect, error) {
	for _, d := range dialect.DetectionOrder() {
		if d.Detect(in) {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: %d bytes after %s envelope", ErrUnrecognizedFormat, len(in.Bytes()), mode)
}

// Detect reports the format and compression envelope of data without decoding the
// blocks.
func Detect(data []byte, opts ...Option) (Format, Compression, error) {
	c := buildConfig(opts)
	payload, mode, err := compression.Open(data, c.maxSize)
	if err != nil {
		return FormatAuto, mode, err
	}
	d, err := detect(dialect.NewInput(payload, c.dialectOptions()), mode)
	if err != nil {
		return FormatAuto, mode, err
	}
	return d.Format(), mode, nil
}

// Save encodes r in format f and wraps the result in mode. Format.DefaultCompression
// gives the envelope a format is usually stored in.
func Save(r *Region, f Format, mode Compression, opts ...Option) ([]byte, error) {
	if r == nil {
		return nil, errNilRegion
	}
	c := buildConfig(opts)
	d, err := dialect.For(f)
	if err != nil {
		return nil, err
	}
	data, err := d.Encode(r, c.dialectOptions())
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", f, err)
	}
	return compression.Wrap(data, mode)
}

// Read is Load for a stream. At most the configured decompressed size limit is read.
func Read(rd io.Reader, hint Format, opts ...Option) (*Region, error) {
	c := buildConfig(opts)
	data, err := io.ReadAll(io.LimitReader(rd, c.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read schematic: %w", err)
	}
	if int64(len(data)) > c.maxSize {
		return nil, fmt.Errorf("%w: input over %d bytes", ErrTooLarge, c.maxSize)
	}
	return Load(data, hint, opts...)
}

// Write is Save for a stream.
func Write(w io.Writer, r *Region, f Format, mode Compression, opts ...Option) error {
	data, err := Save(r, f, mode, opts...)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write schematic: %w", err)
	}
	return nil
}
