// Package dialect translates between the on-disk schematic formats and the voxel
// model. Each format is a Dialect; Detect, Decode and Encode operate on the bytes left
// after the outer compression envelope has been removed.
package dialect

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/oriumgames/schem/compression"
	"github.com/oriumgames/schem/nbt"
	"github.com/oriumgames/schem/voxel"
)

var (
	// ErrUnsupportedVersion is returned for a recognised format carrying a version
	// number this package does not implement.
	ErrUnsupportedVersion = errors.New("dialect: unsupported version")
	// ErrMissingField is returned when a required field is absent or has the wrong
	// tag type. It is a malformed tag.
	ErrMissingField = fmt.Errorf("%w: missing or mistyped field", nbt.ErrMalformedTag)
	// ErrVolumeTooLarge is returned when a declared extent exceeds Options.MaxVolume.
	ErrVolumeTooLarge = fmt.Errorf("%w: volume over limit", voxel.ErrInvalidDimensions)
	// ErrUnknownFormat is returned by ParseFormat and For.
	ErrUnknownFormat = errors.New("dialect: unknown format")
)

// Format identifies a dialect. The zero value requests detection.
type Format uint8

const (
	FormatAuto Format = iota
	FormatMCEdit
	FormatSpongeV1
	FormatSpongeV2
	FormatSpongeV3
	FormatLitematic
	FormatBlueprint
	FormatMCStructure
)

var formatNames = map[Format]string{
	FormatAuto:        "auto",
	FormatMCEdit:      "mcedit",
	FormatSpongeV1:    "sponge-v1",
	FormatSpongeV2:    "sponge-v2",
	FormatSpongeV3:    "sponge-v3",
	FormatLitematic:   "litematic",
	FormatBlueprint:   "blueprint",
	FormatMCStructure: "mcstructure",
}

func (f Format) String() string {
	if s, ok := formatNames[f]; ok {
		return s
	}
	return fmt.Sprintf("Format(%d)", uint8(f))
}

// Extension returns the conventional file extension, including the dot.
func (f Format) Extension() string {
	switch f {
	case FormatMCEdit:
		return ".schematic"
	case FormatSpongeV1, FormatSpongeV2, FormatSpongeV3:
		return ".schem"
	case FormatLitematic:
		return ".litematic"
	case FormatBlueprint:
		return ".bp"
	case FormatMCStructure:
		return ".mcstructure"
	}
	return ""
}

// DefaultCompression returns the envelope the format is normally stored in.
func (f Format) DefaultCompression() compression.Mode {
	switch f {
	case FormatBlueprint, FormatMCStructure, FormatAuto:
		return compression.None
	}
	return compression.Gzip
}

// Formats returns every concrete format.
func Formats() []Format {
	return []Format{FormatMCEdit, FormatSpongeV1, FormatSpongeV2, FormatSpongeV3, FormatLitematic, FormatBlueprint, FormatMCStructure}
}

// ParseFormat accepts a format name ("sponge-v2", "litematic"), a short alias
// ("sponge", "schematic") or a file name or extension (".schem", "house.bp"). Sponge
// aliases and the .schem extension select version 3.
func ParseFormat(s string) (Format, error) {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), ".")
	for f, name := range formatNames {
		if s == name {
			return f, nil
		}
	}
	switch s {
	case "sponge", "schem", "worldedit":
		return FormatSpongeV3, nil
	case "schematic", "mcedit":
		return FormatMCEdit, nil
	case "litematica":
		return FormatLitematic, nil
	case "axiom", "bp":
		return FormatBlueprint, nil
	case "structure", "bedrock":
		return FormatMCStructure, nil
	}
	if ext := filepath.Ext(s); ext != "" && ext != s {
		return ParseFormat(ext)
	}
	return FormatAuto, fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// Options carries settings shared by every dialect.
type Options struct {
	// MaxDepth bounds tag nesting while decoding. Zero uses nbt.DefaultMaxDepth.
	MaxDepth int
	// MaxSize bounds nested decompressed payloads. Zero uses
	// compression.DefaultMaxSize.
	MaxSize int64
	// MaxVolume bounds the number of blocks a decoded region may hold. Zero uses
	// DefaultMaxVolume.
	MaxVolume int64
	// Logger receives warnings about lossy conversions. Nil discards them.
	Logger *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return o.Logger
}

// DefaultMaxVolume is the block count allowed when Options.MaxVolume is zero.
const DefaultMaxVolume = 1 << 25

// checkVolume rejects an extent before a block array is allocated for it.
func (o Options) checkVolume(w, h, l int) error {
	if err := voxel.CheckDimensions(w, h, l); err != nil {
		return err
	}
	limit := o.MaxVolume
	if limit <= 0 {
		limit = DefaultMaxVolume
	}
	if v := int64(w) * int64(h) * int64(l); v > limit {
		return fmt.Errorf("%w: %dx%dx%d holds %d blocks, limit %d", ErrVolumeTooLarge, w, h, l, v, limit)
	}
	return nil
}

func (o Options) nbtOptions() []nbt.Option {
	return []nbt.Option{nbt.WithMaxDepth(o.MaxDepth)}
}

// Dialect reads and writes one schematic format.
type Dialect interface {
	// Format returns the format written by Encode.
	Format() Format
	// Detect reports whether in looks like this format. It must not fail.
	Detect(in *Input) bool
	// Decode builds a region from in. No region is returned with an error.
	Decode(in *Input) (*voxel.Region, error)
	// Encode serialises r without an outer compression envelope.
	Encode(r *voxel.Region, opts Options) ([]byte, error)
}

// For returns the dialect that writes f.
func For(f Format) (Dialect, error) {
	switch f {
	case FormatMCEdit:
		return MCEdit{}, nil
	case FormatSpongeV1:
		return Sponge{Version: 1}, nil
	case FormatSpongeV2:
		return Sponge{Version: 2}, nil
	case FormatSpongeV3:
		return Sponge{Version: 3}, nil
	case FormatLitematic:
		return Litematic{}, nil
	case FormatBlueprint:
		return Blueprint{}, nil
	case FormatMCStructure:
		return MCStructure{}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, f)
}

// DetectionOrder lists the dialects in the order their Detect methods are consulted.
// Formats with a binary signature come first; the legacy MCEdit layout, which is
// recognised only by the absence of newer fields, and the little-endian Bedrock
// format come last.
func DetectionOrder() []Dialect {
	return []Dialect{
		Blueprint{},
		Litematic{},
		Sponge{Version: 3},
		Sponge{Version: 2},
		Sponge{Version: 1},
		MCEdit{},
		MCStructure{},
	}
}

// Input is a decompressed payload shared by the detection and decoding of every
// dialect. Parsed tag trees are cached so that each interpretation is built at most
// once. An Input is not safe for concurrent use.
type Input struct {
	data []byte
	opts Options

	javaDone bool
	javaName string
	javaRoot *nbt.Compound
	javaErr  error

	bedrockDone bool
	bedrockRoot *nbt.Compound
	bedrockErr  error
}

// NewInput wraps a decompressed payload.
func NewInput(data []byte, opts Options) *Input {
	return &Input{data: data, opts: opts}
}

// Bytes returns the raw payload.
func (in *Input) Bytes() []byte {
	return in.data
}

// Options returns the options the input was created with.
func (in *Input) Options() Options {
	return in.opts
}

// Java returns the payload decoded as a big-endian tag tree with a compound root.
func (in *Input) Java() (string, *nbt.Compound, error) {
	if !in.javaDone {
		in.javaDone = true
		in.javaName, in.javaRoot, in.javaErr = nbt.DecodeCompound(in.data, in.opts.nbtOptions()...)
	}
	return in.javaName, in.javaRoot, in.javaErr
}

// Bedrock returns the payload decoded as a little-endian tag tree.
func (in *Input) Bedrock() (*nbt.Compound, error) {
	if !in.bedrockDone {
		in.bedrockDone = true
		in.bedrockRoot, in.bedrockErr = decodeLittleEndian(in.data, in.opts.nbtOptions()...)
	}
	return in.bedrockRoot, in.bedrockErr
}
