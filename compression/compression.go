// Package compression identifies and strips the outer compression envelope of a
// schematic file and applies one when saving.
package compression

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// Mode is an outer compression envelope.
type Mode int

const (
	// None is an uncompressed payload.
	None Mode = iota
	// Gzip is RFC 1952, the envelope of nearly every Java Edition schematic.
	Gzip
	// Zlib is RFC 1950.
	Zlib
	// Zstd is a Zstandard frame.
	Zstd
)

// DefaultMaxSize bounds decompressed output unless Open is given another limit.
const DefaultMaxSize int64 = 512 << 20

var (
	// ErrSignatureMismatch is returned when the leading bytes name an envelope but the
	// stream behind them does not decompress.
	ErrSignatureMismatch = errors.New("compression: signature mismatch")
	// ErrTooLarge is returned when decompressed output exceeds the configured limit.
	ErrTooLarge = errors.New("compression: decompressed size exceeds limit")
)

var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

func (m Mode) String() string {
	switch m {
	case None:
		return "none"
	case Gzip:
		return "gzip"
	case Zlib:
		return "zlib"
	case Zstd:
		return "zstd"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode parses the name returned by Mode.String. "raw" is accepted for None.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "raw", "":
		return None, nil
	case "gzip", "gz":
		return Gzip, nil
	case "zlib":
		return Zlib, nil
	case "zstd", "zst":
		return Zstd, nil
	}
	return None, fmt.Errorf("compression: unknown mode %q", s)
}

// Detect identifies the envelope from the leading bytes of data. It never fails; data
// that matches no signature is treated as uncompressed.
func Detect(data []byte) Mode {
	switch {
	case len(data) >= 2 && data[0] == 0x1F && data[1] == 0x8B:
		return Gzip
	case len(data) >= 4 && bytes.Equal(data[:4], zstdMagic):
		return Zstd
	case len(data) >= 2 && isZlibHeader(data[0], data[1]):
		return Zlib
	}
	return None
}

// isZlibHeader checks for deflate with a window of at most 32 KiB (CMF 0x78) and a
// valid header checksum.
func isZlibHeader(cmf, flg byte) bool {
	if cmf>>4 != 7 || cmf&0x0F != 8 {
		return false
	}
	return (uint16(cmf)<<8|uint16(flg))%31 == 0
}

// Open strips the envelope identified by Detect and returns the payload together with
// the mode that was found. maxSize bounds the payload; values below one use
// DefaultMaxSize.
func Open(data []byte, maxSize int64) ([]byte, Mode, error) {
	mode := Detect(data)
	if mode == None {
		return data, None, nil
	}
	if maxSize < 1 {
		maxSize = DefaultMaxSize
	}

	var (
		r   io.Reader
		err error
	)
	switch mode {
	case Gzip:
		var gr *gzip.Reader
		gr, err = gzip.NewReader(bytes.NewReader(data))
		if err == nil {
			defer gr.Close()
			r = gr
		}
	case Zlib:
		var zr io.ReadCloser
		zr, err = zlib.NewReader(bytes.NewReader(data))
		if err == nil {
			defer zr.Close()
			r = zr
		}
	case Zstd:
		var dec *zstd.Decoder
		dec, err = zstd.NewReader(bytes.NewReader(data), zstd.WithDecoderConcurrency(1))
		if err == nil {
			defer dec.Close()
			r = dec
		}
	}
	if err != nil {
		return nil, mode, fmt.Errorf("%w: open %s stream: %w", ErrSignatureMismatch, mode, err)
	}

	out, err := io.ReadAll(io.LimitReader(r, maxSize+1))
	if err != nil {
		return nil, mode, fmt.Errorf("%w: read %s stream: %w", ErrSignatureMismatch, mode, err)
	}
	if int64(len(out)) > maxSize {
		return nil, mode, fmt.Errorf("%w: %s payload over %d bytes", ErrTooLarge, mode, maxSize)
	}
	return out, mode, nil
}

// Wrap applies mode to data.
func Wrap(data []byte, mode Mode) ([]byte, error) {
	var buf bytes.Buffer
	switch mode {
	case None:
		return data, nil
	case Gzip:
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("compression: write gzip: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("compression: close gzip: %w", err)
		}
	case Zlib:
		w := zlib.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("compression: write zlib: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("compression: close zlib: %w", err)
		}
	case Zstd:
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("compression: create zstd encoder: %w", err)
		}
		out := enc.EncodeAll(data, make([]byte, 0, len(data)/2))
		_ = enc.Close()
		return out, nil
	default:
		return nil, fmt.Errorf("compression: unknown mode %d", int(mode))
	}
	return buf.Bytes(), nil
}
