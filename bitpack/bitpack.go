// Package bitpack converts between palette index sequences and the compact encodings
// schematic formats store them in: one byte per value, LEB128-style varints, nibbles
// and fixed-width fields packed into 64-bit words.
package bitpack

import (
	"errors"
	"fmt"
	"math/bits"
)

var (
	// ErrLengthMismatch is returned when the encoded data does not hold exactly the
	// declared number of values.
	ErrLengthMismatch = errors.New("bitpack: array length mismatch")
	// ErrInvalidBitWidth is returned for a width outside [1, 32] or a value that does
	// not fit in the width being encoded.
	ErrInvalidBitWidth = errors.New("bitpack: invalid bit width")
	// ErrVarintOverflow is returned for a varint longer than five bytes or a value too
	// large to decode into the requested type.
	ErrVarintOverflow = errors.New("bitpack: varint overflow")
)

// Index is the set of integer types a packed sequence decodes into.
type Index interface {
	~uint32 | ~uint64
}

// BitsFor returns the field width needed to store indices into a palette of size
// entries: ceil(log2(size)), but never less than one.
func BitsFor(size int) int {
	if size <= 2 {
		return 1
	}
	return bits.Len(uint(size - 1))
}

func checkWidth(width int) error {
	if width < 1 || width > 32 {
		return fmt.Errorf("%w: %d", ErrInvalidBitWidth, width)
	}
	return nil
}
