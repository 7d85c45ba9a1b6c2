package bitpack

import "fmt"

// PackBytes stores one value per byte.
func PackBytes[T Index](values []T) ([]byte, error) {
	out := make([]byte, len(values))
	for i, v := range values {
		if uint64(v) > 0xFF {
			return nil, fmt.Errorf("%w: value %d at %d needs more than 8 bits", ErrInvalidBitWidth, uint64(v), i)
		}
		out[i] = byte(v)
	}
	return out, nil
}

// UnpackBytes reads one value per byte. data must hold exactly count bytes.
func UnpackBytes[T Index](data []byte, count int) ([]T, error) {
	if len(data) != count {
		return nil, fmt.Errorf("%w: %d bytes for %d values", ErrLengthMismatch, len(data), count)
	}
	out := make([]T, count)
	for i, b := range data {
		out[i] = T(b)
	}
	return out, nil
}

// PackNibbles stores two four-bit values per byte, the even index in the low nibble.
func PackNibbles[T Index](values []T) ([]byte, error) {
	out := make([]byte, (len(values)+1)/2)
	for i, v := range values {
		if uint64(v) > 0x0F {
			return nil, fmt.Errorf("%w: value %d at %d needs more than 4 bits", ErrInvalidBitWidth, uint64(v), i)
		}
		if i&1 == 0 {
			out[i>>1] |= byte(v)
		} else {
			out[i>>1] |= byte(v) << 4
		}
	}
	return out, nil
}

// UnpackNibbles reads count four-bit values. Values past the end of a short array
// read as zero, matching how editors treat a truncated AddBlocks array.
func UnpackNibbles[T Index](data []byte, count int) []T {
	out := make([]T, count)
	for i := range out {
		if i>>1 >= len(data) {
			break
		}
		b := data[i>>1]
		if i&1 == 0 {
			out[i] = T(b & 0x0F)
		} else {
			out[i] = T(b >> 4)
		}
	}
	return out
}
