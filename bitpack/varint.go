package bitpack

import "fmt"

// MaxVarintLen is the longest accepted varint. Five groups of seven bits cover every
// value below 2^35.
const MaxVarintLen = 5

// AppendVarint appends v as a little-endian base-128 varint.
func AppendVarint(dst []byte, v uint64) ([]byte, error) {
	if v >= 1<<(7*MaxVarintLen) {
		return dst, fmt.Errorf("%w: %d does not fit in %d bytes", ErrVarintOverflow, v, MaxVarintLen)
	}
	for v >= 0x80 {
		dst = append(dst, byte(v)|0x80)
		v >>= 7
	}
	return append(dst, byte(v)), nil
}

// PackVarints encodes every value as a varint.
func PackVarints[T Index](values []T) ([]byte, error) {
	out := make([]byte, 0, len(values))
	var err error
	for _, v := range values {
		if out, err = AppendVarint(out, uint64(v)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// UnpackVarints decodes exactly count varints that must consume all of data.
func UnpackVarints[T Index](data []byte, count int) ([]T, error) {
	if count < 0 {
		return nil, fmt.Errorf("%w: negative count %d", ErrLengthMismatch, count)
	}
	if len(data) < count {
		return nil, fmt.Errorf("%w: %d bytes cannot hold %d varints", ErrLengthMismatch, len(data), count)
	}
	limit := uint64(^T(0))

	out := make([]T, count)
	off := 0
	for i := range out {
		var v uint64
		for n := 0; ; n++ {
			if n == MaxVarintLen {
				return nil, fmt.Errorf("%w: entry %d at byte %d", ErrVarintOverflow, i, off)
			}
			if off >= len(data) {
				return nil, fmt.Errorf("%w: data ends inside entry %d of %d", ErrLengthMismatch, i, count)
			}
			b := data[off]
			off++
			v |= uint64(b&0x7F) << (7 * n)
			if b&0x80 == 0 {
				break
			}
		}
		if v > limit {
			return nil, fmt.Errorf("%w: entry %d value %d", ErrVarintOverflow, i, v)
		}
		out[i] = T(v)
	}
	if off != len(data) {
		return nil, fmt.Errorf("%w: %d bytes left after %d varints", ErrLengthMismatch, len(data)-off, count)
	}
	return out, nil
}
