package bitpack

import "fmt"

// Policy selects how fixed-width fields are laid out in 64-bit words.
type Policy int

const (
	// Dense packs fields back to back; a field may span two words. Litematica and
	// pre-1.16 chunk sections use this layout.
	Dense Policy = iota
	// Aligned never splits a field; the high bits of a word that cannot hold another
	// whole field are left zero.
	Aligned
)

func (p Policy) String() string {
	if p == Aligned {
		return "aligned"
	}
	return "dense"
}

// LongsFor returns the number of words needed to hold count fields of width bits.
func LongsFor(count, width int, policy Policy) int {
	if count <= 0 || width <= 0 {
		return 0
	}
	if policy == Aligned {
		per := 64 / width
		return (count + per - 1) / per
	}
	return (count*width + 63) / 64
}

// PackLongs packs values into the minimum number of words for width and policy.
func PackLongs[T Index](values []T, width int, policy Policy) ([]int64, error) {
	if err := checkWidth(width); err != nil {
		return nil, err
	}
	limit := uint64(1) << width
	out := make([]uint64, LongsFor(len(values), width, policy))

	switch policy {
	case Aligned:
		per := 64 / width
		for i, v := range values {
			if uint64(v) >= limit {
				return nil, fmt.Errorf("%w: value %d at %d needs more than %d bits", ErrInvalidBitWidth, uint64(v), i, width)
			}
			out[i/per] |= uint64(v) << ((i % per) * width)
		}
	default:
		for i, v := range values {
			if uint64(v) >= limit {
				return nil, fmt.Errorf("%w: value %d at %d needs more than %d bits", ErrInvalidBitWidth, uint64(v), i, width)
			}
			bit := i * width
			word, off := bit>>6, bit&63
			out[word] |= uint64(v) << off
			if off+width > 64 {
				out[word+1] |= uint64(v) >> (64 - off)
			}
		}
	}

	words := make([]int64, len(out))
	for i, w := range out {
		words[i] = int64(w)
	}
	return words, nil
}

// UnpackLongs reads count fields of width bits from words. Missing words are an
// error; words past the last field are ignored.
func UnpackLongs[T Index](words []int64, count, width int, policy Policy) ([]T, error) {
	if err := checkWidth(width); err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, fmt.Errorf("%w: negative count %d", ErrLengthMismatch, count)
	}
	if need := LongsFor(count, width, policy); len(words) < need {
		return nil, fmt.Errorf("%w: %d values of %d bits need %d words, got %d", ErrLengthMismatch, count, width, need, len(words))
	}
	mask := uint64(1)<<width - 1
	out := make([]T, count)

	switch policy {
	case Aligned:
		per := 64 / width
		for i := range out {
			out[i] = T((uint64(words[i/per]) >> ((i % per) * width)) & mask)
		}
	default:
		for i := range out {
			bit := i * width
			word, off := bit>>6, bit&63
			v := uint64(words[word]) >> off
			if off+width > 64 {
				v |= uint64(words[word+1]) << (64 - off)
			}
			out[i] = T(v & mask)
		}
	}
	return out, nil
}
