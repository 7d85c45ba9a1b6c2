package nbt

import (
	"bytes"
	"math"
	"slices"
)

// Equal reports whether a and b are structurally equal. Compounds compare as sets of
// named entries; floating point values compare by bit pattern.
func Equal(a, b Tag) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Type() != b.Type() {
		return false
	}
	switch x := a.(type) {
	case Float:
		return math.Float32bits(float32(x)) == math.Float32bits(float32(b.(Float)))
	case Double:
		return math.Float64bits(float64(x)) == math.Float64bits(float64(b.(Double)))
	case ByteArray:
		return bytes.Equal(x, b.(ByteArray))
	case IntArray:
		return slices.Equal(x, b.(IntArray))
	case LongArray:
		return slices.Equal(x, b.(LongArray))
	case *List:
		y := b.(*List)
		if x.Elem != y.Elem || x.Len() != y.Len() {
			return false
		}
		for i := range x.Items {
			if !Equal(x.Items[i], y.Items[i]) {
				return false
			}
		}
		return true
	case *Compound:
		y := b.(*Compound)
		if x.Len() != y.Len() {
			return false
		}
		for k, v := range x.All() {
			w, ok := y.Get(k)
			if !ok || !Equal(v, w) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

// Clone returns a deep copy of t.
func Clone(t Tag) Tag {
	switch v := t.(type) {
	case ByteArray:
		return slices.Clone(v)
	case IntArray:
		return slices.Clone(v)
	case LongArray:
		return slices.Clone(v)
	case *List:
		return CloneList(v)
	case *Compound:
		return CloneCompound(v)
	default:
		return t
	}
}

// CloneCompound returns a deep copy of c. A nil compound clones to nil.
func CloneCompound(c *Compound) *Compound {
	if c == nil {
		return nil
	}
	out := NewCompound()
	for k, v := range c.All() {
		out.Set(k, Clone(v))
	}
	return out
}

// CloneList returns a deep copy of l.
func CloneList(l *List) *List {
	if l == nil {
		return nil
	}
	out := &List{Elem: l.Elem, Items: make([]Tag, len(l.Items)), EmptyCount: l.EmptyCount}
	for i, it := range l.Items {
		out.Items[i] = Clone(it)
	}
	return out
}
