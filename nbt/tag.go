// Package nbt implements the big-endian named binary tag format used by Java Edition
// schematic files. Trees are decoded into a closed set of Tag variants; compounds keep
// the order their keys were read or inserted in so that re-encoding a decoded tree is
// byte-exact.
package nbt

import "fmt"

// Type is the one-byte identifier that precedes every tag payload.
type Type byte

const (
	TypeEnd Type = iota
	TypeByte
	TypeShort
	TypeInt
	TypeLong
	TypeFloat
	TypeDouble
	TypeByteArray
	TypeString
	TypeList
	TypeCompound
	TypeIntArray
	TypeLongArray
)

// Valid reports whether t is one of the thirteen defined tag types.
func (t Type) Valid() bool {
	return t <= TypeLongArray
}

var typeNames = [...]string{
	TypeEnd:       "TAG_End",
	TypeByte:      "TAG_Byte",
	TypeShort:     "TAG_Short",
	TypeInt:       "TAG_Int",
	TypeLong:      "TAG_Long",
	TypeFloat:     "TAG_Float",
	TypeDouble:    "TAG_Double",
	TypeByteArray: "TAG_Byte_Array",
	TypeString:    "TAG_String",
	TypeList:      "TAG_List",
	TypeCompound:  "TAG_Compound",
	TypeIntArray:  "TAG_Int_Array",
	TypeLongArray: "TAG_Long_Array",
}

func (t Type) String() string {
	if !t.Valid() {
		return fmt.Sprintf("TAG_Unknown(0x%02x)", byte(t))
	}
	return typeNames[t]
}

// Tag is a single node of a tag tree. The set of implementations is closed; callers
// switch on the concrete types declared in this package.
type Tag interface {
	Type() Type
	tag()
}

type (
	Byte      int8
	Short     int16
	Int       int32
	Long      int64
	Float     float32
	Double    float64
	String    string
	ByteArray []byte
	IntArray  []int32
	LongArray []int64
)

func (Byte) Type() Type      { return TypeByte }
func (Short) Type() Type     { return TypeShort }
func (Int) Type() Type       { return TypeInt }
func (Long) Type() Type      { return TypeLong }
func (Float) Type() Type     { return TypeFloat }
func (Double) Type() Type    { return TypeDouble }
func (String) Type() Type    { return TypeString }
func (ByteArray) Type() Type { return TypeByteArray }
func (IntArray) Type() Type  { return TypeIntArray }
func (LongArray) Type() Type { return TypeLongArray }

func (Byte) tag()      {}
func (Short) tag()     {}
func (Int) tag()       {}
func (Long) tag()      {}
func (Float) tag()     {}
func (Double) tag()    {}
func (String) tag()    {}
func (ByteArray) tag() {}
func (IntArray) tag()  {}
func (LongArray) tag() {}

// List is a homogeneous sequence of tags. Elem is kept even when the list is empty so
// that the declared element type survives a round trip. An empty list may carry any
// element byte, valid or not.
type List struct {
	Elem  Type
	Items []Tag
	// EmptyCount is the non-positive count an empty list was read with. It is written
	// back in place of 0 and ignored once the list has items.
	EmptyCount int32
}

// NewList returns a list of elem typed items. It fails if any item has another type.
func NewList(elem Type, items ...Tag) (*List, error) {
	l := &List{Elem: elem, Items: make([]Tag, 0, len(items))}
	for _, it := range items {
		if err := l.Append(it); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Append adds t to the end of the list.
func (l *List) Append(t Tag) error {
	if t == nil {
		return fmt.Errorf("%w: nil list element", ErrMalformedTag)
	}
	if t.Type() != l.Elem {
		return fmt.Errorf("%w: %s element in list of %s", ErrMalformedTag, t.Type(), l.Elem)
	}
	l.Items = append(l.Items, t)
	return nil
}

// Len returns the number of items, treating a nil list as empty.
func (l *List) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Items)
}

// Compounds returns the items of a list of compounds. It returns nil for any other
// element type.
func (l *List) Compounds() []*Compound {
	if l == nil || l.Elem != TypeCompound {
		return nil
	}
	out := make([]*Compound, 0, len(l.Items))
	for _, it := range l.Items {
		out = append(out, it.(*Compound))
	}
	return out
}

func (*List) Type() Type { return TypeList }
func (*List) tag()       {}
