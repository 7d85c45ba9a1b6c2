package nbt

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Decode reads one named root tag from data. Bytes after the root tag are ignored.
func Decode(data []byte, opts ...Option) (string, Tag, error) {
	o := buildOptions(opts)
	d := &decoder{data: data, maxDepth: o.maxDepth}

	typ, err := d.readType()
	if err != nil {
		return "", nil, err
	}
	if typ == TypeEnd {
		return "", nil, d.fail(fmt.Errorf("%w: root tag is %s", ErrMalformedTag, TypeEnd))
	}
	name, err := d.readString()
	if err != nil {
		return "", nil, err
	}
	t, err := d.readPayload(typ, 0)
	if err != nil {
		return "", nil, err
	}
	return name, t, nil
}

// DecodeCompound is Decode for inputs whose root must be a compound.
func DecodeCompound(data []byte, opts ...Option) (string, *Compound, error) {
	name, t, err := Decode(data, opts...)
	if err != nil {
		return "", nil, err
	}
	c, ok := t.(*Compound)
	if !ok {
		return "", nil, &SyntaxError{Err: fmt.Errorf("%w: root is %s, want %s", ErrMalformedTag, t.Type(), TypeCompound)}
	}
	return name, c, nil
}

// minPayload is the smallest encoded size of each payload type. It bounds list counts
// against the remaining input before anything is allocated.
var minPayload = [...]int{
	TypeEnd:       0,
	TypeByte:      1,
	TypeShort:     2,
	TypeInt:       4,
	TypeLong:      8,
	TypeFloat:     4,
	TypeDouble:    8,
	TypeByteArray: 4,
	TypeString:    2,
	TypeList:      5,
	TypeCompound:  1,
	TypeIntArray:  4,
	TypeLongArray: 4,
}

type decoder struct {
	data     []byte
	off      int
	maxDepth int
	path     []string
}

func (d *decoder) fail(err error) error {
	return &SyntaxError{Offset: d.off, Path: strings.Join(d.path, "."), Err: err}
}

func (d *decoder) remaining() int {
	return len(d.data) - d.off
}

func (d *decoder) take(n int) ([]byte, error) {
	if n < 0 || n > d.remaining() {
		return nil, d.fail(fmt.Errorf("%w: need %d bytes, %d remaining", ErrMalformedTag, n, d.remaining()))
	}
	b := d.data[d.off : d.off+n]
	d.off += n
	return b, nil
}

func (d *decoder) readType() (Type, error) {
	b, err := d.take(1)
	if err != nil {
		return 0, err
	}
	t := Type(b[0])
	if !t.Valid() {
		d.off--
		return 0, d.fail(fmt.Errorf("%w: invalid type byte 0x%02x", ErrMalformedTag, b[0]))
	}
	return t, nil
}

func (d *decoder) readUint16() (uint16, error) {
	b, err := d.take(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (d *decoder) readUint32() (uint32, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (d *decoder) readUint64() (uint64, error) {
	b, err := d.take(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (d *decoder) readString() (string, error) {
	n, err := d.readUint16()
	if err != nil {
		return "", err
	}
	b, err := d.take(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// readLength reads a signed 32-bit element count and checks that count elements of
// elemSize bytes can still be present.
func (d *decoder) readLength(elemSize int) (int, error) {
	v, err := d.readUint32()
	if err != nil {
		return 0, err
	}
	n := int32(v)
	if n < 0 {
		d.off -= 4
		return 0, d.fail(fmt.Errorf("%w: negative length %d", ErrMalformedTag, n))
	}
	if int64(n)*int64(elemSize) > int64(d.remaining()) {
		d.off -= 4
		return 0, d.fail(fmt.Errorf("%w: length %d exceeds remaining input", ErrMalformedTag, n))
	}
	return int(n), nil
}

func (d *decoder) readPayload(t Type, depth int) (Tag, error) {
	switch t {
	case TypeByte:
		b, err := d.take(1)
		if err != nil {
			return nil, err
		}
		return Byte(int8(b[0])), nil
	case TypeShort:
		v, err := d.readUint16()
		return Short(int16(v)), err
	case TypeInt:
		v, err := d.readUint32()
		return Int(int32(v)), err
	case TypeLong:
		v, err := d.readUint64()
		return Long(int64(v)), err
	case TypeFloat:
		v, err := d.readUint32()
		return Float(math.Float32frombits(v)), err
	case TypeDouble:
		v, err := d.readUint64()
		return Double(math.Float64frombits(v)), err
	case TypeString:
		s, err := d.readString()
		return String(s), err
	case TypeByteArray:
		n, err := d.readLength(1)
		if err != nil {
			return nil, err
		}
		b, _ := d.take(n)
		return ByteArray(append([]byte(nil), b...)), nil
	case TypeIntArray:
		n, err := d.readLength(4)
		if err != nil {
			return nil, err
		}
		a := make(IntArray, n)
		for i := range a {
			v, _ := d.readUint32()
			a[i] = int32(v)
		}
		return a, nil
	case TypeLongArray:
		n, err := d.readLength(8)
		if err != nil {
			return nil, err
		}
		a := make(LongArray, n)
		for i := range a {
			v, _ := d.readUint64()
			a[i] = int64(v)
		}
		return a, nil
	case TypeList:
		return d.readList(depth + 1)
	case TypeCompound:
		return d.readCompound(depth + 1)
	}
	return nil, d.fail(fmt.Errorf("%w: unexpected %s payload", ErrMalformedTag, t))
}

func (d *decoder) readList(depth int) (Tag, error) {
	if depth > d.maxDepth {
		return nil, d.fail(fmt.Errorf("%w: depth %d", ErrRecursionLimit, depth))
	}
	b, err := d.take(1)
	if err != nil {
		return nil, err
	}
	elem := Type(b[0])
	v, err := d.readUint32()
	if err != nil {
		return nil, err
	}
	count := int32(v)
	l := &List{Elem: elem}
	if count <= 0 {
		l.EmptyCount = count
		return l, nil
	}
	if !elem.Valid() {
		d.off -= 5
		return nil, d.fail(fmt.Errorf("%w: invalid type byte 0x%02x", ErrMalformedTag, b[0]))
	}
	if elem == TypeEnd {
		d.off -= 4
		return nil, d.fail(fmt.Errorf("%w: %d elements of %s", ErrMalformedTag, count, TypeEnd))
	}
	if int64(count)*int64(minPayload[elem]) > int64(d.remaining()) {
		d.off -= 4
		return nil, d.fail(fmt.Errorf("%w: list count %d exceeds remaining input", ErrMalformedTag, count))
	}
	l.Items = make([]Tag, count)
	for i := range l.Items {
		d.path = append(d.path, "["+strconv.Itoa(i)+"]")
		t, err := d.readPayload(elem, depth)
		if err != nil {
			return nil, err
		}
		d.path = d.path[:len(d.path)-1]
		l.Items[i] = t
	}
	return l, nil
}

func (d *decoder) readCompound(depth int) (Tag, error) {
	if depth > d.maxDepth {
		return nil, d.fail(fmt.Errorf("%w: depth %d", ErrRecursionLimit, depth))
	}
	c := NewCompound()
	for {
		t, err := d.readType()
		if err != nil {
			return nil, err
		}
		if t == TypeEnd {
			return c, nil
		}
		name, err := d.readString()
		if err != nil {
			return nil, err
		}
		if c.Has(name) {
			return nil, d.fail(fmt.Errorf("%w: duplicate key %q", ErrMalformedTag, name))
		}
		d.path = append(d.path, name)
		v, err := d.readPayload(t, depth)
		if err != nil {
			return nil, err
		}
		d.path = d.path[:len(d.path)-1]
		c.Set(name, v)
	}
}
