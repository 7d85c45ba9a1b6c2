package nbt

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Encode serialises t as a named root tag.
func Encode(name string, t Tag, opts ...Option) ([]byte, error) {
	o := buildOptions(opts)
	e := &encoder{maxDepth: o.maxDepth}
	if t == nil {
		return nil, fmt.Errorf("nbt: encode root: %w: nil tag", ErrMalformedTag)
	}
	e.buf.WriteByte(byte(t.Type()))
	if err := e.writeString(name); err != nil {
		return nil, e.wrap(err)
	}
	if err := e.writePayload(t, 0); err != nil {
		return nil, e.wrap(err)
	}
	return e.buf.Bytes(), nil
}

// Write encodes t and writes it to w.
func Write(w io.Writer, name string, t Tag, opts ...Option) error {
	b, err := Encode(name, t, opts...)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// encoder is a byte buffer with big-endian typed writes.
type encoder struct {
	buf      bytes.Buffer
	scratch  [8]byte
	maxDepth int
	path     []string
}

func (e *encoder) wrap(err error) error {
	if len(e.path) == 0 {
		return fmt.Errorf("nbt: encode root: %w", err)
	}
	return fmt.Errorf("nbt: encode %s: %w", strings.Join(e.path, "."), err)
}

func (e *encoder) writeUint16(v uint16) {
	binary.BigEndian.PutUint16(e.scratch[:2], v)
	e.buf.Write(e.scratch[:2])
}

func (e *encoder) writeUint32(v uint32) {
	binary.BigEndian.PutUint32(e.scratch[:4], v)
	e.buf.Write(e.scratch[:4])
}

func (e *encoder) writeUint64(v uint64) {
	binary.BigEndian.PutUint64(e.scratch[:8], v)
	e.buf.Write(e.scratch[:8])
}

func (e *encoder) writeString(s string) error {
	if len(s) > math.MaxUint16 {
		return fmt.Errorf("%w: string of %d bytes exceeds %d", ErrMalformedTag, len(s), math.MaxUint16)
	}
	e.writeUint16(uint16(len(s)))
	e.buf.WriteString(s)
	return nil
}

func (e *encoder) writeLength(n int) error {
	if n > math.MaxInt32 {
		return fmt.Errorf("%w: length %d exceeds %d", ErrMalformedTag, n, math.MaxInt32)
	}
	e.writeUint32(uint32(n))
	return nil
}

func (e *encoder) writePayload(t Tag, depth int) error {
	switch v := t.(type) {
	case Byte:
		e.buf.WriteByte(byte(v))
	case Short:
		e.writeUint16(uint16(v))
	case Int:
		e.writeUint32(uint32(v))
	case Long:
		e.writeUint64(uint64(v))
	case Float:
		e.writeUint32(math.Float32bits(float32(v)))
	case Double:
		e.writeUint64(math.Float64bits(float64(v)))
	case String:
		return e.writeString(string(v))
	case ByteArray:
		if err := e.writeLength(len(v)); err != nil {
			return err
		}
		e.buf.Write(v)
	case IntArray:
		if err := e.writeLength(len(v)); err != nil {
			return err
		}
		for _, x := range v {
			e.writeUint32(uint32(x))
		}
	case LongArray:
		if err := e.writeLength(len(v)); err != nil {
			return err
		}
		for _, x := range v {
			e.writeUint64(uint64(x))
		}
	case *List:
		return e.writeList(v, depth+1)
	case *Compound:
		return e.writeCompound(v, depth+1)
	default:
		return fmt.Errorf("%w: unsupported tag %T", ErrMalformedTag, t)
	}
	return nil
}

func (e *encoder) writeList(l *List, depth int) error {
	if depth > e.maxDepth {
		return fmt.Errorf("%w: depth %d", ErrRecursionLimit, depth)
	}
	if l == nil {
		return fmt.Errorf("%w: nil list", ErrMalformedTag)
	}
	if len(l.Items) == 0 {
		e.buf.WriteByte(byte(l.Elem))
		e.writeUint32(uint32(min(l.EmptyCount, 0)))
		return nil
	}
	if !l.Elem.Valid() {
		return fmt.Errorf("%w: list element type %s", ErrMalformedTag, l.Elem)
	}
	if l.Elem == TypeEnd {
		return fmt.Errorf("%w: non-empty list of %s", ErrMalformedTag, TypeEnd)
	}
	e.buf.WriteByte(byte(l.Elem))
	if err := e.writeLength(len(l.Items)); err != nil {
		return err
	}
	for i, it := range l.Items {
		if it == nil || it.Type() != l.Elem {
			return fmt.Errorf("%w: element %d does not match list type %s", ErrMalformedTag, i, l.Elem)
		}
		e.path = append(e.path, "["+strconv.Itoa(i)+"]")
		if err := e.writePayload(it, depth); err != nil {
			return err
		}
		e.path = e.path[:len(e.path)-1]
	}
	return nil
}

func (e *encoder) writeCompound(c *Compound, depth int) error {
	if depth > e.maxDepth {
		return fmt.Errorf("%w: depth %d", ErrRecursionLimit, depth)
	}
	if c == nil {
		return fmt.Errorf("%w: nil compound", ErrMalformedTag)
	}
	for name, v := range c.All() {
		if v == nil {
			return fmt.Errorf("%w: nil value for %q", ErrMalformedTag, name)
		}
		e.buf.WriteByte(byte(v.Type()))
		if err := e.writeString(name); err != nil {
			return err
		}
		e.path = append(e.path, name)
		if err := e.writePayload(v, depth); err != nil {
			return err
		}
		e.path = e.path[:len(e.path)-1]
	}
	e.buf.WriteByte(byte(TypeEnd))
	return nil
}
