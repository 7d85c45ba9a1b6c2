package dialect

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/oriumgames/schem/nbt"
)

// buffer writes the length-prefixed frames of container formats.
type buffer struct {
	bytes.Buffer
}

// WriteUInt32 writes a uint32 in big-endian format.
func (b *buffer) WriteUInt32(v uint32) {
	_ = binary.Write(b, binary.BigEndian, v)
}

// WriteFrame writes data prefixed by its length as a big-endian uint32.
func (b *buffer) WriteFrame(data []byte) {
	b.WriteUInt32(uint32(len(data)))
	_, _ = b.Write(data)
}

// reader reads frames written by buffer. Every failure wraps nbt.ErrMalformedTag.
type reader struct {
	r *bytes.Reader
}

func newReader(data []byte) *reader {
	return &reader{r: bytes.NewReader(data)}
}

// ReadUInt32 reads a uint32 in big-endian format.
func (r *reader) ReadUInt32() (uint32, error) {
	var v uint32
	if err := binary.Read(r.r, binary.BigEndian, &v); err != nil {
		return 0, fmt.Errorf("%w: read uint32: %w", nbt.ErrMalformedTag, err)
	}
	return v, nil
}

// ReadFrame reads a length-prefixed frame. The length is checked against the bytes
// left before anything is allocated.
func (r *reader) ReadFrame(what string) ([]byte, error) {
	n, err := r.ReadUInt32()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	if int64(n) > int64(r.r.Len()) {
		return nil, fmt.Errorf("%w: %s of %d bytes with %d left", nbt.ErrMalformedTag, what, n, r.r.Len())
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", nbt.ErrMalformedTag, what, err)
	}
	return buf, nil
}
