package nbt

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedTag is returned for truncated input, unknown type bytes, negative or
	// oversized lengths and inconsistent lists.
	ErrMalformedTag = errors.New("nbt: malformed tag")
	// ErrRecursionLimit is returned when compounds and lists nest deeper than allowed.
	ErrRecursionLimit = errors.New("nbt: recursion limit exceeded")
)

// SyntaxError describes where in the input decoding failed.
type SyntaxError struct {
	Offset int    // byte offset of the failing read
	Path   string // dotted path of the tag being decoded, "" for the root
	Err    error
}

func (e *SyntaxError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%v (offset %d)", e.Err, e.Offset)
	}
	return fmt.Sprintf("%v (offset %d, tag %s)", e.Err, e.Offset, e.Path)
}

func (e *SyntaxError) Unwrap() error {
	return e.Err
}
