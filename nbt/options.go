package nbt

import "fmt"

// DefaultMaxDepth bounds compound and list nesting unless overridden with WithMaxDepth.
const DefaultMaxDepth = 512

type options struct {
	maxDepth int
}

// Option configures Decode and Encode.
type Option func(*options)

// WithMaxDepth sets the deepest allowed nesting of compounds and lists. Values below
// one fall back to DefaultMaxDepth.
func WithMaxDepth(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxDepth = n
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{maxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// CheckDepth applies the nesting limit of opts to a tree that was not produced by
// Decode, such as one built with FromNative. It returns ErrRecursionLimit when t
// nests deeper than the limit.
func CheckDepth(t Tag, opts ...Option) error {
	o := buildOptions(opts)
	if d, ok := withinDepth(t, 0, o.maxDepth); !ok {
		return fmt.Errorf("nbt: %w: depth %d", ErrRecursionLimit, d)
	}
	return nil
}

func withinDepth(t Tag, depth, limit int) (int, bool) {
	switch v := t.(type) {
	case *List:
		depth++
		if depth > limit {
			return depth, false
		}
		for _, it := range v.Items {
			if d, ok := withinDepth(it, depth, limit); !ok {
				return d, false
			}
		}
	case *Compound:
		depth++
		if depth > limit {
			return depth, false
		}
		for _, it := range v.All() {
			if d, ok := withinDepth(it, depth, limit); !ok {
				return d, false
			}
		}
	}
	return depth, true
}
