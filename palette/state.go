// Package palette maps block states to the dense indices stored in schematic block
// arrays.
package palette

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// ErrSyntax is returned by ParseBlockState for malformed state strings.
var ErrSyntax = errors.New("palette: invalid block state syntax")

// BlockState is a namespaced block identifier with its property assignments. States
// are compared by value; property order is irrelevant.
type BlockState struct {
	Name       string
	Properties map[string]string
}

// Air is the empty block state.
var Air = BlockState{Name: "minecraft:air"}

// NewBlockState returns a state without properties.
func NewBlockState(name string) BlockState {
	return BlockState{Name: name}
}

// ParseBlockState parses the textual form name[key=value,...].
func ParseBlockState(s string) (BlockState, error) {
	s = strings.TrimSpace(s)
	open := strings.IndexByte(s, '[')
	if open < 0 {
		if s == "" || strings.ContainsAny(s, "]=,") {
			return BlockState{}, fmt.Errorf("%w: %q", ErrSyntax, s)
		}
		return BlockState{Name: s}, nil
	}
	if open == 0 || !strings.HasSuffix(s, "]") {
		return BlockState{}, fmt.Errorf("%w: %q", ErrSyntax, s)
	}
	state := BlockState{Name: s[:open]}
	body := s[open+1 : len(s)-1]
	if body == "" {
		return state, nil
	}
	state.Properties = make(map[string]string)
	for _, pair := range strings.Split(body, ",") {
		k, v, ok := strings.Cut(pair, "=")
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if !ok || k == "" || strings.ContainsAny(v, "[]=") {
			return BlockState{}, fmt.Errorf("%w: property %q in %q", ErrSyntax, pair, s)
		}
		state.Properties[k] = v
	}
	return state, nil
}

// String formats the state as name[key=value,...] with keys sorted, which makes it a
// canonical key for the state.
func (b BlockState) String() string {
	if len(b.Properties) == 0 {
		return b.Name
	}
	var sb strings.Builder
	sb.WriteString(b.Name)
	sb.WriteByte('[')
	for i, k := range slices.Sorted(maps.Keys(b.Properties)) {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(b.Properties[k])
	}
	sb.WriteByte(']')
	return sb.String()
}

// Equal reports whether both states have the same name and properties.
func (b BlockState) Equal(o BlockState) bool {
	return b.Name == o.Name && maps.Equal(b.Properties, o.Properties)
}

// IsAir reports whether b is plain air. Cave and void air are distinct blocks.
func (b BlockState) IsAir() bool {
	return b.Name == Air.Name || b.Name == "air"
}

// Property returns the value of a property.
func (b BlockState) Property(key string) (string, bool) {
	v, ok := b.Properties[key]
	return v, ok
}

// With returns a copy of b with key set to value.
func (b BlockState) With(key, value string) BlockState {
	props := maps.Clone(b.Properties)
	if props == nil {
		props = make(map[string]string, 1)
	}
	props[key] = value
	return BlockState{Name: b.Name, Properties: props}
}

// Clone returns a copy of b that shares no map with it.
func (b BlockState) Clone() BlockState {
	return BlockState{Name: b.Name, Properties: maps.Clone(b.Properties)}
}
