package palette

import (
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrOutOfRange is returned for an index at or beyond the palette size.
	ErrOutOfRange = errors.New("palette: index out of range")
	// ErrNotDense is returned when an explicit palette mapping skips or repeats an
	// index.
	ErrNotDense = errors.New("palette: indices are not dense")
)

// Palette is an ordered list of distinct block states. The position of a state in the
// list is the value stored for it in a block array.
type Palette struct {
	states []BlockState
	index  map[string]uint32
}

// New returns an empty palette.
func New() *Palette {
	return &Palette{index: make(map[string]uint32)}
}

// NewWithAir returns a palette holding only air, at index 0.
func NewWithAir() *Palette {
	p := New()
	p.IndexOf(Air)
	return p
}

// FromStates builds a palette from an implicitly indexed list. Repeated states keep
// their positions; lookups resolve to the first occurrence.
func FromStates(states []BlockState) *Palette {
	p := &Palette{
		states: make([]BlockState, len(states)),
		index:  make(map[string]uint32, len(states)),
	}
	for i, s := range states {
		p.states[i] = s.Clone()
		if _, ok := p.index[s.String()]; !ok {
			p.index[s.String()] = uint32(i)
		}
	}
	return p
}

// Entry is one explicit state to index assignment.
type Entry struct {
	State BlockState
	Index int64
}

// FromEntries builds a palette from an explicit mapping. Every index must lie in
// [0, len(entries)) and appear exactly once.
func FromEntries(entries []Entry) (*Palette, error) {
	n := len(entries)
	states := make([]BlockState, n)
	seen := make([]bool, n)
	for _, e := range entries {
		if e.Index < 0 || e.Index >= int64(n) {
			return nil, fmt.Errorf("%w: %s maps to %d with %d entries", ErrNotDense, e.State, e.Index, n)
		}
		if seen[e.Index] {
			return nil, fmt.Errorf("%w: index %d assigned twice", ErrNotDense, e.Index)
		}
		seen[e.Index] = true
		states[e.Index] = e.State
	}
	return FromStates(states), nil
}

// Len returns the number of entries.
func (p *Palette) Len() int {
	return len(p.states)
}

// IndexOf returns the index of s, appending it first if it is not present.
func (p *Palette) IndexOf(s BlockState) uint32 {
	key := s.String()
	if i, ok := p.index[key]; ok {
		return i
	}
	i := uint32(len(p.states))
	p.states = append(p.states, s.Clone())
	p.index[key] = i
	return i
}

// Lookup returns the index of s without modifying the palette.
func (p *Palette) Lookup(s BlockState) (uint32, bool) {
	i, ok := p.index[s.String()]
	return i, ok
}

// StateAt returns the state stored at index i.
func (p *Palette) StateAt(i uint32) (BlockState, error) {
	if int(i) >= len(p.states) {
		return BlockState{}, fmt.Errorf("%w: %d (size %d)", ErrOutOfRange, i, len(p.states))
	}
	return p.states[i], nil
}

// Check returns ErrOutOfRange if any value in indices does not address an entry.
func (p *Palette) Check(indices []uint32) error {
	n := uint32(len(p.states))
	for pos, i := range indices {
		if i >= n {
			return fmt.Errorf("%w: %d at block %d (size %d)", ErrOutOfRange, i, pos, n)
		}
	}
	return nil
}

// States returns a copy of the entries in index order.
func (p *Palette) States() []BlockState {
	return slices.Clone(p.states)
}

// Clone returns an independent copy of p.
func (p *Palette) Clone() *Palette {
	return FromStates(p.states)
}
