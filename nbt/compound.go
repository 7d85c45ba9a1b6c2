package nbt

import (
	"iter"
	"slices"
)

// Compound is an ordered set of uniquely named tags.
type Compound struct {
	keys   []string
	values map[string]Tag
}

// NewCompound returns an empty compound.
func NewCompound() *Compound {
	return &Compound{values: make(map[string]Tag)}
}

func (*Compound) Type() Type { return TypeCompound }
func (*Compound) tag()       {}

// Set stores t under name. An existing entry keeps its position.
func (c *Compound) Set(name string, t Tag) {
	if c.values == nil {
		c.values = make(map[string]Tag)
	}
	if _, ok := c.values[name]; !ok {
		c.keys = append(c.keys, name)
	}
	c.values[name] = t
}

// Get returns the tag stored under name.
func (c *Compound) Get(name string) (Tag, bool) {
	if c == nil {
		return nil, false
	}
	t, ok := c.values[name]
	return t, ok
}

// Has reports whether name is present.
func (c *Compound) Has(name string) bool {
	_, ok := c.Get(name)
	return ok
}

// Delete removes name and reports whether it was present.
func (c *Compound) Delete(name string) bool {
	if c == nil {
		return false
	}
	if _, ok := c.values[name]; !ok {
		return false
	}
	delete(c.values, name)
	c.keys = slices.DeleteFunc(c.keys, func(k string) bool { return k == name })
	return true
}

// Len returns the number of entries.
func (c *Compound) Len() int {
	if c == nil {
		return 0
	}
	return len(c.keys)
}

// Keys returns the entry names in order.
func (c *Compound) Keys() []string {
	if c == nil {
		return nil
	}
	return slices.Clone(c.keys)
}

// All iterates the entries in order.
func (c *Compound) All() iter.Seq2[string, Tag] {
	return func(yield func(string, Tag) bool) {
		if c == nil {
			return
		}
		for _, k := range c.keys {
			if !yield(k, c.values[k]) {
				return
			}
		}
	}
}

// Get returns the entry called name if it exists and has the concrete type T.
//
//	w, ok := nbt.Get[nbt.Short](root, "Width")
func Get[T Tag](c *Compound, name string) (T, bool) {
	var zero T
	t, ok := c.Get(name)
	if !ok {
		return zero, false
	}
	v, ok := t.(T)
	return v, ok
}
