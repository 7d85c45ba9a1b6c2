package dialect

import (
	"fmt"
	"slices"
	"time"

	"github.com/oriumgames/schem/nbt"
	"github.com/oriumgames/schem/palette"
	"github.com/oriumgames/schem/voxel"
)

// field returns a required entry of c.
func field[T nbt.Tag](c *nbt.Compound, name string) (T, error) {
	v, ok := nbt.Get[T](c, name)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s (%s)", ErrMissingField, name, zero.Type())
	}
	return v, nil
}

// extraFields copies the entries of c whose names are not in known. It returns nil
// when there are none.
func extraFields(c *nbt.Compound, known []string) *nbt.Compound {
	var out *nbt.Compound
	for k, v := range c.All() {
		if slices.Contains(known, k) {
			continue
		}
		if out == nil {
			out = nbt.NewCompound()
		}
		out.Set(k, nbt.Clone(v))
	}
	return out
}

// mergeExtra copies extra into dst, skipping names in owned and names dst already
// has.
func mergeExtra(dst, extra *nbt.Compound, owned []string) {
	for k, v := range extra.All() {
		if slices.Contains(owned, k) || dst.Has(k) {
			continue
		}
		dst.Set(k, nbt.Clone(v))
	}
}

// inlineFields copies every entry of data except the names in skip into dst.
func inlineFields(dst, data *nbt.Compound, skip ...string) {
	for k, v := range data.All() {
		if slices.Contains(skip, k) || dst.Has(k) {
			continue
		}
		dst.Set(k, nbt.Clone(v))
	}
}

// withoutFields returns a copy of c without the names in skip.
func withoutFields(c *nbt.Compound, skip ...string) *nbt.Compound {
	out := nbt.NewCompound()
	inlineFields(out, c, skip...)
	return out
}

func stringField(c *nbt.Compound, name string) string {
	s, _ := nbt.Get[nbt.String](c, name)
	return string(s)
}

func millis(c *nbt.Compound, name string) time.Time {
	v, ok := nbt.Get[nbt.Long](c, name)
	if !ok || v == 0 {
		return time.Time{}
	}
	return time.UnixMilli(int64(v))
}

func setMillis(c *nbt.Compound, name string, t time.Time) {
	if !t.IsZero() {
		c.Set(name, nbt.Long(t.UnixMilli()))
	}
}

func setString(c *nbt.Compound, name, v string) {
	if v != "" {
		c.Set(name, nbt.String(v))
	}
}

// intTriple reads a position stored as an int array or a list of ints.
func intTriple(c *nbt.Compound, name string) (voxel.Pos, bool) {
	t, ok := c.Get(name)
	if !ok {
		return voxel.Pos{}, false
	}
	switch v := t.(type) {
	case nbt.IntArray:
		if len(v) == 3 {
			return voxel.Pos{int(v[0]), int(v[1]), int(v[2])}, true
		}
	case *nbt.List:
		if v.Elem == nbt.TypeInt && v.Len() == 3 {
			return voxel.Pos{int(v.Items[0].(nbt.Int)), int(v.Items[1].(nbt.Int)), int(v.Items[2].(nbt.Int))}, true
		}
	}
	return voxel.Pos{}, false
}

// xyz reads a position stored as separate x, y and z ints, using the given names.
func xyz(c *nbt.Compound, names [3]string) (voxel.Pos, bool) {
	var p voxel.Pos
	for i, n := range names {
		v, ok := nbt.Get[nbt.Int](c, n)
		if !ok {
			return voxel.Pos{}, false
		}
		p[i] = int(v)
	}
	return p, true
}

func setXYZ(c *nbt.Compound, names [3]string, p voxel.Pos) {
	for i, n := range names {
		c.Set(n, nbt.Int(int32(p[i])))
	}
}

func posCompound(p voxel.Pos) *nbt.Compound {
	c := nbt.NewCompound()
	setXYZ(c, lowerXYZ, p)
	return c
}

var (
	lowerXYZ = [3]string{"x", "y", "z"}
	upperXYZ = [3]string{"X", "Y", "Z"}
)

func intArray(p voxel.Pos) nbt.IntArray {
	return nbt.IntArray{int32(p[0]), int32(p[1]), int32(p[2])}
}

// doubleTriple reads an entity position stored as a list of doubles or floats.
func doubleTriple(c *nbt.Compound, name string) ([3]float64, bool) {
	l, ok := nbt.Get[*nbt.List](c, name)
	if !ok || l.Len() != 3 {
		return [3]float64{}, false
	}
	var out [3]float64
	for i, it := range l.Items {
		switch v := it.(type) {
		case nbt.Double:
			out[i] = float64(v)
		case nbt.Float:
			out[i] = float64(v)
		default:
			return [3]float64{}, false
		}
	}
	return out, true
}

func doubleList(p [3]float64) *nbt.List {
	return &nbt.List{Elem: nbt.TypeDouble, Items: []nbt.Tag{nbt.Double(p[0]), nbt.Double(p[1]), nbt.Double(p[2])}}
}

func compoundList(items []*nbt.Compound) *nbt.List {
	l := &nbt.List{Elem: nbt.TypeCompound, Items: make([]nbt.Tag, len(items))}
	for i, c := range items {
		l.Items[i] = c
	}
	return l
}

// stateFromCompound reads a {Name, Properties} compound as used by structure-style
// palettes.
func stateFromCompound(c *nbt.Compound) (palette.BlockState, error) {
	name, err := field[nbt.String](c, "Name")
	if err != nil {
		return palette.BlockState{}, err
	}
	s := palette.BlockState{Name: string(name)}
	if props, ok := nbt.Get[*nbt.Compound](c, "Properties"); ok && props.Len() > 0 {
		s.Properties = make(map[string]string, props.Len())
		for k, v := range props.All() {
			str, ok := v.(nbt.String)
			if !ok {
				return palette.BlockState{}, fmt.Errorf("%w: property %s of %s is %s", ErrMissingField, k, name, v.Type())
			}
			s.Properties[k] = string(str)
		}
	}
	return s, nil
}

func stateCompound(s palette.BlockState) *nbt.Compound {
	c := nbt.NewCompound()
	c.Set("Name", nbt.String(s.Name))
	if len(s.Properties) > 0 {
		props := nbt.NewCompound()
		for _, k := range sortedKeys(s.Properties) {
			props.Set(k, nbt.String(s.Properties[k]))
		}
		c.Set("Properties", props)
	}
	return c
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// canonicalBlocks returns the palette of r with repeated states merged, and the block
// array remapped onto it. If air is true, air is moved to index 0, and added there if
// the region has none.
func canonicalBlocks(r *voxel.Region, air bool) ([]palette.BlockState, []uint32) {
	src := r.Palette().States()
	p := palette.New()
	if air {
		p.IndexOf(palette.Air)
	}
	remap := make([]uint32, len(src))
	for i, s := range src {
		if air && s.IsAir() {
			remap[i] = 0
			continue
		}
		remap[i] = p.IndexOf(s)
	}
	indices := make([]uint32, len(r.Indices()))
	for i, v := range r.Indices() {
		indices[i] = remap[v]
	}
	return p.States(), indices
}
