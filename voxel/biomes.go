package voxel

import (
	"fmt"
	"maps"
	"slices"

	"github.com/oriumgames/schem/bitpack"
	"github.com/oriumgames/schem/palette"
)

// Biomes is a palettised biome layer. A flat layer holds one biome per x/z column
// (index z*width+x); a volumetric layer uses the block index order.
type Biomes struct {
	width, height, length int
	volumetric            bool

	names []string
	index map[string]uint32
	data  []uint32
}

// NewBiomes returns a layer sized for r and filled with fill.
func NewBiomes(r *Region, volumetric bool, fill string) *Biomes {
	b := &Biomes{
		width:      r.width,
		height:     r.height,
		length:     r.length,
		volumetric: volumetric,
		index:      make(map[string]uint32),
	}
	b.data = make([]uint32, b.size())
	b.indexOf(fill)
	return b
}

// BiomesFromIndices builds a layer for r from a decoded palette and index array.
func BiomesFromIndices(r *Region, volumetric bool, names []string, data []uint32) (*Biomes, error) {
	b := &Biomes{
		width:      r.width,
		height:     r.height,
		length:     r.length,
		volumetric: volumetric,
		names:      slices.Clone(names),
		index:      make(map[string]uint32, len(names)),
		data:       data,
	}
	if len(data) != b.size() {
		return nil, fmt.Errorf("%w: %d biome entries, want %d", bitpack.ErrLengthMismatch, len(data), b.size())
	}
	for i, n := range names {
		if _, ok := b.index[n]; !ok {
			b.index[n] = uint32(i)
		}
	}
	for i, v := range data {
		if int(v) >= len(names) {
			return nil, fmt.Errorf("%w: biome %d at %d (size %d)", palette.ErrOutOfRange, v, i, len(names))
		}
	}
	return b, nil
}

func (b *Biomes) size() int {
	if b.volumetric {
		return b.width * b.height * b.length
	}
	return b.width * b.length
}

func (b *Biomes) indexOf(name string) uint32 {
	if i, ok := b.index[name]; ok {
		return i
	}
	i := uint32(len(b.names))
	b.names = append(b.names, name)
	b.index[name] = i
	return i
}

func (b *Biomes) offset(x, y, z int) (int, bool) {
	if x < 0 || z < 0 || x >= b.width || z >= b.length || y < 0 || y >= b.height {
		return 0, false
	}
	if b.volumetric {
		return (y*b.length+z)*b.width + x, true
	}
	return z*b.width + x, true
}

// Volumetric reports whether the layer stores a biome per block rather than per
// column.
func (b *Biomes) Volumetric() bool {
	return b.volumetric
}

// Biome returns the biome at (x, y, z). y is ignored by flat layers beyond the bounds
// check.
func (b *Biomes) Biome(x, y, z int) (string, bool) {
	i, ok := b.offset(x, y, z)
	if !ok {
		return "", false
	}
	return b.names[b.data[i]], true
}

// SetBiome stores name at (x, y, z); for a flat layer the whole column changes.
func (b *Biomes) SetBiome(x, y, z int, name string) error {
	i, ok := b.offset(x, y, z)
	if !ok {
		return fmt.Errorf("%w: biome (%d, %d, %d)", ErrOutOfBounds, x, y, z)
	}
	b.data[i] = b.indexOf(name)
	return nil
}

// Palette returns the biome names in index order.
func (b *Biomes) Palette() []string {
	return slices.Clone(b.names)
}

// Indices returns the index array. Callers must not modify it.
func (b *Biomes) Indices() []uint32 {
	return b.data
}

// Flat returns a per-column layer. Volumetric layers are sampled at y = 0.
func (b *Biomes) Flat() *Biomes {
	if !b.volumetric {
		return b.Clone()
	}
	out := b.Clone()
	out.volumetric = false
	out.data = slices.Clone(b.data[:b.width*b.length])
	return out
}

// Volume returns a per-block layer. Flat layers are repeated for every y.
func (b *Biomes) Volume() *Biomes {
	if b.volumetric {
		return b.Clone()
	}
	out := b.Clone()
	out.volumetric = true
	out.data = make([]uint32, 0, b.width*b.height*b.length)
	for range b.height {
		out.data = append(out.data, b.data...)
	}
	return out
}

// Clone returns a deep copy of b.
func (b *Biomes) Clone() *Biomes {
	out := *b
	out.names = slices.Clone(b.names)
	out.data = slices.Clone(b.data)
	out.index = maps.Clone(b.index)
	return &out
}
