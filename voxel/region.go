// Package voxel holds the format-independent model every schematic dialect decodes
// into and encodes from.
package voxel

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/oriumgames/schem/bitpack"
	"github.com/oriumgames/schem/nbt"
	"github.com/oriumgames/schem/palette"
)

var (
	// ErrInvalidDimensions is returned for a non-positive or oversized extent.
	ErrInvalidDimensions = errors.New("voxel: invalid dimensions")
	// ErrOutOfBounds is returned for a position outside the region.
	ErrOutOfBounds = errors.New("voxel: position out of bounds")
)

// Pos is an integer block position, relative to the region origin unless stated
// otherwise.
type Pos [3]int

func (p Pos) X() int { return p[0] }
func (p Pos) Y() int { return p[1] }
func (p Pos) Z() int { return p[2] }

// Add returns p offset by o.
func (p Pos) Add(o Pos) Pos {
	return Pos{p[0] + o[0], p[1] + o[1], p[2] + o[2]}
}

// Sub returns p minus o.
func (p Pos) Sub(o Pos) Pos {
	return Pos{p[0] - o[0], p[1] - o[1], p[2] - o[2]}
}

// Mul returns p scaled by n.
func (p Pos) Mul(n int) Pos {
	return Pos{p[0] * n, p[1] * n, p[2] * n}
}

// Region is a rectangular box of block states. Blocks are stored as palette indices
// in y-major, then z, then x order.
type Region struct {
	width, height, length int

	palette       *palette.Palette
	blocks        []uint32
	blockEntities []BlockEntity
	entities      []Entity
	biomes        *Biomes

	// Offset is the position of the region origin relative to the point it was copied
	// from or should be pasted at.
	Offset   Pos
	Metadata Metadata
}

// CheckDimensions validates a region extent.
func CheckDimensions(w, h, l int) error {
	if w <= 0 || h <= 0 || l <= 0 {
		return fmt.Errorf("%w: %dx%dx%d", ErrInvalidDimensions, w, h, l)
	}
	if int64(w)*int64(h)*int64(l) > math.MaxInt32 {
		return fmt.Errorf("%w: %dx%dx%d exceeds %d blocks", ErrInvalidDimensions, w, h, l, math.MaxInt32)
	}
	return nil
}

// New returns a region filled with air. Air is palette index 0.
func New(width, height, length int) (*Region, error) {
	if err := CheckDimensions(width, height, length); err != nil {
		return nil, err
	}
	return &Region{
		width:         width,
		height:        height,
		length:        length,
		palette:       palette.NewWithAir(),
		blocks:        make([]uint32, width*height*length),
	}, nil
}

// FromIndices builds a region from a decoded block array. The region takes ownership
// of p and indices.
func FromIndices(width, height, length int, p *palette.Palette, indices []uint32) (*Region, error) {
	if err := CheckDimensions(width, height, length); err != nil {
		return nil, err
	}
	if n := width * height * length; len(indices) != n {
		return nil, fmt.Errorf("%w: %d blocks for %dx%dx%d", bitpack.ErrLengthMismatch, len(indices), width, height, length)
	}
	if err := p.Check(indices); err != nil {
		return nil, err
	}
	return &Region{
		width:         width,
		height:        height,
		length:        length,
		palette:       p,
		blocks:        indices,
	}, nil
}

// Dimensions returns the width (x), height (y) and length (z).
func (r *Region) Dimensions() (width, height, length int) {
	return r.width, r.height, r.length
}

func (r *Region) Width() int  { return r.width }
func (r *Region) Height() int { return r.height }
func (r *Region) Length() int { return r.length }

// Volume returns the number of blocks.
func (r *Region) Volume() int {
	return r.width * r.height * r.length
}

// Index returns the position of (x, y, z) in the block array.
func (r *Region) Index(x, y, z int) int {
	return (y*r.length+z)*r.width + x
}

// Position is the inverse of Index.
func (r *Region) Position(i int) Pos {
	x := i % r.width
	z := (i / r.width) % r.length
	y := i / (r.width * r.length)
	return Pos{x, y, z}
}

// Contains reports whether (x, y, z) lies inside the region.
func (r *Region) Contains(x, y, z int) bool {
	return x >= 0 && y >= 0 && z >= 0 && x < r.width && y < r.height && z < r.length
}

// Palette returns the block palette.
func (r *Region) Palette() *palette.Palette {
	return r.palette
}

// Indices returns the block array. Callers must not modify it.
func (r *Region) Indices() []uint32 {
	return r.blocks
}

// BlockIndex returns the palette index at (x, y, z).
func (r *Region) BlockIndex(x, y, z int) (uint32, bool) {
	if !r.Contains(x, y, z) {
		return 0, false
	}
	return r.blocks[r.Index(x, y, z)], true
}

// Block returns the state at (x, y, z).
func (r *Region) Block(x, y, z int) (palette.BlockState, bool) {
	i, ok := r.BlockIndex(x, y, z)
	if !ok {
		return palette.BlockState{}, false
	}
	s, err := r.palette.StateAt(i)
	return s, err == nil
}

// SetBlock stores s at (x, y, z), adding it to the palette if needed.
func (r *Region) SetBlock(x, y, z int, s palette.BlockState) error {
	if !r.Contains(x, y, z) {
		return fmt.Errorf("%w: (%d, %d, %d)", ErrOutOfBounds, x, y, z)
	}
	r.blocks[r.Index(x, y, z)] = r.palette.IndexOf(s)
	return nil
}

// SetBlockIndex stores a palette index at (x, y, z).
func (r *Region) SetBlockIndex(x, y, z int, i uint32) error {
	if !r.Contains(x, y, z) {
		return fmt.Errorf("%w: (%d, %d, %d)", ErrOutOfBounds, x, y, z)
	}
	if int(i) >= r.palette.Len() {
		return fmt.Errorf("%w: %d (size %d)", palette.ErrOutOfRange, i, r.palette.Len())
	}
	r.blocks[r.Index(x, y, z)] = i
	return nil
}

// BlockEntities returns the block entities in the order they were added. Entries
// outside the region are kept; consumers that place blocks filter them.
func (r *Region) BlockEntities() []BlockEntity {
	return slices.Clone(r.blockEntities)
}

// BlockEntity returns the block entity at pos.
func (r *Region) BlockEntity(pos Pos) (BlockEntity, bool) {
	i := r.blockEntityIndex(pos)
	if i < 0 {
		return BlockEntity{}, false
	}
	return r.blockEntities[i], true
}

func (r *Region) blockEntityIndex(pos Pos) int {
	return slices.IndexFunc(r.blockEntities, func(be BlockEntity) bool { return be.Pos == pos })
}

// SetBlockEntity stores be, replacing any block entity at the same position in place.
// Positions are not bounds checked, so data that points outside the box survives a
// decode and encode cycle.
func (r *Region) SetBlockEntity(be BlockEntity) {
	if be.Data == nil {
		be.Data = nbt.NewCompound()
	}
	if i := r.blockEntityIndex(be.Pos); i >= 0 {
		r.blockEntities[i] = be
		return
	}
	r.blockEntities = append(r.blockEntities, be)
}

// RemoveBlockEntity deletes the block entity at pos.
func (r *Region) RemoveBlockEntity(pos Pos) bool {
	i := r.blockEntityIndex(pos)
	if i < 0 {
		return false
	}
	r.blockEntities = slices.Delete(r.blockEntities, i, i+1)
	return true
}

// Entities returns the entities in insertion order.
func (r *Region) Entities() []Entity {
	return slices.Clone(r.entities)
}

// AddEntity appends e. Entity positions are not bounds checked; mobs may stand on the
// edge of a selection.
func (r *Region) AddEntity(e Entity) {
	if e.Data == nil {
		e.Data = nbt.NewCompound()
	}
	r.entities = append(r.entities, e)
}

// RemoveEntity deletes the i-th entity.
func (r *Region) RemoveEntity(i int) error {
	if i < 0 || i >= len(r.entities) {
		return fmt.Errorf("%w: entity %d of %d", ErrOutOfBounds, i, len(r.entities))
	}
	r.entities = slices.Delete(r.entities, i, i+1)
	return nil
}

// Biomes returns the biome layer, or nil if the region has none.
func (r *Region) Biomes() *Biomes {
	return r.biomes
}

// SetBiomes attaches b, which must have been created for this region's extent. A nil
// b removes the layer.
func (r *Region) SetBiomes(b *Biomes) error {
	if b != nil && (b.width != r.width || b.length != r.length || (b.volumetric && b.height != r.height)) {
		return fmt.Errorf("%w: biomes %dx%dx%d for region %dx%dx%d", ErrInvalidDimensions,
			b.width, b.height, b.length, r.width, r.height, r.length)
	}
	r.biomes = b
	return nil
}

// Counts returns the number of blocks of each state, keyed by the state string.
func (r *Region) Counts() map[string]int {
	perIndex := make([]int, r.palette.Len())
	for _, i := range r.blocks {
		perIndex[i]++
	}
	out := make(map[string]int)
	for i, n := range perIndex {
		if n == 0 {
			continue
		}
		s, _ := r.palette.StateAt(uint32(i))
		out[s.String()] += n
	}
	return out
}

// Compacted returns a copy of r whose palette holds only the states in use, in their
// original order.
func (r *Region) Compacted() *Region {
	used := make([]bool, r.palette.Len())
	for _, i := range r.blocks {
		used[i] = true
	}
	remap := make([]uint32, len(used))
	states := r.palette.States()
	kept := make([]palette.BlockState, 0, len(states))
	for i, ok := range used {
		if ok {
			remap[i] = uint32(len(kept))
			kept = append(kept, states[i])
		}
	}
	out := r.Clone()
	out.palette = palette.FromStates(kept)
	for i, v := range out.blocks {
		out.blocks[i] = remap[v]
	}
	return out
}

// Bounds returns the smallest box holding every non-air block as its minimum corner
// and its size. ok is false when the region is all air.
func (r *Region) Bounds() (lo, size Pos, ok bool) {
	var hi Pos
	for i, v := range r.blocks {
		s, _ := r.palette.StateAt(v)
		if s.IsAir() {
			continue
		}
		p := r.Position(i)
		if !ok {
			lo, hi, ok = p, p, true
			continue
		}
		for a := range 3 {
			lo[a], hi[a] = min(lo[a], p[a]), max(hi[a], p[a])
		}
	}
	if !ok {
		return Pos{}, Pos{}, false
	}
	return lo, hi.Sub(lo).Add(Pos{1, 1, 1}), true
}

// Trimmed returns a copy of r cut down to Bounds, with Offset moved so that blocks
// keep their absolute positions. An all-air region is returned unchanged.
func (r *Region) Trimmed() *Region {
	lo, size, ok := r.Bounds()
	if !ok {
		return r.Clone()
	}
	out, err := r.reframed(lo, size)
	if err != nil {
		return r.Clone()
	}
	return out.Compacted()
}

// ExpandToFit grows r in place until (x, y, z) lies inside it. Growing towards
// negative coordinates moves existing content; the returned shift has been added to
// every stored position and subtracted from Offset, so absolute positions hold.
func (r *Region) ExpandToFit(x, y, z int) (Pos, error) {
	if r.Contains(x, y, z) {
		return Pos{}, nil
	}
	lo := Pos{min(x, 0), min(y, 0), min(z, 0)}
	hi := Pos{max(x, r.width-1), max(y, r.height-1), max(z, r.length-1)}
	out, err := r.reframed(lo, hi.Sub(lo).Add(Pos{1, 1, 1}))
	if err != nil {
		return Pos{}, err
	}
	*r = *out
	return lo.Mul(-1), nil
}

// SetBlockExpanding is SetBlock for a position that may lie outside r. The region
// grows as ExpandToFit does and the shift applied to existing content is returned.
func (r *Region) SetBlockExpanding(x, y, z int, s palette.BlockState) (Pos, error) {
	shift, err := r.ExpandToFit(x, y, z)
	if err != nil {
		return Pos{}, err
	}
	p := Pos{x, y, z}.Add(shift)
	return shift, r.SetBlock(p[0], p[1], p[2], s)
}

// reframed copies r into a new box of the given size whose origin sits at lo in r's
// coordinates. Blocks outside the box are dropped; block entities are moved but kept.
func (r *Region) reframed(lo, size Pos) (*Region, error) {
	out, err := New(size[0], size[1], size[2])
	if err != nil {
		return nil, err
	}
	out.Paste(r, lo.Mul(-1), false)
	out.blockEntities = out.blockEntities[:0]
	for _, be := range r.blockEntities {
		be.Pos = be.Pos.Sub(lo)
		be.Data = nbt.CloneCompound(be.Data)
		out.blockEntities = append(out.blockEntities, be)
	}
	out.Offset = r.Offset.Add(lo)
	out.Metadata = r.Metadata.Clone()
	if r.biomes != nil {
		b := NewBiomes(out, r.biomes.Volumetric(), "minecraft:plains")
		for i := range out.Volume() {
			p := out.Position(i).Add(lo)
			if name, ok := r.biomes.Biome(p[0], p[1], p[2]); ok {
				_ = b.SetBiome(p[0]-lo[0], p[1]-lo[1], p[2]-lo[2], name)
			}
		}
		out.biomes = b
	}
	return out, nil
}

// Paste copies src into r with the source origin placed at at. Blocks falling outside
// r are dropped, as are block entities; entities are moved by at unconditionally.
// With skipAir, air in src leaves the destination untouched.
func (r *Region) Paste(src *Region, at Pos, skipAir bool) {
	remap := make([]uint32, src.palette.Len())
	air := make([]bool, src.palette.Len())
	for i, s := range src.palette.States() {
		remap[i] = r.palette.IndexOf(s)
		air[i] = s.IsAir()
	}
	for y := range src.height {
		for z := range src.length {
			for x := range src.width {
				v := src.blocks[src.Index(x, y, z)]
				if skipAir && air[v] {
					continue
				}
				dx, dy, dz := x+at[0], y+at[1], z+at[2]
				if r.Contains(dx, dy, dz) {
					r.blocks[r.Index(dx, dy, dz)] = remap[v]
				}
			}
		}
	}
	for _, be := range src.blockEntities {
		be.Pos = be.Pos.Add(at)
		if !r.Contains(be.Pos[0], be.Pos[1], be.Pos[2]) {
			continue
		}
		be.Data = nbt.CloneCompound(be.Data)
		r.SetBlockEntity(be)
	}
	for _, e := range src.entities {
		e = e.Clone()
		e.Pos = [3]float64{e.Pos[0] + float64(at[0]), e.Pos[1] + float64(at[1]), e.Pos[2] + float64(at[2])}
		r.entities = append(r.entities, e)
	}
}

// Clone returns a deep copy of r.
func (r *Region) Clone() *Region {
	out := &Region{
		width:         r.width,
		height:        r.height,
		length:        r.length,
		palette:       r.palette.Clone(),
		blocks:        slices.Clone(r.blocks),
		blockEntities: make([]BlockEntity, 0, len(r.blockEntities)),
		entities:      make([]Entity, 0, len(r.entities)),
		Offset:        r.Offset,
		Metadata:      r.Metadata.Clone(),
	}
	for _, be := range r.blockEntities {
		be.Data = nbt.CloneCompound(be.Data)
		out.blockEntities = append(out.blockEntities, be)
	}
	for _, e := range r.entities {
		out.entities = append(out.entities, e.Clone())
	}
	if r.biomes != nil {
		out.biomes = r.biomes.Clone()
	}
	return out
}
