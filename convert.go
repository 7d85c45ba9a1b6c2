package schem

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/df-mc/dragonfly/server/world"
	"github.com/df-mc/dragonfly/server/world/chunk"
	"github.com/oriumgames/schem/dialect"
	"github.com/oriumgames/schem/nbt"
	"github.com/oriumgames/schem/palette"
	"github.com/oriumgames/schem/voxel"
)

// runtimeIDs caches the dragonfly runtime ID of every block state seen so far.
// States dragonfly does not know, including Java names with no Bedrock equivalent,
// resolve to air.
type runtimeIDs struct {
	mu  sync.Mutex
	air uint32
	ids map[string]uint32
}

func newRuntimeIDs() *runtimeIDs {
	air, _ := world.BlockByName("minecraft:air", nil)
	return &runtimeIDs{air: world.BlockRuntimeID(air), ids: make(map[string]uint32)}
}

func (c *runtimeIDs) lookup(s palette.BlockState) uint32 {
	key := s.String()
	c.mu.Lock()
	defer c.mu.Unlock()
	if rid, ok := c.ids[key]; ok {
		return rid
	}
	rid := c.air
	if b, ok := world.BlockByName(s.Name, dialect.BedrockProperties(s.Properties)); ok {
		rid = world.BlockRuntimeID(b)
	} else if b, ok := world.BlockByName(s.Name, nil); ok {
		// Java and Bedrock disagree on most property sets; keep the block at least.
		rid = world.BlockRuntimeID(b)
	}
	c.ids[key] = rid
	return rid
}

// stateOf turns a runtime ID back into a block state.
func stateOf(rid uint32) palette.BlockState {
	name, props, ok := chunk.RuntimeIDToState(rid)
	if !ok || name == "" {
		return palette.Air
	}
	return palette.BlockState{Name: name, Properties: dialect.JavaProperties(props)}
}

// span is the part of a region that falls inside one chunk column, in region
// coordinates.
type span struct {
	lo, hi voxel.Pos
}

// columnSpan intersects the region placed at origin with the column at pos,
// clipped to the vertical range of the dimension.
func columnSpan(r *Region, origin cube.Pos, pos world.ChunkPos, dimRange cube.Range) (span, bool) {
	w, h, l := r.Dimensions()
	cx, cz := int(pos[0])<<4, int(pos[1])<<4
	s := span{
		lo: voxel.Pos{max(0, cx-origin.X()), max(0, dimRange[0]-origin.Y()), max(0, cz-origin.Z())},
		hi: voxel.Pos{min(w, cx+16-origin.X()), min(h, dimRange[1]+1-origin.Y()), min(l, cz+16-origin.Z())},
	}
	return s, s.lo[0] < s.hi[0] && s.lo[1] < s.hi[1] && s.lo[2] < s.hi[2]
}

func (s span) contains(p voxel.Pos) bool {
	return p[0] >= s.lo[0] && p[0] < s.hi[0] &&
		p[1] >= s.lo[1] && p[1] < s.hi[1] &&
		p[2] >= s.lo[2] && p[2] < s.hi[2]
}

// containsEntity reports whether an entity position lies inside the column
// horizontally. Entities above or below the clipped range still belong to it.
func (s span) containsEntity(p [3]float64) bool {
	x, z := int(math.Floor(p[0])), int(math.Floor(p[2]))
	return x >= s.lo[0] && x < s.hi[0] && z >= s.lo[2] && z < s.hi[2]
}

// regionToColumn builds the column at pos from the part of r that overlaps it. The
// second result is false when the region does not reach the column.
func regionToColumn(r *Region, origin cube.Pos, pos world.ChunkPos, dimRange cube.Range, ids *runtimeIDs) (*chunk.Column, bool) {
	s, ok := columnSpan(r, origin, pos, dimRange)
	if !ok {
		return nil, false
	}
	ch := chunk.New(ids.air, dimRange)

	p := r.Palette()
	rids := make([]uint32, p.Len())
	for i, state := range p.States() {
		rids[i] = ids.lookup(state)
	}
	biomes := r.Biomes()
	for y := s.lo[1]; y < s.hi[1]; y++ {
		wy := int16(y + origin.Y())
		for z := s.lo[2]; z < s.hi[2]; z++ {
			lz := uint8((z + origin.Z()) & 0xF)
			for x := s.lo[0]; x < s.hi[0]; x++ {
				lx := uint8((x + origin.X()) & 0xF)
				idx, _ := r.BlockIndex(x, y, z)
				if rid := rids[idx]; rid != ids.air {
					ch.SetBlock(lx, wy, lz, 0, rid)
				}
				if biomes == nil {
					continue
				}
				if name, ok := biomes.Biome(x, y, z); ok {
					if b, ok := world.BiomeByName(name); ok {
						ch.SetBiome(lx, wy, lz, uint32(b.EncodeBiome()))
					}
				}
			}
		}
	}

	col := &chunk.Column{Chunk: ch}
	for _, be := range r.BlockEntities() {
		if !s.contains(be.Pos) {
			continue
		}
		at := cube.Pos{be.Pos[0] + origin.X(), be.Pos[1] + origin.Y(), be.Pos[2] + origin.Z()}
		data := be.Data.Map()
		data["id"] = be.ID
		data["x"], data["y"], data["z"] = int32(at.X()), int32(at.Y()), int32(at.Z())
		col.BlockEntities = append(col.BlockEntities, chunk.BlockEntity{Pos: at, Data: data})
	}
	for _, e := range r.Entities() {
		if !s.containsEntity(e.Pos) {
			continue
		}
		data := e.Data.Map()
		data["identifier"] = e.ID
		data["Pos"] = []float32{
			float32(e.Pos[0] + float64(origin.X())),
			float32(e.Pos[1] + float64(origin.Y())),
			float32(e.Pos[2] + float64(origin.Z())),
		}
		col.Entities = append(col.Entities, chunk.Entity{ID: entityID(e), Data: data})
	}
	return col, true
}

// entityID derives the numeric ID dragonfly keys entities by. It prefers a stored
// UniqueID and falls back to the high half of the UUID.
func entityID(e voxel.Entity) int64 {
	if id, ok := nbt.Get[nbt.Long](e.Data, "UniqueID"); ok {
		return int64(id)
	}
	if id, ok := e.UUID(); ok {
		return int64(binary.BigEndian.Uint64(id[:8]))
	}
	return 0
}

// columnToRegion writes the overlap of col back into r. Blocks whose runtime ID still
// matches what regionToColumn produced keep their original state, so states with no
// Bedrock equivalent survive an unmodified round trip.
func columnToRegion(r *Region, origin cube.Pos, pos world.ChunkPos, col *chunk.Column, ids *runtimeIDs) error {
	dimRange := col.Chunk.Range()
	s, ok := columnSpan(r, origin, pos, dimRange)
	if !ok {
		return nil
	}
	p := r.Palette()
	for y := s.lo[1]; y < s.hi[1]; y++ {
		wy := int16(y + origin.Y())
		for z := s.lo[2]; z < s.hi[2]; z++ {
			lz := uint8((z + origin.Z()) & 0xF)
			for x := s.lo[0]; x < s.hi[0]; x++ {
				lx := uint8((x + origin.X()) & 0xF)
				rid := col.Chunk.Block(lx, wy, lz, 0)
				idx, _ := r.BlockIndex(x, y, z)
				current, err := p.StateAt(idx)
				if err != nil {
					return err
				}
				if ids.lookup(current) == rid {
					continue
				}
				if err := r.SetBlock(x, y, z, stateOf(rid)); err != nil {
					return err
				}
			}
		}
	}

	for _, be := range r.BlockEntities() {
		if s.contains(be.Pos) {
			r.RemoveBlockEntity(be.Pos)
		}
	}
	for _, be := range col.BlockEntities {
		at := voxel.Pos{be.Pos.X() - origin.X(), be.Pos.Y() - origin.Y(), be.Pos.Z() - origin.Z()}
		if !s.contains(at) {
			continue
		}
		data, err := nbt.CompoundFromMap(be.Data)
		if err != nil {
			return err
		}
		id, _ := nbt.Get[nbt.String](data, "id")
		for _, k := range []string{"id", "x", "y", "z"} {
			data.Delete(k)
		}
		r.SetBlockEntity(voxel.BlockEntity{Pos: at, ID: string(id), Data: data})
	}

	kept := r.Entities()
	for i := len(kept) - 1; i >= 0; i-- {
		if s.containsEntity(kept[i].Pos) {
			if err := r.RemoveEntity(i); err != nil {
				return err
			}
		}
	}
	for _, e := range col.Entities {
		data, err := nbt.CompoundFromMap(e.Data)
		if err != nil {
			return err
		}
		id, _ := nbt.Get[nbt.String](data, "identifier")
		data.Delete("identifier")
		var at [3]float64
		if v, ok := e.Data["Pos"].([]float32); ok && len(v) == 3 {
			at = [3]float64{
				float64(v[0]) - float64(origin.X()),
				float64(v[1]) - float64(origin.Y()),
				float64(v[2]) - float64(origin.Z()),
			}
		}
		data.Delete("Pos")
		if e.ID != 0 {
			data.Set("UniqueID", nbt.Long(e.ID))
		}
		r.AddEntity(voxel.Entity{Pos: at, ID: string(id), Data: data})
	}
	return nil
}
