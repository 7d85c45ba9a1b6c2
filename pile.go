package schem

import (
	"bytes"
	"fmt"
	"io"
	"math"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/google/uuid"
	"github.com/oriumgames/pile/format"
	"github.com/oriumgames/schem/bitpack"
	"github.com/oriumgames/schem/nbt"
	"github.com/oriumgames/schem/voxel"
	gtnbt "github.com/sandertv/gophertunnel/minecraft/nbt"
)

const sectionVolume = 16 * 16 * 16

// pileSection collects one 16³ section before it is packed.
type pileSection struct {
	blocks sectionPalette
	biomes sectionPalette
}

// sectionPalette is a per-section string palette. Index 0 is the fill value.
type sectionPalette struct {
	names   []string
	index   map[string]uint32
	indices []uint32
}

func newSectionPalette(fill string) sectionPalette {
	return sectionPalette{
		names:   []string{fill},
		index:   map[string]uint32{fill: 0},
		indices: make([]uint32, sectionVolume),
	}
}

func (s *sectionPalette) set(i int, name string) {
	idx, ok := s.index[name]
	if !ok {
		idx = uint32(len(s.names))
		s.index[name] = idx
		s.names = append(s.names, name)
	}
	s.indices[i] = idx
}

// pack returns the palette and its aligned index words. A single-entry palette
// stores no words.
func (s *sectionPalette) pack() ([]string, []int64, error) {
	if len(s.names) <= 1 {
		return s.names, nil, nil
	}
	data, err := bitpack.PackLongs(s.indices, bitpack.BitsFor(len(s.names)), bitpack.Aligned)
	return s.names, data, err
}

// ToPile places r with its minimum corner at origin in a pile world spanning dimRange.
// Block palettes hold full block state strings. Blocks outside dimRange are dropped.
func ToPile(r *Region, origin cube.Pos, dimRange cube.Range) (*format.World, error) {
	if r == nil {
		return nil, errNilRegion
	}
	minSection, maxSection := int32(dimRange[0]>>4), int32((dimRange[1]>>4)+1)
	w := format.NewWorld(minSection, maxSection)
	sectionCount := int(maxSection - minSection)

	chunks := make(map[[2]int32][]*pileSection)
	states := r.Palette().States()
	names := make([]string, len(states))
	for i, s := range states {
		names[i] = s.String()
	}
	biomes := r.Biomes()

	width, height, length := r.Dimensions()
	for y := range height {
		wy := y + origin.Y()
		if wy < dimRange[0] || wy > dimRange[1] {
			continue
		}
		si := (wy >> 4) - int(minSection)
		for z := range length {
			wz := z + origin.Z()
			for x := range width {
				wx := x + origin.X()
				key := [2]int32{int32(wx >> 4), int32(wz >> 4)}
				sections, ok := chunks[key]
				if !ok {
					sections = make([]*pileSection, sectionCount)
					chunks[key] = sections
				}
				sec := sections[si]
				if sec == nil {
					sec = &pileSection{blocks: newSectionPalette("minecraft:air")}
					if biomes != nil {
						sec.biomes = newSectionPalette("minecraft:plains")
					}
					sections[si] = sec
				}
				i := (wy&0xF)<<8 | (wz&0xF)<<4 | wx&0xF
				idx, _ := r.BlockIndex(x, y, z)
				sec.blocks.set(i, names[idx])
				if biomes != nil {
					if b, ok := biomes.Biome(x, y, z); ok {
						sec.biomes.set(i, b)
					}
				}
			}
		}
	}

	for key, sections := range chunks {
		c := &format.Chunk{X: key[0], Z: key[1], Sections: make([]*format.Section, sectionCount)}
		for i, sec := range sections {
			if sec == nil {
				continue
			}
			out := &format.Section{}
			var err error
			if out.BlockPalette, out.BlockData, err = sec.blocks.pack(); err != nil {
				return nil, fmt.Errorf("pack chunk %v section %d: %w", key, i, err)
			}
			if biomes != nil {
				if out.BiomePalette, out.BiomeData, err = sec.biomes.pack(); err != nil {
					return nil, fmt.Errorf("pack chunk %v section %d biomes: %w", key, i, err)
				}
			}
			c.Sections[i] = out
		}
		w.SetChunk(c)
	}

	for _, be := range r.BlockEntities() {
		if !r.Contains(be.Pos[0], be.Pos[1], be.Pos[2]) {
			continue
		}
		at := origin.Add(cube.Pos{be.Pos[0], be.Pos[1], be.Pos[2]})
		c := w.Chunk(int32(at.X()>>4), int32(at.Z()>>4))
		if c == nil || at.Y() < dimRange[0] || at.Y() > dimRange[1] {
			continue
		}
		data := be.Data.Map()
		data["id"] = be.ID
		data["x"], data["y"], data["z"] = int32(at.X()), int32(at.Y()), int32(at.Z())
		enc, err := encodeNBT(data)
		if err != nil {
			return nil, fmt.Errorf("encode block entity %s at %v: %w", be.ID, at, err)
		}
		c.BlockEntities = append(c.BlockEntities, format.BlockEntity{
			PackedXZ: uint8(at.X()&0xF) | uint8(at.Z()&0xF)<<4,
			Y:        int32(at.Y()),
			ID:       be.ID,
			Data:     enc,
		})
	}

	for _, e := range r.Entities() {
		pos := [3]float32{
			float32(e.Pos[0] + float64(origin.X())),
			float32(e.Pos[1] + float64(origin.Y())),
			float32(e.Pos[2] + float64(origin.Z())),
		}
		c := w.Chunk(int32(math.Floor(float64(pos[0])))>>4, int32(math.Floor(float64(pos[2])))>>4)
		if c == nil {
			continue
		}
		id, ok := e.UUID()
		if !ok {
			id = uuid.New()
		}
		data := e.Data.Map()
		data["identifier"] = e.ID
		data["Pos"] = pos[:]
		enc, err := encodeNBT(data)
		if err != nil {
			return nil, fmt.Errorf("encode entity %s: %w", e.ID, err)
		}
		c.Entities = append(c.Entities, format.Entity{
			UUID:     id,
			ID:       e.ID,
			Position: pos,
			Rotation: entityRotation(e),
			Data:     enc,
		})
	}
	return w, nil
}

// entityRotation reads the yaw and pitch of a Java "Rotation" list.
func entityRotation(e voxel.Entity) [2]float32 {
	var rot [2]float32
	if l, ok := e.Data.Get("Rotation"); ok {
		if native, ok := nbt.ToNative(l).([]float32); ok && len(native) == 2 {
			rot = [2]float32{native[0], native[1]}
		}
	}
	return rot
}

func encodeNBT(data map[string]any) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := gtnbt.NewEncoder(buf).Encode(data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WritePile writes r as a pile world to w.
func WritePile(w io.Writer, r *Region, origin cube.Pos, dimRange cube.Range, level format.CompressionLevel) error {
	world, err := ToPile(r, origin, dimRange)
	if err != nil {
		return err
	}
	if err := format.WriteWithCompression(w, world, level); err != nil {
		return fmt.Errorf("write pile world: %w", err)
	}
	return nil
}
