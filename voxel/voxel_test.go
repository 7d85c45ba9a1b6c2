package voxel

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/oriumgames/schem/bitpack"
	"github.com/oriumgames/schem/nbt"
	"github.com/oriumgames/schem/palette"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var stone = palette.NewBlockState("minecraft:stone")

func TestNewRegion(t *testing.T) {
	r, err := New(3, 2, 4)
	require.NoError(t, err)

	w, h, l := r.Dimensions()
	assert.Equal(t, [3]int{3, 2, 4}, [3]int{w, h, l})
	assert.Equal(t, 24, r.Volume())

	s, ok := r.Block(2, 1, 3)
	require.True(t, ok)
	assert.True(t, s.IsAir())

	_, err = New(0, 1, 1)
	assert.ErrorIs(t, err, ErrInvalidDimensions)
	_, err = New(1<<16, 1<<16, 1)
	assert.ErrorIs(t, err, ErrInvalidDimensions)
}

func TestIndexOrder(t *testing.T) {
	r, err := New(3, 2, 4)
	require.NoError(t, err)

	assert.Equal(t, 0, r.Index(0, 0, 0))
	assert.Equal(t, 1, r.Index(1, 0, 0))
	assert.Equal(t, 3, r.Index(0, 0, 1))
	assert.Equal(t, 12, r.Index(0, 1, 0))
	for i := range r.Volume() {
		p := r.Position(i)
		assert.Equal(t, i, r.Index(p.X(), p.Y(), p.Z()))
	}
}

func TestSetBlock(t *testing.T) {
	r, err := New(2, 2, 2)
	require.NoError(t, err)

	require.NoError(t, r.SetBlock(1, 1, 0, stone))
	got, ok := r.Block(1, 1, 0)
	require.True(t, ok)
	assert.True(t, got.Equal(stone))
	assert.Equal(t, uint32(1), r.Indices()[r.Index(1, 1, 0)])

	assert.ErrorIs(t, r.SetBlock(2, 0, 0, stone), ErrOutOfBounds)
	assert.ErrorIs(t, r.SetBlockIndex(0, 0, 0, 5), palette.ErrOutOfRange)
	_, ok = r.Block(-1, 0, 0)
	assert.False(t, ok)
}

func TestFromIndices(t *testing.T) {
	p := palette.FromStates([]palette.BlockState{palette.Air, stone})

	r, err := FromIndices(2, 1, 1, p, []uint32{1, 0})
	require.NoError(t, err)
	s, _ := r.Block(0, 0, 0)
	assert.True(t, s.Equal(stone))

	_, err = FromIndices(2, 1, 1, p, []uint32{1})
	assert.ErrorIs(t, err, bitpack.ErrLengthMismatch)

	_, err = FromIndices(2, 1, 1, p, []uint32{1, 2})
	assert.ErrorIs(t, err, palette.ErrOutOfRange)
}

func TestBlockEntities(t *testing.T) {
	r, err := New(4, 4, 4)
	require.NoError(t, err)

	r.SetBlockEntity(BlockEntity{Pos: Pos{0, 1, 0}, ID: "minecraft:chest"})
	r.SetBlockEntity(BlockEntity{Pos: Pos{3, 0, 0}, ID: "minecraft:sign"})
	r.SetBlockEntity(BlockEntity{Pos: Pos{9, 0, 0}, ID: "minecraft:hopper"})
	r.SetBlockEntity(BlockEntity{Pos: Pos{0, 1, 0}, ID: "minecraft:barrel"})

	all := r.BlockEntities()
	require.Len(t, all, 3)
	assert.Equal(t, "minecraft:barrel", all[0].ID, "replaced in place")
	assert.Equal(t, "minecraft:sign", all[1].ID)
	assert.Equal(t, "minecraft:hopper", all[2].ID, "outside the box but kept")
	assert.NotNil(t, all[0].Data)

	be, ok := r.BlockEntity(Pos{9, 0, 0})
	require.True(t, ok)
	assert.Equal(t, "minecraft:hopper", be.ID)

	assert.True(t, r.RemoveBlockEntity(Pos{3, 0, 0}))
	assert.False(t, r.RemoveBlockEntity(Pos{3, 0, 0}))
	assert.Len(t, r.BlockEntities(), 2)

	c := r.Clone()
	c.SetBlockEntity(BlockEntity{Pos: Pos{1, 1, 1}, ID: "minecraft:chest"})
	assert.Len(t, r.BlockEntities(), 2)
	assert.Len(t, c.BlockEntities(), 3)
}

func TestExpandToFit(t *testing.T) {
	r, err := New(2, 1, 1)
	require.NoError(t, err)
	r.Offset = Pos{100, 64, 100}
	require.NoError(t, r.SetBlock(1, 0, 0, stone))
	r.SetBlockEntity(BlockEntity{Pos: Pos{1, 0, 0}, ID: "minecraft:chest"})
	r.AddEntity(Entity{Pos: [3]float64{0.5, 0, 0.5}, ID: "minecraft:pig"})

	shift, err := r.ExpandToFit(1, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, Pos{}, shift)
	assert.Equal(t, 2, r.Volume())

	dirt := palette.NewBlockState("minecraft:dirt")
	shift, err = r.SetBlockExpanding(-2, 2, 0, dirt)
	require.NoError(t, err)
	assert.Equal(t, Pos{2, 0, 0}, shift)
	w, h, l := r.Dimensions()
	assert.Equal(t, [3]int{4, 3, 1}, [3]int{w, h, l})
	assert.Equal(t, Pos{98, 64, 100}, r.Offset)

	got, _ := r.Block(3, 0, 0)
	assert.True(t, got.Equal(stone), "existing block moved by the shift")
	got, _ = r.Block(0, 2, 0)
	assert.True(t, got.Equal(dirt))
	_, ok := r.BlockEntity(Pos{3, 0, 0})
	assert.True(t, ok)
	require.Len(t, r.Entities(), 1)
	assert.Equal(t, [3]float64{2.5, 0, 0.5}, r.Entities()[0].Pos)

	shift, err = r.SetBlockExpanding(5, 0, 0, stone)
	require.NoError(t, err)
	assert.Equal(t, Pos{}, shift)
	assert.Equal(t, 6, r.Width())
	assert.Equal(t, Pos{98, 64, 100}, r.Offset)
}

func TestCompacted(t *testing.T) {
	r, err := New(2, 1, 1)
	require.NoError(t, err)
	require.NoError(t, r.SetBlock(0, 0, 0, palette.NewBlockState("minecraft:dirt")))
	require.NoError(t, r.SetBlock(0, 0, 0, stone))
	require.NoError(t, r.SetBlock(1, 0, 0, stone))
	assert.Equal(t, 3, r.Palette().Len())

	c := r.Compacted()
	assert.Equal(t, []palette.BlockState{stone}, c.Palette().States())
	assert.Equal(t, []uint32{0, 0}, c.Indices())
	assert.Equal(t, 3, r.Palette().Len(), "source is untouched")
	assert.Equal(t, map[string]int{"minecraft:stone": 2}, c.Counts())
}

func TestTrimmed(t *testing.T) {
	r, err := New(5, 4, 5)
	require.NoError(t, err)
	r.Offset = Pos{10, 0, -10}
	require.NoError(t, r.SetBlock(1, 1, 2, stone))
	require.NoError(t, r.SetBlock(3, 2, 2, stone))
	r.SetBlockEntity(BlockEntity{Pos: Pos{3, 2, 2}, ID: "minecraft:chest"})
	r.Metadata.Name = "trim"

	lo, size, ok := r.Bounds()
	require.True(t, ok)
	assert.Equal(t, Pos{1, 1, 2}, lo)
	assert.Equal(t, Pos{3, 2, 1}, size)

	tr := r.Trimmed()
	w, h, l := tr.Dimensions()
	assert.Equal(t, [3]int{3, 2, 1}, [3]int{w, h, l})
	assert.Equal(t, Pos{11, 1, -8}, tr.Offset)
	assert.Equal(t, "trim", tr.Metadata.Name)
	got, _ := tr.Block(0, 0, 0)
	assert.True(t, got.Equal(stone))
	got, _ = tr.Block(2, 1, 0)
	assert.True(t, got.Equal(stone))
	_, ok = tr.BlockEntity(Pos{2, 1, 0})
	assert.True(t, ok)

	empty, err := New(2, 2, 2)
	require.NoError(t, err)
	_, _, ok = empty.Bounds()
	assert.False(t, ok)
	w, h, l = empty.Trimmed().Dimensions()
	assert.Equal(t, [3]int{2, 2, 2}, [3]int{w, h, l})
}

func TestPaste(t *testing.T) {
	src, err := New(2, 1, 1)
	require.NoError(t, err)
	require.NoError(t, src.SetBlock(1, 0, 0, stone))
	src.SetBlockEntity(BlockEntity{Pos: Pos{1, 0, 0}, ID: "minecraft:chest"})
	src.AddEntity(Entity{Pos: [3]float64{0.5, 0, 0.5}, ID: "minecraft:pig"})

	dst, err := New(4, 2, 2)
	require.NoError(t, err)
	dirt := palette.NewBlockState("minecraft:dirt")
	require.NoError(t, dst.SetBlock(2, 1, 1, dirt))

	dst.Paste(src, Pos{2, 1, 1}, true)
	got, _ := dst.Block(2, 1, 1)
	assert.True(t, got.Equal(dirt), "air skipped")
	got, _ = dst.Block(3, 1, 1)
	assert.True(t, got.Equal(stone))

	be, ok := dst.BlockEntity(Pos{3, 1, 1})
	require.True(t, ok)
	assert.Equal(t, "minecraft:chest", be.ID)
	require.Len(t, dst.Entities(), 1)
	assert.Equal(t, [3]float64{2.5, 1, 1.5}, dst.Entities()[0].Pos)

	dst.Paste(src, Pos{3, 0, 0}, false)
	got, _ = dst.Block(3, 0, 0)
	assert.True(t, got.IsAir())
}

func TestCloneIsIndependent(t *testing.T) {
	r, err := New(1, 1, 1)
	require.NoError(t, err)
	r.Metadata.RootExtra = nbt.NewCompound()
	r.Metadata.RootExtra.Set("Foo", nbt.Int(1))

	c := r.Clone()
	require.NoError(t, c.SetBlock(0, 0, 0, stone))
	c.Metadata.RootExtra.Set("Foo", nbt.Int(2))

	s, _ := r.Block(0, 0, 0)
	assert.True(t, s.IsAir())
	v, _ := nbt.Get[nbt.Int](r.Metadata.RootExtra, "Foo")
	assert.Equal(t, nbt.Int(1), v)
}

func TestBiomes(t *testing.T) {
	r, err := New(2, 3, 2)
	require.NoError(t, err)

	flat := NewBiomes(r, false, "minecraft:plains")
	require.NoError(t, flat.SetBiome(1, 0, 1, "minecraft:desert"))
	b, ok := flat.Biome(1, 2, 1)
	require.True(t, ok)
	assert.Equal(t, "minecraft:desert", b)
	assert.Len(t, flat.Indices(), 4)

	vol := flat.Volume()
	assert.True(t, vol.Volumetric())
	assert.Len(t, vol.Indices(), 12)
	b, _ = vol.Biome(1, 2, 1)
	assert.Equal(t, "minecraft:desert", b)
	assert.Equal(t, flat.Indices(), vol.Flat().Indices())

	require.NoError(t, r.SetBiomes(vol))

	other, err := New(1, 1, 1)
	require.NoError(t, err)
	assert.ErrorIs(t, other.SetBiomes(vol), ErrInvalidDimensions)

	_, err = BiomesFromIndices(r, false, []string{"a"}, []uint32{0, 0, 0, 1})
	assert.ErrorIs(t, err, palette.ErrOutOfRange)
	_, err = BiomesFromIndices(r, false, []string{"a"}, []uint32{0})
	assert.ErrorIs(t, err, bitpack.ErrLengthMismatch)
}

func TestEntityUUID(t *testing.T) {
	id := uuid.MustParse("0f5e1b4a-7c2d-4e8f-9a0b-1c2d3e4f5a6b")
	var e Entity
	_, ok := e.UUID()
	assert.False(t, ok)

	e.SetUUID(id)
	got, ok := e.UUID()
	require.True(t, ok)
	assert.Equal(t, id, got)

	legacy := Entity{Data: nbt.NewCompound()}
	legacy.Data.Set("UUIDMost", nbt.Long(0x0f5e1b4a7c2d4e8f))
	legacy.Data.Set("UUIDLeast", nbt.Long(-0x65f4e3d2c1b0a595))
	got, ok = legacy.UUID()
	require.True(t, ok)
	assert.Equal(t, id, got)
}

func TestMarshalJSON(t *testing.T) {
	r, err := New(2, 1, 1)
	require.NoError(t, err)
	require.NoError(t, r.SetBlock(1, 0, 0, stone))
	data := nbt.NewCompound()
	data.Set("CustomName", nbt.String("loot"))
	r.SetBlockEntity(BlockEntity{Pos: Pos{1, 0, 0}, ID: "minecraft:chest", Data: data})
	r.Offset = Pos{4, 5, 6}
	r.Metadata.Name = "pair"

	raw, err := json.Marshal(r)
	require.NoError(t, err)

	var got struct {
		Metadata struct {
			Name    string  `json:"name"`
			Created *string `json:"created"`
		} `json:"metadata"`
		Size          [3]int   `json:"size"`
		Offset        [3]int   `json:"offset"`
		Palette       []string `json:"palette"`
		Blocks        []uint32 `json:"blocks"`
		BlockEntities []struct {
			Pos  [3]int         `json:"pos"`
			ID   string         `json:"id"`
			Data map[string]any `json:"data"`
		} `json:"block_entities"`
		Entities []any `json:"entities"`
	}
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "pair", got.Metadata.Name)
	assert.Nil(t, got.Metadata.Created)
	assert.Equal(t, [3]int{2, 1, 1}, got.Size)
	assert.Equal(t, [3]int{4, 5, 6}, got.Offset)
	assert.Equal(t, []string{"minecraft:air", "minecraft:stone"}, got.Palette)
	assert.Equal(t, []uint32{0, 1}, got.Blocks)
	require.Len(t, got.BlockEntities, 1)
	assert.Equal(t, "minecraft:chest", got.BlockEntities[0].ID)
	assert.Equal(t, "loot", got.BlockEntities[0].Data["CustomName"])
	assert.Empty(t, got.Entities)
}
