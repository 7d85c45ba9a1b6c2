package dialect

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/oriumgames/schem/bitpack"
	"github.com/oriumgames/schem/nbt"
	"github.com/oriumgames/schem/palette"
	"github.com/oriumgames/schem/voxel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	stone  = palette.NewBlockState("minecraft:stone")
	stairs = palette.BlockState{Name: "minecraft:oak_stairs", Properties: map[string]string{"facing": "east", "half": "bottom"}}
	chest  = palette.BlockState{Name: "minecraft:chest", Properties: map[string]string{"facing": "north"}}
)

func chestData() *nbt.Compound {
	item := nbt.NewCompound()
	item.Set("Slot", nbt.Byte(3))
	item.Set("id", nbt.String("minecraft:diamond"))
	item.Set("Count", nbt.Byte(2))
	data := nbt.NewCompound()
	data.Set("Items", &nbt.List{Elem: nbt.TypeCompound, Items: []nbt.Tag{item}})
	data.Set("CustomName", nbt.String("loot"))
	return data
}

func sampleRegion(t *testing.T) *voxel.Region {
	t.Helper()
	r, err := voxel.New(3, 2, 2)
	require.NoError(t, err)
	require.NoError(t, r.SetBlock(0, 0, 0, stone))
	require.NoError(t, r.SetBlock(2, 0, 1, stone))
	require.NoError(t, r.SetBlock(1, 1, 0, stairs))
	require.NoError(t, r.SetBlock(1, 0, 1, chest))
	r.SetBlockEntity(voxel.BlockEntity{Pos: voxel.Pos{1, 0, 1}, ID: "minecraft:chest", Data: chestData()})

	pig := voxel.Entity{Pos: [3]float64{0.5, 1, 1.5}, ID: "minecraft:pig"}
	pig.SetUUID(uuid.MustParse("0f8fad5b-d9cb-469f-a165-70867728950e"))
	pig.Data.Set("Health", nbt.Float(10))
	r.AddEntity(pig)

	r.Metadata.Name = "hut"
	r.Metadata.Author = "builder"
	r.Metadata.Created = time.UnixMilli(1700000000000)
	return r
}

func assertSameBlocks(t *testing.T, want, got *voxel.Region) {
	t.Helper()
	ww, wh, wl := want.Dimensions()
	gw, gh, gl := got.Dimensions()
	require.Equal(t, [3]int{ww, wh, wl}, [3]int{gw, gh, gl})
	for i := range want.Volume() {
		p := want.Position(i)
		a, _ := want.Block(p.X(), p.Y(), p.Z())
		b, _ := got.Block(p.X(), p.Y(), p.Z())
		assert.True(t, a.Equal(b), "block at %v: want %s, got %s", p, a, b)
	}
}

func assertSameBlockEntities(t *testing.T, want, got *voxel.Region) {
	t.Helper()
	wbe, gbe := want.BlockEntities(), got.BlockEntities()
	require.Len(t, gbe, len(wbe))
	for i := range wbe {
		assert.Equal(t, wbe[i].Pos, gbe[i].Pos)
		assert.Equal(t, wbe[i].ID, gbe[i].ID)
		assert.True(t, nbt.Equal(wbe[i].Data, gbe[i].Data), "data: %s", nbt.Stringify(gbe[i].Data))
	}
}

func assertSameEntities(t *testing.T, want, got *voxel.Region) {
	t.Helper()
	we, ge := want.Entities(), got.Entities()
	require.Len(t, ge, len(we))
	for i := range we {
		assert.Equal(t, we[i].ID, ge[i].ID)
		assert.InDeltaSlice(t, we[i].Pos[:], ge[i].Pos[:], 1e-6)
		id, ok := ge[i].UUID()
		require.True(t, ok)
		wantID, _ := we[i].UUID()
		assert.Equal(t, wantID, id)
	}
}

// detect returns the first dialect in detection order that claims data.
func detect(data []byte) Format {
	in := NewInput(data, Options{})
	for _, d := range DetectionOrder() {
		if d.Detect(in) {
			return d.Format()
		}
	}
	return FormatAuto
}

func roundTrip(t *testing.T, d Dialect, r *voxel.Region) *voxel.Region {
	t.Helper()
	data, err := d.Encode(r, Options{})
	require.NoError(t, err)
	assert.Equal(t, d.Format(), detect(data))

	in := NewInput(data, Options{})
	require.True(t, d.Detect(in))
	got, err := d.Decode(in)
	require.NoError(t, err)
	return got
}

func TestRoundTrip(t *testing.T) {
	for _, d := range []Dialect{Sponge{Version: 2}, Sponge{Version: 3}, Litematic{}, Blueprint{}, MCStructure{}} {
		t.Run(d.Format().String(), func(t *testing.T) {
			want := sampleRegion(t)
			got := roundTrip(t, d, want)
			assertSameBlocks(t, want, got)
			assertSameBlockEntities(t, want, got)
			assertSameEntities(t, want, got)
			assert.Equal(t, d.Format().String(), got.Metadata.Source)
		})
	}
}

func TestRoundTripMetadata(t *testing.T) {
	for _, d := range []Dialect{Sponge{Version: 2}, Sponge{Version: 3}, Litematic{}, Blueprint{}} {
		t.Run(d.Format().String(), func(t *testing.T) {
			want := sampleRegion(t)
			got := roundTrip(t, d, want)
			assert.Equal(t, "hut", got.Metadata.Name)
			assert.Equal(t, "builder", got.Metadata.Author)
		})
	}
	got := roundTrip(t, Sponge{Version: 3}, sampleRegion(t))
	assert.True(t, got.Metadata.Created.Equal(time.UnixMilli(1700000000000)))
	assert.Equal(t, int32(modernDataVersion), got.Metadata.DataVersion)
}

func TestSpongeV1DropsEntities(t *testing.T) {
	var logs bytes.Buffer
	opts := Options{Logger: slog.New(slog.NewTextHandler(&logs, nil))}

	want := sampleRegion(t)
	data, err := Sponge{Version: 1}.Encode(want, opts)
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "cannot store entities")
	assert.Equal(t, FormatSpongeV1, detect(data))

	got, err := Sponge{Version: 1}.Decode(NewInput(data, Options{}))
	require.NoError(t, err)
	assertSameBlocks(t, want, got)
	assertSameBlockEntities(t, want, got)
	assert.Empty(t, got.Entities())
}

func TestSpongeBiomes(t *testing.T) {
	r := sampleRegion(t)
	b := voxel.NewBiomes(r, true, "minecraft:plains")
	require.NoError(t, b.SetBiome(2, 1, 1, "minecraft:desert"))
	require.NoError(t, r.SetBiomes(b))

	v3 := roundTrip(t, Sponge{Version: 3}, r)
	require.NotNil(t, v3.Biomes())
	assert.True(t, v3.Biomes().Volumetric())
	name, _ := v3.Biomes().Biome(2, 1, 1)
	assert.Equal(t, "minecraft:desert", name)
	name, _ = v3.Biomes().Biome(2, 0, 1)
	assert.Equal(t, "minecraft:plains", name)

	v2 := roundTrip(t, Sponge{Version: 2}, r)
	require.NotNil(t, v2.Biomes())
	assert.False(t, v2.Biomes().Volumetric())
}

func TestSpongeBlockDataIsVarint(t *testing.T) {
	r, err := voxel.New(200, 1, 1)
	require.NoError(t, err)
	for x := range 200 {
		require.NoError(t, r.SetBlock(x, 0, 0, palette.NewBlockState("minecraft:b"+string(rune('a'+x%26))+string(rune('a'+x/26)))))
	}
	_, root, err := Sponge{Version: 2}.EncodeTag(r, Options{})
	require.NoError(t, err)
	data, ok := nbt.Get[nbt.ByteArray](root, "BlockData")
	require.True(t, ok)
	// Air keeps index 0, so the blocks use 1..200 and the last 73 take two bytes.
	assert.Len(t, data, 200+73)

	indices, err := bitpack.UnpackVarints[uint32](data, 200)
	require.NoError(t, err)
	assert.Equal(t, uint32(200), indices[199])
}

func TestSpongePreservesUnknownFields(t *testing.T) {
	_, root, err := Sponge{Version: 3}.EncodeTag(sampleRegion(t), Options{})
	require.NoError(t, err)
	body, _ := nbt.Get[*nbt.Compound](root, "Schematic")
	body.Set("Requires", nbt.String("worldedit"))
	meta, _ := nbt.Get[*nbt.Compound](body, "Metadata")
	meta.Set("WorldEdit", nbt.String("7.3"))
	root.Set("Exporter", nbt.String("fawe"))

	r, err := Sponge{}.DecodeTag(root, Options{})
	require.NoError(t, err)
	require.NotNil(t, r.Metadata.RootExtra)
	assert.True(t, r.Metadata.RootExtra.Has("Requires"))
	assert.False(t, r.Metadata.RootExtra.Has("Blocks"))
	assert.False(t, r.Metadata.RootExtra.Has("Exporter"))
	require.NotNil(t, r.Metadata.OuterExtra)
	assert.False(t, r.Metadata.OuterExtra.Has("Schematic"))

	_, out, err := Sponge{Version: 3}.EncodeTag(r, Options{})
	require.NoError(t, err)
	outBody, _ := nbt.Get[*nbt.Compound](out, "Schematic")
	v, ok := nbt.Get[nbt.String](outBody, "Requires")
	require.True(t, ok)
	assert.Equal(t, nbt.String("worldedit"), v)
	outMeta, _ := nbt.Get[*nbt.Compound](outBody, "Metadata")
	assert.True(t, outMeta.Has("WorldEdit"))
	exporter, ok := nbt.Get[nbt.String](out, "Exporter")
	require.True(t, ok, "field beside the Schematic container")
	assert.Equal(t, nbt.String("fawe"), exporter)
	assert.Equal(t, []string{"Schematic", "Exporter"}, out.Keys())

	// Foreign fields survive a conversion to another dialect too.
	_, lit, err := Litematic{}.EncodeTag(r, Options{})
	require.NoError(t, err)
	assert.True(t, lit.Has("Requires"))
}

func TestSpongeUnsupportedVersion(t *testing.T) {
	_, root, err := Sponge{Version: 2}.EncodeTag(sampleRegion(t), Options{})
	require.NoError(t, err)
	root.Set("Version", nbt.Int(9))

	_, err = Sponge{}.DecodeTag(root, Options{})
	assert.ErrorIs(t, err, ErrUnsupportedVersion)

	data, err := nbt.Encode("Schematic", root)
	require.NoError(t, err)
	assert.Equal(t, FormatAuto, detect(data))

	_, _, err = Sponge{Version: 4}.EncodeTag(sampleRegion(t), Options{})
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestSpongePaletteNotDense(t *testing.T) {
	_, root, err := Sponge{Version: 2}.EncodeTag(sampleRegion(t), Options{})
	require.NoError(t, err)
	pal, _ := nbt.Get[*nbt.Compound](root, "Palette")
	pal.Set("minecraft:stone", nbt.Int(42))

	_, err = Sponge{}.DecodeTag(root, Options{})
	assert.ErrorIs(t, err, palette.ErrNotDense)
}

func TestSpongeIndexOutOfRange(t *testing.T) {
	_, root, err := Sponge{Version: 2}.EncodeTag(sampleRegion(t), Options{})
	require.NoError(t, err)
	data, _ := nbt.Get[nbt.ByteArray](root, "BlockData")
	data[0] = 100

	_, err = Sponge{}.DecodeTag(root, Options{})
	assert.ErrorIs(t, err, palette.ErrOutOfRange)
}

func TestTruncatedInputIsRejected(t *testing.T) {
	dialects := []Dialect{
		MCEdit{}, Sponge{Version: 1}, Sponge{Version: 2}, Sponge{Version: 3},
		Litematic{}, Blueprint{}, MCStructure{},
	}
	for _, d := range dialects {
		t.Run(d.Format().String(), func(t *testing.T) {
			data, err := d.Encode(sampleRegion(t), Options{})
			require.NoError(t, err)
			for n := 0; n < len(data); n++ {
				_, err := d.Decode(NewInput(data[:n], Options{}))
				require.Error(t, err, "length %d", n)
				assert.True(t, errors.Is(err, nbt.ErrMalformedTag) || errors.Is(err, bitpack.ErrLengthMismatch),
					"length %d: %v", n, err)
			}
		})
	}
}

func TestSpongeKeepsOutOfBoundsBlockEntities(t *testing.T) {
	pal := nbt.NewCompound()
	pal.Set("minecraft:air", nbt.Int(0))
	be := nbt.NewCompound()
	be.Set("Pos", nbt.IntArray{5, 0, 0})
	be.Set("Id", nbt.String("minecraft:chest"))
	be.Set("Lock", nbt.String("key"))
	root := nbt.NewCompound()
	root.Set("Version", nbt.Int(2))
	root.Set("DataVersion", nbt.Int(spongeDataVersion))
	root.Set("Width", nbt.Short(1))
	root.Set("Height", nbt.Short(1))
	root.Set("Length", nbt.Short(1))
	root.Set("PaletteMax", nbt.Int(1))
	root.Set("Palette", pal)
	root.Set("BlockData", nbt.ByteArray{0})
	root.Set("BlockEntities", compoundList([]*nbt.Compound{be}))
	data, err := nbt.Encode("Schematic", root)
	require.NoError(t, err)

	r, err := Sponge{Version: 2}.Decode(NewInput(data, Options{}))
	require.NoError(t, err)
	require.Len(t, r.BlockEntities(), 1)
	got, ok := r.BlockEntity(voxel.Pos{5, 0, 0})
	require.True(t, ok)
	assert.Equal(t, "minecraft:chest", got.ID)

	for _, d := range []Dialect{Sponge{Version: 2}, Sponge{Version: 3}, Litematic{}, MCEdit{}, Blueprint{}} {
		again := roundTrip(t, d, r)
		got, ok := again.BlockEntity(voxel.Pos{5, 0, 0})
		require.True(t, ok, d.Format().String())
		assert.Equal(t, "minecraft:chest", got.ID)
		assert.True(t, got.Data.Has("Lock"))
	}
}

func TestBlockEntitiesKeepDecodeOrder(t *testing.T) {
	r := sampleRegion(t)
	r.SetBlockEntity(voxel.BlockEntity{Pos: voxel.Pos{0, 0, 0}, ID: "minecraft:sign"})
	got := roundTrip(t, Sponge{Version: 3}, r)
	bes := got.BlockEntities()
	require.Len(t, bes, 2)
	assert.Equal(t, "minecraft:chest", bes[0].ID)
	assert.Equal(t, "minecraft:sign", bes[1].ID)
}

func TestShortBlockDataIsLengthMismatch(t *testing.T) {
	_, root, err := Sponge{Version: 2}.EncodeTag(sampleRegion(t), Options{})
	require.NoError(t, err)
	data, _ := nbt.Get[nbt.ByteArray](root, "BlockData")
	root.Set("BlockData", data[:len(data)-1])

	_, err = Sponge{}.DecodeTag(root, Options{})
	assert.ErrorIs(t, err, bitpack.ErrLengthMismatch)
}

func TestMCEditDecode(t *testing.T) {
	root := nbt.NewCompound()
	root.Set("Width", nbt.Short(3))
	root.Set("Height", nbt.Short(1))
	root.Set("Length", nbt.Short(1))
	root.Set("Materials", nbt.String("Alpha"))
	root.Set("Blocks", nbt.ByteArray{35, 1, 44})
	root.Set("Data", nbt.ByteArray{14, 0, 0})
	// The third block's add nibble is the low half of the second byte.
	root.Set("AddBlocks", nbt.ByteArray{0x00, 0x01})
	root.Set("SchematicaMapping", nbt.String("kept"))
	data, err := nbt.Encode("Schematic", root)
	require.NoError(t, err)
	assert.Equal(t, FormatMCEdit, detect(data))

	r, err := MCEdit{}.Decode(NewInput(data, Options{}))
	require.NoError(t, err)
	b, _ := r.Block(0, 0, 0)
	assert.Equal(t, "minecraft:wool[data=14]", b.String())
	b, _ = r.Block(1, 0, 0)
	assert.Equal(t, "minecraft:stone", b.String())
	b, _ = r.Block(2, 0, 0)
	assert.Equal(t, "legacy:300", b.String())
	assert.True(t, r.Metadata.RootExtra.Has("SchematicaMapping"))
}

func TestMCEditRoundTrip(t *testing.T) {
	r, err := voxel.New(2, 2, 1)
	require.NoError(t, err)
	wool := palette.NewBlockState("minecraft:wool").With("data", "14")
	require.NoError(t, r.SetBlock(0, 0, 0, wool))
	require.NoError(t, r.SetBlock(1, 1, 0, palette.NewBlockState("legacy:300")))
	require.NoError(t, r.SetBlock(0, 1, 0, palette.NewBlockState("minecraft:chest")))
	r.SetBlockEntity(voxel.BlockEntity{Pos: voxel.Pos{0, 1, 0}, ID: "Chest", Data: chestData()})
	r.Offset = voxel.Pos{-1, 0, 4}

	got := roundTrip(t, MCEdit{}, r)
	assertSameBlocks(t, r, got)
	assertSameBlockEntities(t, r, got)
	assert.Equal(t, r.Offset, got.Offset)

	_, root, err := MCEdit{}.EncodeTag(r, Options{})
	require.NoError(t, err)
	assert.True(t, root.Has("AddBlocks"))
}

func TestMCEditUnknownStatesBecomeAir(t *testing.T) {
	var logs bytes.Buffer
	opts := Options{Logger: slog.New(slog.NewTextHandler(&logs, nil))}
	r, err := voxel.New(1, 1, 1)
	require.NoError(t, err)
	require.NoError(t, r.SetBlock(0, 0, 0, palette.NewBlockState("minecraft:cherry_leaves")))

	data, err := MCEdit{}.Encode(r, opts)
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "written as air")

	got, err := MCEdit{}.Decode(NewInput(data, Options{}))
	require.NoError(t, err)
	b, _ := got.Block(0, 0, 0)
	assert.True(t, b.IsAir())
}

func litematicRegion(pos, size voxel.Pos, states []palette.BlockState, indices []uint32) *nbt.Compound {
	pal := make([]*nbt.Compound, len(states))
	for i, s := range states {
		pal[i] = stateCompound(s)
	}
	bits := max(litematicMinBits, bitpack.BitsFor(len(states)))
	words, _ := bitpack.PackLongs(indices, bits, bitpack.Dense)
	c := nbt.NewCompound()
	c.Set("Position", posCompound(pos))
	c.Set("Size", posCompound(size))
	c.Set("BlockStatePalette", compoundList(pal))
	c.Set("BlockStates", nbt.LongArray(words))
	return c
}

func TestLitematicNegativeSize(t *testing.T) {
	regions := nbt.NewCompound()
	// Two blocks along x extending from x=5 towards x=4.
	regions.Set("main", litematicRegion(voxel.Pos{5, 0, 0}, voxel.Pos{-2, 1, 1},
		[]palette.BlockState{palette.Air, stone}, []uint32{1, 0}))
	root := nbt.NewCompound()
	root.Set("Version", nbt.Int(5))
	root.Set("Regions", regions)

	r, err := Litematic{}.DecodeTag(root, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, r.Width())
	assert.Equal(t, voxel.Pos{4, 0, 0}, r.Offset)
	b, _ := r.Block(0, 0, 0)
	assert.True(t, b.Equal(stone))
	assert.Equal(t, "main", r.Metadata.Name)
}

func TestLitematicMergesRegions(t *testing.T) {
	regions := nbt.NewCompound()
	regions.Set("a", litematicRegion(voxel.Pos{0, 0, 0}, voxel.Pos{1, 1, 1},
		[]palette.BlockState{palette.Air, stone}, []uint32{1}))
	regions.Set("b", litematicRegion(voxel.Pos{3, 1, 0}, voxel.Pos{1, 1, 2},
		[]palette.BlockState{palette.Air, stairs}, []uint32{0, 1}))
	root := nbt.NewCompound()
	root.Set("Version", nbt.Int(6))
	root.Set("Regions", regions)

	r, err := Litematic{}.DecodeTag(root, Options{})
	require.NoError(t, err)
	w, h, l := r.Dimensions()
	assert.Equal(t, [3]int{4, 2, 2}, [3]int{w, h, l})
	b, _ := r.Block(0, 0, 0)
	assert.True(t, b.Equal(stone))
	b, _ = r.Block(3, 1, 1)
	assert.True(t, b.Equal(stairs))
	b, _ = r.Block(3, 1, 0)
	assert.True(t, b.IsAir())
}

func TestLitematicVolumeLimit(t *testing.T) {
	regions := nbt.NewCompound()
	regions.Set("a", litematicRegion(voxel.Pos{0, 0, 0}, voxel.Pos{1, 1, 1},
		[]palette.BlockState{palette.Air, stone}, []uint32{1}))
	regions.Set("b", litematicRegion(voxel.Pos{399, 399, 399}, voxel.Pos{1, 1, 1},
		[]palette.BlockState{palette.Air, stone}, []uint32{1}))
	root := nbt.NewCompound()
	root.Set("Version", nbt.Int(6))
	root.Set("Regions", regions)

	_, err := Litematic{}.DecodeTag(root, Options{MaxVolume: 1 << 20})
	assert.ErrorIs(t, err, ErrVolumeTooLarge)
	assert.ErrorIs(t, err, voxel.ErrInvalidDimensions)

	small := nbt.NewCompound()
	small.Set("a", litematicRegion(voxel.Pos{0, 0, 0}, voxel.Pos{1, 1, 1},
		[]palette.BlockState{palette.Air, stone}, []uint32{1}))
	small.Set("b", litematicRegion(voxel.Pos{9, 9, 9}, voxel.Pos{1, 1, 1},
		[]palette.BlockState{palette.Air, stone}, []uint32{1}))
	root.Set("Regions", small)
	_, err = Litematic{}.DecodeTag(root, Options{MaxVolume: 999})
	assert.ErrorIs(t, err, ErrVolumeTooLarge)
	r, err := Litematic{}.DecodeTag(root, Options{MaxVolume: 1000})
	require.NoError(t, err)
	assert.Equal(t, 1000, r.Volume())
}

func TestVolumeLimitAppliesToEveryDialect(t *testing.T) {
	for _, d := range []Dialect{MCEdit{}, Sponge{Version: 2}, Sponge{Version: 3}, Litematic{}, Blueprint{}, MCStructure{}} {
		t.Run(d.Format().String(), func(t *testing.T) {
			data, err := d.Encode(sampleRegion(t), Options{})
			require.NoError(t, err)
			_, err = d.Decode(NewInput(data, Options{MaxVolume: 11}))
			assert.ErrorIs(t, err, ErrVolumeTooLarge)
			_, err = d.Decode(NewInput(data, Options{MaxVolume: 12}))
			assert.NoError(t, err)
		})
	}
}

func TestLitematicEncodeAirFirst(t *testing.T) {
	r, err := voxel.FromIndices(2, 1, 1, palette.FromStates([]palette.BlockState{stone, palette.Air}), []uint32{0, 1})
	require.NoError(t, err)
	_, root, err := Litematic{}.EncodeTag(r, Options{})
	require.NoError(t, err)

	regions, _ := nbt.Get[*nbt.Compound](root, "Regions")
	region, ok := nbt.Get[*nbt.Compound](regions, defaultRegionName)
	require.True(t, ok)
	pal, _ := nbt.Get[*nbt.List](region, "BlockStatePalette")
	first := pal.Compounds()[0]
	assert.Equal(t, "minecraft:air", stringField(first, "Name"))

	meta, _ := nbt.Get[*nbt.Compound](root, "Metadata")
	total, _ := nbt.Get[nbt.Int](meta, "TotalBlocks")
	assert.Equal(t, nbt.Int(1), total)
}

func TestLitematicUnsupportedVersion(t *testing.T) {
	_, root, err := Litematic{}.EncodeTag(sampleRegion(t), Options{})
	require.NoError(t, err)
	root.Set("Version", nbt.Int(99))
	_, err = Litematic{}.DecodeTag(root, Options{})
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestBlueprintKeepsThumbnail(t *testing.T) {
	r := sampleRegion(t)
	r.Metadata.RootExtra = nbt.NewCompound()
	r.Metadata.RootExtra.Set(thumbnailKey, nbt.ByteArray{0x89, 'P', 'N', 'G'})
	r.Offset = voxel.Pos{-7, 60, 20}

	got := roundTrip(t, Blueprint{}, r)
	thumb, ok := nbt.Get[nbt.ByteArray](got.Metadata.RootExtra, thumbnailKey)
	require.True(t, ok)
	assert.Equal(t, nbt.ByteArray{0x89, 'P', 'N', 'G'}, thumb)
	assert.Equal(t, r.Offset, got.Offset)
}

func TestBlueprintTightBounds(t *testing.T) {
	r := sampleRegion(t)
	header, data, err := Blueprint{}.EncodeTag(r, Options{})
	require.NoError(t, err)
	data.Delete("Size")
	data.Delete("Offset")

	got, err := Blueprint{}.DecodeTag(header, data, Options{})
	require.NoError(t, err)
	// The sample's non-air blocks touch every face of its box.
	w, h, l := got.Dimensions()
	assert.Equal(t, [3]int{3, 2, 2}, [3]int{w, h, l})
	assertSameBlocks(t, r, got)
}

func TestBlueprintDeclaredBox(t *testing.T) {
	r := sampleRegion(t)
	header, data, err := Blueprint{}.EncodeTag(r, Options{})
	require.NoError(t, err)

	data.Set("Size", nbt.IntArray{1, 1, 1})
	_, err = Blueprint{}.DecodeTag(header, data, Options{})
	assert.ErrorIs(t, err, nbt.ErrMalformedTag, "box does not cover the blocks")

	data.Set("Size", nbt.IntArray{400, 400, 400})
	_, err = Blueprint{}.DecodeTag(header, data, Options{})
	assert.ErrorIs(t, err, ErrVolumeTooLarge)

	data.Set("Size", nbt.IntArray{4, 3, 3})
	data.Set("Offset", nbt.IntArray{-1, 0, 0})
	got, err := Blueprint{}.DecodeTag(header, data, Options{})
	require.NoError(t, err)
	b, _ := got.Block(1, 0, 0)
	assert.True(t, b.Equal(stone), "air margin is allowed")
}

func TestBlueprintBadMagic(t *testing.T) {
	data, err := Blueprint{}.Encode(sampleRegion(t), Options{})
	require.NoError(t, err)
	data[0] = 0
	assert.NotEqual(t, FormatBlueprint, detect(data))
	_, err = Blueprint{}.Decode(NewInput(data, Options{}))
	assert.ErrorIs(t, err, nbt.ErrMalformedTag)
}

func TestMCStructureLayout(t *testing.T) {
	r, err := voxel.New(2, 1, 2)
	require.NoError(t, err)
	require.NoError(t, r.SetBlock(1, 0, 0, stone))
	require.NoError(t, r.SetBlock(0, 0, 1, palette.NewBlockState(structureVoid)))

	root, err := MCStructure{}.EncodeTag(r, Options{})
	require.NoError(t, err)
	structure, _ := nbt.Get[*nbt.Compound](root, "structure")
	layers, _ := nbt.Get[*nbt.List](structure, "block_indices")
	primary := layers.Items[0].(*nbt.List)
	// z runs fastest: (0,0,0) (0,0,1) (1,0,0) (1,0,1).
	assert.Equal(t, []nbt.Tag{nbt.Int(0), nbt.Int(-1), nbt.Int(1), nbt.Int(0)}, primary.Items)

	got, err := MCStructure{}.DecodeTag(root, Options{})
	require.NoError(t, err)
	assertSameBlocks(t, r, got)
}

func TestMCStructureUnsupportedVersion(t *testing.T) {
	root, err := MCStructure{}.EncodeTag(sampleRegion(t), Options{})
	require.NoError(t, err)
	root.Set("format_version", nbt.Int(2))
	_, err = MCStructure{}.DecodeTag(root, Options{})
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestMCStructureDepthLimit(t *testing.T) {
	data, err := MCStructure{}.Encode(sampleRegion(t), Options{})
	require.NoError(t, err)

	_, err = MCStructure{}.Decode(NewInput(data, Options{MaxDepth: 2}))
	assert.ErrorIs(t, err, nbt.ErrRecursionLimit)
	_, err = MCStructure{}.Decode(NewInput(data, Options{}))
	assert.NoError(t, err)
}

func TestBedrockProperties(t *testing.T) {
	props := map[string]string{"open": "true", "powered": "false", "age": "3", "facing": "east"}
	b := BedrockProperties(props)
	assert.Equal(t, map[string]any{"open": uint8(1), "powered": uint8(0), "age": int32(3), "facing": "east"}, b)
	assert.Equal(t, props, JavaProperties(b))
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{
		"sponge-v2":        FormatSpongeV2,
		"sponge":           FormatSpongeV3,
		".schem":           FormatSpongeV3,
		"house.schematic":  FormatMCEdit,
		"Tower.LITEMATIC":  FormatLitematic,
		"bp":               FormatBlueprint,
		"ship.mcstructure": FormatMCStructure,
		"litematica":       FormatLitematic,
		"/tmp/x/castle.bp": FormatBlueprint,
	} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseFormat("png")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestForCoversEveryFormat(t *testing.T) {
	for _, f := range Formats() {
		d, err := For(f)
		require.NoError(t, err)
		assert.Equal(t, f, d.Format())
		assert.NotEmpty(t, f.Extension())
	}
	_, err := For(FormatAuto)
	assert.ErrorIs(t, err, ErrUnknownFormat)
}
