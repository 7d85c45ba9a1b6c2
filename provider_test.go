package schem

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/df-mc/dragonfly/server/world"
	"github.com/df-mc/goleveldb/leveldb"
	"github.com/google/uuid"
	"github.com/oriumgames/schem/nbt"
	"github.com/oriumgames/schem/voxel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/df-mc/dragonfly/server/block"
)

func runtimeID(t *testing.T, name string) uint32 {
	t.Helper()
	b, ok := world.BlockByName(name, nil)
	require.True(t, ok, "block %s not registered", name)
	return world.BlockRuntimeID(b)
}

func TestProviderLoadColumn(t *testing.T) {
	p := NewProvider(testRegion(t), cube.Pos{14, 64, 0})
	stoneRID := runtimeID(t, "minecraft:stone")

	col, err := p.LoadColumn(world.ChunkPos{0, 0}, world.Overworld)
	require.NoError(t, err)
	assert.Equal(t, stoneRID, col.Chunk.Block(14, 64, 0, 0))
	assert.Empty(t, col.BlockEntities)

	// The region spans x 14..16, so its last column lands in the next chunk.
	col, err = p.LoadColumn(world.ChunkPos{1, 0}, world.Overworld)
	require.NoError(t, err)
	assert.Equal(t, stoneRID, col.Chunk.Block(0, 64, 1, 0))
	require.Len(t, col.BlockEntities, 1)
	assert.Equal(t, cube.Pos{16, 64, 1}, col.BlockEntities[0].Pos)
	assert.Equal(t, "minecraft:sign", col.BlockEntities[0].Data["id"])
	assert.Empty(t, col.Entities)

	col, err = p.LoadColumn(world.ChunkPos{0, 0}, world.Overworld)
	require.NoError(t, err)
	require.Len(t, col.Entities, 1)
	assert.Equal(t, "minecraft:pig", col.Entities[0].Data["identifier"])
	assert.Equal(t, []float32{14.5, 65, 1.5}, col.Entities[0].Data["Pos"])
}

func TestProviderMissingColumns(t *testing.T) {
	p := NewProvider(testRegion(t), cube.Pos{0, 64, 0})

	_, err := p.LoadColumn(world.ChunkPos{3, -2}, world.Overworld)
	assert.ErrorIs(t, err, leveldb.ErrNotFound)
	_, err = p.LoadColumn(world.ChunkPos{0, 0}, world.Nether)
	assert.ErrorIs(t, err, leveldb.ErrNotFound)
	_, err = p.LoadColumn(world.ChunkPos{0, 0}, world.End)
	assert.ErrorIs(t, err, leveldb.ErrNotFound)

	below := NewProvider(testRegion(t), cube.Pos{0, -200, 0})
	_, err = below.LoadColumn(world.ChunkPos{0, 0}, world.Overworld)
	assert.ErrorIs(t, err, leveldb.ErrNotFound)
}

func TestProviderStoreColumn(t *testing.T) {
	src := testRegion(t)
	src.SetBlockEntity(voxel.BlockEntity{Pos: voxel.Pos{7, 0, 0}, ID: "minecraft:chest"})
	p := NewProvider(src, cube.Pos{0, 64, 0})
	col, err := p.LoadColumn(world.ChunkPos{0, 0}, world.Overworld)
	require.NoError(t, err)
	require.Len(t, col.BlockEntities, 1)

	col.Chunk.SetBlock(1, 64, 0, 0, runtimeID(t, "minecraft:stone"))
	col.Chunk.SetBlock(0, 64, 0, 0, runtimeID(t, "minecraft:air"))
	require.NoError(t, p.StoreColumn(world.ChunkPos{0, 0}, world.Overworld, col))
	assert.True(t, p.IsDirty())

	r, err := p.Region()
	require.NoError(t, err)
	b, _ := r.Block(1, 0, 0)
	assert.Equal(t, "minecraft:stone", b.Name)
	b, _ = r.Block(0, 0, 0)
	assert.True(t, b.IsAir())
	// Stairs have no Bedrock match with these properties and load as air; the
	// untouched position keeps its Java state.
	b, _ = r.Block(1, 1, 0)
	assert.True(t, b.Equal(stairs))
	require.Len(t, r.BlockEntities(), 2)
	_, ok := r.BlockEntity(voxel.Pos{7, 0, 0})
	assert.True(t, ok, "entry outside the region survives a store")
	require.Len(t, r.Entities(), 1)
	assert.Equal(t, [3]float64{0.5, 1, 1.5}, r.Entities()[0].Pos)
}

func TestProviderSettings(t *testing.T) {
	p := NewProvider(testRegion(t), cube.Pos{0, 64, 0})
	s := p.Settings()
	assert.Equal(t, "hut", s.Name)
	assert.Equal(t, cube.Pos{1, 66, 1}, s.Spawn)

	s.Name = "renamed"
	s.Time = 1234
	s.Raining = true
	s.Difficulty = world.DifficultyHard
	p.SaveSettings(s)

	r, err := p.Region()
	require.NoError(t, err)
	_, ok := nbt.Get[*nbt.Compound](r.Metadata.RootExtra, settingsKey)
	require.True(t, ok)

	got := NewProvider(r, cube.Pos{0, 64, 0}).Settings()
	assert.Equal(t, "renamed", got.Name)
	assert.Equal(t, int64(1234), got.Time)
	assert.True(t, got.Raining)
	assert.Equal(t, world.DifficultyHard, got.Difficulty)
	assert.Equal(t, world.GameModeSurvival, got.DefaultGameMode)
}

func TestProviderPlayerSpawns(t *testing.T) {
	p := NewProvider(testRegion(t), cube.Pos{})
	id := uuid.New()

	_, ok, err := p.LoadPlayerSpawnPosition(id)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, p.SavePlayerSpawnPosition(id, cube.Pos{1, 2, 3}))
	pos, ok, err := p.LoadPlayerSpawnPosition(id)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, cube.Pos{1, 2, 3}, pos)
}

func TestProviderOpenSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hut.schem")
	data, err := Save(testRegion(t), FormatSpongeV2, CompressionGzip)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))

	p, err := Open(path)
	require.NoError(t, err)
	s := p.Settings()
	s.Time = 42
	p.SaveSettings(s)
	require.NoError(t, p.Close())

	saved, err := os.ReadFile(path)
	require.NoError(t, err)
	f, mode, err := Detect(saved)
	require.NoError(t, err)
	assert.Equal(t, FormatSpongeV2, f)
	assert.Equal(t, CompressionGzip, mode)

	r, err := Load(saved, FormatAuto)
	require.NoError(t, err)
	requireSameBlocks(t, testRegion(t), r)
	assert.Equal(t, int64(42), loadSettings(r, cube.Pos{}).Time)
}

func TestProviderWithoutPath(t *testing.T) {
	p := NewProvider(testRegion(t), cube.Pos{})
	assert.ErrorIs(t, p.Save(), errNoPath)
	p.SaveSettings(p.Settings())
	assert.NoError(t, p.Close())
}
