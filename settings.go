package schem

import (
	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/df-mc/dragonfly/server/world"
	"github.com/oriumgames/schem/nbt"
)

// settingsKey is the root field world settings are persisted under. Dialects keep
// unknown root fields, so the settings survive a save in any format.
const settingsKey = "WorldSettings"

// defaultSettings returns settings for a world showing r at origin: spawn sits above
// the centre of the region.
func defaultSettings(r *Region, origin cube.Pos) *world.Settings {
	name := r.Metadata.Name
	if name == "" {
		name = "Schematic"
	}
	w, h, l := r.Dimensions()
	return &world.Settings{
		Name:            name,
		Spawn:           origin.Add(cube.Pos{w / 2, h, l / 2}),
		Time:            6000,
		TimeCycle:       true,
		WeatherCycle:    true,
		DefaultGameMode: world.GameModeSurvival,
		Difficulty:      world.DifficultyNormal,
	}
}

// loadSettings returns the settings stored in r, or defaults when there are none.
func loadSettings(r *Region, origin cube.Pos) *world.Settings {
	s := defaultSettings(r, origin)
	c, ok := nbt.Get[*nbt.Compound](r.Metadata.RootExtra, settingsKey)
	if !ok {
		return s
	}
	decodeSettings(c, s)
	return s
}

// storeSettings writes s into the root extras of r.
func storeSettings(r *Region, s *world.Settings) {
	if r.Metadata.RootExtra == nil {
		r.Metadata.RootExtra = nbt.NewCompound()
	}
	r.Metadata.RootExtra.Set(settingsKey, encodeSettings(s))
}

func encodeSettings(s *world.Settings) *nbt.Compound {
	gameMode, _ := world.GameModeID(s.DefaultGameMode)
	difficulty, _ := world.DifficultyID(s.Difficulty)

	c := nbt.NewCompound()
	c.Set("name", nbt.String(s.Name))
	c.Set("spawn", nbt.IntArray{int32(s.Spawn.X()), int32(s.Spawn.Y()), int32(s.Spawn.Z())})
	c.Set("time", nbt.Long(s.Time))
	c.Set("timeCycle", boolByte(s.TimeCycle))
	c.Set("rainTime", nbt.Long(s.RainTime))
	c.Set("raining", boolByte(s.Raining))
	c.Set("thunderTime", nbt.Long(s.ThunderTime))
	c.Set("thundering", boolByte(s.Thundering))
	c.Set("weatherCycle", boolByte(s.WeatherCycle))
	c.Set("currentTick", nbt.Long(s.CurrentTick))
	c.Set("defaultGameMode", nbt.Int(int32(gameMode)))
	c.Set("difficulty", nbt.Int(int32(difficulty)))
	return c
}

// decodeSettings overwrites the fields of s present in c.
func decodeSettings(c *nbt.Compound, s *world.Settings) {
	if name, ok := nbt.Get[nbt.String](c, "name"); ok {
		s.Name = string(name)
	}
	if spawn, ok := nbt.Get[nbt.IntArray](c, "spawn"); ok && len(spawn) == 3 {
		s.Spawn = cube.Pos{int(spawn[0]), int(spawn[1]), int(spawn[2])}
	}
	if t, ok := nbt.Get[nbt.Long](c, "time"); ok {
		s.Time = int64(t)
	}
	if tc, ok := nbt.Get[nbt.Byte](c, "timeCycle"); ok {
		s.TimeCycle = tc != 0
	}
	if rt, ok := nbt.Get[nbt.Long](c, "rainTime"); ok {
		s.RainTime = int64(rt)
	}
	if r, ok := nbt.Get[nbt.Byte](c, "raining"); ok {
		s.Raining = r != 0
	}
	if tt, ok := nbt.Get[nbt.Long](c, "thunderTime"); ok {
		s.ThunderTime = int64(tt)
	}
	if t, ok := nbt.Get[nbt.Byte](c, "thundering"); ok {
		s.Thundering = t != 0
	}
	if wc, ok := nbt.Get[nbt.Byte](c, "weatherCycle"); ok {
		s.WeatherCycle = wc != 0
	}
	if ct, ok := nbt.Get[nbt.Long](c, "currentTick"); ok {
		s.CurrentTick = int64(ct)
	}
	if gm, ok := nbt.Get[nbt.Int](c, "defaultGameMode"); ok {
		if mode, ok := world.GameModeByID(int(gm)); ok {
			s.DefaultGameMode = mode
		}
	}
	if d, ok := nbt.Get[nbt.Int](c, "difficulty"); ok {
		if diff, ok := world.DifficultyByID(int(d)); ok {
			s.Difficulty = diff
		}
	}
}

func boolByte(b bool) nbt.Byte {
	if b {
		return 1
	}
	return 0
}
