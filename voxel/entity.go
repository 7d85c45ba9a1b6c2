package voxel

import (
	"encoding/binary"

	"github.com/google/uuid"
	"github.com/oriumgames/schem/nbt"
)

// BlockEntity is the extra state attached to a single block, such as chest contents
// or sign text. Data holds every field except the position and identifier.
type BlockEntity struct {
	Pos  Pos
	ID   string
	Data *nbt.Compound
}

// Entity is a free-moving object stored with a schematic. Data holds every field
// except the position and identifier.
type Entity struct {
	Pos  [3]float64
	ID   string
	Data *nbt.Compound
}

// Clone returns a copy of e with its own Data.
func (e Entity) Clone() Entity {
	e.Data = nbt.CloneCompound(e.Data)
	return e
}

// UUID reads the entity UUID from the four-int "UUID" array, falling back to the
// UUIDMost/UUIDLeast pair used before 1.16.
func (e Entity) UUID() (uuid.UUID, bool) {
	var id uuid.UUID
	if arr, ok := nbt.Get[nbt.IntArray](e.Data, "UUID"); ok && len(arr) == 4 {
		for i, v := range arr {
			binary.BigEndian.PutUint32(id[i*4:], uint32(v))
		}
		return id, true
	}
	most, okMost := nbt.Get[nbt.Long](e.Data, "UUIDMost")
	least, okLeast := nbt.Get[nbt.Long](e.Data, "UUIDLeast")
	if okMost && okLeast {
		binary.BigEndian.PutUint64(id[:8], uint64(most))
		binary.BigEndian.PutUint64(id[8:], uint64(least))
		return id, true
	}
	return uuid.Nil, false
}

// SetUUID stores id in the four-int "UUID" array.
func (e *Entity) SetUUID(id uuid.UUID) {
	if e.Data == nil {
		e.Data = nbt.NewCompound()
	}
	arr := make(nbt.IntArray, 4)
	for i := range arr {
		arr[i] = int32(binary.BigEndian.Uint32(id[i*4:]))
	}
	e.Data.Set("UUID", arr)
}
