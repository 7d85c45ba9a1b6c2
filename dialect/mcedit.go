package dialect

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/oriumgames/schem/bitpack"
	"github.com/oriumgames/schem/nbt"
	"github.com/oriumgames/schem/palette"
	"github.com/oriumgames/schem/voxel"
)

// MCEdit is the pre-1.13 .schematic layout written by MCEdit, Schematica and
// WorldEdit 6: flat arrays of numeric block ids and four-bit data values.
//
// Ids map to legacy names through a fixed table, so decoded states look like
// minecraft:wool[data=14]. Ids without a name decode as legacy:<id>. States that have
// no numeric id are written as air.
type MCEdit struct{}

var mceditKeys = []string{
	"Width", "Height", "Length", "Materials", "Blocks", "Data", "AddBlocks",
	"Entities", "TileEntities", "WEOffsetX", "WEOffsetY", "WEOffsetZ",
}

var weOffset = [3]string{"WEOffsetX", "WEOffsetY", "WEOffsetZ"}

const legacyPrefix = "legacy:"

func (MCEdit) Format() Format { return FormatMCEdit }

func (MCEdit) Detect(in *Input) bool {
	_, root, err := in.Java()
	if err != nil {
		return false
	}
	_, blocks := nbt.Get[nbt.ByteArray](root, "Blocks")
	_, width := nbt.Get[nbt.Short](root, "Width")
	return blocks && width && !root.Has("Palette") && !root.Has("Version")
}

func (m MCEdit) Decode(in *Input) (*voxel.Region, error) {
	_, root, err := in.Java()
	if err != nil {
		return nil, err
	}
	return m.DecodeTag(root, in.Options())
}

// DecodeTag decodes a root compound.
func (MCEdit) DecodeTag(root *nbt.Compound, opts Options) (*voxel.Region, error) {
	w, err := field[nbt.Short](root, "Width")
	if err != nil {
		return nil, err
	}
	h, err := field[nbt.Short](root, "Height")
	if err != nil {
		return nil, err
	}
	l, err := field[nbt.Short](root, "Length")
	if err != nil {
		return nil, err
	}
	width, height, length := int(w), int(h), int(l)
	if err := opts.checkVolume(width, height, length); err != nil {
		return nil, err
	}
	n := width * height * length

	rawBlocks, err := field[nbt.ByteArray](root, "Blocks")
	if err != nil {
		return nil, err
	}
	ids, err := bitpack.UnpackBytes[uint32](rawBlocks, n)
	if err != nil {
		return nil, fmt.Errorf("blocks: %w", err)
	}
	meta := make([]uint32, n)
	if rawData, ok := nbt.Get[nbt.ByteArray](root, "Data"); ok {
		if meta, err = bitpack.UnpackBytes[uint32](rawData, n); err != nil {
			return nil, fmt.Errorf("data: %w", err)
		}
	}
	if add, ok := nbt.Get[nbt.ByteArray](root, "AddBlocks"); ok {
		for i, hi := range bitpack.UnpackNibbles[uint32](add, n) {
			ids[i] |= hi << 8
		}
	}

	p := palette.NewWithAir()
	byKey := make(map[uint32]uint32)
	indices := make([]uint32, n)
	for i := range indices {
		key := ids[i]<<4 | meta[i]&0x0F
		idx, ok := byKey[key]
		if !ok {
			idx = p.IndexOf(legacyState(ids[i], meta[i]&0x0F))
			byKey[key] = idx
		}
		indices[i] = idx
	}

	r, err := voxel.FromIndices(width, height, length, p, indices)
	if err != nil {
		return nil, err
	}
	if off, ok := xyz(root, weOffset); ok {
		r.Offset = off
	}

	tiles, _ := nbt.Get[*nbt.List](root, "TileEntities")
	for _, c := range tiles.Compounds() {
		pos, ok := xyz(c, lowerXYZ)
		if !ok {
			return nil, fmt.Errorf("tile entity: %w: x/y/z", ErrMissingField)
		}
		r.SetBlockEntity(voxel.BlockEntity{Pos: pos, ID: stringField(c, "id"), Data: withoutFields(c, "x", "y", "z", "id")})
	}
	entities, _ := nbt.Get[*nbt.List](root, "Entities")
	for _, c := range entities.Compounds() {
		pos, _ := doubleTriple(c, "Pos")
		r.AddEntity(voxel.Entity{Pos: pos, ID: stringField(c, "id"), Data: withoutFields(c, "Pos", "id")})
	}

	r.Metadata.Source = FormatMCEdit.String()
	r.Metadata.RootExtra = extraFields(root, mceditKeys)
	return r, nil
}

func (m MCEdit) Encode(r *voxel.Region, opts Options) ([]byte, error) {
	name, root, err := m.EncodeTag(r, opts)
	if err != nil {
		return nil, err
	}
	return nbt.Encode(name, root)
}

// EncodeTag builds the root compound and its name.
func (MCEdit) EncodeTag(r *voxel.Region, opts Options) (string, *nbt.Compound, error) {
	w, h, l := r.Dimensions()
	if w > math.MaxInt16 || h > math.MaxInt16 || l > math.MaxInt16 {
		return "", nil, fmt.Errorf("%w: %dx%dx%d does not fit a legacy schematic", voxel.ErrInvalidDimensions, w, h, l)
	}

	states := r.Palette().States()
	ids := make([]uint32, len(states))
	metas := make([]uint32, len(states))
	lossy := 0
	for i, s := range states {
		id, meta, ok := legacyID(s)
		if !ok {
			lossy++
			opts.logger().Debug("no legacy id for state", "format", FormatMCEdit, "state", s.String())
		}
		ids[i], metas[i] = id, meta
	}

	n := r.Volume()
	blocks := make(nbt.ByteArray, n)
	data := make(nbt.ByteArray, n)
	high := make([]uint32, n)
	extended := false
	replaced := 0
	for i, v := range r.Indices() {
		id := ids[v]
		blocks[i] = byte(id)
		data[i] = byte(metas[v])
		high[i] = id >> 8
		extended = extended || id > 0xFF
		if id == 0 && !states[v].IsAir() {
			replaced++
		}
	}
	if lossy > 0 {
		opts.logger().Warn("states without a legacy id written as air", "format", FormatMCEdit, "states", lossy, "count", replaced)
	}

	root := nbt.NewCompound()
	root.Set("Width", nbt.Short(w))
	root.Set("Height", nbt.Short(h))
	root.Set("Length", nbt.Short(l))
	root.Set("Materials", nbt.String("Alpha"))
	root.Set("Blocks", blocks)
	root.Set("Data", data)
	if extended {
		add, err := bitpack.PackNibbles(high)
		if err != nil {
			return "", nil, err
		}
		root.Set("AddBlocks", nbt.ByteArray(add))
	}

	entities := make([]*nbt.Compound, 0, len(r.Entities()))
	for _, e := range r.Entities() {
		c := nbt.NewCompound()
		c.Set("id", nbt.String(e.ID))
		c.Set("Pos", doubleList(e.Pos))
		inlineFields(c, e.Data)
		entities = append(entities, c)
	}
	root.Set("Entities", compoundList(entities))

	tiles := make([]*nbt.Compound, 0)
	for _, be := range r.BlockEntities() {
		c := nbt.NewCompound()
		c.Set("id", nbt.String(be.ID))
		setXYZ(c, lowerXYZ, be.Pos)
		inlineFields(c, be.Data)
		tiles = append(tiles, c)
	}
	root.Set("TileEntities", compoundList(tiles))
	setXYZ(root, weOffset, r.Offset)

	mergeExtra(root, r.Metadata.RootExtra, mceditKeys)
	return "Schematic", root, nil
}

func legacyName(id uint32) string {
	if id < uint32(len(legacyNames)) && legacyNames[id] != "" {
		return "minecraft:" + legacyNames[id]
	}
	return legacyPrefix + strconv.FormatUint(uint64(id), 10)
}

func legacyState(id, meta uint32) palette.BlockState {
	s := palette.NewBlockState(legacyName(id))
	if meta != 0 {
		s = s.With("data", strconv.FormatUint(uint64(meta), 10))
	}
	return s
}

var legacyIDs = func() map[string]uint32 {
	m := make(map[string]uint32, len(legacyNames))
	for id, n := range legacyNames {
		if n != "" {
			m["minecraft:"+n] = uint32(id)
		}
	}
	return m
}()

// legacyID is the inverse of legacyState. Properties other than data are ignored.
func legacyID(s palette.BlockState) (id, meta uint32, ok bool) {
	if s.IsAir() {
		return 0, 0, true
	}
	id, ok = legacyIDs[s.Name]
	if !ok {
		num, found := strings.CutPrefix(s.Name, legacyPrefix)
		if !found {
			return 0, 0, false
		}
		v, err := strconv.ParseUint(num, 10, 12)
		if err != nil {
			return 0, 0, false
		}
		id = uint32(v)
	}
	if d, has := s.Properties["data"]; has {
		v, err := strconv.ParseUint(d, 10, 4)
		if err != nil {
			return 0, 0, false
		}
		meta = uint32(v)
	}
	return id, meta, true
}
