package dialect

import (
	"fmt"
	"strconv"

	"github.com/oriumgames/schem/nbt"
	"github.com/oriumgames/schem/palette"
	"github.com/oriumgames/schem/voxel"
)

// MCStructure is the Bedrock Edition structure block format. It is stored
// uncompressed in little-endian tag encoding, and its block array runs with z
// fastest, then y, then x.
//
// Only the primary block layer is read; waterlogging and other secondary layer
// blocks are dropped. Empty cells (index -1) decode as minecraft:structure_void and
// are written back as -1.
type MCStructure struct{}

const (
	mcstructureFormatVersion = 1
	// bedrockBlockVersion is the block state version written when the region was not
	// decoded from a structure file (1.20.80).
	bedrockBlockVersion = 18090528
	structureVoid       = "minecraft:structure_void"
)

var mcstructureKeys = []string{"format_version", "size", "structure", "structure_world_origin"}

func (MCStructure) Format() Format { return FormatMCStructure }

func (MCStructure) Detect(in *Input) bool {
	root, err := in.Bedrock()
	if err != nil {
		return false
	}
	_, structure := nbt.Get[*nbt.Compound](root, "structure")
	_, size := nbt.Get[*nbt.List](root, "size")
	return structure && size && root.Has("format_version")
}

func (m MCStructure) Decode(in *Input) (*voxel.Region, error) {
	root, err := in.Bedrock()
	if err != nil {
		return nil, err
	}
	return m.DecodeTag(root, in.Options())
}

// structureIndex returns the offset of (x, y, z) in a structure block array.
func structureIndex(size voxel.Pos, x, y, z int) int {
	return (x*size[1]+y)*size[2] + z
}

// DecodeTag decodes a root compound.
func (MCStructure) DecodeTag(root *nbt.Compound, opts Options) (*voxel.Region, error) {
	log := opts.logger().With("format", FormatMCStructure)
	v, err := field[nbt.Int](root, "format_version")
	if err != nil {
		return nil, err
	}
	if v != mcstructureFormatVersion {
		return nil, fmt.Errorf("%w: structure format_version %d", ErrUnsupportedVersion, v)
	}
	size, ok := intTriple(root, "size")
	if !ok {
		return nil, fmt.Errorf("%w: size", ErrMissingField)
	}
	if err := opts.checkVolume(size[0], size[1], size[2]); err != nil {
		return nil, err
	}
	n := size[0] * size[1] * size[2]

	structure, err := field[*nbt.Compound](root, "structure")
	if err != nil {
		return nil, err
	}
	layers, err := field[*nbt.List](structure, "block_indices")
	if err != nil {
		return nil, err
	}
	if layers.Len() == 0 || layers.Elem != nbt.TypeList {
		return nil, fmt.Errorf("%w: block_indices has no layers", ErrMissingField)
	}
	primary := layers.Items[0].(*nbt.List)
	if primary.Len() != n || (n > 0 && primary.Elem != nbt.TypeInt) {
		return nil, fmt.Errorf("%w: block_indices holds %d %s for %d blocks", nbt.ErrMalformedTag, primary.Len(), primary.Elem, n)
	}
	if layers.Len() > 1 {
		if secondary, ok := layers.Items[1].(*nbt.List); ok && hasBlocks(secondary) {
			log.Warn("dropping secondary block layer")
		}
	}

	palettes, err := field[*nbt.Compound](structure, "palette")
	if err != nil {
		return nil, err
	}
	def, err := field[*nbt.Compound](palettes, "default")
	if err != nil {
		return nil, err
	}
	bp, err := field[*nbt.List](def, "block_palette")
	if err != nil {
		return nil, err
	}
	states := make([]palette.BlockState, 0, bp.Len()+1)
	var blockVersion int32
	for _, c := range bp.Compounds() {
		name, err := field[nbt.String](c, "name")
		if err != nil {
			return nil, fmt.Errorf("palette: %w", err)
		}
		s := palette.BlockState{Name: string(name)}
		if props, ok := nbt.Get[*nbt.Compound](c, "states"); ok {
			s.Properties = JavaProperties(props.Map())
		}
		if bv, ok := nbt.Get[nbt.Int](c, "version"); ok && blockVersion == 0 {
			blockVersion = int32(bv)
		}
		states = append(states, s)
	}
	p := palette.FromStates(states)

	indices := make([]uint32, n)
	void := uint32(0)
	hasVoid := false
	for x := range size[0] {
		for y := range size[1] {
			for z := range size[2] {
				raw := int32(primary.Items[structureIndex(size, x, y, z)].(nbt.Int))
				i := (y*size[2]+z)*size[0] + x
				switch {
				case raw == -1:
					if !hasVoid {
						void, hasVoid = p.IndexOf(palette.NewBlockState(structureVoid)), true
					}
					indices[i] = void
				case raw < 0 || int(raw) >= len(states):
					return nil, fmt.Errorf("%w: block index %d at (%d, %d, %d) (size %d)", palette.ErrOutOfRange, raw, x, y, z, len(states))
				default:
					indices[i] = uint32(raw)
				}
			}
		}
	}
	r, err := voxel.FromIndices(size[0], size[1], size[2], p, indices)
	if err != nil {
		return nil, err
	}

	if posData, ok := nbt.Get[*nbt.Compound](def, "block_position_data"); ok {
		for key, t := range posData.All() {
			c, ok := t.(*nbt.Compound)
			if !ok {
				continue
			}
			data, ok := nbt.Get[*nbt.Compound](c, "block_entity_data")
			if !ok {
				continue
			}
			off, err := strconv.Atoi(key)
			if err != nil || off < 0 || off >= n {
				log.Warn("dropping block entity with bad index", "index", key)
				continue
			}
			pos := voxel.Pos{off / (size[1] * size[2]), off / size[2] % size[1], off % size[2]}
			r.SetBlockEntity(voxel.BlockEntity{
				Pos:  pos,
				ID:   stringField(data, "id"),
				Data: withoutFields(data, "id", "x", "y", "z"),
			})
		}
	}
	// Entity positions are absolute; block positions are relative to the origin.
	origin, _ := intTriple(root, "structure_world_origin")
	entities, _ := nbt.Get[*nbt.List](structure, "entities")
	for _, c := range entities.Compounds() {
		pos, _ := doubleTriple(c, "Pos")
		for i := range pos {
			pos[i] -= float64(origin[i])
		}
		r.AddEntity(voxel.Entity{Pos: pos, ID: stringField(c, "identifier"), Data: withoutFields(c, "Pos", "identifier")})
	}

	r.Offset = origin
	r.Metadata.Source = FormatMCStructure.String()
	r.Metadata.DataVersion = blockVersion
	r.Metadata.RootExtra = extraFields(root, mcstructureKeys)
	return r, nil
}

func hasBlocks(l *nbt.List) bool {
	for _, it := range l.Items {
		if v, ok := it.(nbt.Int); ok && v != -1 {
			return true
		}
	}
	return false
}

func (m MCStructure) Encode(r *voxel.Region, opts Options) ([]byte, error) {
	root, err := m.EncodeTag(r, opts)
	if err != nil {
		return nil, err
	}
	return encodeLittleEndian(root)
}

// EncodeTag builds the root compound. The root of a structure file is unnamed.
func (MCStructure) EncodeTag(r *voxel.Region, opts Options) (*nbt.Compound, error) {
	w, h, l := r.Dimensions()
	size := voxel.Pos{w, h, l}
	states, indices := canonicalBlocks(r, false)

	version := int32(bedrockBlockVersion)
	if r.Metadata.Source == FormatMCStructure.String() && r.Metadata.DataVersion != 0 {
		version = r.Metadata.DataVersion
	}
	void := -1
	bp := make([]*nbt.Compound, 0, len(states))
	remap := make([]int32, len(states))
	for i, s := range states {
		if s.Name == structureVoid {
			remap[i] = -1
			void = i
			continue
		}
		remap[i] = int32(len(bp))
		c := nbt.NewCompound()
		c.Set("name", nbt.String(s.Name))
		props, err := nbt.CompoundFromMap(BedrockProperties(s.Properties))
		if err != nil {
			return nil, err
		}
		c.Set("states", props)
		c.Set("version", nbt.Int(version))
		bp = append(bp, c)
	}
	if void >= 0 {
		opts.logger().Debug("writing structure void as empty cells", "format", FormatMCStructure)
	}

	primary := &nbt.List{Elem: nbt.TypeInt, Items: make([]nbt.Tag, len(indices))}
	secondary := &nbt.List{Elem: nbt.TypeInt, Items: make([]nbt.Tag, len(indices))}
	for x := range w {
		for y := range h {
			for z := range l {
				i := structureIndex(size, x, y, z)
				primary.Items[i] = nbt.Int(remap[indices[r.Index(x, y, z)]])
				secondary.Items[i] = nbt.Int(-1)
			}
		}
	}

	posData := nbt.NewCompound()
	for _, be := range r.BlockEntities() {
		if !r.Contains(be.Pos[0], be.Pos[1], be.Pos[2]) {
			opts.logger().Warn("structure cannot store block entity outside its box; dropping it",
				"format", FormatMCStructure, "id", be.ID, "pos", be.Pos)
			continue
		}
		data := nbt.NewCompound()
		data.Set("id", nbt.String(be.ID))
		abs := be.Pos.Add(r.Offset)
		setXYZ(data, lowerXYZ, abs)
		inlineFields(data, be.Data)
		entry := nbt.NewCompound()
		entry.Set("block_entity_data", data)
		posData.Set(strconv.Itoa(structureIndex(size, be.Pos[0], be.Pos[1], be.Pos[2])), entry)
	}

	entities := make([]*nbt.Compound, 0)
	for _, e := range r.Entities() {
		c := nbt.NewCompound()
		c.Set("identifier", nbt.String(e.ID))
		c.Set("Pos", &nbt.List{Elem: nbt.TypeFloat, Items: []nbt.Tag{
			nbt.Float(e.Pos[0] + float64(r.Offset[0])),
			nbt.Float(e.Pos[1] + float64(r.Offset[1])),
			nbt.Float(e.Pos[2] + float64(r.Offset[2])),
		}})
		inlineFields(c, e.Data)
		entities = append(entities, c)
	}

	def := nbt.NewCompound()
	def.Set("block_palette", compoundList(bp))
	def.Set("block_position_data", posData)
	palettes := nbt.NewCompound()
	palettes.Set("default", def)

	structure := nbt.NewCompound()
	structure.Set("block_indices", &nbt.List{Elem: nbt.TypeList, Items: []nbt.Tag{primary, secondary}})
	structure.Set("entities", compoundList(entities))
	structure.Set("palette", palettes)

	root := nbt.NewCompound()
	root.Set("format_version", nbt.Int(mcstructureFormatVersion))
	root.Set("size", intList(size))
	root.Set("structure", structure)
	root.Set("structure_world_origin", intList(r.Offset))
	mergeExtra(root, r.Metadata.RootExtra, mcstructureKeys)
	return root, nil
}

func intList(p voxel.Pos) *nbt.List {
	return &nbt.List{Elem: nbt.TypeInt, Items: []nbt.Tag{nbt.Int(int32(p[0])), nbt.Int(int32(p[1])), nbt.Int(int32(p[2]))}}
}
