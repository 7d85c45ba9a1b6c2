package dialect

import (
	"encoding/binary"
	"fmt"

	"github.com/oriumgames/schem/bitpack"
	"github.com/oriumgames/schem/compression"
	"github.com/oriumgames/schem/nbt"
	"github.com/oriumgames/schem/palette"
	"github.com/oriumgames/schem/voxel"
)

// Blueprint is the Axiom blueprint container: a magic number followed by three
// length-prefixed frames holding an uncompressed header compound, a thumbnail image and
// a gzip compressed block compound. Blocks are stored in 16x16x16 sections using the
// same paletted container layout as chunk sections.
//
// The block compound also records the exact Size and Offset of the region. Files
// without them decode to the tight bounds of their non-air blocks.
type Blueprint struct{}

const (
	blueprintMagic   uint32 = 0x0AE5BB36
	sectionSize             = 16
	sectionVolume           = sectionSize * sectionSize * sectionSize
	blueprintMinBits        = 4
	thumbnailKey            = "Thumbnail"
)

var (
	blueprintHeaderKeys = []string{"Name", "Author", "Description", "BlockCount", "ContainsAir"}
	blueprintDataKeys   = []string{"BlockRegion", "DataVersion", "Size", "Offset", "Entities"}
	blueprintOwnedKeys  = []string{"BlockRegion", "DataVersion", "Size", "Offset", "Entities", thumbnailKey}
)

func (Blueprint) Format() Format { return FormatBlueprint }

func (Blueprint) Detect(in *Input) bool {
	data := in.Bytes()
	return len(data) >= 4 && binary.BigEndian.Uint32(data) == blueprintMagic
}

// section is one decoded 16x16x16 block section, in section coordinates.
type section struct {
	pos     voxel.Pos
	states  []palette.BlockState
	indices []uint32
	tiles   []*nbt.Compound
}

func (b Blueprint) Decode(in *Input) (*voxel.Region, error) {
	opts := in.Options()
	rd := newReader(in.Bytes())
	magic, err := rd.ReadUInt32()
	if err != nil {
		return nil, err
	}
	if magic != blueprintMagic {
		return nil, fmt.Errorf("%w: blueprint magic %08x", nbt.ErrMalformedTag, magic)
	}
	rawHeader, err := rd.ReadFrame("header")
	if err != nil {
		return nil, err
	}
	thumbnail, err := rd.ReadFrame("thumbnail")
	if err != nil {
		return nil, err
	}
	rawBlocks, err := rd.ReadFrame("block data")
	if err != nil {
		return nil, err
	}
	_, header, err := nbt.DecodeCompound(rawHeader, opts.nbtOptions()...)
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	maxSize := opts.MaxSize
	if maxSize <= 0 {
		maxSize = compression.DefaultMaxSize
	}
	plain, _, err := compression.Open(rawBlocks, maxSize)
	if err != nil {
		return nil, fmt.Errorf("block data: %w", err)
	}
	_, data, err := nbt.DecodeCompound(plain, opts.nbtOptions()...)
	if err != nil {
		return nil, fmt.Errorf("block data: %w", err)
	}
	r, err := b.DecodeTag(header, data, opts)
	if err != nil {
		return nil, err
	}
	if len(thumbnail) > 0 {
		if r.Metadata.RootExtra == nil {
			r.Metadata.RootExtra = nbt.NewCompound()
		}
		r.Metadata.RootExtra.Set(thumbnailKey, nbt.ByteArray(thumbnail))
	}
	return r, nil
}

// DecodeTag decodes the header and block compounds of a blueprint.
func (Blueprint) DecodeTag(header, data *nbt.Compound, opts Options) (*voxel.Region, error) {
	regions, err := field[*nbt.List](data, "BlockRegion")
	if err != nil {
		return nil, err
	}
	sections := make([]section, 0, regions.Len())
	for i, c := range regions.Compounds() {
		s, err := decodeSection(c)
		if err != nil {
			return nil, fmt.Errorf("section %d: %w", i, err)
		}
		sections = append(sections, s)
	}

	contentLo, contentSize, found := sectionBounds(sections)
	lo, hasOffset := intTriple(data, "Offset")
	size, hasSize := intTriple(data, "Size")
	if !hasOffset || !hasSize {
		lo, size = contentLo, contentSize
	}
	if err := opts.checkVolume(size[0], size[1], size[2]); err != nil {
		return nil, err
	}
	if found {
		for i := range 3 {
			if contentLo[i] < lo[i] || contentLo[i]+contentSize[i] > lo[i]+size[i] {
				return nil, fmt.Errorf("%w: blocks at %v size %v lie outside Offset %v Size %v",
					nbt.ErrMalformedTag, contentLo, contentSize, lo, size)
			}
		}
	}

	p := palette.NewWithAir()
	indices := make([]uint32, size[0]*size[1]*size[2])
	var tiles []*nbt.Compound
	for _, s := range sections {
		remap := make([]uint32, len(s.states))
		for i, st := range s.states {
			remap[i] = p.IndexOf(st)
		}
		base := s.pos.Mul(sectionSize).Sub(lo)
		for i, v := range s.indices {
			x, y, z := base[0]+i%sectionSize, base[1]+i/(sectionSize*sectionSize), base[2]+i/sectionSize%sectionSize
			if x < 0 || y < 0 || z < 0 || x >= size[0] || y >= size[1] || z >= size[2] {
				continue
			}
			indices[(y*size[2]+z)*size[0]+x] = remap[v]
		}
		tiles = append(tiles, s.tiles...)
	}
	r, err := voxel.FromIndices(size[0], size[1], size[2], p, indices)
	if err != nil {
		return nil, err
	}
	r.Offset = lo

	for _, c := range tiles {
		pos, ok := xyz(c, lowerXYZ)
		if !ok {
			return nil, fmt.Errorf("block entity: %w: x/y/z", ErrMissingField)
		}
		r.SetBlockEntity(voxel.BlockEntity{Pos: pos.Sub(lo), ID: stringField(c, "id"), Data: withoutFields(c, "x", "y", "z", "id")})
	}
	entities, _ := nbt.Get[*nbt.List](data, "Entities")
	for _, c := range entities.Compounds() {
		pos, _ := doubleTriple(c, "Pos")
		r.AddEntity(voxel.Entity{Pos: pos, ID: stringField(c, "id"), Data: withoutFields(c, "Pos", "id")})
	}

	opts.logger().Debug("assembled sections", "format", FormatBlueprint, "sections", len(sections), "size", size)

	r.Metadata.Source = FormatBlueprint.String()
	r.Metadata.Name = stringField(header, "Name")
	r.Metadata.Author = stringField(header, "Author")
	r.Metadata.Description = stringField(header, "Description")
	r.Metadata.MetaExtra = extraFields(header, blueprintHeaderKeys)
	if dv, ok := nbt.Get[nbt.Int](data, "DataVersion"); ok {
		r.Metadata.DataVersion = int32(dv)
	}
	r.Metadata.RootExtra = extraFields(data, blueprintDataKeys)
	return r, nil
}

func decodeSection(c *nbt.Compound) (section, error) {
	pos, ok := xyz(c, upperXYZ)
	if !ok {
		return section{}, fmt.Errorf("%w: X/Y/Z", ErrMissingField)
	}
	container, err := field[*nbt.Compound](c, "BlockStates")
	if err != nil {
		return section{}, err
	}
	pl, err := field[*nbt.List](container, "palette")
	if err != nil {
		return section{}, err
	}
	s := section{pos: pos}
	for _, e := range pl.Compounds() {
		st, err := stateFromCompound(e)
		if err != nil {
			return section{}, fmt.Errorf("palette: %w", err)
		}
		s.states = append(s.states, st)
	}
	switch len(s.states) {
	case 0:
		return section{}, fmt.Errorf("%w: empty section palette", ErrMissingField)
	case 1:
		s.indices = make([]uint32, sectionVolume)
	default:
		words, err := field[nbt.LongArray](container, "data")
		if err != nil {
			return section{}, err
		}
		bits := max(blueprintMinBits, bitpack.BitsFor(len(s.states)))
		if s.indices, err = bitpack.UnpackLongs[uint32](words, sectionVolume, bits, bitpack.Aligned); err != nil {
			return section{}, fmt.Errorf("block states: %w", err)
		}
		for i, v := range s.indices {
			if int(v) >= len(s.states) {
				return section{}, fmt.Errorf("%w: %d at %d (size %d)", palette.ErrOutOfRange, v, i, len(s.states))
			}
		}
	}
	tiles, _ := nbt.Get[*nbt.List](c, "BlockEntities")
	s.tiles = tiles.Compounds()
	return s, nil
}

// sectionBounds returns the smallest box holding every non-air block, or a single
// block at the origin and false when there are none.
func sectionBounds(sections []section) (lo, size voxel.Pos, found bool) {
	var hi voxel.Pos
	for _, s := range sections {
		base := s.pos.Mul(sectionSize)
		for i, v := range s.indices {
			if s.states[v].IsAir() {
				continue
			}
			p := base.Add(voxel.Pos{i % sectionSize, i / (sectionSize * sectionSize), i / sectionSize % sectionSize})
			if !found {
				lo, hi, found = p, p, true
				continue
			}
			for k := range p {
				lo[k] = min(lo[k], p[k])
				hi[k] = max(hi[k], p[k])
			}
		}
	}
	if !found {
		return voxel.Pos{}, voxel.Pos{1, 1, 1}, false
	}
	return lo, hi.Sub(lo).Add(voxel.Pos{1, 1, 1}), true
}

func (b Blueprint) Encode(r *voxel.Region, opts Options) ([]byte, error) {
	header, data, err := b.EncodeTag(r, opts)
	if err != nil {
		return nil, err
	}
	rawHeader, err := nbt.Encode("", header)
	if err != nil {
		return nil, err
	}
	rawData, err := nbt.Encode("", data)
	if err != nil {
		return nil, err
	}
	packed, err := compression.Wrap(rawData, compression.Gzip)
	if err != nil {
		return nil, err
	}
	thumbnail, _ := nbt.Get[nbt.ByteArray](r.Metadata.RootExtra, thumbnailKey)

	buf := &buffer{}
	buf.WriteUInt32(blueprintMagic)
	buf.WriteFrame(rawHeader)
	buf.WriteFrame(thumbnail)
	buf.WriteFrame(packed)
	return buf.Bytes(), nil
}

// EncodeTag builds the header and block compounds.
func (Blueprint) EncodeTag(r *voxel.Region, _ Options) (header, data *nbt.Compound, err error) {
	w, h, l := r.Dimensions()
	states, indices := canonicalBlocks(r, true)

	sections := make(map[voxel.Pos][]uint32)
	var order []voxel.Pos
	nonAir := 0
	for y := range h {
		for z := range l {
			for x := range w {
				v := indices[(y*l+z)*w+x]
				if v == 0 {
					continue
				}
				nonAir++
				abs := r.Offset.Add(voxel.Pos{x, y, z})
				sp := voxel.Pos{floorDiv(abs[0]), floorDiv(abs[1]), floorDiv(abs[2])}
				sec, ok := sections[sp]
				if !ok {
					sec = make([]uint32, sectionVolume)
					sections[sp] = sec
					order = append(order, sp)
				}
				local := abs.Sub(sp.Mul(sectionSize))
				sec[(local[1]*sectionSize+local[2])*sectionSize+local[0]] = v
			}
		}
	}
	tilesBySection := make(map[voxel.Pos][]*nbt.Compound)
	for _, be := range r.BlockEntities() {
		abs := r.Offset.Add(be.Pos)
		sp := voxel.Pos{floorDiv(abs[0]), floorDiv(abs[1]), floorDiv(abs[2])}
		if _, ok := sections[sp]; !ok {
			sections[sp] = make([]uint32, sectionVolume)
			order = append(order, sp)
		}
		c := posCompound(abs)
		c.Set("id", nbt.String(be.ID))
		inlineFields(c, be.Data)
		tilesBySection[sp] = append(tilesBySection[sp], c)
	}

	regions := make([]*nbt.Compound, 0, len(order))
	for _, sp := range order {
		c, err := encodeSection(sp, sections[sp], states, tilesBySection[sp])
		if err != nil {
			return nil, nil, err
		}
		regions = append(regions, c)
	}

	header = nbt.NewCompound()
	header.Set("Name", nbt.String(r.Metadata.Name))
	header.Set("Author", nbt.String(r.Metadata.Author))
	setString(header, "Description", r.Metadata.Description)
	header.Set("BlockCount", nbt.Int(int32(nonAir)))
	header.Set("ContainsAir", nbt.Byte(0))
	mergeExtra(header, r.Metadata.MetaExtra, blueprintHeaderKeys)

	data = nbt.NewCompound()
	data.Set("BlockRegion", compoundList(regions))
	if r.Metadata.DataVersion != 0 {
		data.Set("DataVersion", nbt.Int(r.Metadata.DataVersion))
	}
	data.Set("Size", intArray(voxel.Pos{w, h, l}))
	data.Set("Offset", intArray(r.Offset))
	if entities := r.Entities(); len(entities) > 0 {
		list := make([]*nbt.Compound, 0, len(entities))
		for _, e := range entities {
			c := nbt.NewCompound()
			c.Set("Pos", doubleList(e.Pos))
			c.Set("id", nbt.String(e.ID))
			inlineFields(c, e.Data)
			list = append(list, c)
		}
		data.Set("Entities", compoundList(list))
	}
	mergeExtra(data, r.Metadata.RootExtra, blueprintOwnedKeys)
	return header, data, nil
}

func encodeSection(pos voxel.Pos, blocks []uint32, states []palette.BlockState, tiles []*nbt.Compound) (*nbt.Compound, error) {
	local := palette.New()
	remapped := make([]uint32, len(blocks))
	for i, v := range blocks {
		remapped[i] = local.IndexOf(states[v])
	}
	pal := make([]*nbt.Compound, 0, local.Len())
	for _, s := range local.States() {
		pal = append(pal, stateCompound(s))
	}
	container := nbt.NewCompound()
	container.Set("palette", compoundList(pal))
	if local.Len() > 1 {
		words, err := bitpack.PackLongs(remapped, max(blueprintMinBits, bitpack.BitsFor(local.Len())), bitpack.Aligned)
		if err != nil {
			return nil, err
		}
		container.Set("data", nbt.LongArray(words))
	}
	c := nbt.NewCompound()
	setXYZ(c, upperXYZ, pos)
	c.Set("BlockStates", container)
	if len(tiles) > 0 {
		c.Set("BlockEntities", compoundList(tiles))
	}
	return c, nil
}

// floorDiv returns the section coordinate of a block coordinate.
func floorDiv(v int) int {
	return v >> 4
}
