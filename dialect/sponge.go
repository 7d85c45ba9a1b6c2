package dialect

import (
	"fmt"
	"math"

	"github.com/oriumgames/schem/bitpack"
	"github.com/oriumgames/schem/nbt"
	"github.com/oriumgames/schem/palette"
	"github.com/oriumgames/schem/voxel"
)

// Sponge is the Sponge schematic format (.schem) used by WorldEdit 7 and later.
// Version selects what Encode writes; Decode accepts versions 1 through 3 whatever
// the value of Version.
//
// Version 1 stores block entities as TileEntities and has no entities or biomes.
// Version 2 adds entities and a per-column biome layer. Version 3 nests everything in
// a Schematic compound, groups block data and block entities under Blocks and stores
// volumetric biomes.
type Sponge struct {
	Version int
}

const (
	// spongeDataVersion is written by version 2 when the region does not carry one.
	spongeDataVersion = 1343
	// modernDataVersion is written by version 3 and Litematic files when the region
	// does not carry one (Minecraft 1.20.1).
	modernDataVersion = 3465
)

var (
	spongeKeysV2 = []string{
		"Version", "DataVersion", "Metadata", "Width", "Height", "Length", "Offset",
		"PaletteMax", "Palette", "BlockData", "TileEntities", "BlockEntities", "Entities",
		"BiomePaletteMax", "BiomePalette", "BiomeData",
	}
	spongeKeysV3 = []string{
		"Version", "DataVersion", "Metadata", "Width", "Height", "Length", "Offset",
		"Blocks", "Biomes", "Entities",
	}
	spongeMetaKeys  = []string{"Name", "Author", "Date"}
	spongeOuterKeys = []string{"Schematic"}
)

func (s Sponge) Format() Format {
	switch s.Version {
	case 1:
		return FormatSpongeV1
	case 2:
		return FormatSpongeV2
	default:
		return FormatSpongeV3
	}
}

// spongeBody returns the compound holding the schematic fields, unwrapping the
// version 3 Schematic container.
func spongeBody(root *nbt.Compound) *nbt.Compound {
	if inner, ok := nbt.Get[*nbt.Compound](root, "Schematic"); ok {
		return inner
	}
	return root
}

func (s Sponge) Detect(in *Input) bool {
	_, root, err := in.Java()
	if err != nil {
		return false
	}
	body := spongeBody(root)
	v, ok := nbt.Get[nbt.Int](body, "Version")
	if !ok || int(v) != s.Version {
		return false
	}
	if s.Version >= 3 {
		return body.Has("Blocks") || body.Has("Width")
	}
	return body.Has("Palette") || body.Has("BlockData")
}

func (s Sponge) Decode(in *Input) (*voxel.Region, error) {
	_, root, err := in.Java()
	if err != nil {
		return nil, err
	}
	return s.DecodeTag(root, in.Options())
}

// DecodeTag decodes a root compound of any supported version.
func (Sponge) DecodeTag(root *nbt.Compound, opts Options) (*voxel.Region, error) {
	body := spongeBody(root)
	v, err := field[nbt.Int](body, "Version")
	if err != nil {
		return nil, err
	}
	version := int(v)
	if version < 1 || version > 3 {
		return nil, fmt.Errorf("%w: sponge version %d", ErrUnsupportedVersion, version)
	}

	width, height, length, err := spongeDimensions(body)
	if err != nil {
		return nil, err
	}
	if err := opts.checkVolume(width, height, length); err != nil {
		return nil, err
	}
	n := width * height * length

	blocks := body
	if version == 3 {
		if blocks, err = field[*nbt.Compound](body, "Blocks"); err != nil {
			return nil, err
		}
	}
	p, err := spongePalette(blocks, "Palette")
	if err != nil {
		return nil, err
	}
	dataKey := "BlockData"
	if version == 3 {
		dataKey = "Data"
	}
	raw, err := field[nbt.ByteArray](blocks, dataKey)
	if err != nil {
		return nil, err
	}
	indices, err := bitpack.UnpackVarints[uint32](raw, n)
	if err != nil {
		return nil, fmt.Errorf("block data: %w", err)
	}
	if declared, ok := nbt.Get[nbt.Int](blocks, "PaletteMax"); ok && int(declared) != p.Len() {
		opts.logger().Debug("palette size disagrees with PaletteMax", "format", Sponge{version}.Format(), "palette", p.Len(), "declared", int(declared))
	}

	r, err := voxel.FromIndices(width, height, length, p, indices)
	if err != nil {
		return nil, err
	}
	if off, ok := intTriple(body, "Offset"); ok {
		r.Offset = off
	}

	list, ok := nbt.Get[*nbt.List](blocks, "BlockEntities")
	if !ok {
		// Version 1, and some early version 2 writers.
		list, _ = nbt.Get[*nbt.List](blocks, "TileEntities")
	}
	for _, c := range list.Compounds() {
		pos, ok := intTriple(c, "Pos")
		if !ok {
			return nil, fmt.Errorf("block entity: %w: Pos", ErrMissingField)
		}
		be := voxel.BlockEntity{Pos: pos, ID: stringField(c, "Id")}
		if version == 3 {
			data, _ := nbt.Get[*nbt.Compound](c, "Data")
			be.Data = nbt.CloneCompound(data)
		} else {
			be.Data = withoutFields(c, "Pos", "Id")
		}
		r.SetBlockEntity(be)
	}

	if version >= 2 {
		entities, _ := nbt.Get[*nbt.List](body, "Entities")
		for _, c := range entities.Compounds() {
			pos, _ := doubleTriple(c, "Pos")
			e := voxel.Entity{Pos: pos, ID: stringField(c, "Id")}
			if version == 3 {
				data, _ := nbt.Get[*nbt.Compound](c, "Data")
				e.Data = nbt.CloneCompound(data)
			} else {
				e.Data = withoutFields(c, "Pos", "Id")
			}
			r.AddEntity(e)
		}
	}

	if err := decodeSpongeBiomes(r, body, version); err != nil {
		return nil, err
	}

	r.Metadata.Source = Sponge{version}.Format().String()
	if dv, ok := nbt.Get[nbt.Int](body, "DataVersion"); ok {
		r.Metadata.DataVersion = int32(dv)
	}
	if meta, ok := nbt.Get[*nbt.Compound](body, "Metadata"); ok {
		r.Metadata.Name = stringField(meta, "Name")
		r.Metadata.Author = stringField(meta, "Author")
		r.Metadata.Created = millis(meta, "Date")
		r.Metadata.MetaExtra = extraFields(meta, spongeMetaKeys)
	}
	known := spongeKeysV2
	if version == 3 {
		known = spongeKeysV3
	}
	r.Metadata.RootExtra = extraFields(body, known)
	if body != root {
		r.Metadata.OuterExtra = extraFields(root, spongeOuterKeys)
	}
	return r, nil
}

func spongeDimensions(body *nbt.Compound) (int, int, int, error) {
	var dims [3]int
	for i, name := range [3]string{"Width", "Height", "Length"} {
		v, err := field[nbt.Short](body, name)
		if err != nil {
			return 0, 0, 0, err
		}
		// Sponge dimensions are unsigned shorts.
		dims[i] = int(uint16(v))
	}
	if err := voxel.CheckDimensions(dims[0], dims[1], dims[2]); err != nil {
		return 0, 0, 0, err
	}
	return dims[0], dims[1], dims[2], nil
}

func spongePalette(c *nbt.Compound, key string) (*palette.Palette, error) {
	raw, err := field[*nbt.Compound](c, key)
	if err != nil {
		return nil, err
	}
	entries := make([]palette.Entry, 0, raw.Len())
	for k, v := range raw.All() {
		i, ok := v.(nbt.Int)
		if !ok {
			return nil, fmt.Errorf("%w: palette entry %q is %s", ErrMissingField, k, v.Type())
		}
		s, err := palette.ParseBlockState(k)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", nbt.ErrMalformedTag, err)
		}
		entries = append(entries, palette.Entry{State: s, Index: int64(i)})
	}
	return palette.FromEntries(entries)
}

// stringPalette reads a name to index compound whose keys are used verbatim, as for
// biome palettes.
func stringPalette(c *nbt.Compound) ([]string, error) {
	entries := make([]palette.Entry, 0, c.Len())
	for k, v := range c.All() {
		i, ok := v.(nbt.Int)
		if !ok {
			return nil, fmt.Errorf("%w: palette entry %q is %s", ErrMissingField, k, v.Type())
		}
		entries = append(entries, palette.Entry{State: palette.NewBlockState(k), Index: int64(i)})
	}
	p, err := palette.FromEntries(entries)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, p.Len())
	for _, s := range p.States() {
		names = append(names, s.Name)
	}
	return names, nil
}

func decodeSpongeBiomes(r *voxel.Region, body *nbt.Compound, version int) error {
	var (
		pal        *nbt.Compound
		data       nbt.ByteArray
		ok         bool
		volumetric = version == 3
	)
	switch version {
	case 2:
		if pal, ok = nbt.Get[*nbt.Compound](body, "BiomePalette"); !ok {
			return nil
		}
		if data, ok = nbt.Get[nbt.ByteArray](body, "BiomeData"); !ok {
			return fmt.Errorf("biomes: %w: BiomeData", ErrMissingField)
		}
	case 3:
		biomes, found := nbt.Get[*nbt.Compound](body, "Biomes")
		if !found {
			return nil
		}
		var err error
		if pal, err = field[*nbt.Compound](biomes, "Palette"); err != nil {
			return fmt.Errorf("biomes: %w", err)
		}
		if data, err = field[nbt.ByteArray](biomes, "Data"); err != nil {
			return fmt.Errorf("biomes: %w", err)
		}
	default:
		return nil
	}

	names, err := stringPalette(pal)
	if err != nil {
		return fmt.Errorf("biomes: %w", err)
	}
	w, h, l := r.Dimensions()
	count := w * l
	if volumetric {
		count *= h
	}
	indices, err := bitpack.UnpackVarints[uint32](data, count)
	if err != nil {
		return fmt.Errorf("biome data: %w", err)
	}
	b, err := voxel.BiomesFromIndices(r, volumetric, names, indices)
	if err != nil {
		return err
	}
	return r.SetBiomes(b)
}

func (s Sponge) Encode(r *voxel.Region, opts Options) ([]byte, error) {
	name, root, err := s.EncodeTag(r, opts)
	if err != nil {
		return nil, err
	}
	return nbt.Encode(name, root)
}

// EncodeTag builds the root compound and its name.
func (s Sponge) EncodeTag(r *voxel.Region, opts Options) (string, *nbt.Compound, error) {
	version := s.Version
	if version < 1 || version > 3 {
		return "", nil, fmt.Errorf("%w: sponge version %d", ErrUnsupportedVersion, version)
	}
	w, h, l := r.Dimensions()
	if w > math.MaxUint16 || h > math.MaxUint16 || l > math.MaxUint16 {
		return "", nil, fmt.Errorf("%w: %dx%dx%d does not fit a sponge schematic", voxel.ErrInvalidDimensions, w, h, l)
	}
	log := opts.logger().With("format", s.Format())

	body := nbt.NewCompound()
	body.Set("Version", nbt.Int(int32(version)))
	if version >= 2 {
		dv := r.Metadata.DataVersion
		if dv == 0 {
			dv = spongeDataVersion
			if version == 3 {
				dv = modernDataVersion
			}
		}
		body.Set("DataVersion", nbt.Int(dv))
	}
	body.Set("Metadata", spongeMetadata(r.Metadata))
	body.Set("Width", nbt.Short(int16(uint16(w))))
	body.Set("Height", nbt.Short(int16(uint16(h))))
	body.Set("Length", nbt.Short(int16(uint16(l))))
	body.Set("Offset", intArray(r.Offset))

	states, indices := canonicalBlocks(r, false)
	pal := nbt.NewCompound()
	for i, st := range states {
		pal.Set(st.String(), nbt.Int(int32(i)))
	}
	data, err := bitpack.PackVarints(indices)
	if err != nil {
		return "", nil, err
	}

	blockEntities := make([]*nbt.Compound, 0)
	for _, be := range r.BlockEntities() {
		c := nbt.NewCompound()
		c.Set("Pos", intArray(be.Pos))
		c.Set("Id", nbt.String(be.ID))
		if version == 3 {
			c.Set("Data", nbt.CloneCompound(be.Data))
		} else {
			inlineFields(c, be.Data)
		}
		blockEntities = append(blockEntities, c)
	}

	switch version {
	case 1, 2:
		body.Set("PaletteMax", nbt.Int(int32(len(states))))
		body.Set("Palette", pal)
		body.Set("BlockData", nbt.ByteArray(data))
		if version == 1 {
			body.Set("TileEntities", compoundList(blockEntities))
		} else {
			body.Set("BlockEntities", compoundList(blockEntities))
		}
	case 3:
		blocks := nbt.NewCompound()
		blocks.Set("Palette", pal)
		blocks.Set("Data", nbt.ByteArray(data))
		blocks.Set("BlockEntities", compoundList(blockEntities))
		body.Set("Blocks", blocks)
	}

	if b := r.Biomes(); b != nil {
		if version == 1 {
			log.Warn("sponge version 1 cannot store biomes; dropping them")
		} else if err := encodeSpongeBiomes(body, b, version); err != nil {
			return "", nil, err
		}
	}

	if entities := r.Entities(); len(entities) > 0 {
		if version == 1 {
			log.Warn("sponge version 1 cannot store entities; dropping them", "count", len(entities))
		} else {
			list := make([]*nbt.Compound, 0, len(entities))
			for _, e := range entities {
				c := nbt.NewCompound()
				c.Set("Pos", doubleList(e.Pos))
				c.Set("Id", nbt.String(e.ID))
				if version == 3 {
					c.Set("Data", nbt.CloneCompound(e.Data))
				} else {
					inlineFields(c, e.Data)
				}
				list = append(list, c)
			}
			body.Set("Entities", compoundList(list))
		}
	}

	if version == 3 {
		mergeExtra(body, r.Metadata.RootExtra, spongeKeysV3)
		root := nbt.NewCompound()
		root.Set("Schematic", body)
		mergeExtra(root, r.Metadata.OuterExtra, spongeOuterKeys)
		return "", root, nil
	}
	mergeExtra(body, r.Metadata.RootExtra, spongeKeysV2)
	return "Schematic", body, nil
}

func spongeMetadata(m voxel.Metadata) *nbt.Compound {
	c := nbt.NewCompound()
	setString(c, "Name", m.Name)
	setString(c, "Author", m.Author)
	setMillis(c, "Date", m.Created)
	mergeExtra(c, m.MetaExtra, spongeMetaKeys)
	return c
}

func encodeSpongeBiomes(body *nbt.Compound, b *voxel.Biomes, version int) error {
	if version == 3 {
		b = b.Volume()
	} else {
		b = b.Flat()
	}
	pal := nbt.NewCompound()
	for i, name := range b.Palette() {
		pal.Set(name, nbt.Int(int32(i)))
	}
	data, err := bitpack.PackVarints(b.Indices())
	if err != nil {
		return err
	}
	if version == 3 {
		biomes := nbt.NewCompound()
		biomes.Set("Palette", pal)
		biomes.Set("Data", nbt.ByteArray(data))
		body.Set("Biomes", biomes)
		return nil
	}
	body.Set("BiomePaletteMax", nbt.Int(int32(pal.Len())))
	body.Set("BiomePalette", pal)
	body.Set("BiomeData", nbt.ByteArray(data))
	return nil
}
