package dialect

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/oriumgames/schem/bitpack"
	"github.com/oriumgames/schem/nbt"
	"github.com/oriumgames/schem/palette"
	"github.com/oriumgames/schem/voxel"
)

// Litematic is the structure format of the Litematica mod. A file holds one or more
// named sub-regions, each with its own palette and a densely packed block array.
//
// Decoding merges every sub-region into a single region spanning their union, with
// Offset set to the union's minimum corner; where regions overlap, non-air blocks of
// later regions win. Encoding writes one sub-region.
type Litematic struct{}

const (
	litematicVersion    = 6
	litematicMaxVersion = 7
	litematicMinBits    = 2
	defaultRegionName   = "Unnamed"
)

var (
	litematicKeys     = []string{"MinecraftDataVersion", "Version", "SubVersion", "Metadata", "Regions"}
	litematicMetaKeys = []string{
		"Name", "Author", "Description", "RegionCount", "TotalBlocks", "TotalVolume",
		"TimeCreated", "TimeModified", "EnclosingSize",
	}
)

func (Litematic) Format() Format { return FormatLitematic }

func (Litematic) Detect(in *Input) bool {
	_, root, err := in.Java()
	if err != nil {
		return false
	}
	_, regions := nbt.Get[*nbt.Compound](root, "Regions")
	_, version := nbt.Get[nbt.Int](root, "Version")
	return regions && version
}

func (l Litematic) Decode(in *Input) (*voxel.Region, error) {
	_, root, err := in.Java()
	if err != nil {
		return nil, err
	}
	return l.DecodeTag(root, in.Options())
}

// subRegion is one decoded sub-region placed at its minimum corner.
type subRegion struct {
	name string
	min  voxel.Pos
	r    *voxel.Region
}

// DecodeTag decodes a root compound.
func (Litematic) DecodeTag(root *nbt.Compound, opts Options) (*voxel.Region, error) {
	log := opts.logger().With("format", FormatLitematic)
	v, err := field[nbt.Int](root, "Version")
	if err != nil {
		return nil, err
	}
	if v < 1 || v > litematicMaxVersion {
		return nil, fmt.Errorf("%w: litematic version %d", ErrUnsupportedVersion, v)
	}
	regions, err := field[*nbt.Compound](root, "Regions")
	if err != nil {
		return nil, err
	}

	subs := make([]subRegion, 0, regions.Len())
	for name, t := range regions.All() {
		c, ok := t.(*nbt.Compound)
		if !ok {
			return nil, fmt.Errorf("region %q: %w: not a compound", name, ErrMissingField)
		}
		sub, err := decodeSubRegion(c, opts, log.With("region", name))
		if err != nil {
			return nil, fmt.Errorf("region %q: %w", name, err)
		}
		sub.name = name
		subs = append(subs, sub)
	}
	if len(subs) == 0 {
		return nil, fmt.Errorf("%w: litematic without regions", voxel.ErrInvalidDimensions)
	}

	var out *voxel.Region
	if len(subs) == 1 {
		out = subs[0].r
		out.Offset = subs[0].min
	} else {
		lo, hi := subs[0].min, subs[0].min
		for _, s := range subs {
			w, h, l := s.r.Dimensions()
			for i, d := range [3]int{w, h, l} {
				lo[i] = min(lo[i], s.min[i])
				hi[i] = max(hi[i], s.min[i]+d)
			}
		}
		size := hi.Sub(lo)
		if err := opts.checkVolume(size[0], size[1], size[2]); err != nil {
			return nil, err
		}
		if out, err = voxel.New(size[0], size[1], size[2]); err != nil {
			return nil, err
		}
		out.Offset = lo
		for _, s := range subs {
			at := s.min.Sub(lo)
			out.Paste(s.r, at, true)
			// Paste keeps only block entities that land inside the union.
			for _, be := range s.r.BlockEntities() {
				if be.Pos = be.Pos.Add(at); !out.Contains(be.Pos[0], be.Pos[1], be.Pos[2]) {
					out.SetBlockEntity(be)
				}
			}
		}
		log.Debug("merged sub-regions", "count", len(subs), "size", size)
	}

	out.Metadata.Source = FormatLitematic.String()
	if dv, ok := nbt.Get[nbt.Int](root, "MinecraftDataVersion"); ok {
		out.Metadata.DataVersion = int32(dv)
	}
	if meta, ok := nbt.Get[*nbt.Compound](root, "Metadata"); ok {
		out.Metadata.Name = stringField(meta, "Name")
		out.Metadata.Author = stringField(meta, "Author")
		out.Metadata.Description = stringField(meta, "Description")
		out.Metadata.Created = millis(meta, "TimeCreated")
		out.Metadata.Modified = millis(meta, "TimeModified")
		out.Metadata.MetaExtra = extraFields(meta, litematicMetaKeys)
	}
	if out.Metadata.Name == "" && len(subs) == 1 {
		out.Metadata.Name = subs[0].name
	}
	out.Metadata.RootExtra = extraFields(root, litematicKeys)
	return out, nil
}

func decodeSubRegion(c *nbt.Compound, opts Options, log *slog.Logger) (subRegion, error) {
	posC, err := field[*nbt.Compound](c, "Position")
	if err != nil {
		return subRegion{}, err
	}
	sizeC, err := field[*nbt.Compound](c, "Size")
	if err != nil {
		return subRegion{}, err
	}
	pos, ok := xyz(posC, lowerXYZ)
	if !ok {
		return subRegion{}, fmt.Errorf("%w: Position", ErrMissingField)
	}
	size, ok := xyz(sizeC, lowerXYZ)
	if !ok {
		return subRegion{}, fmt.Errorf("%w: Size", ErrMissingField)
	}
	// A negative size extends the region from Position towards negative coordinates.
	lo := pos
	var dims [3]int
	for i, s := range size {
		if s < 0 {
			lo[i] = pos[i] + s + 1
			s = -s
		}
		dims[i] = s
	}
	if err := opts.checkVolume(dims[0], dims[1], dims[2]); err != nil {
		return subRegion{}, err
	}
	n := dims[0] * dims[1] * dims[2]

	pl, err := field[*nbt.List](c, "BlockStatePalette")
	if err != nil {
		return subRegion{}, err
	}
	if pl.Len() > 0 && pl.Elem != nbt.TypeCompound {
		return subRegion{}, fmt.Errorf("%w: BlockStatePalette holds %s", ErrMissingField, pl.Elem)
	}
	states := make([]palette.BlockState, 0, pl.Len())
	for _, e := range pl.Compounds() {
		s, err := stateFromCompound(e)
		if err != nil {
			return subRegion{}, fmt.Errorf("palette: %w", err)
		}
		states = append(states, s)
	}
	if len(states) == 0 {
		return subRegion{}, fmt.Errorf("%w: empty BlockStatePalette", ErrMissingField)
	}
	words, err := field[nbt.LongArray](c, "BlockStates")
	if err != nil {
		return subRegion{}, err
	}
	bits := max(litematicMinBits, bitpack.BitsFor(len(states)))
	indices, err := bitpack.UnpackLongs[uint32](words, n, bits, bitpack.Dense)
	if err != nil {
		return subRegion{}, fmt.Errorf("block states: %w", err)
	}
	r, err := voxel.FromIndices(dims[0], dims[1], dims[2], palette.FromStates(states), indices)
	if err != nil {
		return subRegion{}, err
	}

	tiles, _ := nbt.Get[*nbt.List](c, "TileEntities")
	for _, t := range tiles.Compounds() {
		p, ok := xyz(t, lowerXYZ)
		if !ok {
			return subRegion{}, fmt.Errorf("tile entity: %w: x/y/z", ErrMissingField)
		}
		r.SetBlockEntity(voxel.BlockEntity{Pos: p, ID: stringField(t, "id"), Data: withoutFields(t, "x", "y", "z", "id")})
	}
	entities, _ := nbt.Get[*nbt.List](c, "Entities")
	shift := pos.Sub(lo)
	for _, e := range entities.Compounds() {
		p, _ := doubleTriple(e, "Pos")
		for i := range p {
			p[i] += float64(shift[i])
		}
		r.AddEntity(voxel.Entity{Pos: p, ID: stringField(e, "id"), Data: withoutFields(e, "Pos", "id")})
	}
	for _, key := range []string{"PendingBlockTicks", "PendingFluidTicks"} {
		if l, ok := nbt.Get[*nbt.List](c, key); ok && l.Len() > 0 {
			log.Warn("dropping scheduled ticks", "field", key, "count", l.Len())
		}
	}
	return subRegion{min: lo, r: r}, nil
}

func (l Litematic) Encode(r *voxel.Region, opts Options) ([]byte, error) {
	name, root, err := l.EncodeTag(r, opts)
	if err != nil {
		return nil, err
	}
	return nbt.Encode(name, root)
}

// EncodeTag builds the root compound and its name.
func (Litematic) EncodeTag(r *voxel.Region, _ Options) (string, *nbt.Compound, error) {
	w, h, l := r.Dimensions()
	states, indices := canonicalBlocks(r, true)
	bits := max(litematicMinBits, bitpack.BitsFor(len(states)))
	words, err := bitpack.PackLongs(indices, bits, bitpack.Dense)
	if err != nil {
		return "", nil, err
	}

	nonAir := 0
	for _, i := range indices {
		if i != 0 {
			nonAir++
		}
	}
	size := voxel.Pos{w, h, l}

	pal := make([]*nbt.Compound, len(states))
	for i, s := range states {
		pal[i] = stateCompound(s)
	}
	tiles := make([]*nbt.Compound, 0)
	for _, be := range r.BlockEntities() {
		c := posCompound(be.Pos)
		if be.ID != "" {
			c.Set("id", nbt.String(be.ID))
		}
		inlineFields(c, be.Data)
		tiles = append(tiles, c)
	}
	entities := make([]*nbt.Compound, 0)
	for _, e := range r.Entities() {
		c := nbt.NewCompound()
		c.Set("Pos", doubleList(e.Pos))
		c.Set("id", nbt.String(e.ID))
		inlineFields(c, e.Data)
		entities = append(entities, c)
	}

	region := nbt.NewCompound()
	region.Set("Position", posCompound(r.Offset))
	region.Set("Size", posCompound(size))
	region.Set("BlockStatePalette", compoundList(pal))
	region.Set("BlockStates", nbt.LongArray(words))
	region.Set("TileEntities", compoundList(tiles))
	region.Set("Entities", compoundList(entities))
	region.Set("PendingBlockTicks", compoundList(nil))
	region.Set("PendingFluidTicks", compoundList(nil))

	name := r.Metadata.Name
	if name == "" {
		name = defaultRegionName
	}
	regions := nbt.NewCompound()
	regions.Set(name, region)

	meta := nbt.NewCompound()
	meta.Set("Name", nbt.String(name))
	meta.Set("Author", nbt.String(r.Metadata.Author))
	meta.Set("Description", nbt.String(r.Metadata.Description))
	meta.Set("RegionCount", nbt.Int(1))
	meta.Set("TotalBlocks", nbt.Int(int32(nonAir)))
	meta.Set("TotalVolume", nbt.Int(int32(r.Volume())))
	meta.Set("TimeCreated", nbt.Long(unixMilli(r.Metadata.Created)))
	meta.Set("TimeModified", nbt.Long(unixMilli(r.Metadata.Modified)))
	meta.Set("EnclosingSize", posCompound(size))
	mergeExtra(meta, r.Metadata.MetaExtra, litematicMetaKeys)

	dv := r.Metadata.DataVersion
	if dv == 0 {
		dv = modernDataVersion
	}
	root := nbt.NewCompound()
	root.Set("MinecraftDataVersion", nbt.Int(dv))
	root.Set("Version", nbt.Int(litematicVersion))
	root.Set("Metadata", meta)
	root.Set("Regions", regions)
	mergeExtra(root, r.Metadata.RootExtra, litematicKeys)
	return "", root, nil
}

func unixMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
