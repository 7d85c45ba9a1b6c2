package voxel

import (
	"time"

	"github.com/oriumgames/schem/nbt"
)

// Metadata is descriptive information carried alongside the blocks.
type Metadata struct {
	Name        string
	Author      string
	Description string
	Created     time.Time
	Modified    time.Time
	// DataVersion is the Minecraft data version the states were written with, or 0
	// when the source did not record one.
	DataVersion int32
	// Source names the dialect the region was decoded from.
	Source string

	// RootExtra holds root-level fields the source dialect did not interpret. They
	// are written back verbatim by dialects that do not own the same names.
	RootExtra *nbt.Compound
	// MetaExtra holds uninterpreted fields of the source's metadata compound.
	MetaExtra *nbt.Compound
	// OuterExtra holds fields found beside a wrapping container, such as the
	// Schematic compound of Sponge version 3.
	OuterExtra *nbt.Compound
}

// Clone returns a copy of m with its own extra compounds.
func (m Metadata) Clone() Metadata {
	m.RootExtra = nbt.CloneCompound(m.RootExtra)
	m.MetaExtra = nbt.CloneCompound(m.MetaExtra)
	m.OuterExtra = nbt.CloneCompound(m.OuterExtra)
	return m
}
