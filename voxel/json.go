package voxel

import (
	"time"

	"github.com/goccy/go-json"
)

type jsonMetadata struct {
	Name        string     `json:"name,omitempty"`
	Author      string     `json:"author,omitempty"`
	Description string     `json:"description,omitempty"`
	Created     *time.Time `json:"created,omitempty"`
	Modified    *time.Time `json:"modified,omitempty"`
	DataVersion int32      `json:"data_version,omitempty"`
	Source      string     `json:"source,omitempty"`
}

type jsonBlockEntity struct {
	Pos  Pos            `json:"pos"`
	ID   string         `json:"id"`
	Data map[string]any `json:"data,omitempty"`
}

type jsonEntity struct {
	Pos  [3]float64     `json:"pos"`
	ID   string         `json:"id"`
	Data map[string]any `json:"data,omitempty"`
}

type jsonRegion struct {
	Metadata      jsonMetadata      `json:"metadata"`
	Size          Pos               `json:"size"`
	Offset        Pos               `json:"offset"`
	Palette       []string          `json:"palette"`
	Blocks        []uint32          `json:"blocks"`
	BlockEntities []jsonBlockEntity `json:"block_entities"`
	Entities      []jsonEntity      `json:"entities"`
}

// MarshalJSON renders r for inspection by other tools. Blocks are palette indices in
// the same order as Indices; tag data is rendered in its native form.
func (r *Region) MarshalJSON() ([]byte, error) {
	m := r.Metadata
	out := jsonRegion{
		Metadata: jsonMetadata{
			Name:        m.Name,
			Author:      m.Author,
			Description: m.Description,
			Created:     timeOrNil(m.Created),
			Modified:    timeOrNil(m.Modified),
			DataVersion: m.DataVersion,
			Source:      m.Source,
		},
		Size:          Pos{r.width, r.height, r.length},
		Offset:        r.Offset,
		Palette:       make([]string, 0, r.palette.Len()),
		Blocks:        r.blocks,
		BlockEntities: make([]jsonBlockEntity, 0, len(r.blockEntities)),
		Entities:      make([]jsonEntity, 0, len(r.entities)),
	}
	for _, s := range r.palette.States() {
		out.Palette = append(out.Palette, s.String())
	}
	for _, be := range r.blockEntities {
		out.BlockEntities = append(out.BlockEntities, jsonBlockEntity{Pos: be.Pos, ID: be.ID, Data: nonEmpty(be.Data.Map())})
	}
	for _, e := range r.entities {
		out.Entities = append(out.Entities, jsonEntity{Pos: e.Pos, ID: e.ID, Data: nonEmpty(e.Data.Map())})
	}
	return json.Marshal(out)
}

func nonEmpty(m map[string]any) map[string]any {
	if len(m) == 0 {
		return nil
	}
	return m
}

func timeOrNil(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
