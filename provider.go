package schem

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/df-mc/dragonfly/server/world"
	"github.com/df-mc/dragonfly/server/world/chunk"
	"github.com/df-mc/goleveldb/leveldb"
	"github.com/google/uuid"
)

// Provider implements world.Provider on top of a schematic, so that a dragonfly
// server can host it as an overworld. The region is placed with its minimum corner at
// an origin; columns the region does not reach, and every other dimension, report
// leveldb.ErrNotFound so the world generator fills them.
// Note: the whole schematic is held in memory.
type Provider struct {
	mu       sync.RWMutex
	path     string
	format   Format
	mode     Compression
	opts     []Option
	settings *world.Settings

	region  *Region
	origin  cube.Pos
	ids     *runtimeIDs
	columns map[world.ChunkPos]*chunk.Column

	// Player spawn positions
	playerSpawns map[uuid.UUID]cube.Pos

	dirty bool

	// Background save subsystem
	saveCh chan struct{}
	stopCh chan struct{}
}

var _ world.Provider = (*Provider)(nil)

// NewProvider serves r with its minimum corner at origin. The provider keeps r; use
// Region to read it back with stored columns applied. A provider created this way has
// no file to save to.
func NewProvider(r *Region, origin cube.Pos) *Provider {
	return &Provider{
		region:       r,
		origin:       origin,
		settings:     loadSettings(r, origin),
		ids:          newRuntimeIDs(),
		columns:      make(map[world.ChunkPos]*chunk.Column),
		playerSpawns: make(map[uuid.UUID]cube.Pos),
	}
}

// Open loads the schematic at path and serves it with its offset as origin. Save and
// Close write it back in the format and compression it was read with.
func Open(path string, opts ...Option) (*Provider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schematic: %w", err)
	}
	f, mode, err := Detect(data, opts...)
	if err != nil {
		return nil, fmt.Errorf("detect %s: %w", path, err)
	}
	r, err := Load(data, f, opts...)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	p := NewProvider(r, cube.Pos{r.Offset[0], r.Offset[1], r.Offset[2]})
	p.path, p.format, p.mode, p.opts = path, f, mode, opts
	return p, nil
}

// Settings returns the world settings.
func (p *Provider) Settings() *world.Settings {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.settings
}

// SaveSettings saves the world settings.
func (p *Provider) SaveSettings(s *world.Settings) {
	p.mu.Lock()
	p.settings = s
	p.dirty = true
	p.mu.Unlock()
}

// LoadColumn returns the overworld column at pos.
func (p *Provider) LoadColumn(pos world.ChunkPos, dim world.Dimension) (*chunk.Column, error) {
	if dim != world.Overworld {
		return nil, leveldb.ErrNotFound
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	if col, ok := p.columns[pos]; ok {
		return col, nil
	}
	col, ok := regionToColumn(p.region, p.origin, pos, dim.Range(), p.ids)
	if !ok {
		return nil, leveldb.ErrNotFound
	}
	return col, nil
}

// StoreColumn keeps col until the next save. Only the part that overlaps the region
// is written back; columns of other dimensions are discarded.
func (p *Provider) StoreColumn(pos world.ChunkPos, dim world.Dimension, col *chunk.Column) error {
	if dim != world.Overworld {
		return nil
	}
	if _, ok := columnSpan(p.region, p.origin, pos, dim.Range()); !ok {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.columns[pos] = col
	p.dirty = true
	return nil
}

// LoadPlayerSpawnPosition loads a player's spawn position.
func (p *Provider) LoadPlayerSpawnPosition(id uuid.UUID) (cube.Pos, bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	pos, ok := p.playerSpawns[id]
	return pos, ok, nil
}

// SavePlayerSpawnPosition saves a player's spawn position.
func (p *Provider) SavePlayerSpawnPosition(id uuid.UUID, pos cube.Pos) error {
	p.mu.Lock()
	p.playerSpawns[id] = pos
	p.dirty = true
	p.mu.Unlock()
	return nil
}

// Region applies the stored columns and returns a copy of the schematic, settings
// included.
func (p *Provider) Region() (*Region, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.flush(); err != nil {
		return nil, err
	}
	return p.region.Clone(), nil
}

// IsDirty returns whether the provider has unsaved changes.
func (p *Provider) IsDirty() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.dirty
}

// Close saves pending changes if the provider was opened from a file.
func (p *Provider) Close() error {
	p.DisableBackgroundSaves()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.dirty && p.path != "" {
		return p.saveInternal()
	}
	return nil
}

// Save forces a save to the file the provider was opened from.
func (p *Provider) Save() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.saveInternal()
}

// flush writes stored columns and settings into the region. Must be called with the
// lock held.
func (p *Provider) flush() error {
	for pos, col := range p.columns {
		if err := columnToRegion(p.region, p.origin, pos, col, p.ids); err != nil {
			return fmt.Errorf("store column %v: %w", pos, err)
		}
	}
	storeSettings(p.region, p.settings)
	return nil
}

var errNoPath = errors.New("schem: provider has no file to save to")

// saveInternal writes the region to disk. Must be called with the lock held.
func (p *Provider) saveInternal() error {
	if p.path == "" {
		return errNoPath
	}
	if err := p.flush(); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := Write(&buf, p.region, p.format, p.mode, p.opts...); err != nil {
		return err
	}
	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, p.path); err != nil {
		return fmt.Errorf("replace %s: %w", p.path, err)
	}
	p.dirty = false
	return nil
}

// EnableBackgroundSaves starts a goroutine that coalesces SaveAsync requests and
// writes the schematic to disk.
func (p *Provider) EnableBackgroundSaves() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.saveCh != nil && p.stopCh != nil {
		return
	}
	p.saveCh = make(chan struct{}, 1)
	p.stopCh = make(chan struct{})

	go p.runSaver(p.saveCh, p.stopCh)
}

// DisableBackgroundSaves stops the background save goroutine.
func (p *Provider) DisableBackgroundSaves() {
	p.mu.Lock()
	stop := p.stopCh
	p.stopCh = nil
	p.saveCh = nil
	p.mu.Unlock()

	if stop != nil {
		close(stop)
	}
}

// SaveAsync schedules a background save and returns immediately. It does nothing
// unless background saves are enabled.
func (p *Provider) SaveAsync() {
	p.mu.RLock()
	ch := p.saveCh
	p.mu.RUnlock()

	if ch == nil {
		return
	}
	select {
	case ch <- struct{}{}:
	default:
	}
}

func (p *Provider) runSaver(saveCh, stopCh <-chan struct{}) {
	for {
		select {
		case <-saveCh:
		coalesce:
			for {
				select {
				case <-saveCh:
				default:
					break coalesce
				}
			}
			p.mu.Lock()
			_ = p.saveInternal()
			p.mu.Unlock()
		case <-stopCh:
			return
		}
	}
}
