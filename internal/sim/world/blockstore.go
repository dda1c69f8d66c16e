package world

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sort"

	"patternbuilder.ai/internal/sim/geom"
)

const chunkSize = 16

type ChunkKey struct {
	CX, CY, CZ int
}

func (k ChunkKey) less(o ChunkKey) bool {
	if k.CX != o.CX {
		return k.CX < o.CX
	}
	if k.CY != o.CY {
		return k.CY < o.CY
	}
	return k.CZ < o.CZ
}

type Chunk struct {
	Key    ChunkKey
	Blocks []uint16 // len = 16^3, x fastest, then z, then y

	dirty bool
	hash  [32]byte
}

func newChunk(k ChunkKey) *Chunk {
	return &Chunk{Key: k, Blocks: make([]uint16, chunkSize*chunkSize*chunkSize), dirty: true}
}

func (c *Chunk) index(x, y, z int) int {
	return x + z*chunkSize + y*chunkSize*chunkSize
}

func (c *Chunk) Get(x, y, z int) uint16 { return c.Blocks[c.index(x, y, z)] }

func (c *Chunk) Set(x, y, z int, b uint16) {
	i := c.index(x, y, z)
	if c.Blocks[i] == b {
		return
	}
	c.Blocks[i] = b
	c.dirty = true
}

func (c *Chunk) Digest() [32]byte {
	if c.dirty || c.hash == ([32]byte{}) {
		h := sha256.New()
		var tmp [2]byte
		for _, v := range c.Blocks {
			binary.LittleEndian.PutUint16(tmp[:], v)
			h.Write(tmp[:])
		}
		copy(c.hash[:], h.Sum(nil))
		c.dirty = false
	}
	return c.hash
}

func (c *Chunk) empty() bool {
	for _, v := range c.Blocks {
		if v != 0 {
			return false
		}
	}
	return true
}

// BlockStore is a sparse chunked voxel grid. Block names are interned in a
// palette; id 0 is air.
type BlockStore struct {
	palette []string
	index   map[string]uint16
	// Accessed only from the world loop goroutine.
	chunks map[ChunkKey]*Chunk
}

func NewBlockStore() *BlockStore {
	return &BlockStore{
		palette: []string{""},
		index:   map[string]uint16{"": 0},
		chunks:  map[ChunkKey]*Chunk{},
	}
}

func split(p geom.Vec3i) (ChunkKey, int, int, int) {
	k := ChunkKey{CX: floorDiv(p.X, chunkSize), CY: floorDiv(p.Y, chunkSize), CZ: floorDiv(p.Z, chunkSize)}
	return k, mod(p.X, chunkSize), mod(p.Y, chunkSize), mod(p.Z, chunkSize)
}

func (s *BlockStore) Get(p geom.Vec3i) string {
	k, x, y, z := split(p)
	ch, ok := s.chunks[k]
	if !ok {
		return ""
	}
	return s.palette[ch.Get(x, y, z)]
}

func (s *BlockStore) Set(p geom.Vec3i, block string) {
	id := s.intern(block)
	k, x, y, z := split(p)
	ch, ok := s.chunks[k]
	if !ok {
		if id == 0 {
			return
		}
		ch = newChunk(k)
		s.chunks[k] = ch
	}
	ch.Set(x, y, z, id)
}

func (s *BlockStore) intern(block string) uint16 {
	if id, ok := s.index[block]; ok {
		return id
	}
	id := uint16(len(s.palette))
	s.palette = append(s.palette, block)
	s.index[block] = id
	return id
}

// Keys returns the non-empty chunk keys in sorted order.
func (s *BlockStore) Keys() []ChunkKey {
	keys := make([]ChunkKey, 0, len(s.chunks))
	for k, ch := range s.chunks {
		if ch.empty() {
			continue
		}
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].less(keys[j]) })
	return keys
}

func (s *BlockStore) Palette() []string { return append([]string(nil), s.palette...) }

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func mod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

func (s *BlockStore) Chunk(k ChunkKey) (*Chunk, bool) {
	ch, ok := s.chunks[k]
	return ch, ok
}

// load replaces the store contents. Block ids in chunks refer to palette.
func (s *BlockStore) load(palette []string, chunks map[ChunkKey][]uint16) error {
	if len(palette) == 0 || palette[0] != "" {
		return fmt.Errorf("palette[0] must be air")
	}
	index := make(map[string]uint16, len(palette))
	for i, b := range palette {
		if _, dup := index[b]; dup {
			return fmt.Errorf("duplicate palette entry %q", b)
		}
		index[b] = uint16(i)
	}
	out := make(map[ChunkKey]*Chunk, len(chunks))
	for k, blocks := range chunks {
		if len(blocks) != chunkSize*chunkSize*chunkSize {
			return fmt.Errorf("chunk %v: bad block count %d", k, len(blocks))
		}
		for _, id := range blocks {
			if int(id) >= len(palette) {
				return fmt.Errorf("chunk %v: palette id %d out of range", k, id)
			}
		}
		ch := newChunk(k)
		copy(ch.Blocks, blocks)
		out[k] = ch
	}
	s.palette = append([]string(nil), palette...)
	s.index = index
	s.chunks = out
	return nil
}
