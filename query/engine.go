// Package query answers tag and block lookups over a loaded set of chunks.
//
// An Engine never changes the chunks it is given. Block lookups are served
// from caches that are filled on first use and kept for the Engine's
// lifetime, so an Engine is safe for concurrent use.
package query

import (
	"sync"

	"github.com/willf/bitset"

	"github.com/astei/anvilquery/chunk"
	"github.com/astei/anvilquery/nbt"
)

type Coord struct {
	X, Y, Z int
}

// Block is one matched block position. Chunk holds the chunk X, the section
// Y and the chunk Z of the section the block sits in. Properties is shared
// with the chunk's palette and must not be modified.
type Block struct {
	Name       string
	Coord      Coord
	Chunk      Coord
	Properties map[string]string
}

// sectionRef points at a section whose palette contains an identifier. match
// holds the palette indices carrying that identifier.
type sectionRef struct {
	chunk   *chunk.Chunk
	section *chunk.Section
	match   *bitset.BitSet
}

type cached struct {
	once   sync.Once
	blocks []Block
}

type Engine struct {
	chunks []*chunk.Chunk
	docs   []*nbt.Compound

	indexOnce sync.Once
	index     map[string][]sectionRef

	mu      sync.Mutex
	results map[string]*cached
}

// NewEngine creates an engine over chunks, in scan order, and standalone
// documents searched after them.
func NewEngine(chunks []*chunk.Chunk, docs []*nbt.Compound) *Engine {
	return &Engine{
		chunks:  chunks,
		docs:    docs,
		results: make(map[string]*cached),
	}
}

func (e *Engine) buildIndex() {
	e.index = make(map[string][]sectionRef)
	for _, c := range e.chunks {
		for _, s := range c.Sections {
			matches := make(map[string]*bitset.BitSet, len(s.Palette))
			var order []string
			for i, state := range s.Palette {
				m, ok := matches[state.Name]
				if !ok {
					m = bitset.New(uint(len(s.Palette)))
					matches[state.Name] = m
					order = append(order, state.Name)
				}
				m.Set(uint(i))
			}
			for _, name := range order {
				e.index[name] = append(e.index[name], sectionRef{chunk: c, section: s, match: matches[name]})
			}
		}
	}
}

func (e *Engine) sections(id string) []sectionRef {
	e.indexOnce.Do(e.buildIndex)
	return e.index[id]
}

// SearchBlocks returns every position holding each of the given identifiers.
// Every identifier is a key of the result, with an empty slice when nothing
// matched. Positions come in chunk order, then section order, then by
// section-local index.
func (e *Engine) SearchBlocks(ids []string) map[string][]Block {
	out := make(map[string][]Block, len(ids))
	for _, id := range ids {
		out[id] = e.blocks(id)
	}
	return out
}

func (e *Engine) blocks(id string) []Block {
	e.mu.Lock()
	r, ok := e.results[id]
	if !ok {
		r = &cached{}
		e.results[id] = r
	}
	e.mu.Unlock()

	r.once.Do(func() {
		r.blocks = []Block{}
		for _, ref := range e.sections(id) {
			r.blocks = appendBlocks(r.blocks, ref)
		}
	})
	return r.blocks
}

func appendBlocks(dst []Block, ref sectionRef) []Block {
	c, s := ref.chunk, ref.section
	where := Coord{X: c.X, Y: s.Y, Z: c.Z}
	for i := 0; i < chunk.BlocksPerSection; i++ {
		p := 0
		if s.Indices != nil {
			p = int(s.Indices[i])
		}
		if !ref.match.Test(uint(p)) {
			continue
		}
		x, y, z := c.BlockPos(s.Y, i)
		state := s.Palette[p]
		dst = append(dst, Block{
			Name:       state.Name,
			Coord:      Coord{X: x, Y: y, Z: z},
			Chunk:      where,
			Properties: state.Properties,
		})
	}
	return dst
}

// CountBlocks returns how many positions hold each identifier without
// collecting the positions themselves.
func (e *Engine) CountBlocks(ids []string) map[string]int {
	out := make(map[string]int, len(ids))
	for _, id := range ids {
		n := 0
		for _, ref := range e.sections(id) {
			s := ref.section
			if s.Indices == nil {
				n += chunk.BlocksPerSection
				continue
			}
			for _, p := range s.Indices {
				if ref.match.Test(uint(p)) {
					n++
				}
			}
		}
		out[id] = n
	}
	return out
}
