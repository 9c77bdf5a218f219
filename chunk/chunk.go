// Package chunk turns decoded chunk tag trees into sections of palette
// indexed block states.
package chunk

import (
	"errors"
	"time"

	"github.com/astei/anvilquery/nbt"
)

var ErrMalformedNbt = errors.New("chunk: malformed chunk data")
var ErrSectionDataSizeMismatch = errors.New("chunk: section data size mismatch")

// BlockState is one palette entry. Properties is nil for states without
// properties and must not be modified; it is shared by every block using
// the entry.
type BlockState struct {
	Name       string
	Properties map[string]string
}

type Section struct {
	Y       int
	Palette []BlockState

	// Indices holds one palette index per block position, or nil when the
	// palette has a single entry and the whole section is that state.
	Indices []uint16
}

// At returns the state stored at a section-local index.
func (s *Section) At(i int) BlockState {
	if s.Indices == nil {
		return s.Palette[0]
	}
	return s.Palette[s.Indices[i]]
}

// Uniform reports whether every position in the section holds the same state.
func (s *Section) Uniform() bool {
	return s.Indices == nil
}

type Chunk struct {
	X, Z        int
	DataVersion int
	Sections    []*Section

	BlockEntities *nbt.List
	Entities      *nbt.List

	// Root is the complete tree the chunk was built from.
	Root *nbt.Compound

	Source       string
	SlotX, SlotZ int
	Timestamp    time.Time
}

// BlockPos converts a section-local index in the section at height sy into
// absolute block coordinates.
func (c *Chunk) BlockPos(sy, i int) (x, y, z int) {
	lx, ly, lz := LocalPos(i)
	return c.X*16 + lx, sy*16 + ly, c.Z*16 + lz
}
