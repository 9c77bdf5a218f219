package chunk

import (
	"fmt"
	"strconv"

	"github.com/astei/anvilquery/nbt"
	"github.com/astei/anvilquery/version"
)

// Builder builds chunks out of decoded payloads. The version table decides
// which bit packing a chunk's block states use.
type Builder struct {
	Versions *version.Table
}

func NewBuilder(versions *version.Table) *Builder {
	if versions == nil {
		versions = version.Default()
	}
	return &Builder{Versions: versions}
}

// layout names the tag keys of one on-disk chunk format.
type layout struct {
	sections      string
	blockEntities string
	entities      string
	// states is the compound inside a section holding palette and data, or
	// empty when both sit on the section itself.
	states  string
	palette string
	data    string
}

var (
	// 1.18 and later keep everything at the root.
	flatLayout = layout{
		sections:      "sections",
		blockEntities: "block_entities",
		entities:      "entities",
		states:        "block_states",
		palette:       "palette",
		data:          "data",
	}
	// 1.13 to 1.17 nest the chunk under Level.
	levelLayout = layout{
		sections:      "Sections",
		blockEntities: "TileEntities",
		entities:      "Entities",
		palette:       "Palette",
		data:          "BlockStates",
	}
)

func (b *Builder) Build(root *nbt.Compound) (*Chunk, error) {
	if root == nil {
		return nil, fmt.Errorf("%w: no root compound", ErrMalformedNbt)
	}
	c := &Chunk{Root: root}
	if v, ok := root.Number("DataVersion"); ok {
		c.DataVersion = int(v)
	}

	body, lay := root, flatLayout
	if level, ok := root.Compound("Level"); ok {
		body, lay = level, levelLayout
	}

	if err := readPosition(c, body); err != nil {
		return nil, err
	}

	c.BlockEntities, _ = body.List(lay.blockEntities)
	c.Entities, _ = body.List(lay.entities)
	if c.Entities == nil {
		// entity region files
		c.Entities, _ = root.List("Entities")
	}

	sections, ok := body.List(lay.sections)
	if !ok {
		return c, nil
	}
	padded := b.Versions.PaddedPacking(c.DataVersion)
	for i, sc := range sections.Compounds() {
		s, err := readSection(sc, lay, padded)
		if err != nil {
			return nil, fmt.Errorf("chunk %d,%d section %d: %w", c.X, c.Z, i, err)
		}
		if s != nil {
			c.Sections = append(c.Sections, s)
		}
	}
	return c, nil
}

func readPosition(c *Chunk, body *nbt.Compound) error {
	x, okX := body.Number("xPos")
	z, okZ := body.Number("zPos")
	if okX && okZ {
		c.X, c.Z = int(x), int(z)
		return nil
	}
	if pos, ok := body.IntArray("Position"); ok && len(pos) == 2 {
		c.X, c.Z = int(pos[0]), int(pos[1])
		return nil
	}
	return fmt.Errorf("%w: chunk has no position", ErrMalformedNbt)
}

// readSection returns nil for sections that carry no block palette.
func readSection(sc *nbt.Compound, lay layout, padded bool) (*Section, error) {
	y, ok := sc.Number("Y")
	if !ok {
		return nil, fmt.Errorf("%w: section has no Y", ErrMalformedNbt)
	}

	states := sc
	if lay.states != "" {
		if states, ok = sc.Compound(lay.states); !ok {
			return nil, nil
		}
	}
	paletteTag, ok := states.List(lay.palette)
	if !ok || paletteTag.Len() == 0 {
		return nil, nil
	}

	s := &Section{Y: int(y)}
	for _, entry := range paletteTag.Compounds() {
		state, err := readBlockState(entry)
		if err != nil {
			return nil, err
		}
		s.Palette = append(s.Palette, state)
	}
	if len(s.Palette) != paletteTag.Len() {
		return nil, fmt.Errorf("%w: palette holds %s entries", ErrMalformedNbt, paletteTag.Elem)
	}
	if len(s.Palette) == 1 {
		return s, nil
	}

	data, ok := states.LongArray(lay.data)
	if !ok {
		return nil, fmt.Errorf("%w: palette of %d entries without data", ErrSectionDataSizeMismatch, len(s.Palette))
	}
	indices, err := Unpack(data, BitsFor(len(s.Palette)), BlocksPerSection, padded)
	if err != nil {
		return nil, err
	}
	for i, idx := range indices {
		if int(idx) >= len(s.Palette) {
			return nil, fmt.Errorf("%w: index %d at %d beyond palette of %d", ErrMalformedNbt, idx, i, len(s.Palette))
		}
	}
	s.Indices = indices
	return s, nil
}

func readBlockState(entry *nbt.Compound) (BlockState, error) {
	name, ok := entry.Str("Name")
	if !ok {
		return BlockState{}, fmt.Errorf("%w: palette entry has no Name", ErrMalformedNbt)
	}
	state := BlockState{Name: name}
	props, ok := entry.Compound("Properties")
	if !ok || props.Len() == 0 {
		return state, nil
	}
	state.Properties = make(map[string]string, props.Len())
	for _, e := range props.Entries() {
		state.Properties[e.Name] = formatProperty(e.Value)
	}
	return state, nil
}

func formatProperty(t nbt.Tag) string {
	switch v := t.(type) {
	case nbt.String:
		return string(v)
	case nbt.Float:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	case nbt.Double:
		return strconv.FormatFloat(float64(v), 'g', -1, 64)
	}
	if n, ok := nbt.AsNumber(t); ok {
		return strconv.FormatInt(n, 10)
	}
	return fmt.Sprint(t)
}
