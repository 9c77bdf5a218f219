// Package world loads region and tag files into one queryable collection.
package world

import (
	"io"

	"github.com/astei/anvilquery/chunk"
	"github.com/astei/anvilquery/config"
	"github.com/astei/anvilquery/export"
	"github.com/astei/anvilquery/nbt"
	"github.com/astei/anvilquery/query"
	"github.com/astei/anvilquery/version"
)

// World is an immutable set of loaded chunks and standalone documents. All
// of its methods are safe for concurrent use.
type World struct {
	Path string

	chunks []*chunk.Chunk
	docs   []*nbt.Compound
	level  *nbt.Compound
	errs   []error

	versions *version.Table
	engine   *query.Engine
	jsonOpts export.Options
}

func (w *World) init() {
	w.engine = query.NewEngine(w.chunks, w.docs)
}

func jsonOptions(cfg config.Config) export.Options {
	return export.Options{Indent: cfg.JSON.Indent}
}

// Chunks returns the loaded chunks in scan order: files in discovery order,
// slots within a file x fastest.
func (w *World) Chunks() []*chunk.Chunk {
	return w.chunks
}

// Documents returns the standalone tag files that were loaded.
func (w *World) Documents() []*nbt.Compound {
	return w.docs
}

// Level returns the decoded level.dat, if the world had one.
func (w *World) Level() (*nbt.Compound, bool) {
	return w.level, w.level != nil
}

// Errors lists everything that was skipped while loading.
func (w *World) Errors() []error {
	return w.errs
}

// MCVersion returns the world's DataVersion and the release it belongs to.
// The version recorded in level.dat wins; without it the newest DataVersion
// of any loaded chunk or document is used.
func (w *World) MCVersion() (int, version.Release) {
	v := w.dataVersion()
	return v, w.versions.Resolve(v)
}

func (w *World) dataVersion() int {
	if data, ok := w.level.Compound("Data"); ok {
		if v, ok := data.Number("DataVersion"); ok {
			return int(v)
		}
	}
	best := 0
	for _, c := range w.chunks {
		if c.DataVersion > best {
			best = c.DataVersion
		}
	}
	for _, d := range w.docs {
		if v, ok := d.Number("DataVersion"); ok && int(v) > best {
			best = int(v)
		}
	}
	return best
}

func (w *World) SearchCompound(name string) (bool, []*nbt.Compound) {
	return w.engine.SearchCompound(name)
}

func (w *World) FirstCompound(name string) (*nbt.Compound, bool) {
	return w.engine.FirstCompound(name)
}

func (w *World) SearchBlocks(ids []string) map[string][]query.Block {
	return w.engine.SearchBlocks(ids)
}

func (w *World) CountBlocks(ids []string) map[string]int {
	return w.engine.CountBlocks(ids)
}

// document gathers every chunk tree and standalone document into one list.
func (w *World) document() *nbt.List {
	items := make([]nbt.Tag, 0, len(w.chunks)+len(w.docs))
	for _, c := range w.chunks {
		items = append(items, c.Root)
	}
	for _, d := range w.docs {
		items = append(items, d)
	}
	return &nbt.List{Elem: nbt.TagCompound, Items: items}
}

// ToJSON writes every loaded tree to path as one JSON array.
func (w *World) ToJSON(path string) error {
	return export.WriteFile(path, w.document(), w.jsonOpts)
}

func (w *World) WriteJSON(out io.Writer) error {
	return export.WriteJSON(out, w.document(), w.jsonOpts)
}
