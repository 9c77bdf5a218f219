package world

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/astei/anvilquery/chunk"
	"github.com/astei/anvilquery/config"
	"github.com/astei/anvilquery/nbt"
	"github.com/astei/anvilquery/region"
	"github.com/astei/anvilquery/version"
)

var ErrWorldLoadFailed = errors.New("world: load failed")

// ChunkError reports a chunk that could not be decoded. X and Z are the slot
// inside the region file.
type ChunkError struct {
	Path string
	X, Z int
	Err  error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("%s: chunk %d,%d: %s", e.Path, e.X, e.Z, e.Err)
}

func (e *ChunkError) Unwrap() error {
	return e.Err
}

// FileError reports a file that could not be decoded at all.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

type fileKind int

const (
	regionFile fileKind = iota
	nbtFile
)

type source struct {
	path string
	kind fileKind
}

// fileResult is what one worker produced for one file. decoded is false when
// the file as a whole could not be read.
type fileResult struct {
	decoded bool
	chunks  []*chunk.Chunk
	doc     *nbt.Compound
	errs    []error
}

// Load opens a region file, a standalone tag file or a world directory. It
// returns an error wrapping ErrWorldLoadFailed when a file cannot be read
// from disk, or when no file decoded at all. Individual chunks that fail to
// decode are skipped and reported by Errors.
func Load(ctx context.Context, path string, cfg config.Config) (*World, error) {
	versions := version.Default()
	if cfg.VersionsFile != "" {
		t, err := version.Load(cfg.VersionsFile)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrWorldLoadFailed, err)
		}
		versions = t
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWorldLoadFailed, err)
	}

	var sources []source
	var level *nbt.Compound
	var levelErr error
	if info.IsDir() {
		if sources, err = discover(path, cfg); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrWorldLoadFailed, err)
		}
		if cfg.ReadLevelDat {
			level, levelErr = readLevel(path)
		}
	} else {
		switch {
		case cfg.IsRegionFile(path):
			sources = []source{{path: path, kind: regionFile}}
		case cfg.IsNBTFile(path):
			sources = []source{{path: path, kind: nbtFile}}
		default:
			return nil, fmt.Errorf("%w: %s is not a region or tag file", ErrWorldLoadFailed, path)
		}
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("%w: no region files found in %s", ErrWorldLoadFailed, path)
	}

	builder := chunk.NewBuilder(versions)
	results := make([]fileResult, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers(cfg))
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			var res fileResult
			var err error
			if src.kind == regionFile {
				res, err = loadRegion(gctx, src.path, builder)
			} else {
				res, err = loadDocument(src.path)
			}
			if err != nil {
				return fmt.Errorf("%s: %w", src.path, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWorldLoadFailed, err)
	}

	w := &World{Path: path, level: level, versions: versions, jsonOpts: jsonOptions(cfg)}
	if levelErr != nil {
		w.errs = append(w.errs, levelErr)
	}
	decoded := 0
	for _, res := range results {
		w.errs = append(w.errs, res.errs...)
		if !res.decoded {
			continue
		}
		decoded++
		w.chunks = append(w.chunks, res.chunks...)
		if res.doc != nil {
			w.docs = append(w.docs, res.doc)
		}
	}
	if decoded == 0 {
		return nil, fmt.Errorf("%w: none of %d files decoded: %w", ErrWorldLoadFailed, len(sources), errors.Join(w.errs...))
	}
	w.init()

	slog.Info("world loaded", "path", path, "files", decoded, "chunks", len(w.chunks), "errors", len(w.errs))
	return w, nil
}

func workers(cfg config.Config) int {
	if cfg.Workers > 0 {
		return cfg.Workers
	}
	return config.Default().Workers
}

// discover lists the region files of a world: each configured folder below
// the world root and below every dimension directory. A directory that holds
// region files itself is accepted as well.
func discover(root string, cfg config.Config) ([]source, error) {
	dims := []string{root, filepath.Join(root, "DIM-1"), filepath.Join(root, "DIM1")}
	custom, err := filepath.Glob(filepath.Join(root, "dimensions", "*", "*"))
	if err != nil {
		return nil, err
	}
	sort.Strings(custom)
	dims = append(dims, custom...)

	var out []source
	for _, dim := range dims {
		for _, folder := range cfg.Folders {
			found, err := regionFilesIn(filepath.Join(dim, folder), cfg)
			if err != nil {
				return nil, err
			}
			out = append(out, found...)
		}
	}
	if len(out) == 0 {
		return regionFilesIn(root, cfg)
	}
	return out, nil
}

func regionFilesIn(dir string, cfg config.Config) ([]source, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var out []source
	for _, e := range entries {
		if e.IsDir() || !cfg.IsRegionFile(e.Name()) {
			continue
		}
		p := filepath.Join(dir, e.Name())
		slog.Debug("discovered region file", "path", p)
		out = append(out, source{path: p, kind: regionFile})
	}
	return out, nil
}

func readLevel(root string) (*nbt.Compound, error) {
	path := filepath.Join(root, "level.dat")
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, &FileError{Path: path, Err: err}
	}
	_, level, err := nbt.DecodeCompressed(data)
	if err != nil {
		slog.Warn("level.dat unreadable", "path", path, "err", err)
		return nil, &FileError{Path: path, Err: err}
	}
	return level, nil
}

// loadRegion runs one region file through decoding and chunk building.
// Returned errors are fatal to the whole load; problems local to the file or
// to a chunk are recorded in the result instead.
func loadRegion(ctx context.Context, path string, builder *chunk.Builder) (fileResult, error) {
	var res fileResult
	r, err := region.Open(path)
	if err != nil {
		if errors.Is(err, region.ErrRegionHeaderCorrupt) {
			slog.Warn("region file skipped", "path", path, "err", err)
			res.errs = append(res.errs, &FileError{Path: path, Err: err})
			return res, nil
		}
		return res, err
	}
	res.decoded = true

	payloads, slotErrs := r.Chunks()
	for _, err := range slotErrs {
		var se *region.SlotError
		if errors.As(err, &se) {
			res.errs = append(res.errs, &ChunkError{Path: path, X: se.X, Z: se.Z, Err: se.Err})
		} else {
			res.errs = append(res.errs, &FileError{Path: path, Err: err})
		}
	}

	for _, p := range payloads {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		c, err := buildChunk(builder, p)
		if err != nil {
			res.errs = append(res.errs, &ChunkError{Path: path, X: p.X, Z: p.Z, Err: err})
			continue
		}
		c.Source = path
		res.chunks = append(res.chunks, c)
	}

	for _, err := range res.errs {
		slog.Warn("chunk skipped", "err", err)
	}
	slog.Debug("region loaded", "path", path, "chunks", len(res.chunks), "errors", len(res.errs))
	return res, nil
}

func buildChunk(builder *chunk.Builder, p region.Payload) (*chunk.Chunk, error) {
	_, root, _, err := nbt.Decode(p.Data)
	if err != nil {
		return nil, err
	}
	c, err := builder.Build(root)
	if err != nil {
		return nil, err
	}
	c.SlotX, c.SlotZ = p.X, p.Z
	c.Timestamp = p.Timestamp
	return c, nil
}

func loadDocument(path string) (fileResult, error) {
	var res fileResult
	data, err := os.ReadFile(path)
	if err != nil {
		return res, err
	}
	_, root, err := nbt.DecodeCompressed(data)
	if err != nil {
		res.errs = append(res.errs, &FileError{Path: path, Err: err})
		return res, nil
	}
	res.decoded = true
	res.doc = root
	return res, nil
}
