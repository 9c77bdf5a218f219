package world

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	mcregion "github.com/Tnze/go-mc/save/region"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astei/anvilquery/chunk"
	"github.com/astei/anvilquery/config"
	"github.com/astei/anvilquery/nbt"
	"github.com/astei/anvilquery/query"
	"github.com/astei/anvilquery/region"
)

func mustList(t *testing.T, elem nbt.Type, items ...nbt.Tag) *nbt.List {
	l, err := nbt.NewList(elem, items...)
	require.NoError(t, err)
	return l
}

// stoneChunk has one section at sy whose only stone block sits at local
// index 0; everything else is air.
func stoneChunk(t *testing.T, cx, cz, sy int) *nbt.Compound {
	data := make([]int64, 256)
	data[0] = 1

	palette := mustList(t, nbt.TagCompound,
		nbt.NewCompound().Put("Name", nbt.String("minecraft:air")),
		nbt.NewCompound().Put("Name", nbt.String("minecraft:stone")),
	)
	section := nbt.NewCompound().
		Put("Y", nbt.Byte(sy)).
		Put("block_states", nbt.NewCompound().Put("palette", palette).Put("data", nbt.LongArray(data)))
	return nbt.NewCompound().
		Put("DataVersion", nbt.Int(3465)).
		Put("xPos", nbt.Int(cx)).
		Put("zPos", nbt.Int(cz)).
		Put("Status", nbt.String("minecraft:full")).
		Put("sections", mustList(t, nbt.TagCompound, section))
}

func zlibPayload(t *testing.T, root *nbt.Compound) []byte {
	raw, err := nbt.Bytes("", root)
	require.NoError(t, err)
	var buf bytes.Buffer
	buf.WriteByte(2)
	zw := zlib.NewWriter(&buf)
	_, err = zw.Write(raw)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

type sector struct {
	x, z int
	data []byte
}

func writeRegion(t *testing.T, path string, sectors ...sector) {
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	r, err := mcregion.Create(path)
	require.NoError(t, err)
	for _, s := range sectors {
		require.NoError(t, r.WriteSector(s.x, s.z, s.data))
	}
	require.NoError(t, r.Close())
}

func writeGzipNBT(t *testing.T, path string, root *nbt.Compound) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	require.NoError(t, nbt.Marshal(gw, "", root))
	require.NoError(t, gw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Workers = 2
	cfg.JSON.Indent = ""
	return cfg
}

func TestLoadWorldEndToEnd(t *testing.T) {
	dir := t.TempDir()
	writeRegion(t, filepath.Join(dir, "region", "r.0.0.mca"),
		sector{0, 0, zlibPayload(t, stoneChunk(t, 0, 0, 0))},
		sector{3, 1, zlibPayload(t, stoneChunk(t, 3, 1, -2))},
	)
	writeRegion(t, filepath.Join(dir, "DIM-1", "region", "r.-1.0.mca"),
		sector{31, 0, zlibPayload(t, stoneChunk(t, -1, 0, 4))},
	)
	writeGzipNBT(t, filepath.Join(dir, "level.dat"),
		nbt.NewCompound().Put("Data", nbt.NewCompound().Put("DataVersion", nbt.Int(3578))))

	w, err := Load(context.Background(), dir, testConfig())
	require.NoError(t, err)
	assert.Empty(t, w.Errors())
	require.Len(t, w.Chunks(), 3)

	first := w.Chunks()[0]
	assert.Equal(t, filepath.Join(dir, "region", "r.0.0.mca"), first.Source)
	assert.Equal(t, [2]int{0, 0}, [2]int{first.SlotX, first.SlotZ})

	v, rel := w.MCVersion()
	assert.Equal(t, 3578, v, "level.dat wins over chunk versions")
	assert.Equal(t, "1.20.2", rel.Label)

	stone := w.SearchBlocks([]string{"minecraft:stone"})["minecraft:stone"]
	require.Len(t, stone, 3)
	assert.Equal(t, query.Coord{X: 0, Y: 0, Z: 0}, stone[0].Coord)
	assert.Equal(t, query.Coord{X: 48, Y: -32, Z: 16}, stone[1].Coord)
	assert.Equal(t, query.Coord{X: 3, Y: -2, Z: 1}, stone[1].Chunk)
	assert.Equal(t, query.Coord{X: -16, Y: 64, Z: 0}, stone[2].Coord)

	counts := w.CountBlocks([]string{"minecraft:air"})
	assert.Equal(t, 3*(chunk.BlocksPerSection-1), counts["minecraft:air"])

	ok, found := w.SearchCompound("Status")
	assert.True(t, ok)
	assert.Len(t, found, 3)

	ok, found = w.SearchCompound("nonexistent_tag")
	assert.False(t, ok)
	assert.Empty(t, found)
}

func TestLoadIsolatesCorruptChunks(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "r.0.0.mca")
	writeRegion(t, path,
		sector{0, 0, zlibPayload(t, stoneChunk(t, 0, 0, 0))},
		sector{1, 0, []byte{2, 'n', 'o', 't', 'z', 'l', 'i', 'b'}},
		sector{2, 0, zlibPayload(t, nbt.NewCompound().Put("DataVersion", nbt.Int(3465)))},
		sector{3, 0, []byte{42, 0, 0}},
	)

	w, err := Load(context.Background(), path, testConfig())
	require.NoError(t, err)
	require.Len(t, w.Chunks(), 1)

	errs := w.Errors()
	require.Len(t, errs, 3)
	var ce *ChunkError
	require.True(t, errors.As(errs[0], &ce))
	assert.Equal(t, path, ce.Path)
	assert.Equal(t, 1, ce.X)
	assert.ErrorIs(t, errs[1], region.ErrUnsupportedCompression)
	require.True(t, errors.As(errs[2], &ce))
	assert.Equal(t, 2, ce.X, "build failures follow slot failures")
	assert.ErrorIs(t, errs[2], chunk.ErrMalformedNbt)

	v, _ := w.MCVersion()
	assert.Equal(t, 3465, v, "without level.dat the newest chunk version is used")
}

func TestLoadFailures(t *testing.T) {
	ctx := context.Background()

	_, err := Load(ctx, filepath.Join(t.TempDir(), "missing"), testConfig())
	assert.ErrorIs(t, err, ErrWorldLoadFailed)

	_, err = Load(ctx, t.TempDir(), testConfig())
	assert.ErrorIs(t, err, ErrWorldLoadFailed, "no region files")

	short := filepath.Join(t.TempDir(), "r.0.0.mca")
	require.NoError(t, os.WriteFile(short, make([]byte, 100), 0o644))
	_, err = Load(ctx, short, testConfig())
	assert.ErrorIs(t, err, ErrWorldLoadFailed, "no file decoded")

	dir := t.TempDir()
	writeRegion(t, filepath.Join(dir, "region", "r.0.0.mca"), sector{0, 0, zlibPayload(t, stoneChunk(t, 0, 0, 0))})
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = Load(cancelled, dir, testConfig())
	assert.ErrorIs(t, err, ErrWorldLoadFailed)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadEmptyRegionAlongsideGood(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "region"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "region", "r.5.5.mca"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "region", "r.6.5.mca"), make([]byte, 10), 0o644))
	writeRegion(t, filepath.Join(dir, "region", "r.0.0.mca"), sector{0, 0, zlibPayload(t, stoneChunk(t, 0, 0, 0))})

	w, err := Load(context.Background(), dir, testConfig())
	require.NoError(t, err)
	assert.Len(t, w.Chunks(), 1)
	require.Len(t, w.Errors(), 1)
	var fe *FileError
	assert.True(t, errors.As(w.Errors()[0], &fe))
}

func TestLoadStandaloneDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "castle.nbt")
	blocks := mustList(t, nbt.TagCompound,
		nbt.NewCompound().Put("state", nbt.Int(0)).Put("nbt", nbt.NewCompound().Put("Items", &nbt.List{Elem: nbt.TagEnd})))
	writeGzipNBT(t, path, nbt.NewCompound().Put("DataVersion", nbt.Int(2586)).Put("blocks", blocks))

	w, err := Load(context.Background(), path, testConfig())
	require.NoError(t, err)
	assert.Empty(t, w.Chunks())
	require.Len(t, w.Documents(), 1)

	c, ok := w.FirstCompound("Items")
	require.True(t, ok)
	assert.True(t, c.Has("Items"))

	_, rel := w.MCVersion()
	assert.Equal(t, "1.16.5", rel.Label)
}

func TestToJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "r.0.0.mca")
	writeRegion(t, path,
		sector{0, 0, zlibPayload(t, stoneChunk(t, 0, 0, 0))},
		sector{1, 0, zlibPayload(t, stoneChunk(t, 1, 0, 0))},
	)
	w, err := Load(context.Background(), path, testConfig())
	require.NoError(t, err)

	out := filepath.Join(dir, "world.json")
	require.NoError(t, w.ToJSON(out))
	data, err := os.ReadFile(out)
	require.NoError(t, err)

	var roots []map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &roots))
	require.Len(t, roots, 2)
	assert.Equal(t, float64(1), roots[1]["xPos"])

	var buf bytes.Buffer
	require.NoError(t, w.WriteJSON(&buf))
	assert.Equal(t, string(data), buf.String())
}
