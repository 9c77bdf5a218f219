package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astei/anvilquery/nbt"
)

func writeStructure(t *testing.T) string {
	path := filepath.Join(t.TempDir(), "house.nbt")
	root := nbt.NewCompound().
		Put("DataVersion", nbt.Int(3465)).
		Put("author", nbt.String("builder"))
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	require.NoError(t, nbt.Marshal(gw, "", root))
	require.NoError(t, gw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	var out bytes.Buffer
	cfg := filepath.Join(t.TempDir(), "none.yaml")
	err := newApp(&out).Run(append([]string{"anvilquery", "--config", cfg}, args...))
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version", writeStructure(t))
	require.NoError(t, err)
	assert.Equal(t, "1.20.1 (DataVersion 3465)\n", out)
}

func TestCompoundCommand(t *testing.T) {
	path := writeStructure(t)

	out, err := run(t, "compound", "--first", path, "author")
	require.NoError(t, err)
	assert.Contains(t, out, `"author": "builder"`)

	out, err = run(t, "compound", path, "nonexistent_tag")
	require.NoError(t, err)
	assert.Equal(t, "no compound holds \"nonexistent_tag\"\n", out)
}

func TestBlocksCountCommand(t *testing.T) {
	out, err := run(t, "blocks", "--count", writeStructure(t), "minecraft:stone")
	require.NoError(t, err)
	assert.Equal(t, "minecraft:stone\t0\n", out)
}

func TestMissingWorld(t *testing.T) {
	_, err := run(t, "version", filepath.Join(t.TempDir(), "nowhere"))
	assert.Error(t, err)
}

func TestFormatProperties(t *testing.T) {
	assert.Equal(t, "", formatProperties(nil))
	assert.Equal(t, "\t[facing=north,half=top]", formatProperties(map[string]string{"half": "top", "facing": "north"}))
}
