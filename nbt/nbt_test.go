package nbt

import (
	"bytes"
	"math"
	"testing"

	mcnbt "github.com/Tnze/go-mc/nbt"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func everyVariant() *Compound {
	inner := NewCompound().
		Put("id", String("minecraft:chest")).
		Put("x", Int(-12))
	return NewCompound().
		Put("byte", Byte(-128)).
		Put("short", Short(math.MaxInt16)).
		Put("int", Int(math.MinInt32)).
		Put("long", Long(math.MaxInt64)).
		Put("float", Float(3.25)).
		Put("double", Double(-0.125)).
		Put("bytes", ByteArray{0, 1, 0xff}).
		Put("string", String("héllo wörld")).
		Put("ints", IntArray{1, -2, math.MaxInt32}).
		Put("longs", LongArray{math.MinInt64, 0, 1 << 40}).
		Put("compound", inner).
		Put("list", &List{Elem: TagCompound, Items: []Tag{inner, NewCompound()}}).
		Put("nested", &List{Elem: TagList, Items: []Tag{
			&List{Elem: TagShort, Items: []Tag{Short(1), Short(2)}},
			&List{Elem: TagEnd},
		}}).
		Put("empty", &List{Elem: TagEnd})
}

func TestRoundTrip(t *testing.T) {
	root := everyVariant()
	data, err := Bytes("Level", root)
	require.NoError(t, err)

	name, decoded, n, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "Level", name)
	assert.Equal(t, len(data), n)
	assert.Equal(t, root, decoded)
	assert.Equal(t, root.Names(), decoded.Names())
}

func TestRoundTripEachVariant(t *testing.T) {
	for _, entry := range everyVariant().Entries() {
		t.Run(entry.Value.Type().String(), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, NewEncoder(&buf).EncodeNetwork(entry.Value))

			decoded, n, err := DecodeNetwork(buf.Bytes())
			require.NoError(t, err)
			assert.Equal(t, buf.Len(), n)
			assert.Equal(t, entry.Value, decoded)

			payload, n, err := DecodePayload(buf.Bytes()[1:], entry.Value.Type())
			require.NoError(t, err)
			assert.Equal(t, buf.Len()-1, n)
			assert.Equal(t, entry.Value, payload)
		})
	}
}

func TestDecodeReportsConsumedBytes(t *testing.T) {
	data, err := Bytes("", NewCompound().Put("a", Int(1)))
	require.NoError(t, err)
	trailing := append(append([]byte(nil), data...), 0xde, 0xad)

	_, _, n, err := Decode(trailing)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)
}

func TestCompoundOrderAndLookup(t *testing.T) {
	c := NewCompound().Put("z", Int(1)).Put("a", String("x")).Put("m", Long(7))
	c.Put("z", Int(2))

	assert.Equal(t, []string{"z", "a", "m"}, c.Names())
	v, ok := c.Int("z")
	assert.True(t, ok)
	assert.Equal(t, int32(2), v)

	_, ok = c.Int("a")
	assert.False(t, ok, "wrong variant is not a match")
	_, ok = c.Str("missing")
	assert.False(t, ok)

	n, ok := c.Number("m")
	assert.True(t, ok)
	assert.Equal(t, int64(7), n)

	var nilCompound *Compound
	assert.False(t, nilCompound.Has("anything"))
	assert.Equal(t, 0, nilCompound.Len())
}

func TestDuplicateKeyKeepsFirstPosition(t *testing.T) {
	data := []byte{
		10, 0, 0,
		3, 0, 1, 'a', 0, 0, 0, 1,
		3, 0, 1, 'b', 0, 0, 0, 2,
		3, 0, 1, 'a', 0, 0, 0, 3,
		0,
	}
	_, root, _, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, root.Names())
	v, _ := root.Int("a")
	assert.Equal(t, int32(3), v)
}

func TestMalformed(t *testing.T) {
	cases := map[string][]byte{
		"empty":                {},
		"root not compound":    {3, 0, 0, 0, 0, 0, 1},
		"unknown marker":       {10, 0, 0, 13, 0, 1, 'a', 0},
		"truncated name":       {10, 0, 5, 'a', 'b'},
		"string overrun":       {10, 0, 0, 8, 0, 1, 's', 0, 10, 'a', 0},
		"byte array overrun":   {10, 0, 0, 7, 0, 1, 'b', 0, 0, 0, 9, 1, 2, 0},
		"negative array":       {10, 0, 0, 11, 0, 1, 'i', 0xff, 0xff, 0xff, 0xff, 0},
		"long array overrun":   {10, 0, 0, 12, 0, 1, 'l', 0, 0, 0, 2, 0, 0, 0, 0, 0, 0, 0, 1, 0},
		"list of end nonempty": {10, 0, 0, 9, 0, 1, 'l', 0, 0, 0, 0, 3, 0},
		"list unknown element": {10, 0, 0, 9, 0, 1, 'l', 42, 0, 0, 0, 1, 0},
		"list count overrun":   {10, 0, 0, 9, 0, 1, 'l', 3, 0, 0, 1, 0, 0, 0, 0, 1, 0},
		"missing end":          {10, 0, 0, 1, 0, 1, 'b', 5},
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, _, err := Decode(data)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedTag)
		})
	}
}

func TestNestingLimit(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{10, 0, 0})
	for i := 0; i < MaxDepth+1; i++ {
		buf.Write([]byte{10, 0, 1, 'n'})
	}
	_, _, _, err := Decode(buf.Bytes())
	assert.ErrorIs(t, err, ErrMalformedTag)
}

func TestDecodePayloadRejectsEnd(t *testing.T) {
	_, _, err := DecodePayload([]byte{0}, TagEnd)
	assert.ErrorIs(t, err, ErrMalformedTag)
}

func TestNewListRejectsMixedTypes(t *testing.T) {
	_, err := NewList(TagInt, Int(1), Long(2))
	assert.Error(t, err)

	l, err := NewList(TagInt, Int(1), Int(2))
	require.NoError(t, err)
	assert.Equal(t, 2, l.Len())
	assert.Nil(t, l.Compounds())
}

type mcFixtureSection struct {
	Y       int8               `nbt:"Y"`
	Palette []mcFixturePalette `nbt:"palette"`
	Data    []int64            `nbt:"data"`
}

type mcFixturePalette struct {
	Name string `nbt:"Name"`
}

type mcFixture struct {
	DataVersion int32              `nbt:"DataVersion"`
	XPos        int32              `nbt:"xPos"`
	Status      string             `nbt:"Status"`
	Heights     []int32            `nbt:"heights"`
	Sections    []mcFixtureSection `nbt:"sections"`
}

// Payloads written by go-mc must decode to the same values.
func TestDecodeGoMCEncoding(t *testing.T) {
	in := mcFixture{
		DataVersion: 3465,
		XPos:        -3,
		Status:      "minecraft:full",
		Heights:     []int32{1, 2, 3},
		Sections: []mcFixtureSection{{
			Y:       -4,
			Palette: []mcFixturePalette{{Name: "minecraft:bedrock"}, {Name: "minecraft:stone"}},
			Data:    []int64{0x1111, -1},
		}},
	}
	var buf bytes.Buffer
	require.NoError(t, mcnbt.NewEncoder(&buf).Encode(in, ""))

	name, root, n, err := Decode(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "", name)
	assert.Equal(t, buf.Len(), n)

	v, ok := root.Int("DataVersion")
	require.True(t, ok)
	assert.Equal(t, int32(3465), v)
	status, _ := root.Str("Status")
	assert.Equal(t, "minecraft:full", status)
	heights, ok := root.IntArray("heights")
	require.True(t, ok)
	assert.Equal(t, []int32{1, 2, 3}, heights)

	sections, ok := root.List("sections")
	require.True(t, ok)
	require.Len(t, sections.Compounds(), 1)
	section := sections.Compounds()[0]
	y, _ := section.Number("Y")
	assert.Equal(t, int64(-4), y)
	data, ok := section.LongArray("data")
	require.True(t, ok)
	assert.Equal(t, []int64{0x1111, -1}, data)
	palette, _ := section.List("palette")
	second, _ := palette.Compounds()[1].Str("Name")
	assert.Equal(t, "minecraft:stone", second)
}

func TestDecodeCompressed(t *testing.T) {
	root := NewCompound().Put("Data", NewCompound().Put("DataVersion", Int(3700)))
	raw, err := Bytes("", root)
	require.NoError(t, err)

	var gz bytes.Buffer
	gw := gzip.NewWriter(&gz)
	_, _ = gw.Write(raw)
	require.NoError(t, gw.Close())

	var zl bytes.Buffer
	zw := zlib.NewWriter(&zl)
	_, _ = zw.Write(raw)
	require.NoError(t, zw.Close())

	for name, data := range map[string][]byte{"gzip": gz.Bytes(), "zlib": zl.Bytes(), "raw": raw} {
		t.Run(name, func(t *testing.T) {
			_, decoded, err := DecodeCompressed(data)
			require.NoError(t, err)
			assert.Equal(t, root, decoded)
		})
	}

	_, _, err = DecodeCompressed([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrMalformedTag)
}

func TestDecodeCompressedInflateLimit(t *testing.T) {
	defer func(n int) { maxInflated = n }(maxInflated)
	maxInflated = 64

	root := NewCompound().Put("padding", ByteArray(make([]byte, 1024)))
	raw, err := Bytes("", root)
	require.NoError(t, err)

	var gz bytes.Buffer
	gw := gzip.NewWriter(&gz)
	_, _ = gw.Write(raw)
	require.NoError(t, gw.Close())

	_, _, err = DecodeCompressed(gz.Bytes())
	assert.ErrorIs(t, err, ErrTooLarge)

	small, err := Bytes("", NewCompound().Put("a", Byte(1)))
	require.NoError(t, err)
	gz.Reset()
	gw = gzip.NewWriter(&gz)
	_, _ = gw.Write(small)
	require.NoError(t, gw.Close())
	_, decoded, err := DecodeCompressed(gz.Bytes())
	require.NoError(t, err)
	assert.True(t, decoded.Has("a"))
}
