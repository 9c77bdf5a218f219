package chunk

import (
	"fmt"
	"math/bits"
)

// BlocksPerSection is the number of block positions in a 16x16x16 section.
const BlocksPerSection = 4096

// BitsFor returns the bit width used to store indices into a palette of n
// entries. Block palettes never go below four bits.
func BitsFor(n int) int {
	if n <= 1 {
		return 4
	}
	b := bits.Len(uint(n - 1))
	if b < 4 {
		return 4
	}
	return b
}

// ExpectedLongs is the length of the packed array holding count indices of
// the given width.
func ExpectedLongs(count, width int, padded bool) int {
	if padded {
		perWord := 64 / width
		return (count + perWord - 1) / perWord
	}
	return (count*width + 63) / 64
}

// Unpack extracts count indices of the given width from data. Padded arrays
// keep every index inside one word and leave the high bits unused; the older
// contiguous layout lets an index straddle two words.
func Unpack(data []int64, width, count int, padded bool) ([]uint16, error) {
	if width < 1 || width > 16 {
		return nil, fmt.Errorf("%w: bit width %d out of range", ErrMalformedNbt, width)
	}
	if want := ExpectedLongs(count, width, padded); len(data) != want {
		return nil, fmt.Errorf("%w: %d longs for %d indices of %d bits, want %d",
			ErrSectionDataSizeMismatch, len(data), count, width, want)
	}

	mask := uint64(1)<<uint(width) - 1
	out := make([]uint16, count)
	if padded {
		perWord := 64 / width
		for i := range out {
			word := uint64(data[i/perWord])
			out[i] = uint16(word >> uint((i%perWord)*width) & mask)
		}
		return out, nil
	}

	for i := range out {
		bit := i * width
		word, shift := bit/64, uint(bit%64)
		v := uint64(data[word]) >> shift
		if shift+uint(width) > 64 {
			v |= uint64(data[word+1]) << (64 - shift)
		}
		out[i] = uint16(v & mask)
	}
	return out, nil
}

// LocalPos splits a section-local index into x, y and z within the section.
// Indices run x fastest, then z, then y.
func LocalPos(i int) (x, y, z int) {
	return i & 15, i >> 8, (i >> 4) & 15
}
