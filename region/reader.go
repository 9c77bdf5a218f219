package region

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/willf/bitset"
)

const (
	Width       = 32
	SlotCount   = Width * Width
	SectorSize  = 4096
	headerSize  = 2 * SectorSize
	payloadHead = 5
)

var ErrNoChunk = errors.New("region: chunk not found")
var ErrRegionHeaderCorrupt = errors.New("region: header corrupt")
var ErrUnsupportedCompression = errors.New("region: unsupported compression")
var ErrPayloadTooLarge = errors.New("region: payload too large")

// SlotError records the failure of one grid slot. Sibling slots are not
// affected by it.
type SlotError struct {
	X, Z int
	Err  error
}

func (e *SlotError) Error() string {
	return fmt.Sprintf("chunk slot %d,%d: %s", e.X, e.Z, e.Err)
}

func (e *SlotError) Unwrap() error {
	return e.Err
}

// Payload is the decompressed tag data of one occupied slot.
type Payload struct {
	X, Z      int
	Timestamp time.Time
	Data      []byte
}

// Reader reads chunk payloads out of the raw bytes of one region file. It
// never modifies data and is safe for concurrent use.
type Reader struct {
	data       []byte
	locations  [SlotCount]uint32
	timestamps [SlotCount]uint32
	occupied   *bitset.BitSet

	Name string

	// External loads the contents of an out-of-file payload for a slot.
	// Open sets it; readers built with NewReader leave it nil.
	External func(x, z int) ([]byte, error)
}

// NewReader parses the header of a region file held in memory. A zero-length
// file is a valid, empty region.
func NewReader(data []byte) (*Reader, error) {
	r := &Reader{data: data, occupied: bitset.New(SlotCount)}
	if len(data) == 0 {
		return r, nil
	}
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: file is %d bytes, header needs %d", ErrRegionHeaderCorrupt, len(data), headerSize)
	}
	for i := 0; i < SlotCount; i++ {
		r.locations[i] = binary.BigEndian.Uint32(data[4*i:])
		r.timestamps[i] = binary.BigEndian.Uint32(data[SectorSize+4*i:])
		if r.locations[i] != 0 {
			r.occupied.Set(uint(i))
		}
	}
	return r, nil
}

// Open reads a region file from disk. Payloads stored externally are looked
// up next to it.
func Open(path string) (*Reader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	r, err := NewReader(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	r.Name = path
	if rx, rz, ok := ParseFileName(filepath.Base(path)); ok {
		dir := filepath.Dir(path)
		r.External = func(x, z int) ([]byte, error) {
			name := fmt.Sprintf("c.%d.%d.mcc", rx*Width+x, rz*Width+z)
			return os.ReadFile(filepath.Join(dir, name))
		}
	}
	return r, nil
}

var fileNamePattern = regexp.MustCompile(`^r\.(-?\d+)\.(-?\d+)\.mc[ar]$`)

// ParseFileName extracts region coordinates from names like r.-1.2.mca.
func ParseFileName(name string) (x, z int, ok bool) {
	m := fileNamePattern.FindStringSubmatch(name)
	if m == nil {
		return 0, 0, false
	}
	x, errX := strconv.Atoi(m[1])
	z, errZ := strconv.Atoi(m[2])
	return x, z, errX == nil && errZ == nil
}

func slot(x, z int) int {
	return (x & (Width - 1)) + (z&(Width-1))*Width
}

func (r *Reader) ChunkExists(x, z int) bool {
	return r.occupied.Test(uint(slot(x, z)))
}

// Len returns the number of occupied slots.
func (r *Reader) Len() int {
	return int(r.occupied.Count())
}

// Timestamp is the last modification time recorded for a slot.
func (r *Reader) Timestamp(x, z int) time.Time {
	ts := r.timestamps[slot(x, z)]
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(int64(ts), 0).UTC()
}

// ReadChunk returns the decompressed payload of the chunk at region-relative
// coordinates x and z.
func (r *Reader) ReadChunk(x, z int) ([]byte, error) {
	location := r.locations[slot(x, z)]
	if location == 0 {
		return nil, ErrNoChunk
	}

	start := int64(location>>8) * SectorSize
	if start < headerSize || start+payloadHead > int64(len(r.data)) {
		return nil, fmt.Errorf("%w: payload offset %d outside file of %d bytes", ErrRegionHeaderCorrupt, start, len(r.data))
	}

	length := int64(binary.BigEndian.Uint32(r.data[start:]))
	compression := Compression(r.data[start+4])
	if length == 0 {
		return nil, fmt.Errorf("%w: zero payload length", ErrRegionHeaderCorrupt)
	}
	end := start + 4 + length
	if end > int64(len(r.data)) {
		return nil, fmt.Errorf("%w: payload of %d bytes at %d overruns file of %d bytes", ErrRegionHeaderCorrupt, length, start, len(r.data))
	}
	payload := r.data[start+payloadHead : end]

	if compression&externalFlag != 0 {
		if r.External == nil {
			return nil, fmt.Errorf("%w: %s payload without a file location", ErrUnsupportedCompression, compression)
		}
		external, err := r.External(x, z)
		if err != nil {
			return nil, fmt.Errorf("reading external payload: %w", err)
		}
		payload = external
		compression &^= externalFlag
	}

	out, err := Decompress(compression, payload)
	if err != nil {
		if errors.Is(err, ErrUnsupportedCompression) {
			return nil, err
		}
		return nil, fmt.Errorf("decompressing %s payload: %w", compression, err)
	}
	return out, nil
}

// Chunks reads every occupied slot in grid order, x fastest. A slot that
// fails is reported in the error list and skipped; the others are still
// returned.
func (r *Reader) Chunks() ([]Payload, []error) {
	var payloads []Payload
	var errs []error
	for i, ok := r.occupied.NextSet(0); ok; i, ok = r.occupied.NextSet(i + 1) {
		x, z := int(i)%Width, int(i)/Width
		data, err := r.ReadChunk(x, z)
		if err != nil {
			errs = append(errs, &SlotError{X: x, Z: z, Err: err})
			continue
		}
		payloads = append(payloads, Payload{X: x, Z: z, Timestamp: r.Timestamp(x, z), Data: data})
	}
	return payloads, errs
}
