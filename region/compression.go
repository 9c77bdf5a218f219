package region

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/pierrec/lz4/v4"
)

// Compression is the scheme marker stored in front of every chunk payload.
type Compression byte

const (
	CompressionGzip Compression = 1
	CompressionZlib Compression = 2
	CompressionNone Compression = 3
	CompressionLZ4  Compression = 4

	// externalFlag marks payloads stored in a separate c.<x>.<z>.mcc file.
	externalFlag Compression = 128
)

func (c Compression) String() string {
	switch c {
	case CompressionGzip:
		return "gzip"
	case CompressionZlib:
		return "zlib"
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	}
	if c&externalFlag != 0 {
		return "external+" + (c &^ externalFlag).String()
	}
	return fmt.Sprintf("unknown(%d)", byte(c))
}

// maxInflated bounds how large a single chunk may grow once decompressed.
var maxInflated = 64 << 20

// Decompress inflates a chunk payload according to its scheme marker.
func Decompress(c Compression, payload []byte) ([]byte, error) {
	switch c {
	case CompressionNone:
		return payload, nil
	case CompressionGzip:
		r, err := gzip.NewReader(bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return readLimited(r)
	case CompressionZlib:
		r, err := zlib.NewReader(bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return readLimited(r)
	case CompressionLZ4:
		return decompressLZ4Blocks(payload)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedCompression, c)
}

func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, int64(maxInflated)+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxInflated {
		return nil, fmt.Errorf("%w: inflates past %d bytes", ErrPayloadTooLarge, maxInflated)
	}
	return data, nil
}

const (
	lz4BlockMagic     = "LZ4Block"
	lz4BlockHeaderLen = len(lz4BlockMagic) + 1 + 4 + 4 + 4
	lz4MethodRaw      = 0x10
	lz4MethodLZ4      = 0x20
	// largest block LZ4BlockOutputStream writes
	lz4MaxBlockLen = 1 << 25
)

// decompressLZ4Blocks reads the block stream written by the Java
// LZ4BlockOutputStream: a sequence of headed blocks closed by an empty one.
// The per-block xxhash checksum is not verified.
func decompressLZ4Blocks(payload []byte) ([]byte, error) {
	var out []byte
	for len(payload) > 0 {
		if len(payload) < lz4BlockHeaderLen || string(payload[:len(lz4BlockMagic)]) != lz4BlockMagic {
			return nil, fmt.Errorf("lz4: bad block header")
		}
		token := payload[len(lz4BlockMagic)]
		compressedLen := int(binary.LittleEndian.Uint32(payload[9:13]))
		decompressedLen := int(binary.LittleEndian.Uint32(payload[13:17]))
		payload = payload[lz4BlockHeaderLen:]

		if compressedLen == 0 && decompressedLen == 0 {
			break
		}
		if decompressedLen < 0 || decompressedLen > lz4MaxBlockLen || len(out)+decompressedLen > maxInflated {
			return nil, fmt.Errorf("%w: lz4 block claims %d bytes", ErrPayloadTooLarge, decompressedLen)
		}
		if compressedLen < 0 || compressedLen > len(payload) {
			return nil, fmt.Errorf("lz4: block of %d bytes overruns payload", compressedLen)
		}
		block := payload[:compressedLen]
		payload = payload[compressedLen:]

		switch token & 0xf0 {
		case lz4MethodRaw:
			if compressedLen != decompressedLen {
				return nil, fmt.Errorf("lz4: raw block of %d bytes, header says %d", compressedLen, decompressedLen)
			}
			out = append(out, block...)
		case lz4MethodLZ4:
			dst := make([]byte, decompressedLen)
			n, err := lz4.UncompressBlock(block, dst)
			if err != nil {
				return nil, fmt.Errorf("lz4: %w", err)
			}
			if n != decompressedLen {
				return nil, fmt.Errorf("lz4: block inflated to %d bytes, header says %d", n, decompressedLen)
			}
			out = append(out, dst...)
		default:
			return nil, fmt.Errorf("lz4: unknown block method %#x", token&0xf0)
		}
	}
	return out, nil
}
