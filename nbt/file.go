package nbt

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

// ErrTooLarge reports compressed input that inflates past maxInflated.
var ErrTooLarge = errors.New("nbt: inflated data too large")

var maxInflated = 256 << 20

// Standalone files such as level.dat, structure .nbt files and litematics are
// usually gzip compressed, occasionally zlib, and sometimes stored raw.
var decompressors = []struct {
	name string
	open func(io.Reader) (io.ReadCloser, error)
}{
	{"gzip", func(r io.Reader) (io.ReadCloser, error) { return gzip.NewReader(r) }},
	{"zlib", func(r io.Reader) (io.ReadCloser, error) { return zlib.NewReader(r) }},
}

// ReadFile decodes a standalone NBT file.
func ReadFile(path string) (name string, root *Compound, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, err
	}
	name, root, err = DecodeCompressed(data)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", path, err)
	}
	return name, root, nil
}

// DecodeCompressed tries gzip, then zlib, then raw bytes, and returns the
// first successful decode.
func DecodeCompressed(data []byte) (name string, root *Compound, err error) {
	var errs []error
	for _, d := range decompressors {
		raw, derr := inflate(data, d.open)
		if derr != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d.name, derr))
			continue
		}
		name, root, _, derr = Decode(raw)
		if derr == nil {
			return name, root, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", d.name, derr))
	}
	name, root, _, err = Decode(data)
	if err == nil {
		return name, root, nil
	}
	errs = append(errs, fmt.Errorf("raw: %w", err))
	return "", nil, errors.Join(errs...)
}

func inflate(data []byte, open func(io.Reader) (io.ReadCloser, error)) ([]byte, error) {
	r, err := open(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	raw, err := io.ReadAll(io.LimitReader(r, int64(maxInflated)+1))
	if err != nil {
		return nil, err
	}
	if len(raw) > maxInflated {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, maxInflated)
	}
	return raw, nil
}
