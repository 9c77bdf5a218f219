package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/astei/anvilquery/nbt"
)

// WriteFile writes t as JSON to path, replacing any existing file. Paths
// ending in .gz are gzip compressed and paths ending in .zst are zstd
// compressed.
func WriteFile(path string, t nbt.Tag, opts Options) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	w, err := compressFor(path, f)
	if err != nil {
		return err
	}
	if err = WriteJSON(w, t, opts); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return w.Close()
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

func compressFor(path string, w io.Writer) (io.WriteCloser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		return gzip.NewWriter(w), nil
	case ".zst":
		return zstd.NewWriter(w)
	}
	return nopCloser{w}, nil
}
