// Package version maps chunk DataVersion numbers to game release labels and
// holds the format thresholds that depend on them.
package version

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed versions.yaml
var defaultTable []byte

// Entry labels every DataVersion from Min up to the next entry.
type Entry struct {
	Min   int    `yaml:"min"`
	Label string `yaml:"label"`
}

type Table struct {
	Latest            int     `yaml:"latest"`
	PaddedPackingFrom int     `yaml:"padded_packing_from"`
	Entries           []Entry `yaml:"releases"`
}

// Release is the result of resolving a DataVersion. When Known is false the
// version fell outside the table and Label is the number itself.
type Release struct {
	DataVersion int
	Label       string
	Known       bool
}

func (r Release) String() string {
	if r.Known {
		return r.Label
	}
	return "unknown (" + r.Label + ")"
}

var (
	defaultOnce sync.Once
	defaultTbl  *Table
)

// Default returns the table compiled into the binary.
func Default() *Table {
	defaultOnce.Do(func() {
		t, err := Parse(defaultTable)
		if err != nil {
			panic("version: embedded table: " + err.Error())
		}
		defaultTbl = t
	})
	return defaultTbl
}

// Load reads a table from a YAML file.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading version table %s: %w", path, err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing version table %s: %w", path, err)
	}
	return t, nil
}

func Parse(data []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	if len(t.Entries) == 0 {
		return nil, errors.New("no releases")
	}
	sort.SliceStable(t.Entries, func(i, j int) bool { return t.Entries[i].Min < t.Entries[j].Min })
	for i := 1; i < len(t.Entries); i++ {
		if t.Entries[i].Min == t.Entries[i-1].Min {
			return nil, fmt.Errorf("duplicate release min %d", t.Entries[i].Min)
		}
	}
	if last := t.Entries[len(t.Entries)-1].Min; t.Latest < last {
		t.Latest = last
	}
	return &t, nil
}

// Resolve returns the release with the greatest Min not above v.
func (t *Table) Resolve(v int) Release {
	if v < t.Entries[0].Min || v > t.Latest {
		return Release{DataVersion: v, Label: strconv.Itoa(v)}
	}
	i := sort.Search(len(t.Entries), func(i int) bool { return t.Entries[i].Min > v })
	return Release{DataVersion: v, Label: t.Entries[i-1].Label, Known: true}
}

// PaddedPacking reports whether block state arrays written at DataVersion v
// keep every index inside a single 64-bit word.
func (t *Table) PaddedPacking(v int) bool {
	return v >= t.PaddedPackingFrom
}
