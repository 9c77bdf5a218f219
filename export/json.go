// Package export renders tag trees as JSON for people to read.
package export

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/astei/anvilquery/nbt"
)

// maxSafeInteger is the largest integer a JSON reader backed by float64 can
// hold exactly. Longs beyond it are written as strings.
const maxSafeInteger = 1<<53 - 1

type Options struct {
	// Indent is repeated once per nesting level. Empty writes compact JSON.
	Indent string
}

// WriteJSON writes t as a single JSON value. Compounds become objects with
// their keys in insertion order.
func WriteJSON(w io.Writer, t nbt.Tag, opts Options) error {
	bw := bufio.NewWriter(w)
	jw := &jsonWriter{w: bw, indent: opts.Indent}
	jw.enc = json.NewEncoder(&jw.scratch)
	jw.enc.SetEscapeHTML(false)
	jw.value(t, 0)
	if jw.err != nil {
		return jw.err
	}
	if _, err := bw.WriteString("\n"); err != nil {
		return err
	}
	return bw.Flush()
}

type jsonWriter struct {
	w      *bufio.Writer
	indent string
	err    error

	// strings are quoted through enc into scratch
	enc     *json.Encoder
	scratch bytes.Buffer
}

func (j *jsonWriter) raw(s string) {
	if j.err != nil {
		return
	}
	_, j.err = j.w.WriteString(s)
}

func (j *jsonWriter) str(s string) {
	j.scratch.Reset()
	if err := j.enc.Encode(s); err != nil {
		j.err = err
		return
	}
	j.raw(string(bytes.TrimSuffix(j.scratch.Bytes(), []byte("\n"))))
}

func (j *jsonWriter) newline(depth int) {
	if j.indent == "" {
		return
	}
	j.raw("\n" + strings.Repeat(j.indent, depth))
}

// sequence writes n elements between open and end, one per line when
// indenting.
func (j *jsonWriter) sequence(open, end string, n, depth int, elem func(i int)) {
	j.raw(open)
	for i := 0; i < n; i++ {
		if i > 0 {
			j.raw(",")
		}
		j.newline(depth + 1)
		elem(i)
	}
	if n > 0 {
		j.newline(depth)
	}
	j.raw(end)
}

func (j *jsonWriter) long(v int64) {
	s := strconv.FormatInt(v, 10)
	if v > maxSafeInteger || v < -maxSafeInteger {
		s = strconv.Quote(s)
	}
	j.raw(s)
}

func (j *jsonWriter) float(v float64, bitSize int) {
	switch {
	case math.IsNaN(v):
		j.raw(`"NaN"`)
	case math.IsInf(v, 1):
		j.raw(`"Infinity"`)
	case math.IsInf(v, -1):
		j.raw(`"-Infinity"`)
	default:
		j.raw(strconv.FormatFloat(v, 'g', -1, bitSize))
	}
}

func (j *jsonWriter) value(t nbt.Tag, depth int) {
	switch v := t.(type) {
	case nbt.Byte:
		j.raw(strconv.Itoa(int(v)))
	case nbt.Short:
		j.raw(strconv.Itoa(int(v)))
	case nbt.Int:
		j.raw(strconv.Itoa(int(v)))
	case nbt.Long:
		j.long(int64(v))
	case nbt.Float:
		j.float(float64(v), 32)
	case nbt.Double:
		j.float(float64(v), 64)
	case nbt.String:
		j.str(string(v))
	case nbt.ByteArray:
		j.sequence("[", "]", len(v), depth, func(i int) { j.raw(strconv.Itoa(int(int8(v[i])))) })
	case nbt.IntArray:
		j.sequence("[", "]", len(v), depth, func(i int) { j.raw(strconv.Itoa(int(v[i]))) })
	case nbt.LongArray:
		j.sequence("[", "]", len(v), depth, func(i int) { j.long(v[i]) })
	case *nbt.List:
		j.sequence("[", "]", v.Len(), depth, func(i int) { j.value(v.Items[i], depth+1) })
	case *nbt.Compound:
		entries := v.Entries()
		sep := ":"
		if j.indent != "" {
			sep = ": "
		}
		j.sequence("{", "}", len(entries), depth, func(i int) {
			j.str(entries[i].Name)
			j.raw(sep)
			j.value(entries[i].Value, depth+1)
		})
	case nil:
		j.raw("null")
	}
}
