package nbt

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// MaxDepth bounds compound and list nesting.
const MaxDepth = 512

var ErrMalformedTag = errors.New("nbt: malformed tag")

// Decode parses a named root tag as found at the start of a file or a chunk
// payload. The root must be a compound. It returns the root's name and the
// number of bytes consumed.
func Decode(data []byte) (name string, root *Compound, n int, err error) {
	d := &decoder{buf: data}
	typ, err := d.readType()
	if err != nil {
		return "", nil, d.off, err
	}
	if typ != TagCompound {
		return "", nil, d.off, d.errorf("root is %s, want %s", typ, TagCompound)
	}
	if name, err = d.readString(); err != nil {
		return "", nil, d.off, err
	}
	root, err = d.readCompound()
	if err != nil {
		return "", nil, d.off, err
	}
	return name, root, d.off, nil
}

// DecodeNetwork parses an unnamed root tag, the layout used by network
// payloads. Any tag type is accepted as root.
func DecodeNetwork(data []byte) (Tag, int, error) {
	d := &decoder{buf: data}
	typ, err := d.readType()
	if err != nil {
		return nil, d.off, err
	}
	if typ == TagEnd {
		return nil, d.off, d.errorf("root is %s", TagEnd)
	}
	t, err := d.readPayload(typ)
	return t, d.off, err
}

// DecodePayload parses the body of a single tag of a known type.
func DecodePayload(data []byte, typ Type) (Tag, int, error) {
	d := &decoder{buf: data}
	if !typ.Valid() || typ == TagEnd {
		return nil, 0, d.errorf("cannot decode payload of %s", typ)
	}
	t, err := d.readPayload(typ)
	return t, d.off, err
}

type decoder struct {
	buf   []byte
	off   int
	depth int
}

func (d *decoder) errorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w at offset %d: %s", ErrMalformedTag, d.off, fmt.Sprintf(format, args...))
}

func (d *decoder) take(n int) ([]byte, error) {
	if n < 0 {
		return nil, d.errorf("negative length %d", n)
	}
	if n > len(d.buf)-d.off {
		return nil, d.errorf("need %d bytes, %d remain", n, len(d.buf)-d.off)
	}
	b := d.buf[d.off : d.off+n]
	d.off += n
	return b, nil
}

func (d *decoder) readType() (Type, error) {
	b, err := d.take(1)
	if err != nil {
		return 0, err
	}
	t := Type(b[0])
	if !t.Valid() {
		d.off--
		return 0, d.errorf("unknown type marker %d", b[0])
	}
	return t, nil
}

func (d *decoder) readUint16() (uint16, error) {
	b, err := d.take(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (d *decoder) readUint32() (uint32, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (d *decoder) readUint64() (uint64, error) {
	b, err := d.take(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// readLength reads a signed 32-bit element count and checks that at least
// count*size bytes remain.
func (d *decoder) readLength(size int) (int, error) {
	v, err := d.readUint32()
	if err != nil {
		return 0, err
	}
	n := int(int32(v))
	if n < 0 {
		return 0, d.errorf("negative length %d", n)
	}
	if size > 0 && n > (len(d.buf)-d.off)/size {
		return 0, d.errorf("length %d overruns payload, %d bytes remain", n, len(d.buf)-d.off)
	}
	return n, nil
}

func (d *decoder) readString() (string, error) {
	n, err := d.readUint16()
	if err != nil {
		return "", err
	}
	b, err := d.take(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (d *decoder) enter() error {
	d.depth++
	if d.depth > MaxDepth {
		return d.errorf("nesting deeper than %d", MaxDepth)
	}
	return nil
}

func (d *decoder) readCompound() (*Compound, error) {
	if err := d.enter(); err != nil {
		return nil, err
	}
	defer func() { d.depth-- }()

	c := NewCompound()
	for {
		typ, err := d.readType()
		if err != nil {
			return nil, err
		}
		if typ == TagEnd {
			return c, nil
		}
		name, err := d.readString()
		if err != nil {
			return nil, err
		}
		value, err := d.readPayload(typ)
		if err != nil {
			return nil, err
		}
		c.Put(name, value)
	}
}

func (d *decoder) readList() (*List, error) {
	if err := d.enter(); err != nil {
		return nil, err
	}
	defer func() { d.depth-- }()

	elem, err := d.readType()
	if err != nil {
		return nil, err
	}
	n, err := d.readLength(minSize(elem))
	if err != nil {
		return nil, err
	}
	if elem == TagEnd && n > 0 {
		return nil, d.errorf("list of %s with %d items", TagEnd, n)
	}
	l := &List{Elem: elem}
	if n > 0 {
		l.Items = make([]Tag, 0, n)
	}
	for i := 0; i < n; i++ {
		item, err := d.readPayload(elem)
		if err != nil {
			return nil, err
		}
		if item.Type() != elem {
			return nil, d.errorf("list of %s holds %s at %d", elem, item.Type(), i)
		}
		l.Items = append(l.Items, item)
	}
	return l, nil
}

// minSize is the smallest encoded payload of a tag type; it lets readLength
// reject counts that cannot possibly fit before anything is allocated.
func minSize(t Type) int {
	switch t {
	case TagByte, TagCompound:
		return 1
	case TagShort, TagString:
		return 2
	case TagInt, TagFloat, TagByteArray, TagIntArray, TagLongArray:
		return 4
	case TagLong, TagDouble:
		return 8
	case TagList:
		return 5
	}
	return 0
}

func (d *decoder) readPayload(typ Type) (Tag, error) {
	switch typ {
	case TagByte:
		b, err := d.take(1)
		if err != nil {
			return nil, err
		}
		return Byte(int8(b[0])), nil
	case TagShort:
		v, err := d.readUint16()
		return Short(int16(v)), err
	case TagInt:
		v, err := d.readUint32()
		return Int(int32(v)), err
	case TagLong:
		v, err := d.readUint64()
		return Long(int64(v)), err
	case TagFloat:
		v, err := d.readUint32()
		return Float(math.Float32frombits(v)), err
	case TagDouble:
		v, err := d.readUint64()
		return Double(math.Float64frombits(v)), err
	case TagByteArray:
		n, err := d.readLength(1)
		if err != nil {
			return nil, err
		}
		b, err := d.take(n)
		if err != nil {
			return nil, err
		}
		return ByteArray(append([]byte(nil), b...)), nil
	case TagString:
		s, err := d.readString()
		return String(s), err
	case TagList:
		return d.readList()
	case TagCompound:
		return d.readCompound()
	case TagIntArray:
		n, err := d.readLength(4)
		if err != nil {
			return nil, err
		}
		out := make(IntArray, n)
		for i := range out {
			v, _ := d.readUint32()
			out[i] = int32(v)
		}
		return out, nil
	case TagLongArray:
		n, err := d.readLength(8)
		if err != nil {
			return nil, err
		}
		out := make(LongArray, n)
		for i := range out {
			v, _ := d.readUint64()
			out[i] = int64(v)
		}
		return out, nil
	}
	return nil, d.errorf("unexpected %s", typ)
}
