package nbt

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
)

// Marshal encodes root as a named root compound.
func Marshal(w io.Writer, name string, root *Compound) error {
	return NewEncoder(w).Encode(name, root)
}

// Bytes is Marshal into a fresh buffer.
func Bytes(name string, root *Compound) ([]byte, error) {
	var buf bytes.Buffer
	if err := Marshal(&buf, name, root); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encoder writes tag trees in the binary format. It is used to build fixtures
// for decoding; nothing in this module writes world data with it.
type Encoder struct {
	w io.Writer
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes a named root compound.
func (e *Encoder) Encode(name string, root *Compound) error {
	if root == nil {
		return errors.New("nbt: nil root compound")
	}
	if err := e.writeTag(TagCompound, name); err != nil {
		return err
	}
	return e.writeCompound(root)
}

// EncodeNetwork writes an unnamed root of any type.
func (e *Encoder) EncodeNetwork(t Tag) error {
	if _, err := e.w.Write([]byte{byte(t.Type())}); err != nil {
		return err
	}
	return e.writePayload(t)
}

func (e *Encoder) writePayload(t Tag) error {
	switch v := t.(type) {
	case Byte:
		_, err := e.w.Write([]byte{byte(v)})
		return err
	case Short:
		return e.writeInt16(int16(v))
	case Int:
		return e.writeInt32(int32(v))
	case Long:
		return e.writeInt64(int64(v))
	case Float:
		return e.writeInt32(int32(math.Float32bits(float32(v))))
	case Double:
		return e.writeInt64(int64(math.Float64bits(float64(v))))
	case ByteArray:
		if err := e.writeInt32(int32(len(v))); err != nil {
			return err
		}
		_, err := e.w.Write(v)
		return err
	case String:
		return e.writeString(string(v))
	case *List:
		return e.writeList(v)
	case *Compound:
		return e.writeCompound(v)
	case IntArray:
		if err := e.writeInt32(int32(len(v))); err != nil {
			return err
		}
		for _, n := range v {
			if err := e.writeInt32(n); err != nil {
				return err
			}
		}
		return nil
	case LongArray:
		if err := e.writeInt32(int32(len(v))); err != nil {
			return err
		}
		for _, n := range v {
			if err := e.writeInt64(n); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("nbt: cannot encode %T", t)
}

func (e *Encoder) writeList(l *List) error {
	if _, err := e.w.Write([]byte{byte(l.Elem)}); err != nil {
		return err
	}
	if err := e.writeInt32(int32(len(l.Items))); err != nil {
		return err
	}
	for i, item := range l.Items {
		if item.Type() != l.Elem {
			return fmt.Errorf("nbt: mixed types in list: %s at %d, list holds %s", item.Type(), i, l.Elem)
		}
		if err := e.writePayload(item); err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) writeCompound(c *Compound) error {
	for _, entry := range c.Entries() {
		if err := e.writeTag(entry.Value.Type(), entry.Name); err != nil {
			return err
		}
		if err := e.writePayload(entry.Value); err != nil {
			return err
		}
	}
	_, err := e.w.Write([]byte{byte(TagEnd)})
	return err
}

func (e *Encoder) writeTag(tagType Type, tagName string) error {
	if _, err := e.w.Write([]byte{byte(tagType)}); err != nil {
		return err
	}
	return e.writeString(tagName)
}

func (e *Encoder) writeString(s string) error {
	if len(s) > math.MaxUint16 {
		return fmt.Errorf("nbt: string of %d bytes is too long", len(s))
	}
	if err := e.writeInt16(int16(uint16(len(s)))); err != nil {
		return err
	}
	_, err := io.WriteString(e.w, s)
	return err
}

func (e *Encoder) writeInt16(n int16) error {
	_, err := e.w.Write([]byte{byte(n >> 8), byte(n)})
	return err
}

func (e *Encoder) writeInt32(n int32) error {
	_, err := e.w.Write([]byte{byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)})
	return err
}

func (e *Encoder) writeInt64(n int64) error {
	_, err := e.w.Write([]byte{
		byte(n >> 56), byte(n >> 48), byte(n >> 40), byte(n >> 32),
		byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)})
	return err
}
