package nbt

import "fmt"

// Type is the one-byte marker preceding every named tag in the binary format.
type Type byte

const (
	TagEnd Type = iota
	TagByte
	TagShort
	TagInt
	TagLong
	TagFloat
	TagDouble
	TagByteArray
	TagString
	TagList
	TagCompound
	TagIntArray
	TagLongArray
)

var typeNames = [...]string{
	TagEnd:       "TAG_End",
	TagByte:      "TAG_Byte",
	TagShort:     "TAG_Short",
	TagInt:       "TAG_Int",
	TagLong:      "TAG_Long",
	TagFloat:     "TAG_Float",
	TagDouble:    "TAG_Double",
	TagByteArray: "TAG_Byte_Array",
	TagString:    "TAG_String",
	TagList:      "TAG_List",
	TagCompound:  "TAG_Compound",
	TagIntArray:  "TAG_Int_Array",
	TagLongArray: "TAG_Long_Array",
}

func (t Type) String() string {
	if t.Valid() {
		return typeNames[t]
	}
	return fmt.Sprintf("TAG_Unknown(%d)", byte(t))
}

// Valid reports whether t is one of the thirteen known markers.
func (t Type) Valid() bool {
	return t <= TagLongArray
}

// Tag is a decoded value. The set of implementations is closed: every variant
// of the binary format maps to exactly one type in this package.
type Tag interface {
	Type() Type
	isTag()
}

type (
	Byte      int8
	Short     int16
	Int       int32
	Long      int64
	Float     float32
	Double    float64
	ByteArray []byte
	String    string
	IntArray  []int32
	LongArray []int64
)

func (Byte) Type() Type      { return TagByte }
func (Short) Type() Type     { return TagShort }
func (Int) Type() Type       { return TagInt }
func (Long) Type() Type      { return TagLong }
func (Float) Type() Type     { return TagFloat }
func (Double) Type() Type    { return TagDouble }
func (ByteArray) Type() Type { return TagByteArray }
func (String) Type() Type    { return TagString }
func (IntArray) Type() Type  { return TagIntArray }
func (LongArray) Type() Type { return TagLongArray }
func (*List) Type() Type     { return TagList }
func (*Compound) Type() Type { return TagCompound }

func (Byte) isTag()      {}
func (Short) isTag()     {}
func (Int) isTag()       {}
func (Long) isTag()      {}
func (Float) isTag()     {}
func (Double) isTag()    {}
func (ByteArray) isTag() {}
func (String) isTag()    {}
func (IntArray) isTag()  {}
func (LongArray) isTag() {}
func (*List) isTag()     {}
func (*Compound) isTag() {}

// List is an ordered sequence of tags that all share the Elem type. An empty
// list may carry Elem == TagEnd.
type List struct {
	Elem  Type
	Items []Tag
}

// NewList builds a list, failing if any item does not have the given type.
func NewList(elem Type, items ...Tag) (*List, error) {
	for i, item := range items {
		if item.Type() != elem {
			return nil, fmt.Errorf("nbt: list item %d is %s, list holds %s", i, item.Type(), elem)
		}
	}
	return &List{Elem: elem, Items: items}, nil
}

func (l *List) Len() int {
	return len(l.Items)
}

// Compounds returns the items of a compound list. It returns nil for lists of
// any other element type.
func (l *List) Compounds() []*Compound {
	if l.Elem != TagCompound {
		return nil
	}
	out := make([]*Compound, 0, len(l.Items))
	for _, item := range l.Items {
		out = append(out, item.(*Compound))
	}
	return out
}

// AsNumber widens any integer variant to int64.
func AsNumber(t Tag) (int64, bool) {
	switch v := t.(type) {
	case Byte:
		return int64(v), true
	case Short:
		return int64(v), true
	case Int:
		return int64(v), true
	case Long:
		return int64(v), true
	}
	return 0, false
}
