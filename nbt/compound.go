package nbt

// Entry is one named member of a Compound.
type Entry struct {
	Name  string
	Value Tag
}

// Compound is a mapping from names to tags that remembers insertion order.
// The zero value is an empty compound ready for use.
type Compound struct {
	entries []Entry
	index   map[string]int
}

func NewCompound() *Compound {
	return &Compound{}
}

// Put stores value under name. Replacing an existing name keeps its original
// position.
func (c *Compound) Put(name string, value Tag) *Compound {
	if c.index == nil {
		c.index = make(map[string]int)
	}
	if i, ok := c.index[name]; ok {
		c.entries[i].Value = value
		return c
	}
	c.index[name] = len(c.entries)
	c.entries = append(c.entries, Entry{Name: name, Value: value})
	return c
}

func (c *Compound) Get(name string) (Tag, bool) {
	if c == nil {
		return nil, false
	}
	i, ok := c.index[name]
	if !ok {
		return nil, false
	}
	return c.entries[i].Value, true
}

func (c *Compound) Has(name string) bool {
	_, ok := c.Get(name)
	return ok
}

func (c *Compound) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}

// Entries returns the members in insertion order. The slice must not be
// modified.
func (c *Compound) Entries() []Entry {
	if c == nil {
		return nil
	}
	return c.entries
}

func (c *Compound) Names() []string {
	names := make([]string, 0, c.Len())
	for _, e := range c.Entries() {
		names = append(names, e.Name)
	}
	return names
}

// Number returns the named member widened to int64 if it is any integer
// variant.
func (c *Compound) Number(name string) (int64, bool) {
	t, ok := c.Get(name)
	if !ok {
		return 0, false
	}
	return AsNumber(t)
}

func (c *Compound) Int(name string) (int32, bool) {
	t, ok := c.Get(name)
	if !ok {
		return 0, false
	}
	v, ok := t.(Int)
	return int32(v), ok
}

func (c *Compound) Str(name string) (string, bool) {
	t, ok := c.Get(name)
	if !ok {
		return "", false
	}
	v, ok := t.(String)
	return string(v), ok
}

func (c *Compound) Compound(name string) (*Compound, bool) {
	t, ok := c.Get(name)
	if !ok {
		return nil, false
	}
	v, ok := t.(*Compound)
	return v, ok
}

func (c *Compound) List(name string) (*List, bool) {
	t, ok := c.Get(name)
	if !ok {
		return nil, false
	}
	v, ok := t.(*List)
	return v, ok
}

func (c *Compound) IntArray(name string) ([]int32, bool) {
	t, ok := c.Get(name)
	if !ok {
		return nil, false
	}
	v, ok := t.(IntArray)
	return []int32(v), ok
}

func (c *Compound) LongArray(name string) ([]int64, bool) {
	t, ok := c.Get(name)
	if !ok {
		return nil, false
	}
	v, ok := t.(LongArray)
	return []int64(v), ok
}
