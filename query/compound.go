package query

import "github.com/astei/anvilquery/nbt"

// SearchCompound reports whether any compound in the loaded data has a key
// called name and returns every such compound. Each chunk tree is walked
// depth first with a compound visited before its children, chunks in scan
// order, then the standalone documents.
func (e *Engine) SearchCompound(name string) (bool, []*nbt.Compound) {
	var found []*nbt.Compound
	e.walkRoots(name, func(c *nbt.Compound) bool {
		found = append(found, c)
		return true
	})
	return len(found) > 0, found
}

// FirstCompound returns the first compound SearchCompound would return and
// stops walking as soon as it is found.
func (e *Engine) FirstCompound(name string) (*nbt.Compound, bool) {
	var first *nbt.Compound
	e.walkRoots(name, func(c *nbt.Compound) bool {
		first = c
		return false
	})
	return first, first != nil
}

func (e *Engine) walkRoots(name string, visit func(*nbt.Compound) bool) {
	for _, c := range e.chunks {
		if c.Root != nil && !Walk(c.Root, name, visit) {
			return
		}
	}
	for _, d := range e.docs {
		if !Walk(d, name, visit) {
			return
		}
	}
}

// Walk calls visit for every compound under t, t included, that has a key
// called name. Lists are descended, lists of lists too. Walking stops when
// visit returns false; Walk then returns false.
func Walk(t nbt.Tag, name string, visit func(*nbt.Compound) bool) bool {
	switch v := t.(type) {
	case *nbt.Compound:
		if v.Has(name) && !visit(v) {
			return false
		}
		for _, entry := range v.Entries() {
			if !Walk(entry.Value, name, visit) {
				return false
			}
		}
	case *nbt.List:
		if v.Elem != nbt.TagCompound && v.Elem != nbt.TagList {
			return true
		}
		for _, item := range v.Items {
			if !Walk(item, name, visit) {
				return false
			}
		}
	}
	return true
}
