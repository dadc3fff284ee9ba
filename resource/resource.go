// Package resource defines the in-memory model shared by all file-format
// handlers: an order-preserving nested map of translatable strings and its
// flat dot-notation projection.
//
// Every format reads into a *File. Nested formats (JSON, YAML, TypeScript)
// fill Map with nested *Map values; flat formats (PO, .strings, properties)
// fill it with string leaves only. Structured formats (.stringsdict, XLIFF,
// CSV) additionally keep their parsed original in File.Original so the
// writer can re-inject translations without re-deriving structure.
package resource

import (
	"fmt"
	"strings"
)

// Value is a leaf string or a nested *Map.
type Value any

// ---------------------------------------------------------------------------
// Ordered nested map
// ---------------------------------------------------------------------------

// Map is an insertion-ordered mapping from key to Value.
type Map struct {
	keys []string
	vals map[string]Value
}

// NewMap creates an empty Map.
func NewMap() *Map {
	return &Map{vals: make(map[string]Value)}
}

// Len returns the number of direct entries.
func (m *Map) Len() int { return len(m.keys) }

// Keys returns the direct keys in insertion order.
func (m *Map) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Get returns the value for a direct key.
func (m *Map) Get(key string) (Value, bool) {
	v, ok := m.vals[key]
	return v, ok
}

// Set stores a direct key. Existing keys keep their position; new keys are
// appended.
func (m *Map) Set(key string, v Value) {
	if _, ok := m.vals[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.vals[key] = v
}

// Delete removes a direct key, preserving the order of the rest.
func (m *Map) Delete(key string) {
	if _, ok := m.vals[key]; !ok {
		return
	}
	delete(m.vals, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// GetPath resolves a dot-notation path ("nav.home") through nested maps.
func (m *Map) GetPath(path string) (Value, bool) {
	cur := m
	parts := strings.Split(path, ".")
	for i, part := range parts {
		v, ok := cur.vals[part]
		if !ok {
			return nil, false
		}
		if i == len(parts)-1 {
			return v, true
		}
		next, ok := v.(*Map)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return nil, false
}

// GetString resolves a dot-notation path to a string leaf.
func (m *Map) GetString(path string) (string, bool) {
	v, ok := m.GetPath(path)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// SetPath stores a value at a dot-notation path, creating intermediate maps
// as needed. A non-map intermediate value is replaced by a map.
func (m *Map) SetPath(path string, v Value) {
	cur := m
	parts := strings.Split(path, ".")
	for i, part := range parts {
		if i == len(parts)-1 {
			cur.Set(part, v)
			return
		}
		next, ok := cur.vals[part].(*Map)
		if !ok {
			next = NewMap()
			cur.Set(part, next)
		}
		cur = next
	}
}

// Clone returns a deep copy.
func (m *Map) Clone() *Map {
	out := NewMap()
	for _, k := range m.keys {
		switch v := m.vals[k].(type) {
		case *Map:
			out.Set(k, v.Clone())
		default:
			out.Set(k, v)
		}
	}
	return out
}

// Flatten produces the dot-notation flat projection via depth-first walk in
// insertion order. Non-string, non-map leaves are skipped.
func (m *Map) Flatten() *Flat {
	f := &Flat{index: make(map[string]int)}
	m.flattenInto("", f)
	return f
}

func (m *Map) flattenInto(prefix string, f *Flat) {
	for _, k := range m.keys {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		switch v := m.vals[k].(type) {
		case *Map:
			v.flattenInto(path, f)
		case string:
			f.add(path, v)
		}
	}
}

// FromFlat rebuilds a nested Map from a flat projection.
func FromFlat(f *Flat) *Map {
	m := NewMap()
	for _, p := range f.pairs {
		m.SetPath(p.Key, p.Value)
	}
	return m
}

// ---------------------------------------------------------------------------
// Flat projection
// ---------------------------------------------------------------------------

// Pair is one flat key/value entry.
type Pair struct {
	Key   string
	Value string
}

// Flat is an ordered flat projection of a Map.
type Flat struct {
	pairs []Pair
	index map[string]int
}

// NewFlat creates an empty projection.
func NewFlat() *Flat {
	return &Flat{index: make(map[string]int)}
}

func (f *Flat) add(key, value string) {
	if i, ok := f.index[key]; ok {
		f.pairs[i].Value = value
		return
	}
	f.index[key] = len(f.pairs)
	f.pairs = append(f.pairs, Pair{Key: key, Value: value})
}

// Set inserts or updates a key.
func (f *Flat) Set(key, value string) { f.add(key, value) }

// Get returns the value for a key.
func (f *Flat) Get(key string) (string, bool) {
	i, ok := f.index[key]
	if !ok {
		return "", false
	}
	return f.pairs[i].Value, true
}

// Has reports whether the key exists.
func (f *Flat) Has(key string) bool {
	_, ok := f.index[key]
	return ok
}

// Len returns the number of entries.
func (f *Flat) Len() int { return len(f.pairs) }

// Keys returns all keys in document order.
func (f *Flat) Keys() []string {
	out := make([]string, len(f.pairs))
	for i, p := range f.pairs {
		out[i] = p.Key
	}
	return out
}

// Pairs returns all entries in document order.
func (f *Flat) Pairs() []Pair {
	out := make([]Pair, len(f.pairs))
	copy(out, f.pairs)
	return out
}

// ---------------------------------------------------------------------------
// File
// ---------------------------------------------------------------------------

// File is one parsed resource file.
type File struct {
	// Map holds the translatable content as an ordered nested map.
	Map *Map
	// Original carries the format-specific parsed structure for formats
	// that re-inject translations on write (.stringsdict, XLIFF, CSV).
	// Nil for formats that regenerate from Map alone.
	Original any
}

// Clone deep-copies the map; Original is shared (writers treat it as
// read-only input and re-read the target file for in-place updates).
func (f *File) Clone() *File {
	return &File{Map: f.Map.Clone(), Original: f.Original}
}

// ParseError reports that one resource file could not be parsed. It fails
// that file pair only; a run never aborts on it.
type ParseError struct {
	Path   string
	Format string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing %s file %s: %v", e.Format, e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
