// Package stringsdict implements reading and writing of iOS .stringsdict
// property lists.
//
// A .stringsdict nests pluralization dictionaries under each entry key. The
// reader keeps the decoded property list intact and derives a flat
// projection of the translatable string leaves; the writer injects
// translated values back into that structure and re-serializes the whole
// plist. Format machinery keys (NSStringFormatSpecTypeKey,
// NSStringFormatValueTypeKey) are never part of the projection.
package stringsdict

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"howett.net/plist"

	"github.com/algebras-ai/algebras-cli/resource"
)

// machineryKeys are plist keys that configure formatting, not text.
var machineryKeys = map[string]bool{
	"NSStringFormatSpecTypeKey":  true,
	"NSStringFormatValueTypeKey": true,
}

// ---------------------------------------------------------------------------
// Reading
// ---------------------------------------------------------------------------

// Read parses a .stringsdict file. The flat projection uses dot-joined key
// paths in sorted order; the decoded plist rides along for re-injection.
func Read(path string) (*resource.File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var root map[string]interface{}
	if _, err := plist.Unmarshal(data, &root); err != nil {
		return nil, &resource.ParseError{Path: path, Format: ".stringsdict", Err: err}
	}

	m := resource.NewMap()
	collect(root, nil, m)
	return &resource.File{Map: m, Original: root}, nil
}

func collect(dict map[string]interface{}, prefix []string, m *resource.Map) {
	keys := make([]string, 0, len(dict))
	for k := range dict {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if machineryKeys[k] {
			continue
		}
		path := append(append([]string(nil), prefix...), k)
		switch v := dict[k].(type) {
		case string:
			m.Set(strings.Join(path, "."), v)
		case map[string]interface{}:
			collect(v, path, m)
		}
	}
}

// ---------------------------------------------------------------------------
// Writing
// ---------------------------------------------------------------------------

// WriteFull injects the flat map back into the preserved plist structure
// and re-serializes it as XML. In-place writing is not supported for this
// format.
func WriteFull(path string, f *resource.File) error {
	root, ok := f.Original.(map[string]interface{})
	if !ok {
		return fmt.Errorf("%s: no original property list to inject into", path)
	}
	for _, p := range f.Map.Flatten().Pairs() {
		inject(root, strings.Split(p.Key, "."), p.Value)
	}

	out, err := plist.MarshalIndent(root, plist.XMLFormat, "\t")
	if err != nil {
		return fmt.Errorf("marshaling plist: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	return os.WriteFile(path, append(out, '\n'), 0644)
}

// inject sets a string leaf at the given key path, creating intermediate
// dictionaries for paths the original did not have.
func inject(dict map[string]interface{}, path []string, val string) {
	if len(path) == 1 {
		dict[path[0]] = val
		return
	}
	child, ok := dict[path[0]].(map[string]interface{})
	if !ok {
		child = make(map[string]interface{})
		dict[path[0]] = child
	}
	inject(child, path[1:], val)
}
