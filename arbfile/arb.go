// Package arbfile implements reading and writing of Flutter ARB
// (Application Resource Bundle) files.
//
// ARB files are JSON files with a specific structure:
//
//   - "@@locale" holds the BCP-47 language code (e.g. "en", "ru").
//   - Keys starting with "@" (other than "@@locale") are metadata entries
//     (e.g. "@greeting") and are preserved verbatim — never translated.
//   - All other string values are translatable.
//
// File naming convention: app_LANG.arb (e.g. app_en.arb, app_ru.arb).
// Key order from the original file is preserved on write, and metadata
// keys keep their position next to their translatable key.
package arbfile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/algebras-ai/algebras-cli/resource"
)

// ---------------------------------------------------------------------------
// File model
// ---------------------------------------------------------------------------

// entry is a single key in the ARB file.
type entry struct {
	key      string
	value    string // translatable string value
	isMeta   bool   // true for @-keys (metadata / @@locale)
	rawValue []byte // original JSON value bytes (preserved for meta)
}

// File represents a parsed ARB file.
type File struct {
	locale  string
	entries []entry
	index   map[string]int
}

// ---------------------------------------------------------------------------
// Parsing
// ---------------------------------------------------------------------------

// parse decodes ARB content with json.Decoder token streaming so document
// key order survives.
func parse(data []byte) (*File, error) {
	f := &File{index: make(map[string]int)}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected '{', got %v", tok)
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("expected string key, got %T", keyTok)
		}

		var rawVal json.RawMessage
		if err := dec.Decode(&rawVal); err != nil {
			return nil, fmt.Errorf("value for %q: %w", key, err)
		}

		e := entry{key: key, isMeta: strings.HasPrefix(key, "@"), rawValue: rawVal}
		if key == "@@locale" {
			_ = json.Unmarshal(rawVal, &f.locale)
		}
		if !e.isMeta {
			if err := json.Unmarshal(rawVal, &e.value); err != nil {
				return nil, fmt.Errorf("value for %q is not a string", key)
			}
		}
		f.index[key] = len(f.entries)
		f.entries = append(f.entries, e)
	}
	return f, nil
}

// Locale returns the @@locale value.
func (f *File) Locale() string { return f.locale }

// set updates or appends a translatable key.
func (f *File) set(key, value string) {
	if idx, ok := f.index[key]; ok {
		if f.entries[idx].isMeta {
			return
		}
		f.entries[idx].value = value
		return
	}
	f.index[key] = len(f.entries)
	f.entries = append(f.entries, entry{key: key, value: value})
}

// ---------------------------------------------------------------------------
// Serialization
// ---------------------------------------------------------------------------

// marshal writes the file with 2-space indentation, @@locale first.
func (f *File) marshal() []byte {
	var buf bytes.Buffer
	buf.WriteString("{\n")

	first := true
	writeKey := func(key string, raw []byte) {
		if !first {
			buf.WriteString(",\n")
		}
		first = false
		keyBytes, _ := json.Marshal(key)
		buf.WriteString("  ")
		buf.Write(keyBytes)
		buf.WriteString(": ")
		buf.Write(raw)
	}

	if f.locale != "" {
		raw, _ := json.Marshal(f.locale)
		writeKey("@@locale", raw)
	}
	for _, e := range f.entries {
		if e.key == "@@locale" {
			continue
		}
		if e.isMeta {
			var pretty bytes.Buffer
			if err := json.Indent(&pretty, e.rawValue, "  ", "  "); err != nil {
				writeKey(e.key, e.rawValue)
			} else {
				writeKey(e.key, pretty.Bytes())
			}
			continue
		}
		raw, _ := json.Marshal(e.value)
		writeKey(e.key, raw)
	}

	buf.WriteString("\n}\n")
	return buf.Bytes()
}

// ---------------------------------------------------------------------------
// Resource adapters
// ---------------------------------------------------------------------------

// Read parses an ARB file. Metadata keys stay out of the projection;
// untranslated (empty) values are omitted so they count as missing.
func Read(path string) (*resource.File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := parse(data)
	if err != nil {
		return nil, &resource.ParseError{Path: path, Format: "ARB", Err: err}
	}

	m := resource.NewMap()
	for _, e := range f.entries {
		if e.isMeta || e.value == "" {
			continue
		}
		m.Set(e.key, e.value)
	}
	return &resource.File{Map: m, Original: f}, nil
}

// WriteFull regenerates the file. The carried structure keeps metadata
// entries and key order; new keys append at the end. The @@locale value
// follows the app_LANG.arb naming convention when the filename carries
// one.
func WriteFull(path string, f *resource.File) error {
	arb, ok := f.Original.(*File)
	if !ok || arb == nil {
		arb = &File{index: make(map[string]int)}
	}
	for _, p := range f.Map.Flatten().Pairs() {
		arb.set(p.Key, p.Value)
	}
	if locale := localeFromPath(path); locale != "" {
		arb.locale = locale
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, arb.marshal(), 0644)
}

// localeFromPath extracts LANG from an app_LANG.arb filename.
func localeFromPath(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if i := strings.Index(stem, "_"); i >= 0 && i+1 < len(stem) {
		return stem[i+1:]
	}
	return ""
}
