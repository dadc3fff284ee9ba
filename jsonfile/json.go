// Package jsonfile implements reading and writing of nested JSON
// translation files.
//
// Reading preserves document key order. The original indentation style
// (tabs vs spaces, count), line ending, and trailing-newline presence are
// detected on read and reproduced on write; minified input stays minified.
// In-place writes splice only the updated values into the original bytes.
package jsonfile

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/algebras-ai/algebras-cli/resource"
)

// ---------------------------------------------------------------------------
// Style detection
// ---------------------------------------------------------------------------

// Style captures the on-disk formatting of a JSON file.
type Style struct {
	// Indent is the per-level indent unit ("  ", "    ", "\t").
	Indent string
	// Minified is true when the document has no line breaks.
	Minified bool
	// TrailingNewline reports whether the file ends with "\n".
	TrailingNewline bool
}

// DefaultStyle is used when writing a brand-new file.
var DefaultStyle = Style{Indent: "  ", TrailingNewline: true}

// DetectStyle inspects raw JSON bytes. The indent unit comes from the first
// indented key-bearing line; a tab anywhere in that prefix selects tab
// indentation, otherwise the leading space count is used.
func DetectStyle(data []byte) Style {
	s := Style{Indent: "  "}
	text := string(data)
	s.TrailingNewline = strings.HasSuffix(text, "\n")
	if !strings.ContainsAny(text, "\n") {
		s.Minified = true
		return s
	}
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimLeft(line, " \t")
		if trimmed == line || trimmed == "" {
			continue
		}
		prefix := line[:len(line)-len(trimmed)]
		if strings.Contains(prefix, "\t") {
			s.Indent = "\t"
		} else {
			s.Indent = strings.Repeat(" ", len(prefix))
		}
		break
	}
	return s
}

// ---------------------------------------------------------------------------
// Reading
// ---------------------------------------------------------------------------

// raw is an opaque leaf for composite non-object values (arrays) and
// non-string primitives, re-emitted verbatim on full writes.
type raw struct{ json string }

// Read parses a JSON translation file.
func Read(path string) (*resource.File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(data) {
		return nil, &resource.ParseError{Path: path, Format: "JSON", Err: fmt.Errorf("invalid JSON")}
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, &resource.ParseError{Path: path, Format: "JSON", Err: fmt.Errorf("root must be an object")}
	}

	style := DetectStyle(data)
	return &resource.File{Map: toMap(root), Original: &style}, nil
}

// toMap converts a gjson object to an ordered resource.Map. gjson iterates
// object members in document order.
func toMap(obj gjson.Result) *resource.Map {
	m := resource.NewMap()
	obj.ForEach(func(key, value gjson.Result) bool {
		switch {
		case value.IsObject():
			m.Set(key.String(), toMap(value))
		case value.Type == gjson.String:
			m.Set(key.String(), value.String())
		default:
			m.Set(key.String(), raw{json: value.Raw})
		}
		return true
	})
	return m
}

// ---------------------------------------------------------------------------
// Writing
// ---------------------------------------------------------------------------

// WriteFull regenerates the file from the map, using the detected style
// when present.
func WriteFull(path string, f *resource.File) error {
	style := DefaultStyle
	if s, ok := f.Original.(*Style); ok {
		style = *s
	}
	var b strings.Builder
	marshalMap(&b, f.Map, style, 1)
	out := b.String()
	if style.TrailingNewline && !style.Minified {
		out += "\n"
	}
	return os.WriteFile(path, []byte(out), 0644)
}

func marshalMap(b *strings.Builder, m *resource.Map, style Style, depth int) {
	keys := m.Keys()
	if len(keys) == 0 {
		b.WriteString("{}")
		return
	}
	open, close, sep := "{\n", "}", ",\n"
	pad := strings.Repeat(style.Indent, depth)
	closePad := strings.Repeat(style.Indent, depth-1)
	if style.Minified {
		open, close, sep, pad, closePad = "{", "}", ",", "", ""
	}
	b.WriteString(open)
	for i, k := range keys {
		if i > 0 {
			b.WriteString(sep)
		}
		b.WriteString(pad)
		b.WriteString(quoteJSON(k))
		b.WriteString(":")
		if !style.Minified {
			b.WriteString(" ")
		}
		v, _ := m.Get(k)
		switch val := v.(type) {
		case *resource.Map:
			marshalMap(b, val, style, depth+1)
		case string:
			b.WriteString(quoteJSON(val))
		case raw:
			b.WriteString(val.json)
		default:
			b.WriteString(quoteJSON(fmt.Sprint(val)))
		}
	}
	if !style.Minified {
		b.WriteString("\n")
		b.WriteString(closePad)
	}
	b.WriteString(close)
}

func quoteJSON(s string) string { return strconv.Quote(s) }

// WriteInPlace updates only the listed dot-paths, leaving every other byte
// of the file untouched. Keys absent from the file are appended by sjson in
// the document's own formatting.
func WriteInPlace(path string, f *resource.File, keys []string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	orig := data
	for _, key := range keys {
		val, ok := f.Map.GetString(key)
		if !ok {
			continue
		}
		if cur := gjson.GetBytes(data, key); cur.Exists() && cur.Type == gjson.String && cur.String() == val {
			continue
		}
		data, err = sjson.SetBytes(data, key, val)
		if err != nil {
			return fmt.Errorf("updating %s in %s: %w", key, path, err)
		}
	}
	if string(data) == string(orig) {
		return nil
	}
	// sjson keeps the document body's formatting; restore the original
	// trailing-newline convention.
	hadNL := strings.HasSuffix(string(orig), "\n")
	hasNL := strings.HasSuffix(string(data), "\n")
	if hadNL && !hasNL {
		data = append(data, '\n')
	} else if !hadNL && hasNL {
		data = data[:len(data)-1]
	}
	return os.WriteFile(path, data, 0644)
}
