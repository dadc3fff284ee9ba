// Package propfile implements reading and writing of Java .properties
// translation files.
//
// Format: key=value pairs, one per line. Lines starting with '#' or '!'
// are comments and are preserved verbatim in the output, as are blank
// lines. \uXXXX escapes are decoded on read; non-ASCII characters are
// encoded back on write. Multi-line values (backslash continuation) are
// not supported.
package propfile

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/algebras-ai/algebras-cli/resource"
)

// lineKind classifies each line in the file.
type lineKind int

const (
	lineBlank   lineKind = iota // blank / whitespace-only line
	lineComment                 // comment line (starts with # or !)
	lineEntry                   // key=value pair
)

// line is a single line in the properties file.
type line struct {
	kind  lineKind
	raw   string // original text for comments and blanks
	key   string
	value string
}

// File represents a parsed .properties file, line order intact.
type File struct {
	lines []line
	index map[string]int
}

// ---------------------------------------------------------------------------
// Parsing
// ---------------------------------------------------------------------------

// ParseFile reads and parses a .properties file from disk.
func ParseFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data), nil
}

// Parse parses .properties content from a byte slice.
func Parse(data []byte) *File {
	f := &File{index: make(map[string]int)}

	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	rawLines := strings.Split(text, "\n")
	if len(rawLines) > 0 && rawLines[len(rawLines)-1] == "" {
		rawLines = rawLines[:len(rawLines)-1]
	}

	for _, raw := range rawLines {
		trimmed := strings.TrimSpace(raw)
		switch {
		case trimmed == "":
			f.lines = append(f.lines, line{kind: lineBlank, raw: raw})
		case strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "!"):
			f.lines = append(f.lines, line{kind: lineComment, raw: raw})
		default:
			k, v := splitKeyValue(trimmed)
			if k == "" {
				// Malformed line, kept verbatim.
				f.lines = append(f.lines, line{kind: lineComment, raw: raw})
				continue
			}
			if idx, exists := f.index[k]; exists {
				f.lines[idx].value = decodeEscapes(v)
				continue
			}
			f.index[k] = len(f.lines)
			f.lines = append(f.lines, line{kind: lineEntry, key: k, value: decodeEscapes(v)})
		}
	}
	return f
}

// splitKeyValue splits at the first '=' or ':' separator.
func splitKeyValue(s string) (key, value string) {
	for i, ch := range s {
		if ch == '=' || ch == ':' {
			return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1:])
		}
	}
	return strings.TrimSpace(s), ""
}

// decodeEscapes expands \uXXXX sequences, pairing surrogates.
func decodeEscapes(s string) string {
	if !strings.Contains(s, `\u`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	var pending []uint16
	flush := func() {
		if len(pending) > 0 {
			for _, r := range utf16.Decode(pending) {
				b.WriteRune(r)
			}
			pending = nil
		}
	}
	for i := 0; i < len(s); {
		if s[i] == '\\' && i+6 <= len(s) && s[i+1] == 'u' {
			if code, err := strconv.ParseUint(s[i+2:i+6], 16, 16); err == nil {
				pending = append(pending, uint16(code))
				i += 6
				continue
			}
		}
		flush()
		b.WriteByte(s[i])
		i++
	}
	flush()
	return b.String()
}

// encodeEscapes writes non-ASCII characters as \uXXXX.
func encodeEscapes(s string) string {
	ascii := true
	for _, r := range s {
		if r > 0x7f {
			ascii = false
			break
		}
	}
	if ascii {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		if r <= 0x7f {
			b.WriteRune(r)
			continue
		}
		for _, u := range utf16.Encode([]rune{r}) {
			fmt.Fprintf(&b, `\u%04X`, u)
		}
	}
	return b.String()
}

// ---------------------------------------------------------------------------
// Accessors and serialization
// ---------------------------------------------------------------------------

// Get returns the decoded value for key.
func (f *File) Get(key string) (string, bool) {
	if idx, ok := f.index[key]; ok {
		return f.lines[idx].value, true
	}
	return "", false
}

// Set updates an existing key or appends a new entry at the end.
func (f *File) Set(key, value string) {
	if idx, ok := f.index[key]; ok {
		f.lines[idx].value = value
		return
	}
	f.index[key] = len(f.lines)
	f.lines = append(f.lines, line{kind: lineEntry, key: key, value: value})
}

// Marshal serializes the file back to .properties format.
func (f *File) Marshal() []byte {
	var buf bytes.Buffer
	for _, ln := range f.lines {
		switch ln.kind {
		case lineBlank:
			buf.WriteByte('\n')
		case lineComment:
			buf.WriteString(ln.raw)
			buf.WriteByte('\n')
		case lineEntry:
			buf.WriteString(ln.key)
			buf.WriteByte('=')
			buf.WriteString(encodeEscapes(ln.value))
			buf.WriteByte('\n')
		}
	}
	return buf.Bytes()
}

// WriteFile serializes and writes to path.
func (f *File) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}
	return os.WriteFile(path, f.Marshal(), 0644)
}

// ---------------------------------------------------------------------------
// Resource adapters
// ---------------------------------------------------------------------------

// Read parses a .properties file into a flat resource map. Keys with an
// empty value are omitted so they count as untranslated.
func Read(path string) (*resource.File, error) {
	pf, err := ParseFile(path)
	if err != nil {
		return nil, err
	}
	m := resource.NewMap()
	for _, ln := range pf.lines {
		if ln.kind == lineEntry && ln.value != "" {
			m.Set(ln.key, ln.value)
		}
	}
	return &resource.File{Map: m, Original: pf}, nil
}

// WriteFull writes every key of the map through the carried line model,
// which keeps comments, blank lines, and entry order.
func WriteFull(path string, f *resource.File) error {
	pf, ok := f.Original.(*File)
	if !ok {
		pf = &File{index: make(map[string]int)}
	}
	for _, p := range f.Map.Flatten().Pairs() {
		pf.Set(p.Key, p.Value)
	}
	return pf.WriteFile(path)
}
