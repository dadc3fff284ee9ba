// Package iosstrings implements reading and writing of iOS .strings files.
//
// The format is a flat list of `"key" = "value";` entries with C-style
// escapes. The in-place writer edits values inside the original bytes, so
// comments and blank lines between entries survive; missing keys are
// appended at the end of the file.
package iosstrings

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/algebras-ai/algebras-cli/resource"
)

var entryRe = regexp.MustCompile(`"((?:[^"\\]|\\.)*)"\s*=\s*"((?:[^"\\]|\\.)*)"\s*;`)

// ---------------------------------------------------------------------------
// Reading
// ---------------------------------------------------------------------------

// Read parses a .strings file into a flat resource map.
func Read(path string) (*resource.File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	text := stripComments(string(data))

	m := resource.NewMap()
	for _, match := range entryRe.FindAllStringSubmatch(text, -1) {
		m.Set(unescape(match[1]), unescape(match[2]))
	}
	if m.Len() == 0 && strings.TrimSpace(text) != "" {
		return nil, &resource.ParseError{Path: path, Format: ".strings", Err: fmt.Errorf("no \"key\" = \"value\"; entries found")}
	}
	return &resource.File{Map: m}, nil
}

// stripComments blanks out /* */ and // comments so commented-out entries
// are not parsed. String literals are respected.
func stripComments(src string) string {
	out := []byte(src)
	i := 0
	for i < len(out) {
		switch {
		case out[i] == '"':
			i++
			for i < len(out) && out[i] != '"' {
				if out[i] == '\\' && i+1 < len(out) {
					i++
				}
				i++
			}
			i++
		case out[i] == '/' && i+1 < len(out) && out[i+1] == '/':
			for i < len(out) && out[i] != '\n' {
				out[i] = ' '
				i++
			}
		case out[i] == '/' && i+1 < len(out) && out[i+1] == '*':
			for i+1 < len(out) && !(out[i] == '*' && out[i+1] == '/') {
				if out[i] != '\n' {
					out[i] = ' '
				}
				i++
			}
			if i+1 < len(out) {
				out[i], out[i+1] = ' ', ' '
				i += 2
			}
		default:
			i++
		}
	}
	return string(out)
}

func unescape(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			b.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '"':
			b.WriteByte('"')
		case '\\':
			b.WriteByte('\\')
		default:
			b.WriteByte('\\')
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

func escape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	s = strings.ReplaceAll(s, "\t", `\t`)
	s = strings.ReplaceAll(s, "\r", `\r`)
	return s
}

// ---------------------------------------------------------------------------
// Writing
// ---------------------------------------------------------------------------

// WriteFull regenerates the file as one entry per line.
func WriteFull(path string, f *resource.File) error {
	var b strings.Builder
	for _, p := range f.Map.Flatten().Pairs() {
		fmt.Fprintf(&b, "\"%s\" = \"%s\";\n", escape(p.Key), escape(p.Value))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	return os.WriteFile(path, []byte(b.String()), 0644)
}

// WriteInPlace updates only the listed keys inside the original bytes,
// leaving comments and spacing alone. Keys absent from the file are
// appended.
func WriteInPlace(path string, f *resource.File, keys []string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	text := string(data)
	orig := text

	var appended []string
	for _, key := range keys {
		val, ok := f.Map.GetString(key)
		if !ok {
			continue
		}
		// stripComments is length-preserving, so match offsets found in the
		// stripped text apply to the raw bytes. Commented-out entries never
		// match this way.
		re := regexp.MustCompile(`("` + regexp.QuoteMeta(escape(key)) + `"\s*=\s*")((?:[^"\\]|\\.)*)("\s*;)`)
		loc := re.FindStringSubmatchIndex(stripComments(text))
		if loc == nil {
			appended = append(appended, key)
			continue
		}
		text = text[:loc[4]] + escape(val) + text[loc[5]:]
	}

	if len(appended) > 0 {
		if text != "" && !strings.HasSuffix(text, "\n") {
			text += "\n"
		}
		for _, key := range appended {
			val, _ := f.Map.GetString(key)
			text += fmt.Sprintf("\"%s\" = \"%s\";\n", escape(key), escape(val))
		}
	}
	if text == orig {
		return nil
	}
	return os.WriteFile(path, []byte(text), 0644)
}
