// Package tsfile implements reading and writing of TypeScript translation
// modules of the form:
//
//	export const messages = {
//	  greeting: 'Hello',
//	  nav: { home: 'Home' },
//	};
//
// Reading strips comments, quotes identifier keys, normalizes single-quoted
// strings and trailing commas, then parses the object as JSON. Writing is
// full regeneration with two-space indentation, emitting unquoted keys for
// valid identifiers.
package tsfile

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/algebras-ai/algebras-cli/resource"
)

var exportRe = regexp.MustCompile(`(?s)export\s+(?:default\s+)?const\s+([A-Za-z_$][A-Za-z0-9_$]*)\s*(?::[^=]+)?=\s*(\{.*\})\s*;?\s*$`)

// meta preserves the exported constant name for regeneration.
type meta struct{ name string }

// ---------------------------------------------------------------------------
// Reading
// ---------------------------------------------------------------------------

// Read parses a TypeScript translation module.
func Read(path string) (*resource.File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	src := stripComments(string(data))
	m := exportRe.FindStringSubmatch(strings.TrimSpace(src))
	if m == nil {
		return nil, &resource.ParseError{Path: path, Format: "TypeScript", Err: fmt.Errorf("no 'export const <name> = { ... }' found")}
	}
	name, object := m[1], m[2]

	jsonText := toJSON(object)
	if !gjson.Valid(jsonText) {
		return nil, &resource.ParseError{Path: path, Format: "TypeScript", Err: fmt.Errorf("object literal does not parse")}
	}
	root := gjson.Parse(jsonText)
	if !root.IsObject() {
		return nil, &resource.ParseError{Path: path, Format: "TypeScript", Err: fmt.Errorf("export is not an object")}
	}
	return &resource.File{Map: toMap(root), Original: &meta{name: name}}, nil
}

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

// raw is a non-string leaf (boolean, number, null, array) kept verbatim.
type raw struct{ json string }

// stripComments removes // and /* */ comments outside string literals.
func stripComments(src string) string {
	var b strings.Builder
	b.Grow(len(src))
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			quote := c
			b.WriteByte(c)
			i++
			for i < len(src) {
				b.WriteByte(src[i])
				if src[i] == '\\' && i+1 < len(src) {
					i++
					b.WriteByte(src[i])
				} else if src[i] == quote {
					i++
					break
				}
				i++
			}
		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			for i < len(src) && src[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			i += 2
			for i+1 < len(src) && !(src[i] == '*' && src[i+1] == '/') {
				i++
			}
			i += 2
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String()
}

var identKeyRe = regexp.MustCompile(`([{,]\s*)([A-Za-z_$][A-Za-z0-9_$]*)\s*:`)
var trailingCommaRe = regexp.MustCompile(`,(\s*[}\]])`)

// toJSON converts a comment-free TS object literal to JSON: identifier keys
// are quoted, single-quoted strings converted, trailing commas dropped.
func toJSON(object string) string {
	out := convertSingleQuotes(object)
	out = identKeyRe.ReplaceAllString(out, `$1"$2":`)
	out = trailingCommaRe.ReplaceAllString(out, `$1`)
	return out
}

// convertSingleQuotes rewrites 'abc' literals as "abc" with re-escaping.
func convertSingleQuotes(src string) string {
	var b strings.Builder
	b.Grow(len(src))
	i := 0
	for i < len(src) {
		c := src[i]
		if c == '"' {
			b.WriteByte(c)
			i++
			for i < len(src) {
				b.WriteByte(src[i])
				if src[i] == '\\' && i+1 < len(src) {
					i++
					b.WriteByte(src[i])
				} else if src[i] == '"' {
					i++
					break
				}
				i++
			}
			continue
		}
		if c == '\'' {
			i++
			var lit strings.Builder
			for i < len(src) && src[i] != '\'' {
				if src[i] == '\\' && i+1 < len(src) {
					switch src[i+1] {
					case '\'':
						lit.WriteByte('\'')
					case '\\':
						lit.WriteString(`\\`)
					default:
						lit.WriteByte('\\')
						lit.WriteByte(src[i+1])
					}
					i += 2
					continue
				}
				lit.WriteByte(src[i])
				i++
			}
			i++ // closing quote
			b.WriteString(strconv.Quote(lit.String()))
			continue
		}
		b.WriteByte(c)
		i++
	}
	return b.String()
}

// ---------------------------------------------------------------------------
// Writing
// ---------------------------------------------------------------------------

var identRe = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// WriteFull regenerates the module with two-space indentation.
func WriteFull(path string, f *resource.File) error {
	name := "messages"
	if m, ok := f.Original.(*meta); ok {
		name = m.name
	}
	var b strings.Builder
	b.WriteString("export const " + name + " = ")
	marshalObject(&b, f.Map, 1)
	b.WriteString(";\n")
	return os.WriteFile(path, []byte(b.String()), 0644)
}

func marshalObject(b *strings.Builder, m *resource.Map, depth int) {
	keys := m.Keys()
	if len(keys) == 0 {
		b.WriteString("{}")
		return
	}
	pad := strings.Repeat("  ", depth)
	b.WriteString("{\n")
	for _, k := range keys {
		b.WriteString(pad)
		if identRe.MatchString(k) {
			b.WriteString(k)
		} else {
			b.WriteString(strconv.Quote(k))
		}
		b.WriteString(": ")
		v, _ := m.Get(k)
		switch val := v.(type) {
		case *resource.Map:
			marshalObject(b, val, depth+1)
		case string:
			b.WriteString(strconv.Quote(val))
		case raw:
			b.WriteString(val.json)
		default:
			b.WriteString(strconv.Quote(fmt.Sprint(val)))
		}
		b.WriteString(",\n")
	}
	b.WriteString(strings.Repeat("  ", depth-1))
	b.WriteString("}")
}
