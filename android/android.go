// Package android implements reading and writing of Android strings.xml
// resource files.
//
// Supported resource types:
//   - <string>   — simple key/value string
//   - <plurals>  — quantity-keyed plural forms, flattened as
//     "<name>.__plurals__.<quantity>"
//
// Text escaping follows AAPT rules: &, <, > use XML entities; newline and
// tab are always written as \n and \t; quotes and apostrophes are escaped
// only when string normalization is off. The in-place writer preserves the
// original <resources> tag with all its namespace declarations, keeps
// &#160; entities in keys that originally used them, and appends new keys
// before the closing tag.
package android

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/algebras-ai/algebras-cli/resource"
)

// PluralMarker separates a plurals resource name from its quantity keys in
// the flat projection.
const PluralMarker = "__plurals__"

// Options controls escaping behavior.
type Options struct {
	// NormalizeStrings, when true, leaves quotes and apostrophes
	// unescaped in the output (api.normalize_strings).
	NormalizeStrings bool
}

// doc carries the on-disk idiosyncrasies needed for faithful writes.
type doc struct {
	// rootTag is the verbatim <resources ...> opening tag.
	rootTag string
	// nbspKeys marks flat keys whose original text contained &#160;.
	nbspKeys map[string]bool
	// indent is the leading whitespace of the first resource line.
	indent string
}

// ---------------------------------------------------------------------------
// Reading
// ---------------------------------------------------------------------------

var (
	rootTagRe      = regexp.MustCompile(`<resources[^>]*>`)
	stringNbspRe   = regexp.MustCompile(`<string\s[^>]*name="([^"]+)"[^>]*>[^<]*&#160;`)
	resourceLineRe = regexp.MustCompile(`(?m)^([ \t]+)<(?:string|plurals)\s`)
)

// Read parses a strings.xml file into a flat resource map.
func Read(path string) (*resource.File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parse(path, data)
}

func parse(path string, data []byte) (*resource.File, error) {
	text := string(data)

	d := &doc{nbspKeys: make(map[string]bool), indent: "    "}
	if m := rootTagRe.FindString(text); m != "" {
		d.rootTag = m
	} else {
		return nil, &resource.ParseError{Path: path, Format: "Android XML", Err: fmt.Errorf("no <resources> root element")}
	}
	if m := resourceLineRe.FindStringSubmatch(text); m != nil {
		d.indent = m[1]
	}
	for _, m := range stringNbspRe.FindAllStringSubmatch(text, -1) {
		d.nbspKeys[m[1]] = true
	}

	rm := resource.NewMap()
	dec := xml.NewDecoder(strings.NewReader(text))
	inResources := false
	for {
		tok, err := dec.Token()
		if err != nil {
			break // EOF or trailing garbage
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "resources":
				inResources = true
			case "string":
				if !inResources {
					continue
				}
				name := attrValue(t, "name")
				var inner strings.Builder
				if err := readContent(dec, &inner); err != nil {
					return nil, &resource.ParseError{Path: path, Format: "Android XML", Err: err}
				}
				rm.Set(name, unescapeValue(inner.String()))
			case "plurals":
				if !inResources {
					continue
				}
				name := attrValue(t, "name")
				forms, err := readPlurals(dec)
				if err != nil {
					return nil, &resource.ParseError{Path: path, Format: "Android XML", Err: err}
				}
				rm.Set(name, forms)
			default:
				if inResources {
					_ = dec.Skip()
				}
			}
		case xml.EndElement:
			if t.Name.Local == "resources" {
				inResources = false
			}
		}
	}
	return &resource.File{Map: rm, Original: d}, nil
}

func attrValue(elem xml.StartElement, name string) string {
	for _, a := range elem.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// readPlurals parses the <item quantity="…"> children of an open <plurals>.
func readPlurals(dec *xml.Decoder) (*resource.Map, error) {
	inner := resource.NewMap()
	forms := resource.NewMap()
	inner.Set(PluralMarker, forms)
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "item" && depth == 1 {
				q := attrValue(t, "quantity")
				var b strings.Builder
				if err := readContent(dec, &b); err != nil {
					return nil, err
				}
				if q != "" {
					forms.Set(q, unescapeValue(b.String()))
				}
			} else {
				depth++
			}
		case xml.EndElement:
			depth--
		}
	}
	return inner, nil
}

// readContent reads the inner content of an element up to its close tag,
// reconstructing inline child elements (e.g. <xliff:g>) as raw text.
func readContent(dec *xml.Decoder, b *strings.Builder) error {
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.CharData:
			b.WriteString(string(t))
		case xml.StartElement:
			depth++
			b.WriteString("<")
			if t.Name.Space != "" {
				b.WriteString(t.Name.Space + ":")
			}
			b.WriteString(t.Name.Local)
			for _, a := range t.Attr {
				fmt.Fprintf(b, ` %s="%s"`, a.Name.Local, a.Value)
			}
			b.WriteString(">")
		case xml.EndElement:
			depth--
			if depth > 0 {
				b.WriteString("</")
				if t.Name.Space != "" {
					b.WriteString(t.Name.Space + ":")
				}
				b.WriteString(t.Name.Local + ">")
			}
		}
	}
	return nil
}

// unescapeValue reverses AAPT escapes so the engine sees natural text.
func unescapeValue(s string) string {
	s = strings.ReplaceAll(s, `\n`, "\n")
	s = strings.ReplaceAll(s, `\t`, "\t")
	s = strings.ReplaceAll(s, `\'`, "'")
	s = strings.ReplaceAll(s, `\"`, `"`)
	return s
}

// ---------------------------------------------------------------------------
// Escaping
// ---------------------------------------------------------------------------

// escapeValue encodes a value for XML output. Values carrying inline markup
// (both < and > present) are passed through untouched.
func escapeValue(s string, opts Options, nbsp bool) string {
	if strings.Contains(s, "<") && strings.Contains(s, ">") {
		return s
	}
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\n", `\n`)
	s = strings.ReplaceAll(s, "\t", `\t`)
	if !opts.NormalizeStrings {
		s = strings.ReplaceAll(s, "'", `\'`)
		s = strings.ReplaceAll(s, `"`, `\"`)
	}
	if nbsp {
		s = strings.ReplaceAll(s, " ", "&#160;")
	}
	return s
}

// ---------------------------------------------------------------------------
// Writing
// ---------------------------------------------------------------------------

// WriteFull regenerates the file from scratch, keeping the original root
// tag (namespace declarations included) when available.
func WriteFull(path string, f *resource.File, opts Options) error {
	d, _ := f.Original.(*doc)
	rootTag := "<resources>"
	indent := "    "
	nbsp := map[string]bool{}
	if d != nil {
		rootTag = d.rootTag
		indent = d.indent
		nbsp = d.nbspKeys
	}

	var b strings.Builder
	b.WriteString("<?xml version=\"1.0\" encoding=\"utf-8\"?>\n")
	b.WriteString(rootTag + "\n")
	for _, name := range f.Map.Keys() {
		v, _ := f.Map.Get(name)
		switch val := v.(type) {
		case string:
			fmt.Fprintf(&b, "%s<string name=\"%s\">%s</string>\n", indent, name, escapeValue(val, opts, nbsp[name]))
		case *resource.Map:
			forms, ok := pluralForms(val)
			if !ok {
				continue
			}
			fmt.Fprintf(&b, "%s<plurals name=\"%s\">\n", indent, name)
			for _, q := range forms.Keys() {
				fv, _ := forms.GetString(q)
				fmt.Fprintf(&b, "%s%s<item quantity=\"%s\">%s</item>\n", indent, indent, q, escapeValue(fv, opts, false))
			}
			fmt.Fprintf(&b, "%s</plurals>\n", indent)
		}
	}
	b.WriteString("</resources>\n")

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	return os.WriteFile(path, []byte(b.String()), 0644)
}

func pluralForms(m *resource.Map) (*resource.Map, bool) {
	v, ok := m.Get(PluralMarker)
	if !ok {
		return nil, false
	}
	forms, ok := v.(*resource.Map)
	return forms, ok
}

// WriteInPlace updates only the listed flat keys in the original file
// bytes. Keys not present in the file are appended before </resources>.
func WriteInPlace(path string, f *resource.File, keys []string, opts Options) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	text := string(data)
	orig := text

	d, _ := f.Original.(*doc)
	nbsp := map[string]bool{}
	indent := "    "
	if d != nil {
		nbsp = d.nbspKeys
		indent = d.indent
	}
	if m := resourceLineRe.FindStringSubmatch(text); m != nil {
		indent = m[1]
	}

	var appended []string
	for _, key := range keys {
		name, quantity, isPlural := splitPluralKey(key)
		if isPlural {
			forms, ok := pluralFormsFor(f.Map, name)
			if !ok {
				continue
			}
			val, ok := forms.GetString(quantity)
			if !ok {
				continue
			}
			newText, replaced := replacePluralItem(text, name, quantity, escapeValue(val, opts, false))
			if replaced {
				text = newText
			} else {
				appended = append(appended, key)
			}
			continue
		}
		val, ok := f.Map.GetString(key)
		if !ok {
			continue
		}
		newText, replaced := replaceStringValue(text, key, escapeValue(val, opts, nbsp[key]))
		if replaced {
			text = newText
		} else {
			appended = append(appended, key)
		}
	}

	if len(appended) > 0 {
		text = appendEntries(text, f, appended, indent, opts)
	}
	if text == orig {
		return nil
	}
	return os.WriteFile(path, []byte(text), 0644)
}

func splitPluralKey(key string) (name, quantity string, ok bool) {
	marker := "." + PluralMarker + "."
	i := strings.Index(key, marker)
	if i < 0 {
		return key, "", false
	}
	return key[:i], key[i+len(marker):], true
}

func pluralFormsFor(m *resource.Map, name string) (*resource.Map, bool) {
	v, ok := m.Get(name)
	if !ok {
		return nil, false
	}
	inner, ok := v.(*resource.Map)
	if !ok {
		return nil, false
	}
	return pluralForms(inner)
}

// replaceStringValue substitutes the text node of <string name="…">,
// leaving the opening tag (and any attributes) untouched.
func replaceStringValue(text, name, escaped string) (string, bool) {
	re := regexp.MustCompile(`(?s)(<string\s[^>]*name="` + regexp.QuoteMeta(name) + `"[^>]*>)(.*?)(</string>)`)
	loc := re.FindStringSubmatchIndex(text)
	if loc == nil {
		return text, false
	}
	return text[:loc[4]] + escaped + text[loc[5]:], true
}

// replacePluralItem substitutes one <item quantity="…"> inside the plurals
// block for the given resource name.
func replacePluralItem(text, name, quantity, escaped string) (string, bool) {
	blockRe := regexp.MustCompile(`(?s)<plurals\s[^>]*name="` + regexp.QuoteMeta(name) + `"[^>]*>.*?</plurals>`)
	blockLoc := blockRe.FindStringIndex(text)
	if blockLoc == nil {
		return text, false
	}
	block := text[blockLoc[0]:blockLoc[1]]
	itemRe := regexp.MustCompile(`(?s)(<item\s[^>]*quantity="` + regexp.QuoteMeta(quantity) + `"[^>]*>)(.*?)(</item>)`)
	loc := itemRe.FindStringSubmatchIndex(block)
	if loc == nil {
		return text, false
	}
	newBlock := block[:loc[4]] + escaped + block[loc[5]:]
	return text[:blockLoc[0]] + newBlock + text[blockLoc[1]:], true
}

// appendEntries inserts new resources before the closing </resources> tag.
func appendEntries(text string, f *resource.File, keys []string, indent string, opts Options) string {
	closeIdx := strings.LastIndex(text, "</resources>")
	if closeIdx < 0 {
		return text
	}

	var b strings.Builder
	pluralsDone := make(map[string]bool)
	for _, key := range keys {
		name, _, isPlural := splitPluralKey(key)
		if isPlural {
			if pluralsDone[name] {
				continue
			}
			pluralsDone[name] = true
			forms, ok := pluralFormsFor(f.Map, name)
			if !ok {
				continue
			}
			fmt.Fprintf(&b, "%s<plurals name=\"%s\">\n", indent, name)
			for _, q := range forms.Keys() {
				fv, _ := forms.GetString(q)
				fmt.Fprintf(&b, "%s%s<item quantity=\"%s\">%s</item>\n", indent, indent, q, escapeValue(fv, opts, false))
			}
			fmt.Fprintf(&b, "%s</plurals>\n", indent)
			continue
		}
		val, ok := f.Map.GetString(key)
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "%s<string name=\"%s\">%s</string>\n", indent, name, escapeValue(val, opts, false))
	}

	head := text[:closeIdx]
	if !strings.HasSuffix(head, "\n") {
		head += "\n"
	}
	return head + b.String() + text[closeIdx:]
}
