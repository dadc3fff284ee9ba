// Package xliff implements reading and writing of XLIFF 1.2 files
// (.xlf, .xliff).
//
// A file projects to {unit id: target text}; units without a non-empty
// <target> are omitted so the diff engine counts them as missing. The
// source side of a sync uses ReadSource, which projects {unit id: source
// text} instead. The in-place writer splices <target> elements into the
// original bytes, so everything outside the touched trans-units stays
// byte-identical; units the target file does not have are appended before
// </body> with their source text taken from the carried unit table.
package xliff

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/algebras-ai/algebras-cli/resource"
)

// Options controls target-state injection.
type Options struct {
	// TargetState is the state attribute written on injected targets
	// (xlf.default_target_state, default "translated").
	TargetState string
}

// Unit is one trans-unit.
type Unit struct {
	ID        string
	Source    string
	Target    string
	HasTarget bool
}

// Doc carries the parsed unit table for writing.
type Doc struct {
	Units []*Unit
}

func (d *Doc) unit(id string) *Unit {
	for _, u := range d.Units {
		if u.ID == id {
			return u
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Reading
// ---------------------------------------------------------------------------

// Read parses an XLIFF file, projecting translated units only.
func Read(path string) (*resource.File, error) {
	d, err := parseFile(path)
	if err != nil {
		return nil, err
	}
	m := resource.NewMap()
	for _, u := range d.Units {
		if u.HasTarget && u.Target != "" {
			m.Set(u.ID, u.Target)
		}
	}
	return &resource.File{Map: m, Original: d}, nil
}

// ReadSource parses an XLIFF file, projecting source texts. Used when the
// file is the source side of a sync.
func ReadSource(path string) (*resource.File, error) {
	d, err := parseFile(path)
	if err != nil {
		return nil, err
	}
	m := resource.NewMap()
	for _, u := range d.Units {
		m.Set(u.ID, u.Source)
	}
	return &resource.File{Map: m, Original: d}, nil
}

func parseFile(path string) (*Doc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	d, err := parse(data)
	if err != nil {
		return nil, &resource.ParseError{Path: path, Format: "XLIFF", Err: err}
	}
	return d, nil
}

func parse(data []byte) (*Doc, error) {
	type xmlUnit struct {
		ID     string `xml:"id,attr"`
		Source string `xml:"source"`
		Target *struct {
			Text string `xml:",chardata"`
		} `xml:"target"`
	}
	type xmlDoc struct {
		XMLName xml.Name  `xml:"xliff"`
		Units   []xmlUnit `xml:"file>body>trans-unit"`
	}

	var x xmlDoc
	if err := xml.Unmarshal(data, &x); err != nil {
		return nil, err
	}
	d := &Doc{}
	for _, u := range x.Units {
		unit := &Unit{ID: u.ID, Source: u.Source}
		if u.Target != nil {
			unit.HasTarget = true
			unit.Target = u.Target.Text
		}
		d.Units = append(d.Units, unit)
	}
	return d, nil
}

// SeedSources copies source texts from the source file's unit table into
// the target file's, so units appended on write carry a real <source>.
func SeedSources(target, source *resource.File) {
	td, ok1 := target.Original.(*Doc)
	sd, ok2 := source.Original.(*Doc)
	if !ok1 || !ok2 {
		return
	}
	for _, su := range sd.Units {
		if td.unit(su.ID) == nil {
			td.Units = append(td.Units, &Unit{ID: su.ID, Source: su.Source})
		}
	}
}

// ---------------------------------------------------------------------------
// Writing
// ---------------------------------------------------------------------------

func escapeText(s string) string {
	var b strings.Builder
	xml.EscapeText(&b, []byte(s))
	return b.String()
}

// WriteInPlace updates the <target> of each listed unit inside the
// original bytes. Existing targets are replaced and their state attribute
// set; units lacking a target get one inserted after </source>; units
// missing from the file entirely are appended before </body>.
func WriteInPlace(path string, f *resource.File, keys []string, opts Options) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	text := string(data)
	orig := text
	state := opts.TargetState
	if state == "" {
		state = "translated"
	}

	var missing []string
	for _, key := range keys {
		val, ok := f.Map.GetString(key)
		if !ok {
			continue
		}
		newText, done := injectTarget(text, key, escapeText(val), state)
		if done {
			text = newText
		} else {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		text = appendUnits(text, f, missing, state)
	}
	if text == orig {
		return nil
	}
	return os.WriteFile(path, []byte(text), 0644)
}

// WriteFull rewrites every unit's target. When the file exists its bytes
// are the starting point, which keeps surrounding markup and attributes
// intact; otherwise a minimal skeleton is created first.
func WriteFull(path string, f *resource.File, opts Options) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		skeleton := "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n" +
			"<xliff version=\"1.2\" xmlns=\"urn:oasis:names:tc:xliff:document:1.2\">\n" +
			"  <file datatype=\"plaintext\">\n" +
			"    <body>\n" +
			"    </body>\n" +
			"  </file>\n" +
			"</xliff>\n"
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("creating directory: %w", err)
		}
		if err := os.WriteFile(path, []byte(skeleton), 0644); err != nil {
			return err
		}
	}
	return WriteInPlace(path, f, f.Map.Flatten().Keys(), opts)
}

// injectTarget replaces or inserts the <target> inside the trans-unit
// with the given id.
func injectTarget(text, id, escaped, state string) (string, bool) {
	unitRe := regexp.MustCompile(`(?s)<trans-unit\s[^>]*id="` + regexp.QuoteMeta(id) + `"[^>]*>.*?</trans-unit>`)
	loc := unitRe.FindStringIndex(text)
	if loc == nil {
		return text, false
	}
	block := text[loc[0]:loc[1]]

	targetRe := regexp.MustCompile(`(?s)<target[^>]*>.*?</target>|<target[^>]*/>`)
	if tl := targetRe.FindStringIndex(block); tl != nil {
		block = block[:tl[0]] + fmt.Sprintf(`<target state="%s">%s</target>`, state, escaped) + block[tl[1]:]
	} else {
		srcEnd := strings.Index(block, "</source>")
		if srcEnd < 0 {
			return text, false
		}
		srcEnd += len("</source>")
		indent := lineIndentBefore(block, strings.Index(block, "<source"))
		block = block[:srcEnd] + "\n" + indent + fmt.Sprintf(`<target state="%s">%s</target>`, state, escaped) + block[srcEnd:]
	}
	return text[:loc[0]] + block + text[loc[1]:], true
}

// lineIndentBefore returns the whitespace at the start of the line that
// position pos sits on.
func lineIndentBefore(s string, pos int) string {
	if pos < 0 {
		return "        "
	}
	lineStart := strings.LastIndexByte(s[:pos], '\n') + 1
	i := lineStart
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	return s[lineStart:i]
}

// appendUnits adds brand-new trans-units before </body>.
func appendUnits(text string, f *resource.File, keys []string, state string) string {
	closeIdx := strings.LastIndex(text, "</body>")
	if closeIdx < 0 {
		return text
	}
	indent := lineIndentBefore(text, strings.Index(text, "<trans-unit"))
	d, _ := f.Original.(*Doc)

	var b strings.Builder
	for _, key := range keys {
		val, ok := f.Map.GetString(key)
		if !ok {
			continue
		}
		source := ""
		if d != nil {
			if u := d.unit(key); u != nil {
				source = u.Source
			}
		}
		fmt.Fprintf(&b, "%s<trans-unit id=\"%s\">\n", indent, escapeText(key))
		fmt.Fprintf(&b, "%s  <source>%s</source>\n", indent, escapeText(source))
		fmt.Fprintf(&b, "%s  <target state=\"%s\">%s</target>\n", indent, state, escapeText(val))
		fmt.Fprintf(&b, "%s</trans-unit>\n", indent)
	}

	head := text[:closeIdx]
	if !strings.HasSuffix(head, "\n") {
		head += "\n"
	}
	return head + b.String() + text[closeIdx:]
}
