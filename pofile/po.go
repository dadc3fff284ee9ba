// Package pofile implements reading and writing of PO files following the
// GNU gettext format specification.
//
// Beyond plain parsing, each entry remembers the verbatim source lines of
// its msgstr block. When a write does not change the translation, those
// lines are emitted as-is, so an entry's original single-line or multi-line
// layout survives. Changed translations are reformatted: single line
// normally, multi-line when the text contains a newline or is long.
package pofile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/algebras-ai/algebras-cli/resource"
)

// ctxtSep joins msgctxt and msgid into one flat key, following the gettext
// convention for context-qualified message ids.
const ctxtSep = "\x04"

// reformatThreshold is the msgstr byte length beyond which a changed
// translation is written multi-line.
const reformatThreshold = 120

// Options controls writer behavior.
type Options struct {
	// MarkFuzzy adds "#, fuzzy" to entries whose msgstr was changed
	// (po.mark_fuzzy).
	MarkFuzzy bool
}

// Entry represents a single translatable message in a PO file.
type Entry struct {
	// TranslatorComments are lines starting with "# ".
	TranslatorComments []string
	// ExtractedComments are lines starting with "#.".
	ExtractedComments []string
	// References are source code locations, lines starting with "#:".
	References []string
	// Flags are format flags, lines starting with "#,".
	Flags []string
	// PreviousMsgID stores the previous msgid for fuzzy entries ("#|").
	PreviousMsgID string

	// MsgCtxt is the message context (msgctxt).
	MsgCtxt string
	// MsgID is the untranslated string.
	MsgID string
	// MsgIDPlural is the untranslated plural string.
	MsgIDPlural string
	// MsgStr is the translated string (singular or the only form).
	MsgStr string
	// MsgStrPlural maps plural form index to translated string.
	MsgStrPlural map[int]string

	// Obsolete marks entries prefixed with "#~".
	Obsolete bool

	// rawStrLines holds the verbatim msgstr block as read from disk;
	// origStr is the msgstr value those lines decoded to.
	rawStrLines []string
	origStr     string
}

// Key returns the flat lookup key for the entry: msgid, qualified by
// msgctxt when present.
func (e *Entry) Key() string {
	if e.MsgCtxt != "" {
		return e.MsgCtxt + ctxtSep + e.MsgID
	}
	return e.MsgID
}

// SplitKey decomposes a flat key back into msgctxt and msgid.
func SplitKey(key string) (ctxt, msgid string) {
	if i := strings.Index(key, ctxtSep); i >= 0 {
		return key[:i], key[i+len(ctxtSep):]
	}
	return "", key
}

// IsFuzzy returns true if the entry is marked fuzzy.
func (e *Entry) IsFuzzy() bool {
	for _, f := range e.Flags {
		if f == "fuzzy" {
			return true
		}
	}
	return false
}

// SetFuzzy adds or removes the fuzzy flag.
func (e *Entry) SetFuzzy(fuzzy bool) {
	if fuzzy && !e.IsFuzzy() {
		e.Flags = append(e.Flags, "fuzzy")
	} else if !fuzzy {
		filtered := make([]string, 0, len(e.Flags))
		for _, f := range e.Flags {
			if f != "fuzzy" {
				filtered = append(filtered, f)
			}
		}
		e.Flags = filtered
	}
}

// Catalog represents a parsed PO file.
type Catalog struct {
	// Header is the metadata entry (msgid "").
	Header *Entry
	// Entries are the translatable message entries in file order.
	Entries []*Entry
}

// NewCatalog creates an empty catalog with a standard header for the given
// language, including its Plural-Forms rule.
func NewCatalog(language string) *Catalog {
	now := time.Now().UTC().Format("2006-01-02 15:04+0000")
	header := fmt.Sprintf(
		"PO-Revision-Date: %s\n"+
			"Language: %s\n"+
			"MIME-Version: 1.0\n"+
			"Content-Type: text/plain; charset=UTF-8\n"+
			"Content-Transfer-Encoding: 8bit\n"+
			"Plural-Forms: %s\n",
		now, language, PluralFormsForLang(language),
	)
	return &Catalog{Header: &Entry{MsgID: "", MsgStr: header}}
}

// HeaderField returns a header field value by name.
func (c *Catalog) HeaderField(name string) string {
	if c.Header == nil {
		return ""
	}
	for _, line := range strings.Split(c.Header.MsgStr, "\n") {
		if idx := strings.Index(line, ":"); idx > 0 {
			if strings.EqualFold(strings.TrimSpace(line[:idx]), name) {
				return strings.TrimSpace(line[idx+1:])
			}
		}
	}
	return ""
}

// EntryByKey finds a non-obsolete entry by its flat key.
func (c *Catalog) EntryByKey(key string) *Entry {
	for _, e := range c.Entries {
		if e.Key() == key && !e.Obsolete {
			return e
		}
	}
	return nil
}

// Stats returns translation statistics.
func (c *Catalog) Stats() (total, translated, fuzzy, untranslated int) {
	for _, e := range c.Entries {
		if e.MsgID == "" || e.Obsolete {
			continue
		}
		total++
		switch {
		case e.IsFuzzy():
			fuzzy++
		case e.MsgStr != "":
			translated++
		default:
			untranslated++
		}
	}
	return
}

// ---------------------------------------------------------------------------
// Parsing
// ---------------------------------------------------------------------------

// Parse reads a PO file from a reader.
func Parse(r io.Reader) (*Catalog, error) {
	c := &Catalog{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	var current *Entry
	var lastField string
	lineNum := 0

	flush := func() {
		if current == nil {
			return
		}
		current.origStr = current.MsgStr
		if current.MsgID == "" && !current.Obsolete {
			c.Header = current
		} else {
			c.Entries = append(c.Entries, current)
		}
		current = nil
		lastField = ""
	}

	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		rawLine := line

		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		if current == nil {
			current = &Entry{MsgStrPlural: make(map[int]string)}
		}

		if strings.HasPrefix(line, "#~ ") {
			current.Obsolete = true
			line = line[3:]
		}

		if strings.HasPrefix(line, "#") && !strings.HasPrefix(line, "#~") {
			switch {
			case strings.HasPrefix(line, "#:"):
				current.References = append(current.References, strings.TrimSpace(line[2:]))
			case strings.HasPrefix(line, "#,"):
				for _, flag := range strings.Split(strings.TrimSpace(line[2:]), ",") {
					if flag = strings.TrimSpace(flag); flag != "" {
						current.Flags = append(current.Flags, flag)
					}
				}
			case strings.HasPrefix(line, "#."):
				current.ExtractedComments = append(current.ExtractedComments, strings.TrimSpace(line[2:]))
			case strings.HasPrefix(line, "#|"):
				prev := strings.TrimSpace(line[2:])
				if strings.HasPrefix(prev, "msgid ") {
					current.PreviousMsgID = unquote(strings.TrimPrefix(prev, "msgid "))
				}
			default:
				comment := strings.TrimPrefix(line[1:], " ")
				current.TranslatorComments = append(current.TranslatorComments, comment)
			}
			continue
		}

		switch {
		case strings.HasPrefix(line, "msgctxt "):
			current.MsgCtxt = unquote(strings.TrimPrefix(line, "msgctxt "))
			lastField = "msgctxt"
		case strings.HasPrefix(line, "msgid_plural "):
			current.MsgIDPlural = unquote(strings.TrimPrefix(line, "msgid_plural "))
			lastField = "msgid_plural"
		case strings.HasPrefix(line, "msgid "):
			current.MsgID = unquote(strings.TrimPrefix(line, "msgid "))
			lastField = "msgid"
		case strings.HasPrefix(line, "msgstr["):
			var idx int
			if n, err := fmt.Sscanf(line, "msgstr[%d]", &idx); err != nil || n != 1 {
				return nil, fmt.Errorf("line %d: invalid msgstr index: %s", lineNum, line)
			}
			bracketEnd := strings.Index(line, "] ")
			if bracketEnd < 0 {
				return nil, fmt.Errorf("line %d: invalid msgstr format: %s", lineNum, line)
			}
			current.MsgStrPlural[idx] = unquote(line[bracketEnd+2:])
			lastField = fmt.Sprintf("msgstr[%d]", idx)
		case strings.HasPrefix(line, "msgstr "):
			current.MsgStr = unquote(strings.TrimPrefix(line, "msgstr "))
			current.rawStrLines = []string{rawLine}
			lastField = "msgstr"
		case strings.HasPrefix(line, "\""):
			val := unquote(line)
			switch {
			case lastField == "msgctxt":
				current.MsgCtxt += val
			case lastField == "msgid":
				current.MsgID += val
			case lastField == "msgid_plural":
				current.MsgIDPlural += val
			case lastField == "msgstr":
				current.MsgStr += val
				current.rawStrLines = append(current.rawStrLines, rawLine)
			case strings.HasPrefix(lastField, "msgstr["):
				var idx int
				fmt.Sscanf(lastField, "msgstr[%d]", &idx)
				current.MsgStrPlural[idx] += val
			}
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading PO file: %w", err)
	}
	return c, nil
}

// ParseFile reads a PO file from disk.
func ParseFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// ---------------------------------------------------------------------------
// Serialization
// ---------------------------------------------------------------------------

// Write writes the catalog to a writer.
func (c *Catalog) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if c.Header != nil {
		writeEntry(bw, c.Header)
	}
	for _, e := range c.Entries {
		fmt.Fprintln(bw)
		writeEntry(bw, e)
	}
	return bw.Flush()
}

// WriteFile writes the catalog to disk.
func (c *Catalog) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()
	return c.Write(out)
}

func writeEntry(w *bufio.Writer, e *Entry) {
	prefix := ""
	if e.Obsolete {
		prefix = "#~ "
	}
	for _, c := range e.TranslatorComments {
		fmt.Fprintf(w, "# %s\n", c)
	}
	for _, c := range e.ExtractedComments {
		fmt.Fprintf(w, "#. %s\n", c)
	}
	for _, ref := range e.References {
		fmt.Fprintf(w, "#: %s\n", ref)
	}
	if len(e.Flags) > 0 {
		fmt.Fprintf(w, "#, %s\n", strings.Join(e.Flags, ", "))
	}
	if e.PreviousMsgID != "" {
		fmt.Fprintf(w, "#| msgid %s\n", quote(e.PreviousMsgID))
	}
	if e.MsgCtxt != "" {
		writeQuotedField(w, prefix+"msgctxt", e.MsgCtxt)
	}
	writeQuotedField(w, prefix+"msgid", e.MsgID)
	if e.MsgIDPlural != "" {
		writeQuotedField(w, prefix+"msgid_plural", e.MsgIDPlural)
	}

	if e.MsgIDPlural != "" && len(e.MsgStrPlural) > 0 {
		indices := make([]int, 0, len(e.MsgStrPlural))
		for idx := range e.MsgStrPlural {
			indices = append(indices, idx)
		}
		sort.Ints(indices)
		for _, idx := range indices {
			writeQuotedField(w, fmt.Sprintf("%smsgstr[%d]", prefix, idx), e.MsgStrPlural[idx])
		}
		return
	}

	// Unchanged translations keep their source layout verbatim. Changed
	// ones are reformatted only when the text warrants it.
	if e.rawStrLines != nil && e.MsgStr == e.origStr {
		for _, line := range e.rawStrLines {
			fmt.Fprintln(w, line)
		}
		return
	}
	if strings.Contains(e.MsgStr, "\n") || len(e.MsgStr) > reformatThreshold {
		writeQuotedField(w, prefix+"msgstr", e.MsgStr)
	} else {
		fmt.Fprintf(w, "%smsgstr %s\n", prefix, quote(e.MsgStr))
	}
}

// writeQuotedField writes a PO field with multiline quoting when needed.
func writeQuotedField(w *bufio.Writer, field, value string) {
	if !strings.Contains(value, "\n") && len(value) <= reformatThreshold {
		fmt.Fprintf(w, "%s %s\n", field, quote(value))
		return
	}
	fmt.Fprintf(w, "%s \"\"\n", field)
	for _, part := range strings.SplitAfter(value, "\n") {
		if part == "" {
			continue
		}
		fmt.Fprintf(w, "%s\n", quote(part))
	}
}

// quote produces a PO-style quoted string.
func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	s = strings.ReplaceAll(s, "\t", `\t`)
	return `"` + s + `"`
}

// unquote removes PO-style quoting from a string.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return s
	}
	s = s[1 : len(s)-1]

	var result strings.Builder
	result.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case 'n':
				result.WriteByte('\n')
				i++
			case 't':
				result.WriteByte('\t')
				i++
			case '\\':
				result.WriteByte('\\')
				i++
			case '"':
				result.WriteByte('"')
				i++
			default:
				result.WriteByte(s[i])
			}
		} else {
			result.WriteByte(s[i])
		}
	}
	return result.String()
}

// PluralFormsForLang returns the standard Plural-Forms header for a
// language code.
func PluralFormsForLang(lang string) string {
	base := lang
	if idx := strings.IndexAny(lang, "_-"); idx > 0 {
		base = lang[:idx]
	}
	switch base {
	case "ja", "ko", "zh", "vi", "th", "id", "ms":
		return "nplurals=1; plural=0;"
	case "fr", "pt":
		return "nplurals=2; plural=(n > 1);"
	case "ru", "uk", "be", "hr", "sr", "bs":
		return "nplurals=3; plural=(n%10==1 && n%100!=11 ? 0 : n%10>=2 && n%10<=4 && (n%100<10 || n%100>=20) ? 1 : 2);"
	case "pl":
		return "nplurals=3; plural=(n==1 ? 0 : n%10>=2 && n%10<=4 && (n%100<10 || n%100>=20) ? 1 : 2);"
	case "cs", "sk":
		return "nplurals=3; plural=(n==1 ? 0 : n>=2 && n<=4 ? 1 : 2);"
	case "ro":
		return "nplurals=3; plural=(n==1 ? 0 : (n==0 || (n%100 > 0 && n%100 < 20)) ? 1 : 2);"
	case "lt":
		return "nplurals=3; plural=(n%10==1 && n%100!=11 ? 0 : n%10>=2 && (n%100<10 || n%100>=20) ? 1 : 2);"
	case "lv":
		return "nplurals=3; plural=(n%10==1 && n%100!=11 ? 0 : n != 0 ? 1 : 2);"
	case "ar":
		return "nplurals=6; plural=(n==0 ? 0 : n==1 ? 1 : n==2 ? 2 : n%100>=3 && n%100<=10 ? 3 : n%100>=11 ? 4 : 5);"
	default:
		return "nplurals=2; plural=(n != 1);"
	}
}

// ---------------------------------------------------------------------------
// Resource adapters
// ---------------------------------------------------------------------------

// Read parses a PO file into a flat resource map. Keys are msgids,
// context-qualified when a msgctxt is present; obsolete entries and the
// header are excluded. The parsed catalog rides along for writing.
func Read(path string) (*resource.File, error) {
	c, err := ParseFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, err
		}
		return nil, &resource.ParseError{Path: path, Format: "PO", Err: err}
	}
	m := resource.NewMap()
	for _, e := range c.Entries {
		if e.MsgID == "" || e.Obsolete {
			continue
		}
		m.Set(e.Key(), e.MsgStr)
	}
	return &resource.File{Map: m, Original: c}, nil
}

// WriteFull writes every key of the flat map into the catalog and
// serializes it. Without a carried catalog a fresh one is created.
func WriteFull(path string, f *resource.File, opts Options) error {
	return write(path, f, f.Map.Flatten().Keys(), opts)
}

// WriteInPlace updates only the listed keys, preserving the layout of
// every untouched entry. Keys absent from the catalog are appended as new
// entries.
func WriteInPlace(path string, f *resource.File, keys []string, opts Options) error {
	return write(path, f, keys, opts)
}

func write(path string, f *resource.File, keys []string, opts Options) error {
	c, ok := f.Original.(*Catalog)
	if !ok {
		c = NewCatalog("")
	}
	for _, key := range keys {
		val, okv := f.Map.GetString(key)
		if !okv {
			continue
		}
		e := c.EntryByKey(key)
		if e == nil {
			ctxt, msgid := SplitKey(key)
			e = &Entry{MsgCtxt: ctxt, MsgID: msgid, MsgStrPlural: make(map[int]string)}
			c.Entries = append(c.Entries, e)
		}
		if e.MsgStr != val {
			e.MsgStr = val
			if opts.MarkFuzzy {
				e.SetFuzzy(true)
			}
		}
	}
	return c.WriteFile(path)
}
