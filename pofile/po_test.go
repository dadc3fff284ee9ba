// Package pofile tests.
package pofile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sample = `msgid ""
msgstr ""
"Language: fr\n"
"Content-Type: text/plain; charset=UTF-8\n"

#: src/app.c:12
msgid "Hello"
msgstr "Bonjour"

#. Shown in the footer
msgid "Long"
msgstr ""
"first line\n"
"second line"

msgctxt "menu"
msgid "Open"
msgstr "Ouvrir"

msgid "Untranslated"
msgstr ""
`

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fr.po")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParse_Fields(t *testing.T) {
	c, err := Parse(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := c.HeaderField("Language"); got != "fr" {
		t.Errorf("Language = %q", got)
	}
	if len(c.Entries) != 4 {
		t.Fatalf("entries = %d, want 4", len(c.Entries))
	}
	if e := c.EntryByKey("Long"); e == nil || e.MsgStr != "first line\nsecond line" {
		t.Errorf("multiline msgstr wrong: %+v", e)
	}
	if e := c.EntryByKey("menu" + ctxtSep + "Open"); e == nil || e.MsgStr != "Ouvrir" {
		t.Error("context-qualified entry not found")
	}
	total, translated, _, untranslated := c.Stats()
	if total != 4 || translated != 3 || untranslated != 1 {
		t.Errorf("stats = %d/%d/%d", total, translated, untranslated)
	}
}

func TestRead_FlatProjection(t *testing.T) {
	path := writeTemp(t, sample)
	f, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if v, _ := f.Map.GetString("Hello"); v != "Bonjour" {
		t.Errorf("Hello = %q", v)
	}
	if _, ok := f.Map.Get(""); ok {
		t.Error("header leaked into projection")
	}
}

func TestWriteInPlace_PreservesUnchangedLayout(t *testing.T) {
	path := writeTemp(t, sample)
	f, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	f.Map.Set("Untranslated", "Traduit")

	if err := WriteInPlace(path, f, []string{"Untranslated"}, Options{}); err != nil {
		t.Fatalf("WriteInPlace: %v", err)
	}
	data, _ := os.ReadFile(path)
	text := string(data)

	// Untouched multi-line entry keeps its original layout.
	if !strings.Contains(text, "msgstr \"\"\n\"first line\\n\"\n\"second line\"") {
		t.Errorf("multi-line layout not preserved:\n%s", text)
	}
	// Untouched single-line entry stays single-line.
	if !strings.Contains(text, "msgstr \"Bonjour\"") {
		t.Errorf("single-line layout not preserved:\n%s", text)
	}
	if !strings.Contains(text, "msgstr \"Traduit\"") {
		t.Errorf("updated entry missing:\n%s", text)
	}
	// Comments and context survive.
	if !strings.Contains(text, "#: src/app.c:12") || !strings.Contains(text, "#. Shown in the footer") {
		t.Errorf("comments lost:\n%s", text)
	}
	if !strings.Contains(text, "msgctxt \"menu\"") {
		t.Errorf("msgctxt lost:\n%s", text)
	}
}

func TestWriteInPlace_ChangedShortValueStaysSingleLine(t *testing.T) {
	path := writeTemp(t, sample)
	f, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	f.Map.Set("Long", "court")

	if err := WriteInPlace(path, f, []string{"Long"}, Options{}); err != nil {
		t.Fatalf("WriteInPlace: %v", err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "msgstr \"court\"") {
		t.Errorf("changed short value not reformatted single-line:\n%s", data)
	}
}

func TestWriteInPlace_MarkFuzzy(t *testing.T) {
	path := writeTemp(t, sample)
	f, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	f.Map.Set("Hello", "Salut")

	if err := WriteInPlace(path, f, []string{"Hello"}, Options{MarkFuzzy: true}); err != nil {
		t.Fatalf("WriteInPlace: %v", err)
	}
	c, err := ParseFile(path)
	if err != nil {
		t.Fatalf("re-parse: %v", err)
	}
	e := c.EntryByKey("Hello")
	if e == nil || !e.IsFuzzy() {
		t.Error("updated entry not marked fuzzy")
	}
	if u := c.EntryByKey("Long"); u == nil || u.IsFuzzy() {
		t.Error("untouched entry marked fuzzy")
	}
}

func TestWriteInPlace_AppendsNewEntries(t *testing.T) {
	path := writeTemp(t, sample)
	f, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	f.Map.Set("Brand new", "Tout neuf")

	if err := WriteInPlace(path, f, []string{"Brand new"}, Options{}); err != nil {
		t.Fatalf("WriteInPlace: %v", err)
	}
	c, err := ParseFile(path)
	if err != nil {
		t.Fatalf("re-parse: %v", err)
	}
	if e := c.EntryByKey("Brand new"); e == nil || e.MsgStr != "Tout neuf" {
		t.Error("new entry not appended")
	}
}

func TestNewCatalog_PluralForms(t *testing.T) {
	c := NewCatalog("ru")
	if got := c.HeaderField("Plural-Forms"); !strings.HasPrefix(got, "nplurals=3;") {
		t.Errorf("Plural-Forms for ru = %q", got)
	}
	if got := c.HeaderField("Language"); got != "ru" {
		t.Errorf("Language = %q", got)
	}
}

func TestObsoleteEntriesExcludedFromProjection(t *testing.T) {
	path := writeTemp(t, `msgid ""
msgstr "Language: de\n"

#~ msgid "Old"
#~ msgstr "Alt"

msgid "New"
msgstr "Neu"
`)
	f, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if _, ok := f.Map.Get("Old"); ok {
		t.Error("obsolete entry leaked into projection")
	}
	if v, _ := f.Map.GetString("New"); v != "Neu" {
		t.Errorf("New = %q", v)
	}
}
