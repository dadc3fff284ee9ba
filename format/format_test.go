// Package format tests.
package format

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestForPath_KnownExtensions(t *testing.T) {
	r := NewRegistry(Options{})
	cases := map[string]string{
		"locales/en.json":          "JSON",
		"locales/en.yaml":          "YAML",
		"locales/en.yml":           "YAML",
		"src/i18n/en.ts":           "TypeScript",
		"res/values/strings.xml":   "Android XML",
		"ios/Localizable.strings":  ".strings",
		"ios/Plurals.stringsdict":  ".stringsdict",
		"po/fr.po":                 "PO",
		"po/template.pot":          "PO",
		"xliff/fr.xlf":             "XLIFF",
		"xliff/fr.xliff":           "XLIFF",
		"emails/welcome.html":      "HTML",
		"emails/welcome.htm":       "HTML",
		"sheets/strings.csv":       "CSV",
		"sheets/strings.tsv":       "CSV",
		"java/messages.properties": "properties",
		"lib/l10n/app_en.arb":      "ARB",
	}
	for path, want := range cases {
		h, err := r.ForPath(path)
		if err != nil {
			t.Errorf("ForPath(%s): %v", path, err)
			continue
		}
		if h.Name != want {
			t.Errorf("ForPath(%s) = %s, want %s", path, h.Name, want)
		}
	}
}

func TestForPath_UnsupportedExtension(t *testing.T) {
	r := NewRegistry(Options{})
	if _, err := r.ForPath("README.md"); err == nil {
		t.Fatal("expected error for .md")
	}
	if r.Supported("notes.txt") {
		t.Fatal("txt reported as supported")
	}
}

func TestInPlaceDeclarations(t *testing.T) {
	r := NewRegistry(Options{})
	inPlace := map[string]bool{
		"a.xml": true, "a.po": true, "a.strings": true, "a.xlf": true,
		"a.csv": true, "a.json": true,
		"a.yaml": false, "a.ts": false, "a.html": false,
		"a.stringsdict": false, "a.properties": false, "a.arb": false,
	}
	for path, want := range inPlace {
		h, err := r.ForPath(path)
		if err != nil {
			t.Fatalf("ForPath(%s): %v", path, err)
		}
		if h.InPlace != want {
			t.Errorf("%s: InPlace = %v, want %v", path, h.InPlace, want)
		}
		if h.InPlace && h.WriteInPlace == nil {
			t.Errorf("%s: declares in-place but has no writer", path)
		}
	}
}

func TestCSVWarningsReachWarnf(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "strings.csv")
	content := "key,en\ngreeting,First\ngreeting,Second\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	var warned []string
	r := NewRegistry(Options{Warnf: func(format string, args ...any) {
		warned = append(warned, fmt.Sprintf(format, args...))
	}})
	h, err := r.ForPath(path)
	if err != nil {
		t.Fatalf("ForPath: %v", err)
	}
	if _, err := h.ReadLocale(path, "en"); err != nil {
		t.Fatalf("ReadLocale: %v", err)
	}
	if len(warned) != 1 {
		t.Errorf("warnings = %v", warned)
	}
}

func TestXLIFFSourceProjectionDiffers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "en.xlf")
	content := `<?xml version="1.0"?>
<xliff version="1.2"><file><body>
<trans-unit id="a"><source>Hello</source></trans-unit>
</body></file></xliff>`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	r := NewRegistry(Options{})
	h, err := r.ForPath(path)
	if err != nil {
		t.Fatalf("ForPath: %v", err)
	}
	asTarget, err := h.Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	asSource, err := ReadSource(h, path)
	if err != nil {
		t.Fatalf("ReadSource: %v", err)
	}
	if asTarget.Map.Len() != 0 {
		t.Error("untranslated unit appeared in target projection")
	}
	if v, _ := asSource.Map.GetString("a"); v != "Hello" {
		t.Errorf("source projection = %q", v)
	}
	if !strings.Contains(h.Name, "XLIFF") {
		t.Errorf("handler name = %s", h.Name)
	}
}
