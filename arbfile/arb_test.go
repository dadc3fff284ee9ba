// Package arbfile tests.
package arbfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleARB = `{
  "@@locale": "en",
  "greeting": "Hello",
  "@greeting": {
    "description": "Shown on the start screen"
  },
  "itemCount": "{count} items",
  "@itemCount": {
    "placeholders": {
      "count": {
        "type": "int"
      }
    }
  },
  "pending": ""
}
`

func writeARB(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRead_SkipsMetadataAndEmptyValues(t *testing.T) {
	path := writeARB(t, "app_en.arb", sampleARB)
	f, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	flat := f.Map.Flatten()
	if flat.Len() != 2 {
		t.Fatalf("keys = %v", flat.Keys())
	}
	if v, _ := flat.Get("greeting"); v != "Hello" {
		t.Errorf("greeting = %q", v)
	}
	if _, ok := flat.Get("@greeting"); ok {
		t.Error("metadata key projected")
	}
	if _, ok := flat.Get("pending"); ok {
		t.Error("empty value projected")
	}
	if f.Original.(*File).Locale() != "en" {
		t.Errorf("locale = %q", f.Original.(*File).Locale())
	}
}

func TestWriteFull_PreservesMetadataAndOrder(t *testing.T) {
	path := writeARB(t, "app_en.arb", sampleARB)
	f, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	f.Map.Set("greeting", "Bonjour")
	f.Map.Set("pending", "En attente")

	out := filepath.Join(filepath.Dir(path), "app_fr.arb")
	if err := WriteFull(out, f); err != nil {
		t.Fatalf("WriteFull: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)

	if !strings.Contains(text, `"@@locale": "fr"`) {
		t.Errorf("locale not derived from filename:\n%s", text)
	}
	if !strings.Contains(text, `"greeting": "Bonjour"`) {
		t.Errorf("translation missing:\n%s", text)
	}
	if !strings.Contains(text, `"description": "Shown on the start screen"`) {
		t.Errorf("metadata lost:\n%s", text)
	}
	// Metadata still follows its key.
	if strings.Index(text, `"greeting"`) > strings.Index(text, `"@greeting"`) {
		t.Errorf("metadata reordered:\n%s", text)
	}

	back, err := Read(out)
	if err != nil {
		t.Fatalf("re-reading: %v", err)
	}
	if v, _ := back.Map.Flatten().Get("pending"); v != "En attente" {
		t.Errorf("pending = %q", v)
	}
}

func TestWriteFull_NewFileWithoutStructure(t *testing.T) {
	path := writeARB(t, "app_en.arb", sampleARB)
	f, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	f.Original = nil

	out := filepath.Join(filepath.Dir(path), "app_de.arb")
	if err := WriteFull(out, f); err != nil {
		t.Fatalf("WriteFull: %v", err)
	}
	back, err := Read(out)
	if err != nil {
		t.Fatalf("re-reading: %v", err)
	}
	if back.Map.Flatten().Len() != 2 {
		t.Fatalf("keys = %v", back.Map.Flatten().Keys())
	}
}

func TestLocaleFromPath(t *testing.T) {
	cases := map[string]string{
		"lib/l10n/app_en.arb":   "en",
		"app_pt_BR.arb":         "pt_BR",
		"strings.arb":           "",
		"lib/l10n/app_fr.arb":   "fr",
		"lib/l10n/app_.arb":     "",
		"lib/l10n/messages.arb": "",
	}
	for path, want := range cases {
		if got := localeFromPath(path); got != want {
			t.Errorf("localeFromPath(%s) = %q, want %q", path, got, want)
		}
	}
}
