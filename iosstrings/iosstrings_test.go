// Package iosstrings tests.
package iosstrings

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Localizable.strings")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

const sample = `/* Greeting shown on launch */
"greeting" = "Hello";

// Navigation
"nav.home" = "Home";
"escaped" = "line1\nline2 \"quoted\"";
`

func TestRead_EntriesAndEscapes(t *testing.T) {
	path := writeTemp(t, sample)
	f, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := []string{"greeting", "nav.home", "escaped"}
	if got := f.Map.Keys(); !reflect.DeepEqual(got, want) {
		t.Fatalf("keys = %v, want %v", got, want)
	}
	if v, _ := f.Map.GetString("escaped"); v != "line1\nline2 \"quoted\"" {
		t.Errorf("escaped = %q", v)
	}
}

func TestRead_CommentedOutEntryIgnored(t *testing.T) {
	path := writeTemp(t, `// "dead" = "gone";
"alive" = "here";
`)
	f, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if _, ok := f.Map.Get("dead"); ok {
		t.Error("commented-out entry parsed")
	}
	if _, ok := f.Map.Get("alive"); !ok {
		t.Error("live entry missing")
	}
}

func TestWriteInPlace_PreservesCommentsAndSpacing(t *testing.T) {
	path := writeTemp(t, sample)
	f, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	f.Map.Set("greeting", "Bonjour")

	if err := WriteInPlace(path, f, []string{"greeting"}); err != nil {
		t.Fatalf("WriteInPlace: %v", err)
	}
	data, _ := os.ReadFile(path)
	text := string(data)
	if !strings.Contains(text, "/* Greeting shown on launch */") {
		t.Errorf("comment lost:\n%s", text)
	}
	if !strings.Contains(text, `"greeting" = "Bonjour";`) {
		t.Errorf("value not updated:\n%s", text)
	}
	if !strings.Contains(text, `"nav.home" = "Home";`) {
		t.Errorf("untouched entry changed:\n%s", text)
	}
}

func TestWriteInPlace_AppendsMissingKeys(t *testing.T) {
	path := writeTemp(t, sample)
	f, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	f.Map.Set("farewell", "Bye")

	if err := WriteInPlace(path, f, []string{"farewell"}); err != nil {
		t.Fatalf("WriteInPlace: %v", err)
	}
	data, _ := os.ReadFile(path)
	if !strings.HasSuffix(string(data), "\"farewell\" = \"Bye\";\n") {
		t.Errorf("missing key not appended:\n%s", data)
	}
}

func TestWriteInPlace_NoChangeLeavesFileUntouched(t *testing.T) {
	path := writeTemp(t, sample)
	f, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	before, _ := os.Stat(path)
	if err := WriteInPlace(path, f, nil); err != nil {
		t.Fatalf("WriteInPlace: %v", err)
	}
	after, _ := os.Stat(path)
	if !after.ModTime().Equal(before.ModTime()) {
		t.Fatal("file rewritten with empty key list")
	}
}

func TestWriteFull_RoundTrip(t *testing.T) {
	path := writeTemp(t, sample)
	f, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	out := filepath.Join(filepath.Dir(path), "fr.strings")
	if err := WriteFull(out, f); err != nil {
		t.Fatalf("WriteFull: %v", err)
	}
	f2, err := Read(out)
	if err != nil {
		t.Fatalf("re-Read: %v", err)
	}
	if !reflect.DeepEqual(f2.Map.Flatten().Pairs(), f.Map.Flatten().Pairs()) {
		t.Fatal("flat projection changed on round trip")
	}
}
