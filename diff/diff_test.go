// Package diff tests.
package diff

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/algebras-ai/algebras-cli/format"
	"github.com/algebras-ai/algebras-cli/gitblame"
	"github.com/algebras-ai/algebras-cli/scanner"
)

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, body := range files {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(body), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func newEngine(root string) *Engine {
	return NewEngine(root, format.NewRegistry(format.Options{}), gitblame.NewCache())
}

func TestCheckPair_MissingKeys(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"en.json": `{"greeting": "Hello", "farewell": "Bye", "nav": {"home": "Home"}}`,
		"fr.json": `{"greeting": "Bonjour"}`,
	})
	e := newEngine(root)
	res, err := e.CheckPair(context.Background(),
		scanner.Pair{Source: "en.json", Target: "fr.json", Locale: "fr"},
		"en", Options{CheckMissing: true})
	if err != nil {
		t.Fatalf("CheckPair: %v", err)
	}
	want := []string{"farewell", "nav.home"}
	if !reflect.DeepEqual(res.MissingKeys, want) {
		t.Fatalf("missing = %v, want %v", res.MissingKeys, want)
	}
	if res.TargetMissing || res.MtimeOutdated {
		t.Errorf("unexpected flags: %+v", res)
	}
}

func TestCheckPair_TargetMissingReportsAllKeys(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"en.json": `{"a": "1", "b": "2"}`,
	})
	e := newEngine(root)
	res, err := e.CheckPair(context.Background(),
		scanner.Pair{Source: "en.json", Target: "de.json", Locale: "de"},
		"en", Options{CheckMissing: true})
	if err != nil {
		t.Fatalf("CheckPair: %v", err)
	}
	if !res.TargetMissing {
		t.Fatal("expected TargetMissing")
	}
	if !reflect.DeepEqual(res.MissingKeys, []string{"a", "b"}) {
		t.Fatalf("missing = %v", res.MissingKeys)
	}
}

func TestCheckPair_MtimeOutdated(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"en.json": `{"a": "1"}`,
		"fr.json": `{"a": "un"}`,
	})
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(filepath.Join(root, "fr.json"), old, old); err != nil {
		t.Fatal(err)
	}
	e := newEngine(root)
	res, err := e.CheckPair(context.Background(),
		scanner.Pair{Source: "en.json", Target: "fr.json", Locale: "fr"},
		"en", Options{CheckMTime: true})
	if err != nil {
		t.Fatalf("CheckPair: %v", err)
	}
	if !res.MtimeOutdated {
		t.Fatal("expected MtimeOutdated")
	}
}

func TestCheckPair_HTMLTranslatedPairIsClean(t *testing.T) {
	// HTML keys hash the document's own text, so a translated target never
	// shares keys with its source. That must not count as missing work.
	root := writeFiles(t, map[string]string{
		"en.html": "<html><body><p>Hello</p></body></html>",
		"fr.html": "<html><body><p>Bonjour</p></body></html>",
	})
	e := newEngine(root)
	res, err := e.CheckPair(context.Background(),
		scanner.Pair{Source: "en.html", Target: "fr.html", Locale: "fr"},
		"en", Options{CheckMissing: true, CheckGitOutdated: true})
	if err != nil {
		t.Fatalf("CheckPair: %v", err)
	}
	if !res.Clean() {
		t.Fatalf("translated HTML pair reported dirty: %+v", res)
	}
}

func TestCheckPair_HTMLTargetMissingStillReported(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"en.html": "<html><body><p>Hello</p></body></html>",
	})
	e := newEngine(root)
	res, err := e.CheckPair(context.Background(),
		scanner.Pair{Source: "en.html", Target: "fr.html", Locale: "fr"},
		"en", Options{CheckMissing: true})
	if err != nil {
		t.Fatalf("CheckPair: %v", err)
	}
	if !res.TargetMissing || len(res.MissingKeys) != 1 {
		t.Fatalf("result = %+v", res)
	}
}

func TestCheckPair_GitOutdated(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	root := t.TempDir()
	git := func(env []string, args ...string) {
		t.Helper()
		cmd := exec.Command("git", append([]string{"-C", root}, args...)...)
		cmd.Env = append(os.Environ(), env...)
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
	}
	write := func(name, body string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(root, name), []byte(body), 0644); err != nil {
			t.Fatal(err)
		}
	}
	git(nil, "init", "-q")
	git(nil, "config", "user.email", "dev@example.com")
	git(nil, "config", "user.name", "dev")

	write("en.json", "{\n  \"greeting\": \"Hi\",\n  \"farewell\": \"Bye\"\n}\n")
	write("fr.json", "{\n  \"greeting\": \"Salut\",\n  \"farewell\": \"Au revoir\"\n}\n")
	older := []string{
		"GIT_AUTHOR_DATE=2023-01-01T00:00:00Z",
		"GIT_COMMITTER_DATE=2023-01-01T00:00:00Z",
	}
	git(older, "add", ".")
	git(older, "commit", "-q", "-m", "add locales")

	// Reword one source string in a later commit: its translation is now
	// stale, while farewell's blame times stay equal on both sides.
	write("en.json", "{\n  \"greeting\": \"Hello\",\n  \"farewell\": \"Bye\"\n}\n")
	newer := []string{
		"GIT_AUTHOR_DATE=2024-01-01T00:00:00Z",
		"GIT_COMMITTER_DATE=2024-01-01T00:00:00Z",
	}
	git(newer, "add", ".")
	git(newer, "commit", "-q", "-m", "reword greeting")

	e := newEngine(root)
	res, err := e.CheckPair(context.Background(),
		scanner.Pair{Source: "en.json", Target: "fr.json", Locale: "fr"},
		"en", Options{CheckGitOutdated: true})
	if err != nil {
		t.Fatalf("CheckPair: %v", err)
	}
	if !reflect.DeepEqual(res.OutdatedKeys, []string{"greeting"}) {
		t.Fatalf("outdated = %v, want [greeting]", res.OutdatedKeys)
	}
}

func TestCheckPairs_BadPairDoesNotStopOthers(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"en.json":     `{"a": "1"}`,
		"fr.json":     `{"a": "un"}`,
		"broken.json": `{`,
	})
	e := newEngine(root)
	pairs := []scanner.Pair{
		{Source: "broken.json", Target: "fr.json", Locale: "fr"},
		{Source: "en.json", Target: "fr.json", Locale: "fr"},
	}
	results, errs := e.CheckPairs(context.Background(), pairs, "en",
		Options{CheckMissing: true}, 2)
	if len(errs) != 1 {
		t.Fatalf("errors = %v, want 1", errs)
	}
	if len(results) != 1 || results[0].Pair.Source != "en.json" {
		t.Fatalf("results = %+v", results)
	}
}

func TestJSONKeyLine_NestedPath(t *testing.T) {
	data := `{
  "greeting": "Hello",
  "nav": {
    "home": "Home",
    "menu": {
      "file": "File"
    }
  },
  "farewell": "Bye"
}`
	cases := map[string]int{
		"greeting":      2,
		"nav.home":      4,
		"nav.menu.file": 6,
		"farewell":      9,
		"nav.menu":      0, // not a leaf
		"absent":        0,
	}
	for key, want := range cases {
		if got := jsonKeyLine(data, key); got != want {
			t.Errorf("jsonKeyLine(%q) = %d, want %d", key, got, want)
		}
	}
}

func TestJSONKeyLine_BracesInsideValues(t *testing.T) {
	data := `{
  "template": "use {curly} braces",
  "after": "ok"
}`
	if got := jsonKeyLine(data, "after"); got != 3 {
		t.Fatalf("jsonKeyLine(after) = %d, want 3", got)
	}
}

func TestYAMLKeyLine(t *testing.T) {
	data := `greeting: Hello
nav:
  home: Home
  menu:
    file: File
farewell: Bye
`
	cases := map[string]int{
		"greeting":      1,
		"nav.home":      3,
		"nav.menu.file": 5,
		"farewell":      6,
		"absent":        0,
	}
	for key, want := range cases {
		if got := yamlKeyLine(data, key); got != want {
			t.Errorf("yamlKeyLine(%q) = %d, want %d", key, got, want)
		}
	}
}

func TestFlatKeyLine(t *testing.T) {
	strings := `/* comment */
"greeting" = "Hello";
"farewell" = "Bye";
`
	if got := flatKeyLine(strings, "farewell"); got != 3 {
		t.Errorf("quoted lookup = %d, want 3", got)
	}
	props := `# comment
greeting=Hello
farewell = Bye
`
	if got := flatKeyLine(props, "greeting"); got != 2 {
		t.Errorf("key= lookup = %d, want 2", got)
	}
	if got := flatKeyLine(props, "farewell"); got != 3 {
		t.Errorf("key = lookup = %d, want 3", got)
	}
}

func TestKeyLineCachesNegativeResults(t *testing.T) {
	root := writeFiles(t, map[string]string{"en.json": `{"a": "1"}`})
	e := newEngine(root)
	path := filepath.Join(root, "en.json")
	if _, ok := e.keyLine(path, "absent"); ok {
		t.Fatal("unexpected hit")
	}
	// Remove the file: a cached negative answer must not re-read it.
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if _, ok := e.keyLine(path, "absent"); ok {
		t.Fatal("negative result not cached")
	}
	if n, ok := e.keyLine(path, "a"); ok || n != 0 {
		t.Fatalf("lookup on deleted file = %d/%v", n, ok)
	}
}
