// Package scanner tests.
package scanner

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/algebras-ai/algebras-cli/config"
	"github.com/algebras-ai/algebras-cli/format"
)

func writeProject(t *testing.T, cfgYAML string, files ...string) *config.Config {
	t.Helper()
	root := t.TempDir()
	cfgPath := filepath.Join(root, config.DefaultFileName)
	if err := os.WriteFile(cfgPath, []byte(cfgYAML), 0644); err != nil {
		t.Fatal(err)
	}
	for _, f := range files {
		path := filepath.Join(root, f)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("{}\n"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	cfg, _, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	return cfg
}

func TestSourceFiles_FromBindings(t *testing.T) {
	cfg := writeProject(t, `
languages: [en, fr]
source_files:
  locales/en.json:
    destination_path: locales/%algebras_locale_code%.json
`, "locales/en.json")

	s := New(cfg, format.NewRegistry(format.Options{}))
	files, err := s.SourceFiles()
	if err != nil {
		t.Fatalf("SourceFiles: %v", err)
	}
	if !reflect.DeepEqual(files, []string{"locales/en.json"}) {
		t.Fatalf("files = %v", files)
	}
}

func TestSourceFiles_MissingBindingFails(t *testing.T) {
	cfg := writeProject(t, `
languages: [en, fr]
source_files:
  locales/en.json:
    destination_path: locales/%algebras_locale_code%.json
`)
	s := New(cfg, format.NewRegistry(format.Options{}))
	if _, err := s.SourceFiles(); err == nil {
		t.Fatal("expected error for missing source file")
	}
}

func TestSourceFiles_PathRulesGlobsAndExcludes(t *testing.T) {
	cfg := writeProject(t, `
languages: [en, de]
path_rules:
  - "locales/**/*.json"
  - "!locales/**/ignore.json"
`,
		"locales/en/app.json",
		"locales/de/app.json",
		"locales/en/ignore.json",
		"locales/en/notes.txt",
	)

	s := New(cfg, format.NewRegistry(format.Options{}))
	files, err := s.SourceFiles()
	if err != nil {
		t.Fatalf("SourceFiles: %v", err)
	}
	want := []string{filepath.FromSlash("locales/en/app.json")}
	if !reflect.DeepEqual(files, want) {
		t.Fatalf("files = %v, want %v", files, want)
	}
}

func TestPairs_ResolvesDestinationPattern(t *testing.T) {
	cfg := writeProject(t, `
languages:
  - en
  - uz: uz_Cyrl
source_files:
  locales/en.json:
    destination_path: locales/%algebras_locale_code%.json
`, "locales/en.json")

	s := New(cfg, format.NewRegistry(format.Options{}))
	pairs, err := s.Pairs("uz")
	if err != nil {
		t.Fatalf("Pairs: %v", err)
	}
	if len(pairs) != 1 {
		t.Fatalf("pairs = %v", pairs)
	}
	if pairs[0].Target != "locales/uz_Cyrl.json" {
		t.Errorf("target = %q, want destination code in path", pairs[0].Target)
	}
}

func TestPairs_UndeclaredLocaleFails(t *testing.T) {
	cfg := writeProject(t, `
languages: [en, fr]
source_files:
  locales/en.json:
    destination_path: locales/%algebras_locale_code%.json
`, "locales/en.json")
	s := New(cfg, format.NewRegistry(format.Options{}))
	if _, err := s.Pairs("xx"); err == nil {
		t.Fatal("expected error for undeclared locale")
	}
}

func TestClassify_Markers(t *testing.T) {
	cfg := writeProject(t, `
languages:
  - en
  - fr
  - uz: uz_Cyrl
path_rules: ["**/*.json"]
`)
	s := New(cfg, format.NewRegistry(format.Options{}))

	cases := map[string]string{
		"res/values-fr/strings.xml": "fr",
		"locales/fr/app.json":       "fr",
		"locales/app.fr.json":       "fr",
		"locales/app_fr.json":       "fr",
		"locales/fr.json":           "fr",
		"locales/uz_Cyrl.json":      "uz",
	}
	for path, want := range cases {
		got, ok := s.Classify(path)
		if !ok || got != want {
			t.Errorf("Classify(%s) = %q/%v, want %q", path, got, ok, want)
		}
	}
	if _, ok := s.Classify("locales/base.json"); ok {
		t.Error("unmarked file classified")
	}
}

func TestGroupByLocale_PathRules(t *testing.T) {
	cfg := writeProject(t, `
languages: [en, de]
path_rules: ["locales/**/*.json"]
`,
		"locales/en/app.json",
		"locales/de/app.json",
	)
	s := New(cfg, format.NewRegistry(format.Options{}))
	groups, err := s.GroupByLocale()
	if err != nil {
		t.Fatalf("GroupByLocale: %v", err)
	}
	if len(groups["en"]) != 1 || len(groups["de"]) != 1 {
		t.Fatalf("groups = %v", groups)
	}
}
