// Package syncer tests.
package syncer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/algebras-ai/algebras-cli/config"
	"github.com/algebras-ai/algebras-cli/format"
	"github.com/algebras-ai/algebras-cli/jsonfile"
	"github.com/algebras-ai/algebras-cli/translator"
)

// fakeProvider prefixes with "t:" and records every batch.
type fakeProvider struct {
	mu      sync.Mutex
	batches [][]string
}

func (p *fakeProvider) TranslateBatch(ctx context.Context, texts []string, locale string, opts translator.BatchOptions) ([]string, error) {
	p.mu.Lock()
	p.batches = append(p.batches, append([]string(nil), texts...))
	p.mu.Unlock()
	out := make([]string, len(texts))
	for i, s := range texts {
		out[i] = "t:" + s
	}
	return out, nil
}

func setup(t *testing.T, cfgYAML string, files map[string]string) (*config.Config, *fakeProvider, *Syncer) {
	t.Helper()
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, config.DefaultFileName), []byte(cfgYAML), 0644); err != nil {
		t.Fatal(err)
	}
	for name, body := range files {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(body), 0644); err != nil {
			t.Fatal(err)
		}
	}
	cfg, _, err := config.Load(filepath.Join(root, config.DefaultFileName))
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	p := &fakeProvider{}
	reg := format.NewRegistry(format.Options{NormalizeStrings: cfg.NormalizeStrings()})
	driver := translator.NewDriver(p, cfg.BatchSize, cfg.MaxParallel)
	return cfg, p, New(cfg, reg, driver, nil, nil)
}

func readFlat(t *testing.T, path string) map[string]string {
	t.Helper()
	f, err := jsonfile.Read(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	out := make(map[string]string)
	for _, p := range f.Map.Flatten().Pairs() {
		out[p.Key] = p.Value
	}
	return out
}

const jsonProjectConfig = `
languages: [en, fr]
source_files:
  en.json:
    destination_path: "%algebras_locale_code%.json"
`

func TestTranslate_NewNestedTarget(t *testing.T) {
	cfg, _, s := setup(t, jsonProjectConfig, map[string]string{
		"en.json": `{"greeting":"Hi","user":{"title":"Hello"}}`,
	})
	sum, err := s.Translate(context.Background(), Options{Locale: "fr"}, nil)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if sum.FilesProcessed != 1 || sum.KeysTranslated != 2 {
		t.Fatalf("summary = %+v", sum)
	}
	got := readFlat(t, filepath.Join(cfg.Root, "fr.json"))
	want := map[string]string{"greeting": "t:Hi", "user.title": "t:Hello"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("fr.json = %v, want %v", got, want)
	}
}

func TestTranslate_OnlyMissing(t *testing.T) {
	cfg, p, s := setup(t, jsonProjectConfig, map[string]string{
		"en.json": `{"a":"A","b":"B"}`,
		"fr.json": `{"a":"x"}`,
	})
	sum, err := s.Translate(context.Background(), Options{Locale: "fr", OnlyMissing: true}, nil)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if sum.KeysTranslated != 1 {
		t.Fatalf("summary = %+v", sum)
	}
	if len(p.batches) != 1 || !reflect.DeepEqual(p.batches[0], []string{"B"}) {
		t.Fatalf("provider batches = %v, want [[B]]", p.batches)
	}
	got := readFlat(t, filepath.Join(cfg.Root, "fr.json"))
	want := map[string]string{"a": "x", "b": "t:B"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("fr.json = %v, want %v", got, want)
	}
}

func TestTranslate_SkipsFreshTargets(t *testing.T) {
	cfg, p, s := setup(t, jsonProjectConfig, map[string]string{
		"en.json": `{"a":"A"}`,
		"fr.json": `{"a":"t:A"}`,
	})
	// Make the source clearly older than the target.
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(filepath.Join(cfg.Root, "en.json"), old, old); err != nil {
		t.Fatal(err)
	}
	sum, err := s.Translate(context.Background(), Options{Locale: "fr"}, nil)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if sum.FilesSkipped != 1 || len(p.batches) != 0 {
		t.Fatalf("summary = %+v, batches = %v", sum, p.batches)
	}
}

func TestTranslate_ForceRetranslatesEverything(t *testing.T) {
	cfg, p, s := setup(t, jsonProjectConfig, map[string]string{
		"en.json": `{"a":"A"}`,
		"fr.json": `{"a":"stale"}`,
	})
	_, err := s.Translate(context.Background(), Options{Locale: "fr", Force: true}, nil)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if len(p.batches) != 1 {
		t.Fatalf("batches = %v", p.batches)
	}
	got := readFlat(t, filepath.Join(cfg.Root, "fr.json"))
	if got["a"] != "t:A" {
		t.Fatalf("fr.json = %v", got)
	}
}

func TestTranslate_DryRunCountsWithoutCalling(t *testing.T) {
	_, p, s := setup(t, jsonProjectConfig, map[string]string{
		"en.json": `{"a":"A","b":"B"}`,
	})
	sum, err := s.Translate(context.Background(), Options{Locale: "fr", DryRun: true}, nil)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if sum.Pending["fr"] != 2 {
		t.Fatalf("pending = %v", sum.Pending)
	}
	if len(p.batches) != 0 {
		t.Fatalf("dry run called the provider: %v", p.batches)
	}
}

func TestTranslate_NewCSVTargetGetsOwnColumn(t *testing.T) {
	// A fresh CSV target borrows the source sheet; the translations must
	// land in a new column for the target locale, not the source column.
	cfg, _, s := setup(t, `
languages: [en, de]
source_files:
  en.csv:
    destination_path: "%algebras_locale_code%.csv"
`, map[string]string{
		"en.csv": "key,en\ngreeting,Hello\nfarewell,Bye\n",
	})
	if _, err := s.Translate(context.Background(), Options{Locale: "de"}, nil); err != nil {
		t.Fatalf("Translate: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(cfg.Root, "de.csv"))
	if err != nil {
		t.Fatalf("reading de.csv: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if lines[0] != "key,en,de" {
		t.Fatalf("header = %q, want a de column", lines[0])
	}
	if lines[1] != "greeting,Hello,t:Hello" || lines[2] != "farewell,Bye,t:Bye" {
		t.Fatalf("rows = %q", lines[1:])
	}
	// The source sheet stays as it was.
	src, _ := os.ReadFile(filepath.Join(cfg.Root, "en.csv"))
	if string(src) != "key,en\ngreeting,Hello\nfarewell,Bye\n" {
		t.Fatalf("en.csv changed:\n%s", src)
	}
}

func TestUpdate_TranslatesOnlyFindings(t *testing.T) {
	cfg, p, s := setup(t, jsonProjectConfig, map[string]string{
		"en.json": `{"a":"A","b":"B"}`,
		"fr.json": `{"a":"t:A"}`,
	})
	sum, err := s.Update(context.Background(), Options{Locale: "fr"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if sum.KeysTranslated != 1 {
		t.Fatalf("summary = %+v", sum)
	}
	if len(p.batches) != 1 || !reflect.DeepEqual(p.batches[0], []string{"B"}) {
		t.Fatalf("batches = %v", p.batches)
	}
	got := readFlat(t, filepath.Join(cfg.Root, "fr.json"))
	if got["b"] != "t:B" || got["a"] != "t:A" {
		t.Fatalf("fr.json = %v", got)
	}
}

func TestUpdate_MtimeOnlyIsReportedNotRetranslated(t *testing.T) {
	var notices []string
	cfg, _, _ := setup(t, jsonProjectConfig, map[string]string{
		"en.json": `{"a":"A"}`,
		"fr.json": `{"a":"t:A"}`,
	})
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(filepath.Join(cfg.Root, "fr.json"), old, old); err != nil {
		t.Fatal(err)
	}
	p := &fakeProvider{}
	reg := format.NewRegistry(format.Options{})
	driver := translator.NewDriver(p, cfg.BatchSize, cfg.MaxParallel)
	s := New(cfg, reg, driver, func(f string, args ...any) {
		notices = append(notices, fmt.Sprintf(f, args...))
	}, nil)

	sum, err := s.Update(context.Background(), Options{Locale: "fr"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if sum.KeysTranslated != 0 || len(p.batches) != 0 {
		t.Fatalf("mtime-only target was re-translated: %+v, %v", sum, p.batches)
	}
	found := false
	for _, n := range notices {
		if strings.Contains(n, "older than its source") {
			found = true
		}
	}
	if !found {
		t.Errorf("no notice for the mtime-only target: %v", notices)
	}
}

func TestCI_ReportsMissingAndNeverTranslates(t *testing.T) {
	_, p, s := setup(t, jsonProjectConfig, map[string]string{
		"en.json": `{"a":"A","b":"B"}`,
		"fr.json": `{"a":"t:A"}`,
	})
	report, err := s.CI(context.Background(), Options{})
	if err != nil {
		t.Fatalf("CI: %v", err)
	}
	if report.Clean() {
		t.Fatal("expected findings")
	}
	if len(p.batches) != 0 {
		t.Fatalf("ci called the provider: %v", p.batches)
	}
}

func TestCI_TranslatedHTMLPairIsClean(t *testing.T) {
	// HTML keys hash each document's own text; a translated pair must not
	// keep ci dirty or cause update to re-translate on every run.
	_, p, s := setup(t, `
languages: [en, fr]
source_files:
  en.html:
    destination_path: "%algebras_locale_code%.html"
`, map[string]string{
		"en.html": "<html><body><p>Hello</p></body></html>",
		"fr.html": "<html><body><p>Bonjour</p></body></html>",
	})
	report, err := s.CI(context.Background(), Options{})
	if err != nil {
		t.Fatalf("CI: %v", err)
	}
	if !report.Clean() {
		t.Fatalf("report = %+v", report.Results[0])
	}
	if _, err := s.Update(context.Background(), Options{}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(p.batches) != 0 {
		t.Fatalf("update re-translated a finished HTML pair: %v", p.batches)
	}
}

func TestCI_CleanProject(t *testing.T) {
	_, _, s := setup(t, jsonProjectConfig, map[string]string{
		"en.json": `{"a":"A"}`,
		"fr.json": `{"a":"t:A"}`,
	})
	report, err := s.CI(context.Background(), Options{})
	if err != nil {
		t.Fatalf("CI: %v", err)
	}
	if !report.Clean() {
		t.Fatalf("report = %+v", report.Results[0])
	}
}

func TestStats(t *testing.T) {
	_, _, s := setup(t, jsonProjectConfig, map[string]string{
		"en.json": `{"a":"A","b":"B"}`,
		"fr.json": `{"a":"t:A"}`,
	})
	stats, err := s.Stats(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if len(stats) != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	st := stats[0]
	if st.Locale != "fr" || st.Keys != 2 || st.Missing != 1 {
		t.Fatalf("stats = %+v", st)
	}
	if st.Percent() != 50 {
		t.Fatalf("percent = %v", st.Percent())
	}
}

func TestWriteFallsBackToFullForYAML(t *testing.T) {
	var notices []string
	cfg, _, _ := setup(t, `
languages: [en, fr]
source_files:
  en.yaml:
    destination_path: "%algebras_locale_code%.yaml"
`, map[string]string{
		"en.yaml": "greeting: Hi\n",
	})
	reg := format.NewRegistry(format.Options{})
	driver := translator.NewDriver(&fakeProvider{}, cfg.BatchSize, cfg.MaxParallel)
	s := New(cfg, reg, driver, func(f string, args ...any) {
		notices = append(notices, f)
	}, nil)

	// Seed a target so the in-place branch would be reachable if YAML
	// supported it.
	if err := os.WriteFile(filepath.Join(cfg.Root, "fr.yaml"), []byte("greeting: old\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Translate(context.Background(), Options{Locale: "fr", Force: true}, nil); err != nil {
		t.Fatalf("Translate: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(cfg.Root, "fr.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "greeting: t:Hi\n" {
		t.Fatalf("fr.yaml = %q", data)
	}
	if len(notices) == 0 {
		t.Error("expected a regeneration notice")
	}
}
