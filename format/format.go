// Package format maps file extensions to their resource handlers.
//
// Handlers are plain function tables so the rest of the engine never
// imports a format package directly. Option-sensitive formats (Android
// escaping, XLIFF target state, PO fuzzy marking, CSV locale columns) are
// bound by NewRegistry from the configuration knobs.
package format

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/algebras-ai/algebras-cli/android"
	"github.com/algebras-ai/algebras-cli/arbfile"
	"github.com/algebras-ai/algebras-cli/csvfile"
	"github.com/algebras-ai/algebras-cli/htmlfile"
	"github.com/algebras-ai/algebras-cli/iosstrings"
	"github.com/algebras-ai/algebras-cli/jsonfile"
	"github.com/algebras-ai/algebras-cli/pofile"
	"github.com/algebras-ai/algebras-cli/propfile"
	"github.com/algebras-ai/algebras-cli/resource"
	"github.com/algebras-ai/algebras-cli/stringsdict"
	"github.com/algebras-ai/algebras-cli/tsfile"
	"github.com/algebras-ai/algebras-cli/xliff"
	"github.com/algebras-ai/algebras-cli/yamlfile"
)

// Options carries the configuration knobs that influence handlers.
type Options struct {
	// NormalizeStrings controls escape stripping (api.normalize_strings).
	NormalizeStrings bool
	// XLFTargetState is the state attribute for injected XLIFF targets
	// (xlf.default_target_state).
	XLFTargetState string
	// POMarkFuzzy adds "#, fuzzy" to changed PO entries (po.mark_fuzzy).
	POMarkFuzzy bool
	// Warnf receives handler warnings (duplicate CSV keys and the like).
	// Defaults to a no-op.
	Warnf func(format string, args ...any)
}

// Handler is the function table for one file format.
type Handler struct {
	// Name is the human-readable format name used in logs and errors.
	Name string
	// InPlace reports whether WriteInPlace is available.
	InPlace bool
	// HashedKeys marks formats whose keys derive from each document's own
	// text (HTML), so source and target key sets never align and
	// key-level diffing is meaningless.
	HashedKeys bool

	// Read parses a file into its flat-projectable resource form.
	Read func(path string) (*resource.File, error)
	// ReadSource, when set, parses the file as the source side of a sync
	// (XLIFF projects source texts instead of targets). Nil means Read.
	ReadSource func(path string) (*resource.File, error)
	// ReadLocale, when set, parses one locale's view of a multi-locale
	// file (CSV/TSV columns). Nil means the file is single-locale.
	ReadLocale func(path, locale string) (*resource.File, error)

	// WriteFull regenerates the whole file.
	WriteFull func(path string, f *resource.File) error
	// WriteInPlace updates only the listed flat keys. Nil when !InPlace.
	WriteInPlace func(path string, f *resource.File, keys []string) error
}

// Registry resolves paths to handlers.
type Registry struct {
	byExt map[string]*Handler
	warnf func(format string, args ...any)
}

// Extensions returns the extensions the registry recognizes.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	return exts
}

// ForPath returns the handler for a path's extension.
func (r *Registry) ForPath(path string) (*Handler, error) {
	ext := strings.ToLower(filepath.Ext(path))
	h, ok := r.byExt[ext]
	if !ok {
		return nil, fmt.Errorf("%s: unsupported file format %q", path, ext)
	}
	return h, nil
}

// Supported reports whether the path's extension has a handler.
func (r *Registry) Supported(path string) bool {
	_, ok := r.byExt[strings.ToLower(filepath.Ext(path))]
	return ok
}

// ReadSource reads a file as the source side of a sync.
func ReadSource(h *Handler, path string) (*resource.File, error) {
	if h.ReadSource != nil {
		return h.ReadSource(path)
	}
	return h.Read(path)
}

// NewRegistry builds the dispatch table with the given options bound in.
func NewRegistry(opts Options) *Registry {
	warnf := opts.Warnf
	if warnf == nil {
		warnf = func(string, ...any) {}
	}
	if opts.XLFTargetState == "" {
		opts.XLFTargetState = "translated"
	}

	androidOpts := android.Options{NormalizeStrings: opts.NormalizeStrings}
	xlfOpts := xliff.Options{TargetState: opts.XLFTargetState}
	poOpts := pofile.Options{MarkFuzzy: opts.POMarkFuzzy}

	handlers := map[string]*Handler{}
	register := func(h *Handler, exts ...string) {
		for _, ext := range exts {
			handlers[ext] = h
		}
	}

	register(&Handler{
		Name:    "JSON",
		InPlace: true,
		Read:    jsonfile.Read,
		WriteFull: func(path string, f *resource.File) error {
			return jsonfile.WriteFull(path, f)
		},
		WriteInPlace: jsonfile.WriteInPlace,
	}, ".json")

	register(&Handler{
		Name:      "YAML",
		Read:      yamlfile.Read,
		WriteFull: yamlfile.WriteFull,
	}, ".yaml", ".yml")

	register(&Handler{
		Name:      "TypeScript",
		Read:      tsfile.Read,
		WriteFull: tsfile.WriteFull,
	}, ".ts")

	register(&Handler{
		Name:    "Android XML",
		InPlace: true,
		Read:    android.Read,
		WriteFull: func(path string, f *resource.File) error {
			return android.WriteFull(path, f, androidOpts)
		},
		WriteInPlace: func(path string, f *resource.File, keys []string) error {
			return android.WriteInPlace(path, f, keys, androidOpts)
		},
	}, ".xml")

	register(&Handler{
		Name:         ".strings",
		InPlace:      true,
		Read:         iosstrings.Read,
		WriteFull:    iosstrings.WriteFull,
		WriteInPlace: iosstrings.WriteInPlace,
	}, ".strings")

	register(&Handler{
		Name:      ".stringsdict",
		Read:      stringsdict.Read,
		WriteFull: stringsdict.WriteFull,
	}, ".stringsdict")

	register(&Handler{
		Name:    "PO",
		InPlace: true,
		Read:    pofile.Read,
		WriteFull: func(path string, f *resource.File) error {
			return pofile.WriteFull(path, f, poOpts)
		},
		WriteInPlace: func(path string, f *resource.File, keys []string) error {
			return pofile.WriteInPlace(path, f, keys, poOpts)
		},
	}, ".po", ".pot")

	register(&Handler{
		Name:       "XLIFF",
		InPlace:    true,
		Read:       xliff.Read,
		ReadSource: xliff.ReadSource,
		WriteFull: func(path string, f *resource.File) error {
			return xliff.WriteFull(path, f, xlfOpts)
		},
		WriteInPlace: func(path string, f *resource.File, keys []string) error {
			return xliff.WriteInPlace(path, f, keys, xlfOpts)
		},
	}, ".xlf", ".xliff")

	register(&Handler{
		Name:       "HTML",
		HashedKeys: true,
		Read:       htmlfile.Read,
		WriteFull:  htmlfile.WriteFull,
	}, ".html", ".htm")

	register(&Handler{
		Name:    "CSV",
		InPlace: true,
		Read: func(path string) (*resource.File, error) {
			return nil, fmt.Errorf("%s: CSV files need a locale, use ReadLocale", path)
		},
		ReadLocale: func(path, locale string) (*resource.File, error) {
			f, warnings, err := csvfile.ReadLocale(path, locale)
			for _, w := range warnings {
				warnf("%s", w)
			}
			return f, err
		},
		WriteFull: func(path string, f *resource.File) error {
			warnings, err := csvfile.WriteFull(path, f)
			for _, w := range warnings {
				warnf("%s", w)
			}
			return err
		},
		WriteInPlace: func(path string, f *resource.File, keys []string) error {
			warnings, err := csvfile.WriteInPlace(path, f, keys)
			for _, w := range warnings {
				warnf("%s", w)
			}
			return err
		},
	}, ".csv", ".tsv")

	register(&Handler{
		Name:      "ARB",
		Read:      arbfile.Read,
		WriteFull: arbfile.WriteFull,
	}, ".arb")

	register(&Handler{
		Name:      "properties",
		Read:      propfile.Read,
		WriteFull: propfile.WriteFull,
	}, ".properties")

	return &Registry{byExt: handlers, warnf: warnf}
}
