// Package scanner enumerates the project's resource files and groups them
// by locale.
//
// Two discovery modes exist. source_files bindings route each configured
// source file to a destination pattern and win when present. The
// deprecated path_rules mode walks include/exclude globs ("!" prefix
// excludes), keeps files whose extension has a format handler, and
// classifies each match by the locale markers in its path.
package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/algebras-ai/algebras-cli/config"
	"github.com/algebras-ai/algebras-cli/format"
	"github.com/algebras-ai/algebras-cli/localepath"
)

// Pair is one (source file, target file, locale) work item.
type Pair struct {
	Source string
	Target string
	Locale string // internal code
}

// Scanner discovers and classifies resource files for one project.
type Scanner struct {
	cfg *config.Config
	reg *format.Registry
}

// New builds a scanner over the project described by cfg.
func New(cfg *config.Config, reg *format.Registry) *Scanner {
	return &Scanner{cfg: cfg, reg: reg}
}

// ---------------------------------------------------------------------------
// Discovery
// ---------------------------------------------------------------------------

// SourceFiles returns the authoritative source-locale files, relative to
// the project root. With source_files configured, its keys are returned in
// sorted order and missing files are an error; otherwise path_rules globs
// are walked and matches classified as source-locale kept.
func (s *Scanner) SourceFiles() ([]string, error) {
	if len(s.cfg.SourceFiles) > 0 {
		paths := make([]string, 0, len(s.cfg.SourceFiles))
		for p := range s.cfg.SourceFiles {
			if _, err := os.Stat(filepath.Join(s.cfg.Root, p)); err != nil {
				return nil, fmt.Errorf("source file %s: %w", p, err)
			}
			paths = append(paths, p)
		}
		sort.Strings(paths)
		return paths, nil
	}

	matches, err := s.globPathRules()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, p := range matches {
		locale, ok := s.Classify(p)
		if !ok || locale == s.cfg.SourceLanguage {
			out = append(out, p)
		}
	}
	return out, nil
}

// globPathRules evaluates the include/exclude patterns against the
// project root, keeping only files with a registered format.
func (s *Scanner) globPathRules() ([]string, error) {
	var includes, excludes []string
	for _, rule := range s.cfg.PathRules {
		if strings.HasPrefix(rule, "!") {
			excludes = append(excludes, strings.TrimPrefix(rule, "!"))
		} else {
			includes = append(includes, rule)
		}
	}

	seen := make(map[string]bool)
	var out []string
	fsys := os.DirFS(s.cfg.Root)
	for _, pattern := range includes {
		matches, err := doublestar.Glob(fsys, filepath.ToSlash(pattern))
		if err != nil {
			return nil, fmt.Errorf("path_rules pattern %q: %w", pattern, err)
		}
	match:
		for _, m := range matches {
			if seen[m] || !s.reg.Supported(m) {
				continue
			}
			for _, ex := range excludes {
				if doublestar.MatchUnvalidated(filepath.ToSlash(ex), m) {
					continue match
				}
			}
			seen[m] = true
			out = append(out, filepath.FromSlash(m))
		}
	}
	sort.Strings(out)
	return out, nil
}

// GroupByLocale classifies every discovered file. Files without a locale
// marker group under the source locale.
func (s *Scanner) GroupByLocale() (map[string][]string, error) {
	var files []string
	if len(s.cfg.SourceFiles) > 0 {
		sources, err := s.SourceFiles()
		if err != nil {
			return nil, err
		}
		files = sources
		// Known targets of each binding participate too.
		for _, src := range sources {
			for _, locale := range s.cfg.TargetLocales() {
				target := s.targetFor(src, locale)
				if _, err := os.Stat(filepath.Join(s.cfg.Root, target)); err == nil {
					files = append(files, target)
				}
			}
		}
	} else {
		matches, err := s.globPathRules()
		if err != nil {
			return nil, err
		}
		files = matches
	}

	groups := make(map[string][]string)
	for _, p := range files {
		locale, ok := s.Classify(p)
		if !ok {
			locale = s.cfg.SourceLanguage
		}
		groups[locale] = append(groups[locale], p)
	}
	for _, g := range groups {
		sort.Strings(g)
	}
	return groups, nil
}

// Pairs returns the work items for one target locale.
func (s *Scanner) Pairs(locale string) ([]Pair, error) {
	if !s.cfg.HasLocale(locale) {
		return nil, fmt.Errorf("locale %q is not declared in languages", locale)
	}
	sources, err := s.SourceFiles()
	if err != nil {
		return nil, err
	}
	pairs := make([]Pair, 0, len(sources))
	for _, src := range sources {
		pairs = append(pairs, Pair{Source: src, Target: s.targetFor(src, locale), Locale: locale})
	}
	return pairs, nil
}

// targetFor resolves the target path for a source file: the binding's
// destination pattern when configured, a structural derivation otherwise.
func (s *Scanner) targetFor(src, locale string) string {
	if sf, ok := s.cfg.SourceFiles[src]; ok && sf.DestinationPath != "" {
		return localepath.ResolveDestination(sf.DestinationPath, locale, s.cfg)
	}
	return localepath.DeriveTargetPath(src, s.cfg.SourceLanguage, locale, s.cfg)
}

// ---------------------------------------------------------------------------
// Classification
// ---------------------------------------------------------------------------

// Classify determines a file's locale from structural markers: Android
// values-<code> directories, path segments naming a destination code,
// locale-prefixed segments, and filename markers before the extension.
func (s *Scanner) Classify(path string) (string, bool) {
	segments := strings.FieldsFunc(filepath.ToSlash(path), func(r rune) bool { return r == '/' })
	if len(segments) == 0 {
		return "", false
	}
	file := segments[len(segments)-1]
	dirs := segments[:len(segments)-1]

	for _, seg := range dirs {
		if strings.HasPrefix(seg, "values-") {
			if internal, ok := localepath.ReverseLocaleLookup(strings.TrimPrefix(seg, "values-"), s.cfg); ok {
				return internal, true
			}
		}
		if internal, ok := localepath.ReverseLocaleLookup(seg, s.cfg); ok {
			return internal, true
		}
		for _, sep := range []string{"-", "_"} {
			if i := strings.Index(seg, sep); i > 0 {
				if internal, ok := localepath.ReverseLocaleLookup(seg[:i], s.cfg); ok {
					return internal, true
				}
			}
		}
	}

	// Filename markers: name.<code>.ext, name-<code>.ext, name_<code>.ext,
	// and plain <code>.ext.
	stem := strings.TrimSuffix(file, filepath.Ext(file))
	if internal, ok := localepath.ReverseLocaleLookup(stem, s.cfg); ok {
		return internal, true
	}
	for _, sep := range []string{".", "-", "_"} {
		if i := strings.LastIndex(stem, sep); i >= 0 {
			if internal, ok := localepath.ReverseLocaleLookup(stem[i+1:], s.cfg); ok {
				return internal, true
			}
		}
	}
	return "", false
}
