// Package localepath derives target file paths from source paths and locale
// codes, and resolves explicit destination patterns.
//
// Destination patterns contain the literal token %algebras_locale_code%,
// replaced with the destination locale code. When no pattern is configured,
// DeriveTargetPath applies a fixed priority of structural rules (Android
// values directories, locale path segments, locale filename markers) before
// falling back to inserting the locale before the extension.
package localepath

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/algebras-ai/algebras-cli/config"
)

// Token is the placeholder substituted in destination patterns.
const Token = "%algebras_locale_code%"

// ResolveDestination substitutes every occurrence of the locale token in a
// destination pattern with the destination code of the given internal
// locale.
func ResolveDestination(pattern, locale string, cfg *config.Config) string {
	return strings.ReplaceAll(pattern, Token, cfg.DestinationOf(locale))
}

var androidValuesRe = regexp.MustCompile(`(^|[/\\])values(-[^/\\]+)?([/\\])`)

// DeriveTargetPath derives the target path for a source file when no
// explicit destination pattern exists. Rules are tried in priority order;
// the first match wins.
func DeriveTargetPath(sourcePath, sourceLocale, targetLocale string, cfg *config.Config) string {
	src := cfg.DestinationOf(sourceLocale)
	dst := cfg.DestinationOf(targetLocale)
	p := filepath.ToSlash(sourcePath)

	// Rule 1: Android values directory.
	if m := androidValuesRe.FindStringIndex(p); m != nil {
		seg := p[m[0]:m[1]]
		// values/ or values-<src>/ both map to values-<dst>/.
		if strings.Contains(seg, "values/") || strings.Contains(seg, "values-"+src+"/") {
			var replaced string
			if strings.Contains(seg, "values-"+src+"/") {
				replaced = strings.Replace(seg, "values-"+src+"/", "values-"+dst+"/", 1)
			} else {
				replaced = strings.Replace(seg, "values/", "values-"+dst+"/", 1)
			}
			return fromSlash(p[:m[0]] + replaced + p[m[1]:])
		}
	}

	// Rule 2: locale as a full path segment.
	if strings.Contains(p, "/"+src+"/") {
		return fromSlash(strings.Replace(p, "/"+src+"/", "/"+dst+"/", 1))
	}
	if strings.HasPrefix(p, src+"/") {
		return fromSlash(dst + strings.TrimPrefix(p, src))
	}

	// Rule 3: locale-prefixed segment (src-rest or src_rest).
	if out, ok := replacePrefixedSegment(p, src, dst); ok {
		return fromSlash(out)
	}

	// Rule 4: locale marker in the filename (name.src.ext / name-src.ext /
	// name_src.ext).
	dir, file := pathSplit(p)
	ext := extOf(file)
	stem := strings.TrimSuffix(file, ext)
	for _, sep := range []string{".", "-", "_"} {
		if strings.HasSuffix(stem, sep+src) {
			newFile := strings.TrimSuffix(stem, sep+src) + sep + dst + ext
			return fromSlash(dir + newFile)
		}
	}

	// Rule 5: fallback — append the locale before the extension, unless the
	// file already sits in a locale-specific or Android values directory.
	if inLocaleDirectory(p, cfg) {
		return fromSlash(p)
	}
	return fromSlash(dir + stem + "." + dst + ext)
}

// ReverseLocaleLookup classifies a destination code back to its internal
// locale. Used by the scanner for files found in values-<code> directories
// and locale-named files.
func ReverseLocaleLookup(destination string, cfg *config.Config) (string, bool) {
	return cfg.InternalOf(destination)
}

// replacePrefixedSegment replaces a path segment of the form "<src>-…" or
// "<src>_…" with "<dst>…" (same separator).
func replacePrefixedSegment(p, src, dst string) (string, bool) {
	segs := strings.Split(p, "/")
	for i, seg := range segs {
		for _, sep := range []string{"-", "_"} {
			if strings.HasPrefix(seg, src+sep) {
				segs[i] = dst + sep + strings.TrimPrefix(seg, src+sep)
				return strings.Join(segs, "/"), true
			}
		}
	}
	return "", false
}

// inLocaleDirectory reports whether any path segment is a configured
// destination code or an Android values directory.
func inLocaleDirectory(p string, cfg *config.Config) bool {
	for _, seg := range strings.Split(p, "/") {
		if seg == "values" || strings.HasPrefix(seg, "values-") {
			return true
		}
		if _, ok := cfg.InternalOf(seg); ok {
			return true
		}
	}
	return false
}

func pathSplit(p string) (dir, file string) {
	i := strings.LastIndex(p, "/")
	if i < 0 {
		return "", p
	}
	return p[:i+1], p[i+1:]
}

// extOf returns the final extension including the dot, or "" when absent.
func extOf(file string) string {
	i := strings.LastIndex(file, ".")
	if i <= 0 {
		return ""
	}
	return file[i:]
}

func fromSlash(p string) string { return filepath.FromSlash(p) }
